package news

import (
	"testing"
	"time"

	"econpulse/internal/model"
)

func article(id, title string, published time.Time) model.ProcessedArticle {
	return model.ProcessedArticle{
		ID:          id,
		Title:       title,
		SourceURL:   "https://example.com/" + id,
		SourceName:  "test",
		SourceID:    "test",
		PublishedAt: published,
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"El dólar blue sube", "eldolarbluesube"},
		{"EL DÓLAR BLUE SUBE!!", "eldolarbluesube"},
		{"Soja: +3,5% en Chicago", "soja35enchicago"},
		{"¿Qué pasó?", "quepaso"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := normalizeTitle(tc.in); got != tc.want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTitleWordsDropsStopWordsAndShortTokens(t *testing.T) {
	words := titleWords("La soja recupera terreno en Chicago")
	want := []string{"soja", "recupera", "terreno", "chicago"}
	if len(words) != len(want) {
		t.Fatalf("expected %d words, got %v", len(want), words)
	}
	for _, w := range want {
		if _, ok := words[w]; !ok {
			t.Errorf("missing token %q", w)
		}
	}
}

func TestSimilarityRepublishedStory(t *testing.T) {
	a := titleWords("La soja recupera terreno en Chicago")
	b := titleWords("Soja: recupera terreno en el mercado de Chicago")
	if sim := similarity(a, b); sim < 0.7 {
		t.Errorf("republished story should score >= 0.7, got %v", sim)
	}

	c := titleWords("El dólar sube")
	d := titleWords("El Merval cae")
	if sim := similarity(c, d); sim != 0 {
		t.Errorf("unrelated titles should score 0, got %v", sim)
	}
}

func TestSimilarityEmptySets(t *testing.T) {
	if sim := similarity(map[string]struct{}{}, titleWords("El dólar sube")); sim != 0 {
		t.Errorf("empty set must score 0, got %v", sim)
	}
	if sim := similarity(map[string]struct{}{}, map[string]struct{}{}); sim != 0 {
		t.Errorf("two empty sets must score 0, got %v", sim)
	}
}

func TestDedupeExactKeepsNewest(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	survivors := dedupe([]model.ProcessedArticle{
		article("old", "El dólar blue sube", base),
		article("new", "EL DÓLAR BLUE SUBE!!", base.Add(time.Hour)),
	}, similarityThreshold)

	if len(survivors) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(survivors))
	}
	if survivors[0].ID != "new" {
		t.Errorf("the newer copy must survive, got %s", survivors[0].ID)
	}
}

func TestDedupeFuzzyCollapsesRepublication(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	survivors := dedupe([]model.ProcessedArticle{
		article("a", "La soja recupera terreno en Chicago", base),
		article("b", "Soja: recupera terreno en el mercado de Chicago", base.Add(time.Hour)),
	}, similarityThreshold)

	if len(survivors) != 1 {
		t.Fatalf("expected fuzzy collapse to 1, got %d", len(survivors))
	}
	if survivors[0].ID != "b" {
		t.Errorf("newest-first walk must keep the recent copy, got %s", survivors[0].ID)
	}
}

func TestDedupeKeepsDistinctStories(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	survivors := dedupe([]model.ProcessedArticle{
		article("a", "El dólar sube", base),
		article("b", "El Merval cae", base.Add(time.Minute)),
	}, similarityThreshold)

	if len(survivors) != 2 {
		t.Fatalf("distinct stories must both survive, got %d", len(survivors))
	}
}

func TestDedupeEmptyTitleNeverDuplicate(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	survivors := dedupe([]model.ProcessedArticle{
		article("a", "   ", base),
		article("b", "!!!", base.Add(time.Minute)),
		article("c", "El dólar sube", base.Add(2*time.Minute)),
	}, similarityThreshold)

	if len(survivors) != 3 {
		t.Fatalf("untokenizable titles must never collapse, got %d survivors", len(survivors))
	}
}

func TestDedupeThresholdIsTunable(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	articles := []model.ProcessedArticle{
		article("a", "Suben las tasas bancarias hoy", base),
		article("b", "Bajan las tasas bancarias hoy", base.Add(time.Minute)),
	}

	// {suben,tasas,bancarias,hoy} vs {bajan,tasas,bancarias,hoy}: 3/4 overlap.
	if got := dedupe(articles, 0.7); len(got) != 1 {
		t.Errorf("0.75 overlap should collapse at threshold 0.7, got %d", len(got))
	}
	if got := dedupe(articles, 0.8); len(got) != 2 {
		t.Errorf("0.75 overlap should survive threshold 0.8, got %d", len(got))
	}
}
