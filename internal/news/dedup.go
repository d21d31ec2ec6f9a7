package news

import (
	"sort"
	"strings"

	"econpulse/internal/model"
)

// similarityThreshold is the word-overlap ratio above which two titles are
// considered the same story. Tunable heuristic; dedupe takes it as a
// parameter so tests can probe other values.
const similarityThreshold = 0.7

// Spanish stop-words dropped before computing title overlap.
var stopWords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {},
	"unas": {}, "de": {}, "del": {}, "al": {}, "en": {}, "y": {}, "o": {},
	"a": {}, "ante": {}, "con": {}, "contra": {}, "para": {}, "por": {},
	"que": {}, "se": {}, "su": {}, "sus": {}, "lo": {}, "como": {},
	"mas": {}, "más": {}, "pero": {}, "si": {}, "no": {}, "es": {},
	"son": {}, "fue": {}, "ser": {}, "esta": {}, "este": {}, "estos": {},
	"estas": {}, "ese": {}, "esa": {}, "hay": {}, "ya": {}, "tras": {},
	"sobre": {}, "entre": {}, "hasta": {}, "desde": {}, "durante": {},
}

var diacritics = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
)

// normalizeTitle lowercases, strips diacritics and removes every
// non-alphanumeric rune. Two titles normalizing to the same key are exact
// duplicates.
func normalizeTitle(title string) string {
	lowered := strings.ToLower(diacritics.Replace(title))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// titleWords tokenizes a title for fuzzy matching: diacritics and
// punctuation stripped, stop-words and tokens of two characters or fewer
// dropped.
func titleWords(title string) map[string]struct{} {
	lowered := strings.ToLower(diacritics.Replace(title))
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})

	words := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if len([]rune(field)) <= 2 {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		words[field] = struct{}{}
	}
	return words
}

// similarity is the word-overlap ratio |A∩B| / min(|A|,|B|). An empty word
// set matches nothing; there is no division by zero.
func similarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	shared := 0
	for word := range smaller {
		if _, ok := larger[word]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}

// dedupe removes duplicate stories: first exact duplicates by normalized
// title, then fuzzy duplicates by word overlap against every already
// accepted article. Candidates are walked newest-first so the most recent
// copy of a story survives. Articles whose titles tokenize to nothing are
// never treated as duplicates.
func dedupe(articles []model.ProcessedArticle, threshold float64) []model.ProcessedArticle {
	sorted := make([]model.ProcessedArticle, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	seenExact := make(map[string]struct{}, len(sorted))
	var accepted []model.ProcessedArticle
	var acceptedWords []map[string]struct{}

	for _, article := range sorted {
		key := normalizeTitle(article.Title)
		if key != "" {
			if _, dup := seenExact[key]; dup {
				continue
			}
		}

		words := titleWords(article.Title)
		fuzzyDup := false
		if len(words) > 0 {
			for _, other := range acceptedWords {
				if similarity(words, other) >= threshold {
					fuzzyDup = true
					break
				}
			}
		}
		if fuzzyDup {
			continue
		}

		if key != "" {
			seenExact[key] = struct{}{}
		}
		accepted = append(accepted, article)
		acceptedWords = append(acceptedWords, words)
	}

	return accepted
}
