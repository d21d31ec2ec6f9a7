package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Economía</title>
<item>
  <title>El dólar blue sube</title>
  <link>https://example.com/nota-1</link>
  <description><![CDATA[<p>El billete  paralelo   avanzó.</p>]]></description>
  <pubDate>Mon, 02 Jun 2025 12:00:00 GMT</pubDate>
  <enclosure url="https://example.com/nota-1.jpg" type="image/jpeg" length="1000"/>
</item>
<item>
  <title>Nota vieja</title>
  <link>https://example.com/nota-2</link>
  <pubDate>Mon, 05 May 2025 12:00:00 GMT</pubDate>
</item>
<item>
  <title>Sin link</title>
  <description>Descartada</description>
</item>
</channel>
</rss>`

func testClient() *Client {
	client := New()
	client.now = func() time.Time {
		return time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	}
	return client
}

func TestFetchParsesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := testClient()
	articles, err := client.Fetch(context.Background(), Feed{ID: "test", Name: "Test", URL: server.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(articles) != 1 {
		t.Fatalf("expected 1 article (old and linkless items dropped), got %d", len(articles))
	}
	got := articles[0]
	if got.Title != "El dólar blue sube" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if got.OriginalContent != "El billete paralelo avanzó." {
		t.Errorf("description must be stripped of markup, got %q", got.OriginalContent)
	}
	if got.ImageURL != "https://example.com/nota-1.jpg" {
		t.Errorf("expected enclosure image, got %q", got.ImageURL)
	}
	if got.SourceID != "test" || got.SourceName != "Test" {
		t.Errorf("source identity lost: %+v", got)
	}
	if got.IsProcessed {
		t.Error("scraped articles must come out unprocessed")
	}
	if got.ID != articleID("https://example.com/nota-1") {
		t.Errorf("id must be derived from the link, got %q", got.ID)
	}
}

func TestFetchAllSurvivesFeedFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	client := testClient()
	result := client.FetchAll(context.Background(), []Feed{
		{ID: "good", Name: "Good", URL: good.URL},
		{ID: "bad", Name: "Bad", URL: bad.URL},
	})

	if len(result.Articles) != 1 {
		t.Errorf("healthy feed must still land, got %d articles", len(result.Articles))
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 feed error, got %d", len(result.Errors))
	}
}

func TestArticleIDStable(t *testing.T) {
	a := articleID("https://example.com/nota-1")
	b := articleID("https://example.com/nota-2")
	if a == b {
		t.Error("different links must produce different ids")
	}
	if a != articleID("https://example.com/nota-1") {
		t.Error("same link must produce the same id")
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"<p>Hola</p>", "Hola"},
		{"<b>Negrita</b> y <i>cursiva</i>", "Negrita y cursiva"},
		{"sin etiquetas", "sin etiquetas"},
		{"<div>  espacios   múltiples  </div>", "espacios múltiples"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := stripHTML(tc.in); got != tc.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
