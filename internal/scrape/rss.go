package scrape

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"econpulse/internal/model"
)

// Feed is one RSS source to poll.
type Feed struct {
	ID   string
	Name string
	URL  string
}

// DefaultFeeds are the outlets polled when no override is configured.
func DefaultFeeds() []Feed {
	return []Feed{
		{ID: "ambito", Name: "Ámbito", URL: "https://www.ambito.com/rss/pages/economia.xml"},
		{ID: "infobae", Name: "Infobae Economía", URL: "https://www.infobae.com/economia/rss"},
		{ID: "cronista", Name: "El Cronista", URL: "https://www.cronista.com/files/rss/economia.xml"},
	}
}

const (
	defaultMaxAge       = 48 * time.Hour
	descriptionMaxRunes = 300
)

// Client reads RSS feeds and turns items into raw article records. The
// records come out unprocessed; summarization happens downstream.
type Client struct {
	parser *gofeed.Parser
	maxAge time.Duration
	now    func() time.Time
}

func New() *Client {
	return &Client{
		parser: gofeed.NewParser(),
		maxAge: defaultMaxAge,
		now:    time.Now,
	}
}

// Fetch pulls one feed. Items without a link are skipped; items older than
// the age window are skipped.
func (c *Client) Fetch(ctx context.Context, feed Feed) ([]model.ProcessedArticle, error) {
	parsed, err := c.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape: fetching %s: %w", feed.ID, err)
	}

	now := c.now()
	oldest := now.Add(-c.maxAge)
	articles := make([]model.ProcessedArticle, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if strings.TrimSpace(item.Link) == "" {
			continue
		}

		published := now
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		if published.Before(oldest) {
			continue
		}

		content := item.Description
		if content == "" {
			content = item.Content
		}

		articles = append(articles, model.ProcessedArticle{
			ID:              articleID(item.Link),
			Title:           strings.TrimSpace(item.Title),
			OriginalContent: truncate(stripHTML(content), descriptionMaxRunes),
			ImageURL:        itemImage(item),
			SourceURL:       item.Link,
			SourceName:      feed.Name,
			SourceID:        feed.ID,
			PublishedAt:     published,
		})
	}
	return articles, nil
}

// FetchResult carries whatever came back; per-feed failures do not abort
// the other feeds.
type FetchResult struct {
	Articles []model.ProcessedArticle
	Errors   []error
}

// FetchAll polls every feed concurrently and merges the results.
func (c *Client) FetchAll(ctx context.Context, feeds []Feed) FetchResult {
	var (
		mu     sync.Mutex
		result FetchResult
		wg     sync.WaitGroup
	)

	for _, feed := range feeds {
		wg.Add(1)
		go func(f Feed) {
			defer wg.Done()
			articles, err := c.Fetch(ctx, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, err)
				return
			}
			result.Articles = append(result.Articles, articles...)
		}(feed)
	}

	wg.Wait()
	return result
}

// articleID derives a stable id from the link so re-ingesting the same
// story updates the existing record.
func articleID(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", h[:16])
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enclosure := range item.Enclosures {
		if strings.HasPrefix(enclosure.Type, "image/") && enclosure.URL != "" {
			return enclosure.URL
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
