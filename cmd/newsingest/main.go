package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"econpulse/internal/ai"
	"econpulse/internal/config"
	"econpulse/internal/news"
	"econpulse/internal/scrape"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	case "purge":
		purge(os.Args[2:])
	case "status":
		status(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: newsingest <run|purge|status> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "run options:")
	fmt.Fprintln(os.Stderr, "  -db    sqlite database path (default from NEWS_DB_PATH)")
	fmt.Fprintln(os.Stderr, "  -max   maximum stored articles (default from NEWS_MAX_ARTICLES)")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "purge options:")
	fmt.Fprintln(os.Stderr, "  -db     sqlite database path")
	fmt.Fprintln(os.Stderr, "  -hours  drop articles older than this many hours (default: 48)")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "status options:")
	fmt.Fprintln(os.Stderr, "  -db    sqlite database path")
}

func run(args []string) {
	cfg := config.Load()
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dbPath := fs.String("db", cfg.NewsDBPath, "sqlite database path")
	maxArticles := fs.Int("max", cfg.MaxArticles, "maximum stored articles")
	fs.Parse(args)

	if err := runIngest(cfg, *dbPath, *maxArticles); err != nil {
		fmt.Fprintln(os.Stderr, "ingest run failed:", err)
		os.Exit(1)
	}
}

func runIngest(cfg *config.Config, dbPath string, maxArticles int) error {
	store, err := news.OpenWithConfig(news.Config{Path: dbPath, StaleAfter: cfg.StaleAfter})
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	result := scrape.New().FetchAll(ctx, scrape.DefaultFeeds())
	for _, fetchErr := range result.Errors {
		fmt.Fprintln(os.Stderr, "feed fetch failed:", fetchErr)
	}
	if len(result.Articles) == 0 {
		return fmt.Errorf("no articles fetched (%d feed errors)", len(result.Errors))
	}

	summarizer := ai.New(cfg.OpenAIAPIKey)
	if !summarizer.Enabled() {
		fmt.Fprintln(os.Stderr, "warning: no api key, storing articles unsummarized")
	}

	summarized := 0
	for i := range result.Articles {
		article := &result.Articles[i]
		if !summarizer.Enabled() {
			continue
		}
		summary, err := summarizer.Summarize(ctx, *article)
		if err != nil {
			article.ProcessingError = err.Error()
			fmt.Fprintf(os.Stderr, "summarize failed id=%s: %v\n", article.ID, err)
			continue
		}
		article.Summary = summary.Summary
		article.KeyPoints = summary.KeyPoints
		article.IsProcessed = true
		article.ProcessedAt = time.Now()
		summarized++
	}

	snapshot, err := store.UpsertArticles(ctx, result.Articles, maxArticles)
	if err != nil {
		return err
	}

	fmt.Printf("ingest complete (fetched=%d summarized=%d stored=%d version=%d)\n",
		len(result.Articles), summarized, len(snapshot.Articles), snapshot.Meta.Version)
	return nil
}

func purge(args []string) {
	cfg := config.Load()
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	dbPath := fs.String("db", cfg.NewsDBPath, "sqlite database path")
	hours := fs.Int("hours", 48, "drop articles older than this many hours")
	fs.Parse(args)

	store, err := news.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "purge failed:", err)
		os.Exit(1)
	}
	defer store.Close()

	removed, err := store.PurgeOlderThan(context.Background(), *hours)
	if err != nil {
		fmt.Fprintln(os.Stderr, "purge failed:", err)
		os.Exit(1)
	}
	fmt.Printf("purge complete (removed=%d older than %dh)\n", removed, *hours)
}

func status(args []string) {
	cfg := config.Load()
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dbPath := fs.String("db", cfg.NewsDBPath, "sqlite database path")
	fs.Parse(args)

	store, err := news.OpenWithConfig(news.Config{Path: *dbPath, StaleAfter: cfg.StaleAfter})
	if err != nil {
		fmt.Fprintln(os.Stderr, "status failed:", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	count, err := store.Count(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "status failed:", err)
		os.Exit(1)
	}
	meta, err := store.Meta(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "status failed:", err)
		os.Exit(1)
	}
	staleness, err := store.IsStale(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "status failed:", err)
		os.Exit(1)
	}

	fmt.Printf("articles=%d version=%d\n", count, meta.Version)
	if meta.LastUpdated.IsZero() {
		fmt.Println("last_updated=never stale=true")
		return
	}
	fmt.Printf("last_updated=%s stale=%t age_minutes=%d\n",
		meta.LastUpdated.Format(time.RFC3339), staleness.Stale, staleness.MinutesOld)
}
