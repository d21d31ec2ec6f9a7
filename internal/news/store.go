package news

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"econpulse/internal/model"
)

const (
	// DefaultMaxArticles bounds the rolling collection.
	DefaultMaxArticles = 30

	// DefaultStaleAfter is the freshness threshold for the whole collection.
	DefaultStaleAfter = 30 * time.Minute

	metaVersionKey     = "version"
	metaLastUpdatedKey = "last_updated"
)

var ErrNotFound = errors.New("news: article not found")

// Store is the bounded rolling article collection. UpsertArticles is a
// read-merge-write sequence; the store mutex serializes it so concurrent
// ingests cannot reintroduce duplicates past each other.
type Store struct {
	mu         sync.Mutex
	db         *sql.DB
	staleAfter time.Duration
	now        func() time.Time
}

type Config struct {
	Path       string
	StaleAfter time.Duration
}

func Open(path string) (*Store, error) {
	return OpenWithConfig(Config{Path: path})
}

func OpenWithConfig(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("news: store path is required")
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, staleAfter: cfg.StaleAfter, now: time.Now}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetClock replaces the store's clock. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			header TEXT NOT NULL DEFAULT '',
			original_content TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			key_points TEXT NOT NULL DEFAULT '[]',
			image_url TEXT NOT NULL DEFAULT '',
			source_image_url TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL,
			source_name TEXT NOT NULL,
			source_id TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			published_at TEXT NOT NULL,
			processed_at TEXT NOT NULL,
			is_processed INTEGER NOT NULL DEFAULT 0,
			processing_error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at DESC);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return fmt.Errorf("news: migrate: %w", err)
		}
	}
	return nil
}

// UpsertArticles merges new articles into the collection: last write wins
// per id, exact then fuzzy title dedup keeps the newest copy of each
// story, and the survivors are trimmed newest-first to maxArticles. The
// whole sequence runs under the store lock.
func (s *Store) UpsertArticles(ctx context.Context, newArticles []model.ProcessedArticle, maxArticles int) (model.StoreSnapshot, error) {
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadArticles(ctx)
	if err != nil {
		return model.StoreSnapshot{}, err
	}

	merged := make(map[string]model.ProcessedArticle, len(existing)+len(newArticles))
	for _, article := range existing {
		merged[article.ID] = article
	}
	for _, article := range newArticles {
		merged[article.ID] = article
	}

	all := make([]model.ProcessedArticle, 0, len(merged))
	for _, article := range merged {
		all = append(all, article)
	}

	survivors := dedupe(all, similarityThreshold)

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].PublishedAt.After(survivors[j].PublishedAt)
	})
	if len(survivors) > maxArticles {
		survivors = survivors[:maxArticles]
	}

	meta, err := s.writeAll(ctx, survivors)
	if err != nil {
		return model.StoreSnapshot{}, err
	}
	return model.StoreSnapshot{Articles: survivors, Meta: meta}, nil
}

// Articles returns the stored collection newest-first, up to limit
// (limit <= 0 returns everything).
func (s *Store) Articles(ctx context.Context, limit int) ([]model.ProcessedArticle, error) {
	articles, err := s.loadArticles(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// Article returns one stored article by id.
func (s *Store) Article(ctx context.Context, id string) (model.ProcessedArticle, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM articles WHERE id = ?`, id)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProcessedArticle{}, ErrNotFound
	}
	return article, err
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count)
	return count, err
}

// Meta returns the collection freshness record. A store that was never
// written reports a zero LastUpdated.
func (s *Store) Meta(ctx context.Context) (model.StoreMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return model.StoreMeta{}, err
	}
	defer rows.Close()

	var meta model.StoreMeta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return model.StoreMeta{}, err
		}
		switch key {
		case metaVersionKey:
			meta.Version, _ = strconv.Atoi(value)
		case metaLastUpdatedKey:
			meta.LastUpdated, _ = time.Parse(time.RFC3339, value)
		}
	}
	return meta, rows.Err()
}

// IsStale reports whether the collection is older than the staleness
// threshold. It never triggers re-ingestion; that is the pipeline's job.
func (s *Store) IsStale(ctx context.Context) (model.Staleness, error) {
	meta, err := s.Meta(ctx)
	if err != nil {
		return model.Staleness{}, err
	}
	if meta.LastUpdated.IsZero() {
		return model.Staleness{Stale: true, MinutesOld: 0}, nil
	}

	age := s.clock()().Sub(meta.LastUpdated)
	return model.Staleness{
		Stale:      age > s.staleAfter,
		MinutesOld: int(age.Minutes()),
	}, nil
}

// PurgeOlderThan removes articles published more than the given number of
// hours ago, independent of the count-based trim. Returns how many were
// removed.
func (s *Store) PurgeOlderThan(ctx context.Context, hours int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM articles WHERE published_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	return int(removed), err
}

func (s *Store) clock() func() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

const selectColumns = `SELECT id, title, header, original_content, summary, key_points,
	image_url, source_image_url, source_url, source_name, source_id,
	category, priority, published_at, processed_at, is_processed, processing_error`

func (s *Store) loadArticles(ctx context.Context) ([]model.ProcessedArticle, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` FROM articles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []model.ProcessedArticle
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (model.ProcessedArticle, error) {
	var (
		a                       model.ProcessedArticle
		keyPoints               string
		publishedAt, processedAt string
		isProcessed             int
	)
	err := row.Scan(&a.ID, &a.Title, &a.Header, &a.OriginalContent, &a.Summary,
		&keyPoints, &a.ImageURL, &a.SourceImageURL, &a.SourceURL, &a.SourceName,
		&a.SourceID, &a.Category, &a.Priority, &publishedAt, &processedAt,
		&isProcessed, &a.ProcessingError)
	if err != nil {
		return model.ProcessedArticle{}, err
	}

	if keyPoints != "" {
		if err := json.Unmarshal([]byte(keyPoints), &a.KeyPoints); err != nil {
			return model.ProcessedArticle{}, fmt.Errorf("news: bad key_points for %s: %w", a.ID, err)
		}
	}
	a.PublishedAt, _ = time.Parse(time.RFC3339, publishedAt)
	a.ProcessedAt, _ = time.Parse(time.RFC3339, processedAt)
	a.IsProcessed = isProcessed != 0
	return a, nil
}

// writeAll replaces the stored collection with the survivor set and bumps
// the freshness meta, in one transaction.
func (s *Store) writeAll(ctx context.Context, articles []model.ProcessedArticle) (model.StoreMeta, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StoreMeta{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return model.StoreMeta{}, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (
			id, title, header, original_content, summary, key_points,
			image_url, source_image_url, source_url, source_name, source_id,
			category, priority, published_at, processed_at, is_processed, processing_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return model.StoreMeta{}, err
	}
	defer stmt.Close()

	for _, a := range articles {
		keyPoints, err := json.Marshal(a.KeyPoints)
		if err != nil {
			return model.StoreMeta{}, err
		}
		isProcessed := 0
		if a.IsProcessed {
			isProcessed = 1
		}
		_, err = stmt.ExecContext(ctx,
			a.ID, a.Title, a.Header, a.OriginalContent, a.Summary, string(keyPoints),
			a.ImageURL, a.SourceImageURL, a.SourceURL, a.SourceName, a.SourceID,
			a.Category, a.Priority,
			a.PublishedAt.UTC().Format(time.RFC3339),
			a.ProcessedAt.UTC().Format(time.RFC3339),
			isProcessed, a.ProcessingError)
		if err != nil {
			return model.StoreMeta{}, fmt.Errorf("news: upserting %s: %w", a.ID, err)
		}
	}

	previous, err := s.metaTx(ctx, tx)
	if err != nil {
		return model.StoreMeta{}, err
	}
	meta := model.StoreMeta{
		Version:     previous.Version + 1,
		LastUpdated: s.now().UTC(),
	}
	if err := writeMeta(ctx, tx, meta); err != nil {
		return model.StoreMeta{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.StoreMeta{}, err
	}
	return meta, nil
}

func (s *Store) metaTx(ctx context.Context, tx *sql.Tx) (model.StoreMeta, error) {
	var meta model.StoreMeta
	var value string
	err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaVersionKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	meta.Version, _ = strconv.Atoi(value)
	return meta, nil
}

func writeMeta(ctx context.Context, tx *sql.Tx, meta model.StoreMeta) error {
	upsert := `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, metaVersionKey, strconv.Itoa(meta.Version)); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, upsert, metaLastUpdatedKey, meta.LastUpdated.Format(time.RFC3339))
	return err
}
