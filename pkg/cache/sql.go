package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/japaniel/bookdeck/pkg/lexicon"
	"github.com/japaniel/bookdeck/pkg/store"
)

// SQLBackend persists entries in the cache_entries table. Writes are
// batched into transactions by a store.BatchWriter.
type SQLBackend struct {
	db     *sql.DB
	writer *store.BatchWriter
}

// NewSQLBackend uses db, which must already be migrated (store.Open does
// that). The caller keeps ownership of db.
func NewSQLBackend(db *sql.DB, batchSize int, flushInterval time.Duration) *SQLBackend {
	return &SQLBackend{db: db, writer: store.NewBatchWriter(db, batchSize, flushInterval)}
}

func (b *SQLBackend) Load(ctx context.Context, key Key) ([]byte, bool, error) {
	e, ok, err := store.GetCacheEntry(ctx, b.db, key.Lemma, key.Category.String())
	if err != nil || !ok {
		return nil, false, err
	}
	return e.Record, true, nil
}

func (b *SQLBackend) Save(ctx context.Context, key Key, record []byte) error {
	entry := store.CacheEntry{
		Lemma:     key.Lemma,
		Category:  key.Category.String(),
		Record:    record,
		FetchedAt: time.Now().UTC(),
	}
	if err := b.writer.Submit(func(ctx context.Context, tx *sql.Tx) error {
		return store.UpsertCacheEntry(ctx, tx, entry)
	}); err != nil {
		return err
	}
	// A commit may have failed while this write was being queued.
	return b.writer.Err()
}

func (b *SQLBackend) Count(ctx context.Context) (map[lexicon.Category]int, error) {
	raw, err := store.CountCacheEntries(ctx, b.db)
	if err != nil {
		return nil, err
	}
	out := make(map[lexicon.Category]int, len(raw))
	for name, n := range raw {
		cat, err := lexicon.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("cache_entries: %w", err)
		}
		out[cat] = n
	}
	return out, nil
}

func (b *SQLBackend) Purge(ctx context.Context, categories ...lexicon.Category) (int, error) {
	if len(categories) == 0 {
		n, err := store.DeleteCacheEntries(ctx, b.db, "")
		return int(n), err
	}
	total := 0
	for _, cat := range categories {
		n, err := store.DeleteCacheEntries(ctx, b.db, cat.String())
		if err != nil {
			return total, err
		}
		total += int(n)
	}
	return total, nil
}

// Flush commits buffered writes.
func (b *SQLBackend) Flush(ctx context.Context) error { return b.writer.Flush(ctx) }

// Err returns the first failed batch commit.
func (b *SQLBackend) Err() error { return b.writer.Err() }

// Close commits buffered writes and stops the writer. The database stays open.
func (b *SQLBackend) Close() error { return b.writer.Close() }
