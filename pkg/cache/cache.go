// Package cache is the persistent lookup cache for enrichment records.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/japaniel/bookdeck/pkg/dictionary"
	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// ErrClosed is returned by operations on a closed Cache.
var ErrClosed = errors.New("cache: closed")

// Key identifies a cache entry.
type Key struct {
	Lemma    string
	Category lexicon.Category
}

func (k Key) String() string { return k.Category.String() + ":" + k.Lemma }

// NormalizeKey folds case and whitespace so equivalent lemmas share an entry.
func NormalizeKey(lemma string, category lexicon.Category) Key {
	return Key{
		Lemma:    strings.Join(strings.Fields(strings.ToLower(lemma)), " "),
		Category: category,
	}
}

// Backend is the storage behind a Cache. Records are opaque JSON bytes.
type Backend interface {
	Load(ctx context.Context, key Key) ([]byte, bool, error)
	Save(ctx context.Context, key Key, record []byte) error
	Count(ctx context.Context) (map[lexicon.Category]int, error)
	// Purge removes the entries of the given categories, or all entries
	// when none is given, and returns how many were removed.
	Purge(ctx context.Context, categories ...lexicon.Category) (int, error)
	Close() error
}

// flusher is implemented by backends that write asynchronously.
type flusher interface {
	Flush(ctx context.Context) error
	Err() error
}

// Stats counts cache traffic since the Cache was created.
type Stats struct {
	Hits   int
	Misses int
	Writes int
}

// Cache maps (lemma, category) to enrichment records. It is safe for
// concurrent use. Records written in this session are kept in an overlay,
// so a Get after a Put sees the record even if the backend has not
// committed it yet.
type Cache struct {
	backend Backend

	mu      sync.RWMutex
	overlay map[Key][]byte
	closed  bool

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
}

// New wraps backend.
func New(backend Backend) *Cache {
	return &Cache{backend: backend, overlay: make(map[Key][]byte)}
}

// Get returns a copy of the cached record, or false on a miss.
func (c *Cache) Get(ctx context.Context, lemma string, category lexicon.Category) (*dictionary.Record, bool, error) {
	key := NormalizeKey(lemma, category)

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, false, ErrClosed
	}
	data, ok := c.overlay[key]
	c.mu.RUnlock()

	if !ok {
		var err error
		data, ok, err = c.backend.Load(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("cache get %s: %w", key, err)
		}
	}
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}

	rec, err := dictionary.DecodeRecord(data)
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	c.hits.Add(1)
	return rec, true, nil
}

// Put stores rec under (lemma, category). Concurrent puts of one key are
// idempotent; the last writer wins.
func (c *Cache) Put(ctx context.Context, lemma string, category lexicon.Category, rec *dictionary.Record) error {
	if rec == nil {
		return fmt.Errorf("cache put: nil record")
	}
	key := NormalizeKey(lemma, category)
	data, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("cache put %s: encode: %w", key, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.overlay[key] = data
	c.mu.Unlock()

	if err := c.backend.Save(ctx, key, data); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	c.writes.Add(1)
	return nil
}

// Stats returns the traffic counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   int(c.hits.Load()),
		Misses: int(c.misses.Load()),
		Writes: int(c.writes.Load()),
	}
}

// Count returns the number of persisted entries per category.
func (c *Cache) Count(ctx context.Context) (map[lexicon.Category]int, error) {
	if err := c.Flush(ctx); err != nil {
		return nil, err
	}
	return c.backend.Count(ctx)
}

// Purge removes persisted entries; see Backend.Purge.
func (c *Cache) Purge(ctx context.Context, categories ...lexicon.Category) (int, error) {
	if err := c.Flush(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	if len(categories) == 0 {
		c.overlay = make(map[Key][]byte)
	} else {
		for key := range c.overlay {
			for _, cat := range categories {
				if key.Category == cat {
					delete(c.overlay, key)
				}
			}
		}
	}
	c.mu.Unlock()
	return c.backend.Purge(ctx, categories...)
}

// Flush waits until every Put has reached the backend's storage.
func (c *Cache) Flush(ctx context.Context) error {
	if f, ok := c.backend.(flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Err reports the first asynchronous backend failure, if any.
func (c *Cache) Err() error {
	if f, ok := c.backend.(flusher); ok {
		return f.Err()
	}
	return nil
}

// Close flushes pending writes and closes the backend.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.overlay = nil
	c.mu.Unlock()
	return c.backend.Close()
}
