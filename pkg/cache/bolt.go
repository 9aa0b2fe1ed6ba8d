package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// boltEntry is the value stored under each lemma.
type boltEntry struct {
	Record    json.RawMessage `json:"record"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// BoltBackend keeps one bbolt bucket per category, keyed by lemma.
type BoltBackend struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the bbolt file at path.
func OpenBolt(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, cat := range lexicon.Categories {
			if _, err := tx.CreateBucketIfNotExists(bucket(cat)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltBackend{db: db}, nil
}

func bucket(c lexicon.Category) []byte { return []byte(c.String()) }

func (b *BoltBackend) Load(ctx context.Context, key Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(bucket(key.Category))
		if bk == nil {
			return nil
		}
		data := bk.Get([]byte(key.Lemma))
		if data == nil {
			return nil
		}
		var e boltEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append([]byte(nil), e.Record...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (b *BoltBackend) Save(ctx context.Context, key Key, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(boltEntry{Record: record, FetchedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(bucket(key.Category))
		if err != nil {
			return err
		}
		return bk.Put([]byte(key.Lemma), data)
	})
}

func (b *BoltBackend) Count(ctx context.Context) (map[lexicon.Category]int, error) {
	out := make(map[lexicon.Category]int)
	err := b.db.View(func(tx *bbolt.Tx) error {
		for _, cat := range lexicon.Categories {
			bk := tx.Bucket(bucket(cat))
			if bk == nil {
				continue
			}
			if n := bk.Stats().KeyN; n > 0 {
				out[cat] = n
			}
		}
		return nil
	})
	return out, err
}

func (b *BoltBackend) Purge(ctx context.Context, categories ...lexicon.Category) (int, error) {
	if len(categories) == 0 {
		categories = lexicon.Categories
	}
	removed := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		for _, cat := range categories {
			bk := tx.Bucket(bucket(cat))
			if bk == nil {
				continue
			}
			removed += bk.Stats().KeyN
			if err := tx.DeleteBucket(bucket(cat)); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucket(cat)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
