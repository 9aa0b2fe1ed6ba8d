package dictionary

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// Offline answers lookups from records loaded into memory, such as a
// dictionary dump or a test fixture.
type Offline struct {
	// Key: "category:lemma". Several records may share a key (homographs);
	// they are merged on lookup in load order.
	mu    sync.RWMutex
	index map[string][]Record
}

// NewOffline builds an in-memory index of the provided records.
func NewOffline(records []Record) *Offline {
	o := &Offline{index: make(map[string][]Record)}
	for _, r := range records {
		o.Add(r)
	}
	return o
}

// LoadOffline reads a records file and indexes it.
func LoadOffline(path string) (*Offline, error) {
	records, err := LoadRecords(path)
	if err != nil {
		return nil, fmt.Errorf("load offline dictionary: %w", err)
	}
	return NewOffline(records), nil
}

// Add indexes one more record.
func (o *Offline) Add(r Record) {
	key := offlineKey(r.Lemma, r.Category)
	o.mu.Lock()
	o.index[key] = append(o.index[key], *r.Clone())
	o.mu.Unlock()
}

// Len returns the number of indexed keys.
func (o *Offline) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.index)
}

// Name implements Source.
func (o *Offline) Name() string { return "offline" }

// Lookup implements Source.
func (o *Offline) Lookup(ctx context.Context, item lexicon.LexicalItem) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.RLock()
	matches := o.index[offlineKey(item.Lemma, item.Category)]
	o.mu.RUnlock()
	if len(matches) == 0 {
		return nil, ErrNotFound
	}

	out := &Record{Lemma: item.Lemma, Category: item.Category, Source: o.Name(), Senses: []Sense{}}
	for _, m := range matches {
		c := m.Clone()
		out.Senses = append(out.Senses, c.Senses...)
		out.Pronunciations = mergePronunciations(out.Pronunciations, c.Pronunciations)
		if out.AudioRef == "" {
			out.AudioRef = c.AudioRef
		}
	}
	if len(out.Senses) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func offlineKey(lemma string, c lexicon.Category) string {
	return c.String() + ":" + strings.Join(strings.Fields(strings.ToLower(lemma)), " ")
}
