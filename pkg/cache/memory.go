package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// ErrInjected is the failure returned by a MemoryBackend told to fail.
var ErrInjected = errors.New("cache: injected backend failure")

// MemoryBackend is an in-process Backend for tests and dry runs.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[Key][]byte
	failing bool
	loads   int
	saves   int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[Key][]byte)}
}

// SetFailing makes every later call return ErrInjected.
func (m *MemoryBackend) SetFailing(fail bool) {
	m.mu.Lock()
	m.failing = fail
	m.mu.Unlock()
}

// Calls returns how many loads and saves reached the backend.
func (m *MemoryBackend) Calls() (loads, saves int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads, m.saves
}

// Raw returns the stored bytes for key.
func (m *MemoryBackend) Raw(key Key) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.entries[key]
	return b, ok
}

func (m *MemoryBackend) Load(ctx context.Context, key Key) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.failing {
		return nil, false, ErrInjected
	}
	b, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (m *MemoryBackend) Save(ctx context.Context, key Key, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failing {
		return ErrInjected
	}
	m.entries[key] = append([]byte(nil), record...)
	return nil
}

func (m *MemoryBackend) Count(ctx context.Context) (map[lexicon.Category]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing {
		return nil, ErrInjected
	}
	out := make(map[lexicon.Category]int)
	for k := range m.entries {
		out[k.Category]++
	}
	return out, nil
}

func (m *MemoryBackend) Purge(ctx context.Context, categories ...lexicon.Category) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return 0, ErrInjected
	}
	removed := 0
	for k := range m.entries {
		match := len(categories) == 0
		for _, c := range categories {
			if k.Category == c {
				match = true
			}
		}
		if match {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Close() error { return nil }
