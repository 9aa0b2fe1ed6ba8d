package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/japaniel/bookdeck/pkg/cache"
)

// failingPool always returns an error on Submit to simulate producer error.
type failingPool struct{}

func (f *failingPool) Start(ctx context.Context) {}
func (f *failingPool) Submit(job Job) error      { return errors.New("submit failed") }
func (f *failingPool) SubmitCtx(ctx context.Context, job Job) error {
	return errors.New("submit failed")
}
func (f *failingPool) Close() {}

func TestFetchHandlesSubmitErrorClosesResultCh(t *testing.T) {
	f := NewFetcher(newCountingSource(), cache.New(cache.NewMemoryBackend()))
	// Inject failing pool so first Submit() returns an error
	f.PoolFactory = func(workers, queue int) WorkerPoolInterface { return &failingPool{} }

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), words("cat", "kitten"))
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected submit error, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Fetch did not return after submit error")
	}
}
