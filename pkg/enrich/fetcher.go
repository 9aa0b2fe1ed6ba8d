// Package enrich resolves lexical items against a dictionary source with a
// bounded worker pool, write-through caching and per-item retries.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/japaniel/bookdeck/pkg/cache"
	"github.com/japaniel/bookdeck/pkg/dictionary"
	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// DefaultMaxConcurrent is the default number of lookups in flight.
const DefaultMaxConcurrent = 20

// Tagged is an enrichment record together with the item it answers.
type Tagged struct {
	Item      lexicon.LexicalItem
	Record    *dictionary.Record
	FromCache bool
}

// Failure is an item that could not be enriched.
type Failure struct {
	Item     lexicon.LexicalItem
	Err      error
	Attempts int
}

// Reason is a short human-readable cause.
func (f Failure) Reason() string {
	switch {
	case errors.Is(f.Err, dictionary.ErrNotFound):
		return "not found"
	case errors.Is(f.Err, dictionary.ErrMalformed):
		return "malformed response"
	case errors.Is(f.Err, dictionary.ErrRejected):
		return "rejected"
	case errors.Is(f.Err, context.DeadlineExceeded):
		return fmt.Sprintf("timed out after %d attempts", f.Attempts)
	default:
		return fmt.Sprintf("gave up after %d attempts: %v", f.Attempts, f.Err)
	}
}

// Report accounts for every item passed to Fetch: each one is either in
// Records or in Failures.
type Report struct {
	Records   []Tagged
	CacheHits int
	Fetched   int
	Failures  []Failure
}

// Enriched returns how many items have a record.
func (r Report) Enriched() int { return len(r.Records) }

// FailedLemmas lists the failed lemmas in report order.
func (r Report) FailedLemmas() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Item.Lemma
	}
	return out
}

func (r *Report) sort() {
	sort.SliceStable(r.Records, func(i, j int) bool {
		a, b := r.Records[i].Item, r.Records[j].Item
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Lemma < b.Lemma
	})
	sort.SliceStable(r.Failures, func(i, j int) bool {
		a, b := r.Failures[i].Item, r.Failures[j].Item
		if a.Lemma != b.Lemma {
			return a.Lemma < b.Lemma
		}
		return a.Category < b.Category
	})
}

// Fetcher enriches items from the cache or, on a miss, from Source.
type Fetcher struct {
	Source dictionary.Source
	Cache  *cache.Cache

	// MaxConcurrent is the number of workers, and so the bound on lookups in flight.
	MaxConcurrent int
	Retry         RetryPolicy
	// Logger receives per-item warnings and retry details. nil means no logging.
	Logger *slog.Logger
	// OnProgress is called after each fetched item with the number done and the number of misses.
	OnProgress func(done, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewFetcher creates a Fetcher with default concurrency and retry policy.
func NewFetcher(src dictionary.Source, c *cache.Cache) *Fetcher {
	return &Fetcher{
		Source:        src,
		Cache:         c,
		MaxConcurrent: DefaultMaxConcurrent,
		Retry:         DefaultRetryPolicy(),
	}
}

// outcome is what a worker sends back for one item.
type outcome struct {
	item     lexicon.LexicalItem
	record   *dictionary.Record
	err      error // item-level failure
	fatal    error // environment-level failure; aborts the run
	attempts int
}

// Fetch enriches items. The returned error is non-nil only for faults that
// invalidate the whole run: a cache backend failure or cancellation of ctx.
// Individual lookup failures are reported in Report.Failures.
func (f *Fetcher) Fetch(ctx context.Context, items []lexicon.LexicalItem) (Report, error) {
	log := f.logger()
	var report Report

	// Cache reads are local and fast; only misses go to the pool.
	var misses []lexicon.LexicalItem
	for _, it := range items {
		rec, ok, err := f.Cache.Get(ctx, it.Lemma, it.Category)
		if err != nil {
			return report, fmt.Errorf("cache lookup: %w", err)
		}
		if ok {
			report.Records = append(report.Records, Tagged{Item: it, Record: rec, FromCache: true})
			report.CacheHits++
			continue
		}
		misses = append(misses, it)
	}
	log.Debug("cache pass finished", slog.Int("hits", report.CacheHits), slog.Int("misses", len(misses)))
	if len(misses) == 0 {
		report.sort()
		return report, nil
	}

	workers := f.MaxConcurrent
	if workers <= 0 {
		workers = DefaultMaxConcurrent
	}
	var wp WorkerPoolInterface
	if f.PoolFactory != nil {
		wp = f.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered for every miss so workers never block on a slow consumer.
	resultCh := make(chan outcome, len(misses))
	wp.Start(ctx)

	var submitErr error
	for _, it := range misses {
		item := it
		job := func(ctx context.Context) error {
			resultCh <- f.fetchOne(ctx, item)
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			submitErr = err
			cancel()
			break
		}
	}

	go func() {
		wp.Close()
		close(resultCh)
	}()

	var fatal error
	done := 0
	for res := range resultCh {
		done++
		switch {
		case res.fatal != nil:
			if fatal == nil {
				fatal = res.fatal
				cancel()
			}
		case res.err != nil:
			log.Warn("lookup failed",
				slog.String("lemma", res.item.Lemma),
				slog.String("category", res.item.Category.String()),
				slog.Int("attempts", res.attempts),
				slog.Any("error", res.err))
			report.Failures = append(report.Failures, Failure{Item: res.item, Err: res.err, Attempts: res.attempts})
		default:
			report.Records = append(report.Records, Tagged{Item: res.item, Record: res.record})
			report.Fetched++
		}
		if f.OnProgress != nil {
			f.OnProgress(done, len(misses))
		}
	}
	report.sort()

	if fatal != nil {
		return report, fatal
	}
	if submitErr != nil {
		if errors.Is(submitErr, context.Canceled) || errors.Is(submitErr, context.DeadlineExceeded) {
			return report, submitErr
		}
		return report, fmt.Errorf("submit lookup: %w", submitErr)
	}
	if err := ctx.Err(); err != nil && done < len(misses) {
		return report, err
	}
	return report, nil
}

// fetchOne runs the per-item protocol: lookup with retries, then write-through.
func (f *Fetcher) fetchOne(ctx context.Context, item lexicon.LexicalItem) outcome {
	res := outcome{item: item}
	log := f.logger()

	// Stop before the lookup once the cache can no longer store results.
	if err := f.Cache.Err(); err != nil {
		res.fatal = fmt.Errorf("cache write: %w", err)
		return res
	}

	op := func() error {
		res.attempts++
		actx := ctx
		if f.Retry.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, f.Retry.AttemptTimeout)
			defer cancel()
		}
		rec, err := f.Source.Lookup(actx, item)
		if err != nil {
			if dictionary.IsPermanent(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		res.record = rec
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Debug("retrying lookup",
			slog.String("lemma", item.Lemma),
			slog.Int("attempt", res.attempts),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}

	if err := backoff.RetryNotify(op, f.Retry.backOff(ctx), notify); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			res.fatal = cerr
			return res
		}
		res.err = err
		return res
	}

	if err := f.Cache.Put(ctx, item.Lemma, item.Category, res.record); err != nil {
		res.fatal = fmt.Errorf("cache write: %w", err)
		res.record = nil
	}
	return res
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}
