// Package pipeline turns one input document into a vocabulary deck.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/japaniel/bookdeck/pkg/cards"
	"github.com/japaniel/bookdeck/pkg/dictionary"
	"github.com/japaniel/bookdeck/pkg/enrich"
	"github.com/japaniel/bookdeck/pkg/filter"
	"github.com/japaniel/bookdeck/pkg/lexicon"
	"github.com/japaniel/bookdeck/pkg/media"
	"github.com/japaniel/bookdeck/pkg/source"
	"github.com/japaniel/bookdeck/pkg/store"
)

// Pipeline holds the stages of a run. Filter is a template: each run copies
// it and fills in the exclusion snapshot taken at the start of the run.
type Pipeline struct {
	DB         *sql.DB
	Extractor  *source.Extractor
	Analyzer   *lexicon.Analyzer
	Normalizer *lexicon.Normalizer
	Filter     filter.Stage
	Fetcher    *enrich.Fetcher
	Media      *media.Downloader // nil disables audio downloads
	Assembler  *cards.Assembler

	// OutputsDir receives decks given by bare file name.
	OutputsDir string
	// StylePath, when set, is copied next to the deck.
	StylePath string
	Logger    *slog.Logger

	closers []io.Closer
}

// Summary is the user-visible result of a run.
type Summary struct {
	RunID    uuid.UUID
	Input    string
	Title    string
	DeckPath string
	JSONPath string

	Tokens     int
	Candidates int
	Kept       int
	Dropped    map[filter.Reason]int

	Enriched  int
	CacheHits int
	Fetched   int
	Failures  []enrich.Failure
	Cards     int
	Media     media.Result

	NewExclusions int
	// AllKnown is set when nothing survived filtering or no card was produced.
	AllKnown bool
}

// Run processes input, a file path or URL, and writes the deck to output
// (see ResolveOutputPath). Per-item lookup failures are reported in the
// Summary; the error is reserved for faults that invalidate the run.
func (p *Pipeline) Run(ctx context.Context, input, output string) (Summary, error) {
	log := p.logger()
	sum := Summary{Input: input}

	// The exclusion snapshot is fixed for the whole run.
	excluded, err := store.ListExclusions(ctx, p.DB)
	if err != nil {
		return sum, fmt.Errorf("load exclusions: %w", err)
	}

	doc, err := p.Extractor.Extract(ctx, input)
	if err != nil {
		return sum, fmt.Errorf("extract %s: %w", input, err)
	}
	sum.Title = doc.Title
	log.Info("extracted document", "title", doc.Title, "type", doc.Type, "chars", len(doc.Text))

	sourceID, err := store.CreateOrGetSource(ctx, p.DB, store.Source{
		SourceType: doc.Type,
		Title:      doc.Title,
		Path:       doc.Location,
		Checksum:   doc.Checksum,
	})
	if err != nil {
		return sum, fmt.Errorf("persist source: %w", err)
	}
	run, err := store.StartRun(ctx, p.DB, sourceID)
	if err != nil {
		return sum, err
	}
	sum.RunID = run.ID

	runErr := p.run(ctx, doc, output, sourceID, filter.NewExclusionSet(excluded...), &sum)

	run.Tokens, run.Candidates, run.Kept = sum.Tokens, sum.Candidates, sum.Kept
	run.Enriched, run.CacheHits, run.Fetched, run.Failed = sum.Enriched, sum.CacheHits, sum.Fetched, len(sum.Failures)
	run.OutputPath = sum.DeckPath
	run.Status = store.RunSucceeded
	if runErr != nil {
		run.Status = store.RunFailed
		run.Error = runErr.Error()
	}
	// Record the outcome even when ctx was cancelled.
	if err := store.FinishRun(context.WithoutCancel(ctx), p.DB, run); err != nil {
		log.Error("failed to record run", "run_id", run.ID, "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return sum, runErr
}

func (p *Pipeline) run(ctx context.Context, doc source.Document, output string, sourceID int64, excluded filter.ExclusionSet, sum *Summary) error {
	log := p.logger()

	sentences := p.Analyzer.Tokens(doc.Text)
	for _, s := range sentences {
		sum.Tokens += len(s)
	}
	res := p.Normalizer.NormalizeSentences(sentences)
	sum.Candidates = len(res.Items)

	stage := p.Filter
	stage.Exclusions = excluded
	if stage.Logger == nil {
		stage.Logger = log
	}
	outcome := stage.Apply(res)
	sum.Kept = len(outcome.Kept)
	sum.Dropped = outcome.Dropped
	log.Info("filtered candidates", "candidates", sum.Candidates, "kept", sum.Kept, "dropped", outcome.DroppedTotal())

	if len(outcome.Kept) == 0 {
		sum.AllKnown = true
		return nil
	}

	report, err := p.Fetcher.Fetch(ctx, outcome.Kept)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	// Surface deferred cache writes before any card is produced.
	if err := p.Fetcher.Cache.Flush(ctx); err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	sum.Enriched = report.Enriched()
	sum.CacheHits = report.CacheHits
	sum.Fetched = report.Fetched
	sum.Failures = report.Failures

	if p.Media != nil {
		recs := make([]*dictionary.Record, len(report.Records))
		for i, t := range report.Records {
			recs[i] = t.Record
		}
		sum.Media, err = p.Media.Attach(ctx, recs)
		if err != nil {
			return fmt.Errorf("download audio: %w", err)
		}
	}

	deck, err := p.Assembler.Assemble(report.Records, report.Failures)
	if err != nil {
		return fmt.Errorf("assemble cards: %w", err)
	}
	sum.Cards = deck.Len()
	if deck.Len() == 0 {
		sum.AllKnown = true
		return nil
	}

	deckPath, err := ResolveOutputPath(output, doc.Location, p.OutputsDir)
	if err != nil {
		return err
	}
	jsonPath, err := writeDeck(deck, deckPath, p.StylePath)
	if err != nil {
		return err
	}
	sum.DeckPath, sum.JSONPath = deckPath, jsonPath
	log.Info("deck written", "path", deckPath, "cards", deck.Len())

	// The deck is valid from here on; a failed append is still an error.
	added, err := p.appendExclusions(ctx, sourceID, report.Records)
	if err != nil {
		return fmt.Errorf("deck written to %s, but recording known words failed: %w", deckPath, err)
	}
	sum.NewExclusions = added
	return nil
}

// appendExclusions records every enriched lemma in one transaction.
func (p *Pipeline) appendExclusions(ctx context.Context, sourceID int64, records []enrich.Tagged) (int, error) {
	lemmas := make([]string, 0, len(records))
	for _, t := range records {
		lemmas = append(lemmas, t.Item.Lemma)
	}

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	added, err := store.AddExclusions(ctx, tx, sourceID, lemmas)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Close releases the resources opened by New.
func (p *Pipeline) Close() error {
	var errs []string
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	p.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close pipeline: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// Print writes the end-of-run report.
func (s Summary) Print(w io.Writer) {
	if s.AllKnown {
		fmt.Fprintln(w, "All words are already known!")
	} else if s.DeckPath != "" {
		fmt.Fprintf(w, "Deck generated: %s (%d cards)\n", s.DeckPath, s.Cards)
	}
	fmt.Fprintf(w, "Tokens: %d, candidates: %d, kept: %d\n", s.Tokens, s.Candidates, s.Kept)
	if len(s.Dropped) > 0 {
		reasons := make([]string, 0, len(s.Dropped))
		for r := range s.Dropped {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		parts := make([]string, len(reasons))
		for i, r := range reasons {
			parts[i] = fmt.Sprintf("%s=%d", r, s.Dropped[filter.Reason(r)])
		}
		fmt.Fprintf(w, "Dropped: %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "Enriched: %d (cache hits: %d, fetched: %d)\n", s.Enriched, s.CacheHits, s.Fetched)
	if s.Media.Downloaded+s.Media.Reused > 0 || len(s.Media.Failed) > 0 {
		fmt.Fprintf(w, "Audio: %d downloaded, %d reused, %d failed\n", s.Media.Downloaded, s.Media.Reused, len(s.Media.Failed))
	}
	if len(s.Failures) > 0 {
		fmt.Fprintf(w, "Failed (%d):\n", len(s.Failures))
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s: %s\n", f.Item.Lemma, f.Reason())
		}
	}
}
