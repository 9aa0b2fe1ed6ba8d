package pipeline

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/japaniel/bookdeck/pkg/cache"
	"github.com/japaniel/bookdeck/pkg/cards"
	"github.com/japaniel/bookdeck/pkg/config"
	"github.com/japaniel/bookdeck/pkg/dictionary"
	"github.com/japaniel/bookdeck/pkg/enrich"
	"github.com/japaniel/bookdeck/pkg/filter"
	"github.com/japaniel/bookdeck/pkg/lexicon"
	"github.com/japaniel/bookdeck/pkg/media"
	"github.com/japaniel/bookdeck/pkg/source"
	"github.com/japaniel/bookdeck/pkg/store"
)

// New wires a Pipeline from cfg. The caller must Close it.
func New(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		DB:         db,
		Extractor:  source.NewExtractor(),
		Analyzer:   lexicon.NewAnalyzer(),
		Assembler:  cards.NewAssembler(),
		OutputsDir: DefaultOutputsDir,
		StylePath:  cfg.StylePath,
		Logger:     logger,
		closers:    []io.Closer{db},
	}

	c, err := OpenCache(cfg, db)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.closers = append(p.closers, c)

	src, err := NewSource(cfg, logger)
	if err != nil {
		p.Close()
		return nil, err
	}

	phrasebook, err := lexicon.LoadPhrasebook(cfg.PhrasebookPath)
	if err != nil {
		p.Close()
		return nil, err
	}
	lem, err := lexicon.NewDictLemmatizer()
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Normalizer = lexicon.NewNormalizer(lem, phrasebook)

	p.Filter, err = NewStage(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Filter.Logger = logger.With("component", "filter")

	p.Fetcher = enrich.NewFetcher(src, c)
	p.Fetcher.MaxConcurrent = cfg.MaxConcurrent
	p.Fetcher.Retry = enrich.RetryPolicy{
		MaxRetries:      cfg.Retry.MaxRetries,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		AttemptTimeout:  cfg.Retry.AttemptTimeout,
	}
	p.Fetcher.Logger = logger.With("component", "enrich")

	if cfg.Media.Enabled {
		d := media.NewDownloader(cfg.Media.Dir)
		d.MaxConcurrent = cfg.MaxConcurrent
		d.Logger = logger.With("component", "media")
		p.Media = d
	}
	return p, nil
}

// OpenCache opens the lookup cache backend named by cfg.Cache.Backend.
func OpenCache(cfg *config.Config, db *sql.DB) (*cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "sqlite", "":
		return cache.New(cache.NewSQLBackend(db, cfg.Cache.BatchSize, cfg.Cache.FlushInterval)), nil
	case "bolt":
		b, err := cache.OpenBolt(cfg.Cache.BoltPath)
		if err != nil {
			return nil, err
		}
		return cache.New(b), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// NewSource builds the dictionary source named by cfg.Dictionary.Provider.
func NewSource(cfg *config.Config, logger *slog.Logger) (dictionary.Source, error) {
	d := cfg.Dictionary
	client := &http.Client{Timeout: d.Timeout}
	limiter := dictionary.NewRateLimiter(d.RateLimit)

	switch d.Provider {
	case "freedict", "":
		return dictionary.NewFreeDict(d.BaseURL, client, limiter, logger), nil
	case "oald":
		return dictionary.NewOALD(d.BaseURL, client, limiter, logger), nil
	case "offline":
		src, err := dictionary.LoadOffline(d.OfflinePath)
		if err != nil {
			return nil, fmt.Errorf("load offline dictionary: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown dictionary provider %q", d.Provider)
	}
}

// NewStage loads the word lists the filter needs. The level table is only
// read when a CEFR ceiling is set.
func NewStage(cfg *config.Config) (filter.Stage, error) {
	stage := filter.Stage{
		MinLength:   cfg.MinLength,
		ExcludeUpTo: cfg.Level(),
	}
	var err error
	if stage.ExcludeUpTo != filter.LevelNone {
		if stage.Levels, err = filter.LoadLevelTable(cfg.LevelsDir); err != nil {
			return filter.Stage{}, err
		}
	}
	if stage.Stopwords, err = filter.LoadWordSet(cfg.StopwordsPath); err != nil {
		return filter.Stage{}, fmt.Errorf("load stop words: %w", err)
	}
	if stage.Names, err = filter.LoadWordSet(cfg.NamesPath); err != nil {
		return filter.Stage{}, fmt.Errorf("load names: %w", err)
	}
	return stage, nil
}
