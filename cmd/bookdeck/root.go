package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/japaniel/bookdeck/pkg/config"
	"github.com/japaniel/bookdeck/pkg/logging"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	dbPath     string
	dataDir    string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "bookdeck",
		Short:         "Build vocabulary flashcards from books",
		Long:          "bookdeck extracts the vocabulary of a book or article, looks every word and phrase up in a dictionary and writes an Anki-importable deck.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Config file (default: $BOOKDECK_CONFIG or "+config.DefaultPath+")")
	pf.StringVar(&a.dbPath, "db", "", "SQLite database path (default: <data-dir>/bookdeck.db)")
	pf.StringVar(&a.dataDir, "data-dir", "", "Directory for the database, cache and word lists")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(newBuildCmd(a), newCacheCmd(a), newKnownCmd(a), newRunsCmd(a), newConfigCmd())
	return root
}

// load reads the configuration and applies the persistent flag overrides.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
		// Every derived path follows the new data dir.
		cfg.DBPath, cfg.Cache.BoltPath, cfg.Media.Dir = "", "", ""
		cfg.LevelsDir, cfg.PhrasebookPath, cfg.StopwordsPath, cfg.NamesPath = "", "", "", ""
	}
	if flags.Changed("db") {
		cfg.DBPath = a.dbPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Log)
	return nil
}
