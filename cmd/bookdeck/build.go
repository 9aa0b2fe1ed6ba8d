package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/japaniel/bookdeck/pkg/pipeline"
)

type buildFlags struct {
	output        string
	outputsDir    string
	minLength     int
	excludeUpTo   string
	maxConcurrent int
	provider      string
	cacheBackend  string
	media         bool
	style         string
}

func newBuildCmd(a *app) *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build <input>",
		Short: "Build a deck from a text, HTML or EPUB file or a web page URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, a, &f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "Output file name; a bare name is placed in the outputs directory")
	fl.StringVar(&f.outputsDir, "outputs-dir", pipeline.DefaultOutputsDir, "Directory for decks given by bare name")
	fl.IntVar(&f.minLength, "min-length", 0, "Minimum length of words to include")
	fl.StringVar(&f.excludeUpTo, "exclude-up-to", "", "Exclude words with CEFR levels up to this (A1, A2, B1, B2, C1 or none)")
	fl.IntVar(&f.maxConcurrent, "max-concurrent", 0, "Maximum concurrent dictionary lookups")
	fl.StringVar(&f.provider, "provider", "", "Dictionary provider: freedict, oald or offline")
	fl.StringVar(&f.cacheBackend, "cache-backend", "", "Lookup cache backend: sqlite or bolt")
	fl.BoolVar(&f.media, "media", false, "Download pronunciation audio")
	fl.StringVar(&f.style, "style", "", "Style sheet copied next to the deck")
	return cmd
}

func runBuild(cmd *cobra.Command, a *app, f *buildFlags, input string) error {
	cfg := a.cfg
	fl := cmd.Flags()
	if fl.Changed("min-length") {
		cfg.MinLength = f.minLength
	}
	if fl.Changed("exclude-up-to") {
		cfg.ExcludeUpTo = f.excludeUpTo
	}
	if fl.Changed("max-concurrent") {
		cfg.MaxConcurrent = f.maxConcurrent
	}
	if fl.Changed("provider") {
		cfg.Dictionary.Provider = f.provider
	}
	if fl.Changed("cache-backend") {
		cfg.Cache.Backend = f.cacheBackend
	}
	if fl.Changed("media") {
		cfg.Media.Enabled = f.media
	}
	if fl.Changed("style") {
		cfg.StylePath = f.style
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	output := cfg.OutputPath
	if fl.Changed("output") {
		output = f.output
	}

	p, err := pipeline.New(cfg, a.logger)
	if err != nil {
		return err
	}
	defer p.Close()
	p.OutputsDir = f.outputsDir
	p.Fetcher.OnProgress = func(done, total int) {
		if done == total || done%50 == 0 {
			a.logger.Info("lookup progress", "done", done, "total", total)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Processing %s...\n", input)
	sum, err := p.Run(cmd.Context(), input, output)
	if err == nil || sum.DeckPath != "" {
		sum.Print(cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}
	return p.Close()
}
