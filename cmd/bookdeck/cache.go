package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/japaniel/bookdeck/pkg/cache"
	"github.com/japaniel/bookdeck/pkg/lexicon"
	"github.com/japaniel/bookdeck/pkg/pipeline"
	"github.com/japaniel/bookdeck/pkg/store"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the dictionary lookup cache",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show cached entries per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCache(func(c *cache.Cache) error {
				counts, err := c.Count(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "backend: %s\n", a.cfg.Cache.Backend)
				total := 0
				for _, cat := range lexicon.Categories {
					fmt.Fprintf(out, "%s: %d\n", cat, counts[cat])
					total += counts[cat]
				}
				fmt.Fprintf(out, "total: %d\n", total)
				return nil
			})
		},
	}

	var categories []string
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete cached entries so they are fetched again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := make([]lexicon.Category, 0, len(categories))
			for _, s := range categories {
				c, err := lexicon.ParseCategory(s)
				if err != nil {
					return err
				}
				cats = append(cats, c)
			}
			return a.withCache(func(c *cache.Cache) error {
				n, err := c.Purge(cmd.Context(), cats...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d cache entries\n", n)
				return nil
			})
		},
	}
	purge.Flags().StringSliceVar(&categories, "category", nil, "Only purge these categories (word, idiom, phrasal_verb)")

	cmd.AddCommand(stats, purge)
	return cmd
}

// withCache opens the configured cache for the duration of fn.
func (a *app) withCache(fn func(*cache.Cache) error) error {
	db, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := pipeline.OpenCache(a.cfg, db)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		c.Close()
		return err
	}
	return c.Close()
}
