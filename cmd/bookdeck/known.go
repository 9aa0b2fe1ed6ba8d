package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/japaniel/bookdeck/pkg/store"
)

func newKnownCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "known",
		Short: "Manage the words excluded from future decks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List known words",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *sql.DB) error {
				words, err := store.ListExclusions(cmd.Context(), db)
				if err != nil {
					return err
				}
				for _, w := range words {
					fmt.Fprintln(cmd.OutOrStdout(), w)
				}
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <word>...",
		Short: "Mark words as known",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *sql.DB) error {
				n, err := store.AddExclusions(cmd.Context(), db, 0, args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d known words\n", n)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <word>...",
		Short: "Forget known words so they are extracted again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *sql.DB) error {
				n, err := store.RemoveExclusions(cmd.Context(), db, args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d known words\n", n)
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	var limit uint64
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *sql.DB) error {
				runs, err := store.ListRuns(cmd.Context(), db, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range runs {
					fmt.Fprintf(out, "%s  %-9s  %s  kept=%d enriched=%d cached=%d failed=%d  %s\n",
						r.ID, r.Status, r.StartedAt.Local().Format("2006-01-02 15:04"),
						r.Kept, r.Enriched, r.CacheHits, r.Failed, r.OutputPath)
					if r.Error != "" {
						fmt.Fprintf(out, "    error: %s\n", r.Error)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&limit, "limit", 10, "Number of runs to show (0 for all)")
	return cmd
}

// withDB opens the configured database for the duration of fn.
func (a *app) withDB(fn func(*sql.DB) error) error {
	db, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
