package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/folio/internal/config"
	"github.com/jmylchreest/folio/internal/outbox"
)

var pruneOpts struct {
	olderThan string
	keep      int
	dryRun    bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old submissions from history",
	Long: `Remove old submissions from the outbox.

Without flags, the older_than and keep values from the [outbox] section of
the config are used.

Examples:
  # Remove submissions older than 7 days
  folio prune --older-than 7d

  # Keep only the 100 most recent submissions
  folio prune --keep 100

  # Preview what would be removed (dry run)
  folio prune --older-than 48h --dry-run`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringVar(&pruneOpts.olderThan, "older-than", "",
		"Remove submissions older than this duration (e.g., 48h, 7d, 1w)")
	pruneCmd.Flags().IntVar(&pruneOpts.keep, "keep", -1,
		"Keep only the N most recent submissions (0=unlimited)")
	pruneCmd.Flags().BoolVar(&pruneOpts.dryRun, "dry-run", false,
		"Show what would be removed without actually removing")
}

func runPrune(cmd *cobra.Command, args []string) error {
	store, err := requireOutbox()
	if err != nil {
		return err
	}

	olderThan := cfg.Outbox.OlderThan.Duration()
	if pruneOpts.olderThan != "" {
		olderThan, err = config.ParseDuration(pruneOpts.olderThan)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
	}
	keep := cfg.Outbox.Keep
	if pruneOpts.keep >= 0 {
		keep = pruneOpts.keep
	}

	out := cmd.OutOrStdout()
	if store.Count() == 0 {
		fmt.Fprintln(out, "No submissions in history")
		return nil
	}

	if pruneOpts.dryRun {
		// Prune an in-memory copy to see what would go.
		preview := outbox.NewStore(nil)
		all := store.List(outbox.FilterOptions{})
		for _, e := range all {
			_ = preview.Add(e)
		}
		if _, err := preview.Prune(olderThan, keep); err != nil {
			return err
		}

		var toRemove []outbox.Entry
		for _, e := range all {
			if preview.Get(e.ID) == nil {
				toRemove = append(toRemove, e)
			}
		}
		if len(toRemove) == 0 {
			fmt.Fprintln(out, "No submissions to remove")
			return nil
		}

		fmt.Fprintf(out, "Would remove %d submission(s):\n", len(toRemove))
		for i, e := range toRemove {
			if i >= 10 {
				fmt.Fprintf(out, "  ... and %d more\n", len(toRemove)-10)
				break
			}
			fmt.Fprintf(out, "  - %s <%s> %s\n", e.Name, e.Email, e.Status)
		}
		return nil
	}

	removed, err := store.Prune(olderThan, keep)
	if err != nil {
		return fmt.Errorf("failed to prune outbox: %w", err)
	}
	if removed == 0 {
		fmt.Fprintln(out, "No submissions to remove")
		return nil
	}

	fmt.Fprintf(out, "Removed %d submission(s)\n", removed)
	return nil
}
