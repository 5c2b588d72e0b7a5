package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/folio/internal/config"
	"github.com/jmylchreest/folio/internal/outbox"
	"github.com/jmylchreest/folio/internal/output"
)

var historyOpts struct {
	since    string
	status   string
	limit    int
	format   string
	template string
	field    string
}

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show sent contact form submissions",
	Long: `Show the local history of contact form submissions, newest first.

With an ID argument, outputs that single submission.

Examples:
  # Everything from the last week
  folio history --since 7d

  # Failed submissions as JSON
  folio history --status failed --format json

  # The message of one submission
  folio history 01HV8K3Z... --field message

  # Custom template
  folio history --template '{{.Index}} {{.Entry.Email}} {{.RelativeTime}}{{"\n"}}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Only show submissions from the last duration (e.g., 1h, 7d, 1w)")
	historyCmd.Flags().StringVar(&historyOpts.status, "status", "",
		"Only show submissions with this status (sent, failed)")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "l", 0,
		"Maximum number of submissions to show (0=unlimited)")
	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml, ids)")
	historyCmd.Flags().StringVarP(&historyOpts.template, "template", "t", "",
		"Custom Go template for plain output")
	historyCmd.Flags().StringVar(&historyOpts.field, "field", "",
		"Output a single field of one submission (id, name, email, message, status, error, time)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := requireOutbox()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(historyOpts.format)
	if err != nil {
		return err
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = historyOpts.template
	formatter, err := output.NewFormatter(format, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		entry := store.Get(args[0])
		if entry == nil {
			return fmt.Errorf("submission %s not found", args[0])
		}
		if historyOpts.field != "" {
			_, err := fmt.Fprintln(out, output.FormatField(entry, historyOpts.field))
			return err
		}
		return formatter.Format(out, []outbox.Entry{*entry})
	}

	switch historyOpts.status {
	case "", outbox.StatusSent, outbox.StatusFailed:
	default:
		return fmt.Errorf("invalid status %q (sent, failed)", historyOpts.status)
	}

	since, err := config.ParseDuration(historyOpts.since)
	if err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}

	entries := store.List(outbox.FilterOptions{
		Since:  since,
		Status: historyOpts.status,
		Limit:  historyOpts.limit,
	})

	if len(entries) == 0 && format == output.FormatPlain {
		fmt.Fprintln(os.Stderr, "No submissions in history")
		return nil
	}
	return formatter.Format(out, entries)
}
