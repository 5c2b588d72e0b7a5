package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/folio/internal/audio"
	"github.com/jmylchreest/folio/internal/contact"
	"github.com/jmylchreest/folio/internal/fade"
	"github.com/jmylchreest/folio/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive contact form",
	Long: `Launch the interactive contact form.

The ambient track fades in while the terminal has focus and out when it
loses it. Terminals without focus reporting keep the track playing until
the form is closed.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	manager := audio.NewManager(cfg, logger)
	if err := manager.Start(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start audio: %w", err)
	}
	defer manager.Stop()

	controller := fade.New(cfg.Profile(), nil, manager, logger)
	defer func() {
		// Let the fade-out started on exit finish before the speaker closes.
		waitForSilence(cmd.Context(), controller, cfg.Profile().FadeOutPeriod*5)
		controller.Close()
	}()

	client := contact.NewClient(cfg.Contact.Endpoint, cfg.Contact.Timeout.Duration(), nil, logger)

	return tui.Run(tui.RunOptions{
		Config:     cfg,
		Controller: controller,
		Submitter:  client,
		Outbox:     outboxStore,
	})
}
