package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/folio/internal/audio"
	"github.com/jmylchreest/folio/internal/config"
	"github.com/jmylchreest/folio/internal/fade"
	"github.com/jmylchreest/folio/internal/visibility"
)

var ambienceOpts struct {
	noAudio bool
	print   bool
	format  string

	toneOut      string
	toneDuration time.Duration
	toneAmp      float64
	toneForce    bool
}

var ambienceCmd = &cobra.Command{
	Use:   "ambience",
	Short: "Fade the ambient track from visibility reports on stdin",
	Long: `Read visibility reports from stdin and fade the ambient track accordingly.

Each line is one report: enter/visible/show/true/1 or exit/hidden/hide/false/0,
or a JSON object such as {"visible":true}. Blank lines and lines starting
with # are ignored. When stdin closes the track fades out before exit.

Examples:
  # Bridge a browser IntersectionObserver via websocat
  websocat -t ws-l:127.0.0.1:9000 - | folio ambience

  # Watch the fade without a sound device
  printf 'enter\n' | folio ambience --no-audio --print`,
	RunE: runAmbience,
}

var ambienceToneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Write a generated placeholder track",
	Long: `Write a quiet, loopable WAV pad to use as the ambient track until a real
recording is installed.`,
	RunE: runAmbienceTone,
}

var ambienceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the ambience state of a running foliod",
	RunE:  runAmbienceStatus,
}

var ambienceSetCmd = &cobra.Command{
	Use:       "set <visible|hidden>",
	Short:     "Report section visibility to a running foliod",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"visible", "hidden"},
	RunE:      runAmbienceSet,
}

func init() {
	rootCmd.AddCommand(ambienceCmd)
	ambienceCmd.AddCommand(ambienceToneCmd, ambienceStatusCmd, ambienceSetCmd)

	ambienceCmd.Flags().BoolVar(&ambienceOpts.noAudio, "no-audio", false,
		"Do not open a sound device")
	ambienceCmd.Flags().BoolVar(&ambienceOpts.print, "print", false,
		"Print every state change as a JSON line")

	ambienceToneCmd.Flags().StringVarP(&ambienceOpts.toneOut, "out", "o", "",
		"Output WAV path (default: ~/.local/share/folio/sounds/ambient.wav)")
	ambienceToneCmd.Flags().DurationVar(&ambienceOpts.toneDuration, "duration", audio.DefaultToneOptions().Duration,
		"Loop length; whole seconds loop without clicks")
	ambienceToneCmd.Flags().Float64Var(&ambienceOpts.toneAmp, "amplitude", audio.DefaultToneOptions().Amplitude,
		"Peak level (0-1)")
	ambienceToneCmd.Flags().BoolVar(&ambienceOpts.toneForce, "force", false,
		"Overwrite an existing file")

	ambienceStatusCmd.Flags().StringVarP(&ambienceOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml)")
}

func runAmbience(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var manager *audio.Manager
	if !ambienceOpts.noAudio && cfg.Audio.Enabled {
		manager = audio.NewManager(cfg, logger)
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start audio: %w", err)
		}
		defer manager.Stop()
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	sink := fade.SinkFunc(func(s fade.State) {
		if manager != nil {
			manager.Apply(s)
		}
		if ambienceOpts.print {
			_ = enc.Encode(s)
		}
	})

	ctrl := fade.New(cfg.Profile(), nil, sink, logger)
	defer ctrl.Close()

	reader := visibility.NewReader(cmd.InOrStdin())
	err := reader.Run(ctx,
		func(e visibility.Event) { ctrl.SetVisible(e.Visible) },
		func(err error) { logger.Warn("ignoring visibility report", "error", err) },
	)
	if err != nil && ctx.Err() == nil {
		return err
	}

	// Input closed or interrupted: let the track fade out.
	ctrl.SetVisible(false)
	waitForSilence(context.WithoutCancel(ctx), ctrl, 5*time.Second)
	return nil
}

// waitForSilence blocks until the controller has no active fade, or timeout.
func waitForSilence(ctx context.Context, ctrl *fade.Controller, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for ctrl.ActiveFade() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runAmbienceTone(cmd *cobra.Command, args []string) error {
	path := ambienceOpts.toneOut
	if path == "" {
		path = filepath.Join(config.DataPath(), "sounds", "ambient.wav")
	}

	if !ambienceOpts.toneForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	opts := audio.DefaultToneOptions()
	opts.Duration = ambienceOpts.toneDuration
	opts.Amplitude = ambienceOpts.toneAmp
	if err := audio.WriteTone(f, opts); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write tone: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", path)
	if path != cfg.TrackPath() {
		fmt.Fprintf(out, "Set it as the ambient track with:\n\n[audio]\ntrack = %q\n", path)
	}
	return nil
}

// daemonURL returns the foliod API URL for path.
func daemonURL(path string) string {
	return "http://" + cfg.Server.Listen + path
}

var daemonClient = &http.Client{Timeout: 5 * time.Second}

func runAmbienceStatus(cmd *cobra.Command, args []string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, daemonURL("/api/ambience"), nil)
	if err != nil {
		return err
	}
	state, err := doAmbienceRequest(req)
	if err != nil {
		return err
	}
	return printAmbience(cmd.OutOrStdout(), state, ambienceOpts.format)
}

func runAmbienceSet(cmd *cobra.Command, args []string) error {
	if _, skip, err := visibility.ParseLine(args[0]); err != nil || skip {
		return fmt.Errorf("invalid visibility %q (visible, hidden)", args[0])
	}

	body := url.Values{"visible": {args[0]}}.Encode()
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, daemonURL("/api/visibility"), strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	state, err := doAmbienceRequest(req)
	if err != nil {
		return err
	}
	return printAmbience(cmd.OutOrStdout(), state, "plain")
}

func doAmbienceRequest(req *http.Request) (fade.State, error) {
	var state fade.State

	resp, err := daemonClient.Do(req)
	if err != nil {
		return state, fmt.Errorf("foliod is not reachable at %s: %w", cfg.Server.Listen, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return state, fmt.Errorf("foliod returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return state, fmt.Errorf("failed to decode response: %w", err)
	}
	return state, nil
}

func printAmbience(w io.Writer, state fade.State, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	case "yaml":
		return yaml.NewEncoder(w).Encode(state)
	case "plain", "":
		_, err := fmt.Fprintf(w, "%s volume=%.2f playing=%t visible=%t\n",
			state.Phase, state.Volume, state.Playing, state.Visible)
		return err
	}
	return fmt.Errorf("unknown format %q (plain, json, yaml)", format)
}
