package tui

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/jmylchreest/folio/internal/config"
)

var errNoClipboard = errors.New("no clipboard command available")

// clipboardCandidates are tried in order when no command is configured.
var clipboardCandidates = [][]string{
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
}

const clipboardTimeout = 5 * time.Second

// copyText pipes text into the clipboard command.
func copyText(text string, cfg *config.Config) error {
	argv := clipboardCommand(cfg, exec.LookPath)
	if len(argv) == 0 {
		return errNoClipboard
	}

	ctx, cancel := context.WithTimeout(context.Background(), clipboardTimeout)
	defer cancel()

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdin = strings.NewReader(text)
	return c.Run()
}

// clipboardCommand returns the configured command split into arguments, or
// the first candidate that lookPath finds.
func clipboardCommand(cfg *config.Config, lookPath func(string) (string, error)) []string {
	if cfg != nil {
		if argv := strings.Fields(cfg.Clipboard.Command); len(argv) > 0 {
			return argv
		}
	}
	for _, argv := range clipboardCandidates {
		if _, err := lookPath(argv[0]); err == nil {
			return argv
		}
	}
	return nil
}
