package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/folio/internal/contact"
	"github.com/jmylchreest/folio/internal/outbox"
)

var sendOpts struct {
	name     string
	email    string
	message  string
	endpoint string
	dryRun   bool
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a contact form submission",
	Long: `Post a contact form to the configured form backend.

The message is read from --message, or from stdin when --message is "-" or
omitted and stdin is not a terminal. The result is recorded in the outbox.

Examples:
  folio send --name Ada --email ada@example.com --message "Hello"
  echo "Hello" | folio send --name Ada --email ada@example.com
  folio send --name Ada --email ada@example.com --dry-run -m "Hi"`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendOpts.name, "name", "n", "", "Sender name")
	sendCmd.Flags().StringVarP(&sendOpts.email, "email", "e", "", "Sender email address")
	sendCmd.Flags().StringVarP(&sendOpts.message, "message", "m", "", `Message text ("-" reads stdin)`)
	sendCmd.Flags().StringVar(&sendOpts.endpoint, "endpoint", "",
		"Form backend URL (overrides config)")
	sendCmd.Flags().BoolVar(&sendOpts.dryRun, "dry-run", false,
		"Validate and print the form without sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	message, err := readMessage(cmd.InOrStdin())
	if err != nil {
		return err
	}

	form := contact.Form{
		Name:    sendOpts.name,
		Email:   sendOpts.email,
		Message: message,
	}.Normalize()
	if err := form.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sendOpts.dryRun {
		fmt.Fprintf(out, "Would send to %s:\n%s\n", endpoint(), form.Values().Encode())
		return nil
	}

	client := contact.NewClient(endpoint(), cfg.Contact.Timeout.Duration(), nil, logger)
	receipt, submitErr := client.Submit(cmd.Context(), form)

	if outboxStore != nil {
		entry, err := outbox.NewEntry("cli", form, receipt, submitErr)
		if err != nil {
			logger.Warn("failed to build outbox entry", "error", err)
		} else if err := outboxStore.Add(*entry); err != nil {
			logger.Warn("failed to record submission", "error", err)
		}
	}

	if submitErr != nil {
		var serr *contact.SubmissionError
		if errors.As(submitErr, &serr) && serr.Message != "" {
			return fmt.Errorf("%s: %s", contact.FailureText, serr.Message)
		}
		return fmt.Errorf("%s: %w", contact.FailureText, submitErr)
	}

	fmt.Fprintln(out, contact.ThankYouText)
	fmt.Fprintf(out, "id: %s\n", receipt.ID)
	return nil
}

func endpoint() string {
	if sendOpts.endpoint != "" {
		return sendOpts.endpoint
	}
	return cfg.Contact.Endpoint
}

// readMessage returns --message, or stdin for "-" or when stdin is piped.
func readMessage(stdin io.Reader) (string, error) {
	if sendOpts.message != "" && sendOpts.message != "-" {
		return sendOpts.message, nil
	}

	if sendOpts.message == "" {
		if f, ok := stdin.(*os.File); ok {
			if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
				return "", nil
			}
		}
	}

	data, err := io.ReadAll(io.LimitReader(stdin, int64(contact.MaxMessageLength)*4+1))
	if err != nil {
		return "", fmt.Errorf("failed to read message from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
