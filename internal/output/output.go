// Package output provides output formatters for submission history.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/folio/internal/outbox"
)

// Formatter formats outbox entries for output.
type Formatter interface {
	Format(w io.Writer, entries []outbox.Entry) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (FormatType, error) {
	switch f := FormatType(strings.ToLower(s)); f {
	case FormatPlain, FormatJSON, FormatYAML, FormatIDs:
		return f, nil
	case "":
		return FormatPlain, nil
	}
	return "", fmt.Errorf("unknown format %q (plain, json, yaml, ids)", s)
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatIDs:
		return &IDsFormatter{}, nil
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures plain output.
type FormatterOptions struct {
	Template       string // Custom template, executed once per entry
	ShowIndex      bool   // Show 1-based index prefix
	ShowTime       bool   // Show relative time
	MessageMaxLen  int    // Maximum message length (0 = unlimited)
	IncludeNewline bool   // Keep newlines in messages (default: replace with space)
}

// DefaultFormatterOptions returns sensible defaults for terminal output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:     true,
		ShowTime:      true,
		MessageMaxLen: 80,
	}
}

// PlainFormatter formats entries as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
	now      func() time.Time
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) (*PlainFormatter, error) {
	f := &PlainFormatter{opts: opts, now: time.Now}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err != nil {
			return nil, fmt.Errorf("invalid template: %w", err)
		}
		f.template = tmpl
	}

	return f, nil
}

type templateData struct {
	Index        int
	Entry        *outbox.Entry
	RelativeTime string
}

// Format writes entries as plain text.
func (f *PlainFormatter) Format(w io.Writer, entries []outbox.Entry) error {
	for i := range entries {
		if err := f.formatEntry(w, i+1, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatEntry(w io.Writer, index int, e *outbox.Entry) error {
	if f.template != nil {
		return f.template.Execute(w, templateData{
			Index:        index,
			Entry:        e,
			RelativeTime: humanize.RelTime(e.Time(), f.now(), "ago", "from now"),
		})
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", index)
	}
	fmt.Fprintf(&sb, "%s <%s> %s", e.Name, e.Email, e.Status)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (%d)", e.StatusCode)
	}
	if f.opts.ShowTime {
		fmt.Fprintf(&sb, " %s", humanize.RelTime(e.Time(), f.now(), "ago", "from now"))
	}
	sb.WriteString("\n")

	if e.Message != "" {
		message := e.Message
		if !f.opts.IncludeNewline {
			message = strings.ReplaceAll(message, "\n", " ")
		}
		sb.WriteString("    " + truncate(message, f.opts.MessageMaxLen) + "\n")
	}
	if e.Error != "" {
		sb.WriteString("    error: " + e.Error + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// JSONFormatter formats entries as an indented JSON array.
type JSONFormatter struct{}

// Format writes entries as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, entries []outbox.Entry) error {
	if entries == nil {
		entries = []outbox.Entry{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

// YAMLFormatter formats entries as a YAML sequence.
type YAMLFormatter struct{}

// Format writes entries as YAML.
func (f *YAMLFormatter) Format(w io.Writer, entries []outbox.Entry) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(entries); err != nil {
		return err
	}
	return encoder.Close()
}

// IDsFormatter outputs just the entry IDs, one per line.
type IDsFormatter struct{}

// Format writes IDs to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, entries []outbox.Entry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// FormatField outputs a specific field from an entry.
func FormatField(e *outbox.Entry, field string) string {
	switch strings.ToLower(field) {
	case "id":
		return e.ID
	case "name":
		return e.Name
	case "email":
		return e.Email
	case "message", "body":
		return e.Message
	case "status":
		return e.Status
	case "error":
		return e.Error
	case "source":
		return e.Source
	case "time":
		return e.Time().UTC().Format(time.RFC3339)
	default:
		return e.Message
	}
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"reltime": func(ts int64) string {
			return humanize.Time(time.Unix(ts, 0))
		},
		"bytes": func(s string) string {
			return humanize.Bytes(uint64(len(s)))
		},
	}
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
