// Package visibility reads the contact section's visibility signal from a
// line-oriented stream, such as a browser bridge writing to stdin.
package visibility

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Event is one visibility report.
type Event struct {
	Visible bool      `json:"visible"`
	At      time.Time `json:"at"`
}

// ParseError describes a line that is not a visibility report.
type ParseError struct {
	Line    int
	Content string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: unrecognised visibility report %q", e.Line, e.Content)
}

// Reader turns lines into Events. Accepted forms, case-insensitive:
//
//	enter | visible | show | true | 1
//	exit  | hidden  | hide | false | 0
//	{"visible": true}
type Reader struct {
	reader io.Reader
	now    func() time.Time
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: r, now: time.Now}
}

// ParseLine parses one report. Blank lines and lines starting with # are
// reported as skip.
func ParseLine(line string) (visible bool, skip bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, true, nil
	}

	if strings.HasPrefix(line, "{") {
		var msg struct {
			Visible *bool `json:"visible"`
		}
		if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.Visible == nil {
			return false, false, fmt.Errorf("invalid JSON report")
		}
		return *msg.Visible, false, nil
	}

	switch strings.ToLower(line) {
	case "enter", "visible", "show", "true", "1":
		return true, false, nil
	case "exit", "hidden", "hide", "false", "0":
		return false, false, nil
	}
	return false, false, fmt.Errorf("unknown report")
}

// Run reads reports until EOF or ctx is done, calling fn for each. Invalid
// lines are passed to onError (if not nil) and skipped.
func (r *Reader) Run(ctx context.Context, fn func(Event), onError func(error)) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.reader)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	lineNum := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
					return ctx.Err()
				}
			}
			lineNum++

			visible, skip, err := ParseLine(line)
			if skip {
				continue
			}
			if err != nil {
				if onError != nil {
					onError(&ParseError{Line: lineNum, Content: line})
				}
				continue
			}
			fn(Event{Visible: visible, At: r.now()})
		}
	}
}
