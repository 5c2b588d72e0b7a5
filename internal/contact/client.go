package contact

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultEndpoint is the hosted form backend the portfolio posts to.
const DefaultEndpoint = "https://formspree.io/f/mrgwnkgq"

// ErrSubmissionFailed is returned for any submission that did not succeed.
var ErrSubmissionFailed = errors.New("form submission failed")

// SubmissionError describes a rejected or undeliverable submission.
type SubmissionError struct {
	StatusCode int    // 0 when no response was received
	Message    string // Backend error messages, if any
	Err        error  // Transport error, if any
}

func (e *SubmissionError) Error() string {
	var b strings.Builder
	b.WriteString(ErrSubmissionFailed.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Is reports ErrSubmissionFailed as a match.
func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Receipt records an accepted submission.
type Receipt struct {
	ID         string    `json:"id"`
	StatusCode int       `json:"status_code"`
	SentAt     time.Time `json:"sent_at"`
}

// backendResponse is the JSON body returned by Formspree-style backends.
type backendResponse struct {
	OK     bool `json:"ok"`
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Client posts forms to the backend endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// NewClient creates a client for endpoint. A nil httpClient uses a client
// with timeout.
func NewClient(endpoint string, timeout time.Duration, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		logger:   logger,
		now:      time.Now,
	}
}

// Endpoint returns the backend URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Submit validates and posts the form. Success is decided by the HTTP status
// alone; the body is only read for error messages.
func (c *Client) Submit(ctx context.Context, form Form) (*Receipt, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Values().Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("form submission failed", "endpoint", c.endpoint, "error", err)
		return nil, &SubmissionError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &SubmissionError{
			StatusCode: resp.StatusCode,
			Message:    readBackendErrors(resp.Body),
		}
		c.logger.Error("form submission rejected", "status", resp.StatusCode, "error", serr)
		return nil, serr
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	id, err := ulid.New(ulid.Timestamp(c.now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	c.logger.Info("form submitted", "id", id.String(), "status", resp.StatusCode)
	return &Receipt{
		ID:         id.String(),
		StatusCode: resp.StatusCode,
		SentAt:     c.now(),
	}, nil
}

// readBackendErrors extracts error messages from a JSON error body.
func readBackendErrors(r io.Reader) string {
	const maxBody = 64 * 1024

	var body backendResponse
	if err := json.NewDecoder(io.LimitReader(r, maxBody)).Decode(&body); err != nil {
		return ""
	}

	messages := make([]string, 0, len(body.Errors))
	for _, e := range body.Errors {
		if e.Message == "" {
			continue
		}
		if e.Field != "" {
			messages = append(messages, e.Field+": "+e.Message)
		} else {
			messages = append(messages, e.Message)
		}
	}
	return strings.Join(messages, "; ")
}
