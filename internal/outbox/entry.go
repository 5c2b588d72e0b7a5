// Package outbox keeps a local history of contact form submissions.
package outbox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/folio/internal/contact"
)

// Status of a recorded submission.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Entry is one submission attempt.
type Entry struct {
	ID         string `json:"id" yaml:"id"`
	Source     string `json:"source" yaml:"source"` // cli, tui, http
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email" yaml:"email"`
	Message    string `json:"message" yaml:"message"`
	Status     string `json:"status" yaml:"status"`
	StatusCode int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt  int64  `json:"created_at" yaml:"created_at"`
}

// Validation errors.
var (
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrInvalidState = errors.New("status must be sent or failed")
)

// NewEntry records the outcome of submitting form. A receipt's ID is reused
// so the entry matches what the backend accepted.
func NewEntry(source string, form contact.Form, receipt *contact.Receipt, err error) (*Entry, error) {
	form = form.Normalize()
	e := &Entry{
		Source:    source,
		Name:      form.Name,
		Email:     form.Email,
		Message:   form.Message,
		CreatedAt: time.Now().Unix(),
	}

	if receipt != nil && err == nil {
		e.ID = receipt.ID
		e.Status = StatusSent
		e.StatusCode = receipt.StatusCode
		e.CreatedAt = receipt.SentAt.Unix()
		return e, nil
	}

	id, idErr := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if idErr != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", idErr)
	}
	e.ID = id.String()
	e.Status = StatusFailed
	if err != nil {
		e.Error = err.Error()
		var serr *contact.SubmissionError
		if errors.As(err, &serr) {
			e.StatusCode = serr.StatusCode
		}
	}
	return e, nil
}

// Validate checks that the entry has all required fields.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Status != StatusSent && e.Status != StatusFailed {
		return ErrInvalidState
	}
	return nil
}

// Time returns CreatedAt as a time.Time.
func (e *Entry) Time() time.Time {
	return time.Unix(e.CreatedAt, 0)
}

// Form returns the submitted form.
func (e *Entry) Form() contact.Form {
	return contact.Form{Name: e.Name, Email: e.Email, Message: e.Message}
}
