package contact

import (
	"errors"
	"time"
)

// Notice texts shown under the form.
const (
	ThankYouText = "Thank you. I will get back to you as soon as possible."
	FailureText  = "Submission failed. Please try again."
)

// DefaultNoticeDuration is how long a success notice stays visible.
const DefaultNoticeDuration = 5 * time.Second

// Notice is the status line shown after a submission attempt.
type Notice struct {
	Text      string    `json:"text"`
	Error     bool      `json:"error"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// NoticeFor builds the notice for a submission result. Success notices
// expire after d; failure notices stay until replaced. Validation errors are
// shown as-is.
func NoticeFor(err error, now time.Time, d time.Duration) Notice {
	if err == nil {
		return Notice{Text: ThankYouText, ExpiresAt: now.Add(d)}
	}
	if errors.Is(err, ErrSubmissionFailed) {
		return Notice{Text: FailureText, Error: true}
	}
	return Notice{Text: err.Error(), Error: true}
}

// Visible reports whether the notice should still be displayed at now.
func (n Notice) Visible(now time.Time) bool {
	if n.Text == "" {
		return false
	}
	return n.ExpiresAt.IsZero() || now.Before(n.ExpiresAt)
}
