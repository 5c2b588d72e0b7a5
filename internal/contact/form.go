// Package contact submits contact form messages to a hosted form backend.
package contact

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the longest message accepted, in characters.
const MaxMessageLength = 5000

// Form field names as posted to the backend.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldMessage = "message"
)

// Validation errors.
var (
	ErrEmptyName      = errors.New("name cannot be empty")
	ErrEmptyEmail     = errors.New("email cannot be empty")
	ErrInvalidEmail   = errors.New("email is not a valid address")
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = fmt.Errorf("message cannot be longer than %d characters", MaxMessageLength)
)

// Form is a contact form submission.
type Form struct {
	Name    string `json:"name" yaml:"name"`
	Email   string `json:"email" yaml:"email"`
	Message string `json:"message" yaml:"message"`
}

// Normalize trims surrounding whitespace from every field.
func (f Form) Normalize() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Message: strings.TrimSpace(f.Message),
	}
}

// Validate checks that the form can be submitted.
func (f Form) Validate() error {
	f = f.Normalize()

	if f.Name == "" {
		return ErrEmptyName
	}
	if f.Email == "" {
		return ErrEmptyEmail
	}
	addr, err := mail.ParseAddress(f.Email)
	if err != nil || addr.Address != f.Email {
		return ErrInvalidEmail
	}
	if f.Message == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(f.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// Values returns the form encoded for a POST body.
func (f Form) Values() url.Values {
	f = f.Normalize()
	return url.Values{
		FieldName:    {f.Name},
		FieldEmail:   {f.Email},
		FieldMessage: {f.Message},
	}
}

// FormFromValues reads a Form from decoded form values.
func FormFromValues(v url.Values) Form {
	return Form{
		Name:    v.Get(FieldName),
		Email:   v.Get(FieldEmail),
		Message: v.Get(FieldMessage),
	}
}
