package api

import (
	"net/mail"
	"net/url"
	"strings"
)

// FieldError is one validation violation, reported back to the caller.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validator struct {
	errs []FieldError
}

func (v *validator) fail(field, message string) {
	v.errs = append(v.errs, FieldError{Field: field, Message: message})
}

func (v *validator) email(field, value string) {
	if _, err := mail.ParseAddress(value); err != nil {
		v.fail(field, "Invalid email address")
	}
}

func (v *validator) required(field, value, message string) {
	if strings.TrimSpace(value) == "" {
		v.fail(field, message)
	}
}

func (v *validator) maxLen(field, value string, max int, message string) {
	if len(value) > max {
		v.fail(field, message)
	}
}

func (v *validator) absoluteURL(field, value string) {
	u, err := url.Parse(value)
	if err != nil || !u.IsAbs() || u.Host == "" {
		v.fail(field, "Invalid frontend URL")
	}
}
