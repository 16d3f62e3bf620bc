package model

import (
	"net/url"
	"regexp"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// shortCodeRe matches *123# and *123*1#.
var shortCodeRe = regexp.MustCompile(`^\*\d+(\*\d+)*#$`)

// ValidShortCode reports whether s is a dialable USSD short code.
func ValidShortCode(s string) bool {
	return shortCodeRe.MatchString(s)
}

// ValidateRegistration checks a Registration for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if it is valid.
func ValidateRegistration(r *Registration) error {
	var ve ValidationError

	code := strings.TrimSpace(r.ShortCode)
	switch {
	case code == "":
		ve.Errors = append(ve.Errors, FieldError{Field: "shortCode", Message: "is required"})
	case !ValidShortCode(code):
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "shortCode",
			Message: "invalid format, expected *123# or *123*1#",
		})
	}

	cb := strings.TrimSpace(r.CallbackURL)
	if cb == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "callbackUrl", Message: "is required"})
	} else if u, err := url.Parse(cb); err != nil || u.Scheme == "" || u.Host == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "callbackUrl", Message: "invalid URL format"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
