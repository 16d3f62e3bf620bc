package ussd

import (
	"errors"
	"fmt"
)

// Kind classifies a failed turn.
type Kind int

const (
	// KindMalformed is a webhook call missing its session or phone number.
	KindMalformed Kind = iota + 1
	// KindUnregistered is a caller the identity resolver does not know.
	KindUnregistered
	// KindUnavailable is a collaborator that failed, panicked or timed out.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindUnregistered:
		return "unregistered"
	case KindUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the typed failure produced inside a turn. It never leaves
// Engine.Handle; it selects which terminal screen the caller sees.
type Error struct {
	Kind    Kind
	Feature string // the menu feature that failed, empty for request errors
	Cause   error
}

func (e *Error) Error() string {
	var msg string
	if e.Feature != "" {
		msg = fmt.Sprintf("%s: %s", e.Feature, e.Kind)
	} else {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same Kind. A target with a Feature must
// also match the feature.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Feature == "" || t.Feature == e.Feature)
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var (
	ErrMalformed    = &Error{Kind: KindMalformed}
	ErrUnregistered = &Error{Kind: KindUnregistered}
	ErrUnavailable  = &Error{Kind: KindUnavailable}
)
