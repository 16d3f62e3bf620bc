// Package provider defines the data collaborators the menu engine consults.
//
// Implementations live in provider/fixture (static demo data) and
// store/postgres (the live school directory). Lists returned by Balances and
// Results must be ordered stably: a selection made on one turn is resolved
// against a list fetched again on the next.
package provider

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// ErrUnregistered is returned by Identity when the phone number is unknown.
var ErrUnregistered = errors.New("phone number not registered")

// Identity resolves a caller's phone number to an account.
type Identity interface {
	ResolveAccount(ctx context.Context, phone string) (*model.Account, error)
}

// Billing serves fee balances, fee structures and payment details.
type Billing interface {
	Balances(ctx context.Context, phone string) ([]*model.BalanceRecord, error)
	// FeeStructure returns nil, nil when no structure exists for class.
	FeeStructure(ctx context.Context, phone, class string) (*model.FeeStructure, error)
	// PaymentInstructions returns nil, nil when none are configured.
	PaymentInstructions(ctx context.Context, phone string) (*model.PaymentInstructions, error)
}

// Academic serves exam results.
type Academic interface {
	Results(ctx context.Context, phone string) ([]*model.ResultRecord, error)
}

// Events serves upcoming school events.
type Events interface {
	Upcoming(ctx context.Context, phone string) ([]*model.EventRecord, error)
}

// Set bundles the collaborators wired into one engine.
type Set struct {
	Identity Identity
	Billing  Billing
	Academic Academic
	Events   Events
}

// Directory is implemented by a single backend that serves every
// collaborator.
type Directory interface {
	Identity
	Billing
	Academic
	Events
}

// FromDirectory returns a Set backed entirely by d.
func FromDirectory(d Directory) Set {
	return Set{Identity: d, Billing: d, Academic: d, Events: d}
}

// Validate reports the first missing collaborator.
func (s Set) Validate() error {
	switch {
	case s.Identity == nil:
		return errors.New("provider: identity is required")
	case s.Billing == nil:
		return errors.New("provider: billing is required")
	case s.Academic == nil:
		return errors.New("provider: academic is required")
	case s.Events == nil:
		return errors.New("provider: events is required")
	}
	return nil
}
