package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StoreErrorKind is the closed set of write failures a store reports.
type StoreErrorKind int

const (
	// StoreConflict means a unique field is already taken
	StoreConflict StoreErrorKind = iota + 1
	// StoreInvalid means the record violates a storage constraint
	StoreInvalid
	// StoreUnavailable means the store could not be reached or failed
	StoreUnavailable
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreConflict:
		return "conflict"
	case StoreInvalid:
		return "invalid"
	case StoreUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// StoreError tags a store failure so callers branch on Kind instead of
// inspecting driver errors.
type StoreError struct {
	Kind   StoreErrorKind
	Field  string
	Fields []string
	Err    error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString("store ")
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		fmt.Fprintf(&b, " on %s", e.Field)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " on %s", strings.Join(e.Fields, ","))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }

// Conflict builds a StoreConflict outcome.
func Conflict(field string, err error) *StoreError {
	return &StoreError{Kind: StoreConflict, Field: field, Err: err}
}

// Invalid builds a StoreInvalid outcome.
func Invalid(fields []string, err error) *StoreError {
	return &StoreError{Kind: StoreInvalid, Fields: fields, Err: err}
}

// Unavailable builds a StoreUnavailable outcome.
func Unavailable(err error) *StoreError {
	return &StoreError{Kind: StoreUnavailable, Err: err}
}

// AccountStore persists accounts.
type AccountStore interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, bool, error)
	FindActiveByUsername(ctx context.Context, username string) (*Account, bool, error)
	MarkActivated(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// OneTimeTokenStore persists one-time tokens.
type OneTimeTokenStore interface {
	Create(ctx context.Context, token *OneTimeToken) (*OneTimeToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, token *OneTimeToken) (*OneTimeToken, error)
	FindByGrant(ctx context.Context, purpose Purpose, token string) (*OneTimeToken, bool, error)
	UpdateGrant(ctx context.Context, token *OneTimeToken, purpose Purpose) (*OneTimeToken, error)
}

// Stores exposes the stores plus transactions spanning them.
type Stores interface {
	repository.TransactionManager
	Accounts() AccountStore
	Tokens() OneTimeTokenStore
}
