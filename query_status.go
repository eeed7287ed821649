package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type StatusMessage struct {
	AccountID  string
	OnResponse func(resp *StatusResponse)
}

func (e StatusMessage) Type() string { return "account.status" }

type StatusResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// StatusQuery returns the public profile of an authenticated account.
type StatusQuery struct {
	deps *lifecycleDeps
}

func (h *StatusQuery) Execute(ctx context.Context, event StatusMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "context cancelled during status lookup")
	default:
		return h.execute(ctx, event)
	}
}

func (h *StatusQuery) execute(ctx context.Context, event StatusMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	d := h.deps

	// the id comes from a verified token, so anything unresolvable is an
	// internal inconsistency rather than a client error
	id, ok := parseAccountID(event.AccountID)
	if !ok {
		d.logger.Error("status lookup with unparsable account id", "account_id", event.AccountID)
		return ErrAccountLookup
	}

	account, found, err := d.stores.Accounts().FindByID(ctx, id)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account").
			WithCode(goerrors.CodeInternal)
	}
	if !found {
		d.logger.Error("status lookup for missing account", "account_id", event.AccountID)
		return ErrAccountLookup
	}

	if event.OnResponse != nil {
		event.OnResponse(&StatusResponse{
			Username: account.Username,
			Email:    account.Email,
		})
	}

	return nil
}
