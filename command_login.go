package accounts

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type LoginMessage struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	OnResponse func(resp *LoginResponse)
}

func (e LoginMessage) Type() string { return "account.login" }

type LoginResponse struct {
	AccountID string
	Session   *SessionPair
}

// LoginHandler verifies credentials of an activated account and issues a
// session pair.
type LoginHandler struct {
	deps *lifecycleDeps
}

func (h *LoginHandler) Execute(ctx context.Context, event LoginMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "context cancelled during login")
	default:
		return h.execute(ctx, event)
	}
}

func (h *LoginHandler) execute(ctx context.Context, event LoginMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	d := h.deps

	account, found, err := d.stores.Accounts().FindActiveByUsername(ctx, event.Username)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account").
			WithCode(goerrors.CodeInternal)
	}

	if !found {
		// pay for a comparison anyway
		_ = d.hasher.ComparePasswordAndHash(event.Password, d.dummyPasswordHash())
		h.failure(ctx, "", "not_found")
		return ErrInvalidCredentials
	}

	if err := d.hasher.ComparePasswordAndHash(event.Password, account.PasswordHash); err != nil {
		if !errors.Is(err, ErrMismatchedHashAndPassword) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify password").
				WithCode(goerrors.CodeInternal).
				WithMetadata(map[string]any{"account_id": account.ID.String()})
		}
		h.failure(ctx, account.ID.String(), "password_mismatch")
		return ErrInvalidCredentials
	}

	pair, err := d.tokens.IssueSessionPair(account.ID.String())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session tokens").
			WithCode(goerrors.CodeInternal)
	}

	recordActivity(ctx, d.activity, d.logger, d.clock, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		AccountID: account.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&LoginResponse{
			AccountID: account.ID.String(),
			Session:   pair,
		})
	}

	return nil
}

func (h *LoginHandler) failure(ctx context.Context, accountID, reason string) {
	d := h.deps
	d.logger.Debug("login rejected", "reason", reason)
	recordActivity(ctx, d.activity, d.logger, d.clock, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		AccountID: accountID,
		Metadata:  map[string]any{"reason": reason},
	})
}
