package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RefreshMessage struct {
	RefreshToken string `json:"refreshToken"`
	OnResponse   func(resp *LoginResponse)
}

func (e RefreshMessage) Type() string { return "account.token.refresh" }

// RefreshHandler trades a valid refresh token for a new session pair while
// the owning account is still activated.
type RefreshHandler struct {
	deps *lifecycleDeps
}

func (h *RefreshHandler) Execute(ctx context.Context, event RefreshMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "context cancelled during token refresh")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RefreshHandler) execute(ctx context.Context, event RefreshMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	d := h.deps

	claims, err := d.tokens.ValidateRefresh(event.RefreshToken)
	if err != nil {
		d.logger.Debug("refresh token rejected", "error", err)
		return ErrRefreshTokenInvalid
	}

	id, ok := AccountUUID(claims)
	if !ok {
		return ErrRefreshTokenInvalid
	}

	account, found, err := d.stores.Accounts().FindByID(ctx, id)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account").
			WithCode(goerrors.CodeInternal)
	}
	if !found || !account.IsActivated {
		return ErrRefreshTokenInvalid
	}

	pair, err := d.tokens.IssueSessionPair(account.ID.String())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session tokens").
			WithCode(goerrors.CodeInternal)
	}

	recordActivity(ctx, d.activity, d.logger, d.clock, ActivityEvent{
		EventType: ActivityEventTokenRefreshed,
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
