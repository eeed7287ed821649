package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ActivationOutcome tells which branch an activation attempt took.
type ActivationOutcome string

const (
	ActivationSucceeded        ActivationOutcome = "activated"
	ActivationTokenRegenerated ActivationOutcome = "token_regenerated"
)

type ActivateMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *ActivateResponse)
}

func (e ActivateMessage) Type() string { return "account.activate" }

type ActivateResponse struct {
	AccountID string
	Outcome   ActivationOutcome
	Message   string
}

// ActivateHandler consumes an activation token. Expired tokens are
// regenerated and re-sent instead of being honored. Repeating a successful
// activation before expiry succeeds again without changing state.
type ActivateHandler struct {
	deps *lifecycleDeps
}

func (h *ActivateHandler) Execute(ctx context.Context, event ActivateMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "context cancelled during account activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateHandler) execute(ctx context.Context, event ActivateMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	d := h.deps

	raw := strings.TrimSpace(event.Token)
	if raw == "" {
		return ErrTokenInvalid
	}

	token, found, err := d.stores.Tokens().FindByGrant(ctx, PurposeActivation, raw)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up activation token").
			WithCode(goerrors.CodeInternal)
	}
	if !found {
		return ErrTokenInvalid
	}

	if d.keeper.HasExpired(token, PurposeActivation) {
		return h.regenerate(ctx, event, token)
	}

	found, err = d.stores.Accounts().MarkActivated(ctx, token.CreatorID, d.clock())
	if err != nil {
		return classifyStoreError(err, "failed to activate account")
	}
	if !found {
		return ErrTokenInvalid
	}

	recordActivity(ctx, d.activity, d.logger, d.clock, ActivityEvent{
		EventType: ActivityEventActivated,
		AccountID: token.CreatorID.String(),
		Purpose:   PurposeActivation,
	})

	h.respond(event, token, ActivationSucceeded, MessageActivated)
	return nil
}

func (h *ActivateHandler) regenerate(ctx context.Context, event ActivateMessage, token *OneTimeToken) error {
	d := h.deps

	release, acquired, err := d.locker.Lock(ctx, "activation:"+token.ID.String())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to acquire regeneration lock").
			WithCode(goerrors.CodeInternal)
	}
	if release != nil {
		defer release()
	}

	if !acquired {
		d.logger.Debug("regeneration already in progress", "token_id", token.ID.String())
		h.respond(event, token, ActivationTokenRegenerated, MessageTokenRegenerated)
		return nil
	}

	// reload under the lock: a finished regeneration means the presented
	// token no longer matches and nothing is sent twice.
	current, found, err := d.stores.Tokens().FindByGrant(ctx, PurposeActivation, token.Activation.Token)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reload activation token").
			WithCode(goerrors.CodeInternal)
	}
	if !found || !d.keeper.HasExpired(current, PurposeActivation) {
		h.respond(event, token, ActivationTokenRegenerated, MessageTokenRegenerated)
		return nil
	}

	account, found, err := d.stores.Accounts().FindByID(ctx, current.CreatorID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up token owner").
			WithCode(goerrors.CodeInternal)
	}
	if !found {
		return ErrTokenInvalid
	}

	updated, err := d.keeper.Regenerate(ctx, current, PurposeActivation)
	if err != nil {
		return classifyStoreError(err, "failed to regenerate activation token")
	}

	if err := d.notifier.Send(ctx, Notification{
		AccountID:   account.ID.String(),
		Destination: account.Email,
		Purpose:     PurposeActivation,
		Token:       updated.Activation.Token,
	}); err != nil {
		recordActivity(ctx, d.activity, d.logger, d.clock, ActivityEvent{
			EventType: ActivityEventNotificationError,
			AccountID: account.ID.String(),
			Purpose:   PurposeActivation,
		})
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send activation notification").
			WithCode(goerrors.CodeInternal)
	}

	recordActivity(ctx, d.activity, d.logger, d.clock, ActivityEvent{
		EventType: ActivityEventTokenRegenerated,
		AccountID: account.ID.String(),
		Purpose:   PurposeActivation,
	})

	h.respond(event, updated, ActivationTokenRegenerated, MessageTokenRegenerated)
	return nil
}

func (h *ActivateHandler) respond(event ActivateMessage, token *OneTimeToken, outcome ActivationOutcome, msg string) {
	if event.OnResponse == nil {
		return
	}
	event.OnResponse(&ActivateResponse{
		AccountID: token.CreatorID.String(),
		Outcome:   outcome,
		Message:   msg,
	})
}
