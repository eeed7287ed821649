package accounts

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type SignupMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	OnResponse func(resp *SignupResponse)
}

func (e SignupMessage) Type() string { return "account.signup" }

type SignupResponse struct {
	AccountID string
	Message   string
}

// SignupHandler registers a pending account and sends its activation token.
type SignupHandler struct {
	deps *lifecycleDeps
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "context cancelled during account signup")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	d := h.deps

	if d.debug {
		d.logger.Debug("signup request", "payload", print.MaybePrettyJSON(map[string]string{
			"username": event.Username,
			"email":    event.Email,
		}))
	}

	violations := ValidateAccount(AccountInput{
		Username: event.Username,
		Email:    event.Email,
		Password: event.Password,
	})
	if len(violations) > 0 {
		return NewValidationError(violations)
	}

	hash, err := d.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := d.clock()
	account := &Account{
		Username:     event.Username,
		Email:        event.Email,
		PasswordHash: hash,
		IsActivated:  false,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}
	if d.useHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			account.ID = id
		}
	}

	token := &OneTimeToken{CreatedAt: &now, UpdatedAt: &now}

	// account and token commit together; the notification is sent after
	// commit and is not rolled back if delivery fails.
	err = d.stores.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := d.stores.Accounts().CreateTx(ctx, tx, account)
		if err != nil {
			return err
		}
		account = created

		token.CreatorID = account.ID
		if err := d.keeper.Issue(token, PurposeActivation); err != nil {
			return err
		}

		if token, err = d.stores.Tokens().CreateTx(ctx, tx, token); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if d.useHashid && isIDConflict(err) {
			// hashid ids derive from the email, a repeated email hits the key first
			return NewConflictError("email")
		}
		return classifyStoreError(err, "account signup transaction failed")
	}

	if err := d.notifier.Send(ctx, Notification{
		AccountID:   account.ID.String(),
		Destination: account.Email,
		Purpose:     PurposeActivation,
		Token:       token.Activation.Token,
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
		EventType: ActivityEventSignup,
		AccountID: account.ID.String(),
		Purpose:   PurposeActivation,
	})

	d.logger.Info("account created", "account_id", account.ID.String())

	if event.OnResponse != nil {
		event.OnResponse(&SignupResponse{
			AccountID: account.ID.String(),
			Message:   MessageCheckEmail,
		})
	}

	return nil
}

func isIDConflict(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Kind == StoreConflict && storeErr.Field == "id"
}
