package accounts_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	stores   *memoryStores
	notifier *recordingNotifier
	sink     *capturingSink
	clock    *fakeClock
	tokens   *accounts.TokenService
	life     *accounts.Lifecycle
}

func newHarness(t *testing.T, opts ...accounts.LifecycleOption) *harness {
	t.Helper()

	h := &harness{
		stores:   newMemoryStores(),
		notifier: &recordingNotifier{},
		sink:     &capturingSink{},
		clock:    newFakeClock(),
	}

	cfg := newTestConfig()
	tokens, err := accounts.NewTokenService(cfg, accounts.WithTokenClock(h.clock.Now))
	require.NoError(t, err)
	h.tokens = tokens

	base := []accounts.LifecycleOption{
		accounts.WithNotifier(h.notifier),
		accounts.WithActivitySink(h.sink),
		accounts.WithClock(h.clock.Now),
	}

	life, err := accounts.NewLifecycle(h.stores, tokens, cfg, append(base, opts...)...)
	require.NoError(t, err)
	h.life = life
	return h
}

func (h *harness) signup(t *testing.T, username, password, email string) (*accounts.SignupResponse, error) {
	t.Helper()
	var resp *accounts.SignupResponse
	err := h.life.Signup.Execute(context.Background(), accounts.SignupMessage{
		Username:   username,
		Password:   password,
		Email:      email,
		OnResponse: func(r *accounts.SignupResponse) { resp = r },
	})
	return resp, err
}

func (h *harness) login(t *testing.T, username, password string) (*accounts.LoginResponse, error) {
	t.Helper()
	var resp *accounts.LoginResponse
	err := h.life.Login.Execute(context.Background(), accounts.LoginMessage{
		Username:   username,
		Password:   password,
		OnResponse: func(r *accounts.LoginResponse) { resp = r },
	})
	return resp, err
}

func (h *harness) activate(t *testing.T, token string) (*accounts.ActivateResponse, error) {
	t.Helper()
	var resp *accounts.ActivateResponse
	err := h.life.Activate.Execute(context.Background(), accounts.ActivateMessage{
		Token:      token,
		OnResponse: func(r *accounts.ActivateResponse) { resp = r },
	})
	return resp, err
}

func (h *harness) lastToken(t *testing.T) string {
	t.Helper()
	sent := h.notifier.Sent()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].Token
}

func categoryOf(t *testing.T, err error) any {
	t.Helper()
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr), "expected *goerrors.Error, got %T", err)
	return richErr.Category
}

func TestSignupCreatesPendingAccountAndNotifies(t *testing.T) {
	h := newHarness(t)

	resp, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, accounts.MessageCheckEmail, resp.Message)

	account := h.stores.account("alice")
	require.NotNil(t, account)
	assert.False(t, account.IsActivated)
	assert.NotEqual(t, "longpassword1", account.PasswordHash)
	assert.Equal(t, resp.AccountID, account.ID.String())

	token := h.stores.tokenFor(account.ID)
	require.NotNil(t, token)
	require.NotNil(t, token.Activation.ExpiresAt)
	assert.Equal(t, h.clock.Now().Add(time.Hour), *token.Activation.ExpiresAt)
	assert.True(t, token.Reset.IsZero())

	sent := h.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@x.com", sent[0].Destination)
	assert.Equal(t, accounts.PurposeActivation, sent[0].Purpose)
	assert.Equal(t, token.Activation.Token, sent[0].Token)

	assert.Equal(t, []accounts.ActivityEventType{accounts.ActivityEventSignup}, h.sink.Types())
}

func TestSignupValidationFailure(t *testing.T) {
	h := newHarness(t)

	_, err := h.signup(t, "al", "short", "nope")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryValidation, categoryOf(t, err))

	violations := accounts.ViolationsFrom(err)
	require.Len(t, violations, 3)
	assert.Nil(t, h.stores.account("al"))
	assert.Empty(t, h.notifier.Sent())
}

func TestSignupDuplicateIsConflict(t *testing.T) {
	h := newHarness(t)

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)

	_, err = h.signup(t, "alice", "longpassword1", "other@x.com")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryConflict, categoryOf(t, err))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.MessageUsernameTaken, richErr.Message)
	assert.Equal(t, "username", richErr.Metadata["field"])

	_, err = h.signup(t, "bobby", "longpassword1", "alice@x.com")
	assert.Equal(t, goerrors.CategoryConflict, categoryOf(t, err))

	assert.Len(t, h.notifier.Sent(), 1)
}

func TestSignupHashidDuplicateEmailReportsEmail(t *testing.T) {
	h := newHarness(t, accounts.WithHashidAccountIDs(true))

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)

	_, err = h.signup(t, "bobby", "longpassword1", "alice@x.com")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryConflict, richErr.Category)
	assert.Equal(t, accounts.MessageEmailTaken, richErr.Message)
	assert.Equal(t, "email", richErr.Metadata["field"])
}

func TestSignupStoreUnavailableIsInternal(t *testing.T) {
	h := newHarness(t)
	h.stores.failWith = errors.New("connection refused")

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryInternal, categoryOf(t, err))
	assert.Empty(t, h.notifier.Sent())
}

func TestSignupNotificationFailurePropagates(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("smtp down")

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryInternal, categoryOf(t, err))

	// the account is committed before delivery is attempted
	assert.NotNil(t, h.stores.account("alice"))
	assert.Contains(t, h.sink.Types(), accounts.ActivityEventNotificationError)
}

func TestLoginRejectsPendingAndUnknownAlike(t *testing.T) {
	h := newHarness(t)

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)

	_, pendingErr := h.login(t, "alice", "longpassword1")
	_, unknownErr := h.login(t, "nobody", "longpassword1")

	assert.ErrorIs(t, pendingErr, accounts.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownErr, accounts.ErrInvalidCredentials)
	assert.Equal(t, pendingErr.Error(), unknownErr.Error())
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)
	_, err = h.activate(t, h.lastToken(t))
	require.NoError(t, err)

	_, err = h.login(t, "alice", "wrongpassword")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
	assert.Contains(t, h.sink.Types(), accounts.ActivityEventLoginFailure)
}

func TestLoginCorruptStoredHashIsInternal(t *testing.T) {
	h := newHarness(t)

	id := uuid.New()
	h.stores.accounts[id] = &accounts.Account{
		ID:           id,
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: "not-a-bcrypt-hash",
		IsActivated:  true,
	}

	resp, err := h.login(t, "alice", "longpassword1")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.NotErrorIs(t, err, accounts.ErrInvalidCredentials)
	assert.Equal(t, goerrors.CategoryInternal, categoryOf(t, err))
	assert.NotContains(t, h.sink.Types(), accounts.ActivityEventLoginFailure)
}

type brokenHasher struct {
	compared []string
}

func (b *brokenHasher) HashPassword(string) (string, error) {
	return "", errors.New("entropy exhausted")
}

func (b *brokenHasher) ComparePasswordAndHash(_, hash string) error {
	b.compared = append(b.compared, hash)
	return accounts.ErrMismatchedHashAndPassword
}

func TestLoginUnknownUserFallsBackToFixedDummyHash(t *testing.T) {
	hasher := &brokenHasher{}
	h := newHarness(t, accounts.WithPasswordHasher(hasher))

	_, err := h.login(t, "nobody", "longpassword1")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	require.Len(t, hasher.compared, 1)
	assert.True(t, strings.HasPrefix(hasher.compared[0], "$2a$10$"), hasher.compared[0])
	assert.Len(t, hasher.compared[0], 60)
}

func TestSignupActivateLoginScenario(t *testing.T) {
	h := newHarness(t)

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)
	assert.False(t, h.stores.account("alice").IsActivated)

	_, err = h.login(t, "alice", "longpassword1")
	require.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	resp, err := h.activate(t, h.lastToken(t))
	require.NoError(t, err)
	assert.Equal(t, accounts.ActivationSucceeded, resp.Outcome)
	assert.Equal(t, accounts.MessageActivated, resp.Message)
	assert.True(t, h.stores.account("alice").IsActivated)

	login, err := h.login(t, "alice", "longpassword1")
	require.NoError(t, err)
	require.NotNil(t, login.Session)
	assert.NotEmpty(t, login.Session.AccessToken)
	assert.NotEmpty(t, login.Session.RefreshToken)

	claims, err := h.tokens.ValidateAccess(login.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, login.AccountID, claims.AccountID())
}

func TestActivateIsIdempotentBeforeExpiry(t *testing.T) {
	h := newHarness(t)

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)
	token := h.lastToken(t)

	first, err := h.activate(t, token)
	require.NoError(t, err)
	activatedAt := h.stores.account("alice").ActivatedAt

	h.clock.Advance(time.Minute)
	second, err := h.activate(t, token)
	require.NoError(t, err)

	assert.Equal(t, first.Outcome, second.Outcome)
	assert.Equal(t, activatedAt, h.stores.account("alice").ActivatedAt)
	assert.Len(t, h.notifier.Sent(), 1)
}

func TestActivateExpiredTokenRegenerates(t *testing.T) {
	h := newHarness(t)

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)
	original := h.lastToken(t)

	h.clock.Advance(time.Hour)

	resp, err := h.activate(t, original)
	require.NoError(t, err)
	assert.Equal(t, accounts.ActivationTokenRegenerated, resp.Outcome)
	assert.Equal(t, accounts.MessageTokenRegenerated, resp.Message)
	assert.False(t, h.stores.account("alice").IsActivated)

	sent := h.notifier.Sent()
	require.Len(t, sent, 2)
	assert.NotEqual(t, original, sent[1].Token)

	_, err = h.activate(t, original)
	assert.ErrorIs(t, err, accounts.ErrTokenInvalid)

	resp, err = h.activate(t, sent[1].Token)
	require.NoError(t, err)
	assert.Equal(t, accounts.ActivationSucceeded, resp.Outcome)
	assert.Contains(t, h.sink.Types(), accounts.ActivityEventTokenRegenerated)
}

func TestActivateUnknownToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.activate(t, "does-not-exist")
	assert.ErrorIs(t, err, accounts.ErrTokenInvalid)

	_, err = h.activate(t, "   ")
	assert.ErrorIs(t, err, accounts.ErrTokenInvalid)
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), bool, error) {
	return func() {}, false, nil
}

func TestActivateSkipsRegenerationWhenLockHeld(t *testing.T) {
	h := newHarness(t, accounts.WithRegenerationLocker(busyLocker{}))

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)
	original := h.lastToken(t)

	h.clock.Advance(2 * time.Hour)

	resp, err := h.activate(t, original)
	require.NoError(t, err)
	assert.Equal(t, accounts.ActivationTokenRegenerated, resp.Outcome)
	assert.Len(t, h.notifier.Sent(), 1)
}

func TestStatusQuery(t *testing.T) {
	h := newHarness(t)

	signup, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)

	var status *accounts.StatusResponse
	err = h.life.Status.Execute(context.Background(), accounts.StatusMessage{
		AccountID:  signup.AccountID,
		OnResponse: func(r *accounts.StatusResponse) { status = r },
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", status.Username)
	assert.Equal(t, "alice@x.com", status.Email)

	err = h.life.Status.Execute(context.Background(), accounts.StatusMessage{
		AccountID: "2f1b1f0e-8d4c-4b7a-9a43-6c1f2b7d9e10",
	})
	assert.ErrorIs(t, err, accounts.ErrAccountLookup)
	assert.Equal(t, goerrors.CategoryInternal, categoryOf(t, err))

	err = h.life.Status.Execute(context.Background(), accounts.StatusMessage{AccountID: "garbage"})
	assert.ErrorIs(t, err, accounts.ErrAccountLookup)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	h := newHarness(t)

	_, err := h.signup(t, "alice", "longpassword1", "alice@x.com")
	require.NoError(t, err)
	_, err = h.activate(t, h.lastToken(t))
	require.NoError(t, err)
	login, err := h.login(t, "alice", "longpassword1")
	require.NoError(t, err)

	var refreshed *accounts.LoginResponse
	err = h.life.Refresh.Execute(context.Background(), accounts.RefreshMessage{
		RefreshToken: login.Session.RefreshToken,
		OnResponse:   func(r *accounts.LoginResponse) { refreshed = r },
	})
	require.NoError(t, err)
	assert.Equal(t, login.AccountID, refreshed.AccountID)
	assert.NotEmpty(t, refreshed.Session.AccessToken)

	err = h.life.Refresh.Execute(context.Background(), accounts.RefreshMessage{
		RefreshToken: login.Session.AccessToken,
	})
	assert.ErrorIs(t, err, accounts.ErrRefreshTokenInvalid)
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.life.Signup.Execute(ctx, accounts.SignupMessage{
		Username: "alice",
		Password: "longpassword1",
		Email:    "alice@x.com",
	})
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryOperation, categoryOf(t, err))
	assert.Nil(t, h.stores.account("alice"))
}

func TestNewLifecycleRequiresNotifier(t *testing.T) {
	tokens, err := accounts.NewTokenService(newTestConfig())
	require.NoError(t, err)

	_, err = accounts.NewLifecycle(newMemoryStores(), tokens, newTestConfig())
	assert.Error(t, err)
}
