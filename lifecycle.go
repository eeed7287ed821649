package accounts

import (
	"errors"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Lifecycle bundles the handlers driving an account from signup to an
// active session.
type Lifecycle struct {
	Signup   *SignupHandler
	Login    *LoginHandler
	Activate *ActivateHandler
	Status   *StatusQuery
	Refresh  *RefreshHandler

	keeper *TokenKeeper
	tokens *TokenService
}

type lifecycleDeps struct {
	stores    Stores
	tokens    *TokenService
	keeper    *TokenKeeper
	hasher    PasswordHasher
	notifier  Notifier
	locker    RegenerationLocker
	activity  ActivitySink
	logger    Logger
	clock     Clock
	generator TokenGenerator
	useHashid bool
	debug     bool

	dummyOnce sync.Once
	dummyHash string
}

// LifecycleOption configures NewLifecycle.
type LifecycleOption func(*lifecycleDeps)

// WithPasswordHasher overrides the bcrypt hasher built from Config.
func WithPasswordHasher(h PasswordHasher) LifecycleOption {
	return func(d *lifecycleDeps) {
		if h != nil {
			d.hasher = h
		}
	}
}

// WithNotifier sets where one-time tokens are delivered.
func WithNotifier(n Notifier) LifecycleOption {
	return func(d *lifecycleDeps) {
		d.notifier = n
	}
}

// WithRegenerationLocker serializes regeneration of expired tokens.
func WithRegenerationLocker(l RegenerationLocker) LifecycleOption {
	return func(d *lifecycleDeps) {
		d.locker = normalizeLocker(l)
	}
}

// WithActivitySink wires an ActivitySink.
func WithActivitySink(s ActivitySink) LifecycleOption {
	return func(d *lifecycleDeps) {
		d.activity = normalizeActivitySink(s)
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) LifecycleOption {
	return func(d *lifecycleDeps) {
		d.logger = normalizeLogger(l)
	}
}

// WithClock overrides the clock used for expiry and timestamps.
func WithClock(c Clock) LifecycleOption {
	return func(d *lifecycleDeps) {
		d.clock = normalizeClock(c)
	}
}

// WithTokenGenerator overrides how one-time token strings are produced.
func WithTokenGenerator(gen TokenGenerator) LifecycleOption {
	return func(d *lifecycleDeps) {
		d.generator = gen
	}
}

// WithHashidAccountIDs derives account ids from the email address.
func WithHashidAccountIDs(enabled bool) LifecycleOption {
	return func(d *lifecycleDeps) {
		d.useHashid = enabled
	}
}

// WithDebug enables payload dumps in debug logs.
func WithDebug(enabled bool) LifecycleOption {
	return func(d *lifecycleDeps) {
		d.debug = enabled
	}
}

// NewLifecycle wires the lifecycle handlers.
func NewLifecycle(stores Stores, tokens *TokenService, cfg Config, opts ...LifecycleOption) (*Lifecycle, error) {
	if stores == nil {
		return nil, goerrors.New("stores are required", goerrors.CategoryBadInput)
	}
	if tokens == nil {
		return nil, goerrors.New("token service is required", goerrors.CategoryBadInput)
	}
	if cfg == nil {
		return nil, goerrors.New("config is required", goerrors.CategoryBadInput)
	}

	d := &lifecycleDeps{
		stores:   stores,
		tokens:   tokens,
		hasher:   NewBcryptHasher(cfg.GetPasswordCost()),
		locker:   noopLocker{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		clock:    normalizeClock(nil),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	if d.notifier == nil {
		return nil, goerrors.New("notifier is required", goerrors.CategoryBadInput)
	}

	d.keeper = NewTokenKeeper(stores.Tokens(),
		WithKeeperClock(d.clock),
		WithKeeperTTL(cfg.GetActivationTokenTTL()),
		WithKeeperGenerator(d.generator),
	)

	return &Lifecycle{
		Signup:   &SignupHandler{deps: d},
		Login:    &LoginHandler{deps: d},
		Activate: &ActivateHandler{deps: d},
		Status:   &StatusQuery{deps: d},
		Refresh:  &RefreshHandler{deps: d},
		keeper:   d.keeper,
		tokens:   tokens,
	}, nil
}

// Keeper returns the one-time token keeper shared by the handlers.
func (l *Lifecycle) Keeper() *TokenKeeper { return l.keeper }

// TokenService returns the session token issuer.
func (l *Lifecycle) TokenService() *TokenService { return l.tokens }

// fallbackDummyHash is a well formed cost 10 bcrypt hash used when the
// configured hasher cannot produce one.
const fallbackDummyHash = "$2a$10$XajjQvNhvvRt5GSeFk1xFeyqRrsxkhBkUiQeg0dt.wU1qD4aFDcga"

// dummyPasswordHash is compared against when no account matched so that
// unknown usernames cost as much as wrong passwords.
func (d *lifecycleDeps) dummyPasswordHash() string {
	d.dummyOnce.Do(func() {
		hash, err := d.hasher.HashPassword("go-accounts-dummy-password")
		if err != nil || hash == "" {
			d.logger.Warn("dummy password hash unavailable, using fallback", "error", err)
			hash = fallbackDummyHash
		}
		d.dummyHash = hash
	})
	return d.dummyHash
}

// classifyStoreError maps a store outcome to the error surfaced to callers.
func classifyStoreError(err error, msg string) error {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.Kind {
		case StoreConflict:
			return NewConflictError(storeErr.Field)
		case StoreInvalid:
			violations := make([]FieldViolation, 0, len(storeErr.Fields))
			for _, f := range storeErr.Fields {
				violations = append(violations, FieldViolation{Field: f, Message: "rejected by store"})
			}
			return NewValidationError(violations)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, msg).WithCode(goerrors.CodeInternal)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).WithCode(goerrors.CodeInternal)
}

func cancelled(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, msg)
}
