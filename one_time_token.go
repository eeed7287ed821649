package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultTokenBytes is the amount of randomness behind a token string
	DefaultTokenBytes = 32
	// DefaultActivationTokenTTL is how long an activation grant stays valid
	DefaultActivationTokenTTL = 24 * time.Hour
)

// TokenGenerator returns a fresh random token string.
type TokenGenerator func() (string, error)

// RandomToken returns DefaultTokenBytes random bytes hex encoded.
func RandomToken() (string, error) {
	b := make([]byte, DefaultTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}
	return hex.EncodeToString(b), nil
}

// Generate replaces the grant for purpose with a new token expiring ttl
// after now.
func (t *OneTimeToken) Generate(purpose Purpose, now time.Time, ttl time.Duration, gen TokenGenerator) error {
	grant, err := t.Grant(purpose)
	if err != nil {
		return err
	}

	if gen == nil {
		gen = RandomToken
	}

	previous := grant.Token
	token, err := gen()
	for attempt := 0; err == nil && token == previous && attempt < 3; attempt++ {
		token, err = gen()
	}
	if err != nil {
		return err
	}
	if token == "" || token == previous {
		return goerrors.New("token generator did not produce a new token", goerrors.CategoryInternal)
	}

	expiresAt := now.Add(ttl)
	grant.Token = token
	grant.ExpiresAt = &expiresAt
	t.UpdatedAt = &now
	return nil
}

// HasExpired reports whether now is at or past the grant's expiry. A grant
// that was never issued counts as expired.
func (t *OneTimeToken) HasExpired(purpose Purpose, now time.Time) bool {
	grant, err := t.Grant(purpose)
	if err != nil || grant.ExpiresAt == nil {
		return true
	}
	return !now.Before(*grant.ExpiresAt)
}

// TokenKeeper generates, evaluates and regenerates one-time token grants.
type TokenKeeper struct {
	store    OneTimeTokenStore
	clock    Clock
	ttl      time.Duration
	generate TokenGenerator
}

// KeeperOption configures a TokenKeeper.
type KeeperOption func(*TokenKeeper)

// WithKeeperClock overrides the clock used for expiry.
func WithKeeperClock(c Clock) KeeperOption {
	return func(k *TokenKeeper) {
		k.clock = normalizeClock(c)
	}
}

// WithKeeperTTL sets how long a grant stays valid.
func WithKeeperTTL(ttl time.Duration) KeeperOption {
	return func(k *TokenKeeper) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// WithKeeperGenerator overrides the token string source.
func WithKeeperGenerator(gen TokenGenerator) KeeperOption {
	return func(k *TokenKeeper) {
		if gen != nil {
			k.generate = gen
		}
	}
}

// NewTokenKeeper returns a keeper persisting through store.
func NewTokenKeeper(store OneTimeTokenStore, opts ...KeeperOption) *TokenKeeper {
	k := &TokenKeeper{
		store:    store,
		clock:    time.Now,
		ttl:      DefaultActivationTokenTTL,
		generate: RandomToken,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}
	return k
}

// Issue fills the grant for purpose without persisting it.
func (k *TokenKeeper) Issue(token *OneTimeToken, purpose Purpose) error {
	if token == nil {
		return goerrors.New("one-time token is required", goerrors.CategoryBadInput)
	}
	return token.Generate(purpose, k.clock(), k.ttl, k.generate)
}

// Generate issues a new grant for purpose and persists it.
func (k *TokenKeeper) Generate(ctx context.Context, token *OneTimeToken, purpose Purpose) (*OneTimeToken, error) {
	if err := k.Issue(token, purpose); err != nil {
		return nil, err
	}

	updated, err := k.store.UpdateGrant(ctx, token, purpose)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist one-time token")
	}
	return updated, nil
}

// HasExpired evaluates the grant for purpose against the keeper's clock.
func (k *TokenKeeper) HasExpired(token *OneTimeToken, purpose Purpose) bool {
	if token == nil {
		return true
	}
	return token.HasExpired(purpose, k.clock())
}

// Regenerate replaces an existing grant in place. The previous token string
// stops matching once the update is persisted.
func (k *TokenKeeper) Regenerate(ctx context.Context, token *OneTimeToken, purpose Purpose) (*OneTimeToken, error) {
	return k.Generate(ctx, token, purpose)
}

// TTL returns the validity window applied to new grants.
func (k *TokenKeeper) TTL() time.Duration {
	return k.ttl
}
