package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// SessionPair is the result of a successful login or refresh. Both
// horizons share the same unit.
type SessionPair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresIn  time.Duration
	RefreshTokenExpiresIn time.Duration
}

type tokenKind struct {
	name   string
	secret []byte
	ttl    time.Duration
}

// TokenService signs and verifies access and refresh tokens. Each kind
// has its own secret and TTL.
type TokenService struct {
	access   tokenKind
	refresh  tokenKind
	issuer   string
	audience jwt.ClaimStrings
	clock    Clock
	logger   Logger
}

// TokenServiceOption configures a TokenService.
type TokenServiceOption func(*TokenService)

// WithTokenClock overrides the clock used to stamp and verify tokens.
func WithTokenClock(c Clock) TokenServiceOption {
	return func(ts *TokenService) {
		ts.clock = normalizeClock(c)
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(l Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(l)
	}
}

// NewTokenService creates a TokenService from cfg.
func NewTokenService(cfg Config, opts ...TokenServiceOption) (*TokenService, error) {
	if cfg == nil {
		return nil, goerrors.New("token service config is required", goerrors.CategoryBadInput)
	}

	ts := &TokenService{
		access: tokenKind{
			name:   "access",
			secret: []byte(cfg.GetAccessTokenSecret()),
			ttl:    orDuration(cfg.GetAccessTokenTTL(), DefaultAccessTokenTTL),
		},
		refresh: tokenKind{
			name:   "refresh",
			secret: []byte(cfg.GetRefreshTokenSecret()),
			ttl:    orDuration(cfg.GetRefreshTokenTTL(), DefaultRefreshTokenTTL),
		},
		issuer:   cfg.GetIssuer(),
		audience: jwt.ClaimStrings(cfg.GetAudience()),
		clock:    time.Now,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	if len(ts.access.secret) == 0 || len(ts.refresh.secret) == 0 {
		return nil, goerrors.New("access and refresh token secrets are required", goerrors.CategoryBadInput)
	}

	if string(ts.access.secret) == string(ts.refresh.secret) {
		return nil, goerrors.New("access and refresh token secrets must differ", goerrors.CategoryBadInput)
	}

	return ts, nil
}

// IssueSessionPair signs an access and a refresh token for accountID.
func (ts *TokenService) IssueSessionPair(accountID string) (*SessionPair, error) {
	if accountID == "" {
		return nil, goerrors.New("account id is required", goerrors.CategoryBadInput)
	}

	now := ts.clock()

	access, err := ts.sign(ts.access, accountID, now)
	if err != nil {
		return nil, err
	}

	refresh, err := ts.sign(ts.refresh, accountID, now)
	if err != nil {
		return nil, err
	}

	return &SessionPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresIn:  ts.access.ttl,
		RefreshTokenExpiresIn: ts.refresh.ttl,
	}, nil
}

// ValidateAccess verifies an access token.
func (ts *TokenService) ValidateAccess(raw string) (*SessionClaims, error) {
	return ts.validate(ts.access, raw)
}

// ValidateRefresh verifies a refresh token.
func (ts *TokenService) ValidateRefresh(raw string) (*SessionClaims, error) {
	return ts.validate(ts.refresh, raw)
}

// AccessTokenTTL returns the access token lifetime.
func (ts *TokenService) AccessTokenTTL() time.Duration { return ts.access.ttl }

// RefreshTokenTTL returns the refresh token lifetime.
func (ts *TokenService) RefreshTokenTTL() time.Duration { return ts.refresh.ttl }

func (ts *TokenService) sign(kind tokenKind, accountID string, now time.Time) (string, error) {
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   accountID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(kind.ttl)),
		},
		UID: accountID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(kind.secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, fmt.Sprintf("failed to sign %s token", kind.name))
	}
	return signed, nil
}

func (ts *TokenService) validate(kind tokenKind, raw string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.clock),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return kind.secret, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("session token rejected", "kind", kind.name, "error", err)
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.AccountID() == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
