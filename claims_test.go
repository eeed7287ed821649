package accounts_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/middleware/jwtware"
)

func TestSessionClaims_Subject(t *testing.T) {
	claims := &accounts.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "acc-123",
		},
	}

	assert.Equal(t, "acc-123", claims.Subject())
}

func TestSessionClaims_AccountID(t *testing.T) {
	t.Run("returns UID when present", func(t *testing.T) {
		claims := &accounts.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "acc-123",
			},
			UID: "uid456",
		}

		assert.Equal(t, "uid456", claims.AccountID())
	})

	t.Run("fallback to subject when UID is empty", func(t *testing.T) {
		claims := &accounts.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "acc-123",
			},
		}

		assert.Equal(t, "acc-123", claims.AccountID())
	})
}

func TestSessionClaims_Expires(t *testing.T) {
	t.Run("returns expiration time when set", func(t *testing.T) {
		expTime := time.Now().Add(time.Hour)
		claims := &accounts.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(expTime),
			},
		}

		assert.WithinDuration(t, expTime, claims.Expires(), time.Second)
	})

	t.Run("returns zero time when not set", func(t *testing.T) {
		claims := &accounts.SessionClaims{}
		assert.True(t, claims.Expires().IsZero())
	})
}

func TestSessionClaims_IssuedAt(t *testing.T) {
	t.Run("returns issued at time when set", func(t *testing.T) {
		issuedTime := time.Now()
		claims := &accounts.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt: jwt.NewNumericDate(issuedTime),
			},
		}

		assert.WithinDuration(t, issuedTime, claims.IssuedAt(), time.Second)
	})

	t.Run("returns zero time when not set", func(t *testing.T) {
		claims := &accounts.SessionClaims{}
		assert.True(t, claims.IssuedAt().IsZero())
	})
}

func TestSessionClaims_SatisfiesMiddlewareClaims(t *testing.T) {
	var _ accounts.AuthClaims = (*accounts.SessionClaims)(nil)
	var _ jwtware.AuthClaims = (*accounts.SessionClaims)(nil)
}
