package accounts

import (
	"context"
	"fmt"
	"time"
)

// Logger is the logging contract used across the package. Arguments
// following the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Config holds the settings consumed by the token issuer, the keeper and
// the HTTP layer.
type Config interface {
	GetAccessTokenSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenSecret() string
	GetRefreshTokenTTL() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetPasswordCost() int
	GetActivationTokenTTL() time.Duration
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
}

// Notification is what a Notifier delivers to an account's contact address.
type Notification struct {
	AccountID   string
	Destination string
	Purpose     Purpose
	Token       string
}

// Notifier delivers one-time tokens.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// RegenerationLocker serializes regeneration of an expired token. When
// acquired is false another caller holds the lock.
type RegenerationLocker interface {
	Lock(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// Clock returns the current time.
type Clock func() time.Time

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

func normalizeLocker(l RegenerationLocker) RegenerationLocker {
	if l == nil {
		return noopLocker{}
	}
	return l
}

func normalizeClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(line("ERR", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(line("WRN", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(line("INF", msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(line("DBG", msg, args...))
}

func line(level, msg string, args ...any) string {
	out := fmt.Sprintf("[%s] ACCOUNTS %s", level, msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			out += fmt.Sprintf(" %v=%v", args[i], args[i+1])
			continue
		}
		out += fmt.Sprintf(" %v", args[i])
	}
	return out
}
