package accounts_test

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-accounts"
)

type testConfig struct {
	accessSecret  string
	accessTTL     time.Duration
	refreshSecret string
	refreshTTL    time.Duration
	issuer        string
	audience      []string
	activationTTL time.Duration
}

func newTestConfig() *testConfig {
	return &testConfig{
		accessSecret:  "access-secret",
		accessTTL:     15 * time.Minute,
		refreshSecret: "refresh-secret",
		refreshTTL:    720 * time.Hour,
		issuer:        "go-accounts-test",
		activationTTL: time.Hour,
	}
}

func (c *testConfig) GetAccessTokenSecret() string          { return c.accessSecret }
func (c *testConfig) GetAccessTokenTTL() time.Duration      { return c.accessTTL }
func (c *testConfig) GetRefreshTokenSecret() string         { return c.refreshSecret }
func (c *testConfig) GetRefreshTokenTTL() time.Duration     { return c.refreshTTL }
func (c *testConfig) GetIssuer() string                     { return c.issuer }
func (c *testConfig) GetAudience() []string                 { return c.audience }
func (c *testConfig) GetPasswordCost() int                  { return 4 }
func (c *testConfig) GetActivationTokenTTL() time.Duration  { return c.activationTTL }
func (c *testConfig) GetContextKey() string                 { return "user" }
func (c *testConfig) GetTokenLookup() string                { return "header:Authorization" }
func (c *testConfig) GetAuthScheme() string                 { return "Bearer" }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []accounts.Notification
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg accounts.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) Sent() []accounts.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]accounts.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

type capturingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt accounts.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Types() []accounts.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]accounts.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}
