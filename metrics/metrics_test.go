package metrics_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/metrics"
)

func TestSinkCountsByEventType(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, accounts.ActivityEvent{EventType: accounts.ActivityEventSignup}))
	require.NoError(t, sink.Record(ctx, accounts.ActivityEvent{EventType: accounts.ActivityEventLoginFailure}))
	require.NoError(t, sink.Record(ctx, accounts.ActivityEvent{EventType: accounts.ActivityEventLoginFailure}))

	expected := `
# HELP accounts_activity_events_total Total number of account activity events by type
# TYPE accounts_activity_events_total counter
accounts_activity_events_total{event="account.signup"} 1
accounts_activity_events_total{event="auth.login.failure"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "accounts_activity_events_total"))
}

func TestNewSinkRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewSink(reg)
	require.NoError(t, err)

	_, err = metrics.NewSink(reg)
	require.Error(t, err)
}

func TestServerServesRegistry(t *testing.T) {
	srv := metrics.NewServer("127.0.0.1:0", nil)
	sink, err := metrics.NewSink(srv.Registry())
	require.NoError(t, err)
	require.NoError(t, sink.Record(context.Background(), accounts.ActivityEvent{EventType: accounts.ActivityEventActivated}))

	errCh, err := srv.Start()
	require.NoError(t, err)

	_, err = srv.Start()
	require.Error(t, err, "second start is rejected")

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `accounts_activity_events_total{event="account.activated"} 1`)

	require.NoError(t, srv.Stop(context.Background()))
	for range errCh {
	}
}
