package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreRegistered(t *testing.T) {
	vars := []struct {
		name string
		val  any
	}{
		{"ActionAttempts", ActionAttempts},
		{"ActionOutcomes", ActionOutcomes},
		{"ActionRetries", ActionRetries},
		{"ActionDuration", ActionDuration},
		{"RunIterations", RunIterations},
		{"LedgerWrites", LedgerWrites},
		{"LedgerWriteFailures", LedgerWriteFailures},
		{"AlertsSent", AlertsSent},
	}
	for _, v := range vars {
		assert.NotNil(t, v.val, v.name)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	ActionAttempts.WithLabelValues("metrics-test", "Swap").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(ActionAttempts.WithLabelValues("metrics-test", "Swap")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `automator_action_attempts_total{kind="Swap",network="metrics-test"} 1`))
}

func TestStartServerRequiresAddress(t *testing.T) {
	require.Error(t, StartServer(context.Background(), ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := StartServer(ctx, "127.0.0.1:0")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartServerReportsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = StartServer(context.Background(), ln.Addr().String())
	require.Error(t, err)
}

func TestServeScrapesUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
