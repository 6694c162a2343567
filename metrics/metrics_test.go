package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerExposesMetrics(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	TicksTotal.WithLabelValues("paper", "BTCUSDT").Inc()
	ActiveInstances.Set(2)

	resp, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "trader_ticks_total")
	assert.Contains(t, string(body), "trader_active_instances 2")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenReportsBindError(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx) }()

	_, err = Listen(srv.Addr().String())
	assert.Error(t, err)
}

func TestCounterLabels(t *testing.T) {
	before := testutil.ToFloat64(OrdersTotal.WithLabelValues("paper", "ETHUSDT", "buy", "ok"))
	OrdersTotal.WithLabelValues("paper", "ETHUSDT", "buy", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(OrdersTotal.WithLabelValues("paper", "ETHUSDT", "buy", "ok")))
}
