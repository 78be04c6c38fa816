package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	logx "alertbot/pkg/logx"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCycle("ok")
	m.ObserveDelivery("alert_start", false)
	m.SetRegionStatus("kyiv", 2)
	require.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveDelivery("alert_start", true)
	m.ObserveDelivery("alert_start", true)
	m.ObserveDelivery("alert_start", false)
	m.ObserveTransition("none", "active")

	require.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("alert_start", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("alert_start", "failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("none", "active")))
}

func TestServerServesMetricsAndHealth(t *testing.T) {
	m := New()
	m.ObserveCycle("ok")

	var unhealthy atomic.Bool
	srv := NewServer(ServerConfig{Enabled: true, Addr: "127.0.0.1:0", Token: "t0k"}, m, func() error {
		if unhealthy.Load() {
			return errors.New("monitor not baselined")
		}
		return nil
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)
	defer srv.Stop(context.Background())

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server did not start")
	}
	base := "http://" + srv.Addr()

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(base + "/metrics?token=t0k")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `alertbot_monitor_cycles_total{result="ok"} 1`)

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	unhealthy.Store(true)
	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIsLoopbackAddr(t *testing.T) {
	require.True(t, isLoopbackAddr("127.0.0.1:9464"))
	require.True(t, isLoopbackAddr("localhost:1"))
	require.False(t, isLoopbackAddr(":9464"))
	require.False(t, isLoopbackAddr("0.0.0.0:9464"))
}
