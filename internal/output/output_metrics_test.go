package output

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tkjaer/tcpping/internal/probe"
)

func TestMetricsOutput_Attempt(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newMetricsWithRegistry(registry)
	m.Start(RunInfo{DstHost: "192.0.2.1", DstPort: 80})

	req := probe.Request{DstHost: "192.0.2.1", DstPort: 80}
	m.Attempt(Attempt{Seq: 1, Request: req, Result: probe.Result{
		Start:       time.Unix(1700000000, 0),
		ConnectTime: 2 * time.Millisecond,
		CloseTime:   100 * time.Microsecond,
		LocalAddr:   &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 41000},
	}})
	m.Attempt(Attempt{Seq: 2, Request: req, Result: probe.Result{
		Start:       time.Unix(1700000001, 0),
		ConnectTime: time.Millisecond,
		CloseTime:   probe.Unmeasured,
		Err:         &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
	}})
	m.Attempt(Attempt{Seq: 3, Request: req, Result: probe.Result{
		Start:       time.Unix(1700000002, 0),
		ConnectTime: 3 * time.Millisecond,
		CloseTime:   50 * time.Microsecond,
	}})

	dest := "192.0.2.1:80"
	if got := testutil.ToFloat64(m.attempts.WithLabelValues(dest, "success")); got != 2 {
		t.Errorf("success attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.attempts.WithLabelValues(dest, "failure")); got != 1 {
		t.Errorf("failed attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.errs.WithLabelValues(dest, "refused")); got != 1 {
		t.Errorf("refused errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.closeTime.WithLabelValues(dest)); got != 50e-6 {
		t.Errorf("close seconds = %v, want 5e-05", got)
	}
	if got := testutil.ToFloat64(m.lastAttempt.WithLabelValues(dest)); got != 1700000002 {
		t.Errorf("last attempt = %v, want 1700000002", got)
	}
	if got := testutil.ToFloat64(m.sourcePort.WithLabelValues(dest)); got != 41000 {
		t.Errorf("source port = %v, want 41000", got)
	}
	if got := testutil.CollectAndCount(m.connectTime); got != 1 {
		t.Errorf("connect histogram series = %d, want 1", got)
	}
	count, err := testutil.GatherAndCount(registry, "tcpping_errors_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("tcpping_errors_total series = %d, want 1", count)
	}
}

func TestServeMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	registry := prometheus.NewRegistry()
	m := newMetricsWithRegistry(registry)
	m.Start(RunInfo{DstHost: "192.0.2.1", DstPort: 80})
	m.Attempt(Attempt{Result: probe.Result{ConnectTime: time.Millisecond, CloseTime: time.Microsecond}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeMetrics(ctx, addr, registry) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "tcpping_attempts_total") {
		t.Errorf("/metrics body missing tcpping_attempts_total:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("ServeMetrics() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeMetrics() did not stop after cancel")
	}
}
