package output

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tkjaer/tcpping/internal/probe"
	"github.com/tkjaer/tcpping/internal/stats"
)

// MetricsOutput exports attempts as Prometheus metrics.
type MetricsOutput struct {
	attempts    *prometheus.CounterVec
	errs        *prometheus.CounterVec
	connectTime *prometheus.HistogramVec
	closeTime   *prometheus.GaugeVec
	lastAttempt *prometheus.GaugeVec
	sourcePort  *prometheus.GaugeVec
	destination string
}

func NewMetricsOutput() *MetricsOutput {
	return newMetricsWithRegistry(prometheus.DefaultRegisterer)
}

func newMetricsWithRegistry(reg prometheus.Registerer) *MetricsOutput {
	m := &MetricsOutput{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcpping_attempts_total",
				Help: "Total number of connection attempts by result",
			},
			[]string{"destination", "result"},
		),
		errs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcpping_errors_total",
				Help: "Total number of failed connection attempts by error kind",
			},
			[]string{"destination", "kind"},
		),
		connectTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tcpping_connect_seconds",
				Help:    "Time to complete the TCP handshake for successful attempts",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"destination"},
		),
		closeTime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tcpping_close_seconds",
				Help: "Time from handshake completion to socket close on the last successful attempt",
			},
			[]string{"destination"},
		),
		lastAttempt: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tcpping_last_attempt_timestamp",
				Help: "Timestamp of the last attempt",
			},
			[]string{"destination"},
		),
		sourcePort: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tcpping_source_port",
				Help: "Local port used by the last attempt",
			},
			[]string{"destination"},
		),
	}

	reg.MustRegister(m.attempts)
	reg.MustRegister(m.errs)
	reg.MustRegister(m.connectTime)
	reg.MustRegister(m.closeTime)
	reg.MustRegister(m.lastAttempt)
	reg.MustRegister(m.sourcePort)

	return m
}

func (m *MetricsOutput) Start(info RunInfo) {
	m.destination = net.JoinHostPort(info.DstHost, strconv.Itoa(int(info.DstPort)))
}

func (m *MetricsOutput) Attempt(a Attempt) {
	res := a.Result
	m.lastAttempt.WithLabelValues(m.destination).Set(float64(res.Start.Unix()))
	if res.LocalAddr != nil {
		m.sourcePort.WithLabelValues(m.destination).Set(float64(res.LocalAddr.Port))
	}

	if !res.Success() {
		m.attempts.WithLabelValues(m.destination, "failure").Inc()
		m.errs.WithLabelValues(m.destination, string(probe.Classify(res.Err))).Inc()
		return
	}
	m.attempts.WithLabelValues(m.destination, "success").Inc()
	m.connectTime.WithLabelValues(m.destination).Observe(res.ConnectTime.Seconds())
	m.closeTime.WithLabelValues(m.destination).Set(res.CloseTime.Seconds())
}

func (m *MetricsOutput) Warn(string) {}

func (m *MetricsOutput) Summary(*stats.Aggregator) {}

func (m *MetricsOutput) Close() error {
	return nil
}

// ServeMetrics serves /metrics and /health on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
