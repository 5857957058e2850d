// Package runner drives repeated probes against one destination.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tkjaer/tcpping/internal/output"
	"github.com/tkjaer/tcpping/internal/probe"
	"github.com/tkjaer/tcpping/internal/stats"
)

const (
	maxPort         = 65535
	rotateResetPort = 1024
)

// Config holds the validated settings of a run.
type Config struct {
	DstHost string
	DstPort uint16

	SrcHost       string
	SrcPort       uint16
	SrcRotatePort uint16 // overrides SrcPort and advances every attempt

	Timeout    time.Duration
	Interval   time.Duration
	DelayClose time.Duration
	Count      uint // 0 = infinite

	Reset bool
	Reuse bool
}

// Sink receives the run's events.
type Sink interface {
	Attempt(a output.Attempt)
	Warn(msg string)
	Summary(agg *stats.Aggregator)
}

type Runner struct {
	cfg   Config
	sink  Sink
	stats *stats.Aggregator
	probe func(context.Context, probe.Request) probe.Result
}

// Info describes the run for output.Output.Start.
func (c Config) Info(runID string) output.RunInfo {
	return output.RunInfo{
		RunID:     runID,
		DstHost:   c.DstHost,
		DstPort:   c.DstPort,
		Count:     c.Count,
		Interval:  c.Interval,
		Timeout:   c.Timeout,
		StartTime: time.Now(),
	}
}

func New(cfg Config, sink Sink) *Runner {
	return &Runner{
		cfg:   cfg,
		sink:  sink,
		stats: stats.New(cfg.DstHost, cfg.DstPort),
		probe: probe.Probe,
	}
}

// Stats returns the run's aggregator. Read it only after Run has returned.
func (r *Runner) Stats() *stats.Aggregator {
	return r.stats
}

// nextSourcePort advances a rotating source port, wrapping past 65535 back
// to 1024. wrapped reports whether the wrap happened.
func nextSourcePort(port uint16) (next uint16, wrapped bool) {
	if port >= maxPort {
		return rotateResetPort, true
	}
	return port + 1, false
}

// Run probes until the count is used up or ctx is cancelled, then hands the
// statistics to the sink. An attempt interrupted by cancellation is not
// recorded. Probe failures are never returned; the only error is a socket
// option the platform cannot set, which would fail every attempt.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.cfg
	srcPort := cfg.SrcPort
	rotate := cfg.SrcRotatePort != 0
	if rotate {
		srcPort = cfg.SrcRotatePort
	}

	defer r.sink.Summary(r.stats)

	remaining := cfg.Count
	for seq := uint(1); cfg.Count == 0 || remaining > 0; seq++ {
		if ctx.Err() != nil {
			return nil
		}

		req := probe.Request{
			DstHost:    cfg.DstHost,
			DstPort:    cfg.DstPort,
			Timeout:    cfg.Timeout,
			SrcHost:    cfg.SrcHost,
			SrcPort:    srcPort,
			Reset:      cfg.Reset,
			ReuseAddr:  cfg.Reuse,
			DelayClose: cfg.DelayClose,
		}
		res := r.probe(ctx, req)
		if ctx.Err() != nil {
			slog.Debug("Attempt interrupted, not recorded", "seq", seq)
			return nil
		}
		if errors.Is(res.Err, probe.ErrSockoptUnsupported) {
			return fmt.Errorf("--rst/--reuse: %w", res.Err)
		}

		r.stats.Put(res.Latency().Seconds(), res.Success())
		r.sink.Attempt(output.Attempt{Seq: seq, Request: req, Result: res})

		if rotate {
			var wrapped bool
			srcPort, wrapped = nextSourcePort(srcPort)
			if wrapped {
				r.sink.Warn("Local port reached 65535, resetting src port to 1024.")
			}
		}

		if cfg.Count > 0 {
			remaining--
			if remaining == 0 {
				break
			}
		}

		if !sleep(ctx, cfg.Interval) {
			return nil
		}
	}

	return nil
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
