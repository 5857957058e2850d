package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tkjaer/tcpping/internal/config"
	"github.com/tkjaer/tcpping/internal/output"
	"github.com/tkjaer/tcpping/internal/runner"
)

func main() {
	args, err := config.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logFile, err := config.SetupLogging(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	warnings := args.Normalize(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))

	runID := uuid.NewString()
	slog.Debug("Starting tcpping",
		"run_id", runID,
		"destination", args.DstHost,
		"port", args.DstPort,
		"count", args.Count,
	)

	var file io.Writer
	if logFile != nil {
		file = logFile
	}
	om := output.NewOutputManager(os.Stdout, file, args.Json)
	if args.MetricsAddr != "" {
		om.Register(output.NewMetricsOutput())
	}

	cfg := runner.Config{
		DstHost:       args.DstHost,
		DstPort:       uint16(args.DstPort),
		SrcHost:       args.SrcHost,
		SrcPort:       uint16(args.SrcPort),
		SrcRotatePort: uint16(args.SrcRotatePort),
		Timeout:       args.Timeout.Duration(),
		Interval:      args.Interval.Duration(),
		DelayClose:    args.DelayClose.Duration(),
		Count:         args.Count,
		Reset:         args.Reset,
		Reuse:         args.Reuse,
	}
	r := runner.New(cfg, om)

	// Ctrl+C or SIGTERM stops the run; the runner flushes statistics on its
	// way out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args.MetricsAddr != "" {
		go func() {
			if err := output.ServeMetrics(ctx, args.MetricsAddr, prometheus.DefaultGatherer); err != nil {
				slog.Error("Metrics server failed", "addr", args.MetricsAddr, "error", err)
			}
		}()
	}

	om.Start(cfg.Info(runID))
	for _, w := range warnings {
		om.Warn(w)
	}

	err = r.Run(ctx)
	if closeErr := om.Close(); closeErr != nil {
		slog.Error("Failed to close output", "error", closeErr)
	}
	if err != nil {
		slog.Error("Run failed", "error", err)
		if logFile != nil {
			logFile.Close()
		}
		os.Exit(1)
	}

	slog.Debug("tcpping completed", "run_id", runID)
}
