package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 5
)

// SetupLogging configures the global slog logger based on args. Diagnostics
// always go to stderr.
//
// With --log it also opens the rotating log file. The file is reserved for
// result lines; the caller hands it to the text output and must close it.
func SetupLogging(args Args) (*lumberjack.Logger, error) {
	switch args.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("unknown log level %q", args.LogLevel)
	}

	var logFile *lumberjack.Logger
	if args.Log {
		logFile = &lumberjack.Logger{
			Filename:   args.LogFileName(),
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
		}
	}

	var output io.Writer = os.Stderr

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(args.LogLevel),
	}
	if opts.Level == slog.LevelDebug {
		opts.AddSource = true
	}

	var handler slog.Handler
	if args.Json {
		// JSON mode: structured logs on stderr, data on stdout
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	slog.SetDefault(slog.New(handler))

	return logFile, nil
}

// parseLogLevel converts string to slog.Level
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
