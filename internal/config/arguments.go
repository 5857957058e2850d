package config

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/tkjaer/tcpping/internal/version"
)

var (
	ErrMissingDestination = errors.New("destination host and port are required")
	ErrInvalidPort        = errors.New("destination port must be between 1 and 65535")
)

type Args struct {
	DstHost string
	DstPort uint

	// Source binding
	SrcHost       string
	SrcPort       uint
	SrcRotatePort uint

	// Timing
	Interval   Duration
	Timeout    Duration
	DelayClose Duration
	Count      uint // 0 = infinite

	// Socket options
	Reset bool
	Reuse bool

	// Output
	Json        bool
	MetricsAddr string

	// Logging
	Log      bool   // write a rotating log file
	LogLevel string // log level: debug, info, warn, error

	ConfigFile string
}

func ParseArgs() (Args, error) {
	args := Args{
		Interval: Duration(time.Second),
		Timeout:  Duration(2 * time.Second),
	}
	var showVersion bool

	flag.Usage = func() {
		println("tcpping - TCP connect latency probe")
		println()
		println("Repeatedly opens a TCP connection to DESTINATION:PORT and reports")
		println("connect time per attempt plus min/avg/max statistics on exit.")
		println()
		println("Usage:")
		println("  tcpping [OPTIONS] DESTINATION PORT")
		println()
		println("Examples:")
		println("  tcpping example.com 443                     # Probe once a second until Ctrl+C")
		println("  tcpping -c 10 -i 200ms 192.0.2.1 80         # 10 probes, 200ms apart")
		println("  tcpping -H 192.0.2.10 -L 1024 -R host 22    # Sweep local ports, close with RST")
		println()
		println("Options:")
		flag.PrintDefaults()
	}

	flag.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	flag.StringVarP(&args.SrcHost, "src-host", "H", "", "Set local IP")
	flag.UintVarP(&args.SrcPort, "src-port", "P", 0, "Set local port")
	flag.UintVarP(&args.SrcRotatePort, "src-rotate-port", "L", 0, "Set local port, incremented on every attempt")
	flag.VarP(&args.Interval, "interval", "i", "Connection interval (seconds or duration)")
	flag.VarP(&args.Timeout, "timeout", "t", "Connect timeout (seconds or duration)")
	flag.UintVarP(&args.Count, "count", "c", 0, "Stop after count attempts (0 = infinite)")
	flag.BoolVarP(&args.Reset, "rst", "R", false, "Send RST to close the connection instead of FIN")
	flag.BoolVar(&args.Reuse, "reuse", false, "Set SO_REUSEADDR so rapid repeated tests can reuse the local address and port")
	flag.VarP(&args.DelayClose, "delay-close", "D", "Hold the connection open this long before sending FIN or RST")
	flag.BoolVarP(&args.Log, "log", "l", false, "Write a rotating log file tcpping_<host>_<port>.log")
	flag.StringVar(&args.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVarP(&args.Json, "json", "J", false, "Write JSON lines to stdout instead of text")
	flag.StringVar(&args.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9115)")
	flag.StringVar(&args.ConfigFile, "config", "", "YAML file with defaults for options not given on the command line")
	flag.Parse()

	if showVersion {
		fmt.Println(version.FullVersion())
		os.Exit(0)
	}

	if args.ConfigFile != "" {
		fc, err := LoadFile(args.ConfigFile)
		if err != nil {
			return args, err
		}
		fc.apply(&args, flag.CommandLine)
	}

	if flag.NArg() < 2 {
		return args, ErrMissingDestination
	}
	args.DstHost = flag.Arg(0)
	port, err := strconv.ParseUint(flag.Arg(1), 10, 16)
	if err != nil || port == 0 {
		return args, ErrInvalidPort
	}
	args.DstPort = uint(port)

	switch {
	case args.DstHost == "":
		return args, ErrMissingDestination
	case flag.NArg() > 2:
		return args, fmt.Errorf("unexpected argument %q", flag.Arg(2))
	case args.SrcPort > 65535:
		return args, errors.New("source port must be between 0 and 65535")
	case args.SrcRotatePort > 65535:
		return args, errors.New("rotating source port must be between 0 and 65535")
	case args.Timeout <= 0:
		return args, errors.New("timeout must be greater than zero")
	case args.Interval < 0:
		return args, errors.New("interval must not be negative")
	case args.DelayClose < 0:
		return args, errors.New("delay-close must not be negative")
	}

	return args, nil
}

// Normalize fills in the source port when only a source host was given and
// returns warnings to show the user. It mirrors what the user most likely
// meant rather than rejecting the combination.
func (a *Args) Normalize(rng *rand.Rand) []string {
	var warnings []string

	hasPort := a.SrcPort != 0 || a.SrcRotatePort != 0
	switch {
	case a.SrcHost != "" && !hasPort:
		a.SrcPort = uint(10000 + rng.IntN(50001))
		warnings = append(warnings, fmt.Sprintf("Missing src_port or src_rotate_port. A random local port will be given: %d", a.SrcPort))
	case a.SrcHost == "" && hasPort:
		warnings = append(warnings, "A local port without --src-host is ignored; the OS will pick the local address and port.")
	}

	if a.SrcPort != 0 && a.SrcRotatePort == 0 && !a.Reset {
		warnings = append(warnings, "It is RECOMMENDED that -R flag should be set if a static local port is set. "+
			`Or you may see an error message like "Address already in use".`)
	}

	return warnings
}

// LogFileName returns the rotating log file name for the destination.
func (a Args) LogFileName() string {
	return fmt.Sprintf("tcpping_%s_%d.log", a.DstHost, a.DstPort)
}
