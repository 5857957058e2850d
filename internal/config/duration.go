package config

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts either a Go duration string ("250ms", "1m") or a bare
// number of seconds ("1.5", 2), on the command line and in YAML.
type Duration time.Duration

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return fromSeconds(secs)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}

// maxSeconds is the longest span a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

func fromSeconds(secs float64) (time.Duration, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("invalid duration %v: not a finite number", secs)
	}
	if math.Abs(secs) > maxSeconds {
		return 0, fmt.Errorf("invalid duration %v: exceeds %d seconds", secs, int64(maxSeconds))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String implements pflag.Value.
func (d *Duration) String() string {
	return time.Duration(*d).String()
}

// Set implements pflag.Value.
func (d *Duration) Set(raw string) error {
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Type implements pflag.Value.
func (d *Duration) Type() string {
	return "duration"
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		parsed, err := fromSeconds(secs)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		return d.Set(raw)
	}
}
