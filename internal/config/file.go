package config

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// FileConfig holds option defaults read from a YAML file. Nil fields were not
// present in the file.
type FileConfig struct {
	SrcHost       *string   `yaml:"src_host"`
	SrcPort       *uint     `yaml:"src_port"`
	SrcRotatePort *uint     `yaml:"src_rotate_port"`
	Interval      *Duration `yaml:"interval"`
	Timeout       *Duration `yaml:"timeout"`
	DelayClose    *Duration `yaml:"delay_close"`
	Count         *uint     `yaml:"count"`
	Reset         *bool     `yaml:"rst"`
	Reuse         *bool     `yaml:"reuse"`
	Log           *bool     `yaml:"log"`
	LogLevel      *string   `yaml:"log_level"`
	Json          *bool     `yaml:"json"`
	MetricsAddr   *string   `yaml:"metrics_addr"`
}

func LoadFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// apply copies file values into args for every flag the user did not set on
// the command line.
func (fc FileConfig) apply(args *Args, fs *flag.FlagSet) {
	unset := func(name string) bool {
		return !fs.Changed(name)
	}

	if fc.SrcHost != nil && unset("src-host") {
		args.SrcHost = *fc.SrcHost
	}
	if fc.SrcPort != nil && unset("src-port") {
		args.SrcPort = *fc.SrcPort
	}
	if fc.SrcRotatePort != nil && unset("src-rotate-port") {
		args.SrcRotatePort = *fc.SrcRotatePort
	}
	if fc.Interval != nil && unset("interval") {
		args.Interval = *fc.Interval
	}
	if fc.Timeout != nil && unset("timeout") {
		args.Timeout = *fc.Timeout
	}
	if fc.DelayClose != nil && unset("delay-close") {
		args.DelayClose = *fc.DelayClose
	}
	if fc.Count != nil && unset("count") {
		args.Count = *fc.Count
	}
	if fc.Reset != nil && unset("rst") {
		args.Reset = *fc.Reset
	}
	if fc.Reuse != nil && unset("reuse") {
		args.Reuse = *fc.Reuse
	}
	if fc.Log != nil && unset("log") {
		args.Log = *fc.Log
	}
	if fc.LogLevel != nil && unset("log-level") {
		args.LogLevel = *fc.LogLevel
	}
	if fc.Json != nil && unset("json") {
		args.Json = *fc.Json
	}
	if fc.MetricsAddr != nil && unset("metrics-addr") {
		args.MetricsAddr = *fc.MetricsAddr
	}
}
