// Package output renders probe results and statistics.
package output

import (
	"errors"
	"io"
	"time"

	"github.com/tkjaer/tcpping/internal/probe"
	"github.com/tkjaer/tcpping/internal/stats"
)

// RunInfo describes a run. It is passed to every output before the first
// attempt.
type RunInfo struct {
	RunID     string
	DstHost   string
	DstPort   uint16
	Count     uint // 0 = infinite
	Interval  time.Duration
	Timeout   time.Duration
	StartTime time.Time
}

// Attempt is one probe attempt as seen by the outputs.
type Attempt struct {
	Seq     uint // 1-based
	Request probe.Request
	Result  probe.Result
}

// Output interface for different output types
type Output interface {
	Start(info RunInfo)
	Attempt(a Attempt)
	Warn(msg string)
	Summary(agg *stats.Aggregator)
	Close() error
}

// OutputManager manages multiple outputs
type OutputManager struct {
	outputs []Output
}

// NewOutputManager registers the result outputs for stdout and the optional
// log file. In JSON mode stdout carries JSON lines and the log file, if any,
// still gets the text lines.
func NewOutputManager(stdout, logFile io.Writer, jsonMode bool) *OutputManager {
	om := &OutputManager{}
	switch {
	case jsonMode:
		om.Register(NewJSONOutput(stdout))
		if logFile != nil {
			om.Register(NewTextOutput(nil, logFile))
		}
	default:
		om.Register(NewTextOutput(stdout, logFile))
	}
	return om
}

func (om *OutputManager) Register(o Output) {
	om.outputs = append(om.outputs, o)
}

func (om *OutputManager) Start(info RunInfo) {
	for _, o := range om.outputs {
		o.Start(info)
	}
}

func (om *OutputManager) Attempt(a Attempt) {
	for _, o := range om.outputs {
		o.Attempt(a)
	}
}

func (om *OutputManager) Warn(msg string) {
	for _, o := range om.outputs {
		o.Warn(msg)
	}
}

func (om *OutputManager) Summary(agg *stats.Aggregator) {
	for _, o := range om.outputs {
		o.Summary(agg)
	}
}

// Close closes every output and returns the joined errors.
func (om *OutputManager) Close() error {
	var errs []error
	for _, o := range om.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
