// Package stats keeps running connection statistics for a single destination.
package stats

import (
	"fmt"
	"net"
	"strconv"
)

// Aggregator holds running counts and latency aggregates for one destination.
// No samples are retained; the average is updated incrementally.
//
// An Aggregator is not safe for concurrent use. The probe loop is the only
// writer and readers run after it has stopped.
type Aggregator struct {
	host string
	port uint16

	ok     uint
	failed uint
	min    float64 // seconds
	max    float64 // seconds
	avg    float64 // seconds
}

// Summary is a point-in-time copy of an Aggregator.
type Summary struct {
	Destination string  `json:"destination"`
	Attempts    uint    `json:"attempts"`
	Connected   uint    `json:"connected"`
	Failed      uint    `json:"failed"`
	FailurePct  float64 `json:"failure_pct"`
	Min         float64 `json:"min"` // seconds
	Avg         float64 `json:"avg"` // seconds
	Max         float64 `json:"max"` // seconds
}

func New(host string, port uint16) *Aggregator {
	return &Aggregator{host: host, port: port}
}

// Put records the outcome of one attempt. The latency of a failed attempt is
// ignored.
func (a *Aggregator) Put(latency float64, success bool) {
	if !success {
		a.failed++
		return
	}
	if a.ok == 0 {
		a.min, a.max, a.avg = latency, latency, latency
	} else {
		a.min = min(a.min, latency)
		a.max = max(a.max, latency)
		a.avg = (a.avg*float64(a.ok) + latency) / float64(a.ok+1)
	}
	a.ok++
}

// Total returns the number of recorded attempts.
func (a *Aggregator) Total() uint {
	return a.ok + a.failed
}

// Connected returns the number of successful attempts.
func (a *Aggregator) Connected() uint {
	return a.ok
}

// Failed returns the number of failed attempts.
func (a *Aggregator) Failed() uint {
	return a.failed
}

// FailurePct returns failures as a percentage of all attempts, 0 when there
// are none.
func (a *Aggregator) FailurePct() float64 {
	total := a.Total()
	if total == 0 {
		return 0
	}
	return float64(a.failed) / float64(total) * 100
}

// Latency returns min, avg and max connect latency in seconds. All three are
// zero until the first successful attempt.
func (a *Aggregator) Latency() (minimum, average, maximum float64) {
	return a.min, a.avg, a.max
}

// Destination returns host:port of the series.
func (a *Aggregator) Destination() string {
	return net.JoinHostPort(a.host, strconv.Itoa(int(a.port)))
}

// Summary copies the current state.
func (a *Aggregator) Summary() Summary {
	return Summary{
		Destination: a.Destination(),
		Attempts:    a.Total(),
		Connected:   a.ok,
		Failed:      a.failed,
		FailurePct:  a.FailurePct(),
		Min:         a.min,
		Avg:         a.avg,
		Max:         a.max,
	}
}

// Snapshot renders the statistics report printed on exit.
//
// The latency line keeps the "ms" suffix of the classic tcpping output even
// though the values are in seconds.
func (a *Aggregator) Snapshot() string {
	return fmt.Sprintf("--- %s:%d tcpping statistics ---\n"+
		"%d connection(s) attempted, %d connected, %.2f%% failed\n"+
		"min/avg/max = %.6f/%.6f/%.6f ms",
		a.host, a.port,
		a.Total(), a.ok, a.FailurePct(),
		a.min, a.avg, a.max)
}
