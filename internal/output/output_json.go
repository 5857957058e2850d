package output

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/tkjaer/tcpping/internal/probe"
	"github.com/tkjaer/tcpping/internal/stats"
)

// JSONOutput writes one JSON object per line.
type JSONOutput struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	runID  string
}

type jsonStart struct {
	Type        string    `json:"type"`
	RunID       string    `json:"run_id"`
	Destination string    `json:"destination"`
	Count       uint      `json:"count"`
	Interval    float64   `json:"interval"` // seconds
	Timeout     float64   `json:"timeout"`  // seconds
	Timestamp   time.Time `json:"timestamp"`
}

type jsonAttempt struct {
	Type        string    `json:"type"`
	RunID       string    `json:"run_id"`
	Seq         uint      `json:"seq"`
	Timestamp   time.Time `json:"timestamp"`
	Local       string    `json:"local,omitempty"`
	Destination string    `json:"destination"`
	ConnectTime *float64  `json:"connect_time,omitempty"` // seconds
	CloseTime   *float64  `json:"close_time,omitempty"`   // seconds
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
}

type jsonWarning struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

type jsonSummary struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	stats.Summary
}

// NewJSONOutput writes to w. If w is an io.Closer other than os.Stdout it is
// closed by Close.
func NewJSONOutput(w io.Writer) *JSONOutput {
	o := &JSONOutput{enc: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok && w != io.Writer(os.Stdout) {
		o.closer = c
	}
	return o
}

func (o *JSONOutput) emit(v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(v); err != nil {
		slog.Error("Failed to write JSON output", "error", err)
	}
}

func seconds(d time.Duration) *float64 {
	if d < 0 {
		return nil
	}
	s := d.Seconds()
	return &s
}

func (o *JSONOutput) Start(info RunInfo) {
	o.runID = info.RunID
	o.emit(jsonStart{
		Type:        "start",
		RunID:       info.RunID,
		Destination: net.JoinHostPort(info.DstHost, strconv.Itoa(int(info.DstPort))),
		Count:       info.Count,
		Interval:    info.Interval.Seconds(),
		Timeout:     info.Timeout.Seconds(),
		Timestamp:   info.StartTime,
	})
}

func (o *JSONOutput) Attempt(a Attempt) {
	rec := jsonAttempt{
		Type:        "attempt",
		RunID:       o.runID,
		Seq:         a.Seq,
		Timestamp:   a.Result.Start,
		Destination: a.Request.Destination(),
		ConnectTime: seconds(a.Result.ConnectTime),
		CloseTime:   seconds(a.Result.CloseTime),
		Success:     a.Result.Success(),
	}
	if a.Result.LocalAddr != nil {
		rec.Local = a.Result.LocalAddr.String()
	}
	if a.Result.Err != nil {
		rec.Error = a.Result.Err.Error()
		rec.ErrorKind = string(probe.Classify(a.Result.Err))
	}
	o.emit(rec)
}

func (o *JSONOutput) Warn(msg string) {
	o.emit(jsonWarning{Type: "warning", RunID: o.runID, Message: msg})
}

func (o *JSONOutput) Summary(agg *stats.Aggregator) {
	o.emit(jsonSummary{Type: "summary", RunID: o.runID, Summary: agg.Summary()})
}

func (o *JSONOutput) Close() error {
	if o.closer == nil {
		return nil
	}
	if err := o.closer.Close(); err != nil {
		return fmt.Errorf("close json output: %w", err)
	}
	return nil
}
