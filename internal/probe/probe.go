// Package probe performs single timed TCP connect/close cycles.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// Unmeasured marks a duration that was never measured.
const Unmeasured time.Duration = -1

// Request describes one connection attempt.
type Request struct {
	DstHost string
	DstPort uint16
	Timeout time.Duration

	// Both SrcHost and SrcPort must be set for the socket to be bound.
	SrcHost string
	SrcPort uint16

	Reset      bool          // close with RST instead of FIN
	ReuseAddr  bool          // SO_REUSEADDR before bind
	DelayClose time.Duration // hold the connection open before closing
}

// Destination returns the dial address of the request.
func (r Request) Destination() string {
	return net.JoinHostPort(r.DstHost, strconv.Itoa(int(r.DstPort)))
}

// binds reports whether the request asks for an explicit local address.
func (r Request) binds() bool {
	return r.SrcHost != "" && r.SrcPort != 0
}

// Result is the outcome of one attempt. A nil Err means the connection was
// established and closed, and both durations are set. Otherwise CloseTime is
// Unmeasured and ConnectTime is the time until the failure.
type Result struct {
	Start       time.Time
	ConnectTime time.Duration
	CloseTime   time.Duration
	Err         error
	LocalAddr   *net.TCPAddr
}

// Success reports whether the attempt connected.
func (r Result) Success() bool {
	return r.Err == nil
}

// Latency returns the connect duration, or 0 if it was not measured.
func (r Result) Latency() time.Duration {
	if r.ConnectTime < 0 {
		return 0
	}
	return r.ConnectTime
}

// Line formats the per-attempt report:
//
//	localIP:localPort, destHost:destPort, conn_time: 0.000123[, ERROR: msg]
//
// Fields that were not measured are left out.
func (r Result) Line(dstHost string, dstPort uint16) string {
	fields := make([]string, 0, 4)
	if r.LocalAddr != nil {
		fields = append(fields, fmt.Sprintf("%s:%d", r.LocalAddr.IP, r.LocalAddr.Port))
	}
	fields = append(fields, fmt.Sprintf("%s:%d", dstHost, dstPort))
	if r.ConnectTime != Unmeasured {
		fields = append(fields, fmt.Sprintf("conn_time: %.6f", r.ConnectTime.Seconds()))
	}
	if r.Err != nil {
		fields = append(fields, "ERROR: "+r.Err.Error())
	}
	return strings.Join(fields, ", ")
}

// newDialer builds the dialer for one attempt. Fallback addresses are tried
// one after another so that a single socket is in flight at any time.
func newDialer(req Request) (*net.Dialer, error) {
	dialer := &net.Dialer{
		Timeout:       req.Timeout,
		FallbackDelay: -1,
		Control:       socketControl(req.Reset, req.ReuseAddr),
	}
	if req.binds() {
		local, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(req.SrcHost, strconv.Itoa(int(req.SrcPort))))
		if err != nil {
			return nil, fmt.Errorf("bind %s:%d: %w", req.SrcHost, req.SrcPort, err)
		}
		dialer.LocalAddr = local
	}
	return dialer, nil
}

// Probe opens one TCP connection to req's destination and closes it again,
// timing both steps.
//
// Connection failures are reported in the Result, never as a separate error.
// The socket is closed on every return path.
func Probe(ctx context.Context, req Request) Result {
	res := Result{ConnectTime: Unmeasured, CloseTime: Unmeasured}

	dialer, err := newDialer(req)
	if err != nil {
		res.Start = time.Now()
		res.Err = err
		return res
	}

	t1 := time.Now()
	res.Start = t1
	conn, err := dialer.DialContext(ctx, "tcp", req.Destination())
	if err != nil {
		te := time.Now()
		res.ConnectTime = te.Sub(t1)
		res.Err = err
		// The socket is gone by now; the requested bind address is the best
		// we know about the local end.
		if local, ok := dialer.LocalAddr.(*net.TCPAddr); ok {
			res.LocalAddr = local
		}
		return res
	}
	defer func() {
		// Cleanup close. On the normal path the connection is already closed
		// and this returns net.ErrClosed.
		if err := conn.Close(); err != nil {
			slog.Debug("Cleanup close", "destination", req.Destination(), "error", err)
		}
	}()

	t2 := time.Now()
	res.ConnectTime = t2.Sub(t1)
	if local, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		res.LocalAddr = local
	}

	if req.DelayClose > 0 {
		timer := time.NewTimer(req.DelayClose)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	if err := conn.Close(); err != nil {
		slog.Debug("Close failed", "destination", req.Destination(), "error", err)
	}
	res.CloseTime = time.Since(t2)

	return res
}
