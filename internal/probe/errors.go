package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// ErrSockoptUnsupported is returned when --rst or --reuse is requested on a
// platform where the socket options cannot be set.
var ErrSockoptUnsupported = errors.New("socket options not supported on this platform")

// SockoptError wraps a failed setsockopt call.
type SockoptError struct {
	Option string
	Err    error
}

func (e *SockoptError) Error() string {
	return "setsockopt " + e.Option + ": " + e.Err.Error()
}

func (e *SockoptError) Unwrap() error {
	return e.Err
}

// ErrorKind is a coarse classification of a probe failure. Probe itself never
// classifies; outputs use Classify for labels.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindTimeout     ErrorKind = "timeout"
	KindRefused     ErrorKind = "refused"
	KindUnreachable ErrorKind = "unreachable"
	KindReset       ErrorKind = "reset"
	KindBind        ErrorKind = "bind"
	KindResolve     ErrorKind = "resolve"
	KindCanceled    ErrorKind = "canceled"
	KindSockopt     ErrorKind = "sockopt"
	KindOther       ErrorKind = "other"
)

// Classify maps a probe error to an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var sockErr *SockoptError
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &sockErr), errors.Is(err, ErrSockoptUnsupported):
		return KindSockopt
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	case errors.Is(err, syscall.ECONNRESET):
		return KindReset
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return KindUnreachable
	case errors.Is(err, syscall.EADDRINUSE), errors.Is(err, syscall.EADDRNOTAVAIL):
		return KindBind
	case errors.As(err, &dnsErr):
		return KindResolve
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	}
	return KindOther
}
