//go:build unix

package probe

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// socketControl returns a net.Dialer Control hook that applies the requested
// socket options. It runs after the socket is created and before it is bound
// or connected, so SO_LINGER is in place by the time the socket is closed.
func socketControl(reset, reuse bool) func(network, address string, c syscall.RawConn) error {
	if !reset && !reuse {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		controlErr := c.Control(func(fd uintptr) {
			if reset {
				// l_onoff=1, l_linger=0: close() discards unsent data and sends RST.
				sockErr = unix.SetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 0})
				if sockErr != nil {
					sockErr = &SockoptError{Option: "SO_LINGER", Err: sockErr}
					return
				}
			}
			if reuse {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr != nil {
					sockErr = &SockoptError{Option: "SO_REUSEADDR", Err: sockErr}
				}
			}
		})
		if controlErr != nil {
			return controlErr
		}
		return sockErr
	}
}
