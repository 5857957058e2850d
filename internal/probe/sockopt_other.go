//go:build !unix

package probe

import "syscall"

func socketControl(reset, reuse bool) func(network, address string, c syscall.RawConn) error {
	if !reset && !reuse {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		return ErrSockoptUnsupported
	}
}
