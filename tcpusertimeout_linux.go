//go:build linux

package h2core

import (
	"net"
	"syscall"
	"time"
)

// tcpUserTimeout is Linux's TCP_USER_TIMEOUT (include/uapi/linux/tcp.h),
// not exposed by the syscall package's constant list.
const tcpUserTimeout = 0x12

// applyTCPUserTimeout sets how long unacknowledged data may sit on the
// socket before the kernel itself tears the connection down, independent
// of this package's own SETTINGS-ack/PING timeouts.
func applyTCPUserTimeout(c net.Conn, d time.Duration) error {
	tc, ok := c.(*net.TCPConn)
	if !ok || d <= 0 {
		return nil
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	ms := int(d.Milliseconds())
	var setErr error
	err = raw.Control(func(fd uintptr) {
		setErr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, tcpUserTimeout, ms)
	})
	if err != nil {
		return err
	}
	return setErr
}
