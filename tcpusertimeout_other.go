//go:build !linux

package h2core

import (
	"net"
	"time"
)

// applyTCPUserTimeout is a no-op off Linux: TCP_USER_TIMEOUT has no
// portable equivalent, and the package's own SETTINGS-ack/PING timeouts
// still bound a stalled peer regardless.
func applyTCPUserTimeout(c net.Conn, d time.Duration) error {
	return nil
}
