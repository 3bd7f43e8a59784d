package h2core

import "net"

// SocketOptions tunes the underlying TCP socket Dial/Serve open, the way
// spec.md's socket_options connection opt does. A nil *SocketOptions (the
// ConnOpts zero value) leaves the OS defaults untouched.
type SocketOptions struct {
	// SendBufferSize and RecvBufferSize set SO_SNDBUF/SO_RCVBUF, in
	// bytes. Zero leaves that buffer at its OS default.
	SendBufferSize int
	RecvBufferSize int

	// NoDelay disables Nagle's algorithm when true. nil leaves the OS
	// default (usually enabled-Nagle) alone.
	NoDelay *bool
}

func applySocketOptions(c net.Conn, opts *SocketOptions) error {
	if opts == nil {
		return nil
	}
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil
	}
	if opts.NoDelay != nil {
		if err := tc.SetNoDelay(*opts.NoDelay); err != nil {
			return err
		}
	}
	if opts.SendBufferSize > 0 {
		if err := tc.SetWriteBuffer(opts.SendBufferSize); err != nil {
			return err
		}
	}
	if opts.RecvBufferSize > 0 {
		if err := tc.SetReadBuffer(opts.RecvBufferSize); err != nil {
			return err
		}
	}
	return nil
}
