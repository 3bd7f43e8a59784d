package h2core

import "time"

// Process-scoped defaults, overridable before the first Dial/Serve/Become
// call. Connection-scoped overrides live on ConnOpts instead.
var (
	DefaultPingInterval  = 4 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultSettingsTimeout = 5 * time.Second
	DefaultHandshakeTimeout = 4500 * time.Millisecond

	// DefaultClientFlowControl, when true, makes Conn send WINDOW_UPDATE
	// frames automatically as a stream's or the connection's receive
	// window crosses half its negotiated size. Embedders that want to
	// pace flow control themselves (e.g. to bound memory precisely) set
	// this false on ConnOpts instead of touching the package default.
	DefaultClientFlowControl = true
)

// ConnOpts configures one connection's behavior. The zero value is usable
// and falls back to the package-level Default* variables.
type ConnOpts struct {
	// PingInterval overrides DefaultPingInterval; 0 keeps the default,
	// a negative value disables keepalive pings entirely.
	PingInterval time.Duration

	// DisablePingChecking stops the connection from treating an
	// unacknowledged PING as a dead-connection signal. Useful against
	// middleboxes that swallow PING/PING-ACK but otherwise forward data.
	DisablePingChecking bool

	// ClientFlowControl overrides DefaultClientFlowControl per connection.
	ClientFlowControl *bool

	// GarbageOnEnd, if true, stops the connection from buffering a
	// stream's received headers, body and trailers for GetResponse; once
	// the stream finishes, GetResponse reports ErrResponseGarbage for it
	// instead of returning data.
	GarbageOnEnd bool

	// OnDisconnect, if set, is called once when the connection's run
	// loop exits, with the error that caused it (nil on a clean close).
	OnDisconnect func(error)

	// OnPong, if set, is called from the connection's event loop when a
	// PING this endpoint sent (via SendPing or the keepalive ticker) is
	// acknowledged, with the 8-byte opaque value that round-tripped.
	OnPong func(data [8]byte)

	// ConnectTimeout overrides DefaultConnectTimeout for Dial; unused by
	// Become/Serve, which wrap an already-established net.Conn.
	ConnectTimeout time.Duration

	// TCPUserTimeout bounds how long unacknowledged data may sit on the
	// socket before the kernel gives up on it (Linux only; a no-op
	// elsewhere). Zero leaves the OS default in place.
	TCPUserTimeout time.Duration

	// SocketOptions tunes the underlying TCP socket; nil leaves every
	// option at its OS default.
	SocketOptions *SocketOptions

	// HibernateAfter, if positive, truncates the connection's
	// CONTINUATION-reassembly buffer to zero length once the connection
	// has gone this long without handling a frame and no header block is
	// in progress. The buffer is not pooled: nothing is returned to a pool
	// and its backing array is kept. Zero (the default) never hibernates.
	HibernateAfter time.Duration

	// Logger receives diagnostic output; nil uses the package default.
	Logger Logger
}

func (o ConnOpts) connectTimeout() time.Duration {
	if o.ConnectTimeout != 0 {
		return o.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (o ConnOpts) pingInterval() time.Duration {
	if o.PingInterval != 0 {
		return o.PingInterval
	}
	return DefaultPingInterval
}

func (o ConnOpts) clientFlowControl() bool {
	if o.ClientFlowControl != nil {
		return *o.ClientFlowControl
	}
	return DefaultClientFlowControl
}
