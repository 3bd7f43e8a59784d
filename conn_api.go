package h2core

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"sync/atomic"
)

// ErrSettingsOutstanding is returned by UpdateSettings when an earlier
// call's SETTINGS frame hasn't been ACKed yet. RFC 7540 doesn't define
// ordering for multiple settings changes in flight at once, so this
// package only ever keeps one outstanding at a time.
var ErrSettingsOutstanding = errors.New("h2core: a SETTINGS update is already awaiting ACK")

// NewStream allocates a new stream on this connection and starts its
// handler goroutine, ready for the embedder to call SendHeaders on.
// Returns ErrTooManyStreams if the peer's MAX_CONCURRENT_STREAMS would be
// exceeded.
func (c *Conn) NewStream() (*StreamHandle, error) {
	var h *streamHandler
	var streamErr error
	if err := c.doSync(func() {
		s, serr := c.streams.NewStream(int32(c.peerSettings.InitialWindowSize), int32(c.localSettings.InitialWindowSize))
		if serr != nil {
			streamErr = serr
			return
		}
		h = c.startStreamHandler(s)
	}); err != nil {
		return nil, err
	}
	if streamErr != nil {
		return nil, streamErr
	}
	return h.handle, nil
}

// UpdateSettings renegotiates our local SETTINGS mid-connection (e.g. to
// raise MAX_CONCURRENT_STREAMS after startup). Per RFC 7540 §6.5.3 the
// new values only take effect once the peer ACKs them (handled by
// handleSettingsFrame's ack branch); this call only records what to
// apply and puts the frame on the wire, refusing to do either while an
// earlier SETTINGS from this endpoint is still unacknowledged.
func (c *Conn) UpdateSettings(s Settings) error {
	var rejected bool
	var writeErr error
	if err := c.doSync(func() {
		if atomic.LoadInt32(&c.settingsAckPending) == 1 {
			rejected = true
			return
		}
		c.pendingSettings = s
		writeErr = c.writeSettings(s, false)
	}); err != nil {
		return err
	}
	if rejected {
		return ErrSettingsOutstanding
	}
	return writeErr
}

// SendWindowUpdate issues an unsolicited WINDOW_UPDATE, for embedders
// that disabled ClientFlowControl and pace credit themselves. streamID
// 0 targets the connection-level window.
func (c *Conn) SendWindowUpdate(streamID uint32, increment int32) error {
	return c.writeWindowUpdate(streamID, increment)
}

// Stop is an alias for Close, matching the embedder-facing control-
// operations vocabulary alongside NewStream/SendPing.
func (c *Conn) Stop() error { return c.Close() }

// GetStreams returns the ids of every currently active stream this
// endpoint is tracking, on both sides of the connection.
func (c *Conn) GetStreams() []uint32 {
	var ids []uint32
	c.doSync(func() {
		c.streams.Each(func(s *stream) { ids = append(ids, s.id) })
	})
	return ids
}

// GetPeer returns the remote address of the underlying transport.
func (c *Conn) GetPeer() string {
	if c.c == nil {
		return ""
	}
	return c.c.RemoteAddr().String()
}

// GetPeerCert returns the peer's leaf TLS certificate, if the connection
// is running over TLS.
func (c *Conn) GetPeerCert() (*x509.Certificate, error) {
	tc, ok := c.c.(*tls.Conn)
	if !ok {
		return nil, errors.New("h2core: connection is not TLS")
	}
	state := tc.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errors.New("h2core: no peer certificate presented")
	}
	return state.PeerCertificates[0], nil
}
