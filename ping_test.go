package h2core

import (
	"bufio"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPingRoundTripsToOnPong exercises R2: a PING with opaque data X
// round-trips to the sender as a PONG callback carrying the same X, once
// the peer echoes it back with FlagAck set.
func TestPingRoundTripsToOnPong(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	pong := make(chan [8]byte, 1)
	c := &Conn{
		c:        client,
		bw:       bufio.NewWriter(client),
		isClient: true,
		opts:     ConnOpts{OnPong: func(data [8]byte) { pong <- data }},
		closed:   make(chan struct{}),
	}

	var want [8]byte
	copy(want[:], "pingdata")

	go func() {
		// Echo whatever PING we're sent, with FlagAck set, the way a real
		// peer's run loop would via handlePingFrame.
		br := bufio.NewReader(server)
		fh, err := ReadFrameFrom(br)
		if err != nil {
			return
		}
		p := fh.Body().(*Ping)
		bw := bufio.NewWriter(server)
		reply := AcquireFrameHeader()
		ack := AcquireFrame(FramePing).(*Ping)
		ack.SetAck(true)
		ack.SetData(p.Data())
		reply.SetBody(ack)
		reply.WriteTo(bw)
		bw.Flush()
	}()

	require.NoError(t, c.writePing(want[:], false))
	atomic.StoreInt32(&c.pingOutstanding, 1)

	br := bufio.NewReader(client)
	fh, err := ReadFrameFrom(br)
	require.NoError(t, err)
	require.NoError(t, c.handlePingFrame(fh.Body().(*Ping)))

	select {
	case got := <-pong:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("OnPong was never invoked")
	}
	assert.EqualValues(t, 0, atomic.LoadInt32(&c.pingOutstanding))
}

func TestPingAckWithoutOutstandingIsHarmless(t *testing.T) {
	client, _ := net.Pipe()
	defer client.Close()

	c := &Conn{
		c:      client,
		bw:     bufio.NewWriter(client),
		closed: make(chan struct{}),
	}

	p := &Ping{}
	p.SetAck(true)
	require.NoError(t, c.handlePingFrame(p))
	assert.EqualValues(t, 0, atomic.LoadInt32(&c.pingOutstanding))
}

func TestNonAckPingIsEchoed(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := &Conn{
		c:      server,
		bw:     bufio.NewWriter(server),
		closed: make(chan struct{}),
	}

	var data [8]byte
	copy(data[:], "abcdefgh")
	p := &Ping{}
	p.SetData(data[:])

	done := make(chan error, 1)
	go func() { done <- c.handlePingFrame(p) }()

	br := bufio.NewReader(client)
	fh, err := ReadFrameFrom(br)
	require.NoError(t, err)
	require.NoError(t, <-done)

	echoed := fh.Body().(*Ping)
	assert.True(t, echoed.Ack())
	assert.Equal(t, data[:], echoed.Data())
}
