package h2core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsEncodeDecodeRoundTrip(t *testing.T) {
	want := Settings{
		HeaderTableSize:      8192,
		DisablePush:          true,
		MaxConcurrentStreams: 50,
		InitialWindowSize:    32768,
		MaxFrameSize:         1 << 15,
	}

	buf := want.Encode(nil)
	require.Len(t, buf, 5*6, "five non-zero parameters, six bytes each")

	var got Settings
	require.NoError(t, got.Decode(buf))
	assert.Equal(t, want, got)
}

func TestSettingsDecodeLeavesUnmentionedFieldsAlone(t *testing.T) {
	got := Settings{MaxFrameSize: 99, MaxConcurrentStreams: 10}

	// A payload naming only HEADER_TABLE_SIZE must not disturb the other
	// fields already present on got (RFC 7540 §6.5: "each unspecified
	// parameter ... retains its current value").
	var payload []byte
	payload = appendSetting(payload, SettingHeaderTableSize, 1024)

	require.NoError(t, got.Decode(payload))
	assert.EqualValues(t, 1024, got.HeaderTableSize)
	assert.EqualValues(t, 99, got.MaxFrameSize)
	assert.EqualValues(t, 10, got.MaxConcurrentStreams)
}

func TestSettingsDecodeRejectsPartialEntry(t *testing.T) {
	var s Settings
	err := s.Decode(make([]byte, 7))
	assert.ErrorIs(t, err, ErrMissingBytes)
}

func TestSettingsAckAppliesOnce(t *testing.T) {
	// A second SETTINGS ACK for the same already-cleared pending flag is a
	// no-op rather than an error: applying the same settings twice never
	// happens because there's nothing left outstanding to apply.
	c := &Conn{
		closed:          make(chan struct{}),
		streams:         NewStreamSet(1, 2),
		hpack:           NewHPACK(DefaultHeaderTableSize),
		localSettings:   DefaultSettings(),
		pendingSettings: DefaultSettings(),
	}
	c.settingsAckPending = 1

	sfAck := &SettingsFrame{}
	sfAck.SetAck(true)
	require.NoError(t, c.handleSettingsFrame(sfAck))
	assert.EqualValues(t, 0, c.settingsAckPending)

	require.NoError(t, c.handleSettingsFrame(sfAck))
	assert.EqualValues(t, 0, c.settingsAckPending)
}
