package engineio

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
		wire   string
	}{
		{"open", Packet{Type: PacketTypeOpen, Data: []byte(`{"sid":"x"}`)}, `0{"sid":"x"}`},
		{"close", Packet{Type: PacketTypeClose}, "1"},
		{"ping", Packet{Type: PacketTypePing}, "2"},
		{"pong probe", Packet{Type: PacketTypePong, Data: []byte("probe")}, "3probe"},
		{"message", Packet{Type: PacketTypeMessage, Data: []byte(`2["hi"]`)}, `42["hi"]`},
		{"upgrade", Packet{Type: PacketTypeUpgrade}, "5"},
		{"noop", Packet{Type: PacketTypeNoop}, "6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.packet.Encode()
			assert.Equal(t, tt.wire, string(encoded))

			decoded, err := DecodePacket(encoded)
			require.NoError(t, err)
			if diff := cmp.Diff(&tt.packet, decoded); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodePacketErrors(t *testing.T) {
	for _, frame := range []string{"", "7", "x42", "-"} {
		_, err := DecodePacket([]byte(frame))

		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr), "frame %q", frame)
	}
}

func TestDecodeHandshake(t *testing.T) {
	hs, err := DecodeHandshake([]byte(`{"sid":"lv_VI97HAXpY6yYWAAAC","upgrades":["websocket"],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
	require.NoError(t, err)

	assert.Equal(t, "lv_VI97HAXpY6yYWAAAC", hs.SID)
	assert.Equal(t, []string{"websocket"}, hs.Upgrades)
	assert.Equal(t, "25s", hs.Interval().String())
	assert.Equal(t, "20s", hs.Timeout().String())
	assert.Equal(t, 1000000, hs.MaxPayload)

	for _, bad := range []string{`{`, `{"pingInterval":1,"pingTimeout":1}`, `{"sid":"a"}`} {
		_, err := DecodeHandshake([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "message", PacketTypeMessage.String())
	assert.Equal(t, "unknown(9)", PacketType(9).String())
}
