package engineio

import (
	"encoding/json"
	"strconv"
	"time"
)

// PacketType represents Engine.IO packet types
type PacketType byte

const (
	PacketTypeOpen PacketType = iota
	PacketTypeClose
	PacketTypePing
	PacketTypePong
	PacketTypeMessage
	PacketTypeUpgrade
	PacketTypeNoop
)

// Packet represents an Engine.IO packet
type Packet struct {
	Type PacketType
	Data []byte
}

// Encode encodes the packet to bytes
func (p *Packet) Encode() []byte {
	result := make([]byte, 0, len(p.Data)+1)
	result = append(result, byte('0'+p.Type))
	result = append(result, p.Data...)
	return result
}

// DecodePacket decodes bytes into a packet
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Frame: data, Reason: "empty packet"}
	}

	typeChar := data[0]
	if typeChar < '0' || typeChar > '6' {
		return nil, &DecodeError{Frame: data, Reason: "invalid packet type " + strconv.Quote(string(typeChar))}
	}

	packet := &Packet{
		Type: PacketType(typeChar - '0'),
	}

	if len(data) > 1 {
		packet.Data = data[1:]
	}

	return packet, nil
}

// HandshakeData is the payload of the open packet.
type HandshakeData struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// DecodeHandshake parses the JSON carried by an open packet.
func DecodeHandshake(data []byte) (*HandshakeData, error) {
	var hs HandshakeData
	if err := json.Unmarshal(data, &hs); err != nil {
		return nil, &DecodeError{Frame: data, Reason: "invalid handshake", Err: err}
	}
	if hs.SID == "" {
		return nil, &DecodeError{Frame: data, Reason: "handshake without sid"}
	}
	if hs.PingInterval <= 0 || hs.PingTimeout <= 0 {
		return nil, &DecodeError{Frame: data, Reason: "handshake without heartbeat timings"}
	}
	return &hs, nil
}

func (h *HandshakeData) Interval() time.Duration {
	return time.Duration(h.PingInterval) * time.Millisecond
}

func (h *HandshakeData) Timeout() time.Duration {
	return time.Duration(h.PingTimeout) * time.Millisecond
}

// String returns the packet type as a string
func (pt PacketType) String() string {
	switch pt {
	case PacketTypeOpen:
		return "open"
	case PacketTypeClose:
		return "close"
	case PacketTypePing:
		return "ping"
	case PacketTypePong:
		return "pong"
	case PacketTypeMessage:
		return "message"
	case PacketTypeUpgrade:
		return "upgrade"
	case PacketTypeNoop:
		return "noop"
	default:
		return "unknown(" + strconv.Itoa(int(pt)) + ")"
	}
}
