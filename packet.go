package sioclient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PacketType represents Socket.IO packet types
type PacketType int

const (
	PacketTypeConnect PacketType = iota
	PacketTypeDisconnect
	PacketTypeEvent
	PacketTypeAck
	PacketTypeConnectError
	PacketTypeBinaryEvent
	PacketTypeBinaryAck
)

// Packet represents a Socket.IO packet
type Packet struct {
	Type      PacketType
	Namespace string
	Data      interface{}
	ID        *int

	// Attachments is the placeholder count carried by binary packets. The
	// attachments themselves are not transported.
	Attachments int
}

func (p *Packet) isBinary() bool {
	return p.Type == PacketTypeBinaryEvent || p.Type == PacketTypeBinaryAck
}

// Args returns the data of an EVENT or ACK packet as a list.
func (p *Packet) Args() []interface{} {
	args, _ := p.Data.([]interface{})
	return args
}

// Encode encodes a Socket.IO packet to string
func (p *Packet) Encode() (string, error) {
	var builder strings.Builder

	builder.WriteString(strconv.Itoa(int(p.Type)))

	if p.isBinary() {
		builder.WriteString(strconv.Itoa(p.Attachments))
		builder.WriteByte('-')
	}

	if p.Namespace != "" && p.Namespace != "/" {
		builder.WriteString(p.Namespace)
		builder.WriteByte(',')
	}

	if p.ID != nil {
		builder.WriteString(strconv.Itoa(*p.ID))
	}

	if p.Data != nil {
		jsonData, err := json.Marshal(p.Data)
		if err != nil {
			return "", fmt.Errorf("failed to marshal packet data: %w", err)
		}
		builder.Write(jsonData)
	}

	return builder.String(), nil
}

// DecodePacket decodes a Socket.IO packet from string
func DecodePacket(data string) (*Packet, error) {
	fail := func(reason string, err error) (*Packet, error) {
		return nil, &DecodeError{Packet: data, Reason: reason, Err: err}
	}

	if len(data) == 0 {
		return fail("empty packet", nil)
	}

	packet := &Packet{
		Namespace: "/",
	}

	pos := 0

	if data[pos] < '0' || data[pos] > '6' {
		return fail("invalid packet type", nil)
	}
	packet.Type = PacketType(data[pos] - '0')
	pos++

	if packet.isBinary() {
		end := strings.IndexByte(data[pos:], '-')
		if end <= 0 {
			return fail("missing attachment count", nil)
		}
		n, err := strconv.Atoi(data[pos : pos+end])
		if err != nil || n < 0 {
			return fail("invalid attachment count", err)
		}
		packet.Attachments = n
		pos += end + 1
	}

	if pos < len(data) && data[pos] == '/' {
		end := strings.IndexByte(data[pos:], ',')
		if end == -1 {
			packet.Namespace = data[pos:]
			pos = len(data)
		} else {
			packet.Namespace = data[pos : pos+end]
			pos += end + 1
		}
	}

	if pos < len(data) && isDigit(data[pos]) {
		end := pos
		for end < len(data) && isDigit(data[end]) {
			end++
		}
		id, err := strconv.Atoi(data[pos:end])
		if err != nil {
			return fail("invalid ack id", err)
		}
		packet.ID = &id
		pos = end
	}

	if pos < len(data) {
		if err := json.Unmarshal([]byte(data[pos:]), &packet.Data); err != nil {
			return fail("invalid payload", err)
		}
	}

	if reason := validPayload(packet); reason != "" {
		return fail(reason, nil)
	}

	return packet, nil
}

func validPayload(p *Packet) string {
	switch p.Type {
	case PacketTypeConnect:
		if p.Data == nil {
			return ""
		}
		if _, ok := p.Data.(map[string]interface{}); !ok {
			return "connect payload must be an object"
		}
	case PacketTypeDisconnect:
		if p.Data != nil {
			return "disconnect carries no payload"
		}
	case PacketTypeConnectError:
		switch p.Data.(type) {
		case string, map[string]interface{}:
		default:
			return "connect_error payload must be a string or object"
		}
	case PacketTypeEvent, PacketTypeBinaryEvent:
		args, ok := p.Data.([]interface{})
		if !ok || len(args) == 0 {
			return "event payload must be a non-empty array"
		}
		if _, ok := args[0].(string); !ok {
			return "event name must be a string"
		}
	case PacketTypeAck, PacketTypeBinaryAck:
		if _, ok := p.Data.([]interface{}); !ok {
			return "ack payload must be an array"
		}
		if p.ID == nil {
			return "ack without id"
		}
	}
	return ""
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// String returns the packet type as a string
func (pt PacketType) String() string {
	switch pt {
	case PacketTypeConnect:
		return "connect"
	case PacketTypeDisconnect:
		return "disconnect"
	case PacketTypeEvent:
		return "event"
	case PacketTypeAck:
		return "ack"
	case PacketTypeConnectError:
		return "connect_error"
	case PacketTypeBinaryEvent:
		return "binary_event"
	case PacketTypeBinaryAck:
		return "binary_ack"
	default:
		return "unknown"
	}
}
