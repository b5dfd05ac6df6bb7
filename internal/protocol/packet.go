package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// HeaderSize is the exact on-wire size of a packet header.
// The layout is part of the wire contract and must not change.
const HeaderSize = 16

// Packet types (the header type byte).
const (
	PacketNone     byte = 0
	PacketLogin    byte = 1
	PacketUsers    byte = 2
	PacketInvite   byte = 3
	PacketRevoke   byte = 4
	PacketAccept   byte = 5
	PacketDecline  byte = 6
	PacketMove     byte = 7
	PacketResign   byte = 8
	PacketAck      byte = 9
	PacketNack     byte = 10
	PacketInvited  byte = 11
	PacketRevoked  byte = 12
	PacketAccepted byte = 13
	PacketDeclined byte = 14
	PacketMoved    byte = 15
	PacketResigned byte = 16
	PacketEnded    byte = 17
)

// TypeName returns a human-readable name for a packet type byte.
func TypeName(t byte) string {
	switch t {
	case PacketNone:
		return "NONE"
	case PacketLogin:
		return "LOGIN"
	case PacketUsers:
		return "USERS"
	case PacketInvite:
		return "INVITE"
	case PacketRevoke:
		return "REVOKE"
	case PacketAccept:
		return "ACCEPT"
	case PacketDecline:
		return "DECLINE"
	case PacketMove:
		return "MOVE"
	case PacketResign:
		return "RESIGN"
	case PacketAck:
		return "ACK"
	case PacketNack:
		return "NACK"
	case PacketInvited:
		return "INVITED"
	case PacketRevoked:
		return "REVOKED"
	case PacketAccepted:
		return "ACCEPTED"
	case PacketDeclined:
		return "DECLINED"
	case PacketMoved:
		return "MOVED"
	case PacketResigned:
		return "RESIGNED"
	case PacketEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", t)
	}
}

// Header is the fixed 16-byte packet header.
// All multi-byte fields are big-endian on the wire.
type Header struct {
	Type byte   // packet kind
	ID   uint8  // invitation slot index on the recipient side
	Role uint8  // 0=NULL, 1=FIRST(X), 2=SECOND(O); winner role in ENDED
	Size uint16 // payload length in bytes
	Sec  uint32 // sender's monotonic clock, seconds
	Nsec uint32 // nanoseconds
}

// NewHeader builds a header for the given type with the id/role/size fields
// set and the timestamp left for WritePacket to stamp.
func NewHeader(typ byte, id, role uint8, size uint16) Header {
	return Header{Type: typ, ID: id, Role: role, Size: size}
}

// MarshalHeader serializes h into buf (at least HeaderSize bytes).
func MarshalHeader(buf []byte, h Header) {
	buf[0] = h.Type
	buf[1] = h.ID
	buf[2] = h.Role
	buf[3] = 0 // pad
	binary.BigEndian.PutUint16(buf[4:6], h.Size)
	binary.BigEndian.PutUint16(buf[6:8], 0) // reserved
	binary.BigEndian.PutUint32(buf[8:12], h.Sec)
	binary.BigEndian.PutUint32(buf[12:16], h.Nsec)
}

// UnmarshalHeader parses a header from buf (at least HeaderSize bytes).
func UnmarshalHeader(buf []byte) Header {
	return Header{
		Type: buf[0],
		ID:   buf[1],
		Role: buf[2],
		Size: binary.BigEndian.Uint16(buf[4:6]),
		Sec:  binary.BigEndian.Uint32(buf[8:12]),
		Nsec: binary.BigEndian.Uint32(buf[12:16]),
	}
}

// start anchors the monotonic timestamps carried in outbound headers.
var start = time.Now()

// Stamp fills the header timestamp from the process monotonic clock.
func Stamp(h *Header) {
	d := time.Since(start)
	h.Sec = uint32(d / time.Second)
	h.Nsec = uint32(d % time.Second)
}

// WritePacket stamps the header timestamp and writes the header and payload
// to w. The header Size field is always set to len(payload) (zero for a nil
// payload); any size the caller put there is ignored. net.Conn writes are full writes, so
// a nil error means the whole packet was transferred.
func WritePacket(w io.Writer, h Header, payload []byte) error {
	h.Size = uint16(len(payload))
	Stamp(&h)

	var buf [HeaderSize]byte
	MarshalHeader(buf[:], h)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("writing packet header: %w", err)
	}

	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("writing packet payload: %w", err)
		}
	}
	return nil
}

// ReadPacket reads one packet from r. End-of-stream mid-header or
// mid-payload is an error. The payload is nil when the header size is zero.
func ReadPacket(r io.Reader) (Header, []byte, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, nil, fmt.Errorf("reading packet header: %w", err)
	}
	h := UnmarshalHeader(buf[:])

	if h.Size == 0 {
		return h, nil, nil
	}
	payload := make([]byte, h.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, fmt.Errorf("reading packet payload: %w", err)
	}
	return h, payload, nil
}
