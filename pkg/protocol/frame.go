package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// Opcode identifies the type of a WebSocket frame.
type Opcode byte

const (
	OpcodeText  Opcode = 0x1
	OpcodeClose Opcode = 0x8
	OpcodePing  Opcode = 0x9
	OpcodePong  Opcode = 0xA
)

// String returns the string representation of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpcodeText:
		return "Text"
	case OpcodeClose:
		return "Close"
	case OpcodePing:
		return "Ping"
	case OpcodePong:
		return "Pong"
	default:
		return "Unknown"
	}
}

// MaxPayloadSize is the largest frame payload ReadFrame accepts.
// Anything larger is treated as a protocol violation and fails the
// connection rather than allocating unbounded memory.
const MaxPayloadSize = 16 << 20

// ErrFrameTooLarge is returned when a frame payload exceeds MaxPayloadSize.
var ErrFrameTooLarge = errors.New("protocol: frame payload too large")

// Frame is a single decoded WebSocket frame. Frames the codec does not
// understand are returned with their opcode and raw payload intact; the
// caller decides what to do with them.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// ReadFrame reads one complete frame from r. Client frames carry a 4-byte
// masking key; the payload is unmasked before it is returned. A short read
// anywhere in the frame is a connection-fatal error surfaced to the caller.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}

	opcode := Opcode(hdr[0] & 0x0F)
	masked := hdr[1]&0x80 != 0
	length := uint64(hdr[1] & 0x7F)

	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	if length > MaxPayloadSize {
		return Frame{}, ErrFrameTooLarge
	}

	var mask [4]byte
	if masked {
		if _, err := io.ReadFull(r, mask[:]); err != nil {
			return Frame{}, err
		}
	}

	payload := make([]byte, int(length))
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}

	if masked {
		for i := range payload {
			payload[i] ^= mask[i%4]
		}
	}

	return Frame{Opcode: opcode, Payload: payload}, nil
}

// WriteFrame writes a single unfragmented, unmasked frame to w. Server
// frames are never masked (RFC 6455 §5.1). The header and payload are
// written in one call so a per-connection write lock is the only
// synchronization the caller needs.
func WriteFrame(w io.Writer, op Opcode, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}

	buf := make([]byte, 0, 10+len(payload))
	buf = append(buf, 0x80|byte(op&0x0F))

	switch l := len(payload); {
	case l < 126:
		buf = append(buf, byte(l))
	case l < 1<<16:
		buf = append(buf, 126)
		buf = binary.BigEndian.AppendUint16(buf, uint16(l))
	default:
		buf = append(buf, 127)
		buf = binary.BigEndian.AppendUint64(buf, uint64(l))
	}

	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}
