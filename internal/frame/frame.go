// Package frame implements the eight-byte ASM message: a one-byte opcode,
// six bytes of opaque big-endian argument payload, and a trailing checksum
// byte. It is the wire unit every other ASM layer (dialogue, extended data,
// high-level operations) is built out of.
package frame

import (
	"fmt"

	"asmgo/internal/codec"
)

// Size is the fixed length of every ASM message.
const Size = 8

// Arg is one (value, offset, width) triple packed into a message's argument
// payload. Offset is relative to the start of the frame; valid offsets
// satisfy 1 <= offset and offset+width <= 7, leaving byte 0 (opcode) and
// byte 7 (checksum) untouched.
type Arg struct {
	Value  uint32
	Offset int
	Width  int
}

// A shapes an Arg inline; a small constructor used throughout call sites
// building request frames (mirrors the "(value, offset, width)" triples of
// spec §4.2).
func A(value uint32, offset, width int) Arg {
	return Arg{Value: value, Offset: offset, Width: width}
}

// Message is a decoded or to-be-sent 8-byte ASM frame.
type Message [Size]byte

// New builds a frame for opcode, packing args in the order given — later
// triples overwrite earlier overlaps — and stamping byte 7 with the 8-bit
// checksum of bytes 0..6.
func New(opcode byte, args ...Arg) (Message, error) {
	var m Message
	m[0] = opcode
	for _, a := range args {
		if a.Offset < 1 || a.Offset+a.Width > 7 {
			return Message{}, fmt.Errorf("frame: argument offset %d width %d out of range [1,7]", a.Offset, a.Width)
		}
		if err := codec.WriteInt(m[:], a.Offset, a.Width, a.Value); err != nil {
			return Message{}, fmt.Errorf("frame: %w", err)
		}
	}
	m[7] = codec.Checksum8(m[:7])
	return m, nil
}

// Parse wraps an already-received 8-byte buffer as a Message without
// validating its checksum — per §4.2 the frame layer does not reject a bad
// incoming checksum itself; callers that care (extended-data blocks) verify
// checksums explicitly at their own layer.
func Parse(buf []byte) (Message, error) {
	if len(buf) != Size {
		return Message{}, fmt.Errorf("frame: expected %d bytes, got %d", Size, len(buf))
	}
	var m Message
	copy(m[:], buf)
	return m, nil
}

// Command returns the frame's opcode (byte 0).
func (m Message) Command() byte {
	return m[0]
}

// Argument reads a big-endian integer from the frame's payload.
func (m Message) Argument(offset, width int) (uint32, error) {
	return codec.ReadInt(m[:], offset, width)
}

// Checksum returns the frame's trailing checksum byte (byte 7) as received.
func (m Message) Checksum() byte {
	return m[7]
}

// ComputedChecksum recomputes the checksum over bytes 0..6, for callers that
// want to verify a received frame explicitly.
func (m Message) ComputedChecksum() byte {
	return codec.Checksum8(m[:7])
}

// Bytes returns the frame as a plain byte slice, ready for transport.
func (m Message) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, m[:])
	return b
}

func (m Message) String() string {
	return fmt.Sprintf("frame{op=0x%02X args=% X checksum=0x%02X}", m[0], m[1:7], m[7])
}
