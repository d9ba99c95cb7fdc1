// Package codec implements the low-level big-endian integer/string accessors
// and the layout-descriptor driven record (de)serializer shared by every
// fixed-layout wire structure in the ASM protocol (message frames, applet
// headers, file attributes, settings items, firmware version).
package codec

import (
	"bytes"
	"fmt"
)

// ReadInt decodes a big-endian unsigned integer of the given byte width
// (1..4) from buf at offset.
func ReadInt(buf []byte, offset, width int) (uint32, error) {
	if width < 1 || width > 4 {
		return 0, fmt.Errorf("codec: integer field width %d out of range [1,4]", width)
	}
	if err := checkBounds(len(buf), offset, width); err != nil {
		return 0, err
	}
	var v uint32
	for i := 0; i < width; i++ {
		v = v<<8 | uint32(buf[offset+i])
	}
	return v, nil
}

// WriteInt packs v as a big-endian unsigned integer of the given byte width
// into buf at offset.
func WriteInt(buf []byte, offset, width int, v uint32) error {
	if width < 1 || width > 4 {
		return fmt.Errorf("codec: integer field width %d out of range [1,4]", width)
	}
	if err := checkBounds(len(buf), offset, width); err != nil {
		return err
	}
	for i := width - 1; i >= 0; i-- {
		buf[offset+i] = byte(v & 0xFF)
		v >>= 8
	}
	return nil
}

// ReadString decodes the UTF-8 text stored at buf[offset:offset+width],
// stopping at (not including) the first zero byte.
func ReadString(buf []byte, offset, width int) (string, error) {
	if err := checkBounds(len(buf), offset, width); err != nil {
		return "", err
	}
	field := buf[offset : offset+width]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field), nil
}

// WriteString writes the UTF-8 encoding of s into buf[offset:offset+width],
// null-padding the remainder. It fails if s does not fit.
func WriteString(buf []byte, offset, width int, s string) error {
	if err := checkBounds(len(buf), offset, width); err != nil {
		return err
	}
	b := []byte(s)
	if len(b) > width {
		return fmt.Errorf("codec: string %q (%d bytes) exceeds field width %d", s, len(b), width)
	}
	field := buf[offset : offset+width]
	copy(field, b)
	for i := len(b); i < width; i++ {
		field[i] = 0
	}
	return nil
}

// checkBounds validates a field's placement within a buffer. It applies to
// both integer and string fields, so it does not constrain width beyond
// requiring it to be positive.
func checkBounds(bufLen, offset, width int) error {
	if width < 1 {
		return fmt.Errorf("codec: field width %d must be positive", width)
	}
	if offset < 0 || offset+width > bufLen {
		return fmt.Errorf("codec: field at offset %d width %d exceeds buffer of length %d", offset, width, bufLen)
	}
	return nil
}
