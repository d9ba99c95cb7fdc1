package codec

import "fmt"

// FieldKind distinguishes the two payload encodings a layout descriptor can
// describe for a field.
type FieldKind int

const (
	// KindInt is a big-endian unsigned integer, 1..4 bytes wide.
	KindInt FieldKind = iota
	// KindString is a fixed-width, null-terminated UTF-8 string.
	KindString
)

// Field describes one named, position-fixed slot within a record.
type Field struct {
	Name   string
	Offset int
	Width  int
	Kind   FieldKind
}

// Descriptor is the layout of a fixed record: an ordered list of fields and
// an optional total size used to validate decode input length.
type Descriptor struct {
	// TotalSize, when non-zero, is the exact buffer length decode requires.
	TotalSize int
	Fields    []Field
}

// DecodeRecord walks the descriptor's fields in order and returns a map of
// field name to decoded value (uint32 for KindInt, string for KindString).
// It fails if the descriptor declares a TotalSize and buf does not match it,
// or if any field's offset/width falls outside buf.
func DecodeRecord(d Descriptor, buf []byte) (map[string]any, error) {
	if d.TotalSize != 0 && len(buf) != d.TotalSize {
		return nil, fmt.Errorf("codec: record expects %d bytes, got %d", d.TotalSize, len(buf))
	}
	out := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		switch f.Kind {
		case KindInt:
			v, err := ReadInt(buf, f.Offset, f.Width)
			if err != nil {
				return nil, fmt.Errorf("codec: field %q: %w", f.Name, err)
			}
			out[f.Name] = v
		case KindString:
			v, err := ReadString(buf, f.Offset, f.Width)
			if err != nil {
				return nil, fmt.Errorf("codec: field %q: %w", f.Name, err)
			}
			out[f.Name] = v
		default:
			return nil, fmt.Errorf("codec: field %q: unknown kind %d", f.Name, f.Kind)
		}
	}
	return out, nil
}

// EncodeRecord writes value's fields into buf starting at baseOffset,
// according to the descriptor. Unlike DecodeRecord it tolerates a buffer
// larger than the descriptor implies, and fields absent from value leave
// the destination bytes untouched.
func EncodeRecord(d Descriptor, buf []byte, value map[string]any, baseOffset int) error {
	for _, f := range d.Fields {
		raw, ok := value[f.Name]
		if !ok {
			continue
		}
		offset := baseOffset + f.Offset
		switch f.Kind {
		case KindInt:
			v, ok := raw.(uint32)
			if !ok {
				return fmt.Errorf("codec: field %q: expected uint32, got %T", f.Name, raw)
			}
			if err := WriteInt(buf, offset, f.Width, v); err != nil {
				return fmt.Errorf("codec: field %q: %w", f.Name, err)
			}
		case KindString:
			v, ok := raw.(string)
			if !ok {
				return fmt.Errorf("codec: field %q: expected string, got %T", f.Name, raw)
			}
			if err := WriteString(buf, offset, f.Width, v); err != nil {
				return fmt.Errorf("codec: field %q: %w", f.Name, err)
			}
		default:
			return fmt.Errorf("codec: field %q: unknown kind %d", f.Name, f.Kind)
		}
	}
	return nil
}
