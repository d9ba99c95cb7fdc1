package records

import (
	"fmt"

	"asmgo/internal/codec"
)

// FileAttributesSize is the fixed length of a file attributes record, per
// neotools/file.py's FILE_ATTRIBUTES_FORMAT.
const FileAttributesSize = 40

// File flag bits (neotools/file.py FileConst). Only the lowest 3 bits are
// meaningful; bit 0 is always clear in practice.
const (
	FileFlagUnknown0 uint32 = 0x01
	FileFlagCurrent  uint32 = 0x02 // set if this is the applet's active file
	FileFlagUnknown1 uint32 = 0x04 // always set for AlphaWord files
)

// fileSpaceCodes is the on-wire byte for each logical space index
// (0 = unbound, 1..8 = file spaces 1-8). Using any other byte value
// confuses the device.
var fileSpaceCodes = []byte{0xFF, 0x2D, 0x2C, 0x04, 0x0F, 0x0E, 0x0A, 0x01, 0x27}

func spaceCodeToIndex(code byte) (int, error) {
	for i, c := range fileSpaceCodes {
		if c == code {
			return i, nil
		}
	}
	return 0, fmt.Errorf("records: unrecognized file space code 0x%02x", code)
}

func spaceIndexToCode(index int) (byte, error) {
	if index < 0 || index >= len(fileSpaceCodes) {
		return 0, fmt.Errorf("records: file space index %d out of range [0,%d]", index, len(fileSpaceCodes)-1)
	}
	return fileSpaceCodes[index], nil
}

var fileAttributesDescriptor = codec.Descriptor{
	TotalSize: FileAttributesSize,
	Fields: []codec.Field{
		{Name: "name", Offset: 0x00, Width: 15, Kind: codec.KindString},
		{Name: "password", Offset: 0x10, Width: 7, Kind: codec.KindString},
		{Name: "min_size", Offset: 0x18, Width: 4, Kind: codec.KindInt},
		{Name: "alloc_size", Offset: 0x1C, Width: 4, Kind: codec.KindInt},
		{Name: "flags", Offset: 0x20, Width: 4, Kind: codec.KindInt},
		{Name: "space", Offset: 0x25, Width: 1, Kind: codec.KindInt},
	},
}

// FileAttributes is the decoded form of a file's 40-byte attributes record.
// FileIndex is supplied out-of-band (it is the argument the request used to
// fetch this record, not part of the wire payload itself).
type FileAttributes struct {
	FileIndex int
	Name      string
	Password  string
	MinSize   uint32
	AllocSize uint32
	Flags     uint32
	// Space is the logical space index (0 = unbound, 1-8 = file spaces),
	// already translated from the on-wire code via fileSpaceCodes.
	Space int
}

// DecodeFileAttributes parses a 40-byte buffer, translating the raw space
// byte through fileSpaceCodes. Two bytes at offset 0x24 and 0x26-0x27 are
// intentionally ignored: the former is unused, the latter is reported by
// the device as quasi-random on read and ignored on write.
func DecodeFileAttributes(fileIndex int, buf []byte) (FileAttributes, error) {
	fields, err := codec.DecodeRecord(fileAttributesDescriptor, buf)
	if err != nil {
		return FileAttributes{}, fmt.Errorf("records: file attributes: %w", err)
	}
	space, err := spaceCodeToIndex(byte(fields["space"].(uint32)))
	if err != nil {
		return FileAttributes{}, fmt.Errorf("records: file attributes: %w", err)
	}
	return FileAttributes{
		FileIndex: fileIndex,
		Name:      fields["name"].(string),
		Password:  fields["password"].(string),
		MinSize:   fields["min_size"].(uint32),
		AllocSize: fields["alloc_size"].(uint32),
		Flags:     fields["flags"].(uint32),
		Space:     space,
	}, nil
}

// EncodeFileAttributes serializes a to a fresh 40-byte buffer, ready for a
// REQUEST_SET_FILE_ATTRIBUTES block write.
func (a FileAttributes) EncodeFileAttributes() ([]byte, error) {
	spaceCode, err := spaceIndexToCode(a.Space)
	if err != nil {
		return nil, fmt.Errorf("records: file attributes: %w", err)
	}
	buf := make([]byte, FileAttributesSize)
	values := map[string]any{
		"name":       a.Name,
		"password":   a.Password,
		"min_size":   a.MinSize,
		"alloc_size": a.AllocSize,
		"flags":      a.Flags,
		"space":      uint32(spaceCode),
	}
	if err := codec.EncodeRecord(fileAttributesDescriptor, buf, values, 0); err != nil {
		return nil, fmt.Errorf("records: file attributes: %w", err)
	}
	return buf, nil
}
