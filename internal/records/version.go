package records

import (
	"fmt"

	"asmgo/internal/codec"
)

// versionDescriptor lays out the RESPONSE_VERSION payload: 3 unknown bytes,
// a major/minor revision pair, a 19-byte name, and a 39-byte build date.
var versionDescriptor = codec.Descriptor{
	Fields: []codec.Field{
		{Name: "major", Offset: 0x03, Width: 1, Kind: codec.KindInt},
		{Name: "minor", Offset: 0x04, Width: 1, Kind: codec.KindInt},
		{Name: "name", Offset: 0x05, Width: 19, Kind: codec.KindString},
		{Name: "build_date", Offset: 0x18, Width: 39, Kind: codec.KindString},
	},
}

// Version is the decoded RESPONSE_VERSION payload. The device firmware
// occasionally reports a checksum that doesn't match its own payload; per
// spec.md §4.9 that mismatch is advisory only — log it, don't fail the
// operation.
type Version struct {
	Major            byte
	Minor            byte
	Name             string
	BuildDate        string
	DeclaredChecksum uint16
	ComputedChecksum uint16
}

// ChecksumOK reports whether the device's declared checksum matches the
// payload actually received.
func (v Version) ChecksumOK() bool {
	return v.DeclaredChecksum == v.ComputedChecksum
}

// DecodeVersion parses a raw version payload according to versionDescriptor
// and pairs it with its declared and computed checksums. It does not
// compare the two; callers do so afterwards via ChecksumOK (internal/neo
// logs a mismatch and carries on).
func DecodeVersion(payload []byte, declaredChecksum uint16) (Version, error) {
	if len(payload) == 0 {
		return Version{}, fmt.Errorf("records: version: empty payload")
	}
	fields, err := codec.DecodeRecord(versionDescriptor, payload)
	if err != nil {
		return Version{}, fmt.Errorf("records: version: %w", err)
	}
	return Version{
		Major:            byte(fields["major"].(uint32)),
		Minor:            byte(fields["minor"].(uint32)),
		Name:             fields["name"].(string),
		BuildDate:        fields["build_date"].(string),
		DeclaredChecksum: declaredChecksum,
		ComputedChecksum: codec.Checksum16(payload),
	}, nil
}
