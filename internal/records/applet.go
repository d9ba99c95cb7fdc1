// Package records decodes and encodes the fixed-layout binary records the
// Neo exchanges as extended data: applet headers, file attributes, settings
// items, and the firmware version block. Grounded on the teacher's
// record.go Descriptor-driven codec, applied to the field layouts named in
// neotools/applet/constants.py and neotools/file.py.
package records

import (
	"fmt"

	"asmgo/internal/codec"
)

// HeaderSize is the fixed length of an applet header, per
// neotools/applet/constants.py's APPLET_HEADER_FORMAT.
const HeaderSize = 0x84

// SignatureStart is the expected value of a regular applet's leading
// signature word.
const SignatureStart uint32 = 0xC0FFEEAD

// SignatureEnd is the expected value of a regular applet's trailing
// signature word (last 4 bytes of the image).
const SignatureEnd uint32 = 0xCAFEFEED

// Well-known applet IDs.
const (
	AppletIDInvalid    uint16 = 0xFFFF
	AppletIDSystem     uint16 = 0x0000
	AppletIDAlphaWord  uint16 = 0xA000
	AppletIDDictionary uint16 = 0xA005
)

// FlagHidden marks an applet hidden from the device's own menu.
const FlagHidden uint32 = 0x01

// MaxAppletsPerListRequest bounds how many applet headers may be requested
// in a single REQUEST_LIST_APPLETS round. The Neo's firmware corrupts a 1KB
// internal buffer if asked for more.
const MaxAppletsPerListRequest = 7

var appletHeaderDescriptor = codec.Descriptor{
	TotalSize: HeaderSize,
	Fields: []codec.Field{
		{Name: "signature", Offset: 0x00, Width: 4, Kind: codec.KindInt},
		{Name: "rom_size", Offset: 0x04, Width: 4, Kind: codec.KindInt},
		{Name: "ram_size", Offset: 0x08, Width: 4, Kind: codec.KindInt},
		{Name: "settings_offset", Offset: 0x0C, Width: 4, Kind: codec.KindInt},
		{Name: "flags", Offset: 0x10, Width: 4, Kind: codec.KindInt},
		{Name: "applet_id", Offset: 0x14, Width: 2, Kind: codec.KindInt},
		{Name: "header_version", Offset: 0x16, Width: 1, Kind: codec.KindInt},
		{Name: "file_count", Offset: 0x17, Width: 1, Kind: codec.KindInt},
		{Name: "name", Offset: 0x18, Width: 36, Kind: codec.KindString},
		{Name: "version_major", Offset: 0x3C, Width: 1, Kind: codec.KindInt},
		{Name: "version_minor", Offset: 0x3D, Width: 1, Kind: codec.KindInt},
		{Name: "version_revision", Offset: 0x3E, Width: 1, Kind: codec.KindInt},
		{Name: "language_id", Offset: 0x3F, Width: 1, Kind: codec.KindInt},
		{Name: "info", Offset: 0x40, Width: 60, Kind: codec.KindString},
		{Name: "min_asm_version", Offset: 0x7C, Width: 4, Kind: codec.KindInt},
		{Name: "file_space", Offset: 0x80, Width: 4, Kind: codec.KindInt},
	},
}

// AppletHeader is the decoded form of an applet's 132-byte header.
type AppletHeader struct {
	Signature      uint32
	ROMSize        uint32
	RAMSize        uint32
	SettingsOffset uint32
	Flags          uint32
	AppletID       uint16
	HeaderVersion  byte
	FileCount      byte
	Name           string
	VersionMajor   byte
	VersionMinor   byte
	VersionRevision byte
	LanguageID     byte
	Info           string
	MinASMVersion  uint32
	FileSpace      uint32
}

// Hidden reports whether the applet's FLAGS_HIDDEN bit is set.
func (h AppletHeader) Hidden() bool {
	return h.Flags&FlagHidden != 0
}

// DecodeAppletHeader parses a 132-byte buffer into an AppletHeader,
// rejecting anything without the expected leading signature.
func DecodeAppletHeader(buf []byte) (AppletHeader, error) {
	fields, err := codec.DecodeRecord(appletHeaderDescriptor, buf)
	if err != nil {
		return AppletHeader{}, fmt.Errorf("records: applet header: %w", err)
	}
	signature := fields["signature"].(uint32)
	if signature != SignatureStart {
		return AppletHeader{}, fmt.Errorf("records: applet header: invalid signature 0x%08x", signature)
	}
	return AppletHeader{
		Signature:       signature,
		ROMSize:         fields["rom_size"].(uint32),
		RAMSize:         fields["ram_size"].(uint32),
		SettingsOffset:  fields["settings_offset"].(uint32),
		Flags:           fields["flags"].(uint32),
		AppletID:        uint16(fields["applet_id"].(uint32)),
		HeaderVersion:   byte(fields["header_version"].(uint32)),
		FileCount:       byte(fields["file_count"].(uint32)),
		Name:            fields["name"].(string),
		VersionMajor:    byte(fields["version_major"].(uint32)),
		VersionMinor:    byte(fields["version_minor"].(uint32)),
		VersionRevision: byte(fields["version_revision"].(uint32)),
		LanguageID:      byte(fields["language_id"].(uint32)),
		Info:            fields["info"].(string),
		MinASMVersion:   fields["min_asm_version"].(uint32),
		FileSpace:       fields["file_space"].(uint32),
	}, nil
}

// AppletKind classifies the image a Write Applet payload describes.
type AppletKind int

const (
	AppletKindRegular AppletKind = iota
	AppletKindSystem3
	AppletKindOS3000SmallROM
	AppletKindAlphaSmartUpdater
	AppletKindSystem3Neo
	AppletKindOS3KNeoSmallROM
)

func (k AppletKind) String() string {
	switch k {
	case AppletKindRegular:
		return "Applet program"
	case AppletKindSystem3:
		return "System 3"
	case AppletKindOS3000SmallROM:
		return "OS3000 Small ROM"
	case AppletKindAlphaSmartUpdater:
		return "Alphasmart Updater"
	case AppletKindSystem3Neo:
		return "System 3 Neo"
	case AppletKindOS3KNeoSmallROM:
		return "OS3KNeo Small ROM"
	default:
		return "unknown applet kind"
	}
}

// romSignatureOffset is the offset into a non-regular applet image at which
// its 18-byte human-readable ROM signature string lives.
const romSignatureOffset = 0x400

var romSignatures = map[string]AppletKind{
	"System 3          ": AppletKindSystem3,
	"OS 3000 Small ROM ": AppletKindOS3000SmallROM,
	"AlphaSmart Updater": AppletKindAlphaSmartUpdater,
	"System 3 Neo      ": AppletKindSystem3Neo,
	"OS 3KNeo Small ROM": AppletKindOS3KNeoSmallROM,
}

// ClassifyApplet inspects a candidate install image and determines whether
// it is a regular applet or one of the five recognized ROM update images.
// A regular applet must carry both the leading and trailing signature
// words; a ROM image is identified by an 18-byte string at offset 0x400.
func ClassifyApplet(content []byte) (AppletKind, error) {
	if len(content) < 4 {
		return 0, fmt.Errorf("records: classify applet: content too short")
	}
	leading, err := codec.ReadInt(content, 0, 4)
	if err != nil {
		return 0, fmt.Errorf("records: classify applet: %w", err)
	}
	if leading == SignatureStart {
		if len(content) < 4 {
			return 0, fmt.Errorf("records: classify applet: content too short for trailing signature")
		}
		trailing, err := codec.ReadInt(content, len(content)-4, 4)
		if err != nil {
			return 0, fmt.Errorf("records: classify applet: %w", err)
		}
		if trailing != SignatureEnd {
			return 0, fmt.Errorf("records: classify applet: invalid trailing signature 0x%08x", trailing)
		}
		return AppletKindRegular, nil
	}

	if len(content) < romSignatureOffset+18 {
		return 0, fmt.Errorf("records: classify applet: content too short to carry a ROM signature")
	}
	sig := string(content[romSignatureOffset : romSignatureOffset+18])
	kind, ok := romSignatures[sig]
	if !ok {
		return 0, fmt.Errorf("records: classify applet: unrecognized image")
	}
	return kind, nil
}
