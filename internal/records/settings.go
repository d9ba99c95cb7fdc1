package records

import (
	"fmt"

	"asmgo/internal/codec"
)

// SettingsItemType enumerates the seven payload shapes an applet settings
// item can carry, per neotools/applet/constants.py's AppletSettingsType.
type SettingsItemType uint16

const (
	SettingsNone         SettingsItemType = 0x0000 // marks end of a settings blob
	SettingsLabel        SettingsItemType = 0x0001 // null-terminated display label
	SettingsRange32      SettingsItemType = 0x0102 // {default, min, max} int32 triple
	SettingsOption       SettingsItemType = 0x0103 // {selected, option...} list of u16 idents
	SettingsPassword6    SettingsItemType = 0x0105 // up to 6-char c-string password
	SettingsDescription  SettingsItemType = 0x0106 // null-terminated descriptive text
	SettingsFilePassword SettingsItemType = 0xC001 // per-file password, keyed by ident
	SettingsAppletID     SettingsItemType = 0x8002 // u16 applet ID value
)

// Well-known settings idents (neotools/applet/constants.py AppletSettingsIdent).
const (
	IdentNone               uint16 = 0x0000
	IdentSystemOn           uint16 = 0x1001
	IdentSystemOff          uint16 = 0x1002
	IdentSystemYes          uint16 = 0x100C
	IdentSystemNo           uint16 = 0x100D
	IdentSystemPassword     uint16 = 0x400B
	IdentAlphaWordClearFiles uint16 = 0x8003
	IdentAlphaWordMaxFileSize uint16 = 0x1010
	IdentAlphaWordMinFileSize uint16 = 0x1011
)

// itemHeaderSize is the fixed 6-byte {type, ident, length} header every
// settings item starts with.
const itemHeaderSize = 6

// passwordFieldWidth is the fixed payload size of PASSWORD_6 and
// FILE_PASSWORD items regardless of the password's actual length, per
// AppletSettingsItem.to_raw's unconditional data_len = 6.
const passwordFieldWidth = 6

var itemHeaderDescriptor = codec.Descriptor{
	Fields: []codec.Field{
		{Name: "type", Offset: 0x00, Width: 2, Kind: codec.KindInt},
		{Name: "ident", Offset: 0x02, Width: 2, Kind: codec.KindInt},
		{Name: "length", Offset: 0x04, Width: 2, Kind: codec.KindInt},
	},
}

// Range32 is the payload of a SettingsRange32 item.
type Range32 struct {
	Default uint32
	Min     uint32
	Max     uint32
}

var range32Descriptor = codec.Descriptor{
	TotalSize: 12,
	Fields: []codec.Field{
		{Name: "default", Offset: 0x00, Width: 4, Kind: codec.KindInt},
		{Name: "min", Offset: 0x04, Width: 4, Kind: codec.KindInt},
		{Name: "max", Offset: 0x08, Width: 4, Kind: codec.KindInt},
	},
}

// SettingsItem is one decoded settings-blob entry. Exactly one of the typed
// payload fields is meaningful, selected by Type.
type SettingsItem struct {
	Type  SettingsItemType
	Ident uint16

	Text     string   // LABEL, DESCRIPTION, PASSWORD_6, FILE_PASSWORD
	Range    Range32  // RANGE_32
	Options  []uint16 // OPTION: Options[0] is the selected ident, rest are the choices
	AppletID uint16   // APPLET_ID
}

// DecodeSettingsItems parses a concatenated settings blob (as returned by
// REQUEST_GET_SETTINGS) into its items, stopping at the first all-zero
// header or when fewer than 6 bytes remain, per
// neotools/applet/settings.py's AppletSettingsItem.list_from_raw.
func DecodeSettingsItems(buf []byte) ([]SettingsItem, error) {
	var items []SettingsItem
	offset := 0
	for {
		if len(buf)-offset < itemHeaderSize {
			break
		}
		header, err := codec.DecodeRecord(itemHeaderDescriptor, buf[offset:offset+itemHeaderSize])
		if err != nil {
			return nil, fmt.Errorf("records: settings item header at offset %d: %w", offset, err)
		}
		typ := header["type"].(uint32)
		ident := header["ident"].(uint32)
		length := int(header["length"].(uint32))
		if typ == 0 && ident == 0 && length == 0 {
			break
		}

		itemTotal := itemHeaderSize + length + (length & 1) // two-byte aligned
		if offset+itemTotal > len(buf) {
			return nil, fmt.Errorf("records: settings item at offset %d: declares %d bytes, only %d remain", offset, itemTotal, len(buf)-offset)
		}
		item, err := decodeSettingsItem(SettingsItemType(typ), uint16(ident), length, buf[offset:offset+itemTotal])
		if err != nil {
			return nil, fmt.Errorf("records: settings item at offset %d: %w", offset, err)
		}
		items = append(items, item)
		offset += itemTotal
	}
	return items, nil
}

func decodeSettingsItem(typ SettingsItemType, ident uint16, length int, raw []byte) (SettingsItem, error) {
	item := SettingsItem{Type: typ, Ident: ident}
	payload := raw[itemHeaderSize:]

	switch typ {
	case SettingsRange32:
		fields, err := codec.DecodeRecord(range32Descriptor, payload[:range32Descriptor.TotalSize])
		if err != nil {
			return SettingsItem{}, err
		}
		item.Range = Range32{
			Default: fields["default"].(uint32),
			Min:     fields["min"].(uint32),
			Max:     fields["max"].(uint32),
		}
	case SettingsOption:
		for o := 0; o+2 <= length; o += 2 {
			v, err := codec.ReadInt(payload, o, 2)
			if err != nil {
				return SettingsItem{}, err
			}
			item.Options = append(item.Options, uint16(v))
		}
	case SettingsPassword6, SettingsDescription, SettingsFilePassword, SettingsLabel:
		s, err := codec.ReadString(payload, 0, length)
		if err != nil {
			return SettingsItem{}, err
		}
		item.Text = s
	case SettingsAppletID:
		v, err := codec.ReadInt(payload, 0, 4)
		if err != nil {
			return SettingsItem{}, err
		}
		item.AppletID = uint16(v)
	default:
		return SettingsItem{}, fmt.Errorf("unknown settings item type 0x%04x", uint16(typ))
	}
	return item, nil
}

// Encode serializes item to its wire form: a 6-byte header followed by its
// typed payload, padded to an even total length.
func (item SettingsItem) Encode() ([]byte, error) {
	var payload []byte
	switch item.Type {
	case SettingsLabel, SettingsDescription:
		payload = make([]byte, len(item.Text)+1)
		if err := codec.WriteString(payload, 0, len(payload), item.Text); err != nil {
			return nil, err
		}
	case SettingsPassword6, SettingsFilePassword:
		payload = make([]byte, passwordFieldWidth)
		text := item.Text
		if len(text) > passwordFieldWidth {
			text = text[:passwordFieldWidth]
		}
		if err := codec.WriteString(payload, 0, passwordFieldWidth, text); err != nil {
			return nil, err
		}
	case SettingsRange32:
		payload = make([]byte, range32Descriptor.TotalSize)
		values := map[string]any{
			"default": item.Range.Default,
			"min":     item.Range.Min,
			"max":     item.Range.Max,
		}
		if err := codec.EncodeRecord(range32Descriptor, payload, values, 0); err != nil {
			return nil, err
		}
	case SettingsOption:
		payload = make([]byte, len(item.Options)*2)
		for i, v := range item.Options {
			if err := codec.WriteInt(payload, i*2, 2, uint32(v)); err != nil {
				return nil, err
			}
		}
	case SettingsAppletID:
		payload = make([]byte, 4)
		if err := codec.WriteInt(payload, 0, 4, uint32(item.AppletID)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("records: settings item: cannot encode type 0x%04x", uint16(item.Type))
	}

	length := len(payload)
	total := itemHeaderSize + length + (length & 1)
	buf := make([]byte, total)
	header := map[string]any{
		"type":   uint32(item.Type),
		"ident":  uint32(item.Ident),
		"length": uint32(length),
	}
	if err := codec.EncodeRecord(itemHeaderDescriptor, buf, header, 0); err != nil {
		return nil, err
	}
	copy(buf[itemHeaderSize:], payload)
	return buf, nil
}

// EncodeSettingsItems concatenates the wire form of every item in order.
func EncodeSettingsItems(items []SettingsItem) ([]byte, error) {
	var out []byte
	for i, item := range items {
		raw, err := item.Encode()
		if err != nil {
			return nil, fmt.Errorf("records: settings item %d: %w", i, err)
		}
		out = append(out, raw...)
	}
	return out, nil
}
