// Package settings builds the classified, mergeable view over a raw
// settings blob: the split into labels/descriptions/values, last-writer-wins
// merge across dialogue rounds, and rendering sorted by label text.
// Grounded on neotools/applet/settings.py's AppletSettings class.
package settings

import (
	"fmt"
	"sort"

	"asmgo/internal/records"
)

// Collection classifies a list of decoded settings items into three
// disjoint indexes keyed by ident, matching the three-way split in
// neotools/applet/settings.py's classify_data: labels, descriptions, and
// everything else ("settings").
type Collection struct {
	Labels       map[uint16]records.SettingsItem
	Descriptions map[uint16]records.SettingsItem
	Values       map[uint16]records.SettingsItem
}

// NewCollection classifies items into a fresh Collection.
func NewCollection(items []records.SettingsItem) Collection {
	c := Collection{
		Labels:       make(map[uint16]records.SettingsItem),
		Descriptions: make(map[uint16]records.SettingsItem),
		Values:       make(map[uint16]records.SettingsItem),
	}
	c.classify(items)
	return c
}

func (c *Collection) classify(items []records.SettingsItem) {
	for _, item := range items {
		switch item.Type {
		case records.SettingsLabel:
			c.Labels[item.Ident] = item
		case records.SettingsDescription:
			c.Descriptions[item.Ident] = item
		default:
			c.Values[item.Ident] = item
		}
	}
}

// Merge folds other into c, with other's entries winning on ident
// collisions within each of the three indexes independently — labels never
// overwrite values and vice versa, matching
// neotools/applet/settings.py's merge_settings.
func (c *Collection) Merge(other Collection) {
	for ident, item := range other.Labels {
		c.Labels[ident] = item
	}
	for ident, item := range other.Descriptions {
		c.Descriptions[ident] = item
	}
	for ident, item := range other.Values {
		c.Values[ident] = item
	}
}

// labelFor returns the display label for ident, or "Unknown" if none was
// ever reported, matching label_for_ident's fallback.
func (c Collection) labelFor(ident uint16) string {
	if label, ok := c.Labels[ident]; ok {
		return label.Text
	}
	return "Unknown"
}

// RenderedItem is one flattened, display-ready settings entry.
type RenderedItem struct {
	Label       string
	Ident       uint16
	Type        records.SettingsItemType
	Description string
	HasDescription bool

	Value         any
	OptionValue   *RenderedOption
}

// RenderedOption is the display form of an OPTION item: its currently
// selected label plus the full list of available option labels.
type RenderedOption struct {
	Selected string
	Options  []string
}

// Render flattens c.Values into a slice sorted by label text, matching
// AppletSettings.to_dict's sort key.
func (c Collection) Render() []RenderedItem {
	out := make([]RenderedItem, 0, len(c.Values))
	for ident, item := range c.Values {
		ri := RenderedItem{
			Label: c.labelFor(ident),
			Ident: ident,
			Type:  item.Type,
		}
		if desc, ok := c.Descriptions[ident]; ok {
			ri.Description = desc.Text
			ri.HasDescription = true
		}
		if item.Type == records.SettingsOption && len(item.Options) > 0 {
			opts := make([]string, 0, len(item.Options)-1)
			for _, o := range item.Options[1:] {
				opts = append(opts, c.labelFor(o))
			}
			ri.OptionValue = &RenderedOption{
				Selected: c.labelFor(item.Options[0]),
				Options:  opts,
			}
		} else {
			ri.Value = valueOf(item)
		}
		out = append(out, ri)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func valueOf(item records.SettingsItem) any {
	switch item.Type {
	case records.SettingsRange32:
		return item.Range
	case records.SettingsAppletID:
		return item.AppletID
	default:
		return item.Text
	}
}

// ChangeRange32 validates and applies a new {default,min,max} triple to a
// RANGE_32 value, per AppletSettingsItem.change_setting.
func (c *Collection) ChangeRange32(ident uint16, value records.Range32) error {
	item, ok := c.Values[ident]
	if !ok || item.Type != records.SettingsRange32 {
		return fmt.Errorf("settings: ident 0x%04x is not a RANGE_32 setting", ident)
	}
	item.Range = value
	c.Values[ident] = item
	return nil
}

// ChangeOption validates that selected is one of the item's existing
// options and makes it the new selection, per change_setting's OPTION case.
func (c *Collection) ChangeOption(ident uint16, selected uint16) error {
	item, ok := c.Values[ident]
	if !ok || item.Type != records.SettingsOption {
		return fmt.Errorf("settings: ident 0x%04x is not an OPTION setting", ident)
	}
	if len(item.Options) == 0 {
		return fmt.Errorf("settings: ident 0x%04x has no options", ident)
	}
	found := false
	for _, o := range item.Options[1:] {
		if o == selected {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("settings: %d must be a member of the existing option list", selected)
	}
	item.Options[0] = selected
	c.Values[ident] = item
	return nil
}

// ChangePassword validates and applies a new password to a PASSWORD_6 or
// FILE_PASSWORD setting. The device requires at least six characters, per
// change_setting's assertion.
func (c *Collection) ChangePassword(ident uint16, password string) error {
	item, ok := c.Values[ident]
	if !ok || (item.Type != records.SettingsPassword6 && item.Type != records.SettingsFilePassword) {
		return fmt.Errorf("settings: ident 0x%04x is not a password setting", ident)
	}
	if len(password) < 6 {
		return fmt.Errorf("settings: password must be at least 6 characters")
	}
	item.Text = password
	c.Values[ident] = item
	return nil
}

// ChangeAppletID validates and applies a new target applet ID to an
// APPLET_ID setting. Per change_setting's comment, the caller is
// responsible for checking the applet actually exists.
func (c *Collection) ChangeAppletID(ident uint16, appletID uint16) error {
	item, ok := c.Values[ident]
	if !ok || item.Type != records.SettingsAppletID {
		return fmt.Errorf("settings: ident 0x%04x is not an APPLET_ID setting", ident)
	}
	item.AppletID = appletID
	c.Values[ident] = item
	return nil
}

// ToRaw flattens the collection back into a list of SettingsItem ready for
// records.EncodeSettingsItems, ordering labels, then descriptions, then
// values for a stable, human-diffable wire encoding.
func (c Collection) ToRaw() []records.SettingsItem {
	idents := func(m map[uint16]records.SettingsItem) []uint16 {
		keys := make([]uint16, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		return keys
	}

	var out []records.SettingsItem
	for _, k := range idents(c.Labels) {
		out = append(out, c.Labels[k])
	}
	for _, k := range idents(c.Descriptions) {
		out = append(out, c.Descriptions[k])
	}
	for _, k := range idents(c.Values) {
		out = append(out, c.Values[k])
	}
	return out
}
