package settings

import (
	"testing"

	"github.com/stretchr/testify/require"

	"asmgo/internal/records"
)

func sampleItems() []records.SettingsItem {
	return []records.SettingsItem{
		{Type: records.SettingsLabel, Ident: 0x1001, Text: "On"},
		{Type: records.SettingsLabel, Ident: 0x1002, Text: "Off"},
		{Type: records.SettingsDescription, Ident: 0x2000, Text: "Whether auto power off is enabled"},
		{Type: records.SettingsOption, Ident: 0x2000, Options: []uint16{0x1001, 0x1001, 0x1002}},
		{Type: records.SettingsRange32, Ident: 0x3000, Range: records.Range32{Default: 5, Min: 1, Max: 10}},
	}
}

func TestNewCollectionClassifiesThreeWay(t *testing.T) {
	c := NewCollection(sampleItems())
	require.Len(t, c.Labels, 2)
	require.Len(t, c.Descriptions, 1)
	require.Len(t, c.Values, 2)
}

func TestRenderSortsByLabelAndResolvesOptionNames(t *testing.T) {
	c := NewCollection(sampleItems())
	rendered := c.Render()
	require.Len(t, rendered, 2)

	var option *RenderedItem
	for i := range rendered {
		if rendered[i].Ident == 0x2000 {
			option = &rendered[i]
		}
	}
	require.NotNil(t, option)
	require.True(t, option.HasDescription)
	require.Equal(t, "Whether auto power off is enabled", option.Description)
	require.NotNil(t, option.OptionValue)
	require.Equal(t, "On", option.OptionValue.Selected)
	require.Equal(t, []string{"On", "Off"}, option.OptionValue.Options)
}

func TestRenderFallsBackToUnknownLabel(t *testing.T) {
	c := NewCollection([]records.SettingsItem{
		{Type: records.SettingsRange32, Ident: 0x9999, Range: records.Range32{Default: 1, Min: 0, Max: 2}},
	})
	rendered := c.Render()
	require.Equal(t, "Unknown", rendered[0].Label)
}

func TestMergeIsLastWriterWinsPerIndex(t *testing.T) {
	base := NewCollection([]records.SettingsItem{
		{Type: records.SettingsLabel, Ident: 1, Text: "Old"},
		{Type: records.SettingsRange32, Ident: 2, Range: records.Range32{Default: 1, Min: 0, Max: 5}},
	})
	update := NewCollection([]records.SettingsItem{
		{Type: records.SettingsLabel, Ident: 1, Text: "New"},
	})
	base.Merge(update)
	require.Equal(t, "New", base.Labels[1].Text)
	require.Equal(t, records.Range32{Default: 1, Min: 0, Max: 5}, base.Values[2].Range)
}

func TestMergeNeverCrossesIndexes(t *testing.T) {
	base := NewCollection([]records.SettingsItem{
		{Type: records.SettingsLabel, Ident: 7, Text: "Label seven"},
	})
	// an update that happens to reuse ident 7 for a value must not clobber
	// the label at the same ident.
	update := NewCollection([]records.SettingsItem{
		{Type: records.SettingsAppletID, Ident: 7, AppletID: 0xA000},
	})
	base.Merge(update)
	require.Equal(t, "Label seven", base.Labels[7].Text)
	require.Equal(t, uint16(0xA000), base.Values[7].AppletID)
}

func TestChangeRange32RejectsWrongType(t *testing.T) {
	c := NewCollection(sampleItems())
	err := c.ChangeRange32(0x1001, records.Range32{Default: 1, Min: 0, Max: 2})
	require.Error(t, err)
}

func TestChangeRange32AppliesValue(t *testing.T) {
	c := NewCollection(sampleItems())
	require.NoError(t, c.ChangeRange32(0x3000, records.Range32{Default: 7, Min: 1, Max: 10}))
	require.Equal(t, uint32(7), c.Values[0x3000].Range.Default)
}

func TestChangeOptionRejectsNonMember(t *testing.T) {
	c := NewCollection(sampleItems())
	err := c.ChangeOption(0x2000, 0x9999)
	require.Error(t, err)
}

func TestChangeOptionAppliesSelection(t *testing.T) {
	c := NewCollection(sampleItems())
	require.NoError(t, c.ChangeOption(0x2000, 0x1002))
	require.Equal(t, uint16(0x1002), c.Values[0x2000].Options[0])
}

func TestChangePasswordRejectsShortPassword(t *testing.T) {
	c := NewCollection([]records.SettingsItem{
		{Type: records.SettingsPassword6, Ident: 0x400B, Text: "oldpas"},
	})
	err := c.ChangePassword(0x400B, "abc")
	require.Error(t, err)
}

func TestChangePasswordApplies(t *testing.T) {
	c := NewCollection([]records.SettingsItem{
		{Type: records.SettingsPassword6, Ident: 0x400B, Text: "oldpas"},
	})
	require.NoError(t, c.ChangePassword(0x400B, "newpass"))
	require.Equal(t, "newpass", c.Values[0x400B].Text)
}

func TestChangeAppletIDApplies(t *testing.T) {
	c := NewCollection([]records.SettingsItem{
		{Type: records.SettingsAppletID, Ident: 0x8003, AppletID: records.AppletIDSystem},
	})
	require.NoError(t, c.ChangeAppletID(0x8003, records.AppletIDAlphaWord))
	require.Equal(t, records.AppletIDAlphaWord, c.Values[0x8003].AppletID)
}

func TestToRawIsDeterministicallyOrdered(t *testing.T) {
	c := NewCollection(sampleItems())
	first := c.ToRaw()
	second := c.ToRaw()
	require.Equal(t, first, second)
}
