package textcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultTableNeverMapsReservedCodesToPrintableGlyphs(t *testing.T) {
	for code := 0; code < 256; code++ {
		if !reservedCode(code) {
			continue
		}
		r := DefaultTable.NeoToUnicode[code]
		require.GreaterOrEqualf(t, r, rune(0xE000), "reserved code 0x%02x must hold a private-use placeholder, got %U", code, r)
	}
}

func TestDefaultTableReverseLookupNeverProducesAReservedCode(t *testing.T) {
	// Placeholder runes in the Private Use Area are internal bookkeeping and
	// tautologically reverse-map to their own reserved code; only ordinary
	// text runes matter for this property.
	for r, code := range DefaultTable.UnicodeToNeo {
		if r >= 0xE000 && r <= 0xE0FF {
			continue
		}
		require.Falsef(t, reservedCode(int(code)), "rune %U reverse-maps to reserved code 0x%02x", r, code)
	}
}

func TestDefaultTableIdentityMapsASCII(t *testing.T) {
	require.Equal(t, rune('A'), DefaultTable.NeoToUnicode['A'])
	code, ok := DefaultTable.UnicodeToNeo['A']
	require.True(t, ok)
	require.Equal(t, byte('A'), code)
}
