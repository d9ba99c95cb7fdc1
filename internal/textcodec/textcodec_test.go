package textcodec

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeLineEndingsProduceExplicitBreaks(t *testing.T) {
	got := Encode("a\nb\r\nc", DefaultTable)
	want := []byte{0x61, 0x0D, 0x62, 0x0D, 0x0D, 0x63}
	require.Equal(t, want, got[:len(want)])
	// the remainder up to the minimum file size is the "unused space" pad.
	for i := len(want); i < len(got); i++ {
		require.Equal(t, byte(codeUnused2), got[i])
	}
	require.Equal(t, minFileSize, len(got))
}

func TestEncodeInsertsHardBreakEveryIntervalWithNoBreakablePoint(t *testing.T) {
	got := Encode(strings.Repeat("a", 100), DefaultTable)
	// hardBreakInterval=24: a run with no breakable character gets a
	// period-break byte inserted immediately before every 24th character.
	require.Equal(t, byte(codePeriodBreak), got[23])
	require.Equal(t, byte('a'), got[24])
	require.Equal(t, byte(codePeriodBreak), got[24+24])
}

func TestEncodeSubstitutesLastBreakableCharAtSoftInterval(t *testing.T) {
	text := strings.Repeat("a", 19) + " " + strings.Repeat("b", 20) // 40 chars total
	got := Encode(text, DefaultTable)

	for i := 0; i < 19; i++ {
		require.Equalf(t, byte('a'), got[i], "byte %d", i)
	}
	require.Equal(t, byte(codeLineBreakSpaceNew), got[19], "the space at the last break opportunity must be softened")
	for i := 0; i < 20; i++ {
		require.Equalf(t, byte('b'), got[20+i], "byte %d", 20+i)
	}
}

func TestDecodeDropsUnusedAndPeriodBreakCodes(t *testing.T) {
	raw := []byte{0x61, codeUnused1, 0x62, codeUnused2, 0x63, codePeriodBreak, 0x64}
	got := Decode(raw, DefaultTable)
	require.Equal(t, "abcd", got)
}

func TestDecodeTranslatesLineBreakHints(t *testing.T) {
	raw := []byte{0x61, codeLineBreakSpaceNew, 0x62, codeLineBreakTabNew, 0x63, codeLineBreakHyphen, 0x64}
	got := Decode(raw, DefaultTable)
	require.Equal(t, "a b\tc-d", got)
}

func TestDecodeCRBecomesLF(t *testing.T) {
	got := Decode([]byte{0x61, codeCR, 0x62}, DefaultTable)
	require.Equal(t, "a\nb", got)
}

func TestDecodeEscapeSequenceYieldsLiteralCodeThroughTable(t *testing.T) {
	// 0xB0 0x41 0xB0 escapes neo code 0x41 ('A' in the default table).
	raw := []byte{codeEscape, 0x41, codeEscape}
	got := Decode(raw, DefaultTable)
	require.Equal(t, "A", got)
}

func TestEncodeDecodeRoundTripsPlainText(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 5)
	got := Decode(Encode(text, DefaultTable), DefaultTable)
	require.Equal(t, text, got)
}

func TestLoadTableFileRejectsWrongLineCount(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/map.txt"
	require.NoError(t, writeLines(path, []string{"a", "b"}))
	_, err := LoadTableFile(path)
	require.Error(t, err)
}

func TestLoadTableFileBuildsReversibleTable(t *testing.T) {
	lines := make([]string, 256)
	for i := range lines {
		lines[i] = string(rune('A' + (i % 26)))
	}
	dir := t.TempDir()
	path := dir + "/map.txt"
	require.NoError(t, writeLines(path, lines))

	table, err := LoadTableFile(path)
	require.NoError(t, err)
	require.Equal(t, 'A', table.NeoToUnicode[0])
	code, ok := table.UnicodeToNeo['A']
	require.True(t, ok)
	require.Equal(t, byte(0), code, "first definition wins on collision")
}

func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(path, []byte(content), 0o644)
}
