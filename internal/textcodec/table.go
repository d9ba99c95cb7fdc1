package textcodec

// Table is a bidirectional mapping between the Neo's 256-code character set
// and Unicode code points, loaded either from DefaultTable or a pluggable
// 256-line text file (one character per line), per spec.md §4.8.
type Table struct {
	// NeoToUnicode holds exactly 256 runes, indexed by Neo character code.
	NeoToUnicode [256]rune
	// UnicodeToNeo is the inverse lookup, built once at load time.
	UnicodeToNeo map[rune]byte
}

func newTable(runes [256]rune) Table {
	t := Table{NeoToUnicode: runes, UnicodeToNeo: make(map[rune]byte, 256)}
	// Earlier entries win on collision, matching a first-definition-wins
	// dict comprehension building the inverse table.
	for code := 255; code >= 0; code-- {
		t.UnicodeToNeo[runes[code]] = byte(code)
	}
	return t
}

// reservedCode reports whether code is one of the line-break-hint/escape
// codes Decode and Encode handle as protocol structure rather than table
// lookups (§4.8): 0x09/0x0A/0x0D, the individual hint codes below 0xA0, and
// the whole 0xA1-0xBF escape range. A character map must never place a
// printable glyph at one of these codes — doing so would make Encode's
// escape/break bookkeeping emit ambiguous bytes a real device could not
// tell apart from the structural meaning Decode assigns them.
func reservedCode(code int) bool {
	switch code {
	case 0x09, 0x0A, 0x0D, codeLineBreakSpaceNew, codeLineBreakTabNew, codePeriodBreak:
		return true
	}
	return code >= 0xA1 && code <= 0xBF
}

// DefaultTable is the built-in Neo character set: non-reserved codes
// 0x00-0x7F map one-to-one onto ASCII and 0x80-0xFF (excluding reserved
// codes) follow the Windows-1252 upper half, the closest documented public
// mapping for this class of 8-bit device character set. Reserved codes hold
// private-use placeholder runes so they are never produced by a reverse
// lookup of ordinary text. Production character-map data files were not
// available to ground this table exactly; callers with the device's real
// map should load it via LoadTableFile instead (§4.8).
var DefaultTable = buildDefaultTable()

func buildDefaultTable() Table {
	var runes [256]rune
	for i := 0; i < 0x80; i++ {
		runes[i] = rune(i)
	}
	// Windows-1252 upper half (0x80-0x9F block), standard public mapping.
	cp1252Upper := [32]rune{
		0x20AC, 0x0081, 0x201A, 0x0192, 0x201E, 0x2026, 0x2020, 0x2021,
		0x02C6, 0x2030, 0x0160, 0x2039, 0x0152, 0x008D, 0x017D, 0x008F,
		0x0090, 0x2018, 0x2019, 0x201C, 0x201D, 0x2022, 0x2013, 0x2014,
		0x02DC, 0x2122, 0x0161, 0x203A, 0x0153, 0x009D, 0x017E, 0x0178,
	}
	for i, r := range cp1252Upper {
		runes[0x80+i] = r
	}
	for i := 0xA0; i <= 0xFF; i++ {
		runes[i] = rune(i)
	}
	for code := 0; code < 256; code++ {
		if reservedCode(code) {
			runes[code] = rune(0xE000 + code) // Unicode Private Use Area
		}
	}
	return newTable(runes)
}
