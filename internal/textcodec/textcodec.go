// Package textcodec implements the Neo's proprietary AlphaWord text
// encoding: an indexed 256-code character set with line-breaking escape
// codes and a soft/hard break insertion scheme for files that lack the
// line-break metadata a text editor would otherwise need. Grounded exactly
// on neotools/text_file.py's export_text_from_neo / import_text_to_neo.
package textcodec

import (
	"bufio"
	"fmt"
	"log"
	"os"
)

// untranslatable is the placeholder Neo code substituted for a Unicode
// character absent from the table's reverse mapping.
const untranslatable = 0x00

// Break-insertion tuning, per text_file.py's import_text_to_neo.
const (
	softBreakInterval = 40
	hardBreakInterval = 24
	minFileSize       = 256
)

// Special Neo codes recognized during decode.
const (
	codeUnused1      = 0xA4
	codeUnused2      = 0xA7
	codeCR           = 0x0D
	codeLineBreakSpaceNew = 0x81
	codeLineBreakSpaceOld = 0xA1
	codeLineBreakTabNew   = 0x8D
	codeLineBreakTabOld   = 0xA3
	codePeriodBreak  = 0x8F
	codeLineBreakHyphen = 0xAD
	codeEscape       = 0xB0
)

// Decode translates Neo-encoded text to a Go string, following
// export_text_from_neo's per-byte state machine: certain codes are dropped,
// remapped to their plain-text equivalent, or introduce an escaped literal
// code point via the 0xB0 ... 0xB0 bracket.
func Decode(text []byte, table Table) string {
	var out []rune
	i := 0
	for i < len(text) {
		code := rune(text[i])
		i++
		isEscaped := false

		switch {
		case code == codeUnused1 || code == codeUnused2:
			continue
		case code == codeCR:
			code = 0x0A
		case code == codeLineBreakSpaceNew || code == codeLineBreakSpaceOld:
			code = 0x20
		case code == codeLineBreakTabNew:
			code = 0x09
		case code == codePeriodBreak:
			continue
		case code == codeLineBreakTabOld:
			code = 0x09
		case code == codeLineBreakHyphen:
			code = 0x2D
		case code == codeEscape:
			if len(text)-i < 2 {
				// Truncated escape sequence: fall through using the raw
				// code's table entry, matching the original's logged-but-
				// tolerated malformed input.
				break
			}
			isEscaped = true
			code = rune(text[i])
			i++
			if text[i] == codeEscape {
				i++
			}
		case code >= 0xA1 && code <= 0xBF:
			log.Printf("textcodec: possibly untrapped escape 0x%02x", byte(code))
			continue
		}

		var ch rune
		skipConversion := !isEscaped && (code == 0x09 || code == 0x0A || code == 0x0D)
		if skipConversion {
			ch = code
		} else {
			ch = table.NeoToUnicode[code]
		}
		out = append(out, ch)
	}
	return string(out)
}

// Encode translates a Go string to Neo-encoded bytes, inserting soft breaks
// (retrofitting the most recent breakable character with its
// line-breaking-hint variant) every softBreakInterval characters, and a hard
// break marker every hardBreakInterval characters if no breakable point was
// available to retrofit. Output is padded to minFileSize with the "unused
// space" pad byte, matching import_text_to_neo.
func Encode(text string, table Table) []byte {
	var buf []byte
	softBreakCount := 0
	hardBreakCount := 0
	lastBreakOpportunity := 0

	for _, char := range text {
		escape := false
		code, ok := table.UnicodeToNeo[char]
		var code32 rune
		if !ok {
			code32 = untranslatable
		} else {
			code32 = rune(code)
		}
		if code32 == 0x81 {
			code32 = 0xAC // avoid clashing with the line-break-space hint
		}
		if (code32 >= 0xA1 && code32 <= 0xBF) || code32 == 0x09 || code32 == 0x0A || code32 == 0x0D {
			escape = true
		}
		if char == '\t' {
			code32 = 0x09
		} else if char == '\r' || char == '\n' {
			code32 = 0x0D
		}

		isBreak := !escape && code32 == 0x0D
		isBreakable := !escape && (code32 == 0x2D || code32 == 0x20 || code32 == 0x09)
		hardBreakCount++
		softBreakCount++

		switch {
		case isBreak:
			lastBreakOpportunity = 0
			softBreakCount = 0
			hardBreakCount = 0
		case isBreakable:
			lastBreakOpportunity = len(buf)
			hardBreakCount = 0
		case hardBreakCount >= hardBreakInterval:
			buf = append(buf, codePeriodBreak)
			softBreakCount = 0
			hardBreakCount = 0
			lastBreakOpportunity = 0
		}

		if escape {
			buf = append(buf, codeEscape, byte(code32), codeEscape)
		} else {
			buf = append(buf, byte(code32))
		}

		if softBreakCount >= softBreakInterval && lastBreakOpportunity != 0 {
			switch buf[lastBreakOpportunity] {
			case 0x2D:
				buf[lastBreakOpportunity] = codeLineBreakHyphen
			case 0x20:
				buf[lastBreakOpportunity] = codeLineBreakSpaceNew
			case 0x09:
				buf[lastBreakOpportunity] = codeLineBreakTabNew
			}
			softBreakCount = 0
			hardBreakCount = 0
			lastBreakOpportunity = 0
		}
	}

	if len(buf) < minFileSize {
		pad := make([]byte, minFileSize-len(buf))
		for i := range pad {
			pad[i] = codeUnused2
		}
		buf = append(buf, pad...)
	}
	return buf
}

// LoadTableFile reads a 256-line character-map override, one Neo code point
// per line (line N maps code N), per spec.md §4.8. The file must contain
// exactly 256 lines.
func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("textcodec: opening character map %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Table{}, fmt.Errorf("textcodec: reading character map %s: %w", path, err)
	}
	if len(lines) != 256 {
		return Table{}, fmt.Errorf("textcodec: character map must contain 256 lines, got %d", len(lines))
	}

	var runes [256]rune
	for i, line := range lines {
		r := []rune(line)
		if len(r) != 1 {
			return Table{}, fmt.Errorf("textcodec: line %d must contain exactly one character, got %q", i, line)
		}
		runes[i] = r[0]
	}
	return newTable(runes), nil
}
