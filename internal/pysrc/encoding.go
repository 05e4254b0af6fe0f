package pysrc

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// EncodingResult describes how a source file's encoding was determined.
type EncodingResult struct {
	Encoding   string  `json:"encoding"`
	Confidence float64 `json:"confidence"`
	HasBOM     bool    `json:"has_bom"`
	Declared   bool    `json:"declared,omitempty"`
}

// Python accepts the coding declaration only on the first two lines.
var codingRe = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*([-_.a-zA-Z0-9]+)`)

// DetectEncoding resolves the encoding of Python source following the
// language's own rules: a BOM wins, then a PEP 263 coding declaration in the
// first two lines, then UTF-8 (the default since Python 3).
func DetectEncoding(data []byte) EncodingResult {
	if len(data) == 0 {
		return EncodingResult{Encoding: "utf-8", Confidence: 1.0}
	}

	if result, ok := detectBOM(data); ok {
		return result
	}

	if name, ok := declaredEncoding(data); ok {
		if lookupEncoding(name) != nil || name == "utf-8" || name == "ascii" {
			return EncodingResult{Encoding: name, Confidence: 1.0, Declared: true}
		}
	}

	if utf8.Valid(data) {
		return EncodingResult{Encoding: "utf-8", Confidence: 0.95}
	}

	return detectStatistical(data)
}

const maxSampleSize = 8192

// detectStatistical scores the decodable charsets against a sample and picks
// the best. Reached only for undeclared files that are not valid UTF-8, so
// the baseline guess is the western single-byte superset.
func detectStatistical(data []byte) EncodingResult {
	sample := data
	if len(sample) > maxSampleSize {
		sample = sample[:maxSampleSize]
	}

	candidates := []EncodingResult{
		{Encoding: "utf-16le", Confidence: scoreUTF16(sample, 1)},
		{Encoding: "utf-16be", Confidence: scoreUTF16(sample, 0)},
		{Encoding: "windows-1252", Confidence: scoreRanges(sample, byteRange{0x80, 0x9F, 0.3}, byteRange{0xA0, 0xFF, 0.1})},
		{Encoding: "iso-8859-1", Confidence: scoreLatin1(sample)},
		{Encoding: "iso-8859-2", Confidence: scoreRanges(sample, byteRange{0xA0, 0xFF, 0.08})},
		{Encoding: "iso-8859-5", Confidence: scoreRanges(sample, byteRange{0xC0, 0xFF, 0.1})},
		{Encoding: "iso-8859-7", Confidence: scoreRanges(sample, byteRange{0xA0, 0xFF, 0.08})},
		{Encoding: "windows-1250", Confidence: scoreRanges(sample, byteRange{0x80, 0x9F, 0.1}, byteRange{0xC0, 0xFF, 0.1})},
		{Encoding: "windows-1251", Confidence: scoreRanges(sample, byteRange{0xC0, 0xFF, 0.12})},
		{Encoding: "koi8-r", Confidence: scoreRanges(sample, byteRange{0xC0, 0xFF, 0.1})},
		{Encoding: "koi8-u", Confidence: scoreRanges(sample, byteRange{0xC0, 0xFF, 0.1})},
		{Encoding: "shift-jis", Confidence: scorePairs(sample, byteIn(0x81, 0x9F, 0xE0, 0xEF), byteIn(0x40, 0x7E, 0x80, 0xFC))},
		{Encoding: "euc-jp", Confidence: scorePairs(sample, byteIn(0xA1, 0xFE), byteIn(0xA1, 0xFE))},
		{Encoding: "gbk", Confidence: scorePairs(sample, byteIn(0x81, 0xFE), byteIn(0x40, 0x7E, 0x80, 0xFE))},
		{Encoding: "big5", Confidence: scorePairs(sample, byteIn(0xA1, 0xF9), byteIn(0x40, 0x7E, 0x80, 0xFE))},
		{Encoding: "euc-kr", Confidence: scorePairs(sample, byteIn(0xA1, 0xFE), byteIn(0xA1, 0xFE))},
	}

	best := EncodingResult{Encoding: "windows-1252", Confidence: 0.3}
	for _, cand := range candidates {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}
	return best
}

type byteRange struct {
	lo, hi byte
	weight float64
}

func scoreRanges(data []byte, ranges ...byteRange) float64 {
	score := 0.0
	hit := false
	for _, b := range data {
		for _, r := range ranges {
			if b >= r.lo && b <= r.hi {
				score += r.weight
				hit = true
				break
			}
		}
	}
	if !hit {
		return 0
	}
	return score / float64(len(data))
}

// scoreLatin1 rules latin-1 out when C1 control bytes appear; they are
// unassigned there but common in windows-1252 text.
func scoreLatin1(data []byte) float64 {
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			return 0
		}
	}
	return scoreRanges(data, byteRange{0xA0, 0xFF, 0.1})
}

// byteIn builds a membership test from lo,hi bound pairs.
func byteIn(bounds ...byte) func(byte) bool {
	return func(b byte) bool {
		for i := 0; i+1 < len(bounds); i += 2 {
			if b >= bounds[i] && b <= bounds[i+1] {
				return true
			}
		}
		return false
	}
}

// scorePairs credits double-byte sequences with a valid lead and trail byte.
func scorePairs(data []byte, lead, trail func(byte) bool) float64 {
	score := 0.0
	hit := false
	for i := 0; i+1 < len(data); i++ {
		if lead(data[i]) && trail(data[i+1]) {
			score += 0.15
			hit = true
			i++
		}
	}
	if !hit {
		return 0
	}
	return score / float64(len(data))
}

// scoreUTF16 checks for the null-byte pattern ASCII-heavy UTF-16 text shows
// at even (BE) or odd (LE) offsets.
func scoreUTF16(data []byte, offset int) float64 {
	if len(data) < 2 || len(data)%2 != 0 {
		return 0
	}
	nulls := 0
	for i := offset; i < len(data); i += 2 {
		if data[i] == 0 {
			nulls++
		}
	}
	if float64(nulls)/float64(len(data)/2) > 0.75 {
		return 0.8
	}
	return 0
}

func detectBOM(data []byte) (EncodingResult, bool) {
	if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
		return EncodingResult{Encoding: "utf-8", Confidence: 1.0, HasBOM: true}, true
	}
	if len(data) >= 2 {
		if bytes.Equal(data[:2], []byte{0xFF, 0xFE}) {
			return EncodingResult{Encoding: "utf-16le", Confidence: 1.0, HasBOM: true}, true
		}
		if bytes.Equal(data[:2], []byte{0xFE, 0xFF}) {
			return EncodingResult{Encoding: "utf-16be", Confidence: 1.0, HasBOM: true}, true
		}
	}
	return EncodingResult{}, false
}

func declaredEncoding(data []byte) (string, bool) {
	rest := data
	for i := 0; i < 2 && len(rest) > 0; i++ {
		line := rest
		if idx := bytes.IndexByte(rest, '\n'); idx >= 0 {
			line = rest[:idx]
			rest = rest[idx+1:]
		} else {
			rest = nil
		}
		if m := codingRe.FindSubmatch(line); m != nil {
			return normalizeEncodingName(string(m[1])), true
		}
	}
	return "", false
}

func normalizeEncodingName(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	switch name {
	case "utf8", "u8":
		return "utf-8"
	case "latin-1", "latin1", "iso8859-1":
		return "iso-8859-1"
	case "cp1252":
		return "windows-1252"
	case "cp1251":
		return "windows-1251"
	case "sjis", "shift-jis", "shift-jis-2004":
		return "shift-jis"
	default:
		return name
	}
}

func lookupEncoding(name string) encoding.Encoding {
	switch name {
	case "iso-8859-1":
		return charmap.ISO8859_1
	case "iso-8859-2":
		return charmap.ISO8859_2
	case "iso-8859-5":
		return charmap.ISO8859_5
	case "iso-8859-7":
		return charmap.ISO8859_7
	case "iso-8859-15":
		return charmap.ISO8859_15
	case "windows-1250":
		return charmap.Windows1250
	case "windows-1251":
		return charmap.Windows1251
	case "windows-1252":
		return charmap.Windows1252
	case "koi8-r":
		return charmap.KOI8R
	case "koi8-u":
		return charmap.KOI8U
	case "shift-jis":
		return japanese.ShiftJIS
	case "euc-jp":
		return japanese.EUCJP
	case "iso-2022-jp":
		return japanese.ISO2022JP
	case "gbk":
		return simplifiedchinese.GBK
	case "gb18030":
		return simplifiedchinese.GB18030
	case "big5":
		return traditionalchinese.Big5
	case "euc-kr":
		return korean.EUCKR
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	default:
		return nil
	}
}

// NormalizeToUTF8 decodes source bytes to a UTF-8 string, stripping any BOM
// and replacing undecodable sequences.
func NormalizeToUTF8(data []byte, detected EncodingResult) string {
	data = stripBOM(data, detected)

	switch detected.Encoding {
	case "ascii", "utf-8":
		return string(bytes.ToValidUTF8(data, []byte("�")))
	default:
		enc := lookupEncoding(detected.Encoding)
		if enc == nil {
			return string(bytes.ToValidUTF8(data, []byte("�")))
		}
		return decodeWithFallback(data, enc.NewDecoder())
	}
}

func stripBOM(data []byte, detected EncodingResult) []byte {
	if !detected.HasBOM {
		return data
	}
	switch detected.Encoding {
	case "utf-8":
		if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
			return data[3:]
		}
	case "utf-16le":
		if len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xFE}) {
			return data[2:]
		}
	case "utf-16be":
		if len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFE, 0xFF}) {
			return data[2:]
		}
	}
	return data
}

func decodeWithFallback(data []byte, decoder *encoding.Decoder) string {
	if len(data) == 0 {
		return ""
	}

	reader := transform.NewReader(bytes.NewReader(data), decoder)
	result, err := io.ReadAll(reader)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}

	return string(bytes.ToValidUTF8(result, []byte("�")))
}

// ReadFileAsUTF8 reads a Python source file and returns its content decoded
// to UTF-8 along with the encoding decision.
func ReadFileAsUTF8(path string) (string, EncodingResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", EncodingResult{}, err
	}

	detected := DetectEncoding(data)
	return NormalizeToUTF8(data, detected), detected, nil
}
