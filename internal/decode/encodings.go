package decode

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Candidate is one entry of the ordered encoding cascade. A nil Encoding
// means UTF-8.
type Candidate struct {
	Name     string
	Encoding encoding.Encoding
}

// DefaultEncodings is the cascade used when none is configured. Korean code
// pages come before the Latin-1 family because Latin-1 accepts any byte.
func DefaultEncodings() []string {
	return []string{"utf-8", "cp949", "euc-kr", "latin-1", "cp1252", "iso-8859-1"}
}

var knownEncodings = map[string]encoding.Encoding{
	"utf-8":        nil,
	"utf8":         nil,
	"cp949":        korean.EUCKR,
	"euc-kr":       korean.EUCKR,
	"latin-1":      charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"cp1252":       charmap.Windows1252,
	"windows-1252": charmap.Windows1252,
	"shift_jis":    japanese.ShiftJIS,
	"euc-jp":       japanese.EUCJP,
	"gbk":          simplifiedchinese.GBK,
	"big5":         traditionalchinese.Big5,
}

// Candidates resolves encoding names into an ordered cascade.
func Candidates(names []string) ([]Candidate, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("encoding list is empty")
	}
	out := make([]Candidate, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		enc, ok := knownEncodings[key]
		if !ok {
			return nil, fmt.Errorf("unknown encoding %q", name)
		}
		out = append(out, Candidate{Name: key, Encoding: enc})
	}
	return out, nil
}

// strict decodes raw and fails on any byte sequence the encoding cannot map.
func (c Candidate) strict(raw []byte) ([]byte, error) {
	if c.Encoding == nil {
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%s: invalid byte sequence", c.Name)
		}
		return raw, nil
	}
	out, err := c.Encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	// x/text decoders substitute U+FFFD instead of failing; none of the
	// legacy code pages can produce it from valid input.
	if bytes.ContainsRune(out, utf8.RuneError) {
		return nil, fmt.Errorf("%s: undecodable byte sequence", c.Name)
	}
	return out, nil
}

// lossy decodes raw, replacing undecodable sequences with U+FFFD.
func (c Candidate) lossy(raw []byte) []byte {
	if c.Encoding == nil {
		return bytes.ToValidUTF8(raw, []byte("\uFFFD"))
	}
	out, err := c.Encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return bytes.ToValidUTF8(raw, []byte("\uFFFD"))
	}
	return out
}
