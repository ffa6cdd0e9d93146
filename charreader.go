package xmlpull

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding is one of the five character encodings this reader recognizes.
// Anything else fails with an EncodingError carrying KindUnsupportedEncoding.
type Encoding string

const (
	EncodingUTF8    Encoding = "UTF-8"
	EncodingUTF16LE Encoding = "UTF-16LE"
	EncodingUTF16BE Encoding = "UTF-16BE"
	EncodingASCII   Encoding = "ASCII"
	EncodingLatin1  Encoding = "ISO-8859-1"
)

// normalizeEncodingName canonicalizes a declared encoding name per spec §4.1:
// comparison is case-insensitive and ignores dashes/underscores.
func normalizeEncodingName(name string) string {
	b := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '-' || c == '_' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b = append(b, c)
	}
	return string(b)
}

// resolveEncoding maps a declared or detected encoding name to one of the
// five recognized encodings. Names outside that set fail with
// KindUnsupportedEncoding, falling back to the IANA registry only to catch
// other registered aliases of UTF-8 and ISO-8859-1 (e.g. "ISO_8859-1:1987").
func resolveEncoding(name string) (Encoding, error) {
	switch normalizeEncodingName(name) {
	case "utf8":
		return EncodingUTF8, nil
	case "utf16le":
		return EncodingUTF16LE, nil
	case "utf16be":
		return EncodingUTF16BE, nil
	case "ascii", "usascii", "ansix3.41968":
		return EncodingASCII, nil
	case "iso88591", "latin1":
		return EncodingLatin1, nil
	}
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		switch enc {
		case unicode.UTF8:
			return EncodingUTF8, nil
		case charmap.ISO8859_1:
			return EncodingLatin1, nil
		}
	}
	return "", &EncodingError{Kind: KindUnsupportedEncoding, Message: fmt.Sprintf("unsupported encoding %q", name)}
}

// newDecodingReader wraps raw bytes with the transform.Reader that turns enc
// into UTF-8. UTF-8 and ASCII are byte-compatible supersets of the wire
// format we consume, so they pass through untouched.
func newDecodingReader(r io.Reader, enc Encoding) io.Reader {
	switch enc {
	case EncodingUTF16LE:
		return transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
	case EncodingUTF16BE:
		return transform.NewReader(r, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder())
	case EncodingLatin1:
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	default:
		return r
	}
}

// CharReader decodes raw bytes into Unicode scalars, tracking TextPosition
// and normalizing line endings per the XML spec (CRLF and bare CR both
// become LF before the lexer ever sees them).
type CharReader struct {
	raw        *bufio.Reader // underlying bytes, pre-transform
	decoded    *bufio.Reader // raw wrapped in the active encoding's transform
	enc        Encoding
	bomPresent bool
	row, col   int
}

// NewCharReader sniffs a leading BOM (UTF-8, UTF-16LE, UTF-16BE) and falls
// back to UTF-8 when none is present.
func NewCharReader(r io.Reader) (*CharReader, error) {
	raw := bufio.NewReader(r)
	enc, bomPresent, err := sniffBOM(raw)
	if err != nil {
		return nil, err
	}
	cr := &CharReader{
		raw:        raw,
		enc:        enc,
		bomPresent: bomPresent,
	}
	cr.decoded = bufio.NewReader(newDecodingReader(raw, enc))
	return cr, nil
}

func sniffBOM(raw *bufio.Reader) (Encoding, bool, error) {
	head, _ := raw.Peek(3)
	switch {
	case len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF:
		raw.Discard(3)
		return EncodingUTF8, true, nil
	case len(head) >= 2 && head[0] == 0xFF && head[1] == 0xFE:
		raw.Discard(2)
		return EncodingUTF16LE, true, nil
	case len(head) >= 2 && head[0] == 0xFE && head[1] == 0xFF:
		raw.Discard(2)
		return EncodingUTF16BE, true, nil
	}
	return EncodingUTF8, false, nil
}

// DetectedEncoding reports the encoding chosen from the BOM, or the UTF-8
// default when no BOM was present; a declared encoding that ConfirmDeclared
// switched to replaces that default.
func (cr *CharReader) DetectedEncoding() Encoding { return cr.enc }

// ConfirmDeclared reconciles a declared encoding (from the XML declaration)
// against the one chosen from the BOM. A BOM always wins: a mismatching
// declaration is ConflictingEncoding. Without a BOM, the declared encoding
// becomes authoritative for the rest of the stream provided it is one of
// the byte-oriented encodings (UTF-8/ASCII/Latin-1) that share a byte
// layout with the UTF-8 default used to decode the declaration itself;
// switching into UTF-16 without a BOM can't be done safely mid-stream and
// is reported as ConflictingEncoding instead of silently misreading.
func (cr *CharReader) ConfirmDeclared(name string) error {
	declared, err := resolveEncoding(name)
	if err != nil {
		return err
	}
	if cr.bomPresent {
		if declared != cr.enc {
			return &EncodingError{Kind: KindConflictingEncoding,
				Message: fmt.Sprintf("declared encoding %s, but BOM indicates %s", declared, cr.enc)}
		}
		return nil
	}
	switch declared {
	case EncodingUTF8, EncodingASCII, EncodingLatin1:
		if declared != cr.enc {
			// Bytes the current reader has already pulled from raw but not
			// yet decoded are replayed through the new decoder first.
			var rest io.Reader = cr.raw
			if n := cr.decoded.Buffered(); n > 0 {
				buffered, _ := cr.decoded.Peek(n)
				rest = io.MultiReader(bytes.NewReader(append([]byte(nil), buffered...)), cr.raw)
			}
			cr.decoded = bufio.NewReader(newDecodingReader(rest, declared))
			cr.enc = declared
		}
		return nil
	default:
		return &EncodingError{Kind: KindConflictingEncoding,
			Message: fmt.Sprintf("declared encoding %s requires a byte-order mark", declared)}
	}
}

// NextRune decodes the next Unicode scalar, normalizing "\r\n" and bare "\r"
// to "\n". It returns io.EOF (unwrapped) once the stream is exhausted.
func (cr *CharReader) NextRune() (rune, TextPosition, error) {
	pos := TextPosition{Row: cr.row, Column: cr.col}
	r, size, err := cr.decoded.ReadRune()
	if err != nil {
		if err == io.EOF {
			return 0, pos, io.EOF
		}
		return 0, pos, &EncodingError{Kind: KindUtf8, Message: err.Error(), Position: pos}
	}
	if size == 1 && r == 0xFFFD {
		// bufio.Reader.ReadRune reports RuneError for invalid UTF-8.
		return 0, pos, &EncodingError{Kind: KindUtf8, Message: "invalid UTF-8 sequence", Position: pos}
	}
	if r == '\r' {
		if next, err2 := cr.decoded.Peek(1); err2 == nil && len(next) == 1 && next[0] == '\n' {
			cr.decoded.Discard(1)
		}
		r = '\n'
	}
	if r == '\n' {
		cr.row++
		cr.col = 0
	} else {
		cr.col++
	}
	return r, pos, nil
}
