package xmlpull

import (
	"io"
	"strings"
)

// escapeContext selects which characters an escaper treats specially.
// Grounded on the teacher's escape.go byte-scanning shape (the last/esc
// walk below is the same pattern); the character sets themselves follow
// spec §3/§4.4 instead of the teacher's single DOM-compatibility table:
// PCDATA escapes fewer characters than an attribute value does.
type escapeContext int

const (
	escapeContextText escapeContext = iota
	escapeContextAttr
)

// escapeTo writes s to w with ctx's characters replaced by their entity
// form. PCDATA escapes &, <, > and \r; attribute values additionally
// escape ", ', \n and \t (spec §4.4).
func escapeTo(w io.Writer, s string, ctx escapeContext) error {
	last := 0
	for i := 0; i < len(s); i++ {
		var ent string
		switch s[i] {
		case '&':
			ent = "&amp;"
		case '<':
			ent = "&lt;"
		case '>':
			ent = "&gt;"
		case '\r':
			ent = "&#xD;"
		case '"':
			if ctx == escapeContextAttr {
				ent = "&quot;"
			}
		case '\'':
			if ctx == escapeContextAttr {
				ent = "&apos;"
			}
		case '\n':
			if ctx == escapeContextAttr {
				ent = "&#xA;"
			}
		case '\t':
			if ctx == escapeContextAttr {
				ent = "&#x9;"
			}
		}
		if ent == "" {
			continue
		}
		if _, err := io.WriteString(w, s[last:i]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ent); err != nil {
			return err
		}
		last = i + 1
	}
	_, err := io.WriteString(w, s[last:])
	return err
}

// EscapeText returns s with the PCDATA character set escaped.
func EscapeText(s string) string {
	var b strings.Builder
	_ = escapeTo(&b, s, escapeContextText)
	return b.String()
}

// EscapeAttr returns s with the attribute-value character set escaped.
func EscapeAttr(s string) string {
	var b strings.Builder
	_ = escapeTo(&b, s, escapeContextAttr)
	return b.String()
}

// unescapeEntity resolves one of the five built-in named entities (lt, gt,
// amp, quot, apos) to its character; numeric character references are
// handled by the parser itself. It is used by the parser when expanding
// references in attribute values and text, and kept here alongside the
// escaper it inverts (the teacher pairs Escape/Unescape in the same file for
// the same reason).
func unescapeEntity(name string) (rune, bool) {
	switch name {
	case "lt":
		return '<', true
	case "gt":
		return '>', true
	case "amp":
		return '&', true
	case "quot":
		return '"', true
	case "apos":
		return '\'', true
	}
	return 0, false
}
