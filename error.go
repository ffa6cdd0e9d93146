package xmlpull

import "fmt"

// TextPosition locates a point in the input, counted from 0 in Unicode
// scalar units. A newline increments Row and resets Column.
type TextPosition struct {
	Row    int
	Column int
}

func (p TextPosition) String() string { return fmt.Sprintf("%d:%d", p.Row, p.Column) }

// Syntax error kinds. This is a closed enumeration; every SyntaxError built
// by this package carries one of these as its Kind, mirroring the teacher's
// DOMException{Name, Message} shape (core.go) rather than a Go error-wrapping
// chain, so callers and tests can switch on or substring-match a stable name.
const (
	KindUnexpectedEof                   = "UnexpectedEof"
	KindUnexpectedTokenBefore           = "UnexpectedTokenBefore"
	KindUnexpectedToken                 = "UnexpectedToken"
	KindUnclosedCdata                   = "UnclosedCdata"
	KindEntityTooBig                    = "EntityTooBig"
	KindUnexpectedXmlVersion            = "UnexpectedXmlVersion"
	KindInvalidStandaloneDeclaration    = "InvalidStandaloneDeclaration"
	KindUnknownMarkupDeclaration        = "UnknownMarkupDeclaration"
	KindInvalidXmlProcessingInstruction = "InvalidXmlProcessingInstruction"
	KindRedefinedAttribute              = "RedefinedAttribute"
	KindCannotRedefineXmlnsPrefix       = "CannotRedefineXmlnsPrefix"
	KindCannotRedefineXmlPrefix         = "CannotRedefineXmlPrefix"
	KindUnboundElementPrefix            = "UnboundElementPrefix"
	KindUnboundAttributePrefix          = "UnboundAttributePrefix"
	KindUnexpectedClosingTag            = "UnexpectedClosingTag"
	KindUnexpectedOpeningTag            = "UnexpectedOpeningTag"
	KindInvalidCharacterEntity          = "InvalidCharacterEntity"
	KindInvalidNumericEntity            = "InvalidNumericEntity"
	KindUndefinedEntity                 = "UndefinedEntity"
	KindEntityAddedAfterRoot            = "EntityAddedAfterRoot"
	KindExceededConfiguredLimit         = "ExceededConfiguredLimit"
	KindUnbalancedRootElement           = "UnbalancedRootElement"
	KindNoRootElement                   = "NoRootElement"

	KindUnsupportedEncoding = "UnsupportedEncoding"
	KindConflictingEncoding = "ConflictingEncoding"
	KindUtf8                = "Utf8"

	KindDocumentStartAlreadyEmitted                    = "DocumentStartAlreadyEmitted"
	KindEndElementNameIsNotEqualToLastStartElementName = "EndElementNameIsNotEqualToLastStartElementName"
)

// SyntaxError is a well-formedness or validation failure produced while
// reading. Kind is one of the Kind* constants above; Message is a short
// human-readable explanation stable enough for tests to substring-match
// (spec §7).
type SyntaxError struct {
	Kind     string
	Message  string
	Position TextPosition
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Position, e.Message)
}

func newSyntaxError(pos TextPosition, kind string, format string, args ...any) *SyntaxError {
	return &SyntaxError{Kind: kind, Message: fmt.Sprintf(format, args...), Position: pos}
}

// EncodingError reports a failure decoding the byte stream: an unsupported
// declared encoding, a declared encoding conflicting with a detected BOM, or
// an invalid code unit.
type EncodingError struct {
	Kind     string
	Message  string
	Position TextPosition
}

func (e *EncodingError) Error() string {
	if e.Position == (TextPosition{}) {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Position, e.Message)
}

// WriterError reports writer misuse: a double StartDocument, or an
// EndElement whose name doesn't match the open start tag.
type WriterError struct {
	Kind    string
	Message string
}

func (e *WriterError) Error() string { return e.Message }
