package xmlpull

// ReaderConfig controls reader behavior. The zero value is not directly
// usable; construct one with DefaultReaderConfig and adjust fields, the
// same plain-struct-with-constructor shape the teacher uses for
// DecoderOptions rather than a functional-options layer (builder-style
// setters are an external concern, spec §1).
type ReaderConfig struct {
	TrimWhitespace            bool
	WhitespaceToCharacters    bool
	CDataToCharacters         bool
	IgnoreComments            bool
	CoalesceCharacters        bool
	IgnoreRootLevelWhitespace bool

	// IgnoreEndOfStream puts the reader in streaming mode: an EOF
	// encountered mid-construct is reported as a transient error instead
	// of a sticky one, so a caller can append more bytes to the source and
	// call Next again (spec §4.3, "Terminal behavior").
	IgnoreEndOfStream bool

	// AcceptedXMLVersions lists the version strings the XML declaration
	// may declare. TolerantVersions additionally accepts any "1.x" pattern
	// (spec §9, "Version handling" open question).
	AcceptedXMLVersions []string
	TolerantVersions     bool

	MaxEntityExpansionDepth  int
	MaxEntityExpansionLength int
	MaxNameLength            int
	MaxAttributes            int
	MaxDataLength            int
}

// DefaultReaderConfig returns the configuration used when none is supplied:
// conservative entity-expansion bounds, strict version acceptance, and no
// automatic whitespace or CDATA folding.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		AcceptedXMLVersions:      []string{"1.0", "1.1"},
		MaxEntityExpansionDepth:  10,
		MaxEntityExpansionLength: 64_000,
		MaxNameLength:            4_096,
		MaxAttributes:            1_024,
		MaxDataLength:            10 << 20,
	}
}

// WriterConfig controls the Writer's serialization behavior.
type WriterConfig struct {
	WriteDocumentDeclaration bool
	PerformIndent            bool
	IndentString             string
	LineSeparator            string
	PerformEscaping          bool
	NormalizeEmptyElements   bool
	PadSelfClosing           bool
	KeepElementNamesStack    bool
	AutopadComments          bool
	CDataToCharacters        bool
}

// DefaultWriterConfig returns a configuration that writes a leading
// declaration, escapes text, and normalizes empty elements, but does not
// pretty-print — the common library-default shape.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		WriteDocumentDeclaration: true,
		PerformEscaping:          true,
		NormalizeEmptyElements:   true,
		KeepElementNamesStack:    true,
		LineSeparator:            "\n",
		IndentString:             "  ",
	}
}
