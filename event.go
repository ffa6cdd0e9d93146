package xmlpull

// Event is the tagged variant produced by Reader.Next and consumed by
// Writer's Emit* operations. Concrete types below are the closed set;
// a type switch over Event is the idiomatic Go rendering of the spec's
// tagged union (the same translation the teacher uses for its NodeType
// constant family in core.go, there encoded as integers instead of an
// interface because DOM nodes already carry a type tag method).
type Event interface{ isEvent() }

// StartDocument is emitted once, derived from an optional leading XML
// declaration or from reader defaults when none was present.
type StartDocument struct {
	Version    string
	Encoding   string
	Standalone *bool // nil when the declaration omitted standalone
}

// EndDocument is emitted once the root element has closed and the input is
// exhausted. Further polls repeat it (spec §4.3, "Terminal behavior").
type EndDocument struct{}

// ProcessingInstruction is any "<?target data?>" other than the XML
// declaration itself.
type ProcessingInstruction struct {
	Name string
	Data string
}

// Doctype carries the structured fields chosen for the flagged open
// question in spec §9 (inline ids, not a deferred-lookup handle).
type Doctype struct {
	Name     string
	PublicID string // "" when absent
	SystemID string // "" when absent
}

// StartElement carries the resolved name, attributes in document order,
// and a snapshot of namespace bindings visible at this element (spec §3,
// NamespaceStack invariant).
type StartElement struct {
	Name       QualifiedName
	Attributes []Attribute
	Namespace  map[string]string // prefix ("" = default) -> uri, effective bindings
}

// EndElement closes the most recently opened, not-yet-closed StartElement.
type EndElement struct {
	Name QualifiedName
}

// Characters is parsed character data (PCDATA), possibly coalesced from
// adjacent runs when ReaderConfig.CoalesceCharacters is set.
type Characters string

// CData is the content of a "<![CDATA[...]]>" section, not escape-processed.
type CData string

// Comment is the text between "<!--" and "-->", not escape-processed.
type Comment string

// Whitespace is a pure-whitespace character run, distinguished from
// Characters so callers can tell "structurally insignificant" text apart
// from real content (spec §4.3, promoted to Characters when
// ReaderConfig.WhitespaceToCharacters is set).
type Whitespace string

func (StartDocument) isEvent()         {}
func (EndDocument) isEvent()           {}
func (ProcessingInstruction) isEvent() {}
func (Doctype) isEvent()               {}
func (StartElement) isEvent()          {}
func (EndElement) isEvent()            {}
func (Characters) isEvent()            {}
func (CData) isEvent()                 {}
func (Comment) isEvent()               {}
func (Whitespace) isEvent()            {}
