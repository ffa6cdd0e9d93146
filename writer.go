package xmlpull

import (
	"bufio"
	"io"
	"strings"
)

// indentFrameState tracks what a depth level has written so far, so
// indentation can be suppressed across mixed content (spec §4.4).
type indentFrameState uint8

const (
	wroteNothing indentFrameState = iota
	wroteMarkup
	wroteText
)

// Writer serializes the event vocabulary to UTF-8. It owns the namespace
// stack, the element-name stack (when configured), an indent-state stack
// one entry per open depth, and the deferred-close bookkeeping for
// self-closing normalization (spec §4.4, "Stateful").
type Writer struct {
	w   *bufio.Writer
	cfg WriterConfig
	ns  *NamespaceStack

	elemNames []QualifiedName
	indent    []indentFrameState

	startDocumentEmitted  bool
	justWroteStartElement bool
}

// NewWriter constructs a Writer over w with cfg.
func NewWriter(w io.Writer, cfg WriterConfig) *Writer {
	return &Writer{
		w:   bufio.NewWriter(w),
		cfg: cfg,
		ns:  NewNamespaceStack(),
	}
}

// Flush flushes any buffered output to the underlying writer.
func (wr *Writer) Flush() error { return wr.w.Flush() }

// Write serializes one event, dispatching to the matching Emit* operation.
// A caller that wants e.g. an implicit leading declaration should call
// Flush after the last event and rely on EmitStartDocument's default-arg
// path rather than calling Write directly for that one.
func (wr *Writer) Write(ev Event) error {
	switch e := ev.(type) {
	case StartDocument:
		return wr.EmitStartDocument(e.Version, e.Encoding, e.Standalone)
	case EndDocument:
		return wr.Flush()
	case ProcessingInstruction:
		return wr.EmitProcessingInstruction(e.Name, e.Data)
	case Doctype:
		return wr.emitDoctype(e)
	case StartElement:
		return wr.EmitStartElement(e.Name, e.Attributes)
	case EndElement:
		return wr.EmitEndElement(&e.Name)
	case Characters:
		return wr.EmitCharacters(string(e))
	case CData:
		return wr.EmitCData(string(e))
	case Comment:
		return wr.EmitComment(string(e))
	case Whitespace:
		return wr.EmitCharacters(string(e))
	}
	return nil
}

func (wr *Writer) ensureStartDocument() error {
	if wr.startDocumentEmitted || !wr.cfg.WriteDocumentDeclaration {
		return nil
	}
	return wr.EmitStartDocument("1.0", "UTF-8", nil)
}

// EmitStartDocument writes the leading XML declaration. Fails with
// DocumentStartAlreadyEmitted if one was already written.
func (wr *Writer) EmitStartDocument(version, encoding string, standalone *bool) error {
	if wr.startDocumentEmitted {
		return &WriterError{Kind: KindDocumentStartAlreadyEmitted, Message: "start document was already emitted"}
	}
	wr.startDocumentEmitted = true
	if version == "" {
		version = "1.0"
	}
	if _, err := io.WriteString(wr.w, `<?xml version="`+version+`"`); err != nil {
		return err
	}
	if encoding != "" {
		if _, err := io.WriteString(wr.w, ` encoding="`+encoding+`"`); err != nil {
			return err
		}
	}
	if standalone != nil {
		v := "no"
		if *standalone {
			v = "yes"
		}
		if _, err := io.WriteString(wr.w, ` standalone="`+v+`"`); err != nil {
			return err
		}
	}
	_, err := io.WriteString(wr.w, "?>")
	return err
}

// closePendingStartTag finishes a deferred '<name ...' with '>' when the
// next operation reveals the element is not self-closing.
func (wr *Writer) closePendingStartTag() error {
	if !wr.justWroteStartElement {
		return nil
	}
	wr.justWroteStartElement = false
	_, err := wr.w.WriteString(">")
	return err
}

func (wr *Writer) depth() int { return len(wr.indent) }

func (wr *Writer) markWrote(state indentFrameState) {
	if len(wr.indent) == 0 {
		return
	}
	top := len(wr.indent) - 1
	if wr.indent[top] == wroteText {
		return
	}
	wr.indent[top] = state
}

// beforeMarkup writes indentation ahead of a markup-producing write, unless
// the current frame has already written text (mixed content suppresses
// indentation through to the matching end tag, spec §4.4).
func (wr *Writer) beforeMarkup() error {
	if !wr.cfg.PerformIndent {
		return nil
	}
	if len(wr.indent) > 0 && wr.indent[len(wr.indent)-1] == wroteText {
		return nil
	}
	if wr.depth() == 0 && !wr.startDocumentEmitted {
		return nil
	}
	if _, err := io.WriteString(wr.w, wr.cfg.LineSeparator); err != nil {
		return err
	}
	_, err := io.WriteString(wr.w, strings.Repeat(wr.cfg.IndentString, wr.depth()))
	return err
}

// EmitProcessingInstruction writes "<?name[ data]?>".
func (wr *Writer) EmitProcessingInstruction(name, data string) error {
	if err := wr.ensureStartDocument(); err != nil {
		return err
	}
	if err := wr.closePendingStartTag(); err != nil {
		return err
	}
	if err := wr.beforeMarkup(); err != nil {
		return err
	}
	if _, err := io.WriteString(wr.w, "<?"+name); err != nil {
		return err
	}
	if data != "" {
		if _, err := io.WriteString(wr.w, " "+data); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(wr.w, "?>"); err != nil {
		return err
	}
	wr.markWrote(wroteMarkup)
	return nil
}

func (wr *Writer) emitDoctype(d Doctype) error {
	if err := wr.ensureStartDocument(); err != nil {
		return err
	}
	if err := wr.closePendingStartTag(); err != nil {
		return err
	}
	if err := wr.beforeMarkup(); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE ")
	b.WriteString(d.Name)
	switch {
	case d.PublicID != "":
		b.WriteString(` PUBLIC "` + d.PublicID + `"`)
		if d.SystemID != "" {
			b.WriteString(` "` + d.SystemID + `"`)
		}
	case d.SystemID != "":
		b.WriteString(` SYSTEM "` + d.SystemID + `"`)
	}
	b.WriteString(">")
	if _, err := io.WriteString(wr.w, b.String()); err != nil {
		return err
	}
	wr.markWrote(wroteMarkup)
	return nil
}

// EmitStartElement writes "<name", any newly bound xmlns declarations for
// this element, then the attributes, leaving the closing '>' pending until
// EmitEndElement reveals whether the element is self-closing.
func (wr *Writer) EmitStartElement(name QualifiedName, attrs []Attribute) error {
	if err := wr.ensureStartDocument(); err != nil {
		return err
	}
	if err := wr.closePendingStartTag(); err != nil {
		return err
	}
	if err := wr.beforeMarkup(); err != nil {
		return err
	}

	qn := qnameText(name)
	if _, err := io.WriteString(wr.w, "<"+qn); err != nil {
		return err
	}

	wr.ns.Push()
	if _, err := io.WriteString(wr.w, wr.namespaceDeclsFor(name, attrs)); err != nil {
		return err
	}

	for _, a := range attrs {
		attrText := qnameText(a.Name)
		if _, err := io.WriteString(wr.w, " "+attrText+`="`+wr.escapeAttr(a.Value)+`"`); err != nil {
			return err
		}
	}

	if wr.cfg.KeepElementNamesStack {
		wr.elemNames = append(wr.elemNames, name)
	}
	wr.indent = append(wr.indent, wroteNothing)
	wr.justWroteStartElement = true
	return nil
}

// namespaceDeclsFor binds this element's own prefix and its attributes'
// prefixes onto the namespace stack's top frame (so Resolve/TopFrameBindings
// see them) and returns the xmlns declaration text for any prefix that was
// not already visible from an outer frame with the same URI binding. The
// writer infers "newly bound" purely from the caller-supplied QualifiedName
// values, since events arrive already resolved rather than carrying the raw
// xmlns attributes the reader consumed.
func (wr *Writer) namespaceDeclsFor(name QualifiedName, attrs []Attribute) string {
	type decl struct{ prefix, uri string }
	var decls []decl
	bind := func(prefix, uri string) {
		if prefix == "xml" || prefix == "xmlns" {
			return
		}
		if existing, ok := wr.ns.Resolve(prefix); ok && existing == uri {
			return
		}
		if _, ok := wr.ns.Resolve(prefix); !ok && uri == "" {
			return
		}
		wr.ns.Bind(prefix, uri)
		decls = append(decls, decl{prefix, uri})
	}
	if name.NamespaceURI != "" {
		bind(name.Prefix, name.NamespaceURI)
	}
	for _, a := range attrs {
		if a.Name.NamespaceURI != "" {
			bind(a.Name.Prefix, a.Name.NamespaceURI)
		}
	}
	var b strings.Builder
	for _, d := range decls {
		if d.prefix == "" {
			b.WriteString(` xmlns="` + wr.escapeAttr(d.uri) + `"`)
		} else {
			b.WriteString(` xmlns:` + d.prefix + `="` + wr.escapeAttr(d.uri) + `"`)
		}
	}
	return b.String()
}

func qnameText(n QualifiedName) string {
	if n.Prefix == "" {
		return n.Local
	}
	return n.Prefix + ":" + n.Local
}

// EmitEndElement closes the most recently opened element. name is optional:
// when KeepElementNamesStack is set and name disagrees with the tracked
// name, this fails with EndElementNameIsNotEqualToLastStartElementName.
func (wr *Writer) EmitEndElement(name *QualifiedName) error {
	var tracked *QualifiedName
	if wr.cfg.KeepElementNamesStack && len(wr.elemNames) > 0 {
		top := wr.elemNames[len(wr.elemNames)-1]
		tracked = &top
		wr.elemNames = wr.elemNames[:len(wr.elemNames)-1]
	}
	if tracked != nil && name != nil && (*tracked != *name) {
		return &WriterError{Kind: KindEndElementNameIsNotEqualToLastStartElementName,
			Message: "end element name does not match the last start element name"}
	}
	effective := tracked
	if effective == nil {
		effective = name
	}

	wasStart := wr.justWroteStartElement
	if wasStart && wr.cfg.NormalizeEmptyElements {
		wr.justWroteStartElement = false
		sep := "/>"
		if wr.cfg.PadSelfClosing {
			sep = " />"
		}
		if _, err := io.WriteString(wr.w, sep); err != nil {
			return err
		}
	} else {
		if err := wr.closePendingStartTag(); err != nil {
			return err
		}
		if !wasStart {
			if err := wr.beforeEndIndent(); err != nil {
				return err
			}
		}
		local := ""
		if effective != nil {
			local = qnameText(*effective)
		}
		if _, err := io.WriteString(wr.w, "</"+local+">"); err != nil {
			return err
		}
	}

	wr.ns.Pop()
	if len(wr.indent) > 0 {
		wr.indent = wr.indent[:len(wr.indent)-1]
	}
	wr.markWrote(wroteMarkup)
	return nil
}

// beforeEndIndent indents an end tag when its element wrote markup children
// but no text, matching the same mixed-content suppression as beforeMarkup.
func (wr *Writer) beforeEndIndent() error {
	if !wr.cfg.PerformIndent || len(wr.indent) == 0 {
		return nil
	}
	state := wr.indent[len(wr.indent)-1]
	if state != wroteMarkup {
		return nil
	}
	if _, err := io.WriteString(wr.w, wr.cfg.LineSeparator); err != nil {
		return err
	}
	_, err := io.WriteString(wr.w, strings.Repeat(wr.cfg.IndentString, wr.depth()-1))
	return err
}

func (wr *Writer) escapeAttr(s string) string {
	if !wr.cfg.PerformEscaping {
		return s
	}
	return EscapeAttr(s)
}

func (wr *Writer) escapeText(s string) string {
	if !wr.cfg.PerformEscaping {
		return s
	}
	return EscapeText(s)
}

// EmitCharacters writes PCDATA, escaped per cfg.PerformEscaping.
func (wr *Writer) EmitCharacters(s string) error {
	if err := wr.ensureStartDocument(); err != nil {
		return err
	}
	if err := wr.closePendingStartTag(); err != nil {
		return err
	}
	if _, err := io.WriteString(wr.w, wr.escapeText(s)); err != nil {
		return err
	}
	wr.markWrote(wroteText)
	return nil
}

// EmitCData writes a CDATA section, splitting any embedded "]]>" into two
// adjoining sections so the result stays well-formed (spec §4.4, §8 "CDATA
// escaping round-trip").
func (wr *Writer) EmitCData(s string) error {
	if wr.cfg.CDataToCharacters {
		return wr.EmitCharacters(s)
	}
	if err := wr.ensureStartDocument(); err != nil {
		return err
	}
	if err := wr.closePendingStartTag(); err != nil {
		return err
	}
	if err := wr.beforeMarkup(); err != nil {
		return err
	}
	escaped := strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
	if _, err := io.WriteString(wr.w, "<![CDATA["+escaped+"]]>"); err != nil {
		return err
	}
	wr.markWrote(wroteMarkup)
	return nil
}

// EmitComment writes a comment, splitting any embedded "--" so the result
// never contains an illegal run, with optional autopadding (spec §4.4, §8
// "Comment escaping").
func (wr *Writer) EmitComment(s string) error {
	if err := wr.ensureStartDocument(); err != nil {
		return err
	}
	if err := wr.closePendingStartTag(); err != nil {
		return err
	}
	if err := wr.beforeMarkup(); err != nil {
		return err
	}
	content := s
	for strings.Contains(content, "--") {
		content = strings.ReplaceAll(content, "--", "- -")
	}
	if strings.HasSuffix(content, "-") {
		content += " "
	}
	if wr.cfg.AutopadComments {
		if !strings.HasPrefix(content, " ") {
			content = " " + content
		}
		if !strings.HasSuffix(content, " ") {
			content += " "
		}
	}
	if _, err := io.WriteString(wr.w, "<!--"+content+"-->"); err != nil {
		return err
	}
	wr.markWrote(wroteMarkup)
	return nil
}
