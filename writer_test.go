package xmlpull_test

import (
	"strings"
	"testing"

	"github.com/gogo-agent/xmlpull"
)

func TestWriter_SimpleElement(t *testing.T) {
	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	w := xmlpull.NewWriter(&b, cfg)

	if err := w.Write(xmlpull.StartDocument{Version: "1.0", Encoding: "UTF-8"}); err != nil {
		t.Fatalf("StartDocument: %v", err)
	}
	if err := w.Write(xmlpull.StartElement{Name: xmlpull.QualifiedName{Local: "a"},
		Attributes: []xmlpull.Attribute{{Name: xmlpull.QualifiedName{Local: "p"}, Value: "q"}}}); err != nil {
		t.Fatalf("StartElement: %v", err)
	}
	if err := w.Write(xmlpull.EndElement{Name: xmlpull.QualifiedName{Local: "a"}}); err != nil {
		t.Fatalf("EndElement: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := `<?xml version="1.0" encoding="UTF-8"?><a p="q"/>`
	if got := b.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWriter_DoubleStartDocumentFails(t *testing.T) {
	var b strings.Builder
	w := xmlpull.NewWriter(&b, xmlpull.DefaultWriterConfig())
	if err := w.EmitStartDocument("1.0", "", nil); err != nil {
		t.Fatalf("first EmitStartDocument: %v", err)
	}
	err := w.EmitStartDocument("1.0", "", nil)
	we, ok := err.(*xmlpull.WriterError)
	if !ok || we.Kind != xmlpull.KindDocumentStartAlreadyEmitted {
		t.Fatalf("err = %#v, want WriterError{Kind: DocumentStartAlreadyEmitted}", err)
	}
}

func TestWriter_CDataSplitsEmbeddedCloser(t *testing.T) {
	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	w := xmlpull.NewWriter(&b, cfg)
	if err := w.EmitCData("ab]]>cd"); err != nil {
		t.Fatalf("EmitCData: %v", err)
	}
	w.Flush()

	want := "<![CDATA[ab]]]]><![CDATA[>cd]]>"
	if got := b.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	r, err := xmlpull.NewReader(strings.NewReader("<r>"+b.String()+"</r>"), xmlpull.DefaultReaderConfig())
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	// The output is re-parsed inside a root element, since a document
	// without one ends in NoRootElement.
	// The splitting technique reopens a fresh CDATA section around the
	// embedded "]]>", so it round-trips as two adjacent CData events whose
	// concatenation reconstructs the original content.
	var reconstructed strings.Builder
	for {
		ev, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if c, ok := ev.(xmlpull.CData); ok {
			reconstructed.WriteString(string(c))
		}
		if _, ok := ev.(xmlpull.EndDocument); ok {
			break
		}
	}
	if got := reconstructed.String(); got != "ab]]>cd" {
		t.Errorf("round-tripped CData = %q, want %q", got, "ab]]>cd")
	}
}

func TestWriter_CommentSplitsEmbeddedDoubleDash(t *testing.T) {
	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	w := xmlpull.NewWriter(&b, cfg)
	if err := w.EmitComment("a--b"); err != nil {
		t.Fatalf("EmitComment: %v", err)
	}
	w.Flush()

	if strings.Contains(strings.TrimPrefix(strings.TrimSuffix(b.String(), "-->"), "<!--"), "--") {
		t.Fatalf("output %q contains an illegal -- run", b.String())
	}

	r, _ := xmlpull.NewReader(strings.NewReader(b.String()), xmlpull.DefaultReaderConfig())
	for {
		ev, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if c, ok := ev.(xmlpull.Comment); ok {
			if strings.ReplaceAll(string(c), " ", "") != "a--b" {
				t.Errorf("round-tripped comment = %q", c)
			}
			return
		}
		if _, ok := ev.(xmlpull.EndDocument); ok {
			t.Fatalf("reached EndDocument without finding Comment")
		}
	}
}

func TestWriter_NamespaceDeclarationEmittedOnlyOnOwningElement(t *testing.T) {
	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	w := xmlpull.NewWriter(&b, cfg)

	outer := xmlpull.QualifiedName{Prefix: "a", Local: "x", NamespaceURI: "U"}
	inner := xmlpull.QualifiedName{Prefix: "a", Local: "y", NamespaceURI: "U"}

	if err := w.EmitStartElement(outer, nil); err != nil {
		t.Fatalf("outer start: %v", err)
	}
	if err := w.EmitStartElement(inner, nil); err != nil {
		t.Fatalf("inner start: %v", err)
	}
	if err := w.EmitEndElement(&inner); err != nil {
		t.Fatalf("inner end: %v", err)
	}
	if err := w.EmitEndElement(&outer); err != nil {
		t.Fatalf("outer end: %v", err)
	}
	w.Flush()

	out := b.String()
	if strings.Count(out, "xmlns:a=") != 1 {
		t.Errorf("output %q should declare xmlns:a exactly once", out)
	}
}

func TestWriter_PadSelfClosingAddsSpaceBeforeSlash(t *testing.T) {
	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	cfg.PadSelfClosing = true
	w := xmlpull.NewWriter(&b, cfg)
	name := xmlpull.QualifiedName{Local: "a"}
	if err := w.EmitStartElement(name, nil); err != nil {
		t.Fatalf("EmitStartElement: %v", err)
	}
	if err := w.EmitEndElement(&name); err != nil {
		t.Fatalf("EmitEndElement: %v", err)
	}
	w.Flush()

	if want := `<a />`; b.String() != want {
		t.Errorf("output = %q, want %q", b.String(), want)
	}
}

func TestWriter_WithoutPadSelfClosingNoSpaceBeforeSlash(t *testing.T) {
	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	w := xmlpull.NewWriter(&b, cfg)
	name := xmlpull.QualifiedName{Local: "a"}
	if err := w.EmitStartElement(name, nil); err != nil {
		t.Fatalf("EmitStartElement: %v", err)
	}
	if err := w.EmitEndElement(&name); err != nil {
		t.Fatalf("EmitEndElement: %v", err)
	}
	w.Flush()

	if want := `<a/>`; b.String() != want {
		t.Errorf("output = %q, want %q", b.String(), want)
	}
}

func TestWriter_AutopadCommentsAddsSurroundingSpaces(t *testing.T) {
	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	cfg.AutopadComments = true
	w := xmlpull.NewWriter(&b, cfg)
	if err := w.EmitComment("c"); err != nil {
		t.Fatalf("EmitComment: %v", err)
	}
	w.Flush()

	if want := `<!-- c -->`; b.String() != want {
		t.Errorf("output = %q, want %q", b.String(), want)
	}
}

func TestWriter_WithoutAutopadCommentsNoSurroundingSpaces(t *testing.T) {
	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	w := xmlpull.NewWriter(&b, cfg)
	if err := w.EmitComment("c"); err != nil {
		t.Fatalf("EmitComment: %v", err)
	}
	w.Flush()

	if want := `<!--c-->`; b.String() != want {
		t.Errorf("output = %q, want %q", b.String(), want)
	}
}

func TestWriter_CDataToCharactersEmitsEscapedTextInsteadOfCData(t *testing.T) {
	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	cfg.CDataToCharacters = true
	w := xmlpull.NewWriter(&b, cfg)
	if err := w.EmitCData("a < b"); err != nil {
		t.Fatalf("EmitCData: %v", err)
	}
	w.Flush()

	if want := `a &lt; b`; b.String() != want {
		t.Errorf("output = %q, want %q", b.String(), want)
	}
}
