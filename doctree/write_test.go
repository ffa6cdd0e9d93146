package doctree_test

import (
	"strings"
	"testing"

	"github.com/gogo-agent/xmlpull"
	"github.com/gogo-agent/xmlpull/doctree"
)

func TestWrite_RoundTripsThroughBuild(t *testing.T) {
	const input = `<a x="1"><b>hi</b><c/><!--note--></a>`
	doc, err := doctree.Build(mustReader(t, input))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	w := xmlpull.NewWriter(&b, cfg)
	if err := doctree.Write(w, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc2, err := doctree.Build(mustReader(t, b.String()))
	if err != nil {
		t.Fatalf("Build on re-parsed output: %v\noutput was: %s", err, b.String())
	}
	if doc2.Root.Name.Local != "a" || len(doc2.Root.Children) != len(doc.Root.Children) {
		t.Fatalf("re-parsed tree = %#v, want shape matching the original", doc2.Root)
	}
}

func TestWrite_EmitsDoctypeNode(t *testing.T) {
	doc := &doctree.Document{
		Version: "1.0",
		Node:    &doctree.Node{Kind: doctree.KindDocument},
	}
	doctypeNode := &doctree.Node{Kind: doctree.KindDoctype, DoctypeName: "root", DoctypeSystemID: "root.dtd"}
	rootNode := &doctree.Node{Kind: doctree.KindElement, Name: xmlpull.QualifiedName{Local: "root"}}
	doc.Node.Children = []*doctree.Node{doctypeNode, rootNode}
	doc.Root = rootNode

	var b strings.Builder
	cfg := xmlpull.DefaultWriterConfig()
	cfg.WriteDocumentDeclaration = false
	w := xmlpull.NewWriter(&b, cfg)
	if err := doctree.Write(w, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := b.String()
	if !strings.Contains(out, "root.dtd") || !strings.Contains(out, "<root") {
		t.Errorf("output = %q, want it to contain the doctype system id and the root element", out)
	}
}
