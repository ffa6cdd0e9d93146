// Package doctree builds an in-memory tree on top of the pull event
// stream, for callers who want eager parsing instead of consuming events
// one at a time.
package doctree

import "github.com/gogo-agent/xmlpull"

// NodeKind is the closed set of node kinds a reader's event stream can
// produce — the teacher's twelve-member NodeType enum collapsed to what
// StartDocument/StartElement/Characters/CData/Comment/ProcessingInstruction/
// Doctype actually populate (no Entity, Notation, DocumentFragment, or
// Attribute pseudo-nodes).
type NodeKind uint8

const (
	KindDocument NodeKind = iota
	KindElement
	KindText
	KindCData
	KindComment
	KindProcessingInstruction
	KindDoctype
)

// Node is one tree node. Fields outside a node's Kind are zero.
type Node struct {
	Kind NodeKind

	// KindElement
	Name       xmlpull.QualifiedName
	Attributes []xmlpull.Attribute
	Namespace  map[string]string

	// KindText, KindCData, KindComment
	Text string

	// KindProcessingInstruction
	PITarget string
	PIData   string

	// KindDoctype
	DoctypeName     string
	DoctypePublicID string
	DoctypeSystemID string

	Children []*Node
}

// Document is the root of a built tree: the document's declared version
// and encoding plus its top-level children (the Doctype node, if any, the
// root Element, and any top-level processing instructions or comments).
type Document struct {
	Version    string
	Encoding   string
	Standalone *bool
	Root       *Node
	Node       *Node // KindDocument node owning all top-level children
}
