package doctree

import "github.com/gogo-agent/xmlpull"

// Build drains r's event stream into a Document, the structural
// replacement for the teacher's Decoder.Decode stack-based loop — now
// consuming this module's own events instead of encoding/xml tokens, so
// CDATA sections and the DOCTYPE stay distinct node kinds rather than
// collapsing to Text or a comment workaround.
func Build(r *xmlpull.Reader) (*Document, error) {
	doc := &Document{Node: &Node{Kind: KindDocument}}
	stack := []*Node{doc.Node}

	for {
		ev, err := r.Next()
		if err != nil {
			return nil, err
		}

		parent := stack[len(stack)-1]

		switch e := ev.(type) {
		case xmlpull.StartDocument:
			doc.Version = e.Version
			doc.Encoding = e.Encoding
			doc.Standalone = e.Standalone

		case xmlpull.EndDocument:
			return doc, nil

		case xmlpull.Doctype:
			n := &Node{Kind: KindDoctype, DoctypeName: e.Name, DoctypePublicID: e.PublicID, DoctypeSystemID: e.SystemID}
			parent.Children = append(parent.Children, n)

		case xmlpull.ProcessingInstruction:
			n := &Node{Kind: KindProcessingInstruction, PITarget: e.Name, PIData: e.Data}
			parent.Children = append(parent.Children, n)

		case xmlpull.StartElement:
			n := &Node{Kind: KindElement, Name: e.Name, Attributes: e.Attributes, Namespace: e.Namespace}
			parent.Children = append(parent.Children, n)
			if doc.Root == nil {
				doc.Root = n
			}
			stack = append(stack, n)

		case xmlpull.EndElement:
			stack = stack[:len(stack)-1]

		case xmlpull.Characters:
			parent.Children = append(parent.Children, &Node{Kind: KindText, Text: string(e)})

		case xmlpull.Whitespace:
			parent.Children = append(parent.Children, &Node{Kind: KindText, Text: string(e)})

		case xmlpull.CData:
			parent.Children = append(parent.Children, &Node{Kind: KindCData, Text: string(e)})

		case xmlpull.Comment:
			parent.Children = append(parent.Children, &Node{Kind: KindComment, Text: string(e)})
		}
	}
}
