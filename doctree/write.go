package doctree

import "github.com/gogo-agent/xmlpull"

// Write walks doc and calls w's emit operations, the structural
// replacement for the teacher's Encoder.Encode depth-first walk — now
// round-tripping DOCTYPE and CDATA nodes directly through the Writer's own
// emit operations instead of the teacher's doctype-as-comment workaround.
func Write(w *xmlpull.Writer, doc *Document) error {
	if err := w.EmitStartDocument(doc.Version, doc.Encoding, doc.Standalone); err != nil {
		return err
	}
	for _, child := range doc.Node.Children {
		if err := writeNode(w, child); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeNode(w *xmlpull.Writer, n *Node) error {
	switch n.Kind {
	case KindElement:
		if err := w.EmitStartElement(n.Name, n.Attributes); err != nil {
			return err
		}
		for _, child := range n.Children {
			if err := writeNode(w, child); err != nil {
				return err
			}
		}
		name := n.Name
		return w.EmitEndElement(&name)
	case KindText:
		return w.EmitCharacters(n.Text)
	case KindCData:
		return w.EmitCData(n.Text)
	case KindComment:
		return w.EmitComment(n.Text)
	case KindProcessingInstruction:
		return w.EmitProcessingInstruction(n.PITarget, n.PIData)
	case KindDoctype:
		return w.Write(xmlpull.Doctype{Name: n.DoctypeName, PublicID: n.DoctypePublicID, SystemID: n.DoctypeSystemID})
	}
	return nil
}
