package xmlpull

import (
	"github.com/golang/groupcache/lru"
)

// Reserved namespace URIs. Both prefixes are immutable: rebinding either is
// a syntax error (KindCannotRedefineXmlnsPrefix / KindCannotRedefineXmlPrefix).
const (
	XMLNamespaceURI   = "http://www.w3.org/XML/1998/namespace"
	XMLNSNamespaceURI = "http://www.w3.org/2000/xmlns/"
)

// QualifiedName is a resolved "prefix:local" pair. Reader-produced events
// compare equal on (NamespaceURI, Local); Prefix is cosmetic (spec §3).
type QualifiedName struct {
	Prefix       string // "" when unprefixed
	NamespaceURI string // "" when unbound/no default namespace in scope
	Local        string
}

// Attribute is a single attribute in document order. Duplicate
// (NamespaceURI, Local) pairs within one element are a syntax error
// (KindRedefinedAttribute), enforced by the parser, not by this type.
type Attribute struct {
	Name  QualifiedName
	Value string
}

// nsFrame is the set of prefix bindings newly introduced by one element.
// order preserves the sequence bindings were declared in, since the writer
// must emit "only newly bound prefix declarations" in that same order
// (spec §4.4).
type nsFrame struct {
	order    []string
	bindings map[string]string
}

func newNSFrame() *nsFrame {
	return &nsFrame{bindings: make(map[string]string)}
}

// bind records prefix -> uri on this frame, overwriting and re-ordering to
// the end if the prefix was already bound on this same frame (an element
// that repeats an xmlns declaration, which RedefinedAttribute already
// rejects upstream, but nsFrame itself stays well-defined either way).
func (f *nsFrame) bind(prefix, uri string) {
	if _, ok := f.bindings[prefix]; !ok {
		f.order = append(f.order, prefix)
	}
	f.bindings[prefix] = uri
}

// NamespaceStack is an ordered stack of frames; lookup searches top-down.
// Resolutions are memoized in a bounded LRU keyed by (stack generation,
// prefix) so repeated attribute-name resolutions against the same
// unchanged top frame (the common case: one element, many attributes)
// don't re-walk the frame list. This mirrors the teacher's xpath.go
// expression cache (github.com/golang/groupcache/lru), repointed here
// since XPath itself is out of scope for this module (DESIGN.md).
type NamespaceStack struct {
	frames  []*nsFrame
	cache   *lru.Cache
	version int
}

type nsCacheKey struct {
	version int
	prefix  string
}

type nsCacheValue struct {
	uri string
	ok  bool
}

// NewNamespaceStack returns an empty stack; xml and xmlns are always
// resolvable regardless of frames and never occupy a cache slot.
func NewNamespaceStack() *NamespaceStack {
	return &NamespaceStack{cache: lru.New(512)}
}

// Push opens a new frame for an element about to be parsed or emitted.
func (ns *NamespaceStack) Push() {
	ns.frames = append(ns.frames, newNSFrame())
	ns.version++
}

// pushFrame opens a pre-built frame, used by the parser when an element's
// xmlns declarations must all be collected and bound atomically before the
// element name or any attribute name is resolved against them (spec §4.3).
func (ns *NamespaceStack) pushFrame(f *nsFrame) {
	ns.frames = append(ns.frames, f)
	ns.version++
}

// Pop closes the frame belonging to the element whose EndElement was just
// produced, invisibling its bindings again (spec §3 invariant).
func (ns *NamespaceStack) Pop() {
	if len(ns.frames) == 0 {
		return
	}
	ns.frames = ns.frames[:len(ns.frames)-1]
	ns.version++
}

// Depth reports the number of open frames.
func (ns *NamespaceStack) Depth() int { return len(ns.frames) }

// Bind declares prefix -> uri on the top (current element's) frame. An
// empty uri unbinds the prefix in scope from this point down.
func (ns *NamespaceStack) Bind(prefix, uri string) error {
	if prefix == "xml" && uri != XMLNamespaceURI {
		return &SyntaxError{Kind: KindCannotRedefineXmlPrefix, Message: "the 'xml' prefix must be bound to " + XMLNamespaceURI}
	}
	if prefix == "xmlns" {
		return &SyntaxError{Kind: KindCannotRedefineXmlnsPrefix, Message: "the 'xmlns' prefix cannot be redefined"}
	}
	if len(ns.frames) == 0 {
		ns.Push()
	}
	ns.frames[len(ns.frames)-1].bind(prefix, uri)
	ns.version++
	return nil
}

// TopFrameBindings returns the bindings introduced by the current (top)
// frame only, in declaration order — exactly what the writer re-emits as
// xmlns declarations on a StartElement (spec §4.4).
func (ns *NamespaceStack) TopFrameBindings() []Attribute {
	if len(ns.frames) == 0 {
		return nil
	}
	top := ns.frames[len(ns.frames)-1]
	out := make([]Attribute, 0, len(top.order))
	for _, prefix := range top.order {
		out = append(out, Attribute{Name: QualifiedName{Prefix: prefix}, Value: top.bindings[prefix]})
	}
	return out
}

// Resolve looks up prefix top-down through open frames. The reserved
// prefixes are always bound, checked before any frame walk or cache hit.
func (ns *NamespaceStack) Resolve(prefix string) (uri string, ok bool) {
	switch prefix {
	case "xml":
		return XMLNamespaceURI, true
	case "xmlns":
		return XMLNSNamespaceURI, true
	}

	key := nsCacheKey{version: ns.version, prefix: prefix}
	if v, hit := ns.cache.Get(key); hit {
		cv := v.(nsCacheValue)
		return cv.uri, cv.ok
	}

	for i := len(ns.frames) - 1; i >= 0; i-- {
		if uri, ok := ns.frames[i].bindings[prefix]; ok {
			ns.cache.Add(key, nsCacheValue{uri: uri, ok: uri != ""})
			return uri, uri != ""
		}
	}
	ns.cache.Add(key, nsCacheValue{})
	return "", false
}

// Snapshot returns every binding currently visible (all frames merged,
// innermost wins), for attaching to a StartElement event.
func (ns *NamespaceStack) Snapshot() map[string]string {
	out := map[string]string{"xml": XMLNamespaceURI, "xmlns": XMLNSNamespaceURI}
	for _, f := range ns.frames {
		for _, prefix := range f.order {
			uri := f.bindings[prefix]
			if uri == "" {
				delete(out, prefix)
				continue
			}
			out[prefix] = uri
		}
	}
	return out
}

// splitQName splits "prefix:local" at its first colon; a bare local name
// yields an empty prefix.
func splitQName(raw string) (prefix, local string) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == ':' {
			return raw[:i], raw[i+1:]
		}
	}
	return "", raw
}

// resolveName splits raw and resolves its prefix against the stack.
// isAttribute controls whether an empty prefix inherits the default
// namespace: per spec §4.3 and the XML Namespaces recommendation, it never
// does for attributes.
func (ns *NamespaceStack) resolveName(raw string, isAttribute bool) (QualifiedName, error) {
	prefix, local := splitQName(raw)
	if prefix == "" {
		if isAttribute {
			return QualifiedName{Local: local}, nil
		}
		uri, _ := ns.Resolve("")
		return QualifiedName{NamespaceURI: uri, Local: local}, nil
	}
	uri, ok := ns.Resolve(prefix)
	if !ok {
		kind := KindUnboundElementPrefix
		if isAttribute {
			kind = KindUnboundAttributePrefix
		}
		return QualifiedName{}, &SyntaxError{Kind: kind, Message: "unbound namespace prefix '" + prefix + "'"}
	}
	return QualifiedName{Prefix: prefix, NamespaceURI: uri, Local: local}, nil
}
