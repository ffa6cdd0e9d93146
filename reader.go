package xmlpull

import (
	"errors"
	"io"
	"strconv"
	"strings"
)

// readerState tracks the reader's coarse position: whether the leading
// XML declaration has been dealt with yet, and whether the document has
// reached its terminal EndDocument (spec §4.3's Prolog/OutsideTag/
// DocumentEnd, collapsed since the fine-grained sub-states of element,
// PI, comment, CDATA and DOCTYPE parsing are each one Go method rather
// than a named state value).
type readerState uint8

const (
	stateProlog readerState = iota
	stateOutsideTag
	stateDocumentEnd
)

// Reader is the pull parser: Next produces one Event per call, in document
// order, suspending (returning) between events per spec §5.
type Reader struct {
	cr  *CharReader
	lex *Lexer
	cfg ReaderConfig
	ns  *NamespaceStack

	tokPeek *Token
	pending []Event

	elemStack      []QualifiedName
	entities       map[string]string
	entitiesLocked bool

	rootSeen   bool
	rootClosed bool
	piCount    int

	state     readerState
	stickyErr error

	version  string
	encoding string
}

// NewReader constructs a Reader over src with cfg. Entity-expansion limits
// are handed to the lexer at construction (spec §4.2).
func NewReader(src io.Reader, cfg ReaderConfig) (*Reader, error) {
	cr, err := NewCharReader(src)
	if err != nil {
		return nil, err
	}
	lex := NewLexer(cr, cfg.MaxEntityExpansionDepth, cfg.MaxEntityExpansionLength)
	return &Reader{
		cr:       cr,
		lex:      lex,
		cfg:      cfg,
		ns:       NewNamespaceStack(),
		entities: make(map[string]string),
		state:    stateProlog,
	}, nil
}

// AddEntities registers replacement text for general entities
// programmatically, in addition to whatever a DOCTYPE internal subset
// declares. Fails with KindEntityAddedAfterRoot once the root element has
// started (spec §4.3).
func (r *Reader) AddEntities(entities map[string]string) error {
	if r.entitiesLocked {
		return &SyntaxError{Kind: KindEntityAddedAfterRoot, Message: "entities may only be added before the root element's start"}
	}
	for k, v := range entities {
		r.entities[k] = v
	}
	return nil
}

func isStreamableEOF(err error) bool {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se.Kind == KindUnexpectedEof || se.Kind == KindUnclosedCdata
	}
	return errors.Is(err, io.EOF)
}

// Next produces the next event. Once EndDocument has been produced it is
// returned on every subsequent call (spec §3 invariant, "terminal
// idempotence") unless IgnoreEndOfStream puts the reader in streaming mode,
// in which case an EOF encountered mid-construct is a transient error
// rather than a sticky one.
func (r *Reader) Next() (Event, error) {
	if len(r.pending) > 0 {
		ev := r.pending[0]
		r.pending = r.pending[1:]
		return ev, nil
	}
	if r.stickyErr != nil {
		return nil, r.stickyErr
	}
	if r.state == stateDocumentEnd {
		return EndDocument{}, nil
	}
	ev, err := r.dispatch()
	if err != nil {
		if r.cfg.IgnoreEndOfStream && isStreamableEOF(err) {
			return nil, err
		}
		r.stickyErr = err
		return nil, err
	}
	return ev, nil
}

func (r *Reader) dispatch() (Event, error) {
	if r.state == stateProlog {
		return r.parseProlog()
	}
	for {
		ev, err := r.parseContent()
		if err != nil {
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}
	}
}

// --- token-level plumbing ---------------------------------------------

func (r *Reader) nextToken() (Token, error) {
	if r.tokPeek != nil {
		t := *r.tokPeek
		r.tokPeek = nil
		return t, nil
	}
	return r.lex.Next()
}

func (r *Reader) ungetToken(t Token) { r.tokPeek = &t }

// nextTokenExpect reads a token and turns the lexer's Normal-mode Eof
// sentinel into an error: every call site that uses it is inside some
// construct (a tag, a declaration, an entity reference) where running out
// of input is always a well-formedness failure, never a legitimate stop.
func (r *Reader) nextTokenExpect() (Token, error) {
	tok, err := r.nextToken()
	if err != nil {
		return Token{}, err
	}
	if tok.Kind == TokEof {
		return Token{}, newSyntaxError(tok.Pos, KindUnexpectedEof, "unexpected end of file")
	}
	return tok, nil
}

func (r *Reader) skipWhitespace() error {
	for {
		tok, err := r.nextTokenExpect()
		if err != nil {
			return err
		}
		if tok.Kind == TokCharacter && isWhitespaceChar(tok.Char) {
			continue
		}
		r.ungetToken(tok)
		return nil
	}
}

// readName reads a Name production: a name-start character followed by
// name characters, stopping (and ungetting) at the first token that isn't
// one. Returns "" if the current position isn't a name at all. A qualified
// name carries at most one colon; a second one is reported immediately at
// its own position rather than folded silently into the local part (spec
// §8, scenarios 4-5).
func (r *Reader) readName() (string, TextPosition, error) {
	var b strings.Builder
	var startPos TextPosition
	first := true
	colons := 0
	for {
		tok, err := r.nextTokenExpect()
		if err != nil {
			return "", startPos, err
		}
		if tok.Kind != TokCharacter {
			r.ungetToken(tok)
			break
		}
		if first {
			if !isNameStartChar(tok.Char) {
				r.ungetToken(tok)
				break
			}
			startPos = tok.Pos
			first = false
		} else if !isNameChar(tok.Char) {
			r.ungetToken(tok)
			break
		}
		if tok.Char == ':' {
			colons++
			if colons > 1 {
				return "", tok.Pos, newSyntaxError(tok.Pos, KindUnexpectedToken, "Unexpected token inside qualified name: :")
			}
		}
		b.WriteRune(tok.Char)
	}
	if r.cfg.MaxNameLength > 0 && b.Len() > r.cfg.MaxNameLength {
		return "", startPos, newSyntaxError(startPos, KindExceededConfiguredLimit, "name exceeds the configured length limit")
	}
	return b.String(), startPos, nil
}

// readAttrValue reads a quoted attribute (or decl pseudo-attribute) value,
// expanding character and entity references and rejecting a literal '<'
// (spec §4.3).
func (r *Reader) readAttrValue() (string, error) {
	tok, err := r.nextTokenExpect()
	if err != nil {
		return "", err
	}
	quote := tok.Kind
	if quote != TokSingleQuote && quote != TokDoubleQuote {
		return "", newSyntaxError(tok.Pos, KindUnexpectedToken, "expected a quoted attribute value")
	}
	var b strings.Builder
	for {
		tok, err := r.nextTokenExpect()
		if err != nil {
			return "", err
		}
		switch tok.Kind {
		case quote:
			return b.String(), nil
		case TokAmpersand:
			s, err := r.parseReferenceInline(tok.Pos)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		case TokTagStart, TokCloseTagStart, TokPIStart, TokCommentStart, TokCDataStart, TokDoctypeStart, TokMarkupDeclStart:
			return "", newSyntaxError(tok.Pos, KindUnexpectedOpeningTag, "'<' is not allowed in attribute values")
		case TokCharacter:
			b.WriteRune(tok.Char)
		default:
			b.WriteString(tok.Kind.String())
		}
		if r.cfg.MaxDataLength > 0 && b.Len() > r.cfg.MaxDataLength {
			return "", newSyntaxError(tok.Pos, KindExceededConfiguredLimit, "attribute value exceeds the configured length limit")
		}
	}
}

// --- entity and character references -----------------------------------

// parseReferenceInline handles one reference right after its '&', returning
// the literal text it resolves to. A numeric or built-in reference resolves
// directly; a general entity is expanded via the lexer's reparse queue and
// this returns "" so the caller's own token loop re-reads the (re-tokenized)
// expansion as if it had appeared literally in the source (spec §4.3, §4.2).
func (r *Reader) parseReferenceInline(refPos TextPosition) (string, error) {
	tok, err := r.nextTokenExpect()
	if err != nil {
		return "", err
	}
	if tok.Kind == TokCharacter && tok.Char == '#' {
		return r.parseNumericRef(refPos)
	}
	if tok.Kind != TokCharacter {
		return "", newSyntaxError(tok.Pos, KindUndefinedEntity, "malformed entity reference")
	}
	var name strings.Builder
	name.WriteRune(tok.Char)
	for {
		tok, err = r.nextTokenExpect()
		if err != nil {
			return "", err
		}
		if tok.Kind == TokSemicolon {
			break
		}
		if tok.Kind != TokCharacter {
			return "", newSyntaxError(tok.Pos, KindUndefinedEntity, "malformed entity reference")
		}
		name.WriteRune(tok.Char)
	}
	entName := name.String()
	if c, ok := unescapeEntity(entName); ok {
		return string(c), nil
	}
	if repl, ok := r.entities[entName]; ok {
		if err := r.lex.Reparse(repl, refPos); err != nil {
			return "", err
		}
		return "", nil
	}
	return "", newSyntaxError(refPos, KindUndefinedEntity, "undefined entity '"+entName+"'")
}

func (r *Reader) parseNumericRef(refPos TextPosition) (string, error) {
	tok, err := r.nextTokenExpect()
	if err != nil {
		return "", err
	}
	hex := false
	var digits strings.Builder
	switch {
	case tok.Kind == TokCharacter && (tok.Char == 'x' || tok.Char == 'X'):
		hex = true
	case tok.Kind == TokCharacter && isDigit(tok.Char):
		digits.WriteRune(tok.Char)
	default:
		return "", newSyntaxError(tok.Pos, KindInvalidNumericEntity, "malformed numeric character reference")
	}
	for {
		tok, err = r.nextTokenExpect()
		if err != nil {
			return "", err
		}
		if tok.Kind == TokSemicolon {
			break
		}
		if tok.Kind != TokCharacter {
			return "", newSyntaxError(tok.Pos, KindInvalidNumericEntity, "malformed numeric character reference")
		}
		digits.WriteRune(tok.Char)
	}
	base := 10
	if hex {
		base = 16
	}
	val, err := strconv.ParseInt(digits.String(), base, 32)
	if err != nil || digits.Len() == 0 {
		return "", newSyntaxError(refPos, KindInvalidNumericEntity, "malformed numeric character reference")
	}
	cp := rune(val)
	if !isValidXMLChar(cp) {
		return "", newSyntaxError(refPos, KindInvalidCharacterEntity, "character reference resolves to an invalid XML character")
	}
	return string(cp), nil
}

// --- prolog / XML declaration -------------------------------------------

func (r *Reader) parseProlog() (Event, error) {
	r.state = stateOutsideTag
	tok, err := r.nextToken()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokPIStart {
		r.ungetToken(tok)
		return StartDocument{Version: "1.0", Encoding: string(r.cr.DetectedEncoding())}, nil
	}
	name, namePos, err := r.readName()
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(name, "xml") {
		return r.parseXMLDeclBody(tok.Pos)
	}
	if name == "" {
		return nil, newSyntaxError(tok.Pos, KindInvalidXmlProcessingInstruction, "processing instruction missing target name")
	}
	data, err := r.readPIData()
	if err != nil {
		return nil, err
	}
	_ = namePos
	r.piCount++
	r.pending = append(r.pending, ProcessingInstruction{Name: name, Data: data})
	return StartDocument{Version: "1.0", Encoding: string(r.cr.DetectedEncoding())}, nil
}

func (r *Reader) acceptsVersion(v string) bool {
	for _, accepted := range r.cfg.AcceptedXMLVersions {
		if v == accepted {
			return true
		}
	}
	if r.cfg.TolerantVersions && strings.HasPrefix(v, "1.") {
		rest := v[2:]
		if len(rest) == 0 {
			return false
		}
		for _, c := range rest {
			if !isDigit(c) {
				return false
			}
		}
		return true
	}
	return false
}

func (r *Reader) parseXMLDeclBody(piStartPos TextPosition) (Event, error) {
	attrs := map[string]string{}
	for {
		if err := r.skipWhitespace(); err != nil {
			return nil, err
		}
		tok, err := r.nextTokenExpect()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokCharacter && tok.Char == '?' {
			end, err := r.nextTokenExpect()
			if err != nil {
				return nil, err
			}
			if end.Kind != TokTagEnd {
				return nil, newSyntaxError(end.Pos, KindUnexpectedToken, "expected '>' to close the XML declaration")
			}
			break
		}
		r.ungetToken(tok)
		aname, apos, err := r.readName()
		if err != nil {
			return nil, err
		}
		if aname == "" {
			return nil, newSyntaxError(tok.Pos, KindUnexpectedXmlVersion, "malformed XML declaration")
		}
		if err := r.skipWhitespace(); err != nil {
			return nil, err
		}
		eq, err := r.nextTokenExpect()
		if err != nil {
			return nil, err
		}
		if eq.Kind != TokEquals {
			return nil, newSyntaxError(eq.Pos, KindUnexpectedToken, "expected '=' in XML declaration")
		}
		if err := r.skipWhitespace(); err != nil {
			return nil, err
		}
		val, err := r.readAttrValue()
		if err != nil {
			return nil, err
		}
		if _, dup := attrs[aname]; dup {
			return nil, newSyntaxError(apos, KindUnexpectedXmlVersion, "duplicate '"+aname+"' in XML declaration")
		}
		attrs[aname] = val
	}

	version, hasVersion := attrs["version"]
	if !hasVersion {
		return nil, newSyntaxError(piStartPos, KindUnexpectedXmlVersion, "XML declaration is missing the required 'version' attribute")
	}
	if !r.acceptsVersion(version) {
		return nil, newSyntaxError(piStartPos, KindUnexpectedXmlVersion, "unsupported XML version '"+version+"'")
	}

	encoding := attrs["encoding"]
	if encoding != "" {
		if err := r.cr.ConfirmDeclared(encoding); err != nil {
			return nil, err
		}
	}

	var standalone *bool
	if sa, ok := attrs["standalone"]; ok {
		switch sa {
		case "yes":
			v := true
			standalone = &v
		case "no":
			v := false
			standalone = &v
		default:
			return nil, newSyntaxError(piStartPos, KindInvalidStandaloneDeclaration, "standalone must be 'yes' or 'no', got '"+sa+"'")
		}
	}

	r.version = version
	r.encoding = encoding
	return StartDocument{Version: version, Encoding: encoding, Standalone: standalone}, nil
}

// --- content dispatch ----------------------------------------------------

func (r *Reader) parseContent() (Event, error) {
	tok, err := r.nextToken()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokEof:
		return r.handleEOF(tok.Pos)
	case TokTagStart:
		return r.parseStartTag(tok.Pos)
	case TokCloseTagStart:
		return r.parseEndTag(tok.Pos)
	case TokCommentStart:
		return r.parseComment()
	case TokCDataStart:
		return r.parseCData()
	case TokPIStart:
		return r.parsePI(tok.Pos)
	case TokDoctypeStart:
		return r.parseDoctype(tok.Pos)
	case TokMarkupDeclStart:
		return nil, newSyntaxError(tok.Pos, KindUnknownMarkupDeclaration, "markup declaration outside a DOCTYPE internal subset")
	default:
		r.ungetToken(tok)
		return r.parseText()
	}
}

func (r *Reader) handleEOF(pos TextPosition) (Event, error) {
	if len(r.elemStack) > 0 {
		return nil, newSyntaxError(pos, KindUnbalancedRootElement, "end of file with unclosed element '"+r.elemStack[len(r.elemStack)-1].Local+"'")
	}
	if !r.rootSeen {
		return nil, newSyntaxError(pos, KindNoRootElement, "end of file before any root element")
	}
	r.state = stateDocumentEnd
	return EndDocument{}, nil
}

// parseText accumulates a run of character data (including expanded
// references and incidental punctuation tokens that are only structural
// inside markup) and classifies it as Whitespace or Characters.
func (r *Reader) parseText() (Event, error) {
	var b strings.Builder
	allWhitespace := true
	for {
		tok, err := r.nextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TokCharacter:
			b.WriteRune(tok.Char)
			if !isWhitespaceChar(tok.Char) {
				allWhitespace = false
			}
		case TokAmpersand:
			s, err := r.parseReferenceInline(tok.Pos)
			if err != nil {
				return nil, err
			}
			if s != "" {
				b.WriteString(s)
				allWhitespace = false
			}
		case TokEquals:
			b.WriteByte('=')
			allWhitespace = false
		case TokSingleQuote:
			b.WriteByte('\'')
			allWhitespace = false
		case TokDoubleQuote:
			b.WriteByte('"')
			allWhitespace = false
		case TokSemicolon:
			b.WriteByte(';')
			allWhitespace = false
		case TokTagEnd:
			b.WriteByte('>')
			allWhitespace = false
		case TokEmptyElementEnd:
			b.WriteString("/>")
			allWhitespace = false
		case TokCommentStart:
			if r.cfg.IgnoreComments && r.cfg.CoalesceCharacters {
				if _, err := r.parseComment(); err != nil {
					return nil, err
				}
				continue
			}
			r.ungetToken(tok)
			return r.finishText(b.String(), allWhitespace)
		default:
			r.ungetToken(tok)
			return r.finishText(b.String(), allWhitespace)
		}
		if r.cfg.MaxDataLength > 0 && b.Len() > r.cfg.MaxDataLength {
			return nil, newSyntaxError(tok.Pos, KindExceededConfiguredLimit, "character data exceeds the configured length limit")
		}
	}
}

func (r *Reader) finishText(s string, allWhitespace bool) (Event, error) {
	if s == "" {
		return nil, nil
	}
	if allWhitespace {
		if len(r.elemStack) == 0 && r.cfg.IgnoreRootLevelWhitespace {
			return nil, nil
		}
		if r.cfg.TrimWhitespace {
			return nil, nil
		}
		if r.cfg.WhitespaceToCharacters {
			return Characters(s), nil
		}
		return Whitespace(s), nil
	}
	if r.cfg.TrimWhitespace {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
	}
	return Characters(s), nil
}

// --- elements --------------------------------------------------------------

type rawAttr struct {
	rawName string
	value   string
	pos     TextPosition
}

func (r *Reader) parseStartTag(ltPos TextPosition) (Event, error) {
	name, namePos, err := r.readName()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, newSyntaxError(ltPos, KindUnexpectedToken, "expected element name after '<'")
	}

	var rawAttrs []rawAttr
	frame := newNSFrame()
	selfClosing := false
	for {
		if err := r.skipWhitespace(); err != nil {
			return nil, err
		}
		tok, err := r.nextTokenExpect()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokTagEnd {
			break
		}
		if tok.Kind == TokEmptyElementEnd {
			selfClosing = true
			break
		}
		r.ungetToken(tok)

		aname, apos, err := r.readName()
		if err != nil {
			return nil, err
		}
		if aname == "" {
			return nil, newSyntaxError(apos, KindUnexpectedToken, "expected attribute name or '>' inside start tag")
		}
		if r.cfg.MaxAttributes > 0 && len(rawAttrs)+len(frame.order) >= r.cfg.MaxAttributes {
			return nil, newSyntaxError(apos, KindExceededConfiguredLimit, "element exceeds the configured attribute limit")
		}
		if err := r.skipWhitespace(); err != nil {
			return nil, err
		}
		eqTok, err := r.nextTokenExpect()
		if err != nil {
			return nil, err
		}
		if eqTok.Kind != TokEquals {
			return nil, newSyntaxError(eqTok.Pos, KindUnexpectedToken, "expected '=' after attribute name '"+aname+"'")
		}
		if err := r.skipWhitespace(); err != nil {
			return nil, err
		}
		val, err := r.readAttrValue()
		if err != nil {
			return nil, err
		}

		switch {
		case aname == "xmlns":
			if _, dup := frame.bindings[""]; dup {
				return nil, &SyntaxError{Kind: KindRedefinedAttribute, Message: "attribute '" + aname + "' is redefined", Position: apos}
			}
			frame.bind("", val)
		case strings.HasPrefix(aname, "xmlns:"):
			p := aname[len("xmlns:"):]
			if p == "xmlns" {
				return nil, &SyntaxError{Kind: KindCannotRedefineXmlnsPrefix, Message: "the 'xmlns' prefix cannot be redefined", Position: apos}
			}
			if p == "xml" && val != XMLNamespaceURI {
				return nil, &SyntaxError{Kind: KindCannotRedefineXmlPrefix, Message: "the 'xml' prefix must be bound to " + XMLNamespaceURI, Position: apos}
			}
			if _, dup := frame.bindings[p]; dup {
				return nil, &SyntaxError{Kind: KindRedefinedAttribute, Message: "attribute '" + aname + "' is redefined", Position: apos}
			}
			frame.bind(p, val)
		default:
			rawAttrs = append(rawAttrs, rawAttr{rawName: aname, value: val, pos: apos})
		}
	}

	r.ns.pushFrame(frame)

	elemName, err := r.ns.resolveName(name, false)
	if err != nil {
		return nil, err
	}

	attrs := make([]Attribute, 0, len(rawAttrs))
	seen := make(map[QualifiedName]bool, len(rawAttrs))
	for _, ra := range rawAttrs {
		qn, err := r.ns.resolveName(ra.rawName, true)
		if err != nil {
			return nil, err
		}
		key := QualifiedName{NamespaceURI: qn.NamespaceURI, Local: qn.Local}
		if seen[key] {
			return nil, &SyntaxError{Kind: KindRedefinedAttribute, Message: "attribute '" + ra.rawName + "' is redefined", Position: ra.pos}
		}
		seen[key] = true
		attrs = append(attrs, Attribute{Name: qn, Value: ra.value})
	}

	r.elemStack = append(r.elemStack, elemName)
	r.rootSeen = true
	r.entitiesLocked = true

	ev := StartElement{Name: elemName, Attributes: attrs, Namespace: r.ns.Snapshot()}
	if selfClosing {
		r.elemStack = r.elemStack[:len(r.elemStack)-1]
		r.ns.Pop()
		if len(r.elemStack) == 0 {
			r.rootClosed = true
		}
		r.pending = append(r.pending, EndElement{Name: elemName})
	}
	_ = namePos
	return ev, nil
}

func (r *Reader) parseEndTag(ltPos TextPosition) (Event, error) {
	name, namePos, err := r.readName()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, newSyntaxError(ltPos, KindUnexpectedToken, "expected element name after '</'")
	}
	if err := r.skipWhitespace(); err != nil {
		return nil, err
	}
	tok, err := r.nextTokenExpect()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokTagEnd {
		return nil, newSyntaxError(tok.Pos, KindUnexpectedToken, "expected '>' to close end tag")
	}
	if len(r.elemStack) == 0 {
		return nil, &SyntaxError{Kind: KindUnexpectedClosingTag, Message: "got closing tag '" + name + "' with no open element", Position: namePos}
	}
	top := r.elemStack[len(r.elemStack)-1]
	prefix, local := splitQName(name)
	if local != top.Local || prefix != top.Prefix {
		expected := top.Local
		if top.Prefix != "" {
			expected = top.Prefix + ":" + top.Local
		}
		return nil, &SyntaxError{Kind: KindUnexpectedClosingTag,
			Message: "got closing tag '" + name + "' expected '" + expected + "'", Position: namePos}
	}
	r.elemStack = r.elemStack[:len(r.elemStack)-1]
	r.ns.Pop()
	if len(r.elemStack) == 0 {
		r.rootClosed = true
	}
	return EndElement{Name: top}, nil
}

// --- comments, CDATA, processing instructions -----------------------------

func (r *Reader) parseComment() (Event, error) {
	var b strings.Builder
	for {
		tok, err := r.nextTokenExpect()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokCommentEnd {
			break
		}
		b.WriteRune(tok.Char)
	}
	if r.cfg.IgnoreComments {
		return nil, nil
	}
	return Comment(b.String()), nil
}

func (r *Reader) parseCData() (Event, error) {
	var b strings.Builder
	for {
		tok, err := r.nextTokenExpect()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokCDataEnd {
			break
		}
		b.WriteRune(tok.Char)
	}
	if r.cfg.CDataToCharacters {
		return Characters(b.String()), nil
	}
	return CData(b.String()), nil
}

// readPIData reads the data segment of a processing instruction, having
// already consumed the target name. It switches the lexer into raw-content
// mode for the duration, since PI data is not tokenized as markup.
func (r *Reader) readPIData() (string, error) {
	r.lex.EnterPI()
	var b strings.Builder
	first := true
	for {
		tok, err := r.nextTokenExpect()
		if err != nil {
			return "", err
		}
		if tok.Kind == TokPIEnd {
			return b.String(), nil
		}
		if first && tok.Kind == TokCharacter && isWhitespaceChar(tok.Char) {
			first = false
			continue
		}
		first = false
		b.WriteRune(tok.Char)
	}
}

func (r *Reader) parsePI(piStartPos TextPosition) (Event, error) {
	name, namePos, err := r.readName()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, newSyntaxError(piStartPos, KindInvalidXmlProcessingInstruction, "processing instruction missing target name")
	}
	if strings.EqualFold(name, "xml") {
		return nil, newSyntaxError(namePos, KindInvalidXmlProcessingInstruction, "the 'xml' target is reserved for the leading XML declaration")
	}
	data, err := r.readPIData()
	if err != nil {
		return nil, err
	}
	r.piCount++
	return ProcessingInstruction{Name: name, Data: data}, nil
}

// --- DOCTYPE ---------------------------------------------------------------

func (r *Reader) parseDoctype(ltPos TextPosition) (Event, error) {
	if err := r.skipWhitespace(); err != nil {
		return nil, err
	}
	name, _, err := r.readName()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, newSyntaxError(ltPos, KindUnexpectedToken, "DOCTYPE missing root name")
	}
	if err := r.skipWhitespace(); err != nil {
		return nil, err
	}

	var publicID, systemID string
	tok, err := r.nextTokenExpect()
	if err != nil {
		return nil, err
	}
	r.ungetToken(tok)
	if tok.Kind == TokCharacter && isNameStartChar(tok.Char) {
		kw, kwPos, err := r.readName()
		if err != nil {
			return nil, err
		}
		switch kw {
		case "SYSTEM":
			if err := r.skipWhitespace(); err != nil {
				return nil, err
			}
			if systemID, err = r.readAttrValue(); err != nil {
				return nil, err
			}
		case "PUBLIC":
			if err := r.skipWhitespace(); err != nil {
				return nil, err
			}
			if publicID, err = r.readAttrValue(); err != nil {
				return nil, err
			}
			if err := r.skipWhitespace(); err != nil {
				return nil, err
			}
			if systemID, err = r.readAttrValue(); err != nil {
				return nil, err
			}
		default:
			return nil, newSyntaxError(kwPos, KindUnknownMarkupDeclaration, "unexpected keyword '"+kw+"' in DOCTYPE")
		}
		if err := r.skipWhitespace(); err != nil {
			return nil, err
		}
	}

	tok, err = r.nextTokenExpect()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokCharacter && tok.Char == '[' {
		if err := r.scanInternalSubset(); err != nil {
			return nil, err
		}
		if err := r.skipWhitespace(); err != nil {
			return nil, err
		}
		tok, err = r.nextTokenExpect()
		if err != nil {
			return nil, err
		}
	}
	if tok.Kind != TokTagEnd {
		return nil, newSyntaxError(tok.Pos, KindUnexpectedToken, "expected '>' to close DOCTYPE")
	}
	return Doctype{Name: name, PublicID: publicID, SystemID: systemID}, nil
}

// scanInternalSubset scans to the internal subset's closing ']', extracting
// <!ENTITY ...> declarations along the way and skipping everything else
// (spec §4.3: "scanned only to locate a matching ] with proper quote
// nesting").
func (r *Reader) scanInternalSubset() error {
	for {
		if err := r.skipWhitespace(); err != nil {
			return err
		}
		tok, err := r.nextTokenExpect()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == TokCharacter && tok.Char == ']':
			return nil
		case tok.Kind == TokMarkupDeclStart:
			kw, kwPos, err := r.readName()
			if err != nil {
				return err
			}
			if kw == "ENTITY" {
				if err := r.parseEntityDecl(); err != nil {
					return err
				}
			} else if kw == "ELEMENT" || kw == "ATTLIST" || kw == "NOTATION" {
				if err := r.skipDeclaration(); err != nil {
					return err
				}
			} else {
				return newSyntaxError(kwPos, KindUnknownMarkupDeclaration, "unknown markup declaration '<!"+kw+"'")
			}
		case tok.Kind == TokPIStart:
			if _, _, err := r.readName(); err != nil {
				return err
			}
			if _, err := r.readPIData(); err != nil {
				return err
			}
		case tok.Kind == TokCommentStart:
			if _, err := r.parseComment(); err != nil {
				return err
			}
		default:
			return newSyntaxError(tok.Pos, KindUnknownMarkupDeclaration, "unexpected content in DOCTYPE internal subset")
		}
	}
}

func (r *Reader) skipDeclaration() error {
	for {
		tok, err := r.nextTokenExpect()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case TokSingleQuote, TokDoubleQuote:
			if err := r.skipQuoted(tok.Kind); err != nil {
				return err
			}
		case TokTagEnd:
			return nil
		}
	}
}

func (r *Reader) skipQuoted(quote TokenKind) error {
	for {
		tok, err := r.nextTokenExpect()
		if err != nil {
			return err
		}
		if tok.Kind == quote {
			return nil
		}
	}
}

func (r *Reader) parseEntityDecl() error {
	if err := r.skipWhitespace(); err != nil {
		return err
	}
	name, namePos, err := r.readName()
	if err != nil {
		return err
	}
	if name == "" {
		return newSyntaxError(namePos, KindUnknownMarkupDeclaration, "ENTITY declaration missing name")
	}
	if err := r.skipWhitespace(); err != nil {
		return err
	}
	tok, err := r.nextTokenExpect()
	if err != nil {
		return err
	}
	switch tok.Kind {
	case TokSingleQuote, TokDoubleQuote:
		// The replacement text is stored unexpanded: references inside it
		// are resolved when the entity is used, through the reparse queue.
		var b strings.Builder
		for {
			vt, err := r.nextTokenExpect()
			if err != nil {
				return err
			}
			if vt.Kind == tok.Kind {
				break
			}
			if vt.Kind == TokCharacter {
				b.WriteRune(vt.Char)
			} else {
				b.WriteString(vt.Kind.String())
			}
		}
		val := b.String()
		if !r.entitiesLocked {
			if _, exists := r.entities[name]; !exists {
				r.entities[name] = val
			}
		}
	case TokCharacter:
		r.ungetToken(tok)
		kw, kwPos, err := r.readName()
		if err != nil {
			return err
		}
		switch kw {
		case "SYSTEM":
			if err := r.skipWhitespace(); err != nil {
				return err
			}
			if _, err := r.readAttrValue(); err != nil {
				return err
			}
		case "PUBLIC":
			if err := r.skipWhitespace(); err != nil {
				return err
			}
			if _, err := r.readAttrValue(); err != nil {
				return err
			}
			if err := r.skipWhitespace(); err != nil {
				return err
			}
			if _, err := r.readAttrValue(); err != nil {
				return err
			}
		default:
			return newSyntaxError(kwPos, KindUnknownMarkupDeclaration, "malformed ENTITY declaration")
		}
	default:
		return newSyntaxError(tok.Pos, KindUnknownMarkupDeclaration, "malformed ENTITY declaration")
	}
	if err := r.skipWhitespace(); err != nil {
		return err
	}
	end, err := r.nextTokenExpect()
	if err != nil {
		return err
	}
	if end.Kind != TokTagEnd {
		return newSyntaxError(end.Pos, KindUnknownMarkupDeclaration, "expected '>' to close ENTITY declaration")
	}
	return nil
}
