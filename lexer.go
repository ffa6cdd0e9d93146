package xmlpull

import "io"

// lexerMode tracks the lexer's persistent context: markup sigils are only
// recognized in modeNormal, while modeComment/modeCData/modePI make every
// other rune pass through as a literal Character until the matching close
// sigil is seen. This collapses spec §4.2's "inside comment / inside CDATA
// / inside processing instruction" states into one enum instead of a
// separate Rust-style state per construct; the DOCTYPE- and markup-
// declaration-internal grammar is tokenized at the ordinary modeNormal
// level and assembled by the parser (spec §4.3 owns that grammar, not the
// lexer).
type lexerMode uint8

const (
	modeNormal lexerMode = iota
	modeComment
	modeCData
	modePI
)

type queuedRune struct {
	r       rune
	pos     TextPosition
	reparse bool
}

// Lexer is the tokenizing state machine: character reader in, Token out.
// Grounded on original_source/src/reader/lexer.rs for the sigil-recognition
// shape (TagStarted / CommentOrCDataOrDoctypeStarted / the CDataStarted and
// DoctypeStarted prefix chains) and on spec §4.2 for the entity-expansion
// reparse queue and its limits.
type Lexer struct {
	src charSource
	mode lexerMode

	queue           []queuedRune
	reparseDepth    int
	reparseQueueLen int

	MaxEntityExpansionDepth  int
	MaxEntityExpansionLength int

	// SkipErrors makes partial-sigil failures degrade to literal Character
	// tokens instead of errors. Internal test/debug affordance only
	// (spec §4.2, "Test/debug mode"), never enabled by the public Reader.
	SkipErrors bool

	eofSticky bool
}

// charSource yields decoded Unicode scalars with position information.
// CharReader is the only production implementation.
type charSource interface {
	NextRune() (rune, TextPosition, error)
}

// NewLexer constructs a Lexer reading from src with the given entity
// expansion limits.
func NewLexer(src charSource, maxEntityExpansionDepth, maxEntityExpansionLength int) *Lexer {
	return &Lexer{
		src:                      src,
		MaxEntityExpansionDepth:  maxEntityExpansionDepth,
		MaxEntityExpansionLength: maxEntityExpansionLength,
	}
}

// Reparse prepends s's characters to the front of the reread queue so the
// next tokens come from its expansion (spec §4.2, "entity reparse").
// Returns KindEntityTooBig if doing so would exceed the configured depth
// or length bound.
func (l *Lexer) Reparse(s string, pos TextPosition) error {
	runes := []rune(s)
	if l.reparseQueueLen+len(runes) > l.MaxEntityExpansionLength {
		return &SyntaxError{Kind: KindEntityTooBig, Message: "entity expansion exceeds the configured length limit", Position: pos}
	}
	l.reparseDepth++
	if l.reparseDepth > l.MaxEntityExpansionDepth {
		return &SyntaxError{Kind: KindEntityTooBig, Message: "entity expansion exceeds the configured depth limit", Position: pos}
	}
	items := make([]queuedRune, len(runes))
	for i, r := range runes {
		items[i] = queuedRune{r: r, pos: pos, reparse: true}
	}
	l.queue = append(items, l.queue...)
	l.reparseQueueLen += len(runes)
	return nil
}

func (l *Lexer) pushBack(r rune, pos TextPosition) {
	l.queue = append([]queuedRune{{r: r, pos: pos}}, l.queue...)
}

// readRune pops from the reread queue when non-empty, else reads fresh
// from the underlying source — which is also the point the reparse-depth
// counter resets (spec §4.2).
func (l *Lexer) readRune() (rune, TextPosition, error) {
	if len(l.queue) > 0 {
		item := l.queue[0]
		l.queue = l.queue[1:]
		if item.reparse {
			l.reparseQueueLen--
		}
		return item.r, item.pos, nil
	}
	l.reparseDepth = 0
	return l.src.NextRune()
}

// matchLiteral consumes runes matching expected one at a time. On mismatch
// the offending rune is pushed back so it tokenizes normally afterward.
func (l *Lexer) matchLiteral(expected string) (matched string, ok bool, bad rune, badPos TextPosition, err error) {
	consumed := make([]rune, 0, len(expected))
	for _, want := range expected {
		r, pos, rerr := l.readRune()
		if rerr != nil {
			return string(consumed), false, 0, pos, rerr
		}
		if r != want {
			l.pushBack(r, pos)
			return string(consumed), false, r, pos, nil
		}
		consumed = append(consumed, r)
	}
	return string(consumed), true, 0, TextPosition{}, nil
}

// Next produces the next token, dispatching on the lexer's persistent mode.
func (l *Lexer) Next() (Token, error) {
	if l.eofSticky {
		return Token{Kind: TokEof}, nil
	}
	switch l.mode {
	case modeComment:
		return l.lexInsideComment()
	case modeCData:
		return l.lexInsideCData()
	case modePI:
		return l.lexInsidePI()
	default:
		return l.lexNormal()
	}
}

func (l *Lexer) lexNormal() (Token, error) {
	r, pos, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			return Token{Kind: TokEof, Pos: pos}, nil
		}
		return Token{}, err
	}
	switch r {
	case '<':
		return l.lexAfterLt(pos)
	case '>':
		return Token{Kind: TokTagEnd, Pos: pos}, nil
	case '/':
		return l.lexAfterSlash(pos)
	case '=':
		return Token{Kind: TokEquals, Pos: pos}, nil
	case '\'':
		return Token{Kind: TokSingleQuote, Pos: pos}, nil
	case '"':
		return Token{Kind: TokDoubleQuote, Pos: pos}, nil
	case ']':
		return l.lexAfterBracket(pos)
	case '&':
		return Token{Kind: TokAmpersand, Pos: pos}, nil
	case ';':
		return Token{Kind: TokSemicolon, Pos: pos}, nil
	default:
		return Token{Kind: TokCharacter, Char: r, Pos: pos}, nil
	}
}

func (l *Lexer) lexAfterSlash(pos TextPosition) (Token, error) {
	r, rpos, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			// EmptyTagClosing: the partial '/' is emitted as a character,
			// Eof becomes sticky afterward (spec §4.2, "EOF discipline").
			l.eofSticky = true
			return Token{Kind: TokCharacter, Char: '/', Pos: pos}, nil
		}
		return Token{}, err
	}
	if r == '>' {
		return Token{Kind: TokEmptyElementEnd, Pos: pos}, nil
	}
	l.pushBack(r, rpos)
	return Token{Kind: TokCharacter, Char: '/', Pos: pos}, nil
}

func (l *Lexer) lexAfterBracket(pos TextPosition) (Token, error) {
	r2, pos2, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			return Token{Kind: TokCharacter, Char: ']', Pos: pos}, nil
		}
		return Token{}, err
	}
	if r2 != ']' {
		l.pushBack(r2, pos2)
		return Token{Kind: TokCharacter, Char: ']', Pos: pos}, nil
	}
	r3, pos3, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			l.pushBack(r2, pos2)
			return Token{Kind: TokCharacter, Char: ']', Pos: pos}, nil
		}
		return Token{}, err
	}
	if r3 != '>' {
		l.pushBack(r3, pos3)
		l.pushBack(r2, pos2)
		return Token{Kind: TokCharacter, Char: ']', Pos: pos}, nil
	}
	return Token{}, newSyntaxError(pos, KindUnexpectedToken, "unexpected token: ]]> outside a CDATA section")
}

// requeuePrefix pushes s back onto the front of the queue in order, so a
// later retry re-reads exactly the bytes already consumed this attempt.
// Used on a transient EOF partway through a multi-character sigil so
// streaming callers (ReaderConfig.IgnoreEndOfStream) can append more bytes
// and resume the match from scratch instead of losing the prefix.
func (l *Lexer) requeuePrefix(s string, pos TextPosition) {
	runes := []rune(s)
	for i := len(runes) - 1; i >= 0; i-- {
		l.pushBack(runes[i], pos)
	}
}

func (l *Lexer) lexAfterLt(ltPos TextPosition) (Token, error) {
	r, pos, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			l.requeuePrefix("<", ltPos)
			return Token{}, newSyntaxError(pos, KindUnexpectedEof, "unexpected end of file after '<'")
		}
		return Token{}, err
	}
	switch r {
	case '?':
		return Token{Kind: TokPIStart, Pos: ltPos}, nil
	case '/':
		return Token{Kind: TokCloseTagStart, Pos: ltPos}, nil
	case '!':
		return l.lexBang(ltPos)
	default:
		// Name-start or whitespace: an opening tag, with the character
		// un-read for the parser to consume.
		l.pushBack(r, pos)
		return Token{Kind: TokTagStart, Pos: ltPos}, nil
	}
}

func (l *Lexer) lexBang(ltPos TextPosition) (Token, error) {
	r, pos, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			l.requeuePrefix("<!", ltPos)
			return Token{}, newSyntaxError(pos, KindUnexpectedEof, "unexpected end of file after '<!'")
		}
		return Token{}, err
	}
	switch r {
	case '-':
		r2, pos2, err2 := l.readRune()
		if err2 != nil {
			if err2 == io.EOF {
				l.requeuePrefix("<!-", ltPos)
				return Token{}, newSyntaxError(pos2, KindUnexpectedEof, "unexpected end of file after '<!-'")
			}
			return Token{}, err2
		}
		if r2 != '-' {
			return l.failSigil("<!-", []rune{'-'}, r2, pos2, ltPos)
		}
		l.mode = modeComment
		return Token{Kind: TokCommentStart, Pos: ltPos}, nil
	case '[':
		matched, ok, bad, badPos, merr := l.matchLiteral("CDATA[")
		if merr != nil {
			l.requeuePrefix("<!["+matched, ltPos)
			return Token{}, newSyntaxError(badPos, KindUnexpectedEof, "unexpected end of file inside '<![CDATA['")
		}
		if !ok {
			return l.failSigil("<!["+matched, nil, bad, badPos, ltPos)
		}
		l.mode = modeCData
		return Token{Kind: TokCDataStart, Pos: ltPos}, nil
	case 'D':
		matched, ok, bad, badPos, merr := l.matchLiteral("OCTYPE")
		if merr != nil {
			l.requeuePrefix("<!D"+matched, ltPos)
			return Token{}, newSyntaxError(badPos, KindUnexpectedEof, "unexpected end of file inside '<!DOCTYPE'")
		}
		if !ok {
			return l.failSigil("<!D"+matched, nil, bad, badPos, ltPos)
		}
		return Token{Kind: TokDoctypeStart, Pos: ltPos}, nil
	case 'E', 'A', 'N':
		// Internal-subset markup declaration (<!ELEMENT, <!ATTLIST,
		// <!NOTATION, ...): the parser reads the rest of the name as
		// ordinary characters, so push the matched letter back.
		l.pushBack(r, pos)
		return Token{Kind: TokMarkupDeclStart, Pos: ltPos}, nil
	default:
		return l.failSigil("<!", nil, r, pos, ltPos)
	}
}

// failSigil reports (or, in SkipErrors mode, recovers from) a partial
// markup sigil that didn't resolve to a known one (spec §4.2). Recovery
// emits the leading '<' as a literal character and requeues the rest of
// the failed prefix without it, so the retry reads those runes as plain
// characters instead of walking straight back into lexAfterLt and hitting
// the same failure again.
func (l *Lexer) failSigil(prefix string, extra []rune, bad rune, badPos TextPosition, tokenPos TextPosition) (Token, error) {
	if l.SkipErrors {
		rest := []rune(prefix)[1:]
		requeue := append([]rune(nil), rest...)
		requeue = append(requeue, extra...)
		requeue = append(requeue, bad)
		for i := len(requeue) - 1; i >= 0; i-- {
			l.pushBack(requeue[i], badPos)
		}
		return Token{Kind: TokCharacter, Char: '<', Pos: tokenPos}, nil
	}
	return Token{}, newSyntaxError(badPos, KindUnexpectedTokenBefore,
		"unexpected token before %q: %q", prefix, string(bad))
}

func (l *Lexer) lexInsideComment() (Token, error) {
	r, pos, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			return Token{}, newSyntaxError(pos, KindUnexpectedEof, "unexpected end of file inside comment")
		}
		return Token{}, err
	}
	if r != '-' {
		return Token{Kind: TokCharacter, Char: r, Pos: pos}, nil
	}
	r2, pos2, err2 := l.readRune()
	if err2 != nil {
		if err2 == io.EOF {
			// CommentClosing(First): the lone '-' is emitted, Eof sticks.
			l.eofSticky = true
			return Token{Kind: TokCharacter, Char: '-', Pos: pos}, nil
		}
		return Token{}, err2
	}
	if r2 != '-' {
		l.pushBack(r2, pos2)
		return Token{Kind: TokCharacter, Char: '-', Pos: pos}, nil
	}
	r3, pos3, err3 := l.readRune()
	if err3 != nil {
		if err3 == io.EOF {
			return Token{}, newSyntaxError(pos3, KindUnexpectedEof, "unexpected end of file inside comment")
		}
		return Token{}, err3
	}
	if r3 != '>' {
		return Token{}, newSyntaxError(pos, KindUnexpectedToken, "'--' is not allowed inside a comment")
	}
	l.mode = modeNormal
	return Token{Kind: TokCommentEnd, Pos: pos}, nil
}

func (l *Lexer) lexInsideCData() (Token, error) {
	r, pos, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			return Token{}, newSyntaxError(pos, KindUnclosedCdata, "unexpected end of file inside CDATA section")
		}
		return Token{}, err
	}
	if r != ']' {
		return Token{Kind: TokCharacter, Char: r, Pos: pos}, nil
	}
	r2, pos2, err2 := l.readRune()
	if err2 != nil {
		if err2 == io.EOF {
			return Token{}, newSyntaxError(pos2, KindUnclosedCdata, "unexpected end of file inside CDATA section")
		}
		return Token{}, err2
	}
	if r2 != ']' {
		l.pushBack(r2, pos2)
		return Token{Kind: TokCharacter, Char: ']', Pos: pos}, nil
	}
	r3, pos3, err3 := l.readRune()
	if err3 != nil {
		if err3 == io.EOF {
			return Token{}, newSyntaxError(pos3, KindUnclosedCdata, "unexpected end of file inside CDATA section")
		}
		return Token{}, err3
	}
	if r3 != '>' {
		l.pushBack(r3, pos3)
		l.pushBack(r2, pos2)
		return Token{Kind: TokCharacter, Char: ']', Pos: pos}, nil
	}
	l.mode = modeNormal
	return Token{Kind: TokCDataEnd, Pos: pos}, nil
}

func (l *Lexer) lexInsidePI() (Token, error) {
	r, pos, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			return Token{}, newSyntaxError(pos, KindUnexpectedEof, "unexpected end of file inside processing instruction")
		}
		return Token{}, err
	}
	if r != '?' {
		return Token{Kind: TokCharacter, Char: r, Pos: pos}, nil
	}
	r2, pos2, err2 := l.readRune()
	if err2 != nil {
		if err2 == io.EOF {
			return Token{}, newSyntaxError(pos2, KindUnexpectedEof, "unexpected end of file inside processing instruction")
		}
		return Token{}, err2
	}
	if r2 != '>' {
		l.pushBack(r2, pos2)
		return Token{Kind: TokCharacter, Char: '?', Pos: pos}, nil
	}
	l.mode = modeNormal
	return Token{Kind: TokPIEnd, Pos: pos}, nil
}

// EnterPI switches the lexer to raw-content mode for processing
// instruction data, called by the parser right after consuming TokPIStart
// and the target name.
func (l *Lexer) EnterPI() { l.mode = modePI }
