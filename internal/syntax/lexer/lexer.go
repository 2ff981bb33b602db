// Package lexer turns WDL source bytes into tokens. The lexer is modal: the
// parser tells it which sublanguage the cursor is in (default, string,
// heredoc command, brace command, or version), and the lexer interprets the
// next bytes under that mode's rules. Concatenating every emitted token's
// text reproduces the input byte-for-byte; bytes that fit no rule come back
// as Unknown tokens rather than being dropped.
package lexer

import (
	"strings"

	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// Mode selects the token rules in effect at the cursor.
type Mode int

const (
	// ModeDefault lexes declarations, statements, and expressions.
	ModeDefault Mode = iota
	// ModeSQString lexes the interior of a single-quoted string.
	ModeSQString
	// ModeDQString lexes the interior of a double-quoted string.
	ModeDQString
	// ModeHeredoc lexes the interior of a <<< >>> command. Only ~{ opens a
	// placeholder; ${ is literal text.
	ModeHeredoc
	// ModeBraceCommand lexes the interior of a command { } block.
	ModeBraceCommand
	// ModeVersion lexes the value of a version statement.
	ModeVersion
)

// Token is one lexed unit: its kind and the exact source text it covers.
type Token struct {
	Kind syntax.Kind
	Text string
}

// Lexer reads tokens from source text on demand. It holds no mode of its
// own; the caller passes the mode on every read so the parser's mode stack
// is the single source of truth.
type Lexer struct {
	src string
	pos int

	// One-token lookahead, valid only for the mode it was lexed under.
	peeked    bool
	peekMode  Mode
	peekToken Token
}

// New returns a lexer over the given source.
func New(src string) *Lexer {
	return &Lexer{src: src}
}

// Offset returns the byte offset of the next unconsumed token.
func (l *Lexer) Offset() int { return l.pos }

// EOF reports whether the entire input has been consumed.
func (l *Lexer) EOF() bool {
	return !l.peeked && l.pos >= len(l.src)
}

// Peek returns the next token under the given mode without consuming it.
func (l *Lexer) Peek(mode Mode) Token {
	if l.peeked && l.peekMode == mode {
		return l.peekToken
	}
	l.peekToken = l.lex(mode)
	l.peekMode = mode
	l.peeked = true
	return l.peekToken
}

// Next consumes and returns the next token under the given mode.
func (l *Lexer) Next(mode Mode) Token {
	tok := l.Peek(mode)
	l.peeked = false
	l.pos += len(tok.Text)
	return tok
}

func (l *Lexer) lex(mode Mode) Token {
	if l.pos >= len(l.src) {
		return Token{Kind: syntax.KindEOF}
	}
	switch mode {
	case ModeSQString:
		return l.lexString('\'')
	case ModeDQString:
		return l.lexString('"')
	case ModeHeredoc:
		return l.lexHeredoc()
	case ModeBraceCommand:
		return l.lexBraceCommand()
	case ModeVersion:
		return l.lexVersion()
	default:
		return l.lexDefault()
	}
}

func (l *Lexer) lexDefault() Token {
	rest := l.src[l.pos:]
	c := rest[0]

	switch {
	case c == ' ' || c == '\t' || c == '\r' || c == '\n':
		end := 1
		for end < len(rest) && (rest[end] == ' ' || rest[end] == '\t' || rest[end] == '\r' || rest[end] == '\n') {
			end++
		}
		return Token{Kind: syntax.KindWhitespace, Text: rest[:end]}

	case c == '#':
		end := strings.IndexByte(rest, '\n')
		if end < 0 {
			end = len(rest)
		}
		return Token{Kind: syntax.KindComment, Text: rest[:end]}

	case isIdentStart(c):
		end := 1
		for end < len(rest) && isIdentPart(rest[end]) {
			end++
		}
		text := rest[:end]
		if kind, ok := syntax.Keywords[text]; ok {
			return Token{Kind: kind, Text: text}
		}
		return Token{Kind: syntax.KindIdent, Text: text}

	case c >= '0' && c <= '9', c == '.' && len(rest) > 1 && isDigit(rest[1]):
		return l.lexNumber(rest)
	}

	// Multi-byte operators first, longest match wins.
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			return Token{Kind: op.kind, Text: rest[:len(op.text)]}
		}
	}

	switch c {
	case '"':
		return Token{Kind: syntax.KindDoubleQuote, Text: rest[:1]}
	case '\'':
		return Token{Kind: syntax.KindSingleQuote, Text: rest[:1]}
	}

	return Token{Kind: syntax.KindUnknown, Text: rest[:1]}
}

type operator struct {
	text string
	kind syntax.Kind
}

// Ordered longest-first so prefixes do not shadow longer operators.
var operators = []operator{
	{"<<<", syntax.KindOpenHeredoc},
	{">>>", syntax.KindCloseHeredoc},
	{"**", syntax.KindExp},
	{"==", syntax.KindEqual},
	{"!=", syntax.KindNotEqual},
	{"<=", syntax.KindLessEqual},
	{">=", syntax.KindGreaterEqual},
	{"&&", syntax.KindLogicalAnd},
	{"||", syntax.KindLogicalOr},
	{"~{", syntax.KindPlaceholderOpen},
	{"${", syntax.KindPlaceholderOpen},
	{"{", syntax.KindOpenBrace},
	{"}", syntax.KindCloseBrace},
	{"[", syntax.KindOpenBracket},
	{"]", syntax.KindCloseBracket},
	{"(", syntax.KindOpenParen},
	{")", syntax.KindCloseParen},
	{":", syntax.KindColon},
	{",", syntax.KindComma},
	{".", syntax.KindDot},
	{"?", syntax.KindQuestion},
	{"+", syntax.KindPlus},
	{"-", syntax.KindMinus},
	{"*", syntax.KindStar},
	{"/", syntax.KindSlash},
	{"%", syntax.KindPercent},
	{"=", syntax.KindAssign},
	{"<", syntax.KindLess},
	{">", syntax.KindGreater},
	{"!", syntax.KindExclamation},
}

func (l *Lexer) lexNumber(rest string) Token {
	// Hex.
	if len(rest) > 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X') && isHexDigit(rest[2]) {
		end := 2
		for end < len(rest) && isHexDigit(rest[end]) {
			end++
		}
		return Token{Kind: syntax.KindIntLiteral, Text: rest[:end]}
	}

	end := 0
	for end < len(rest) && isDigit(rest[end]) {
		end++
	}
	isFloat := false
	if end < len(rest) && rest[end] == '.' && end+1 < len(rest) && isDigit(rest[end+1]) {
		isFloat = true
		end++
		for end < len(rest) && isDigit(rest[end]) {
			end++
		}
	} else if end == 0 && rest[0] == '.' {
		// Leading-dot float like `.5`.
		isFloat = true
		end = 1
		for end < len(rest) && isDigit(rest[end]) {
			end++
		}
	}
	if end < len(rest) && (rest[end] == 'e' || rest[end] == 'E') {
		expEnd := end + 1
		if expEnd < len(rest) && (rest[expEnd] == '+' || rest[expEnd] == '-') {
			expEnd++
		}
		if expEnd < len(rest) && isDigit(rest[expEnd]) {
			isFloat = true
			end = expEnd
			for end < len(rest) && isDigit(rest[end]) {
				end++
			}
		}
	}

	if isFloat {
		return Token{Kind: syntax.KindFloatLiteral, Text: rest[:end]}
	}
	return Token{Kind: syntax.KindIntLiteral, Text: rest[:end]}
}

// lexString reads the interior of a quoted string. Escape sequences stay in
// the text run unchanged so the tree round-trips; unescaping happens when a
// literal value is needed.
func (l *Lexer) lexString(quote byte) Token {
	rest := l.src[l.pos:]
	c := rest[0]

	if c == quote {
		kind := syntax.KindSingleQuote
		if quote == '"' {
			kind = syntax.KindDoubleQuote
		}
		return Token{Kind: kind, Text: rest[:1]}
	}
	if (c == '~' || c == '$') && len(rest) > 1 && rest[1] == '{' {
		return Token{Kind: syntax.KindPlaceholderOpen, Text: rest[:2]}
	}

	end := 0
	for end < len(rest) {
		c := rest[end]
		if c == quote {
			break
		}
		if (c == '~' || c == '$') && end+1 < len(rest) && rest[end+1] == '{' {
			break
		}
		if c == '\\' && end+1 < len(rest) {
			end += 2
			continue
		}
		end++
	}
	if end == 0 {
		end = 1
	}
	return Token{Kind: syntax.KindStringText, Text: rest[:end]}
}

func (l *Lexer) lexHeredoc() Token {
	rest := l.src[l.pos:]

	if strings.HasPrefix(rest, ">>>") {
		return Token{Kind: syntax.KindCloseHeredoc, Text: rest[:3]}
	}
	if strings.HasPrefix(rest, "~{") {
		return Token{Kind: syntax.KindPlaceholderOpen, Text: rest[:2]}
	}

	end := 0
	for end < len(rest) {
		if strings.HasPrefix(rest[end:], ">>>") || strings.HasPrefix(rest[end:], "~{") {
			break
		}
		if rest[end] == '\\' && end+1 < len(rest) {
			end += 2
			continue
		}
		end++
	}
	if end == 0 {
		end = 1
	}
	return Token{Kind: syntax.KindCommandText, Text: rest[:end]}
}

func (l *Lexer) lexBraceCommand() Token {
	rest := l.src[l.pos:]

	if rest[0] == '}' {
		return Token{Kind: syntax.KindCloseBrace, Text: rest[:1]}
	}
	if (rest[0] == '~' || rest[0] == '$') && len(rest) > 1 && rest[1] == '{' {
		return Token{Kind: syntax.KindPlaceholderOpen, Text: rest[:2]}
	}

	end := 0
	for end < len(rest) {
		c := rest[end]
		if c == '}' {
			break
		}
		if (c == '~' || c == '$') && end+1 < len(rest) && rest[end+1] == '{' {
			break
		}
		if c == '\\' && end+1 < len(rest) {
			end += 2
			continue
		}
		end++
	}
	if end == 0 {
		end = 1
	}
	return Token{Kind: syntax.KindCommandText, Text: rest[:end]}
}

func (l *Lexer) lexVersion() Token {
	rest := l.src[l.pos:]
	c := rest[0]

	if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
		end := 1
		for end < len(rest) && (rest[end] == ' ' || rest[end] == '\t' || rest[end] == '\r' || rest[end] == '\n') {
			end++
		}
		return Token{Kind: syntax.KindWhitespace, Text: rest[:end]}
	}
	if c == '#' {
		end := strings.IndexByte(rest, '\n')
		if end < 0 {
			end = len(rest)
		}
		return Token{Kind: syntax.KindComment, Text: rest[:end]}
	}

	end := 0
	for end < len(rest) && isVersionPart(rest[end]) {
		end++
	}
	if end == 0 {
		return Token{Kind: syntax.KindUnknown, Text: rest[:1]}
	}
	return Token{Kind: syntax.KindVersionText, Text: rest[:end]}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isVersionPart(c byte) bool {
	return isIdentPart(c) || c == '.' || c == '-' || c == '+'
}
