// Package parser builds lossless green trees from WDL source. The grammar is
// handled by recursive descent, with Pratt-style precedence climbing for
// expressions. On a syntax error the parser reports a diagnostic, wraps the
// offending tokens into an error node, and resumes at the next anchor token
// for the surrounding context, so one bad construct never hides its siblings.
package parser

import (
	"strconv"
	"strings"

	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/syntax/lexer"
)

// Result is the output of a parse: the green root and the diagnostics
// produced along the way. The root always covers the entire input.
type Result struct {
	Root        *syntax.GreenNode
	Diagnostics []diag.Diagnostic
	// Version is the declared WDL version, or empty when the version
	// statement is missing or malformed.
	Version string
}

// Parse lexes and parses an entire WDL document.
func Parse(src string) Result {
	p := &parser{
		lx: lexer.New(src),
		b:  syntax.NewBuilder(),
		// Grammar gates assume the latest version until the version
		// statement says otherwise.
		major: 1,
		minor: 2,
	}
	p.document()
	return Result{
		Root:        p.b.Finish(),
		Diagnostics: p.diags.Items(),
		Version:     p.version,
	}
}

type parser struct {
	lx      *lexer.Lexer
	b       *syntax.Builder
	diags   diag.List
	version string
	major   int
	minor   int
}

// supports reports whether the declared version is at least major.minor.
func (p *parser) supports(major, minor int) bool {
	if p.major != major {
		return p.major > major
	}
	return p.minor >= minor
}

// peek returns the next meaningful token in default mode, first draining
// trivia into the currently open node.
func (p *parser) peek() lexer.Token {
	for {
		t := p.lx.Peek(lexer.ModeDefault)
		if t.Kind.IsTrivia() {
			p.bumpMode(lexer.ModeDefault)
			continue
		}
		return t
	}
}

// at reports whether the next meaningful token has the given kind.
func (p *parser) at(kind syntax.Kind) bool {
	return p.peek().Kind == kind
}

// bump consumes the next meaningful token into the open node.
func (p *parser) bump() {
	p.peek()
	p.bumpMode(lexer.ModeDefault)
}

// bumpMode consumes whatever token the lexer yields under the given mode.
func (p *parser) bumpMode(mode lexer.Mode) {
	t := p.lx.Next(mode)
	if t.Kind == syntax.KindEOF {
		return
	}
	p.b.Token(t.Kind, t.Text)
}

// bumpAs consumes the next meaningful token but records it under a different
// kind. Used to re-badge contextual keywords as plain identifiers.
func (p *parser) bumpAs(kind syntax.Kind) {
	t := p.peek()
	p.lx.Next(lexer.ModeDefault)
	if t.Kind == syntax.KindEOF {
		return
	}
	p.b.Token(kind, t.Text)
}

// tokenSpan returns the span the next meaningful token will occupy.
func (p *parser) tokenSpan() diag.Span {
	t := p.peek()
	n := len(t.Text)
	if n == 0 {
		n = 1
	}
	return diag.Span{Start: p.lx.Offset(), Len: n}
}

// expect consumes a token of the given kind or reports an error naming the
// construct being parsed. Returns whether the token was present.
func (p *parser) expect(kind syntax.Kind, what string) bool {
	if p.at(kind) {
		p.bump()
		return true
	}
	t := p.peek()
	found := describeToken(t)
	p.diags.Add(diag.Errorf(p.tokenSpan(), "expected %s, found %s", what, found))
	return false
}

func describeToken(t lexer.Token) string {
	if t.Kind == syntax.KindEOF {
		return "end of input"
	}
	return strconv.Quote(t.Text)
}

// anchors is a recovery set: token kinds at which a context can resume.
type anchors map[syntax.Kind]bool

func newAnchors(kinds ...syntax.Kind) anchors {
	a := make(anchors, len(kinds))
	for _, k := range kinds {
		a[k] = true
	}
	return a
}

func (a anchors) with(kinds ...syntax.Kind) anchors {
	out := make(anchors, len(a)+len(kinds))
	for k := range a {
		out[k] = true
	}
	for _, k := range kinds {
		out[k] = true
	}
	return out
}

var (
	documentItemAnchors = newAnchors(
		syntax.KindImportKeyword,
		syntax.KindStructKeyword,
		syntax.KindTaskKeyword,
		syntax.KindWorkflowKeyword,
	)

	taskItemAnchors = newAnchors(
		syntax.KindInputKeyword,
		syntax.KindOutputKeyword,
		syntax.KindCommandKeyword,
		syntax.KindRuntimeKeyword,
		syntax.KindRequirementsKeyword,
		syntax.KindHintsKeyword,
		syntax.KindMetaKeyword,
		syntax.KindParameterMetaKeyword,
		syntax.KindCloseBrace,
	)

	workflowItemAnchors = newAnchors(
		syntax.KindInputKeyword,
		syntax.KindOutputKeyword,
		syntax.KindMetaKeyword,
		syntax.KindParameterMetaKeyword,
		syntax.KindHintsKeyword,
		syntax.KindCallKeyword,
		syntax.KindScatterKeyword,
		syntax.KindIfKeyword,
		syntax.KindCloseBrace,
	)

	declAnchors = newAnchors(
		syntax.KindCloseBrace,
	)
)

// recover reports the unexpected token, then wraps tokens into an error node
// until an anchor, a close brace balance point, or end of input. The error
// node keeps every skipped byte so the tree stays lossless.
func (p *parser) recover(what string, set anchors) {
	t := p.peek()
	p.diags.Add(diag.Errorf(p.tokenSpan(), "unexpected %s while parsing %s", describeToken(t), what))
	p.b.StartNode(syntax.KindErrorNode)
	depth := 0
	// Always consume the offending token, even when it is an anchor for the
	// surrounding context; otherwise the caller would dispatch to the same
	// error forever.
	first := true
	for {
		t := p.peek()
		if t.Kind == syntax.KindEOF {
			break
		}
		if !first && depth == 0 && set[t.Kind] {
			break
		}
		switch t.Kind {
		case syntax.KindOpenBrace, syntax.KindOpenBracket, syntax.KindOpenParen:
			depth++
		case syntax.KindCloseBrace, syntax.KindCloseBracket, syntax.KindCloseParen:
			if depth > 0 {
				depth--
			} else if !first && set[t.Kind] {
				p.b.FinishNode()
				return
			}
		}
		first = false
		p.bump()
	}
	p.b.FinishNode()
}

// document parses the whole input: a version statement followed by imports,
// structs, tasks, and workflows, in any order.
func (p *parser) document() {
	p.b.StartNode(syntax.KindRootNode)

	p.versionStatement()

	for {
		t := p.peek()
		switch t.Kind {
		case syntax.KindEOF:
			// Drain any trailing trivia already handled by peek; nothing
			// else to do.
			p.b.FinishNode()
			return
		case syntax.KindImportKeyword:
			p.importStatement()
		case syntax.KindStructKeyword:
			p.structDefinition()
		case syntax.KindTaskKeyword:
			p.taskDefinition()
		case syntax.KindWorkflowKeyword:
			p.workflowDefinition()
		default:
			p.recover("a document item", documentItemAnchors)
		}
	}
}

func (p *parser) versionStatement() {
	if !p.at(syntax.KindVersionKeyword) {
		p.diags.Add(diag.Errorf(p.tokenSpan(),
			"a WDL document must start with a version statement").
			WithFix("add `version 1.2` at the top of the document"))
		return
	}
	p.b.StartNode(syntax.KindVersionStatementNode)
	p.bump()

	// Trivia between the keyword and the value still lexes in version mode.
	for {
		t := p.lx.Peek(lexer.ModeVersion)
		if t.Kind.IsTrivia() {
			p.bumpMode(lexer.ModeVersion)
			continue
		}
		if t.Kind == syntax.KindVersionText {
			p.version = t.Text
			p.parseVersionNumber(t.Text)
			p.bumpMode(lexer.ModeVersion)
		} else {
			p.diags.Add(diag.Errorf(diag.Span{Start: p.lx.Offset(), Len: max(len(t.Text), 1)},
				"expected a version like 1.2 after the version keyword"))
		}
		break
	}
	p.b.FinishNode()
}

func (p *parser) parseVersionNumber(text string) {
	parts := strings.SplitN(text, ".", 3)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return
	}
	minor := 0
	if len(parts) > 1 {
		// Trailing qualifiers like "2-rc1" still gate correctly.
		digits := parts[1]
		for i := 0; i < len(digits); i++ {
			if digits[i] < '0' || digits[i] > '9' {
				digits = digits[:i]
				break
			}
		}
		minor, _ = strconv.Atoi(digits)
	}
	p.major, p.minor = major, minor
}

func (p *parser) importStatement() {
	p.b.StartNode(syntax.KindImportStatementNode)
	p.bump() // import

	if p.at(syntax.KindDoubleQuote) || p.at(syntax.KindSingleQuote) {
		p.stringLiteral()
	} else {
		p.diags.Add(diag.Errorf(p.tokenSpan(), "expected an import path string"))
	}

	if p.at(syntax.KindAsKeyword) {
		p.bump()
		p.expect(syntax.KindIdent, "a namespace identifier")
	}

	for p.at(syntax.KindAliasKeyword) {
		p.b.StartNode(syntax.KindImportAliasNode)
		p.bump()
		p.expect(syntax.KindIdent, "a struct name to alias")
		p.expect(syntax.KindAsKeyword, "the `as` keyword")
		p.expect(syntax.KindIdent, "an alias identifier")
		p.b.FinishNode()
	}

	p.b.FinishNode()
}

func (p *parser) structDefinition() {
	p.b.StartNode(syntax.KindStructDefinitionNode)
	p.bump() // struct
	p.expect(syntax.KindIdent, "a struct name")
	p.expect(syntax.KindOpenBrace, "`{` to open the struct body")

	for {
		t := p.peek()
		switch {
		case t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF:
			p.expect(syntax.KindCloseBrace, "`}` to close the struct body")
			p.b.FinishNode()
			return
		case t.Kind == syntax.KindMetaKeyword:
			p.metadataSection(syntax.KindMetadataSectionNode)
		case t.Kind == syntax.KindParameterMetaKeyword:
			p.metadataSection(syntax.KindParameterMetadataSectionNode)
		case p.atType():
			p.declaration(false)
		default:
			p.recover("a struct member", declAnchors.with(syntax.KindMetaKeyword, syntax.KindParameterMetaKeyword))
		}
	}
}
