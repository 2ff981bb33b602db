package parser

import (
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/syntax/lexer"
)

// Binding powers for the Pratt loop. Left-associative operators recurse with
// lbp+1; exponentiation is right-associative and recurses with its own lbp.
type binaryOp struct {
	node syntax.Kind
	lbp  int
	rbp  int
}

var binaryOps = map[syntax.Kind]binaryOp{
	syntax.KindLogicalOr:    {syntax.KindLogicalOrExprNode, 1, 2},
	syntax.KindLogicalAnd:   {syntax.KindLogicalAndExprNode, 2, 3},
	syntax.KindEqual:        {syntax.KindEqualityExprNode, 3, 4},
	syntax.KindNotEqual:     {syntax.KindInequalityExprNode, 3, 4},
	syntax.KindLess:         {syntax.KindLessExprNode, 3, 4},
	syntax.KindLessEqual:    {syntax.KindLessEqualExprNode, 3, 4},
	syntax.KindGreater:      {syntax.KindGreaterExprNode, 3, 4},
	syntax.KindGreaterEqual: {syntax.KindGreaterEqualExprNode, 3, 4},
	syntax.KindPlus:         {syntax.KindAdditionExprNode, 4, 5},
	syntax.KindMinus:        {syntax.KindSubtractionExprNode, 4, 5},
	syntax.KindStar:         {syntax.KindMultiplicationExprNode, 5, 6},
	syntax.KindSlash:        {syntax.KindDivisionExprNode, 5, 6},
	syntax.KindPercent:      {syntax.KindModuloExprNode, 5, 6},
	syntax.KindExp:          {syntax.KindExponentiationExprNode, 6, 6},
}

// expression parses a full expression at the lowest binding power.
func (p *parser) expression() {
	p.exprBP(0)
}

func (p *parser) exprBP(minBP int) {
	cp := p.b.Mark()
	p.unaryExpr()
	p.binaryLoop(cp, minBP)
}

// binaryLoop extends an already-parsed left operand at the checkpoint with
// binary operators of at least the given binding power.
func (p *parser) binaryLoop(cp syntax.Checkpoint, minBP int) {
	for {
		op, ok := binaryOps[p.peek().Kind]
		if !ok || op.lbp < minBP {
			return
		}
		p.b.StartNodeAt(cp, op.node)
		p.bump()
		p.exprBP(op.rbp)
		p.b.FinishNode()
	}
}

func (p *parser) unaryExpr() {
	switch p.peek().Kind {
	case syntax.KindExclamation:
		p.b.StartNode(syntax.KindLogicalNotExprNode)
		p.bump()
		p.unaryExpr()
		p.b.FinishNode()
	case syntax.KindMinus:
		p.b.StartNode(syntax.KindNegationExprNode)
		p.bump()
		p.unaryExpr()
		p.b.FinishNode()
	default:
		cp := p.b.Mark()
		p.primaryExpr()
		p.postfixLoop(cp)
	}
}

// postfixLoop applies indexing and member access to the operand parsed at
// the checkpoint.
func (p *parser) postfixLoop(cp syntax.Checkpoint) {
	for {
		switch p.peek().Kind {
		case syntax.KindOpenBracket:
			p.b.StartNodeAt(cp, syntax.KindIndexExprNode)
			p.bump()
			p.expression()
			p.expect(syntax.KindCloseBracket, "`]` to close the index")
			p.b.FinishNode()
		case syntax.KindDot:
			p.b.StartNodeAt(cp, syntax.KindAccessExprNode)
			p.bump()
			p.expect(syntax.KindIdent, "a member name after `.`")
			p.b.FinishNode()
		default:
			return
		}
	}
}

func (p *parser) primaryExpr() {
	t := p.peek()
	switch t.Kind {
	case syntax.KindIntLiteral:
		p.b.StartNode(syntax.KindLiteralIntNode)
		p.bump()
		p.b.FinishNode()

	case syntax.KindFloatLiteral:
		p.b.StartNode(syntax.KindLiteralFloatNode)
		p.bump()
		p.b.FinishNode()

	case syntax.KindTrueKeyword, syntax.KindFalseKeyword:
		p.b.StartNode(syntax.KindLiteralBoolNode)
		p.bump()
		p.b.FinishNode()

	case syntax.KindNoneKeyword:
		p.b.StartNode(syntax.KindLiteralNoneNode)
		p.bump()
		p.b.FinishNode()

	case syntax.KindDoubleQuote, syntax.KindSingleQuote:
		p.stringLiteral()

	case syntax.KindIfKeyword:
		p.b.StartNode(syntax.KindIfExprNode)
		p.bump()
		p.expression()
		p.expect(syntax.KindThenKeyword, "the `then` keyword")
		p.expression()
		p.expect(syntax.KindElseKeyword, "the `else` keyword")
		p.expression()
		p.b.FinishNode()

	case syntax.KindOpenParen:
		p.parenOrPair()

	case syntax.KindOpenBracket:
		p.b.StartNode(syntax.KindLiteralArrayNode)
		p.bump()
		for {
			t := p.peek()
			if t.Kind == syntax.KindCloseBracket || t.Kind == syntax.KindEOF {
				break
			}
			p.expression()
			if p.at(syntax.KindComma) {
				p.bump()
			} else if !p.at(syntax.KindCloseBracket) {
				break
			}
		}
		p.expect(syntax.KindCloseBracket, "`]` to close the array literal")
		p.b.FinishNode()

	case syntax.KindOpenBrace:
		p.b.StartNode(syntax.KindLiteralMapNode)
		p.bump()
		for {
			t := p.peek()
			if t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF {
				break
			}
			p.b.StartNode(syntax.KindLiteralMapItemNode)
			p.expression()
			p.expect(syntax.KindColon, "`:` between the map key and value")
			p.expression()
			p.b.FinishNode()
			if p.at(syntax.KindComma) {
				p.bump()
			} else if !p.at(syntax.KindCloseBrace) {
				break
			}
		}
		p.expect(syntax.KindCloseBrace, "`}` to close the map literal")
		p.b.FinishNode()

	case syntax.KindObjectKeyword:
		p.b.StartNode(syntax.KindLiteralObjectNode)
		p.bump()
		p.expect(syntax.KindOpenBrace, "`{` to open the object literal")
		for {
			t := p.peek()
			if t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF {
				break
			}
			if t.Kind != syntax.KindIdent {
				p.recover("an object literal member", declAnchors)
				continue
			}
			p.b.StartNode(syntax.KindLiteralObjectItemNode)
			p.bump()
			p.expect(syntax.KindColon, "`:` after the member name")
			p.expression()
			p.b.FinishNode()
			if p.at(syntax.KindComma) {
				p.bump()
			}
		}
		p.expect(syntax.KindCloseBrace, "`}` to close the object literal")
		p.b.FinishNode()

	case syntax.KindIdent:
		cp := p.b.Mark()
		p.bump()
		switch p.peek().Kind {
		case syntax.KindOpenParen:
			p.b.StartNodeAt(cp, syntax.KindCallExprNode)
			p.bump()
			for {
				t := p.peek()
				if t.Kind == syntax.KindCloseParen || t.Kind == syntax.KindEOF {
					break
				}
				p.expression()
				if p.at(syntax.KindComma) {
					p.bump()
				} else if !p.at(syntax.KindCloseParen) {
					break
				}
			}
			p.expect(syntax.KindCloseParen, "`)` to close the call arguments")
			p.b.FinishNode()
		case syntax.KindOpenBrace:
			p.b.StartNodeAt(cp, syntax.KindLiteralStructNode)
			p.bump()
			for {
				t := p.peek()
				if t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF {
					break
				}
				if t.Kind != syntax.KindIdent {
					p.recover("a struct literal member", declAnchors)
					continue
				}
				p.b.StartNode(syntax.KindLiteralStructItemNode)
				p.bump()
				p.expect(syntax.KindColon, "`:` after the member name")
				p.expression()
				p.b.FinishNode()
				if p.at(syntax.KindComma) {
					p.bump()
				}
			}
			p.expect(syntax.KindCloseBrace, "`}` to close the struct literal")
			p.b.FinishNode()
		default:
			p.b.StartNodeAt(cp, syntax.KindNameRefNode)
			p.b.FinishNode()
		}

	case syntax.KindTaskKeyword:
		// In WDL >=1.2 `task` is a readable value inside task command,
		// output, requirements, and hints contexts.
		p.b.StartNode(syntax.KindNameRefNode)
		p.bumpAs(syntax.KindIdent)
		p.b.FinishNode()

	default:
		p.diags.Add(diag.Errorf(p.tokenSpan(), "expected an expression, found %s", describeToken(t)))
		// Emit an empty error node so the surrounding node still has an
		// expression slot; the unexpected token belongs to the caller's
		// context and its recovery set.
		p.b.StartNode(syntax.KindErrorNode)
		p.b.FinishNode()
	}
}

// parenOrPair disambiguates a parenthesized expression from a pair literal
// after parsing the first inner expression.
func (p *parser) parenOrPair() {
	cp := p.b.Mark()
	p.bump() // (
	p.expression()
	if p.at(syntax.KindComma) {
		p.b.StartNodeAt(cp, syntax.KindLiteralPairNode)
		p.bump()
		p.expression()
		p.expect(syntax.KindCloseParen, "`)` to close the pair literal")
		p.b.FinishNode()
		return
	}
	p.b.StartNodeAt(cp, syntax.KindParenExprNode)
	p.expect(syntax.KindCloseParen, "`)` to close the expression")
	p.b.FinishNode()
}

// stringLiteral parses a quoted string with embedded placeholders. The
// opening quote decides which string mode lexes the interior.
func (p *parser) stringLiteral() {
	open := p.peek().Kind
	mode := lexer.ModeDQString
	if open == syntax.KindSingleQuote {
		mode = lexer.ModeSQString
	}
	p.b.StartNode(syntax.KindLiteralStringNode)
	p.bump() // opening quote
	for {
		t := p.lx.Peek(mode)
		switch t.Kind {
		case syntax.KindEOF:
			p.diags.Add(diag.Errorf(p.tokenSpan(), "string literal is missing a closing quote"))
			p.b.FinishNode()
			return
		case syntax.KindSingleQuote, syntax.KindDoubleQuote:
			p.bumpMode(mode)
			p.b.FinishNode()
			return
		case syntax.KindPlaceholderOpen:
			p.placeholder(mode)
		default:
			p.bumpMode(mode)
		}
	}
}

// placeholder parses `~{ ... }` (or `${ ... }`) inside a string or command.
// The interior is ordinary expression syntax, optionally preceded by
// sep/true/false/default options.
func (p *parser) placeholder(outer lexer.Mode) {
	p.b.StartNode(syntax.KindPlaceholderNode)
	p.bumpMode(outer) // ~{ or ${

	exprDone := false
	for !exprDone {
		t := p.peek()
		switch {
		case t.Kind == syntax.KindIdent && (t.Text == "sep" || t.Text == "default"):
			exprDone = !p.placeholderOptionOrName(syntax.KindNameRefNode)
		case t.Kind == syntax.KindTrueKeyword || t.Kind == syntax.KindFalseKeyword:
			exprDone = !p.placeholderOptionOrName(syntax.KindLiteralBoolNode)
		default:
			p.expression()
			exprDone = true
		}
	}

	p.expect(syntax.KindCloseBrace, "`}` to close the placeholder")
	p.b.FinishNode()
}

// placeholderOptionOrName consumes the next token and decides from the
// following token whether it opened a placeholder option (`sep=...`) or the
// placeholder expression itself. Returns true when it was an option and the
// caller should keep scanning for more.
func (p *parser) placeholderOptionOrName(exprKind syntax.Kind) bool {
	cp := p.b.Mark()
	p.bump()
	if p.at(syntax.KindAssign) {
		p.b.StartNodeAt(cp, syntax.KindPlaceholderOptionNode)
		p.bump()
		// Option values are literals; full binary expressions would be
		// ambiguous with the placeholder expression that follows.
		p.unaryExpr()
		p.b.FinishNode()
		return true
	}

	// The token was the start of the placeholder expression.
	p.b.StartNodeAt(cp, exprKind)
	p.b.FinishNode()
	exprCp := cp
	p.postfixLoop(exprCp)
	p.binaryLoop(exprCp, 0)
	return false
}
