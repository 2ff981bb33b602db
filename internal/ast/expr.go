package ast

import (
	"strconv"
	"strings"

	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// Expr is the sum view over every expression form. Callers dispatch on the
// node kind and use the accessor matching the form.
type Expr struct {
	n *syntax.Node
}

// CanCastExpr reports whether the kind is an expression node.
func CanCastExpr(kind syntax.Kind) bool {
	switch kind {
	case syntax.KindLiteralIntNode, syntax.KindLiteralFloatNode,
		syntax.KindLiteralBoolNode, syntax.KindLiteralNoneNode,
		syntax.KindLiteralStringNode, syntax.KindLiteralArrayNode,
		syntax.KindLiteralPairNode, syntax.KindLiteralMapNode,
		syntax.KindLiteralObjectNode, syntax.KindLiteralStructNode,
		syntax.KindNameRefNode, syntax.KindParenExprNode,
		syntax.KindIfExprNode, syntax.KindLogicalNotExprNode,
		syntax.KindNegationExprNode, syntax.KindLogicalOrExprNode,
		syntax.KindLogicalAndExprNode, syntax.KindEqualityExprNode,
		syntax.KindInequalityExprNode, syntax.KindLessExprNode,
		syntax.KindLessEqualExprNode, syntax.KindGreaterExprNode,
		syntax.KindGreaterEqualExprNode, syntax.KindAdditionExprNode,
		syntax.KindSubtractionExprNode, syntax.KindMultiplicationExprNode,
		syntax.KindDivisionExprNode, syntax.KindModuloExprNode,
		syntax.KindExponentiationExprNode, syntax.KindCallExprNode,
		syntax.KindIndexExprNode, syntax.KindAccessExprNode,
		syntax.KindErrorNode:
		return true
	}
	return false
}

// CastExpr wraps an expression node, or returns nil for any other kind.
// Error nodes cast as expressions so recovered trees still traverse.
func CastExpr(n *syntax.Node) *Expr {
	if n == nil || !CanCastExpr(n.Kind()) {
		return nil
	}
	return &Expr{n: n}
}

// Node returns the underlying syntax node.
func (e *Expr) Node() *syntax.Node { return e.n }

// Kind returns the node kind.
func (e *Expr) Kind() syntax.Kind { return e.n.Kind() }

// Span returns the expression's source span.
func (e *Expr) Span() diag.Span { return e.n.Span() }

// subExprs returns the direct child expressions in order.
func (e *Expr) subExprs() []*Expr {
	var out []*Expr
	for _, c := range e.n.Children() {
		if sub := CastExpr(c); sub != nil {
			out = append(out, sub)
		}
	}
	return out
}

// Operands returns the child expressions of a unary or binary operator, or
// of a paren expression.
func (e *Expr) Operands() []*Expr { return e.subExprs() }

// IfBranches returns the condition, then, and else expressions of an
// if-expression; any may be nil for malformed input.
func (e *Expr) IfBranches() (cond, thenExpr, elseExpr *Expr) {
	subs := e.subExprs()
	if len(subs) > 0 {
		cond = subs[0]
	}
	if len(subs) > 1 {
		thenExpr = subs[1]
	}
	if len(subs) > 2 {
		elseExpr = subs[2]
	}
	return cond, thenExpr, elseExpr
}

// IntValue parses a literal int's value. Hex and octal forms follow Go
// conventions, which match WDL's.
func (e *Expr) IntValue() (int64, bool) {
	tok := e.n.FirstTokenByKind(syntax.KindIntLiteral)
	if tok == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(tok.Text(), 0, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FloatValue parses a literal float's value.
func (e *Expr) FloatValue() (float64, bool) {
	tok := e.n.FirstTokenByKind(syntax.KindFloatLiteral)
	if tok == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok.Text(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BoolValue returns a literal bool's value.
func (e *Expr) BoolValue() (bool, bool) {
	if e.n.FirstTokenByKind(syntax.KindTrueKeyword) != nil {
		return true, true
	}
	if e.n.FirstTokenByKind(syntax.KindFalseKeyword) != nil {
		return false, true
	}
	return false, false
}

// Name returns the identifier of a name reference.
func (e *Expr) Name() string { return identText(e.n) }

// NameToken returns the identifier token of a name reference, or nil.
func (e *Expr) NameToken() *syntax.Token {
	return e.n.FirstTokenByKind(syntax.KindIdent)
}

// Elements returns an array literal's elements in order.
func (e *Expr) Elements() []*Expr { return e.subExprs() }

// PairValues returns a pair literal's left and right expressions.
func (e *Expr) PairValues() (left, right *Expr) {
	subs := e.subExprs()
	if len(subs) > 0 {
		left = subs[0]
	}
	if len(subs) > 1 {
		right = subs[1]
	}
	return left, right
}

// MapItems returns a map literal's key/value items in order.
func (e *Expr) MapItems() []MapItem {
	var out []MapItem
	for _, c := range e.n.ChildrenByKind(syntax.KindLiteralMapItemNode) {
		item := MapItem{}
		subs := (&Expr{n: c}).subExprs()
		if len(subs) > 0 {
			item.Key = subs[0]
		}
		if len(subs) > 1 {
			item.Value = subs[1]
		}
		out = append(out, item)
	}
	return out
}

// MapItem is one key/value entry of a map literal.
type MapItem struct {
	Key   *Expr
	Value *Expr
}

// ObjectItems returns an object or struct literal's members in order.
func (e *Expr) ObjectItems() []ObjectItem {
	itemKind := syntax.KindLiteralObjectItemNode
	if e.n.Kind() == syntax.KindLiteralStructNode {
		itemKind = syntax.KindLiteralStructItemNode
	}
	var out []ObjectItem
	for _, c := range e.n.ChildrenByKind(itemKind) {
		item := ObjectItem{Name: identText(c), Span: c.Span()}
		if subs := (&Expr{n: c}).subExprs(); len(subs) > 0 {
			item.Value = subs[0]
		}
		out = append(out, item)
	}
	return out
}

// ObjectItem is one member of an object or struct literal.
type ObjectItem struct {
	Name  string
	Span  diag.Span
	Value *Expr
}

// StructName returns a struct literal's type name.
func (e *Expr) StructName() string { return identText(e.n) }

// CallTarget returns a call expression's function name.
func (e *Expr) CallTarget() string { return identText(e.n) }

// CallTargetToken returns a call expression's function name token, or nil.
func (e *Expr) CallTargetToken() *syntax.Token {
	return e.n.FirstTokenByKind(syntax.KindIdent)
}

// CallArgs returns a call expression's arguments in order.
func (e *Expr) CallArgs() []*Expr { return e.subExprs() }

// IndexParts returns an index expression's target and index.
func (e *Expr) IndexParts() (target, index *Expr) {
	subs := e.subExprs()
	if len(subs) > 0 {
		target = subs[0]
	}
	if len(subs) > 1 {
		index = subs[1]
	}
	return target, index
}

// AccessParts returns an access expression's target and member name token.
func (e *Expr) AccessParts() (target *Expr, member *syntax.Token) {
	subs := e.subExprs()
	if len(subs) > 0 {
		target = subs[0]
	}
	// The member is the identifier that follows the dot; a NameRef target
	// holds its own identifier inside its child node, so the member is the
	// only direct identifier token.
	member = e.n.FirstTokenByKind(syntax.KindIdent)
	return target, member
}

// StringParts returns a string literal's text runs and placeholders in
// order.
func (e *Expr) StringParts() []StringPart {
	var out []StringPart
	for _, el := range e.n.ChildrenWithTokens() {
		if el.Token != nil && el.Token.Kind() == syntax.KindStringText {
			out = append(out, StringPart{Text: el.Token})
		} else if el.Node != nil && el.Node.Kind() == syntax.KindPlaceholderNode {
			out = append(out, StringPart{Placeholder: &Placeholder{n: el.Node}})
		}
	}
	return out
}

// StringPart is one segment of a string literal. Exactly one field is set.
type StringPart struct {
	Text        *syntax.Token
	Placeholder *Placeholder
}

// ConstantText returns the unescaped text of a string literal without
// placeholders. The second result is false when the string interpolates.
func (e *Expr) ConstantText() (string, bool) {
	lit := &LiteralString{n: e.n}
	return lit.ConstantText()
}

// LiteralString gives string-specific helpers a home separate from Expr.
type LiteralString struct {
	n *syntax.Node
}

// ConstantText returns the unescaped text when the string has no
// placeholders.
func (s *LiteralString) ConstantText() (string, bool) {
	var b strings.Builder
	for _, el := range s.n.ChildrenWithTokens() {
		if el.Node != nil && el.Node.Kind() == syntax.KindPlaceholderNode {
			return "", false
		}
		if el.Token != nil && el.Token.Kind() == syntax.KindStringText {
			b.WriteString(Unescape(el.Token.Text()))
		}
	}
	return b.String(), true
}

// Unescape resolves WDL string escape sequences in a text run.
func Unescape(text string) string {
	if !strings.ContainsRune(text, '\\') {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 >= len(text) {
			b.WriteByte(c)
			continue
		}
		i++
		switch text[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '\'':
			b.WriteByte('\'')
		case '"':
			b.WriteByte('"')
		case '~', '$':
			b.WriteByte(text[i])
		default:
			// Unknown escapes stay verbatim.
			b.WriteByte('\\')
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

// Placeholder is the view over a `~{ ... }` interpolation.
type Placeholder struct {
	n *syntax.Node
}

// Node returns the underlying syntax node.
func (p *Placeholder) Node() *syntax.Node { return p.n }

// Span returns the placeholder's source span.
func (p *Placeholder) Span() diag.Span { return p.n.Span() }

// Expr returns the interpolated expression, or nil for malformed input.
func (p *Placeholder) Expr() *Expr {
	for _, c := range p.n.Children() {
		if c.Kind() == syntax.KindPlaceholderOptionNode {
			continue
		}
		if e := CastExpr(c); e != nil {
			return e
		}
	}
	return nil
}

// Options returns the placeholder's options in order.
func (p *Placeholder) Options() []PlaceholderOption {
	var out []PlaceholderOption
	for _, c := range p.n.ChildrenByKind(syntax.KindPlaceholderOptionNode) {
		opt := PlaceholderOption{Span: c.Span()}
		if tok := (&Expr{n: c}).firstAnyToken(); tok != nil {
			opt.Name = tok.Text()
		}
		if subs := (&Expr{n: c}).subExprs(); len(subs) > 0 {
			opt.Value = subs[0]
		}
		out = append(out, opt)
	}
	return out
}

// PlaceholderOption is one `sep=`, `true=`, `false=`, or `default=` option.
type PlaceholderOption struct {
	Name  string
	Span  diag.Span
	Value *Expr
}

// firstAnyToken returns the node's first non-trivia token of any kind.
func (e *Expr) firstAnyToken() *syntax.Token {
	for _, el := range e.n.ChildrenWithTokens() {
		if el.Token != nil && !el.Token.Kind().IsTrivia() {
			return el.Token
		}
	}
	return nil
}
