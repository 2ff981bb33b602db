package ast

import (
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// WorkflowDefinition is the view over a workflow.
type WorkflowDefinition struct {
	n *syntax.Node
}

// CanCastWorkflowDefinition reports whether the kind is a workflow.
func CanCastWorkflowDefinition(kind syntax.Kind) bool {
	return kind == syntax.KindWorkflowDefinitionNode
}

// CastWorkflowDefinition wraps a workflow node, or returns nil otherwise.
func CastWorkflowDefinition(n *syntax.Node) *WorkflowDefinition {
	if n == nil || !CanCastWorkflowDefinition(n.Kind()) {
		return nil
	}
	return &WorkflowDefinition{n: n}
}

// Node returns the underlying syntax node.
func (w *WorkflowDefinition) Node() *syntax.Node { return w.n }

// Span returns the definition's source span.
func (w *WorkflowDefinition) Span() diag.Span { return w.n.Span() }

// NameToken returns the workflow name token, or nil for malformed input.
func (w *WorkflowDefinition) NameToken() *syntax.Token {
	return w.n.FirstTokenByKind(syntax.KindIdent)
}

// Name returns the workflow name, or empty for malformed input.
func (w *WorkflowDefinition) Name() string { return identText(w.n) }

// Input returns the input section, or nil.
func (w *WorkflowDefinition) Input() *InputSection {
	if n := w.n.FirstChildByKind(syntax.KindInputSectionNode); n != nil {
		return &InputSection{n: n}
	}
	return nil
}

// Output returns the output section, or nil.
func (w *WorkflowDefinition) Output() *OutputSection {
	if n := w.n.FirstChildByKind(syntax.KindOutputSectionNode); n != nil {
		return &OutputSection{n: n}
	}
	return nil
}

// Hints returns the workflow hints section, or nil.
func (w *WorkflowDefinition) Hints() *KeyValueSection {
	if n := w.n.FirstChildByKind(syntax.KindHintsSectionNode); n != nil {
		return &KeyValueSection{n: n, itemKind: syntax.KindHintsItemNode}
	}
	return nil
}

// Statements returns the workflow body statements in order: declarations,
// calls, scatters, and conditionals.
func (w *WorkflowDefinition) Statements() []*WorkflowStatement {
	return statements(w.n)
}

func statements(n *syntax.Node) []*WorkflowStatement {
	var out []*WorkflowStatement
	for _, c := range n.Children() {
		if s := CastWorkflowStatement(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// WorkflowStatementKind distinguishes workflow body statements.
type WorkflowStatementKind int

const (
	// StatementDecl is a private bound declaration.
	StatementDecl WorkflowStatementKind = iota
	// StatementCall invokes a task or workflow.
	StatementCall
	// StatementScatter iterates its body over an array.
	StatementScatter
	// StatementConditional guards its body with a predicate.
	StatementConditional
)

// WorkflowStatement is the sum view over workflow body statements.
type WorkflowStatement struct {
	n    *syntax.Node
	kind WorkflowStatementKind
}

// CastWorkflowStatement wraps a workflow statement node, or returns nil.
func CastWorkflowStatement(n *syntax.Node) *WorkflowStatement {
	if n == nil {
		return nil
	}
	var kind WorkflowStatementKind
	switch n.Kind() {
	case syntax.KindBoundDeclNode, syntax.KindUnboundDeclNode:
		kind = StatementDecl
	case syntax.KindCallStatementNode:
		kind = StatementCall
	case syntax.KindScatterStatementNode:
		kind = StatementScatter
	case syntax.KindConditionalStatementNode:
		kind = StatementConditional
	default:
		return nil
	}
	return &WorkflowStatement{n: n, kind: kind}
}

// Node returns the underlying syntax node.
func (s *WorkflowStatement) Node() *syntax.Node { return s.n }

// Kind returns the statement form.
func (s *WorkflowStatement) Kind() WorkflowStatementKind { return s.kind }

// Span returns the statement's source span.
func (s *WorkflowStatement) Span() diag.Span { return s.n.Span() }

// Decl returns the declaration view for StatementDecl, else nil.
func (s *WorkflowStatement) Decl() *Decl {
	if s.kind != StatementDecl {
		return nil
	}
	return CastDecl(s.n)
}

// Call returns the call view for StatementCall, else nil.
func (s *WorkflowStatement) Call() *CallStatement {
	if s.kind != StatementCall {
		return nil
	}
	return &CallStatement{n: s.n}
}

// Scatter returns the scatter view for StatementScatter, else nil.
func (s *WorkflowStatement) Scatter() *ScatterStatement {
	if s.kind != StatementScatter {
		return nil
	}
	return &ScatterStatement{n: s.n}
}

// Conditional returns the conditional view for StatementConditional.
func (s *WorkflowStatement) Conditional() *ConditionalStatement {
	if s.kind != StatementConditional {
		return nil
	}
	return &ConditionalStatement{n: s.n}
}

// CallStatement is the view over a call.
type CallStatement struct {
	n *syntax.Node
}

// Node returns the underlying syntax node.
func (c *CallStatement) Node() *syntax.Node { return c.n }

// Span returns the statement's source span.
func (c *CallStatement) Span() diag.Span { return c.n.Span() }

// TargetParts returns the dotted target path segments in order.
func (c *CallStatement) TargetParts() []*syntax.Token {
	target := c.n.FirstChildByKind(syntax.KindCallTargetNode)
	if target == nil {
		return nil
	}
	return target.TokensByKind(syntax.KindIdent)
}

// TargetSpan returns the span of the dotted target path.
func (c *CallStatement) TargetSpan() diag.Span {
	if target := c.n.FirstChildByKind(syntax.KindCallTargetNode); target != nil {
		return target.Span()
	}
	return c.n.Span()
}

// AliasToken returns the `as` alias token, or nil.
func (c *CallStatement) AliasToken() *syntax.Token {
	alias := c.n.FirstChildByKind(syntax.KindCallAliasNode)
	if alias == nil {
		return nil
	}
	return alias.FirstTokenByKind(syntax.KindIdent)
}

// Name returns the name the call introduces into scope: the alias when
// present, otherwise the last target segment.
func (c *CallStatement) Name() string {
	if tok := c.AliasToken(); tok != nil {
		return tok.Text()
	}
	parts := c.TargetParts()
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1].Text()
}

// NameSpan returns the span of the name the call introduces.
func (c *CallStatement) NameSpan() diag.Span {
	if tok := c.AliasToken(); tok != nil {
		return tok.Span()
	}
	parts := c.TargetParts()
	if len(parts) == 0 {
		return c.n.Span()
	}
	return parts[len(parts)-1].Span()
}

// Afters returns the names of `after` dependencies in order.
func (c *CallStatement) Afters() []*syntax.Token {
	var out []*syntax.Token
	for _, n := range c.n.ChildrenByKind(syntax.KindCallAfterNode) {
		if tok := n.FirstTokenByKind(syntax.KindIdent); tok != nil {
			out = append(out, tok)
		}
	}
	return out
}

// Inputs returns the call's input bindings in order.
func (c *CallStatement) Inputs() []*CallInput {
	nodes := c.n.ChildrenByKind(syntax.KindCallInputItemNode)
	out := make([]*CallInput, len(nodes))
	for i, n := range nodes {
		out[i] = &CallInput{n: n}
	}
	return out
}

// CallInput is one `name = expr` (or shorthand `name`) binding.
type CallInput struct {
	n *syntax.Node
}

// Span returns the binding's source span.
func (c *CallInput) Span() diag.Span { return c.n.Span() }

// Name returns the bound input name.
func (c *CallInput) Name() string { return identText(c.n) }

// NameToken returns the bound input name token, or nil.
func (c *CallInput) NameToken() *syntax.Token {
	return c.n.FirstTokenByKind(syntax.KindIdent)
}

// Expr returns the bound expression, or nil for the `name` shorthand that
// forwards a value of the same name from the enclosing scope.
func (c *CallInput) Expr() *Expr {
	for _, child := range c.n.Children() {
		if e := CastExpr(child); e != nil {
			return e
		}
	}
	return nil
}

// ScatterStatement is the view over a scatter.
type ScatterStatement struct {
	n *syntax.Node
}

// Node returns the underlying syntax node.
func (s *ScatterStatement) Node() *syntax.Node { return s.n }

// Span returns the statement's source span.
func (s *ScatterStatement) Span() diag.Span { return s.n.Span() }

// VariableToken returns the scatter variable token, or nil.
func (s *ScatterStatement) VariableToken() *syntax.Token {
	return s.n.FirstTokenByKind(syntax.KindIdent)
}

// Variable returns the scatter variable name.
func (s *ScatterStatement) Variable() string { return identText(s.n) }

// Expr returns the scattered array expression, or nil.
func (s *ScatterStatement) Expr() *Expr {
	for _, c := range s.n.Children() {
		if e := CastExpr(c); e != nil {
			return e
		}
	}
	return nil
}

// Statements returns the scatter body statements in order.
func (s *ScatterStatement) Statements() []*WorkflowStatement {
	return statements(s.n)
}

// ConditionalStatement is the view over an `if` statement.
type ConditionalStatement struct {
	n *syntax.Node
}

// Node returns the underlying syntax node.
func (c *ConditionalStatement) Node() *syntax.Node { return c.n }

// Span returns the statement's source span.
func (c *ConditionalStatement) Span() diag.Span { return c.n.Span() }

// Expr returns the predicate expression, or nil.
func (c *ConditionalStatement) Expr() *Expr {
	for _, child := range c.n.Children() {
		if e := CastExpr(child); e != nil {
			return e
		}
	}
	return nil
}

// Statements returns the conditional body statements in order.
func (c *ConditionalStatement) Statements() []*WorkflowStatement {
	return statements(c.n)
}
