// Package ast provides strongly-typed views over the concrete syntax tree.
// Each view is a thin shell around a red node that filters children by kind;
// views allocate nothing beyond the traversal handles and perform no
// semantic checks.
package ast

import (
	"strings"

	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// Document is the view over a root node.
type Document struct {
	n *syntax.Node
}

// CanCastDocument reports whether the kind is a document root.
func CanCastDocument(kind syntax.Kind) bool { return kind == syntax.KindRootNode }

// CastDocument wraps a root node, or returns nil for any other kind.
func CastDocument(n *syntax.Node) *Document {
	if n == nil || !CanCastDocument(n.Kind()) {
		return nil
	}
	return &Document{n: n}
}

// Node returns the underlying syntax node.
func (d *Document) Node() *syntax.Node { return d.n }

// Version returns the declared version text, or empty when missing.
func (d *Document) Version() string {
	stmt := d.n.FirstChildByKind(syntax.KindVersionStatementNode)
	if stmt == nil {
		return ""
	}
	tok := stmt.FirstTokenByKind(syntax.KindVersionText)
	if tok == nil {
		return ""
	}
	return tok.Text()
}

// Imports returns every import statement in order.
func (d *Document) Imports() []*ImportStatement {
	nodes := d.n.ChildrenByKind(syntax.KindImportStatementNode)
	out := make([]*ImportStatement, len(nodes))
	for i, n := range nodes {
		out[i] = &ImportStatement{n: n}
	}
	return out
}

// Structs returns every struct definition in order.
func (d *Document) Structs() []*StructDefinition {
	nodes := d.n.ChildrenByKind(syntax.KindStructDefinitionNode)
	out := make([]*StructDefinition, len(nodes))
	for i, n := range nodes {
		out[i] = &StructDefinition{n: n}
	}
	return out
}

// Tasks returns every task definition in order.
func (d *Document) Tasks() []*TaskDefinition {
	nodes := d.n.ChildrenByKind(syntax.KindTaskDefinitionNode)
	out := make([]*TaskDefinition, len(nodes))
	for i, n := range nodes {
		out[i] = &TaskDefinition{n: n}
	}
	return out
}

// Workflows returns every workflow definition in order. A valid document
// has at most one; the analyzer reports the duplicates.
func (d *Document) Workflows() []*WorkflowDefinition {
	nodes := d.n.ChildrenByKind(syntax.KindWorkflowDefinitionNode)
	out := make([]*WorkflowDefinition, len(nodes))
	for i, n := range nodes {
		out[i] = &WorkflowDefinition{n: n}
	}
	return out
}

// ImportStatement is the view over an import.
type ImportStatement struct {
	n *syntax.Node
}

// Node returns the underlying syntax node.
func (s *ImportStatement) Node() *syntax.Node { return s.n }

// Span returns the statement's source span.
func (s *ImportStatement) Span() diag.Span { return s.n.Span() }

// URI returns the unescaped import path, or empty when malformed.
func (s *ImportStatement) URI() string {
	lit := s.n.FirstChildByKind(syntax.KindLiteralStringNode)
	if lit == nil {
		return ""
	}
	text, _ := (&LiteralString{n: lit}).ConstantText()
	return text
}

// ExplicitNamespace returns the `as` namespace identifier, or nil.
func (s *ImportStatement) ExplicitNamespace() *syntax.Token {
	return s.n.FirstTokenByKind(syntax.KindIdent)
}

// Namespace derives the namespace name: the explicit alias when present,
// otherwise the import file name stripped of its .wdl extension.
func (s *ImportStatement) Namespace() string {
	if tok := s.ExplicitNamespace(); tok != nil {
		return tok.Text()
	}
	uri := s.URI()
	if i := strings.LastIndexAny(uri, "/\\"); i >= 0 {
		uri = uri[i+1:]
	}
	return strings.TrimSuffix(uri, ".wdl")
}

// Aliases returns the `alias X as Y` clauses in order.
func (s *ImportStatement) Aliases() []*ImportAlias {
	nodes := s.n.ChildrenByKind(syntax.KindImportAliasNode)
	out := make([]*ImportAlias, len(nodes))
	for i, n := range nodes {
		out[i] = &ImportAlias{n: n}
	}
	return out
}

// ImportAlias is the view over an `alias X as Y` clause.
type ImportAlias struct {
	n *syntax.Node
}

// Names returns the source and target identifiers, either may be nil for
// malformed input.
func (a *ImportAlias) Names() (source, target *syntax.Token) {
	idents := a.n.TokensByKind(syntax.KindIdent)
	if len(idents) > 0 {
		source = idents[0]
	}
	if len(idents) > 1 {
		target = idents[1]
	}
	return source, target
}

// Span returns the clause's source span.
func (a *ImportAlias) Span() diag.Span { return a.n.Span() }

// StructDefinition is the view over a struct.
type StructDefinition struct {
	n *syntax.Node
}

// Node returns the underlying syntax node.
func (s *StructDefinition) Node() *syntax.Node { return s.n }

// Span returns the definition's source span.
func (s *StructDefinition) Span() diag.Span { return s.n.Span() }

// NameToken returns the struct name token, or nil for malformed input.
func (s *StructDefinition) NameToken() *syntax.Token {
	return s.n.FirstTokenByKind(syntax.KindIdent)
}

// Name returns the struct name, or empty for malformed input.
func (s *StructDefinition) Name() string {
	if tok := s.NameToken(); tok != nil {
		return tok.Text()
	}
	return ""
}

// Members returns the struct's member declarations in order.
func (s *StructDefinition) Members() []*Decl {
	var out []*Decl
	for _, n := range s.n.Children() {
		if d := CastDecl(n); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// identText returns the text of the first identifier token under the node.
func identText(n *syntax.Node) string {
	if tok := n.FirstTokenByKind(syntax.KindIdent); tok != nil {
		return tok.Text()
	}
	return ""
}
