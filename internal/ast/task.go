package ast

import (
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// TaskDefinition is the view over a task.
type TaskDefinition struct {
	n *syntax.Node
}

// CanCastTaskDefinition reports whether the kind is a task definition.
func CanCastTaskDefinition(kind syntax.Kind) bool {
	return kind == syntax.KindTaskDefinitionNode
}

// CastTaskDefinition wraps a task node, or returns nil for any other kind.
func CastTaskDefinition(n *syntax.Node) *TaskDefinition {
	if n == nil || !CanCastTaskDefinition(n.Kind()) {
		return nil
	}
	return &TaskDefinition{n: n}
}

// Node returns the underlying syntax node.
func (t *TaskDefinition) Node() *syntax.Node { return t.n }

// Span returns the definition's source span.
func (t *TaskDefinition) Span() diag.Span { return t.n.Span() }

// NameToken returns the task name token, or nil for malformed input.
func (t *TaskDefinition) NameToken() *syntax.Token {
	return t.n.FirstTokenByKind(syntax.KindIdent)
}

// Name returns the task name, or empty for malformed input.
func (t *TaskDefinition) Name() string { return identText(t.n) }

// Input returns the input section, or nil.
func (t *TaskDefinition) Input() *InputSection {
	if n := t.n.FirstChildByKind(syntax.KindInputSectionNode); n != nil {
		return &InputSection{n: n}
	}
	return nil
}

// Output returns the output section, or nil.
func (t *TaskDefinition) Output() *OutputSection {
	if n := t.n.FirstChildByKind(syntax.KindOutputSectionNode); n != nil {
		return &OutputSection{n: n}
	}
	return nil
}

// Command returns the command section, or nil.
func (t *TaskDefinition) Command() *CommandSection {
	if n := t.n.FirstChildByKind(syntax.KindCommandSectionNode); n != nil {
		return &CommandSection{n: n}
	}
	return nil
}

// Runtime returns the runtime section, or nil.
func (t *TaskDefinition) Runtime() *KeyValueSection {
	if n := t.n.FirstChildByKind(syntax.KindRuntimeSectionNode); n != nil {
		return &KeyValueSection{n: n, itemKind: syntax.KindRuntimeItemNode}
	}
	return nil
}

// Requirements returns the requirements section, or nil.
func (t *TaskDefinition) Requirements() *KeyValueSection {
	if n := t.n.FirstChildByKind(syntax.KindRequirementsSectionNode); n != nil {
		return &KeyValueSection{n: n, itemKind: syntax.KindRequirementsItemNode}
	}
	return nil
}

// Hints returns the hints section, or nil.
func (t *TaskDefinition) Hints() *KeyValueSection {
	if n := t.n.FirstChildByKind(syntax.KindHintsSectionNode); n != nil {
		return &KeyValueSection{n: n, itemKind: syntax.KindHintsItemNode}
	}
	return nil
}

// PrivateDecls returns the task's private declarations in order.
func (t *TaskDefinition) PrivateDecls() []*Decl {
	var out []*Decl
	for _, n := range t.n.Children() {
		if d := CastDecl(n); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// InputSection is the view over an input section.
type InputSection struct {
	n *syntax.Node
}

// Node returns the underlying syntax node.
func (s *InputSection) Node() *syntax.Node { return s.n }

// Span returns the section's source span.
func (s *InputSection) Span() diag.Span { return s.n.Span() }

// Decls returns the input declarations in order.
func (s *InputSection) Decls() []*Decl {
	var out []*Decl
	for _, n := range s.n.Children() {
		if d := CastDecl(n); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// OutputSection is the view over an output section.
type OutputSection struct {
	n *syntax.Node
}

// Node returns the underlying syntax node.
func (s *OutputSection) Node() *syntax.Node { return s.n }

// Span returns the section's source span.
func (s *OutputSection) Span() diag.Span { return s.n.Span() }

// Decls returns the output declarations in order.
func (s *OutputSection) Decls() []*Decl {
	var out []*Decl
	for _, n := range s.n.Children() {
		if d := CastDecl(n); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// KeyValueSection is the shared view over runtime, requirements, and hints
// sections.
type KeyValueSection struct {
	n        *syntax.Node
	itemKind syntax.Kind
}

// Node returns the underlying syntax node.
func (s *KeyValueSection) Node() *syntax.Node { return s.n }

// Span returns the section's source span.
func (s *KeyValueSection) Span() diag.Span { return s.n.Span() }

// Items returns the `name: expr` items in order.
func (s *KeyValueSection) Items() []*KeyValueItem {
	nodes := s.n.ChildrenByKind(s.itemKind)
	out := make([]*KeyValueItem, len(nodes))
	for i, n := range nodes {
		out[i] = &KeyValueItem{n: n}
	}
	return out
}

// KeyValueItem is one `name: expr` entry.
type KeyValueItem struct {
	n *syntax.Node
}

// Span returns the item's source span.
func (i *KeyValueItem) Span() diag.Span { return i.n.Span() }

// Name returns the item key.
func (i *KeyValueItem) Name() string { return identText(i.n) }

// NameToken returns the item key token, or nil for malformed input.
func (i *KeyValueItem) NameToken() *syntax.Token {
	return i.n.FirstTokenByKind(syntax.KindIdent)
}

// Expr returns the item value expression, or nil for malformed input.
func (i *KeyValueItem) Expr() *Expr {
	for _, c := range i.n.Children() {
		if e := CastExpr(c); e != nil {
			return e
		}
	}
	return nil
}

// CommandPart is one segment of a command body: literal text or a
// placeholder. Exactly one field is set.
type CommandPart struct {
	Text        *syntax.Token
	Placeholder *Placeholder
}

// CommandSection is the view over a command body.
type CommandSection struct {
	n *syntax.Node
}

// Node returns the underlying syntax node.
func (s *CommandSection) Node() *syntax.Node { return s.n }

// Span returns the section's source span.
func (s *CommandSection) Span() diag.Span { return s.n.Span() }

// IsHeredoc reports whether the body uses <<< >>> delimiters.
func (s *CommandSection) IsHeredoc() bool {
	return s.n.FirstTokenByKind(syntax.KindOpenHeredoc) != nil
}

// Parts returns the body's text runs and placeholders in order.
func (s *CommandSection) Parts() []CommandPart {
	var out []CommandPart
	for _, e := range s.n.ChildrenWithTokens() {
		if e.Token != nil && e.Token.Kind() == syntax.KindCommandText {
			out = append(out, CommandPart{Text: e.Token})
		} else if e.Node != nil && e.Node.Kind() == syntax.KindPlaceholderNode {
			out = append(out, CommandPart{Placeholder: &Placeholder{n: e.Node}})
		}
	}
	return out
}
