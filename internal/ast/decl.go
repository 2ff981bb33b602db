package ast

import (
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// Decl is the view over a bound or unbound declaration.
type Decl struct {
	n *syntax.Node
}

// CanCastDecl reports whether the kind is a declaration.
func CanCastDecl(kind syntax.Kind) bool {
	return kind == syntax.KindBoundDeclNode || kind == syntax.KindUnboundDeclNode
}

// CastDecl wraps a declaration node, or returns nil for any other kind.
func CastDecl(n *syntax.Node) *Decl {
	if n == nil || !CanCastDecl(n.Kind()) {
		return nil
	}
	return &Decl{n: n}
}

// Node returns the underlying syntax node.
func (d *Decl) Node() *syntax.Node { return d.n }

// Span returns the declaration's source span.
func (d *Decl) Span() diag.Span { return d.n.Span() }

// IsBound reports whether the declaration has an initializer.
func (d *Decl) IsBound() bool { return d.n.Kind() == syntax.KindBoundDeclNode }

// Env reports whether the declaration carries the `env` modifier.
func (d *Decl) Env() bool {
	return d.n.FirstTokenByKind(syntax.KindEnvKeyword) != nil
}

// Type returns the declared type view, or nil for malformed input.
func (d *Decl) Type() *Type {
	for _, c := range d.n.Children() {
		if t := CastType(c); t != nil {
			return t
		}
	}
	return nil
}

// NameToken returns the declared name token, or nil for malformed input.
func (d *Decl) NameToken() *syntax.Token {
	return d.n.FirstTokenByKind(syntax.KindIdent)
}

// Name returns the declared name, or empty for malformed input.
func (d *Decl) Name() string { return identText(d.n) }

// Expr returns the initializer expression, or nil when unbound.
func (d *Decl) Expr() *Expr {
	for _, c := range d.n.Children() {
		if e := CastExpr(c); e != nil {
			return e
		}
	}
	return nil
}

// TypeKind distinguishes the grammatical forms a type can take.
type TypeKind int

const (
	// TypePrimitive covers Boolean, Int, Float, String, File, Directory.
	TypePrimitive TypeKind = iota
	// TypeArray is Array[X] with an optional + qualifier.
	TypeArray
	// TypeMap is Map[K, V].
	TypeMap
	// TypePair is Pair[L, R].
	TypePair
	// TypeObject is the Object keyword type.
	TypeObject
	// TypeRef names a struct (or an unknown type).
	TypeRef
)

// Type is the view over any type node.
type Type struct {
	n    *syntax.Node
	kind TypeKind
}

// CanCastType reports whether the kind is a type node.
func CanCastType(kind syntax.Kind) bool {
	switch kind {
	case syntax.KindPrimitiveTypeNode, syntax.KindArrayTypeNode,
		syntax.KindMapTypeNode, syntax.KindPairTypeNode,
		syntax.KindObjectTypeNode, syntax.KindTypeRefNode:
		return true
	}
	return false
}

// CastType wraps a type node, or returns nil for any other kind.
func CastType(n *syntax.Node) *Type {
	if n == nil {
		return nil
	}
	var kind TypeKind
	switch n.Kind() {
	case syntax.KindPrimitiveTypeNode:
		kind = TypePrimitive
	case syntax.KindArrayTypeNode:
		kind = TypeArray
	case syntax.KindMapTypeNode:
		kind = TypeMap
	case syntax.KindPairTypeNode:
		kind = TypePair
	case syntax.KindObjectTypeNode:
		kind = TypeObject
	case syntax.KindTypeRefNode:
		kind = TypeRef
	default:
		return nil
	}
	return &Type{n: n, kind: kind}
}

// Node returns the underlying syntax node.
func (t *Type) Node() *syntax.Node { return t.n }

// Kind returns the grammatical form of the type.
func (t *Type) Kind() TypeKind { return t.kind }

// Span returns the type's source span.
func (t *Type) Span() diag.Span { return t.n.Span() }

// Optional reports whether the type carries a `?` suffix.
func (t *Type) Optional() bool {
	return t.n.FirstTokenByKind(syntax.KindQuestion) != nil
}

// NonEmpty reports whether an array type carries the `+` qualifier.
func (t *Type) NonEmpty() bool {
	return t.kind == TypeArray && t.n.FirstTokenByKind(syntax.KindPlus) != nil
}

// PrimitiveKeyword returns the primitive keyword kind for a primitive type.
func (t *Type) PrimitiveKeyword() syntax.Kind {
	for _, e := range t.n.ChildrenWithTokens() {
		if e.Token != nil && e.Token.Kind().IsKeyword() {
			return e.Token.Kind()
		}
	}
	return syntax.KindUnknown
}

// TypeParams returns the nested type views: one element for arrays, key and
// value for maps, left and right for pairs.
func (t *Type) TypeParams() []*Type {
	var out []*Type
	for _, c := range t.n.Children() {
		if nested := CastType(c); nested != nil {
			out = append(out, nested)
		}
	}
	return out
}

// Name returns the referenced type name for a TypeRef.
func (t *Type) Name() string { return identText(t.n) }
