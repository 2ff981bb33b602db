package syntax

import "github.com/antigravity-dev/wdlkit/internal/diag"

// Node is a red node: a green node positioned in a document. Nodes are cheap
// handles created on demand during traversal; nothing retains them long-term.
type Node struct {
	green  *GreenNode
	parent *Node
	offset int
}

// NewRoot wraps a green root node at offset zero.
func NewRoot(green *GreenNode) *Node {
	return &Node{green: green}
}

// Green returns the underlying green node.
func (n *Node) Green() *GreenNode { return n.green }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.green.Kind() }

// Parent returns the parent node, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Span returns the node's absolute byte span.
func (n *Node) Span() diag.Span {
	return diag.Span{Start: n.offset, Len: n.green.TextLen()}
}

// Text reconstructs the exact source text under the node.
func (n *Node) Text() string { return n.green.Text() }

// Token is a red token: a green token positioned in a document.
type Token struct {
	green  *GreenToken
	parent *Node
	offset int
}

// Kind returns the token kind.
func (t *Token) Kind() Kind { return t.green.Kind() }

// Text returns the token's literal text.
func (t *Token) Text() string { return t.green.Text() }

// Parent returns the node containing this token.
func (t *Token) Parent() *Node { return t.parent }

// Span returns the token's absolute byte span.
func (t *Token) Span() diag.Span {
	return diag.Span{Start: t.offset, Len: t.green.TextLen()}
}

// Element is a child of a node: either a Node or a Token, never both.
type Element struct {
	Node  *Node
	Token *Token
}

// Kind returns the kind of the held element.
func (e Element) Kind() Kind {
	if e.Node != nil {
		return e.Node.Kind()
	}
	return e.Token.Kind()
}

// Span returns the absolute span of the held element.
func (e Element) Span() diag.Span {
	if e.Node != nil {
		return e.Node.Span()
	}
	return e.Token.Span()
}

// ChildrenWithTokens returns every child element in source order.
func (n *Node) ChildrenWithTokens() []Element {
	out := make([]Element, 0, len(n.green.children))
	offset := n.offset
	for _, c := range n.green.children {
		if c.Node != nil {
			out = append(out, Element{Node: &Node{green: c.Node, parent: n, offset: offset}})
		} else {
			out = append(out, Element{Token: &Token{green: c.Token, parent: n, offset: offset}})
		}
		offset += c.TextLen()
	}
	return out
}

// Children returns the child nodes, skipping tokens.
func (n *Node) Children() []*Node {
	var out []*Node
	offset := n.offset
	for _, c := range n.green.children {
		if c.Node != nil {
			out = append(out, &Node{green: c.Node, parent: n, offset: offset})
		}
		offset += c.TextLen()
	}
	return out
}

// FirstChildByKind returns the first child node of the given kind.
func (n *Node) FirstChildByKind(kind Kind) *Node {
	offset := n.offset
	for _, c := range n.green.children {
		if c.Node != nil && c.Node.Kind() == kind {
			return &Node{green: c.Node, parent: n, offset: offset}
		}
		offset += c.TextLen()
	}
	return nil
}

// ChildrenByKind returns every child node of the given kind in order.
func (n *Node) ChildrenByKind(kind Kind) []*Node {
	var out []*Node
	offset := n.offset
	for _, c := range n.green.children {
		if c.Node != nil && c.Node.Kind() == kind {
			out = append(out, &Node{green: c.Node, parent: n, offset: offset})
		}
		offset += c.TextLen()
	}
	return out
}

// FirstTokenByKind returns the first direct child token of the given kind.
func (n *Node) FirstTokenByKind(kind Kind) *Token {
	offset := n.offset
	for _, c := range n.green.children {
		if c.Token != nil && c.Token.Kind() == kind {
			return &Token{green: c.Token, parent: n, offset: offset}
		}
		offset += c.TextLen()
	}
	return nil
}

// TokensByKind returns every direct child token of the given kind in order.
func (n *Node) TokensByKind(kind Kind) []*Token {
	var out []*Token
	offset := n.offset
	for _, c := range n.green.children {
		if c.Token != nil && c.Token.Kind() == kind {
			out = append(out, &Token{green: c.Token, parent: n, offset: offset})
		}
		offset += c.TextLen()
	}
	return out
}

// FirstToken returns the first token under the node, descending into child
// nodes, or nil when the subtree is empty.
func (n *Node) FirstToken() *Token {
	offset := n.offset
	for _, c := range n.green.children {
		if c.Token != nil {
			return &Token{green: c.Token, parent: n, offset: offset}
		}
		child := &Node{green: c.Node, parent: n, offset: offset}
		if t := child.FirstToken(); t != nil {
			return t
		}
		offset += c.TextLen()
	}
	return nil
}

// LastToken returns the last token under the node, descending into child
// nodes, or nil when the subtree is empty.
func (n *Node) LastToken() *Token {
	offset := n.offset + n.green.TextLen()
	for i := len(n.green.children) - 1; i >= 0; i-- {
		c := n.green.children[i]
		offset -= c.TextLen()
		if c.Token != nil {
			return &Token{green: c.Token, parent: n, offset: offset}
		}
		child := &Node{green: c.Node, parent: n, offset: offset}
		if t := child.LastToken(); t != nil {
			return t
		}
	}
	return nil
}

// TokenAtOffset returns the token covering the byte offset. When the offset
// falls exactly between two tokens the token starting there wins; an offset
// at the very end of the node yields its last token; nil is returned for
// offsets outside the node.
func (n *Node) TokenAtOffset(target int) *Token {
	span := n.Span()
	if target < span.Start || target > span.End() {
		return nil
	}
	offset := n.offset
	var last *Token
	for _, c := range n.green.children {
		end := offset + c.TextLen()
		if c.Token != nil {
			tok := &Token{green: c.Token, parent: n, offset: offset}
			if target < end {
				return tok
			}
			last = tok
		} else if target < end || (target == end && end == span.End()) {
			child := &Node{green: c.Node, parent: n, offset: offset}
			if t := child.TokenAtOffset(target); t != nil {
				return t
			}
		}
		offset = end
	}
	return last
}

// Ancestors walks from the node to the root, calling fn for each node
// including the receiver. Traversal stops when fn returns false.
func (n *Node) Ancestors(fn func(*Node) bool) {
	for cur := n; cur != nil; cur = cur.parent {
		if !fn(cur) {
			return
		}
	}
}

// Descendants walks the subtree in depth-first pre-order, calling fn for
// each node including the receiver. Children of a node are skipped when fn
// returns false for it.
func (n *Node) Descendants(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Descendants(fn)
	}
}
