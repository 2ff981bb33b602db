package syntax

import (
	"hash/fnv"
	"strings"
	"sync"
)

// GreenToken is an immutable leaf storing its literal source text.
type GreenToken struct {
	kind Kind
	text string
}

// Kind returns the token kind.
func (t *GreenToken) Kind() Kind { return t.kind }

// Text returns the literal source text of the token.
func (t *GreenToken) Text() string { return t.text }

// TextLen returns the byte length of the token text.
func (t *GreenToken) TextLen() int { return len(t.text) }

// GreenChild holds either a node or a token. Exactly one field is set.
type GreenChild struct {
	Node  *GreenNode
	Token *GreenToken
}

// Kind returns the kind of whichever element the child holds.
func (c GreenChild) Kind() Kind {
	if c.Node != nil {
		return c.Node.Kind()
	}
	return c.Token.Kind()
}

// TextLen returns the total text length of the child.
func (c GreenChild) TextLen() int {
	if c.Node != nil {
		return c.Node.TextLen()
	}
	return c.Token.TextLen()
}

// GreenNode is an immutable interior node. Identical subtrees may share the
// same green node; nodes must never be mutated after construction.
type GreenNode struct {
	kind     Kind
	textLen  int
	children []GreenChild
}

// Kind returns the node kind.
func (n *GreenNode) Kind() Kind { return n.kind }

// TextLen returns the total byte length of all text under the node.
func (n *GreenNode) TextLen() int { return n.textLen }

// Children returns the node's child list. Callers must not mutate it.
func (n *GreenNode) Children() []GreenChild { return n.children }

// WriteText appends the full source text under the node to b.
func (n *GreenNode) WriteText(b *strings.Builder) {
	for _, c := range n.children {
		if c.Token != nil {
			b.WriteString(c.Token.text)
		} else {
			c.Node.WriteText(b)
		}
	}
}

// Text reconstructs the exact source text under the node.
func (n *GreenNode) Text() string {
	var b strings.Builder
	b.Grow(n.textLen)
	n.WriteText(&b)
	return b.String()
}

// nodeCache interns green tokens and small green nodes so identical subtrees
// share storage. Safe for concurrent use.
type nodeCache struct {
	mu     sync.Mutex
	tokens map[tokenKey]*GreenToken
	nodes  map[uint64][]*GreenNode
}

type tokenKey struct {
	kind Kind
	text string
}

// Nodes with more children than this are not worth hashing; sharing pays off
// for small, frequently repeated subtrees (tokens, type nodes, name refs).
const maxCachedChildren = 3

func newNodeCache() *nodeCache {
	return &nodeCache{
		tokens: make(map[tokenKey]*GreenToken),
		nodes:  make(map[uint64][]*GreenNode),
	}
}

func (c *nodeCache) token(kind Kind, text string) *GreenToken {
	key := tokenKey{kind: kind, text: text}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tokens[key]; ok {
		return t
	}
	t := &GreenToken{kind: kind, text: text}
	c.tokens[key] = t
	return t
}

func (c *nodeCache) node(kind Kind, children []GreenChild) *GreenNode {
	textLen := 0
	for _, ch := range children {
		textLen += ch.TextLen()
	}

	if len(children) > maxCachedChildren {
		return &GreenNode{kind: kind, textLen: textLen, children: children}
	}

	h := fnv.New64a()
	var buf [2]byte
	buf[0] = byte(kind)
	buf[1] = byte(kind >> 8)
	h.Write(buf[:])
	for _, ch := range children {
		k := ch.Kind()
		buf[0] = byte(k)
		buf[1] = byte(k >> 8)
		h.Write(buf[:])
		if ch.Token != nil {
			h.Write([]byte(ch.Token.text))
		} else {
			// Child nodes are already interned, so pointer identity is a
			// sound structural key.
			writePointer(h, ch.Node)
		}
	}
	sum := h.Sum64()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, candidate := range c.nodes[sum] {
		if candidate.kind == kind && sameChildren(candidate.children, children) {
			return candidate
		}
	}
	n := &GreenNode{kind: kind, textLen: textLen, children: children}
	c.nodes[sum] = append(c.nodes[sum], n)
	return n
}

func sameChildren(a, b []GreenChild) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Node != b[i].Node || a[i].Token != b[i].Token {
			return false
		}
	}
	return true
}

func writePointer(h interface{ Write([]byte) (int, error) }, n *GreenNode) {
	// Mixing the node's kind and length is enough: the bucket scan compares
	// child identity before sharing, the hash only narrows candidates.
	var buf [8]byte
	buf[0] = byte(n.kind)
	buf[1] = byte(n.kind >> 8)
	buf[2] = byte(n.textLen)
	buf[3] = byte(n.textLen >> 8)
	buf[4] = byte(n.textLen >> 16)
	buf[5] = byte(len(n.children))
	h.Write(buf[:6])
}

// Builder assembles a green tree bottom-up as the parser walks the input.
type Builder struct {
	cache *nodeCache
	// Each stack entry is an open node: its kind plus the children collected
	// so far.
	stack []builderFrame
	root  *GreenNode
}

type builderFrame struct {
	kind     Kind
	children []GreenChild
}

// NewBuilder returns a Builder with a fresh interning cache.
func NewBuilder() *Builder {
	return &Builder{cache: newNodeCache()}
}

// StartNode opens a node of the given kind; subsequent tokens and nodes
// become its children until FinishNode.
func (b *Builder) StartNode(kind Kind) {
	b.stack = append(b.stack, builderFrame{kind: kind})
}

// Token appends a token to the currently open node.
func (b *Builder) Token(kind Kind, text string) {
	if len(b.stack) == 0 {
		panic("syntax: token emitted outside any node")
	}
	tok := b.cache.token(kind, text)
	top := &b.stack[len(b.stack)-1]
	top.children = append(top.children, GreenChild{Token: tok})
}

// FinishNode closes the innermost open node and attaches it to its parent,
// or records it as the root when the stack empties.
func (b *Builder) FinishNode() {
	if len(b.stack) == 0 {
		panic("syntax: FinishNode without StartNode")
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	node := b.cache.node(top.kind, top.children)
	if len(b.stack) == 0 {
		b.root = node
		return
	}
	parent := &b.stack[len(b.stack)-1]
	parent.children = append(parent.children, GreenChild{Node: node})
}

// Checkpoint marks the current position in the open node's child list.
// StartNodeAt can later wrap everything added since the mark into a new
// node, which is how the Pratt parser retrofits binary expression nodes.
type Checkpoint int

// Mark returns a checkpoint for the currently open node.
func (b *Builder) Mark() Checkpoint {
	if len(b.stack) == 0 {
		return 0
	}
	return Checkpoint(len(b.stack[len(b.stack)-1].children))
}

// StartNodeAt opens a node that adopts every child added after the
// checkpoint. The adopted children become the new node's leading children.
func (b *Builder) StartNodeAt(cp Checkpoint, kind Kind) {
	if len(b.stack) == 0 {
		b.StartNode(kind)
		return
	}
	top := &b.stack[len(b.stack)-1]
	idx := int(cp)
	if idx > len(top.children) {
		idx = len(top.children)
	}
	adopted := make([]GreenChild, len(top.children)-idx)
	copy(adopted, top.children[idx:])
	top.children = top.children[:idx]
	b.stack = append(b.stack, builderFrame{kind: kind, children: adopted})
}

// Finish returns the completed root node. The builder must be balanced.
func (b *Builder) Finish() *GreenNode {
	if len(b.stack) != 0 {
		panic("syntax: Finish with unclosed nodes")
	}
	if b.root == nil {
		panic("syntax: Finish without a root node")
	}
	return b.root
}
