package ast

import "github.com/antigravity-dev/wdlkit/internal/syntax"

// VisitNameRefs calls fn for every free name reference under the
// expression, in source order. Member names after `.`, function call
// targets, and literal member keys are not name references and are not
// visited.
func VisitNameRefs(e *Expr, fn func(name string, tok *syntax.Token)) {
	if e == nil {
		return
	}
	e.n.Descendants(func(n *syntax.Node) bool {
		if n.Kind() != syntax.KindNameRefNode {
			return true
		}
		if tok := n.FirstTokenByKind(syntax.KindIdent); tok != nil {
			fn(tok.Text(), tok)
		}
		return false
	})
}
