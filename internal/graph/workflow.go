package graph

import (
	"fmt"

	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// BuildWorkflow constructs the dependency graph for a workflow. Scatter and
// conditional statements own their bodies as nested graphs; a name a nested
// body reads from an enclosing level becomes a dependency of the owning
// scatter or conditional node at that level, so a subgraph never starts
// before the values it closes over exist.
func BuildWorkflow(wf *ast.WorkflowDefinition) *Graph {
	b := &workflowBuilder{}
	g, _ := b.build(wf.Input(), wf.Statements(), wf.Output(), "")
	return g
}

type workflowBuilder struct {
	seq int
}

// build assembles one nesting level. localOnly holds the scatter variable
// for scatter bodies: it resolves but creates no edge. The returned slice
// lists names the level could not resolve, for the caller to bind.
func (b *workflowBuilder) build(input *ast.InputSection, stmts []*ast.WorkflowStatement, output *ast.OutputSection, localOnly string) (*Graph, []string) {
	g := New()
	defs := make(map[string]string)
	var unresolved []string

	addDecl := func(kind NodeKind, prefix string, d *ast.Decl) {
		name := d.Name()
		if name == "" {
			return
		}
		id := prefix + name
		if g.Node(id) != nil {
			return
		}
		g.Add(&Node{ID: id, Kind: kind, Names: []string{name}, Payload: d})
		if kind != NodeOutput {
			defs[name] = id
		}
	}

	if input != nil {
		for _, d := range input.Decls() {
			addDecl(NodeInput, "input:", d)
		}
	}

	type pendingBody struct {
		node       *Node
		unresolved []string
	}
	var pending []pendingBody

	for _, stmt := range stmts {
		switch stmt.Kind() {
		case ast.StatementDecl:
			addDecl(NodeDecl, "decl:", stmt.Decl())

		case ast.StatementCall:
			call := stmt.Call()
			name := call.Name()
			if name == "" {
				continue
			}
			id := "call:" + name
			if g.Node(id) != nil {
				continue
			}
			g.Add(&Node{ID: id, Kind: NodeCall, Names: []string{name}, Payload: call})
			defs[name] = id

		case ast.StatementScatter:
			scatter := stmt.Scatter()
			b.seq++
			id := fmt.Sprintf("scatter:%d", b.seq)
			body, bodyUnresolved := b.build(nil, scatter.Statements(), nil, scatter.Variable())
			node := &Node{ID: id, Kind: NodeScatter, Payload: scatter, Body: body}
			node.Names = promotedNames(body)
			g.Add(node)
			for _, name := range node.Names {
				if _, ok := defs[name]; !ok {
					defs[name] = id
				}
			}
			pending = append(pending, pendingBody{node: node, unresolved: bodyUnresolved})

		case ast.StatementConditional:
			cond := stmt.Conditional()
			b.seq++
			id := fmt.Sprintf("if:%d", b.seq)
			body, bodyUnresolved := b.build(nil, cond.Statements(), nil, "")
			node := &Node{ID: id, Kind: NodeConditional, Payload: cond, Body: body}
			node.Names = promotedNames(body)
			g.Add(node)
			for _, name := range node.Names {
				if _, ok := defs[name]; !ok {
					defs[name] = id
				}
			}
			pending = append(pending, pendingBody{node: node, unresolved: bodyUnresolved})
		}
	}

	if output != nil {
		for _, d := range output.Decls() {
			addDecl(NodeOutput, "output:", d)
		}
	}

	resolve := func(id, name string) {
		if name == localOnly && localOnly != "" {
			return
		}
		if def, ok := defs[name]; ok {
			g.AddDep(id, def)
			return
		}
		unresolved = append(unresolved, name)
	}

	depend := func(id string, e *ast.Expr) {
		ast.VisitNameRefs(e, func(name string, _ *syntax.Token) {
			resolve(id, name)
		})
	}

	for _, n := range g.Nodes() {
		switch n.Kind {
		case NodeInput, NodeDecl, NodeOutput:
			if d := n.Payload.(*ast.Decl); d.Expr() != nil {
				depend(n.ID, d.Expr())
			}
		case NodeCall:
			call := n.Payload.(*ast.CallStatement)
			for _, in := range call.Inputs() {
				if in.Expr() != nil {
					depend(n.ID, in.Expr())
				} else {
					// `name` shorthand forwards a same-named value from the
					// enclosing scope.
					resolve(n.ID, in.Name())
				}
			}
			for _, after := range call.Afters() {
				resolve(n.ID, after.Text())
			}
		case NodeScatter:
			depend(n.ID, n.Payload.(*ast.ScatterStatement).Expr())
		case NodeConditional:
			depend(n.ID, n.Payload.(*ast.ConditionalStatement).Expr())
		}
	}

	// Names a nested body reads from this level pin the owning node behind
	// their defining nodes; anything still unknown bubbles further out.
	for _, p := range pending {
		for _, name := range p.unresolved {
			resolve(p.node.ID, name)
		}
	}

	return g, unresolved
}

// promotedNames collects every name a nested body introduces, recursively.
// Scatter variables never escape their own body and are already excluded by
// the body builder.
func promotedNames(body *Graph) []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range body.Nodes() {
		if n.Kind == NodeOutput {
			continue
		}
		for _, name := range n.Names {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
