package graph

import (
	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// BuildTask constructs the dependency graph for one task. Every input,
// private declaration, and output becomes a node, as do the command and the
// runtime, requirements, and hints sections. The command depends on every
// name it interpolates; each output depends on the command and on every
// name it reads; the sections depend on whatever their expressions read.
func BuildTask(task *ast.TaskDefinition) *Graph {
	g := New()
	defs := make(map[string]string)

	addDecl := func(kind NodeKind, prefix string, d *ast.Decl) {
		name := d.Name()
		if name == "" {
			return
		}
		id := prefix + name
		if g.Node(id) != nil {
			// Conflicting declarations are reported by the analyzer; the
			// graph keeps the first.
			return
		}
		g.Add(&Node{ID: id, Kind: kind, Names: []string{name}, Payload: d})
		if kind != NodeOutput {
			defs[name] = id
		}
	}

	if input := task.Input(); input != nil {
		for _, d := range input.Decls() {
			addDecl(NodeInput, "input:", d)
		}
	}
	for _, d := range task.PrivateDecls() {
		addDecl(NodeDecl, "decl:", d)
	}

	if cmd := task.Command(); cmd != nil {
		g.Add(&Node{ID: "command", Kind: NodeCommand, Payload: cmd})
	}
	if rt := task.Runtime(); rt != nil {
		g.Add(&Node{ID: "runtime", Kind: NodeRuntime, Payload: rt})
	}
	if reqs := task.Requirements(); reqs != nil {
		g.Add(&Node{ID: "requirements", Kind: NodeRequirements, Payload: reqs})
	}
	if hints := task.Hints(); hints != nil {
		g.Add(&Node{ID: "hints", Kind: NodeHints, Payload: hints})
	}

	// Output names are addressable by later outputs but never by the
	// command or the sections.
	outputDefs := make(map[string]string)
	if output := task.Output(); output != nil {
		for _, d := range output.Decls() {
			addDecl(NodeOutput, "output:", d)
			if name := d.Name(); name != "" {
				outputDefs[name] = "output:" + name
			}
		}
	}

	depend := func(id string, e *ast.Expr, includeOutputs bool) {
		ast.VisitNameRefs(e, func(name string, _ *syntax.Token) {
			if def, ok := defs[name]; ok {
				g.AddDep(id, def)
			} else if includeOutputs {
				if def, ok := outputDefs[name]; ok {
					g.AddDep(id, def)
				}
			}
		})
	}

	for _, n := range g.Nodes() {
		switch n.Kind {
		case NodeInput, NodeDecl:
			if d := n.Payload.(*ast.Decl); d.Expr() != nil {
				depend(n.ID, d.Expr(), false)
			}
		case NodeOutput:
			g.AddDep(n.ID, "command")
			if d := n.Payload.(*ast.Decl); d.Expr() != nil {
				depend(n.ID, d.Expr(), true)
			}
		case NodeCommand:
			for _, part := range n.Payload.(*ast.CommandSection).Parts() {
				if part.Placeholder != nil {
					depend(n.ID, part.Placeholder.Expr(), false)
					for _, opt := range part.Placeholder.Options() {
						depend(n.ID, opt.Value, false)
					}
				}
			}
			// Requirements shape execution, so they resolve before the
			// command does.
			g.AddDep(n.ID, "runtime")
			g.AddDep(n.ID, "requirements")
			g.AddDep(n.ID, "hints")
		case NodeRuntime, NodeRequirements, NodeHints:
			for _, item := range n.Payload.(*ast.KeyValueSection).Items() {
				depend(n.ID, item.Expr(), false)
			}
		}
	}

	return g
}
