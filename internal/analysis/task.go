package analysis

import (
	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/graph"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// processTasks runs phase four: for each task it allocates the root, output,
// and command scopes, builds the task graph, and type-checks inputs,
// declarations, outputs, the command, and the runtime-family sections in
// dependency order.
func processTasks(doc *Document, root *ast.Document) {
	for _, def := range root.Tasks() {
		name := def.Name()
		if name == "" {
			continue
		}
		nameSpan := def.Span()
		if tok := def.NameToken(); tok != nil {
			nameSpan = tok.Span()
		}
		if existing := doc.Task(name); existing != nil {
			doc.diags.Add(diag.Errorf(nameSpan, "conflicting task name %q", name).
				WithLabel("first defined here", existing.NameSpan))
			continue
		}
		doc.Tasks = append(doc.Tasks, processTask(doc, def, name, nameSpan))
	}
}

func processTask(doc *Document, def *ast.TaskDefinition, name string, nameSpan diag.Span) *Task {
	task := &Task{
		Name:           name,
		NameSpan:       nameSpan,
		Def:            def,
		RequiredInputs: make(map[string]bool),
	}

	rootScope := doc.addScope(NoScope, def.Span())
	task.Scope = rootScope

	outSpan := def.Span()
	if o := def.Output(); o != nil {
		outSpan = o.Span()
	}
	cmdSpan := def.Span()
	if c := def.Command(); c != nil {
		cmdSpan = c.Span()
	}
	outputScope := doc.addScope(rootScope, outSpan)
	commandScope := doc.addScope(rootScope, cmdSpan)

	// The task variable is visible to the command and output sections (and
	// the requirements/hints sections, which check in the command scope).
	if doc.Supports(1, 2) {
		taskVar := Name{Context: CtxTaskVar, Type: types.Task(), Span: nameSpan}
		doc.Scopes[outputScope].Insert("task", taskVar)
		doc.Scopes[commandScope].Insert("task", taskVar)
	}

	g := graph.BuildTask(def)
	task.Graph = g
	order, err := g.Toposort()
	if err != nil {
		doc.diags.Add(diag.Errorf(nameSpan, "task %q has a dependency cycle: %v", name, err))
		// Fall back to declaration order so every node still checks.
		order = order[:0]
		for _, n := range g.Nodes() {
			order = append(order, n.ID)
		}
	}

	for _, id := range order {
		node := g.Node(id)
		switch node.Kind {
		case graph.NodeInput:
			d := node.Payload.(*ast.Decl)
			declared := doc.checkDecl(rootScope, d, CtxInput)
			task.Inputs = append(task.Inputs, types.Member{Name: d.Name(), Type: declared})
			if !d.IsBound() && !declared.Optional() {
				task.RequiredInputs[d.Name()] = true
			}
		case graph.NodeDecl:
			d := node.Payload.(*ast.Decl)
			doc.checkDecl(rootScope, d, CtxDecl)
		case graph.NodeOutput:
			d := node.Payload.(*ast.Decl)
			declared := doc.checkDecl(outputScope, d, CtxOutput)
			task.Outputs = append(task.Outputs, types.Member{Name: d.Name(), Type: declared})
		case graph.NodeCommand:
			cmd := node.Payload.(*ast.CommandSection)
			for _, part := range cmd.Parts() {
				if part.Placeholder != nil {
					doc.checkPlaceholder(exprContext{scope: commandScope}, part.Placeholder)
				}
			}
		case graph.NodeRuntime:
			doc.checkRequirementSection(commandScope, node.Payload.(*ast.KeyValueSection), false)
		case graph.NodeRequirements:
			doc.checkRequirementSection(commandScope, node.Payload.(*ast.KeyValueSection), true)
		case graph.NodeHints:
			doc.checkHintsSection(commandScope, node.Payload.(*ast.KeyValueSection))
		}
	}

	return task
}

// checkDecl converts a declaration's type, checks its initializer, and
// inserts the name into the scope. The declared type is returned.
func (d *Document) checkDecl(scope ScopeIndex, decl *ast.Decl, ctx NameContext) types.Type {
	declared := d.convertType(decl.Type())
	if d.declTypes == nil {
		d.declTypes = make(map[int]types.Type)
	}
	d.declTypes[decl.Span().Start] = declared
	name := decl.Name()
	if name == "" {
		return declared
	}

	span := decl.Span()
	if tok := decl.NameToken(); tok != nil {
		span = tok.Span()
	}

	if existing, ok := d.Scopes[scope].Local(name); ok {
		d.diags.Add(diag.Errorf(span, "conflicting %s name %q", ctx, name).
			WithLabel("first introduced here", existing.Span))
		return declared
	}

	if expr := decl.Expr(); expr != nil {
		actual := d.typeOfExpr(exprContext{scope: scope}, expr)
		if !d.Types.Coercible(actual, declared) {
			d.diags.Add(d.coercionDiag(expr, actual, declared))
		}
	}

	d.Scopes[scope].Insert(name, Name{Context: ctx, Type: declared, Span: span})
	return declared
}

// coercionDiag builds the diagnostic for a failed initializer coercion,
// special-casing the empty-array-to-non-empty case for a clearer message.
func (d *Document) coercionDiag(expr *ast.Expr, actual, declared types.Type) diag.Diagnostic {
	if declared.Kind() == types.KindCompound && actual.Kind() == types.KindCompound {
		dd := d.Types.Def(declared.ID())
		ad := d.Types.Def(actual.ID())
		if dd.Array != nil && dd.Array.NonEmpty && ad.Array != nil && !ad.Array.NonEmpty {
			if len(expr.Elements()) == 0 && expr.Node().Kind() == syntax.KindLiteralArrayNode {
				return diag.Errorf(expr.Span(),
					"cannot coerce empty array literal to non-empty array type %s", d.Types.Display(declared))
			}
			return diag.Errorf(expr.Span(),
				"cannot coerce array of type %s to non-empty array type %s",
				d.Types.Display(actual), d.Types.Display(declared))
		}
	}
	return diag.Errorf(expr.Span(),
		"type mismatch: cannot coerce %s to %s", d.Types.Display(actual), d.Types.Display(declared))
}

// checkRequirementSection validates a runtime or requirements section. In
// strict mode (the requirements section) unknown keys are diagnosed; the
// legacy runtime section accepts arbitrary keys.
func (d *Document) checkRequirementSection(scope ScopeIndex, section *ast.KeyValueSection, strict bool) {
	seen := make(map[string]diag.Span)
	for _, item := range section.Items() {
		name := item.Name()
		span := item.Span()
		if tok := item.NameToken(); tok != nil {
			span = tok.Span()
		}
		if first, ok := seen[name]; ok {
			d.diags.Add(diag.Errorf(span, "conflicting requirement name %q", name).
				WithLabel("first set here", first))
			continue
		}
		seen[name] = span

		actual := d.typeOfExpr(exprContext{scope: scope}, item.Expr())
		accepted := RequirementTypes(d, name)
		if accepted == nil {
			if strict {
				d.diags.Add(diag.Errorf(span, "unknown requirement %q", name))
			}
			continue
		}
		ok := false
		for _, t := range accepted {
			if d.Types.Coercible(actual, t) {
				ok = true
				break
			}
		}
		if !ok {
			d.diags.Add(diag.Errorf(span,
				"type mismatch: requirement %q cannot accept a value of type %s",
				name, d.Types.Display(actual)))
		}
	}
}

// checkHintsSection validates a hints section. Hints are advisory: unknown
// keys pass, recognized keys still type-check.
func (d *Document) checkHintsSection(scope ScopeIndex, section *ast.KeyValueSection) {
	for _, item := range section.Items() {
		name := item.Name()
		actual := d.typeOfExpr(exprContext{scope: scope}, item.Expr())
		accepted := HintTypes(d, name)
		if accepted == nil {
			continue
		}
		ok := false
		for _, t := range accepted {
			if d.Types.Coercible(actual, t) {
				ok = true
				break
			}
		}
		if !ok {
			span := item.Span()
			if tok := item.NameToken(); tok != nil {
				span = tok.Span()
			}
			d.diags.Add(diag.Errorf(span,
				"type mismatch: hint %q cannot accept a value of type %s",
				name, d.Types.Display(actual)))
		}
	}
}
