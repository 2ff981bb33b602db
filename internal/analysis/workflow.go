package analysis

import (
	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/graph"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// processWorkflow runs phase five: scope construction and type checking for
// the document's workflow, including scatter and conditional promotion and
// call resolution.
func processWorkflow(doc *Document, root *ast.Document) {
	for _, def := range root.Workflows() {
		name := def.Name()
		nameSpan := def.Span()
		if tok := def.NameToken(); tok != nil {
			nameSpan = tok.Span()
		}
		if doc.Workflow != nil {
			doc.diags.Add(diag.Errorf(nameSpan, "duplicate workflow %q; a document may define only one", name).
				WithLabel("first defined here", doc.Workflow.NameSpan))
			continue
		}
		if name == "" {
			continue
		}
		if doc.Task(name) != nil {
			doc.diags.Add(diag.Errorf(nameSpan, "conflicting workflow name %q", name).
				WithLabel("a task with this name exists", doc.Task(name).NameSpan))
		}
		doc.Workflow = processWorkflowDef(doc, def, name, nameSpan)
	}
}

func processWorkflowDef(doc *Document, def *ast.WorkflowDefinition, name string, nameSpan diag.Span) *Workflow {
	wf := &Workflow{
		Name:              name,
		NameSpan:          nameSpan,
		Def:               def,
		RequiredInputs:    make(map[string]bool),
		Calls:             make(map[string]*Call),
		AllowNestedInputs: allowsNestedInputs(doc, def),
	}

	rootScope := doc.addScope(NoScope, def.Span())
	wf.Scope = rootScope
	outSpan := def.Span()
	if o := def.Output(); o != nil {
		outSpan = o.Span()
	}
	outputScope := doc.addScope(rootScope, outSpan)

	g := graph.BuildWorkflow(def)
	wf.Graph = g
	doc.processWorkflowLevel(wf, g, rootScope, outputScope)
	return wf
}

// allowsNestedInputs reads the workflow metadata for the nested-inputs
// toggle. WDL 1.0 always allows nested inputs; later versions opt in with
// `allowNestedInputs` in meta (>= 1.1) or `allow_nested_inputs` in hints
// (>= 1.2).
func allowsNestedInputs(doc *Document, def *ast.WorkflowDefinition) bool {
	if !doc.Supports(1, 1) {
		return true
	}
	if meta := def.Node().FirstChildByKind(syntax.KindMetadataSectionNode); meta != nil {
		for _, item := range meta.ChildrenByKind(syntax.KindMetadataObjectItemNode) {
			tok := item.FirstTokenByKind(syntax.KindIdent)
			if tok == nil || tok.Text() != "allowNestedInputs" {
				continue
			}
			for _, c := range item.Children() {
				if e := ast.CastExpr(c); e != nil {
					if v, ok := e.BoolValue(); ok {
						return v
					}
				}
			}
		}
	}
	if hints := def.Hints(); hints != nil {
		for _, item := range hints.Items() {
			if item.Name() == "allow_nested_inputs" || item.Name() == "allowNestedInputs" {
				if e := item.Expr(); e != nil {
					if v, ok := e.BoolValue(); ok {
						return v
					}
				}
			}
		}
	}
	return false
}

// processWorkflowLevel checks one nesting level in dependency order. The
// outputScope is valid only at the workflow's top level; nested levels pass
// NoScope.
func (d *Document) processWorkflowLevel(wf *Workflow, g *graph.Graph, scope, outputScope ScopeIndex) {
	order, err := g.Toposort()
	if err != nil {
		d.diags.Add(diag.Errorf(wf.NameSpan, "workflow %q has a dependency cycle: %v", wf.Name, err))
		order = order[:0]
		for _, n := range g.Nodes() {
			order = append(order, n.ID)
		}
	}

	for _, id := range order {
		node := g.Node(id)
		switch node.Kind {
		case graph.NodeInput:
			decl := node.Payload.(*ast.Decl)
			declared := d.checkDecl(scope, decl, CtxInput)
			wf.Inputs = append(wf.Inputs, types.Member{Name: decl.Name(), Type: declared})
			if !decl.IsBound() && !declared.Optional() {
				wf.RequiredInputs[decl.Name()] = true
			}
		case graph.NodeDecl:
			d.checkDecl(scope, node.Payload.(*ast.Decl), CtxDecl)
		case graph.NodeOutput:
			decl := node.Payload.(*ast.Decl)
			declared := d.checkDecl(outputScope, decl, CtxOutput)
			wf.Outputs = append(wf.Outputs, types.Member{Name: decl.Name(), Type: declared})
		case graph.NodeCall:
			d.processCall(wf, scope, node.Payload.(*ast.CallStatement))
		case graph.NodeScatter:
			d.processScatter(wf, scope, node)
		case graph.NodeConditional:
			d.processConditional(wf, scope, node)
		}
	}
}

// processCall resolves a call target, type-checks its bound inputs, and
// introduces the call name with a hidden call type.
func (d *Document) processCall(wf *Workflow, scope ScopeIndex, call *ast.CallStatement) {
	name := call.Name()
	if name == "" {
		return
	}
	nameSpan := call.NameSpan()

	if existing, ok := d.Scopes[scope].Local(name); ok {
		d.diags.Add(diag.Errorf(nameSpan, "call conflict: the name %q is already in use", name).
			WithLabel("first introduced here", existing.Span).
			WithFix("alias the call with `as <name>`"))
		return
	}

	resolved := d.resolveCallTarget(wf, call)
	if resolved == nil {
		// Unresolved targets still introduce the name so later references
		// do not cascade.
		d.Scopes[scope].Insert(name, Name{Context: CtxCall, Type: types.Union(), Span: nameSpan})
		return
	}
	resolved.Bound = make(map[string]bool)
	wf.Calls[name] = resolved

	callDef := types.CallDef{
		Target:     resolved.Target,
		Namespace:  resolved.Namespace,
		IsWorkflow: resolved.TargetWorkflow != nil,
	}
	// Unbound required inputs are not checked here: callers may still
	// supply them through the input file, so validation happens there.
	var inputs []types.Member
	if resolved.Task != nil {
		callDef.Outputs = importMembers(d, resolved.TargetDoc, resolved.Task.Outputs)
		inputs = importMembers(d, resolved.TargetDoc, resolved.Task.Inputs)
	} else {
		callDef.Outputs = importMembers(d, resolved.TargetDoc, resolved.TargetWorkflow.Outputs)
		inputs = importMembers(d, resolved.TargetDoc, resolved.TargetWorkflow.Inputs)
	}
	callDef.Inputs = inputs

	inputTypes := make(map[string]types.Type, len(inputs))
	for _, m := range inputs {
		inputTypes[m.Name] = m.Type
	}

	for _, in := range call.Inputs() {
		inName := in.Name()
		declared, ok := inputTypes[inName]
		if !ok {
			d.diags.Add(diag.Errorf(in.Span(),
				"unknown call input: %q has no input named %q", resolved.Target, inName))
			continue
		}
		resolved.Bound[inName] = true
		if expr := in.Expr(); expr != nil {
			actual := d.typeOfExpr(exprContext{scope: scope}, expr)
			if !d.Types.Coercible(actual, declared) {
				d.diags.Add(diag.Errorf(expr.Span(),
					"type mismatch: cannot coerce %s to input %q of type %s",
					d.Types.Display(actual), inName, d.Types.Display(declared)))
			}
		} else {
			// Shorthand forwards a same-named name from the callers scope.
			if entry, found := d.Lookup(scope, inName); found {
				if !d.Types.Coercible(entry.Type, declared) {
					d.diags.Add(diag.Errorf(in.Span(),
						"type mismatch: cannot coerce %s to input %q of type %s",
						d.Types.Display(entry.Type), inName, d.Types.Display(declared)))
				}
			} else {
				d.diags.Add(diag.Errorf(in.Span(), "unknown name %q", inName))
			}
		}
	}

	for _, after := range call.Afters() {
		if entry, ok := d.Lookup(scope, after.Text()); !ok {
			d.diags.Add(diag.Errorf(after.Span(), "unknown name %q in after clause", after.Text()))
		} else if entry.Context != CtxCall {
			d.diags.Add(diag.Errorf(after.Span(), "%q is not a call and cannot be used in after", after.Text()))
		}
	}

	d.Scopes[scope].Insert(name, Name{
		Context: CtxCall,
		Type:    d.Types.Call(callDef),
		Span:    nameSpan,
	})
}

func importMembers(d *Document, from *Document, members []types.Member) []types.Member {
	if from == nil || from == d {
		return members
	}
	out := make([]types.Member, len(members))
	for i, m := range members {
		out[i] = types.Member{Name: m.Name, Type: d.Types.Import(from.Types, m.Type)}
	}
	return out
}

// resolveCallTarget resolves a possibly-namespaced call target against the
// local tasks, the local workflow, and imported documents.
func (d *Document) resolveCallTarget(wf *Workflow, call *ast.CallStatement) *Call {
	parts := call.TargetParts()
	if len(parts) == 0 {
		return nil
	}
	span := call.TargetSpan()

	if len(parts) == 1 {
		target := parts[0].Text()
		if task := d.Task(target); task != nil {
			return &Call{Name: call.Name(), Target: target, Task: task, TargetDoc: d, Stmt: call}
		}
		if target == wf.Name {
			d.diags.Add(diag.Errorf(span, "workflow %q cannot call itself recursively", target))
			return nil
		}
		d.diags.Add(diag.Errorf(span, "unknown name %q: no task or workflow with this name", target))
		return nil
	}

	nsName := parts[0].Text()
	target := parts[len(parts)-1].Text()
	ns := d.Namespace(nsName)
	if ns == nil {
		d.diags.Add(diag.Errorf(span, "unknown name %q: no imported namespace with this name", nsName))
		return nil
	}
	if task := ns.Document.Task(target); task != nil {
		return &Call{Name: call.Name(), Namespace: nsName, Target: target, Task: task, TargetDoc: ns.Document, Stmt: call}
	}
	if ns.Document.Workflow != nil && ns.Document.Workflow.Name == target {
		return &Call{Name: call.Name(), Namespace: nsName, Target: target, TargetWorkflow: ns.Document.Workflow, TargetDoc: ns.Document, Stmt: call}
	}
	d.diags.Add(diag.Errorf(span, "unknown name %q in namespace %q", target, nsName))
	return nil
}

// processScatter checks the scatter header, evaluates the body in a child
// scope, and promotes the body's names into the enclosing scope wrapped in
// Array.
func (d *Document) processScatter(wf *Workflow, scope ScopeIndex, node *graph.Node) {
	scatter := node.Payload.(*ast.ScatterStatement)

	elemType := types.Union()
	if expr := scatter.Expr(); expr != nil {
		arrType := d.typeOfExpr(exprContext{scope: scope}, expr)
		if arrType.Kind() == types.KindCompound && !arrType.Optional() {
			if def := d.Types.Def(arrType.ID()); def.Array != nil {
				elemType = def.Array.Elem
			} else {
				d.diags.Add(diag.Errorf(expr.Span(),
					"type mismatch: scatter expression has type %s, expected an array", d.Types.Display(arrType)))
			}
		} else if !arrType.IsUnion() {
			d.diags.Add(diag.Errorf(expr.Span(),
				"type mismatch: scatter expression has type %s, expected an array", d.Types.Display(arrType)))
		}
	}

	child := d.addScope(scope, scatter.Span())
	varName := scatter.Variable()
	varSpan := scatter.Span()
	if tok := scatter.VariableToken(); tok != nil {
		varSpan = tok.Span()
	}
	if varName != "" {
		d.Scopes[child].Insert(varName, Name{Context: CtxScatterVar, Type: elemType, Span: varSpan})
	}

	d.processWorkflowLevel(wf, node.Body, child, NoScope)
	d.promote(scope, child, varName, types.PromotionScatter)
}

// processConditional checks the predicate, evaluates the body in a child
// scope, and promotes the body's names into the enclosing scope as
// optional.
func (d *Document) processConditional(wf *Workflow, scope ScopeIndex, node *graph.Node) {
	cond := node.Payload.(*ast.ConditionalStatement)
	if expr := cond.Expr(); expr != nil {
		t := d.typeOfExpr(exprContext{scope: scope}, expr)
		if !d.Types.Coercible(t, types.Primitive(types.Boolean)) {
			d.diags.Add(diag.Errorf(expr.Span(),
				"if conditional mismatch: condition has type %s, expected Boolean", d.Types.Display(t)))
		}
	}

	child := d.addScope(scope, cond.Span())
	d.processWorkflowLevel(wf, node.Body, child, NoScope)
	d.promote(scope, child, "", types.PromotionConditional)
}

// promote copies every name a child scope introduced (except the scatter
// variable) into the parent with the promoted type: Array-wrapped for
// scatters, optional for conditionals. Calls become promoted call types so
// their outputs reshape accordingly.
func (d *Document) promote(parent, child ScopeIndex, skip string, kind types.PromotionKind) {
	for _, name := range d.Scopes[child].Names() {
		if name == skip {
			continue
		}
		entry, _ := d.Scopes[child].Local(name)
		if entry.Context == CtxScatterVar || entry.Context == CtxTaskVar {
			continue
		}
		promoted := d.promoteType(entry.Type, kind)
		if existing, ok := d.Scopes[parent].Local(name); ok {
			d.diags.Add(diag.Errorf(entry.Span, "conflicting %s name %q", entry.Context, name).
				WithLabel("first introduced here", existing.Span))
			continue
		}
		d.Scopes[parent].Insert(name, Name{Context: entry.Context, Type: promoted, Span: entry.Span})
	}
}

func (d *Document) promoteType(t types.Type, kind types.PromotionKind) types.Type {
	if t.Kind() == types.KindCompound {
		if def := d.Types.Def(t.ID()); def.Call != nil {
			promoted := *def.Call
			promoted.Promotion = kind
			promoted.Outputs = make([]types.Member, len(def.Call.Outputs))
			for i, m := range def.Call.Outputs {
				out := m.Type
				if kind == types.PromotionScatter {
					out = d.Types.Array(out)
				} else {
					out = out.AsOptional()
				}
				promoted.Outputs[i] = types.Member{Name: m.Name, Type: out}
			}
			return d.Types.Call(promoted)
		}
	}
	if kind == types.PromotionScatter {
		return d.Types.Array(t)
	}
	return t.AsOptional()
}
