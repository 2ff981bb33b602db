package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/antigravity-dev/wdlkit/internal/analysis"
	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/graph"
)

// evaluateWorkflow schedules a workflow invocation: the root graph runs in
// dependency order with declarations evaluated inline and calls, scatters,
// and conditionals spawned concurrently. The first error cancels the
// context and the scheduler joins every outstanding goroutine before
// returning it.
func (e *Evaluator) evaluateWorkflow(ctx context.Context, doc *analysis.Document, wf *analysis.Workflow, inputs *WorkflowInputs, runID string) (*Outputs, error) {
	ev := e.newEvaluation(doc)
	ev.logger.Info("workflow started", "workflow", wf.Name, "run", runID)

	root := newScope(nil)
	outputScope := newScope(root)

	if err := ev.runLevel(ctx, wf, wf.Graph, root, outputScope, inputs, runID, nil); err != nil {
		return nil, fmt.Errorf("workflow %q failed: %w", wf.Name, err)
	}

	out := &Outputs{}
	ev.mu.RLock()
	for _, m := range wf.Outputs {
		if v, ok := outputScope.local(m.Name); ok {
			out.Members = append(out.Members, ObjectMember{Name: m.Name, Value: v})
		}
	}
	ev.mu.RUnlock()
	ev.logger.Info("workflow finished", "workflow", wf.Name, "run", runID)
	return out, nil
}

type nodeDone struct {
	id  string
	err error
}

// runLevel evaluates one graph level against a scope. Ready declarations
// run inline within short lock windows; calls, scatters, and conditionals
// run as goroutines. scatterIdx carries the enclosing scatter indices for
// call id selection.
func (ev *evaluation) runLevel(ctx context.Context, wf *analysis.Workflow, g *graph.Graph, sc, outputScope *scope, inputs *WorkflowInputs, runID string, scatterIdx []int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indeg := make(map[string]int, g.Len())
	for _, n := range g.Nodes() {
		indeg[n.ID] = len(g.Dependencies(n.ID))
	}
	started := make(map[string]bool, g.Len())
	results := make(chan nodeDone, g.Len())
	remaining := g.Len()
	running := 0
	var firstErr error

	complete := func(id string) {
		remaining--
		for _, dep := range g.Dependents(id) {
			indeg[dep]--
		}
	}

	for remaining > 0 && firstErr == nil {
		progressed := false
		for _, n := range g.Nodes() {
			if firstErr != nil {
				break
			}
			if started[n.ID] || indeg[n.ID] != 0 {
				continue
			}
			started[n.ID] = true

			switch n.Kind {
			case graph.NodeInput:
				decl := n.Payload.(*ast.Decl)
				var provided *Value
				if inputs != nil {
					if v, ok := inputs.Values[decl.Name()]; ok {
						provided = &v
					}
				}
				if err := ev.evalDeclLocked(decl, sc, "", provided); err != nil {
					firstErr = err
				}
				progressed = true
				if firstErr == nil {
					complete(n.ID)
				}

			case graph.NodeDecl:
				if err := ev.evalDeclLocked(n.Payload.(*ast.Decl), sc, "", nil); err != nil {
					firstErr = err
				}
				progressed = true
				if firstErr == nil {
					complete(n.ID)
				}

			case graph.NodeOutput:
				target := outputScope
				if target == nil {
					target = sc
				}
				if err := ev.evalDeclLocked(n.Payload.(*ast.Decl), target, "", nil); err != nil {
					firstErr = err
				}
				progressed = true
				if firstErr == nil {
					complete(n.ID)
				}

			case graph.NodeCall:
				running++
				go func(n *graph.Node) {
					results <- nodeDone{id: n.ID, err: ev.runCall(ctx, wf, n, sc, inputs, runID, scatterIdx)}
				}(n)

			case graph.NodeScatter:
				running++
				go func(n *graph.Node) {
					results <- nodeDone{id: n.ID, err: ev.runScatter(ctx, wf, n, sc, inputs, runID, scatterIdx)}
				}(n)

			case graph.NodeConditional:
				running++
				go func(n *graph.Node) {
					results <- nodeDone{id: n.ID, err: ev.runConditional(ctx, wf, n, sc, inputs, runID, scatterIdx)}
				}(n)
			}
		}

		if firstErr != nil {
			break
		}
		if progressed {
			continue
		}
		if running == 0 {
			if remaining > 0 {
				firstErr = fmt.Errorf("workflow graph stalled with %d nodes unevaluated", remaining)
			}
			break
		}

		done := <-results
		running--
		if done.err != nil {
			firstErr = done.err
		} else {
			complete(done.id)
		}
	}

	if firstErr != nil {
		cancel()
	}
	// Join every outstanding goroutine before surfacing the first error.
	for running > 0 {
		done := <-results
		running--
		if done.err != nil && firstErr == nil {
			firstErr = done.err
		}
	}
	return firstErr
}

// runCall resolves a call's inputs, evaluates the callee, and publishes the
// call value. The call id folds in the enclosing scatter indices so every
// iteration gets a distinct work directory.
func (ev *evaluation) runCall(ctx context.Context, wf *analysis.Workflow, n *graph.Node, sc *scope, inputs *WorkflowInputs, runID string, scatterIdx []int) error {
	stmt := n.Payload.(*ast.CallStatement)
	name := stmt.Name()
	call := wf.Calls[name]
	if call == nil {
		return fmt.Errorf("call %q was not resolved during analysis", name)
	}

	callID := runID + "-" + name
	for _, idx := range scatterIdx {
		callID = fmt.Sprintf("%s-%d", callID, idx)
	}

	// Evaluate the call-site bindings under a read lock.
	bound := make(map[string]Value)
	ev.mu.RLock()
	c := &evalContext{ev: ev, scope: sc}
	var evalErr error
	for _, in := range stmt.Inputs() {
		inName := in.Name()
		if expr := in.Expr(); expr != nil {
			v, err := c.eval(expr)
			if err != nil {
				evalErr = fmt.Errorf("input %q: %w", inName, err)
				break
			}
			bound[inName] = v
		} else if v, ok := sc.lookup(inName); ok {
			bound[inName] = v
		} else {
			evalErr = fmt.Errorf("input %q is not in scope", inName)
			break
		}
	}
	ev.mu.RUnlock()
	if evalErr != nil {
		return fmt.Errorf("call %q failed: %w", name, evalErr)
	}

	var nested *Inputs
	if inputs != nil {
		nested = inputs.Calls[name]
	}

	var members []ObjectMember
	var err error
	if call.Task != nil {
		taskInputs := NewTaskInputs()
		if nested != nil && nested.Task != nil {
			for k, v := range nested.Task.Values {
				taskInputs.Values[k] = v
			}
			for k, v := range nested.Task.Requirements {
				taskInputs.Requirements[k] = v
			}
			for k, v := range nested.Task.Hints {
				taskInputs.Hints[k] = v
			}
		}
		for k, v := range bound {
			coerced, cerr := ev.coerceCallInput(call, k, v)
			if cerr != nil {
				return fmt.Errorf("call %q failed: %w", name, cerr)
			}
			taskInputs.Values[k] = coerced
		}
		members, err = ev.e.evaluateTask(ctx, call.TargetDoc, call.Task, taskInputs, callID)
	} else {
		wfInputs := NewWorkflowInputs()
		if nested != nil && nested.Workflow != nil {
			for k, v := range nested.Workflow.Values {
				wfInputs.Values[k] = v
			}
			for k, v := range nested.Workflow.Calls {
				wfInputs.Calls[k] = v
			}
		}
		for k, v := range bound {
			coerced, cerr := ev.coerceCallInput(call, k, v)
			if cerr != nil {
				return fmt.Errorf("call %q failed: %w", name, cerr)
			}
			wfInputs.Values[k] = coerced
		}
		var out *Outputs
		out, err = ev.e.evaluateWorkflow(ctx, call.TargetDoc, call.TargetWorkflow, wfInputs, callID)
		if out != nil {
			members = out.Members
		}
	}
	if err != nil {
		return fmt.Errorf("call %q failed: %w", name, err)
	}

	ev.mu.Lock()
	sc.insert(name, CallOf(call.Target, members))
	ev.mu.Unlock()
	return nil
}

// coerceCallInput converts a caller-side value to the callee's declared
// input type, using the callee document's arena.
func (ev *evaluation) coerceCallInput(call *analysis.Call, name string, v Value) (Value, error) {
	var target *analysis.Document = call.TargetDoc
	if call.Task != nil {
		if m, ok := call.Task.Input(name); ok {
			return v.Coerce(target.Types, m.Type)
		}
	} else if call.TargetWorkflow != nil {
		if m, ok := call.TargetWorkflow.Input(name); ok {
			return v.Coerce(target.Types, m.Type)
		}
	}
	return v, nil
}

// runScatter evaluates the array, fans iterations out up to the configured
// concurrency, and gathers per-name arrays in iteration order.
func (ev *evaluation) runScatter(ctx context.Context, wf *analysis.Workflow, n *graph.Node, sc *scope, inputs *WorkflowInputs, runID string, scatterIdx []int) error {
	stmt := n.Payload.(*ast.ScatterStatement)

	ev.mu.RLock()
	c := &evalContext{ev: ev, scope: sc}
	arrValue, err := c.eval(stmt.Expr())
	ev.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("scatter expression: %w", err)
	}
	if arrValue.Kind() != KindArray {
		return fmt.Errorf("scatter expression did not evaluate to an array")
	}
	elems := arrValue.Array().Elems
	varName := stmt.Variable()

	iterScopes := make([]*scope, len(elems))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i := range elems {
		if err := ev.e.sem.Acquire(grpCtx, 1); err != nil {
			// Cancelled: join what already started.
			_ = grp.Wait()
			return err
		}
		i := i
		child := ev.pool.get(sc)
		ev.mu.Lock()
		child.insert(varName, elems[i])
		ev.mu.Unlock()
		iterScopes[i] = child
		grp.Go(func() error {
			defer ev.e.sem.Release(1)
			return ev.runLevel(grpCtx, wf, n.Body, child, nil, inputs, runID, append(append([]int(nil), scatterIdx...), i))
		})
	}
	if err := grp.Wait(); err != nil {
		return fmt.Errorf("scatter failed: %w", err)
	}

	// Gather: element i of every promoted name holds the value from
	// iteration i. Calls gather into an outputs-of-arrays call value.
	gathered := make([]ObjectMember, 0, len(n.Names))
	ev.mu.RLock()
	for _, name := range n.Names {
		isCall := false
		var callTarget string
		perIter := make([]Value, len(iterScopes))
		for i, iter := range iterScopes {
			v, _ := iter.local(name)
			perIter[i] = v
			if v.Kind() == KindCall {
				isCall = true
				callTarget = v.Call().Target
			}
		}
		if isCall {
			gathered = append(gathered, ObjectMember{Name: name, Value: gatherCall(callTarget, perIter)})
		} else {
			gathered = append(gathered, ObjectMember{Name: name, Value: ArrayOf(perIter...)})
		}
	}
	ev.mu.RUnlock()

	ev.mu.Lock()
	for _, m := range gathered {
		sc.insert(m.Name, m.Value)
	}
	ev.mu.Unlock()

	for _, iter := range iterScopes {
		ev.pool.put(iter)
	}
	return nil
}

// gatherCall reshapes per-iteration call values into one call value whose
// outputs are arrays indexed by iteration.
func gatherCall(target string, perIter []Value) Value {
	var outputNames []string
	for _, v := range perIter {
		if v.Kind() == KindCall {
			for _, m := range v.Call().Outputs {
				outputNames = append(outputNames, m.Name)
			}
			break
		}
	}
	outputs := make([]ObjectMember, 0, len(outputNames))
	for _, name := range outputNames {
		elems := make([]Value, len(perIter))
		for i, v := range perIter {
			if v.Kind() == KindCall {
				out, _ := v.Call().Output(name)
				elems[i] = out
			} else {
				elems[i] = NoneValue()
			}
		}
		outputs = append(outputs, ObjectMember{Name: name, Value: ArrayOf(elems...)})
	}
	return CallOf(target, outputs)
}

// runConditional evaluates the predicate and either runs the body in a
// child scope and promotes its names, or inserts None for every name the
// body would have introduced.
func (ev *evaluation) runConditional(ctx context.Context, wf *analysis.Workflow, n *graph.Node, sc *scope, inputs *WorkflowInputs, runID string, scatterIdx []int) error {
	stmt := n.Payload.(*ast.ConditionalStatement)

	ev.mu.RLock()
	c := &evalContext{ev: ev, scope: sc}
	condValue, err := c.eval(stmt.Expr())
	ev.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("conditional expression: %w", err)
	}
	if condValue.Kind() != KindBoolean {
		return fmt.Errorf("conditional expression did not evaluate to a Boolean")
	}

	if condValue.AsBoolean() {
		child := ev.pool.get(sc)
		if err := ev.runLevel(ctx, wf, n.Body, child, nil, inputs, runID, scatterIdx); err != nil {
			return err
		}
		ev.mu.Lock()
		for _, name := range child.names() {
			v, _ := child.local(name)
			sc.insert(name, v)
		}
		ev.mu.Unlock()
		ev.pool.put(child)
		return nil
	}

	// False branch: every name the body would introduce becomes None;
	// calls become call values with every output set to None.
	ev.mu.Lock()
	for _, bodyNode := range n.Body.Nodes() {
		switch bodyNode.Kind {
		case graph.NodeCall:
			stmt := bodyNode.Payload.(*ast.CallStatement)
			call := wf.Calls[stmt.Name()]
			var outputs []ObjectMember
			if call != nil {
				var members []string
				if call.Task != nil {
					for _, m := range call.Task.Outputs {
						members = append(members, m.Name)
					}
				} else if call.TargetWorkflow != nil {
					for _, m := range call.TargetWorkflow.Outputs {
						members = append(members, m.Name)
					}
				}
				for _, m := range members {
					outputs = append(outputs, ObjectMember{Name: m, Value: NoneValue()})
				}
			}
			target := stmt.Name()
			if call != nil {
				target = call.Target
			}
			sc.insert(stmt.Name(), CallOf(target, outputs))
		default:
			for _, name := range bodyNode.Names {
				sc.insert(name, NoneValue())
			}
		}
	}
	ev.mu.Unlock()
	return nil
}
