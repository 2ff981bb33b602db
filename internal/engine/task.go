package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/antigravity-dev/wdlkit/internal/analysis"
	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/backend"
	"github.com/antigravity-dev/wdlkit/internal/graph"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// evaluateTask runs one task invocation: pure evaluation of inputs,
// declarations, and the runtime-family sections in graph order, then
// command rendering and backend execution with retries, then output
// evaluation against the finished work directory.
func (e *Evaluator) evaluateTask(ctx context.Context, doc *analysis.Document, task *analysis.Task, inputs *TaskInputs, callID string) ([]ObjectMember, error) {
	ev := e.newEvaluation(doc)
	ev.logger.Info("task started", "task", task.Name, "id", callID)

	g := task.Graph
	order, err := g.Toposort()
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", task.Name, err)
	}

	root := newScope(nil)
	requirements := make(map[string]Value)
	hints := make(map[string]Value)
	var command *ast.CommandSection

	// Phase one: pure evaluation. Nothing here touches the backend.
	for _, id := range order {
		node := g.Node(id)
		switch node.Kind {
		case graph.NodeInput:
			decl := node.Payload.(*ast.Decl)
			var provided *Value
			if inputs != nil {
				if v, ok := inputs.Values[decl.Name()]; ok {
					provided = &v
				}
			}
			if err := ev.evalDeclLocked(decl, root, "", provided); err != nil {
				return nil, fmt.Errorf("task %q: %w", task.Name, err)
			}
		case graph.NodeDecl:
			if err := ev.evalDeclLocked(node.Payload.(*ast.Decl), root, "", nil); err != nil {
				return nil, fmt.Errorf("task %q: %w", task.Name, err)
			}
		case graph.NodeRuntime, graph.NodeRequirements:
			section := node.Payload.(*ast.KeyValueSection)
			if err := ev.evalSection(section, root, requirements); err != nil {
				return nil, fmt.Errorf("task %q requirements: %w", task.Name, err)
			}
		case graph.NodeHints:
			section := node.Payload.(*ast.KeyValueSection)
			if err := ev.evalSection(section, root, hints); err != nil {
				return nil, fmt.Errorf("task %q hints: %w", task.Name, err)
			}
		case graph.NodeCommand:
			command = node.Payload.(*ast.CommandSection)
		}
	}

	// Input-file overrides replace section values.
	if inputs != nil {
		for k, v := range inputs.Requirements {
			requirements[k] = v
		}
		for k, v := range inputs.Hints {
			hints[k] = v
		}
	}

	constraints, err := e.opts.Backend.Constraints(toAnyMap(requirements), toAnyMap(hints))
	if err != nil {
		return nil, fmt.Errorf("task %q constraints: %w", task.Name, err)
	}

	if callID == "" {
		callID = task.Name
	}
	attemptID := fmt.Sprintf("%s-%s", callID, uuid.NewString()[:8])

	taskVar := &TaskValue{
		Name:      task.Name,
		ID:        attemptID,
		Attempt:   1,
		Container: constraints.Container,
		CPU:       int64(constraints.CPU),
		Memory:    constraints.Memory,
	}

	exitCode := 0
	var workDir, stdoutPath, stderrPath string
	if command != nil {
		exitCode, workDir, stdoutPath, stderrPath, err = ev.execute(ctx, task, command, root, taskVar, requirements, constraints, attemptID)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", task.Name, err)
		}
	}

	// Phase three: outputs evaluate against the work directory with the
	// stdout/stderr sentinels bound.
	rc := int64(exitCode)
	taskVar.ReturnCode = &rc

	outputScope := newScope(root)
	if doc.Supports(1, 2) {
		outputScope.insert("task", TaskVar(taskVar))
	}

	evaluated := make(map[string]Value)
	for _, id := range order {
		node := g.Node(id)
		if node.Kind != graph.NodeOutput {
			continue
		}
		decl := node.Payload.(*ast.Decl)
		declared, ok := doc.DeclType(decl.Span().Start)
		if !ok {
			declared = types.Union()
		}

		ev.mu.RLock()
		c := &evalContext{ev: ev, scope: outputScope, workDir: workDir, stdout: stdoutPath, stderr: stderrPath}
		value, err := c.eval(decl.Expr())
		ev.mu.RUnlock()
		if err != nil {
			return nil, fmt.Errorf("task %q output %q: %w", task.Name, decl.Name(), err)
		}
		if workDir != "" {
			value = value.JoinPaths(workDir)
		}
		coerced, err := value.Coerce(doc.Types, declared)
		if err != nil {
			return nil, fmt.Errorf("task %q output %q: %w", task.Name, decl.Name(), err)
		}
		outputScope.insert(decl.Name(), coerced)
		evaluated[decl.Name()] = coerced
	}

	// Outputs return in declaration order regardless of evaluation order.
	outputs := make([]ObjectMember, 0, len(task.Outputs))
	for _, m := range task.Outputs {
		if v, ok := evaluated[m.Name]; ok {
			outputs = append(outputs, ObjectMember{Name: m.Name, Value: v})
		}
	}

	ev.logger.Info("task finished", "task", task.Name, "id", attemptID, "exit_code", exitCode)
	return outputs, nil
}

// execute renders the command and drives the backend, retrying failed
// attempts up to the configured limit. The task variable's attempt counter
// increments between retries.
func (ev *evaluation) execute(ctx context.Context, task *analysis.Task, command *ast.CommandSection, root *scope, taskVar *TaskValue, requirements map[string]Value, constraints backend.ExecutionConstraints, attemptID string) (exitCode int, workDir, stdoutPath, stderrPath string, err error) {
	e := ev.e
	acceptable := acceptableReturnCodes(requirements)

	// Containerized execution sees guest paths; host execution sees the
	// values as-is.
	commandScope := root
	var pathMapping map[string]string
	if guestRoot := e.opts.Backend.ContainerRoot(); guestRoot != "" {
		commandScope, pathMapping = ev.mapPaths(root, guestRoot)
	}
	if ev.doc.Supports(1, 2) {
		mapped := newScope(commandScope)
		mapped.insert("task", TaskVar(taskVar))
		commandScope = mapped
	}

	env := ev.environment(task, commandScope)

	maxAttempts := e.opts.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		taskVar.Attempt = int64(attempt)

		workDir = filepath.Join(e.opts.WorkDir, attemptID, fmt.Sprintf("attempt-%d", attempt))
		stdoutPath = filepath.Join(workDir, "stdout")
		stderrPath = filepath.Join(workDir, "stderr")

		ev.mu.RLock()
		c := &evalContext{ev: ev, scope: commandScope, workDir: workDir}
		rendered, renderErr := renderCommand(c, command)
		ev.mu.RUnlock()
		if renderErr != nil {
			return 0, "", "", "", fmt.Errorf("render command: %w", renderErr)
		}

		started := make(chan struct{})
		code, spawnErr := e.opts.Backend.Spawn(ctx, backend.TaskSpawnRequest{
			TaskName:    task.Name,
			ID:          fmt.Sprintf("%s-%d", attemptID, attempt),
			Attempt:     attempt,
			WorkDir:     workDir,
			Command:     rendered,
			Env:         env,
			Constraints: constraints,
			PathMapping: pathMapping,
			StdoutPath:  stdoutPath,
			StderrPath:  stderrPath,
		}, started)
		if spawnErr != nil {
			return 0, "", "", "", fmt.Errorf("spawn: %w", spawnErr)
		}

		if codeAcceptable(code, acceptable) {
			return code, workDir, stdoutPath, stderrPath, nil
		}
		if attempt < maxAttempts {
			ev.logger.Warn("task attempt failed, retrying",
				"task", task.Name, "attempt", attempt, "exit_code", code)
			continue
		}
		return 0, "", "", "", fmt.Errorf("command exited with code %d after %d attempt(s)", code, attempt)
	}
	return 0, "", "", "", fmt.Errorf("no attempts were made")
}

// evalSection evaluates a runtime, requirements, or hints section into a
// value map.
func (ev *evaluation) evalSection(section *ast.KeyValueSection, sc *scope, into map[string]Value) error {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	c := &evalContext{ev: ev, scope: sc}
	for _, item := range section.Items() {
		v, err := c.eval(item.Expr())
		if err != nil {
			return fmt.Errorf("%q: %w", item.Name(), err)
		}
		into[item.Name()] = v
	}
	return nil
}

// environment builds the process environment from env-marked declarations.
func (ev *evaluation) environment(task *analysis.Task, sc *scope) map[string]string {
	env := make(map[string]string)
	ev.mu.RLock()
	defer ev.mu.RUnlock()

	addFrom := func(decls []*ast.Decl) {
		for _, d := range decls {
			if !d.Env() {
				continue
			}
			if v, ok := sc.lookup(d.Name()); ok && !v.IsNone() {
				env[d.Name()] = v.String()
			}
		}
	}
	if input := task.Def.Input(); input != nil {
		addFrom(input.Decls())
	}
	addFrom(task.Def.PrivateDecls())
	return env
}

// mapPaths builds a guest view of the scope for containerized execution:
// every File and Directory value maps under the guest root, and the
// returned mapping tells the backend what to mount.
func (ev *evaluation) mapPaths(root *scope, guestRoot string) (*scope, map[string]string) {
	mapping := make(map[string]string)
	seq := 0
	mapPath := func(host string) string {
		if host == "" || !filepath.IsAbs(host) {
			return host
		}
		if guest, ok := mapping[host]; ok {
			return guest
		}
		guest := filepath.Join(guestRoot, "inputs", fmt.Sprintf("%d", seq), filepath.Base(host))
		seq++
		mapping[host] = guest
		return guest
	}

	mapped := newScope(nil)
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	for _, name := range root.names() {
		v, _ := root.local(name)
		mapped.insert(name, rewritePaths(v, mapPath))
	}
	return mapped, mapping
}

func rewritePaths(v Value, fn func(string) string) Value {
	switch v.Kind() {
	case KindFile:
		return FileValue(fn(v.AsString()))
	case KindDirectory:
		return DirectoryValue(fn(v.AsString()))
	case KindPair:
		return PairOf(rewritePaths(v.Pair().Left, fn), rewritePaths(v.Pair().Right, fn))
	case KindArray:
		elems := make([]Value, len(v.Array().Elems))
		for i, e := range v.Array().Elems {
			elems[i] = rewritePaths(e, fn)
		}
		return ArrayOf(elems...)
	case KindMap:
		entries := make([]MapEntry, len(v.Map().Entries))
		for i, e := range v.Map().Entries {
			entries[i] = MapEntry{Key: rewritePaths(e.Key, fn), Value: rewritePaths(e.Value, fn)}
		}
		return MapOf(entries)
	case KindObject, KindStruct:
		members := make([]ObjectMember, len(v.Object().Members))
		for i, m := range v.Object().Members {
			members[i] = ObjectMember{Name: m.Name, Value: rewritePaths(m.Value, fn)}
		}
		if v.Kind() == KindStruct {
			return StructOf(v.Object().TypeName, members)
		}
		return ObjectOf(members)
	}
	return v
}

// renderCommand interpolates the command body. Heredoc commands strip the
// common leading whitespace of their lines.
func renderCommand(c *evalContext, command *ast.CommandSection) (string, error) {
	var b strings.Builder
	for _, part := range command.Parts() {
		if part.Text != nil {
			b.WriteString(commandUnescape(part.Text.Text(), command.IsHeredoc()))
			continue
		}
		s, err := c.evalPlaceholder(part.Placeholder)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	if command.IsHeredoc() {
		return dedent(b.String()), nil
	}
	return b.String(), nil
}

// commandUnescape resolves the escapes a command body supports: the
// placeholder openers and, in heredocs, the closing delimiter.
func commandUnescape(text string, heredoc bool) string {
	if !strings.ContainsRune(text, '\\') {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '\\' || i+1 >= len(text) {
			b.WriteByte(ch)
			continue
		}
		next := text[i+1]
		if next == '~' || next == '$' || (heredoc && next == '>') {
			b.WriteByte(next)
			i++
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// dedent strips the longest common leading whitespace from every non-blank
// line and trims all leading and trailing whitespace from the result.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	common := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if common < 0 || indent < common {
			common = indent
		}
	}
	if common <= 0 {
		return strings.TrimSpace(s)
	}
	for i, line := range lines {
		if len(line) >= common {
			lines[i] = line[common:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// acceptableReturnCodes reads the return_codes requirement: an int, the
// string "*", or an array of ints. Zero is the default.
func acceptableReturnCodes(requirements map[string]Value) []int {
	for _, key := range []string{"return_codes", "returnCodes"} {
		v, ok := requirements[key]
		if !ok {
			continue
		}
		switch v.Kind() {
		case KindInt:
			return []int{int(v.AsInt())}
		case KindString:
			if v.AsString() == "*" {
				return nil // anything goes
			}
		case KindArray:
			var out []int
			for _, e := range v.Array().Elems {
				if e.Kind() == KindInt {
					out = append(out, int(e.AsInt()))
				}
			}
			return out
		}
	}
	return []int{0}
}

func codeAcceptable(code int, acceptable []int) bool {
	if acceptable == nil {
		return true
	}
	for _, a := range acceptable {
		if a == code {
			return true
		}
	}
	return false
}

func toAnyMap(values map[string]Value) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v.ToJSON()
	}
	return out
}
