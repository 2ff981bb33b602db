package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antigravity-dev/wdlkit/internal/analysis"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// TaskInputs are the values supplied to one task invocation, plus any
// requirements and hints overrides from the input file.
type TaskInputs struct {
	Values       map[string]Value
	Requirements map[string]Value
	Hints        map[string]Value
}

// NewTaskInputs returns empty task inputs.
func NewTaskInputs() *TaskInputs {
	return &TaskInputs{
		Values:       make(map[string]Value),
		Requirements: make(map[string]Value),
		Hints:        make(map[string]Value),
	}
}

// WorkflowInputs are the values supplied to a workflow invocation, with
// nested inputs per call.
type WorkflowInputs struct {
	Values map[string]Value
	Calls  map[string]*Inputs
}

// NewWorkflowInputs returns empty workflow inputs.
func NewWorkflowInputs() *WorkflowInputs {
	return &WorkflowInputs{
		Values: make(map[string]Value),
		Calls:  make(map[string]*Inputs),
	}
}

// Inputs is either task inputs or workflow inputs; exactly one is set.
type Inputs struct {
	Task     *TaskInputs
	Workflow *WorkflowInputs
}

// ParseInputsFile reads a JSON input file keyed by dotted paths. The first
// key segment names the root workflow or task; the return includes that
// name. Relative File and Directory inputs are joined against the input
// file's directory.
func ParseInputsFile(doc *analysis.Document, path string) (string, *Inputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read inputs file: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, fmt.Errorf("parse inputs file %s: %w", path, err)
	}
	name, inputs, err := ParseInputs(doc, raw)
	if err != nil {
		return "", nil, err
	}
	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return "", nil, err
	}
	joinInputPaths(doc, name, inputs, base)
	return name, inputs, nil
}

// ParseInputs builds inputs from a decoded JSON object.
func ParseInputs(doc *analysis.Document, raw map[string]any) (string, *Inputs, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := ""
	for _, key := range keys {
		first, _, _ := strings.Cut(key, ".")
		if root == "" {
			root = first
		} else if root != first {
			return "", nil, fmt.Errorf("inputs address both %q and %q; one root workflow or task is allowed", root, first)
		}
	}
	if root == "" {
		return "", nil, fmt.Errorf("inputs file is empty")
	}

	if wf := doc.Workflow; wf != nil && wf.Name == root {
		inputs := NewWorkflowInputs()
		for _, key := range keys {
			_, rest, ok := strings.Cut(key, ".")
			if !ok || rest == "" {
				return "", nil, fmt.Errorf("input key %q does not address an input", key)
			}
			if err := setWorkflowValue(doc, wf, inputs, rest, raw[key], true); err != nil {
				return "", nil, fmt.Errorf("input %q: %w", key, err)
			}
		}
		return root, &Inputs{Workflow: inputs}, nil
	}

	if task := doc.Task(root); task != nil {
		inputs := NewTaskInputs()
		for _, key := range keys {
			_, rest, ok := strings.Cut(key, ".")
			if !ok || rest == "" {
				return "", nil, fmt.Errorf("input key %q does not address an input", key)
			}
			if err := setTaskValue(doc, task, inputs, rest, raw[key]); err != nil {
				return "", nil, fmt.Errorf("input %q: %w", key, err)
			}
		}
		return root, &Inputs{Task: inputs}, nil
	}

	return "", nil, fmt.Errorf("document has no workflow or task named %q", root)
}

// setTaskValue stores one dotted-path value on task inputs: a direct input
// or a runtime/requirements/hints override.
func setTaskValue(doc *analysis.Document, task *analysis.Task, inputs *TaskInputs, path string, raw any) error {
	head, rest, nested := strings.Cut(path, ".")

	switch head {
	case "runtime", "requirements":
		if !nested {
			return fmt.Errorf("%q requires a key segment", head)
		}
		return setOverride(doc, inputs.Requirements, rest, raw, analysis.RequirementTypes)
	case "hints":
		if !nested {
			return fmt.Errorf("hints requires a key segment")
		}
		return setOverride(doc, inputs.Hints, rest, raw, analysis.HintTypes)
	}

	if nested {
		return fmt.Errorf("task inputs cannot be nested under %q", head)
	}
	member, ok := task.Input(head)
	if !ok {
		return fmt.Errorf("task %q has no input named %q", task.Name, head)
	}
	v, err := FromJSON(doc.Types, raw, member.Type)
	if err != nil {
		return fmt.Errorf("cannot coerce to %s: %w", doc.Types.Display(member.Type), err)
	}
	inputs.Values[head] = v
	return nil
}

func setOverride(doc *analysis.Document, into map[string]Value, key string, raw any,
	accepted func(*analysis.Document, string) []types.Type) error {
	targets := accepted(doc, key)
	if targets == nil {
		return fmt.Errorf("unknown key %q for this WDL version", key)
	}
	var lastErr error
	for _, t := range targets {
		v, err := FromJSON(doc.Types, raw, t)
		if err == nil {
			into[key] = v
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("invalid value for %q: %w", key, lastErr)
}

// setWorkflowValue stores one dotted-path value: a workflow input or a
// nested call input reached through call names.
func setWorkflowValue(doc *analysis.Document, wf *analysis.Workflow, inputs *WorkflowInputs, path string, raw any, topLevel bool) error {
	head, rest, nested := strings.Cut(path, ".")

	if !nested {
		member, ok := wf.Input(head)
		if !ok {
			return fmt.Errorf("workflow %q has no input named %q", wf.Name, head)
		}
		v, err := FromJSON(doc.Types, raw, member.Type)
		if err != nil {
			return fmt.Errorf("cannot coerce to %s: %w", doc.Types.Display(member.Type), err)
		}
		inputs.Values[head] = v
		return nil
	}

	call, ok := wf.Calls[head]
	if !ok {
		return fmt.Errorf("workflow %q has no call named %q", wf.Name, head)
	}
	if !topLevel && !wf.AllowNestedInputs {
		return fmt.Errorf("workflow %q does not allow nested call inputs", wf.Name)
	}

	// The first input segment under the call must not have been bound at
	// the call site.
	inputName, _, _ := strings.Cut(rest, ".")
	if call.Bound[inputName] && inputName != "runtime" && inputName != "requirements" && inputName != "hints" {
		return fmt.Errorf("input %q of call %q is already bound at the call site", inputName, head)
	}

	nestedInputs := inputs.Calls[head]
	if nestedInputs == nil {
		if call.Task != nil {
			nestedInputs = &Inputs{Task: NewTaskInputs()}
		} else {
			nestedInputs = &Inputs{Workflow: NewWorkflowInputs()}
		}
		inputs.Calls[head] = nestedInputs
	}

	if call.Task != nil {
		if !wf.AllowNestedInputs {
			return fmt.Errorf("workflow %q does not allow nested call inputs", wf.Name)
		}
		return setTaskValue(call.TargetDoc, call.Task, nestedInputs.Task, rest, raw)
	}
	return setWorkflowValue(call.TargetDoc, call.TargetWorkflow, nestedInputs.Workflow, rest, raw, false)
}

// joinInputPaths rewrites relative File and Directory inputs against the
// input file's directory.
func joinInputPaths(doc *analysis.Document, root string, inputs *Inputs, base string) {
	switch {
	case inputs.Task != nil:
		task := doc.Task(root)
		if task == nil {
			return
		}
		for name, v := range inputs.Task.Values {
			if member, ok := task.Input(name); ok && pathBearing(doc.Types, member.Type) {
				inputs.Task.Values[name] = v.JoinPaths(base)
			}
		}
	case inputs.Workflow != nil:
		wf := doc.Workflow
		if wf == nil || wf.Name != root {
			return
		}
		joinWorkflowPaths(doc, wf, inputs.Workflow, base)
	}
}

func joinWorkflowPaths(doc *analysis.Document, wf *analysis.Workflow, inputs *WorkflowInputs, base string) {
	for name, v := range inputs.Values {
		if member, ok := wf.Input(name); ok && pathBearing(doc.Types, member.Type) {
			inputs.Values[name] = v.JoinPaths(base)
		}
	}
	for name, nested := range inputs.Calls {
		call, ok := wf.Calls[name]
		if !ok {
			continue
		}
		switch {
		case nested.Task != nil && call.Task != nil:
			for inputName, v := range nested.Task.Values {
				if member, ok := call.Task.Input(inputName); ok && pathBearing(call.TargetDoc.Types, member.Type) {
					nested.Task.Values[inputName] = v.JoinPaths(base)
				}
			}
		case nested.Workflow != nil && call.TargetWorkflow != nil:
			joinWorkflowPaths(call.TargetDoc, call.TargetWorkflow, nested.Workflow, base)
		}
	}
}

// pathBearing reports whether a type can hold File or Directory values.
func pathBearing(arena *types.Arena, t types.Type) bool {
	switch t.Kind() {
	case types.KindPrimitive:
		return t.PrimitiveKind() == types.File || t.PrimitiveKind() == types.Directory
	case types.KindObject, types.KindUnion:
		return true
	case types.KindCompound:
		def := arena.Def(t.ID())
		switch {
		case def.Array != nil:
			return pathBearing(arena, def.Array.Elem)
		case def.Pair != nil:
			return pathBearing(arena, def.Pair.Left) || pathBearing(arena, def.Pair.Right)
		case def.Map != nil:
			return pathBearing(arena, def.Map.Key) || pathBearing(arena, def.Map.Value)
		case def.Struct != nil:
			for _, m := range def.Struct.Members {
				if pathBearing(arena, m.Type) {
					return true
				}
			}
		}
	}
	return false
}

// Validate checks that every required input of the target is supplied,
// after all keys have been consumed. Errors chain the full path.
func (in *Inputs) Validate(doc *analysis.Document, root string) error {
	switch {
	case in.Task != nil:
		task := doc.Task(root)
		if task == nil {
			return fmt.Errorf("no task named %q", root)
		}
		return validateTaskInputs(task, in.Task, root)
	case in.Workflow != nil:
		wf := doc.Workflow
		if wf == nil || wf.Name != root {
			return fmt.Errorf("no workflow named %q", root)
		}
		return validateWorkflowInputs(wf, in.Workflow, root)
	}
	return fmt.Errorf("empty inputs")
}

func validateTaskInputs(task *analysis.Task, inputs *TaskInputs, path string) error {
	for name := range task.RequiredInputs {
		if _, ok := inputs.Values[name]; !ok {
			return fmt.Errorf("missing required input %s.%s", path, name)
		}
	}
	return nil
}

func validateWorkflowInputs(wf *analysis.Workflow, inputs *WorkflowInputs, path string) error {
	for name := range wf.RequiredInputs {
		if _, ok := inputs.Values[name]; !ok {
			return fmt.Errorf("missing required input %s.%s", path, name)
		}
	}
	// Deep validation: every call must end up fully supplied between its
	// call-site bindings and nested inputs.
	names := make([]string, 0, len(wf.Calls))
	for name := range wf.Calls {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		call := wf.Calls[name]
		nested := inputs.Calls[name]
		var required map[string]bool
		if call.Task != nil {
			required = call.Task.RequiredInputs
		} else {
			required = call.TargetWorkflow.RequiredInputs
		}
		for input := range required {
			if call.Bound[input] {
				continue
			}
			supplied := false
			if nested != nil {
				if nested.Task != nil {
					_, supplied = nested.Task.Values[input]
				} else if nested.Workflow != nil {
					_, supplied = nested.Workflow.Values[input]
				}
			}
			if !supplied {
				return fmt.Errorf("missing required input %s.%s.%s", path, name, input)
			}
		}
	}
	return nil
}
