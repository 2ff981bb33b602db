package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInputs_WorkflowAndNestedCall(t *testing.T) {
	doc := analyzeSource(t, `version 1.0
task c {
  input { String y }
  command <<< echo ~{y} >>>
}
workflow w {
  input { Int x }
  call c
}`)

	name, inputs, err := ParseInputs(doc, map[string]any{
		"w.x":   1,
		"w.c.y": "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "w", name)
	require.NotNil(t, inputs.Workflow)

	x, ok := inputs.Workflow.Values["x"]
	require.True(t, ok)
	require.Equal(t, int64(1), x.AsInt())

	nested, ok := inputs.Workflow.Calls["c"]
	require.True(t, ok)
	require.NotNil(t, nested.Task)
	y, ok := nested.Task.Values["y"]
	require.True(t, ok)
	require.Equal(t, "hi", y.AsString())

	require.NoError(t, inputs.Validate(doc, "w"))
}

func TestParseInputs_UnknownInput(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  input { Int x }
}`)
	_, _, err := ParseInputs(doc, map[string]any{"w.nope": 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), `no input named "nope"`)
}

func TestParseInputs_MixedRootsRejected(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  input { Int x }
}`)
	_, _, err := ParseInputs(doc, map[string]any{"w.x": 1, "other.y": 2})
	require.Error(t, err)
}

func TestParseInputs_TaskWithRequirementOverrides(t *testing.T) {
	doc := analyzeSource(t, `version 1.2
task t {
  input { Int n }
  command <<< echo ~{n} >>>
}`)
	name, inputs, err := ParseInputs(doc, map[string]any{
		"t.n":                1,
		"t.requirements.cpu": 4,
	})
	require.NoError(t, err)
	require.Equal(t, "t", name)
	require.NotNil(t, inputs.Task)

	cpu, ok := inputs.Task.Requirements["cpu"]
	require.True(t, ok)
	require.Equal(t, int64(4), cpu.AsInt())
	require.NoError(t, inputs.Validate(doc, "t"))
}

func TestParseInputs_RejectsUnknownRequirement(t *testing.T) {
	doc := analyzeSource(t, `version 1.2
task t {
  command <<< >>>
}`)
	_, _, err := ParseInputs(doc, map[string]any{"t.requirements.quantum": true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown key")
}

func TestParseInputs_TypeMismatch(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  input { Int x }
}`)
	_, _, err := ParseInputs(doc, map[string]any{"w.x": "not an int"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot coerce")
}

func TestParseInputs_BoundCallInputRejected(t *testing.T) {
	doc := analyzeSource(t, `version 1.0
task c {
  input { String y }
  command <<< echo ~{y} >>>
}
workflow w {
  call c { input: y = "bound" }
}`)
	_, _, err := ParseInputs(doc, map[string]any{"w.c.y": "override"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already bound at the call site")
}

func TestParseInputsFile_JoinsRelativePaths(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  input { File data }
}`)
	dir := t.TempDir()
	inputsPath := filepath.Join(dir, "inputs.json")
	require.NoError(t, os.WriteFile(inputsPath, []byte(`{"w.data": "samples/a.txt"}`), 0o644))

	_, inputs, err := ParseInputsFile(doc, inputsPath)
	require.NoError(t, err)

	data := inputs.Workflow.Values["data"]
	require.Equal(t, KindFile, data.Kind())
	require.Equal(t, filepath.Join(dir, "samples", "a.txt"), data.AsString())
}

func TestValidate_MissingNestedInput(t *testing.T) {
	doc := analyzeSource(t, `version 1.0
task c {
  input { String y }
  command <<< echo ~{y} >>>
}
workflow w {
  call c
}`)
	_, inputs, err := ParseInputs(doc, map[string]any{})
	require.Error(t, err, "empty inputs have no root")

	inputs = &Inputs{Workflow: NewWorkflowInputs()}
	err = inputs.Validate(doc, "w")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing required input w.c.y")
}
