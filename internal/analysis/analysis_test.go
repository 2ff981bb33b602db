package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// memResolver serves documents from a map, for import tests.
type memResolver map[string]string

func (m memResolver) ReadDocument(uri string) (string, error) {
	src, ok := m[uri]
	if !ok {
		return "", fmt.Errorf("no document at %s", uri)
	}
	return src, nil
}

func analyze(t *testing.T, src string) *Document {
	t.Helper()
	a := NewAnalyzer(memResolver{}, nil)
	return a.AnalyzeSource("main.wdl", src)
}

func requireDiag(t *testing.T, doc *Document, fragment string) diag.Diagnostic {
	t.Helper()
	for _, d := range doc.Diagnostics() {
		if strings.Contains(d.Message, fragment) {
			return d
		}
	}
	t.Fatalf("no diagnostic containing %q; got %v", fragment, doc.Diagnostics())
	return diag.Diagnostic{}
}

func requireClean(t *testing.T, doc *Document) {
	t.Helper()
	if doc.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", doc.Diagnostics())
	}
}

func TestAnalyze_SimpleTask(t *testing.T) {
	doc := analyze(t, "version 1.1\ntask t { command <<< echo 1 >>> }\n")
	requireClean(t, doc)
	require.Len(t, doc.Tasks, 1)
	require.Equal(t, "t", doc.Tasks[0].Name)
}

func TestAnalyze_EmptyArrayToNonEmpty(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w {
  Array[Int]+ a = []
}`)
	requireDiag(t, doc, "cannot coerce empty array literal to non-empty array type")
}

func TestAnalyze_ConflictingTaskNames(t *testing.T) {
	doc := analyze(t, `version 1.1
task foo { command <<< >>> }
task foo { command <<< >>> }`)
	d := requireDiag(t, doc, `conflicting task name "foo"`)
	require.NotEmpty(t, d.Labels, "the conflict should label the first definition")
	// The primary span points at the second occurrence, after the label's
	// span.
	require.Greater(t, d.Span.Start, d.Labels[0].Span.Start)
	require.Len(t, doc.Tasks, 1)
}

func TestAnalyze_RecursiveStruct(t *testing.T) {
	doc := analyze(t, `version 1.1
struct A {
  Int x
  A nested
}`)
	count := 0
	for _, d := range doc.Diagnostics() {
		if strings.Contains(d.Message, "recursive struct") {
			count++
		}
	}
	require.Equal(t, 1, count, "exactly one recursive-struct diagnostic")
}

func TestAnalyze_MutuallyRecursiveStructs(t *testing.T) {
	doc := analyze(t, `version 1.1
struct A { B b }
struct B { A a }`)
	count := 0
	for _, d := range doc.Diagnostics() {
		if strings.Contains(d.Message, "recursive struct") {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestAnalyze_ImportCycle(t *testing.T) {
	resolver := memResolver{
		"a.wdl": "version 1.1\nimport \"b.wdl\"\ntask ta { command <<< >>> }",
		"b.wdl": "version 1.1\nimport \"a.wdl\"\ntask tb { command <<< >>> }",
	}
	a := NewAnalyzer(resolver, nil)
	doc, err := a.Analyze("a.wdl")
	require.NoError(t, err)

	cycles := 0
	for _, d := range doc.Diagnostics() {
		if strings.Contains(d.Message, "dependency cycle") {
			cycles++
		}
	}
	for _, ns := range doc.Namespaces {
		for _, d := range ns.Document.Diagnostics() {
			if strings.Contains(d.Message, "dependency cycle") {
				cycles++
			}
		}
	}
	require.Equal(t, 1, cycles, "one import-cycle diagnostic across the graph")

	// Both documents still analyzed their own tasks.
	require.Len(t, doc.Tasks, 1)
	require.Len(t, doc.Namespaces, 1)
	require.Len(t, doc.Namespaces[0].Document.Tasks, 1)
}

func TestAnalyze_ImportedStructs(t *testing.T) {
	resolver := memResolver{
		"lib.wdl": `version 1.1
struct Point { Int x Int y }`,
	}
	a := NewAnalyzer(resolver, nil)
	doc := a.AnalyzeSource("main.wdl", `version 1.1
import "lib.wdl"
workflow w {
  Point p = Point { x: 1, y: 2 }
  Int x = p.x
}`)
	requireClean(t, doc)
	s := doc.StructByName("Point")
	require.NotNil(t, s)
	require.Equal(t, "lib", s.Namespace)
}

func TestAnalyze_IncompatibleImportVersion(t *testing.T) {
	resolver := memResolver{
		"lib.wdl": "version 2.0\ntask t { command <<< >>> }",
	}
	a := NewAnalyzer(resolver, nil)
	doc := a.AnalyzeSource("main.wdl", "version 1.1\nimport \"lib.wdl\"\n")
	requireDiag(t, doc, "incompatible import")
	require.Empty(t, doc.Namespaces)
}

func TestAnalyze_UnknownTypeReportedOnce(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w {
  Missing a = 1
  Missing b = 2
}`)
	count := 0
	for _, d := range doc.Diagnostics() {
		if strings.Contains(d.Message, "unknown type") {
			count++
		}
	}
	require.Equal(t, 1, count, "unknown types are reported once")
}

func TestAnalyze_UnknownName(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w { Int x = nope }`)
	requireDiag(t, doc, `unknown name "nope"`)
}

func TestAnalyze_TypeMismatchOnDecl(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w { Int x = "hello" }`)
	requireDiag(t, doc, "type mismatch")
}

func TestAnalyze_IfConditionMustBeBoolean(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w { Int x = if 1 then 2 else 3 }`)
	requireDiag(t, doc, "if conditional mismatch")
}

func TestAnalyze_ScatterPromotesToArray(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w {
  scatter (i in [1, 2, 3]) {
    Int j = i + 1
  }
  output { Array[Int] out = j }
}`)
	requireClean(t, doc)
	wf := doc.Workflow
	require.NotNil(t, wf)
	entry, ok := doc.Lookup(wf.Scope, "j")
	require.True(t, ok, "j must be visible after the scatter")
	def := doc.Types.Def(entry.Type.ID())
	require.NotNil(t, def.Array)
	require.Equal(t, types.Int, def.Array.Elem.PrimitiveKind())
}

func TestAnalyze_ConditionalPromotesToOptional(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w {
  if (false) {
    Int x = 10
  }
  Int? y = x
}`)
	requireClean(t, doc)
	entry, ok := doc.Lookup(doc.Workflow.Scope, "x")
	require.True(t, ok)
	require.True(t, entry.Type.Optional(), "x must be optional outside the conditional")
}

func TestAnalyze_CallBindsOutputs(t *testing.T) {
	doc := analyze(t, `version 1.1
task t {
  input { Int n }
  command <<< echo ~{n} >>>
  output { Int doubled = n * 2 }
}
workflow w {
  call t { input: n = 21 }
  output { Int result = t.doubled }
}`)
	requireClean(t, doc)
	require.Contains(t, doc.Workflow.Calls, "t")
}

func TestAnalyze_UnknownCallInput(t *testing.T) {
	doc := analyze(t, `version 1.1
task t { command <<< >>> }
workflow w {
  call t { input: nope = 1 }
}`)
	requireDiag(t, doc, "unknown call input")
}

func TestAnalyze_RecursiveWorkflowCall(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w {
  call w
}`)
	requireDiag(t, doc, "recursively")
}

func TestAnalyze_CallConflict(t *testing.T) {
	doc := analyze(t, `version 1.1
task t { command <<< >>> }
workflow w {
  call t
  call t
}`)
	d := requireDiag(t, doc, "call conflict")
	require.NotEmpty(t, d.Fix, "the conflict should suggest aliasing")
}

func TestAnalyze_StdlibBinding(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w {
  Int n = length([1, 2, 3])
  Array[Int] r = range(5)
  Array[Int] f = flatten([[1], [2, 3]])
  Int first = select_first([n, 1])
  Boolean d = defined(first)
  String joined = sep(",", ["a", "b"])
}`)
	requireClean(t, doc)
}

func TestAnalyze_UnknownFunction(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w { Int x = nonsense(1) }`)
	requireDiag(t, doc, "unknown function")
}

func TestAnalyze_UnsupportedFunctionVersion(t *testing.T) {
	doc := analyze(t, `version 1.0
workflow w { Boolean b = contains([1], 1) }`)
	requireDiag(t, doc, "unsupported function")
}

func TestAnalyze_WrongArity(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w { Int x = floor(1.0, 2.0) }`)
	requireDiag(t, doc, "too many arguments")
}

func TestAnalyze_ArgumentMismatch(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w { Int x = floor("nope") }`)
	requireDiag(t, doc, "argument type mismatch")
}

func TestAnalyze_PlaceholderTypes(t *testing.T) {
	doc := analyze(t, `version 1.1
task t {
  input { Array[Int] xs Int n }
  command <<< echo ~{sep="," xs} ~{n} >>>
}`)
	requireClean(t, doc)

	bad := analyze(t, `version 1.1
task t {
  input { Array[Int] xs }
  command <<< echo ~{xs} >>>
}`)
	requireDiag(t, bad, "cannot coerce to string")
}

func TestAnalyze_StructLiteralChecks(t *testing.T) {
	doc := analyze(t, `version 1.1
struct P { Int x Int y }
workflow w {
  P good = P { x: 1, y: 2 }
  P missing = P { x: 1 }
  P extra = P { x: 1, y: 2, z: 3 }
}`)
	requireDiag(t, doc, "missing struct members")
	requireDiag(t, doc, "is not a struct member")
}

func TestAnalyze_AccessDiagnostics(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w {
  Pair[Int, Int] p = (1, 2)
  Int l = p.left
  Int bad = p.middle
  Int worse = l.member
}`)
	requireDiag(t, doc, "not a pair accessor")
	requireDiag(t, doc, "cannot access")
}

func TestAnalyze_OrderingRejectsFiles(t *testing.T) {
	doc := analyze(t, `version 1.1
workflow w {
  File f = "x"
  Boolean b = f < f
}`)
	requireDiag(t, doc, "comparison mismatch")
}

func TestAnalyze_DeterministicDiagnostics(t *testing.T) {
	src := `version 1.1
workflow w {
  Int a = nope1
  Int b = nope2
  Missing c = 1
}`
	first := analyze(t, src).Diagnostics()
	a := NewAnalyzer(memResolver{}, nil)
	second := a.AnalyzeSource("main.wdl", src).Diagnostics()
	require.Equal(t, first, second)
}

func TestCompletion_ScopeNames(t *testing.T) {
	src := `version 1.1
workflow w {
  Int alpha = 1
  Int beta = alpha + 1
}`
	doc := analyze(t, src)
	requireClean(t, doc)
	offset := strings.Index(src, "alpha + 1")
	items := Completion(doc, offset)
	labels := make(map[string]bool)
	for _, item := range items {
		labels[item.Label] = true
	}
	require.True(t, labels["alpha"], "alpha should be suggested, got %v", items)
}
