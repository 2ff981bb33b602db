package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/wdlkit/internal/analysis"
	"github.com/antigravity-dev/wdlkit/internal/backend"
)

// fakeBackend records spawns and writes each command to the stdout file,
// so outputs can read back what was executed without running anything.
type fakeBackend struct {
	mu       sync.Mutex
	spawned  []backend.TaskSpawnRequest
	exitCode int
	// failures makes the first n spawns fail with exit code 1.
	failures int
}

func (f *fakeBackend) ContainerRoot() string { return "" }
func (f *fakeBackend) MaxConcurrency() int64 { return 4 }
func (f *fakeBackend) Close() error          { return nil }

func (f *fakeBackend) Constraints(requirements, hints map[string]any) (backend.ExecutionConstraints, error) {
	out := backend.ExecutionConstraints{CPU: 1, Memory: 1 << 30}
	if v, ok := requirements["cpu"]; ok {
		if cpu, ok := backend.ParseCPU(v); ok {
			out.CPU = cpu
		}
	}
	return out, nil
}

func (f *fakeBackend) Spawn(ctx context.Context, req backend.TaskSpawnRequest, started chan<- struct{}) (int, error) {
	f.mu.Lock()
	f.spawned = append(f.spawned, req)
	remaining := f.failures
	if remaining > 0 {
		f.failures--
	}
	code := f.exitCode
	f.mu.Unlock()

	close(started)
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return -1, err
	}
	if err := os.WriteFile(req.StdoutPath, []byte(req.Command+"\n"), 0o644); err != nil {
		return -1, err
	}
	if err := os.WriteFile(req.StderrPath, nil, 0o644); err != nil {
		return -1, err
	}
	if remaining > 0 {
		return 1, nil
	}
	return code, nil
}

func analyzeSource(t *testing.T, src string) *analysis.Document {
	t.Helper()
	a := analysis.NewAnalyzer(failingResolver{}, nil)
	doc := a.AnalyzeSource("main.wdl", src)
	if doc.HasErrors() {
		t.Fatalf("analysis errors: %v", doc.Diagnostics())
	}
	return doc
}

type failingResolver struct{}

func (failingResolver) ReadDocument(uri string) (string, error) {
	return "", fmt.Errorf("no imports in tests")
}

func newTestEvaluator(t *testing.T, be backend.Backend) *Evaluator {
	t.Helper()
	if be == nil {
		be = &fakeBackend{}
	}
	ev, err := New(Options{
		Backend: be,
		WorkDir: t.TempDir(),
	})
	require.NoError(t, err)
	return ev
}

func TestRun_ScatterGatherOrder(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  scatter (i in [1, 2, 3]) {
    Int j = i + 1
  }
  output { Array[Int] out = j }
}`)
	ev := newTestEvaluator(t, nil)
	out, err := ev.Run(context.Background(), doc, "w", nil)
	require.NoError(t, err)

	v, ok := out.Get("out")
	require.True(t, ok)
	require.Equal(t, KindArray, v.Kind())
	elems := v.Array().Elems
	require.Len(t, elems, 3)
	for i, want := range []int64{2, 3, 4} {
		require.Equal(t, want, elems[i].AsInt(), "element %d", i)
	}
}

func TestRun_LargeScatterKeepsOrder(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  scatter (i in range(50)) {
    Int j = i * i
  }
  output { Array[Int] out = j }
}`)
	ev := newTestEvaluator(t, nil)
	out, err := ev.Run(context.Background(), doc, "w", nil)
	require.NoError(t, err)

	v, _ := out.Get("out")
	elems := v.Array().Elems
	require.Len(t, elems, 50)
	for i := range elems {
		require.Equal(t, int64(i*i), elems[i].AsInt(), "element %d", i)
	}
}

func TestRun_ConditionalFalseYieldsNone(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  if (false) {
    Int x = 10
  }
  Int? y = x
  output { Int? out = y }
}`)
	ev := newTestEvaluator(t, nil)
	out, err := ev.Run(context.Background(), doc, "w", nil)
	require.NoError(t, err)

	v, ok := out.Get("out")
	require.True(t, ok)
	require.True(t, v.IsNone(), "y must be None when the conditional is false")
}

func TestRun_ConditionalTruePromotes(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  if (1 < 2) {
    Int x = 10
  }
  output { Int? out = x }
}`)
	ev := newTestEvaluator(t, nil)
	out, err := ev.Run(context.Background(), doc, "w", nil)
	require.NoError(t, err)

	v, _ := out.Get("out")
	require.Equal(t, int64(10), v.AsInt())
}

func TestRun_CallTaskThroughBackend(t *testing.T) {
	doc := analyzeSource(t, `version 1.0
workflow w {
  input { Int x }
  call c
  output { String echoed = c.line }
}
task c {
  input { String y = "hi" }
  command <<< echo ~{y} >>>
  output { String line = read_string(stdout()) }
}`)
	fake := &fakeBackend{}
	ev := newTestEvaluator(t, fake)

	_, inputs, err := ParseInputs(doc, map[string]any{
		"w.x":   1,
		"w.c.y": "hello",
	})
	require.NoError(t, err)

	out, err := ev.Run(context.Background(), doc, "w", inputs)
	require.NoError(t, err)

	require.Len(t, fake.spawned, 1)
	require.Equal(t, "echo hello", fake.spawned[0].Command)

	v, ok := out.Get("echoed")
	require.True(t, ok)
	require.Equal(t, "echo hello", v.AsString())
}

func TestRun_TaskRetries(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
task flaky {
  command <<< exit 1 >>>
}`)
	fake := &fakeBackend{failures: 2}
	ev, err := New(Options{
		Backend:    fake,
		WorkDir:    t.TempDir(),
		MaxRetries: 3,
	})
	require.NoError(t, err)

	_, err = ev.Run(context.Background(), doc, "flaky", nil)
	require.NoError(t, err, "two failures with three retries should succeed")
	require.Len(t, fake.spawned, 3)
	require.Equal(t, 1, fake.spawned[0].Attempt)
	require.Equal(t, 3, fake.spawned[2].Attempt)
}

func TestRun_TaskFailureSurfacesExitCode(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
task bad {
  command <<< exit 3 >>>
}`)
	fake := &fakeBackend{exitCode: 3}
	ev := newTestEvaluator(t, fake)

	_, err := ev.Run(context.Background(), doc, "bad", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exited with code 3")
}

func TestRun_CallFailureWrapsContext(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
task bad {
  command <<< exit 1 >>>
}
workflow w {
  call bad
}`)
	fake := &fakeBackend{exitCode: 1}
	ev := newTestEvaluator(t, fake)

	_, err := ev.Run(context.Background(), doc, "w", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), `call "bad" failed`)
}

func TestRun_MissingRequiredInput(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  input { Int required_value }
  output { Int out = required_value }
}`)
	ev := newTestEvaluator(t, nil)
	_, err := ev.Run(context.Background(), doc, "w", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing required input w.required_value")
}

func TestRun_ScatterOverCalls(t *testing.T) {
	doc := analyzeSource(t, `version 1.0
task t {
  input { Int n }
  command <<< echo ~{n} >>>
  output { Int doubled = n * 2 }
}
workflow w {
  scatter (i in [1, 2, 3]) {
    call t { input: n = i }
  }
  output { Array[Int] all = t.doubled }
}`)
	ev := newTestEvaluator(t, nil)
	out, err := ev.Run(context.Background(), doc, "w", nil)
	require.NoError(t, err)

	v, ok := out.Get("all")
	require.True(t, ok)
	elems := v.Array().Elems
	require.Len(t, elems, 3)
	for i, want := range []int64{2, 4, 6} {
		require.Equal(t, want, elems[i].AsInt(), "element %d", i)
	}
}

func TestRun_WorkflowExpressionSuite(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  Int a = 2 ** 3 ** 2
  Float b = 7 / 2.0
  String c = "x" + 1
  Boolean d = "abc" < "abd"
  Int e = if d then 1 else 0
  Map[String, Int] m = { "one": 1, "two": 2 }
  Int f = m["two"]
  Pair[Int, String] p = (1, "one")
  String g = p.right
  Array[Int] h = select_all([1, None, 3])
  output {
    Int out_a = a
    Float out_b = b
    String out_c = c
    Int out_e = e
    Int out_f = f
    String out_g = g
    Array[Int] out_h = h
  }
}`)
	ev := newTestEvaluator(t, nil)
	out, err := ev.Run(context.Background(), doc, "w", nil)
	require.NoError(t, err)

	a, _ := out.Get("out_a")
	require.Equal(t, int64(512), a.AsInt(), "** must be right-associative")
	b, _ := out.Get("out_b")
	require.InDelta(t, 3.5, b.AsFloat(), 1e-9)
	c, _ := out.Get("out_c")
	require.Equal(t, "x1", c.AsString())
	e, _ := out.Get("out_e")
	require.Equal(t, int64(1), e.AsInt())
	f, _ := out.Get("out_f")
	require.Equal(t, int64(2), f.AsInt())
	g, _ := out.Get("out_g")
	require.Equal(t, "one", g.AsString())
	h, _ := out.Get("out_h")
	require.Len(t, h.Array().Elems, 2)
}

func TestRun_CancelledContext(t *testing.T) {
	doc := analyzeSource(t, `version 1.1
workflow w {
  scatter (i in range(10)) {
    Int j = i
  }
  output { Array[Int] out = j }
}`)
	ev := newTestEvaluator(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A pre-cancelled context must not hang; either outcome is acceptable
	// for a pure workflow that may win the race.
	_, _ = ev.Run(ctx, doc, "w", nil)
}
