package graph

import (
	"strings"
	"testing"

	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/syntax/parser"
)

func TestToposort_Deterministic(t *testing.T) {
	build := func() *Graph {
		g := New()
		g.Add(&Node{ID: "a"})
		g.Add(&Node{ID: "b"})
		g.Add(&Node{ID: "c"})
		g.AddDep("c", "a")
		g.AddDep("c", "b")
		return g
	}
	first, err := build().Toposort()
	if err != nil {
		t.Fatalf("toposort: %v", err)
	}
	second, err := build().Toposort()
	if err != nil {
		t.Fatalf("toposort: %v", err)
	}
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Errorf("order not deterministic: %v vs %v", first, second)
	}
	if first[len(first)-1] != "c" {
		t.Errorf("c must come last: %v", first)
	}
}

func TestToposort_CycleError(t *testing.T) {
	g := New()
	g.Add(&Node{ID: "a"})
	g.Add(&Node{ID: "b"})
	g.AddDep("a", "b")
	g.AddDep("b", "a")
	if _, err := g.Toposort(); err == nil {
		t.Fatal("expected a cycle error")
	}
}

func parseTask(t *testing.T, src string) *ast.TaskDefinition {
	t.Helper()
	result := parser.Parse(src)
	root := ast.CastDocument(syntax.NewRoot(result.Root))
	tasks := root.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(tasks))
	}
	return tasks[0]
}

func TestBuildTask_Edges(t *testing.T) {
	task := parseTask(t, `version 1.1
task t {
  input {
    Int a
    Int b = a + 1
  }
  Int c = b * 2
  command <<< echo ~{c} >>>
  output { Int d = c + 1 }
  runtime { cpu: a }
}`)
	g := BuildTask(task)

	deps := func(id string) map[string]bool {
		out := make(map[string]bool)
		for _, d := range g.Dependencies(id) {
			out[d] = true
		}
		return out
	}

	if !deps("input:b")["input:a"] {
		t.Error("b must depend on a")
	}
	if !deps("decl:c")["input:b"] {
		t.Error("c must depend on b")
	}
	if !deps("command")["decl:c"] {
		t.Error("the command must depend on c")
	}
	if !deps("output:d")["command"] {
		t.Error("outputs must depend on the command")
	}
	if !deps("output:d")["decl:c"] {
		t.Error("d must depend on c")
	}
	if !deps("runtime")["input:a"] {
		t.Error("runtime must depend on a")
	}

	if _, err := g.Toposort(); err != nil {
		t.Errorf("unexpected cycle: %v", err)
	}
}

func TestBuildTask_CycleDetected(t *testing.T) {
	task := parseTask(t, `version 1.1
task t {
  Int a = b + 1
  Int b = a + 1
  command <<< >>>
}`)
	g := BuildTask(task)
	if _, err := g.Toposort(); err == nil {
		t.Fatal("expected a dependency cycle")
	}
}

func parseWorkflow(t *testing.T, src string) *ast.WorkflowDefinition {
	t.Helper()
	result := parser.Parse(src)
	root := ast.CastDocument(syntax.NewRoot(result.Root))
	wfs := root.Workflows()
	if len(wfs) != 1 {
		t.Fatalf("expected one workflow, got %d", len(wfs))
	}
	return wfs[0]
}

func TestBuildWorkflow_ScatterOwnsBodyAndPromotes(t *testing.T) {
	wf := parseWorkflow(t, `version 1.1
workflow w {
  Array[Int] xs = [1, 2, 3]
  scatter (i in xs) {
    Int j = i + 1
  }
  output { Array[Int] out = j }
}`)
	g := BuildWorkflow(wf)

	var scatter *Node
	for _, n := range g.Nodes() {
		if n.Kind == NodeScatter {
			scatter = n
		}
	}
	if scatter == nil {
		t.Fatal("no scatter node")
	}
	if scatter.Body == nil || scatter.Body.Len() != 1 {
		t.Fatalf("scatter body should own one node, got %v", scatter.Body)
	}
	if len(scatter.Names) != 1 || scatter.Names[0] != "j" {
		t.Errorf("promoted names: got %v", scatter.Names)
	}

	// The scatter reads xs; the output reads j through the scatter.
	foundXs := false
	for _, d := range g.Dependencies(scatter.ID) {
		if d == "decl:xs" {
			foundXs = true
		}
	}
	if !foundXs {
		t.Error("scatter must depend on xs")
	}
	foundScatter := false
	for _, d := range g.Dependencies("output:out") {
		if d == scatter.ID {
			foundScatter = true
		}
	}
	if !foundScatter {
		t.Error("the output must depend on the scatter")
	}
}

func TestBuildWorkflow_NestedBodyClosesOverOuterNames(t *testing.T) {
	wf := parseWorkflow(t, `version 1.1
workflow w {
  Int base = 10
  scatter (i in [1]) {
    Int j = i + base
  }
}`)
	g := BuildWorkflow(wf)
	var scatter *Node
	for _, n := range g.Nodes() {
		if n.Kind == NodeScatter {
			scatter = n
		}
	}
	if scatter == nil {
		t.Fatal("no scatter node")
	}
	found := false
	for _, d := range g.Dependencies(scatter.ID) {
		if d == "decl:base" {
			found = true
		}
	}
	if !found {
		t.Error("the scatter must depend on the outer name its body reads")
	}
}

func TestBuildWorkflow_CallAfter(t *testing.T) {
	wf := parseWorkflow(t, `version 1.1
workflow w {
  call t as first
  call t as second after first
}`)
	g := BuildWorkflow(wf)
	found := false
	for _, d := range g.Dependencies("call:second") {
		if d == "call:first" {
			found = true
		}
	}
	if !found {
		t.Error("after clauses must create dependencies")
	}
}
