package parser

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

func parseText(t *testing.T, src string) Result {
	t.Helper()
	return Parse(src)
}

func TestParse_SimpleTaskRoundTrips(t *testing.T) {
	src := "version 1.1\ntask t { command <<< echo 1 >>> }\n"
	result := parseText(t, src)

	if len(result.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %v", result.Diagnostics)
	}
	if got := result.Root.Text(); got != src {
		t.Errorf("tree does not reprint the input:\n got %q\nwant %q", got, src)
	}
	if result.Version != "1.1" {
		t.Errorf("version: got %q", result.Version)
	}

	root := syntax.NewRoot(result.Root)
	tasks := root.ChildrenByKind(syntax.KindTaskDefinitionNode)
	if len(tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(tasks))
	}
	name := tasks[0].FirstTokenByKind(syntax.KindIdent)
	if name == nil || name.Text() != "t" {
		t.Errorf("task name: got %v", name)
	}
}

// Every byte of every input must appear in the tree, valid WDL or not.
func TestParse_Lossless(t *testing.T) {
	inputs := []string{
		"",
		"version 1.2\n",
		"version 1.0\nworkflow w {\n  Int x = 1\n  # comment\n  scatter (i in [1,2]) { Int y = i }\n}\n",
		"version 1.1\ntask t {\n  input { String s = \"a~{1}b\" }\n  command { echo ${s} }\n  output { Int n = 0 }\n  runtime { cpu: 2 }\n}\n",
		"version 1.2\nstruct P { Int x Int y }\ntask t { requirements { cpu: 4 } hints { short_task: true } }\n",
		"import \"other.wdl\" as lib alias A as B",
		"version 1.1\ntask broken { ??? }\nworkflow ok { }\n",
		"garbage @#$%^&*\x00\x01 not wdl at all",
		"version 1.1\nworkflow w { if (true) { Int x = 1 } Int? y = x }",
		"version 1.1\ntask t { command <<< unтерminated",
		"version 1.1\nworkflow w { call ns.t as u after v { input: a = 1, b = 2, } }",
	}
	for _, src := range inputs {
		result := parseText(t, src)
		if got := result.Root.Text(); got != src {
			t.Errorf("lossless violated:\n got %q\nwant %q", got, src)
		}
	}
}

// The parser must terminate and keep every byte for random binary inputs.
func TestParse_TerminatesOnRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := rng.Intn(256)
		buf := make([]byte, n)
		rng.Read(buf)
		src := string(buf)
		result := Parse(src)
		if got := result.Root.Text(); got != src {
			t.Fatalf("iteration %d: tree does not reproduce input", i)
		}
	}
}

// Parsing the same source twice yields identical diagnostics in the same
// order.
func TestParse_DeterministicDiagnostics(t *testing.T) {
	src := "version 1.1\ntask t { ??? input { Int } }\nworkflow { }"
	first := Parse(src)
	second := Parse(src)
	if !reflect.DeepEqual(first.Diagnostics, second.Diagnostics) {
		t.Errorf("diagnostics differ between runs:\n%v\n%v", first.Diagnostics, second.Diagnostics)
	}
	if len(first.Diagnostics) == 0 {
		t.Errorf("expected diagnostics for malformed input")
	}
}

func TestParse_MissingVersion(t *testing.T) {
	result := Parse("task t { }")
	if len(result.Diagnostics) == 0 {
		t.Fatal("expected a diagnostic for the missing version statement")
	}
	if result.Diagnostics[0].Fix == "" {
		t.Error("expected a fix suggestion")
	}
}

func TestParse_ExpressionPrecedence(t *testing.T) {
	result := Parse("version 1.1\nworkflow w { Int x = 1 + 2 * 3 }")
	if len(result.Diagnostics) != 0 {
		t.Fatalf("diagnostics: %v", result.Diagnostics)
	}
	root := syntax.NewRoot(result.Root)
	var addition *syntax.Node
	root.Descendants(func(n *syntax.Node) bool {
		if n.Kind() == syntax.KindAdditionExprNode {
			addition = n
		}
		return true
	})
	if addition == nil {
		t.Fatal("no addition node")
	}
	// Multiplication binds tighter, so it nests under the addition.
	if addition.FirstChildByKind(syntax.KindMultiplicationExprNode) == nil {
		t.Error("expected multiplication nested under addition")
	}
}

func TestParse_ExponentIsRightAssociative(t *testing.T) {
	result := Parse("version 1.1\nworkflow w { Int x = 2 ** 3 ** 2 }")
	root := syntax.NewRoot(result.Root)
	var outer *syntax.Node
	root.Descendants(func(n *syntax.Node) bool {
		if n.Kind() == syntax.KindExponentiationExprNode && outer == nil {
			outer = n
			return false
		}
		return true
	})
	if outer == nil {
		t.Fatal("no exponentiation node")
	}
	if outer.FirstChildByKind(syntax.KindExponentiationExprNode) == nil {
		t.Error("expected the right operand to be another exponentiation")
	}
}

func TestParse_ErrorRecoveryKeepsSiblings(t *testing.T) {
	src := "version 1.1\ntask bad { ??? }\ntask good { command <<< >>> }\n"
	result := Parse(src)
	if len(result.Diagnostics) == 0 {
		t.Fatal("expected diagnostics for the bad task")
	}
	root := syntax.NewRoot(result.Root)
	tasks := root.ChildrenByKind(syntax.KindTaskDefinitionNode)
	if len(tasks) != 2 {
		t.Fatalf("expected both tasks to parse, got %d", len(tasks))
	}
	if got := result.Root.Text(); got != src {
		t.Errorf("lossless violated after recovery")
	}
}

func TestParse_PairVersusParen(t *testing.T) {
	result := Parse("version 1.1\nworkflow w { Pair[Int, Int] p = (1, 2) Int x = (3) }")
	if len(result.Diagnostics) != 0 {
		t.Fatalf("diagnostics: %v", result.Diagnostics)
	}
	root := syntax.NewRoot(result.Root)
	count := func(kind syntax.Kind) int {
		n := 0
		root.Descendants(func(node *syntax.Node) bool {
			if node.Kind() == kind {
				n++
			}
			return true
		})
		return n
	}
	if count(syntax.KindLiteralPairNode) != 1 {
		t.Error("expected one pair literal")
	}
	if count(syntax.KindParenExprNode) != 1 {
		t.Error("expected one paren expression")
	}
}

func TestParse_PlaceholderOptions(t *testing.T) {
	result := Parse("version 1.1\ntask t { command <<< ~{sep=\", \" xs} ~{true=\"y\" false=\"n\" flag} >>> }")
	if len(result.Diagnostics) != 0 {
		t.Fatalf("diagnostics: %v", result.Diagnostics)
	}
	root := syntax.NewRoot(result.Root)
	options := 0
	root.Descendants(func(n *syntax.Node) bool {
		if n.Kind() == syntax.KindPlaceholderOptionNode {
			options++
		}
		return true
	})
	if options != 3 {
		t.Errorf("expected 3 placeholder options, got %d", options)
	}
}

func TestParse_RequirementsGatedOnVersion(t *testing.T) {
	result := Parse("version 1.1\ntask t { requirements { cpu: 1 } }")
	found := false
	for _, d := range result.Diagnostics {
		if strings.Contains(d.Message, "1.2") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a version-gate diagnostic, got %v", result.Diagnostics)
	}
}
