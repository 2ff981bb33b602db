package ast

import (
	"testing"

	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/syntax/parser"
)

func parseDoc(t *testing.T, src string) *Document {
	t.Helper()
	result := parser.Parse(src)
	doc := CastDocument(syntax.NewRoot(result.Root))
	if doc == nil {
		t.Fatal("root did not cast to a document")
	}
	return doc
}

func TestDocument_Accessors(t *testing.T) {
	doc := parseDoc(t, `version 1.1
import "lib/tools.wdl" alias Old as New
struct P { Int x Int y }
task t {
  input { String name env String who = "world" }
  command <<< echo hello >>>
  output { File out = "result.txt" }
}
workflow w { call t }`)

	if doc.Version() != "1.1" {
		t.Errorf("version: got %q", doc.Version())
	}

	imports := doc.Imports()
	if len(imports) != 1 {
		t.Fatalf("imports: got %d", len(imports))
	}
	if imports[0].URI() != "lib/tools.wdl" {
		t.Errorf("uri: got %q", imports[0].URI())
	}
	if imports[0].Namespace() != "tools" {
		t.Errorf("derived namespace: got %q", imports[0].Namespace())
	}
	aliases := imports[0].Aliases()
	if len(aliases) != 1 {
		t.Fatalf("aliases: got %d", len(aliases))
	}
	source, target := aliases[0].Names()
	if source.Text() != "Old" || target.Text() != "New" {
		t.Errorf("alias: got %q as %q", source.Text(), target.Text())
	}

	structs := doc.Structs()
	if len(structs) != 1 || structs[0].Name() != "P" {
		t.Fatalf("structs: got %v", structs)
	}
	if len(structs[0].Members()) != 2 {
		t.Errorf("struct members: got %d", len(structs[0].Members()))
	}

	tasks := doc.Tasks()
	if len(tasks) != 1 || tasks[0].Name() != "t" {
		t.Fatalf("tasks: got %v", tasks)
	}
	decls := tasks[0].Input().Decls()
	if len(decls) != 2 {
		t.Fatalf("input decls: got %d", len(decls))
	}
	if decls[0].IsBound() {
		t.Error("name should be unbound")
	}
	if !decls[1].Env() || !decls[1].IsBound() {
		t.Error("who should be an env-marked bound decl")
	}
	if tasks[0].Command() == nil || !tasks[0].Command().IsHeredoc() {
		t.Error("expected a heredoc command")
	}

	wfs := doc.Workflows()
	if len(wfs) != 1 || wfs[0].Name() != "w" {
		t.Fatalf("workflows: got %v", wfs)
	}
	stmts := wfs[0].Statements()
	if len(stmts) != 1 || stmts[0].Kind() != StatementCall {
		t.Fatalf("statements: got %v", stmts)
	}
	if stmts[0].Call().Name() != "t" {
		t.Errorf("call name: got %q", stmts[0].Call().Name())
	}
}

func TestType_Views(t *testing.T) {
	doc := parseDoc(t, `version 1.1
workflow w {
  Array[Map[String, Int?]]+ complex = []
}`)
	decl := doc.Workflows()[0].Statements()[0].Decl()
	ty := decl.Type()
	if ty.Kind() != TypeArray || !ty.NonEmpty() || ty.Optional() {
		t.Fatalf("outer type: kind=%v nonEmpty=%v optional=%v", ty.Kind(), ty.NonEmpty(), ty.Optional())
	}
	inner := ty.TypeParams()[0]
	if inner.Kind() != TypeMap {
		t.Fatalf("inner: got %v", inner.Kind())
	}
	params := inner.TypeParams()
	if params[0].PrimitiveKeyword() != syntax.KindStringTypeKeyword {
		t.Errorf("key: got %v", params[0].PrimitiveKeyword())
	}
	if !params[1].Optional() {
		t.Error("value should be optional")
	}
}

func TestExpr_Accessors(t *testing.T) {
	doc := parseDoc(t, `version 1.1
workflow w {
  Int a = if true then 1 else 2
  Pair[Int, String] p = (3, "s")
  Int b = f(1, 2)[0].member
}`)
	stmts := doc.Workflows()[0].Statements()

	ifExpr := stmts[0].Decl().Expr()
	if ifExpr.Kind() != syntax.KindIfExprNode {
		t.Fatalf("expected if expr, got %v", ifExpr.Kind())
	}
	cond, thenE, elseE := ifExpr.IfBranches()
	if cond == nil || thenE == nil || elseE == nil {
		t.Fatal("missing if branches")
	}
	if v, ok := thenE.IntValue(); !ok || v != 1 {
		t.Errorf("then: got %d %v", v, ok)
	}

	pair := stmts[1].Decl().Expr()
	left, right := pair.PairValues()
	if v, _ := left.IntValue(); v != 3 {
		t.Errorf("pair left: got %d", v)
	}
	if text, ok := right.ConstantText(); !ok || text != "s" {
		t.Errorf("pair right: got %q %v", text, ok)
	}

	access := stmts[2].Decl().Expr()
	if access.Kind() != syntax.KindAccessExprNode {
		t.Fatalf("expected access, got %v", access.Kind())
	}
	target, member := access.AccessParts()
	if member.Text() != "member" {
		t.Errorf("member: got %q", member.Text())
	}
	if target.Kind() != syntax.KindIndexExprNode {
		t.Errorf("target: got %v", target.Kind())
	}
	idxTarget, _ := target.IndexParts()
	if idxTarget.Kind() != syntax.KindCallExprNode || idxTarget.CallTarget() != "f" {
		t.Errorf("call target: got %v %q", idxTarget.Kind(), idxTarget.CallTarget())
	}
}

func TestUnescape(t *testing.T) {
	cases := []struct{ in, want string }{
		{`plain`, "plain"},
		{`a\nb`, "a\nb"},
		{`a\tb`, "a\tb"},
		{`quote\"`, `quote"`},
		{`back\\slash`, `back\slash`},
		{`tilde\~{`, "tilde~{"},
		{`unknown\q`, `unknown\q`},
	}
	for _, tc := range cases {
		if got := Unescape(tc.in); got != tc.want {
			t.Errorf("unescape %q: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVisitNameRefs(t *testing.T) {
	doc := parseDoc(t, `version 1.1
workflow w {
  Int z = f(a) + b.member + "text ~{c}" + [d][0]
}`)
	expr := doc.Workflows()[0].Statements()[0].Decl().Expr()
	var names []string
	VisitNameRefs(expr, func(name string, _ *syntax.Token) {
		names = append(names, name)
	})
	want := []string{"a", "b", "c", "d"}
	if len(names) != len(want) {
		t.Fatalf("names: got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d]: got %q, want %q", i, names[i], want[i])
		}
	}
}
