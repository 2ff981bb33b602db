package engine

import (
	"testing"

	"github.com/antigravity-dev/wdlkit/internal/types"
)

func TestValue_CoercePrimitives(t *testing.T) {
	a := types.NewArena()

	v, err := IntValue(3).Coerce(a, types.Primitive(types.Float))
	if err != nil {
		t.Fatalf("int to float: %v", err)
	}
	if v.Kind() != KindFloat || v.AsFloat() != 3 {
		t.Errorf("got %v", v)
	}

	v, err = StringValue("out.txt").Coerce(a, types.Primitive(types.File))
	if err != nil {
		t.Fatalf("string to file: %v", err)
	}
	if v.Kind() != KindFile {
		t.Errorf("got %v", v.Kind())
	}

	if _, err = FloatValue(1.5).Coerce(a, types.Primitive(types.Int)); err == nil {
		t.Error("float to int must fail")
	}
	if _, err = NoneValue().Coerce(a, types.Primitive(types.Int)); err == nil {
		t.Error("None to required Int must fail")
	}
	if _, err = NoneValue().Coerce(a, types.Primitive(types.Int).AsOptional()); err != nil {
		t.Errorf("None to Int? must succeed: %v", err)
	}
}

func TestValue_CoerceCompound(t *testing.T) {
	a := types.NewArena()
	floats := a.Array(types.Primitive(types.Float))

	v, err := ArrayOf(IntValue(1), IntValue(2)).Coerce(a, floats)
	if err != nil {
		t.Fatalf("array coerce: %v", err)
	}
	if v.Array().Elems[0].Kind() != KindFloat {
		t.Error("elements were not widened")
	}

	nonEmpty := a.NonEmptyArray(types.Primitive(types.Int))
	if _, err := ArrayOf().Coerce(a, nonEmpty); err == nil {
		t.Error("empty array to non-empty type must fail")
	}
}

func TestValue_CoerceStructAndMap(t *testing.T) {
	a := types.NewArena()
	point := a.Struct("Point", []types.Member{
		{Name: "x", Type: types.Primitive(types.Int)},
		{Name: "y", Type: types.Primitive(types.Int)},
	})

	m := MapOf([]MapEntry{
		{Key: StringValue("x"), Value: IntValue(1)},
		{Key: StringValue("y"), Value: IntValue(2)},
	})
	v, err := m.Coerce(a, point)
	if err != nil {
		t.Fatalf("map to struct: %v", err)
	}
	if v.Kind() != KindStruct || v.Object().TypeName != "Point" {
		t.Fatalf("got %v", v)
	}
	x, _ := v.Object().Get("x")
	if x.AsInt() != 1 {
		t.Errorf("x: got %v", x)
	}

	// Members keep the struct's declared order regardless of source order.
	if v.Object().Members[0].Name != "x" || v.Object().Members[1].Name != "y" {
		t.Errorf("member order: %v", v.Object().Members)
	}

	back, err := v.Coerce(a, a.Map(types.Primitive(types.String), types.Primitive(types.Int)))
	if err != nil {
		t.Fatalf("struct to map: %v", err)
	}
	if len(back.Map().Entries) != 2 {
		t.Errorf("entries: %v", back.Map().Entries)
	}

	missing := MapOf([]MapEntry{{Key: StringValue("x"), Value: IntValue(1)}})
	if _, err := missing.Coerce(a, point); err == nil {
		t.Error("missing required member must fail")
	}
}

func TestValue_Equal(t *testing.T) {
	if !IntValue(1).Equal(FloatValue(1)) {
		t.Error("1 == 1.0 numerically")
	}
	if IntValue(1).Equal(StringValue("1")) {
		t.Error("Int and String are not comparable as equal")
	}
	left := ArrayOf(IntValue(1), IntValue(2))
	right := ArrayOf(IntValue(1), IntValue(2))
	if !left.Equal(right) {
		t.Error("equal arrays")
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	a := types.NewArena()
	target := a.Map(types.Primitive(types.String), types.Primitive(types.Int))
	v, err := FromJSON(a, map[string]any{"one": 1, "two": 2}, target)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if v.Kind() != KindMap || len(v.Map().Entries) != 2 {
		t.Fatalf("got %v", v)
	}
	out := v.ToJSON().(map[string]any)
	if out["one"].(int64) != 1 {
		t.Errorf("round trip: %v", out)
	}
}

func TestValue_JoinPaths(t *testing.T) {
	v := ArrayOf(FileValue("rel.txt"), FileValue("/abs.txt"))
	joined := v.JoinPaths("/base")
	elems := joined.Array().Elems
	if elems[0].AsString() != "/base/rel.txt" {
		t.Errorf("relative: got %q", elems[0].AsString())
	}
	if elems[1].AsString() != "/abs.txt" {
		t.Errorf("absolute must not change: got %q", elems[1].AsString())
	}
}

func TestValue_VisitPaths(t *testing.T) {
	v := ObjectOf([]ObjectMember{
		{Name: "f", Value: FileValue("/a")},
		{Name: "nested", Value: ArrayOf(DirectoryValue("/b"))},
		{Name: "n", Value: IntValue(1)},
	})
	var paths []string
	v.VisitPaths(func(path string, dir bool) {
		paths = append(paths, path)
	})
	if len(paths) != 2 || paths[0] != "/a" || paths[1] != "/b" {
		t.Errorf("paths: %v", paths)
	}
}

func TestValue_String(t *testing.T) {
	if got := FloatValue(1.5).String(); got != "1.500000" {
		t.Errorf("float: got %q", got)
	}
	if got := BooleanValue(true).String(); got != "true" {
		t.Errorf("bool: got %q", got)
	}
	if got := ArrayOf(IntValue(1), IntValue(2)).String(); got != "[1, 2]" {
		t.Errorf("array: got %q", got)
	}
}

func TestFromJSON_CoercesToDeclaredTypes(t *testing.T) {
	a := types.NewArena()
	point := a.Struct("Point", []types.Member{
		{Name: "x", Type: types.Primitive(types.Float)},
	})
	v, err := FromJSON(a, map[string]any{"x": 2}, point)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	x, _ := v.Object().Get("x")
	if x.Kind() != KindFloat {
		t.Errorf("x: got %v", x.Kind())
	}
}
