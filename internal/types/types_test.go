package types

import "testing"

func TestCoercion_Reflexive(t *testing.T) {
	a := NewArena()
	all := []Type{
		Primitive(Boolean), Primitive(Int), Primitive(Float),
		Primitive(String), Primitive(File), Primitive(Directory),
		Primitive(Int).AsOptional(),
		Object(), Union(),
		a.Array(Primitive(Int)),
		a.NonEmptyArray(Primitive(String)),
		a.Pair(Primitive(Int), Primitive(Float)),
		a.Map(Primitive(String), Primitive(Int)),
		a.Struct("P", []Member{{Name: "x", Type: Primitive(Int)}}),
	}
	for _, ty := range all {
		if !a.Coercible(ty, ty) {
			t.Errorf("%s is not coercible to itself", a.Display(ty))
		}
	}
}

func TestCoercion_NoneOnlyToOptional(t *testing.T) {
	a := NewArena()
	cases := []Type{
		Primitive(Int), Primitive(String), Object(),
		a.Array(Primitive(Int)),
	}
	for _, ty := range cases {
		if a.Coercible(None(), ty) {
			t.Errorf("None must not coerce to required %s", a.Display(ty))
		}
		if !a.Coercible(None(), ty.AsOptional()) {
			t.Errorf("None must coerce to optional %s", a.Display(ty.AsOptional()))
		}
	}
}

func TestCoercion_UnionToEverything(t *testing.T) {
	a := NewArena()
	for _, ty := range []Type{
		Primitive(Boolean), Primitive(File).AsOptional(), Object(), None(),
		a.Map(Primitive(String), Primitive(Int)),
	} {
		if !a.Coercible(Union(), ty) {
			t.Errorf("Union must coerce to %s", a.Display(ty))
		}
	}
}

func TestCoercion_PrimitiveRules(t *testing.T) {
	a := NewArena()
	cases := []struct {
		src, tgt Type
		want     bool
	}{
		{Primitive(Int), Primitive(Float), true},
		{Primitive(Float), Primitive(Int), false},
		{Primitive(String), Primitive(File), true},
		{Primitive(String), Primitive(Directory), true},
		{Primitive(File), Primitive(String), true},
		{Primitive(File), Primitive(Directory), false},
		{Primitive(Int), Primitive(Int).AsOptional(), true},
		{Primitive(Int).AsOptional(), Primitive(Int), false},
	}
	for _, tc := range cases {
		if got := a.Coercible(tc.src, tc.tgt); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v",
				a.Display(tc.src), a.Display(tc.tgt), got, tc.want)
		}
	}
}

func TestCoercion_NonEmptyArrays(t *testing.T) {
	a := NewArena()
	plain := a.Array(Primitive(Int))
	nonEmpty := a.NonEmptyArray(Primitive(Int))
	if !a.Coercible(nonEmpty, plain) {
		t.Error("Array[Int]+ must coerce to Array[Int]")
	}
	if a.Coercible(plain, nonEmpty) {
		t.Error("Array[Int] must not coerce to Array[Int]+")
	}
}

func TestCoercion_StructMapObject(t *testing.T) {
	a := NewArena()
	s := a.Struct("S", []Member{
		{Name: "a", Type: Primitive(Int)},
		{Name: "b", Type: Primitive(Int)},
	})
	strMap := a.Map(Primitive(String), Primitive(Int))

	if !a.Coercible(s, Object()) {
		t.Error("struct must coerce to Object")
	}
	if !a.Coercible(s, strMap) {
		t.Error("struct of Ints must coerce to Map[String, Int]")
	}
	if !a.Coercible(strMap, s) {
		t.Error("Map[String, Int] must coerce to the struct")
	}
	if !a.Coercible(Object(), s) {
		t.Error("Object must coerce to a struct")
	}

	intMap := a.Map(Primitive(Int), Primitive(Int))
	if a.Coercible(intMap, s) {
		t.Error("a map with Int keys must not coerce to a struct")
	}
}

func TestEq_Structural(t *testing.T) {
	a := NewArena()
	x := a.Array(Primitive(Int))
	y := a.Array(Primitive(Int))
	if x.ID() == y.ID() {
		t.Fatal("distinct adds should mint distinct ids")
	}
	if !a.Eq(x, y) {
		t.Error("structurally identical arrays must be equal")
	}
	if a.Eq(x, a.Array(Primitive(Float))) {
		t.Error("Array[Int] must not equal Array[Float]")
	}
	if a.Eq(x, x.AsOptional()) {
		t.Error("optionality must distinguish types")
	}
}

func TestCommonType_Idempotent(t *testing.T) {
	a := NewArena()
	for _, ty := range []Type{
		Primitive(Int), Primitive(String).AsOptional(),
		a.Array(Primitive(Float)), Object(),
	} {
		got, ok := a.CommonType(ty, ty)
		if !ok || !a.Eq(got, ty) {
			t.Errorf("common_type(%s, %s): got %s", a.Display(ty), a.Display(ty), a.Display(got))
		}
	}
}

func TestCommonType_Associative(t *testing.T) {
	a := NewArena()
	x := Primitive(Int)
	y := Primitive(Float)
	z := None()

	xy, ok1 := a.CommonType(x, y)
	left, ok2 := a.CommonType(xy, z)
	yz, ok3 := a.CommonType(y, z)
	right, ok4 := a.CommonType(x, yz)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		t.Fatal("all joins should be defined")
	}
	if !a.Eq(left, right) {
		t.Errorf("associativity violated: %s vs %s", a.Display(left), a.Display(right))
	}
	if !a.Eq(left, Primitive(Float).AsOptional()) {
		t.Errorf("expected Float?, got %s", a.Display(left))
	}
}

func TestCommonType_IntAndNone(t *testing.T) {
	a := NewArena()
	got, ok := a.CommonType(Primitive(Int), None())
	if !ok || !a.Eq(got, Primitive(Int).AsOptional()) {
		t.Errorf("expected Int?, got %s", a.Display(got))
	}
}

func TestCommonType_ArrayElementJoin(t *testing.T) {
	a := NewArena()
	ints := a.Array(Primitive(Int))
	floats := a.Array(Primitive(Float))
	got, ok := a.CommonType(ints, floats)
	if !ok {
		t.Fatal("expected a common type")
	}
	want := a.Array(Primitive(Float))
	if !a.Eq(got, want) {
		t.Errorf("expected Array[Float], got %s", a.Display(got))
	}
}

func TestImport_DeepCopiesAcrossArenas(t *testing.T) {
	src := NewArena()
	inner := src.Struct("S", []Member{{Name: "xs", Type: src.Array(Primitive(Int))}})

	dst := NewArena()
	imported := dst.Import(src, inner.AsOptional())
	if !imported.Optional() {
		t.Error("optionality must survive the import")
	}
	def := dst.Def(imported.ID())
	if def.Struct == nil || def.Struct.Name != "S" {
		t.Fatalf("imported definition is wrong: %+v", def)
	}
	member, ok := def.Struct.Member("xs")
	if !ok {
		t.Fatal("missing member xs")
	}
	elemDef := dst.Def(member.Type.ID())
	if elemDef.Array == nil || elemDef.Array.Elem.PrimitiveKind() != Int {
		t.Error("nested array definition was not copied")
	}
}

func TestDisplay(t *testing.T) {
	a := NewArena()
	cases := []struct {
		ty   Type
		want string
	}{
		{Primitive(Int), "Int"},
		{Primitive(String).AsOptional(), "String?"},
		{a.NonEmptyArray(Primitive(File)), "Array[File]+"},
		{a.Map(Primitive(String), Primitive(Int).AsOptional()), "Map[String, Int?]"},
		{None(), "None"},
		{Union(), "Union"},
	}
	for _, tc := range cases {
		if got := a.Display(tc.ty); got != tc.want {
			t.Errorf("display: got %q, want %q", got, tc.want)
		}
	}
}
