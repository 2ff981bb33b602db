package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func testContext(t *testing.T) *evalContext {
	t.Helper()
	return &evalContext{workDir: t.TempDir()}
}

func TestStdlib_ReadObject(t *testing.T) {
	c := testContext(t)
	path := filepath.Join(c.workDir, "object.tsv")
	if err := os.WriteFile(path, []byte("id\tname\n1\talice\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := stdlibImpl["read_object"](c, []Value{FileValue(path)})
	if err != nil {
		t.Fatalf("read_object: %v", err)
	}
	if v.Kind() != KindObject {
		t.Fatalf("kind: got %v", v.Kind())
	}
	members := v.Object().Members
	if len(members) != 2 || members[0].Name != "id" || members[1].Name != "name" {
		t.Fatalf("members: %v", members)
	}
	name, _ := v.Object().Get("name")
	if name.AsString() != "alice" {
		t.Errorf("name: got %q", name.AsString())
	}
}

func TestStdlib_ReadObjectRejectsBadShapes(t *testing.T) {
	c := testContext(t)

	cases := []struct {
		label   string
		content string
	}{
		{"no rows", "id\tname\n"},
		{"two rows", "id\n1\n2\n"},
		{"ragged row", "id\tname\n1\n"},
		{"duplicate member", "id\tid\n1\t2\n"},
		{"empty member name", "id\t\n1\t2\n"},
	}
	for _, tc := range cases {
		path := filepath.Join(c.workDir, tc.label+".tsv")
		if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := stdlibImpl["read_object"](c, []Value{FileValue(path)}); err == nil {
			t.Errorf("%s: expected an error", tc.label)
		}
	}
}

func TestStdlib_ReadObjects(t *testing.T) {
	c := testContext(t)
	path := filepath.Join(c.workDir, "objects.tsv")
	if err := os.WriteFile(path, []byte("id\tname\n1\talice\n2\tbob\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := stdlibImpl["read_objects"](c, []Value{FileValue(path)})
	if err != nil {
		t.Fatalf("read_objects: %v", err)
	}
	elems := v.Array().Elems
	if len(elems) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(elems))
	}
	second, _ := elems[1].Object().Get("name")
	if second.AsString() != "bob" {
		t.Errorf("second name: got %q", second.AsString())
	}
}

func TestStdlib_WriteObjectRoundTrips(t *testing.T) {
	c := testContext(t)
	obj := ObjectOf([]ObjectMember{
		{Name: "id", Value: IntValue(7)},
		{Name: "ok", Value: BooleanValue(true)},
	})

	written, err := stdlibImpl["write_object"](c, []Value{obj})
	if err != nil {
		t.Fatalf("write_object: %v", err)
	}
	data, err := os.ReadFile(written.AsString())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "id\tok\n7\ttrue\n" {
		t.Fatalf("content: got %q", string(data))
	}

	back, err := stdlibImpl["read_object"](c, []Value{written})
	if err != nil {
		t.Fatalf("read_object: %v", err)
	}
	id, _ := back.Object().Get("id")
	if id.AsString() != "7" {
		t.Errorf("id: got %q", id.AsString())
	}
}

func TestStdlib_WriteObjects(t *testing.T) {
	c := testContext(t)
	objects := ArrayOf(
		ObjectOf([]ObjectMember{{Name: "k", Value: StringValue("a")}}),
		ObjectOf([]ObjectMember{{Name: "k", Value: StringValue("b")}}),
	)

	written, err := stdlibImpl["write_objects"](c, []Value{objects})
	if err != nil {
		t.Fatalf("write_objects: %v", err)
	}
	data, err := os.ReadFile(written.AsString())
	if err != nil {
		t.Fatal(err)
	}
	// One header line, then one row per object.
	if string(data) != "k\na\nb\n" {
		t.Fatalf("content: got %q", string(data))
	}
}

func TestStdlib_WriteObjectsRejectsMixedShapes(t *testing.T) {
	c := testContext(t)
	mixed := ArrayOf(
		ObjectOf([]ObjectMember{{Name: "a", Value: IntValue(1)}}),
		ObjectOf([]ObjectMember{{Name: "b", Value: IntValue(2)}}),
	)
	if _, err := stdlibImpl["write_objects"](c, []Value{mixed}); err == nil {
		t.Error("differing member sets must be rejected")
	}

	compound := ObjectOf([]ObjectMember{{Name: "xs", Value: ArrayOf(IntValue(1))}})
	if _, err := stdlibImpl["write_object"](c, []Value{compound}); err == nil {
		t.Error("compound members must be rejected")
	}
}
