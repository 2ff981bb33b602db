// Package engine evaluates analyzed WDL documents: it parses input files,
// schedules task and workflow graphs, evaluates expressions to runtime
// values, and hands task commands to an execution backend.
package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/antigravity-dev/wdlkit/internal/types"
)

// ValueKind discriminates runtime values.
type ValueKind int

const (
	// KindNone is the absent optional value.
	KindNone ValueKind = iota
	// KindBoolean holds a bool.
	KindBoolean
	// KindInt holds an int64.
	KindInt
	// KindFloat holds a float64.
	KindFloat
	// KindString holds a string.
	KindString
	// KindFile holds a file path.
	KindFile
	// KindDirectory holds a directory path.
	KindDirectory
	// KindPair holds two values.
	KindPair
	// KindArray holds an ordered list.
	KindArray
	// KindMap holds ordered key/value entries.
	KindMap
	// KindObject holds ordered, dynamically-typed members.
	KindObject
	// KindStruct holds ordered members of a named struct type.
	KindStruct
	// KindCall holds a completed call's outputs.
	KindCall
	// KindTask holds the reflective task variable.
	KindTask
)

// Value is a runtime WDL value. Compound payloads are pointers and shared;
// the engine never mutates a compound payload after publishing it to a
// scope.
type Value struct {
	kind    ValueKind
	boolean bool
	integer int64
	float   float64
	str     string
	pair    *PairValue
	array   *ArrayValue
	mapping *MapValue
	object  *ObjectValue
	call    *CallValue
	task    *TaskValue
}

// PairValue is the payload of a pair.
type PairValue struct {
	Left  Value
	Right Value
}

// ArrayValue is the payload of an array.
type ArrayValue struct {
	Elems []Value
}

// MapEntry is one ordered map entry.
type MapEntry struct {
	Key   Value
	Value Value
}

// MapValue is the payload of a map. Entry order is insertion order.
type MapValue struct {
	Entries []MapEntry
}

// Get returns the value for a key.
func (m *MapValue) Get(key Value) (Value, bool) {
	for _, e := range m.Entries {
		if e.Key.SameKey(key) {
			return e.Value, true
		}
	}
	return NoneValue(), false
}

// ObjectMember is one ordered member of an object or struct.
type ObjectMember struct {
	Name  string
	Value Value
}

// ObjectValue is the payload of an object or struct. For structs, TypeName
// names the struct.
type ObjectValue struct {
	TypeName string
	Members  []ObjectMember
}

// Get returns the named member.
func (o *ObjectValue) Get(name string) (Value, bool) {
	for _, m := range o.Members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return NoneValue(), false
}

// set replaces or appends a member, preserving order.
func (o *ObjectValue) set(name string, v Value) {
	for i, m := range o.Members {
		if m.Name == name {
			o.Members[i].Value = v
			return
		}
	}
	o.Members = append(o.Members, ObjectMember{Name: name, Value: v})
}

// CallValue is the payload of a completed call: its outputs in declaration
// order.
type CallValue struct {
	Target  string
	Outputs []ObjectMember
}

// Output returns the named output.
func (c *CallValue) Output(name string) (Value, bool) {
	for _, m := range c.Outputs {
		if m.Name == name {
			return m.Value, true
		}
	}
	return NoneValue(), false
}

// TaskValue is the payload of the reflective `task` variable.
type TaskValue struct {
	Name       string
	ID         string
	Attempt    int64
	Container  string
	CPU        int64
	Memory     int64
	ReturnCode *int64
}

// Member resolves a task-variable member.
func (t *TaskValue) Member(name string) (Value, bool) {
	switch name {
	case "name":
		return StringValue(t.Name), true
	case "id":
		return StringValue(t.ID), true
	case "attempt":
		return IntValue(t.Attempt), true
	case "container":
		return StringValue(t.Container), true
	case "cpu":
		return IntValue(t.CPU), true
	case "memory":
		return IntValue(t.Memory), true
	case "return_code":
		if t.ReturnCode == nil {
			return NoneValue(), true
		}
		return IntValue(*t.ReturnCode), true
	}
	return NoneValue(), false
}

// NoneValue returns the absent value.
func NoneValue() Value { return Value{kind: KindNone} }

// BooleanValue wraps a bool.
func BooleanValue(v bool) Value { return Value{kind: KindBoolean, boolean: v} }

// IntValue wraps an int64.
func IntValue(v int64) Value { return Value{kind: KindInt, integer: v} }

// FloatValue wraps a float64.
func FloatValue(v float64) Value { return Value{kind: KindFloat, float: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{kind: KindString, str: v} }

// FileValue wraps a file path.
func FileValue(path string) Value { return Value{kind: KindFile, str: path} }

// DirectoryValue wraps a directory path.
func DirectoryValue(path string) Value { return Value{kind: KindDirectory, str: path} }

// PairOf builds a pair value.
func PairOf(left, right Value) Value {
	return Value{kind: KindPair, pair: &PairValue{Left: left, Right: right}}
}

// ArrayOf builds an array value.
func ArrayOf(elems ...Value) Value {
	return Value{kind: KindArray, array: &ArrayValue{Elems: elems}}
}

// MapOf builds a map value from ordered entries.
func MapOf(entries []MapEntry) Value {
	return Value{kind: KindMap, mapping: &MapValue{Entries: entries}}
}

// ObjectOf builds an object value from ordered members.
func ObjectOf(members []ObjectMember) Value {
	return Value{kind: KindObject, object: &ObjectValue{Members: members}}
}

// StructOf builds a struct value.
func StructOf(typeName string, members []ObjectMember) Value {
	return Value{kind: KindStruct, object: &ObjectValue{TypeName: typeName, Members: members}}
}

// CallOf builds a call value.
func CallOf(target string, outputs []ObjectMember) Value {
	return Value{kind: KindCall, call: &CallValue{Target: target, Outputs: outputs}}
}

// TaskVar wraps a task variable payload.
func TaskVar(t *TaskValue) Value { return Value{kind: KindTask, task: t} }

// Kind returns the value's kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsNone reports whether the value is absent.
func (v Value) IsNone() bool { return v.kind == KindNone }

// AsBoolean returns the bool payload.
func (v Value) AsBoolean() bool { return v.boolean }

// AsInt returns the int payload.
func (v Value) AsInt() int64 { return v.integer }

// AsFloat returns the float payload, widening ints.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.integer)
	}
	return v.float
}

// AsString returns the string payload of strings, files, and directories.
func (v Value) AsString() string { return v.str }

// Pair returns the pair payload.
func (v Value) Pair() *PairValue { return v.pair }

// Array returns the array payload.
func (v Value) Array() *ArrayValue { return v.array }

// Map returns the map payload.
func (v Value) Map() *MapValue { return v.mapping }

// Object returns the object or struct payload.
func (v Value) Object() *ObjectValue { return v.object }

// Call returns the call payload.
func (v Value) Call() *CallValue { return v.call }

// Task returns the task-variable payload.
func (v Value) Task() *TaskValue { return v.task }

// SameKey reports primitive equality for use as a map key.
func (v Value) SameKey(other Value) bool {
	if v.kind != other.kind {
		// Int/Float keys compare numerically.
		if (v.kind == KindInt || v.kind == KindFloat) && (other.kind == KindInt || other.kind == KindFloat) {
			return v.AsFloat() == other.AsFloat()
		}
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindBoolean:
		return v.boolean == other.boolean
	case KindInt:
		return v.integer == other.integer
	case KindFloat:
		return v.float == other.float
	case KindString, KindFile, KindDirectory:
		return v.str == other.str
	}
	return false
}

// Equal reports deep value equality.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		if (v.kind == KindInt || v.kind == KindFloat) && (other.kind == KindInt || other.kind == KindFloat) {
			return v.AsFloat() == other.AsFloat()
		}
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindBoolean, KindInt, KindFloat, KindString, KindFile, KindDirectory:
		return v.SameKey(other)
	case KindPair:
		return v.pair.Left.Equal(other.pair.Left) && v.pair.Right.Equal(other.pair.Right)
	case KindArray:
		if len(v.array.Elems) != len(other.array.Elems) {
			return false
		}
		for i := range v.array.Elems {
			if !v.array.Elems[i].Equal(other.array.Elems[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.mapping.Entries) != len(other.mapping.Entries) {
			return false
		}
		for _, e := range v.mapping.Entries {
			o, ok := other.mapping.Get(e.Key)
			if !ok || !e.Value.Equal(o) {
				return false
			}
		}
		return true
	case KindObject, KindStruct:
		if len(v.object.Members) != len(other.object.Members) {
			return false
		}
		for _, m := range v.object.Members {
			o, ok := other.object.Get(m.Name)
			if !ok || !m.Value.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for display and placeholder interpolation of
// primitives. Floats print with six decimal places, matching WDL's
// stringification.
func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return ""
	case KindBoolean:
		return strconv.FormatBool(v.boolean)
	case KindInt:
		return strconv.FormatInt(v.integer, 10)
	case KindFloat:
		return strconv.FormatFloat(v.float, 'f', 6, 64)
	case KindString, KindFile, KindDirectory:
		return v.str
	case KindPair:
		return fmt.Sprintf("(%s, %s)", v.pair.Left, v.pair.Right)
	case KindArray:
		parts := make([]string, len(v.array.Elems))
		for i, e := range v.array.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap, KindObject, KindStruct:
		return "{...}"
	case KindCall:
		return fmt.Sprintf("call %s", v.call.Target)
	case KindTask:
		return fmt.Sprintf("task %s", v.task.Name)
	}
	return ""
}

// TypeOf computes the value's type in the given arena.
func (v Value) TypeOf(arena *types.Arena) types.Type {
	switch v.kind {
	case KindNone:
		return types.None()
	case KindBoolean:
		return types.Primitive(types.Boolean)
	case KindInt:
		return types.Primitive(types.Int)
	case KindFloat:
		return types.Primitive(types.Float)
	case KindString:
		return types.Primitive(types.String)
	case KindFile:
		return types.Primitive(types.File)
	case KindDirectory:
		return types.Primitive(types.Directory)
	case KindPair:
		return arena.Pair(v.pair.Left.TypeOf(arena), v.pair.Right.TypeOf(arena))
	case KindArray:
		elem := types.Union()
		for _, e := range v.array.Elems {
			t := e.TypeOf(arena)
			if joined, ok := arena.CommonType(elem, t); ok {
				elem = joined
			}
		}
		return arena.Array(elem)
	case KindMap:
		key, value := types.Union(), types.Union()
		for _, e := range v.mapping.Entries {
			if joined, ok := arena.CommonType(key, e.Key.TypeOf(arena)); ok {
				key = joined
			}
			if joined, ok := arena.CommonType(value, e.Value.TypeOf(arena)); ok {
				value = joined
			}
		}
		return arena.Map(key, value)
	case KindObject, KindStruct:
		return types.Object()
	default:
		return types.Union()
	}
}

// Coerce converts the value to the target type, mirroring the static
// coercion table. Failures are runtime errors.
func (v Value) Coerce(arena *types.Arena, target types.Type) (Value, error) {
	if target.IsUnion() {
		return v, nil
	}
	if v.kind == KindNone {
		if target.Optional() {
			return v, nil
		}
		return v, fmt.Errorf("cannot coerce None to required type %s", arena.Display(target))
	}

	switch target.Kind() {
	case types.KindPrimitive:
		return v.coercePrimitive(arena, target)
	case types.KindObject:
		switch v.kind {
		case KindObject, KindStruct:
			return Value{kind: KindObject, object: v.object}, nil
		case KindMap:
			members := make([]ObjectMember, 0, len(v.mapping.Entries))
			for _, e := range v.mapping.Entries {
				if e.Key.kind != KindString {
					return v, fmt.Errorf("cannot coerce a map with non-String keys to Object")
				}
				members = append(members, ObjectMember{Name: e.Key.str, Value: e.Value})
			}
			return ObjectOf(members), nil
		}
		return v, fmt.Errorf("cannot coerce %s to Object", v.describe())
	case types.KindCompound:
		return v.coerceCompound(arena, target)
	}
	return v, nil
}

func (v Value) coercePrimitive(arena *types.Arena, target types.Type) (Value, error) {
	switch target.PrimitiveKind() {
	case types.Boolean:
		if v.kind == KindBoolean {
			return v, nil
		}
	case types.Int:
		if v.kind == KindInt {
			return v, nil
		}
	case types.Float:
		switch v.kind {
		case KindFloat:
			return v, nil
		case KindInt:
			return FloatValue(float64(v.integer)), nil
		}
	case types.String:
		switch v.kind {
		case KindString:
			return v, nil
		case KindFile, KindDirectory:
			return StringValue(v.str), nil
		}
	case types.File:
		switch v.kind {
		case KindFile:
			return v, nil
		case KindString:
			return FileValue(v.str), nil
		}
	case types.Directory:
		switch v.kind {
		case KindDirectory:
			return v, nil
		case KindString:
			return DirectoryValue(v.str), nil
		}
	}
	return v, fmt.Errorf("cannot coerce %s to %s", v.describe(), arena.Display(target))
}

func (v Value) coerceCompound(arena *types.Arena, target types.Type) (Value, error) {
	def := arena.Def(target.ID())
	switch {
	case def.Array != nil:
		if v.kind != KindArray {
			return v, fmt.Errorf("cannot coerce %s to %s", v.describe(), arena.Display(target))
		}
		if def.Array.NonEmpty && len(v.array.Elems) == 0 {
			return v, fmt.Errorf("cannot coerce an empty array to non-empty %s", arena.Display(target))
		}
		elems := make([]Value, len(v.array.Elems))
		for i, e := range v.array.Elems {
			coerced, err := e.Coerce(arena, def.Array.Elem)
			if err != nil {
				return v, fmt.Errorf("array element %d: %w", i, err)
			}
			elems[i] = coerced
		}
		return ArrayOf(elems...), nil

	case def.Pair != nil:
		if v.kind != KindPair {
			return v, fmt.Errorf("cannot coerce %s to %s", v.describe(), arena.Display(target))
		}
		left, err := v.pair.Left.Coerce(arena, def.Pair.Left)
		if err != nil {
			return v, fmt.Errorf("pair left: %w", err)
		}
		right, err := v.pair.Right.Coerce(arena, def.Pair.Right)
		if err != nil {
			return v, fmt.Errorf("pair right: %w", err)
		}
		return PairOf(left, right), nil

	case def.Map != nil:
		switch v.kind {
		case KindMap:
			entries := make([]MapEntry, len(v.mapping.Entries))
			for i, e := range v.mapping.Entries {
				key, err := e.Key.Coerce(arena, def.Map.Key)
				if err != nil {
					return v, fmt.Errorf("map key: %w", err)
				}
				value, err := e.Value.Coerce(arena, def.Map.Value)
				if err != nil {
					return v, fmt.Errorf("map value for key %s: %w", key, err)
				}
				entries[i] = MapEntry{Key: key, Value: value}
			}
			return MapOf(entries), nil
		case KindStruct, KindObject:
			entries := make([]MapEntry, 0, len(v.object.Members))
			for _, m := range v.object.Members {
				key, err := StringValue(m.Name).Coerce(arena, def.Map.Key)
				if err != nil {
					return v, fmt.Errorf("map key: %w", err)
				}
				value, err := m.Value.Coerce(arena, def.Map.Value)
				if err != nil {
					return v, fmt.Errorf("member %q: %w", m.Name, err)
				}
				entries = append(entries, MapEntry{Key: key, Value: value})
			}
			return MapOf(entries), nil
		}
		return v, fmt.Errorf("cannot coerce %s to %s", v.describe(), arena.Display(target))

	case def.Struct != nil:
		var members []ObjectMember
		switch v.kind {
		case KindStruct, KindObject:
			members = v.object.Members
		case KindMap:
			members = make([]ObjectMember, 0, len(v.mapping.Entries))
			for _, e := range v.mapping.Entries {
				if e.Key.kind != KindString {
					return v, fmt.Errorf("cannot coerce a map with non-String keys to %s", def.Struct.Name)
				}
				members = append(members, ObjectMember{Name: e.Key.str, Value: e.Value})
			}
		default:
			return v, fmt.Errorf("cannot coerce %s to %s", v.describe(), arena.Display(target))
		}

		out := make([]ObjectMember, 0, len(def.Struct.Members))
		byName := make(map[string]Value, len(members))
		for _, m := range members {
			byName[m.Name] = m.Value
		}
		for _, m := range def.Struct.Members {
			value, ok := byName[m.Name]
			if !ok {
				if !m.Type.Optional() {
					return v, fmt.Errorf("missing member %q coercing to %s", m.Name, def.Struct.Name)
				}
				value = NoneValue()
			}
			coerced, err := value.Coerce(arena, m.Type)
			if err != nil {
				return v, fmt.Errorf("member %q: %w", m.Name, err)
			}
			out = append(out, ObjectMember{Name: m.Name, Value: coerced})
		}
		return StructOf(def.Struct.Name, out), nil
	}
	return v, fmt.Errorf("cannot coerce %s to %s", v.describe(), arena.Display(target))
}

func (v Value) describe() string {
	switch v.kind {
	case KindNone:
		return "None"
	case KindBoolean:
		return "Boolean"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindFile:
		return "File"
	case KindDirectory:
		return "Directory"
	case KindPair:
		return "Pair"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindObject:
		return "Object"
	case KindStruct:
		return "a struct"
	case KindCall:
		return "a call"
	case KindTask:
		return "the task variable"
	}
	return "a value"
}

// FromJSON converts a decoded JSON value to a runtime value coercible to
// the target type.
func FromJSON(arena *types.Arena, raw any, target types.Type) (Value, error) {
	v, err := fromJSON(raw)
	if err != nil {
		return v, err
	}
	return v.Coerce(arena, target)
}

func fromJSON(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return NoneValue(), nil
	case bool:
		return BooleanValue(x), nil
	case int:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return IntValue(int64(x)), nil
		}
		return FloatValue(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return NoneValue(), fmt.Errorf("invalid number %q", x.String())
		}
		return FloatValue(f), nil
	case string:
		return StringValue(x), nil
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			v, err := fromJSON(e)
			if err != nil {
				return NoneValue(), err
			}
			elems[i] = v
		}
		return ArrayOf(elems...), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]ObjectMember, 0, len(keys))
		for _, k := range keys {
			v, err := fromJSON(x[k])
			if err != nil {
				return NoneValue(), err
			}
			members = append(members, ObjectMember{Name: k, Value: v})
		}
		return ObjectOf(members), nil
	}
	return NoneValue(), fmt.Errorf("unsupported JSON value of type %T", raw)
}

// ToJSON converts a runtime value to a JSON-encodable Go value.
func (v Value) ToJSON() any {
	switch v.kind {
	case KindNone:
		return nil
	case KindBoolean:
		return v.boolean
	case KindInt:
		return v.integer
	case KindFloat:
		return v.float
	case KindString, KindFile, KindDirectory:
		return v.str
	case KindPair:
		return map[string]any{"left": v.pair.Left.ToJSON(), "right": v.pair.Right.ToJSON()}
	case KindArray:
		out := make([]any, len(v.array.Elems))
		for i, e := range v.array.Elems {
			out[i] = e.ToJSON()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.mapping.Entries))
		for _, e := range v.mapping.Entries {
			out[e.Key.String()] = e.Value.ToJSON()
		}
		return out
	case KindObject, KindStruct:
		out := make(map[string]any, len(v.object.Members))
		for _, m := range v.object.Members {
			out[m.Name] = m.Value.ToJSON()
		}
		return out
	case KindCall:
		out := make(map[string]any, len(v.call.Outputs))
		for _, m := range v.call.Outputs {
			out[m.Name] = m.Value.ToJSON()
		}
		return out
	}
	return nil
}

// VisitPaths calls fn for every File and Directory payload in the value,
// recursively. The size function uses it to sum the sizes of every path in
// its argument.
func (v Value) VisitPaths(fn func(path string, dir bool)) {
	switch v.kind {
	case KindFile:
		fn(v.str, false)
	case KindDirectory:
		fn(v.str, true)
	case KindPair:
		v.pair.Left.VisitPaths(fn)
		v.pair.Right.VisitPaths(fn)
	case KindArray:
		for _, e := range v.array.Elems {
			e.VisitPaths(fn)
		}
	case KindMap:
		for _, e := range v.mapping.Entries {
			e.Key.VisitPaths(fn)
			e.Value.VisitPaths(fn)
		}
	case KindObject, KindStruct:
		for _, m := range v.object.Members {
			m.Value.VisitPaths(fn)
		}
	case KindCall:
		for _, m := range v.call.Outputs {
			m.Value.VisitPaths(fn)
		}
	}
}

// JoinPaths rewrites every relative File and Directory payload by joining
// it onto base. Absolute paths are untouched.
func (v Value) JoinPaths(base string) Value {
	switch v.kind {
	case KindFile, KindDirectory:
		if v.str != "" && !filepath.IsAbs(v.str) {
			joined := v
			joined.str = filepath.Join(base, v.str)
			return joined
		}
		return v
	case KindPair:
		return PairOf(v.pair.Left.JoinPaths(base), v.pair.Right.JoinPaths(base))
	case KindArray:
		elems := make([]Value, len(v.array.Elems))
		for i, e := range v.array.Elems {
			elems[i] = e.JoinPaths(base)
		}
		return ArrayOf(elems...)
	case KindMap:
		entries := make([]MapEntry, len(v.mapping.Entries))
		for i, e := range v.mapping.Entries {
			entries[i] = MapEntry{Key: e.Key.JoinPaths(base), Value: e.Value.JoinPaths(base)}
		}
		return MapOf(entries)
	case KindObject, KindStruct:
		members := make([]ObjectMember, len(v.object.Members))
		for i, m := range v.object.Members {
			members[i] = ObjectMember{Name: m.Name, Value: m.Value.JoinPaths(base)}
		}
		if v.kind == KindStruct {
			return StructOf(v.object.TypeName, members)
		}
		return ObjectOf(members)
	}
	return v
}
