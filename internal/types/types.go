// Package types implements the WDL type system: primitive and compound
// types, the hidden analysis types, coercion, structural equality, and
// common-type computation. Compound definitions live in a per-document
// arena addressed by 32-bit ids; a Type value is only meaningful together
// with the arena it was created in.
package types

import (
	"fmt"
	"strings"
)

// PrimitiveKind enumerates the primitive WDL types.
type PrimitiveKind int

const (
	// Boolean is the WDL Boolean type.
	Boolean PrimitiveKind = iota
	// Int is the WDL Int type.
	Int
	// Float is the WDL Float type.
	Float
	// String is the WDL String type.
	String
	// File is the WDL File type.
	File
	// Directory is the WDL Directory type.
	Directory
)

func (k PrimitiveKind) String() string {
	switch k {
	case Boolean:
		return "Boolean"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case String:
		return "String"
	case File:
		return "File"
	case Directory:
		return "Directory"
	default:
		return "Primitive(?)"
	}
}

// Kind discriminates the Type sum.
type Kind int

const (
	// KindPrimitive is a primitive type, optionally optional.
	KindPrimitive Kind = iota
	// KindCompound references an arena definition.
	KindCompound
	// KindObject is the Object type.
	KindObject
	// KindUnion is the indeterminate type: it coerces to everything and is
	// used as the single error sentinel so analysis errors do not cascade.
	KindUnion
	// KindNone is the type of the None literal: an optional Union.
	KindNone
	// KindTask is the hidden type of the `task` variable.
	KindTask
	// KindHints is the hidden type of hints literal values.
	KindHints
	// KindInput is the hidden type of input hint literals.
	KindInput
	// KindOutput is the hidden type of output hint literals.
	KindOutput
)

// CompoundID indexes a compound definition within one arena.
type CompoundID uint32

// Type is a compact value: a kind plus either a primitive kind or an arena
// id, and an optionality flag. Optionality lives here, never inside a
// definition.
type Type struct {
	kind     Kind
	prim     PrimitiveKind
	id       CompoundID
	optional bool
}

// Primitive constructs a required primitive type.
func Primitive(kind PrimitiveKind) Type {
	return Type{kind: KindPrimitive, prim: kind}
}

// Object is the required Object type.
func Object() Type { return Type{kind: KindObject} }

// Union is the indeterminate type.
func Union() Type { return Type{kind: KindUnion} }

// None is the type of the None literal.
func None() Type { return Type{kind: KindNone, optional: true} }

// Task is the hidden task-variable type.
func Task() Type { return Type{kind: KindTask} }

// Hints is the hidden hints type.
func Hints() Type { return Type{kind: KindHints} }

// Input is the hidden input type.
func Input() Type { return Type{kind: KindInput} }

// Output is the hidden output type.
func Output() Type { return Type{kind: KindOutput} }

// Kind returns the type's kind.
func (t Type) Kind() Kind { return t.kind }

// PrimitiveKind returns the primitive kind; only meaningful for
// KindPrimitive.
func (t Type) PrimitiveKind() PrimitiveKind { return t.prim }

// ID returns the arena id; only meaningful for KindCompound.
func (t Type) ID() CompoundID { return t.id }

// Optional reports whether the type accepts None.
func (t Type) Optional() bool {
	return t.optional || t.kind == KindNone
}

// AsOptional returns the type with optionality set.
func (t Type) AsOptional() Type {
	t.optional = true
	return t
}

// AsRequired returns the type with optionality cleared.
func (t Type) AsRequired() Type {
	if t.kind == KindNone {
		return Union()
	}
	t.optional = false
	return t
}

// IsPrimitive reports whether the type is primitive (of any optionality).
func (t Type) IsPrimitive() bool { return t.kind == KindPrimitive }

// IsUnion reports whether the type is the indeterminate sentinel.
func (t Type) IsUnion() bool { return t.kind == KindUnion }

// IsNone reports whether the type is the None type.
func (t Type) IsNone() bool { return t.kind == KindNone }

// DefKind discriminates compound definitions.
type DefKind int

const (
	// DefArray is Array[X], possibly non-empty.
	DefArray DefKind = iota
	// DefPair is Pair[L, R].
	DefPair
	// DefMap is Map[K, V] with a primitive key.
	DefMap
	// DefStruct is a named struct with ordered members.
	DefStruct
	// DefCall is the hidden type of a call's outputs.
	DefCall
)

// Member is one named, typed slot of a struct or call definition. Member
// order is observable and preserved.
type Member struct {
	Name string
	Type Type
}

// ArrayDef is the definition of an Array type.
type ArrayDef struct {
	Elem Type
	// NonEmpty marks Array[X]+.
	NonEmpty bool
}

// PairDef is the definition of a Pair type.
type PairDef struct {
	Left  Type
	Right Type
}

// MapDef is the definition of a Map type. Keys are primitive.
type MapDef struct {
	Key   Type
	Value Type
}

// StructDef is the definition of a struct type.
type StructDef struct {
	Name    string
	Members []Member
	index   map[string]int
}

// Member returns the named member and whether it exists.
func (d *StructDef) Member(name string) (Member, bool) {
	if i, ok := d.index[name]; ok {
		return d.Members[i], true
	}
	return Member{}, false
}

// PromotionKind records how a call type was promoted out of a scatter or
// conditional body.
type PromotionKind int

const (
	// PromotionNone is an unpromoted call.
	PromotionNone PromotionKind = iota
	// PromotionScatter wraps every output in Array.
	PromotionScatter
	// PromotionConditional makes every output optional.
	PromotionConditional
)

// CallDef is the hidden definition backing a call name in scope.
type CallDef struct {
	// Target is the callee's name; Namespace qualifies cross-document
	// targets.
	Target     string
	Namespace  string
	IsWorkflow bool
	Promotion  PromotionKind
	Outputs    []Member
	// Inputs are the callee's declared inputs; used for nested input
	// validation.
	Inputs []Member

	outIndex map[string]int
	inIndex  map[string]int
}

// Output returns the named output and whether it exists.
func (d *CallDef) Output(name string) (Member, bool) {
	if i, ok := d.outIndex[name]; ok {
		return d.Outputs[i], true
	}
	return Member{}, false
}

// Input returns the named input and whether it exists.
func (d *CallDef) Input(name string) (Member, bool) {
	if i, ok := d.inIndex[name]; ok {
		return d.Inputs[i], true
	}
	return Member{}, false
}

// Def is the sum of compound definitions. Exactly one field is non-nil.
type Def struct {
	Array  *ArrayDef
	Pair   *PairDef
	Map    *MapDef
	Struct *StructDef
	Call   *CallDef
}

// Kind returns the definition's kind.
func (d *Def) Kind() DefKind {
	switch {
	case d.Array != nil:
		return DefArray
	case d.Pair != nil:
		return DefPair
	case d.Map != nil:
		return DefMap
	case d.Struct != nil:
		return DefStruct
	default:
		return DefCall
	}
}

// Arena owns every compound definition created for one document or one
// evaluation. Types created against one arena must never be resolved
// against another; Import deep-copies across arenas.
type Arena struct {
	defs []Def
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Def resolves an id. The id must come from this arena.
func (a *Arena) Def(id CompoundID) *Def {
	return &a.defs[id]
}

func (a *Arena) add(d Def, optional bool) Type {
	a.defs = append(a.defs, d)
	return Type{kind: KindCompound, id: CompoundID(len(a.defs) - 1), optional: optional}
}

// Array adds an Array[elem] definition and returns its type.
func (a *Arena) Array(elem Type) Type {
	return a.add(Def{Array: &ArrayDef{Elem: elem}}, false)
}

// NonEmptyArray adds an Array[elem]+ definition and returns its type.
func (a *Arena) NonEmptyArray(elem Type) Type {
	return a.add(Def{Array: &ArrayDef{Elem: elem, NonEmpty: true}}, false)
}

// Pair adds a Pair[left, right] definition and returns its type.
func (a *Arena) Pair(left, right Type) Type {
	return a.add(Def{Pair: &PairDef{Left: left, Right: right}}, false)
}

// Map adds a Map[key, value] definition and returns its type.
func (a *Arena) Map(key, value Type) Type {
	return a.add(Def{Map: &MapDef{Key: key, Value: value}}, false)
}

// Struct adds a struct definition and returns its type.
func (a *Arena) Struct(name string, members []Member) Type {
	index := make(map[string]int, len(members))
	for i, m := range members {
		index[m.Name] = i
	}
	return a.add(Def{Struct: &StructDef{Name: name, Members: members, index: index}}, false)
}

// Call adds a call definition and returns its type.
func (a *Arena) Call(def CallDef) Type {
	def.outIndex = make(map[string]int, len(def.Outputs))
	for i, m := range def.Outputs {
		def.outIndex[m.Name] = i
	}
	def.inIndex = make(map[string]int, len(def.Inputs))
	for i, m := range def.Inputs {
		def.inIndex[m.Name] = i
	}
	return a.add(Def{Call: &def}, false)
}

// Import deep-copies a type from another arena into this one. Primitive and
// sentinel types copy freely; compound definitions are recreated here.
func (a *Arena) Import(from *Arena, t Type) Type {
	if t.kind != KindCompound {
		return t
	}
	optional := t.optional
	def := from.Def(t.id)
	var imported Type
	switch def.Kind() {
	case DefArray:
		elem := a.Import(from, def.Array.Elem)
		if def.Array.NonEmpty {
			imported = a.NonEmptyArray(elem)
		} else {
			imported = a.Array(elem)
		}
	case DefPair:
		imported = a.Pair(a.Import(from, def.Pair.Left), a.Import(from, def.Pair.Right))
	case DefMap:
		imported = a.Map(a.Import(from, def.Map.Key), a.Import(from, def.Map.Value))
	case DefStruct:
		members := make([]Member, len(def.Struct.Members))
		for i, m := range def.Struct.Members {
			members[i] = Member{Name: m.Name, Type: a.Import(from, m.Type)}
		}
		imported = a.Struct(def.Struct.Name, members)
	case DefCall:
		copied := *def.Call
		copied.Outputs = make([]Member, len(def.Call.Outputs))
		for i, m := range def.Call.Outputs {
			copied.Outputs[i] = Member{Name: m.Name, Type: a.Import(from, m.Type)}
		}
		copied.Inputs = make([]Member, len(def.Call.Inputs))
		for i, m := range def.Call.Inputs {
			copied.Inputs[i] = Member{Name: m.Name, Type: a.Import(from, m.Type)}
		}
		imported = a.Call(copied)
	}
	if optional {
		imported = imported.AsOptional()
	}
	return imported
}

// Display renders a type the way it would be written in source.
func (a *Arena) Display(t Type) string {
	var b strings.Builder
	a.display(&b, t)
	return b.String()
}

func (a *Arena) display(b *strings.Builder, t Type) {
	switch t.kind {
	case KindPrimitive:
		b.WriteString(t.prim.String())
	case KindObject:
		b.WriteString("Object")
	case KindUnion:
		b.WriteString("Union")
	case KindNone:
		b.WriteString("None")
		return
	case KindTask:
		b.WriteString("task")
	case KindHints:
		b.WriteString("hints")
	case KindInput:
		b.WriteString("input")
	case KindOutput:
		b.WriteString("output")
	case KindCompound:
		def := a.Def(t.id)
		switch def.Kind() {
		case DefArray:
			b.WriteString("Array[")
			a.display(b, def.Array.Elem)
			b.WriteString("]")
			if def.Array.NonEmpty {
				b.WriteString("+")
			}
		case DefPair:
			b.WriteString("Pair[")
			a.display(b, def.Pair.Left)
			b.WriteString(", ")
			a.display(b, def.Pair.Right)
			b.WriteString("]")
		case DefMap:
			b.WriteString("Map[")
			a.display(b, def.Map.Key)
			b.WriteString(", ")
			a.display(b, def.Map.Value)
			b.WriteString("]")
		case DefStruct:
			b.WriteString(def.Struct.Name)
		case DefCall:
			fmt.Fprintf(b, "call to %s", def.Call.Target)
			return
		}
	}
	if t.optional {
		b.WriteString("?")
	}
}
