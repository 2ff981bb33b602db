package types

// Coercible reports whether a value of type src may coerce to type tgt.
// Both types must belong to this arena. The rules follow the WDL coercion
// table: identity, String<->File/Directory, Int->Float, element-wise
// compound coercion, struct/map/object conversions, Union to anything, and
// None to any optional type. An optional source never coerces to a required
// target.
func (a *Arena) Coercible(src, tgt Type) bool {
	// Union coerces to everything, including required targets.
	if src.kind == KindUnion {
		return true
	}
	// None coerces only to optional targets.
	if src.kind == KindNone {
		return tgt.Optional() || tgt.kind == KindUnion
	}
	if tgt.kind == KindUnion {
		return true
	}
	if tgt.kind == KindNone {
		return false
	}
	// Optional -> required is never allowed.
	if src.Optional() && !tgt.Optional() {
		return false
	}

	switch src.kind {
	case KindPrimitive:
		if tgt.kind != KindPrimitive {
			return false
		}
		return primitiveCoercible(src.prim, tgt.prim)

	case KindObject:
		switch tgt.kind {
		case KindObject:
			return true
		case KindCompound:
			// Object -> Struct succeeds structurally; member values are
			// checked at runtime.
			return a.Def(tgt.id).Kind() == DefStruct
		}
		return false

	case KindTask, KindHints, KindInput, KindOutput:
		return src.kind == tgt.kind

	case KindCompound:
		srcDef := a.Def(src.id)
		switch tgt.kind {
		case KindObject:
			// Structs and string-keyed maps convert to Object.
			switch srcDef.Kind() {
			case DefStruct:
				return true
			case DefMap:
				return srcDef.Map.Key.kind == KindPrimitive && srcDef.Map.Key.prim == String
			}
			return false
		case KindCompound:
			return a.compoundCoercible(srcDef, a.Def(tgt.id))
		}
		return false
	}
	return false
}

func primitiveCoercible(src, tgt PrimitiveKind) bool {
	if src == tgt {
		return true
	}
	switch {
	case src == String && (tgt == File || tgt == Directory):
		return true
	case (src == File || src == Directory) && tgt == String:
		return true
	case src == Int && tgt == Float:
		return true
	}
	return false
}

func (a *Arena) compoundCoercible(src, tgt *Def) bool {
	switch src.Kind() {
	case DefArray:
		if tgt.Array == nil {
			return false
		}
		// A maybe-empty array cannot coerce to a non-empty array type.
		if tgt.Array.NonEmpty && !src.Array.NonEmpty {
			return false
		}
		return a.Coercible(src.Array.Elem, tgt.Array.Elem)

	case DefPair:
		if tgt.Pair == nil {
			return false
		}
		return a.Coercible(src.Pair.Left, tgt.Pair.Left) &&
			a.Coercible(src.Pair.Right, tgt.Pair.Right)

	case DefMap:
		switch tgt.Kind() {
		case DefMap:
			return a.Coercible(src.Map.Key, tgt.Map.Key) &&
				a.Coercible(src.Map.Value, tgt.Map.Value)
		case DefStruct:
			// Map[String, X] -> Struct when the value type coerces to
			// every member type. A map type carries no entry count, so
			// member counts are not compared here.
			if src.Map.Key.kind != KindPrimitive || src.Map.Key.prim != String {
				return false
			}
			for _, m := range tgt.Struct.Members {
				if !a.Coercible(src.Map.Value, m.Type) {
					return false
				}
			}
			return true
		}
		return false

	case DefStruct:
		switch tgt.Kind() {
		case DefStruct:
			// Same ordered member names, pairwise coercible.
			if len(src.Struct.Members) != len(tgt.Struct.Members) {
				return false
			}
			for i, m := range src.Struct.Members {
				other := tgt.Struct.Members[i]
				if m.Name != other.Name || !a.Coercible(m.Type, other.Type) {
					return false
				}
			}
			return true
		case DefMap:
			// Struct -> Map[String, Y] when every member coerces to Y.
			if tgt.Map.Key.kind != KindPrimitive || tgt.Map.Key.prim != String {
				return false
			}
			for _, m := range src.Struct.Members {
				if !a.Coercible(m.Type, tgt.Map.Value) {
					return false
				}
			}
			return true
		}
		return false

	case DefCall:
		return false
	}
	return false
}

// Eq reports structural type equality. Compound types compare through their
// definitions, so two ids minted separately for the same shape are equal.
func (a *Arena) Eq(x, y Type) bool {
	if x.kind != y.kind || x.Optional() != y.Optional() {
		return false
	}
	switch x.kind {
	case KindPrimitive:
		return x.prim == y.prim
	case KindCompound:
		if x.id == y.id {
			return true
		}
		return a.defEq(a.Def(x.id), a.Def(y.id))
	default:
		return true
	}
}

func (a *Arena) defEq(x, y *Def) bool {
	if x.Kind() != y.Kind() {
		return false
	}
	switch x.Kind() {
	case DefArray:
		return x.Array.NonEmpty == y.Array.NonEmpty && a.Eq(x.Array.Elem, y.Array.Elem)
	case DefPair:
		return a.Eq(x.Pair.Left, y.Pair.Left) && a.Eq(x.Pair.Right, y.Pair.Right)
	case DefMap:
		return a.Eq(x.Map.Key, y.Map.Key) && a.Eq(x.Map.Value, y.Map.Value)
	case DefStruct:
		if len(x.Struct.Members) != len(y.Struct.Members) {
			return false
		}
		for i, m := range x.Struct.Members {
			other := y.Struct.Members[i]
			if m.Name != other.Name || !a.Eq(m.Type, other.Type) {
				return false
			}
		}
		return true
	case DefCall:
		return x.Call == y.Call
	}
	return false
}

// CommonType computes the least upper bound of two types, used to infer
// array and map literal element types and if-expression results. The second
// result is false when no common type exists.
func (a *Arena) CommonType(x, y Type) (Type, bool) {
	// Union defers to the other side; two Unions stay Union.
	if x.kind == KindUnion {
		return y, true
	}
	if y.kind == KindUnion {
		return x, true
	}
	// None forces optionality on the other side.
	if x.kind == KindNone {
		if y.kind == KindNone {
			return x, true
		}
		return y.AsOptional(), true
	}
	if y.kind == KindNone {
		return x.AsOptional(), true
	}

	optional := x.Optional() || y.Optional()
	result, ok := a.commonRequired(x.AsRequired(), y.AsRequired())
	if !ok {
		return Union(), false
	}
	if optional {
		result = result.AsOptional()
	}
	return result, true
}

func (a *Arena) commonRequired(x, y Type) (Type, bool) {
	if a.Eq(x, y) {
		return x, true
	}
	// Directional coercion decides between unequal types: prefer the wider
	// target.
	if a.Coercible(x, y) {
		return y, true
	}
	if a.Coercible(y, x) {
		return x, true
	}
	// Arrays unify element-wise so [[1], [1.0]] infers Array[Array[Float]].
	if x.kind == KindCompound && y.kind == KindCompound {
		xd, yd := a.Def(x.id), a.Def(y.id)
		if xd.Kind() == DefArray && yd.Kind() == DefArray {
			elem, ok := a.CommonType(xd.Array.Elem, yd.Array.Elem)
			if !ok {
				return Union(), false
			}
			if xd.Array.NonEmpty && yd.Array.NonEmpty {
				return a.NonEmptyArray(elem), true
			}
			return a.Array(elem), true
		}
	}
	return Union(), false
}
