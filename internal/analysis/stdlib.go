package analysis

import (
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// The standard-library signature table is process-wide and immutable after
// init. Signatures use a small structural language with two type variables
// so polymorphic functions (zip, flatten, select_first) can state their
// element relationships.

type sigKind int

const (
	sPrim sigKind = iota
	sArray
	sMap
	sPair
	sObject
	// sAny matches any type without binding.
	sAny
	// sVar binds a type variable on first use and joins on reuse.
	sVar
)

type sigType struct {
	kind     sigKind
	prim     types.PrimitiveKind
	elem     *sigType
	key      *sigType
	value    *sigType
	variable byte
	optional bool
	nonEmpty bool
	// require strips optionality when substituting the return type, for
	// functions like select_first that unwrap optionals.
	require bool
}

func tPrim(k types.PrimitiveKind) sigType { return sigType{kind: sPrim, prim: k} }

var (
	tBool = tPrim(types.Boolean)
	tInt  = tPrim(types.Int)
	tFlt  = tPrim(types.Float)
	tStr  = tPrim(types.String)
	tFile = tPrim(types.File)
	tDir  = tPrim(types.Directory)
	tObj  = sigType{kind: sObject}
	tAny  = sigType{kind: sAny}
	tX    = sigType{kind: sVar, variable: 'X'}
	tY    = sigType{kind: sVar, variable: 'Y'}
)

func arr(elem sigType) sigType     { return sigType{kind: sArray, elem: &elem} }
func nearr(elem sigType) sigType   { e := arr(elem); e.nonEmpty = true; return e }
func mp(key, value sigType) sigType {
	return sigType{kind: sMap, key: &key, value: &value}
}
func pr(left, right sigType) sigType {
	return sigType{kind: sPair, key: &left, value: &right}
}
func opt(t sigType) sigType    { t.optional = true; return t }
func unwrap(t sigType) sigType { t.require = true; return t }

// signature is one overload of a standard-library function.
type signature struct {
	minMajor int
	minMinor int
	params   []sigType
	ret      sigType
}

func sig(params []sigType, ret sigType) signature {
	return signature{minMajor: 1, params: params, ret: ret}
}

func sig11(params []sigType, ret sigType) signature {
	s := sig(params, ret)
	s.minMinor = 1
	return s
}

func sig12(params []sigType, ret sigType) signature {
	s := sig(params, ret)
	s.minMinor = 2
	return s
}

func ps(params ...sigType) []sigType { return params }

// stdlib maps function names to their ordered overloads. Binding tries the
// overloads in order and the first match wins.
var stdlib = map[string][]signature{
	"floor": {sig(ps(tFlt), tInt)},
	"ceil":  {sig(ps(tFlt), tInt)},
	"round": {sig(ps(tFlt), tInt)},
	"min": {
		sig11(ps(tInt, tInt), tInt),
		sig11(ps(tFlt, tFlt), tFlt),
	},
	"max": {
		sig11(ps(tInt, tInt), tInt),
		sig11(ps(tFlt, tFlt), tFlt),
	},
	"find":    {sig12(ps(tStr, tStr), opt(tStr))},
	"matches": {sig12(ps(tStr, tStr), tBool)},
	"sub":     {sig(ps(tStr, tStr, tStr), tStr)},
	"basename": {
		sig(ps(tFile), tStr),
		sig(ps(tFile, tStr), tStr),
		sig12(ps(tDir), tStr),
	},
	"join_paths": {
		sig12(ps(tFile, tStr), tFile),
		sig12(ps(tFile, nearr(tStr)), tFile),
		sig12(ps(nearr(tStr)), tFile),
	},
	"glob":   {sig(ps(tStr), arr(tFile))},
	"size": {
		sig(ps(tAny), tFlt),
		sig(ps(tAny, tStr), tFlt),
	},
	"stdout":       {sig(nil, tFile)},
	"stderr":       {sig(nil, tFile)},
	"read_string":  {sig(ps(tFile), tStr)},
	"read_int":     {sig(ps(tFile), tInt)},
	"read_float":   {sig(ps(tFile), tFlt)},
	"read_boolean": {sig(ps(tFile), tBool)},
	"read_lines":   {sig(ps(tFile), arr(tStr))},
	"write_lines":  {sig(ps(arr(tStr)), tFile)},
	"read_tsv":     {sig(ps(tFile), arr(arr(tStr)))},
	"write_tsv":    {sig(ps(arr(arr(tStr))), tFile)},
	"read_map":     {sig(ps(tFile), mp(tStr, tStr))},
	"write_map":    {sig(ps(mp(tStr, tStr)), tFile)},
	"read_json":    {sig(ps(tFile), tAny)},
	"write_json":   {sig(ps(tAny), tFile)},
	"read_object":  {sig(ps(tFile), tObj)},
	"read_objects": {sig(ps(tFile), arr(tObj))},
	"write_object": {sig(ps(tObj), tFile)},
	"write_objects": {
		sig(ps(arr(tObj)), tFile),
	},
	"length": {
		sig(ps(arr(tAny)), tInt),
		sig12(ps(mp(tAny, tAny)), tInt),
		sig12(ps(tObj), tInt),
		sig12(ps(tStr), tInt),
	},
	"range":     {sig(ps(tInt), arr(tInt))},
	"transpose": {sig(ps(arr(arr(tX))), arr(arr(tX)))},
	"cross":     {sig(ps(arr(tX), arr(tY)), arr(pr(tX, tY)))},
	"zip":       {sig(ps(arr(tX), arr(tY)), arr(pr(tX, tY)))},
	"unzip":     {sig11(ps(arr(pr(tX, tY))), pr(arr(tX), arr(tY)))},
	"contains":  {sig12(ps(arr(tX), tX), tBool)},
	"chunk":     {sig12(ps(arr(tX), tInt), arr(arr(tX)))},
	"flatten":   {sig(ps(arr(arr(tX))), arr(tX))},
	"select_first": {
		sig(ps(nearr(opt(tX))), unwrap(tX)),
		sig12(ps(arr(opt(tX)), tX), unwrap(tX)),
	},
	"select_all": {sig(ps(arr(opt(tX))), arr(unwrap(tX)))},
	"as_pairs":   {sig11(ps(mp(tX, tY)), arr(pr(tX, tY)))},
	"as_map":     {sig11(ps(arr(pr(tX, tY))), mp(tX, tY))},
	"keys": {
		sig11(ps(mp(tX, tAny)), arr(tX)),
		sig12(ps(tObj), arr(tStr)),
	},
	"contains_key": {
		sig12(ps(mp(tX, tAny), tX), tBool),
		sig12(ps(tObj, tStr), tBool),
	},
	"values":         {sig12(ps(mp(tAny, tY)), arr(tY))},
	"collect_by_key": {sig11(ps(arr(pr(tX, tY))), mp(tX, arr(tY)))},
	"defined":        {sig(ps(opt(tAny)), tBool)},
	"prefix":         {sig(ps(tStr, arr(tX)), arr(tStr))},
	"suffix":         {sig11(ps(tStr, arr(tX)), arr(tStr))},
	"quote":          {sig11(ps(arr(tX)), arr(tStr))},
	"squote":         {sig11(ps(arr(tX)), arr(tStr))},
	"sep":            {sig11(ps(tStr, arr(tStr)), tStr)},
}

// bindOutcome classifies an attempt to bind arguments to a function.
type bindOutcome int

const (
	bindOK bindOutcome = iota
	bindUnknownFunction
	bindUnsupportedVersion
	bindWrongArity
	bindMismatch
	bindAmbiguous
)

// bindResult is the outcome of binding a call to the stdlib table.
type bindResult struct {
	outcome bindOutcome
	ret     types.Type
	// arity carries the expected parameter counts for arity errors.
	minArity int
	maxArity int
	// mismatch names the first argument index that failed to match.
	mismatch int
}

// bindFunction resolves a function name against the stdlib table and binds
// the argument types. Overloads are tried in order; the first match wins.
// When an indeterminate argument lets several overloads with different
// return types match, the call is ambiguous.
func bindFunction(doc *Document, name string, args []types.Type) bindResult {
	overloads, ok := stdlib[name]
	if !ok {
		return bindResult{outcome: bindUnknownFunction}
	}

	supported := overloads[:0:0]
	minArity, maxArity := 1<<30, 0
	for _, o := range overloads {
		if doc.Supports(o.minMajor, o.minMinor) {
			supported = append(supported, o)
			if len(o.params) < minArity {
				minArity = len(o.params)
			}
			if len(o.params) > maxArity {
				maxArity = len(o.params)
			}
		}
	}
	if len(supported) == 0 {
		return bindResult{outcome: bindUnsupportedVersion}
	}

	hasUnion := false
	for _, a := range args {
		if a.IsUnion() {
			hasUnion = true
		}
	}

	var matches []types.Type
	mismatchAt := -1
	arityOK := false
	for _, o := range supported {
		if len(o.params) != len(args) {
			continue
		}
		arityOK = true
		binds := make(map[byte]types.Type)
		ok := true
		for i, p := range o.params {
			if !unifySig(doc, p, args[i], binds) {
				if mismatchAt < 0 || i < mismatchAt {
					mismatchAt = i
				}
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		ret := substSig(doc, o.ret, binds)
		matches = append(matches, ret)
		if !hasUnion {
			break
		}
	}

	switch {
	case len(matches) == 1:
		return bindResult{outcome: bindOK, ret: matches[0]}
	case len(matches) > 1:
		// All-equal returns are not ambiguous.
		allEq := true
		for _, m := range matches[1:] {
			if !doc.Types.Eq(matches[0], m) {
				allEq = false
				break
			}
		}
		if allEq {
			return bindResult{outcome: bindOK, ret: matches[0]}
		}
		return bindResult{outcome: bindAmbiguous, ret: types.Union()}
	case !arityOK:
		return bindResult{outcome: bindWrongArity, minArity: minArity, maxArity: maxArity}
	default:
		return bindResult{outcome: bindMismatch, mismatch: mismatchAt}
	}
}

// unifySig matches one argument type against a signature type, extending
// the variable bindings.
func unifySig(doc *Document, p sigType, arg types.Type, binds map[byte]types.Type) bool {
	if arg.IsUnion() {
		return true
	}
	if arg.IsNone() {
		return p.optional || p.kind == sAny
	}
	if arg.Optional() && !p.optional && p.kind != sAny && p.kind != sVar {
		return false
	}

	switch p.kind {
	case sAny:
		return true

	case sVar:
		if existing, ok := binds[p.variable]; ok {
			joined, ok := doc.Types.CommonType(existing, arg)
			if !ok {
				return false
			}
			binds[p.variable] = joined
			return true
		}
		binds[p.variable] = arg
		return true

	case sPrim:
		target := types.Primitive(p.prim)
		if p.optional {
			target = target.AsOptional()
		}
		return doc.Types.Coercible(arg, target)

	case sObject:
		target := types.Object()
		if p.optional {
			target = target.AsOptional()
		}
		return doc.Types.Coercible(arg, target)

	case sArray:
		if arg.Kind() != types.KindCompound {
			return false
		}
		def := doc.Types.Def(arg.ID())
		if def.Array == nil {
			return false
		}
		if p.nonEmpty && !def.Array.NonEmpty {
			return false
		}
		return unifySig(doc, *p.elem, def.Array.Elem, binds)

	case sMap:
		if arg.Kind() != types.KindCompound {
			return false
		}
		def := doc.Types.Def(arg.ID())
		if def.Map == nil {
			return false
		}
		return unifySig(doc, *p.key, def.Map.Key, binds) &&
			unifySig(doc, *p.value, def.Map.Value, binds)

	case sPair:
		if arg.Kind() != types.KindCompound {
			return false
		}
		def := doc.Types.Def(arg.ID())
		if def.Pair == nil {
			return false
		}
		return unifySig(doc, *p.key, def.Pair.Left, binds) &&
			unifySig(doc, *p.value, def.Pair.Right, binds)
	}
	return false
}

// substSig builds the concrete return type from a signature type and the
// bindings. Unbound variables stay Union.
func substSig(doc *Document, p sigType, binds map[byte]types.Type) types.Type {
	var out types.Type
	switch p.kind {
	case sPrim:
		out = types.Primitive(p.prim)
	case sObject:
		out = types.Object()
	case sAny:
		out = types.Union()
	case sVar:
		if bound, ok := binds[p.variable]; ok {
			out = bound
		} else {
			out = types.Union()
		}
	case sArray:
		elem := substSig(doc, *p.elem, binds)
		if p.nonEmpty {
			out = doc.Types.NonEmptyArray(elem)
		} else {
			out = doc.Types.Array(elem)
		}
	case sMap:
		out = doc.Types.Map(substSig(doc, *p.key, binds), substSig(doc, *p.value, binds))
	case sPair:
		out = doc.Types.Pair(substSig(doc, *p.key, binds), substSig(doc, *p.value, binds))
	}
	if p.require {
		out = out.AsRequired()
	}
	if p.optional {
		out = out.AsOptional()
	}
	return out
}
