package analysis

import (
	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// exprContext carries the resolution scope and whether the expression sits
// inside a string or command placeholder, which relaxes stringification.
type exprContext struct {
	scope       ScopeIndex
	placeholder bool
}

// typeOfExpr computes an expression's static type, reporting mismatches as
// diagnostics. Errors yield Union, the single indeterminate sentinel, so
// one mistake does not cascade into its consumers.
func (d *Document) typeOfExpr(ctx exprContext, e *ast.Expr) types.Type {
	if e == nil {
		return types.Union()
	}
	switch e.Kind() {
	case syntax.KindErrorNode:
		return types.Union()

	case syntax.KindLiteralIntNode:
		return types.Primitive(types.Int)

	case syntax.KindLiteralFloatNode:
		return types.Primitive(types.Float)

	case syntax.KindLiteralBoolNode:
		return types.Primitive(types.Boolean)

	case syntax.KindLiteralNoneNode:
		return types.None()

	case syntax.KindLiteralStringNode:
		for _, part := range e.StringParts() {
			if part.Placeholder != nil {
				d.checkPlaceholder(ctx, part.Placeholder)
			}
		}
		return types.Primitive(types.String)

	case syntax.KindLiteralArrayNode:
		return d.typeOfArrayLiteral(ctx, e)

	case syntax.KindLiteralMapNode:
		return d.typeOfMapLiteral(ctx, e)

	case syntax.KindLiteralPairNode:
		left, right := e.PairValues()
		return d.Types.Pair(d.typeOfExpr(ctx, left), d.typeOfExpr(ctx, right))

	case syntax.KindLiteralObjectNode:
		for _, item := range e.ObjectItems() {
			d.typeOfExpr(ctx, item.Value)
		}
		return types.Object()

	case syntax.KindLiteralStructNode:
		return d.typeOfStructLiteral(ctx, e)

	case syntax.KindNameRefNode:
		name := e.Name()
		if entry, ok := d.Lookup(ctx.scope, name); ok {
			return entry.Type
		}
		d.diags.Add(diag.Errorf(e.Span(), "unknown name %q", name))
		return types.Union()

	case syntax.KindParenExprNode:
		ops := e.Operands()
		if len(ops) == 0 {
			return types.Union()
		}
		return d.typeOfExpr(ctx, ops[0])

	case syntax.KindIfExprNode:
		return d.typeOfIfExpr(ctx, e)

	case syntax.KindLogicalNotExprNode:
		ops := e.Operands()
		if len(ops) == 1 {
			t := d.typeOfExpr(ctx, ops[0])
			if !d.Types.Coercible(t, types.Primitive(types.Boolean)) {
				d.diags.Add(diag.Errorf(ops[0].Span(),
					"logical not mismatch: operand has type %s, expected Boolean", d.Types.Display(t)))
			}
		}
		return types.Primitive(types.Boolean)

	case syntax.KindNegationExprNode:
		ops := e.Operands()
		if len(ops) != 1 {
			return types.Union()
		}
		t := d.typeOfExpr(ctx, ops[0])
		if t.IsUnion() {
			return types.Union()
		}
		if t.IsPrimitive() && !t.Optional() &&
			(t.PrimitiveKind() == types.Int || t.PrimitiveKind() == types.Float) {
			return t
		}
		d.diags.Add(diag.Errorf(ops[0].Span(),
			"numeric mismatch: cannot negate a value of type %s", d.Types.Display(t)))
		return types.Union()

	case syntax.KindLogicalAndExprNode, syntax.KindLogicalOrExprNode:
		opName := "and"
		if e.Kind() == syntax.KindLogicalOrExprNode {
			opName = "or"
		}
		for _, op := range e.Operands() {
			t := d.typeOfExpr(ctx, op)
			if !d.Types.Coercible(t, types.Primitive(types.Boolean)) {
				d.diags.Add(diag.Errorf(op.Span(),
					"logical %s mismatch: operand has type %s, expected Boolean", opName, d.Types.Display(t)))
			}
		}
		return types.Primitive(types.Boolean)

	case syntax.KindEqualityExprNode, syntax.KindInequalityExprNode:
		return d.typeOfEquality(ctx, e)

	case syntax.KindLessExprNode, syntax.KindLessEqualExprNode,
		syntax.KindGreaterExprNode, syntax.KindGreaterEqualExprNode:
		return d.typeOfOrdering(ctx, e)

	case syntax.KindAdditionExprNode:
		return d.typeOfAddition(ctx, e)

	case syntax.KindSubtractionExprNode, syntax.KindMultiplicationExprNode,
		syntax.KindDivisionExprNode, syntax.KindModuloExprNode,
		syntax.KindExponentiationExprNode:
		return d.typeOfArithmetic(ctx, e)

	case syntax.KindCallExprNode:
		return d.typeOfCall(ctx, e)

	case syntax.KindIndexExprNode:
		return d.typeOfIndex(ctx, e)

	case syntax.KindAccessExprNode:
		return d.typeOfAccess(ctx, e)
	}
	return types.Union()
}

func (d *Document) typeOfArrayLiteral(ctx exprContext, e *ast.Expr) types.Type {
	elems := e.Elements()
	if len(elems) == 0 {
		return d.Types.Array(types.Union())
	}
	common := d.typeOfExpr(ctx, elems[0])
	for _, elem := range elems[1:] {
		t := d.typeOfExpr(ctx, elem)
		joined, ok := d.Types.CommonType(common, t)
		if !ok {
			d.diags.Add(diag.Errorf(elem.Span(),
				"type mismatch: array element has type %s, expected a type common with %s",
				d.Types.Display(t), d.Types.Display(common)))
			return d.Types.Array(types.Union())
		}
		common = joined
	}
	return d.Types.NonEmptyArray(common)
}

func (d *Document) typeOfMapLiteral(ctx exprContext, e *ast.Expr) types.Type {
	items := e.MapItems()
	if len(items) == 0 {
		return d.Types.Map(types.Union(), types.Union())
	}
	keyType := types.Union()
	valueType := types.Union()
	for i, item := range items {
		kt := d.typeOfExpr(ctx, item.Key)
		if kt.IsNone() || (!kt.IsUnion() && !kt.IsPrimitive()) {
			d.diags.Add(diag.Errorf(item.Key.Span(),
				"type mismatch: map keys must be primitive, found %s", d.Types.Display(kt)))
			kt = types.Union()
		}
		vt := d.typeOfExpr(ctx, item.Value)
		if i == 0 {
			keyType, valueType = kt, vt
			continue
		}
		if joined, ok := d.Types.CommonType(keyType, kt); ok {
			keyType = joined
		} else {
			d.diags.Add(diag.Errorf(item.Key.Span(),
				"type mismatch: map key has type %s, expected a type common with %s",
				d.Types.Display(kt), d.Types.Display(keyType)))
		}
		if joined, ok := d.Types.CommonType(valueType, vt); ok {
			valueType = joined
		} else {
			d.diags.Add(diag.Errorf(item.Value.Span(),
				"type mismatch: map value has type %s, expected a type common with %s",
				d.Types.Display(vt), d.Types.Display(valueType)))
		}
	}
	return d.Types.Map(keyType, valueType)
}

func (d *Document) typeOfStructLiteral(ctx exprContext, e *ast.Expr) types.Type {
	name := e.StructName()
	s := d.StructByName(name)
	if s == nil {
		if d.unknownTypes == nil {
			d.unknownTypes = make(map[string]bool)
		}
		if !d.unknownTypes[name] {
			d.unknownTypes[name] = true
			d.diags.Add(diag.Errorf(e.Span(), "unknown type %q", name))
		}
		for _, item := range e.ObjectItems() {
			d.typeOfExpr(ctx, item.Value)
		}
		return types.Union()
	}
	if s.Type.Kind() != types.KindCompound {
		return types.Union()
	}
	def := d.Types.Def(s.Type.ID()).Struct

	provided := make(map[string]bool)
	for _, item := range e.ObjectItems() {
		vt := d.typeOfExpr(ctx, item.Value)
		member, ok := def.Member(item.Name)
		if !ok {
			d.diags.Add(diag.Errorf(item.Span, "%q is not a struct member of %s", item.Name, name))
			continue
		}
		provided[item.Name] = true
		if !d.Types.Coercible(vt, member.Type) {
			d.diags.Add(diag.Errorf(item.Span,
				"type mismatch: member %q has type %s, cannot coerce value of type %s",
				item.Name, d.Types.Display(member.Type), d.Types.Display(vt)))
		}
	}

	var missing []string
	for _, m := range def.Members {
		if !provided[m.Name] && !m.Type.Optional() {
			missing = append(missing, m.Name)
		}
	}
	if len(missing) > 0 {
		d.diags.Add(diag.Errorf(e.Span(), "missing struct members %v in literal of %s", missing, name))
	}
	return s.Type
}

func (d *Document) typeOfIfExpr(ctx exprContext, e *ast.Expr) types.Type {
	cond, thenExpr, elseExpr := e.IfBranches()
	condType := d.typeOfExpr(ctx, cond)
	if !d.Types.Coercible(condType, types.Primitive(types.Boolean)) {
		span := e.Span()
		if cond != nil {
			span = cond.Span()
		}
		d.diags.Add(diag.Errorf(span,
			"if conditional mismatch: condition has type %s, expected Boolean", d.Types.Display(condType)))
	}
	thenType := d.typeOfExpr(ctx, thenExpr)
	elseType := d.typeOfExpr(ctx, elseExpr)
	if joined, ok := d.Types.CommonType(thenType, elseType); ok {
		return joined
	}
	span := e.Span()
	if elseExpr != nil {
		span = elseExpr.Span()
	}
	d.diags.Add(diag.Errorf(span,
		"type mismatch: if branches have incompatible types %s and %s",
		d.Types.Display(thenType), d.Types.Display(elseType)))
	return types.Union()
}

func (d *Document) typeOfEquality(ctx exprContext, e *ast.Expr) types.Type {
	ops := e.Operands()
	if len(ops) != 2 {
		return types.Primitive(types.Boolean)
	}
	lt := d.typeOfExpr(ctx, ops[0])
	rt := d.typeOfExpr(ctx, ops[1])
	if lt.IsUnion() || rt.IsUnion() || lt.IsNone() || rt.IsNone() {
		return types.Primitive(types.Boolean)
	}
	comparable := d.Types.Coercible(lt.AsRequired(), rt.AsRequired()) ||
		d.Types.Coercible(rt.AsRequired(), lt.AsRequired()) ||
		(lt.Kind() == types.KindObject && rt.Kind() == types.KindObject) ||
		d.Types.Eq(lt.AsRequired(), rt.AsRequired())
	if !comparable {
		d.diags.Add(diag.Errorf(e.Span(),
			"comparison mismatch: cannot compare %s with %s",
			d.Types.Display(lt), d.Types.Display(rt)))
	}
	return types.Primitive(types.Boolean)
}

func (d *Document) typeOfOrdering(ctx exprContext, e *ast.Expr) types.Type {
	for _, op := range e.Operands() {
		t := d.typeOfExpr(ctx, op)
		if t.IsUnion() {
			continue
		}
		ok := t.IsPrimitive() && !t.Optional()
		if ok {
			switch t.PrimitiveKind() {
			case types.File, types.Directory:
				ok = false
			}
		}
		if !ok {
			d.diags.Add(diag.Errorf(op.Span(),
				"comparison mismatch: cannot order a value of type %s", d.Types.Display(t)))
		}
	}
	return types.Primitive(types.Boolean)
}

func (d *Document) typeOfAddition(ctx exprContext, e *ast.Expr) types.Type {
	ops := e.Operands()
	if len(ops) != 2 {
		return types.Union()
	}
	lt := d.typeOfExpr(ctx, ops[0])
	rt := d.typeOfExpr(ctx, ops[1])
	if lt.IsUnion() || rt.IsUnion() {
		return types.Union()
	}

	// String concatenation: either side String promotes the result.
	if isStringy(lt) || isStringy(rt) {
		if concatOK(lt) && concatOK(rt) {
			result := types.Primitive(types.String)
			// Optional operands are only concatenable inside placeholders,
			// where the result stays optional.
			if lt.Optional() || rt.Optional() {
				if !ctx.placeholder {
					d.diags.Add(diag.Errorf(e.Span(),
						"string concat mismatch: optional operands are only allowed inside placeholders"))
				}
				result = result.AsOptional()
			}
			return result
		}
		d.diags.Add(diag.Errorf(e.Span(),
			"string concat mismatch: cannot concatenate %s and %s",
			d.Types.Display(lt), d.Types.Display(rt)))
		return types.Union()
	}

	return d.numericResult(e, lt, rt)
}

func isStringy(t types.Type) bool {
	return t.IsPrimitive() && t.PrimitiveKind() == types.String
}

// concatOK reports whether a type may appear on either side of a string
// concatenation: any primitive, or None.
func concatOK(t types.Type) bool {
	return t.IsPrimitive() || t.IsNone()
}

func (d *Document) typeOfArithmetic(ctx exprContext, e *ast.Expr) types.Type {
	ops := e.Operands()
	if len(ops) != 2 {
		return types.Union()
	}
	lt := d.typeOfExpr(ctx, ops[0])
	rt := d.typeOfExpr(ctx, ops[1])
	if lt.IsUnion() || rt.IsUnion() {
		return types.Union()
	}
	return d.numericResult(e, lt, rt)
}

// numericResult applies the shared numeric rule: Int op Int is Int, else
// both sides must coerce to Float.
func (d *Document) numericResult(e *ast.Expr, lt, rt types.Type) types.Type {
	intType := types.Primitive(types.Int)
	floatType := types.Primitive(types.Float)
	if d.Types.Eq(lt, intType) && d.Types.Eq(rt, intType) {
		return intType
	}
	if d.Types.Coercible(lt, floatType) && d.Types.Coercible(rt, floatType) {
		return floatType
	}
	d.diags.Add(diag.Errorf(e.Span(),
		"numeric mismatch: cannot apply operator to %s and %s",
		d.Types.Display(lt), d.Types.Display(rt)))
	return types.Union()
}

func (d *Document) typeOfCall(ctx exprContext, e *ast.Expr) types.Type {
	name := e.CallTarget()
	args := e.CallArgs()
	argTypes := make([]types.Type, len(args))
	for i, arg := range args {
		argTypes[i] = d.typeOfExpr(ctx, arg)
	}

	result := bindFunction(d, name, argTypes)
	switch result.outcome {
	case bindOK:
		return result.ret
	case bindUnknownFunction:
		d.diags.Add(diag.Errorf(e.Span(), "unknown function %q", name))
	case bindUnsupportedVersion:
		d.diags.Add(diag.Errorf(e.Span(),
			"unsupported function: %q requires a newer WDL version than %s", name, d.Version))
	case bindWrongArity:
		if len(args) < result.minArity {
			d.diags.Add(diag.Errorf(e.Span(),
				"too few arguments to %q: expected at least %d, found %d", name, result.minArity, len(args)))
		} else {
			d.diags.Add(diag.Errorf(e.Span(),
				"too many arguments to %q: expected at most %d, found %d", name, result.maxArity, len(args)))
		}
	case bindMismatch:
		span := e.Span()
		if result.mismatch >= 0 && result.mismatch < len(args) {
			span = args[result.mismatch].Span()
		}
		d.diags.Add(diag.Errorf(span, "argument type mismatch in call to %q", name))
	case bindAmbiguous:
		d.diags.Add(diag.Errorf(e.Span(), "ambiguous function argument in call to %q", name))
	}
	return types.Union()
}

func (d *Document) typeOfIndex(ctx exprContext, e *ast.Expr) types.Type {
	target, index := e.IndexParts()
	tt := d.typeOfExpr(ctx, target)
	it := d.typeOfExpr(ctx, index)
	if tt.IsUnion() {
		return types.Union()
	}
	if tt.Kind() != types.KindCompound || tt.Optional() {
		d.diags.Add(diag.Errorf(e.Span(),
			"cannot index a value of type %s", d.Types.Display(tt)))
		return types.Union()
	}
	def := d.Types.Def(tt.ID())
	switch {
	case def.Array != nil:
		if !d.Types.Coercible(it, types.Primitive(types.Int)) {
			span := e.Span()
			if index != nil {
				span = index.Span()
			}
			d.diags.Add(diag.Errorf(span,
				"index type mismatch: array index has type %s, expected Int", d.Types.Display(it)))
		}
		return def.Array.Elem
	case def.Map != nil:
		if !d.Types.Coercible(it, def.Map.Key) {
			span := e.Span()
			if index != nil {
				span = index.Span()
			}
			d.diags.Add(diag.Errorf(span,
				"index type mismatch: map key has type %s, expected %s",
				d.Types.Display(it), d.Types.Display(def.Map.Key)))
		}
		return def.Map.Value
	default:
		d.diags.Add(diag.Errorf(e.Span(),
			"cannot index a value of type %s", d.Types.Display(tt)))
		return types.Union()
	}
}

func (d *Document) typeOfAccess(ctx exprContext, e *ast.Expr) types.Type {
	target, member := e.AccessParts()
	if member == nil {
		return types.Union()
	}
	name := member.Text()
	tt := d.typeOfExpr(ctx, target)
	if tt.IsUnion() {
		return types.Union()
	}

	switch tt.Kind() {
	case types.KindObject:
		// Object members are dynamically shaped.
		return types.Union()

	case types.KindTask:
		if t, ok := taskVariableMember(name); ok {
			return t
		}
		d.diags.Add(diag.Errorf(member.Span(), "%q is not a task member", name))
		return types.Union()

	case types.KindCompound:
		if tt.Optional() {
			d.diags.Add(diag.Errorf(e.Span(),
				"cannot access a member of the optional type %s", d.Types.Display(tt)))
			return types.Union()
		}
		def := d.Types.Def(tt.ID())
		switch {
		case def.Struct != nil:
			if m, ok := def.Struct.Member(name); ok {
				return m.Type
			}
			d.diags.Add(diag.Errorf(member.Span(),
				"%q is not a struct member of %s", name, def.Struct.Name))
			return types.Union()
		case def.Pair != nil:
			switch name {
			case "left":
				return def.Pair.Left
			case "right":
				return def.Pair.Right
			}
			d.diags.Add(diag.Errorf(member.Span(),
				"%q is not a pair accessor; use left or right", name))
			return types.Union()
		case def.Call != nil:
			if m, ok := def.Call.Output(name); ok {
				return m.Type
			}
			d.diags.Add(diag.Errorf(member.Span(),
				"unknown call output: call %q has no output named %q", def.Call.Target, name))
			return types.Union()
		}
	}

	d.diags.Add(diag.Errorf(e.Span(),
		"cannot access a member of a value of type %s", d.Types.Display(tt)))
	return types.Union()
}

// taskVariableMember resolves members of the hidden `task` variable
// (WDL >= 1.2).
func taskVariableMember(name string) (types.Type, bool) {
	switch name {
	case "name", "id", "container":
		return types.Primitive(types.String), true
	case "attempt", "cpu":
		return types.Primitive(types.Int), true
	case "memory":
		return types.Primitive(types.Int), true
	case "return_code":
		return types.Primitive(types.Int).AsOptional(), true
	case "end_time":
		return types.Primitive(types.Int).AsOptional(), true
	case "meta", "parameter_meta":
		return types.Object(), true
	}
	return types.Union(), false
}

// checkPlaceholder type-checks the expression inside `~{ ... }` and its
// options. A placeholder renders any primitive (or Union/None); with a
// `sep` option it renders an array of required primitives.
func (d *Document) checkPlaceholder(ctx exprContext, p *ast.Placeholder) {
	inner := exprContext{scope: ctx.scope, placeholder: true}

	hasSep := false
	for _, opt := range p.Options() {
		if opt.Value != nil {
			d.typeOfExpr(inner, opt.Value)
		}
		if opt.Name == "sep" {
			hasSep = true
		}
	}

	e := p.Expr()
	t := d.typeOfExpr(inner, e)
	if t.IsUnion() || t.IsNone() {
		return
	}

	if hasSep {
		if t.Kind() == types.KindCompound && !t.Optional() {
			if def := d.Types.Def(t.ID()); def.Array != nil {
				elem := def.Array.Elem
				if elem.IsUnion() || (elem.IsPrimitive() && !elem.Optional()) {
					return
				}
			}
		}
		d.diags.Add(diag.Errorf(p.Span(),
			"cannot coerce to string: sep placeholders require an array of required primitives, found %s",
			d.Types.Display(t)))
		return
	}

	if !t.IsPrimitive() {
		d.diags.Add(diag.Errorf(p.Span(),
			"cannot coerce to string: placeholder has type %s", d.Types.Display(t)))
	}
}
