package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// evalContext evaluates expressions against one scope. The enclosing
// evaluation coordinates locking; expression evaluation itself never
// suspends.
type evalContext struct {
	ev    *evaluation
	scope *scope
	// stdout and stderr are bound inside task output sections.
	stdout string
	stderr string
	// workDir joins relative output paths.
	workDir string
}

func (c *evalContext) eval(e *ast.Expr) (Value, error) {
	if e == nil {
		return NoneValue(), fmt.Errorf("missing expression")
	}
	switch e.Kind() {
	case syntax.KindLiteralIntNode:
		v, ok := e.IntValue()
		if !ok {
			return NoneValue(), fmt.Errorf("invalid integer literal")
		}
		return IntValue(v), nil

	case syntax.KindLiteralFloatNode:
		v, ok := e.FloatValue()
		if !ok {
			return NoneValue(), fmt.Errorf("invalid float literal")
		}
		return FloatValue(v), nil

	case syntax.KindLiteralBoolNode:
		v, _ := e.BoolValue()
		return BooleanValue(v), nil

	case syntax.KindLiteralNoneNode:
		return NoneValue(), nil

	case syntax.KindLiteralStringNode:
		return c.evalString(e)

	case syntax.KindLiteralArrayNode:
		elems := make([]Value, 0, len(e.Elements()))
		for _, el := range e.Elements() {
			v, err := c.eval(el)
			if err != nil {
				return NoneValue(), err
			}
			elems = append(elems, v)
		}
		return ArrayOf(elems...), nil

	case syntax.KindLiteralPairNode:
		left, right := e.PairValues()
		lv, err := c.eval(left)
		if err != nil {
			return NoneValue(), err
		}
		rv, err := c.eval(right)
		if err != nil {
			return NoneValue(), err
		}
		return PairOf(lv, rv), nil

	case syntax.KindLiteralMapNode:
		entries := make([]MapEntry, 0, len(e.MapItems()))
		for _, item := range e.MapItems() {
			key, err := c.eval(item.Key)
			if err != nil {
				return NoneValue(), err
			}
			value, err := c.eval(item.Value)
			if err != nil {
				return NoneValue(), err
			}
			entries = append(entries, MapEntry{Key: key, Value: value})
		}
		return MapOf(entries), nil

	case syntax.KindLiteralObjectNode:
		members := make([]ObjectMember, 0, len(e.ObjectItems()))
		for _, item := range e.ObjectItems() {
			v, err := c.eval(item.Value)
			if err != nil {
				return NoneValue(), err
			}
			members = append(members, ObjectMember{Name: item.Name, Value: v})
		}
		return ObjectOf(members), nil

	case syntax.KindLiteralStructNode:
		return c.evalStructLiteral(e)

	case syntax.KindNameRefNode:
		name := e.Name()
		if v, ok := c.scope.lookup(name); ok {
			return v, nil
		}
		return NoneValue(), fmt.Errorf("unknown name %q", name)

	case syntax.KindParenExprNode:
		ops := e.Operands()
		if len(ops) != 1 {
			return NoneValue(), fmt.Errorf("malformed expression")
		}
		return c.eval(ops[0])

	case syntax.KindIfExprNode:
		cond, thenExpr, elseExpr := e.IfBranches()
		cv, err := c.eval(cond)
		if err != nil {
			return NoneValue(), err
		}
		if cv.Kind() != KindBoolean {
			return NoneValue(), fmt.Errorf("if condition is not a Boolean")
		}
		if cv.AsBoolean() {
			return c.eval(thenExpr)
		}
		return c.eval(elseExpr)

	case syntax.KindLogicalNotExprNode:
		ops := e.Operands()
		if len(ops) != 1 {
			return NoneValue(), fmt.Errorf("malformed expression")
		}
		v, err := c.eval(ops[0])
		if err != nil {
			return NoneValue(), err
		}
		if v.Kind() != KindBoolean {
			return NoneValue(), fmt.Errorf("logical not applied to a non-Boolean")
		}
		return BooleanValue(!v.AsBoolean()), nil

	case syntax.KindNegationExprNode:
		ops := e.Operands()
		if len(ops) != 1 {
			return NoneValue(), fmt.Errorf("malformed expression")
		}
		v, err := c.eval(ops[0])
		if err != nil {
			return NoneValue(), err
		}
		switch v.Kind() {
		case KindInt:
			return IntValue(-v.AsInt()), nil
		case KindFloat:
			return FloatValue(-v.AsFloat()), nil
		}
		return NoneValue(), fmt.Errorf("cannot negate %s", v.describe())

	case syntax.KindLogicalAndExprNode, syntax.KindLogicalOrExprNode:
		return c.evalLogical(e)

	case syntax.KindEqualityExprNode, syntax.KindInequalityExprNode:
		ops := e.Operands()
		if len(ops) != 2 {
			return NoneValue(), fmt.Errorf("malformed expression")
		}
		lv, err := c.eval(ops[0])
		if err != nil {
			return NoneValue(), err
		}
		rv, err := c.eval(ops[1])
		if err != nil {
			return NoneValue(), err
		}
		eq := lv.Equal(rv)
		if e.Kind() == syntax.KindInequalityExprNode {
			eq = !eq
		}
		return BooleanValue(eq), nil

	case syntax.KindLessExprNode, syntax.KindLessEqualExprNode,
		syntax.KindGreaterExprNode, syntax.KindGreaterEqualExprNode:
		return c.evalOrdering(e)

	case syntax.KindAdditionExprNode, syntax.KindSubtractionExprNode,
		syntax.KindMultiplicationExprNode, syntax.KindDivisionExprNode,
		syntax.KindModuloExprNode, syntax.KindExponentiationExprNode:
		return c.evalArithmetic(e)

	case syntax.KindCallExprNode:
		return c.evalCall(e)

	case syntax.KindIndexExprNode:
		return c.evalIndex(e)

	case syntax.KindAccessExprNode:
		return c.evalAccess(e)
	}
	return NoneValue(), fmt.Errorf("unsupported expression")
}

// evalString renders a string literal, interpolating placeholders.
func (c *evalContext) evalString(e *ast.Expr) (Value, error) {
	var b strings.Builder
	for _, part := range e.StringParts() {
		if part.Text != nil {
			b.WriteString(ast.Unescape(part.Text.Text()))
			continue
		}
		s, err := c.evalPlaceholder(part.Placeholder)
		if err != nil {
			return NoneValue(), err
		}
		b.WriteString(s)
	}
	return StringValue(b.String()), nil
}

// evalPlaceholder renders a placeholder to text, honoring the sep, true,
// false, and default options.
func (c *evalContext) evalPlaceholder(p *ast.Placeholder) (string, error) {
	var sep, trueText, falseText *string
	var defaultValue *Value
	for _, opt := range p.Options() {
		v, err := c.eval(opt.Value)
		if err != nil {
			return "", err
		}
		text := v.String()
		switch opt.Name {
		case "sep":
			sep = &text
		case "true":
			trueText = &text
		case "false":
			falseText = &text
		case "default":
			defaultValue = &v
		}
	}

	v, err := c.eval(p.Expr())
	if err != nil {
		return "", err
	}

	if v.IsNone() && defaultValue != nil {
		v = *defaultValue
	}

	switch {
	case v.IsNone():
		return "", nil
	case sep != nil:
		if v.Kind() != KindArray {
			return "", fmt.Errorf("sep placeholder requires an array value")
		}
		parts := make([]string, len(v.Array().Elems))
		for i, el := range v.Array().Elems {
			parts[i] = el.String()
		}
		return strings.Join(parts, *sep), nil
	case v.Kind() == KindBoolean && trueText != nil && falseText != nil:
		if v.AsBoolean() {
			return *trueText, nil
		}
		return *falseText, nil
	default:
		return v.String(), nil
	}
}

func (c *evalContext) evalStructLiteral(e *ast.Expr) (Value, error) {
	name := e.StructName()
	s := c.ev.doc.StructByName(name)
	if s == nil {
		return NoneValue(), fmt.Errorf("unknown struct %q", name)
	}
	members := make([]ObjectMember, 0, len(e.ObjectItems()))
	for _, item := range e.ObjectItems() {
		v, err := c.eval(item.Value)
		if err != nil {
			return NoneValue(), err
		}
		members = append(members, ObjectMember{Name: item.Name, Value: v})
	}
	value := StructOf(name, members)
	return value.Coerce(c.ev.doc.Types, s.Type)
}

func (c *evalContext) evalLogical(e *ast.Expr) (Value, error) {
	ops := e.Operands()
	if len(ops) != 2 {
		return NoneValue(), fmt.Errorf("malformed expression")
	}
	lv, err := c.eval(ops[0])
	if err != nil {
		return NoneValue(), err
	}
	if lv.Kind() != KindBoolean {
		return NoneValue(), fmt.Errorf("logical operand is not a Boolean")
	}
	// Short-circuit: the right side only evaluates when it can change the
	// result.
	if e.Kind() == syntax.KindLogicalAndExprNode && !lv.AsBoolean() {
		return BooleanValue(false), nil
	}
	if e.Kind() == syntax.KindLogicalOrExprNode && lv.AsBoolean() {
		return BooleanValue(true), nil
	}
	rv, err := c.eval(ops[1])
	if err != nil {
		return NoneValue(), err
	}
	if rv.Kind() != KindBoolean {
		return NoneValue(), fmt.Errorf("logical operand is not a Boolean")
	}
	return rv, nil
}

func (c *evalContext) evalOrdering(e *ast.Expr) (Value, error) {
	ops := e.Operands()
	if len(ops) != 2 {
		return NoneValue(), fmt.Errorf("malformed expression")
	}
	lv, err := c.eval(ops[0])
	if err != nil {
		return NoneValue(), err
	}
	rv, err := c.eval(ops[1])
	if err != nil {
		return NoneValue(), err
	}

	var cmp int
	switch {
	case lv.Kind() == KindString && rv.Kind() == KindString:
		cmp = strings.Compare(lv.AsString(), rv.AsString())
	case lv.Kind() == KindBoolean && rv.Kind() == KindBoolean:
		cmp = boolCompare(lv.AsBoolean(), rv.AsBoolean())
	case isNumeric(lv) && isNumeric(rv):
		lf, rf := lv.AsFloat(), rv.AsFloat()
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	default:
		return NoneValue(), fmt.Errorf("cannot order %s and %s", lv.describe(), rv.describe())
	}

	switch e.Kind() {
	case syntax.KindLessExprNode:
		return BooleanValue(cmp < 0), nil
	case syntax.KindLessEqualExprNode:
		return BooleanValue(cmp <= 0), nil
	case syntax.KindGreaterExprNode:
		return BooleanValue(cmp > 0), nil
	default:
		return BooleanValue(cmp >= 0), nil
	}
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case b:
		return -1
	default:
		return 1
	}
}

func isNumeric(v Value) bool {
	return v.Kind() == KindInt || v.Kind() == KindFloat
}

func isTextual(v Value) bool {
	switch v.Kind() {
	case KindString, KindFile, KindDirectory:
		return true
	}
	return false
}

func (c *evalContext) evalArithmetic(e *ast.Expr) (Value, error) {
	ops := e.Operands()
	if len(ops) != 2 {
		return NoneValue(), fmt.Errorf("malformed expression")
	}
	lv, err := c.eval(ops[0])
	if err != nil {
		return NoneValue(), err
	}
	rv, err := c.eval(ops[1])
	if err != nil {
		return NoneValue(), err
	}

	if e.Kind() == syntax.KindAdditionExprNode && (isTextual(lv) || isTextual(rv)) {
		if lv.IsNone() || rv.IsNone() {
			// Optional concat inside placeholders yields None.
			return NoneValue(), nil
		}
		return StringValue(lv.String() + rv.String()), nil
	}

	if !isNumeric(lv) || !isNumeric(rv) {
		return NoneValue(), fmt.Errorf("cannot apply a numeric operator to %s and %s", lv.describe(), rv.describe())
	}

	if lv.Kind() == KindInt && rv.Kind() == KindInt {
		a, b := lv.AsInt(), rv.AsInt()
		switch e.Kind() {
		case syntax.KindAdditionExprNode:
			return IntValue(a + b), nil
		case syntax.KindSubtractionExprNode:
			return IntValue(a - b), nil
		case syntax.KindMultiplicationExprNode:
			return IntValue(a * b), nil
		case syntax.KindDivisionExprNode:
			if b == 0 {
				return NoneValue(), fmt.Errorf("division by zero")
			}
			return IntValue(a / b), nil
		case syntax.KindModuloExprNode:
			if b == 0 {
				return NoneValue(), fmt.Errorf("division by zero")
			}
			return IntValue(a % b), nil
		case syntax.KindExponentiationExprNode:
			return IntValue(intPow(a, b)), nil
		}
	}

	a, b := lv.AsFloat(), rv.AsFloat()
	switch e.Kind() {
	case syntax.KindAdditionExprNode:
		return FloatValue(a + b), nil
	case syntax.KindSubtractionExprNode:
		return FloatValue(a - b), nil
	case syntax.KindMultiplicationExprNode:
		return FloatValue(a * b), nil
	case syntax.KindDivisionExprNode:
		if b == 0 {
			return NoneValue(), fmt.Errorf("division by zero")
		}
		return FloatValue(a / b), nil
	case syntax.KindModuloExprNode:
		if b == 0 {
			return NoneValue(), fmt.Errorf("division by zero")
		}
		return FloatValue(math.Mod(a, b)), nil
	case syntax.KindExponentiationExprNode:
		return FloatValue(math.Pow(a, b)), nil
	}
	return NoneValue(), fmt.Errorf("unsupported operator")
}

func intPow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func (c *evalContext) evalCall(e *ast.Expr) (Value, error) {
	name := e.CallTarget()
	impl, ok := stdlibImpl[name]
	if !ok {
		if _, known := stdlibKnown[name]; known {
			return NoneValue(), fmt.Errorf("function %q is not supported at runtime", name)
		}
		return NoneValue(), fmt.Errorf("unknown function %q", name)
	}
	args := make([]Value, 0, len(e.CallArgs()))
	for _, arg := range e.CallArgs() {
		v, err := c.eval(arg)
		if err != nil {
			return NoneValue(), err
		}
		args = append(args, v)
	}
	v, err := impl(c, args)
	if err != nil {
		return NoneValue(), fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func (c *evalContext) evalIndex(e *ast.Expr) (Value, error) {
	target, index := e.IndexParts()
	tv, err := c.eval(target)
	if err != nil {
		return NoneValue(), err
	}
	iv, err := c.eval(index)
	if err != nil {
		return NoneValue(), err
	}

	switch tv.Kind() {
	case KindArray:
		if iv.Kind() != KindInt {
			return NoneValue(), fmt.Errorf("array index is not an Int")
		}
		i := iv.AsInt()
		if i < 0 || i >= int64(len(tv.Array().Elems)) {
			return NoneValue(), fmt.Errorf("array index %d out of range (length %d)", i, len(tv.Array().Elems))
		}
		return tv.Array().Elems[i], nil
	case KindMap:
		if v, ok := tv.Map().Get(iv); ok {
			return v, nil
		}
		return NoneValue(), fmt.Errorf("map does not contain key %s", iv)
	}
	return NoneValue(), fmt.Errorf("cannot index %s", tv.describe())
}

func (c *evalContext) evalAccess(e *ast.Expr) (Value, error) {
	target, member := e.AccessParts()
	if member == nil {
		return NoneValue(), fmt.Errorf("malformed member access")
	}
	name := member.Text()
	tv, err := c.eval(target)
	if err != nil {
		return NoneValue(), err
	}

	switch tv.Kind() {
	case KindStruct, KindObject:
		if v, ok := tv.Object().Get(name); ok {
			return v, nil
		}
		return NoneValue(), fmt.Errorf("no member named %q", name)
	case KindPair:
		switch name {
		case "left":
			return tv.Pair().Left, nil
		case "right":
			return tv.Pair().Right, nil
		}
		return NoneValue(), fmt.Errorf("a pair has only left and right")
	case KindCall:
		if v, ok := tv.Call().Output(name); ok {
			return v, nil
		}
		return NoneValue(), fmt.Errorf("call has no output named %q", name)
	case KindTask:
		if v, ok := tv.Task().Member(name); ok {
			return v, nil
		}
		return NoneValue(), fmt.Errorf("%q is not a task member", name)
	}
	return NoneValue(), fmt.Errorf("cannot access a member of %s", tv.describe())
}
