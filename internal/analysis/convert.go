package analysis

import (
	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// collectStructs runs phase two: local structs are added with no namespace,
// then each namespace contributes its structs under their original or
// aliased names. Identically-named imports collide silently when the
// structures match and are diagnosed when they differ.
func collectStructs(doc *Document, root *ast.Document) {
	for _, def := range root.Structs() {
		name := def.Name()
		if name == "" {
			continue
		}
		span := def.Span()
		if tok := def.NameToken(); tok != nil {
			span = tok.Span()
		}
		if existing := doc.StructByName(name); existing != nil {
			doc.diags.Add(diag.Errorf(span, "conflicting struct name %q", name).
				WithLabel("first defined here", existing.Span))
			continue
		}
		doc.Structs = append(doc.Structs, &Struct{
			Name: name,
			Span: span,
			Def:  def,
			Type: types.Union(),
		})
	}

	for _, imp := range root.Imports() {
		ns := doc.Namespace(imp.Namespace())
		if ns == nil {
			continue
		}

		aliases := make(map[string]string)
		for _, alias := range imp.Aliases() {
			source, target := alias.Names()
			if source != nil && target != nil {
				aliases[source.Text()] = target.Text()
			}
		}

		for _, imported := range ns.Document.Structs {
			name := imported.Name
			if alias, ok := aliases[name]; ok {
				name = alias
			}
			importedType := doc.Types.Import(ns.Document.Types, imported.Type)

			existing := doc.StructByName(name)
			if existing == nil {
				doc.Structs = append(doc.Structs, &Struct{
					Name:      name,
					Span:      imp.Span(),
					Namespace: ns.Name,
					Type:      importedType,
					typeSet:   true,
				})
				continue
			}
			if existing.Namespace == "" {
				doc.diags.Add(diag.Errorf(imp.Span(),
					"struct %q conflicts with an import of the same name", name).
					WithLabel("local struct defined here", existing.Span).
					WithFix("alias the imported struct with `alias` on the import"))
				continue
			}
			// Import/import collision: identical structures share silently.
			if existing.typeSet && !doc.Types.Eq(existing.Type, importedType) {
				doc.diags.Add(diag.Errorf(imp.Span(),
					"imported struct conflict: %q is structurally different from a previous import", name).
					WithLabel("previously imported here", existing.Span).
					WithFix("alias one of the imports with `alias`"))
			}
		}
	}
}

// populateStructTypes runs phase three: local structs convert to types in
// topological order of their references; any reference cycle is a
// recursive-struct diagnostic and the cycle members stay Union.
func populateStructTypes(doc *Document) {
	local := make(map[string]*Struct)
	for _, s := range doc.Structs {
		if s.Namespace == "" && s.Def != nil {
			local[s.Name] = s
		}
	}

	// refs records, per local struct, the local structs it references
	// through non-optional member nesting.
	refs := make(map[string][]string)
	for name, s := range local {
		seen := make(map[string]bool)
		for _, member := range s.Def.Members() {
			collectTypeRefs(member.Type(), func(ref string) {
				if _, ok := local[ref]; ok && !seen[ref] {
					seen[ref] = true
					refs[name] = append(refs[name], ref)
				}
			})
		}
	}

	// Depth-first cycle detection and post-order population.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var visit func(name string) bool
	visit = func(name string) bool {
		switch color[name] {
		case gray:
			return false
		case black:
			return true
		}
		color[name] = gray
		ok := true
		for _, ref := range refs[name] {
			if !visit(ref) {
				ok = false
			}
		}
		color[name] = black
		if !ok {
			return false
		}
		populateStruct(doc, local[name])
		return true
	}

	// Deterministic order: document order of the struct list.
	reported := false
	for _, s := range doc.Structs {
		if s.Namespace != "" || s.Def == nil {
			continue
		}
		if color[s.Name] == white {
			if !visit(s.Name) && !reported {
				doc.diags.Add(diag.Errorf(s.Span, "recursive struct %q", s.Name).
					WithFix("break the cycle with an optional or removed member"))
				reported = true
			}
		}
	}
}

// collectTypeRefs walks a type's syntax and reports each referenced type
// name reachable through non-optional nesting.
func collectTypeRefs(t *ast.Type, fn func(name string)) {
	if t == nil || t.Optional() {
		return
	}
	if t.Kind() == ast.TypeRef {
		fn(t.Name())
		return
	}
	for _, nested := range t.TypeParams() {
		collectTypeRefs(nested, fn)
	}
}

func populateStruct(doc *Document, s *Struct) {
	if s.typeSet {
		return
	}
	members := make([]types.Member, 0, len(s.Def.Members()))
	for _, m := range s.Def.Members() {
		members = append(members, types.Member{
			Name: m.Name(),
			Type: doc.convertType(m.Type()),
		})
	}
	s.Type = doc.Types.Struct(s.Name, members)
	s.typeSet = true
}

// convertType lowers a syntactic type into the document's arena. Unknown
// type names are reported once per document and become Union so one typo
// does not cascade.
func (d *Document) convertType(t *ast.Type) types.Type {
	if t == nil {
		return types.Union()
	}
	var converted types.Type
	switch t.Kind() {
	case ast.TypePrimitive:
		converted = types.Primitive(primitiveKindOf(t.PrimitiveKeyword()))
	case ast.TypeArray:
		params := t.TypeParams()
		elem := types.Union()
		if len(params) > 0 {
			elem = d.convertType(params[0])
		}
		if t.NonEmpty() {
			converted = d.Types.NonEmptyArray(elem)
		} else {
			converted = d.Types.Array(elem)
		}
	case ast.TypeMap:
		params := t.TypeParams()
		key, value := types.Union(), types.Union()
		if len(params) > 0 {
			key = d.convertType(params[0])
		}
		if len(params) > 1 {
			value = d.convertType(params[1])
		}
		if !key.IsUnion() && !key.IsPrimitive() {
			doc := d
			doc.diags.Add(diag.Errorf(params[0].Span(), "map keys must be primitive types"))
			key = types.Union()
		}
		converted = d.Types.Map(key, value)
	case ast.TypePair:
		params := t.TypeParams()
		left, right := types.Union(), types.Union()
		if len(params) > 0 {
			left = d.convertType(params[0])
		}
		if len(params) > 1 {
			right = d.convertType(params[1])
		}
		converted = d.Types.Pair(left, right)
	case ast.TypeObject:
		converted = types.Object()
	case ast.TypeRef:
		name := t.Name()
		if s := d.StructByName(name); s != nil && s.typeSet {
			converted = s.Type
		} else if s != nil {
			// Still populating: a cycle was reported; stay indeterminate.
			converted = types.Union()
		} else {
			if d.unknownTypes == nil {
				d.unknownTypes = make(map[string]bool)
			}
			if !d.unknownTypes[name] {
				d.unknownTypes[name] = true
				d.diags.Add(diag.Errorf(t.Span(), "unknown type %q", name))
			}
			converted = types.Union()
		}
	default:
		converted = types.Union()
	}

	if t.Optional() {
		converted = converted.AsOptional()
	}
	return converted
}

func primitiveKindOf(kw syntax.Kind) types.PrimitiveKind {
	switch kw {
	case syntax.KindBooleanTypeKeyword:
		return types.Boolean
	case syntax.KindIntTypeKeyword:
		return types.Int
	case syntax.KindFloatTypeKeyword:
		return types.Float
	case syntax.KindStringTypeKeyword:
		return types.String
	case syntax.KindFileTypeKeyword:
		return types.File
	case syntax.KindDirectoryTypeKeyword:
		return types.Directory
	default:
		return types.String
	}
}
