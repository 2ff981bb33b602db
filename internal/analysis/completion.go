package analysis

import (
	"sort"

	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// CompletionItemKind classifies a completion candidate.
type CompletionItemKind int

const (
	// CompletionKeyword is a language keyword.
	CompletionKeyword CompletionItemKind = iota
	// CompletionName is a name in scope.
	CompletionName
	// CompletionFunction is a standard-library function.
	CompletionFunction
	// CompletionMember is a struct, pair, or call member.
	CompletionMember
	// CompletionKey is a requirement or hint key.
	CompletionKey
)

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label  string
	Kind   CompletionItemKind
	Detail string
}

// Completion walks the CST at the offset, classifies the cursor context,
// and returns candidate items. This is the surface an LSP server consumes.
func Completion(doc *Document, offset int) []CompletionItem {
	tok := doc.Root.TokenAtOffset(offset)
	if tok == nil {
		return keywordItems("version", "import", "struct", "task", "workflow")
	}

	// Member access: complete the members of the accessed value.
	if parent := tok.Parent(); parent != nil {
		if parent.Kind() == syntax.KindAccessExprNode ||
			(tok.Kind() == syntax.KindDot && parent.Kind() == syntax.KindNameRefNode) {
			if items := doc.memberCompletions(parent, offset); items != nil {
				return items
			}
		}
	}

	for n := tok.Parent(); n != nil; n = n.Parent() {
		switch n.Kind() {
		case syntax.KindRuntimeSectionNode, syntax.KindRequirementsSectionNode:
			return requirementKeyItems(doc)
		case syntax.KindHintsSectionNode:
			return hintKeyItems()
		case syntax.KindTaskDefinitionNode:
			if insideBody(n, tok) {
				return append(
					keywordItems("input", "output", "command", "runtime", "requirements", "hints", "meta", "parameter_meta"),
					doc.scopeItems(offset)...)
			}
		case syntax.KindWorkflowDefinitionNode, syntax.KindScatterStatementNode, syntax.KindConditionalStatementNode:
			if insideBody(n, tok) {
				return append(
					keywordItems("call", "scatter", "if", "input", "output", "meta", "parameter_meta"),
					doc.scopeItems(offset)...)
			}
		case syntax.KindBoundDeclNode, syntax.KindCallInputItemNode, syntax.KindPlaceholderNode:
			items := doc.scopeItems(offset)
			for name := range stdlib {
				items = append(items, CompletionItem{Label: name, Kind: CompletionFunction})
			}
			sortItems(items)
			return items
		}
	}

	return keywordItems("version", "import", "struct", "task", "workflow")
}

// insideBody reports whether the token falls between the node's braces.
func insideBody(n *syntax.Node, tok *syntax.Token) bool {
	open := n.FirstTokenByKind(syntax.KindOpenBrace)
	if open == nil {
		return false
	}
	return tok.Span().Start >= open.Span().End()
}

func (d *Document) memberCompletions(access *syntax.Node, offset int) []CompletionItem {
	// Resolve the access target through the innermost scope at the cursor.
	scope := d.InnermostScopeAt(offset)
	if scope == NoScope {
		return nil
	}
	var targetName string
	for _, c := range access.Children() {
		if c.Kind() == syntax.KindNameRefNode {
			if tok := c.FirstTokenByKind(syntax.KindIdent); tok != nil {
				targetName = tok.Text()
			}
			break
		}
	}
	if targetName == "" {
		return nil
	}
	entry, ok := d.Lookup(scope, targetName)
	if !ok {
		return nil
	}

	t := entry.Type
	if t.Kind() != types.KindCompound {
		return nil
	}
	def := d.Types.Def(t.ID())
	var items []CompletionItem
	switch {
	case def.Struct != nil:
		for _, m := range def.Struct.Members {
			items = append(items, CompletionItem{Label: m.Name, Kind: CompletionMember, Detail: d.Types.Display(m.Type)})
		}
	case def.Pair != nil:
		items = append(items,
			CompletionItem{Label: "left", Kind: CompletionMember, Detail: d.Types.Display(def.Pair.Left)},
			CompletionItem{Label: "right", Kind: CompletionMember, Detail: d.Types.Display(def.Pair.Right)})
	case def.Call != nil:
		for _, m := range def.Call.Outputs {
			items = append(items, CompletionItem{Label: m.Name, Kind: CompletionMember, Detail: d.Types.Display(m.Type)})
		}
	}
	return items
}

func (d *Document) scopeItems(offset int) []CompletionItem {
	scope := d.InnermostScopeAt(offset)
	var items []CompletionItem
	for scope != NoScope {
		s := d.Scopes[scope]
		for _, name := range s.Names() {
			entry, _ := s.Local(name)
			items = append(items, CompletionItem{
				Label:  name,
				Kind:   CompletionName,
				Detail: d.Types.Display(entry.Type),
			})
		}
		scope = s.Parent
	}
	return items
}

func keywordItems(words ...string) []CompletionItem {
	items := make([]CompletionItem, len(words))
	for i, w := range words {
		items[i] = CompletionItem{Label: w, Kind: CompletionKeyword}
	}
	return items
}

func requirementKeyItems(doc *Document) []CompletionItem {
	keys := []string{"container", "cpu", "memory", "gpu", "disks", "max_retries", "return_codes"}
	if doc.Supports(1, 2) {
		keys = append(keys, "fpga")
	}
	items := make([]CompletionItem, len(keys))
	for i, k := range keys {
		items[i] = CompletionItem{Label: k, Kind: CompletionKey}
	}
	return items
}

func hintKeyItems() []CompletionItem {
	keys := []string{"max_cpu", "max_memory", "disks", "gpu", "fpga", "short_task", "localization_optional", "inputs", "outputs"}
	items := make([]CompletionItem, len(keys))
	for i, k := range keys {
		items[i] = CompletionItem{Label: k, Kind: CompletionKey}
	}
	return items
}

func sortItems(items []CompletionItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
}
