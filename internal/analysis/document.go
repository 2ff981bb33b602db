// Package analysis turns parsed WDL documents into a type-checked document
// graph. For each document it resolves imports, collects struct types,
// builds task and workflow scopes, and type-checks every declaration,
// section, and expression, accumulating diagnostics instead of failing.
package analysis

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/graph"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/syntax/parser"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// Namespace binds an imported document to a local name.
type Namespace struct {
	Name     string
	URI      string
	Document *Document
	Span     diag.Span
}

// Struct is a struct known to a document, local or imported.
type Struct struct {
	Name string
	Span diag.Span
	// Namespace is empty for local structs.
	Namespace string
	// Def is nil for imported structs whose definition lives in the source
	// document.
	Def *ast.StructDefinition
	// Type is the converted struct type; Union until population succeeds.
	Type    types.Type
	typeSet bool
}

// Task is an analyzed task.
type Task struct {
	Name     string
	NameSpan diag.Span
	Scope    ScopeIndex
	Def      *ast.TaskDefinition
	Graph    *graph.Graph
	// Inputs and Outputs preserve declaration order.
	Inputs  []types.Member
	Outputs []types.Member
	// RequiredInputs lists inputs without defaults.
	RequiredInputs map[string]bool
}

// Input returns the named input and whether it exists.
func (t *Task) Input(name string) (types.Member, bool) {
	for _, m := range t.Inputs {
		if m.Name == name {
			return m, true
		}
	}
	return types.Member{}, false
}

// Workflow is an analyzed workflow.
type Workflow struct {
	Name              string
	NameSpan          diag.Span
	Scope             ScopeIndex
	Def               *ast.WorkflowDefinition
	Graph             *graph.Graph
	AllowNestedInputs bool
	Inputs            []types.Member
	Outputs           []types.Member
	RequiredInputs    map[string]bool
	// Calls maps each call name to its resolved target.
	Calls map[string]*Call
}

// Input returns the named input and whether it exists.
func (w *Workflow) Input(name string) (types.Member, bool) {
	for _, m := range w.Inputs {
		if m.Name == name {
			return m, true
		}
	}
	return types.Member{}, false
}

// Call records a resolved call statement.
type Call struct {
	Name      string
	Namespace string
	Target    string
	// Task and TargetWorkflow point into the target document; exactly one
	// is set for a resolved call.
	Task           *Task
	TargetWorkflow *Workflow
	TargetDoc      *Document
	// Bound lists input names explicitly bound at the call site.
	Bound map[string]bool
	Stmt  *ast.CallStatement
}

// Document is the analyzed form of one WDL source file.
type Document struct {
	URI     string
	Version string
	Source  string
	Root    *syntax.Node

	Scopes     []*Scope
	Namespaces []Namespace
	Structs    []*Struct
	Tasks      []*Task
	Workflow   *Workflow
	Types      *types.Arena

	diags        diag.List
	unknownTypes map[string]bool
	// declTypes records the resolved declared type of every checked
	// declaration, keyed by the declaration's span start. The engine reads
	// these instead of re-resolving types at runtime.
	declTypes map[int]types.Type

	major, minor int
}

// DeclType returns the resolved type of the declaration starting at the
// given source offset.
func (d *Document) DeclType(start int) (types.Type, bool) {
	t, ok := d.declTypes[start]
	return t, ok
}

// Diagnostics returns the document's diagnostics in stable order.
func (d *Document) Diagnostics() []diag.Diagnostic { return d.diags.Items() }

// HasErrors reports whether any diagnostic is an error.
func (d *Document) HasErrors() bool { return d.diags.HasErrors() }

// Task returns the named task, or nil.
func (d *Document) Task(name string) *Task {
	for _, t := range d.Tasks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Namespace returns the named namespace, or nil.
func (d *Document) Namespace(name string) *Namespace {
	for i := range d.Namespaces {
		if d.Namespaces[i].Name == name {
			return &d.Namespaces[i]
		}
	}
	return nil
}

// StructByName returns the named struct, or nil.
func (d *Document) StructByName(name string) *Struct {
	for _, s := range d.Structs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Supports reports whether the document's version is at least major.minor.
func (d *Document) Supports(major, minor int) bool {
	if d.major != major {
		return d.major > major
	}
	return d.minor >= minor
}

// Resolver loads import targets. URIs are resolved relative to the
// importing document before the resolver sees them.
type Resolver interface {
	ReadDocument(uri string) (string, error)
}

// FileResolver reads documents from the local filesystem.
type FileResolver struct{}

// ReadDocument implements Resolver.
func (FileResolver) ReadDocument(uri string) (string, error) {
	data, err := os.ReadFile(uri)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", uri, err)
	}
	return string(data), nil
}

// Analyzer parses and analyzes documents, following imports. Analyzed
// documents are cached per URI, so a diamond import analyzes once.
type Analyzer struct {
	resolver Resolver
	logger   *slog.Logger

	cache map[string]*Document
	// stack tracks the import chain for cycle detection.
	stack []string
}

// NewAnalyzer returns an analyzer using the given resolver.
func NewAnalyzer(resolver Resolver, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return &Analyzer{
		resolver: resolver,
		logger:   logger.With("component", "analysis"),
		cache:    make(map[string]*Document),
	}
}

// Analyze loads, parses, and analyzes the document at uri.
func (a *Analyzer) Analyze(uri string) (*Document, error) {
	src, err := a.resolver.ReadDocument(uri)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeSource(uri, src), nil
}

// AnalyzeSource parses and analyzes in-memory source registered under uri.
func (a *Analyzer) AnalyzeSource(uri, src string) *Document {
	if doc, ok := a.cache[uri]; ok {
		return doc
	}

	result := parser.Parse(src)
	doc := &Document{
		URI:     uri,
		Version: result.Version,
		Source:  src,
		Root:    syntax.NewRoot(result.Root),
		Types:   types.NewArena(),
		major:   1,
		minor:   2,
	}
	doc.diags.Extend(result.Diagnostics)
	parseVersion(doc)

	a.cache[uri] = doc
	a.stack = append(a.stack, uri)
	defer func() { a.stack = a.stack[:len(a.stack)-1] }()

	root := ast.CastDocument(doc.Root)
	if root == nil {
		return doc
	}

	a.logger.Debug("analyzing document", "uri", uri)
	a.resolveImports(doc, root)
	collectStructs(doc, root)
	populateStructTypes(doc)
	processTasks(doc, root)
	processWorkflow(doc, root)
	return doc
}

func parseVersion(doc *Document) {
	parts := strings.SplitN(doc.Version, ".", 3)
	if major, err := strconv.Atoi(parts[0]); err == nil {
		doc.major = major
		doc.minor = 0
		if len(parts) > 1 {
			digits := parts[1]
			for i := 0; i < len(digits); i++ {
				if digits[i] < '0' || digits[i] > '9' {
					digits = digits[:i]
					break
				}
			}
			doc.minor, _ = strconv.Atoi(digits)
		}
	}
}

// resolveImports runs phase one: load each import, detect cycles and
// version mismatches, and record the namespaces. A failed import produces a
// diagnostic and is skipped; analysis continues.
func (a *Analyzer) resolveImports(doc *Document, root *ast.Document) {
	for _, imp := range root.Imports() {
		uri := imp.URI()
		if uri == "" {
			doc.diags.Add(diag.Errorf(imp.Span(), "import is missing a path"))
			continue
		}
		resolved := resolveURI(doc.URI, uri)

		nsName := imp.Namespace()
		if nsName == "" {
			doc.diags.Add(diag.Errorf(imp.Span(), "cannot derive a namespace from import path %q", uri).
				WithFix("add an explicit `as <name>` clause"))
			continue
		}

		if existing := doc.Namespace(nsName); existing != nil {
			doc.diags.Add(diag.Errorf(imp.Span(), "namespace conflict: %q is already in use", nsName).
				WithLabel("first used by this import", existing.Span))
			continue
		}

		if a.onStack(resolved) {
			doc.diags.Add(diag.Errorf(imp.Span(), "import of %q introduces a dependency cycle", uri))
			continue
		}

		src, err := a.resolver.ReadDocument(resolved)
		if err != nil {
			doc.diags.Add(diag.Errorf(imp.Span(), "import failure: cannot load %q: %v", uri, err))
			continue
		}
		imported := a.AnalyzeSource(resolved, src)

		if imported.major != doc.major {
			doc.diags.Add(diag.Errorf(imp.Span(),
				"incompatible import: document version %s cannot import version %s", doc.Version, imported.Version))
			continue
		}

		doc.Namespaces = append(doc.Namespaces, Namespace{
			Name:     nsName,
			URI:      resolved,
			Document: imported,
			Span:     imp.Span(),
		})
	}
}

func (a *Analyzer) onStack(uri string) bool {
	for _, s := range a.stack {
		if s == uri {
			return true
		}
	}
	return false
}

// resolveURI joins a relative import path against the importer's location.
func resolveURI(base, uri string) string {
	if filepath.IsAbs(uri) || strings.Contains(uri, "://") {
		return uri
	}
	return filepath.Join(filepath.Dir(base), uri)
}
