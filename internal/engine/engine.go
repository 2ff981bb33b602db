package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/antigravity-dev/wdlkit/internal/analysis"
	"github.com/antigravity-dev/wdlkit/internal/ast"
	"github.com/antigravity-dev/wdlkit/internal/backend"
	"github.com/antigravity-dev/wdlkit/internal/types"
)

// Options configure an Evaluator.
type Options struct {
	// Backend executes task commands.
	Backend backend.Backend
	// Logger receives evaluation progress.
	Logger *slog.Logger
	// WorkDir is the root for per-task work directories.
	WorkDir string
	// MaxConcurrency bounds concurrent scatter iterations. Zero uses the
	// backend's advertised maximum.
	MaxConcurrency int64
	// MaxRetries is the number of re-attempts after a failed task.
	MaxRetries int
}

// Outputs are the ordered results of a workflow or task invocation.
type Outputs struct {
	Members []ObjectMember
}

// Get returns the named output.
func (o *Outputs) Get(name string) (Value, bool) {
	for _, m := range o.Members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return NoneValue(), false
}

// Evaluator runs analyzed documents.
type Evaluator struct {
	opts Options
	sem  *semaphore.Weighted
}

// New returns an Evaluator. The backend is required.
func New(opts Options) (*Evaluator, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("an execution backend is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if opts.WorkDir == "" {
		dir, err := os.MkdirTemp("", "wdlkit-run-")
		if err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
		opts.WorkDir = dir
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = opts.Backend.MaxConcurrency()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	return &Evaluator{
		opts: opts,
		sem:  semaphore.NewWeighted(opts.MaxConcurrency),
	}, nil
}

// Run validates the inputs and evaluates the named workflow or task.
func (e *Evaluator) Run(ctx context.Context, doc *analysis.Document, root string, inputs *Inputs) (*Outputs, error) {
	if doc.HasErrors() {
		return nil, fmt.Errorf("document %s has analysis errors", doc.URI)
	}
	if inputs == nil {
		if wf := doc.Workflow; wf != nil && wf.Name == root {
			inputs = &Inputs{Workflow: NewWorkflowInputs()}
		} else {
			inputs = &Inputs{Task: NewTaskInputs()}
		}
	}
	if err := inputs.Validate(doc, root); err != nil {
		return nil, fmt.Errorf("validate inputs: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if wf := doc.Workflow; wf != nil && wf.Name == root {
		return e.evaluateWorkflow(ctx, doc, wf, inputs.Workflow, root)
	}
	task := doc.Task(root)
	if task == nil {
		return nil, fmt.Errorf("document has no workflow or task named %q", root)
	}
	members, err := e.evaluateTask(ctx, doc, task, inputs.Task, root)
	if err != nil {
		return nil, err
	}
	return &Outputs{Members: members}, nil
}

// evaluation is the shared state of one workflow invocation: the document,
// the scopes lock, and the scope pool. All scope reads and writes for the
// invocation go through mu.
type evaluation struct {
	e      *Evaluator
	doc    *analysis.Document
	logger *slog.Logger

	mu   sync.RWMutex
	pool scopePool
}

func (e *Evaluator) newEvaluation(doc *analysis.Document) *evaluation {
	return &evaluation{
		e:      e,
		doc:    doc,
		logger: e.opts.Logger.With("component", "engine", "document", filepath.Base(doc.URI)),
	}
}

// evalDeclLocked evaluates a declaration's effective expression under a
// read lock and publishes the value under a write lock, coercing to the
// declared type.
func (ev *evaluation) evalDeclLocked(decl *ast.Decl, sc *scope, workDir string, provided *Value) error {
	declared, ok := ev.doc.DeclType(decl.Span().Start)
	if !ok {
		declared = types.Union()
	}

	var value Value
	if provided != nil {
		value = *provided
	} else if expr := decl.Expr(); expr != nil {
		ev.mu.RLock()
		c := &evalContext{ev: ev, scope: sc, workDir: workDir}
		v, err := c.eval(expr)
		ev.mu.RUnlock()
		if err != nil {
			return fmt.Errorf("evaluate %q: %w", decl.Name(), err)
		}
		value = v
	} else {
		value = NoneValue()
	}

	coerced, err := value.Coerce(ev.doc.Types, declared)
	if err != nil {
		return fmt.Errorf("assign %q: %w", decl.Name(), err)
	}

	ev.mu.Lock()
	sc.insert(decl.Name(), coerced)
	ev.mu.Unlock()
	return nil
}
