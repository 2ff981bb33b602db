// Package diag defines the diagnostic model shared by the parser, the
// analyzer, and the engine. Diagnostics carry a severity, a primary source
// span, optional secondary labels, and an optional one-line fix suggestion.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// Error marks a diagnostic that invalidates the construct it points at.
	Error Severity = iota
	// Warning marks a diagnostic for suspicious but valid input.
	Warning
	// Note marks an informational diagnostic.
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range into a source file.
type Span struct {
	Start int
	Len   int
}

// End returns one past the last byte of the span.
func (s Span) End() int { return s.Start + s.Len }

// Contains reports whether the given offset falls inside the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End()
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End())
}

// Label attaches a secondary message to its own span.
type Label struct {
	Message string
	Span    Span
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Severity Severity
	Message  string
	Span     Span
	Labels   []Label
	Fix      string
}

// Errorf builds an Error diagnostic with a formatted message.
func Errorf(span Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Error, Message: fmt.Sprintf(format, args...), Span: span}
}

// Warningf builds a Warning diagnostic with a formatted message.
func Warningf(span Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Warning, Message: fmt.Sprintf(format, args...), Span: span}
}

// WithLabel returns a copy of the diagnostic with an extra label appended.
func (d Diagnostic) WithLabel(message string, span Span) Diagnostic {
	labels := make([]Label, 0, len(d.Labels)+1)
	labels = append(labels, d.Labels...)
	labels = append(labels, Label{Message: message, Span: span})
	d.Labels = labels
	return d
}

// WithFix returns a copy of the diagnostic with a fix suggestion.
func (d Diagnostic) WithFix(fix string) Diagnostic {
	d.Fix = fix
	return d
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (%s)", d.Severity, d.Message, d.Span)
	for _, l := range d.Labels {
		fmt.Fprintf(&b, "\n  label: %s (%s)", l.Message, l.Span)
	}
	if d.Fix != "" {
		fmt.Fprintf(&b, "\n  fix: %s", d.Fix)
	}
	return b.String()
}

// List collects diagnostics during a parse or analysis pass.
type List struct {
	items []Diagnostic
}

// Add appends a diagnostic to the list.
func (l *List) Add(d Diagnostic) {
	l.items = append(l.items, d)
}

// Extend appends every diagnostic from ds.
func (l *List) Extend(ds []Diagnostic) {
	l.items = append(l.items, ds...)
}

// Len returns the number of collected diagnostics.
func (l *List) Len() int { return len(l.items) }

// HasErrors reports whether any collected diagnostic is an Error.
func (l *List) HasErrors() bool {
	for _, d := range l.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Items returns the collected diagnostics sorted by span start, then by
// severity. Sorting keeps output order stable across runs.
func (l *List) Items() []Diagnostic {
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Severity < out[j].Severity
	})
	return out
}
