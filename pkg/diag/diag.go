// Package diag defines the uniform diagnostic shape every error surface
// of the build database returns: a heading line, a table of rows, and an
// optional free-form body. cmd/builddb renders this structure directly to
// the terminal; callers embedding the engine can instead inspect Kind and
// Rows programmatically.
package diag

import (
	"fmt"
	"strings"
)

// Kind discriminates the handful of diagnostic shapes the engine raises.
// These mirror the five failure modes a build can hit: a rule demanding
// its own in-flight key, a rule's execute collaborator returning an
// error, a dependency cycle discovered while ordering keys, a validity
// check catching a stored value the rules disagree on, and an
// unreachable internal state.
type Kind string

const (
	KindRuleRecursion     Kind = "RuleRecursion"
	KindRuleExecution     Kind = "RuleExecution"
	KindDatabaseCyclic    Kind = "DatabaseCyclic"
	KindLintFailure       Kind = "LintFailure"
	KindInternalInvariant Kind = "InternalInvariant"
)

// Row is one line of the diagnostic's tabular body, rendered as
// "label: detail" when printed.
type Row struct {
	Label  string
	Detail string
}

// Diagnostic is a structured error: a heading summarizing what went
// wrong, zero or more labeled rows giving specifics, and an optional
// free-text body (a wrapped error's message, a stack trace-like list).
type Diagnostic struct {
	Kind    Kind
	Heading string
	Rows    []Row
	Body    string

	cause error
}

// Error renders the diagnostic as "heading\n  label: detail\n...\nbody".
func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Heading)
	for _, row := range d.Rows {
		fmt.Fprintf(&b, "\n  %s: %s", row.Label, row.Detail)
	}
	if d.Body != "" {
		b.WriteString("\n")
		b.WriteString(d.Body)
	}
	return b.String()
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (d *Diagnostic) Unwrap() error {
	return d.cause
}

// NewRuleRecursion reports a key demanded while it is already being built
// by an ancestor frame on the same call stack.
func NewRuleRecursion(key string, stack []string) *Diagnostic {
	rows := make([]Row, 0, len(stack)+1)
	rows = append(rows, Row{Label: "key", Detail: key})
	for i, frame := range stack {
		rows = append(rows, Row{Label: fmt.Sprintf("stack[%d]", i), Detail: frame})
	}
	return &Diagnostic{
		Kind:    KindRuleRecursion,
		Heading: fmt.Sprintf("build cycle: %s depends on itself", key),
		Rows:    rows,
	}
}

// NewRuleExecution wraps an error an execute collaborator returned while
// producing key.
func NewRuleExecution(key string, cause error) *Diagnostic {
	return &Diagnostic{
		Kind:    KindRuleExecution,
		Heading: fmt.Sprintf("rule failed: %s", key),
		Rows:    []Row{{Label: "key", Detail: key}},
		Body:    cause.Error(),
		cause:   cause,
	}
}

// NewDatabaseCyclic reports a dependency cycle found while computing a
// topological build order. offending lists up to ten keys still stuck in
// the cycle; overflow counts any further ones that were elided.
func NewDatabaseCyclic(offending []string, overflow int) *Diagnostic {
	rows := make([]Row, 0, len(offending)+1)
	for i, key := range offending {
		rows = append(rows, Row{Label: fmt.Sprintf("cycle[%d]", i), Detail: key})
	}
	if overflow > 0 {
		rows = append(rows, Row{Label: "elided", Detail: fmt.Sprintf("%d more key(s)", overflow)})
	}
	return &Diagnostic{
		Kind:    KindDatabaseCyclic,
		Heading: "dependency graph is cyclic",
		Rows:    rows,
	}
}

// Mismatch is one stored-vs-recorded disagreement the validity checker
// found.
type Mismatch struct {
	Key      string
	Recorded string
	Stored   string
}

// NewLintFailure reports that re-running stored for one or more keys
// produced a value different from what the database has on record.
func NewLintFailure(mismatches []Mismatch) *Diagnostic {
	rows := make([]Row, 0, len(mismatches))
	for _, m := range mismatches {
		rows = append(rows, Row{
			Label:  m.Key,
			Detail: fmt.Sprintf("recorded=%s stored=%s", m.Recorded, m.Stored),
		})
	}
	return &Diagnostic{
		Kind:    KindLintFailure,
		Heading: fmt.Sprintf("validity check found %d mismatch(es)", len(mismatches)),
		Rows:    rows,
	}
}

// NewInternalInvariant reports a state the engine believes is
// unreachable — a bug in the database itself rather than in a rule.
func NewInternalInvariant(msg string) *Diagnostic {
	return &Diagnostic{
		Kind:    KindInternalInvariant,
		Heading: "internal invariant violated",
		Body:    msg,
	}
}
