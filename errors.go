package xsdfix

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaPathNotFound reports an element path the schema does not declare.
	ErrSchemaPathNotFound = errors.New("schema path not found")
	// ErrUnknownChildElement reports a child the parent's content model does not allow.
	ErrUnknownChildElement = errors.New("unknown child element")
	// ErrInvalidNumericDuplicate reports a conservative duplicate whose value is not a number.
	ErrInvalidNumericDuplicate = errors.New("invalid numeric duplicate")
	// ErrMalformedSourceTree reports a tree that cannot be cloned.
	ErrMalformedSourceTree = errors.New("malformed source tree")
	// ErrMissingNode reports an expected node that is absent or ambiguous.
	ErrMissingNode = errors.New("missing node")
)

// SchemaPathError is returned when an element path cannot be resolved.
type SchemaPathError struct {
	Path []QName
	Step int // index of the first step that failed
}

func (e *SchemaPathError) Error() string {
	return fmt.Sprintf("unable to find path in schema: %q", FormatPath(e.Path))
}

func (e *SchemaPathError) Unwrap() error { return ErrSchemaPathNotFound }

// UnknownChildError names a child absent from the parent's ordering.
type UnknownChildError struct {
	Parent  []QName
	Child   QName
	Allowed []QName
}

func (e *UnknownChildError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, q := range e.Allowed {
		allowed[i] = q.Local
	}
	return fmt.Sprintf("failed to find %q under %q in [%s]",
		e.Child.Local, FormatPath(e.Parent), strings.Join(allowed, " "))
}

func (e *UnknownChildError) Unwrap() error { return ErrUnknownChildElement }

// NumericDuplicateError carries the two values that could not be compared.
type NumericDuplicateError struct {
	Name     QName
	Previous string
	Current  string
	Err      error
}

func (e *NumericDuplicateError) Error() string {
	return fmt.Sprintf("cannot compare duplicate %s values %q and %q: %v",
		e.Name.Local, e.Previous, e.Current, e.Err)
}

func (e *NumericDuplicateError) Unwrap() []error { return []error{ErrInvalidNumericDuplicate, e.Err} }

// MalformedTreeError describes why a tree could not be cloned.
type MalformedTreeError struct {
	Path   string
	Reason string
}

func (e *MalformedTreeError) Error() string {
	if e.Path == "" {
		return "malformed source tree: " + e.Reason
	}
	return fmt.Sprintf("malformed source tree at %s: %s", e.Path, e.Reason)
}

func (e *MalformedTreeError) Unwrap() error { return ErrMalformedSourceTree }

// MissingNodeError reports how many nodes an expression matched when
// exactly one was required.
type MissingNodeError struct {
	Expr  string
	Found int
}

func (e *MissingNodeError) Error() string {
	if e.Found == 0 {
		return fmt.Sprintf("no node matches %s", e.Expr)
	}
	return fmt.Sprintf("expected one node for %s, found %d", e.Expr, e.Found)
}

func (e *MissingNodeError) Unwrap() error { return ErrMissingNode }

// FormatPath renders a path as /Local/Local/..., the form used in messages.
func FormatPath(path []QName) string {
	var sb strings.Builder
	for _, q := range path {
		sb.WriteByte('/')
		sb.WriteString(q.Local)
	}
	return sb.String()
}
