package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching against the typed errors below
var (
	ErrSchemaMismatch          = errors.New("schema mismatch")
	ErrOutOfRange              = errors.New("out of range")
	ErrInvalidIndexDeclaration = errors.New("invalid index declaration")
)

// SchemaMismatchError reports a row whose arity does not match the
// declared columns. The offending call has no effect.
type SchemaMismatchError struct {
	Table    string // table name (may be empty)
	Expected int    // declared column count
	Got      int    // values supplied
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: expected %d values, got %d",
		tableLabel(e.Table), e.Expected, e.Got)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// OutOfRangeError reports a row or column position outside current bounds
type OutOfRangeError struct {
	Table string
	Axis  string // "row" or "column"
	Index int
	Bound int // valid positions are [0, Bound)
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %d out of range in %s (valid: 0..%d)",
		e.Axis, e.Index, tableLabel(e.Table), e.Bound-1)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// InvalidIndexError is returned at construction when the index column
// declaration cannot identify rows
type InvalidIndexError struct {
	Index       int
	ColumnCount int
	Reason      string
}

func (e *InvalidIndexError) Error() string {
	var parts []string
	parts = append(parts, "invalid index declaration")
	if e.Index >= 0 {
		parts = append(parts, fmt.Sprintf("index %d", e.Index))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	parts = append(parts, fmt.Sprintf("%d columns", e.ColumnCount))
	return strings.Join(parts, " - ")
}

func (e *InvalidIndexError) Is(target error) bool { return target == ErrInvalidIndexDeclaration }

func newRowOutOfRange(table string, index, bound int) *OutOfRangeError {
	return &OutOfRangeError{Table: table, Axis: "row", Index: index, Bound: bound}
}

func newColumnOutOfRange(table string, index, bound int) *OutOfRangeError {
	return &OutOfRangeError{Table: table, Axis: "column", Index: index, Bound: bound}
}

func tableLabel(name string) string {
	if name == "" {
		return "table"
	}
	return "table " + name
}
