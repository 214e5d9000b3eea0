package engine

import (
	"strings"

	"github.com/ssh352/nexus/internal/domain/value"
)

// Row is one record, aligned position by position with the table columns
type Row []value.Value

// Copy returns a row that shares no storage with r
func (r Row) Copy() Row {
	if r == nil {
		return nil
	}
	c := make(Row, len(r))
	copy(c, r)
	return c
}

// Project returns the values at the given column positions
func (r Row) Project(columns []int) []value.Value {
	out := make([]value.Value, len(columns))
	for i, c := range columns {
		out[i] = r[c]
	}
	return out
}

func (r Row) String() string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
