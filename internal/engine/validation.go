package engine

// checkArity validates a full row against the declared columns
func checkArity(table string, columns int, values Row) error {
	if len(values) != columns {
		return &SchemaMismatchError{Table: table, Expected: columns, Got: len(values)}
	}
	return nil
}

func checkRow(table string, row, rows int) error {
	if row < 0 || row >= rows {
		return newRowOutOfRange(table, row, rows)
	}
	return nil
}

func checkColumn(table string, column, columns int) error {
	if column < 0 || column >= columns {
		return newColumnOutOfRange(table, column, columns)
	}
	return nil
}

// validateIndices checks an index declaration: non-empty, in bounds, no repeats
func validateIndices(indices []int, columns int) error {
	if len(indices) == 0 {
		return &InvalidIndexError{Index: -1, ColumnCount: columns, Reason: "at least one index column is required"}
	}
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= columns {
			return &InvalidIndexError{Index: idx, ColumnCount: columns, Reason: "out of bounds"}
		}
		if seen[idx] {
			return &InvalidIndexError{Index: idx, ColumnCount: columns, Reason: "declared twice"}
		}
		seen[idx] = true
	}
	return nil
}
