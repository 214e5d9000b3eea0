package engine

import "github.com/ssh352/nexus/internal/domain/value"

// TableModel is the read-and-listen contract shared by the store, the
// indexed model and the views layered on top of them
type TableModel interface {
	GetRowCount() int
	GetColumnCount() int
	GetColumnName(column int) (string, error)
	GetValueAt(column, row int) (value.Value, error)
	AddChangeListener(l Listener) SubscriptionID
	RemoveChangeListener(id SubscriptionID)
}

// RowAt reads one full row through the TableModel accessors
func RowAt(m TableModel, row int) (Row, error) {
	out := make(Row, m.GetColumnCount())
	for c := range out {
		v, err := m.GetValueAt(c, row)
		if err != nil {
			return nil, err
		}
		out[c] = v
	}
	return out, nil
}

// SelectAll returns a copy of every row in position order
func SelectAll(m TableModel) []Row {
	rows := make([]Row, 0, m.GetRowCount())
	for i := 0; i < m.GetRowCount(); i++ {
		row, err := RowAt(m, i)
		if err != nil {
			break
		}
		rows = append(rows, row)
	}
	return rows
}

// ColumnNames lists the column names of any TableModel
func ColumnNames(m TableModel) []string {
	names := make([]string, m.GetColumnCount())
	for i := range names {
		names[i], _ = m.GetColumnName(i)
	}
	return names
}

// SelectByKey returns the row stored under the given index values
func SelectByKey(m *IndexedModel, indexValues []value.Value) (Row, bool) {
	pos, ok := m.GetRowNumber(indexValues)
	if !ok {
		return nil, false
	}
	row, err := m.GetRow(pos)
	if err != nil {
		return nil, false
	}
	return row, true
}

var (
	_ TableModel = (*ArrayModel)(nil)
	_ TableModel = (*IndexedModel)(nil)
)
