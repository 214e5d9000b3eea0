package engine

import "github.com/ssh352/nexus/internal/domain/value"

// ArrayModel is the column store: an ordered sequence of fixed-arity rows.
// It is the only code that mutates row storage, and every mutation is
// announced to its listeners before the call returns.
//
// ArrayModel is not safe for concurrent use; see Guard.
type ArrayModel struct {
	name      string
	columns   []string
	rows      []Row
	listeners ListenerRegistry
}

// NewArrayModel creates an empty store over a fixed column list
func NewArrayModel(columnNames []string) *ArrayModel {
	cols := make([]string, len(columnNames))
	copy(cols, columnNames)
	return &ArrayModel{columns: cols}
}

// GetRowCount returns the number of rows
func (m *ArrayModel) GetRowCount() int { return len(m.rows) }

// GetColumnCount returns the number of columns
func (m *ArrayModel) GetColumnCount() int { return len(m.columns) }

// GetColumnName returns the name of the column at the given position
func (m *ArrayModel) GetColumnName(column int) (string, error) {
	if err := checkColumn(m.name, column, len(m.columns)); err != nil {
		return "", err
	}
	return m.columns[column], nil
}

// Columns returns a copy of the column names
func (m *ArrayModel) Columns() []string {
	cols := make([]string, len(m.columns))
	copy(cols, m.columns)
	return cols
}

// GetValueAt returns the value stored at column, row
func (m *ArrayModel) GetValueAt(column, row int) (value.Value, error) {
	if err := checkColumn(m.name, column, len(m.columns)); err != nil {
		return value.Value{}, err
	}
	if err := checkRow(m.name, row, len(m.rows)); err != nil {
		return value.Value{}, err
	}
	return m.rows[row][column], nil
}

// GetRow returns a copy of the row at the given position
func (m *ArrayModel) GetRow(row int) (Row, error) {
	if err := checkRow(m.name, row, len(m.rows)); err != nil {
		return nil, err
	}
	return m.rows[row].Copy(), nil
}

// AddRow appends a row and returns its position
func (m *ArrayModel) AddRow(values Row) (int, error) {
	if err := checkArity(m.name, len(m.columns), values); err != nil {
		return -1, err
	}

	// Copy so the caller can't mutate stored data
	row := values.Copy()
	pos := len(m.rows)
	m.rows = append(m.rows, row)

	m.listeners.Notify(Change{Kind: ChangeAdded, Position: pos, Values: row.Copy()})
	return pos, nil
}

// UpdateRow replaces the row at position in place
func (m *ArrayModel) UpdateRow(position int, values Row) error {
	if err := checkRow(m.name, position, len(m.rows)); err != nil {
		return err
	}
	if err := checkArity(m.name, len(m.columns), values); err != nil {
		return err
	}

	previous := m.rows[position]
	row := values.Copy()
	m.rows[position] = row

	m.listeners.Notify(Change{Kind: ChangeUpdated, Position: position, Values: row.Copy(), Previous: previous})
	return nil
}

// RemoveRow deletes the row at position; every row above it moves down one
func (m *ArrayModel) RemoveRow(position int) error {
	if err := checkRow(m.name, position, len(m.rows)); err != nil {
		return err
	}

	removed := m.rows[position]
	copy(m.rows[position:], m.rows[position+1:])
	m.rows[len(m.rows)-1] = nil
	m.rows = m.rows[:len(m.rows)-1]

	m.listeners.Notify(Change{Kind: ChangeRemoved, Position: position, Values: removed})
	return nil
}

// AddChangeListener registers l for every later change
func (m *ArrayModel) AddChangeListener(l Listener) SubscriptionID {
	return m.listeners.Add(l)
}

// RemoveChangeListener unregisters a listener; unknown ids are ignored
func (m *ArrayModel) RemoveChangeListener(id SubscriptionID) {
	m.listeners.Remove(id)
}
