package engine

import (
	"log/slog"

	"github.com/ssh352/nexus/internal/domain/keys"
	"github.com/ssh352/nexus/internal/domain/value"
)

// IndexedModel upserts rows by key. The key is generated from the values
// of the index columns, so repeated updates for the same key collapse into
// one row whose position never changes until a lower row is removed.
//
// The key map is only touched by Update, RemoveRow and Clear, which keeps
// it in step with the store. Callers must serialize mutations (see Guard).
type IndexedModel struct {
	name    string
	indices []int
	store   *ArrayModel
	keyGen  keys.Generator
	logger  *slog.Logger

	positions map[string]int // row key -> position
	rowKeys   []string       // position -> row key
}

// Option configures an IndexedModel
type Option func(*IndexedModel)

// WithKeyGenerator replaces the default key generation strategy
func WithKeyGenerator(g keys.Generator) Option {
	return func(m *IndexedModel) {
		if g != nil {
			m.keyGen = g
		}
	}
}

// WithLogger sets the logger used for debug tracing of upsert decisions
func WithLogger(logger *slog.Logger) Option {
	return func(m *IndexedModel) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithName names the table in errors and logs
func WithName(name string) Option {
	return func(m *IndexedModel) { m.name = name }
}

// NewIndexedModel creates an indexed model over columnNames whose row
// identity is the ordered set of column positions in indices.
func NewIndexedModel(indices []int, columnNames []string, opts ...Option) (*IndexedModel, error) {
	if err := validateIndices(indices, len(columnNames)); err != nil {
		return nil, err
	}

	m := &IndexedModel{
		indices:   append([]int(nil), indices...),
		store:     NewArrayModel(columnNames),
		keyGen:    keys.Default,
		logger:    slog.Default(),
		positions: make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.store.name = m.name
	return m, nil
}

// Name returns the table name given with WithName
func (m *IndexedModel) Name() string { return m.name }

// Indices returns a copy of the index column positions
func (m *IndexedModel) Indices() []int { return append([]int(nil), m.indices...) }

func (m *IndexedModel) keyOf(values Row) (string, error) {
	for _, idx := range m.indices {
		if idx >= len(values) {
			return "", &SchemaMismatchError{Table: m.name, Expected: m.store.GetColumnCount(), Got: len(values)}
		}
	}
	return m.keyGen.Generate(values.Project(m.indices)), nil
}

// Update inserts values as a new row if its key is unknown, otherwise
// replaces the existing row for that key in place.
func (m *IndexedModel) Update(values Row) error {
	if err := checkArity(m.name, m.store.GetColumnCount(), values); err != nil {
		return err
	}
	key, err := m.keyOf(values)
	if err != nil {
		return err
	}

	if pos, ok := m.positions[key]; ok {
		m.logger.Debug("indexed update", "table", m.name, "key", key, "position", pos)
		return m.store.UpdateRow(pos, values)
	}

	// Record the key before AddRow so listeners that call GetRowNumber
	// from inside the notification already see it.
	pos := m.store.GetRowCount()
	m.positions[key] = pos
	m.rowKeys = append(m.rowKeys, key)
	if _, err := m.store.AddRow(values); err != nil {
		delete(m.positions, key)
		m.rowKeys = m.rowKeys[:len(m.rowKeys)-1]
		return err
	}
	m.logger.Debug("indexed insert", "table", m.name, "key", key, "position", pos)
	return nil
}

// RemoveRow removes the row whose key matches the index columns of
// values. Non-index values are ignored. Unknown keys are a no-op so late
// or duplicate removals from a feed are harmless.
func (m *IndexedModel) RemoveRow(values Row) error {
	key, err := m.keyOf(values)
	if err != nil {
		return err
	}
	pos, ok := m.positions[key]
	if !ok {
		m.logger.Debug("indexed remove of unknown key", "table", m.name, "key", key)
		return nil
	}
	return m.removeAt(pos)
}

// removeAt drops the key at pos and renumbers every key above it
func (m *IndexedModel) removeAt(pos int) error {
	key := m.rowKeys[pos]
	delete(m.positions, key)
	copy(m.rowKeys[pos:], m.rowKeys[pos+1:])
	m.rowKeys = m.rowKeys[:len(m.rowKeys)-1]
	for p := pos; p < len(m.rowKeys); p++ {
		m.positions[m.rowKeys[p]] = p
	}

	if err := m.store.RemoveRow(pos); err != nil {
		// the key map and store disagree; resync from the store
		m.rebuildKeys()
		return err
	}
	m.logger.Debug("indexed remove", "table", m.name, "key", key, "position", pos)
	return nil
}

// Clear removes every row, highest position first, so each removal
// notification leaves the remaining positions untouched
func (m *IndexedModel) Clear() {
	for pos := len(m.rowKeys) - 1; pos >= 0; pos-- {
		_ = m.removeAt(pos)
	}
}

// GetRowNumber returns the current position of the row with the given
// index-column values
func (m *IndexedModel) GetRowNumber(indexValues []value.Value) (int, bool) {
	pos, ok := m.positions[m.keyGen.Generate(indexValues)]
	return pos, ok
}

// Keys returns the live row keys in position order
func (m *IndexedModel) Keys() []string { return append([]string(nil), m.rowKeys...) }

// GetRowCount returns the number of rows
func (m *IndexedModel) GetRowCount() int { return m.store.GetRowCount() }

// GetColumnCount returns the number of columns
func (m *IndexedModel) GetColumnCount() int { return m.store.GetColumnCount() }

// GetColumnName returns the name of the column at the given position
func (m *IndexedModel) GetColumnName(column int) (string, error) {
	return m.store.GetColumnName(column)
}

// Columns returns a copy of the column names
func (m *IndexedModel) Columns() []string { return m.store.Columns() }

// GetValueAt returns the value stored at column, row
func (m *IndexedModel) GetValueAt(column, row int) (value.Value, error) {
	return m.store.GetValueAt(column, row)
}

// GetRow returns a copy of the row at the given position
func (m *IndexedModel) GetRow(row int) (Row, error) { return m.store.GetRow(row) }

// AddChangeListener registers l for every later change
func (m *IndexedModel) AddChangeListener(l Listener) SubscriptionID {
	return m.store.AddChangeListener(l)
}

// RemoveChangeListener unregisters a listener; unknown ids are ignored
func (m *IndexedModel) RemoveChangeListener(id SubscriptionID) {
	m.store.RemoveChangeListener(id)
}
