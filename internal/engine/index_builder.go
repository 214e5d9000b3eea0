package engine

import "fmt"

// rebuildKeys recomputes the key map from the rows in the store
func (m *IndexedModel) rebuildKeys() {
	m.positions = make(map[string]int, m.store.GetRowCount())
	m.rowKeys = m.rowKeys[:0]
	for pos, row := range m.store.rows {
		key := m.keyGen.Generate(row.Project(m.indices))
		m.positions[key] = pos
		m.rowKeys = append(m.rowKeys, key)
	}
	m.logger.Warn("index rebuilt", "table", m.name, "rows", len(m.rowKeys))
}

// Verify checks that the key map and the store agree: one entry per row,
// and each recorded position holds a row whose index values produce that
// key. It returns the first inconsistency found.
func (m *IndexedModel) Verify() error {
	rows := m.store.GetRowCount()
	if len(m.positions) != rows || len(m.rowKeys) != rows {
		return fmt.Errorf("index of %s has %d keys (%d ordered) for %d rows",
			tableLabel(m.name), len(m.positions), len(m.rowKeys), rows)
	}

	for key, pos := range m.positions {
		if pos < 0 || pos >= rows {
			return fmt.Errorf("key %q maps to position %d outside %d rows", key, pos, rows)
		}
		actual := m.keyGen.Generate(m.store.rows[pos].Project(m.indices))
		if actual != key {
			return fmt.Errorf("key %q maps to position %d which holds key %q", key, pos, actual)
		}
		if m.rowKeys[pos] != key {
			return fmt.Errorf("position %d is recorded as key %q, expected %q", pos, m.rowKeys[pos], key)
		}
	}
	return nil
}
