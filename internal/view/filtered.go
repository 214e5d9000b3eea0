package view

import (
	"sort"

	"github.com/ssh352/nexus/internal/domain/value"
	"github.com/ssh352/nexus/internal/engine"
)

// Predicate decides whether a row is visible through a FilteredModel
type Predicate func(engine.Row) bool

// ColumnEquals keeps rows whose column equals v
func ColumnEquals(column int, v value.Value) Predicate {
	return func(r engine.Row) bool {
		return column < len(r) && r[column].Equal(v)
	}
}

// ColumnIn keeps rows whose column equals any of vs. An empty set keeps
// every row, matching an unset filter.
func ColumnIn(column int, vs ...value.Value) Predicate {
	return func(r engine.Row) bool {
		if len(vs) == 0 {
			return true
		}
		if column >= len(r) {
			return false
		}
		for _, v := range vs {
			if r[column].Equal(v) {
				return true
			}
		}
		return false
	}
}

// And combines predicates; all must pass
func And(preds ...Predicate) Predicate {
	return func(r engine.Row) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// FilteredModel shows the subset of source rows accepted by a predicate,
// in source order. Updates that move a row across the filter are
// announced as additions or removals.
type FilteredModel struct {
	source    engine.TableModel
	predicate Predicate
	rows      []int // ascending source positions
	sub       engine.SubscriptionID
	listeners engine.ListenerRegistry
}

func NewFilteredModel(source engine.TableModel, predicate Predicate) *FilteredModel {
	m := &FilteredModel{source: source, predicate: predicate}
	for i := 0; i < source.GetRowCount(); i++ {
		r, err := engine.RowAt(source, i)
		if err == nil && predicate(r) {
			m.rows = append(m.rows, i)
		}
	}
	m.sub = source.AddChangeListener(m.onChange)
	return m
}

func (m *FilteredModel) find(src int) (int, bool) {
	i := sort.SearchInts(m.rows, src)
	return i, i < len(m.rows) && m.rows[i] == src
}

func (m *FilteredModel) insertAt(i, src int) {
	m.rows = append(m.rows, 0)
	copy(m.rows[i+1:], m.rows[i:])
	m.rows[i] = src
}

func (m *FilteredModel) deleteAt(i int) {
	copy(m.rows[i:], m.rows[i+1:])
	m.rows = m.rows[:len(m.rows)-1]
}

func (m *FilteredModel) onChange(c engine.Change) {
	switch c.Kind {
	case engine.ChangeAdded:
		i, _ := m.find(c.Position)
		for j := i; j < len(m.rows); j++ {
			m.rows[j]++
		}
		if m.predicate(c.Values) {
			m.insertAt(i, c.Position)
			m.listeners.Notify(engine.Change{Kind: engine.ChangeAdded, Position: i, Values: c.Values, Timestamp: c.Timestamp})
		}

	case engine.ChangeUpdated:
		i, present := m.find(c.Position)
		pass := m.predicate(c.Values)
		switch {
		case present && pass:
			m.listeners.Notify(engine.Change{Kind: engine.ChangeUpdated, Position: i, Values: c.Values, Previous: c.Previous, Timestamp: c.Timestamp})
		case present:
			m.deleteAt(i)
			m.listeners.Notify(engine.Change{Kind: engine.ChangeRemoved, Position: i, Values: c.Previous, Timestamp: c.Timestamp})
		case pass:
			m.insertAt(i, c.Position)
			m.listeners.Notify(engine.Change{Kind: engine.ChangeAdded, Position: i, Values: c.Values, Timestamp: c.Timestamp})
		}

	case engine.ChangeRemoved:
		i, present := m.find(c.Position)
		if present {
			m.deleteAt(i)
		}
		for j := i; j < len(m.rows); j++ {
			m.rows[j]--
		}
		if present {
			m.listeners.Notify(engine.Change{Kind: engine.ChangeRemoved, Position: i, Values: c.Values, Timestamp: c.Timestamp})
		}
	}
}

// SourcePosition maps a view row to its position in the source model
func (m *FilteredModel) SourcePosition(row int) (int, error) {
	if row < 0 || row >= len(m.rows) {
		return -1, &engine.OutOfRangeError{Axis: "row", Index: row, Bound: len(m.rows)}
	}
	return m.rows[row], nil
}

func (m *FilteredModel) GetRowCount() int { return len(m.rows) }

func (m *FilteredModel) GetColumnCount() int { return m.source.GetColumnCount() }

func (m *FilteredModel) GetColumnName(column int) (string, error) {
	return m.source.GetColumnName(column)
}

func (m *FilteredModel) GetValueAt(column, row int) (value.Value, error) {
	src, err := m.SourcePosition(row)
	if err != nil {
		return value.Value{}, err
	}
	return m.source.GetValueAt(column, src)
}

func (m *FilteredModel) AddChangeListener(l engine.Listener) engine.SubscriptionID {
	return m.listeners.Add(l)
}

func (m *FilteredModel) RemoveChangeListener(id engine.SubscriptionID) {
	m.listeners.Remove(id)
}

// Close detaches the view from its source
func (m *FilteredModel) Close() {
	m.source.RemoveChangeListener(m.sub)
}

var (
	_ engine.TableModel = (*SortedModel)(nil)
	_ engine.TableModel = (*FilteredModel)(nil)
)
