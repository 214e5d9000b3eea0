package view

import (
	"sort"

	"github.com/ssh352/nexus/internal/domain/value"
	"github.com/ssh352/nexus/internal/engine"
)

// SortKey orders rows by one column
type SortKey struct {
	Column     int
	Descending bool
}

// SortedModel presents the rows of a source model in sorted order. It
// keeps a permutation of source positions and maintains it from the
// source's change notifications, so a tick re-positions a single row
// instead of re-sorting the table.
//
// Rows that compare equal keep their source order. An update that moves
// a row is announced as a removal followed by an addition.
type SortedModel struct {
	source    engine.TableModel
	keys      []SortKey
	order     []int // view position -> source position
	sub       engine.SubscriptionID
	listeners engine.ListenerRegistry
}

// NewSortedModel sorts source by keys, applied in order
func NewSortedModel(source engine.TableModel, keys ...SortKey) (*SortedModel, error) {
	for _, k := range keys {
		if k.Column < 0 || k.Column >= source.GetColumnCount() {
			return nil, &engine.OutOfRangeError{Axis: "column", Index: k.Column, Bound: source.GetColumnCount()}
		}
	}

	m := &SortedModel{
		source: source,
		keys:   append([]SortKey(nil), keys...),
		order:  make([]int, source.GetRowCount()),
	}
	for i := range m.order {
		m.order[i] = i
	}
	sort.Slice(m.order, func(i, j int) bool { return m.less(m.order[i], m.order[j]) })

	m.sub = source.AddChangeListener(m.onChange)
	return m, nil
}

// less compares two source rows; the source position breaks ties
func (m *SortedModel) less(a, b int) bool {
	for _, k := range m.keys {
		va, _ := m.source.GetValueAt(k.Column, a)
		vb, _ := m.source.GetValueAt(k.Column, b)
		c := va.Compare(vb)
		if c == 0 {
			continue
		}
		if k.Descending {
			return c > 0
		}
		return c < 0
	}
	return a < b
}

func (m *SortedModel) insertionPoint(src int) int {
	return sort.Search(len(m.order), func(i int) bool { return m.less(src, m.order[i]) })
}

func (m *SortedModel) indexOf(src int) int {
	for i, p := range m.order {
		if p == src {
			return i
		}
	}
	return -1
}

func (m *SortedModel) insertAt(i, src int) {
	m.order = append(m.order, 0)
	copy(m.order[i+1:], m.order[i:])
	m.order[i] = src
}

func (m *SortedModel) deleteAt(i int) {
	copy(m.order[i:], m.order[i+1:])
	m.order = m.order[:len(m.order)-1]
}

func (m *SortedModel) onChange(c engine.Change) {
	switch c.Kind {
	case engine.ChangeAdded:
		for i, p := range m.order {
			if p >= c.Position {
				m.order[i] = p + 1
			}
		}
		at := m.insertionPoint(c.Position)
		m.insertAt(at, c.Position)
		m.listeners.Notify(engine.Change{Kind: engine.ChangeAdded, Position: at, Values: c.Values, Timestamp: c.Timestamp})

	case engine.ChangeUpdated:
		from := m.indexOf(c.Position)
		if from < 0 {
			return
		}
		m.deleteAt(from)
		to := m.insertionPoint(c.Position)
		m.insertAt(to, c.Position)
		if from == to {
			m.listeners.Notify(engine.Change{Kind: engine.ChangeUpdated, Position: to, Values: c.Values, Previous: c.Previous, Timestamp: c.Timestamp})
			return
		}
		m.listeners.Notify(engine.Change{Kind: engine.ChangeRemoved, Position: from, Values: c.Previous, Timestamp: c.Timestamp})
		m.listeners.Notify(engine.Change{Kind: engine.ChangeAdded, Position: to, Values: c.Values, Timestamp: c.Timestamp})

	case engine.ChangeRemoved:
		at := m.indexOf(c.Position)
		if at < 0 {
			return
		}
		m.deleteAt(at)
		for i, p := range m.order {
			if p > c.Position {
				m.order[i] = p - 1
			}
		}
		m.listeners.Notify(engine.Change{Kind: engine.ChangeRemoved, Position: at, Values: c.Values, Timestamp: c.Timestamp})
	}
}

// SourcePosition maps a view row to its position in the source model
func (m *SortedModel) SourcePosition(row int) (int, error) {
	if row < 0 || row >= len(m.order) {
		return -1, &engine.OutOfRangeError{Axis: "row", Index: row, Bound: len(m.order)}
	}
	return m.order[row], nil
}

func (m *SortedModel) GetRowCount() int { return len(m.order) }

func (m *SortedModel) GetColumnCount() int { return m.source.GetColumnCount() }

func (m *SortedModel) GetColumnName(column int) (string, error) {
	return m.source.GetColumnName(column)
}

func (m *SortedModel) GetValueAt(column, row int) (value.Value, error) {
	src, err := m.SourcePosition(row)
	if err != nil {
		return value.Value{}, err
	}
	return m.source.GetValueAt(column, src)
}

func (m *SortedModel) AddChangeListener(l engine.Listener) engine.SubscriptionID {
	return m.listeners.Add(l)
}

func (m *SortedModel) RemoveChangeListener(id engine.SubscriptionID) {
	m.listeners.Remove(id)
}

// Close detaches the view from its source
func (m *SortedModel) Close() {
	m.source.RemoveChangeListener(m.sub)
}
