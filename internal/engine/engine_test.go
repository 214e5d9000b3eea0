package engine

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/ssh352/nexus/internal/domain/value"
	"gotest.tools/v3/assert"
)

func TestGuardSerializesWriters(t *testing.T) {
	m, err := NewIndexedModel([]int{0}, []string{"id", "count"})
	assert.NilError(t, err)
	g := NewGuard(m)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = g.Write(func(m *IndexedModel) error {
					return m.Update(row(i%10, w))
				})
				_ = g.Read(func(m *IndexedModel) error {
					_ = m.GetRowCount()
					return nil
				})
			}
		}(w)
	}
	wg.Wait()

	err = g.Read(func(m *IndexedModel) error {
		assert.Equal(t, m.GetRowCount(), 10)
		return m.Verify()
	})
	assert.NilError(t, err)
}

func TestSelectHelpers(t *testing.T) {
	m, err := NewIndexedModel([]int{0}, []string{"id", "price"})
	assert.NilError(t, err)
	m.Update(row("A", 10))
	m.Update(row("B", 20))
	m.Update(row("C", 30))

	assert.Equal(t, len(SelectAll(m)), 3)
	assert.DeepEqual(t, ColumnNames(m), []string{"id", "price"})

	r, ok := SelectByKey(m, value.Values("B"))
	assert.Assert(t, ok)
	assert.Equal(t, r.String(), "[B 20]")

	_, ok = SelectByKey(m, value.Values("Z"))
	assert.Assert(t, !ok)
}

func TestLoggingListener(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, err := NewIndexedModel([]int{0}, []string{"id", "price"}, WithLogger(logger), WithName("quotes"))
	assert.NilError(t, err)
	m.AddChangeListener(NewLoggingListener(logger))

	m.Update(row("A", 10))
	m.RemoveRow(row("A", nil))

	out := buf.String()
	assert.Assert(t, strings.Contains(out, "table_change"))
	assert.Assert(t, strings.Contains(out, "kind=added"))
	assert.Assert(t, strings.Contains(out, "kind=removed"))
	assert.Assert(t, strings.Contains(out, "indexed insert"))
	assert.Assert(t, strings.Contains(out, "table=quotes"))
}
