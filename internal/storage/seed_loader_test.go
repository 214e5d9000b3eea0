package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/ssh352/nexus/internal/domain/value"
	"github.com/ssh352/nexus/internal/engine"
)

var portfolioKinds = []value.Kind{value.KindString, value.KindSecurity, value.KindInt, value.KindMoney}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write seed: %v", err)
	}
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeed(t, `[
		["acct1", "RY.TSX", 100, "101.25"],
		["acct1", "TD.TSX", 50, 80.5],
		["acct2", "RY.TSX", 10, "99.999999999999999999"]
	]`)

	rows, err := LoadSeed(path, portfolioKinds, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 3)
	assert.Equal(t, rows[0].String(), "[acct1 RY.TSX 100 101.25]")
	assert.Equal(t, rows[2][3].String(), "99.999999999999999999")
}

func TestLoadSeedErrors(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.json"), portfolioKinds, nil)
	assert.ErrorContains(t, err, "failed to read seed file")

	_, err = LoadSeed(writeSeed(t, `{"not":"rows"}`), portfolioKinds, nil)
	assert.ErrorContains(t, err, "failed to parse seed file")

	_, err = LoadSeed(writeSeed(t, `[["acct1", "RY.TSX"]]`), portfolioKinds, nil)
	assert.Assert(t, errors.Is(err, engine.ErrSchemaMismatch))

	_, err = LoadSeed(writeSeed(t, `[["acct1", "RY.TSX", "many", "1"]]`), portfolioKinds, nil)
	assert.ErrorContains(t, err, "seed row 0 column 2")
}

func TestSeed(t *testing.T) {
	m, err := engine.NewIndexedModel([]int{0, 1}, []string{"account", "security", "quantity", "price"})
	assert.NilError(t, err)
	guard := engine.NewGuard(m)

	rows, err := LoadSeed(writeSeed(t, `[
		["acct1", "RY.TSX", 100, "101"],
		["acct1", "TD.TSX", 50, "80"],
		["acct1", "RY.TSX", 150, "102"]
	]`), portfolioKinds, nil)
	assert.NilError(t, err)

	assert.NilError(t, Seed(guard, rows))
	assert.Equal(t, m.GetRowCount(), 2)

	pos, ok := m.GetRowNumber([]value.Value{value.String("acct1"), value.Security("RY", "TSX")})
	assert.Assert(t, ok)
	qty, _ := m.GetValueAt(2, pos)
	assert.Assert(t, qty.Equal(value.Int(150)))
}

func TestShippedSeedLoads(t *testing.T) {
	kinds := []value.Kind{value.KindSecurity, value.KindMoney, value.KindMoney, value.KindCurrency, value.KindInt, value.KindTime}
	rows, err := LoadSeed("../../data/quotes.json", kinds, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 4)
	assert.Equal(t, rows[0][0].String(), "RY.TSX")
	assert.Equal(t, rows[2][1].String(), "415.1")
}
