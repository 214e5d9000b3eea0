package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/ssh352/nexus/internal/domain/value"
	"github.com/ssh352/nexus/internal/engine"
)

// LoadSeed reads the initial rows of a table from a JSON file holding an
// array of row arrays, converting each cell to its column's kind.
func LoadSeed(path string, kinds []value.Kind, logger *slog.Logger) ([]engine.Row, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var raw [][]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber() // keep money and ids exact
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	rows := make([]engine.Row, 0, len(raw))
	for i, cells := range raw {
		if len(cells) != len(kinds) {
			return nil, fmt.Errorf("seed row %d: %w", i,
				&engine.SchemaMismatchError{Expected: len(kinds), Got: len(cells)})
		}
		row := make(engine.Row, len(cells))
		for c, cell := range cells {
			v, err := value.Coerce(kinds[c], cell)
			if err != nil {
				return nil, fmt.Errorf("seed row %d column %d: %w", i, c, err)
			}
			row[c] = v
		}
		rows = append(rows, row)
	}

	logger.Info("seed loaded",
		slog.String("path", path),
		slog.Int("rows", len(rows)),
	)
	return rows, nil
}

// Seed upserts rows into the guarded model. Rows sharing a key collapse
// into the last one, as they would from the live feed.
func Seed(guard *engine.Guard, rows []engine.Row) error {
	return guard.Write(func(m *engine.IndexedModel) error {
		for i, row := range rows {
			if err := m.Update(row); err != nil {
				return fmt.Errorf("seed row %d: %w", i, err)
			}
		}
		return nil
	})
}
