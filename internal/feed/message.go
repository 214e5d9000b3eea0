package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ssh352/nexus/internal/domain/value"
	"github.com/ssh352/nexus/internal/engine"
)

// Op is the mutation a feed message requests
type Op string

const (
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
	OpBatch  Op = "batch"
)

// Message is one decoded row-level instruction
type Message struct {
	Op     Op
	Values engine.Row
}

type wireMessage struct {
	Op       Op                `json:"op"`
	Values   []any             `json:"values"`
	Messages []json.RawMessage `json:"messages"`
}

// Decoder turns feed payloads into typed messages, coercing each raw JSON
// value to the kind of its column
type Decoder struct {
	kinds   []value.Kind
	indices []int
}

func NewDecoder(kinds []value.Kind, indices []int) *Decoder {
	return &Decoder{
		kinds:   append([]value.Kind(nil), kinds...),
		indices: append([]int(nil), indices...),
	}
}

// Decode parses one payload. A batch yields its messages in order.
func (d *Decoder) Decode(data []byte) ([]Message, error) {
	w, err := decodeWire(data)
	if err != nil {
		return nil, err
	}
	if w.Op != OpBatch {
		msg, err := d.decodeOne(w)
		if err != nil {
			return nil, err
		}
		return []Message{msg}, nil
	}

	msgs := make([]Message, 0, len(w.Messages))
	for i, raw := range w.Messages {
		inner, err := decodeWire(raw)
		if err != nil {
			return nil, fmt.Errorf("batch message %d: %w", i, err)
		}
		if inner.Op == OpBatch {
			return nil, fmt.Errorf("batch message %d: nested batches are not supported", i)
		}
		msg, err := d.decodeOne(inner)
		if err != nil {
			return nil, fmt.Errorf("batch message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func decodeWire(data []byte) (wireMessage, error) {
	var w wireMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return w, fmt.Errorf("invalid feed message: %w", err)
	}
	return w, nil
}

func (d *Decoder) decodeOne(w wireMessage) (Message, error) {
	switch w.Op {
	case OpClear:
		return Message{Op: OpClear}, nil
	case OpUpdate:
		row, err := d.decodeUpdate(w.Values)
		return Message{Op: OpUpdate, Values: row}, err
	case OpRemove:
		row, err := d.decodeRemove(w.Values)
		return Message{Op: OpRemove, Values: row}, err
	}
	return Message{}, fmt.Errorf("unknown feed op %q", w.Op)
}

func (d *Decoder) decodeUpdate(raw []any) (engine.Row, error) {
	if len(raw) != len(d.kinds) {
		return nil, &engine.SchemaMismatchError{Expected: len(d.kinds), Got: len(raw)}
	}
	row := make(engine.Row, len(raw))
	for i, x := range raw {
		v, err := value.Coerce(d.kinds[i], x)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		row[i] = v
	}
	return row, nil
}

// decodeRemove only reads the index columns; the rest of the row is Null
func (d *Decoder) decodeRemove(raw []any) (engine.Row, error) {
	if len(raw) > len(d.kinds) {
		return nil, &engine.SchemaMismatchError{Expected: len(d.kinds), Got: len(raw)}
	}
	row := make(engine.Row, len(d.kinds))
	for _, idx := range d.indices {
		if idx >= len(raw) {
			return nil, &engine.SchemaMismatchError{Expected: len(d.kinds), Got: len(raw)}
		}
		v, err := value.Coerce(d.kinds[idx], raw[idx])
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", idx, err)
		}
		row[idx] = v
	}
	return row, nil
}

// Apply runs msgs against the model in one write section. A failing
// message does not stop the rest; the failures are joined.
func Apply(guard *engine.Guard, msgs []Message) error {
	return guard.Write(func(m *engine.IndexedModel) error {
		var errs []error
		for _, msg := range msgs {
			var err error
			switch msg.Op {
			case OpUpdate:
				err = m.Update(msg.Values)
			case OpRemove:
				err = m.RemoveRow(msg.Values)
			case OpClear:
				m.Clear()
			default:
				err = fmt.Errorf("unknown feed op %q", msg.Op)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", msg.Op, err))
			}
		}
		return errors.Join(errs...)
	})
}
