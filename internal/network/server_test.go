package network

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/ssh352/nexus/internal/domain/value"
	"github.com/ssh352/nexus/internal/engine"
)

// reply mirrors Response on the client side, where cells are plain JSON
type reply struct {
	Type     string   `json:"type"`
	Table    string   `json:"table"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	Count    *int     `json:"count"`
	Found    *bool    `json:"found"`
	Position *int     `json:"position"`
	Row      []any    `json:"row"`
	Kind     string   `json:"kind"`
	Values   []any    `json:"values"`
	Previous []any    `json:"previous"`
	Message  string   `json:"message"`
	Error    string   `json:"error"`
}

type client struct {
	t    *testing.T
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

func (c *client) send(req Request) {
	c.t.Helper()
	assert.NilError(c.t, c.enc.Encode(req))
}

func (c *client) recv() reply {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var r reply
	assert.NilError(c.t, c.dec.Decode(&r))
	return r
}

func (c *client) call(req Request) reply {
	c.t.Helper()
	c.send(req)
	return c.recv()
}

func startServer(t *testing.T, queueSize int) (*engine.Guard, string) {
	t.Helper()
	model, err := engine.NewIndexedModel([]int{0}, []string{"symbol", "price"}, engine.WithName("quotes"))
	assert.NilError(t, err)
	guard := engine.NewGuard(model)
	guard.Write(func(m *engine.IndexedModel) error {
		m.Update(engine.Row(value.Values("A", 10)))
		m.Update(engine.Row(value.Values("B", 20)))
		return nil
	})

	srv := NewServer(guard, []value.Kind{value.KindString, value.KindInt}, nil)
	if queueSize > 0 {
		srv.QueueSize = queueSize
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })
	return guard, ln.Addr().String()
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	assert.NilError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}
}

func upsert(guard *engine.Guard, xs ...any) {
	guard.Write(func(m *engine.IndexedModel) error {
		return m.Update(engine.Row(value.Values(xs...)))
	})
}

func TestSnapshotAndCount(t *testing.T) {
	_, addr := startServer(t, 0)
	c := dial(t, addr)

	r := c.call(Request{Op: "snapshot"})
	assert.Equal(t, r.Type, "snapshot")
	assert.Equal(t, r.Table, "quotes")
	assert.DeepEqual(t, r.Columns, []string{"symbol", "price"})
	assert.DeepEqual(t, r.Rows, [][]any{{"A", 10.0}, {"B", 20.0}})

	r = c.call(Request{Op: "count"})
	assert.Equal(t, r.Type, "count")
	assert.Equal(t, *r.Count, 2)
}

func TestLookup(t *testing.T) {
	_, addr := startServer(t, 0)
	c := dial(t, addr)

	r := c.call(Request{Op: "lookup", Key: []any{"B"}})
	assert.Equal(t, r.Type, "lookup")
	assert.Assert(t, *r.Found)
	assert.Equal(t, *r.Position, 1)
	assert.DeepEqual(t, r.Row, []any{"B", 20.0})

	r = c.call(Request{Op: "lookup", Key: []any{"Z"}})
	assert.Assert(t, !*r.Found)
	assert.Assert(t, r.Position == nil)

	r = c.call(Request{Op: "lookup", Key: []any{"A", "B"}})
	assert.Equal(t, r.Type, "error")
	assert.ErrorContains(t, errors.New(r.Error), "key needs 1 values")
}

func TestUnknownOp(t *testing.T) {
	_, addr := startServer(t, 0)
	c := dial(t, addr)

	r := c.call(Request{Op: "drop"})
	assert.Equal(t, r.Type, "error")
	assert.Equal(t, r.Error, `unknown op "drop"`)

	// the connection survives a bad op
	r = c.call(Request{Op: "count"})
	assert.Equal(t, *r.Count, 2)
}

func TestSubscribeStreamsChanges(t *testing.T) {
	guard, addr := startServer(t, 0)
	c := dial(t, addr)

	r := c.call(Request{Op: "subscribe"})
	assert.Equal(t, r.Type, "snapshot")
	assert.Equal(t, len(r.Rows), 2)

	upsert(guard, "C", 30)
	r = c.recv()
	assert.Equal(t, r.Type, "change")
	assert.Equal(t, r.Kind, "added")
	assert.Equal(t, *r.Position, 2)
	assert.DeepEqual(t, r.Values, []any{"C", 30.0})

	upsert(guard, "A", 11)
	r = c.recv()
	assert.Equal(t, r.Kind, "updated")
	assert.Equal(t, *r.Position, 0)
	assert.DeepEqual(t, r.Previous, []any{"A", 10.0})

	guard.Write(func(m *engine.IndexedModel) error {
		return m.RemoveRow(engine.Row(value.Values("A", nil)))
	})
	r = c.recv()
	assert.Equal(t, r.Kind, "removed")
	assert.Equal(t, *r.Position, 0)
	assert.DeepEqual(t, r.Values, []any{"A", 11.0})
}

func TestUnsubscribeStopsStream(t *testing.T) {
	guard, addr := startServer(t, 0)
	c := dial(t, addr)

	c.call(Request{Op: "subscribe"})
	r := c.call(Request{Op: "unsubscribe"})
	assert.Equal(t, r.Type, "ok")

	upsert(guard, "C", 30)
	r = c.call(Request{Op: "count"})
	assert.Equal(t, r.Type, "count")
	assert.Equal(t, *r.Count, 3)
}

func TestExitClosesConnection(t *testing.T) {
	_, addr := startServer(t, 0)
	c := dial(t, addr)

	c.send(Request{Op: "exit"})
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var r reply
	err := c.dec.Decode(&r)
	assert.Assert(t, err != nil)
	assert.Assert(t, !errors.Is(err, os.ErrDeadlineExceeded))
}

func TestSlowSubscriberIsDisconnected(t *testing.T) {
	guard, addr := startServer(t, 4)
	c := dial(t, addr)

	r := c.call(Request{Op: "subscribe"})
	assert.Equal(t, r.Type, "snapshot")

	// the client stops reading; the socket buffers fill and the queue overflows
	for i := 0; i < 200000; i++ {
		upsert(guard, "A", i)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var err error
	for err == nil {
		var r reply
		err = c.dec.Decode(&r)
	}
	assert.Assert(t, !errors.Is(err, os.ErrDeadlineExceeded), "connection was not dropped: %v", err)

	// the dropped subscriber no longer receives events
	upsert(guard, "A", -1)
}
