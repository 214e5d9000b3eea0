package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/ssh352/nexus/internal/domain/value"
	"github.com/ssh352/nexus/internal/engine"
)

// Request is one client command
type Request struct {
	Op  string `json:"op"`            // snapshot, lookup, count, subscribe, unsubscribe, exit
	Key []any  `json:"key,omitempty"` // index-column values for lookup
}

// Response is every message the server writes. Type says which fields
// are set: snapshot, lookup, count, change, ok or error.
type Response struct {
	Type     string            `json:"type"`
	Table    string            `json:"table,omitempty"`
	Columns  []string          `json:"columns,omitempty"`
	Rows     []engine.Row      `json:"rows,omitempty"`
	Count    *int              `json:"count,omitempty"`
	Found    *bool             `json:"found,omitempty"`
	Position *int              `json:"position,omitempty"`
	Row      engine.Row        `json:"row,omitempty"`
	Kind     engine.ChangeKind `json:"kind,omitempty"`
	Values   engine.Row        `json:"values,omitempty"`
	Previous engine.Row        `json:"previous,omitempty"`
	Message  string            `json:"message,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// DefaultQueueSize bounds the responses waiting to be written to one
// client. A subscriber that falls this far behind is disconnected.
const DefaultQueueSize = 1024

// Server serves snapshots, lookups and change streams of a guarded model
// over newline-delimited JSON
type Server struct {
	guard     *engine.Guard
	kinds     []value.Kind
	logger    *slog.Logger
	QueueSize int
}

func NewServer(guard *engine.Guard, kinds []value.Kind, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		guard:     guard,
		kinds:     append([]value.Kind(nil), kinds...),
		logger:    logger.With("component", "server"),
		QueueSize: DefaultQueueSize,
	}
}

// Start listens on port and serves the guarded model until the listener
// fails
func Start(port int, guard *engine.Guard, kinds []value.Kind) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("Failed to bind to port", "port", port, "error", err)
		return err
	}
	defer listener.Close()

	slog.Info("Running on port", "port", port)
	return Serve(listener, guard, kinds)
}

// Serve runs a Server with default settings on ln
func Serve(ln net.Listener, guard *engine.Guard, kinds []value.Kind) error {
	return NewServer(guard, kinds, slog.Default()).Serve(ln)
}

// Serve accepts connections on ln until it is closed
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("Failed to accept connection", "error", err)
			return err
		}
		go s.handleConnection(conn)
	}
}

// session is the per-connection state. Every response, including change
// events raised on the feed goroutine, goes through out so a single
// writer owns the socket.
type session struct {
	srv  *Server
	conn net.Conn
	out  chan Response
	done chan struct{}
	once sync.Once
	sub  engine.SubscriptionID // guarded by the model Guard
}

func (s *Server) handleConnection(conn net.Conn) {
	sess := &session{
		srv:  s,
		conn: conn,
		out:  make(chan Response, s.QueueSize),
		done: make(chan struct{}),
	}
	s.logger.Debug("client connected", "remote", conn.RemoteAddr().String())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.writeLoop()
	}()

	sess.readLoop()
	sess.unsubscribe()
	sess.shutdown()
	wg.Wait()
	conn.Close()
	s.logger.Debug("client disconnected", "remote", conn.RemoteAddr().String())
}

func (sess *session) shutdown() {
	sess.once.Do(func() { close(sess.done) })
}

// send queues r without blocking. A full queue ends the session.
func (sess *session) send(r Response) {
	select {
	case <-sess.done:
		return
	default:
	}
	select {
	case sess.out <- r:
	default:
		sess.srv.logger.Warn("client too slow, disconnecting", "remote", sess.conn.RemoteAddr().String())
		sess.shutdown()
		sess.conn.Close()
	}
}

func (sess *session) writeLoop() {
	encoder := json.NewEncoder(sess.conn)
	for {
		select {
		case <-sess.done:
			// flush what was queued before the session ended
			for {
				select {
				case r := <-sess.out:
					if encoder.Encode(r) != nil {
						return
					}
				default:
					return
				}
			}
		case r := <-sess.out:
			if err := encoder.Encode(r); err != nil {
				sess.srv.logger.Error("encode error", "error", err)
				sess.shutdown()
				sess.conn.Close()
				return
			}
		}
	}
}

func (sess *session) readLoop() {
	// Use Decoder instead of Scanner for network streams
	decoder := json.NewDecoder(sess.conn)
	decoder.UseNumber()

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			if err == io.EOF || errors.Is(err, net.ErrClosed) {
				return // Connection closed gracefully
			}
			select {
			case <-sess.done:
				return
			default:
			}
			sess.srv.logger.Error("decode error", "error", err)
			sess.send(Response{Type: "error", Error: fmt.Sprintf("Invalid request format: %v", err)})
			return
		}

		if req.Op == "exit" || req.Op == "\\q" {
			return
		}
		sess.dispatch(req)
	}
}

func (sess *session) dispatch(req Request) {
	switch req.Op {
	case "snapshot":
		sess.srv.guard.Read(func(m *engine.IndexedModel) error {
			sess.send(snapshotOf(m))
			return nil
		})

	case "count":
		sess.srv.guard.Read(func(m *engine.IndexedModel) error {
			n := m.GetRowCount()
			sess.send(Response{Type: "count", Count: &n})
			return nil
		})

	case "lookup":
		sess.send(sess.lookup(req.Key))

	case "subscribe":
		sess.subscribe()

	case "unsubscribe":
		sess.unsubscribe()
		sess.send(Response{Type: "ok", Message: "unsubscribed"})

	default:
		sess.send(Response{Type: "error", Error: fmt.Sprintf("unknown op %q", req.Op)})
	}
}

func snapshotOf(m *engine.IndexedModel) Response {
	n := m.GetRowCount()
	return Response{
		Type:    "snapshot",
		Table:   m.Name(),
		Columns: m.Columns(),
		Rows:    engine.SelectAll(m),
		Count:   &n,
	}
}

func (sess *session) lookup(raw []any) Response {
	var resp Response
	sess.srv.guard.Read(func(m *engine.IndexedModel) error {
		indices := m.Indices()
		if len(raw) != len(indices) {
			resp = Response{Type: "error", Error: fmt.Sprintf("key needs %d values, got %d", len(indices), len(raw))}
			return nil
		}
		key := make([]value.Value, len(raw))
		for i, x := range raw {
			v, err := value.Coerce(sess.srv.kinds[indices[i]], x)
			if err != nil {
				resp = Response{Type: "error", Error: fmt.Sprintf("key value %d: %v", i, err)}
				return nil
			}
			key[i] = v
		}

		found := false
		resp = Response{Type: "lookup", Found: &found}
		if pos, ok := m.GetRowNumber(key); ok {
			row, err := m.GetRow(pos)
			if err == nil {
				found = true
				resp.Position = &pos
				resp.Row = row
			}
		}
		return nil
	})
	return resp
}

// subscribe sends the current snapshot and registers for changes in the
// same write section, so the stream neither misses nor repeats a change
func (sess *session) subscribe() {
	sess.srv.guard.Write(func(m *engine.IndexedModel) error {
		if sess.sub != "" {
			m.RemoveChangeListener(sess.sub)
		}
		sess.send(snapshotOf(m))
		sess.sub = m.AddChangeListener(func(c engine.Change) {
			pos := c.Position
			sess.send(Response{
				Type:     "change",
				Kind:     c.Kind,
				Position: &pos,
				Values:   c.Values,
				Previous: c.Previous,
			})
		})
		return nil
	})
}

func (sess *session) unsubscribe() {
	sess.srv.guard.Write(func(m *engine.IndexedModel) error {
		if sess.sub != "" {
			m.RemoveChangeListener(sess.sub)
			sess.sub = ""
		}
		return nil
	})
}
