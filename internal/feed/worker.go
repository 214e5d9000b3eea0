package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ssh352/nexus/internal/engine"
)

// Stats counts what a Worker has done since it was created
type Stats struct {
	Connects int64 // successful connections
	Messages int64 // payloads received
	Errors   int64 // payloads that failed to decode or apply
}

// Worker reads row updates from a WebSocket feed and applies them to the
// model. It reconnects with exponential backoff and is the model's only
// writer while running.
type Worker struct {
	url       string
	subscribe []byte
	decoder   *Decoder
	guard     *engine.Guard
	logger    *slog.Logger

	ReadTimeout      time.Duration
	PingInterval     time.Duration
	ClearOnReconnect bool
	Backoff          func(retry int) time.Duration

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	connects atomic.Int64
	messages atomic.Int64
	errors   atomic.Int64
}

// NewWorker creates a worker for url. subscribe, if non-empty, is sent as
// a text frame after every connect.
func NewWorker(url string, subscribe []byte, decoder *Decoder, guard *engine.Guard, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		url:          url,
		subscribe:    subscribe,
		decoder:      decoder,
		guard:        guard,
		logger:       logger.With("component", "feed", "url", url),
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		Backoff:      CalculateBackoff,
	}
}

// Start initiates the connection loop
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.runLoop(ctx)
}

// Stop terminates the worker and waits for its goroutines
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.close()
	w.wg.Wait()
}

func (w *Worker) Stats() Stats {
	return Stats{
		Connects: w.connects.Load(),
		Messages: w.messages.Load(),
		Errors:   w.errors.Load(),
	}
}

func (w *Worker) runLoop(ctx context.Context) {
	defer w.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			w.logger.Warn("feed connection failed", "err", err, "retry", retry)
			delay := w.Backoff(retry)
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0 // Reset on successful connect
		w.process(ctx)
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return err
	}

	// pongs prove the feed is alive even when it has no rows to send
	if w.ReadTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		})
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	if len(w.subscribe) > 0 {
		if err := w.write(websocket.TextMessage, w.subscribe); err != nil {
			w.close()
			return fmt.Errorf("subscribe failed: %w", err)
		}
	}

	// A fresh subscription replays state, so rows from the previous
	// session would otherwise linger
	if w.connects.Add(1) > 1 && w.ClearOnReconnect {
		_ = w.guard.Write(func(m *engine.IndexedModel) error {
			m.Clear()
			return nil
		})
		w.logger.Info("feed reconnected, table cleared")
	}

	if w.PingInterval > 0 {
		w.wg.Add(1)
		go w.pingLoop(ctx, conn)
	}

	w.logger.Info("feed connected")
	return nil
}

func (w *Worker) process(ctx context.Context) {
	for {
		w.mu.RLock()
		c := w.conn
		w.mu.RUnlock()
		if c == nil {
			return
		}

		if w.ReadTimeout > 0 {
			c.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		}
		_, msg, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("feed read error", "err", err)
			}
			w.close()
			return
		}

		w.handle(msg)
	}
}

func (w *Worker) handle(payload []byte) {
	w.messages.Add(1)

	msgs, err := w.decoder.Decode(payload)
	if err != nil {
		w.errors.Add(1)
		w.logger.Warn("dropping undecodable feed message", "err", err, "payload", string(payload))
		return
	}
	if err := Apply(w.guard, msgs); err != nil {
		w.errors.Add(1)
		w.logger.Warn("feed message rejected", "err", err)
	}
}

func (w *Worker) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.RLock()
			c := w.conn
			w.mu.RUnlock()
			if c != conn {
				return // connection was replaced or closed
			}
			if err := w.write(websocket.PingMessage, nil); err != nil {
				w.logger.Warn("feed ping error", "err", err)
				w.close()
				return
			}
		}
	}
}

func (w *Worker) write(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	c := w.conn
	w.mu.RUnlock()

	if c == nil {
		return fmt.Errorf("feed not connected")
	}
	return c.WriteMessage(msgType, data)
}

func (w *Worker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
