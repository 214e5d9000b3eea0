package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"

	"github.com/ssh352/nexus/internal/engine"
)

// createMockWSServer creates a test WebSocket server
func createMockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

// httpToWS converts http:// URL to ws://
func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func rowCount(guard *engine.Guard) int {
	var n int
	guard.Read(func(m *engine.IndexedModel) error {
		n = m.GetRowCount()
		return nil
	})
	return n
}

func waitForRows(t *testing.T, guard *engine.Guard, want int) {
	t.Helper()
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if got := rowCount(guard); got != want {
			return poll.Continue("have %d rows, want %d", got, want)
		}
		return poll.Success()
	}, poll.WithTimeout(3*time.Second), poll.WithDelay(10*time.Millisecond))
}

func TestWorkerAppliesFeed(t *testing.T) {
	subscribed := make(chan string, 1)
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed <- string(sub)

		for _, msg := range []string{
			`{"op":"update","values":["RY.TSX","CAD","101",100]}`,
			`{"op":"update","values":["TD.TSX","CAD","80",200]}`,
			`garbage`,
			`{"op":"update","values":["RY.TSX","CAD","102",100]}`,
			`{"op":"remove","values":["TD.TSX"]}`,
		} {
			conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}
		// hold the connection open until the client leaves
		conn.ReadMessage()
	})
	defer server.Close()

	guard, m := newQuoteGuard(t)
	w := NewWorker(httpToWS(server.URL), []byte(`{"op":"subscribe"}`), NewDecoder(quoteKinds, []int{0}), guard, nil)
	w.Start(context.Background())
	defer w.Stop()

	select {
	case sub := <-subscribed:
		assert.Equal(t, sub, `{"op":"subscribe"}`)
	case <-time.After(3 * time.Second):
		t.Fatal("worker never subscribed")
	}

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if s := w.Stats(); s.Messages < 5 {
			return poll.Continue("received %d messages", s.Messages)
		}
		return poll.Success()
	}, poll.WithTimeout(3*time.Second), poll.WithDelay(10*time.Millisecond))
	waitForRows(t, guard, 1)

	stats := w.Stats()
	assert.Equal(t, stats.Connects, int64(1))
	assert.Equal(t, stats.Errors, int64(1))

	guard.Read(func(*engine.IndexedModel) error {
		r, err := m.GetRow(0)
		assert.NilError(t, err)
		assert.Equal(t, r.String(), "[RY.TSX CAD 102 100]")
		return nil
	})
}

func TestWorkerClearsOnReconnect(t *testing.T) {
	var sessions int32
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		n := atomic.AddInt32(&sessions, 1)
		if n == 1 {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"update","values":["RY.TSX","CAD","101",1]}`))
			conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"update","values":["TD.TSX","CAD","80",1]}`))
			time.Sleep(100 * time.Millisecond)
			return // drop the connection
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"update","values":["BMO.TSX","CAD","120",1]}`))
		conn.ReadMessage()
	})
	defer server.Close()

	guard, m := newQuoteGuard(t)
	w := NewWorker(httpToWS(server.URL), nil, NewDecoder(quoteKinds, []int{0}), guard, nil)
	w.ClearOnReconnect = true
	w.Backoff = func(int) time.Duration { return 10 * time.Millisecond }
	w.Start(context.Background())
	defer w.Stop()

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if w.Stats().Connects < 2 {
			return poll.Continue("waiting for reconnect")
		}
		return poll.Success()
	}, poll.WithTimeout(3*time.Second), poll.WithDelay(10*time.Millisecond))
	waitForRows(t, guard, 1)

	guard.Read(func(*engine.IndexedModel) error {
		r, err := m.GetRow(0)
		assert.NilError(t, err)
		assert.Equal(t, r.String(), "[BMO.TSX CAD 120 1]")
		return nil
	})
}

func TestWorkerStopWhileDisconnected(t *testing.T) {
	guard, _ := newQuoteGuard(t)
	w := NewWorker("ws://127.0.0.1:1/none", nil, NewDecoder(quoteKinds, []int{0}), guard, nil)
	w.Start(context.Background())

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestWorkerKeepsQuietFeed(t *testing.T) {
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"update","values":["RY.TSX","CAD","101",1]}`))
		// no more rows; reading lets the connection answer pings
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	guard, _ := newQuoteGuard(t)
	w := NewWorker(httpToWS(server.URL), nil, NewDecoder(quoteKinds, []int{0}), guard, nil)
	w.ReadTimeout = 300 * time.Millisecond
	w.PingInterval = 50 * time.Millisecond
	w.ClearOnReconnect = true
	w.Backoff = func(int) time.Duration { return 10 * time.Millisecond }
	w.Start(context.Background())
	defer w.Stop()

	waitForRows(t, guard, 1)
	time.Sleep(4 * w.ReadTimeout)

	assert.Equal(t, w.Stats().Connects, int64(1))
	assert.Equal(t, rowCount(guard), 1)
}
