package engine

import "sync"

// Guard serializes access to an IndexedModel shared between goroutines.
// The model itself assumes a single writer; Guard is the external lock
// that lets a feed goroutine write while servers and consoles read.
//
// Listeners fire inside Write, while the lock is held: they must not call
// back into the Guard and must not block.
type Guard struct {
	mu    sync.RWMutex
	model *IndexedModel
}

// NewGuard wraps model. All access to model must then go through the Guard.
func NewGuard(model *IndexedModel) *Guard {
	return &Guard{model: model}
}

// Write runs fn with exclusive access to the model
func (g *Guard) Write(fn func(*IndexedModel) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.model)
}

// Read runs fn with shared access. fn must not mutate the model or
// register listeners; use Write for subscription changes.
func (g *Guard) Read(fn func(*IndexedModel) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(g.model)
}
