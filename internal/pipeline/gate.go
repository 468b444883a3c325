package pipeline

import "sync"

// Gate separates store mutations from reads. At most one exclusive section
// runs at a time and no shared section runs alongside it, so a read never
// sees a half-cleared or half-loaded graph. Shared sections run concurrently.
type Gate struct {
	mu sync.RWMutex
}

// Exclusive runs fn with no other section in flight.
func (g *Gate) Exclusive(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}

// Shared runs fn alongside other shared sections, waiting out any exclusive one.
// The wait ignores contexts, so fn should check its caller's context first.
func (g *Gate) Shared(fn func() error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn()
}
