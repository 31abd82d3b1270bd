package player

import "sync"

// Registry is the directory of every player the server has seen. It only
// grows within a process run; players live until exit so ratings survive
// logouts and reconnects.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
}

// NewRegistry creates an empty player registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*Player)}
}

// Register returns the player with the given name, creating it on first
// sight. Names are compared byte-for-byte; at most one Player per distinct
// name ever exists.
func (r *Registry) Register(name string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[name]; ok {
		return p
	}
	p := New(name)
	r.players[name] = p
	return p
}

// Lookup returns the player with the given name, or nil.
func (r *Registry) Lookup(name string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[name]
}

// Count returns the number of distinct players seen so far.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}
