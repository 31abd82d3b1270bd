package server

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/udisondev/jeux/internal/player"
)

// Registry is the set of live clients. It arbitrates login-name uniqueness,
// lets sessions find logged-in peers, and drives graceful shutdown: a
// read-shutdown broadcast followed by waiting for every session to
// unregister itself.
type Registry struct {
	mu      sync.Mutex
	empty   *sync.Cond
	clients map[*Client]struct{}
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	r := &Registry{clients: make(map[*Client]struct{})}
	r.empty = sync.NewCond(&r.mu)
	return r
}

// Register wraps conn in a new logged-out client and adds it to the set.
func (r *Registry) Register(conn net.Conn) *Client {
	c := newClient(conn, r)
	r.mu.Lock()
	r.clients[c] = struct{}{}
	n := len(r.clients)
	r.mu.Unlock()

	slog.Debug("client registered", "remote", c.RemoteAddr(), "clients", n)
	return c
}

// Unregister closes the client's connection and removes it from the set.
// When the last client leaves, every WaitForEmpty caller is released.
func (r *Registry) Unregister(c *Client) {
	_ = c.conn.Close()

	r.mu.Lock()
	delete(r.clients, c)
	n := len(r.clients)
	if n == 0 {
		r.empty.Broadcast()
	}
	r.mu.Unlock()

	slog.Debug("client unregistered", "remote", c.RemoteAddr(), "clients", n)
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Lookup returns the client logged in under name, or nil. Login uniqueness
// guarantees at most one match.
func (r *Registry) Lookup(name string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.clients {
		if p := c.Player(); p != nil && p.Name() == name {
			return c
		}
	}
	return nil
}

// AllPlayers returns a snapshot of the players currently logged in.
func (r *Registry) AllPlayers() []*player.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]*player.Player, 0, len(r.clients))
	for c := range r.clients {
		if p := c.Player(); p != nil {
			players = append(players, p)
		}
	}
	return players
}

// login binds p to c if no registered client is already logged in under the
// same name. Arbitration happens under the registry lock so two concurrent
// logins for one name cannot both succeed.
func (r *Registry) login(c *Client, p *player.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for other := range r.clients {
		if other == c {
			continue
		}
		if op := other.Player(); op != nil && op.Name() == p.Name() {
			return fmt.Errorf("login %q: %w", p.Name(), ErrNameInUse)
		}
	}
	return c.bind(p)
}

// WaitForEmpty blocks until the registry holds no clients. Any number of
// callers may wait concurrently.
func (r *Registry) WaitForEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.clients) > 0 {
		r.empty.Wait()
	}
}

// ShutdownAll half-closes the read side of every registered client's
// connection. Each session loop observes EOF, logs its client out, and
// unregisters it; connections without half-close support are closed
// outright.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		type readCloser interface {
			CloseRead() error
		}
		if rc, ok := c.conn.(readCloser); ok {
			if err := rc.CloseRead(); err != nil {
				slog.Debug("read shutdown failed", "remote", c.RemoteAddr(), "err", err)
			}
			continue
		}
		if err := c.conn.Close(); err != nil {
			slog.Debug("close failed", "remote", c.RemoteAddr(), "err", err)
		}
	}
}
