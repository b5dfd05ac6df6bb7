package gameserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/udisondev/crosszero/internal/model"
)

// ErrRegistryFull is returned when every client slot is occupied.
var ErrRegistryFull = errors.New("client registry is full")

// ClientRegistry is the bounded set of active clients. A client slot is
// claimed on accept and cleared on disconnect; the registry also serves
// name lookups for invitations, the logged-in players snapshot for USERS,
// and the shutdown/drain machinery.
type ClientRegistry struct {
	mu    sync.Mutex
	empty *sync.Cond // signaled when count drops to zero
	slots []*Client
	count int
}

// NewClientRegistry creates a registry with capacity maxClients.
func NewClientRegistry(maxClients int) *ClientRegistry {
	r := &ClientRegistry{slots: make([]*Client, maxClients)}
	r.empty = sync.NewCond(&r.mu)
	return r
}

// Register allocates a Client bound to conn in the first empty slot.
func (r *ClientRegistry) Register(conn net.Conn) (*Client, error) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, slot := range r.slots {
		if slot == nil {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrRegistryFull
	}

	c := &Client{
		registry: r,
		conn:     conn,
		ip:       host,
		invs:     make([]*Invitation, len(r.slots)*invSlotsPerClient),
	}
	r.slots[idx] = c
	r.count++
	slog.Info("register client", "remote", host, "connected", r.count)
	return c, nil
}

// Unregister closes the client's socket and frees its slot. The 1 -> 0
// transition releases the empty gate.
func (r *ClientRegistry) Unregister(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, slot := range r.slots {
		if slot == c {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("unregister: client %s not found", c.ip)
	}

	c.conn.Close()
	r.slots[idx] = nil
	r.count--
	if r.count == 0 {
		r.empty.Broadcast()
	}
	slog.Info("unregister client", "remote", c.ip, "connected", r.count)
	return nil
}

// Lookup returns the active client logged in under name, nil when no such
// client exists.
func (r *ClientRegistry) Lookup(name string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(name)
}

func (r *ClientRegistry) lookupLocked(name string) *Client {
	for _, c := range r.slots {
		if c == nil {
			continue
		}
		if p := c.Player(); p != nil && p.Name() == name {
			return c
		}
	}
	return nil
}

// AllPlayers returns a snapshot of the players of every logged-in client.
func (r *ClientRegistry) AllPlayers() []*model.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	var players []*model.Player
	for _, c := range r.slots {
		if c == nil {
			continue
		}
		if p := c.Player(); p != nil {
			players = append(players, p)
		}
	}
	return players
}

// login binds p to c, enforcing at most one logged-in client per player
// name. The name scan and the player-slot store happen under the registry
// lock so two concurrent logins for the same name cannot both succeed.
func (r *ClientRegistry) login(c *Client, p *model.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Player() != nil {
		return ErrAlreadyLoggedIn
	}
	if r.lookupLocked(p.Name()) != nil {
		return ErrNameInUse
	}
	c.setPlayer(p)
	return nil
}

// ShutdownAll shuts down the read side of every active connection so the
// service loops see end-of-stream and exit naturally.
func (r *ClientRegistry) ShutdownAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.slots {
		if c == nil {
			continue
		}
		type closeReader interface{ CloseRead() error }
		if cr, ok := c.conn.(closeReader); ok {
			cr.CloseRead()
		} else {
			c.conn.Close()
		}
	}
}

// WaitForEmpty blocks until the registry holds zero clients.
func (r *ClientRegistry) WaitForEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.count > 0 {
		r.empty.Wait()
	}
}

// Count returns the number of active clients.
func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
