// Package peer holds the Peer value type and the registry of peers a node
// has discovered on the network.
package peer

import (
	"fmt"
	"net"

	"github.com/google/uuid"
)

// Peer identifies a process participating in the network.
type Peer struct {
	ID       uuid.UUID
	Username string
	Addr     net.UDPAddr
}

// New builds a Peer with a freshly generated identifier.
func New(username string, addr net.UDPAddr) Peer {
	return Peer{
		ID:       uuid.New(),
		Username: username,
		Addr:     addr,
	}
}

func (p Peer) String() string {
	return fmt.Sprintf("%s (%s) @ %s", p.Username, p.ID, p.Addr.String())
}

// Registry is the set of known peers, keyed by identifier. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	selfID uuid.UUID
	peers  map[uuid.UUID]Peer
}

// NewRegistry returns an empty registry that refuses to ever hold selfID.
func NewRegistry(selfID uuid.UUID) *Registry {
	return &Registry{
		selfID: selfID,
		peers:  make(map[uuid.UUID]Peer),
	}
}

// Add inserts p into the registry. It returns false, and leaves the
// registry unchanged, if p's identifier already has an entry or equals
// the registry's self identifier (the former PeerAlreadyPresent signal,
// now a plain boolean per the redesign notes).
func (r *Registry) Add(p Peer) bool {
	if p.ID == r.selfID {
		return false
	}
	if _, exists := r.peers[p.ID]; exists {
		return false
	}
	r.peers[p.ID] = p
	return true
}

// Remove deletes id from the registry. It is idempotent.
func (r *Registry) Remove(id uuid.UUID) {
	delete(r.peers, id)
}

// Get returns the peer for id, if known.
func (r *Registry) Get(id uuid.UUID) (Peer, bool) {
	p, ok := r.peers[id]
	return p, ok
}

// List returns every known peer. Iteration order is not stable across
// processes or calls.
func (r *Registry) List() []Peer {
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Len reports how many peers are known.
func (r *Registry) Len() int {
	return len(r.peers)
}
