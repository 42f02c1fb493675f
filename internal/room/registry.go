package room

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownRoom is returned when a room id has no entry in the registry.
var ErrUnknownRoom = errors.New("room: unknown room id")

// ErrSameRoomName is returned when a name lookup matches more than one
// room. Room names are not required to be unique at creation time (see
// DESIGN.md's open-question resolutions); callers that need a unique room must
// handle this ambiguity themselves.
var ErrSameRoomName = errors.New("room: more than one room has this name")

type entry struct {
	room    Room
	created bool
}

// Registry tracks every room a node knows about, partitioned into rooms
// it created and rooms it merely joined. A room id belongs to exactly one
// of the two sets at any time.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*entry)}
}

// PutCreated stores r as a room this node created.
func (reg *Registry) PutCreated(r Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.entries[r.ID] = &entry{room: r, created: true}
}

// PutParticipating stores r as a room this node joined but did not create.
func (reg *Registry) PutParticipating(r Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.entries[r.ID] = &entry{room: r, created: false}
}

// Remove deletes id from whichever set holds it. It is a no-op if id is
// unknown.
func (reg *Registry) Remove(id uuid.UUID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.entries, id)
}

// Get returns the room for id and whether this node created it.
func (reg *Registry) Get(id uuid.UUID) (Room, bool, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	e, ok := reg.entries[id]
	if !ok {
		return Room{}, false, false
	}
	return e.room, e.created, true
}

// Mutate runs fn against the stored room for id under the registry lock
// and writes the result back, so callers can update clock/deferral-queue
// state without losing concurrent updates from the coordinator's own
// single-goroutine discipline (see SPEC_FULL.md §5) being bypassed.
func (reg *Registry) Mutate(id uuid.UUID, fn func(r *Room)) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	e, ok := reg.entries[id]
	if !ok {
		return ErrUnknownRoom
	}
	fn(&e.room)
	return nil
}

// ByName returns the single room named name. It returns ErrUnknownRoom if
// none match and ErrSameRoomName if more than one does.
func (reg *Registry) ByName(name string) (Room, error) {
	candidates := reg.AllByName(name)
	switch len(candidates) {
	case 0:
		return Room{}, ErrUnknownRoom
	case 1:
		return candidates[0], nil
	default:
		return Room{}, ErrSameRoomName
	}
}

// AllByName returns every room named name, across both the created and
// participating sets. Room names are not required to be unique (see
// SPEC_FULL.md §4.8.2); callers that need to disambiguate use this to
// build their own candidate-carrying error.
func (reg *Registry) AllByName(name string) []Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var matches []Room
	for _, e := range reg.entries {
		if e.room.Name == name {
			matches = append(matches, e.room)
		}
	}
	return matches
}

// Created returns every room this node created.
func (reg *Registry) Created() []Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var out []Room
	for _, e := range reg.entries {
		if e.created {
			out = append(out, e.room)
		}
	}
	return out
}

// Participating returns every room this node joined without creating.
func (reg *Registry) Participating() []Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var out []Room
	for _, e := range reg.entries {
		if !e.created {
			out = append(out, e.room)
		}
	}
	return out
}
