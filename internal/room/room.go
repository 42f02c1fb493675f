// Package room holds the Room value type, the per-room deferral queue
// used for causal delivery, and the registry that tracks which rooms a
// node created versus merely joined.
package room

import (
	"net"

	"github.com/google/uuid"

	"groupchat/internal/peer"
	"groupchat/internal/vclock"
)

// Text is a chat message inside a room: the payload plus the causal
// metadata needed to order and deduplicate it.
type Text struct {
	RoomID   uuid.UUID
	AuthorID uuid.UUID
	Body     string
	Clock    vclock.Clock
	AckID    uuid.UUID
}

// Room is a named multicast group with an explicit member set, a vector
// clock tracking causal progress, and a deferral queue of text messages
// received out of causal order.
type Room struct {
	ID            uuid.UUID
	Name          string
	MulticastAddr net.UDPAddr
	Members       map[uuid.UUID]peer.Peer
	Clock         vclock.Clock
	History       []Text

	deferred []Text
}

// New builds a Room with the given members (which must include self) and
// a vector clock seeded at 0 for every member, per the invariant that
// every member's identifier is a key in the room's clock.
func New(id uuid.UUID, name string, multicastAddr net.UDPAddr, members []peer.Peer) Room {
	memberMap := make(map[uuid.UUID]peer.Peer, len(members))
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		memberMap[m.ID] = m
		ids = append(ids, m.ID)
	}
	return Room{
		ID:            id,
		Name:          name,
		MulticastAddr: multicastAddr,
		Members:       memberMap,
		Clock:         vclock.New(ids...),
	}
}

// OtherMembers returns every member except selfID.
func (r Room) OtherMembers(selfID uuid.UUID) []peer.Peer {
	out := make([]peer.Peer, 0, len(r.Members))
	for id, p := range r.Members {
		if id != selfID {
			out = append(out, p)
		}
	}
	return out
}

// HasMember reports whether id is a member of the room.
func (r Room) HasMember(id uuid.UUID) bool {
	_, ok := r.Members[id]
	return ok
}

// AppendText appends t to the room's locally delivered history.
func (r *Room) AppendText(t Text) {
	r.History = append(r.History, t)
}

// Enqueue places a causally-pending message at the tail of the deferral
// queue.
func (r *Room) Enqueue(t Text) {
	r.deferred = append(r.deferred, t)
}

// Deferred returns the messages currently withheld pending causal
// dependencies, in arrival order.
func (r *Room) Deferred() []Text {
	return r.deferred
}

// DrainDeferred repeatedly scans the deferral queue for a message that
// accept (the caller's causal-delivery decision, see
// SPEC_FULL.md §4.8.1) reports as deliverable against the room's current
// clock, merges that message's clock into the room's clock, appends it to
// history, and removes it from the queue — then rescans from the start,
// since delivering one message can make others deliverable. It returns
// every message delivered this way, in delivery order. This expresses the
// causality engine's "rescan the deferral queue, possibly recursively"
// step as an explicit worklist loop rather than Go call-stack recursion.
func (r *Room) DrainDeferred(accept func(current vclock.Clock, msg Text) bool) []Text {
	var delivered []Text
	for {
		progressed := false
		for i, msg := range r.deferred {
			if !accept(r.Clock, msg) {
				continue
			}
			r.Clock.Merge(msg.Clock)
			r.History = append(r.History, msg)
			delivered = append(delivered, msg)
			r.deferred = append(r.deferred[:i:i], r.deferred[i+1:]...)
			progressed = true
			break
		}
		if !progressed {
			return delivered
		}
	}
}
