package coordinator

import (
	"fmt"
	"net"

	"github.com/google/uuid"

	"groupchat/internal/netutil"
	"groupchat/internal/peer"
	"groupchat/internal/room"
	"groupchat/internal/vclock"
	"groupchat/internal/wire"
)

// acceptForDrain wraps causalAccept with a final duplicate check: by the
// time the deferral queue is rescanned, a message that was merely
// concurrent on arrival may have become redundant because other merges
// already caught the room's clock up to it. Redelivering it would
// duplicate history, so it is left queued rather than accepted.
func (c *Coordinator) acceptForDrain(current vclock.Clock, t room.Text) bool {
	if t.Clock.LessOrEqual(current) {
		return false
	}
	return c.causalAccept(current, t.AuthorID, t.Clock)
}

// onPing answers a discovery ping with a pong and learns the sender.
func (c *Coordinator) onPing(p peer.Peer) {
	if p.ID == c.self.ID {
		return
	}
	c.sendUnicast(wire.PongMsg{Sender: c.self}, p.Addr)
	c.peers.Add(p)
}

// onPong learns a peer that answered our ping.
func (c *Coordinator) onPong(p peer.Peer) {
	if p.ID == c.self.ID {
		return
	}
	c.peers.Add(p)
}

// onRoomMembership accepts an invitation into a room someone else
// created, joining its multicast group and learning any members we
// didn't already know about.
func (c *Coordinator) onRoomMembership(r room.Room, ackID, senderID uuid.UUID) {
	c.ackUnicastTo(senderID, r.Members, ackID)

	if _, _, exists := c.rooms.Get(r.ID); exists {
		return
	}

	c.rooms.PutParticipating(r)
	if err := c.joinRoomMulticast(r); err != nil {
		c.log.Error("failed to join multicast group for room %s: %v", r.Name, err)
		return
	}
	for _, m := range r.Members {
		if m.ID != c.self.ID {
			c.peers.Add(m)
		}
	}
	c.notify("added to room %q", r.Name)
}

// onRoomText acknowledges a text message and runs it through the causal
// delivery decision.
func (c *Coordinator) onRoomText(m wire.RoomTextMsg) {
	if r, _, ok := c.rooms.Get(m.RoomID); ok {
		c.ackMulticastTo(m.AuthorID, r.Members, m.AckID)
	}

	var delivered []room.Text
	err := c.rooms.Mutate(m.RoomID, func(r *room.Room) {
		switch c.classify(r.Clock, m.AuthorID, m.Clock) {
		case statusAccepted:
			r.Clock.Merge(m.Clock)
			r.AppendText(m.ToRoomText())
			delivered = r.DrainDeferred(c.acceptForDrain)
		case statusQueued:
			r.Enqueue(m.ToRoomText())
		case statusDiscarded:
		}
	})
	if err != nil {
		c.log.Debug("room text for unknown room %s: %v", m.RoomID, err)
		return
	}
	for _, t := range delivered {
		c.notify("[%s] new message delivered from deferral queue", t.RoomID)
	}
}

// onDeleteRoom tears down a room this node participates in (but did not
// create) when its owner deletes it.
func (c *Coordinator) onDeleteRoom(roomID, ackID, senderID uuid.UUID) {
	r, created, ok := c.rooms.Get(roomID)
	if ok {
		c.ackMulticastTo(senderID, r.Members, ackID)
	}
	if !ok || created {
		return
	}

	c.acks.RoomDeleted(r.MulticastAddr)
	c.leaveRoomMulticast(roomID)
	c.rooms.Remove(roomID)
	if c.hasDisplayed && c.displayedRoom == roomID {
		c.hasDisplayed = false
	}
	c.notify("room %q was deleted", r.Name)
}

// onLeaveNetwork retires a departing peer from every room and from the
// peer registry.
func (c *Coordinator) onLeaveNetwork(p peer.Peer, ackID uuid.UUID) {
	c.sendUnicast(wire.AckUniMsg{SenderID: c.self.ID, AckID: ackID}, p.Addr)

	for _, r := range append(c.rooms.Created(), c.rooms.Participating()...) {
		if !r.HasMember(p.ID) {
			continue
		}
		c.acks.RoomDeleted(r.MulticastAddr)
		c.leaveRoomMulticast(r.ID)
		c.rooms.Remove(r.ID)
		if c.hasDisplayed && c.displayedRoom == r.ID {
			c.hasDisplayed = false
		}
		c.notify("room %q removed: %s left the network", r.Name, p.Username)
	}

	c.acks.PeerDeparted(p.ID)
	c.peers.Remove(p.ID)
	c.notify("%s left the network", p.Username)
}

func (c *Coordinator) onAckUni(ackID, senderID uuid.UUID) {
	c.acks.AckUnicast(ackID, senderID)
}

func (c *Coordinator) onAckMulti(ackID, senderID uuid.UUID) {
	c.acks.AckMulticast(ackID, senderID)
}

func (c *Coordinator) ackUnicastTo(senderID uuid.UUID, members map[uuid.UUID]peer.Peer, ackID uuid.UUID) {
	addr, ok := c.resolveAddr(senderID, members)
	if !ok {
		return
	}
	c.sendUnicast(wire.AckUniMsg{SenderID: c.self.ID, AckID: ackID}, addr)
}

func (c *Coordinator) ackMulticastTo(senderID uuid.UUID, members map[uuid.UUID]peer.Peer, ackID uuid.UUID) {
	addr, ok := c.resolveAddr(senderID, members)
	if !ok {
		return
	}
	c.sendUnicast(wire.AckMultiMsg{SenderID: c.self.ID, AckID: ackID}, addr)
}

func (c *Coordinator) resolveAddr(id uuid.UUID, members map[uuid.UUID]peer.Peer) (net.UDPAddr, bool) {
	if p, ok := members[id]; ok {
		return p.Addr, true
	}
	if p, ok := c.peers.Get(id); ok {
		return p.Addr, true
	}
	return net.UDPAddr{}, false
}

// CreateRoom builds a room containing self plus every peer id in
// selectedPeerIDs that is actually known, assigns it a fresh multicast
// group, joins that group locally, and invites every other member under
// one shared ack-id.
func (c *Coordinator) CreateRoom(name string, selectedPeerIDs []uuid.UUID) (room.Room, error) {
	var r room.Room
	var err error
	c.call(func() {
		members := []peer.Peer{c.self}
		seen := map[uuid.UUID]bool{}
		for _, id := range selectedPeerIDs {
			if id == c.self.ID || seen[id] {
				continue
			}
			p, ok := c.peers.Get(id)
			if !ok {
				continue
			}
			seen[id] = true
			members = append(members, p)
		}
		if len(members) < 2 {
			err = ErrEmptyRoom
			return
		}

		groupIP, genErr := netutil.RandomMulticastGroup()
		if genErr != nil {
			err = fmt.Errorf("coordinator: failed to allocate a multicast group: %w", genErr)
			return
		}

		r = room.New(uuid.New(), name, net.UDPAddr{IP: groupIP, Port: int(c.multicastPort)}, members)
		c.rooms.PutCreated(r)
		if joinErr := c.joinRoomMulticast(r); joinErr != nil {
			err = joinErr
			return
		}

		ackID := uuid.New()
		targets := make(map[uuid.UUID]net.UDPAddr)
		for _, p := range members {
			if p.ID != c.self.ID {
				targets[p.ID] = p.Addr
			}
		}
		msg := wire.RoomMembershipMsg{Room: r, AckID: ackID, Sender: c.self.ID}
		for _, addr := range targets {
			c.sendUnicast(msg, addr)
		}
		c.acks.StartUnicast(ackID, msg, targets)
	})
	return r, err
}

// deleteCreatedRoom removes r from the created-rooms set and tells every
// other member to drop it too.
func (c *Coordinator) deleteCreatedRoom(r room.Room) {
	c.rooms.Remove(r.ID)
	if c.hasDisplayed && c.displayedRoom == r.ID {
		c.hasDisplayed = false
	}

	ackID := uuid.New()
	pending := make(map[uuid.UUID]bool)
	for id := range r.Members {
		if id != c.self.ID {
			pending[id] = true
		}
	}
	msg := wire.DeleteRoomMsg{RoomID: r.ID, AckID: ackID, Sender: c.self.ID}
	c.sendMulticast(msg, r.ID)
	c.acks.StartMulticast(ackID, msg, r.MulticastAddr, pending)
}

// DeleteCreatedRoom retires a room this node created.
func (c *Coordinator) DeleteCreatedRoom(r room.Room) error {
	c.call(func() {
		c.deleteCreatedRoom(r)
	})
	return nil
}

// SendRoomText appends text to the currently displayed room, stamps it
// with the room's vector clock, and multicasts it to every other member.
func (c *Coordinator) SendRoomText(text string) error {
	var err error
	c.call(func() {
		if !c.hasDisplayed {
			err = ErrNoRoomSelected
			return
		}
		roomID := c.displayedRoom
		r, _, ok := c.rooms.Get(roomID)
		if !ok {
			err = ErrNoRoomSelected
			return
		}

		ackID := uuid.New()
		var snapshot vclock.Clock
		mutateErr := c.rooms.Mutate(roomID, func(rm *room.Room) {
			rm.Clock.Increment(c.self.ID)
			snapshot = rm.Clock.Clone()
			rm.AppendText(room.Text{RoomID: roomID, AuthorID: c.self.ID, Body: text, Clock: snapshot, AckID: ackID})
		})
		if mutateErr != nil {
			err = mutateErr
			return
		}

		msg := wire.RoomTextMsg{RoomID: roomID, AuthorID: c.self.ID, Body: text, Clock: snapshot, AckID: ackID}
		c.sendMulticast(msg, roomID)

		pending := make(map[uuid.UUID]bool)
		for id := range r.Members {
			if id != c.self.ID {
				pending[id] = true
			}
		}
		c.acks.StartMulticast(ackID, msg, r.MulticastAddr, pending)
	})
	return err
}

// JoinRoom focuses the UI on a room this node already belongs to
// (created or participating) — purely local bookkeeping, since room
// membership is established the moment a ROOM_MEMBERSHIP is accepted.
func (c *Coordinator) JoinRoom(name string) error {
	var err error
	c.call(func() {
		candidates := c.rooms.AllByName(name)
		switch len(candidates) {
		case 0:
			err = ErrInvalidParameter
		case 1:
			c.displayedRoom = candidates[0].ID
			c.hasDisplayed = true
		default:
			err = &SameRoomNameError{Name: name, candidates: candidates}
		}
	})
	return err
}

// LeaveRoom departs a room by name. If this node created the room, that
// is equivalent to DeleteCreatedRoom. Otherwise it is local-only: the
// wire protocol has no "depart this one room" message distinct from
// LEAVE_NETWORK's full departure, so other members keep this node as a
// member until it leaves the network entirely (see DESIGN.md).
func (c *Coordinator) LeaveRoom(name string) error {
	var err error
	c.call(func() {
		candidates := c.rooms.AllByName(name)
		switch len(candidates) {
		case 0:
			err = ErrInvalidParameter
			return
		case 1:
		default:
			err = &SameRoomNameError{Name: name, candidates: candidates}
			return
		}

		r := candidates[0]
		_, created, _ := c.rooms.Get(r.ID)
		if created {
			c.deleteCreatedRoom(r)
			return
		}

		c.leaveRoomMulticast(r.ID)
		c.rooms.Remove(r.ID)
		if c.hasDisplayed && c.displayedRoom == r.ID {
			c.hasDisplayed = false
		}
		c.notify("left room %q", r.Name)
	})
	return err
}
