package coordinator

import (
	"net"

	"github.com/google/uuid"

	"groupchat/internal/ackwait"
	"groupchat/internal/wire"
)

// sendUnicast encodes msg and writes it directly to addr over the shared
// unicast socket. It never blocks waiting for an ack — that bookkeeping
// lives entirely in internal/ackwait.
func (c *Coordinator) sendUnicast(msg wire.Message, addr net.UDPAddr) {
	data := wire.Encode(msg)
	if _, err := c.conn.WriteToUDP(data, &addr); err != nil {
		c.log.Debug("failed to send %s to %s: %v", msg.Kind(), addr, err)
	}
}

// sendBroadcast encodes msg and writes it to the LAN broadcast address on
// the well-known unicast port.
func (c *Coordinator) sendBroadcast(msg wire.Message) {
	dest := wire.Broadcast(c.unicastPort)
	data := wire.Encode(msg)
	if _, err := c.conn.WriteToUDP(data, &dest.Addr); err != nil {
		c.log.Debug("failed to broadcast %s: %v", msg.Kind(), err)
	}
}

// sendMulticast encodes msg and writes it to roomID's multicast group
// using that room's dedicated send socket. It is a no-op, logged at
// debug, if the room's multicast group hasn't been joined locally.
func (c *Coordinator) sendMulticast(msg wire.Message, roomID uuid.UUID) {
	sock, ok := c.multicastSockets[roomID]
	if !ok {
		c.log.Debug("no multicast socket for room %s, dropping %s", roomID, msg.Kind())
		return
	}
	data := wire.Encode(msg)
	if _, err := sock.send.Write(data); err != nil {
		c.log.Debug("failed to multicast %s for room %s: %v", msg.Kind(), roomID, err)
	}
}

// postUnicastRetransmit is the ackwait.Manager callback for an expired
// unicast ticker: it hands the retransmit off to the coordinator's event
// channel so the actual re-send still happens on the single coordinator
// goroutine (see SPEC_FULL.md §4.7 and §5).
func (c *Coordinator) postUnicastRetransmit(r ackwait.UnicastRetransmit) {
	c.post(func() {
		for _, addr := range r.Targets {
			c.sendUnicast(r.Message, addr)
		}
	})
}

// postMulticastRetransmit is the analogous callback for multicast lists.
func (c *Coordinator) postMulticastRetransmit(r ackwait.MulticastRetransmit) {
	c.post(func() {
		sock, ok := c.multicastSockets[roomIDForGroup(c, r.GroupAddr)]
		if !ok {
			return
		}
		data := wire.Encode(r.Message)
		if _, err := sock.send.Write(data); err != nil {
			c.log.Debug("failed to retransmit %s: %v", r.Message.Kind(), err)
		}
	})
}

// roomIDForGroup finds the room whose multicast address matches
// groupAddr, since ack lists key multicast retransmits by group address
// rather than room id. A created room that was just deleted is no longer
// in the registry but keeps its multicast socket while its DELETE_ROOM
// list is pending, so the joined sockets are searched as well.
func roomIDForGroup(c *Coordinator, groupAddr net.UDPAddr) uuid.UUID {
	for _, r := range c.rooms.Created() {
		if r.MulticastAddr.IP.Equal(groupAddr.IP) && r.MulticastAddr.Port == groupAddr.Port {
			return r.ID
		}
	}
	for _, r := range c.rooms.Participating() {
		if r.MulticastAddr.IP.Equal(groupAddr.IP) && r.MulticastAddr.Port == groupAddr.Port {
			return r.ID
		}
	}
	for id, sock := range c.multicastSockets {
		if addr, ok := sock.send.RemoteAddr().(*net.UDPAddr); ok && addr.IP.Equal(groupAddr.IP) && addr.Port == groupAddr.Port {
			return id
		}
	}
	return uuid.Nil
}
