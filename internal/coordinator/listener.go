package coordinator

import (
	"errors"
	"net"

	"github.com/google/uuid"

	"groupchat/internal/wire"
)

const maxDatagramBuf = wire.MaxDatagramSize

// runUnicastListener reads from the shared unicast socket until it is
// closed, decoding each datagram and posting the matching event onto the
// coordinator's channel. Grounded on the teacher's broadcast.Listen loop
// (internal/broadcast/broadcast.go), generalized from a single handler
// func to a decode-then-dispatch switch over wire.Kind.
func (c *Coordinator) runUnicastListener() {
	buf := make([]byte, maxDatagramBuf)
	for {
		n, remoteAddr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Debug("unicast read error: %v", err)
			continue
		}

		if remoteAddr.IP.Equal(c.self.Addr.IP) && remoteAddr.Port == c.self.Addr.Port {
			continue
		}

		msg, err := wire.Decode(buf[:n])
		if err != nil {
			c.log.Debug("dropping malformed unicast datagram from %s: %v", remoteAddr, err)
			continue
		}

		c.dispatchUnicast(msg, *remoteAddr)
	}
}

// runMulticastListener reads a single room's multicast group until its
// socket is closed. Self-filtering is by sender identifier inside the
// decoded payload rather than source IP, since a process observes its
// own multicast sends looped back.
func (c *Coordinator) runMulticastListener(roomID uuid.UUID, conn *net.UDPConn) {
	buf := make([]byte, maxDatagramBuf)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Debug("multicast read error for room %s: %v", roomID, err)
			continue
		}

		msg, err := wire.Decode(buf[:n])
		if err != nil {
			c.log.Debug("dropping malformed multicast datagram for room %s: %v", roomID, err)
			continue
		}

		c.dispatchMulticast(roomID, msg)
	}
}

func (c *Coordinator) dispatchUnicast(msg wire.Message, from net.UDPAddr) {
	switch m := msg.(type) {
	case wire.PingMsg:
		if m.Sender.ID == c.self.ID {
			return
		}
		c.post(func() { c.onPing(m.Sender) })
	case wire.PongMsg:
		if m.Sender.ID == c.self.ID {
			return
		}
		c.post(func() { c.onPong(m.Sender) })
	case wire.RoomMembershipMsg:
		c.post(func() { c.onRoomMembership(m.Room, m.AckID, m.Sender) })
	case wire.LeaveNetworkMsg:
		if m.Sender.ID == c.self.ID {
			return
		}
		c.post(func() { c.onLeaveNetwork(m.Sender, m.AckID) })
	case wire.AckUniMsg:
		c.post(func() { c.onAckUni(m.AckID, m.SenderID) })
	case wire.AckMultiMsg:
		c.post(func() { c.onAckMulti(m.AckID, m.SenderID) })
	default:
		c.log.Debug("unexpected kind %s on unicast socket from %s", msg.Kind(), from)
	}
}

func (c *Coordinator) dispatchMulticast(roomID uuid.UUID, msg wire.Message) {
	switch m := msg.(type) {
	case wire.RoomTextMsg:
		if m.AuthorID == c.self.ID {
			return
		}
		c.post(func() { c.onRoomText(m) })
	case wire.DeleteRoomMsg:
		if m.Sender == c.self.ID {
			return
		}
		c.post(func() { c.onDeleteRoom(m.RoomID, m.AckID, m.Sender) })
	default:
		c.log.Debug("unexpected kind %s on multicast socket for room %s", msg.Kind(), roomID)
	}
}
