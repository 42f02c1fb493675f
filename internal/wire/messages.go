package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/uuid"

	"groupchat/internal/peer"
	"groupchat/internal/room"
	"groupchat/internal/vclock"
)

// PingMsg announces the sender on the broadcast channel.
type PingMsg struct {
	Sender peer.Peer
}

func (m PingMsg) Kind() Kind { return KindPing }
func (m PingMsg) marshalPayload(buf *bytes.Buffer) {
	writePeer(buf, m.Sender)
}
func decodePing(r *bytes.Reader) (Message, error) {
	p, err := readPeer(r)
	if err != nil {
		return nil, err
	}
	return PingMsg{Sender: p}, nil
}

// PongMsg answers a Ping directly to its source.
type PongMsg struct {
	Sender peer.Peer
}

func (m PongMsg) Kind() Kind { return KindPong }
func (m PongMsg) marshalPayload(buf *bytes.Buffer) {
	writePeer(buf, m.Sender)
}
func decodePong(r *bytes.Reader) (Message, error) {
	p, err := readPeer(r)
	if err != nil {
		return nil, err
	}
	return PongMsg{Sender: p}, nil
}

// RoomMembershipMsg carries the full room state to a newly added member.
type RoomMembershipMsg struct {
	Room   room.Room
	AckID  uuid.UUID
	Sender uuid.UUID
}

func (m RoomMembershipMsg) Kind() Kind { return KindRoomMembership }
func (m RoomMembershipMsg) marshalPayload(buf *bytes.Buffer) {
	writeUUID(buf, m.Room.ID)
	writeString(buf, m.Room.Name)
	ip4 := m.Room.MulticastAddr.IP.To4()
	if ip4 == nil {
		ip4 = make([]byte, 4)
	}
	buf.Write(ip4)
	_ = binary.Write(buf, binary.BigEndian, uint16(m.Room.MulticastAddr.Port))

	_ = binary.Write(buf, binary.BigEndian, uint32(len(m.Room.Members)))
	for _, p := range m.Room.Members {
		writePeer(buf, p)
	}
	writeClock(buf, m.Room.Clock)
	writeUUID(buf, m.AckID)
	writeUUID(buf, m.Sender)
}
func decodeRoomMembership(r *bytes.Reader) (Message, error) {
	id, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	ip := make([]byte, 4)
	if _, err := r.Read(ip); err != nil {
		return nil, fmt.Errorf("wire: failed to read multicast ip: %w", err)
	}
	var port uint16
	if err := binary.Read(r, binary.BigEndian, &port); err != nil {
		return nil, fmt.Errorf("wire: failed to read multicast port: %w", err)
	}

	var memberCount uint32
	if err := binary.Read(r, binary.BigEndian, &memberCount); err != nil {
		return nil, fmt.Errorf("wire: failed to read member count: %w", err)
	}
	members := make([]peer.Peer, 0, memberCount)
	for i := uint32(0); i < memberCount; i++ {
		p, err := readPeer(r)
		if err != nil {
			return nil, err
		}
		members = append(members, p)
	}

	clock, err := readClock(r)
	if err != nil {
		return nil, err
	}
	ackID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	sender, err := readUUID(r)
	if err != nil {
		return nil, err
	}

	rm := room.New(id, name, net.UDPAddr{IP: net.IP(ip), Port: int(port)}, members)
	rm.Clock = clock

	return RoomMembershipMsg{Room: rm, AckID: ackID, Sender: sender}, nil
}

// DeleteRoomMsg retires a room for every member.
type DeleteRoomMsg struct {
	RoomID uuid.UUID
	AckID  uuid.UUID
	Sender uuid.UUID
}

func (m DeleteRoomMsg) Kind() Kind { return KindDeleteRoom }
func (m DeleteRoomMsg) marshalPayload(buf *bytes.Buffer) {
	writeUUID(buf, m.RoomID)
	writeUUID(buf, m.AckID)
	writeUUID(buf, m.Sender)
}
func decodeDeleteRoom(r *bytes.Reader) (Message, error) {
	roomID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	ackID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	sender, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	return DeleteRoomMsg{RoomID: roomID, AckID: ackID, Sender: sender}, nil
}

// RoomTextMsg carries one causally-stamped chat message.
type RoomTextMsg struct {
	RoomID   uuid.UUID
	AuthorID uuid.UUID
	Body     string
	Clock    vclock.Clock
	AckID    uuid.UUID
}

func (m RoomTextMsg) Kind() Kind { return KindRoomText }
func (m RoomTextMsg) marshalPayload(buf *bytes.Buffer) {
	writeUUID(buf, m.RoomID)
	writeUUID(buf, m.AuthorID)
	writeString(buf, m.Body)
	writeClock(buf, m.Clock)
	writeUUID(buf, m.AckID)
}
func decodeRoomText(r *bytes.Reader) (Message, error) {
	roomID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	authorID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	body, err := readString(r)
	if err != nil {
		return nil, err
	}
	clock, err := readClock(r)
	if err != nil {
		return nil, err
	}
	ackID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	return RoomTextMsg{RoomID: roomID, AuthorID: authorID, Body: body, Clock: clock, AckID: ackID}, nil
}

// ToRoomText converts a decoded wire message into the room package's
// local Text representation.
func (m RoomTextMsg) ToRoomText() room.Text {
	return room.Text{RoomID: m.RoomID, AuthorID: m.AuthorID, Body: m.Body, Clock: m.Clock, AckID: m.AckID}
}

// LeaveNetworkMsg announces the sender's departure.
type LeaveNetworkMsg struct {
	Sender peer.Peer
	AckID  uuid.UUID
}

func (m LeaveNetworkMsg) Kind() Kind { return KindLeaveNetwork }
func (m LeaveNetworkMsg) marshalPayload(buf *bytes.Buffer) {
	writePeer(buf, m.Sender)
	writeUUID(buf, m.AckID)
}
func decodeLeaveNetwork(r *bytes.Reader) (Message, error) {
	p, err := readPeer(r)
	if err != nil {
		return nil, err
	}
	ackID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	return LeaveNetworkMsg{Sender: p, AckID: ackID}, nil
}

// AckUniMsg acknowledges a unicast message.
type AckUniMsg struct {
	SenderID uuid.UUID
	AckID    uuid.UUID
}

func (m AckUniMsg) Kind() Kind { return KindAckUni }
func (m AckUniMsg) marshalPayload(buf *bytes.Buffer) {
	writeUUID(buf, m.SenderID)
	writeUUID(buf, m.AckID)
}
func decodeAckUni(r *bytes.Reader) (Message, error) {
	senderID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	ackID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	return AckUniMsg{SenderID: senderID, AckID: ackID}, nil
}

// AckMultiMsg acknowledges a multicast message.
type AckMultiMsg struct {
	SenderID uuid.UUID
	AckID    uuid.UUID
}

func (m AckMultiMsg) Kind() Kind { return KindAckMulti }
func (m AckMultiMsg) marshalPayload(buf *bytes.Buffer) {
	writeUUID(buf, m.SenderID)
	writeUUID(buf, m.AckID)
}
func decodeAckMulti(r *bytes.Reader) (Message, error) {
	senderID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	ackID, err := readUUID(r)
	if err != nil {
		return nil, err
	}
	return AckMultiMsg{SenderID: senderID, AckID: ackID}, nil
}
