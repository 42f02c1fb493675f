// Package wire implements the binary framing for every message type this
// node sends and receives: a one-byte kind tag, a kind-specific payload,
// and an xxhash64 trailer guarding against truncation and corruption.
// Framing and Marshal/Unmarshal pairing follow the teacher's own
// internal/multicast tagged-message codec (type tag byte first, then
// fixed-width fields via encoding/binary), generalized to a Message
// interface so the coordinator can Encode/Decode without a type switch
// at every call site.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/cespare/xxhash"
	"github.com/google/uuid"

	"groupchat/internal/peer"
	"groupchat/internal/vclock"
)

// Kind identifies the payload that follows the tag byte.
type Kind byte

const (
	KindPing           Kind = 0x01
	KindPong           Kind = 0x02
	KindRoomMembership Kind = 0x03
	KindDeleteRoom     Kind = 0x04
	KindRoomText       Kind = 0x05
	KindLeaveNetwork   Kind = 0x06
	KindAckUni         Kind = 0x07
	KindAckMulti       Kind = 0x08
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "PING"
	case KindPong:
		return "PONG"
	case KindRoomMembership:
		return "ROOM_MEMBERSHIP"
	case KindDeleteRoom:
		return "DELETE_ROOM"
	case KindRoomText:
		return "ROOM_TEXT"
	case KindLeaveNetwork:
		return "LEAVE_NETWORK"
	case KindAckUni:
		return "ACK_UNI"
	case KindAckMulti:
		return "ACK_MULTI"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(k))
	}
}

// MaxDatagramSize is the hard UDP payload ceiling. Datagrams should stay
// well under this (≤ 1500 bytes recommended) to avoid IP fragmentation.
const MaxDatagramSize = 65507

// trailerSize is the width of the xxhash64 checksum appended to every
// encoded message.
const trailerSize = 8

// Message is the discriminated union of everything that can cross the
// wire. Every concrete type in this package implements it.
type Message interface {
	Kind() Kind
	marshalPayload(buf *bytes.Buffer)
}

// Encode serializes m as [kind][payload][xxhash64 trailer].
func Encode(m Message) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(m.Kind()))
	m.marshalPayload(buf)

	sum := xxhash.Sum64(buf.Bytes())
	trailer := make([]byte, trailerSize)
	binary.BigEndian.PutUint64(trailer, sum)
	buf.Write(trailer)

	return buf.Bytes()
}

// Decode parses a datagram produced by Encode, verifying its checksum
// trailer before dispatching on the kind tag. It returns an error —
// never a panic — for truncated, corrupted, or unrecognized input; the
// listener logs that error at debug level and drops the datagram.
func Decode(data []byte) (Message, error) {
	if len(data) < 1+trailerSize {
		return nil, fmt.Errorf("wire: datagram too short: %d bytes", len(data))
	}

	body := data[:len(data)-trailerSize]
	wantSum := binary.BigEndian.Uint64(data[len(data)-trailerSize:])
	if gotSum := xxhash.Sum64(body); gotSum != wantSum {
		return nil, fmt.Errorf("wire: checksum mismatch, datagram corrupted or truncated")
	}

	r := bytes.NewReader(body[1:])
	switch Kind(body[0]) {
	case KindPing:
		return decodePing(r)
	case KindPong:
		return decodePong(r)
	case KindRoomMembership:
		return decodeRoomMembership(r)
	case KindDeleteRoom:
		return decodeDeleteRoom(r)
	case KindRoomText:
		return decodeRoomText(r)
	case KindLeaveNetwork:
		return decodeLeaveNetwork(r)
	case KindAckUni:
		return decodeAckUni(r)
	case KindAckMulti:
		return decodeAckMulti(r)
	default:
		return nil, fmt.Errorf("wire: unrecognized kind tag 0x%02x", body[0])
	}
}

func writeUUID(buf *bytes.Buffer, id uuid.UUID) {
	buf.Write(id[:])
}

func readUUID(r *bytes.Reader) (uuid.UUID, error) {
	var raw [16]byte
	if _, err := r.Read(raw[:]); err != nil {
		return uuid.UUID{}, fmt.Errorf("wire: failed to read uuid: %w", err)
	}
	return uuid.UUID(raw), nil
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", fmt.Errorf("wire: failed to read string length: %w", err)
	}
	if int(n) > r.Len() {
		return "", fmt.Errorf("wire: string length %d exceeds remaining buffer", n)
	}
	out := make([]byte, n)
	if _, err := r.Read(out); err != nil {
		return "", fmt.Errorf("wire: failed to read string body: %w", err)
	}
	return string(out), nil
}

func writePeer(buf *bytes.Buffer, p peer.Peer) {
	writeUUID(buf, p.ID)
	writeString(buf, p.Username)
	ip4 := p.Addr.IP.To4()
	if ip4 == nil {
		ip4 = make([]byte, 4)
	}
	buf.Write(ip4)
	_ = binary.Write(buf, binary.BigEndian, uint16(p.Addr.Port))
}

func readPeer(r *bytes.Reader) (peer.Peer, error) {
	id, err := readUUID(r)
	if err != nil {
		return peer.Peer{}, err
	}
	username, err := readString(r)
	if err != nil {
		return peer.Peer{}, err
	}
	ip := make([]byte, 4)
	if _, err := r.Read(ip); err != nil {
		return peer.Peer{}, fmt.Errorf("wire: failed to read peer ip: %w", err)
	}
	var port uint16
	if err := binary.Read(r, binary.BigEndian, &port); err != nil {
		return peer.Peer{}, fmt.Errorf("wire: failed to read peer port: %w", err)
	}
	return peer.Peer{
		ID:       id,
		Username: username,
		Addr:     net.UDPAddr{IP: net.IP(ip), Port: int(port)},
	}, nil
}

func writeClock(buf *bytes.Buffer, c vclock.Clock) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(c)))
	for id, count := range c {
		writeUUID(buf, id)
		_ = binary.Write(buf, binary.BigEndian, int64(count))
	}
}

func readClock(r *bytes.Reader) (vclock.Clock, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("wire: failed to read clock size: %w", err)
	}
	c := make(vclock.Clock, n)
	for i := uint32(0); i < n; i++ {
		id, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		var count int64
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, fmt.Errorf("wire: failed to read clock entry: %w", err)
		}
		c[id] = int(count)
	}
	return c, nil
}
