package ackwait

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"groupchat/internal/logger"
	"groupchat/internal/wire"
)

func testManager(t *testing.T, onUnicast func(UnicastRetransmit), onMulticast func(MulticastRetransmit)) *Manager {
	t.Helper()
	if onUnicast == nil {
		onUnicast = func(UnicastRetransmit) {}
	}
	if onMulticast == nil {
		onMulticast = func(MulticastRetransmit) {}
	}
	return NewManager(20*time.Millisecond, onUnicast, onMulticast, logger.New(logger.ERROR))
}

func waitClosed(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for list completion")
	}
}

func TestUnicastListCompletesWhenEveryPeerAcks(t *testing.T) {
	m := testManager(t, nil, nil)
	ackID := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	targets := map[uuid.UUID]net.UDPAddr{
		alice: {IP: net.ParseIP("10.0.0.1"), Port: 9000},
		bob:   {IP: net.ParseIP("10.0.0.2"), Port: 9000},
	}

	m.StartUnicast(ackID, wire.PingMsg{}, targets)

	if m.AckUnicast(ackID, alice) {
		t.Fatalf("list should not complete after only one of two acks")
	}
	if !m.AckUnicast(ackID, bob) {
		t.Fatalf("list should complete once every peer has acked")
	}
	waitClosed(t, m.Done(ackID), time.Second)
}

func TestMulticastListCompletesWhenEveryMemberAcks(t *testing.T) {
	m := testManager(t, nil, nil)
	ackID := uuid.New()
	alice, bob := uuid.New(), uuid.New()

	m.StartMulticast(ackID, wire.PingMsg{}, net.UDPAddr{IP: net.ParseIP("239.1.2.3"), Port: 9001}, map[uuid.UUID]bool{alice: true, bob: true})

	if m.AckMulticast(ackID, alice) {
		t.Fatalf("list should not complete after only one ack")
	}
	if !m.AckMulticast(ackID, bob) {
		t.Fatalf("list should complete once every member has acked")
	}
}

func TestUnicastTickerRetransmitsUntilAcked(t *testing.T) {
	retransmits := make(chan UnicastRetransmit, 8)
	m := testManager(t, func(r UnicastRetransmit) { retransmits <- r }, nil)

	ackID := uuid.New()
	alice := uuid.New()
	m.StartUnicast(ackID, wire.PingMsg{}, map[uuid.UUID]net.UDPAddr{alice: {IP: net.ParseIP("10.0.0.1"), Port: 9000}})

	select {
	case r := <-retransmits:
		if r.AckID != ackID {
			t.Fatalf("expected retransmit for %s, got %s", ackID, r.AckID)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected at least one retransmit before the ack arrived")
	}

	m.AckUnicast(ackID, alice)
}

func TestPeerDepartedRemovesOnlyThatPeersEntries(t *testing.T) {
	m := testManager(t, nil, nil)
	ackID := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	m.StartUnicast(ackID, wire.PingMsg{}, map[uuid.UUID]net.UDPAddr{
		alice: {IP: net.ParseIP("10.0.0.1"), Port: 9000},
		bob:   {IP: net.ParseIP("10.0.0.2"), Port: 9000},
	})

	m.PeerDeparted(alice)
	if m.AckUnicast(ackID, alice) {
		t.Fatalf("alice's entry should already be gone, ack should be a no-op")
	}
	if !m.AckUnicast(ackID, bob) {
		t.Fatalf("list should complete once bob, the only remaining entry, acks")
	}
}

func TestPeerDepartureCanCompleteAMulticastList(t *testing.T) {
	m := testManager(t, nil, nil)
	ackID := uuid.New()
	alice := uuid.New()
	m.StartMulticast(ackID, wire.PingMsg{}, net.UDPAddr{IP: net.ParseIP("239.1.2.3"), Port: 9001}, map[uuid.UUID]bool{alice: true})

	m.PeerDeparted(alice)
	waitClosed(t, m.Done(ackID), time.Second)
}

func TestRoomDeletedDiscardsMatchingMulticastLists(t *testing.T) {
	m := testManager(t, nil, nil)
	ackID := uuid.New()
	group := net.UDPAddr{IP: net.ParseIP("239.1.2.3"), Port: 9001}
	m.StartMulticast(ackID, wire.PingMsg{}, group, map[uuid.UUID]bool{uuid.New(): true})

	m.RoomDeleted(group)
	waitClosed(t, m.Done(ackID), time.Second)
}

func TestDoneOnUnknownAckIDIsAlreadyClosed(t *testing.T) {
	m := testManager(t, nil, nil)
	waitClosed(t, m.Done(uuid.New()), time.Second)
}
