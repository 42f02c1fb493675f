package coordinator

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"groupchat/internal/ackwait"
	"groupchat/internal/logger"
	"groupchat/internal/peer"
	"groupchat/internal/room"
	"groupchat/internal/vclock"
	"groupchat/internal/wire"
)

// newTestCoordinator builds a Coordinator with its event loop running and
// a real loopback socket bound, but no listener goroutines and no
// multicast groups joined, so causal-delivery logic and room/peer
// bookkeeping can be exercised without a full Start.
func newTestCoordinator(t *testing.T, username string) *Coordinator {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("failed to open loopback socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	self := peer.New(username, *conn.LocalAddr().(*net.UDPAddr))
	c := &Coordinator{
		self:             self,
		log:              logger.New(logger.ERROR),
		conn:             conn,
		peers:            peer.NewRegistry(self.ID),
		rooms:            room.NewRegistry(),
		multicastSockets: make(map[uuid.UUID]roomSocket),
		events:           make(chan func(), 64),
		done:             make(chan struct{}),
		Notifications:    make(chan string, 64),
		multicastPort:    9001,
	}
	c.acks = ackwait.NewManager(20*time.Millisecond, c.postUnicastRetransmit, c.postMulticastRetransmit, c.log)
	go c.loop()
	t.Cleanup(func() { close(c.done) })
	return c
}

func TestCausalAcceptDeliversTheImmediateNextMessage(t *testing.T) {
	c := newTestCoordinator(t, "self")
	author := uuid.New()

	current := vclock.New(c.self.ID, author)
	next := current.Clone()
	next.Increment(author)

	if !c.causalAccept(current, author, next) {
		t.Fatalf("expected the immediate next message from author to be accepted")
	}
}

func TestCausalAcceptQueuesAMessageThatSkipsAHop(t *testing.T) {
	c := newTestCoordinator(t, "self")
	author := uuid.New()

	current := vclock.New(c.self.ID, author)
	skipped := current.Clone()
	skipped.Increment(author)
	skipped.Increment(author)

	if c.causalAccept(current, author, skipped) {
		t.Fatalf("expected a skipped-hop message to not be immediately acceptable")
	}
}

func TestCausalAcceptConcurrentWithinSliceSumOneIsAccepted(t *testing.T) {
	c := newTestCoordinator(t, "self")
	author := uuid.New()
	other := uuid.New()

	current := vclock.New(c.self.ID, author, other)
	current.Increment(other) // current has moved on by one coordinate unrelated to author

	concurrent := vclock.New(c.self.ID, author, other)
	concurrent.Increment(author) // incoming message moved by one coordinate on author's own clock

	if !c.causalAccept(current, author, concurrent) {
		t.Fatalf("expected a concurrent message within the slice-sum-1 heuristic to be accepted")
	}
}

func TestClassifyDiscardsADuplicate(t *testing.T) {
	c := newTestCoordinator(t, "self")
	author := uuid.New()
	current := vclock.New(c.self.ID, author)
	current.Increment(author)

	duplicate := current.Clone()

	if got := c.classify(current, author, duplicate); got != statusDiscarded {
		t.Fatalf("expected a duplicate clock to be discarded, got %v", got)
	}
}

func TestOnRoomTextDeliversQueuedMessagesInCausalOrderOnceTheGapFills(t *testing.T) {
	c := newTestCoordinator(t, "receiver")
	author := peer.New("author", net.UDPAddr{IP: net.ParseIP("10.0.0.9"), Port: 9000})
	r := room.New(uuid.New(), "general", net.UDPAddr{}, []peer.Peer{c.self, author})
	c.rooms.PutParticipating(r)

	c1 := r.Clock.Clone()
	c1.Increment(author.ID)
	c2 := c1.Clone()
	c2.Increment(author.ID)

	// second message arrives first, out of causal order
	c.call(func() {
		c.onRoomText(wire.RoomTextMsg{RoomID: r.ID, AuthorID: author.ID, Body: "second", Clock: c2, AckID: uuid.New()})
	})
	got, _, _ := c.rooms.Get(r.ID)
	if len(got.History) != 0 || len(got.Deferred()) != 1 {
		t.Fatalf("expected the out-of-order message to be queued, not delivered: history=%d deferred=%d", len(got.History), len(got.Deferred()))
	}

	c.call(func() {
		c.onRoomText(wire.RoomTextMsg{RoomID: r.ID, AuthorID: author.ID, Body: "first", Clock: c1, AckID: uuid.New()})
	})
	got, _, _ = c.rooms.Get(r.ID)
	if len(got.History) != 2 {
		t.Fatalf("expected both messages delivered once the gap filled, got %d", len(got.History))
	}
	if got.History[0].Body != "first" || got.History[1].Body != "second" {
		t.Fatalf("expected causal order first,second, got %q,%q", got.History[0].Body, got.History[1].Body)
	}
}

func TestCreateRoomRejectsEmptySelection(t *testing.T) {
	c := newTestCoordinator(t, "self")
	if _, err := c.CreateRoom("general", nil); err != ErrEmptyRoom {
		t.Fatalf("expected ErrEmptyRoom, got %v", err)
	}
}

func TestSendRoomTextRequiresADisplayedRoom(t *testing.T) {
	c := newTestCoordinator(t, "self")
	if err := c.SendRoomText("hello"); err != ErrNoRoomSelected {
		t.Fatalf("expected ErrNoRoomSelected, got %v", err)
	}
}

func TestJoinRoomReportsAmbiguousNames(t *testing.T) {
	c := newTestCoordinator(t, "self")
	c.rooms.PutCreated(room.New(uuid.New(), "general", net.UDPAddr{}, nil))
	c.rooms.PutParticipating(room.New(uuid.New(), "general", net.UDPAddr{}, nil))

	err := c.JoinRoom("general")
	var ambiguous *SameRoomNameError
	if err == nil {
		t.Fatalf("expected an ambiguous-name error")
	}
	var ok bool
	ambiguous, ok = err.(*SameRoomNameError)
	if !ok {
		t.Fatalf("expected a *SameRoomNameError, got %T", err)
	}
	if len(ambiguous.Candidates()) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(ambiguous.Candidates()))
	}
}

func TestOnLeaveNetworkRemovesPeerAndTheirRooms(t *testing.T) {
	c := newTestCoordinator(t, "self")
	departing := peer.New("departing", net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 9000})
	c.peers.Add(departing)

	r := room.New(uuid.New(), "general", net.UDPAddr{}, []peer.Peer{c.self, departing})
	c.rooms.PutParticipating(r)

	c.call(func() {
		c.onLeaveNetwork(departing, uuid.New())
	})

	if _, ok := c.peers.Get(departing.ID); ok {
		t.Fatalf("expected departing peer to be removed from the registry")
	}
	if _, _, ok := c.rooms.Get(r.ID); ok {
		t.Fatalf("expected the shared room to be removed locally")
	}
}
