// Package coordinator owns all mutable state for a running node: known
// peers, rooms it created or joined, outstanding ack lists, and the
// currently displayed room. A single goroutine drains the coordinator's
// event channel and is the only thing that ever touches that state,
// following the teacher's preference for one owner per mutable resource
// (internal/node.Node's single rw mutex generalized here to a full
// single-writer event loop instead, since writes now come from multiple
// independent listeners rather than one request handler).
package coordinator

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"groupchat/internal/ackwait"
	"groupchat/internal/datagram"
	"groupchat/internal/logger"
	"groupchat/internal/netutil"
	"groupchat/internal/peer"
	"groupchat/internal/room"
	"groupchat/internal/vclock"
	"groupchat/internal/wire"
)

// Config holds the startup knobs exposed by cmd/groupchat's flags.
type Config struct {
	Username        string
	UnicastPort     uint16
	MulticastPort   uint16
	AckInterval     time.Duration
	ShutdownTimeout time.Duration
	Log             *logger.Logger
}

type roomSocket struct {
	recv *net.UDPConn
	send *net.UDPConn
}

// Coordinator is the authoritative state owner for one node.
type Coordinator struct {
	self   peer.Peer
	config Config
	log    *logger.Logger

	conn          *net.UDPConn
	unicastPort   uint16
	multicastPort uint16

	peers *peer.Registry
	rooms *room.Registry
	acks  *ackwait.Manager

	displayedRoom uuid.UUID
	hasDisplayed  bool

	multicastSockets map[uuid.UUID]roomSocket

	events chan func()
	done   chan struct{}

	// Notifications carries human-readable events for the REPL to print
	// (room created, peer departed, message received, ...).
	Notifications chan string
}

// Start resolves the local outbound address, builds the self Peer, opens
// the shared broadcast-capable unicast socket, and launches the
// coordinator's event loop and unicast listener. It mirrors the
// teacher's newBaseNode bootstrap sequence (resolve address, validate
// ports, bind socket) but trades internal/node's TCP cluster listener
// for this domain's UDP-only transport.
func Start(ctx context.Context, cfg Config) (*Coordinator, error) {
	if err := netutil.ValidatePort(cfg.UnicastPort); err != nil {
		return nil, fmt.Errorf("coordinator: invalid unicast port: %w", err)
	}
	if err := netutil.ValidatePort(cfg.MulticastPort); err != nil {
		return nil, fmt.Errorf("coordinator: invalid multicast port: %w", err)
	}
	if cfg.AckInterval <= 0 {
		cfg.AckInterval = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logger.New(logger.INFO)
	}

	outboundIP, err := netutil.ResolveOutboundIP("8.8.8.8:53")
	if err != nil {
		return nil, fmt.Errorf("coordinator: failed to resolve outbound address: %w", err)
	}

	conn, err := datagram.NewBroadcastCapableSocket(cfg.UnicastPort)
	if err != nil {
		return nil, fmt.Errorf("coordinator: failed to open unicast socket: %w", err)
	}

	self := peer.New(cfg.Username, net.UDPAddr{IP: outboundIP, Port: int(cfg.UnicastPort)})

	c := &Coordinator{
		self:             self,
		config:           cfg,
		log:              cfg.Log.With("coordinator"),
		conn:             conn,
		unicastPort:      cfg.UnicastPort,
		multicastPort:    cfg.MulticastPort,
		peers:            peer.NewRegistry(self.ID),
		rooms:            room.NewRegistry(),
		multicastSockets: make(map[uuid.UUID]roomSocket),
		events:           make(chan func(), 256),
		done:             make(chan struct{}),
		Notifications:    make(chan string, 64),
	}
	c.acks = ackwait.NewManager(cfg.AckInterval, c.postUnicastRetransmit, c.postMulticastRetransmit, c.log.With("ackwait"))

	go c.loop()
	go c.runUnicastListener()

	c.log.Info("started as %s", self.String())
	return c, nil
}

// Self returns the local peer identity.
func (c *Coordinator) Self() peer.Peer {
	return c.self
}

func (c *Coordinator) loop() {
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.done:
			return
		}
	}
}

// post enqueues fn onto the coordinator's event channel and returns
// without waiting, for handlers (listeners, ack timers) that don't need
// a reply.
func (c *Coordinator) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

// call enqueues fn and blocks until it has run, for the synchronous
// public API surface the REPL calls directly.
func (c *Coordinator) call(fn func()) {
	done := make(chan struct{})
	c.post(func() {
		fn()
		close(done)
	})
	<-done
}

func (c *Coordinator) notify(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	select {
	case c.Notifications <- msg:
	default:
		c.log.Warn("dropped notification, channel full: %s", msg)
	}
}

// DiscoverNewPeers broadcasts a PING so every reachable peer on the LAN
// can answer with a PONG.
func (c *Coordinator) DiscoverNewPeers() {
	c.call(func() {
		c.sendBroadcast(wire.PingMsg{Sender: c.self})
	})
}

// Shutdown announces this peer's departure to everyone it knows, waits
// for that ack list to complete (or ctx to expire), then tears down
// every socket and stops the event loop.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	ackID := uuid.New()
	var waitCh <-chan struct{}

	c.call(func() {
		targets := make(map[uuid.UUID]net.UDPAddr)
		for _, p := range c.peers.List() {
			targets[p.ID] = p.Addr
		}
		if len(targets) == 0 {
			return
		}
		msg := wire.LeaveNetworkMsg{Sender: c.self, AckID: ackID}
		for _, addr := range targets {
			c.sendUnicast(msg, addr)
		}
		c.acks.StartUnicast(ackID, msg, targets)
		waitCh = c.acks.Done(ackID)
	})

	if waitCh != nil {
		select {
		case <-waitCh:
		case <-ctx.Done():
			c.log.Warn("shutdown timed out waiting for leave-network acks")
		}
	}

	c.call(func() {
		for id, sock := range c.multicastSockets {
			sock.recv.Close()
			sock.send.Close()
			delete(c.multicastSockets, id)
		}
		c.conn.Close()
	})

	close(c.done)
	c.log.Info("shut down")
	return nil
}

// ListPeers returns every known peer except self.
func (c *Coordinator) ListPeers() []peer.Peer {
	var out []peer.Peer
	c.call(func() {
		out = c.peers.List()
	})
	return out
}

// ListRooms returns every room this node created or joined.
func (c *Coordinator) ListRooms() []room.Room {
	var out []room.Room
	c.call(func() {
		out = append(c.rooms.Created(), c.rooms.Participating()...)
	})
	return out
}

// GetRoomByName resolves name against both room sets. It returns
// ErrInvalidParameter if nothing matches and a *SameRoomNameError if
// more than one room shares the name.
func (c *Coordinator) GetRoomByName(name string) (room.Room, error) {
	var r room.Room
	var err error
	c.call(func() {
		candidates := c.rooms.AllByName(name)
		switch len(candidates) {
		case 0:
			err = ErrInvalidParameter
		case 1:
			r = candidates[0]
		default:
			err = &SameRoomNameError{Name: name, candidates: candidates}
		}
	})
	return r, err
}

func (c *Coordinator) joinRoomMulticast(r room.Room) error {
	iface, ifaceErr := netutil.MulticastInterface()
	if ifaceErr != nil {
		iface = nil
	}
	recv, send, err := datagram.JoinMulticastGroup(&r.MulticastAddr, iface)
	if err != nil {
		return fmt.Errorf("coordinator: failed to join multicast group for room %s: %w", r.Name, err)
	}
	c.multicastSockets[r.ID] = roomSocket{recv: recv, send: send}
	go c.runMulticastListener(r.ID, recv)
	return nil
}

func (c *Coordinator) leaveRoomMulticast(roomID uuid.UUID) {
	sock, ok := c.multicastSockets[roomID]
	if !ok {
		return
	}
	sock.recv.Close()
	sock.send.Close()
	delete(c.multicastSockets, roomID)
}

// causalAccept implements the causal-delivery decision from
// SPEC_FULL.md §4.8.1: given a room's current clock and an incoming
// text's clock, decide whether to deliver it now. c.self.ID is the local
// node's own identifier — rule 2's concurrency heuristic slices by the
// receiver's own coordinate, not the message author's, so it is kept
// distinct from authorID (used only by rule 3).
func (c *Coordinator) causalAccept(current vclock.Clock, authorID uuid.UUID, msgClock vclock.Clock) bool {
	if msgClock.LessOrEqual(current) {
		return false // DISCARDED by the caller; never reaches here via DrainDeferred's accept-only contract
	}

	rLessM := current.LessThan(msgClock)
	mLessR := msgClock.LessThan(current)

	if !rLessM && !mLessR {
		diff := current.SliceExcluding(c.self.ID).Sum() - msgClock.SliceExcluding(c.self.ID).Sum()
		if diff < 0 {
			diff = -diff
		}
		return diff <= 1
	}

	if rLessM {
		if msgClock.Get(authorID) != current.Get(authorID)+1 {
			return false
		}
		for k, v := range msgClock {
			if k == authorID {
				continue
			}
			if v > current.Get(k) {
				return false
			}
		}
		return true
	}

	return false
}

// causalStatus classifies an incoming text message against a room's
// current clock, distinguishing DISCARDED from "not yet deliverable" so
// onRoomText can decide whether to drop it or enqueue it.
type causalStatus int

const (
	statusAccepted causalStatus = iota
	statusQueued
	statusDiscarded
)

func (c *Coordinator) classify(current vclock.Clock, authorID uuid.UUID, msgClock vclock.Clock) causalStatus {
	if msgClock.LessOrEqual(current) {
		return statusDiscarded
	}
	if c.causalAccept(current, authorID, msgClock) {
		return statusAccepted
	}
	return statusQueued
}
