// Package ackwait tracks outstanding acknowledgements for messages sent
// over unicast and multicast, and retransmits them on a ticker until
// every expected acker has responded or the peer/room they were waiting
// on disappears. Grounded on the teacher's retransmit-on-NAK mechanics in
// internal/multicast.ReliableFIFOMulticast, redesigned around explicit
// ack-ids (this system has no sequence numbers) and a ticker per list
// instead of a single leader-driven retransmit call.
package ackwait

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"groupchat/internal/logger"
	"groupchat/internal/wire"
)

// UnicastRetransmit is handed to the coordinator's retransmit callback
// when a unicast list's ticker fires. Targets is a snapshot of every
// (peer, address) pair still owing an ack.
type UnicastRetransmit struct {
	AckID   uuid.UUID
	Message wire.Message
	Targets map[uuid.UUID]net.UDPAddr
}

// MulticastRetransmit is handed to the coordinator's retransmit callback
// when a multicast list's ticker fires.
type MulticastRetransmit struct {
	AckID     uuid.UUID
	Message   wire.Message
	GroupAddr net.UDPAddr
}

type unicastList struct {
	ackID   uuid.UUID
	msg     wire.Message
	entries map[uuid.UUID]net.UDPAddr
	done    chan struct{}
}

type multicastList struct {
	ackID     uuid.UUID
	msg       wire.Message
	groupAddr net.UDPAddr
	pending   map[uuid.UUID]bool
	done      chan struct{}
}

// Manager owns every outstanding ack list. It is coordinator-private: the
// coordinator is the only caller, so no external synchronization is
// required beyond the mutex guarding concurrent access from the ticker
// goroutines and the coordinator goroutine.
type Manager struct {
	mu       sync.Mutex
	interval time.Duration
	unicast  map[uuid.UUID]*unicastList
	multi    map[uuid.UUID]*multicastList

	onUnicastRetransmit   func(UnicastRetransmit)
	onMulticastRetransmit func(MulticastRetransmit)
	log                   *logger.Logger
}

// NewManager builds a Manager that ticks every interval and invokes the
// given callbacks when a list needs re-sending. The callbacks must not
// block: they should post an event onto the coordinator's event channel
// and return (see SPEC_FULL.md §4.7 and §5).
func NewManager(interval time.Duration, onUnicastRetransmit func(UnicastRetransmit), onMulticastRetransmit func(MulticastRetransmit), log *logger.Logger) *Manager {
	return &Manager{
		interval:              interval,
		unicast:               make(map[uuid.UUID]*unicastList),
		multi:                 make(map[uuid.UUID]*multicastList),
		onUnicastRetransmit:   onUnicastRetransmit,
		onMulticastRetransmit: onMulticastRetransmit,
		log:                   log,
	}
}

// StartUnicast opens a new unicast ack list keyed by ackID, waiting for
// one ack from each peer in targets. If targets is empty the list is
// never created and Done returns an already-closed channel.
func (m *Manager) StartUnicast(ackID uuid.UUID, msg wire.Message, targets map[uuid.UUID]net.UDPAddr) {
	if len(targets) == 0 {
		return
	}
	copied := make(map[uuid.UUID]net.UDPAddr, len(targets))
	for id, addr := range targets {
		copied[id] = addr
	}

	l := &unicastList{ackID: ackID, msg: msg, entries: copied, done: make(chan struct{})}

	m.mu.Lock()
	m.unicast[ackID] = l
	m.mu.Unlock()

	m.log.Info("started unicast ack list %s waiting on %d peers", ackID, len(copied))
	go m.runUnicastTicker(l)
}

// StartMulticast opens a new multicast ack list keyed by ackID, waiting
// for one ack from each peer in pending.
func (m *Manager) StartMulticast(ackID uuid.UUID, msg wire.Message, groupAddr net.UDPAddr, pending map[uuid.UUID]bool) {
	if len(pending) == 0 {
		return
	}
	copied := make(map[uuid.UUID]bool, len(pending))
	for id := range pending {
		copied[id] = true
	}

	l := &multicastList{ackID: ackID, msg: msg, groupAddr: groupAddr, pending: copied, done: make(chan struct{})}

	m.mu.Lock()
	m.multi[ackID] = l
	m.mu.Unlock()

	m.log.Info("started multicast ack list %s waiting on %d peers", ackID, len(copied))
	go m.runMulticastTicker(l)
}

func (m *Manager) runUnicastTicker(l *unicastList) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			targets := make(map[uuid.UUID]net.UDPAddr, len(l.entries))
			for id, addr := range l.entries {
				targets[id] = addr
			}
			msg := l.msg
			m.mu.Unlock()

			if len(targets) == 0 {
				continue
			}
			m.onUnicastRetransmit(UnicastRetransmit{AckID: l.ackID, Message: msg, Targets: targets})
		}
	}
}

func (m *Manager) runMulticastTicker(l *multicastList) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			stillPending := len(l.pending) > 0
			msg := l.msg
			m.mu.Unlock()

			if !stillPending {
				continue
			}
			m.onMulticastRetransmit(MulticastRetransmit{AckID: l.ackID, Message: msg, GroupAddr: l.groupAddr})
		}
	}
}

// AckUnicast records an ack from senderID against ackID's unicast list.
// It reports whether the list completed as a result.
func (m *Manager) AckUnicast(ackID, senderID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.unicast[ackID]
	if !ok {
		return false
	}
	delete(l.entries, senderID)
	if len(l.entries) == 0 {
		delete(m.unicast, ackID)
		close(l.done)
		return true
	}
	return false
}

// AckMulticast records an ack from senderID against ackID's multicast
// list. It reports whether the list completed as a result.
func (m *Manager) AckMulticast(ackID, senderID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.multi[ackID]
	if !ok {
		return false
	}
	delete(l.pending, senderID)
	if len(l.pending) == 0 {
		delete(m.multi, ackID)
		close(l.done)
		return true
	}
	return false
}

// PeerDeparted removes peerID from every list's pending set. A unicast
// list loses only the entry addressed to peerID; a multicast list loses
// peerID from its pending-peer set. Either kind of list completes
// naturally if that removal empties it.
func (m *Manager) PeerDeparted(peerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ackID, l := range m.unicast {
		if _, ok := l.entries[peerID]; !ok {
			continue
		}
		delete(l.entries, peerID)
		if len(l.entries) == 0 {
			delete(m.unicast, ackID)
			close(l.done)
		}
	}
	for ackID, l := range m.multi {
		if _, ok := l.pending[peerID]; !ok {
			continue
		}
		delete(l.pending, peerID)
		if len(l.pending) == 0 {
			delete(m.multi, ackID)
			close(l.done)
		}
	}
}

// RoomDeleted discards any multicast list targeting groupAddr, for a
// room that no longer exists locally.
func (m *Manager) RoomDeleted(groupAddr net.UDPAddr) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ackID, l := range m.multi {
		if l.groupAddr.IP.Equal(groupAddr.IP) && l.groupAddr.Port == groupAddr.Port && l.groupAddr.Zone == groupAddr.Zone {
			delete(m.multi, ackID)
			close(l.done)
		}
	}
}

// Done returns a channel that is closed when ackID's list (unicast or
// multicast) completes. If ackID names no list — because it was never
// started, or already completed — Done returns an already-closed
// channel so callers can select on it unconditionally.
func (m *Manager) Done(ackID uuid.UUID) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.unicast[ackID]; ok {
		return l.done
	}
	if l, ok := m.multi[ackID]; ok {
		return l.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}
