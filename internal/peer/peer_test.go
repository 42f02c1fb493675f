package peer

import (
	"net"
	"testing"

	"github.com/google/uuid"
)

func addr(port int) net.UDPAddr {
	return net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: port}
}

func TestAddRejectsSelf(t *testing.T) {
	self := uuid.New()
	r := NewRegistry(self)

	if r.Add(Peer{ID: self, Username: "me", Addr: addr(9000)}) {
		t.Fatalf("registry must never accept the self identifier")
	}
	if r.Len() != 0 {
		t.Fatalf("expected no peers, got %d", r.Len())
	}
}

func TestAddIsIdempotentBySignal(t *testing.T) {
	r := NewRegistry(uuid.New())
	p := New("alice", addr(9000))

	if !r.Add(p) {
		t.Fatalf("first add should succeed")
	}
	if r.Add(p) {
		t.Fatalf("second add of the same id should report already-present via false")
	}
	if r.Len() != 1 {
		t.Fatalf("expected exactly one peer, got %d", r.Len())
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(uuid.New())
	p := New("bob", addr(9001))
	r.Add(p)

	r.Remove(p.ID)
	r.Remove(p.ID)

	if _, ok := r.Get(p.ID); ok {
		t.Fatalf("peer should have been removed")
	}
}

func TestListReturnsEveryPeer(t *testing.T) {
	r := NewRegistry(uuid.New())
	a, b := New("a", addr(1)), New("b", addr(2))
	r.Add(a)
	r.Add(b)

	got := r.List()
	if len(got) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(got))
	}
}
