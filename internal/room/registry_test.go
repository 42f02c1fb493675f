package room

import (
	"net"
	"testing"

	"github.com/google/uuid"
)

func newTestRoom(name string) Room {
	return New(uuid.New(), name, net.UDPAddr{}, nil)
}

func TestCreatedAndParticipatingAreDisjoint(t *testing.T) {
	reg := NewRegistry()
	created := newTestRoom("mine")
	joined := newTestRoom("theirs")

	reg.PutCreated(created)
	reg.PutParticipating(joined)

	if len(reg.Created()) != 1 || len(reg.Participating()) != 1 {
		t.Fatalf("expected one room in each set")
	}

	_, isCreated, ok := reg.Get(created.ID)
	if !ok || !isCreated {
		t.Fatalf("expected created room to report created=true")
	}
	_, isCreated, ok = reg.Get(joined.ID)
	if !ok || isCreated {
		t.Fatalf("expected joined room to report created=false")
	}
}

func TestByNameDetectsAmbiguity(t *testing.T) {
	reg := NewRegistry()
	reg.PutCreated(newTestRoom("general"))
	reg.PutParticipating(newTestRoom("general"))

	_, err := reg.ByName("general")
	if err != ErrSameRoomName {
		t.Fatalf("expected ErrSameRoomName, got %v", err)
	}
}

func TestByNameUnknownReturnsErrUnknownRoom(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.ByName("nope"); err != ErrUnknownRoom {
		t.Fatalf("expected ErrUnknownRoom, got %v", err)
	}
}

func TestRemoveDeletesFromWhicheverSet(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom("mine")
	reg.PutCreated(r)

	reg.Remove(r.ID)

	if _, _, ok := reg.Get(r.ID); ok {
		t.Fatalf("expected room to be gone")
	}
}

func TestMutateAppliesInPlace(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom("mine")
	reg.PutCreated(r)

	err := reg.Mutate(r.ID, func(room *Room) {
		room.AppendText(Text{Body: "hi"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _, _ := reg.Get(r.ID)
	if len(got.History) != 1 {
		t.Fatalf("expected mutation to persist, got history %v", got.History)
	}
}
