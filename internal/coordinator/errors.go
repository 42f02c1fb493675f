package coordinator

import (
	"errors"
	"fmt"

	"groupchat/internal/room"
)

// ErrInvalidParameter is returned when a room or peer lookup by name or
// id fails to find anything.
var ErrInvalidParameter = errors.New("coordinator: invalid parameter")

// ErrEmptyRoom is returned by CreateRoom when selectedPeerIDs names no
// known peer other than self.
var ErrEmptyRoom = errors.New("coordinator: a room needs at least one other member")

// ErrNoRoomSelected is returned by SendRoomText when no room is currently
// displayed, or when the displayed room is no longer known.
var ErrNoRoomSelected = errors.New("coordinator: no room is currently selected")

// SameRoomNameError is returned by GetRoomByName when more than one room
// shares the requested name. It carries the ambiguous candidates so a
// caller (the REPL) can show them and ask the user to disambiguate.
type SameRoomNameError struct {
	Name       string
	candidates []room.Room
}

func (e *SameRoomNameError) Error() string {
	return fmt.Sprintf("coordinator: %d rooms are named %q", len(e.candidates), e.Name)
}

// Candidates returns every room that shares the ambiguous name.
func (e *SameRoomNameError) Candidates() []room.Room {
	return e.candidates
}
