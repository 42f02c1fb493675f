// Package vclock implements vector clocks for causal ordering of room
// text messages: a mapping from peer identifier to a monotonically
// increasing counter.
package vclock

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Clock is a vector clock keyed by peer identifier. The zero value is an
// empty clock ready to use.
type Clock map[uuid.UUID]int

// New returns an empty clock seeded with the given ids at counter 0.
func New(ids ...uuid.UUID) Clock {
	c := make(Clock, len(ids))
	for _, id := range ids {
		c[id] = 0
	}
	return c
}

// Get returns the counter for id, or 0 if id has no entry.
func (c Clock) Get(id uuid.UUID) int {
	return c[id]
}

// Increment bumps id's coordinate by one, creating the entry if absent.
func (c Clock) Increment(id uuid.UUID) {
	c[id] = c[id] + 1
}

// Merge sets every coordinate to the element-wise maximum of c and other.
// Entries present only in other are copied into c.
func (c Clock) Merge(other Clock) {
	for id, v := range other {
		if v > c[id] {
			c[id] = v
		}
	}
}

// LessOrEqual reports whether every coordinate of c is <= the corresponding
// coordinate of other.
func (c Clock) LessOrEqual(other Clock) bool {
	for id, v := range c {
		if v > other.Get(id) {
			return false
		}
	}
	return true
}

// Equal reports whether c and other agree on every coordinate present in
// either clock.
func (c Clock) Equal(other Clock) bool {
	return c.LessOrEqual(other) && other.LessOrEqual(c)
}

// LessThan reports whether c <= other and c != other.
func (c Clock) LessThan(other Clock) bool {
	return c.LessOrEqual(other) && !c.Equal(other)
}

// SliceExcluding returns a copy of c with id's coordinate zeroed out.
func (c Clock) SliceExcluding(id uuid.UUID) Clock {
	out := c.Clone()
	delete(out, id)
	return out
}

// Sum returns the sum of every coordinate in c.
func (c Clock) Sum() int {
	total := 0
	for _, v := range c {
		total += v
	}
	return total
}

// Clone returns a deep copy of c.
func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	for id, v := range c {
		out[id] = v
	}
	return out
}

// String renders the clock deterministically (sorted by id) for log lines.
func (c Clock) String() string {
	ids := make([]uuid.UUID, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var b strings.Builder
	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%d", id.String()[:8], c[id])
	}
	b.WriteByte('}')
	return b.String()
}
