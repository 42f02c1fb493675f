package vclock

import (
	"testing"

	"github.com/google/uuid"
)

func TestIncrementRaisesOrdering(t *testing.T) {
	a := uuid.New()
	c := New(a)

	if !c.LessOrEqual(c) {
		t.Fatalf("clock should be <= itself")
	}

	before := c.Clone()
	c.Increment(a)

	if !before.LessOrEqual(c) {
		t.Fatalf("incrementing should preserve <= against the prior snapshot")
	}
	if before.Equal(c) {
		t.Fatalf("incrementing should change the clock")
	}
	if !before.LessThan(c) {
		t.Fatalf("incrementing should strictly raise the ordering")
	}
}

func TestMergeIsCommutativeAssociativeIdempotent(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	x := Clock{a: 3, b: 1}
	y := Clock{a: 1, b: 5, c: 2}
	z := Clock{a: 2, c: 1}

	xy := x.Clone()
	xy.Merge(y)
	yx := y.Clone()
	yx.Merge(x)
	if !xy.Equal(yx) {
		t.Fatalf("merge should be commutative: %v vs %v", xy, yx)
	}

	left := x.Clone()
	left.Merge(y)
	left.Merge(z)

	yz := y.Clone()
	yz.Merge(z)
	right := x.Clone()
	right.Merge(yz)

	if !left.Equal(right) {
		t.Fatalf("merge should be associative: %v vs %v", left, right)
	}

	idem := x.Clone()
	idem.Merge(x)
	if !idem.Equal(x) {
		t.Fatalf("merge should be idempotent: %v vs %v", idem, x)
	}
}

func TestLessThanIsStrict(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	r := Clock{a: 1, b: 1}
	m := Clock{a: 1, b: 2}

	if !r.LessThan(m) {
		t.Fatalf("expected %v < %v", r, m)
	}
	if m.LessThan(r) {
		t.Fatalf("did not expect %v < %v", m, r)
	}
	if r.LessThan(r) {
		t.Fatalf("a clock is never strictly less than itself")
	}
}

func TestSliceExcludingAndSum(t *testing.T) {
	self, other := uuid.New(), uuid.New()
	c := Clock{self: 5, other: 3}

	sliced := c.SliceExcluding(self)
	if sliced.Get(self) != 0 {
		t.Fatalf("excluded id should read as 0, got %d", sliced.Get(self))
	}
	if sliced.Sum() != 3 {
		t.Fatalf("expected sum 3, got %d", sliced.Sum())
	}
	if c.Sum() != 8 {
		t.Fatalf("original clock should be untouched, expected sum 8, got %d", c.Sum())
	}
}

func TestMissingKeysReadAsZero(t *testing.T) {
	c := New()
	if got := c.Get(uuid.New()); got != 0 {
		t.Fatalf("expected 0 for absent id, got %d", got)
	}
}
