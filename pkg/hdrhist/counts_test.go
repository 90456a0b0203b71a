package hdrhist

import "testing"

func TestCountsPromotion(t *testing.T) {
	c := newCounts(Width8, 4)
	c.add(0, 200)
	if c.width != Width8 {
		t.Fatalf("width = %d after small add, want %d", c.width, Width8)
	}

	// One more increment would overflow uint8, so the array widens.
	c.add(0, 100)
	if c.width != Width16 {
		t.Errorf("width = %d, want %d", c.width, Width16)
	}
	if got := c.get(0); got != 300 {
		t.Errorf("get(0) = %d, want 300", got)
	}

	// A delta too large for uint16 skips straight past it.
	c.add(1, 1<<20)
	if c.width != Width32 {
		t.Errorf("width = %d, want %d", c.width, Width32)
	}
	if got := c.get(1); got != 1<<20 {
		t.Errorf("get(1) = %d, want %d", got, 1<<20)
	}

	c.set(2, 1<<40)
	if c.width != Width64 {
		t.Errorf("width = %d, want %d", c.width, Width64)
	}
	for i, want := range []int64{300, 1 << 20, 1 << 40, 0} {
		if got := c.get(i); got != want {
			t.Errorf("get(%d) = %d after promotions, want %d", i, got, want)
		}
	}
}

func TestCountsGrowKeepsPrefix(t *testing.T) {
	c := newCounts(Width16, 3)
	c.set(0, 7)
	c.set(2, 9)
	c.grow(6)
	if got := c.len(); got != 6 {
		t.Fatalf("len = %d after grow, want 6", got)
	}
	for i, want := range []int64{7, 0, 9, 0, 0, 0} {
		if got := c.get(i); got != want {
			t.Errorf("get(%d) = %d, want %d", i, got, want)
		}
	}

	// Shrinking is never done; a smaller target is a no-op.
	c.grow(2)
	if got := c.len(); got != 6 {
		t.Errorf("len = %d after no-op grow, want 6", got)
	}
}

func TestCountsCloneIsIndependent(t *testing.T) {
	c := newCounts(Width32, 2)
	c.set(0, 5)
	clone := c.clone()
	c.add(0, 1)
	if got := clone.get(0); got != 5 {
		t.Errorf("clone.get(0) = %d, want 5", got)
	}
	if got := c.get(0); got != 6 {
		t.Errorf("c.get(0) = %d, want 6", got)
	}
}

func TestCountsByteLen(t *testing.T) {
	tests := []struct {
		width int
		n     int
		want  int
	}{
		{Width8, 100, 100},
		{Width16, 100, 200},
		{Width32, 100, 400},
		{Width64, 100, 800},
	}
	for _, tt := range tests {
		if got := newCounts(tt.width, tt.n).byteLen(); got != tt.want {
			t.Errorf("byteLen(width=%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}
