package hdrhist

import "math"

// counts is the per-bucket counter array. Exactly one of the backing
// slices is non-nil; width is the tag. Increments that would overflow a
// narrow counter promote the whole array to the next width, so callers
// never observe a saturated or wrapped counter.
type counts struct {
	width int
	c8    []uint8
	c16   []uint16
	c32   []uint32
	c64   []uint64
}

func newCounts(width, n int) *counts {
	c := &counts{width: width}
	switch width {
	case Width8:
		c.c8 = make([]uint8, n)
	case Width16:
		c.c16 = make([]uint16, n)
	case Width32:
		c.c32 = make([]uint32, n)
	default:
		c.width = Width64
		c.c64 = make([]uint64, n)
	}
	return c
}

func (c *counts) len() int {
	switch c.width {
	case Width8:
		return len(c.c8)
	case Width16:
		return len(c.c16)
	case Width32:
		return len(c.c32)
	default:
		return len(c.c64)
	}
}

func (c *counts) get(i int) int64 {
	switch c.width {
	case Width8:
		return int64(c.c8[i])
	case Width16:
		return int64(c.c16[i])
	case Width32:
		return int64(c.c32[i])
	default:
		return int64(c.c64[i])
	}
}

func (c *counts) max() int64 {
	switch c.width {
	case Width8:
		return math.MaxUint8
	case Width16:
		return math.MaxUint16
	case Width32:
		return math.MaxUint32
	default:
		return math.MaxInt64
	}
}

// add increments slot i by delta (delta >= 0), widening first if the
// result would not fit.
func (c *counts) add(i int, delta int64) {
	for c.width != Width64 && c.get(i) > c.max()-delta {
		c.promote()
	}
	switch c.width {
	case Width8:
		c.c8[i] += uint8(delta)
	case Width16:
		c.c16[i] += uint16(delta)
	case Width32:
		c.c32[i] += uint32(delta)
	default:
		c.c64[i] += uint64(delta)
	}
}

// set stores v (v >= 0) into slot i, widening first if needed.
func (c *counts) set(i int, v int64) {
	for c.width != Width64 && v > c.max() {
		c.promote()
	}
	switch c.width {
	case Width8:
		c.c8[i] = uint8(v)
	case Width16:
		c.c16[i] = uint16(v)
	case Width32:
		c.c32[i] = uint32(v)
	default:
		c.c64[i] = uint64(v)
	}
}

// promote rewrites the array one width step up.
func (c *counts) promote() {
	switch c.width {
	case Width8:
		c.c16 = make([]uint16, len(c.c8))
		for i, v := range c.c8 {
			c.c16[i] = uint16(v)
		}
		c.c8 = nil
		c.width = Width16
	case Width16:
		c.c32 = make([]uint32, len(c.c16))
		for i, v := range c.c16 {
			c.c32[i] = uint32(v)
		}
		c.c16 = nil
		c.width = Width32
	case Width32:
		c.c64 = make([]uint64, len(c.c32))
		for i, v := range c.c32 {
			c.c64[i] = uint64(v)
		}
		c.c32 = nil
		c.width = Width64
	}
}

// grow extends the array to n slots, keeping the existing prefix.
func (c *counts) grow(n int) {
	if n <= c.len() {
		return
	}
	switch c.width {
	case Width8:
		next := make([]uint8, n)
		copy(next, c.c8)
		c.c8 = next
	case Width16:
		next := make([]uint16, n)
		copy(next, c.c16)
		c.c16 = next
	case Width32:
		next := make([]uint32, n)
		copy(next, c.c32)
		c.c32 = next
	default:
		next := make([]uint64, n)
		copy(next, c.c64)
		c.c64 = next
	}
}

func (c *counts) clear() {
	switch c.width {
	case Width8:
		for i := range c.c8 {
			c.c8[i] = 0
		}
	case Width16:
		for i := range c.c16 {
			c.c16[i] = 0
		}
	case Width32:
		for i := range c.c32 {
			c.c32[i] = 0
		}
	default:
		for i := range c.c64 {
			c.c64[i] = 0
		}
	}
}

func (c *counts) clone() *counts {
	out := &counts{width: c.width}
	switch c.width {
	case Width8:
		out.c8 = append([]uint8(nil), c.c8...)
	case Width16:
		out.c16 = append([]uint16(nil), c.c16...)
	case Width32:
		out.c32 = append([]uint32(nil), c.c32...)
	default:
		out.c64 = append([]uint64(nil), c.c64...)
	}
	return out
}

// byteLen is the memory held by the backing array.
func (c *counts) byteLen() int {
	return c.len() * c.width / 8
}
