package hdrhist

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// Counter widths accepted by Config.CounterWidth.
const (
	Width8  = 8
	Width16 = 16
	Width32 = 32
	Width64 = 64
)

// Config describes a histogram before construction. The zero value is not
// usable; NewFromConfig validates the range and fills in defaults for the
// optional fields.
type Config struct {
	// LowestTrackableValue is the smallest value resolved to full
	// precision. Must be >= 1. Values below it are still counted but
	// collapse into the coarse bottom bucket.
	LowestTrackableValue int64

	// HighestTrackableValue is the largest trackable value. Must be at
	// least 2 * LowestTrackableValue.
	HighestTrackableValue int64

	// SignificantFigures is the number of significant decimal digits
	// preserved across the range, in [0, 5].
	SignificantFigures int

	// AutoResize lets the histogram grow its bucket range instead of
	// rejecting values above HighestTrackableValue.
	AutoResize bool

	// ClampOverflow records values above HighestTrackableValue into the
	// top bucket instead of rejecting them. Ignored when AutoResize is
	// set.
	ClampOverflow bool

	// CounterWidth is the bit width of the per-bucket counters: 8, 16,
	// 32 or 64 (the default). Narrow counters promote to the next width
	// when an increment would overflow.
	CounterWidth int
}

// bucketGeometry is the derived bucket layout. It depends only on the
// trackable range and the significant figures, so recomputing it from the
// same inputs always yields the same layout.
type bucketGeometry struct {
	unitMagnitude               int
	subBucketHalfCountMagnitude int
	subBucketCount              int
	subBucketHalfCount          int
	subBucketMask               int64
	bucketCount                 int
	countsLen                   int
}

var powersOf10 = [...]int64{1, 10, 100, 1000, 10000, 100000}

func deriveGeometry(lowest, highest int64, sigfigs int) (bucketGeometry, error) {
	var g bucketGeometry
	if lowest < 1 {
		return g, errors.Wrapf(ErrConfig, "lowest trackable value %d must be >= 1", lowest)
	}
	if sigfigs < 0 || sigfigs > 5 {
		return g, errors.Wrapf(ErrConfig, "significant figures %d must be in [0, 5]", sigfigs)
	}
	if highest < 2*lowest {
		return g, errors.Wrapf(ErrConfig, "highest trackable value %d must be >= 2 * lowest (%d)", highest, lowest)
	}

	// Sub-buckets must resolve single units up to 2 * 10^sigfigs so that
	// relative error stays within 10^-sigfigs everywhere.
	largestSingleUnitResolution := 2 * powersOf10[sigfigs]
	subBucketCountMagnitude := ceilLog2(largestSingleUnitResolution)

	g.unitMagnitude = floorLog2(lowest)
	if g.unitMagnitude+subBucketCountMagnitude > 62 {
		return g, errors.Wrapf(ErrConfig, "cannot track %d significant figures starting at %d", sigfigs, lowest)
	}

	g.subBucketHalfCountMagnitude = subBucketCountMagnitude - 1
	if g.subBucketHalfCountMagnitude < 0 {
		g.subBucketHalfCountMagnitude = 0
	}
	g.subBucketCount = 1 << (g.subBucketHalfCountMagnitude + 1)
	g.subBucketHalfCount = g.subBucketCount / 2
	g.subBucketMask = int64(g.subBucketCount-1) << g.unitMagnitude

	g.bucketCount = g.bucketsToCover(highest)
	g.countsLen = (g.bucketCount + 1) * g.subBucketHalfCount
	return g, nil
}

// bucketsToCover returns how many doubling buckets are needed before the
// smallest untrackable value exceeds v.
func (g *bucketGeometry) bucketsToCover(v int64) int {
	smallestUntrackable := int64(g.subBucketCount) << g.unitMagnitude
	n := 1
	for smallestUntrackable <= v {
		if smallestUntrackable > math.MaxInt64/2 {
			return n + 1
		}
		smallestUntrackable <<= 1
		n++
	}
	return n
}

// countsIndex maps a non-negative value to its slot in the counts array.
// The caller is responsible for range-checking the value first.
func (g *bucketGeometry) countsIndex(v int64) int {
	bucketIdx := g.bucketIndex(v)
	subBucketIdx := g.subBucketIndex(v, bucketIdx)
	baseIdx := (bucketIdx + 1) << g.subBucketHalfCountMagnitude
	return baseIdx + subBucketIdx - g.subBucketHalfCount
}

func (g *bucketGeometry) bucketIndex(v int64) int {
	return bits.Len64(uint64(v|g.subBucketMask)) - g.unitMagnitude - (g.subBucketHalfCountMagnitude + 1)
}

func (g *bucketGeometry) subBucketIndex(v int64, bucketIdx int) int {
	return int(uint64(v) >> uint(bucketIdx+g.unitMagnitude))
}

// valueFor recovers the lower bound of the value range covered by a slot.
func (g *bucketGeometry) valueFor(idx int) int64 {
	bucketIdx := (idx >> g.subBucketHalfCountMagnitude) - 1
	subBucketIdx := (idx & (g.subBucketHalfCount - 1)) + g.subBucketHalfCount
	if bucketIdx < 0 {
		subBucketIdx -= g.subBucketHalfCount
		bucketIdx = 0
	}
	return int64(subBucketIdx) << uint(bucketIdx+g.unitMagnitude)
}

func (g *bucketGeometry) sizeOfEquivalentRange(v int64) int64 {
	return int64(1) << uint(g.unitMagnitude+g.bucketIndex(v))
}

func (g *bucketGeometry) lowestEquivalent(v int64) int64 {
	bucketIdx := g.bucketIndex(v)
	subBucketIdx := g.subBucketIndex(v, bucketIdx)
	return int64(subBucketIdx) << uint(bucketIdx+g.unitMagnitude)
}

// highestCoverableValue is the top of the last bucket, the largest value
// the counts array can index.
func (g *bucketGeometry) highestCoverableValue() int64 {
	return g.valueFor(g.countsLen-1) + g.sizeOfEquivalentRange(g.valueFor(g.countsLen-1)) - 1
}

func floorLog2(v int64) int {
	return bits.Len64(uint64(v)) - 1
}

func ceilLog2(v int64) int {
	if v <= 1 {
		return 0
	}
	return bits.Len64(uint64(v - 1))
}

// SizeOfEquivalentValueRange returns the width of the bucket that v falls
// into, i.e. how many distinct values share v's counter.
func (h *Histogram) SizeOfEquivalentValueRange(v int64) int64 {
	return h.geom.sizeOfEquivalentRange(v)
}

// LowestEquivalentValue returns the smallest value indistinguishable
// from v at this histogram's resolution.
func (h *Histogram) LowestEquivalentValue(v int64) int64 {
	return h.geom.lowestEquivalent(v)
}

// HighestEquivalentValue returns the largest value indistinguishable
// from v at this histogram's resolution.
func (h *Histogram) HighestEquivalentValue(v int64) int64 {
	return h.NextNonEquivalentValue(v) - 1
}

// MedianEquivalentValue returns the midpoint of the bucket that v falls
// into. Mean and standard deviation are computed from these midpoints.
func (h *Histogram) MedianEquivalentValue(v int64) int64 {
	return h.geom.lowestEquivalent(v) + (h.geom.sizeOfEquivalentRange(v) >> 1)
}

// NextNonEquivalentValue returns the smallest value larger than every
// value indistinguishable from v.
func (h *Histogram) NextNonEquivalentValue(v int64) int64 {
	return h.geom.lowestEquivalent(v) + h.geom.sizeOfEquivalentRange(v)
}

// ValuesAreEquivalent reports whether a and b land in the same bucket.
func (h *Histogram) ValuesAreEquivalent(a, b int64) bool {
	return h.geom.lowestEquivalent(a) == h.geom.lowestEquivalent(b)
}
