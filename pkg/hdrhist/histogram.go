// Package hdrhist implements High Dynamic Range (HDR) histograms: fixed
// memory recording of value distributions across a wide range with a
// configurable number of significant figures, constant-time recording,
// and percentile queries without storing individual samples.
package hdrhist

import (
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Histogram records int64 values into log-linear buckets. Recording is
// O(1) and allocation free. A histogram is not safe for concurrent use;
// wrap it in a Recorder or synchronize externally. Queries are safe to
// run concurrently with each other as long as nothing records.
type Histogram struct {
	lowest  int64
	highest int64
	sigfigs int

	autoResize    bool
	clampOverflow bool

	geom   bucketGeometry
	counts *counts

	totalCount int64
	minValue   int64 // smallest recorded value, MaxInt64 when empty
	maxValue   int64 // largest recorded value, 0 when empty
	prevValue  int64 // last recorded value, floor for corrected records

	tag   string
	start time.Time
	end   time.Time
}

// New returns a histogram tracking values in [lowest, highest] with the
// given number of significant decimal figures.
func New(lowest, highest int64, sigfigs int) (*Histogram, error) {
	return NewFromConfig(Config{
		LowestTrackableValue:  lowest,
		HighestTrackableValue: highest,
		SignificantFigures:    sigfigs,
	})
}

// NewFromConfig returns a histogram for the given configuration. A zero
// CounterWidth defaults to 64-bit counters.
func NewFromConfig(cfg Config) (*Histogram, error) {
	if cfg.CounterWidth == 0 {
		cfg.CounterWidth = Width64
	}
	switch cfg.CounterWidth {
	case Width8, Width16, Width32, Width64:
	default:
		return nil, errors.Wrapf(ErrConfig, "counter width %d not one of 8, 16, 32, 64", cfg.CounterWidth)
	}
	geom, err := deriveGeometry(cfg.LowestTrackableValue, cfg.HighestTrackableValue, cfg.SignificantFigures)
	if err != nil {
		return nil, err
	}
	return &Histogram{
		lowest:        cfg.LowestTrackableValue,
		highest:       cfg.HighestTrackableValue,
		sigfigs:       cfg.SignificantFigures,
		autoResize:    cfg.AutoResize,
		clampOverflow: cfg.ClampOverflow,
		geom:          geom,
		counts:        newCounts(cfg.CounterWidth, geom.countsLen),
		minValue:      math.MaxInt64,
	}, nil
}

// LowestTrackableValue returns the configured lower bound of the
// full-precision range.
func (h *Histogram) LowestTrackableValue() int64 { return h.lowest }

// HighestTrackableValue returns the current upper bound of the trackable
// range. It grows when auto-resize is enabled.
func (h *Histogram) HighestTrackableValue() int64 { return h.highest }

// SignificantFigures returns the configured significant decimal figures.
func (h *Histogram) SignificantFigures() int { return h.sigfigs }

// TotalCount returns the total number of recorded values.
func (h *Histogram) TotalCount() int64 { return h.totalCount }

// Config returns a configuration that reproduces this histogram's current
// geometry and counter width.
func (h *Histogram) Config() Config {
	return Config{
		LowestTrackableValue:  h.lowest,
		HighestTrackableValue: h.highest,
		SignificantFigures:    h.sigfigs,
		AutoResize:            h.autoResize,
		ClampOverflow:         h.clampOverflow,
		CounterWidth:          h.counts.width,
	}
}

// Tag returns the histogram's tag, used to distinguish streams in
// interval logs.
func (h *Histogram) Tag() string { return h.tag }

// SetTag sets the histogram's tag.
func (h *Histogram) SetTag(tag string) { h.tag = tag }

// StartTime returns the start of the interval this histogram covers.
func (h *Histogram) StartTime() time.Time { return h.start }

// SetStartTime sets the start of the interval this histogram covers.
func (h *Histogram) SetStartTime(t time.Time) { h.start = t }

// EndTime returns the end of the interval this histogram covers.
func (h *Histogram) EndTime() time.Time { return h.end }

// SetEndTime sets the end of the interval this histogram covers.
func (h *Histogram) SetEndTime(t time.Time) { h.end = t }

// slotFor resolves a value to a counts slot, applying the configured
// out-of-range policy. Under AutoResize it may grow the histogram. The
// returned value is the one actually counted (clamped when ClampOverflow
// applies).
func (h *Histogram) slotFor(v int64) (int, int64, error) {
	if v < 0 {
		return 0, 0, errors.Wrapf(ErrValueOutOfRange, "value %d is negative", v)
	}
	if v > h.highest {
		switch {
		case h.autoResize:
			h.resize(v)
		case h.clampOverflow:
			v = h.highest
		default:
			return 0, 0, errors.Wrapf(ErrValueOutOfRange, "value %d above highest trackable %d", v, h.highest)
		}
	}
	return h.geom.countsIndex(v), v, nil
}

// resize grows the bucket range to cover v. Unit magnitude and sub-bucket
// layout are unchanged, so existing slot indices stay valid and the
// counts array only gains slots at the top.
func (h *Histogram) resize(v int64) {
	g := h.geom
	g.bucketCount = g.bucketsToCover(v)
	g.countsLen = (g.bucketCount + 1) * g.subBucketHalfCount
	h.geom = g
	h.counts.grow(g.countsLen)
	h.highest = g.highestCoverableValue()
}

// RecordValue records a single occurrence of v.
func (h *Histogram) RecordValue(v int64) error {
	return h.RecordValues(v, 1)
}

// RecordValues records count occurrences of v.
func (h *Histogram) RecordValues(v, count int64) error {
	if count < 0 {
		return errors.Wrapf(ErrNegativeCount, "cannot record %d occurrences", count)
	}
	if count == 0 {
		return nil
	}
	idx, counted, err := h.slotFor(v)
	if err != nil {
		return err
	}
	h.counts.add(idx, count)
	h.totalCount += count
	h.trackExtremes(counted)
	h.prevValue = counted
	return nil
}

// RecordCorrectedValue records v and compensates for coordinated
// omission: when v exceeds expectedInterval, synthetic samples are
// back-filled at v-expectedInterval, v-2*expectedInterval, and so on,
// stopping above the previously recorded value (or above zero when
// nothing was recorded yet).
func (h *Histogram) RecordCorrectedValue(v, expectedInterval int64) error {
	return h.RecordCorrectedValues(v, 1, expectedInterval)
}

// RecordCorrectedValues is RecordCorrectedValue for count occurrences.
func (h *Histogram) RecordCorrectedValues(v, count, expectedInterval int64) error {
	if count < 0 {
		return errors.Wrapf(ErrNegativeCount, "cannot record %d occurrences", count)
	}
	if count == 0 {
		return nil
	}
	idx, counted, err := h.slotFor(v)
	if err != nil {
		return err
	}
	if expectedInterval > 0 {
		floor := h.prevValue
		for missing := counted - expectedInterval; missing > floor && missing > 0; missing -= expectedInterval {
			h.counts.add(h.geom.countsIndex(missing), count)
			h.totalCount += count
			h.trackExtremes(missing)
		}
	}
	h.counts.add(idx, count)
	h.totalCount += count
	h.trackExtremes(counted)
	h.prevValue = counted
	return nil
}

func (h *Histogram) trackExtremes(v int64) {
	if v < h.minValue {
		h.minValue = v
	}
	if v > h.maxValue {
		h.maxValue = v
	}
}

// Add merges other into h. With identical bucket geometry the counters
// add slot-wise; otherwise other's recorded values are re-recorded at
// h's resolution, which requires them to fit h's range (or AutoResize,
// or ClampOverflow). On a range mismatch it returns
// ErrIncompatibleGeometry and both histograms are unchanged.
func (h *Histogram) Add(other *Histogram) error {
	if other == nil || other.totalCount == 0 {
		return nil
	}
	if h.geom == other.geom {
		h.addAligned(other)
		return nil
	}
	if !h.autoResize && !h.clampOverflow {
		for idx := 0; idx < other.geom.countsLen; idx++ {
			if other.counts.get(idx) == 0 {
				continue
			}
			if v := other.HighestEquivalentValue(other.geom.valueFor(idx)); v > h.highest {
				return errors.Wrapf(ErrIncompatibleGeometry,
					"merge source holds %d, above highest trackable %d", v, h.highest)
			}
		}
	}
	for idx := 0; idx < other.geom.countsLen; idx++ {
		c := other.counts.get(idx)
		if c == 0 {
			continue
		}
		v := other.HighestEquivalentValue(other.geom.valueFor(idx))
		if err := h.RecordValues(v, c); err != nil {
			return err
		}
	}
	return nil
}

// addAligned merges identically laid out histograms without the
// re-recording pass. It cannot fail.
func (h *Histogram) addAligned(other *Histogram) {
	for idx := 0; idx < other.geom.countsLen; idx++ {
		if c := other.counts.get(idx); c != 0 {
			h.counts.add(idx, c)
		}
	}
	h.totalCount += other.totalCount
	if other.minValue < h.minValue {
		h.minValue = other.minValue
	}
	if other.maxValue > h.maxValue {
		h.maxValue = other.maxValue
	}
}

// Subtract removes other's counts from h. The two histograms must share
// the same lower bound and resolution. If any counter would go below
// zero it returns ErrNegativeCount and h is unchanged. Min, max and
// total count are re-derived from the surviving counters.
func (h *Histogram) Subtract(other *Histogram) error {
	if other == nil || other.totalCount == 0 {
		return nil
	}
	if h.lowest != other.lowest || h.sigfigs != other.sigfigs {
		return errors.Wrap(ErrIncompatibleGeometry, "subtract requires matching resolution")
	}
	for idx := 0; idx < other.geom.countsLen; idx++ {
		oc := other.counts.get(idx)
		if oc == 0 {
			continue
		}
		var hc int64
		if idx < h.geom.countsLen {
			hc = h.counts.get(idx)
		}
		if hc < oc {
			return errors.Wrapf(ErrNegativeCount,
				"bucket at %d holds %d, subtracting %d", other.geom.valueFor(idx), hc, oc)
		}
	}
	for idx := 0; idx < other.geom.countsLen; idx++ {
		if oc := other.counts.get(idx); oc != 0 {
			h.counts.set(idx, h.counts.get(idx)-oc)
		}
	}
	h.rederiveStats()
	return nil
}

// rederiveStats recomputes total count, min and max from the counters.
// Used after operations that edit counters in bulk. The corrected-record
// floor resets to zero since the recording order is no longer known.
func (h *Histogram) rederiveStats() {
	h.totalCount = 0
	h.minValue = math.MaxInt64
	h.maxValue = 0
	h.prevValue = 0
	for idx := 0; idx < h.geom.countsLen; idx++ {
		c := h.counts.get(idx)
		if c == 0 {
			continue
		}
		h.totalCount += c
		v := h.geom.valueFor(idx)
		if v < h.minValue {
			h.minValue = v
		}
		if hv := h.HighestEquivalentValue(v); hv > h.maxValue {
			h.maxValue = hv
		}
	}
}

// Reset zeroes all counters in place. Geometry, counter width and
// interval metadata are kept.
func (h *Histogram) Reset() {
	h.counts.clear()
	h.totalCount = 0
	h.minValue = math.MaxInt64
	h.maxValue = 0
	h.prevValue = 0
}

// Copy returns an independent deep copy of h.
func (h *Histogram) Copy() *Histogram {
	out := *h
	out.counts = h.counts.clone()
	return &out
}

// Min returns the lowest recorded value at bucket resolution, or zero
// when the histogram is empty.
func (h *Histogram) Min() int64 {
	if h.totalCount == 0 {
		return 0
	}
	return h.LowestEquivalentValue(h.minValue)
}

// Max returns the highest recorded value at bucket resolution, or zero
// when the histogram is empty.
func (h *Histogram) Max() int64 {
	if h.totalCount == 0 {
		return 0
	}
	return h.HighestEquivalentValue(h.maxValue)
}

// Mean returns the arithmetic mean of recorded values at bucket
// resolution.
func (h *Histogram) Mean() float64 {
	if h.totalCount == 0 {
		return 0
	}
	var total float64
	for idx := 0; idx < h.geom.countsLen; idx++ {
		if c := h.counts.get(idx); c != 0 {
			total += float64(c) * float64(h.MedianEquivalentValue(h.geom.valueFor(idx)))
		}
	}
	return total / float64(h.totalCount)
}

// StdDev returns the standard deviation of recorded values at bucket
// resolution.
func (h *Histogram) StdDev() float64 {
	if h.totalCount == 0 {
		return 0
	}
	mean := h.Mean()
	var sum float64
	for idx := 0; idx < h.geom.countsLen; idx++ {
		if c := h.counts.get(idx); c != 0 {
			dev := float64(h.MedianEquivalentValue(h.geom.valueFor(idx))) - mean
			sum += float64(c) * dev * dev
		}
	}
	return math.Sqrt(sum / float64(h.totalCount))
}

// ValueAtPercentile returns the value below or at which p percent of the
// recorded values fall. The result is reported at bucket resolution, so
// it is greater than or equal to every recorded value it accounts for.
// p is clamped to [0, 100]; the target count never drops below one
// sample.
func (h *Histogram) ValueAtPercentile(p float64) int64 {
	if h.totalCount == 0 {
		return 0
	}
	target := h.targetCount(p)
	var cum int64
	for idx := 0; idx < h.geom.countsLen; idx++ {
		cum += h.counts.get(idx)
		if cum >= target {
			return h.HighestEquivalentValue(h.geom.valueFor(idx))
		}
	}
	return h.Max()
}

// ValueAtPercentiles returns one value per requested percentile,
// resolved in a single pass over the counters.
func (h *Histogram) ValueAtPercentiles(percentiles []float64) []int64 {
	out := make([]int64, len(percentiles))
	if h.totalCount == 0 || len(percentiles) == 0 {
		return out
	}
	type lookup struct {
		target int64
		pos    int
	}
	lookups := make([]lookup, len(percentiles))
	for i, p := range percentiles {
		lookups[i] = lookup{h.targetCount(p), i}
	}
	sort.Slice(lookups, func(i, j int) bool { return lookups[i].target < lookups[j].target })
	var cum int64
	next := 0
	for idx := 0; idx < h.geom.countsLen && next < len(lookups); idx++ {
		cum += h.counts.get(idx)
		for next < len(lookups) && cum >= lookups[next].target {
			out[lookups[next].pos] = h.HighestEquivalentValue(h.geom.valueFor(idx))
			next++
		}
	}
	return out
}

func (h *Histogram) targetCount(p float64) int64 {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	target := int64(math.Ceil((p / 100) * float64(h.totalCount)))
	if target < 1 {
		target = 1
	}
	if target > h.totalCount {
		target = h.totalCount
	}
	return target
}

// CountAtValue returns the counter of the bucket containing v. Values
// outside the covered range report the nearest edge bucket.
func (h *Histogram) CountAtValue(v int64) int64 {
	if v < 0 {
		v = 0
	}
	if v >= h.geom.highestCoverableValue() {
		return h.counts.get(h.geom.countsLen - 1)
	}
	return h.counts.get(h.geom.countsIndex(v))
}

// Equals reports whether both histograms have the same configured range,
// resolution and per-bucket counts. Interval metadata is not compared.
func (h *Histogram) Equals(other *Histogram) bool {
	if other == nil {
		return false
	}
	if h.lowest != other.lowest || h.highest != other.highest ||
		h.sigfigs != other.sigfigs || h.totalCount != other.totalCount {
		return false
	}
	for idx := 0; idx < h.geom.countsLen; idx++ {
		if h.counts.get(idx) != other.counts.get(idx) {
			return false
		}
	}
	return true
}

// ByteSize estimates the memory footprint of the histogram in bytes,
// dominated by the counter array.
func (h *Histogram) ByteSize() int {
	return 112 + h.counts.byteLen()
}
