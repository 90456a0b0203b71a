package hdrhist

import (
	"math"

	"github.com/pkg/errors"
)

// DoubleHistogram records float64 values by scaling them into an
// internal integer histogram. The trackable value window auto-ranges in
// whole powers of two to follow the recorded data; the window's width,
// the highest to lowest value ratio, is fixed at construction. Values
// already recorded keep their magnitude across window moves.
type DoubleHistogram struct {
	ratio   int64
	sigfigs int

	// conversion maps a double to its integer form: intValue = value *
	// conversion. Zero until the first non-zero value anchors the
	// window; the bottom of the window always maps to 10^sigfigs so
	// full resolution holds across the whole window.
	conversion float64
	prev       float64 // floor for corrected records

	ints *Histogram
}

// NewDouble returns a histogram of float64 values covering a dynamic
// range of highestToLowestValueRatio (at least 2) at sigfigs
// significant decimal figures.
func NewDouble(highestToLowestValueRatio int64, sigfigs int) (*DoubleHistogram, error) {
	if highestToLowestValueRatio < 2 {
		return nil, errors.Wrapf(ErrConfig, "dynamic range %d must be at least 2", highestToLowestValueRatio)
	}
	if sigfigs < 0 || sigfigs > 5 {
		return nil, errors.Wrapf(ErrConfig, "significant figures %d must be in [0, 5]", sigfigs)
	}
	if highestToLowestValueRatio > math.MaxInt64/(2*powersOf10[sigfigs]) {
		return nil, errors.Wrapf(ErrConfig, "dynamic range %d too wide for %d significant figures",
			highestToLowestValueRatio, sigfigs)
	}
	ints, err := New(1, 2*powersOf10[sigfigs]*highestToLowestValueRatio, sigfigs)
	if err != nil {
		return nil, err
	}
	return &DoubleHistogram{
		ratio:   highestToLowestValueRatio,
		sigfigs: sigfigs,
		ints:    ints,
	}, nil
}

// HighestToLowestValueRatio returns the configured dynamic range.
func (d *DoubleHistogram) HighestToLowestValueRatio() int64 { return d.ratio }

// SignificantFigures returns the configured significant decimal figures.
func (d *DoubleHistogram) SignificantFigures() int { return d.sigfigs }

// TotalCount returns the total number of recorded values.
func (d *DoubleHistogram) TotalCount() int64 { return d.ints.TotalCount() }

func (d *DoubleHistogram) pow10() float64 { return float64(powersOf10[d.sigfigs]) }

func (d *DoubleHistogram) lowestInWindow() float64 { return d.pow10() / d.conversion }

func (d *DoubleHistogram) highestInWindow() float64 {
	return d.lowestInWindow() * float64(d.ratio)
}

// CurrentLowestTrackableValue returns the bottom of the auto-ranged
// window, or zero before any non-zero value anchored it.
func (d *DoubleHistogram) CurrentLowestTrackableValue() float64 {
	if d.conversion == 0 {
		return 0
	}
	return d.lowestInWindow()
}

// CurrentHighestTrackableValue returns the top of the auto-ranged
// window, or zero before any non-zero value anchored it.
func (d *DoubleHistogram) CurrentHighestTrackableValue() float64 {
	if d.conversion == 0 {
		return 0
	}
	return d.highestInWindow()
}

// RecordValue records a single occurrence of v.
func (d *DoubleHistogram) RecordValue(v float64) error {
	return d.RecordValues(v, 1)
}

// RecordValues records count occurrences of v, moving the window first
// when v falls outside it. Returns ErrRangeExceeded when the window
// cannot reach v without dropping recorded values.
func (d *DoubleHistogram) RecordValues(v float64, count int64) error {
	if count < 0 {
		return errors.Wrapf(ErrNegativeCount, "cannot record %d occurrences", count)
	}
	if count == 0 {
		return nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return errors.Wrapf(ErrValueOutOfRange, "value %v is not recordable", v)
	}
	if v == 0 {
		if err := d.ints.RecordValues(0, count); err != nil {
			return err
		}
		d.prev = 0
		return nil
	}
	if err := d.ensureInWindow(v); err != nil {
		return err
	}
	if err := d.ints.RecordValues(int64(v*d.conversion), count); err != nil {
		return err
	}
	d.prev = v
	return nil
}

// RecordCorrectedValue records v and back-fills synthetic samples every
// expectedInterval below it, stopping above the previously recorded
// value; see Histogram.RecordCorrectedValue. Back-filling stops at the
// first error.
func (d *DoubleHistogram) RecordCorrectedValue(v, expectedInterval float64) error {
	prev := d.prev
	if err := d.RecordValue(v); err != nil {
		return err
	}
	if expectedInterval > 0 {
		for missing := v - expectedInterval; missing > prev && missing > 0; missing -= expectedInterval {
			if err := d.RecordValue(missing); err != nil {
				return err
			}
		}
	}
	d.prev = v
	return nil
}

// ensureInWindow anchors or moves the window so that v maps into the
// integer range.
func (d *DoubleHistogram) ensureInWindow(v float64) error {
	if d.conversion == 0 {
		// First non-zero value anchors the window bottom.
		d.conversion = d.pow10() / v
		return nil
	}
	if v >= d.lowestInWindow() && v < d.highestInWindow() {
		return nil
	}
	return d.adjustWindow(v)
}

// adjustWindow moves the window by whole powers of two until it covers
// v, re-binning recorded counters to keep their values. Fails with
// ErrRangeExceeded when recorded values would fall off the other end.
func (d *DoubleHistogram) adjustWindow(v float64) error {
	if d.ints.totalCount == d.ints.counts.get(0) {
		// Only zeros recorded so far; the window can re-anchor freely.
		d.conversion = d.pow10() / v
		return nil
	}
	windowTop := powersOf10[d.sigfigs] * d.ratio
	if v < d.lowestInWindow() {
		k := 0
		for nl := d.lowestInWindow(); v < nl && k <= 62; nl /= 2 {
			k++
		}
		if k > 62 || d.ints.maxValue > (windowTop-1)>>uint(k) {
			return errors.Wrapf(ErrRangeExceeded, "recording %v would span more than %dx", v, d.ratio)
		}
		d.ints.shiftValuesLeft(k)
		d.conversion = math.Ldexp(d.conversion, k)
		return nil
	}
	k := 0
	for nh := d.highestInWindow(); v >= nh && k <= 62; nh *= 2 {
		k++
	}
	if k > 62 || d.ints.minNonZeroValue()>>uint(k) < powersOf10[d.sigfigs] {
		return errors.Wrapf(ErrRangeExceeded, "recording %v would span more than %dx", v, d.ratio)
	}
	d.ints.shiftValuesRight(k)
	d.conversion = math.Ldexp(d.conversion, -k)
	return nil
}

func (d *DoubleHistogram) toDouble(x int64) float64 {
	if d.conversion == 0 {
		return 0
	}
	return float64(x) / d.conversion
}

// Min returns the lowest recorded value at bucket resolution; zero when
// empty or when zeros were recorded.
func (d *DoubleHistogram) Min() float64 { return d.toDouble(d.ints.Min()) }

// Max returns the highest recorded value at bucket resolution.
func (d *DoubleHistogram) Max() float64 { return d.toDouble(d.ints.Max()) }

// Mean returns the arithmetic mean of recorded values at bucket
// resolution.
func (d *DoubleHistogram) Mean() float64 {
	if d.conversion == 0 {
		return 0
	}
	return d.ints.Mean() / d.conversion
}

// StdDev returns the standard deviation of recorded values at bucket
// resolution.
func (d *DoubleHistogram) StdDev() float64 {
	if d.conversion == 0 {
		return 0
	}
	return d.ints.StdDev() / d.conversion
}

// ValueAtPercentile returns the value below or at which p percent of
// recorded values fall, at bucket resolution.
func (d *DoubleHistogram) ValueAtPercentile(p float64) float64 {
	return d.toDouble(d.ints.ValueAtPercentile(p))
}

// ValueAtPercentiles returns one value per requested percentile.
func (d *DoubleHistogram) ValueAtPercentiles(percentiles []float64) []float64 {
	ints := d.ints.ValueAtPercentiles(percentiles)
	out := make([]float64, len(ints))
	for i, x := range ints {
		out[i] = d.toDouble(x)
	}
	return out
}

// CountAtValue returns the counter of the bucket containing v.
func (d *DoubleHistogram) CountAtValue(v float64) int64 {
	if v < 0 {
		return 0
	}
	if v == 0 || d.conversion == 0 {
		return d.ints.CountAtValue(0)
	}
	return d.ints.CountAtValue(int64(v * d.conversion))
}

// Add merges other into d, re-recording its values at d's window and
// resolution. Merging stops at the first error.
func (d *DoubleHistogram) Add(other *DoubleHistogram) error {
	if other == nil || other.TotalCount() == 0 {
		return nil
	}
	it := other.ints.RecordedValues()
	for it.Next() {
		v := it.At()
		if err := d.RecordValues(other.toDouble(v.ValueIteratedTo), v.CountAtValue); err != nil {
			return err
		}
	}
	return nil
}

// Reset zeroes all counters and un-anchors the window.
func (d *DoubleHistogram) Reset() {
	d.ints.Reset()
	d.conversion = 0
	d.prev = 0
}

// Copy returns an independent deep copy of d.
func (d *DoubleHistogram) Copy() *DoubleHistogram {
	out := *d
	out.ints = d.ints.Copy()
	return &out
}

// Equals reports whether both histograms hold identical state: the same
// configuration, window position and counters.
func (d *DoubleHistogram) Equals(other *DoubleHistogram) bool {
	if other == nil {
		return false
	}
	return d.ratio == other.ratio && d.sigfigs == other.sigfigs &&
		d.conversion == other.conversion && d.ints.Equals(other.ints)
}

// minNonZeroValue is the lowest recorded non-zero value at bucket
// resolution, or zero when only zeros were recorded.
func (h *Histogram) minNonZeroValue() int64 {
	for idx := 1; idx < h.geom.countsLen; idx++ {
		if h.counts.get(idx) != 0 {
			return h.geom.valueFor(idx)
		}
	}
	return 0
}

// shiftValuesLeft re-bins every non-zero-value counter at value << k.
// The zero bucket stays put. The caller guarantees shifted values stay
// inside the trackable range.
func (h *Histogram) shiftValuesLeft(k int) {
	if k == 0 || h.totalCount == 0 {
		return
	}
	next := newCounts(h.counts.width, h.geom.countsLen)
	next.set(0, h.counts.get(0))
	for idx := 1; idx < h.geom.countsLen; idx++ {
		if c := h.counts.get(idx); c != 0 {
			next.add(h.geom.countsIndex(h.geom.valueFor(idx)<<uint(k)), c)
		}
	}
	h.counts = next
	h.rederiveStats()
}

// shiftValuesRight re-bins every non-zero-value counter at value >> k.
// The zero bucket stays put. The caller guarantees no value shifts
// below one.
func (h *Histogram) shiftValuesRight(k int) {
	if k == 0 || h.totalCount == 0 {
		return
	}
	next := newCounts(h.counts.width, h.geom.countsLen)
	next.set(0, h.counts.get(0))
	for idx := 1; idx < h.geom.countsLen; idx++ {
		if c := h.counts.get(idx); c != 0 {
			next.add(h.geom.countsIndex(h.geom.valueFor(idx)>>uint(k)), c)
		}
	}
	h.counts = next
	h.rederiveStats()
}
