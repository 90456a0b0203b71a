package hdrhist

import "math"

// IterationValue is one step of a histogram iteration.
type IterationValue struct {
	// ValueIteratedTo is the value level this step reports, at bucket
	// resolution for value-driven iterators or the step boundary for
	// linear and logarithmic ones.
	ValueIteratedTo int64
	// CountAtValue is the counter of the bucket the iterator paused at.
	CountAtValue int64
	// CountAddedInThisStep is how many recorded values this step covers.
	CountAddedInThisStep int64
	// TotalCountToThisValue is the cumulative count through this step.
	TotalCountToThisValue int64
	// Percentile is the cumulative percentile at this step.
	Percentile float64
	// PercentileLevelIteratedTo is the percentile the iterator was
	// aiming for; equal to Percentile except for percentile ladders.
	PercentileLevelIteratedTo float64
}

// iterState is the bucket walk shared by all iterators. It steps through
// the counts array accumulating cumulative counts while the specific
// iterator decides where to pause and what to report. Iterators snapshot
// the total count at creation; recording during iteration is not
// supported.
type iterState struct {
	h          *Histogram
	total      int64
	idx        int
	valueAt    int64 // valueFor(idx)
	countAt    int64
	cumulative int64 // counts up to and including idx
	prevCum    int64 // cumulative at the previous reported step
	fresh      bool  // idx not yet folded into cumulative
	cur        IterationValue
}

func newIterState(h *Histogram) iterState {
	return iterState{h: h, total: h.totalCount, fresh: true}
}

// At returns the step produced by the last successful Next.
func (s *iterState) At() IterationValue { return s.cur }

func (s *iterState) exhausted() bool { return s.idx >= s.h.geom.countsLen }

// visit loads the current bucket, folding it into the cumulative count
// the first time the bucket is seen.
func (s *iterState) visit() {
	s.countAt = s.h.counts.get(s.idx)
	if s.fresh {
		s.cumulative += s.countAt
		s.fresh = false
	}
}

func (s *iterState) step() {
	s.idx++
	s.valueAt = s.h.geom.valueFor(s.idx)
	s.fresh = true
}

func (s *iterState) percentile(cum int64) float64 {
	if s.total == 0 {
		return 0
	}
	return 100 * float64(cum) / float64(s.total)
}

func (s *iterState) report(valueTo int64, level float64) {
	s.cur = IterationValue{
		ValueIteratedTo:           valueTo,
		CountAtValue:              s.countAt,
		CountAddedInThisStep:      s.cumulative - s.prevCum,
		TotalCountToThisValue:     s.cumulative,
		Percentile:                s.percentile(s.cumulative),
		PercentileLevelIteratedTo: level,
	}
	s.prevCum = s.cumulative
}

// AllValuesIterator visits every bucket in order, empty ones included.
type AllValuesIterator struct{ iterState }

// AllValues returns an iterator over every bucket of the histogram,
// including buckets with a zero count.
func (h *Histogram) AllValues() *AllValuesIterator {
	return &AllValuesIterator{newIterState(h)}
}

func (it *AllValuesIterator) Next() bool {
	if it.exhausted() {
		return false
	}
	it.visit()
	it.report(it.h.HighestEquivalentValue(it.valueAt), it.percentile(it.cumulative))
	it.step()
	return true
}

// RecordedValuesIterator visits every non-empty bucket in order.
type RecordedValuesIterator struct{ iterState }

// RecordedValues returns an iterator over the non-empty buckets of the
// histogram.
func (h *Histogram) RecordedValues() *RecordedValuesIterator {
	return &RecordedValuesIterator{newIterState(h)}
}

func (it *RecordedValuesIterator) Next() bool {
	for !it.exhausted() {
		it.visit()
		if it.countAt != 0 {
			it.report(it.h.HighestEquivalentValue(it.valueAt), it.percentile(it.cumulative))
			it.step()
			return true
		}
		it.step()
	}
	return false
}

// LinearIterator reports fixed-width value steps, empty steps included,
// through the step containing the maximum recorded value. Steps coarser
// than the underlying buckets coalesce several buckets; finer steps
// split along bucket boundaries.
type LinearIterator struct {
	iterState
	unitsPerBucket  int64
	stepHighest     int64 // highest value belonging to the current step
	stepLowestEquiv int64
}

// LinearValues returns an iterator stepping in fixed increments of
// valueUnitsPerBucket, which must be positive.
func (h *Histogram) LinearValues(valueUnitsPerBucket int64) *LinearIterator {
	if valueUnitsPerBucket < 1 {
		valueUnitsPerBucket = 1
	}
	it := &LinearIterator{iterState: newIterState(h), unitsPerBucket: valueUnitsPerBucket}
	it.stepHighest = valueUnitsPerBucket - 1
	it.stepLowestEquiv = h.LowestEquivalentValue(it.stepHighest)
	return it
}

func (it *LinearIterator) Next() bool {
	if !it.hasNext() {
		return false
	}
	for !it.exhausted() {
		it.visit()
		if it.valueAt >= it.stepLowestEquiv {
			it.report(it.stepHighest, it.percentile(it.cumulative))
			it.stepHighest += it.unitsPerBucket
			it.stepLowestEquiv = it.h.LowestEquivalentValue(it.stepHighest)
			return true
		}
		it.step()
	}
	return false
}

func (it *LinearIterator) hasNext() bool {
	if it.cumulative < it.total {
		return true
	}
	// Keep stepping until the step boundary passes the bucket after the
	// one we paused at, so the step holding the max value is reported.
	return it.stepHighest+1 < it.h.geom.valueFor(it.idx+1)
}

// LogarithmicIterator reports steps whose width grows by a constant
// factor, empty steps included, through the step containing the maximum
// recorded value.
type LogarithmicIterator struct {
	iterState
	logBase         float64
	nextLevel       float64
	stepHighest     int64
	stepLowestEquiv int64
}

// LogarithmicValues returns an iterator whose first step spans
// valueUnitsInFirstBucket and whose step width then grows by logBase.
func (h *Histogram) LogarithmicValues(valueUnitsInFirstBucket int64, logBase float64) *LogarithmicIterator {
	if valueUnitsInFirstBucket < 1 {
		valueUnitsInFirstBucket = 1
	}
	if logBase <= 1 {
		logBase = 2
	}
	it := &LogarithmicIterator{
		iterState: newIterState(h),
		logBase:   logBase,
		nextLevel: float64(valueUnitsInFirstBucket),
	}
	it.stepHighest = valueUnitsInFirstBucket - 1
	it.stepLowestEquiv = h.LowestEquivalentValue(it.stepHighest)
	return it
}

func (it *LogarithmicIterator) Next() bool {
	if !it.hasNext() {
		return false
	}
	for !it.exhausted() {
		it.visit()
		if it.valueAt >= it.stepLowestEquiv {
			it.report(it.stepHighest, it.percentile(it.cumulative))
			it.nextLevel *= it.logBase
			it.stepHighest = int64(it.nextLevel) - 1
			it.stepLowestEquiv = it.h.LowestEquivalentValue(it.stepHighest)
			return true
		}
		it.step()
	}
	return false
}

func (it *LogarithmicIterator) hasNext() bool {
	if it.cumulative < it.total {
		return true
	}
	return it.h.LowestEquivalentValue(int64(it.nextLevel)) < it.h.geom.valueFor(it.idx+1)
}

// PercentileIterator reports percentile ticks whose resolution doubles
// as the level approaches 100: ticksPerHalfDistance ticks are reported
// for each halving of the remaining distance. The final tick is always
// at the maximum recorded value.
type PercentileIterator struct {
	iterState
	ticksPerHalfDistance int32
	levelTo              float64
	seenLast             bool
}

// PercentileValues returns a percentile ladder iterator with the given
// tick density.
func (h *Histogram) PercentileValues(ticksPerHalfDistance int32) *PercentileIterator {
	if ticksPerHalfDistance < 1 {
		ticksPerHalfDistance = 1
	}
	return &PercentileIterator{iterState: newIterState(h), ticksPerHalfDistance: ticksPerHalfDistance}
}

func (it *PercentileIterator) Next() bool {
	if it.cumulative >= it.total {
		// All counts consumed; report the closing tick at the max
		// recorded value, exactly once.
		if it.seenLast || it.total == 0 {
			return false
		}
		it.seenLast = true
		it.levelTo = 100
		it.visit()
		it.report(it.h.HighestEquivalentValue(it.valueAt), 100)
		return true
	}
	for !it.exhausted() {
		it.visit()
		if it.countAt != 0 && it.percentile(it.cumulative) >= it.levelTo {
			it.report(it.h.HighestEquivalentValue(it.valueAt), it.levelTo)
			it.advanceLevel()
			return true
		}
		it.step()
	}
	return false
}

// advanceLevel moves the target percentile by one tick, doubling the
// tick density for every halving of the distance to 100.
func (it *PercentileIterator) advanceLevel() {
	remaining := 100 - it.levelTo
	if remaining <= 0 {
		return
	}
	ticks := float64(it.ticksPerHalfDistance) * math.Trunc(math.Pow(2, math.Trunc(math.Log2(100/remaining))+1))
	it.levelTo += 100 / ticks
}
