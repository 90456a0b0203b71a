package hdrhist

import (
	"sync"
	"time"
)

// Recorder samples values into an interval histogram that can be taken
// and replaced atomically while recording continues. Completed
// intervals also accumulate into a long-lived cumulative histogram.
// All methods are safe for concurrent use; the mutex is held only for
// the counter update itself.
type Recorder struct {
	mu         sync.Mutex
	active     *Histogram
	cumulative *Histogram
	tag        string
	start      time.Time
}

// NewRecorder returns a recorder whose histograms use the given
// configuration.
func NewRecorder(cfg Config) (*Recorder, error) {
	active, err := NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		active:     active,
		cumulative: active.Copy(),
		start:      time.Now(),
	}, nil
}

// SetTag sets the tag stamped on interval histograms produced from here
// on, and on the cumulative histogram.
func (r *Recorder) SetTag(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tag = tag
	r.cumulative.SetTag(tag)
}

// RecordValue records a single occurrence of v in the current interval.
func (r *Recorder) RecordValue(v int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.RecordValue(v)
}

// RecordValues records count occurrences of v in the current interval.
func (r *Recorder) RecordValues(v, count int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.RecordValues(v, count)
}

// RecordCorrectedValue records v in the current interval and back-fills
// synthetic samples for missed expectedInterval periods; see
// Histogram.RecordCorrectedValue.
func (r *Recorder) RecordCorrectedValue(v, expectedInterval int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.RecordCorrectedValue(v, expectedInterval)
}

// IntervalHistogram returns the histogram of values recorded since the
// previous call (or since construction), stamped with the interval's
// start and end times and the recorder's tag, and begins a new
// interval. The drained values are merged into the cumulative histogram
// as well. Passing a histogram obtained from an earlier call recycles
// its memory; pass nil to allocate a fresh one.
func (r *Recorder) IntervalHistogram(recycle *Histogram) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := recycle
	if next == nil || next.Config() != r.active.Config() {
		next = r.active.Copy()
	}
	next.Reset()
	interval := r.active
	r.active = next

	now := time.Now()
	interval.SetStartTime(r.start)
	interval.SetEndTime(now)
	interval.SetTag(r.tag)
	r.start = now

	// Same configuration lineage; Add cannot fail here.
	_ = r.cumulative.Add(interval)
	return interval
}

// Cumulative returns a copy of the histogram of every completed
// interval. Values still in the current interval are not included.
func (r *Recorder) Cumulative() *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cumulative.Copy()
}

// Reset clears the current interval and the cumulative histogram and
// restarts the interval clock.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active.Reset()
	r.cumulative.Reset()
	r.start = time.Now()
}
