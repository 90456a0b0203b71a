package hdrhist

import "github.com/pkg/errors"

// WindowedHistogram holds a ring of n interval histograms and a rolling
// aggregate over them. Records go to Current; Rotate retires the oldest
// interval and starts a fresh one, so percentiles from Merge cover only
// the last n intervals.
type WindowedHistogram struct {
	ring   []*Histogram
	idx    int
	merged *Histogram

	// Current receives records for the present interval.
	Current *Histogram
}

// NewWindowed returns a windowed histogram of n intervals, each
// configured with cfg.
func NewWindowed(n int, cfg Config) (*WindowedHistogram, error) {
	if n < 1 {
		return nil, errors.Wrapf(ErrConfig, "window size %d must be at least 1", n)
	}
	first, err := NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	w := &WindowedHistogram{
		ring:   make([]*Histogram, n),
		merged: first.Copy(),
	}
	w.ring[0] = first
	for i := 1; i < n; i++ {
		w.ring[i] = first.Copy()
	}
	w.Current = w.ring[0]
	return w, nil
}

// Merge returns the aggregate of every interval in the window,
// including the current one. The returned histogram is owned by w and
// reused by later Merge calls.
func (w *WindowedHistogram) Merge() *Histogram {
	w.merged.Reset()
	for _, h := range w.ring {
		// Same configuration lineage; Add cannot fail here.
		_ = w.merged.Add(h)
	}
	return w.merged
}

// Rotate clears the oldest interval and makes it Current.
func (w *WindowedHistogram) Rotate() {
	w.idx++
	w.Current = w.ring[w.idx%len(w.ring)]
	w.Current.Reset()
}
