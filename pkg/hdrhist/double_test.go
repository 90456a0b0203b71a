package hdrhist

import (
	"errors"
	"math"
	"testing"
)

func mustNewDouble(t *testing.T, ratio int64, sigfigs int) *DoubleHistogram {
	t.Helper()
	d, err := NewDouble(ratio, sigfigs)
	if err != nil {
		t.Fatalf("NewDouble(%d, %d) failed: %v", ratio, sigfigs, err)
	}
	return d
}

func mustRecordDouble(t *testing.T, d *DoubleHistogram, values ...float64) {
	t.Helper()
	for _, v := range values {
		if err := d.RecordValue(v); err != nil {
			t.Fatalf("RecordValue(%v) failed: %v", v, err)
		}
	}
}

func TestNewDoubleRejects(t *testing.T) {
	tests := []struct {
		name    string
		ratio   int64
		sigfigs int
	}{
		{"RatioTooSmall", 1, 3},
		{"SigfigsTooHigh", 1000, 6},
		{"SigfigsNegative", 1000, -1},
		{"RatioOverflowsRange", math.MaxInt64 / 100, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDouble(tt.ratio, tt.sigfigs); !errors.Is(err, ErrConfig) {
				t.Errorf("NewDouble() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestDoubleRecordAndQuery(t *testing.T) {
	d := mustNewDouble(t, 1000000, 3)
	mustRecordDouble(t, d, 1.0, 2.5, 2.5, 7.0)

	if got := d.TotalCount(); got != 4 {
		t.Errorf("TotalCount() = %d, want 4", got)
	}
	if got := d.CountAtValue(2.5); got != 2 {
		t.Errorf("CountAtValue(2.5) = %d, want 2", got)
	}
	// Everything stays within one part in 10^3 of what was recorded.
	if got := d.Min(); math.Abs(got-1.0) > 1e-3 {
		t.Errorf("Min() = %v, want about 1.0", got)
	}
	if got := d.Max(); math.Abs(got-7.0) > 7e-3 {
		t.Errorf("Max() = %v, want about 7.0", got)
	}
	if got, want := d.Mean(), (1.0+2.5+2.5+7.0)/4; math.Abs(got-want) > want*1e-3 {
		t.Errorf("Mean() = %v, want about %v", got, want)
	}
	if got := d.ValueAtPercentile(100); math.Abs(got-7.0) > 7e-3 {
		t.Errorf("ValueAtPercentile(100) = %v, want about 7.0", got)
	}

	batch := d.ValueAtPercentiles([]float64{50, 100})
	if math.Abs(batch[0]-2.5) > 2.5e-3 || math.Abs(batch[1]-7.0) > 7e-3 {
		t.Errorf("ValueAtPercentiles() = %v, want about [2.5, 7.0]", batch)
	}
}

func TestDoubleWindowAnchorsAtFirstValue(t *testing.T) {
	d := mustNewDouble(t, 1000000, 3)
	if got := d.CurrentLowestTrackableValue(); got != 0 {
		t.Errorf("CurrentLowestTrackableValue() = %v before anchor, want 0", got)
	}

	mustRecordDouble(t, d, 1.0)
	if got := d.CurrentLowestTrackableValue(); got != 1.0 {
		t.Errorf("CurrentLowestTrackableValue() = %v, want 1.0", got)
	}
	if got := d.CurrentHighestTrackableValue(); got != 1000000.0 {
		t.Errorf("CurrentHighestTrackableValue() = %v, want 1e6", got)
	}
}

func TestDoubleZerosBeforeAnchor(t *testing.T) {
	d := mustNewDouble(t, 1000000, 3)
	mustRecordDouble(t, d, 0, 0)

	if got := d.TotalCount(); got != 2 {
		t.Errorf("TotalCount() = %d, want 2", got)
	}
	if got := d.CountAtValue(0); got != 2 {
		t.Errorf("CountAtValue(0) = %d, want 2", got)
	}
	if got := d.Max(); got != 0 {
		t.Errorf("Max() = %v, want 0", got)
	}

	// The first non-zero value still anchors the window freely.
	mustRecordDouble(t, d, 40.0)
	if got := d.CurrentLowestTrackableValue(); got != 40.0 {
		t.Errorf("CurrentLowestTrackableValue() = %v, want 40.0", got)
	}
	if got := d.CountAtValue(0); got != 2 {
		t.Errorf("CountAtValue(0) = %d after anchor, want 2", got)
	}
}

func TestDoubleAutoRangeDown(t *testing.T) {
	d := mustNewDouble(t, 1000000, 3)
	mustRecordDouble(t, d, 1.0)

	// 0.001 is three decades below the window bottom; the window shifts
	// down in powers of two and the earlier value keeps its magnitude.
	mustRecordDouble(t, d, 0.001)

	if got := d.CountAtValue(1.0); got != 1 {
		t.Errorf("CountAtValue(1.0) = %d after shift, want 1", got)
	}
	if got := d.CountAtValue(0.001); got != 1 {
		t.Errorf("CountAtValue(0.001) = %d, want 1", got)
	}
	if got := d.Min(); math.Abs(got-0.001) > 1e-6 {
		t.Errorf("Min() = %v, want about 0.001", got)
	}
	if got := d.Max(); math.Abs(got-1.0) > 1e-3 {
		t.Errorf("Max() = %v, want about 1.0", got)
	}
	if got := d.CurrentLowestTrackableValue(); got > 0.001 {
		t.Errorf("CurrentLowestTrackableValue() = %v, want <= 0.001", got)
	}
}

func TestDoubleRangeExceeded(t *testing.T) {
	d := mustNewDouble(t, 1000, 2)
	mustRecordDouble(t, d, 1.0)

	// 1.0 sits at the window bottom, so any value at or above
	// bottom * ratio cannot be reached without dropping it.
	if err := d.RecordValue(1000.0); !errors.Is(err, ErrRangeExceeded) {
		t.Errorf("RecordValue(1000) error = %v, want ErrRangeExceeded", err)
	}
	if err := d.RecordValue(0.00001); !errors.Is(err, ErrRangeExceeded) {
		t.Errorf("RecordValue(0.00001) error = %v, want ErrRangeExceeded", err)
	}
	if got := d.TotalCount(); got != 1 {
		t.Errorf("TotalCount() = %d after rejected records, want 1", got)
	}

	// Just inside the span still works.
	mustRecordDouble(t, d, 999.0)
}

func TestDoubleRecordRejects(t *testing.T) {
	d := mustNewDouble(t, 1000000, 3)
	for _, v := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := d.RecordValue(v); !errors.Is(err, ErrValueOutOfRange) {
			t.Errorf("RecordValue(%v) error = %v, want ErrValueOutOfRange", v, err)
		}
	}
	if err := d.RecordValues(1.0, -2); !errors.Is(err, ErrNegativeCount) {
		t.Errorf("RecordValues(1, -2) error = %v, want ErrNegativeCount", err)
	}
}

func TestDoubleRecordCorrectedValue(t *testing.T) {
	d := mustNewDouble(t, 1000000, 3)
	mustRecordDouble(t, d, 10.0)

	// Back-fills 40, 30 and 20, stopping above the previous 10.
	if err := d.RecordCorrectedValue(50.0, 10.0); err != nil {
		t.Fatalf("RecordCorrectedValue failed: %v", err)
	}
	if got := d.TotalCount(); got != 5 {
		t.Errorf("TotalCount() = %d, want 5", got)
	}
	for _, v := range []float64{10, 20, 30, 40, 50} {
		if got := d.CountAtValue(v); got != 1 {
			t.Errorf("CountAtValue(%v) = %d, want 1", v, got)
		}
	}
}

func TestDoubleAdd(t *testing.T) {
	a := mustNewDouble(t, 1000000, 3)
	b := mustNewDouble(t, 1000000, 3)
	mustRecordDouble(t, a, 1.0, 100.0)
	mustRecordDouble(t, b, 0, 2.0)

	if err := a.Add(b); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got := a.TotalCount(); got != 4 {
		t.Errorf("TotalCount() = %d, want 4", got)
	}
	if got := a.CountAtValue(2.0); got != 1 {
		t.Errorf("CountAtValue(2.0) = %d, want 1", got)
	}
	if got := a.CountAtValue(0); got != 1 {
		t.Errorf("CountAtValue(0) = %d, want 1", got)
	}

	if err := a.Add(nil); err != nil {
		t.Errorf("Add(nil) error = %v, want nil", err)
	}
}

func TestDoubleAddAcrossWindows(t *testing.T) {
	a := mustNewDouble(t, 1000000, 3)
	b := mustNewDouble(t, 1000000, 3)
	mustRecordDouble(t, a, 1.0, 100.0)
	mustRecordDouble(t, b, 0.001)

	if err := a.Add(b); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got := a.TotalCount(); got != 3 {
		t.Errorf("TotalCount() = %d, want 3", got)
	}
	if got := a.Min(); math.Abs(got-0.001) > 1e-5 {
		t.Errorf("Min() = %v, want about 0.001", got)
	}
	if got := a.Max(); math.Abs(got-100.0) > 0.1 {
		t.Errorf("Max() = %v, want about 100.0", got)
	}
}

func TestDoubleCopyAndEquals(t *testing.T) {
	d := mustNewDouble(t, 1000000, 3)
	mustRecordDouble(t, d, 1.5, 2.5)

	c := d.Copy()
	if !d.Equals(c) {
		t.Error("copy compares unequal")
	}
	mustRecordDouble(t, d, 3.5)
	if d.Equals(c) {
		t.Error("diverged histograms still compare equal")
	}
	if got := c.TotalCount(); got != 2 {
		t.Errorf("copy TotalCount() = %d, want 2", got)
	}
	if d.Equals(nil) {
		t.Error("Equals(nil) = true")
	}
}

func TestDoubleReset(t *testing.T) {
	d := mustNewDouble(t, 1000000, 3)
	mustRecordDouble(t, d, 5.0)

	d.Reset()
	if got := d.TotalCount(); got != 0 {
		t.Errorf("TotalCount() = %d after Reset, want 0", got)
	}
	if got := d.CurrentLowestTrackableValue(); got != 0 {
		t.Errorf("CurrentLowestTrackableValue() = %v after Reset, want 0", got)
	}

	// A fresh anchor is allowed after the reset.
	mustRecordDouble(t, d, 0.0001)
	if got := d.CurrentLowestTrackableValue(); got != 0.0001 {
		t.Errorf("CurrentLowestTrackableValue() = %v, want 0.0001", got)
	}
}
