package hdrhist

import (
	"errors"
	"testing"
)

func TestDeriveGeometry(t *testing.T) {
	tests := []struct {
		name               string
		lowest, highest    int64
		sigfigs            int
		wantSubBucketCount int
		wantBucketCount    int
		wantCountsLen      int
	}{
		{
			name:   "OneHourInMicroseconds",
			lowest: 1, highest: 3600000000, sigfigs: 3,
			// 3 significant figures need single-unit resolution up to
			// 2000, so 2048 sub-buckets.
			wantSubBucketCount: 2048,
			wantBucketCount:    22,
			wantCountsLen:      23552,
		},
		{
			name:   "ZeroSigfigs",
			lowest: 1, highest: 100, sigfigs: 0,
			wantSubBucketCount: 2,
			wantBucketCount:    7,
			wantCountsLen:      8,
		},
		{
			name:   "ElevatedLowest",
			lowest: 1000, highest: 100000, sigfigs: 2,
			// unitMagnitude 9 shifts the whole layout up; one doubling
			// bucket already covers the range.
			wantSubBucketCount: 256,
			wantBucketCount:    1,
			wantCountsLen:      256,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := deriveGeometry(tt.lowest, tt.highest, tt.sigfigs)
			if err != nil {
				t.Fatalf("deriveGeometry failed: %v", err)
			}
			if g.subBucketCount != tt.wantSubBucketCount {
				t.Errorf("subBucketCount = %d, want %d", g.subBucketCount, tt.wantSubBucketCount)
			}
			if g.bucketCount != tt.wantBucketCount {
				t.Errorf("bucketCount = %d, want %d", g.bucketCount, tt.wantBucketCount)
			}
			if g.countsLen != tt.wantCountsLen {
				t.Errorf("countsLen = %d, want %d", g.countsLen, tt.wantCountsLen)
			}
			if top := g.highestCoverableValue(); top < tt.highest {
				t.Errorf("highestCoverableValue = %d, does not cover %d", top, tt.highest)
			}
		})
	}
}

func TestDeriveGeometryRejects(t *testing.T) {
	tests := []struct {
		name            string
		lowest, highest int64
		sigfigs         int
	}{
		{"LowestZero", 0, 1000, 3},
		{"LowestNegative", -5, 1000, 3},
		{"SigfigsTooHigh", 1, 1000, 6},
		{"SigfigsNegative", 1, 1000, -1},
		{"HighestBelowTwiceLowest", 1000, 1500, 3},
		{"RangeTooWideToIndex", 1 << 55, 1 << 62, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := deriveGeometry(tt.lowest, tt.highest, tt.sigfigs)
			if !errors.Is(err, ErrConfig) {
				t.Errorf("deriveGeometry() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestNewFromConfigDefaultsAndWidths(t *testing.T) {
	h, err := NewFromConfig(Config{LowestTrackableValue: 1, HighestTrackableValue: 1000, SignificantFigures: 3})
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if got := h.Config().CounterWidth; got != Width64 {
		t.Errorf("default CounterWidth = %d, want %d", got, Width64)
	}

	for _, width := range []int{Width8, Width16, Width32, Width64} {
		h, err := NewFromConfig(Config{
			LowestTrackableValue:  1,
			HighestTrackableValue: 1000,
			SignificantFigures:    3,
			CounterWidth:          width,
		})
		if err != nil {
			t.Fatalf("NewFromConfig(width=%d) failed: %v", width, err)
		}
		if got := h.Config().CounterWidth; got != width {
			t.Errorf("CounterWidth = %d, want %d", got, width)
		}
	}

	if _, err := NewFromConfig(Config{
		LowestTrackableValue:  1,
		HighestTrackableValue: 1000,
		SignificantFigures:    3,
		CounterWidth:          7,
	}); !errors.Is(err, ErrConfig) {
		t.Errorf("NewFromConfig(width=7) error = %v, want ErrConfig", err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := Config{
		LowestTrackableValue:  10,
		HighestTrackableValue: 1000000,
		SignificantFigures:    2,
		AutoResize:            true,
		CounterWidth:          Width32,
	}
	h, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if got := h.Config(); got != cfg {
		t.Errorf("Config() = %+v, want %+v", got, cfg)
	}
}

func TestEquivalentValues(t *testing.T) {
	h, err := New(1, 3600000000, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"LowestOfUnitBucket", h.LowestEquivalentValue(1023), 1023},
		{"LowestCollapses", h.LowestEquivalentValue(10007), 10000},
		{"HighestOfWideBucket", h.HighestEquivalentValue(8180), 8183},
		{"MedianOfWideBucket", h.MedianEquivalentValue(5000), 5002},
		{"NextNonEquivalent", h.NextNonEquivalentValue(2500), 2502},
		{"UnitRangeBelowResolutionLimit", h.SizeOfEquivalentValueRange(2047), 1},
		{"RangeDoublesPastLimit", h.SizeOfEquivalentValueRange(2048), 2},
		{"RangeAtTenThousand", h.SizeOfEquivalentValueRange(10007), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %d, want %d", tt.got, tt.want)
			}
		})
	}

	if !h.ValuesAreEquivalent(2048, 2049) {
		t.Error("ValuesAreEquivalent(2048, 2049) = false, want true")
	}
	if h.ValuesAreEquivalent(2047, 2048) {
		t.Error("ValuesAreEquivalent(2047, 2048) = true, want false")
	}
}

func TestValueSlotRoundTrip(t *testing.T) {
	g, err := deriveGeometry(1, 3600000000, 3)
	if err != nil {
		t.Fatalf("deriveGeometry failed: %v", err)
	}
	for _, v := range []int64{0, 1, 999, 2047, 2048, 4097, 100000, 3599999999} {
		idx := g.countsIndex(v)
		if idx < 0 || idx >= g.countsLen {
			t.Fatalf("countsIndex(%d) = %d out of [0, %d)", v, idx, g.countsLen)
		}
		lo := g.valueFor(idx)
		hi := lo + g.sizeOfEquivalentRange(lo) - 1
		if v < lo || v > hi {
			t.Errorf("value %d mapped to slot %d covering [%d, %d]", v, idx, lo, hi)
		}
	}
}
