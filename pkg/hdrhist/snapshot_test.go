package hdrhist

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestSnapshotRoundTrip(t *testing.T) {
	h := mustNew(t, 1, 3600000000, 3)
	mustRecord(t, h, 100, 200, 200, 99999)

	restored, err := Import(h.Export())
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !h.Equals(restored) {
		t.Error("imported histogram differs from the original")
	}
	if got, want := restored.Max(), h.Max(); got != want {
		t.Errorf("Max() = %d, want %d", got, want)
	}
}

func TestSnapshotExportShape(t *testing.T) {
	h := mustNew(t, 1, 100, 0)
	mustRecord(t, h, 1, 5, 5)

	got := h.Export()
	want := &Snapshot{
		LowestTrackableValue:  1,
		HighestTrackableValue: 100,
		SignificantFigures:    0,
		Counts:                []int64{0, 1, 0, 2, 0, 0, 0, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Export() mismatch (-want +got):\n%s", diff)
	}

	// Exported counts are a copy, not a view.
	got.Counts[1] = 99
	if h.CountAtValue(1) != 1 {
		t.Error("mutating the snapshot changed the histogram")
	}
}

func TestSnapshotImportShortCountsZeroFill(t *testing.T) {
	h, err := Import(&Snapshot{
		LowestTrackableValue:  1,
		HighestTrackableValue: 100,
		SignificantFigures:    0,
		Counts:                []int64{0, 5},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if got := h.TotalCount(); got != 5 {
		t.Errorf("TotalCount() = %d, want 5", got)
	}
	if got := h.CountAtValue(1); got != 5 {
		t.Errorf("CountAtValue(1) = %d, want 5", got)
	}
}

func TestSnapshotImportRejects(t *testing.T) {
	tests := []struct {
		name string
		s    *Snapshot
		want error
	}{
		{
			name: "TooManyCounters",
			s: &Snapshot{
				LowestTrackableValue:  1,
				HighestTrackableValue: 100,
				Counts:                make([]int64, 100),
			},
			want: ErrCorrupt,
		},
		{
			name: "NegativeCounter",
			s: &Snapshot{
				LowestTrackableValue:  1,
				HighestTrackableValue: 100,
				Counts:                []int64{0, -3},
			},
			want: ErrCorrupt,
		},
		{
			name: "BadConfig",
			s: &Snapshot{
				LowestTrackableValue:  0,
				HighestTrackableValue: 100,
			},
			want: ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(tt.s)
			if !errors.Is(err, tt.want) {
				t.Errorf("Import() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHistogramJSON(t *testing.T) {
	h := mustNew(t, 1, 3600000000, 3)
	mustRecord(t, h, 100, 5000)

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, key := range []string{`"lowest"`, `"highest"`, `"significant_figures"`, `"counts"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("JSON missing key %s: %s", key, data[:min(len(data), 120)])
		}
	}

	var restored Histogram
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !h.Equals(&restored) {
		t.Error("JSON round trip altered the histogram")
	}
}

func TestHistogramYAML(t *testing.T) {
	h := mustNew(t, 1, 3600000000, 3)
	mustRecord(t, h, 100, 5000)

	data, err := yaml.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), "significant_figures: 3") {
		t.Errorf("YAML missing significant_figures: %s", data)
	}

	var restored Histogram
	if err := yaml.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !h.Equals(&restored) {
		t.Error("YAML round trip altered the histogram")
	}
}

func TestHistogramJSONRejectsCorrupt(t *testing.T) {
	var h Histogram
	err := json.Unmarshal([]byte(`{"lowest":1,"highest":100,"significant_figures":0,"counts":[-1]}`), &h)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Unmarshal error = %v, want ErrCorrupt", err)
	}
}
