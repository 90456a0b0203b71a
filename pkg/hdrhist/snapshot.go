package hdrhist

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Snapshot is an exported view of a histogram's configuration and
// counters, suitable for JSON or YAML serialization and for moving
// histograms between processes.
type Snapshot struct {
	LowestTrackableValue  int64   `json:"lowest" yaml:"lowest"`
	HighestTrackableValue int64   `json:"highest" yaml:"highest"`
	SignificantFigures    int64   `json:"significant_figures" yaml:"significant_figures"`
	Counts                []int64 `json:"counts" yaml:"counts"`
}

// Export returns a snapshot of the histogram. The snapshot shares no
// state with the histogram.
func (h *Histogram) Export() *Snapshot {
	out := make([]int64, h.geom.countsLen)
	for idx := range out {
		out[idx] = h.counts.get(idx)
	}
	return &Snapshot{
		LowestTrackableValue:  h.lowest,
		HighestTrackableValue: h.highest,
		SignificantFigures:    int64(h.sigfigs),
		Counts:                out,
	}
}

// Import reconstructs a histogram from a snapshot. Total count, min and
// max are re-derived from the counters. Snapshots with fewer counters
// than the geometry calls for are zero-filled at the top; more counters
// than fit, or negative counters, fail with ErrCorrupt.
func Import(s *Snapshot) (*Histogram, error) {
	h, err := New(s.LowestTrackableValue, s.HighestTrackableValue, int(s.SignificantFigures))
	if err != nil {
		return nil, err
	}
	if len(s.Counts) > h.geom.countsLen {
		return nil, errors.Wrapf(ErrCorrupt, "snapshot has %d counters, geometry has %d", len(s.Counts), h.geom.countsLen)
	}
	for idx, c := range s.Counts {
		if c < 0 {
			return nil, errors.Wrapf(ErrCorrupt, "snapshot counter %d is negative", idx)
		}
		h.counts.set(idx, c)
	}
	h.rederiveStats()
	return h, nil
}

// MarshalJSON encodes the histogram as its snapshot.
func (h *Histogram) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Export())
}

// UnmarshalJSON decodes a snapshot and replaces the histogram with it.
func (h *Histogram) UnmarshalJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	next, err := Import(&s)
	if err != nil {
		return err
	}
	*h = *next
	return nil
}

// MarshalYAML encodes the histogram as its snapshot.
func (h *Histogram) MarshalYAML() (interface{}, error) {
	return h.Export(), nil
}

// UnmarshalYAML decodes a snapshot and replaces the histogram with it.
func (h *Histogram) UnmarshalYAML(node *yaml.Node) error {
	var s Snapshot
	if err := node.Decode(&s); err != nil {
		return err
	}
	next, err := Import(&s)
	if err != nil {
		return err
	}
	*h = *next
	return nil
}
