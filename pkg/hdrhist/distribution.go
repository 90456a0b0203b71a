package hdrhist

import (
	"fmt"
	"io"
)

// Bar is one bucket of a value distribution.
type Bar struct {
	Count              int64
	ValueFrom, ValueTo int64
}

// Distribution returns one Bar per bucket, in value order, empty buckets
// included.
func (h *Histogram) Distribution() []Bar {
	result := make([]Bar, 0, h.geom.countsLen)
	it := h.AllValues()
	for it.Next() {
		v := it.At()
		result = append(result, Bar{
			Count:     v.CountAtValue,
			ValueFrom: h.LowestEquivalentValue(v.ValueIteratedTo),
			ValueTo:   v.ValueIteratedTo,
		})
	}
	return result
}

// Bracket is one step of a cumulative distribution.
type Bracket struct {
	Quantile       float64
	Count, ValueAt int64
}

// CumulativeDistribution returns the distribution of recorded values as
// an ordered list of percentile brackets.
func (h *Histogram) CumulativeDistribution() []Bracket {
	var result []Bracket
	it := h.PercentileValues(1)
	for it.Next() {
		v := it.At()
		result = append(result, Bracket{
			Quantile: v.PercentileLevelIteratedTo,
			Count:    v.TotalCountToThisValue,
			ValueAt:  v.ValueIteratedTo,
		})
	}
	return result
}

// PercentilesPrint writes the classic percentile distribution report to
// w. Values are divided by valueScale on output (use 1000.0 to print
// microsecond recordings as milliseconds, for example).
func (h *Histogram) PercentilesPrint(w io.Writer, ticksPerHalfDistance int32, valueScale float64) error {
	if _, err := fmt.Fprintf(w, "%12s %14s %10s %14s\n\n", "Value", "Percentile", "TotalCount", "1/(1-Percentile)"); err != nil {
		return err
	}
	it := h.PercentileValues(ticksPerHalfDistance)
	for it.Next() {
		v := it.At()
		var err error
		if v.PercentileLevelIteratedTo != 100 {
			_, err = fmt.Fprintf(w, "%12.*f %2.12f %10d %14.2f\n",
				h.sigfigs, float64(v.ValueIteratedTo)/valueScale,
				v.PercentileLevelIteratedTo/100,
				v.TotalCountToThisValue,
				1/(1-v.PercentileLevelIteratedTo/100))
		} else {
			_, err = fmt.Fprintf(w, "%12.*f %2.12f %10d\n",
				h.sigfigs, float64(v.ValueIteratedTo)/valueScale,
				v.PercentileLevelIteratedTo/100,
				v.TotalCountToThisValue)
		}
		if err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "#[Mean    = %12.*f, StdDeviation   = %12.*f]\n",
		h.sigfigs, h.Mean()/valueScale, h.sigfigs, h.StdDev()/valueScale); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "#[Max     = %12.*f, Total count    = %12d]\n",
		h.sigfigs, float64(h.Max())/valueScale, h.totalCount); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "#[Buckets = %12d, SubBuckets     = %12d]\n",
		h.geom.bucketCount, h.geom.subBucketCount)
	return err
}
