package hdrlog

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/runningwild/hdrhist/pkg/hdrhist"
)

// Writer emits a histogram interval log. The usual sequence is
// WriteLogFormatVersion, WriteStartTime, WriteLegend, then one
// WriteIntervalHistogram per interval.
type Writer struct {
	out               io.Writer
	maxValueUnitRatio float64
	base              time.Time
}

// NewWriter returns a log writer emitting to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, maxValueUnitRatio: 1e6}
}

// SetMaxValueUnitRatio sets the divisor applied to interval maxima
// before they are printed, converting stored units into the log's
// reporting units. The default of 1e6 reports nanosecond recordings in
// milliseconds. Non-positive ratios are ignored.
func (w *Writer) SetMaxValueUnitRatio(ratio float64) {
	if ratio > 0 {
		w.maxValueUnitRatio = ratio
	}
}

// WriteLogFormatVersion emits the log format version header.
func (w *Writer) WriteLogFormatVersion() error {
	_, err := fmt.Fprintf(w.out, "#[Histogram log format version %d.%d]\n", logMajorVersion, logMinorVersion)
	return errors.Wrap(err, "hdrlog: write version")
}

// WriteStartTime emits the log start time header. Interval rows written
// afterwards carry offsets relative to it, unless WriteBaseTime set an
// explicit base first.
func (w *Writer) WriteStartTime(t time.Time) error {
	if w.base.IsZero() {
		w.base = t
	}
	sec := float64(t.UnixNano()) / 1e9
	_, err := fmt.Fprintf(w.out, "#[StartTime: %.3f (seconds since epoch), %s]\n", sec, t.Format(time.RFC3339))
	return errors.Wrap(err, "hdrlog: write start time")
}

// WriteBaseTime emits the base time header. Interval rows written
// afterwards carry offsets relative to it.
func (w *Writer) WriteBaseTime(t time.Time) error {
	w.base = t
	sec := float64(t.UnixNano()) / 1e9
	_, err := fmt.Fprintf(w.out, "#[BaseTime: %.3f (seconds since epoch)]\n", sec)
	return errors.Wrap(err, "hdrlog: write base time")
}

// WriteComment emits a comment line. The comment must not span lines.
func (w *Writer) WriteComment(comment string) error {
	if strings.ContainsAny(comment, "\n\r") {
		return errors.Errorf("hdrlog: comment %q spans multiple lines", comment)
	}
	_, err := fmt.Fprintf(w.out, "#[%s]\n", comment)
	return errors.Wrap(err, "hdrlog: write comment")
}

// WriteLegend emits the interval row legend.
func (w *Writer) WriteLegend() error {
	_, err := fmt.Fprintln(w.out, `"StartTimestamp","Interval_Length","Interval_Max","Interval_Compressed_Histogram"`)
	return errors.Wrap(err, "hdrlog: write legend")
}

// WriteIntervalHistogram emits one interval row: the histogram's start
// offset and length in seconds, its maximum scaled by the max value
// unit ratio, and its compressed form in base64. The histogram's tag,
// when set, prefixes the row and must not contain commas or line
// breaks.
func (w *Writer) WriteIntervalHistogram(h *hdrhist.Histogram) error {
	tag := h.Tag()
	if strings.ContainsAny(tag, ",\n\r") {
		return errors.Errorf("hdrlog: tag %q contains a reserved character", tag)
	}
	block, err := h.EncodeCompressed()
	if err != nil {
		return err
	}
	start := w.offsetSeconds(h.StartTime())
	length := h.EndTime().Sub(h.StartTime()).Seconds()
	max := float64(h.Max()) / w.maxValueUnitRatio
	if tag != "" {
		if _, err := fmt.Fprintf(w.out, "Tag=%s,", tag); err != nil {
			return errors.Wrap(err, "hdrlog: write interval")
		}
	}
	_, err = fmt.Fprintf(w.out, "%.3f,%.3f,%.3f,%s\n",
		start, length, max, base64.StdEncoding.EncodeToString(block))
	return errors.Wrap(err, "hdrlog: write interval")
}

// offsetSeconds converts an interval start into the logged timestamp:
// seconds since the base time when one is known, absolute epoch seconds
// otherwise.
func (w *Writer) offsetSeconds(t time.Time) float64 {
	if w.base.IsZero() {
		return float64(t.UnixNano()) / 1e9
	}
	return t.Sub(w.base).Seconds()
}
