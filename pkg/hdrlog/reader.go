package hdrlog

import (
	"bufio"
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/runningwild/hdrhist/pkg/hdrhist"
)

// Interval rows carry a whole base64 block each, so lines can run to
// megabytes for wide histograms.
const maxLineBytes = 64 << 20

// Reader parses a histogram interval log produced by Writer or by other
// emitters of the same format.
type Reader struct {
	sc    *bufio.Scanner
	start time.Time
	base  time.Time
}

// NewReader returns a log reader consuming r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// StartTime returns the log start time observed so far, or the zero
// time when the log carries none.
func (r *Reader) StartTime() time.Time { return r.start }

// BaseTime returns the explicit base time observed so far, or the zero
// time when the log carries none.
func (r *Reader) BaseTime() time.Time { return r.base }

// Next returns the next interval histogram with absolute start and end
// times and its tag applied, or io.EOF when the log ends. Comment,
// legend and blank lines are skipped; header lines update StartTime and
// BaseTime as they are encountered.
func (r *Reader) Next() (*hdrhist.Histogram, error) {
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "#["):
			if err := r.header(line); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "#"):
		case strings.HasPrefix(line, `"`):
		default:
			return r.interval(line)
		}
	}
	if err := r.sc.Err(); err != nil {
		return nil, errors.Wrap(err, "hdrlog: read")
	}
	return nil, io.EOF
}

func (r *Reader) header(line string) error {
	body := strings.TrimSuffix(strings.TrimPrefix(line, "#["), "]")
	switch {
	case strings.HasPrefix(body, "Histogram log format version "):
		return checkLogVersion(strings.TrimPrefix(body, "Histogram log format version "))
	case strings.HasPrefix(body, "StartTime: "):
		t, err := parseHeaderSeconds(strings.TrimPrefix(body, "StartTime: "))
		if err != nil {
			return err
		}
		r.start = t
	case strings.HasPrefix(body, "BaseTime: "):
		t, err := parseHeaderSeconds(strings.TrimPrefix(body, "BaseTime: "))
		if err != nil {
			return err
		}
		r.base = t
	}
	return nil
}

func checkLogVersion(v string) error {
	dot := strings.IndexByte(v, '.')
	if dot < 0 {
		return errors.Wrapf(ErrCorruptLog, "malformed version %q", v)
	}
	major, err := strconv.Atoi(v[:dot])
	if err != nil {
		return errors.Wrapf(ErrCorruptLog, "malformed version %q", v)
	}
	minor, err := strconv.Atoi(v[dot+1:])
	if err != nil {
		return errors.Wrapf(ErrCorruptLog, "malformed version %q", v)
	}
	if major != logMajorVersion || minor > logMinorVersion {
		return errors.Wrapf(ErrCorruptLog, "unsupported log version %d.%d", major, minor)
	}
	return nil
}

// parseHeaderSeconds reads the leading fractional-seconds field of a
// StartTime or BaseTime header, ignoring the annotation after it.
func parseHeaderSeconds(s string) (time.Time, error) {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrCorruptLog, "malformed timestamp %q", s)
	}
	return epochTime(sec), nil
}

func (r *Reader) interval(line string) (*hdrhist.Histogram, error) {
	rest := line
	var tag string
	if strings.HasPrefix(rest, "Tag=") {
		i := strings.IndexByte(rest, ',')
		if i < 0 {
			return nil, errors.Wrapf(ErrCorruptLog, "interval row %q has no fields after its tag", line)
		}
		tag = rest[len("Tag="):i]
		rest = rest[i+1:]
	}
	fields := strings.Split(rest, ",")
	if len(fields) != 4 {
		return nil, errors.Wrapf(ErrCorruptLog, "interval row has %d fields, want 4", len(fields))
	}
	start, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptLog, "malformed interval start %q", fields[0])
	}
	length, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptLog, "malformed interval length %q", fields[1])
	}
	if _, err := strconv.ParseFloat(fields[2], 64); err != nil {
		return nil, errors.Wrapf(ErrCorruptLog, "malformed interval max %q", fields[2])
	}
	block, err := base64.StdEncoding.DecodeString(fields[3])
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptLog, "malformed interval block: %v", err)
	}
	h, err := hdrhist.DecodeCompressed(block)
	if err != nil {
		return nil, err
	}
	h.SetTag(tag)
	at := r.resolveTime(start)
	h.SetStartTime(at)
	h.SetEndTime(at.Add(seconds(length)))
	return h, nil
}

// resolveTime maps a row timestamp to an absolute time. An explicit
// base time makes every row relative to it; otherwise timestamps large
// enough to be epoch seconds (1e9 and up) are taken as absolute, and
// the rest as relative to the log start time.
func (r *Reader) resolveTime(sec float64) time.Time {
	switch {
	case !r.base.IsZero():
		return r.base.Add(seconds(sec))
	case sec >= 1e9:
		return epochTime(sec)
	case !r.start.IsZero():
		return r.start.Add(seconds(sec))
	default:
		return epochTime(sec)
	}
}

// epochTime converts fractional epoch seconds at millisecond precision,
// the precision the format prints.
func epochTime(sec float64) time.Time {
	ms := int64(math.Round(sec * 1000))
	return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond)).UTC()
}

func seconds(sec float64) time.Duration {
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}
