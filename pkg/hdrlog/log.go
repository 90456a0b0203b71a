// Package hdrlog reads and writes histogram interval logs: a textual,
// line-oriented format carrying one compressed histogram block per
// interval together with its start time, length and tag. Header lines
// of the form #[...] make the format self-describing; anything else
// starting with # is a comment.
package hdrlog

import "github.com/pkg/errors"

// Log format version emitted by Writer. Reader accepts logs of the same
// major version at this minor version or older.
const (
	logMajorVersion = 1
	logMinorVersion = 0
)

// ErrCorruptLog reports a log whose line structure or header metadata
// cannot be parsed. Corruption inside an embedded histogram block
// surfaces as hdrhist.ErrCorrupt instead.
var ErrCorruptLog = errors.New("hdrlog: corrupt log")
