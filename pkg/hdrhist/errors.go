package hdrhist

import (
	"github.com/pkg/errors"
)

// Sentinel errors returned by this package. Callers match them with
// errors.Is; the returned errors usually carry extra context on top.
var (
	// ErrConfig means the histogram configuration cannot be realized
	// (bad trackable range, significant figures out of [0, 5], or a
	// range too wide to index with 63-bit values).
	ErrConfig = errors.New("hdrhist: invalid histogram configuration")

	// ErrValueOutOfRange means a value is outside the trackable range
	// and neither clamping nor auto-resize is enabled.
	ErrValueOutOfRange = errors.New("hdrhist: value outside trackable range")

	// ErrIncompatibleGeometry means two histograms cannot be combined
	// because their bucket layouts differ. The operands are unchanged.
	ErrIncompatibleGeometry = errors.New("hdrhist: incompatible bucket geometry")

	// ErrNegativeCount means an operation would drive a counter below
	// zero. The operands are unchanged.
	ErrNegativeCount = errors.New("hdrhist: operation would produce a negative count")

	// ErrRangeExceeded means a double histogram cannot widen its
	// auto-ranged window any further without dropping recorded values
	// outside the configured dynamic range.
	ErrRangeExceeded = errors.New("hdrhist: configured dynamic range exceeded")

	// ErrCorrupt means an encoded histogram could not be decoded.
	ErrCorrupt = errors.New("hdrhist: corrupt or truncated encoded histogram")
)
