package scoring

import "errors"

// Sentinel kinds for scorer failures. Every kind excludes the person from
// the run; none aborts it.
var (
	ErrUnavailable = errors.New("scorer unavailable")
	ErrTimeout     = errors.New("scorer timed out")
	ErrMalformed   = errors.New("malformed scorer response")
	ErrSentinel    = errors.New("scorer returned failure sentinel")
)

// Kind returns the metric label for a scorer error.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSentinel):
		return "sentinel"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "unavailable"
	}
}
