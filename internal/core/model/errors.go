package model

import "errors"

// Error kinds surfaced at the service boundary. Wrapped with %w so callers
// can classify with errors.Is regardless of where the failure originated.
var (
	// ErrNotFound: the (region, metric, scenario) triple does not exist in
	// the catalog.
	ErrNotFound = errors.New("catalog entry not found")

	// ErrInvalidWindow: the requested window is malformed, misaligned, or
	// outside the dataset bounds.
	ErrInvalidWindow = errors.New("invalid window")

	// ErrInsufficientData: the window is valid but contains no usable
	// samples. Never cached.
	ErrInsufficientData = errors.New("insufficient data in window")

	// ErrStorage: cache or raw-store I/O failure. Retryable.
	ErrStorage = errors.New("storage failure")
)

// ErrorKind maps an error to its wire-level kind string, or "internal" when
// it belongs to no known class.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}
