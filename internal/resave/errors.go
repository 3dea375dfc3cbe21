package resave

import (
	"github.com/joomcode/errorx"
)

var (
	// Errors is the namespace of every error returned by a run
	Errors = errorx.NewNamespace("resave")

	// ErrScanFailed marks a store failure while scanning; the run is aborted
	ErrScanFailed = Errors.NewType("scan_failed")
	// ErrInvalidInput marks a request rejected before any store access
	ErrInvalidInput = Errors.NewType("invalid_input")
	// ErrInterrupted marks a run stopped by context cancellation
	ErrInterrupted = Errors.NewType("interrupted")
	// ErrAlreadyRunning is returned when Run is called on a busy Rewriter
	ErrAlreadyRunning = Errors.NewType("already_running")

	// PropertyCursor carries the cursor a stopped run can be resumed from
	PropertyCursor = errorx.RegisterProperty("cursor")
)

// ResumeCursor returns the cursor attached to an error from Run
func ResumeCursor(err error) (Cursor, bool) {
	v, ok := errorx.ExtractProperty(err, PropertyCursor)
	if !ok {
		return 0, false
	}
	c, ok := v.(Cursor)
	return c, ok
}

func scanFailed(err error, cursor Cursor) error {
	return ErrScanFailed.Wrap(err, "scan from cursor %d failed", cursor).
		WithProperty(PropertyCursor, cursor)
}

func interrupted(err error, cursor Cursor) error {
	return ErrInterrupted.Wrap(err, "run interrupted, resume from cursor %d", cursor).
		WithProperty(PropertyCursor, cursor)
}
