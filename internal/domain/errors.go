package domain

import "errors"

// Sentinel errors for structural failures. Data sparsity (a date window
// filtering to zero scenes, a fully masked composite) is never an error; it
// degrades to the empty raster instead.
var (
	// ErrInvalidRange marks a caller error: a date range whose start falls
	// after its end, or a negative buffer radius.
	ErrInvalidRange = errors.New("invalid range")

	// ErrBandMissing marks an input raster lacking a band an operation needs.
	ErrBandMissing = errors.New("band missing")

	// ErrGridMismatch marks raster operands whose grids do not align.
	ErrGridMismatch = errors.New("grid mismatch")
)
