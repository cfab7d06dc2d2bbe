package capture

import "errors"

// Sentinel errors for the capture error taxonomy. Environmental failures are
// recoverable by re-running Initialize; contract violations (mismatched
// context sizes, out-of-range monitor ids) panic instead of returning errors.
var (
	// ErrNoMoreOutputs ends output enumeration; it is the expected loop
	// terminator, not a failure.
	ErrNoMoreOutputs = errors.New("no more outputs")

	// ErrNotCurrentlyAvailable means output enumeration is temporarily
	// unavailable, e.g. when running in a non-interactive session.
	// Enumeration stops early and keeps whatever outputs were found.
	ErrNotCurrentlyAvailable = errors.New("output enumeration not currently available")

	// ErrNoFrameYet means the duplication session had no new frame within
	// the acquire timeout. Spurious; never treated as a capture failure.
	ErrNoFrameYet = errors.New("no new frame yet")

	// ErrDeviceLost means the duplication session or its device was
	// invalidated (mode change, desktop switch, device removal). The caller
	// must tear down and re-Initialize the whole group.
	ErrDeviceLost = errors.New("capture device lost")

	// ErrNoOutputs is returned by Initialize when an adapter exposes zero
	// capturable outputs.
	ErrNoOutputs = errors.New("no capturable outputs")

	// ErrNotSupported is returned when the requested backend does not exist
	// on this platform.
	ErrNotSupported = errors.New("capture backend not supported on this platform")
)
