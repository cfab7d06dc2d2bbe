package capture

import (
	"image"
	"time"
)

// OutputDescriptor describes one physical display output as reported by its
// adapter at discovery time. Re-read on re-enumeration, never cached across
// group re-initialization.
type OutputDescriptor struct {
	// DeviceName identifies the output for diagnostics, e.g. `\\.\DISPLAY1`.
	DeviceName string

	// Rect is the output's rectangle in desktop coordinates as reported by
	// the adapter.
	Rect DesktopRect

	// AttachedToDesktop is false for outputs that exist but do not
	// participate in the desktop (disabled or headless connectors).
	AttachedToDesktop bool
}

// DeviceEnumerator discovers graphics adapters. Implemented by the DXGI
// backend on Windows and by the screenshot fallback elsewhere.
type DeviceEnumerator interface {
	// EnumAdapters returns a device handle per adapter. Ownership of each
	// device passes to the caller.
	EnumAdapters() ([]Device, error)
}

// Device is the hardware handle for one graphics adapter. It is owned by
// exactly one AdapterGroup and shared read-only by that group's sessions.
type Device interface {
	// Name returns the adapter description for diagnostics.
	Name() string

	// RaiseGPUPriority requests elevated GPU scheduling for the process.
	// Best effort: an error is logged by the caller, never propagated.
	RaiseGPUPriority() error

	// SetMaximumFrameLatency asks the device's output queue to hold at most
	// the given number of frames. Best effort.
	SetMaximumFrameLatency(frames int) error

	// EnumOutput returns the output at the given index, ErrNoMoreOutputs
	// past the last one, or ErrNotCurrentlyAvailable when enumeration is
	// temporarily impossible.
	EnumOutput(index int) (Output, error)

	// Release frees the underlying device handle. Called exactly once by
	// the owning group.
	Release()
}

// Output is one enumerated display output, not yet duplicated.
type Output interface {
	// Descriptor reads the output's description from the adapter.
	Descriptor() (OutputDescriptor, error)

	// OpenDuplication binds a duplication session to this output. Fails if
	// duplication is already held exclusively elsewhere or the output is
	// unsupported.
	OpenDuplication() (Duplication, error)
}

// Duplication is a live hardware duplication session for one output. It is
// move-only: never copied, released exactly once via Close.
type Duplication interface {
	// AcquireFrame blocks up to timeout for a new frame and returns it in
	// the output's local coordinate space. Returns ErrNoFrameYet when
	// nothing new was presented; errors wrapping ErrDeviceLost when the
	// session was invalidated. The returned image is owned by the caller.
	AcquireFrame(timeout time.Duration) (*image.RGBA, error)

	// Close releases the duplication handle.
	Close()
}
