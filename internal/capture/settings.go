package capture

import "time"

// Settings is the capture strategy observed at Initialize time. It is a
// value, fixed for the lifetime of one initialization; callers that change
// settings must re-Initialize. This replaces process-wide mutable flags so
// tests can vary settings without shared globals.
type Settings struct {
	// HardwareAcceleration requests GPU-side tuning (scheduling priority,
	// frame latency) during device initialization. Tuning failures are
	// logged, never fatal.
	HardwareAcceleration bool

	// TargetWidth and TargetHeight request downscaling of delivered frames.
	// Zero means native resolution.
	TargetWidth  int
	TargetHeight int

	// FrameRate is the consumer's intended tick cadence. The subsystem does
	// not tick by itself; backends may use this to size internal buffers.
	FrameRate int

	// AcquireTimeout bounds how long one session blocks waiting for a new
	// hardware frame during a tick.
	AcquireTimeout time.Duration
}

// DefaultSettings returns the settings used when the caller provides none.
func DefaultSettings() Settings {
	return Settings{
		HardwareAcceleration: true,
		FrameRate:            30,
		AcquireTimeout:       100 * time.Millisecond,
	}
}

// TargetSize returns the requested output resolution, if any.
func (s Settings) TargetSize() (width, height int, ok bool) {
	if s.TargetWidth > 0 && s.TargetHeight > 0 {
		return s.TargetWidth, s.TargetHeight, true
	}
	return 0, 0, false
}

func (s Settings) acquireTimeout() time.Duration {
	if s.AcquireTimeout <= 0 {
		return 100 * time.Millisecond
	}
	return s.AcquireTimeout
}
