package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var knownBackends = map[string]bool{
	"auto":       true,
	"dxgi":       true,
	"screenshot": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values that would break the capture loop are clamped to safe
// defaults. Other validation errors are logged as warnings but do not prevent
// startup.
func (c *Config) Validate() []error {
	var errs []error

	if !knownBackends[strings.ToLower(c.Backend)] {
		errs = append(errs, fmt.Errorf("backend %q is not valid (use auto, dxgi, screenshot)", c.Backend))
		c.Backend = "auto"
	}

	if c.Monitor < -1 {
		errs = append(errs, fmt.Errorf("monitor %d is not valid (use -1 for the full desktop, or a monitor index)", c.Monitor))
		c.Monitor = -1
	}

	// Clamp the tick rate to a usable range (0 would stall the loop timer).
	if c.FrameRate < 1 {
		errs = append(errs, fmt.Errorf("frame_rate %d is below minimum 1, clamping", c.FrameRate))
		c.FrameRate = 1
	} else if c.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("frame_rate %d exceeds maximum 240, clamping", c.FrameRate))
		c.FrameRate = 240
	}

	if c.TargetWidth < 0 || c.TargetHeight < 0 {
		errs = append(errs, fmt.Errorf("target resolution %dx%d is not valid, using native", c.TargetWidth, c.TargetHeight))
		c.TargetWidth, c.TargetHeight = 0, 0
	} else if (c.TargetWidth == 0) != (c.TargetHeight == 0) {
		errs = append(errs, fmt.Errorf("target_width and target_height must both be set or both be zero, using native"))
		c.TargetWidth, c.TargetHeight = 0, 0
	}

	if c.CaptureTimeoutMillis < 1 {
		errs = append(errs, fmt.Errorf("capture_timeout_millis %d is below minimum 1, clamping", c.CaptureTimeoutMillis))
		c.CaptureTimeoutMillis = 1
	} else if c.CaptureTimeoutMillis > 1000 {
		errs = append(errs, fmt.Errorf("capture_timeout_millis %d exceeds maximum 1000, clamping", c.CaptureTimeoutMillis))
		c.CaptureTimeoutMillis = 1000
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	// Log validation errors as warnings
	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
