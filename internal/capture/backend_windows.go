//go:build windows

package capture

import "log/slog"

// platformEnumerator prefers DXGI Desktop Duplication, falling back to plain
// screen grabs when duplication is unavailable (e.g. session 0, RDP without
// a console session, or pre-DirectX-11 hardware).
func platformEnumerator() DeviceEnumerator {
	enum, err := newDXGIEnumerator()
	if err != nil {
		slog.Warn("DXGI Desktop Duplication unavailable, falling back to screenshot backend", "error", err)
		return NewScreenshotEnumerator()
	}
	return enum
}
