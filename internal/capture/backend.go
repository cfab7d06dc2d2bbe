package capture

import (
	"fmt"
	"strings"
)

// NewEnumerator returns the adapter enumerator for the named backend:
// "dxgi", "screenshot", or "auto" to pick the platform default.
func NewEnumerator(name string) (DeviceEnumerator, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return platformEnumerator(), nil
	case "dxgi":
		return newDXGIEnumerator()
	case "screenshot":
		return NewScreenshotEnumerator(), nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q", name)
	}
}
