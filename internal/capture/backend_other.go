//go:build !windows

package capture

// platformEnumerator selects the screenshot fallback: desktop duplication is
// a Windows-only primitive.
func platformEnumerator() DeviceEnumerator {
	return NewScreenshotEnumerator()
}

func newDXGIEnumerator() (DeviceEnumerator, error) {
	return nil, ErrNotSupported
}
