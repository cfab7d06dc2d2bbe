package capture

import (
	"fmt"
	"image"
	"time"

	"github.com/kbinani/screenshot"
)

// screenshotEnumerator is the portable fallback backend: the whole windowing
// system is presented as one synthetic adapter whose outputs are the active
// displays. Frames come from plain screen grabs, so a CRC frame differ
// stands in for the hardware's new-frame signal.
type screenshotEnumerator struct{}

// NewScreenshotEnumerator returns the screenshot fallback backend.
func NewScreenshotEnumerator() DeviceEnumerator {
	return screenshotEnumerator{}
}

func (screenshotEnumerator) EnumAdapters() ([]Device, error) {
	return []Device{&screenshotDevice{displays: screenshot.NumActiveDisplays()}}, nil
}

type screenshotDevice struct {
	displays int
}

func (d *screenshotDevice) Name() string { return "screenshot" }

// RaiseGPUPriority is a no-op: there is no device queue to tune.
func (d *screenshotDevice) RaiseGPUPriority() error { return nil }

func (d *screenshotDevice) SetMaximumFrameLatency(int) error { return nil }

func (d *screenshotDevice) EnumOutput(index int) (Output, error) {
	if index >= d.displays {
		return nil, ErrNoMoreOutputs
	}
	return &screenshotOutput{index: index}, nil
}

func (d *screenshotDevice) Release() {}

type screenshotOutput struct {
	index int
}

func (o *screenshotOutput) Descriptor() (OutputDescriptor, error) {
	bounds := screenshot.GetDisplayBounds(o.index)
	return OutputDescriptor{
		DeviceName:        fmt.Sprintf("display-%d", o.index),
		Rect:              RectFromImage(bounds),
		AttachedToDesktop: true,
	}, nil
}

func (o *screenshotOutput) OpenDuplication() (Duplication, error) {
	bounds := screenshot.GetDisplayBounds(o.index)
	if bounds.Empty() {
		return nil, fmt.Errorf("display %d has empty bounds", o.index)
	}
	return &screenshotDuplication{bounds: bounds, differ: NewFrameDiffer()}, nil
}

type screenshotDuplication struct {
	bounds image.Rectangle
	differ *FrameDiffer
}

// AcquireFrame grabs the display. A grab identical to the previous one is
// reported as ErrNoFrameYet so callers see the same cadence semantics as
// hardware duplication.
func (d *screenshotDuplication) AcquireFrame(_ time.Duration) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(d.bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: capture display %v: %v", ErrDeviceLost, d.bounds, err)
	}
	if !d.differ.HasChanged(img.Pix) {
		return nil, ErrNoFrameYet
	}
	return img, nil
}

func (d *screenshotDuplication) Close() {}
