package capture

import (
	"image"
	"testing"
	"time"
)

// Stub hardware for driving groups and coordinators without a GPU.

type frameResult struct {
	img *image.RGBA
	err error
}

type stubDuplication struct {
	frames []frameResult
	closed bool
}

func (d *stubDuplication) AcquireFrame(time.Duration) (*image.RGBA, error) {
	if len(d.frames) == 0 {
		return nil, ErrNoFrameYet
	}
	f := d.frames[0]
	d.frames = d.frames[1:]
	return f.img, f.err
}

func (d *stubDuplication) Close() { d.closed = true }

type stubOutput struct {
	desc    OutputDescriptor
	descErr error
	openErr error
	dupl    *stubDuplication
}

func (o *stubOutput) Descriptor() (OutputDescriptor, error) {
	if o.descErr != nil {
		return OutputDescriptor{}, o.descErr
	}
	return o.desc, nil
}

func (o *stubOutput) OpenDuplication() (Duplication, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	if o.dupl == nil {
		o.dupl = &stubDuplication{}
	}
	return o.dupl, nil
}

// outputSlot is one EnumOutput result; err takes precedence over out.
type outputSlot struct {
	out Output
	err error
}

type stubDevice struct {
	name       string
	slots      []outputSlot
	released   bool
	gpuRaised  bool
	maxLatency int
}

func (d *stubDevice) Name() string { return d.name }

func (d *stubDevice) RaiseGPUPriority() error {
	d.gpuRaised = true
	return nil
}

func (d *stubDevice) SetMaximumFrameLatency(frames int) error {
	d.maxLatency = frames
	return nil
}

func (d *stubDevice) EnumOutput(index int) (Output, error) {
	if index >= len(d.slots) {
		return nil, ErrNoMoreOutputs
	}
	s := d.slots[index]
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

func (d *stubDevice) Release() { d.released = true }

type stubEnumerator struct {
	devices []Device
	err     error
}

func (e *stubEnumerator) EnumAdapters() ([]Device, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.devices, nil
}

// solid returns a w by h image filled with the given gray value.
func solid(w, h int, v byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// validOutput builds an attached output at rect whose duplication serves the
// given frames in order, then reports no new frame.
func validOutput(name string, rect DesktopRect, frames ...frameResult) *stubOutput {
	return &stubOutput{
		desc: OutputDescriptor{
			DeviceName:        name,
			Rect:              rect,
			AttachedToDesktop: true,
		},
		dupl: &stubDuplication{frames: frames},
	}
}

func newFrame(img *image.RGBA) frameResult { return frameResult{img: img} }

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic, got none")
		}
	}()
	fn()
}

// pixelAt reads the first channel of the pixel at (x, y) in target.
func pixelAt(target *FrameBuffer, x, y int) byte {
	img := target.Image()
	return img.Pix[y*img.Stride+x*4]
}
