package capture

import (
	"image"
	"time"
)

// FrameBuffer is the shared pixel buffer one capture tick writes into. Every
// session participating in the tick blits its sub-rectangle; between ticks
// the buffer is exclusively owned by the consumer. Not safe for concurrent
// use during a Duplicate call.
type FrameBuffer struct {
	img          *image.RGBA
	captureTime  time.Time
	nativeHandle uintptr
}

// NewFrameBuffer allocates a pixel buffer of the given size.
func NewFrameBuffer(width, height int) *FrameBuffer {
	return &FrameBuffer{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// NewNativeFrameBuffer wraps a backend-owned texture handle for
// hardware-surface passthrough. A native buffer carries no pixel storage;
// the handle is treated as opaque read-only input by downstream consumers.
func NewNativeFrameBuffer(handle uintptr, width, height int) *FrameBuffer {
	return &FrameBuffer{
		img:          &image.RGBA{Rect: image.Rect(0, 0, width, height)},
		nativeHandle: handle,
	}
}

// Image returns the pixel storage. Nil Pix for native buffers.
func (f *FrameBuffer) Image() *image.RGBA { return f.img }

// Width returns the buffer width in pixels.
func (f *FrameBuffer) Width() int { return f.img.Rect.Dx() }

// Height returns the buffer height in pixels.
func (f *FrameBuffer) Height() int { return f.img.Rect.Dy() }

// IsNative reports whether f is a handle-only buffer.
func (f *FrameBuffer) IsNative() bool { return f.nativeHandle != 0 }

// NativeHandle returns the backend texture handle, zero for pixel buffers.
func (f *FrameBuffer) NativeHandle() uintptr { return f.nativeHandle }

// CaptureTime returns when the buffer's content was last captured.
func (f *FrameBuffer) CaptureTime() time.Time { return f.captureTime }

// SetCaptureTime stamps the buffer; set by the group after a successful tick.
func (f *FrameBuffer) SetCaptureTime(t time.Time) { f.captureTime = t }

// blitAt copies src into f with src's top-left pixel landing at origin.
// Rows outside f are clipped. No-op for native buffers.
func (f *FrameBuffer) blitAt(src *image.RGBA, origin DesktopVector) {
	if f.IsNative() || src == nil {
		return
	}
	srcW := src.Rect.Dx()
	srcH := src.Rect.Dy()
	dstW := f.Width()
	dstH := f.Height()

	for y := 0; y < srcH; y++ {
		dy := origin.Y + y
		if dy < 0 || dy >= dstH {
			continue
		}
		sx, dx := 0, origin.X
		w := srcW
		if dx < 0 {
			sx = -dx
			w += dx
			dx = 0
		}
		if dx+w > dstW {
			w = dstW - dx
		}
		if w <= 0 {
			continue
		}
		srcStart := y*src.Stride + sx*4
		dstStart := dy*f.img.Stride + dx*4
		copy(f.img.Pix[dstStart:dstStart+w*4], src.Pix[srcStart:srcStart+w*4])
	}
}
