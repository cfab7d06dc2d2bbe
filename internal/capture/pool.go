package capture

import (
	"image"
	"sync"
)

// imagePool pools *image.RGBA instances for a fixed resolution. Sessions
// capture at a stable per-output resolution, so a single-size pool works
// well; a mode change resets it.
type imagePool struct {
	pool sync.Pool
	w, h int
	mu   sync.Mutex
}

func (p *imagePool) Get(w, h int) *image.RGBA {
	p.mu.Lock()
	if p.w == w && p.h == h {
		p.mu.Unlock()
		if v := p.pool.Get(); v != nil {
			return v.(*image.RGBA)
		}
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	// Resolution changed, reset the pool
	p.w = w
	p.h = h
	p.pool = sync.Pool{}
	p.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func (p *imagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	b := img.Bounds()
	p.mu.Lock()
	match := p.w == b.Dx() && p.h == b.Dy()
	p.mu.Unlock()
	if match {
		p.pool.Put(img)
	}
}

// acquirePool serves the backends' per-frame allocations.
var acquirePool imagePool

// GetFrameImage returns a pooled RGBA image of the given size. Backends use
// this for AcquireFrame results; consumers may return finished frames with
// PutFrameImage to curb allocation churn.
func GetFrameImage(w, h int) *image.RGBA {
	return acquirePool.Get(w, h)
}

// PutFrameImage returns an image obtained from GetFrameImage to the pool.
func PutFrameImage(img *image.RGBA) {
	acquirePool.Put(img)
}
