package capture

import (
	"hash/crc32"
	"sync"
	"sync/atomic"
)

// FrameDiffer detects unchanged frames via CRC32 of raw pixel data. The
// screenshot backend uses one per output to synthesize the "no new frame"
// signal that duplication hardware reports natively; consumers may also use
// one to skip delivering identical frames downstream.
type FrameDiffer struct {
	mu          sync.Mutex
	lastHash    uint32
	hasLastHash bool
	skipped     atomic.Uint64
	total       atomic.Uint64
}

// NewFrameDiffer returns a differ with no stored hash; the first frame
// always counts as changed.
func NewFrameDiffer() *FrameDiffer {
	return &FrameDiffer{}
}

// HasChanged computes CRC32 of pix and reports whether it differs from the
// previous frame.
func (d *FrameDiffer) HasChanged(pix []byte) bool {
	d.total.Add(1)
	h := crc32.ChecksumIEEE(pix)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLastHash && h == d.lastHash {
		d.skipped.Add(1)
		return false
	}
	d.lastHash = h
	d.hasLastHash = true
	return true
}

// Reset clears the stored hash, e.g. after a mode change.
func (d *FrameDiffer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasLastHash = false
}

// Stats returns (total frames checked, frames reported unchanged).
func (d *FrameDiffer) Stats() (total, skipped uint64) {
	return d.total.Load(), d.skipped.Load()
}
