package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/mosaiccap/agent/internal/logging"
)

// SessionState is one consumer's bookkeeping against one session. Multiple
// consumers (e.g. a preview and an encoder) capture from the same session at
// different cadences; each tracks independently which hardware frame it has
// already written, and into which buffer.
type SessionState struct {
	lastSeq    uint64
	lastTarget *FrameBuffer
}

func (st *SessionState) reset() {
	st.lastSeq = 0
	st.lastTarget = nil
}

// Session wraps exactly one hardware duplication session bound to one
// physical output and exposes frame capture in a form the owning group can
// stitch. Sessions are created during adapter initialization and replaced
// wholesale on re-initialization, never recreated in place.
type Session struct {
	output  Output
	desc    OutputDescriptor
	dupl    Duplication
	rect    DesktopRect
	timeout time.Duration

	// seq increments once per new hardware frame; consumers compare their
	// SessionState.lastSeq against it to detect unseen content.
	seq            uint64
	framesCaptured int64
	last           *image.RGBA

	log *slog.Logger
}

func newSession(output Output, desc OutputDescriptor, timeout time.Duration) *Session {
	return &Session{
		output:  output,
		desc:    desc,
		rect:    desc.Rect,
		timeout: timeout,
		log:     logging.L("session").With(logging.KeyOutput, desc.DeviceName),
	}
}

// Initialize binds the underlying duplication primitive. On failure the
// owner discards the session; it is never retried in place.
func (s *Session) Initialize() error {
	dupl, err := s.output.OpenDuplication()
	if err != nil {
		return fmt.Errorf("open duplication for %s: %w", s.desc.DeviceName, err)
	}
	s.dupl = dupl
	return nil
}

// Setup prepares one consumer's state slot for this session.
func (s *Session) Setup(st *SessionState) {
	st.reset()
}

// Unregister releases one consumer's state slot.
func (s *Session) Unregister(st *SessionState) {
	st.reset()
}

// Duplicate captures into target at writeOrigin. It blocks at most one
// acquire timeout waiting for a new frame; when nothing new was presented it
// re-blits the most recent cached frame for consumers that have not seen it.
// Only device-loss-class errors are failures.
func (s *Session) Duplicate(st *SessionState, writeOrigin DesktopVector, target *FrameBuffer) error {
	img, err := s.dupl.AcquireFrame(s.timeout)
	switch {
	case err == nil && img != nil:
		if s.last != nil {
			PutFrameImage(s.last)
		}
		s.last = img
		s.seq++
		s.framesCaptured++
	case err == nil || errors.Is(err, ErrNoFrameYet):
		// Spurious empty acquire; the cached frame stays current.
	default:
		return fmt.Errorf("acquire frame on %s: %w", s.desc.DeviceName, err)
	}

	if s.last == nil {
		// Nothing captured since initialization; the hardware has not
		// presented a frame at all yet. The tick succeeds with target
		// untouched and the caller retries next tick.
		return nil
	}

	if st.lastSeq != s.seq || st.lastTarget != target {
		target.blitAt(s.last, writeOrigin)
		st.lastSeq = s.seq
		st.lastTarget = target
	}
	return nil
}

// DesktopRect returns this output's rectangle relative to its owning
// adapter, or to the virtual desktop once the coordinator has translated it.
func (s *Session) DesktopRect() DesktopRect { return s.rect }

// DeviceName identifies the output for diagnostics.
func (s *Session) DeviceName() string { return s.desc.DeviceName }

// NumFramesCaptured returns the monotonically increasing count of hardware
// frames this session has captured.
func (s *Session) NumFramesCaptured() int64 { return s.framesCaptured }

func (s *Session) translateRect(v DesktopVector) {
	s.rect = s.rect.Translate(v)
}

// Close releases the duplication handle. Idempotent.
func (s *Session) Close() {
	if s.dupl != nil {
		s.dupl.Close()
		s.dupl = nil
	}
	if s.last != nil {
		PutFrameImage(s.last)
		s.last = nil
	}
}
