package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/mosaiccap/agent/internal/logging"
)

// AdapterGroup owns one adapter's device handle and the set of capture
// sessions for that adapter's attached outputs, presenting them as a single
// logical capture surface. The whole session set is replaced on every
// re-initialization; individual sessions are never swapped in place.
//
// All methods are caller-driven and single-threaded per group; see the
// package documentation for the concurrency contract.
type AdapterGroup struct {
	device   Device
	sessions []*Session
	rect     DesktopRect

	// registrations counts live contexts. Re-initializing with contexts
	// still registered is a lifecycle bug in the caller and panics.
	registrations int

	log *slog.Logger
}

// NewAdapterGroup takes ownership of device. The group is unusable until
// Initialize succeeds.
func NewAdapterGroup(device Device) *AdapterGroup {
	return &AdapterGroup{
		device: device,
		log:    logging.L("adapter-group").With(logging.KeyAdapter, device.Name()),
	}
}

// Initialize tunes the device and enumerates its outputs, building one
// session per attached, valid output. It fails with ErrNoOutputs when no
// output is capturable; there is no partial-success state at the group
// level. Safe to call again after a Duplicate failure, provided every
// context has been unregistered first.
func (g *AdapterGroup) Initialize(settings Settings) error {
	if g.registrations != 0 {
		panic(fmt.Sprintf("capture: AdapterGroup.Initialize with %d contexts still registered", g.registrations))
	}
	if err := g.initialize(settings); err != nil {
		g.closeSessions()
		return err
	}
	return nil
}

func (g *AdapterGroup) initialize(settings Settings) error {
	g.closeSessions()
	g.rect = DesktopRect{}

	// Both tuning steps are optimizations, not correctness requirements.
	// Failure is logged and initialization continues. The latency cap is a
	// latency concern, not an acceleration one, so it applies regardless of
	// the acceleration setting.
	if settings.HardwareAcceleration {
		if err := g.device.RaiseGPUPriority(); err != nil {
			g.log.Warn("could not raise GPU scheduling priority", logging.KeyError, err)
		}
	}
	if err := g.device.SetMaximumFrameLatency(1); err != nil {
		g.log.Warn("could not set maximum frame latency", logging.KeyError, err)
	}

	for i := 0; ; i++ {
		output, err := g.device.EnumOutput(i)
		if errors.Is(err, ErrNoMoreOutputs) {
			break
		}
		if errors.Is(err, ErrNotCurrentlyAvailable) {
			// Happens when capture runs in a non-interactive session.
			// Keep whatever outputs were already found.
			g.log.Warn("output enumeration not currently available, stopping early", "index", i)
			break
		}
		if err != nil {
			g.log.Warn("output enumeration failed, skipping index", "index", i, logging.KeyError, err)
			continue
		}

		desc, err := output.Descriptor()
		if err != nil {
			g.log.Warn("could not read output description, skipping", "index", i, logging.KeyError, err)
			continue
		}
		if !desc.AttachedToDesktop || !desc.Rect.IsValid() {
			g.log.Error("output is not capturable, ignoring",
				"index", i,
				"attached", desc.AttachedToDesktop,
				"rect", desc.Rect)
			continue
		}

		session := newSession(output, desc, settings.acquireTimeout())
		if err := session.Initialize(); err != nil {
			g.log.Warn("could not initialize output session, skipping", "index", i, logging.KeyError, err)
			continue
		}

		g.sessions = append(g.sessions, session)
		g.rect = g.rect.Union(session.DesktopRect())
	}

	if len(g.sessions) == 0 {
		g.log.Warn("adapter exposes no capturable outputs")
		return ErrNoOutputs
	}
	return nil
}

// Setup registers a consumer: the context's state collection, which must be
// empty, is sized to the current session count and each slot is prepared by
// its session.
func (g *AdapterGroup) Setup(ctx *Context) {
	if ctx.size() != 0 {
		panic("capture: Setup called with a non-empty context")
	}
	ctx.states = make([]SessionState, len(g.sessions))
	for i, s := range g.sessions {
		s.Setup(&ctx.states[i])
	}
	g.registrations++
}

// Unregister releases a consumer's context. The context must have been set
// up against the current session set.
func (g *AdapterGroup) Unregister(ctx *Context) {
	g.checkContext(ctx)
	for i, s := range g.sessions {
		s.Unregister(&ctx.states[i])
	}
	ctx.clear()
	g.registrations--
}

// Duplicate captures every session in enumeration order into target, each at
// its own rectangle origin, composing the adapter's whole desktop area. The
// tick aborts on the first session failure; partial data left in target is
// acceptable because the caller re-Initializes and retries next tick.
func (g *AdapterGroup) Duplicate(ctx *Context, target *FrameBuffer) error {
	g.checkContext(ctx)
	for i, s := range g.sessions {
		if err := s.Duplicate(&ctx.states[i], s.DesktopRect().TopLeft(), target); err != nil {
			return fmt.Errorf("session %d (%s): %w", i, s.DeviceName(), err)
		}
	}
	return nil
}

// DuplicateMonitor captures exactly one session, with its output pinned at
// the buffer origin regardless of its position within the group.
func (g *AdapterGroup) DuplicateMonitor(ctx *Context, monitorID int, target *FrameBuffer) error {
	g.checkContext(ctx)
	g.checkID(monitorID)
	if err := g.sessions[monitorID].Duplicate(&ctx.states[monitorID], DesktopVector{}, target); err != nil {
		return fmt.Errorf("monitor %d (%s): %w", monitorID, g.sessions[monitorID].DeviceName(), err)
	}
	return nil
}

// ScreenRect returns the rectangle of the identified session. Callers must
// consult ScreenCount first; an out-of-range id panics.
func (g *AdapterGroup) ScreenRect(id int) DesktopRect {
	g.checkID(id)
	return g.sessions[id].DesktopRect()
}

// DeviceName returns the output name of the identified session. An
// out-of-range id panics.
func (g *AdapterGroup) DeviceName(id int) string {
	g.checkID(id)
	return g.sessions[id].DeviceName()
}

// ScreenCount returns the number of capturable sessions.
func (g *AdapterGroup) ScreenCount() int { return len(g.sessions) }

// DesktopRect returns the union rectangle of all sessions.
func (g *AdapterGroup) DesktopRect() DesktopRect { return g.rect }

// ScreenFramesCaptured returns the captured-frame counter of the identified
// session alone. Single-monitor consumers gate on this; the group-wide
// minimum below never advances for sessions they do not drive. An
// out-of-range id panics.
func (g *AdapterGroup) ScreenFramesCaptured(id int) int64 {
	g.checkID(id)
	return g.sessions[id].NumFramesCaptured()
}

// NumFramesCaptured returns the minimum captured-frame counter across all
// sessions: a conservative measure of frames every output has produced.
func (g *AdapterGroup) NumFramesCaptured() int64 {
	var m int64 = math.MaxInt64
	for _, s := range g.sessions {
		m = min(m, s.NumFramesCaptured())
	}
	return m
}

// TranslateRect shifts the group's rectangle and every session's rectangle
// by offset. Used exclusively by the coordinator to place this adapter in
// global virtual-desktop coordinates; a translation producing a negative
// origin is a coordinator bug and panics.
func (g *AdapterGroup) TranslateRect(offset DesktopVector) {
	g.rect = g.rect.Translate(offset)
	if g.rect.Left < 0 || g.rect.Top < 0 {
		panic(fmt.Sprintf("capture: TranslateRect produced negative origin %v", g.rect.TopLeft()))
	}
	for _, s := range g.sessions {
		s.translateRect(offset)
	}
}

// Close releases all sessions and the device handle.
func (g *AdapterGroup) Close() {
	g.closeSessions()
	if g.device != nil {
		g.device.Release()
		g.device = nil
	}
}

func (g *AdapterGroup) closeSessions() {
	for _, s := range g.sessions {
		s.Close()
	}
	g.sessions = nil
}

func (g *AdapterGroup) checkContext(ctx *Context) {
	if ctx.size() != len(g.sessions) {
		panic(fmt.Sprintf("capture: context tracks %d sessions, group has %d", ctx.size(), len(g.sessions)))
	}
}

func (g *AdapterGroup) checkID(id int) {
	if id < 0 || id >= len(g.sessions) {
		panic(fmt.Sprintf("capture: session id %d out of range [0,%d)", id, len(g.sessions)))
	}
}
