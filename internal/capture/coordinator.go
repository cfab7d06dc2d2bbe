package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mosaiccap/agent/internal/logging"
)

// Coordinator aggregates every adapter's capture group into one global
// virtual desktop. Each group keeps its internal layout but is translated to
// a non-overlapping slot: the first group is normalized to a non-negative
// origin, and every subsequent group's left edge lands at the running
// union's right edge with its top at zero.
//
// Like the groups it owns, the coordinator is synchronous and caller-driven:
// no background goroutines, and at most one goroutine may drive it at a
// time.
type Coordinator struct {
	enumerator DeviceEnumerator
	groups     []*AdapterGroup
	rect       DesktopRect

	registrations int

	log *slog.Logger
}

// NewCoordinator returns a coordinator that discovers adapters through
// enumerator. Unusable until Initialize succeeds.
func NewCoordinator(enumerator DeviceEnumerator) *Coordinator {
	return &Coordinator{
		enumerator: enumerator,
		log:        logging.L("coordinator"),
	}
}

// Initialize enumerates adapters and initializes a capture group per
// adapter, skipping adapters with no capturable outputs. It fails with
// ErrNoOutputs only when no adapter yields a group. Re-initialization with
// contexts still registered panics; consumers must Unregister first.
func (c *Coordinator) Initialize(settings Settings) error {
	if c.registrations != 0 {
		panic(fmt.Sprintf("capture: Coordinator.Initialize with %d contexts still registered", c.registrations))
	}
	c.closeGroups()
	c.rect = DesktopRect{}

	devices, err := c.enumerator.EnumAdapters()
	if err != nil {
		return fmt.Errorf("enumerate adapters: %w", err)
	}

	for _, device := range devices {
		group := NewAdapterGroup(device)
		if err := group.Initialize(settings); err != nil {
			if errors.Is(err, ErrNoOutputs) {
				c.log.Warn("adapter has no capturable outputs, skipping", logging.KeyAdapter, device.Name())
				group.Close()
				continue
			}
			c.log.Warn("adapter group initialization failed, skipping",
				logging.KeyAdapter, device.Name(), logging.KeyError, err)
			group.Close()
			continue
		}

		offset := DesktopVector{
			X: c.rect.Right - group.DesktopRect().Left,
			Y: -group.DesktopRect().Top,
		}
		if !offset.IsZero() {
			group.TranslateRect(offset)
		}

		c.groups = append(c.groups, group)
		c.rect = c.rect.Union(group.DesktopRect())
	}

	if len(c.groups) == 0 {
		c.closeGroups()
		return ErrNoOutputs
	}

	c.log.Info("virtual desktop assembled",
		"adapters", len(c.groups),
		"screens", c.ScreenCount(),
		"width", c.rect.Width(),
		"height", c.rect.Height())
	return nil
}

// Setup registers a consumer across every group. The context must be empty.
func (c *Coordinator) Setup(ctx *DesktopContext) {
	if ctx.size() != 0 {
		panic("capture: Setup called with a non-empty desktop context")
	}
	ctx.contexts = make([]*Context, len(c.groups))
	for i, g := range c.groups {
		ctx.contexts[i] = NewContext()
		g.Setup(ctx.contexts[i])
	}
	c.registrations++
}

// Unregister releases a consumer's context across every group.
func (c *Coordinator) Unregister(ctx *DesktopContext) {
	c.checkContext(ctx)
	for i, g := range c.groups {
		g.Unregister(ctx.contexts[i])
	}
	ctx.clear()
	c.registrations--
}

// Duplicate captures the full virtual desktop into target, group by group in
// adapter order. The tick aborts on the first failing group; the caller is
// expected to re-run Initialize before the next tick.
func (c *Coordinator) Duplicate(ctx *DesktopContext, target *FrameBuffer) error {
	c.checkContext(ctx)
	for i, g := range c.groups {
		if err := g.Duplicate(ctx.contexts[i], target); err != nil {
			return fmt.Errorf("adapter %d: %w", i, err)
		}
	}
	target.SetCaptureTime(time.Now())
	return nil
}

// DuplicateMonitor captures a single monitor, identified by its flattened
// index across groups in adapter order, pinned at the buffer origin.
func (c *Coordinator) DuplicateMonitor(ctx *DesktopContext, monitorID int, target *FrameBuffer) error {
	c.checkContext(ctx)
	g, local := c.locate(monitorID)
	if err := c.groups[g].DuplicateMonitor(ctx.contexts[g], local, target); err != nil {
		return err
	}
	target.SetCaptureTime(time.Now())
	return nil
}

// ScreenRect returns the virtual-desktop rectangle of the identified
// monitor. An out-of-range id panics.
func (c *Coordinator) ScreenRect(id int) DesktopRect {
	g, local := c.locate(id)
	return c.groups[g].ScreenRect(local)
}

// DeviceName returns the output name of the identified monitor. An
// out-of-range id panics.
func (c *Coordinator) DeviceName(id int) string {
	g, local := c.locate(id)
	return c.groups[g].DeviceName(local)
}

// ScreenCount returns the total number of sessions across all groups.
func (c *Coordinator) ScreenCount() int {
	n := 0
	for _, g := range c.groups {
		n += g.ScreenCount()
	}
	return n
}

// DesktopRect returns the assembled virtual-desktop rectangle.
func (c *Coordinator) DesktopRect() DesktopRect { return c.rect }

// ScreenFramesCaptured returns the captured-frame counter of the identified
// monitor alone. An out-of-range id panics.
func (c *Coordinator) ScreenFramesCaptured(id int) int64 {
	g, local := c.locate(id)
	return c.groups[g].ScreenFramesCaptured(local)
}

// NumFramesCaptured returns the minimum captured-frame counter across all
// groups.
func (c *Coordinator) NumFramesCaptured() int64 {
	var m int64 = math.MaxInt64
	for _, g := range c.groups {
		m = min(m, g.NumFramesCaptured())
	}
	return m
}

// Close releases every group and its device handle.
func (c *Coordinator) Close() {
	c.closeGroups()
}

func (c *Coordinator) closeGroups() {
	for _, g := range c.groups {
		g.Close()
	}
	c.groups = nil
}

func (c *Coordinator) checkContext(ctx *DesktopContext) {
	if ctx.size() != len(c.groups) {
		panic(fmt.Sprintf("capture: desktop context tracks %d groups, coordinator has %d", ctx.size(), len(c.groups)))
	}
}

// locate maps a flattened monitor id to (group index, session index within
// that group).
func (c *Coordinator) locate(id int) (int, int) {
	if id < 0 {
		panic(fmt.Sprintf("capture: monitor id %d out of range", id))
	}
	rest := id
	for i, g := range c.groups {
		if rest < g.ScreenCount() {
			return i, rest
		}
		rest -= g.ScreenCount()
	}
	panic(fmt.Sprintf("capture: monitor id %d out of range [0,%d)", id, c.ScreenCount()))
}
