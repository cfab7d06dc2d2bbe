package capture

import (
	"errors"
	"fmt"
	"testing"
)

func TestGroupInitializeNoOutputs(t *testing.T) {
	g := NewAdapterGroup(&stubDevice{name: "empty"})
	defer g.Close()

	err := g.Initialize(DefaultSettings())
	if !errors.Is(err, ErrNoOutputs) {
		t.Fatalf("Initialize error = %v, want ErrNoOutputs", err)
	}
	if g.ScreenCount() != 0 {
		t.Fatalf("ScreenCount = %d after failed init, want 0", g.ScreenCount())
	}
}

func TestGroupInitializeSkipsUnusableOutputs(t *testing.T) {
	detached := &stubOutput{
		desc: OutputDescriptor{DeviceName: "off", Rect: NewDesktopRect(0, 0, 10, 10)},
	}
	badRect := &stubOutput{
		desc: OutputDescriptor{DeviceName: "inverted", Rect: NewDesktopRect(10, 10, 0, 0), AttachedToDesktop: true},
	}
	descBroken := &stubOutput{descErr: errors.New("desc read failed")}
	openBroken := &stubOutput{
		desc:    OutputDescriptor{DeviceName: "busy", Rect: NewDesktopRect(0, 0, 10, 10), AttachedToDesktop: true},
		openErr: errors.New("duplication held elsewhere"),
	}

	dev := &stubDevice{
		name: "mixed",
		slots: []outputSlot{
			{out: validOutput("a", NewDesktopRect(0, 0, 4, 2))},
			{out: detached},
			{err: errors.New("transient enum failure")},
			{out: badRect},
			{out: descBroken},
			{out: openBroken},
			{out: validOutput("b", NewDesktopRect(4, 0, 8, 2))},
		},
	}

	g := NewAdapterGroup(dev)
	defer g.Close()
	if err := g.Initialize(DefaultSettings()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if g.ScreenCount() != 2 {
		t.Fatalf("ScreenCount = %d, want 2", g.ScreenCount())
	}
	if got := g.DeviceName(0); got != "a" {
		t.Errorf("DeviceName(0) = %q, want %q", got, "a")
	}
	if got := g.DeviceName(1); got != "b" {
		t.Errorf("DeviceName(1) = %q, want %q", got, "b")
	}
}

func TestGroupInitializeStopsOnNotCurrentlyAvailable(t *testing.T) {
	dev := &stubDevice{
		name: "locked",
		slots: []outputSlot{
			{out: validOutput("a", NewDesktopRect(0, 0, 4, 2))},
			{err: ErrNotCurrentlyAvailable},
			{out: validOutput("never-reached", NewDesktopRect(4, 0, 8, 2))},
		},
	}

	g := NewAdapterGroup(dev)
	defer g.Close()
	if err := g.Initialize(DefaultSettings()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if g.ScreenCount() != 1 {
		t.Fatalf("ScreenCount = %d, want 1 (enumeration should stop early)", g.ScreenCount())
	}
}

func TestGroupDesktopRectUnion(t *testing.T) {
	tests := []struct {
		name  string
		rects []DesktopRect
		want  DesktopRect
	}{
		{
			name:  "disjoint side by side",
			rects: []DesktopRect{NewDesktopRect(0, 0, 4, 2), NewDesktopRect(4, 0, 8, 2)},
			want:  NewDesktopRect(0, 0, 8, 2),
		},
		{
			name:  "overlapping",
			rects: []DesktopRect{NewDesktopRect(0, 0, 6, 2), NewDesktopRect(4, 0, 8, 4)},
			want:  NewDesktopRect(0, 0, 8, 4),
		},
		{
			name:  "negative origin",
			rects: []DesktopRect{NewDesktopRect(-4, 0, 0, 2), NewDesktopRect(0, 0, 4, 2)},
			want:  NewDesktopRect(-4, 0, 4, 2),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var slots []outputSlot
			for i, r := range tt.rects {
				slots = append(slots, outputSlot{out: validOutput(fmt.Sprintf("o%d", i), r)})
			}
			g := NewAdapterGroup(&stubDevice{name: "u", slots: slots})
			defer g.Close()
			if err := g.Initialize(DefaultSettings()); err != nil {
				t.Fatalf("Initialize: %v", err)
			}
			if got := g.DesktopRect(); got != tt.want {
				t.Errorf("DesktopRect = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGroupInitializeAppliesHardwareTuning(t *testing.T) {
	dev := &stubDevice{name: "gpu", slots: []outputSlot{
		{out: validOutput("a", NewDesktopRect(0, 0, 4, 2))},
	}}
	g := NewAdapterGroup(dev)
	defer g.Close()
	if err := g.Initialize(DefaultSettings()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !dev.gpuRaised {
		t.Error("RaiseGPUPriority not called with HardwareAcceleration enabled")
	}
	if dev.maxLatency != 1 {
		t.Errorf("SetMaximumFrameLatency = %d, want 1", dev.maxLatency)
	}
}

func TestGroupInitializeSkipsPriorityTuningWhenDisabled(t *testing.T) {
	dev := &stubDevice{name: "gpu", slots: []outputSlot{
		{out: validOutput("a", NewDesktopRect(0, 0, 4, 2))},
	}}
	settings := DefaultSettings()
	settings.HardwareAcceleration = false

	g := NewAdapterGroup(dev)
	defer g.Close()
	if err := g.Initialize(settings); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if dev.gpuRaised {
		t.Error("GPU priority raised despite HardwareAcceleration=false")
	}
	if dev.maxLatency != 1 {
		t.Errorf("SetMaximumFrameLatency = %d, want 1 regardless of acceleration setting", dev.maxLatency)
	}
}

func TestGroupSetupUnregisterLifecycle(t *testing.T) {
	g := newTestGroup(t,
		validOutput("a", NewDesktopRect(0, 0, 4, 2)),
		validOutput("b", NewDesktopRect(4, 0, 8, 2)))
	defer g.Close()

	ctx := NewContext()
	g.Setup(ctx)
	if ctx.size() != 2 {
		t.Fatalf("context size = %d after Setup, want 2", ctx.size())
	}

	g.Unregister(ctx)
	if ctx.size() != 0 {
		t.Fatalf("context size = %d after Unregister, want 0", ctx.size())
	}

	// An unregistered context is reusable.
	g.Setup(ctx)
	if ctx.size() != 2 {
		t.Fatalf("context size = %d after re-Setup, want 2", ctx.size())
	}
	g.Unregister(ctx)
}

func TestGroupSetupNonEmptyContextPanics(t *testing.T) {
	g := newTestGroup(t, validOutput("a", NewDesktopRect(0, 0, 4, 2)))
	defer g.Close()

	ctx := NewContext()
	g.Setup(ctx)
	defer g.Unregister(ctx)

	expectPanic(t, func() { g.Setup(ctx) })
}

func TestGroupDuplicateMismatchedContextPanics(t *testing.T) {
	g := newTestGroup(t, validOutput("a", NewDesktopRect(0, 0, 4, 2)))
	defer g.Close()

	target := NewFrameBuffer(4, 2)
	expectPanic(t, func() { g.Duplicate(NewContext(), target) })
}

func TestGroupInitializeWhileRegisteredPanics(t *testing.T) {
	g := newTestGroup(t, validOutput("a", NewDesktopRect(0, 0, 4, 2)))
	defer g.Close()

	ctx := NewContext()
	g.Setup(ctx)
	defer func() {
		recover()
		g.Unregister(ctx)
	}()

	g.Initialize(DefaultSettings())
	t.Fatal("Initialize with a registered context did not panic")
}

func TestGroupTranslateRectComposes(t *testing.T) {
	g := newTestGroup(t, validOutput("a", NewDesktopRect(0, 0, 4, 2)))
	defer g.Close()

	a := DesktopVector{X: 3, Y: 1}
	b := DesktopVector{X: 5, Y: 2}
	g.TranslateRect(a)
	g.TranslateRect(b)

	want := NewDesktopRect(0, 0, 4, 2).Translate(a.Add(b))
	if got := g.DesktopRect(); got != want {
		t.Errorf("DesktopRect after two translations = %+v, want %+v", got, want)
	}
	if got := g.ScreenRect(0); got != want {
		t.Errorf("ScreenRect(0) after two translations = %+v, want %+v", got, want)
	}
}

func TestGroupTranslateRectNegativeOriginPanics(t *testing.T) {
	g := newTestGroup(t, validOutput("a", NewDesktopRect(0, 0, 4, 2)))
	defer g.Close()

	expectPanic(t, func() { g.TranslateRect(DesktopVector{X: -1}) })
}

func TestGroupScreenRectOutOfRangePanics(t *testing.T) {
	g := newTestGroup(t, validOutput("a", NewDesktopRect(0, 0, 4, 2)))
	defer g.Close()

	expectPanic(t, func() { g.ScreenRect(1) })
	expectPanic(t, func() { g.ScreenRect(-1) })
}

func TestGroupNumFramesCapturedIsMinimum(t *testing.T) {
	// Three outputs producing 5, 2, and 9 frames over 9 ticks.
	counts := []int{5, 2, 9}
	var slots []outputSlot
	for i, n := range counts {
		var frames []frameResult
		for j := 0; j < n; j++ {
			frames = append(frames, newFrame(solid(4, 2, byte(j+1))))
		}
		slots = append(slots, outputSlot{out: validOutput(fmt.Sprintf("o%d", i), NewDesktopRect(i*4, 0, i*4+4, 2), frames...)})
	}

	g := NewAdapterGroup(&stubDevice{name: "counts", slots: slots})
	defer g.Close()
	if err := g.Initialize(DefaultSettings()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	ctx := NewContext()
	g.Setup(ctx)
	defer g.Unregister(ctx)

	target := NewFrameBuffer(12, 2)
	for i := 0; i < 9; i++ {
		if err := g.Duplicate(ctx, target); err != nil {
			t.Fatalf("Duplicate tick %d: %v", i, err)
		}
	}

	if got := g.NumFramesCaptured(); got != 2 {
		t.Errorf("NumFramesCaptured = %d, want 2", got)
	}
}

func TestGroupDuplicateWritesEachOutputAtItsRect(t *testing.T) {
	g := newTestGroup(t,
		validOutput("left", NewDesktopRect(0, 0, 4, 2), newFrame(solid(4, 2, 0x11))),
		validOutput("right", NewDesktopRect(4, 0, 8, 2), newFrame(solid(4, 2, 0x22))))
	defer g.Close()

	ctx := NewContext()
	g.Setup(ctx)
	defer g.Unregister(ctx)

	target := NewFrameBuffer(8, 2)
	if err := g.Duplicate(ctx, target); err != nil {
		t.Fatalf("Duplicate: %v", err)
	}

	if got := pixelAt(target, 0, 0); got != 0x11 {
		t.Errorf("pixel (0,0) = 0x%02X, want 0x11", got)
	}
	if got := pixelAt(target, 3, 1); got != 0x11 {
		t.Errorf("pixel (3,1) = 0x%02X, want 0x11", got)
	}
	if got := pixelAt(target, 4, 0); got != 0x22 {
		t.Errorf("pixel (4,0) = 0x%02X, want 0x22", got)
	}
	if got := pixelAt(target, 7, 1); got != 0x22 {
		t.Errorf("pixel (7,1) = 0x%02X, want 0x22", got)
	}
}

func TestGroupDuplicateMonitorPinsAtOrigin(t *testing.T) {
	g := newTestGroup(t,
		validOutput("left", NewDesktopRect(0, 0, 4, 2), newFrame(solid(4, 2, 0x11))),
		validOutput("right", NewDesktopRect(4, 0, 8, 2), newFrame(solid(4, 2, 0x22))))
	defer g.Close()

	ctx := NewContext()
	g.Setup(ctx)
	defer g.Unregister(ctx)

	// The right output sits at x=4 in the group, but a single-monitor
	// capture lands at the buffer origin.
	target := NewFrameBuffer(4, 2)
	if err := g.DuplicateMonitor(ctx, 1, target); err != nil {
		t.Fatalf("DuplicateMonitor: %v", err)
	}
	if got := pixelAt(target, 0, 0); got != 0x22 {
		t.Errorf("pixel (0,0) = 0x%02X, want 0x22", got)
	}
}

func TestGroupDuplicateNoFramesYetSucceedsUntouched(t *testing.T) {
	g := newTestGroup(t, validOutput("idle", NewDesktopRect(0, 0, 4, 2)))
	defer g.Close()

	ctx := NewContext()
	g.Setup(ctx)
	defer g.Unregister(ctx)

	target := NewFrameBuffer(4, 2)
	target.Image().Pix[0] = 0x55
	if err := g.Duplicate(ctx, target); err != nil {
		t.Fatalf("Duplicate with no frames yet: %v", err)
	}
	if got := target.Image().Pix[0]; got != 0x55 {
		t.Errorf("target modified on frameless tick: pixel = 0x%02X, want 0x55", got)
	}
	if got := g.NumFramesCaptured(); got != 0 {
		t.Errorf("NumFramesCaptured = %d, want 0", got)
	}
}

func TestGroupDuplicateReblitsCacheForNewConsumer(t *testing.T) {
	// One frame, then silence. The second consumer registered later must
	// still receive the cached content.
	g := newTestGroup(t, validOutput("a", NewDesktopRect(0, 0, 4, 2), newFrame(solid(4, 2, 0x33))))
	defer g.Close()

	first := NewContext()
	g.Setup(first)
	defer g.Unregister(first)
	second := NewContext()
	g.Setup(second)
	defer g.Unregister(second)

	targetA := NewFrameBuffer(4, 2)
	if err := g.Duplicate(first, targetA); err != nil {
		t.Fatalf("first consumer Duplicate: %v", err)
	}

	targetB := NewFrameBuffer(4, 2)
	if err := g.Duplicate(second, targetB); err != nil {
		t.Fatalf("second consumer Duplicate: %v", err)
	}
	if got := pixelAt(targetB, 0, 0); got != 0x33 {
		t.Errorf("second consumer pixel = 0x%02X, want cached 0x33", got)
	}
}

func TestGroupDuplicateAbortsOnDeviceLoss(t *testing.T) {
	lost := validOutput("dead", NewDesktopRect(4, 0, 8, 2))
	lost.dupl.frames = []frameResult{{err: fmt.Errorf("%w: access lost", ErrDeviceLost)}}

	g := newTestGroup(t,
		validOutput("ok", NewDesktopRect(0, 0, 4, 2), newFrame(solid(4, 2, 0x11))),
		lost)
	defer g.Close()

	ctx := NewContext()
	g.Setup(ctx)
	defer g.Unregister(ctx)

	target := NewFrameBuffer(8, 2)
	err := g.Duplicate(ctx, target)
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("Duplicate error = %v, want ErrDeviceLost", err)
	}
}

func TestGroupCloseReleasesDevice(t *testing.T) {
	dev := &stubDevice{name: "d", slots: []outputSlot{
		{out: validOutput("a", NewDesktopRect(0, 0, 4, 2))},
	}}
	g := NewAdapterGroup(dev)
	if err := g.Initialize(DefaultSettings()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	dupl := dev.slots[0].out.(*stubOutput).dupl

	g.Close()
	if !dev.released {
		t.Error("device not released on Close")
	}
	if !dupl.closed {
		t.Error("duplication not closed on Close")
	}
}

// newTestGroup builds and initializes a single-device group over the given
// outputs.
func newTestGroup(t *testing.T, outputs ...*stubOutput) *AdapterGroup {
	t.Helper()
	var slots []outputSlot
	for _, o := range outputs {
		slots = append(slots, outputSlot{out: o})
	}
	g := NewAdapterGroup(&stubDevice{name: "test", slots: slots})
	if err := g.Initialize(DefaultSettings()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return g
}
