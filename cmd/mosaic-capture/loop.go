package main

import (
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mosaiccap/agent/internal/capture"
	"github.com/mosaiccap/agent/internal/config"
	"github.com/mosaiccap/agent/internal/logging"
	"github.com/shirou/gopsutil/v3/process"
)

const statsInterval = 10 * time.Second

// capturePipeline bundles the per-registration state the loop rebuilds as a
// unit: coordinator initialization, the consumer context, and a target
// buffer sized to the current virtual desktop. After device loss or a
// failed rebuild the pipeline is torn down and every subsequent tick
// reattempts initialization until one succeeds.
type capturePipeline struct {
	coord  *capture.Coordinator
	differ *capture.FrameDiffer
	ctx    *capture.DesktopContext
	target *capture.FrameBuffer
	ready  bool
}

func newCapturePipeline(coord *capture.Coordinator) *capturePipeline {
	return &capturePipeline{coord: coord, differ: capture.NewFrameDiffer()}
}

// register sets up a fresh consumer context and target buffer against the
// current topology. The coordinator must be initialized.
func (p *capturePipeline) register() {
	p.ctx = capture.NewDesktopContext()
	p.coord.Setup(p.ctx)
	p.target = capture.NewFrameBuffer(p.coord.DesktopRect().Width(), p.coord.DesktopRect().Height())
	p.differ.Reset()
	p.ready = true
}

// rebuild tears down the registration and reinitializes the coordinator,
// picking up whatever display topology exists now. On failure the pipeline
// stays torn down; the next tick retries.
func (p *capturePipeline) rebuild(cfg *config.Config) error {
	p.teardown()
	if err := p.coord.Initialize(settingsFromConfig(cfg)); err != nil {
		return err
	}
	p.register()
	return nil
}

func (p *capturePipeline) teardown() {
	if p.ready {
		p.coord.Unregister(p.ctx)
		p.ready = false
	}
}

// tick runs one capture pass, reattempting initialization first when a
// previous rebuild failed. Reports whether a changed frame was delivered.
// Device loss tears the pipeline down so the next tick rebuilds.
func (p *capturePipeline) tick(cfg *config.Config) (bool, error) {
	if !p.ready {
		if err := p.rebuild(cfg); err != nil {
			return false, fmt.Errorf("reinitialize capture: %w", err)
		}
	}
	if err := duplicateTick(p.coord, p.ctx, cfg, p.target); err != nil {
		if errors.Is(err, capture.ErrDeviceLost) {
			p.teardown()
		}
		return false, err
	}
	img := p.target.Image()
	return img != nil && p.differ.HasChanged(img.Pix), nil
}

// runCapture drives the steady-state capture loop: one tick per frame
// interval, rebuilding the whole pipeline on device loss, with config
// reloads applied between ticks.
func runCapture() {
	cfg := loadConfig()
	log := logging.L("capture-loop")

	c, err := newCoordinator(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize capture: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	reload := make(chan *config.Config, 1)
	config.Watch(func(fresh *config.Config) {
		fresh.Validate()
		select {
		case <-reload:
		default:
		}
		reload <- fresh
	})

	pipe := newCapturePipeline(c)
	pipe.register()
	defer pipe.teardown()

	self, _ := process.NewProcess(int32(os.Getpid()))

	ticker := time.NewTicker(time.Second / time.Duration(cfg.FrameRate))
	defer ticker.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("capture loop started",
		"backend", cfg.Backend,
		"screens", c.ScreenCount(),
		"width", c.DesktopRect().Width(),
		"height", c.DesktopRect().Height(),
		"fps", cfg.FrameRate)

	frames := 0
	for {
		select {
		case <-sigChan:
			log.Info("shutting down", "framesDelivered", frames)
			return

		case fresh := <-reload:
			log.Info("configuration reloaded")
			cfg = fresh
			logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)
			ticker.Reset(time.Second / time.Duration(cfg.FrameRate))
			if err := pipe.rebuild(cfg); err != nil {
				log.Warn("reinitialization after reload failed, retrying next tick", logging.KeyError, err)
			}

		case <-statsTicker.C:
			logProcessStats(log, self, frames, pipe.differ)

		case <-ticker.C:
			changed, err := pipe.tick(cfg)
			if err != nil {
				if errors.Is(err, capture.ErrDeviceLost) {
					log.Warn("capture device lost, reinitializing next tick", logging.KeyError, err)
				} else {
					log.Warn("capture tick failed", logging.KeyError, err)
				}
				continue
			}
			if changed {
				frames++
			}
		}
	}
}

// duplicateTick captures either the configured single monitor or the full
// virtual desktop.
func duplicateTick(c *capture.Coordinator, ctx *capture.DesktopContext, cfg *config.Config, target *capture.FrameBuffer) error {
	if cfg.Monitor >= 0 {
		if cfg.Monitor >= c.ScreenCount() {
			return fmt.Errorf("monitor %d not present (have %d)", cfg.Monitor, c.ScreenCount())
		}
		return c.DuplicateMonitor(ctx, cfg.Monitor, target)
	}
	return c.Duplicate(ctx, target)
}

// snapshotReady reports whether the targeted capture surface has produced
// at least one frame. A single-monitor capture drives only its own session,
// so the coordinator-wide minimum counter would never advance there.
func snapshotReady(c *capture.Coordinator, cfg *config.Config) bool {
	if cfg.Monitor >= 0 {
		return c.ScreenFramesCaptured(cfg.Monitor) > 0
	}
	return c.NumFramesCaptured() > 0
}

func logProcessStats(log *slog.Logger, self *process.Process, frames int, differ *capture.FrameDiffer) {
	total, skipped := differ.Stats()
	attrs := []any{"framesDelivered", frames, "ticks", total, "unchangedFrames", skipped}
	if self != nil {
		if cpu, err := self.CPUPercent(); err == nil {
			attrs = append(attrs, "cpuPercent", fmt.Sprintf("%.1f", cpu))
		}
		if mem, err := self.MemoryInfo(); err == nil {
			attrs = append(attrs, "rssMB", mem.RSS/1024/1024)
		}
	}
	log.Info("capture process stats", attrs...)
}

// takeSnapshot captures one frame and writes it as PNG. With no explicit
// path the file lands in the configured snapshot directory under a
// timestamped name.
func takeSnapshot(path string) {
	cfg := loadConfig()
	log := logging.L("snapshot")

	c, err := newCoordinator(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize capture: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx := capture.NewDesktopContext()
	c.Setup(ctx)
	defer c.Unregister(ctx)

	var target *capture.FrameBuffer
	if cfg.Monitor >= 0 {
		if cfg.Monitor >= c.ScreenCount() {
			fmt.Fprintf(os.Stderr, "Monitor %d not present (have %d)\n", cfg.Monitor, c.ScreenCount())
			os.Exit(1)
		}
		r := c.ScreenRect(cfg.Monitor)
		target = capture.NewFrameBuffer(r.Width(), r.Height())
	} else {
		target = capture.NewFrameBuffer(c.DesktopRect().Width(), c.DesktopRect().Height())
	}

	// The first acquire after duplication starts often times out before
	// the desktop repaints; give it a few ticks.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err = duplicateTick(c, ctx, cfg, target); err == nil && snapshotReady(c, cfg) {
			break
		}
		if err == nil {
			err = errors.New("no frame produced within deadline")
		}
		if time.Now().After(deadline) {
			fmt.Fprintf(os.Stderr, "Capture failed: %v\n", err)
			os.Exit(1)
		}
		time.Sleep(50 * time.Millisecond)
	}

	img := capture.Scale(target.Image(), settingsFromConfig(cfg))

	if path == "" {
		name := fmt.Sprintf("capture-%s.png", time.Now().Format("20060102-150405"))
		path = filepath.Join(cfg.SnapshotDir, name)
	}
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode PNG: %v\n", err)
		os.Exit(1)
	}

	log.Info("snapshot written", "path", path, "width", img.Rect.Dx(), "height", img.Rect.Dy())
	fmt.Println(path)
}
