package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mosaiccap/agent/internal/capture"
	"github.com/mosaiccap/agent/internal/config"
	"github.com/mosaiccap/agent/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
	backend string

	// logOutput is fixed at startup; config reloads adjust level and
	// format but never re-open the log file.
	logOutput io.Writer
)

var rootCmd = &cobra.Command{
	Use:   "mosaic-capture",
	Short: "Mosaic screen capture agent",
	Long:  `Mosaic Capture - multi-adapter desktop duplication for Windows, macOS, and Linux`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the capture loop",
	Run: func(cmd *cobra.Command, args []string) {
		runCapture()
	},
}

var displaysCmd = &cobra.Command{
	Use:   "displays",
	Short: "List capturable displays",
	Run: func(cmd *cobra.Command, args []string) {
		listDisplays()
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [file]",
	Short: "Capture a single frame to a PNG file",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		takeSnapshot(path)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	Run: func(cmd *cobra.Command, args []string) {
		writeDefaultConfig(cfgFile)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Mosaic Capture v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is capture.yaml in the system config dir)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "capture backend: auto, dxgi, or screenshot")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(displaysCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// writeDefaultConfig seeds a config file with defaults plus any
// command-line overrides. An empty path targets the system config dir.
func writeDefaultConfig(path string) {
	cfg := config.Default()
	if backend != "" {
		cfg.Backend = backend
	}

	var err error
	if path != "" {
		err = config.SaveTo(cfg, path)
	} else {
		err = config.Save(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
		os.Exit(1)
	}
	if path != "" {
		fmt.Println(path)
	} else {
		fmt.Println("Config written. Edit it, then run 'mosaic-capture run'.")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads, validates, and applies command-line overrides, then
// brings up logging per the result.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if backend != "" {
		cfg.Backend = backend
	}
	cfg.Validate()

	logOutput = os.Stderr
	if cfg.LogFile != "" {
		w, err := logging.NewRotatingWriter(cfg.LogFile, 50, 3)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", cfg.LogFile, err)
		} else {
			logOutput = logging.TeeWriter(os.Stderr, w)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)
	return cfg
}

func settingsFromConfig(cfg *config.Config) capture.Settings {
	s := capture.DefaultSettings()
	s.HardwareAcceleration = cfg.HardwareAcceleration
	s.TargetWidth = cfg.TargetWidth
	s.TargetHeight = cfg.TargetHeight
	s.FrameRate = cfg.FrameRate
	s.AcquireTimeout = time.Duration(cfg.CaptureTimeoutMillis) * time.Millisecond
	return s
}

func newCoordinator(cfg *config.Config) (*capture.Coordinator, error) {
	enum, err := capture.NewEnumerator(cfg.Backend)
	if err != nil {
		return nil, err
	}
	c := capture.NewCoordinator(enum)
	if err := c.Initialize(settingsFromConfig(cfg)); err != nil {
		return nil, err
	}
	return c, nil
}

func listDisplays() {
	cfg := loadConfig()
	c, err := newCoordinator(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize capture: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	desktop := c.DesktopRect()
	fmt.Printf("Virtual desktop: %dx%d\n", desktop.Width(), desktop.Height())
	for i := 0; i < c.ScreenCount(); i++ {
		r := c.ScreenRect(i)
		fmt.Printf("  %d: %s  %dx%d at (%d,%d)\n",
			i, c.DeviceName(i), r.Width(), r.Height(), r.Left, r.Top)
	}
}
