package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Backend              string `mapstructure:"backend"`
	Monitor              int    `mapstructure:"monitor"`
	FrameRate            int    `mapstructure:"frame_rate"`
	TargetWidth          int    `mapstructure:"target_width"`
	TargetHeight         int    `mapstructure:"target_height"`
	HardwareAcceleration bool   `mapstructure:"hardware_acceleration"`
	CaptureTimeoutMillis int    `mapstructure:"capture_timeout_millis"`
	SnapshotDir          string `mapstructure:"snapshot_dir"`
	LogLevel             string `mapstructure:"log_level"`
	LogFormat            string `mapstructure:"log_format"`
	LogFile              string `mapstructure:"log_file"`
}

func Default() *Config {
	return &Config{
		Backend:              "auto",
		Monitor:              -1,
		FrameRate:            30,
		HardwareAcceleration: true,
		CaptureTimeoutMillis: 100,
		SnapshotDir:          ".",
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("capture")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MOSAIC")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Watch re-reads the config file on change and invokes fn with the fresh
// config. Unparseable edits are ignored; the previous config stays active.
func Watch(fn func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		cfg := Default()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		fn(cfg)
	})
	viper.WatchConfig()
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("backend", cfg.Backend)
	viper.Set("monitor", cfg.Monitor)
	viper.Set("frame_rate", cfg.FrameRate)
	viper.Set("target_width", cfg.TargetWidth)
	viper.Set("target_height", cfg.TargetHeight)
	viper.Set("hardware_acceleration", cfg.HardwareAcceleration)
	viper.Set("capture_timeout_millis", cfg.CaptureTimeoutMillis)
	viper.Set("snapshot_dir", cfg.SnapshotDir)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("log_file", cfg.LogFile)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "capture.yaml")
		if err := os.MkdirAll(configDir(), 0755); err != nil {
			return err
		}
	}

	return viper.WriteConfigAs(cfgPath)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Mosaic")
	case "darwin":
		return "/Library/Application Support/Mosaic"
	default:
		return "/etc/mosaic"
	}
}
