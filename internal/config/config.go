package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AppName names the config directory and the environment prefix
const AppName = "lazymy"

// Config holds all application configuration
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	UI          UIConfig          `mapstructure:"ui"`
	Data        DataConfig        `mapstructure:"data"`
	History     HistoryConfig     `mapstructure:"history"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Log         LogConfig         `mapstructure:"log"`
}

type GeneralConfig struct {
	ConfirmDestructiveOps bool `mapstructure:"confirm_destructive_ops"`
}

type UIConfig struct {
	Theme           string `mapstructure:"theme"`
	MouseEnabled    bool   `mapstructure:"mouse_enabled"`
	PanelWidthRatio int    `mapstructure:"panel_width_ratio"`
}

type DataConfig struct {
	MaxCellDisplayLength int `mapstructure:"max_cell_display_length"`
}

type HistoryConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxEntries int  `mapstructure:"max_entries"`
}

type PerformanceConfig struct {
	ConnectionPoolSize int `mapstructure:"connection_pool_size"`
	// ConnectTimeout is in milliseconds
	ConnectTimeout int `mapstructure:"connect_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// GetDefaults returns a Config with all default values
func GetDefaults() *Config {
	return &Config{
		General: GeneralConfig{
			ConfirmDestructiveOps: true,
		},
		UI: UIConfig{
			Theme:           "default",
			MouseEnabled:    false,
			PanelWidthRatio: 25,
		},
		Data: DataConfig{
			MaxCellDisplayLength: 40,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
		Performance: PerformanceConfig{
			ConnectionPoolSize: 4,
			ConnectTimeout:     10000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := GetDefaults()
	v.SetDefault("general.confirm_destructive_ops", d.General.ConfirmDestructiveOps)
	v.SetDefault("ui.theme", d.UI.Theme)
	v.SetDefault("ui.mouse_enabled", d.UI.MouseEnabled)
	v.SetDefault("ui.panel_width_ratio", d.UI.PanelWidthRatio)
	v.SetDefault("data.max_cell_display_length", d.Data.MaxCellDisplayLength)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.max_entries", d.History.MaxEntries)
	v.SetDefault("performance.connection_pool_size", d.Performance.ConnectionPoolSize)
	v.SetDefault("performance.connect_timeout", d.Performance.ConnectTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// Load reads config.yaml from the user config directory, the current
// directory or ./config. An explicit path must exist. LAZYMY_* environment
// variables override file values, e.g. LAZYMY_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir, err := GetConfigPath(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)
	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the application cannot work with
func (c *Config) Validate() error {
	if c.Performance.ConnectTimeout <= 0 {
		return fmt.Errorf("performance.connect_timeout must be positive, got %d", c.Performance.ConnectTimeout)
	}
	if c.Performance.ConnectionPoolSize <= 0 {
		return fmt.Errorf("performance.connection_pool_size must be positive, got %d", c.Performance.ConnectionPoolSize)
	}
	if c.UI.PanelWidthRatio < 10 || c.UI.PanelWidthRatio > 80 {
		return fmt.Errorf("ui.panel_width_ratio must be between 10 and 80, got %d", c.UI.PanelWidthRatio)
	}
	return nil
}

// GetConfigPath returns the user config directory path, honouring XDG_CONFIG_HOME
func GetConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}
