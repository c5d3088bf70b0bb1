package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/termctl/internal/logger"
	"github.com/loykin/termctl/internal/registry"
)

// Config is the top-level TOML structure.
//
//	[terminal]
//	command = "alacritty"
//	class = "Alacritty"
//	process_filter = "alacritty"
//	tag_prefix = "termctl"
//	spawn_delay = "500ms"
//
//	[log]
//	level = "info"
//	file = "/var/log/termctl/termctl.log"
//
//	[history]
//	dsns = ["sqlite:///var/lib/termctl/history.db"]
//
//	[debug]
//	enabled = true
//	listen = ":9090"
type Config struct {
	Terminal TerminalConfig `toml:"terminal" mapstructure:"terminal"`
	Log      logger.Config  `toml:"log" mapstructure:"log"`
	History  HistoryConfig  `toml:"history" mapstructure:"history"`
	Debug    DebugConfig    `toml:"debug" mapstructure:"debug"`
}

type TerminalConfig struct {
	Command       string        `toml:"command" mapstructure:"command"`
	Class         string        `toml:"class" mapstructure:"class"`
	ProcessFilter string        `toml:"process_filter" mapstructure:"process_filter"`
	TagPrefix     string        `toml:"tag_prefix" mapstructure:"tag_prefix"`
	SpawnDelay    time.Duration `toml:"spawn_delay" mapstructure:"spawn_delay"`
}

type HistoryConfig struct {
	DSNs []string `toml:"dsns" mapstructure:"dsns"`
}

type DebugConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := registry.DefaultOptions()
	return Config{
		Terminal: TerminalConfig{
			Command:       opts.Terminal,
			Class:         opts.WindowClass,
			ProcessFilter: opts.ProcessFilter,
			TagPrefix:     opts.TagPrefix,
			SpawnDelay:    opts.SpawnDelay,
		},
		Log:   logger.Config{Level: "info"},
		Debug: DebugConfig{Listen: ":9090"},
	}
}

// Load reads a TOML config file, layering it over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// RegistryOptions maps the terminal section onto registry options.
func (c Config) RegistryOptions() registry.Options {
	return registry.Options{
		Terminal:      c.Terminal.Command,
		WindowClass:   c.Terminal.Class,
		ProcessFilter: c.Terminal.ProcessFilter,
		TagPrefix:     c.Terminal.TagPrefix,
		SpawnDelay:    c.Terminal.SpawnDelay,
	}
}
