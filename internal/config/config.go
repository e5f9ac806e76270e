package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the process configuration, loaded from TOML with sane defaults.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Game    GameConfig    `toml:"game"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	BindAddress  string        `toml:"bind_address"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type GameConfig struct {
	TickInterval      time.Duration `toml:"tick_interval"`
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`
	IdleTimeout       time.Duration `toml:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "text"
}

// Load reads the config at path over the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  ":1111",
			WriteTimeout: 10 * time.Second,
		},
		Game: GameConfig{
			TickInterval:      16 * time.Millisecond,
			HeartbeatInterval: 5 * time.Second,
			IdleTimeout:       10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
