package bidhall

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig serves a local single-process deployment: four second
// rounds, console logging, no Discord sink.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":5000"},
		Log: LogConfig{
			Level:  slog.LevelInfo,
			Format: "console",
		},
		Scheduler: SchedulerConfig{TickSeconds: 4},
		Archive:   ArchiveConfig{Size: 256},
	}
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Archive   ArchiveConfig   `toml:"archive"`
	Discord   DiscordConfig   `toml:"discord"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type SchedulerConfig struct {
	TickSeconds      int  `toml:"tick_seconds"`
	StrictSelfOutbid bool `toml:"strict_self_outbid"`
}

func (c SchedulerConfig) Tick() time.Duration {
	if c.TickSeconds <= 0 {
		return 4 * time.Second
	}
	return time.Duration(c.TickSeconds) * time.Second
}

type ArchiveConfig struct {
	Size int `toml:"size"`
}

// DiscordConfig wires the optional Discord notification sink. Disabled by
// default; the WebSocket hub is always on.
type DiscordConfig struct {
	Enabled   bool         `toml:"enabled"`
	Token     string       `toml:"token"`
	ChannelID snowflake.ID `toml:"channel_id"`
}
