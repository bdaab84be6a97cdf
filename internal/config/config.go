package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

var ErrInvalid = errors.New("invalid config")

type Area struct {
	ID     string `mapstructure:"id"`
	X      int    `mapstructure:"x"`
	Y      int    `mapstructure:"y"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

type Config struct {
	Server struct {
		Addr                string   `mapstructure:"addr"`
		WriteTimeoutSeconds int      `mapstructure:"write_timeout_seconds"`
		PingIntervalSeconds int      `mapstructure:"ping_interval_seconds"`
		OriginPatterns      []string `mapstructure:"origin_patterns"`
	} `mapstructure:"server"`
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
	Game struct {
		RoundDurationSeconds int `mapstructure:"round_duration_seconds"`
		KeysPerRound         int `mapstructure:"keys_per_round"`
		PointsPerMove        int `mapstructure:"points_per_move"`
	} `mapstructure:"game"`
	Music struct {
		DefaultTrackDurationMS int `mapstructure:"default_track_duration_ms"`
		TrackSpacingMS         int `mapstructure:"track_spacing_ms"`
	} `mapstructure:"music"`
	Metadata struct {
		Provider        string `mapstructure:"provider"`
		CacheSize       int    `mapstructure:"cache_size"`
		TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
		ITunesLookupURL string `mapstructure:"itunes_lookup_url"`
	} `mapstructure:"metadata"`
	Spotify struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"spotify"`
	Database struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Areas []Area `mapstructure:"areas"`
}

// Load reads an optional .env, then config.yaml from the given directories
// (default "." and ".."), then DANCE_* environment variables, and validates
// the result. Every problem is reported at once.
func Load(dirs ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults still need binding so env overrides reach Unmarshal.
	_ = v.BindEnv("spotify.client_id")
	_ = v.BindEnv("spotify.client_secret")
	_ = v.BindEnv("database.dsn")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.write_timeout_seconds", 3)
	v.SetDefault("server.ping_interval_seconds", 30)
	v.SetDefault("server.origin_patterns", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("game.round_duration_seconds", 20)
	v.SetDefault("game.keys_per_round", 6)
	v.SetDefault("game.points_per_move", 1)

	v.SetDefault("music.default_track_duration_ms", 180000)
	v.SetDefault("music.track_spacing_ms", 3000)

	v.SetDefault("metadata.provider", "spotify")
	v.SetDefault("metadata.cache_size", 256)
	v.SetDefault("metadata.timeout_seconds", 5)
	v.SetDefault("metadata.itunes_lookup_url", "https://itunes.apple.com/lookup")

	v.SetDefault("database.driver", "")

	v.SetDefault("areas", []map[string]any{
		{"id": "dance-floor", "x": 0, "y": 0, "width": 10, "height": 10},
	})

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		dirs = []string{".", ".."}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var err error
	bad := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Server.Addr == "" {
		bad("server.addr is empty")
	}
	if c.Game.RoundDurationSeconds <= 0 {
		bad("game.round_duration_seconds must be positive")
	}
	if c.Game.KeysPerRound <= 0 {
		bad("game.keys_per_round must be positive")
	}
	if c.Game.PointsPerMove <= 0 {
		bad("game.points_per_move must be positive")
	}
	if c.Music.DefaultTrackDurationMS <= 0 {
		bad("music.default_track_duration_ms must be positive")
	}
	if c.Music.TrackSpacingMS < 0 {
		bad("music.track_spacing_ms must not be negative")
	}
	if c.Metadata.TimeoutSeconds <= 0 {
		bad("metadata.timeout_seconds must be positive")
	}
	if c.Metadata.CacheSize <= 0 {
		bad("metadata.cache_size must be positive")
	}

	switch c.Metadata.Provider {
	case "spotify", "itunes", "static":
	default:
		bad("unknown metadata.provider %q", c.Metadata.Provider)
	}
	switch c.Database.Driver {
	case "":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			bad("database.dsn is required for driver %s", c.Database.Driver)
		}
	default:
		bad("unknown database.driver %q", c.Database.Driver)
	}

	if len(c.Areas) == 0 {
		bad("no areas configured")
	}
	seen := map[string]bool{}
	for i, a := range c.Areas {
		switch {
		case a.ID == "":
			bad("areas[%d] has no id", i)
		case seen[a.ID]:
			bad("duplicate area id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Width <= 0 || a.Height <= 0 {
			bad("area %q is missing width/height", a.ID)
		}
	}
	return err
}

func (c *Config) RoundDuration() time.Duration {
	return time.Duration(c.Game.RoundDurationSeconds) * time.Second
}

func (c *Config) DefaultTrackDuration() time.Duration {
	return time.Duration(c.Music.DefaultTrackDurationMS) * time.Millisecond
}

func (c *Config) TrackSpacing() time.Duration {
	return time.Duration(c.Music.TrackSpacingMS) * time.Millisecond
}

func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Metadata.TimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Server.PingIntervalSeconds) * time.Second
}
