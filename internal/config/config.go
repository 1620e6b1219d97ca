// Package config holds the settings of a board host or participant.
//
// Values come from three layers, later ones winning: the built-in
// defaults, an optional YAML file named by --config, and command-line
// flags.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"CollabBoard/internal/state"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config is the full configuration of one process.
type Config struct {
	// Addr is the listen address in host mode.
	Addr string `yaml:"addr"`
	// Room is the room shared by the host link, or joined by a participant
	// when the link names none.
	Room string `yaml:"room"`
	// Name is the display name used in join mode.
	Name string `yaml:"name"`

	Store       string `yaml:"store"`
	DataDir     string `yaml:"data_dir"`
	Compress    bool   `yaml:"compress"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`

	// Advertise announces the host on the LAN over mDNS.
	Advertise bool   `yaml:"advertise"`
	LogLevel  string `yaml:"log_level"`

	// Export, in join mode, writes the synced board to this path (.pdf or
	// .png) and exits.
	Export string `yaml:"export"`

	Protocol ProtocolConfig `yaml:"protocol"`
	Client   ClientConfig   `yaml:"client"`

	Palette       []string `yaml:"palette"`
	FallbackColor string   `yaml:"fallback_color"`
}

// ProtocolConfig bounds what strokes may carry.
type ProtocolConfig struct {
	MaxWidth     float64 `yaml:"max_width"`
	DefaultWidth float64 `yaml:"default_width"`
	MaxPoints    int     `yaml:"max_points"`
	// MinMotion is in pixels.
	MinMotion float64 `yaml:"min_motion"`
}

// Limits converts to the validation limits used by the authority.
func (p ProtocolConfig) Limits() state.Limits {
	return state.Limits{MaxWidth: p.MaxWidth, DefaultWidth: p.DefaultWidth, MaxPoints: p.MaxPoints}
}

// ClientConfig tunes a participant.
type ClientConfig struct {
	PartialInterval time.Duration `yaml:"partial_interval"`
	CursorTTL       time.Duration `yaml:"cursor_ttl"`
	CanvasWidth     int           `yaml:"canvas_width"`
	CanvasHeight    int           `yaml:"canvas_height"`
}

// Default returns the built-in configuration.
func Default() Config {
	lim := state.DefaultLimits()
	return Config{
		Addr:        ":3000",
		Room:        "main",
		Store:       StoreFile,
		DataDir:     "data",
		RedisAddr:   "localhost:6379",
		RedisPrefix: "collabboard:room:",
		Advertise:   true,
		LogLevel:    "info",
		Protocol: ProtocolConfig{
			MaxWidth:     lim.MaxWidth,
			DefaultWidth: lim.DefaultWidth,
			MaxPoints:    lim.MaxPoints,
			MinMotion:    state.DefaultMinMotion,
		},
		Client: ClientConfig{
			PartialInterval: 60 * time.Millisecond,
			CursorTTL:       3 * time.Second,
			CanvasWidth:     1024,
			CanvasHeight:    768,
		},
		Palette:       []string{"#e11d48", "#0ea5e9", "#10b981", "#f59e0b", "#7c3aed", "#ef4444", "#06b6d4"},
		FallbackColor: "#444",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file
// keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreRedis, StoreMemory:
	default:
		return errors.Errorf("unknown store %q", c.Store)
	}
	if c.Store == StoreFile && c.DataDir == "" {
		return errors.New("data_dir is required for the file store")
	}
	if c.Protocol.MaxWidth <= 0 || c.Protocol.DefaultWidth <= 0 || c.Protocol.DefaultWidth > c.Protocol.MaxWidth {
		return errors.Errorf("invalid stroke widths: default %v, max %v", c.Protocol.DefaultWidth, c.Protocol.MaxWidth)
	}
	if c.Protocol.MaxPoints <= 0 {
		return errors.Errorf("max_points must be positive, got %d", c.Protocol.MaxPoints)
	}
	if c.Client.CanvasWidth <= 0 || c.Client.CanvasHeight <= 0 {
		return errors.Errorf("invalid canvas size %dx%d", c.Client.CanvasWidth, c.Client.CanvasHeight)
	}
	if c.FallbackColor == "" {
		return errors.New("fallback_color is required")
	}
	return nil
}

// AddFlags binds every setting to a flag on fs, using the current values
// as defaults.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address in host mode")
	fs.StringVar(&c.Room, "room", c.Room, "room to share or join")
	fs.StringVar(&c.Name, "name", c.Name, "display name in join mode")
	fs.StringVar(&c.Store, "store", c.Store, "history store: file, redis or memory")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory of the file store")
	fs.BoolVar(&c.Compress, "compress", c.Compress, "zstd-compress file store snapshots")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address of the redis store")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", c.RedisPrefix, "key prefix of the redis store")
	fs.BoolVar(&c.Advertise, "advertise", c.Advertise, "announce the host over mDNS")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.Export, "export", c.Export, "join mode: write the board to a .pdf or .png file and exit")
	fs.Float64Var(&c.Protocol.MaxWidth, "max-width", c.Protocol.MaxWidth, "largest stroke width")
	fs.Float64Var(&c.Protocol.DefaultWidth, "default-width", c.Protocol.DefaultWidth, "width of strokes with an invalid width")
	fs.IntVar(&c.Protocol.MaxPoints, "max-points", c.Protocol.MaxPoints, "points kept per stroke")
	fs.Float64Var(&c.Protocol.MinMotion, "min-motion", c.Protocol.MinMotion, "pixels the pointer must move to add a point")
	fs.DurationVar(&c.Client.PartialInterval, "partial-interval", c.Client.PartialInterval, "minimum gap between live stroke updates")
	fs.DurationVar(&c.Client.CursorTTL, "cursor-ttl", c.Client.CursorTTL, "how long a silent cursor stays visible")
	fs.IntVar(&c.Client.CanvasWidth, "canvas-width", c.Client.CanvasWidth, "local canvas width in pixels")
	fs.IntVar(&c.Client.CanvasHeight, "canvas-height", c.Client.CanvasHeight, "local canvas height in pixels")
	fs.StringSliceVar(&c.Palette, "palette", c.Palette, "participant colours, assigned in order")
	fs.StringVar(&c.FallbackColor, "fallback-color", c.FallbackColor, "colour once the palette is used up")
}

// Parse resolves the configuration from command-line args. When --config
// names a file, the file is loaded first and the flags are applied over it.
// The returned flag set carries the positional arguments.
func Parse(name string, args []string) (Config, *pflag.FlagSet, error) {
	cfg := Default()
	fs := flagSet(name, &cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, fs, err
	}
	path, _ := fs.GetString("config")
	if path == "" {
		return cfg, fs, cfg.Validate()
	}

	loaded, err := Load(path)
	if err != nil {
		return loaded, fs, err
	}
	fs = flagSet(name, &loaded)
	if err := fs.Parse(args); err != nil {
		return loaded, fs, err
	}
	return loaded, fs, loaded.Validate()
}

func flagSet(name string, cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "YAML configuration file")
	cfg.AddFlags(fs)
	return fs
}
