package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"spotlight-renderer/internal/pcss"
	"spotlight-renderer/internal/postprocess"
	"spotlight-renderer/internal/shadow"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds the renderer settings.
type Config struct {
	// Viewport
	Width       int `json:"width"`
	Height      int `json:"height"`
	Supersample int `json:"supersample"`

	// Shadows
	SlotSize  int    `json:"slot_size"`
	MaxLights int    `json:"max_lights"`
	Filter    string `json:"filter"`   // variance | pcf
	Warp      string `json:"warp"`     // vsm | evsm
	Encoding  string `json:"encoding"` // fixed | float
	Quality   string `json:"quality"`  // sample tier: low | default | high

	// Screen space
	DisableSSAO bool   `json:"disable_ssao"`
	DisableAA   bool   `json:"disable_aa"`
	AAQuality   string `json:"aa_quality"`
	DebugView   string `json:"debug_view"`

	// Run
	Scene       string  `json:"scene"` // pillar | gallery
	LightSize   float32 `json:"light_size"`
	AlbedoMap   string  `json:"albedo_map"`  // texture name applied to the floor
	TextureDir  string  `json:"texture_dir"` // searched for AlbedoMap
	Seed        uint64  `json:"seed"`        // 0 seeds from the system source
	Workers     int     `json:"workers"`
	Frames      int     `json:"frames"`
	OutputDir   string  `json:"output_dir"`
	DumpTargets bool    `json:"dump_targets"`
	LogLevel    string  `json:"log_level"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Width       int
	Height      int
	Scene       string
	Quality     string
	AAQuality   string
	Filter      string
	DebugView   string
	Workers     int
	Frames      int
	Supersample int
	AlbedoMap   string
	TextureDir  string
	OutputDir   string
	LogLevel    string
	Seed        uint64
	NoSSAO      bool
	NoAA        bool
	Dump        bool
}

// Resolve applies flags over the file values, then fills every empty field
// with its default. CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	overrideInt(&c.Width, flags.Width)
	overrideInt(&c.Height, flags.Height)
	overrideInt(&c.Workers, flags.Workers)
	overrideInt(&c.Frames, flags.Frames)
	overrideInt(&c.Supersample, flags.Supersample)
	overrideString(&c.AlbedoMap, flags.AlbedoMap)
	overrideString(&c.TextureDir, flags.TextureDir)
	overrideString(&c.Scene, flags.Scene)
	overrideString(&c.Quality, flags.Quality)
	overrideString(&c.AAQuality, flags.AAQuality)
	overrideString(&c.Filter, flags.Filter)
	overrideString(&c.DebugView, flags.DebugView)
	overrideString(&c.OutputDir, flags.OutputDir)
	overrideString(&c.LogLevel, flags.LogLevel)
	if flags.Seed != 0 {
		c.Seed = flags.Seed
	}
	c.DisableSSAO = c.DisableSSAO || flags.NoSSAO
	c.DisableAA = c.DisableAA || flags.NoAA
	c.DumpTargets = c.DumpTargets || flags.Dump

	defaultInt(&c.Width, 960)
	defaultInt(&c.Height, 540)
	defaultInt(&c.Supersample, 1)
	defaultInt(&c.SlotSize, 256)
	defaultInt(&c.MaxLights, 4)
	defaultInt(&c.Workers, runtime.NumCPU())
	defaultInt(&c.Frames, 1)
	defaultString(&c.Filter, "variance")
	defaultString(&c.Warp, "vsm")
	defaultString(&c.Encoding, "fixed")
	defaultString(&c.Quality, "default")
	defaultString(&c.AAQuality, "default")
	defaultString(&c.DebugView, "final")
	defaultString(&c.Scene, "pillar")
	defaultString(&c.OutputDir, "renders")
	defaultString(&c.LogLevel, "info")
	if c.LightSize <= 0 {
		c.LightSize = 12
	}
}

func overrideInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func defaultInt(dst *int, v int) {
	if *dst <= 0 {
		*dst = v
	}
}

func defaultString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// Validate rejects values the pipeline cannot run with. Call it after
// Resolve.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalid, c.Width, c.Height)
	case c.Supersample < 1 || c.Supersample > 4:
		return fmt.Errorf("%w: supersample %d: must be in [1, 4]", ErrInvalid, c.Supersample)
	case c.SlotSize < 2:
		return fmt.Errorf("%w: slot size %d: need at least 2", ErrInvalid, c.SlotSize)
	case c.MaxLights < 1:
		return fmt.Errorf("%w: max lights %d: need at least 1", ErrInvalid, c.MaxLights)
	case c.Frames < 1:
		return fmt.Errorf("%w: frames %d: need at least 1", ErrInvalid, c.Frames)
	case c.Scene != "pillar" && c.Scene != "gallery":
		return fmt.Errorf("%w: unknown scene %q", ErrInvalid, c.Scene)
	}
	if _, ok := tiers[c.Quality]; !ok {
		return fmt.Errorf("%w: unknown quality %q", ErrInvalid, c.Quality)
	}

	warp, err := shadow.ParseWarp(c.Warp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	enc, err := shadow.ParseEncoding(c.Encoding)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if warp == shadow.EVSM && enc == shadow.FixedPoint {
		return fmt.Errorf("%w: %s moments need the float encoding", ErrInvalid, warp)
	}
	if _, err := pcss.ParseMode(c.Filter); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := postprocess.ParseQuality(c.AAQuality); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := postprocess.ParseDebugView(c.DebugView); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Samples holds the fixed sample counts of a quality tier.
type Samples struct {
	Blocker int
	Filter  int
	Kernel  int
}

var tiers = map[string]Samples{
	"low":     {Blocker: 9, Filter: 16, Kernel: 16},
	"default": {Blocker: 16, Filter: 32, Kernel: 32},
	"high":    {Blocker: 25, Filter: 64, Kernel: 64},
}

// Samples returns the sample counts of the configured quality tier.
func (c Config) Samples() Samples {
	if s, ok := tiers[c.Quality]; ok {
		return s
	}
	return tiers["default"]
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
