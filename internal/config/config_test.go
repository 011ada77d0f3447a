package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveDefaults(t *testing.T) {
	var c Config
	c.Resolve(Flags{})
	if c.Width != 960 || c.Height != 540 {
		t.Errorf("viewport: expected 960x540, got %dx%d", c.Width, c.Height)
	}
	if c.SlotSize != 256 || c.MaxLights != 4 {
		t.Errorf("atlas: expected slot 256 for 4 lights, got %d for %d", c.SlotSize, c.MaxLights)
	}
	if c.Filter != "variance" || c.Warp != "vsm" || c.Encoding != "fixed" {
		t.Errorf("shadow defaults: got %s/%s/%s", c.Filter, c.Warp, c.Encoding)
	}
	if c.DisableSSAO || c.DisableAA || c.AAQuality != "default" {
		t.Errorf("screen space defaults: ssao off %v, aa off %v, aa %s", c.DisableSSAO, c.DisableAA, c.AAQuality)
	}
	if c.Workers <= 0 || c.Supersample != 1 || c.Frames != 1 {
		t.Errorf("run defaults: workers %d, supersample %d, frames %d", c.Workers, c.Supersample, c.Frames)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"width": 320, "height": 200, "quality": "low", "scene": "gallery", "disable_aa": true}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.Resolve(Flags{Width: 640, Quality: "high", NoSSAO: true})

	if c.Width != 640 || c.Height != 200 {
		t.Errorf("expected 640x200, got %dx%d", c.Width, c.Height)
	}
	if c.Quality != "high" || c.Scene != "gallery" {
		t.Errorf("expected high quality gallery, got %s %s", c.Quality, c.Scene)
	}
	if !c.DisableAA || !c.DisableSSAO {
		t.Errorf("expected both toggles off, got aa off %v ssao off %v", c.DisableAA, c.DisableSSAO)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{"), 0644)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"evsm with fixed point", func(c *Config) { c.Warp = "evsm" }},
		{"tiny slot", func(c *Config) { c.SlotSize = 1 }},
		{"unknown filter", func(c *Config) { c.Filter = "box" }},
		{"unknown quality", func(c *Config) { c.Quality = "ultra" }},
		{"unknown aa tier", func(c *Config) { c.AAQuality = "max" }},
		{"unknown view", func(c *Config) { c.DebugView = "uv" }},
		{"unknown scene", func(c *Config) { c.Scene = "cathedral" }},
		{"supersample", func(c *Config) { c.Supersample = 8 }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		var c Config
		c.Resolve(Flags{})
		tt.edit(&c)
		if err := c.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", tt.name, err)
		}
	}

	var c Config
	c.Resolve(Flags{})
	c.Warp, c.Encoding = "evsm", "float"
	if err := c.Validate(); err != nil {
		t.Errorf("evsm with float storage should validate: %v", err)
	}
}

func TestSampleTiers(t *testing.T) {
	tests := []struct {
		quality string
		want    Samples
	}{
		{"low", Samples{9, 16, 16}},
		{"default", Samples{16, 32, 32}},
		{"high", Samples{25, 64, 64}},
	}
	for _, tt := range tests {
		c := Config{Quality: tt.quality}
		if got := c.Samples(); got != tt.want {
			t.Errorf("%s: expected %+v, got %+v", tt.quality, tt.want, got)
		}
	}
}

func TestLevel(t *testing.T) {
	c := Config{LogLevel: "debug"}
	if l, err := c.Level(); err != nil || l != slog.LevelDebug {
		t.Errorf("expected debug, got %v, %v", l, err)
	}
}
