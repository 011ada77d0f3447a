package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"spotlight-renderer/internal/config"
	"spotlight-renderer/internal/pipeline"
	"spotlight-renderer/internal/postprocess"
	"spotlight-renderer/internal/scene"
	"spotlight-renderer/internal/snapshot"
	"spotlight-renderer/internal/texture"
)

// frameStep is the simulated host refresh interval.
const frameStep = time.Second / 60

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	width := flag.Int("width", 0, "Output width (default: 960)")
	height := flag.Int("height", 0, "Output height (default: 540)")
	sceneName := flag.String("scene", "", "Fixture room: pillar or gallery (default: pillar)")
	frames := flag.Int("frames", 0, "Number of frames to render (default: 1)")
	quality := flag.String("quality", "", "Shadow/AO sample tier: low, default, high")
	aaQuality := flag.String("aa", "", "FXAA tier: low, default, high")
	filter := flag.String("filter", "", "Penumbra filter: variance or pcf")
	view := flag.String("view", "", "Debug view: final, depth, normals, albedo, ao, light, atlas")
	supersample := flag.Int("supersample", 0, "Render at N times the size and downsample (1-4)")
	albedo := flag.String("albedo", "", "Texture name to apply to the floor")
	textures := flag.String("textures", "", "Directory searched for -albedo")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	outputDir := flag.String("output", "", "Output directory (default: renders)")
	logLevel := flag.String("log", "", "Log level: debug, info, warn, error")
	seed := flag.Uint64("seed", 0, "Sample seed (default: random)")
	noSSAO := flag.Bool("no-ssao", false, "Disable ambient occlusion")
	noAA := flag.Bool("no-aa", false, "Disable FXAA")
	dump := flag.Bool("dump", false, "Write every render target as TGA after the last frame")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		Width:       *width,
		Height:      *height,
		Scene:       *sceneName,
		Quality:     *quality,
		AAQuality:   *aaQuality,
		Filter:      *filter,
		DebugView:   *view,
		Workers:     *workers,
		Frames:      *frames,
		Supersample: *supersample,
		AlbedoMap:   *albedo,
		TextureDir:  *textures,
		OutputDir:   *outputDir,
		LogLevel:    *logLevel,
		Seed:        *seed,
		NoSSAO:      *noSSAO,
		NoAA:        *noAA,
		Dump:        *dump,
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, _ := cfg.Level()
	pipeline.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	room, cam, err := scene.ByName(cfg.Scene, cfg.LightSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer room.Release()

	if cfg.AlbedoMap != "" {
		if err := applyFloorMap(room, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: albedo map: %v\n", err)
		}
	}

	settings, err := pipeline.SettingsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The pipeline renders at the supersampled size; frames are resolved
	// back to the requested size before encoding.
	renderCfg := cfg
	renderCfg.Width *= cfg.Supersample
	renderCfg.Height *= cfg.Supersample

	p, err := pipeline.New(renderCfg, pipeline.Static(room, cam, settings))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating pipeline: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Spotlight renderer → WebP (%s)\n", cfg.Scene)
	fmt.Printf("Size: %dx%d (x%d), Frames: %d, Workers: %d\n", cfg.Width, cfg.Height, cfg.Supersample, cfg.Frames, cfg.Workers)
	fmt.Printf("Shadows: %s/%s/%s, Quality: %s, View: %s\n", cfg.Filter, cfg.Warp, cfg.Encoding, cfg.Quality, cfg.DebugView)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()
	manifest := snapshot.Manifest{Scene: cfg.Scene, Config: cfg}
	failed := 0

	for i := 0; i < cfg.Frames; i++ {
		if err := p.Render(time.Duration(i) * frameStep); err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering frame %d: %v\n", i+1, err)
			os.Exit(1)
		}
		st := p.Stats()

		img := p.Output()
		if cfg.Supersample > 1 {
			img = postprocess.Downsample(img, cfg.Width, cfg.Height)
		}

		name := fmt.Sprintf("frame-%04d.webp", st.Frame)
		if err := snapshot.WriteWebP(filepath.Join(cfg.OutputDir, name), img); err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", name, err)
			failed++
			continue
		}
		manifest.Frames = append(manifest.Frames, snapshot.FrameEntry{
			Frame:       st.Frame,
			Image:       name,
			Width:       img.Bounds().Dx(),
			Height:      img.Bounds().Dy(),
			Lights:      st.Lights,
			RenderMS:    float64(st.Duration.Microseconds()) / 1000,
			DeltaMS:     float64(st.DT.Microseconds()) / 1000,
			DebugView:   settings.View.String(),
			Supersample: cfg.Supersample,
		})
		fmt.Printf("  [%d/%d] %s %.1fms, %d lights\n", i+1, cfg.Frames, name, float64(st.Duration.Microseconds())/1000, st.Lights)
	}

	if cfg.DumpTargets {
		targets := p.Targets()
		fmt.Printf("Dumping %d targets\n", len(targets))
		manifest.Targets = snapshot.DumpTargets(snapshot.DumpConfig{
			Dir:     filepath.Join(cfg.OutputDir, "targets"),
			MaxSide: 1024,
			Workers: cfg.Workers,
			Progress: func(done, total int) {
				fmt.Printf("  [%d/%d] targets\n", done, total)
			},
		}, targets)
		for _, e := range manifest.Targets {
			if e.Error != "" {
				fmt.Printf("  %s: %s\n", e.Name, e.Error)
				failed++
			}
		}
	}

	elapsed := time.Since(start)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())
	fmt.Printf("Rendered: %d/%d\n", len(manifest.Frames), cfg.Frames)

	// Write manifest
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	os.MkdirAll(cfg.OutputDir, 0755)
	if err := snapshot.WriteManifest(manifestPath, manifest); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// applyFloorMap loads cfg.AlbedoMap from the texture directory (or the
// map's own directory) onto the room's floor.
func applyFloorMap(room *scene.Room, cfg config.Config) error {
	floor := room.Mesh("floor")
	if floor == nil {
		return fmt.Errorf("room %s has no floor", room.Name)
	}
	dir := cfg.TextureDir
	if dir == "" {
		dir = filepath.Dir(cfg.AlbedoMap)
	}
	cache := texture.NewCache(texture.BuildIndex(dir))
	img, err := cache.Resolve(cfg.AlbedoMap)
	if err != nil {
		return err
	}
	floor.AlbedoMap = img
	fmt.Printf("Albedo map: %s (%dx%d)\n", cfg.AlbedoMap, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}
