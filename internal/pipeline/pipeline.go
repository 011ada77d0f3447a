// Package pipeline sequences the render passes of one frame: shadow atlas,
// geometry buffer, ambient occlusion, light accumulation, composite and
// anti-aliasing.
package pipeline

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"spotlight-renderer/internal/config"
	"spotlight-renderer/internal/dispatch"
	"spotlight-renderer/internal/gbuffer"
	"spotlight-renderer/internal/lighting"
	"spotlight-renderer/internal/pcss"
	"spotlight-renderer/internal/postprocess"
	"spotlight-renderer/internal/sampling"
	"spotlight-renderer/internal/shadow"
	"spotlight-renderer/internal/ssao"
	"spotlight-renderer/internal/target"
)

// noiseDim is the side of the rotation noise tile.
const noiseDim = 4

// poissonRelaxation is the number of repulsion passes over each disc.
const poissonRelaxation = 2

// Option customizes New.
type Option func(*options)

type options struct {
	log  *slog.Logger
	gen  *sampling.Generator
	caps target.Caps
}

// WithLogger overrides the package logger for one pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithGenerator fixes the sample generator, for reproducible frames.
func WithGenerator(g *sampling.Generator) Option {
	return func(o *options) { o.gen = g }
}

// WithCaps restricts the formats and sizes the target manager accepts.
func WithCaps(c target.Caps) Option {
	return func(o *options) { o.caps = c }
}

// FrameStats describes the last rendered frame.
type FrameStats struct {
	Frame    uint64
	DT       time.Duration // host time since the previous frame
	FPS      float64
	Lights   int           // lights shaded this frame
	Duration time.Duration // wall time spent rendering
	Width    int
	Height   int
}

// Pipeline owns every pass and the targets they share. Render and Resize
// are serialized; a resize never interleaves with a frame.
type Pipeline struct {
	mu sync.Mutex

	cfg     config.Config
	src     Sources
	log     *slog.Logger
	mgr     *target.Manager
	pool    *dispatch.Pool
	samples *sampling.Sets
	sched   *FrameScheduler
	estCfg  pcss.Config

	shadows *shadow.Builder
	geom    *gbuffer.Pass
	ao      *ssao.Pass
	light   *lighting.Pass
	post    *postprocess.Pass

	output *target.Target
	stats  FrameStats
}

// New bakes the sample sets and creates every target. Any failure here is
// fatal for the session and names the resource involved.
func New(cfg config.Config, src Sources, opts ...Option) (*Pipeline, error) {
	o := options{log: Logger(), caps: target.DefaultCaps()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.gen == nil {
		if cfg.Seed != 0 {
			o.gen = sampling.NewGenerator(cfg.Seed)
		} else {
			o.gen = sampling.NewSystemGenerator()
		}
	}
	if src.Scene == nil || src.Camera == nil || src.Settings == nil {
		return nil, fmt.Errorf("pipeline: new: scene, camera and settings sources are required")
	}

	tier := cfg.Samples()
	samples, err := sampling.Bake(o.gen, sampling.Counts{
		Blocker:    tier.Blocker,
		Filter:     tier.Filter,
		Kernel:     tier.Kernel,
		NoiseDim:   noiseDim,
		Relaxation: poissonRelaxation,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}

	mgr, err := target.NewManager(o.caps, cfg.Width, cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}
	pool := dispatch.New(cfg.Workers)

	layout, err := shadow.NewLayout(cfg.MaxLights, cfg.SlotSize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}
	warp, err := shadow.ParseWarp(cfg.Warp)
	if err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}
	enc, err := shadow.ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}

	p := &Pipeline{
		cfg:     cfg,
		src:     src,
		log:     o.log,
		mgr:     mgr,
		pool:    pool,
		samples: samples,
		sched:   NewFrameScheduler(o.log),
		estCfg:  pcss.DefaultConfig(),
	}

	p.shadows, err = shadow.NewBuilder(mgr, shadow.Config{
		Layout:   layout,
		Moments:  shadow.Moments{Warp: warp, PosExp: shadow.DefaultExponent, NegExp: shadow.DefaultExponent},
		Encoding: enc,
	}, pool, o.log)
	if err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}
	if p.geom, err = gbuffer.NewPass(mgr, pool, o.log); err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}
	if p.ao, err = ssao.NewPass(mgr, pool, ssao.DefaultConfig(), o.log); err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}
	if p.light, err = lighting.NewPass(mgr, pool, o.log); err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}
	if p.post, err = postprocess.NewPass(mgr, pool, o.log); err != nil {
		return nil, fmt.Errorf("pipeline: new: %w", err)
	}

	p.log.Info("pipeline: ready",
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"atlas", layout.AtlasSize(), "slots", layout.Capacity(),
		"warp", warp, "encoding", enc, "quality", cfg.Quality,
		"workers", pool.Workers(), "targets", len(mgr.Targets()))
	return p, nil
}

// Render draws one frame at host time frameTime. It does nothing while
// paused. Degenerate input (no lights, no meshes) renders an ambient-only
// or empty frame; errors mean an internal invariant broke.
func (p *Pipeline) Render(frameTime time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched.Paused() {
		return nil
	}
	start := time.Now()
	dt := p.sched.Tick(frameTime)

	room := p.src.Scene.Room()
	cam := p.src.Camera.Camera()
	settings := p.src.Settings.Settings()
	room.Update(p.sched.Elapsed().Seconds())

	w, h := p.mgr.Size()
	view := cam.View()
	proj := cam.Projection(float32(w) / float32(h))

	if err := p.shadows.Build(room.Lights, room.Meshes); err != nil {
		return fmt.Errorf("pipeline: render: %w", err)
	}
	atlas, err := p.shadows.Atlas()
	if err != nil {
		return fmt.Errorf("pipeline: render: %w", err)
	}

	g, err := p.geom.Run(gbuffer.Input{
		Meshes:     room.Meshes,
		View:       view,
		Projection: proj,
		Near:       cam.Near,
		Far:        cam.Far,
		Ambient:    room.AmbientTerm(),
	})
	if err != nil {
		return fmt.Errorf("pipeline: render: %w", err)
	}

	var ao *target.Target
	if settings.SSAO {
		ao, err = p.ao.Run(g, proj, p.samples)
	} else {
		ao, err = p.ao.Skip()
	}
	if err != nil {
		return fmt.Errorf("pipeline: render: %w", err)
	}

	views := make([]pcss.LightView, 0, len(room.Lights))
	for i, l := range room.Lights {
		if !l.Visible() {
			continue
		}
		slot, err := atlas.Layout.Slot(i)
		if err != nil {
			// The builder already warned about this light.
			continue
		}
		views = append(views, pcss.NewLightView(l, slot, view))
	}
	estCfg := p.estCfg
	estCfg.Mode = settings.Filter
	est := pcss.NewEstimator(estCfg, atlas, p.samples)
	accum, err := p.light.Run(g, views, est, p.samples)
	if err != nil {
		return fmt.Errorf("pipeline: render: %w", err)
	}

	out, err := p.post.Composite(postprocess.Inputs{
		G:     g,
		AO:    ao,
		Light: accum,
		Atlas: atlas.Linear,
		View:  settings.View,
	})
	if err != nil {
		return fmt.Errorf("pipeline: render: %w", err)
	}
	if settings.AA {
		if out, err = p.post.FXAA(out, settings.AAQuality); err != nil {
			return fmt.Errorf("pipeline: render: %w", err)
		}
	}
	p.output = out

	p.stats = FrameStats{
		Frame:    p.sched.Frame(),
		DT:       dt,
		FPS:      p.sched.FPS(),
		Lights:   len(views),
		Duration: time.Since(start),
		Width:    w,
		Height:   h,
	}
	p.log.Debug("pipeline: frame", "frame", p.stats.Frame, "lights", len(views), "took", p.stats.Duration)
	return nil
}

// Resize recreates every screen-sized target. The next Render draws at the
// new size; Output returns nil until then.
func (p *Pipeline) Resize(w, h int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mgr.Resize(w, h); err != nil {
		return fmt.Errorf("pipeline: resize: %w", err)
	}
	p.output = nil
	p.log.Info("pipeline: resized", "size", fmt.Sprintf("%dx%d", w, h))
	return nil
}

// Pause suspends rendering; Render becomes a no-op.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sched.Pause()
}

// Resume restarts rendering. The next frame has a zero delta.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sched.Resume()
}

// Output returns a copy of the last frame, or nil before the first frame
// after construction or a resize.
func (p *Pipeline) Output() *image.NRGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.output == nil {
		return nil
	}
	return postprocess.Image(p.output)
}

// Stats returns the statistics of the last frame.
func (p *Pipeline) Stats() FrameStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Targets lists every render target, for dumps.
func (p *Pipeline) Targets() []*target.Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mgr.Targets()
}

// Size returns the viewport size.
func (p *Pipeline) Size() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mgr.Size()
}
