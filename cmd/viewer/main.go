// Command viewer shows the spotlight pipeline in a window. The frame is
// rendered on the CPU and blitted to the default framebuffer every refresh.
//
// Keys: 1-7 pick the debug view, O toggles SSAO, F toggles FXAA, Q cycles
// the FXAA tier, P switches the penumbra filter, arrows orbit the camera,
// Space pauses.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/config"
	"spotlight-renderer/internal/mathutil"
	"spotlight-renderer/internal/pcss"
	"spotlight-renderer/internal/pipeline"
	"spotlight-renderer/internal/postprocess"
	"spotlight-renderer/internal/scene"
)

func init() {
	runtime.LockOSThread()
}

// controls holds the state the key callback edits and the pipeline reads.
type controls struct {
	mu       sync.Mutex
	settings pipeline.Settings
	cam      scene.Camera
	orbit    float32 // yaw around the room centre, radians
	radius   float32
	height   float32
}

func (c *controls) Settings() pipeline.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *controls) Camera() scene.Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam := c.cam
	cam.Position = mgl32.Vec3{c.radius * mathutil.Sin(c.orbit), c.height, c.radius * mathutil.Cos(c.orbit)}
	cam.Yaw = c.orbit
	return cam
}

func (c *controls) key(k glfw.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.settings
	switch {
	case k >= glfw.Key1 && k <= glfw.Key7:
		s.View = postprocess.DebugView(k - glfw.Key1)
	case k == glfw.KeyO:
		s.SSAO = !s.SSAO
	case k == glfw.KeyF:
		s.AA = !s.AA
	case k == glfw.KeyQ:
		s.AAQuality = (s.AAQuality + 1) % (postprocess.QualityHigh + 1)
	case k == glfw.KeyP:
		if s.Filter == pcss.PCF {
			s.Filter = pcss.Variance
		} else {
			s.Filter = pcss.PCF
		}
	case k == glfw.KeyLeft:
		c.orbit -= 0.1
	case k == glfw.KeyRight:
		c.orbit += 0.1
	case k == glfw.KeyUp:
		c.radius = max(c.radius-0.5, 1)
	case k == glfw.KeyDown:
		c.radius += 0.5
	}
}

func (c *controls) title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.settings
	return fmt.Sprintf("spotlight | view %s | filter %s | ssao %t | fxaa %t (%s)", s.View, s.Filter, s.SSAO, s.AA, s.AAQuality)
}

func main() {
	configFile := flag.String("config", "", "Path to config.json file")
	width := flag.Int("width", 0, "Window width (default: 960)")
	height := flag.Int("height", 0, "Window height (default: 540)")
	sceneName := flag.String("scene", "", "Fixture room: pillar or gallery (default: pillar)")
	quality := flag.String("quality", "", "Shadow/AO sample tier: low, default, high")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	logLevel := flag.String("log", "", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := run(*configFile, config.Flags{
		Width:    *width,
		Height:   *height,
		Scene:    *sceneName,
		Quality:  *quality,
		Workers:  *workers,
		LogLevel: *logLevel,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string, flags config.Flags) error {
	var cfg config.Config
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
	}
	cfg.Resolve(flags)
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	pipeline.SetLogger(log)

	room, cam, err := scene.ByName(cfg.Scene, cfg.LightSize)
	if err != nil {
		return err
	}
	defer room.Release()

	settings, err := pipeline.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	ctl := &controls{
		settings: settings,
		cam:      cam,
		orbit:    cam.Yaw,
		radius:   mgl32.Vec2{cam.Position.X(), cam.Position.Z()}.Len(),
		height:   cam.Position.Y(),
	}

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, ctl.title(), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer win.Destroy()
	win.MakeContextCurrent()
	glfw.SwapInterval(1)

	if err := gl.Init(); err != nil {
		return fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Info("opengl", "version", gl.GoStr(gl.GetString(gl.VERSION)))

	fbW, fbH := win.GetFramebufferSize()
	cfg.Width, cfg.Height = fbW, fbH
	p, err := pipeline.New(cfg, pipeline.Sources{
		Scene:    pipeline.SceneFunc(func() *scene.Room { return room }),
		Camera:   ctl,
		Settings: ctl,
	})
	if err != nil {
		return err
	}

	b := newBlitter()
	defer b.release()

	win.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		if w == 0 || h == 0 {
			return
		}
		if err := p.Resize(w, h); err != nil {
			log.Warn("resize", "width", w, "height", h, "err", err)
			return
		}
		fbW, fbH = w, h
	})
	userPaused := false
	win.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		if iconified {
			p.Pause()
		} else if !userPaused {
			p.Resume()
		}
	})
	win.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action == glfw.Release {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeySpace:
			if action != glfw.Press {
				return
			}
			userPaused = !userPaused
			if userPaused {
				p.Pause()
			} else {
				p.Resume()
			}
		default:
			ctl.key(key)
			w.SetTitle(ctl.title())
		}
	})

	lastLog := time.Now()
	for !win.ShouldClose() {
		frameTime := time.Duration(glfw.GetTime() * float64(time.Second))
		if err := p.Render(frameTime); err != nil {
			return err
		}
		if img := p.Output(); img != nil {
			b.draw(img.Pix, img.Bounds().Dx(), img.Bounds().Dy(), fbW, fbH)
		}
		win.SwapBuffers()
		glfw.PollEvents()

		if time.Since(lastLog) > 5*time.Second {
			st := p.Stats()
			log.Info("frame", "n", st.Frame, "fps", fmt.Sprintf("%.1f", st.FPS), "render", st.Duration, "lights", st.Lights)
			lastLog = time.Now()
		}
	}
	return nil
}
