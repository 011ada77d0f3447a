package pipeline

import (
	"fmt"

	"spotlight-renderer/internal/config"
	"spotlight-renderer/internal/pcss"
	"spotlight-renderer/internal/postprocess"
	"spotlight-renderer/internal/scene"
)

// Settings are the per-frame toggles owned by the host.
type Settings struct {
	SSAO      bool
	AA        bool
	AAQuality postprocess.Quality
	Filter    pcss.Mode
	View      postprocess.DebugView
}

// SettingsFromConfig derives the initial toggles from a validated config.
func SettingsFromConfig(c config.Config) (Settings, error) {
	q, err := postprocess.ParseQuality(c.AAQuality)
	if err != nil {
		return Settings{}, fmt.Errorf("pipeline: settings: %w", err)
	}
	mode, err := pcss.ParseMode(c.Filter)
	if err != nil {
		return Settings{}, fmt.Errorf("pipeline: settings: %w", err)
	}
	view, err := postprocess.ParseDebugView(c.DebugView)
	if err != nil {
		return Settings{}, fmt.Errorf("pipeline: settings: %w", err)
	}
	return Settings{SSAO: !c.DisableSSAO, AA: !c.DisableAA, AAQuality: q, Filter: mode, View: view}, nil
}

// SceneSource supplies the room rendered this frame.
type SceneSource interface {
	Room() *scene.Room
}

// CameraSource supplies the camera pose and projection parameters.
type CameraSource interface {
	Camera() scene.Camera
}

// SettingsSource supplies a snapshot of the toggles.
type SettingsSource interface {
	Settings() Settings
}

// Sources are the collaborators queried once per frame.
type Sources struct {
	Scene    SceneSource
	Camera   CameraSource
	Settings SettingsSource
}

// SceneFunc adapts a function to SceneSource.
type SceneFunc func() *scene.Room

func (f SceneFunc) Room() *scene.Room { return f() }

// CameraFunc adapts a function to CameraSource.
type CameraFunc func() scene.Camera

func (f CameraFunc) Camera() scene.Camera { return f() }

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func() Settings

func (f SettingsFunc) Settings() Settings { return f() }

// Static returns sources that never change.
func Static(room *scene.Room, cam scene.Camera, s Settings) Sources {
	return Sources{
		Scene:    SceneFunc(func() *scene.Room { return room }),
		Camera:   CameraFunc(func() scene.Camera { return cam }),
		Settings: SettingsFunc(func() Settings { return s }),
	}
}
