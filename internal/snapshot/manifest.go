package snapshot

import (
	"encoding/json"
	"os"
)

// FrameEntry represents one saved frame in the output manifest.
type FrameEntry struct {
	Frame       uint64  `json:"frame"`
	Image       string  `json:"image"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Lights      int     `json:"lights"`
	RenderMS    float64 `json:"render_ms"`
	DeltaMS     float64 `json:"delta_ms"`
	DebugView   string  `json:"debug_view"`
	Supersample int     `json:"supersample"`
}

// TargetEntry represents one dumped render target.
type TargetEntry struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  string `json:"image"`
	Error  string `json:"error,omitempty"`
}

// Manifest describes everything a run wrote.
type Manifest struct {
	Scene   string        `json:"scene"`
	Config  any           `json:"config,omitempty"`
	Frames  []FrameEntry  `json:"frames"`
	Targets []TargetEntry `json:"targets,omitempty"`
}

// WriteManifest writes the manifest as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
