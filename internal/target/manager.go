package target

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when the device lacks a required format.
	ErrUnsupportedFormat = errors.New("target: unsupported format")
	// ErrStaleHandle is returned when a handle from before a resize is used.
	ErrStaleHandle = errors.New("target: stale handle")
	// ErrInvalidSize is returned for non-positive or oversized dimensions.
	ErrInvalidSize = errors.New("invalid size")
)

// ResourceError names the resource whose creation failed.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("target: create %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Caps describes what the device can allocate.
type Caps struct {
	Formats []Format
	MaxSize int
}

// DefaultCaps supports every format up to 16384 texels per side.
func DefaultCaps() Caps {
	return Caps{
		Formats: []Format{RGBA8, R32F, RGBA32F, RGBA32UI},
		MaxSize: 16384,
	}
}

func (c Caps) supports(f Format) bool {
	for _, s := range c.Formats {
		if s == f {
			return true
		}
	}
	return false
}

// Desc describes a target. Screen-sized targets follow the viewport;
// others keep Width x Height across resizes.
type Desc struct {
	Name        string
	Format      Format
	Width       int
	Height      int
	Filter      Filter
	ScreenSized bool
}

// Handle refers to a target for one generation of the manager.
type Handle struct {
	id  int
	gen uint64
}

// FramebufferHandle refers to a framebuffer for one generation.
type FramebufferHandle struct {
	id  int
	gen uint64
}

// Framebuffer binds color attachments and an optional depth attachment
// of one common size.
type Framebuffer struct {
	Name   string
	Color  []*Target
	Depth  *Target
	Width  int
	Height int
}

type fbDesc struct {
	name   string
	colors []int
	depth  int // -1 when absent
}

// Manager creates targets and framebuffers and recreates them on resize.
type Manager struct {
	caps   Caps
	width  int
	height int
	gen    uint64

	descs   []Desc
	targets []*Target
	byName  map[string]int

	fbDescs      []fbDesc
	framebuffers []*Framebuffer
}

// NewManager returns a manager for a viewport of w x h.
func NewManager(caps Caps, w, h int) (*Manager, error) {
	if w <= 0 || h <= 0 || w > caps.MaxSize || h > caps.MaxSize {
		return nil, &ResourceError{Resource: "viewport", Err: fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)}
	}
	return &Manager{
		caps:   caps,
		width:  w,
		height: h,
		gen:    1,
		byName: make(map[string]int),
	}, nil
}

// Require fails if any format is outside the device capabilities.
func (m *Manager) Require(formats ...Format) error {
	for _, f := range formats {
		if !m.caps.supports(f) {
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
		}
	}
	return nil
}

// Size returns the current viewport size.
func (m *Manager) Size() (int, int) {
	return m.width, m.height
}

func (m *Manager) sizeOf(d Desc) (int, int) {
	return sizeAt(d, m.width, m.height)
}

func sizeAt(d Desc, w, h int) (int, int) {
	if d.ScreenSized {
		return w, h
	}
	return d.Width, d.Height
}

// CreateTarget allocates a new named target.
func (m *Manager) CreateTarget(d Desc) (Handle, error) {
	if _, dup := m.byName[d.Name]; dup {
		return Handle{}, &ResourceError{Resource: d.Name, Err: errors.New("duplicate name")}
	}
	if !m.caps.supports(d.Format) {
		return Handle{}, &ResourceError{Resource: d.Name, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, d.Format)}
	}
	w, h := m.sizeOf(d)
	if w <= 0 || h <= 0 || w > m.caps.MaxSize || h > m.caps.MaxSize {
		return Handle{}, &ResourceError{Resource: d.Name, Err: fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)}
	}

	id := len(m.targets)
	m.descs = append(m.descs, d)
	m.targets = append(m.targets, newTarget(d, w, h))
	m.byName[d.Name] = id
	return Handle{id: id, gen: m.gen}, nil
}

// Lookup returns the current handle for a named target.
func (m *Manager) Lookup(name string) (Handle, error) {
	id, ok := m.byName[name]
	if !ok {
		return Handle{}, fmt.Errorf("target: lookup %s: not found", name)
	}
	return Handle{id: id, gen: m.gen}, nil
}

// Target resolves a handle.
func (m *Manager) Target(h Handle) (*Target, error) {
	if h.gen != m.gen {
		return nil, ErrStaleHandle
	}
	if h.id < 0 || h.id >= len(m.targets) {
		return nil, fmt.Errorf("target: handle %d: out of range", h.id)
	}
	return m.targets[h.id], nil
}

// Targets returns every live target in creation order.
func (m *Manager) Targets() []*Target {
	out := make([]*Target, len(m.targets))
	copy(out, m.targets)
	return out
}

// BindFramebuffer groups attachments that share one size.
func (m *Manager) BindFramebuffer(name string, colors []Handle, depth *Handle) (FramebufferHandle, error) {
	fd := fbDesc{name: name, depth: -1}
	for _, h := range colors {
		if _, err := m.Target(h); err != nil {
			return FramebufferHandle{}, fmt.Errorf("target: bind %s: %w", name, err)
		}
		fd.colors = append(fd.colors, h.id)
	}
	if depth != nil {
		if _, err := m.Target(*depth); err != nil {
			return FramebufferHandle{}, fmt.Errorf("target: bind %s: %w", name, err)
		}
		fd.depth = depth.id
	}

	fb, err := assemble(fd, m.targets)
	if err != nil {
		return FramebufferHandle{}, err
	}
	id := len(m.framebuffers)
	m.fbDescs = append(m.fbDescs, fd)
	m.framebuffers = append(m.framebuffers, fb)
	return FramebufferHandle{id: id, gen: m.gen}, nil
}

func assemble(fd fbDesc, targets []*Target) (*Framebuffer, error) {
	fb := &Framebuffer{Name: fd.name}
	var all []*Target
	for _, id := range fd.colors {
		fb.Color = append(fb.Color, targets[id])
		all = append(all, targets[id])
	}
	if fd.depth >= 0 {
		fb.Depth = targets[fd.depth]
		all = append(all, fb.Depth)
	}
	if len(all) == 0 {
		return nil, &ResourceError{Resource: fd.name, Err: errors.New("no attachments")}
	}
	fb.Width, fb.Height = all[0].Width, all[0].Height
	for _, t := range all[1:] {
		if t.Width != fb.Width || t.Height != fb.Height {
			return nil, &ResourceError{
				Resource: fd.name,
				Err:      fmt.Errorf("attachment %s is %dx%d, expected %dx%d", t.Name, t.Width, t.Height, fb.Width, fb.Height),
			}
		}
	}
	return fb, nil
}

// Framebuffer resolves a framebuffer handle.
func (m *Manager) Framebuffer(h FramebufferHandle) (*Framebuffer, error) {
	if h.gen != m.gen {
		return nil, ErrStaleHandle
	}
	if h.id < 0 || h.id >= len(m.framebuffers) {
		return nil, fmt.Errorf("target: framebuffer %d: out of range", h.id)
	}
	return m.framebuffers[h.id], nil
}

// LookupFramebuffer returns the current handle for a named framebuffer.
func (m *Manager) LookupFramebuffer(name string) (FramebufferHandle, error) {
	for id, fd := range m.fbDescs {
		if fd.name == name {
			return FramebufferHandle{id: id, gen: m.gen}, nil
		}
	}
	return FramebufferHandle{}, fmt.Errorf("target: lookup framebuffer %s: not found", name)
}

// Resize recreates every target and framebuffer. All previously issued
// handles become stale.
func (m *Manager) Resize(w, h int) error {
	if w <= 0 || h <= 0 || w > m.caps.MaxSize || h > m.caps.MaxSize {
		return &ResourceError{Resource: "viewport", Err: fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)}
	}

	// Nothing is committed until every framebuffer assembles.
	targets := make([]*Target, len(m.descs))
	for i, d := range m.descs {
		tw, th := sizeAt(d, w, h)
		targets[i] = newTarget(d, tw, th)
	}
	fbs := make([]*Framebuffer, len(m.fbDescs))
	for i, fd := range m.fbDescs {
		fb, err := assemble(fd, targets)
		if err != nil {
			return fmt.Errorf("target: resize to %dx%d: %w", w, h, err)
		}
		fbs[i] = fb
	}

	m.width, m.height = w, h
	m.targets = targets
	m.framebuffers = fbs
	m.gen++
	return nil
}
