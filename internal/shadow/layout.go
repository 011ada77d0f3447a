// Package shadow builds the per-frame shadow atlas: linear depth and warped
// moments for every light, turned into a slot-restricted summed-area table.
package shadow

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrCapacity is returned for a light index the atlas has no slot for.
var ErrCapacity = errors.New("shadow: light index exceeds atlas capacity")

// Slot addresses one tile of the atlas.
type Slot struct {
	X, Y  int
	Tiles int
}

// Layout fixes the tiling of the atlas. It never changes once the atlas is
// sized.
type Layout struct {
	TilesPerSide int
	SlotSize     int
}

// NewLayout sizes a square atlas for maxLights slots of slotSize texels.
func NewLayout(maxLights, slotSize int) (Layout, error) {
	if maxLights < 1 {
		return Layout{}, fmt.Errorf("shadow: layout for %d lights: need at least one", maxLights)
	}
	if slotSize < 2 {
		return Layout{}, fmt.Errorf("shadow: slot size %d: need at least 2", slotSize)
	}
	tiles := int(math.Ceil(math.Sqrt(float64(maxLights))))
	return Layout{TilesPerSide: tiles, SlotSize: slotSize}, nil
}

// Capacity is the number of slots.
func (l Layout) Capacity() int {
	return l.TilesPerSide * l.TilesPerSide
}

// AtlasSize is the atlas width and height in texels.
func (l Layout) AtlasSize() int {
	return l.TilesPerSide * l.SlotSize
}

// Slot returns the tile assigned to light i.
func (l Layout) Slot(i int) (Slot, error) {
	if i < 0 || i >= l.Capacity() {
		return Slot{}, fmt.Errorf("%w: index %d, capacity %d", ErrCapacity, i, l.Capacity())
	}
	return Slot{X: i % l.TilesPerSide, Y: i / l.TilesPerSide, Tiles: l.TilesPerSide}, nil
}

// Rect returns the texel rectangle of a slot inside the atlas.
func (l Layout) Rect(s Slot) image.Rectangle {
	x := s.X * l.SlotSize
	y := s.Y * l.SlotSize
	return image.Rect(x, y, x+l.SlotSize, y+l.SlotSize)
}

// passCount is ceil(log2(n)) for n >= 1.
func passCount(n int) int {
	c := 0
	for 1<<c < n {
		c++
	}
	return c
}
