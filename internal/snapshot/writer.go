// Package snapshot writes rendered frames and render-target dumps to disk.
package snapshot

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
)

// WriteWebP encodes img as lossless WebP, creating parent directories.
func WriteWebP(path string, img image.Image) error {
	return write(path, func(f *os.File) error {
		if err := nativewebp.Encode(f, img, nil); err != nil {
			return fmt.Errorf("webp encode: %w", err)
		}
		return nil
	})
}

// WriteTGA encodes img as uncompressed TGA, creating parent directories.
func WriteTGA(path string, img image.Image) error {
	return write(path, func(f *os.File) error {
		if err := tga.Encode(f, img); err != nil {
			return fmt.Errorf("tga encode: %w", err)
		}
		return nil
	})
}

func write(path string, enc func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("snapshot: %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %s: %w", path, err)
	}
	if err := enc(f); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: %s: %w", path, err)
	}
	return nil
}
