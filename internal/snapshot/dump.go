package snapshot

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"spotlight-renderer/internal/target"
)

// DumpConfig controls a target dump.
type DumpConfig struct {
	Dir     string
	MaxSide int // larger targets are scaled down; 0 keeps full size
	Workers int
	// Progress, when set, is called every interval with the number of
	// targets written so far.
	Progress func(done, total int)
}

// progressInterval is how often Progress fires during a dump.
const progressInterval = 2 * time.Second

// DumpTargets writes every target as a TGA under cfg.Dir using a worker
// pool. The returned entries are in target order; failures carry Error.
func DumpTargets(cfg DumpConfig, targets []*target.Target) []TargetEntry {
	total := len(targets)
	results := make([]TargetEntry, total)
	var processed atomic.Int64

	done := make(chan struct{})
	if cfg.Progress != nil {
		go func() {
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					cfg.Progress(int(processed.Load()), total)
				}
			}
		}()
	}

	workers := max(cfg.Workers, 1)
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = dumpTarget(cfg, targets[idx])
				processed.Add(1)
			}
		}()
	}

	for i := range targets {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(done)

	return results
}

func dumpTarget(cfg DumpConfig, t *target.Target) TargetEntry {
	name := FileName(t.Name) + ".tga"
	entry := TargetEntry{
		Name:   t.Name,
		Format: t.Format.String(),
		Width:  t.Width,
		Height: t.Height,
		Image:  name,
	}
	img := Fit(Visualize(t), cfg.MaxSide)
	if err := WriteTGA(filepath.Join(cfg.Dir, name), img); err != nil {
		entry.Error = fmt.Sprint(err)
	}
	return entry
}

// FileName turns a target name such as "gbuffer.normal" into a safe file
// stem.
func FileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
