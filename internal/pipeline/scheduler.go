package pipeline

import (
	"log/slog"
	"time"
)

// FrameScheduler turns host timestamps into frame deltas and tracks the
// frame rate. It replaces global frame counters with explicit state.
type FrameScheduler struct {
	log *slog.Logger

	started bool
	paused  bool
	last    time.Duration
	frame   uint64
	elapsed time.Duration

	windowStart  time.Duration
	windowFrames int
	fps          float64
}

// NewFrameScheduler returns a scheduler that reports through log.
func NewFrameScheduler(log *slog.Logger) *FrameScheduler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FrameScheduler{log: log}
}

// Tick records a frame at host time now and returns the time since the
// previous tick. The first tick, and the first after Resume, return 0.
func (s *FrameScheduler) Tick(now time.Duration) time.Duration {
	s.frame++
	if !s.started {
		s.started = true
		s.last = now
		s.windowStart = now
		s.windowFrames = 0
		return 0
	}

	dt := max(now-s.last, 0)
	s.last = now
	s.elapsed += dt

	s.windowFrames++
	if window := now - s.windowStart; window >= time.Second {
		s.fps = float64(s.windowFrames) / window.Seconds()
		s.log.Debug("pipeline: frame rate", "fps", s.fps, "frame", s.frame)
		s.windowStart = now
		s.windowFrames = 0
	}
	return dt
}

// Pause stops frame production until Resume.
func (s *FrameScheduler) Pause() { s.paused = true }

// Resume restarts frame production with a fresh delta baseline.
func (s *FrameScheduler) Resume() {
	s.paused = false
	s.started = false
}

// Paused reports whether frames are suspended.
func (s *FrameScheduler) Paused() bool { return s.paused }

// Frame returns the number of ticks so far.
func (s *FrameScheduler) Frame() uint64 { return s.frame }

// Elapsed is the sum of all deltas: animation time, excluding pauses.
func (s *FrameScheduler) Elapsed() time.Duration { return s.elapsed }

// FPS is the rate measured over the last full one-second window.
func (s *FrameScheduler) FPS() float64 { return s.fps }
