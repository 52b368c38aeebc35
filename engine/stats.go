package engine

import (
	"sync"
	"time"
)

// loopStats tracks per-stage timing for the frame loop. FPS is measured
// over the whole session, matching the periodic status report.
type loopStats struct {
	mu          sync.Mutex
	start       time.Time
	frames      int64
	readTotal   time.Duration
	detectTotal time.Duration
	renderTotal time.Duration
}

func newLoopStats() *loopStats {
	return &loopStats{start: time.Now()}
}

// frame records one completed iteration and returns the running frame
// count and session FPS.
func (s *loopStats) frame(read, detect, render time.Duration) (int64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	s.readTotal += read
	s.detectTotal += detect
	s.renderTotal += render

	elapsed := time.Since(s.start).Seconds()
	if elapsed <= 0 {
		return s.frames, 0
	}
	return s.frames, float64(s.frames) / elapsed
}

// averages returns the mean per-frame duration of each stage.
func (s *loopStats) averages() (read, detect, render time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames == 0 {
		return
	}
	n := time.Duration(s.frames)
	return s.readTotal / n, s.detectTotal / n, s.renderTotal / n
}
