package remote

import (
	"sync"
	"time"

	"github.com/vaist/studio/engine"
)

// Ballistics smooths the peaks of successive snapshots into display levels
// in dBFS, one meter per track and one for the master bus.
type Ballistics struct {
	mu     sync.Mutex
	tracks map[string]*engine.DecibelMeter
	master *engine.DecibelMeter
	last   time.Time
}

func NewBallistics() *Ballistics {
	return &Ballistics{tracks: map[string]*engine.DecibelMeter{}, master: engine.NewDecibelMeter()}
}

// Apply replaces the instantaneous levels of s with the smoothed ones, as
// measured at now. Meters of tracks missing from s are dropped.
func (b *Ballistics) Apply(s *Snapshot, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var dt float64
	if !b.last.IsZero() {
		dt = now.Sub(b.last).Seconds()
	}
	b.last = now
	for id, t := range s.Tracks {
		m, ok := b.tracks[id]
		if !ok {
			m = engine.NewDecibelMeter()
			b.tracks[id] = m
		}
		m.Update(t.Peak, dt)
		t.Level = m.Level
		s.Tracks[id] = t
	}
	for id := range b.tracks {
		if _, ok := s.Tracks[id]; !ok {
			delete(b.tracks, id)
		}
	}
	b.master.Update(s.Master.Peak, dt)
	s.MasterLevel = b.master.Level
}

// instantLevel is the unsmoothed display level of a peak.
func instantLevel(peak [2]float32) engine.Decibels {
	m := engine.NewDecibelMeter()
	m.Update(peak, 0)
	return m.Level
}
