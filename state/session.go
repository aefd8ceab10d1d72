package state

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vaist/studio"
)

type (
	// Session is the single writer of the open session. Every edit is
	// applied to a copy which is validated before it replaces the current
	// value, so an invalid edit leaves the session untouched.
	Session struct {
		mu      sync.Mutex
		session *studio.Session
		subs    listeners[SessionChange]
	}

	// SessionChange carries the session before and after an edit. Prev is
	// nil when a session was opened, Next is nil when it was closed.
	SessionChange struct {
		Prev, Next *studio.Session
	}
)

func NewSession() *Session {
	return &Session{}
}

// Open replaces the current session with a normalized copy of s.
func (s *Session) Open(session studio.Session) error {
	next := session.Copy()
	next.Normalize()
	if err := next.Validate(); err != nil {
		return err
	}
	if next.ID == "" {
		next.ID = uuid.NewString()
	}
	s.mu.Lock()
	prev := s.session
	s.session = &next
	s.mu.Unlock()
	s.subs.notify(SessionChange{Prev: prev, Next: copyPtr(&next)})
	return nil
}

// Close discards the session. Closing when nothing is open is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	prev := s.session
	s.session = nil
	s.mu.Unlock()
	if prev != nil {
		s.subs.notify(SessionChange{Prev: prev})
	}
}

// Snapshot returns a copy of the open session.
func (s *Session) Snapshot() (studio.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return studio.Session{}, false
	}
	return s.session.Copy(), true
}

func (s *Session) Subscribe(f func(SessionChange)) (cancel func()) {
	return s.subs.add(f)
}

// AddTrack appends a track, generating an ID if it has none, and returns
// the ID.
func (s *Session) AddTrack(t studio.Track) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.edit(func(sess *studio.Session) error {
		t.Order = len(sess.Tracks)
		sess.Tracks = append(sess.Tracks, t.Copy())
		return nil
	})
	return t.ID, err
}

// RemoveTrack removes the track. Tracks that were routed into it fall back
// to the master bus.
func (s *Session) RemoveTrack(id string) error {
	return s.edit(func(sess *studio.Session) error {
		n := len(sess.Tracks)
		sess.Tracks = slices.DeleteFunc(sess.Tracks, func(t studio.Track) bool { return t.ID == id })
		if len(sess.Tracks) == n {
			return fmt.Errorf("%w: %s", ErrUnknownTrack, id)
		}
		for i := range sess.Tracks {
			if sess.Tracks[i].Output == id {
				sess.Tracks[i].Output = ""
			}
			sess.Tracks[i].Order = i
		}
		return nil
	})
}

func (s *Session) RenameTrack(id, name string) error {
	return s.track(id, func(t *studio.Track) error {
		t.Name = name
		return nil
	})
}

// SetTrackOutput routes the track into output; empty or studio.MasterOutput
// is the master bus. Routing that would create a cycle is rejected.
func (s *Session) SetTrackOutput(id, output string) error {
	return s.track(id, func(t *studio.Track) error {
		t.Output = output
		return nil
	})
}

// SetInsert stores slot on the track, or on the master bus if trackID is
// studio.MasterOutput.
func (s *Session) SetInsert(trackID string, slot studio.InsertSlot) error {
	if slot.Index < 0 || slot.Index >= studio.MaxInserts {
		return fmt.Errorf("%w: slot %d", ErrTooManyInserts, slot.Index)
	}
	if trackID == studio.MasterOutput {
		return s.edit(func(sess *studio.Session) error { return sess.Master.SetInsert(slot) })
	}
	return s.track(trackID, func(t *studio.Track) error { return t.SetInsert(slot) })
}

// AddClip places a clip on its track and returns the clip ID.
func (s *Session) AddClip(c studio.AudioClip) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := s.track(c.TrackID, func(t *studio.Track) error {
		t.Clips = append(t.Clips, c)
		return nil
	})
	return c.ID, err
}

func (s *Session) RemoveClip(trackID, clipID string) error {
	return s.track(trackID, func(t *studio.Track) error {
		n := len(t.Clips)
		t.Clips = slices.DeleteFunc(t.Clips, func(c studio.AudioClip) bool { return c.ID == clipID })
		if len(t.Clips) == n {
			return fmt.Errorf("%w: %s", ErrUnknownClip, clipID)
		}
		return nil
	})
}

// MoveClip moves the clip to start (clamped to zero), keeping its length.
func (s *Session) MoveClip(trackID, clipID string, start int64) error {
	return s.clip(trackID, clipID, func(c *studio.AudioClip) {
		d := c.DurationSamples()
		c.StartSamples = max(start, 0)
		c.EndSamples = c.StartSamples + d
	})
}

// TrimClip changes the clip window. Moving the start also moves the offset
// into the source, so the audio stays where it was on the timeline.
func (s *Session) TrimClip(trackID, clipID string, start, end int64) error {
	return s.clip(trackID, clipID, func(c *studio.AudioClip) {
		start = max(start, c.StartSamples-c.OffsetSamples, 0)
		c.OffsetSamples += start - c.StartSamples
		c.StartSamples = start
		c.EndSamples = max(end, start+1)
	})
}

func (s *Session) SetClipMuted(trackID, clipID string, muted bool) error {
	return s.clip(trackID, clipID, func(c *studio.AudioClip) { c.Muted = muted })
}

// AddMarker adds a named marker and returns its ID.
func (s *Session) AddMarker(name string, position int64) (string, error) {
	id := uuid.NewString()
	err := s.edit(func(sess *studio.Session) error {
		sess.Markers = append(sess.Markers, studio.Marker{ID: id, Name: name, PositionSamples: max(position, 0)})
		slices.SortStableFunc(sess.Markers, func(a, b studio.Marker) int {
			return cmp.Compare(a.PositionSamples, b.PositionSamples)
		})
		return nil
	})
	return id, err
}

func (s *Session) RemoveMarker(id string) error {
	return s.edit(func(sess *studio.Session) error {
		sess.Markers = slices.DeleteFunc(sess.Markers, func(m studio.Marker) bool { return m.ID == id })
		return nil
	})
}

func (s *Session) clip(trackID, clipID string, f func(*studio.AudioClip)) error {
	return s.track(trackID, func(t *studio.Track) error {
		for i := range t.Clips {
			if t.Clips[i].ID == clipID {
				f(&t.Clips[i])
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrUnknownClip, clipID)
	})
}

func (s *Session) track(id string, f func(*studio.Track) error) error {
	return s.edit(func(sess *studio.Session) error {
		t := sess.Track(id)
		if t == nil {
			return fmt.Errorf("%w: %s", ErrUnknownTrack, id)
		}
		return f(t)
	})
}

func (s *Session) edit(f func(*studio.Session) error) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	prev := s.session
	next := prev.Copy()
	if err := f(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	next.Normalize()
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.session = &next
	s.mu.Unlock()
	s.subs.notify(SessionChange{Prev: prev, Next: copyPtr(&next)})
	return nil
}

func copyPtr(s *studio.Session) *studio.Session {
	c := s.Copy()
	return &c
}
