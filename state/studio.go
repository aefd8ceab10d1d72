package state

import (
	"fmt"

	"github.com/vaist/studio"
)

// Studio bundles the three stores the engine reads. Opening a session seeds
// the transport and the mixer from it; adding or removing tracks keeps the
// mixer strips in step with the session.
type Studio struct {
	Session   *Session
	Transport *Transport
	Mixer     *Mixer
}

func NewStudio() *Studio {
	s := &Studio{
		Session:   NewSession(),
		Transport: NewTransport(studio.DefaultTransport()),
		Mixer:     NewMixer(),
	}
	s.Session.Subscribe(s.syncChannels)
	return s
}

// Open loads the session into all three stores.
func (s *Studio) Open(session studio.Session) error {
	if err := s.Session.Open(session); err != nil {
		return err
	}
	sess, _ := s.Session.Snapshot()
	s.Transport.Load(sess.Transport)
	s.Mixer.Load(sess.Tracks, sess.Master)
	return nil
}

// Close stops the transport and discards the session.
func (s *Studio) Close() {
	s.Transport.Stop()
	s.Session.Close()
	s.Mixer.Load(nil, studio.MasterBus{Volume: 1})
}

// JumpToMarker seeks to the named marker (case-insensitive).
func (s *Studio) JumpToMarker(name string) error {
	sess, ok := s.Session.Snapshot()
	if !ok {
		return ErrNoSession
	}
	m, ok := sess.Marker(name)
	if !ok {
		return fmt.Errorf("unknown marker %q", name)
	}
	s.Transport.SeekTo(m.PositionSamples)
	return nil
}

// Save folds the live mixer and transport state back into a copy of the
// session for persistence.
func (s *Studio) Save() (studio.Session, error) {
	sess, ok := s.Session.Snapshot()
	if !ok {
		return studio.Session{}, ErrNoSession
	}
	mix := s.Mixer.Snapshot()
	for i := range sess.Tracks {
		t := &sess.Tracks[i]
		if c, ok := mix.Channels[t.ID]; ok {
			t.Volume, t.Pan, t.Mute, t.Solo = c.Volume, c.Pan, c.Mute, c.Solo
		}
	}
	sess.Master.Volume, sess.Master.Pan, sess.Master.Mute = mix.Master.Volume, mix.Master.Pan, mix.Master.Mute
	tr := s.Transport.Snapshot()
	tr.State = studio.Stopped
	sess.Transport = tr
	return sess, nil
}

func (s *Studio) syncChannels(c SessionChange) {
	if c.Prev == nil || c.Next == nil {
		return // open and close reload the mixer as a whole
	}
	for _, t := range c.Next.Tracks {
		if c.Prev.Track(t.ID) == nil {
			s.Mixer.AddChannel(t)
		}
	}
	for _, t := range c.Prev.Tracks {
		if c.Next.Track(t.ID) == nil {
			s.Mixer.RemoveChannel(t.ID)
		}
	}
}
