package studio

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ReadSession parses a session document. The document is yaml; since yaml
// is a superset of json, .json session files are accepted too. Missing
// fields get their defaults (unity gain, 120 BPM 4/4 at 48 kHz) and the
// result is validated.
func ReadSession(r io.Reader) (Session, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Session{}, fmt.Errorf("could not read session: %w", err)
	}
	var s Session
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("the session could not be parsed as .yml or .json: %w", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}

// WriteSession writes the session as yaml.
func WriteSession(w io.Writer, s Session) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("could not encode session: %w", err)
	}
	return enc.Close()
}

func (t *Track) UnmarshalYAML(value *yaml.Node) error {
	type plain Track
	p := plain{Volume: 1}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Track(p)
	return nil
}

func (c *AudioClip) UnmarshalYAML(value *yaml.Node) error {
	type plain AudioClip
	p := plain{Gain: 1}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = AudioClip(p)
	return nil
}

func (m *MasterBus) UnmarshalYAML(value *yaml.Node) error {
	type plain MasterBus
	p := plain{Volume: 1}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*m = MasterBus(p)
	return nil
}

func (t *TransportConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain TransportConfig
	p := plain(DefaultTransport())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = TransportConfig(p)
	return nil
}

// Normalize fills in derived and defaulted fields: clip track ids, dense
// slot indices, order indices and a sane transport. A session that came
// without a master section gets unity master volume.
func (s *Session) Normalize() {
	if s.Transport.SampleRate <= 0 {
		s.Transport.SampleRate = DefaultSampleRate
	}
	if s.Transport.BPM == 0 {
		s.Transport.BPM = DefaultBPM
	}
	if !s.Transport.TimeSignature.Valid() {
		s.Transport.TimeSignature = TimeSignature{Numerator: 4, Denominator: 4}
	}
	if s.Transport.Loop.EndSamples <= s.Transport.Loop.StartSamples {
		s.Transport.Loop.EndSamples = s.Transport.Loop.StartSamples + int64(s.Transport.SampleRate)*2
	}
	for i := range s.Tracks {
		t := &s.Tracks[i]
		for j := range t.Inserts {
			t.Inserts[j].Index = j
		}
		for j := range t.Clips {
			t.Clips[j].TrackID = t.ID
		}
		if t.Order == 0 {
			t.Order = i
		}
	}
	for j := range s.Master.Inserts {
		s.Master.Inserts[j].Index = j
	}
}

// Validate checks the structural invariants of a session. All returned
// errors wrap ErrInvalidSession.
func (s *Session) Validate() error {
	var errs []error
	ids := map[string]bool{}
	clipIDs := map[string]bool{}
	for _, t := range s.Tracks {
		if t.ID == "" {
			errs = append(errs, errors.New("track without id"))
			continue
		}
		if ids[t.ID] {
			errs = append(errs, fmt.Errorf("duplicate track id %q", t.ID))
		}
		ids[t.ID] = true
		if len(t.Inserts) > MaxInserts {
			errs = append(errs, fmt.Errorf("track %q has %d inserts, at most %d allowed", t.ID, len(t.Inserts), MaxInserts))
		}
		for i, slot := range t.Inserts {
			if slot.Index != i {
				errs = append(errs, fmt.Errorf("track %q insert slot %d has index %d", t.ID, i, slot.Index))
			}
		}
		for _, c := range t.Clips {
			if c.ID == "" {
				errs = append(errs, fmt.Errorf("track %q has a clip without id", t.ID))
				continue
			}
			if clipIDs[c.ID] {
				errs = append(errs, fmt.Errorf("duplicate clip id %q", c.ID))
			}
			clipIDs[c.ID] = true
			if c.TrackID != t.ID {
				errs = append(errs, fmt.Errorf("clip %q belongs to track %q but is placed on %q", c.ID, c.TrackID, t.ID))
			}
			if c.EndSamples <= c.StartSamples {
				errs = append(errs, fmt.Errorf("clip %q ends (%d) before it starts (%d)", c.ID, c.EndSamples, c.StartSamples))
			}
			if c.StartSamples < 0 || c.OffsetSamples < 0 {
				errs = append(errs, fmt.Errorf("clip %q has a negative start or offset", c.ID))
			}
		}
	}
	if len(s.Master.Inserts) > MaxInserts {
		errs = append(errs, fmt.Errorf("master bus has %d inserts, at most %d allowed", len(s.Master.Inserts), MaxInserts))
	}
	errs = append(errs, s.sharedInstances()...)
	for _, t := range s.Tracks {
		if !t.RoutesToMaster() && !ids[t.Output] {
			errs = append(errs, fmt.Errorf("track %q routes to unknown bus %q", t.ID, t.Output))
		}
	}
	if id, ok := s.routingCycle(); ok {
		errs = append(errs, fmt.Errorf("track %q is part of a routing cycle", id))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSession, errors.Join(errs...))
	}
	return nil
}

// sharedInstances reports insert instances named by more than one slot. An
// instance keeps DSP state, so it can serve a single chain only.
func (s *Session) sharedInstances() []error {
	var errs []error
	owner := map[string]string{}
	claim := func(where string, slots []InsertSlot) {
		for _, slot := range slots {
			if slot.Instance == "" {
				continue
			}
			if prev, ok := owner[slot.Instance]; ok {
				errs = append(errs, fmt.Errorf("insert instance %q is used by %s and %s", slot.Instance, prev, where))
				continue
			}
			owner[slot.Instance] = where
		}
	}
	for _, t := range s.Tracks {
		claim(fmt.Sprintf("track %q", t.ID), t.Inserts)
	}
	claim("the master bus", s.Master.Inserts)
	return errs
}

// routingCycle returns the id of a track whose output chain never reaches
// the master bus.
func (s *Session) routingCycle() (string, bool) {
	for _, t := range s.Tracks {
		seen := map[string]bool{}
		cur := s.Track(t.ID)
		for cur != nil && !cur.RoutesToMaster() {
			if seen[cur.ID] {
				return t.ID, true
			}
			seen[cur.ID] = true
			cur = s.Track(cur.Output)
		}
	}
	return "", false
}

// ResolveOutput returns the routing target the track actually feeds: its
// bus if that bus exists and does not lead back into a cycle, otherwise the
// master bus.
func (s *Session) ResolveOutput(trackID string) string {
	t := s.Track(trackID)
	if t == nil || t.RoutesToMaster() {
		return MasterOutput
	}
	seen := map[string]bool{trackID: true}
	cur := s.Track(t.Output)
	for cur != nil {
		if seen[cur.ID] {
			return MasterOutput
		}
		if cur.RoutesToMaster() {
			return t.Output
		}
		seen[cur.ID] = true
		cur = s.Track(cur.Output)
	}
	return MasterOutput
}
