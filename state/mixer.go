package state

import (
	"math"
	"slices"
	"sync"

	"github.com/vaist/studio"
)

type (
	// Channel is the mixer strip of one track or of the master bus.
	Channel struct {
		Volume float64    `json:"volume"`
		Pan    float64    `json:"pan"`
		Mute   bool       `json:"mute"`
		Solo   bool       `json:"solo"`
		Peak   [2]float32 `json:"peak"`
	}

	// MixerState is a snapshot of the whole mixer. HasSolo is derived: it is
	// true exactly when some channel has Solo set.
	MixerState struct {
		Channels map[string]Channel
		Order    []string
		Master   Channel
		HasSolo  bool
	}

	Mixer struct {
		mu    sync.Mutex
		state MixerState
		subs  listeners[MixerChange]
	}

	MixerChange struct {
		Prev, Next MixerState
		Origin     Origin
	}
)

func NewMixer() *Mixer {
	return &Mixer{state: MixerState{Channels: map[string]Channel{}, Master: Channel{Volume: 1}}}
}

// Audible reports whether the track should be heard: not muted, and either
// nothing is soloed or the track itself is.
func (s MixerState) Audible(id string) bool {
	c, ok := s.Channels[id]
	if !ok {
		return false
	}
	return !c.Mute && (!s.HasSolo || c.Solo)
}

func (s MixerState) Copy() MixerState {
	ret := s
	ret.Channels = make(map[string]Channel, len(s.Channels))
	for k, v := range s.Channels {
		ret.Channels[k] = v
	}
	ret.Order = slices.Clone(s.Order)
	return ret
}

func (m *Mixer) Snapshot() MixerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Copy()
}

func (m *Mixer) Subscribe(f func(MixerChange)) (cancel func()) {
	return m.subs.add(f)
}

func (m *Mixer) Channel(id string) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.Channels[id]
	return c, ok
}

func (m *Mixer) Master() Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Master
}

func (m *Mixer) HasSoloedTracks() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.HasSolo
}

func (m *Mixer) IsAudible(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Audible(id)
}

// Load replaces all channels with the strips of the given tracks and
// master bus.
func (m *Mixer) Load(tracks []studio.Track, master studio.MasterBus) {
	m.update(Load, func(s *MixerState) error {
		s.Channels = make(map[string]Channel, len(tracks))
		s.Order = s.Order[:0]
		for _, t := range tracks {
			s.Channels[t.ID] = channelOf(t.Volume, t.Pan, t.Mute, t.Solo)
			s.Order = append(s.Order, t.ID)
		}
		s.Master = channelOf(master.Volume, master.Pan, master.Mute, false)
		return nil
	})
}

// AddChannel adds a strip for a new track; an existing strip is left alone.
func (m *Mixer) AddChannel(t studio.Track) {
	m.update(User, func(s *MixerState) error {
		if _, ok := s.Channels[t.ID]; ok {
			return nil
		}
		s.Channels[t.ID] = channelOf(t.Volume, t.Pan, t.Mute, t.Solo)
		s.Order = append(s.Order, t.ID)
		return nil
	})
}

func (m *Mixer) RemoveChannel(id string) {
	m.update(User, func(s *MixerState) error {
		delete(s.Channels, id)
		s.Order = slices.DeleteFunc(s.Order, func(x string) bool { return x == id })
		return nil
	})
}

// SetVolume sets the track volume, clamped to [0, 1].
func (m *Mixer) SetVolume(id string, volume float64) error {
	return m.channel(id, func(c *Channel) { c.Volume = clampUnit(volume, 0, c.Volume) })
}

// SetPan sets the track pan, clamped to [-1, 1].
func (m *Mixer) SetPan(id string, pan float64) error {
	return m.channel(id, func(c *Channel) { c.Pan = clampUnit(pan, -1, c.Pan) })
}

func (m *Mixer) SetMute(id string, mute bool) error {
	return m.channel(id, func(c *Channel) { c.Mute = mute })
}

func (m *Mixer) ToggleMute(id string) error {
	return m.channel(id, func(c *Channel) { c.Mute = !c.Mute })
}

func (m *Mixer) SetSolo(id string, solo bool) error {
	return m.channel(id, func(c *Channel) { c.Solo = solo })
}

func (m *Mixer) ToggleSolo(id string) error {
	return m.channel(id, func(c *Channel) { c.Solo = !c.Solo })
}

// MuteAll mutes every track in one update.
func (m *Mixer) MuteAll() {
	m.all(func(c *Channel) { c.Mute = true })
}

func (m *Mixer) UnmuteAll() {
	m.all(func(c *Channel) { c.Mute = false })
}

func (m *Mixer) ClearSolos() {
	m.all(func(c *Channel) { c.Solo = false })
}

func (m *Mixer) SetMasterVolume(volume float64) {
	m.update(User, func(s *MixerState) error {
		s.Master.Volume = clampUnit(volume, 0, s.Master.Volume)
		return nil
	})
}

func (m *Mixer) SetMasterPan(pan float64) {
	m.update(User, func(s *MixerState) error {
		s.Master.Pan = clampUnit(pan, -1, s.Master.Pan)
		return nil
	})
}

func (m *Mixer) SetMasterMute(mute bool) {
	m.update(User, func(s *MixerState) error {
		s.Master.Mute = mute
		return nil
	})
}

// UpdatePeaks is reserved for the engine: it publishes the measured levels.
// Peaks of unknown tracks are dropped.
func (m *Mixer) UpdatePeaks(tracks map[string][2]float32, master [2]float32) {
	m.update(Internal, func(s *MixerState) error {
		for id, p := range tracks {
			if c, ok := s.Channels[id]; ok {
				c.Peak = p
				s.Channels[id] = c
			}
		}
		s.Master.Peak = master
		return nil
	})
}

func (m *Mixer) channel(id string, f func(*Channel)) error {
	return m.update(User, func(s *MixerState) error {
		c, ok := s.Channels[id]
		if !ok {
			return ErrUnknownTrack
		}
		f(&c)
		s.Channels[id] = c
		return nil
	})
}

func (m *Mixer) all(f func(*Channel)) {
	m.update(User, func(s *MixerState) error {
		for id, c := range s.Channels {
			f(&c)
			s.Channels[id] = c
		}
		return nil
	})
}

// update applies f to a private copy and publishes it only if f succeeded,
// so a failed or partial update is never observed.
func (m *Mixer) update(origin Origin, f func(*MixerState) error) error {
	m.mu.Lock()
	prev := m.state
	next := m.state.Copy()
	if err := f(&next); err != nil {
		m.mu.Unlock()
		return err
	}
	next.HasSolo = false
	for _, c := range next.Channels {
		next.HasSolo = next.HasSolo || c.Solo
	}
	m.state = next
	m.mu.Unlock()
	m.subs.notify(MixerChange{Prev: prev, Next: next.Copy(), Origin: origin})
	return nil
}

func channelOf(volume, pan float64, mute, solo bool) Channel {
	return Channel{Volume: clampUnit(volume, 0, 1), Pan: clampUnit(pan, -1, 0), Mute: mute, Solo: solo}
}

// clampUnit clamps v to [lo, 1]; NaN keeps the fallback.
func clampUnit(v, lo, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return clamp(v, lo, 1)
}
