package studio

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Session is the unit that gets loaded and saved as a whole: the tracks
	// with their clips, the master bus, the transport configuration and the
	// named markers. A Session is a plain value; the state package owns the
	// live copy and is its only writer.
	Session struct {
		ID        string          `yaml:"id,omitempty"`
		Name      string          `yaml:"name,omitempty"`
		Tracks    []Track         `yaml:"tracks"`
		Master    MasterBus       `yaml:"master"`
		Transport TransportConfig `yaml:"transport"`
		Markers   []Marker        `yaml:"markers,omitempty"`
	}

	// Track is one lane of audio clips routed through its own insert chain,
	// gain and pan stages. Output names the bus the track feeds: empty or
	// MasterOutput means the master bus, otherwise the ID of another track
	// acting as a bus.
	Track struct {
		ID      string       `yaml:"id"`
		Name    string       `yaml:"name,omitempty"`
		Color   string       `yaml:"color,omitempty"`
		Volume  float64      `yaml:"volume"`
		Pan     float64      `yaml:"pan"`
		Mute    bool         `yaml:"mute,omitempty"`
		Solo    bool         `yaml:"solo,omitempty"`
		Armed   bool         `yaml:"armed,omitempty"`
		Inserts []InsertSlot `yaml:"inserts,omitempty,flow"`
		Clips   []AudioClip  `yaml:"clips,omitempty"`
		Output  string       `yaml:"output,omitempty"`
		Order   int          `yaml:"order"`
	}

	// InsertSlot is one position in an insert chain. Instance refers to a
	// processing instance owned by the insert host; an empty Instance is an
	// empty slot. Index always equals the position of the slot in the chain.
	InsertSlot struct {
		Index    int    `yaml:"index"`
		Instance string `yaml:"instance,omitempty"`
		Bypass   bool   `yaml:"bypass,omitempty"`
	}

	// AudioClip places a window of a cached audio asset on a track. The window
	// [StartSamples, EndSamples) is in timeline samples; OffsetSamples trims
	// into the source asset.
	AudioClip struct {
		ID             string  `yaml:"id"`
		TrackID        string  `yaml:"track,omitempty"`
		AssetID        string  `yaml:"asset"`
		StartSamples   int64   `yaml:"start"`
		EndSamples     int64   `yaml:"end"`
		OffsetSamples  int64   `yaml:"offset,omitempty"`
		Gain           float64 `yaml:"gain"`
		Muted          bool    `yaml:"muted,omitempty"`
		FadeInSamples  int64   `yaml:"fadein,omitempty"`
		FadeOutSamples int64   `yaml:"fadeout,omitempty"`
	}

	// MasterBus is the single downstream mixing point all tracks feed.
	MasterBus struct {
		Volume  float64      `yaml:"volume"`
		Pan     float64      `yaml:"pan"`
		Mute    bool         `yaml:"mute,omitempty"`
		Inserts []InsertSlot `yaml:"inserts,omitempty,flow"`
		Peak    [2]float32   `yaml:"-"`
	}

	// Marker is a named position on the timeline.
	Marker struct {
		ID              string `yaml:"id"`
		Name            string `yaml:"name"`
		PositionSamples int64  `yaml:"position"`
	}
)

const (
	// MaxInserts is the number of insert slots on every track and the master bus.
	MaxInserts = 8
	// MasterOutput is the routing target of tracks feeding the master bus.
	MasterOutput = "master"
)

var ErrInvalidSession = errors.New("invalid session")

// Copy makes a deep copy of a Session.
func (s *Session) Copy() Session {
	tracks := make([]Track, len(s.Tracks))
	for i, t := range s.Tracks {
		tracks[i] = t.Copy()
	}
	markers := make([]Marker, len(s.Markers))
	copy(markers, s.Markers)
	return Session{
		ID:        s.ID,
		Name:      s.Name,
		Tracks:    tracks,
		Master:    s.Master.Copy(),
		Transport: s.Transport,
		Markers:   markers,
	}
}

// Copy makes a deep copy of a Track.
func (t *Track) Copy() Track {
	ret := *t
	ret.Inserts = make([]InsertSlot, len(t.Inserts))
	copy(ret.Inserts, t.Inserts)
	ret.Clips = make([]AudioClip, len(t.Clips))
	copy(ret.Clips, t.Clips)
	return ret
}

func (m *MasterBus) Copy() MasterBus {
	ret := *m
	ret.Inserts = make([]InsertSlot, len(m.Inserts))
	copy(ret.Inserts, m.Inserts)
	return ret
}

// Track returns a pointer to the track with the given id, or nil.
func (s *Session) Track(id string) *Track {
	for i := range s.Tracks {
		if s.Tracks[i].ID == id {
			return &s.Tracks[i]
		}
	}
	return nil
}

// TrackIDs returns the ids of all tracks, in session order.
func (s *Session) TrackIDs() []string {
	ret := make([]string, len(s.Tracks))
	for i, t := range s.Tracks {
		ret[i] = t.ID
	}
	return ret
}

// Marker returns the first marker with the given name (case-insensitive).
func (s *Session) Marker(name string) (Marker, bool) {
	for _, m := range s.Markers {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Marker{}, false
}

// AssetIDs returns the distinct asset ids referenced by clips in the session.
func (s *Session) AssetIDs() []string {
	seen := map[string]bool{}
	var ret []string
	for _, t := range s.Tracks {
		for _, c := range t.Clips {
			if c.AssetID != "" && !seen[c.AssetID] {
				seen[c.AssetID] = true
				ret = append(ret, c.AssetID)
			}
		}
	}
	return ret
}

// EndSamples is the end of the last clip, the length of the arrangement.
func (s *Session) EndSamples() int64 {
	var end int64
	for _, t := range s.Tracks {
		for _, c := range t.Clips {
			end = max(end, c.EndSamples)
		}
	}
	return end
}

// RoutesToMaster reports whether the track feeds the master bus directly.
func (t *Track) RoutesToMaster() bool {
	return t.Output == "" || t.Output == MasterOutput
}

// Insert returns the slot at index, or an empty slot if the index is beyond
// the current chain.
func (t *Track) Insert(index int) InsertSlot {
	if index < 0 || index >= len(t.Inserts) {
		return InsertSlot{Index: index}
	}
	return t.Inserts[index]
}

// SetInsert sets the slot at slot.Index, growing the chain with empty slots
// until it is long enough, so that slots stay dense.
func (t *Track) SetInsert(slot InsertSlot) error {
	var err error
	t.Inserts, err = setSlot(t.Inserts, slot)
	return err
}

func (m *MasterBus) SetInsert(slot InsertSlot) error {
	var err error
	m.Inserts, err = setSlot(m.Inserts, slot)
	return err
}

func setSlot(slots []InsertSlot, slot InsertSlot) ([]InsertSlot, error) {
	if slot.Index < 0 || slot.Index >= MaxInserts {
		return slots, fmt.Errorf("insert slot %d out of range [0,%d)", slot.Index, MaxInserts)
	}
	for len(slots) <= slot.Index {
		slots = append(slots, InsertSlot{Index: len(slots)})
	}
	slots[slot.Index] = slot
	return slots, nil
}

// DurationSamples is the length of the clip window in samples.
func (c *AudioClip) DurationSamples() int64 {
	return c.EndSamples - c.StartSamples
}

// Contains reports whether pos lies inside the clip window [start, end).
func (c *AudioClip) Contains(pos int64) bool {
	return pos >= c.StartSamples && pos < c.EndSamples
}

// Overlaps reports whether the clip window intersects [start, end).
func (c *AudioClip) Overlaps(start, end int64) bool {
	return c.StartSamples < end && start < c.EndSamples
}
