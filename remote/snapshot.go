package remote

import (
	"github.com/vaist/studio/engine"
	"github.com/vaist/studio/state"
	"github.com/vaist/studio/timebase"
)

type (
	// Snapshot is the display state pushed to UI clients.
	Snapshot struct {
		Position      int64                    `json:"position"`
		BBT           string                   `json:"bbt"`
		Clock         string                   `json:"clock"`
		State         string                   `json:"state"`
		Loop          Loop                     `json:"loop"`
		BPM           float64                  `json:"bpm"`
		TimeSignature string                   `json:"timeSignature"`
		SampleRate    int                      `json:"sampleRate"`
		Metronome     bool                     `json:"metronome"`
		HasSolo       bool                     `json:"hasSolo"`
		Tracks        map[string]TrackSnapshot `json:"tracks"`
		Master        state.Channel            `json:"master"`
		MasterLevel   engine.Decibels          `json:"masterLevelDb"`
	}

	Loop struct {
		Enabled bool  `json:"enabled"`
		Start   int64 `json:"start"`
		End     int64 `json:"end"`
	}

	// TrackSnapshot is a mixer strip with its display level in dBFS.
	TrackSnapshot struct {
		state.Channel
		Audible bool            `json:"audible"`
		Level   engine.Decibels `json:"levelDb"`
	}
)

// TakeSnapshot reads the transport and the mixer of st. Levels are the
// instantaneous peaks; Ballistics smooths them.
func TakeSnapshot(st *state.Studio) Snapshot {
	tr := st.Transport.Snapshot()
	mix := st.Mixer.Snapshot()
	tempo := timebase.TempoOf(tr)
	s := Snapshot{
		Position:      tr.PositionSamples,
		BBT:           tempo.SamplesToBBT(tr.PositionSamples).String(),
		Clock:         timebase.FormatClock(tr.PositionSamples, tr.SampleRate),
		State:         tr.State.String(),
		Loop:          Loop{Enabled: tr.Loop.Enabled, Start: tr.Loop.StartSamples, End: tr.Loop.EndSamples},
		BPM:           tr.BPM,
		TimeSignature: tr.TimeSignature.String(),
		SampleRate:    tr.SampleRate,
		Metronome:     tr.Metronome.Enabled,
		HasSolo:       mix.HasSolo,
		Tracks:        make(map[string]TrackSnapshot, len(mix.Channels)),
		Master:        mix.Master,
		MasterLevel:   instantLevel(mix.Master.Peak),
	}
	for id, c := range mix.Channels {
		s.Tracks[id] = TrackSnapshot{Channel: c, Audible: mix.Audible(id), Level: instantLevel(c.Peak)}
	}
	return s
}
