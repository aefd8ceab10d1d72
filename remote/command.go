package remote

import (
	"errors"
	"fmt"

	"github.com/vaist/studio/state"
)

// Command is one UI action. Which fields are read depends on Action.
type Command struct {
	Action      string  `json:"action"`
	Track       string  `json:"track,omitempty"`
	Value       float64 `json:"value,omitempty"`
	On          bool    `json:"on,omitempty"`
	Samples     int64   `json:"samples,omitempty"`
	Start       int64   `json:"start,omitempty"`
	End         int64   `json:"end,omitempty"`
	Bar         int     `json:"bar,omitempty"`
	Numerator   int     `json:"numerator,omitempty"`
	Denominator int     `json:"denominator,omitempty"`
	Marker      string  `json:"marker,omitempty"`
	Instance    string  `json:"instance,omitempty"`
	Param       string  `json:"param,omitempty"`
}

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrNoInserts     = errors.New("no insert rack")
)

// Apply maps the command onto the documented transport and mixer actions.
func Apply(st *state.Studio, c Command) error {
	tr, mx := st.Transport, st.Mixer
	switch c.Action {
	case "play":
		tr.Play()
	case "pause":
		tr.Pause()
	case "stop":
		tr.Stop()
	case "record":
		tr.Record()
	case "seek":
		tr.SeekTo(c.Samples)
	case "jumpToBar":
		tr.JumpToBar(c.Bar)
	case "jumpToMarker":
		return st.JumpToMarker(c.Marker)
	case "setLoopRegion":
		tr.SetLoopRegion(c.Start, c.End)
	case "toggleLoop":
		tr.ToggleLoop()
	case "setLoopEnabled":
		tr.SetLoopEnabled(c.On)
	case "setBpm":
		tr.SetBPM(c.Value)
	case "setTimeSignature":
		tr.SetTimeSignature(c.Numerator, c.Denominator)
	case "setMetronome":
		tr.SetMetronome(c.On)
	case "setMetronomeVolume":
		tr.SetMetronomeVolume(c.Value)
	case "setPreRollBars":
		tr.SetPreRollBars(c.Bar)
	case "setVolume":
		return mx.SetVolume(c.Track, c.Value)
	case "setPan":
		return mx.SetPan(c.Track, c.Value)
	case "setMute":
		return mx.SetMute(c.Track, c.On)
	case "toggleMute":
		return mx.ToggleMute(c.Track)
	case "setSolo":
		return mx.SetSolo(c.Track, c.On)
	case "toggleSolo":
		return mx.ToggleSolo(c.Track)
	case "muteAll":
		mx.MuteAll()
	case "unmuteAll":
		mx.UnmuteAll()
	case "clearSolos":
		mx.ClearSolos()
	case "setMasterVolume":
		mx.SetMasterVolume(c.Value)
	case "setMasterPan":
		mx.SetMasterPan(c.Value)
	case "setMasterMute":
		mx.SetMasterMute(c.On)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
	return nil
}
