package studio_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/vaist/studio"
)

const sessionYAML = `
name: demo
transport:
  bpm: 90
  timesignature: {numerator: 3, denominator: 4}
tracks:
  - id: drums
    inserts: [{instance: comp}, {}]
    clips:
      - {id: c1, asset: kick.wav, start: 0, end: 48000}
  - id: bass
    volume: 0.5
    output: drums
    clips:
      - {id: c2, asset: bass.wav, start: 48000, end: 96000, gain: 0.25}
markers:
  - {id: m1, name: Chorus, position: 96000}
`

func TestReadSessionDefaults(t *testing.T) {
	s, err := studio.ReadSession(strings.NewReader(sessionYAML))
	if err != nil {
		t.Fatalf("ReadSession failed: %v", err)
	}
	if s.Transport.SampleRate != studio.DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", s.Transport.SampleRate, studio.DefaultSampleRate)
	}
	if s.Transport.BPM != 90 {
		t.Errorf("bpm = %v, want 90", s.Transport.BPM)
	}
	if s.Master.Volume != 1 {
		t.Errorf("master volume = %v, want 1", s.Master.Volume)
	}
	drums := s.Track("drums")
	if drums == nil || drums.Volume != 1 {
		t.Fatalf("drums track should default to unity volume, got %+v", drums)
	}
	if drums.Inserts[1].Index != 1 {
		t.Errorf("insert slot index not normalized: %+v", drums.Inserts)
	}
	if c := drums.Clips[0]; c.TrackID != "drums" || c.Gain != 1 {
		t.Errorf("clip not normalized: %+v", c)
	}
	if got := s.Track("bass").Clips[0].Gain; got != 0.25 {
		t.Errorf("explicit clip gain = %v, want 0.25", got)
	}
	if m, ok := s.Marker("chorus"); !ok || m.PositionSamples != 96000 {
		t.Errorf("marker lookup failed: %+v %v", m, ok)
	}
	if got := s.ResolveOutput("bass"); got != "drums" {
		t.Errorf("bass output = %q, want drums", got)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s, err := studio.ReadSession(strings.NewReader(sessionYAML))
	if err != nil {
		t.Fatalf("ReadSession failed: %v", err)
	}
	var buf bytes.Buffer
	if err := studio.WriteSession(&buf, s); err != nil {
		t.Fatalf("WriteSession failed: %v", err)
	}
	s2, err := studio.ReadSession(&buf)
	if err != nil {
		t.Fatalf("re-reading written session failed: %v", err)
	}
	if len(s2.Tracks) != 2 || s2.Tracks[1].Volume != 0.5 || s2.Transport.TimeSignature.Numerator != 3 {
		t.Errorf("session did not survive a round trip: %+v", s2)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		session studio.Session
	}{
		{"duplicate track", studio.Session{Tracks: []studio.Track{{ID: "a"}, {ID: "a"}}}},
		{"inverted clip", studio.Session{Tracks: []studio.Track{{ID: "a", Clips: []studio.AudioClip{{ID: "c", TrackID: "a", StartSamples: 10, EndSamples: 10}}}}}},
		{"sparse slots", studio.Session{Tracks: []studio.Track{{ID: "a", Inserts: []studio.InsertSlot{{Index: 1}}}}}},
		{"unknown bus", studio.Session{Tracks: []studio.Track{{ID: "a", Output: "nope"}}}},
		{"cycle", studio.Session{Tracks: []studio.Track{{ID: "a", Output: "b"}, {ID: "b", Output: "a"}}}},
		{"shared insert", studio.Session{Tracks: []studio.Track{
			{ID: "a", Inserts: []studio.InsertSlot{{Index: 0, Instance: "dly"}}},
			{ID: "b", Inserts: []studio.InsertSlot{{Index: 0, Instance: "dly"}}},
		}}},
		{"insert twice on one track", studio.Session{Tracks: []studio.Track{
			{ID: "a", Inserts: []studio.InsertSlot{{Index: 0, Instance: "dly"}, {Index: 1, Instance: "dly"}}},
		}}},
		{"track and master share insert", studio.Session{
			Tracks: []studio.Track{{ID: "a", Inserts: []studio.InsertSlot{{Index: 0, Instance: "eq"}}}},
			Master: studio.MasterBus{Inserts: []studio.InsertSlot{{Index: 0, Instance: "eq"}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if !errors.Is(err, studio.ErrInvalidSession) {
				t.Fatalf("expected ErrInvalidSession, got %v", err)
			}
		})
	}
}

func TestSetInsertKeepsSlotsDense(t *testing.T) {
	var track studio.Track
	if err := track.SetInsert(studio.InsertSlot{Index: 3, Instance: "eq"}); err != nil {
		t.Fatalf("SetInsert failed: %v", err)
	}
	if len(track.Inserts) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(track.Inserts))
	}
	for i, s := range track.Inserts {
		if s.Index != i {
			t.Errorf("slot %d has index %d", i, s.Index)
		}
	}
	if err := track.SetInsert(studio.InsertSlot{Index: studio.MaxInserts}); err == nil {
		t.Errorf("expected error for slot beyond MaxInserts")
	}
}

func TestLoopWrap(t *testing.T) {
	l := studio.Loop{Enabled: true, StartSamples: 0, EndSamples: 96000}
	if got := l.Wrap(95999 + 2000); got != (95999+2000-0)%96000 {
		t.Errorf("Wrap = %d, want %d", got, (95999+2000)%96000)
	}
	l = studio.Loop{Enabled: true, StartSamples: 1000, EndSamples: 2000}
	if got := l.Wrap(2500); got != 1500 {
		t.Errorf("Wrap = %d, want 1500", got)
	}
	if got := l.Wrap(1999); got != 1999 {
		t.Errorf("positions before the end should be untouched, got %d", got)
	}
}

func TestWavHeader(t *testing.T) {
	buf := studio.NewAudioBuffer(48000, 2, 10)
	wav, err := studio.Wav(buf, true)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE magic")
	}
	if len(wav) != 44+10*2*2 {
		t.Errorf("pcm16 wav length = %d, want %d", len(wav), 44+40)
	}
	wav, err = studio.Wav(buf, false)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	if len(wav) != 58+10*2*4 {
		t.Errorf("float wav length = %d, want %d", len(wav), 58+80)
	}
	if string(wav[38:42]) != "fact" {
		t.Errorf("float wav has no fact chunk at offset 38")
	}
}
