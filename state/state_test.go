package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaist/studio"
	"github.com/vaist/studio/state"
)

func TestTransportTransitions(t *testing.T) {
	tr := state.NewTransport(studio.DefaultTransport())
	tr.Pause()
	assert.Equal(t, studio.Stopped, tr.State(), "pause while stopped is a no-op")

	tr.SeekTo(1234)
	tr.Play()
	assert.True(t, tr.IsPlaying())
	tr.Play()
	assert.Equal(t, studio.Playing, tr.State())

	tr.Pause()
	assert.Equal(t, studio.Paused, tr.State())
	assert.EqualValues(t, 1234, tr.Snapshot().PositionSamples, "pause keeps the position")

	tr.Record()
	assert.True(t, tr.IsRolling())
	assert.False(t, tr.IsPlaying())
	tr.Play()
	assert.Equal(t, studio.Recording, tr.State(), "play while recording is a no-op")

	tr.Stop()
	assert.Equal(t, studio.Stopped, tr.State())
	assert.EqualValues(t, 0, tr.Snapshot().PositionSamples, "stop rewinds")
}

func TestTransportClamps(t *testing.T) {
	tr := state.NewTransport(studio.DefaultTransport())
	tr.SeekTo(-5)
	assert.EqualValues(t, 0, tr.Snapshot().PositionSamples)

	tr.SetBPM(5)
	assert.Equal(t, float64(studio.MinBPM), tr.Snapshot().BPM)
	tr.SetBPM(5000)
	assert.Equal(t, float64(studio.MaxBPM), tr.Snapshot().BPM)

	tr.SetLoopRegion(100, 50)
	loop := tr.Snapshot().Loop
	assert.EqualValues(t, 100, loop.StartSamples)
	assert.EqualValues(t, 101, loop.EndSamples)

	tr.SetTimeSignature(0, 6)
	assert.Equal(t, studio.TimeSignature{Numerator: 1, Denominator: 4}, tr.Snapshot().TimeSignature)
	tr.SetTimeSignature(7, 8)
	assert.Equal(t, studio.TimeSignature{Numerator: 7, Denominator: 8}, tr.Snapshot().TimeSignature)

	tr.SetMetronomeVolume(3)
	assert.Equal(t, 1.0, tr.Snapshot().Metronome.Volume)
	tr.SetPreRollBars(20)
	assert.Equal(t, state.MaxPreRollBars, tr.Snapshot().PreRollBars)
}

func TestToggleLoopKeepsBounds(t *testing.T) {
	tr := state.NewTransport(studio.DefaultTransport())
	tr.SetLoopRegion(0, 96000)
	tr.ToggleLoop()
	loop := tr.Snapshot().Loop
	assert.True(t, loop.Enabled)
	assert.EqualValues(t, 0, loop.StartSamples)
	assert.EqualValues(t, 96000, loop.EndSamples)
	tr.ToggleLoop()
	assert.False(t, tr.Snapshot().Loop.Enabled)
	assert.EqualValues(t, 96000, tr.Snapshot().Loop.EndSamples)
}

func TestJumpToBar(t *testing.T) {
	tr := state.NewTransport(studio.DefaultTransport()) // 120 BPM, 4/4, 48 kHz
	tr.JumpToBar(3)
	assert.EqualValues(t, 2*96000, tr.Snapshot().PositionSamples)
	tr.SetBPM(60)
	assert.EqualValues(t, 2*96000, tr.Snapshot().PositionSamples, "tempo changes do not move the playhead")
	tr.JumpToBar(0)
	assert.EqualValues(t, 0, tr.Snapshot().PositionSamples)
}

func TestTransportListeners(t *testing.T) {
	tr := state.NewTransport(studio.DefaultTransport())
	var changes []state.TransportChange
	cancel := tr.Subscribe(func(c state.TransportChange) { changes = append(changes, c) })

	tr.Play()
	tr.UpdatePosition(480)
	tr.SeekTo(0)
	tr.Play() // no change, no notification
	require.Len(t, changes, 3)
	assert.True(t, changes[0].StateChanged())
	assert.Equal(t, state.Internal, changes[1].Origin)
	assert.False(t, changes[1].Seeked())
	assert.True(t, changes[2].Seeked())

	cancel()
	cancel()
	tr.Stop()
	assert.Len(t, changes, 3)
}

func TestAdvancePositionLosesToSeek(t *testing.T) {
	tr := state.NewTransport(studio.DefaultTransport())
	assert.False(t, tr.AdvancePosition(0, 480), "stopped transport does not advance")
	assert.EqualValues(t, 0, tr.Snapshot().PositionSamples)

	tr.Play()
	assert.True(t, tr.AdvancePosition(0, 480))
	tr.SeekTo(1000)
	assert.False(t, tr.AdvancePosition(480, 960), "position read before the seek")
	assert.EqualValues(t, 1000, tr.Snapshot().PositionSamples)
	assert.True(t, tr.AdvancePosition(1000, 1480))
	assert.EqualValues(t, 1480, tr.Snapshot().PositionSamples)
}

func newMixer(ids ...string) *state.Mixer {
	m := state.NewMixer()
	tracks := make([]studio.Track, len(ids))
	for i, id := range ids {
		tracks[i] = studio.Track{ID: id, Volume: 1}
	}
	m.Load(tracks, studio.MasterBus{Volume: 1})
	return m
}

func TestMixerClamps(t *testing.T) {
	m := newMixer("a")
	require.NoError(t, m.SetVolume("a", 1.5))
	require.NoError(t, m.SetPan("a", -2))
	c, ok := m.Channel("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, c.Volume)
	assert.Equal(t, -1.0, c.Pan)

	require.NoError(t, m.SetVolume("a", -1))
	c, _ = m.Channel("a")
	assert.Equal(t, 0.0, c.Volume)

	m.SetMasterVolume(7)
	m.SetMasterPan(3)
	assert.Equal(t, 1.0, m.Master().Volume)
	assert.Equal(t, 1.0, m.Master().Pan)

	assert.ErrorIs(t, m.SetVolume("nope", 0.5), state.ErrUnknownTrack)
}

func TestSoloExclusivity(t *testing.T) {
	m := newMixer("a", "b", "c")
	assert.False(t, m.HasSoloedTracks())
	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, m.IsAudible(id))
	}

	require.NoError(t, m.ToggleSolo("a"))
	assert.True(t, m.HasSoloedTracks())
	assert.True(t, m.IsAudible("a"))
	assert.False(t, m.IsAudible("b"), "non-soloed track is silent even unmuted")
	c, _ := m.Channel("b")
	assert.False(t, c.Mute)

	require.NoError(t, m.SetMute("a", true))
	assert.False(t, m.IsAudible("a"), "mute wins over solo")

	require.NoError(t, m.ToggleSolo("a"))
	assert.False(t, m.HasSoloedTracks())
	assert.True(t, m.IsAudible("b"))
}

func TestSoloInvariant(t *testing.T) {
	m := newMixer("a", "b", "c", "d")
	ops := []func(){
		func() { m.ToggleSolo("b") },
		func() { m.ToggleMute("c") },
		func() { m.ToggleSolo("d") },
		func() { m.ToggleSolo("b") },
		func() { m.MuteAll() },
		func() { m.UnmuteAll() },
		func() { m.ClearSolos() },
		func() { m.SetSolo("a", true) },
	}
	for i, op := range ops {
		op()
		s := m.Snapshot()
		soloed := false
		for _, c := range s.Channels {
			soloed = soloed || c.Solo
		}
		require.Equal(t, soloed, s.HasSolo, "step %d", i)
		for id, c := range s.Channels {
			assert.Equal(t, !c.Mute && (!soloed || c.Solo), s.Audible(id), "step %d track %s", i, id)
		}
	}
}

func TestBulkOpsAreOneChange(t *testing.T) {
	m := newMixer("a", "b", "c")
	n := 0
	m.Subscribe(func(c state.MixerChange) {
		n++
		for _, ch := range c.Next.Channels {
			assert.True(t, ch.Mute, "listener must never see a partial mute-all")
		}
	})
	m.MuteAll()
	assert.Equal(t, 1, n)
}

func TestUpdatePeaks(t *testing.T) {
	m := newMixer("a")
	var origin state.Origin = -1
	m.Subscribe(func(c state.MixerChange) { origin = c.Origin })
	m.UpdatePeaks(map[string][2]float32{"a": {0.5, 0.5}, "ghost": {1, 1}}, [2]float32{0.25, 0.25})
	assert.Equal(t, state.Internal, origin)
	c, _ := m.Channel("a")
	assert.Equal(t, [2]float32{0.5, 0.5}, c.Peak)
	assert.Equal(t, [2]float32{0.25, 0.25}, m.Master().Peak)
	_, ok := m.Channel("ghost")
	assert.False(t, ok)
}

func testSession() studio.Session {
	return studio.Session{
		Name: "demo",
		Tracks: []studio.Track{
			{ID: "drums", Volume: 0.8, Clips: []studio.AudioClip{
				{ID: "c1", AssetID: "kick", StartSamples: 0, EndSamples: 48000, Gain: 1},
			}},
			{ID: "bass", Volume: 1, Solo: true},
		},
		Master:    studio.MasterBus{Volume: 1},
		Transport: studio.DefaultTransport(),
		Markers:   []studio.Marker{{ID: "m1", Name: "Chorus", PositionSamples: 96000}},
	}
}

func TestStudioOpenSeedsStores(t *testing.T) {
	s := state.NewStudio()
	require.NoError(t, s.Open(testSession()))
	c, ok := s.Mixer.Channel("drums")
	require.True(t, ok)
	assert.Equal(t, 0.8, c.Volume)
	assert.True(t, s.Mixer.HasSoloedTracks())
	assert.False(t, s.Mixer.IsAudible("drums"))
	assert.Equal(t, 120.0, s.Transport.Snapshot().BPM)

	require.NoError(t, s.JumpToMarker("chorus"))
	assert.EqualValues(t, 96000, s.Transport.Snapshot().PositionSamples)
	assert.Error(t, s.JumpToMarker("bridge"))
}

func TestStudioKeepsChannelsInSync(t *testing.T) {
	s := state.NewStudio()
	require.NoError(t, s.Open(testSession()))
	id, err := s.Session.AddTrack(studio.Track{Name: "keys", Volume: 0.5})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	c, ok := s.Mixer.Channel(id)
	require.True(t, ok)
	assert.Equal(t, 0.5, c.Volume)

	require.NoError(t, s.Session.RemoveTrack("drums"))
	_, ok = s.Mixer.Channel("drums")
	assert.False(t, ok)
	assert.ErrorIs(t, s.Session.RemoveTrack("drums"), state.ErrUnknownTrack)
}

func TestStudioSave(t *testing.T) {
	s := state.NewStudio()
	require.NoError(t, s.Open(testSession()))
	require.NoError(t, s.Mixer.SetVolume("bass", 0.3))
	s.Transport.SetBPM(90)
	s.Transport.Play()
	saved, err := s.Save()
	require.NoError(t, err)
	assert.Equal(t, 0.3, saved.Track("bass").Volume)
	assert.Equal(t, 90.0, saved.Transport.BPM)
	assert.Equal(t, studio.Stopped, saved.Transport.State)

	s.Close()
	_, err = s.Save()
	assert.ErrorIs(t, err, state.ErrNoSession)
}

func TestSessionEdits(t *testing.T) {
	st := state.NewSession()
	_, err := st.AddTrack(studio.Track{})
	require.ErrorIs(t, err, state.ErrNoSession)
	require.NoError(t, st.Open(testSession()))

	clipID, err := st.AddClip(studio.AudioClip{TrackID: "bass", AssetID: "sub", StartSamples: 100, EndSamples: 200, Gain: 1})
	require.NoError(t, err)

	require.NoError(t, st.MoveClip("bass", clipID, 1000))
	sess, _ := st.Snapshot()
	clip := sess.Track("bass").Clips[0]
	assert.EqualValues(t, 1000, clip.StartSamples)
	assert.EqualValues(t, 1100, clip.EndSamples)

	require.NoError(t, st.TrimClip("bass", clipID, 1040, 1080))
	sess, _ = st.Snapshot()
	clip = sess.Track("bass").Clips[0]
	assert.EqualValues(t, 1040, clip.StartSamples)
	assert.EqualValues(t, 1080, clip.EndSamples)
	assert.EqualValues(t, 40, clip.OffsetSamples)

	require.NoError(t, st.SetClipMuted("bass", clipID, true))
	assert.ErrorIs(t, st.SetClipMuted("bass", "nope", true), state.ErrUnknownClip)
	require.NoError(t, st.RemoveClip("bass", clipID))

	require.NoError(t, st.SetInsert("drums", studio.InsertSlot{Index: 2, Instance: "comp"}))
	sess, _ = st.Snapshot()
	require.Len(t, sess.Track("drums").Inserts, 3)
	assert.Equal(t, 2, sess.Track("drums").Inserts[2].Index)
	assert.ErrorIs(t, st.SetInsert("drums", studio.InsertSlot{Index: 8}), state.ErrTooManyInserts)
	require.NoError(t, st.SetInsert(studio.MasterOutput, studio.InsertSlot{Index: 0, Instance: "limiter"}))
	err = st.SetInsert("bass", studio.InsertSlot{Index: 0, Instance: "comp"})
	assert.ErrorIs(t, err, studio.ErrInvalidSession, "comp already sits on drums")
	err = st.SetInsert(studio.MasterOutput, studio.InsertSlot{Index: 1, Instance: "limiter"})
	assert.ErrorIs(t, err, studio.ErrInvalidSession)
	sess, _ = st.Snapshot()
	assert.Empty(t, sess.Track("bass").Inserts, "a rejected edit leaves the session untouched")

	require.NoError(t, st.SetTrackOutput("drums", "bass"))
	err = st.SetTrackOutput("bass", "drums")
	assert.ErrorIs(t, err, studio.ErrInvalidSession, "routing cycles are rejected")
	sess, _ = st.Snapshot()
	assert.Equal(t, "", sess.Track("bass").Output, "rejected edit leaves the session untouched")

	id, err := st.AddMarker("Verse", 10)
	require.NoError(t, err)
	sess, _ = st.Snapshot()
	assert.Equal(t, "Verse", sess.Markers[0].Name)
	require.NoError(t, st.RemoveMarker(id))
}

func TestSessionListenerSeesOpenAndClose(t *testing.T) {
	st := state.NewSession()
	var got []state.SessionChange
	st.Subscribe(func(c state.SessionChange) { got = append(got, c) })
	require.NoError(t, st.Open(testSession()))
	require.NoError(t, st.RenameTrack("drums", "Drums"))
	st.Close()
	st.Close()
	require.Len(t, got, 3)
	assert.Nil(t, got[0].Prev)
	assert.Equal(t, "Drums", got[1].Next.Track("drums").Name)
	assert.Nil(t, got[2].Next)
}

func TestOpenRejectsInvalidSession(t *testing.T) {
	st := state.NewSession()
	bad := testSession()
	bad.Tracks[0].Clips[0].EndSamples = 0
	assert.ErrorIs(t, st.Open(bad), studio.ErrInvalidSession)
	_, ok := st.Snapshot()
	assert.False(t, ok)
}
