package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaist/studio"
	"github.com/vaist/studio/inserts"
	"github.com/vaist/studio/remote"
	"github.com/vaist/studio/state"
)

type reply struct {
	Error    string           `json:"error"`
	Snapshot *remote.Snapshot `json:"snapshot"`
}

func newStudio(t *testing.T) *state.Studio {
	t.Helper()
	st := state.NewStudio()
	require.NoError(t, st.Open(studio.Session{
		Name: "demo",
		Tracks: []studio.Track{
			{ID: "drums", Volume: 0.8},
			{ID: "bass", Volume: 1},
		},
		Master:    studio.MasterBus{Volume: 1},
		Transport: studio.DefaultTransport(),
		Markers:   []studio.Marker{{ID: "m1", Name: "chorus", PositionSamples: 96000}},
	}))
	return st
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) reply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var r reply
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func TestSnapshotOnConnect(t *testing.T) {
	st := newStudio(t)
	srv := httptest.NewServer(remote.NewServer(st).Handler())
	defer srv.Close()

	r := read(t, dial(t, srv))
	require.NotNil(t, r.Snapshot)
	assert.Equal(t, "1.1.000", r.Snapshot.BBT)
	assert.Equal(t, "00:00.000", r.Snapshot.Clock)
	assert.Equal(t, "stopped", r.Snapshot.State)
	assert.Len(t, r.Snapshot.Tracks, 2)
	assert.Equal(t, 0.8, r.Snapshot.Tracks["drums"].Volume)
	assert.True(t, r.Snapshot.Tracks["drums"].Audible)
}

func TestCommands(t *testing.T) {
	st := newStudio(t)
	srv := httptest.NewServer(remote.NewServer(st).Handler())
	defer srv.Close()
	conn := dial(t, srv)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(remote.Command{Action: "setSolo", Track: "bass", On: true}))
	r := read(t, conn)
	require.NotNil(t, r.Snapshot)
	assert.True(t, r.Snapshot.HasSolo)
	assert.False(t, r.Snapshot.Tracks["drums"].Audible)

	require.NoError(t, conn.WriteJSON(remote.Command{Action: "jumpToMarker", Marker: "chorus"}))
	r = read(t, conn)
	assert.EqualValues(t, 96000, r.Snapshot.Position)
	assert.Equal(t, "00:02.000", r.Snapshot.Clock)

	require.NoError(t, conn.WriteJSON(remote.Command{Action: "setVolume", Track: "nope", Value: 0.5}))
	r = read(t, conn)
	assert.NotEmpty(t, r.Error)

	require.NoError(t, conn.WriteJSON(remote.Command{Action: "explode"}))
	r = read(t, conn)
	assert.Contains(t, r.Error, "unknown action")
	assert.Equal(t, studio.Stopped, st.Transport.State())
}

func TestApply(t *testing.T) {
	st := newStudio(t)
	require.NoError(t, remote.Apply(st, remote.Command{Action: "setTimeSignature", Numerator: 6, Denominator: 8}))
	require.NoError(t, remote.Apply(st, remote.Command{Action: "setLoopRegion", Start: 10, End: 5}))
	require.NoError(t, remote.Apply(st, remote.Command{Action: "toggleLoop"}))
	require.NoError(t, remote.Apply(st, remote.Command{Action: "setMasterVolume", Value: 0.25}))
	require.NoError(t, remote.Apply(st, remote.Command{Action: "play"}))

	tr := st.Transport.Snapshot()
	assert.Equal(t, studio.TimeSignature{Numerator: 6, Denominator: 8}, tr.TimeSignature)
	assert.Equal(t, studio.Loop{Enabled: true, StartSamples: 10, EndSamples: 11}, tr.Loop)
	assert.Equal(t, studio.Playing, tr.State)
	assert.Equal(t, 0.25, st.Mixer.Master().Volume)

	err := remote.Apply(st, remote.Command{Action: "rewind"})
	assert.ErrorIs(t, err, remote.ErrUnknownAction)
}

func TestBroadcast(t *testing.T) {
	st := newStudio(t)
	s := remote.NewServer(st, remote.WithSnapshotRate(100))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	conn := dial(t, srv)
	read(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	st.Transport.SeekTo(48000)
	found := false
	for deadline := time.Now().Add(2 * time.Second); !found && time.Now().Before(deadline); {
		r := read(t, conn)
		found = r.Snapshot != nil && r.Snapshot.Position == 48000
	}
	assert.True(t, found, "the broadcast carries the new position")
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestHealth(t *testing.T) {
	st := newStudio(t)
	srv := httptest.NewServer(remote.NewServer(st).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "stopped", body["state"])
	assert.EqualValues(t, 0, body["clients"])
}

func TestInsertParams(t *testing.T) {
	st := newStudio(t)
	rack := inserts.NewRack()
	require.NoError(t, rack.Add(inserts.Spec{ID: "g", Kind: "gain"}))
	srv := httptest.NewServer(remote.NewServer(st, remote.WithInserts(rack)).Handler())
	defer srv.Close()
	conn := dial(t, srv)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(remote.Command{Action: "setInsertParam", Instance: "g", Param: "gain", Value: -6}))
	r := read(t, conn)
	assert.Empty(t, r.Error)
	ins, ok := rack.Lookup("g")
	require.True(t, ok)
	v, _ := ins.Param("gain")
	assert.Equal(t, -6.0, v)

	require.NoError(t, conn.WriteJSON(remote.Command{Action: "setInsertParam", Instance: "nope", Param: "gain"}))
	r = read(t, conn)
	assert.NotEmpty(t, r.Error)

	resp, err := http.Get(srv.URL + "/inserts")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	echo, err := inserts.ReadRack(strings.NewReader(string(body)))
	require.NoError(t, err)
	assert.Equal(t, rack.Specs(), echo.Specs())
}

func TestWithoutInserts(t *testing.T) {
	st := newStudio(t)
	srv := httptest.NewServer(remote.NewServer(st).Handler())
	defer srv.Close()
	conn := dial(t, srv)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(remote.Command{Action: "setInsertParam", Instance: "g", Param: "gain"}))
	assert.Equal(t, remote.ErrNoInserts.Error(), read(t, conn).Error)

	resp, err := http.Get(srv.URL + "/inserts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBallistics(t *testing.T) {
	b := remote.NewBallistics()
	t0 := time.Now()
	loud := remote.Snapshot{Tracks: map[string]remote.TrackSnapshot{
		"drums": {Channel: state.Channel{Peak: [2]float32{1, 0.5}}},
	}}
	loud.Master.Peak = [2]float32{1, 1}
	b.Apply(&loud, t0)
	assert.InDelta(t, 0, loud.Tracks["drums"].Level[0], 1e-9)
	assert.InDelta(t, -6.02, loud.Tracks["drums"].Level[1], 1e-2)
	assert.InDelta(t, 0, loud.MasterLevel[0], 1e-9)

	quiet := remote.Snapshot{Tracks: map[string]remote.TrackSnapshot{"drums": {}}}
	b.Apply(&quiet, t0.Add(100*time.Millisecond))
	l := quiet.Tracks["drums"].Level[0]
	assert.Less(t, l, 0.0, "the level falls")
	assert.Greater(t, l, -60.0, "but releases slowly")
	assert.Less(t, quiet.MasterLevel[1], 0.0)
	assert.Greater(t, quiet.MasterLevel[1], -60.0)

	b.Apply(&quiet, t0.Add(time.Minute))
	assert.InDelta(t, -60, quiet.Tracks["drums"].Level[0], 1e-6)
}

func TestSnapshotLevels(t *testing.T) {
	st := newStudio(t)
	st.Mixer.UpdatePeaks(map[string][2]float32{"drums": {0.5, 0}}, [2]float32{1, 1})
	snap := remote.TakeSnapshot(st)
	assert.InDelta(t, -6.02, snap.Tracks["drums"].Level[0], 1e-2)
	assert.Equal(t, -60.0, snap.Tracks["drums"].Level[1])
	assert.InDelta(t, 0, snap.MasterLevel[0], 1e-9)
}
