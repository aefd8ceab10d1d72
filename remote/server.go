// Package remote bridges the stores to a browser UI over websockets: it
// pushes display snapshots at a fixed rate and applies the actions clients
// send.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vaist/studio/state"
	"github.com/vaist/studio/version"
)

type (
	Server struct {
		studio  *state.Studio
		log     zerolog.Logger
		rate    float64
		inserts InsertParams
		levels  *Ballistics

		mu      sync.Mutex
		clients map[*client]bool

		start    time.Time
		frames   atomic.Uint64
		commands atomic.Uint64
	}

	Option func(*Server)

	// InsertParams is the insert rack as seen by UI clients.
	InsertParams interface {
		SetParam(id, name string, value float64) error
		Write(w io.Writer) error
	}

	client struct {
		mu   sync.Mutex
		conn *websocket.Conn
	}

	reply struct {
		Error    string    `json:"error,omitempty"`
		Snapshot *Snapshot `json:"snapshot,omitempty"`
	}
)

const (
	DefaultSnapshotRate = 30.0
	writeTimeout        = 200 * time.Millisecond
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func WithLogger(l zerolog.Logger) Option { return func(s *Server) { s.log = l } }

// WithSnapshotRate sets how many snapshots per second are broadcast.
func WithSnapshotRate(hz float64) Option { return func(s *Server) { s.rate = hz } }

// WithInserts enables the setInsertParam action and the /inserts listing.
func WithInserts(p InsertParams) Option { return func(s *Server) { s.inserts = p } }

func NewServer(st *state.Studio, opts ...Option) *Server {
	s := &Server{
		studio:  st,
		log:     zerolog.Nop(),
		rate:    DefaultSnapshotRate,
		clients: map[*client]bool{},
		start:   time.Now(),
		levels:  NewBallistics(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.rate <= 0 {
		s.rate = DefaultSnapshotRate
	}
	return s
}

// Handler routes /ws, /health and /inserts.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/inserts", s.HandleInserts)
	return mux
}

// Run broadcasts snapshots until ctx is done, then disconnects every client.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.rate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return ctx.Err()
		case <-ticker.C:
			s.Broadcast()
		}
	}
}

// Broadcast sends the current snapshot to every connected client.
func (s *Server) Broadcast() {
	snap := s.snapshot()
	b, err := json.Marshal(reply{Snapshot: &snap})
	if err != nil {
		s.log.Error().Err(err).Msg("encoding snapshot")
		return
	}
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		if err := c.write(b); err != nil {
			s.log.Debug().Err(err).Msg("write snapshot")
		}
	}
	s.frames.Add(1)
}

// HandleWS upgrades the connection, sends a snapshot, and then applies every
// command the client sends, answering each with a fresh snapshot or an
// error.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	s.log.Info().Str("remote", r.RemoteAddr).Msg("ui client connected")
	s.reply(c, nil)
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		conn.Close()
		s.log.Info().Str("remote", r.RemoteAddr).Msg("ui client disconnected")
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.log.Warn().Err(err).Msg("malformed command")
			s.reply(c, err)
			continue
		}
		s.commands.Add(1)
		err = s.apply(cmd)
		if err != nil {
			s.log.Warn().Err(err).Str("action", cmd.Action).Msg("command rejected")
		}
		s.reply(c, err)
	}
}

func (s *Server) snapshot() Snapshot {
	snap := TakeSnapshot(s.studio)
	s.levels.Apply(&snap, time.Now())
	return snap
}

func (s *Server) apply(cmd Command) error {
	if cmd.Action != "setInsertParam" {
		return Apply(s.studio, cmd)
	}
	if s.inserts == nil {
		return ErrNoInserts
	}
	return s.inserts.SetParam(cmd.Instance, cmd.Param, cmd.Value)
}

func (s *Server) reply(c *client, cmdErr error) {
	var r reply
	if cmdErr != nil {
		r.Error = cmdErr.Error()
	} else {
		snap := s.snapshot()
		r.Snapshot = &snap
	}
	b, err := json.Marshal(r)
	if err == nil {
		err = c.write(b)
	}
	if err != nil {
		s.log.Debug().Err(err).Msg("write reply")
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"version":  version.VersionOrHash,
		"uptime_s": time.Since(s.start).Seconds(),
		"clients":  n,
		"frames":   s.frames.Load(),
		"commands": s.commands.Load(),
		"state":    s.studio.Transport.State().String(),
	})
}

// HandleInserts answers with the rack as YAML, in the format of the rack
// file.
func (s *Server) HandleInserts(w http.ResponseWriter, r *http.Request) {
	if s.inserts == nil {
		http.Error(w, ErrNoInserts.Error(), http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := s.inserts.Write(&buf); err != nil {
		s.log.Error().Err(err).Msg("encoding inserts")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeTimeout))
		c.conn.Close()
		c.mu.Unlock()
	}
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}
