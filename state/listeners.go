// Package state holds the observable stores the UI writes and the engine
// reads: the transport, the mixer and the open session. Mutations are pure
// data updates. Every store guards its data with its own mutex and calls its
// listeners after the mutex has been released, in subscription order, with
// the previous and the new snapshot.
package state

import (
	"errors"
	"sort"
	"sync"
)

// Origin tells listeners who made a change.
type Origin int

const (
	// User changes come from the documented UI actions.
	User Origin = iota
	// Internal changes are the position and peak updates written by the
	// engine.
	Internal
	// Load changes replace the whole store when a session is opened.
	Load
)

var (
	ErrNoSession      = errors.New("no session open")
	ErrUnknownTrack   = errors.New("unknown track")
	ErrUnknownClip    = errors.New("unknown clip")
	ErrTooManyInserts = errors.New("too many inserts")
)

type listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

// add registers f and returns a function that unregisters it. Calling the
// returned function more than once is harmless.
func (l *listeners[T]) add(f func(T)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = map[int]func(T){}
	}
	id := l.next
	l.next++
	l.fns[id] = f
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *listeners[T]) notify(v T) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), len(ids))
	for i, id := range ids {
		fns[i] = l.fns[id]
	}
	l.mu.Unlock()
	for _, f := range fns {
		f(v)
	}
}

func clamp[T int | int64 | float64](v, lo, hi T) T {
	return max(lo, min(hi, v))
}
