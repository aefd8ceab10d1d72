// Package inserts provides the built-in insert processors and Rack, an
// insert host that resolves insert slot instances by id.
package inserts

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vaist/studio"
)

type (
	// Spec describes one processing instance of a rack.
	Spec struct {
		ID     string             `yaml:"id"`
		Kind   string             `yaml:"kind"`
		Params map[string]float64 `yaml:"params,omitempty"`
	}

	// Rack owns insert instances and implements studio.InsertHost. Each
	// instance may appear in at most one chain at a time; session
	// validation rejects slots that share one.
	Rack struct {
		mu        sync.Mutex
		instances map[string]*instance
	}

	instance struct {
		kind   string
		insert studio.Insert
	}

	snapshotter interface {
		snapshot() map[string]float64
	}
)

var (
	ErrUnknownKind     = errors.New("unknown insert kind")
	ErrUnknownInstance = errors.New("unknown insert instance")
	ErrDuplicate       = errors.New("duplicate insert instance")
)

func NewRack() *Rack {
	return &Rack{instances: map[string]*instance{}}
}

// ReadRack builds a rack from a yaml list of specs.
func ReadRack(r io.Reader) (*Rack, error) {
	var specs []Spec
	if err := yaml.NewDecoder(r).Decode(&specs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading insert rack: %w", err)
	}
	rack := NewRack()
	for _, s := range specs {
		if err := rack.Add(s); err != nil {
			return nil, err
		}
	}
	return rack, nil
}

// Add creates an instance from the spec.
func (r *Rack) Add(s Spec) error {
	if s.ID == "" {
		return fmt.Errorf("insert of kind %q without id", s.Kind)
	}
	ins, err := New(s.Kind, s.Params)
	if err != nil {
		return fmt.Errorf("insert %q: %w", s.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[s.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, s.ID)
	}
	r.instances[s.ID] = &instance{kind: s.Kind, insert: ins}
	return nil
}

func (r *Rack) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
}

// Lookup resolves an insert slot instance.
func (r *Rack) Lookup(id string) (studio.Insert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.instances[id]
	if !ok {
		return nil, false
	}
	return i.insert, true
}

// SetParam forwards a parameter change to an instance. The value is clamped
// into the parameter range.
func (r *Rack) SetParam(id, name string, value float64) error {
	ins, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInstance, id)
	}
	if !ins.SetParam(name, value) {
		return fmt.Errorf("insert %q has no parameter %q", id, name)
	}
	return nil
}

// Specs describes the current instances, sorted by id, with their current
// parameter values.
func (r *Rack) Specs() []Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]Spec, 0, len(r.instances))
	for id, i := range r.instances {
		ret = append(ret, Spec{ID: id, Kind: i.kind, Params: i.insert.(snapshotter).snapshot()})
	}
	sort.Slice(ret, func(a, b int) bool { return ret[a].ID < ret[b].ID })
	return ret
}

// Write encodes the specs as yaml.
func (r *Rack) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(r.Specs()); err != nil {
		return fmt.Errorf("writing insert rack: %w", err)
	}
	return enc.Close()
}

// Fork returns a rack with fresh instances of the same kinds and parameter
// values, sharing no processing state with r.
func (r *Rack) Fork() studio.InsertHost {
	ret := NewRack()
	for _, s := range r.Specs() {
		ret.Add(s) // specs of a valid rack are always valid
	}
	return ret
}

// New creates an insert of the built-in kind with the given initial
// parameters; unknown parameter names are ignored and values are clamped.
func New(kind string, init map[string]float64) (studio.Insert, error) {
	if _, ok := Kinds[kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	p := newParams(kind, init)
	var ins studio.Insert
	switch kind {
	case "gain":
		ins = &gainInsert{params: p}
	case "waveshaper":
		ins = &waveshaper{params: p}
	case "tremolo":
		ins = &tremolo{params: p}
	case "delay":
		ins = &delay{params: p}
	case "filter":
		ins = &filter{params: p}
	}
	return ins, nil
}
