package graph

import (
	"slices"

	"github.com/viterin/vek/vek32"
)

type (
	// Node is anything that can be wired into the graph. Connecting an
	// already connected pair and disconnecting an unconnected node are no-ops.
	Node interface {
		Connect(dst Node)
		Disconnect()
		DisconnectFrom(dst Node)
		base() *node
	}

	processor interface {
		// process renders frames frames starting at the absolute frame start.
		// in holds the sum of all inputs.
		process(in, out *[numChannels][]float32, start int64, frames int)
	}

	node struct {
		ctx     *Context
		self    processor
		inputs  []*node
		outputs []*node
		in, out [numChannels][]float32
		blockID uint64
		busy    bool
	}

	// Destination sums everything connected to it into the rendered output.
	Destination struct {
		node
	}
)

func (n *node) init(ctx *Context, self processor) {
	n.ctx = ctx
	n.self = self
	for ch := 0; ch < numChannels; ch++ {
		n.in[ch] = make([]float32, ctx.blockSize)
		n.out[ch] = make([]float32, ctx.blockSize)
	}
}

func (n *node) base() *node { return n }

func (n *node) Connect(dst Node) {
	d := dst.base()
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if slices.Contains(n.outputs, d) {
		return
	}
	n.outputs = append(n.outputs, d)
	d.inputs = append(d.inputs, n)
}

func (n *node) Disconnect() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	for _, d := range n.outputs {
		d.inputs = slices.DeleteFunc(d.inputs, func(x *node) bool { return x == n })
	}
	n.outputs = nil
}

func (n *node) DisconnectFrom(dst Node) {
	d := dst.base()
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	n.outputs = slices.DeleteFunc(n.outputs, func(x *node) bool { return x == d })
	d.inputs = slices.DeleteFunc(d.inputs, func(x *node) bool { return x == n })
}

// Connected reports whether the node feeds at least one other node.
func (n *node) Connected() bool {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return len(n.outputs) > 0
}

// pull renders the node for the current block, at most once per block.
// Must be called with ctx.mu held.
func (n *node) pull(frames int) [numChannels][]float32 {
	if n.blockID == n.ctx.blockID {
		return n.out
	}
	if n.busy { // feedback loop, break it with silence
		var silence [numChannels][]float32
		for ch := range silence {
			silence[ch] = make([]float32, frames)
		}
		return silence
	}
	n.busy = true
	for ch := 0; ch < numChannels; ch++ {
		clear(n.in[ch][:frames])
	}
	for _, src := range n.inputs {
		o := src.pull(frames)
		for ch := 0; ch < numChannels; ch++ {
			vek32.Add_Inplace(n.in[ch][:frames], o[ch][:frames])
		}
	}
	n.self.process(&n.in, &n.out, n.ctx.frame, frames)
	n.blockID = n.ctx.blockID
	n.busy = false
	return n.out
}

func (d *Destination) process(in, out *[numChannels][]float32, start int64, frames int) {
	for ch := 0; ch < numChannels; ch++ {
		copy(out[ch][:frames], in[ch][:frames])
	}
}
