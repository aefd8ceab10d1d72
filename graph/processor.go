package graph

import (
	"github.com/vaist/studio"
)

// ProcessorNode runs an opaque insert over its input, block by block.
type ProcessorNode struct {
	node
	insert studio.Insert
	block  [][]float32
}

// NewProcessor wraps the insert and prepares it for the context sample rate.
func (c *Context) NewProcessor(insert studio.Insert) *ProcessorNode {
	n := &ProcessorNode{insert: insert, block: make([][]float32, numChannels)}
	n.init(c, n)
	insert.Prepare(c.sampleRate)
	return n
}

func (n *ProcessorNode) Insert() studio.Insert { return n.insert }

func (n *ProcessorNode) process(in, out *[numChannels][]float32, start int64, frames int) {
	for ch := 0; ch < numChannels; ch++ {
		copy(out[ch][:frames], in[ch][:frames])
		n.block[ch] = out[ch][:frames]
	}
	n.insert.Process(n.block)
}
