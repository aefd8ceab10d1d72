package engine

import (
	"slices"

	"github.com/vaist/studio"
	"github.com/vaist/studio/graph"
)

// insertChain is the spliceable part of a signal path: whatever sits between
// a fixed entry node and a fixed exit node.
type insertChain struct {
	slots []studio.InsertSlot
	nodes []*graph.ProcessorNode
	built bool
}

// relink detaches the previous chain and links from → inserts → to, in slot
// order, skipping empty, bypassed and unresolvable slots. With no inserts
// from feeds to directly.
func (c *insertChain) relink(ctx *graph.Context, from, to graph.Node, slots []studio.InsertSlot, host studio.InsertHost) {
	if c.built && slices.Equal(c.slots, slots) {
		return
	}
	from.Disconnect()
	for _, n := range c.nodes {
		n.Disconnect()
	}
	c.nodes = c.nodes[:0]
	prev := from
	for _, slot := range slots {
		if slot.Instance == "" || slot.Bypass || host == nil {
			continue
		}
		insert, ok := host.Lookup(slot.Instance)
		if !ok {
			continue
		}
		n := ctx.NewProcessor(insert)
		prev.Connect(n)
		prev = n
		c.nodes = append(c.nodes, n)
	}
	prev.Connect(to)
	c.slots = slices.Clone(slots)
	c.built = true
}

func (c *insertChain) dispose() {
	for _, n := range c.nodes {
		n.Disconnect()
	}
	c.nodes = nil
	c.built = false
}
