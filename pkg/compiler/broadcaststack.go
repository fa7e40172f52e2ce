package compiler

import "github.com/corewire/flowc/pkg/workflow"

// PendingSend is one flushed entry of a BroadcastStack: a port and the
// ordered list of destinations accumulated for it since the last flush.
type PendingSend struct {
	Port     string
	DataType workflow.DataType
	Dests    []string
}

// BroadcastStack accumulates `send(port, ..., dst)` operations occurring in
// the same group before emission, so that repeated sends of the same port
// to many destinations can be coalesced into a single broadcast. It is a
// per-location peephole optimization: a dictionary keyed by port name,
// flushed at every sequence point.
type BroadcastStack struct {
	order []string // port names in first-push order, for deterministic flush
	dests map[string]*PendingSend
}

// NewBroadcastStack returns an empty BroadcastStack.
func NewBroadcastStack() *BroadcastStack {
	return &BroadcastStack{dests: make(map[string]*PendingSend)}
}

// Push records a pending send of port (carrying dataType) to dst. Insertion
// order of destinations within a port is preserved.
func (b *BroadcastStack) Push(port string, dataType workflow.DataType, dst string) {
	p, ok := b.dests[port]
	if !ok {
		p = &PendingSend{Port: port, DataType: dataType}
		b.dests[port] = p
		b.order = append(b.order, port)
	}
	p.Dests = append(p.Dests, dst)
}

// Flush returns every pending send in port insertion order and clears the
// stack's state.
func (b *BroadcastStack) Flush() []PendingSend {
	if len(b.order) == 0 {
		return nil
	}
	out := make([]PendingSend, 0, len(b.order))
	for _, port := range b.order {
		out = append(out, *b.dests[port])
	}
	b.order = nil
	b.dests = make(map[string]*PendingSend)
	return out
}
