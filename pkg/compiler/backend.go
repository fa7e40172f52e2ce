// Package compiler implements the language-neutral half of the compilation
// back-end: it traverses a workflow.DistributedWorkflow (via workflow.Walk)
// and drives an Emitter through the group-join and broadcast-coalescing
// rules, without knowing anything about the target source language.
package compiler

import (
	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/workflow"
)

// Backend implements workflow.Visitor. One Backend compiles exactly one
// DistributedWorkflow; construct a fresh Backend per compilation.
type Backend struct {
	Emitter Emitter

	// Coalesce enables broadcast coalescing. This is the
	// reference default and should normally be left true; set false to
	// emit one `send` per destination immediately instead.
	Coalesce bool

	wf          *workflow.DistributedWorkflow
	groups      map[string]*GroupStack
	broadcasts  map[string]*BroadcastStack
	currentLoc  workflow.Location
	currentName string

	// known tracks, per location, every port that has a local producer so
	// far (a dataset binding, an exec output, or a recv) — the set a send
	// may legally read from.
	known map[string]map[string]bool
}

// NewBackend returns a Backend driving emitter, with broadcast coalescing
// enabled (the reference default).
func NewBackend(emitter Emitter) *Backend {
	return &Backend{
		Emitter:    emitter,
		Coalesce:   true,
		groups:     make(map[string]*GroupStack),
		broadcasts: make(map[string]*BroadcastStack),
		known:      make(map[string]map[string]bool),
	}
}

// Compile drives Backend over wf via workflow.Walk.
func (b *Backend) Compile(wf *workflow.DistributedWorkflow) error {
	return workflow.Walk(wf, b)
}

var _ workflow.Visitor = (*Backend)(nil)

func (b *Backend) BeginWorkflow(wf *workflow.DistributedWorkflow) error {
	b.wf = wf
	return b.Emitter.BeginWorkflow(wf)
}

func (b *Backend) EndWorkflow() error {
	return b.Emitter.EndWorkflow()
}

func (b *Backend) BeginLocation(loc workflow.Location) error {
	b.currentLoc = loc
	b.currentName = loc.Name
	b.groups[loc.Name] = NewGroupStack()
	b.broadcasts[loc.Name] = NewBroadcastStack()
	b.known[loc.Name] = make(map[string]bool)
	return b.Emitter.BeginLocation(loc)
}

func (b *Backend) EndLocation() error {
	if err := b.flushBroadcasts(); err != nil {
		return err
	}
	if err := b.joinTop(); err != nil {
		return err
	}
	return b.Emitter.EndLocation(b.currentLoc)
}

func (b *Backend) BeginDataset(dataset []workflow.FlowBinding, deps map[string]workflow.Data) error {
	for _, binding := range dataset {
		data, ok := deps[binding.Data]
		if !ok {
			return xerrors.Errorf("dataset binding %q -> %q: %w", binding.Port, binding.Data, ErrUnknownData)
		}
		switch data.Type {
		case workflow.TypeFile, workflow.TypeString, workflow.TypeInt, workflow.TypeBool:
		default:
			return xerrors.Errorf("data %q: %w: %q", data.Name, ErrUnsupportedDataType, data.Type)
		}
		if err := b.Emitter.InitPort(b.currentLoc, binding.Port, data); err != nil {
			return err
		}
		b.known[b.currentName][binding.Port] = true
	}
	return nil
}

func (b *Backend) Choice() error {
	return ErrChoiceNotImplemented
}

func (b *Backend) Exec(node workflow.ExecNode) error {
	gs := b.groups[b.currentName]
	taskID := gs.AddTask()
	if err := b.Emitter.Exec(b.currentLoc, node, taskID); err != nil {
		return err
	}
	for _, out := range node.Outputs {
		b.known[b.currentName][out.Port] = true
	}
	return nil
}

func (b *Backend) Recv(node workflow.RecvNode) error {
	gs := b.groups[b.currentName]
	taskID := gs.AddTask()
	if err := b.Emitter.Recv(b.currentLoc, node, taskID); err != nil {
		return err
	}
	b.known[b.currentName][node.Port] = true
	return nil
}

func (b *Backend) Send(node workflow.SendNode) error {
	if node.Dst == "" {
		return ErrEmptyDestination
	}
	if !b.known[b.currentName][node.Port] {
		return xerrors.Errorf("send on port %q: %w", node.Port, ErrUnknownPort)
	}
	bs := b.broadcasts[b.currentName]
	if b.Coalesce {
		bs.Push(node.Port, node.DataType, node.Dst)
		return nil
	}
	gs := b.groups[b.currentName]
	taskID := gs.AddTask()
	return b.Emitter.Send(b.currentLoc, node.Port, node.DataType, node.Dst, taskID)
}

func (b *Backend) Seq() error {
	if err := b.flushBroadcasts(); err != nil {
		return err
	}
	return b.joinTop()
}

func (b *Backend) BeginParen() error {
	if err := b.flushBroadcasts(); err != nil {
		return err
	}
	gs := b.groups[b.currentName]
	taskID := gs.AddTask()
	gs.PushGroup()
	return b.Emitter.BeginParen(b.currentLoc, taskID)
}

func (b *Backend) EndParen() error {
	if err := b.flushBroadcasts(); err != nil {
		return err
	}
	gs := b.groups[b.currentName]
	inner := gs.PopGroup()
	if len(inner) > 0 {
		if err := b.Emitter.Join(b.currentLoc, inner); err != nil {
			return err
		}
	}
	return b.Emitter.EndParen(b.currentLoc)
}

// BeginPar, Par and EndPar are no-ops: every leaf (send/recv/exec) is
// emitted as an independently joinable task by default, so parallel
// composition requires no bracketing at all.
func (b *Backend) BeginPar() error { return nil }
func (b *Backend) Par() error      { return nil }
func (b *Backend) EndPar() error   { return nil }

func (b *Backend) flushBroadcasts() error {
	bs := b.broadcasts[b.currentName]
	gs := b.groups[b.currentName]
	for _, pending := range bs.Flush() {
		taskID := gs.AddTask()
		if len(pending.Dests) >= 2 {
			if err := b.Emitter.Broadcast(b.currentLoc, pending.Port, pending.DataType, pending.Dests, taskID); err != nil {
				return err
			}
			continue
		}
		if err := b.Emitter.Send(b.currentLoc, pending.Port, pending.DataType, pending.Dests[0], taskID); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) joinTop() error {
	gs := b.groups[b.currentName]
	tasks := gs.FlushTop()
	if len(tasks) == 0 {
		return nil
	}
	return b.Emitter.Join(b.currentLoc, tasks)
}
