package compiler

import "fmt"

// GroupStack is the compile-time bookkeeping structure backing a location's
// task groups: a stack of task-id groups mirroring the nesting of
// parenthesized sub-expressions, plus a single monotonic counter so task
// identifiers stay unique and stable within a location.
//
// It is a direct generalization of the original back-end's ThreadStack
// (a per-location stack of task-name sets with an incrementing counter),
// reworked to preserve insertion order so repeated compilations of the same
// workflow emit byte-identical join lists.
type GroupStack struct {
	groups  [][]string
	counter int
}

// NewGroupStack returns a GroupStack with a single, empty top-level group.
func NewGroupStack() *GroupStack {
	return &GroupStack{groups: [][]string{nil}}
}

// AddTask allocates a new, unique task identifier and records it in the
// current (top) group. The returned name is stable and deterministic across
// repeated compilations of the same workflow (property: idempotent
// compilation).
func (g *GroupStack) AddTask() string {
	name := fmt.Sprintf("t%d", g.counter)
	g.counter++
	top := len(g.groups) - 1
	g.groups[top] = append(g.groups[top], name)
	return name
}

// PushGroup opens a new, nested group on top of the stack — used when a
// parenthesized sub-expression is entered.
func (g *GroupStack) PushGroup() {
	g.groups = append(g.groups, nil)
}

// PopGroup closes the top group and returns its accumulated task ids,
// restoring the enclosing group as the new top. It is the caller's
// responsibility to ensure PushGroup/PopGroup calls are balanced; Backend
// enforces this via workflow.Walk's paren-depth assertion.
func (g *GroupStack) PopGroup() []string {
	n := len(g.groups) - 1
	tasks := g.groups[n]
	g.groups = g.groups[:n]
	return tasks
}

// FlushTop empties the current top group and returns the tasks it held,
// without changing the stack's depth. This is used at sequence-point
// barriers (`seq`, `end_location`) where emission continues into the same
// nesting level after the join.
func (g *GroupStack) FlushTop() []string {
	top := len(g.groups) - 1
	tasks := g.groups[top]
	g.groups[top] = nil
	return tasks
}

// Depth reports the current nesting depth (1 at the top level).
func (g *GroupStack) Depth() int { return len(g.groups) }
