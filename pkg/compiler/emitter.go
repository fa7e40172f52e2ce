package compiler

import "github.com/corewire/flowc/pkg/workflow"

// Emitter is the language-specific half of the compilation back-end. Backend
// drives an Emitter through the language-neutral emission rules (group joins,
// broadcast coalescing); Emitter turns each call into concrete target-language
// source. gotarget.Emitter is the only implementation in this repository, but
// the split keeps the join/broadcast bookkeeping reusable for any future
// target.
type Emitter interface {
	BeginWorkflow(wf *workflow.DistributedWorkflow) error
	EndWorkflow() error

	BeginLocation(loc workflow.Location) error
	EndLocation(loc workflow.Location) error

	// InitPort seeds a dataset port with its initial value.
	InitPort(loc workflow.Location, port string, data workflow.Data) error

	// Exec, Recv, Send and Broadcast each emit one spawned/awaited task,
	// assigned to the given pre-allocated taskID so the enclosing group's
	// join can reference it by name.
	Exec(loc workflow.Location, node workflow.ExecNode, taskID string) error
	Recv(loc workflow.Location, node workflow.RecvNode, taskID string) error
	Send(loc workflow.Location, port string, dataType workflow.DataType, dst string, taskID string) error
	Broadcast(loc workflow.Location, port string, dataType workflow.DataType, dsts []string, taskID string) error

	// Join emits a bulk join of the given task ids. Called only when
	// taskIDs is non-empty (an empty join is a no-op and is never emitted).
	Join(loc workflow.Location, taskIDs []string) error

	// BeginParen opens a new spawned task (assigned to taskID) whose body
	// is the enclosed sub-expression; EndParen closes that task's body
	// after its own internal group has been joined.
	BeginParen(loc workflow.Location, taskID string) error
	EndParen(loc workflow.Location) error
}
