package gotarget

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/corewire/flowc/pkg/workflow"
)

// Exec emits a spawned task that runs node's step via comm.Exec.
func (e *Emitter) Exec(loc workflow.Location, node workflow.ExecNode, taskID string) error {
	scope := e.cur.top()
	group := scope.ensureGroup(e.cur)
	fmt.Fprintf(&scope.body, "\t%s.Go(func() error { // %s: exec %s\n\t\treturn comm.Exec(%s)\n\t})\n",
		group, taskID, node.Step.Name, execNodeLit(node))
	return nil
}

// Recv emits a spawned task that awaits node's value from node.Src.
func (e *Emitter) Recv(loc workflow.Location, node workflow.RecvNode, taskID string) error {
	scope := e.cur.top()
	group := scope.ensureGroup(e.cur)
	fmt.Fprintf(&scope.body, "\t%s.Go(func() error { // %s: recv %s from %s\n\t\treturn comm.Recv(%s, %s, %s)\n\t})\n",
		group, taskID, node.Port, node.Src,
		strconv.Quote(node.Port), strconv.Quote(node.Src), dataTypeLit(node.DataType))
	return nil
}

// Send emits a spawned task that streams port's value to a single dst.
func (e *Emitter) Send(loc workflow.Location, port string, dataType workflow.DataType, dst string, taskID string) error {
	scope := e.cur.top()
	group := scope.ensureGroup(e.cur)
	fmt.Fprintf(&scope.body, "\t%s.Go(func() error { // %s: send %s to %s\n\t\treturn comm.Send(%s, %s)\n\t})\n",
		group, taskID, port, dst, strconv.Quote(port), strconv.Quote(dst))
	return nil
}

// Broadcast emits a spawned task that streams port's value to every
// destination in dsts, read once and teed by comm.Broadcast.
func (e *Emitter) Broadcast(loc workflow.Location, port string, dataType workflow.DataType, dsts []string, taskID string) error {
	scope := e.cur.top()
	group := scope.ensureGroup(e.cur)
	var dstsLit strings.Builder
	for i, d := range dsts {
		if i > 0 {
			dstsLit.WriteString(", ")
		}
		dstsLit.WriteString(strconv.Quote(d))
	}
	fmt.Fprintf(&scope.body, "\t%s.Go(func() error { // %s: broadcast %s to %s\n\t\treturn comm.Broadcast(%s, []string{%s})\n\t})\n",
		group, taskID, port, strings.Join(dsts, ","), strconv.Quote(port), dstsLit.String())
	return nil
}

// Join emits a wait on the current group for the given (already spawned)
// task ids, then marks the scope stale so the next statement (if any)
// lazily opens a fresh group of its own.
func (e *Emitter) Join(loc workflow.Location, taskIDs []string) error {
	scope := e.cur.top()
	fmt.Fprintf(&scope.body, "\tif err := %s.Wait(); err != nil { // join %s\n\t\treturn err\n\t}\n",
		scope.groupVar, strings.Join(taskIDs, ", "))
	scope.stale = true
	return nil
}

// BeginParen opens taskID as a spawned task in the enclosing scope whose
// body is a fresh group; the enclosing scope's statements resume once
// EndParen splices this scope's accumulated body back in.
func (e *Emitter) BeginParen(loc workflow.Location, taskID string) error {
	outer := e.cur.top()
	group := outer.ensureGroup(e.cur)
	fmt.Fprintf(&outer.body, "\t%s.Go(func() error { // %s: begin paren\n", group, taskID)
	e.cur.push()
	return nil
}

// EndParen closes the innermost open scope (opened by BeginParen) and
// splices its accumulated body into the now-current outer scope.
func (e *Emitter) EndParen(loc workflow.Location) error {
	inner := e.cur.pop()
	outer := e.cur.top()
	for _, line := range strings.SplitAfter(inner.body.String(), "\n") {
		if line == "" {
			continue
		}
		outer.body.WriteString("\t" + line)
	}
	outer.body.WriteString("\t\treturn nil\n\t})\n")
	return nil
}

func dataTypeLit(t workflow.DataType) string {
	switch t {
	case workflow.TypeFile:
		return "workflow.TypeFile"
	case workflow.TypeString:
		return "workflow.TypeString"
	case workflow.TypeInt:
		return "workflow.TypeInt"
	case workflow.TypeBool:
		return "workflow.TypeBool"
	default:
		return strconv.Quote(string(t))
	}
}

func portValueLit(d workflow.Data) string {
	switch d.Type {
	case workflow.TypeFile:
		return "workflow.FileValue(" + strconv.Quote(d.Value) + ")"
	case workflow.TypeString:
		return "workflow.StringValue(" + strconv.Quote(d.Value) + ")"
	case workflow.TypeInt:
		return "workflow.IntValue(" + d.Value + ")"
	case workflow.TypeBool:
		return "workflow.BoolValue(" + d.Value + ")"
	default:
		return "workflow.PortValue{}"
	}
}

func argLit(a workflow.Arg) string {
	if a.IsPort() {
		return "{PortRef: " + strconv.Quote(a.PortRef) + "}"
	}
	return "{Literal: " + strconv.Quote(a.Literal) + "}"
}

func flowBindingLit(b workflow.FlowBinding) string {
	return "{Port: " + strconv.Quote(b.Port) + ", Data: " + strconv.Quote(b.Data) + "}"
}

func execNodeLit(node workflow.ExecNode) string {
	var args strings.Builder
	for i, a := range node.Step.Arguments {
		if i > 0 {
			args.WriteString(", ")
		}
		args.WriteString(argLit(a))
	}

	procKeys := make([]string, 0, len(node.Step.Processors))
	for k := range node.Step.Processors {
		procKeys = append(procKeys, k)
	}
	sort.Strings(procKeys)
	var procs strings.Builder
	for i, k := range procKeys {
		if i > 0 {
			procs.WriteString(", ")
		}
		fmt.Fprintf(&procs, "%s: {Glob: %s}", strconv.Quote(k), strconv.Quote(node.Step.Processors[k].Glob))
	}

	var inputs strings.Builder
	for i, b := range node.Inputs {
		if i > 0 {
			inputs.WriteString(", ")
		}
		inputs.WriteString(flowBindingLit(b))
	}
	var outputs strings.Builder
	for i, b := range node.Outputs {
		if i > 0 {
			outputs.WriteString(", ")
		}
		outputs.WriteString(flowBindingLit(b))
	}

	return fmt.Sprintf(
		"workflow.ExecNode{Step: workflow.Step{Name: %s, DisplayName: %s, Command: %s, Arguments: []workflow.Arg{%s}, Processors: map[string]workflow.Processor{%s}}, Inputs: []workflow.FlowBinding{%s}, Outputs: []workflow.FlowBinding{%s}}",
		strconv.Quote(node.Step.Name), strconv.Quote(node.Step.DisplayName), strconv.Quote(node.Step.Command),
		args.String(), procs.String(), inputs.String(), outputs.String())
}
