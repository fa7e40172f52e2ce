package yamlconfig

import (
	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/workflow"
)

// ErrUnknownBlockKind is returned when a BlockSpec declares none, or more
// than one, of its mutually exclusive node kinds.
var ErrUnknownBlockKind = xerrors.New("block must declare exactly one node kind")

// ErrUnknownDependency is returned when a block references a dependency or
// location name absent from the document's declarations.
var ErrUnknownDependency = xerrors.New("unknown dependency")

// ErrUnboundPort is returned when a recv block names a port the location's
// own dataset never binds, so its wire data type cannot be resolved.
var ErrUnboundPort = xerrors.New("recv port has no dataset binding")

// FlowBindingSpec is the YAML shape of a workflow.FlowBinding.
type FlowBindingSpec struct {
	Port string `yaml:"port"`
	Data string `yaml:"data"`
}

func (s FlowBindingSpec) toBinding() workflow.FlowBinding {
	return workflow.FlowBinding{Port: s.Port, Data: s.Data}
}

// ArgSpec is the YAML shape of a workflow.Arg.
type ArgSpec struct {
	PortRef string `yaml:"portRef,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// ProcessorSpec is the YAML shape of a workflow.Processor.
type ProcessorSpec struct {
	Glob string `yaml:"glob"`
}

// StepSpec is the YAML shape of a workflow.Step.
type StepSpec struct {
	Name        string                   `yaml:"name"`
	DisplayName string                   `yaml:"displayName,omitempty"`
	Command     string                   `yaml:"command"`
	Arguments   []ArgSpec                `yaml:"arguments,omitempty"`
	Processors  map[string]ProcessorSpec `yaml:"processors,omitempty"`
}

// ExecSpec is the YAML shape of a workflow.ExecNode.
type ExecSpec struct {
	Step    StepSpec          `yaml:"step"`
	Inputs  []FlowBindingSpec `yaml:"inputs,omitempty"`
	Outputs []FlowBindingSpec `yaml:"outputs,omitempty"`
}

// RecvSpec is the YAML shape of a workflow.RecvNode. Its wire data type is
// not declared inline: it is resolved from the enclosing location's own
// dataset binding for Port, the same binding a generated recv call would
// use to know how to decode the incoming payload.
type RecvSpec struct {
	Port string `yaml:"port"`
	Src  string `yaml:"src"`
}

// SendSpec is the YAML shape of a workflow.SendNode.
type SendSpec struct {
	Port string `yaml:"port"`
	Data string `yaml:"data"`
	Dst  string `yaml:"dst"`
}

// BlockSpec is the YAML mirror of workflow.Expr: exactly one of its fields
// is set per node. This is a structural document format, not a grammar —
// composition (seq/par/paren nesting) is expressed by YAML nesting rather
// than by parsing operator precedence out of free-form text.
type BlockSpec struct {
	Exec   *ExecSpec   `yaml:"exec,omitempty"`
	Recv   *RecvSpec   `yaml:"recv,omitempty"`
	Send   *SendSpec   `yaml:"send,omitempty"`
	Seq    []BlockSpec `yaml:"seq,omitempty"`
	Par    []BlockSpec `yaml:"par,omitempty"`
	Paren  *BlockSpec  `yaml:"paren,omitempty"`
	Choice bool        `yaml:"choice,omitempty"`
}

// LocationBlockSpec is the YAML shape of a workflow.LocationBlock.
type LocationBlockSpec struct {
	Dataset []FlowBindingSpec `yaml:"dataset,omitempty"`
	Body    BlockSpec         `yaml:"body"`
}

// blockCtx carries the lookups a location's body needs to resolve itself
// into an Expr tree: the workflow-wide dependency declarations, and this
// location's own port->dependency dataset bindings.
type blockCtx struct {
	deps     map[string]workflow.Data
	portData map[string]string // port name -> dependency name, this location only
}

func (s BlockSpec) toExpr(ctx blockCtx) (workflow.Expr, error) {
	set := 0
	var out workflow.Expr
	var err error

	if s.Exec != nil {
		set++
		out, err = s.Exec.toExpr()
	}
	if s.Recv != nil {
		set++
		out, err = s.Recv.toExpr(ctx)
	}
	if s.Send != nil {
		set++
		out, err = s.Send.toExpr(ctx)
	}
	if len(s.Seq) > 0 {
		set++
		out, err = seqSpec(s.Seq).toExpr(ctx)
	}
	if len(s.Par) > 0 {
		set++
		out, err = parSpec(s.Par).toExpr(ctx)
	}
	if s.Paren != nil {
		set++
		var inner workflow.Expr
		inner, err = s.Paren.toExpr(ctx)
		out = workflow.ParenNode{Inner: inner}
	}
	if s.Choice {
		set++
		out = workflow.ChoiceNode{}
	}

	if err != nil {
		return nil, err
	}
	if set != 1 {
		return nil, ErrUnknownBlockKind
	}
	return out, nil
}

func (s ExecSpec) toExpr() (workflow.Expr, error) {
	args := make([]workflow.Arg, len(s.Step.Arguments))
	for i, a := range s.Step.Arguments {
		args[i] = workflow.Arg{PortRef: a.PortRef, Literal: a.Literal}
	}
	procs := make(map[string]workflow.Processor, len(s.Step.Processors))
	for name, p := range s.Step.Processors {
		procs[name] = workflow.Processor{Glob: p.Glob}
	}
	inputs := make([]workflow.FlowBinding, len(s.Inputs))
	for i, b := range s.Inputs {
		inputs[i] = b.toBinding()
	}
	outputs := make([]workflow.FlowBinding, len(s.Outputs))
	for i, b := range s.Outputs {
		outputs[i] = b.toBinding()
	}
	return workflow.ExecNode{
		Step: workflow.Step{
			Name:        s.Step.Name,
			DisplayName: s.Step.DisplayName,
			Command:     s.Step.Command,
			Arguments:   args,
			Processors:  procs,
		},
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}

func (s RecvSpec) toExpr(ctx blockCtx) (workflow.Expr, error) {
	dataName, ok := ctx.portData[s.Port]
	if !ok {
		return nil, xerrors.Errorf("recv port %q: %w", s.Port, ErrUnboundPort)
	}
	data, ok := ctx.deps[dataName]
	if !ok {
		return nil, xerrors.Errorf("recv port %q: %w: %q", s.Port, ErrUnknownDependency, dataName)
	}
	return workflow.RecvNode{Port: s.Port, DataType: data.Type, Src: s.Src}, nil
}

func (s SendSpec) toExpr(ctx blockCtx) (workflow.Expr, error) {
	data, ok := ctx.deps[s.Data]
	if !ok {
		return nil, xerrors.Errorf("send port %q: %w: %q", s.Port, ErrUnknownDependency, s.Data)
	}
	return workflow.SendNode{Data: s.Data, Port: s.Port, DataType: data.Type, Dst: s.Dst}, nil
}

type seqSpec []BlockSpec

func (steps seqSpec) toExpr(ctx blockCtx) (workflow.Expr, error) {
	out := make([]workflow.Expr, len(steps))
	for i, s := range steps {
		e, err := s.toExpr(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return workflow.SeqNode{Steps: out}, nil
}

type parSpec []BlockSpec

func (branches parSpec) toExpr(ctx blockCtx) (workflow.Expr, error) {
	out := make([]workflow.Expr, len(branches))
	for i, s := range branches {
		e, err := s.toExpr(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return workflow.ParNode{Branches: out}, nil
}

// ToWorkflow assembles a full workflow.DistributedWorkflow from the
// document's locations, dependencies and blocks sections.
func (d *Document) ToWorkflow(name string) (*workflow.DistributedWorkflow, error) {
	deps, err := d.ToDependencies()
	if err != nil {
		return nil, err
	}
	locs := d.ToLocations()

	blocks := make([]workflow.LocationBlock, 0, len(d.Blocks))
	for locName, spec := range d.Blocks {
		loc, ok := locs[locName]
		if !ok {
			return nil, xerrors.Errorf("block %q: %w: location not declared", locName, ErrUnknownDependency)
		}
		dataset := make([]workflow.FlowBinding, len(spec.Dataset))
		portData := make(map[string]string, len(spec.Dataset))
		for i, b := range spec.Dataset {
			dataset[i] = b.toBinding()
			portData[b.Port] = b.Data
		}
		ctx := blockCtx{deps: deps, portData: portData}
		body, err := spec.Body.toExpr(ctx)
		if err != nil {
			return nil, xerrors.Errorf("block %q: %w", locName, err)
		}
		blocks = append(blocks, workflow.LocationBlock{Location: loc, Dataset: dataset, Body: body})
	}

	return &workflow.DistributedWorkflow{
		Name:         name,
		Version:      d.Version,
		Dependencies: deps,
		Blocks:       blocks,
	}, nil
}
