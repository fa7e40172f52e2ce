package workflow

// Expr is a node of the process-algebra expression tree described in the
// grammar:
//
//	E ::= exec(step, flow, mapping)
//	    | send(data->port, src, dst)
//	    | recv(port, src, dst)
//	    | E . E            (sequential)
//	    | E | E            (parallel)
//	    | ( E )
//	    | < location, dataset, E >
type Expr interface {
	exprNode()
}

// ExecNode runs a step, awaiting its input ports and producing (optionally)
// one output port.
type ExecNode struct {
	Step    Step
	Inputs  []FlowBinding
	Outputs []FlowBinding
}

// RecvNode receives a value for port from src.
type RecvNode struct {
	Port     string
	DataType DataType
	Src      string
	Dst      string
}

// SendNode sends data's value over port to dst.
type SendNode struct {
	Data     string
	Port     string
	DataType DataType
	Src      string
	Dst      string
}

// SeqNode composes its Steps sequentially, left to right; a join barrier is
// emitted between each pair.
type SeqNode struct {
	Steps []Expr
}

// ParNode composes its Branches in parallel; no barrier is emitted between
// them (parallelism is the default within a group).
type ParNode struct {
	Branches []Expr
}

// ParenNode is an explicit grouping: the enclosed subtree is spawned as a
// single joinable task, with its own join point at the closing paren.
type ParenNode struct {
	Inner Expr
}

// ChoiceNode is reserved syntax. Visiting it always fails compilation.
type ChoiceNode struct{}

func (ExecNode) exprNode()   {}
func (RecvNode) exprNode()   {}
func (SendNode) exprNode()   {}
func (SeqNode) exprNode()    {}
func (ParNode) exprNode()    {}
func (ParenNode) exprNode()  {}
func (ChoiceNode) exprNode() {}

// LocationBlock is the per-location triple <location, dataset, body>.
type LocationBlock struct {
	Location Location
	Dataset  []FlowBinding
	Body     Expr
}

// DistributedWorkflow is the top-level compiled program: one LocationBlock
// per participating location plus the shared dependency declarations.
type DistributedWorkflow struct {
	Name         string
	Version      string
	Dependencies map[string]Data
	Blocks       []LocationBlock
}
