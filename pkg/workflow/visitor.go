package workflow

import "golang.org/x/xerrors"

// ErrUnbalancedParens is returned by Walk when a location's body does not
// close every ParenNode it opens (the "assert depth == 1 at end_location"
// invariant from the back-end design).
var ErrUnbalancedParens = xerrors.New("unbalanced parenthesized group")

// Visitor receives one call per node boundary of a DistributedWorkflow, in
// the fixed, caller-driven order the compilation back-end relies on:
// begin_location, begin_dataset, begin_paren/end_paren, begin_par/par/end_par,
// seq, exec, send, recv, end_location.
type Visitor interface {
	BeginWorkflow(wf *DistributedWorkflow) error
	EndWorkflow() error

	BeginLocation(loc Location) error
	EndLocation() error

	BeginDataset(dataset []FlowBinding, deps map[string]Data) error

	Choice() error

	Exec(node ExecNode) error
	Recv(node RecvNode) error
	Send(node SendNode) error

	Seq() error

	BeginParen() error
	EndParen() error

	BeginPar() error
	Par() error
	EndPar() error
}

// Walk drives v over wf in the fixed event order. It aborts on the first
// error returned by any visitor callback, including the not-implemented
// error Choice() is expected to return for reserved choice syntax.
func Walk(wf *DistributedWorkflow, v Visitor) error {
	if err := v.BeginWorkflow(wf); err != nil {
		return err
	}

	for _, blk := range wf.Blocks {
		if err := v.BeginLocation(blk.Location); err != nil {
			return xerrors.Errorf("location %q: %w", blk.Location.Name, err)
		}
		if err := v.BeginDataset(blk.Dataset, wf.Dependencies); err != nil {
			return xerrors.Errorf("location %q: dataset: %w", blk.Location.Name, err)
		}

		depth := 1
		if blk.Body != nil {
			if err := walkExpr(blk.Body, v, &depth); err != nil {
				return xerrors.Errorf("location %q: %w", blk.Location.Name, err)
			}
		}
		if depth != 1 {
			return xerrors.Errorf("location %q: %w", blk.Location.Name, ErrUnbalancedParens)
		}

		if err := v.EndLocation(); err != nil {
			return xerrors.Errorf("location %q: %w", blk.Location.Name, err)
		}
	}

	return v.EndWorkflow()
}

func walkExpr(e Expr, v Visitor, depth *int) error {
	switch n := e.(type) {
	case ExecNode:
		return v.Exec(n)
	case RecvNode:
		return v.Recv(n)
	case SendNode:
		return v.Send(n)
	case ChoiceNode:
		return v.Choice()
	case SeqNode:
		for i, step := range n.Steps {
			if i > 0 {
				if err := v.Seq(); err != nil {
					return err
				}
			}
			if err := walkExpr(step, v, depth); err != nil {
				return err
			}
		}
		return nil
	case ParNode:
		if len(n.Branches) == 0 {
			return nil
		}
		if err := v.BeginPar(); err != nil {
			return err
		}
		for i, branch := range n.Branches {
			if i > 0 {
				if err := v.Par(); err != nil {
					return err
				}
			}
			if err := walkExpr(branch, v, depth); err != nil {
				return err
			}
		}
		return v.EndPar()
	case ParenNode:
		*depth++
		if err := v.BeginParen(); err != nil {
			return err
		}
		if err := walkExpr(n.Inner, v, depth); err != nil {
			return err
		}
		if err := v.EndParen(); err != nil {
			return err
		}
		*depth--
		return nil
	default:
		return xerrors.Errorf("unsupported expression node %T", e)
	}
}
