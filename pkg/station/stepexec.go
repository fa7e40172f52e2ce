package station

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/workflow"
)

// ErrStepFailed wraps a non-zero step exit, carrying the captured stderr.
var ErrStepFailed = xerrors.New("step failed")

// ErrMissingOutput is returned when a step's output glob matched nothing.
var ErrMissingOutput = xerrors.New("missing output")

// ErrAmbiguousOutput is returned when a step's output glob matched more
// than one file.
var ErrAmbiguousOutput = xerrors.New("ambiguous output")

// StepFailure carries the exit code and stderr of a failed step, and
// unwraps to ErrStepFailed.
type StepFailure struct {
	Step     string
	ExitCode int
	Stderr   string
}

func (e *StepFailure) Error() string {
	return xerrors.Errorf("step %q exited %d: %s", e.Step, e.ExitCode, e.Stderr).Error()
}

func (e *StepFailure) Unwrap() error { return ErrStepFailed }

// resolveArg substitutes a step argument slot with its literal text or the
// resolved value of the port it references. Only the port-resolved case is
// shell-quoted: literal text is command-line text the workflow author wrote
// on purpose (redirects, globs, flags) and must reach the shell unescaped,
// while a port's resolved value is untrusted data and must be quoted as one
// word regardless of what characters it contains.
func resolveArg(a workflow.Arg, inputs map[string]workflow.PortValue) string {
	if !a.IsPort() {
		return a.Literal
	}
	return shellquote.Join(inputs[a.PortRef].Literal())
}

// stageInputs symlinks every File-typed input into dir under its basename,
// so the step's command line can reference inputs by plain filename.
func stageInputs(dir string, inputs map[string]workflow.PortValue) error {
	for port, v := range inputs {
		if v.Kind != workflow.TypeFile {
			continue
		}
		link := filepath.Join(dir, filepath.Base(v.File))
		abs, err := filepath.Abs(v.File)
		if err != nil {
			return xerrors.Errorf("resolving input %q for port %q: %w", v.File, port, err)
		}
		if err := os.Symlink(abs, link); err != nil {
			return xerrors.Errorf("staging input %q for port %q: %w", v.File, port, err)
		}
	}
	return nil
}

// resolveOutput evaluates an output Processor's glob relative to scratchDir
// and returns the single matching file as an absolute path.
func resolveOutput(scratchDir string, proc workflow.Processor) (string, error) {
	matches, err := filepath.Glob(filepath.Join(scratchDir, proc.Glob))
	if err != nil {
		return "", xerrors.Errorf("evaluating output glob %q: %w", proc.Glob, err)
	}
	switch len(matches) {
	case 0:
		return "", xerrors.Errorf("glob %q: %w", proc.Glob, ErrMissingOutput)
	case 1:
		abs, err := filepath.Abs(matches[0])
		if err != nil {
			return "", xerrors.Errorf("resolving output %q: %w", matches[0], err)
		}
		return abs, nil
	default:
		return "", xerrors.Errorf("glob %q matched %v: %w", proc.Glob, matches, ErrAmbiguousOutput)
	}
}

// runStep stages inputs, builds and runs step's command line inside a fresh
// scratch directory under workdir, and resolves the declared output (if
// any) into a PortValue.
func runStep(workdir string, step workflow.Step, inputs map[string]workflow.PortValue, outPort string) (workflow.PortValue, error) {
	scratchDir := filepath.Join(workdir, "exec_"+step.Name+"_"+uuid.NewString())
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return workflow.PortValue{}, xerrors.Errorf("creating scratch dir: %w", err)
	}
	if err := stageInputs(scratchDir, inputs); err != nil {
		return workflow.PortValue{}, err
	}

	args := make([]string, 0, len(step.Arguments))
	for _, a := range step.Arguments {
		args = append(args, resolveArg(a, inputs))
	}
	line := step.Command
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}

	cmd := exec.Command("sh", "-c", line)
	cmd.Dir = scratchDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.Output()
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return workflow.PortValue{}, &StepFailure{Step: step.Name, ExitCode: exitCode, Stderr: stderr.String()}
	}

	if outPort == "" {
		return workflow.PortValue{}, nil
	}
	proc, ok := step.Processors[outPort]
	if !ok {
		return workflow.StringValue(string(stdout)), nil
	}
	path, err := resolveOutput(scratchDir, proc)
	if err != nil {
		return workflow.PortValue{}, err
	}
	return workflow.FileValue(path), nil
}
