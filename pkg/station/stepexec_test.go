package station

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/corewire/flowc/pkg/workflow"
)

func TestRunStepCapturesStdoutAsStringWhenNoProcessorDeclared(t *testing.T) {
	dir := t.TempDir()
	step := workflow.Step{
		Name:    "greet",
		Command: "echo -n hello",
	}
	v, err := runStep(dir, step, nil, "out")
	if err != nil {
		t.Fatalf("runStep: %v", err)
	}
	if v.Kind != workflow.TypeString || v.Str != "hello" {
		t.Fatalf("v = %+v, want String(hello)", v)
	}
}

func TestRunStepResolvesFileOutputViaProcessorGlob(t *testing.T) {
	dir := t.TempDir()
	step := workflow.Step{
		Name:       "touch",
		Command:    "touch result.out",
		Processors: map[string]workflow.Processor{"out": {Glob: "*.out"}},
	}
	v, err := runStep(dir, step, nil, "out")
	if err != nil {
		t.Fatalf("runStep: %v", err)
	}
	if v.Kind != workflow.TypeFile {
		t.Fatalf("v = %+v, want File", v)
	}
	if filepath.Base(v.File) != "result.out" {
		t.Fatalf("resolved file = %q", v.File)
	}
}

func TestRunStepMissingOutputFails(t *testing.T) {
	dir := t.TempDir()
	step := workflow.Step{
		Name:       "noop",
		Command:    "true",
		Processors: map[string]workflow.Processor{"out": {Glob: "*.out"}},
	}
	_, err := runStep(dir, step, nil, "out")
	if !errors.Is(err, ErrMissingOutput) {
		t.Fatalf("err = %v, want ErrMissingOutput", err)
	}
}

func TestRunStepAmbiguousOutputFails(t *testing.T) {
	dir := t.TempDir()
	step := workflow.Step{
		Name:       "touchtwo",
		Command:    "touch a.out b.out",
		Processors: map[string]workflow.Processor{"out": {Glob: "*.out"}},
	}
	_, err := runStep(dir, step, nil, "out")
	if !errors.Is(err, ErrAmbiguousOutput) {
		t.Fatalf("err = %v, want ErrAmbiguousOutput", err)
	}
}

func TestRunStepNonZeroExitFails(t *testing.T) {
	dir := t.TempDir()
	step := workflow.Step{Name: "fail", Command: "sh -c 'echo boom 1>&2; exit 3'"}
	_, err := runStep(dir, step, nil, "")
	var sf *StepFailure
	if !errors.As(err, &sf) {
		t.Fatalf("err = %v, want *StepFailure", err)
	}
	if sf.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", sf.ExitCode)
	}
	if !errors.Is(err, ErrStepFailed) {
		t.Fatalf("err does not unwrap to ErrStepFailed")
	}
}

func TestRunStepPortArgumentPrintedToStdoutLeavesGlobUnmatched(t *testing.T) {
	dir := t.TempDir()
	step := workflow.Step{
		Name:    "cat-arg",
		Command: "printf %s",
		Arguments: []workflow.Arg{
			{PortRef: "in"},
		},
		Processors: map[string]workflow.Processor{"out": {Glob: "*.out"}},
	}
	// printf writes to stdout, not a file, so with no matching glob this
	// should surface as a missing output rather than silently succeeding.
	inputs := map[string]workflow.PortValue{"in": workflow.StringValue("abc")}
	_, err := runStep(dir, step, inputs, "out")
	if !errors.Is(err, ErrMissingOutput) {
		t.Fatalf("err = %v, want ErrMissingOutput", err)
	}
}

func TestRunStepLiteralArgumentsAreNotShellQuoted(t *testing.T) {
	dir := t.TempDir()
	step := workflow.Step{
		Name:    "redirect",
		Command: "echo hi",
		Arguments: []workflow.Arg{
			{Literal: ">"},
			{Literal: "hello.txt"},
		},
	}
	if _, err := runStep(dir, step, nil, ""); err != nil {
		t.Fatalf("runStep: %v", err)
	}
	// The step runs inside its scratch directory, so the redirect target
	// lands there rather than directly under dir.
	if matches, err := filepath.Glob(filepath.Join(dir, "exec_redirect_*", "hello.txt")); err != nil || len(matches) != 1 {
		t.Fatalf("expected literal '>' to be interpreted as a shell redirect creating hello.txt in the scratch dir, got matches %v, err %v", matches, err)
	}
}

func TestRunStepPortValuesAreShellQuoted(t *testing.T) {
	dir := t.TempDir()
	step := workflow.Step{
		Name:    "echo-port",
		Command: "printf %s",
		Arguments: []workflow.Arg{
			{PortRef: "in"},
		},
		Processors: map[string]workflow.Processor{"out": {Glob: "*.out"}},
	}
	inputs := map[string]workflow.PortValue{"in": workflow.StringValue("a > b.out")}
	_, err := runStep(dir, step, inputs, "out")
	if !errors.Is(err, ErrMissingOutput) {
		t.Fatalf("err = %v, want ErrMissingOutput (port value's '>' must be quoted as literal text, not interpreted as a redirect)", err)
	}
}

func TestStageInputsSymlinksFilesByBasename(t *testing.T) {
	srcDir := t.TempDir()
	srcFile := filepath.Join(srcDir, "input.txt")
	if err := os.WriteFile(srcFile, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dstDir := t.TempDir()
	inputs := map[string]workflow.PortValue{"in": workflow.FileValue(srcFile)}
	if err := stageInputs(dstDir, inputs); err != nil {
		t.Fatalf("stageInputs: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dstDir, "input.txt"))
	if err != nil {
		t.Fatalf("reading staged symlink: %v", err)
	}
	if string(got) != "data" {
		t.Fatalf("staged content = %q", got)
	}
}
