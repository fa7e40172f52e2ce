package gotarget_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corewire/flowc/pkg/compiler"
	"github.com/corewire/flowc/pkg/compiler/gotarget"
	"github.com/corewire/flowc/pkg/workflow"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", path, err)
	}
	return string(b)
}

func compileTo(t *testing.T, outDir string, wf *workflow.DistributedWorkflow) {
	t.Helper()
	backend := compiler.NewBackend(gotarget.New(outDir, gotarget.Options{}))
	if err := backend.Compile(wf); err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

// broadcastWorkflow models spec.md's broadcast scenario: one location sends
// the same port to two destinations with nothing sequencing between the two
// sends, so Backend coalesces them into a single Broadcast call.
func broadcastWorkflow() *workflow.DistributedWorkflow {
	return &workflow.DistributedWorkflow{
		Name:    "broadcast-demo",
		Version: "1",
		Dependencies: map[string]workflow.Data{
			"d1": {Name: "d1", Type: workflow.TypeString, Value: "hello"},
		},
		Blocks: []workflow.LocationBlock{
			{
				Location: workflow.Location{Name: "src", Hostname: "127.0.0.1", Port: 9000, Workdir: "/tmp/src"},
				Dataset:  []workflow.FlowBinding{{Port: "p", Data: "d1"}},
				Body: workflow.ParNode{Branches: []workflow.Expr{
					workflow.SendNode{Data: "d1", Port: "p", DataType: workflow.TypeString, Dst: "a"},
					workflow.SendNode{Data: "d1", Port: "p", DataType: workflow.TypeString, Dst: "b"},
				}},
			},
		},
	}
}

func TestEmitBroadcastScenarioCoalescesIntoOneCall(t *testing.T) {
	outDir := t.TempDir()
	compileTo(t, outDir, broadcastWorkflow())

	got := readFile(t, filepath.Join(outDir, "cmd", "src", "main.go"))
	if !strings.Contains(got, `comm.Broadcast("p", []string{"a", "b"})`) {
		t.Fatalf("main.go missing coalesced broadcast call:\n%s", got)
	}
	if strings.Count(got, "comm.Send(") != 0 {
		t.Fatalf("expected no individual Send calls once coalesced:\n%s", got)
	}
	if !strings.Contains(got, `station.New("src", "/tmp/src", addrs, opts)`) {
		t.Fatalf("main.go missing station.New call:\n%s", got)
	}
}

func TestEmitDebugAndMetricsFlagsWireIntoGeneratedMain(t *testing.T) {
	outDir := t.TempDir()
	backend := compiler.NewBackend(gotarget.New(outDir, gotarget.Options{
		DebugPort:     9090,
		EnableMetrics: true,
		TraceDir:      "/tmp/traces",
	}))
	if err := backend.Compile(broadcastWorkflow()); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	got := readFile(t, filepath.Join(outDir, "cmd", "src", "main.go"))
	for _, want := range []string{
		"debugPort     = 9090",
		"enableMetrics = true",
		`tracePath     = "/tmp/traces/src.trace"`,
		"station.NewDefaultMetrics()",
		`station.NewTracer("src", tracePath)`,
		"station.DebugServer(comm)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("main.go missing %q:\n%s", want, got)
		}
	}
}

func TestEmitDebugAndMetricsDefaultOff(t *testing.T) {
	outDir := t.TempDir()
	compileTo(t, outDir, broadcastWorkflow())

	got := readFile(t, filepath.Join(outDir, "cmd", "src", "main.go"))
	for _, want := range []string{
		"debugPort     = 0",
		"enableMetrics = false",
		`tracePath     = ""`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("main.go missing %q:\n%s", want, got)
		}
	}
}

// gatherWorkflow models spec.md's gather scenario: a sink location receives
// the same logical value from two upstream sources in parallel, joined
// together by an enclosing paren before continuing.
func gatherWorkflow() *workflow.DistributedWorkflow {
	return &workflow.DistributedWorkflow{
		Name:    "gather-demo",
		Version: "1",
		Dependencies: map[string]workflow.Data{
			"d1": {Name: "d1", Type: workflow.TypeInt, Value: "1"},
		},
		Blocks: []workflow.LocationBlock{
			{
				Location: workflow.Location{Name: "sink", Hostname: "127.0.0.1", Port: 9100, Workdir: "/tmp/sink"},
				Body: workflow.ParenNode{Inner: workflow.ParNode{Branches: []workflow.Expr{
					workflow.RecvNode{Port: "pa", DataType: workflow.TypeInt, Src: "a"},
					workflow.RecvNode{Port: "pb", DataType: workflow.TypeInt, Src: "b"},
				}}},
			},
		},
	}
}

func TestEmitGatherScenarioJoinsBothReceives(t *testing.T) {
	outDir := t.TempDir()
	compileTo(t, outDir, gatherWorkflow())

	got := readFile(t, filepath.Join(outDir, "cmd", "sink", "main.go"))
	if !strings.Contains(got, `comm.Recv("pa", "a", workflow.TypeInt)`) {
		t.Fatalf("main.go missing recv of pa:\n%s", got)
	}
	if !strings.Contains(got, `comm.Recv("pb", "b", workflow.TypeInt)`) {
		t.Fatalf("main.go missing recv of pb:\n%s", got)
	}
	if !strings.Contains(got, ".Wait(); err != nil {") {
		t.Fatalf("main.go missing a join on the gathered receives:\n%s", got)
	}
}

// execChainWorkflow models a sequential exec chain: two steps joined by a
// seq barrier, the second consuming the first's output port.
func execChainWorkflow() *workflow.DistributedWorkflow {
	return &workflow.DistributedWorkflow{
		Name:    "exec-chain-demo",
		Version: "1",
		Blocks: []workflow.LocationBlock{
			{
				Location: workflow.Location{Name: "l0", Hostname: "127.0.0.1", Port: 9200, Workdir: "/tmp/l0"},
				Body: workflow.SeqNode{Steps: []workflow.Expr{
					workflow.ExecNode{
						Step:    workflow.Step{Name: "produce", Command: "printf ready"},
						Outputs: []workflow.FlowBinding{{Port: "mid"}},
					},
					workflow.ExecNode{
						Step:    workflow.Step{Name: "consume", Command: "cat", Arguments: []workflow.Arg{{PortRef: "mid"}}},
						Inputs:  []workflow.FlowBinding{{Port: "mid"}},
						Outputs: []workflow.FlowBinding{{Port: "out"}},
					},
				}},
			},
		},
	}
}

// rotationWorkflow models spec.md's rotation scenario: l0 broadcasts p1 to
// l1 and l2, then receives a reply from each, chained twice in sequence so
// each round's broadcast is fully joined before the next round's begins.
func rotationWorkflow() *workflow.DistributedWorkflow {
	return &workflow.DistributedWorkflow{
		Name:    "rotation-demo",
		Version: "1",
		Dependencies: map[string]workflow.Data{
			"d1": {Name: "d1", Type: workflow.TypeString, Value: "seed"},
		},
		Blocks: []workflow.LocationBlock{
			{
				Location: workflow.Location{Name: "l0", Hostname: "127.0.0.1", Port: 9400, Workdir: "/tmp/l0"},
				Dataset:  []workflow.FlowBinding{{Port: "p1", Data: "d1"}},
				Body: workflow.SeqNode{Steps: []workflow.Expr{
					workflow.ParNode{Branches: []workflow.Expr{
						workflow.SendNode{Port: "p1", DataType: workflow.TypeString, Dst: "l1"},
						workflow.SendNode{Port: "p1", DataType: workflow.TypeString, Dst: "l2"},
					}},
					workflow.ParNode{Branches: []workflow.Expr{
						workflow.RecvNode{Port: "r1a", DataType: workflow.TypeString, Src: "l1"},
						workflow.RecvNode{Port: "r1b", DataType: workflow.TypeString, Src: "l2"},
					}},
					workflow.ParNode{Branches: []workflow.Expr{
						workflow.SendNode{Port: "p1", DataType: workflow.TypeString, Dst: "l1"},
						workflow.SendNode{Port: "p1", DataType: workflow.TypeString, Dst: "l2"},
					}},
					workflow.ParNode{Branches: []workflow.Expr{
						workflow.RecvNode{Port: "r2a", DataType: workflow.TypeString, Src: "l1"},
						workflow.RecvNode{Port: "r2b", DataType: workflow.TypeString, Src: "l2"},
					}},
				}},
			},
		},
	}
}

func TestEmitRotationScenarioChainsBroadcastAndRecvPerRound(t *testing.T) {
	outDir := t.TempDir()
	compileTo(t, outDir, rotationWorkflow())

	got := readFile(t, filepath.Join(outDir, "cmd", "l0", "main.go"))
	broadcastIdxs := allIndexes(got, `comm.Broadcast("p1", []string{"l1", "l2"})`)
	if len(broadcastIdxs) != 2 {
		t.Fatalf("expected 2 broadcast calls (one per rotation), got %d:\n%s", len(broadcastIdxs), got)
	}
	round1RecvA := strings.Index(got, `comm.Recv("r1a", "l1", workflow.TypeString)`)
	round1RecvB := strings.Index(got, `comm.Recv("r1b", "l2", workflow.TypeString)`)
	round2RecvA := strings.Index(got, `comm.Recv("r2a", "l1", workflow.TypeString)`)
	round2RecvB := strings.Index(got, `comm.Recv("r2b", "l2", workflow.TypeString)`)
	if round1RecvA < 0 || round1RecvB < 0 || round2RecvA < 0 || round2RecvB < 0 {
		t.Fatalf("main.go missing expected per-round recvs:\n%s", got)
	}
	// round 1's broadcast and recvs must both precede round 2's broadcast,
	// so each rotation's barrier is respected.
	if !(broadcastIdxs[0] < round1RecvA && broadcastIdxs[0] < round1RecvB &&
		round1RecvA < broadcastIdxs[1] && round1RecvB < broadcastIdxs[1] &&
		broadcastIdxs[1] < round2RecvA && broadcastIdxs[1] < round2RecvB) {
		t.Fatalf("expected round1-broadcast -> round1-recv -> round2-broadcast -> round2-recv ordering:\n%s", got)
	}
}

func allIndexes(s, substr string) []int {
	var idxs []int
	for start := 0; ; {
		i := strings.Index(s[start:], substr)
		if i < 0 {
			return idxs
		}
		idxs = append(idxs, start+i)
		start += i + len(substr)
	}
}

func TestEmitExecChainScenarioJoinsBetweenSteps(t *testing.T) {
	outDir := t.TempDir()
	compileTo(t, outDir, execChainWorkflow())

	got := readFile(t, filepath.Join(outDir, "cmd", "l0", "main.go"))
	produceIdx := strings.Index(got, `Name: "produce"`)
	joinIdx := strings.Index(got, ".Wait(); err != nil {")
	consumeIdx := strings.Index(got, `Name: "consume"`)
	if produceIdx < 0 || joinIdx < 0 || consumeIdx < 0 {
		t.Fatalf("main.go missing expected sequence markers:\n%s", got)
	}
	if !(produceIdx < joinIdx && joinIdx < consumeIdx) {
		t.Fatalf("expected produce -> join -> consume ordering in generated source:\n%s", got)
	}
	if !strings.Contains(got, `PortRef: "mid"`) {
		t.Fatalf("main.go missing port-ref argument substitution:\n%s", got)
	}
}

func TestEmitIsIdempotentAcrossRepeatedCompiles(t *testing.T) {
	wf := execChainWorkflow()
	outA, outB := t.TempDir(), t.TempDir()
	compileTo(t, outA, wf)
	compileTo(t, outB, wf)

	gotA := readFile(t, filepath.Join(outA, "cmd", "l0", "main.go"))
	gotB := readFile(t, filepath.Join(outB, "cmd", "l0", "main.go"))
	if gotA != gotB {
		t.Fatalf("expected byte-identical emission across repeated compiles:\nA:\n%s\nB:\n%s", gotA, gotB)
	}
}

func TestEmitProjectScaffolding(t *testing.T) {
	outDir := t.TempDir()
	wf := broadcastWorkflow()
	wf.Blocks = append(wf.Blocks, workflow.LocationBlock{
		Location: workflow.Location{Name: "a", Hostname: "127.0.0.1", Port: 9001, Workdir: "/tmp/a"},
		Body:     workflow.RecvNode{Port: "p", DataType: workflow.TypeString, Src: "src"},
	})
	compileTo(t, outDir, wf)

	goMod := readFile(t, filepath.Join(outDir, "go.mod"))
	if !strings.Contains(goMod, "module broadcast-demo") || !strings.Contains(goMod, "require github.com/corewire/flowc") {
		t.Fatalf("unexpected go.mod:\n%s", goMod)
	}

	addrMap := readFile(t, filepath.Join(outDir, "address_map.txt"))
	if !strings.Contains(addrMap, "a,127.0.0.1,127.0.0.1:9001") || !strings.Contains(addrMap, "src,127.0.0.1,127.0.0.1:9000") {
		t.Fatalf("unexpected address_map.txt:\n%s", addrMap)
	}

	runScript := readFile(t, filepath.Join(outDir, "run.sh"))
	if !strings.Contains(runScript, "./cmd/src/src &") || !strings.Contains(runScript, "./cmd/a/a &") || !strings.Contains(runScript, "wait") {
		t.Fatalf("unexpected run.sh:\n%s", runScript)
	}
}

func TestCompileRejectsReservedChoice(t *testing.T) {
	wf := &workflow.DistributedWorkflow{
		Name: "choice-demo",
		Blocks: []workflow.LocationBlock{
			{
				Location: workflow.Location{Name: "l0", Hostname: "127.0.0.1", Port: 9300, Workdir: "/tmp/l0"},
				Body:     workflow.ChoiceNode{},
			},
		},
	}
	backend := compiler.NewBackend(gotarget.New(t.TempDir(), gotarget.Options{}))
	err := backend.Compile(wf)
	if err == nil || !errors.Is(err, compiler.ErrChoiceNotImplemented) {
		t.Fatalf("Compile: got %v, want ErrChoiceNotImplemented", err)
	}
}
