// Package gotarget is the Go source code-generation target for
// pkg/compiler: it implements compiler.Emitter by writing one
// cmd/<location>/main.go per location plus the surrounding project
// scaffolding (go.mod, address_map.txt, run.sh), grounded on the original
// Rust back-end's per-location file emission and project-assembly scripts.
package gotarget

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/workflow"
	"github.com/corewire/flowc/pkg/workflow/addressmap"
)

// FlowcVersion is the require-directive version stamped into generated
// go.mod files when the caller does not override it via Options.
const FlowcVersion = "v0.0.0-00010101000000-000000000000"

// Options configures New beyond the mandatory output directory.
type Options struct {
	// FlowcReplace, if non-empty, is emitted as a replace directive target
	// for github.com/corewire/flowc in the generated go.mod, pointing back
	// at the compiler's own checkout so the generated project resolves
	// without a registry fetch.
	FlowcReplace string
	// FlowcVersion overrides the require-directive version. Defaults to
	// FlowcVersion.
	FlowcVersion string

	// DebugPort, if non-zero, makes every generated main() start
	// station.DebugServer on that port as a background goroutine.
	DebugPort int
	// EnableMetrics makes every generated main() construct and attach a
	// station.Metrics via station.NewDefaultMetrics.
	EnableMetrics bool
	// TraceDir, if non-empty, makes every generated main() open a
	// station.Tracer writing to <TraceDir>/<location>.trace.
	TraceDir string
}

// Emitter implements compiler.Emitter by writing a Go project to OutDir.
type Emitter struct {
	outDir string
	opts   Options

	wf  *workflow.DistributedWorkflow
	cur *locationState

	// locationOrder records emission order for run.sh. It is not reset
	// between workflows and does not dedupe repeated names, so one Emitter
	// serves one compilation.
	locationOrder []string
}

// New returns an Emitter that writes a generated project under outDir.
func New(outDir string, opts Options) *Emitter {
	if opts.FlowcVersion == "" {
		opts.FlowcVersion = FlowcVersion
	}
	return &Emitter{outDir: outDir, opts: opts}
}

func (e *Emitter) BeginWorkflow(wf *workflow.DistributedWorkflow) error {
	e.wf = wf
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return xerrors.Errorf("creating output directory %q: %w", e.outDir, err)
	}
	return nil
}

func (e *Emitter) EndWorkflow() error {
	if err := e.writeGoMod(); err != nil {
		return err
	}
	if err := e.writeAddressMap(); err != nil {
		return err
	}
	if err := e.writeRunScript(); err != nil {
		return err
	}
	return nil
}

func (e *Emitter) BeginLocation(loc workflow.Location) error {
	e.cur = newLocationState(loc.Name)
	e.cur.push()
	e.locationOrder = append(e.locationOrder, loc.Name)
	return nil
}

func (e *Emitter) EndLocation(loc workflow.Location) error {
	if len(e.cur.scopes) != 1 {
		return xerrors.Errorf("location %q: %d scopes still open at end of location", loc.Name, len(e.cur.scopes))
	}
	root := e.cur.pop()

	dir := filepath.Join(e.outDir, "cmd", loc.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Errorf("creating location directory %q: %w", dir, err)
	}

	var tracePath string
	if e.opts.TraceDir != "" {
		tracePath = filepath.Join(e.opts.TraceDir, loc.Name+".trace")
	}

	var b strings.Builder
	data := struct {
		Name          string
		Workdir       string
		Body          string
		DebugPort     int
		EnableMetrics bool
		TracePath     string
	}{
		Name:          loc.Name,
		Workdir:       loc.Workdir,
		Body:          root.body.String(),
		DebugPort:     e.opts.DebugPort,
		EnableMetrics: e.opts.EnableMetrics,
		TracePath:     tracePath,
	}
	if err := mainFileTemplate.Execute(&b, data); err != nil {
		return xerrors.Errorf("rendering main.go for location %q: %w", loc.Name, err)
	}

	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return xerrors.Errorf("writing %q: %w", path, err)
	}
	e.cur = nil
	return nil
}

// InitPort seeds port with data's literal value via comm.InitPort, emitted
// at the top of the location's run body before any task spawns.
func (e *Emitter) InitPort(loc workflow.Location, port string, data workflow.Data) error {
	scope := e.cur.top()
	scope.body.WriteString("\tif err := comm.InitPort(" + strconv.Quote(port) + ", " + portValueLit(data) + "); err != nil {\n")
	scope.body.WriteString("\t\treturn err\n\t}\n")
	return nil
}

func (e *Emitter) writeGoMod() error {
	var b strings.Builder
	data := struct {
		Module       string
		FlowcVersion string
		FlowcReplace string
	}{Module: sanitizeModuleName(e.wf.Name), FlowcVersion: e.opts.FlowcVersion, FlowcReplace: e.opts.FlowcReplace}
	if err := goModTemplate.Execute(&b, data); err != nil {
		return xerrors.Errorf("rendering go.mod: %w", err)
	}
	path := filepath.Join(e.outDir, "go.mod")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return xerrors.Errorf("writing %q: %w", path, err)
	}
	return nil
}

func (e *Emitter) writeAddressMap() error {
	m := make(addressmap.Map, len(e.wf.Blocks))
	for _, block := range e.wf.Blocks {
		loc := block.Location
		m[loc.Name] = addressmap.Address{
			Location: loc.Name,
			Host:     loc.Hostname,
			HostPort: loc.Hostname + ":" + itoa(loc.Port),
		}
	}
	path := filepath.Join(e.outDir, "address_map.txt")
	if err := os.WriteFile(path, []byte(m.Render()), 0o644); err != nil {
		return xerrors.Errorf("writing %q: %w", path, err)
	}
	return nil
}

func (e *Emitter) writeRunScript() error {
	var b strings.Builder
	data := struct{ Locations []string }{Locations: e.locationOrder}
	if err := runScriptTemplate.Execute(&b, data); err != nil {
		return xerrors.Errorf("rendering run.sh: %w", err)
	}
	path := filepath.Join(e.outDir, "run.sh")
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		return xerrors.Errorf("writing %q: %w", path, err)
	}
	return nil
}

// sanitizeModuleName turns a workflow name into a bare Go module path
// segment: lowercase, spaces and underscores collapsed to hyphens.
func sanitizeModuleName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ', r == '_':
			return '-'
		default:
			return -1
		}
	}, name)
	if name == "" {
		name = "workflow"
	}
	return name
}
