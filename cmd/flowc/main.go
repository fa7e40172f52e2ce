// Command flowc compiles a distributed workflow document into a per-location
// Go project that runs the workflow over a TCP mesh at runtime.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/compiler"
	"github.com/corewire/flowc/pkg/compiler/gotarget"
	"github.com/corewire/flowc/pkg/workflow/yamlconfig"
)

var (
	appName = "flowc"
	appSha  = "populated-at-link-time"
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})

	if err := makeApp().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("flowc failed")
		_ = os.Stderr.Sync()
		os.Exit(1)
	}
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSha
	app.Commands = []cli.Command{
		compileCommand(),
	}
	return app
}

func compileCommand() cli.Command {
	return cli.Command{
		Name:  "compile",
		Usage: "compile a workflow document into a per-location Go project",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "config",
				Usage: "path to the workflow YAML document (version/locations/dependencies/blocks)",
			},
			cli.StringFlag{
				Name:  "out",
				Usage: "output directory for the generated project",
			},
			cli.StringFlag{
				Name:  "flowc-replace",
				Usage: "optional go.mod replace target for github.com/corewire/flowc in the generated project",
			},
			cli.IntFlag{
				Name:  "debug-port",
				Usage: "if non-zero, every generated location starts station.DebugServer on this port",
			},
			cli.BoolFlag{
				Name:  "metrics",
				Usage: "have every generated location report Prometheus counters via station.NewDefaultMetrics",
			},
			cli.StringFlag{
				Name:  "trace-dir",
				Usage: "if set, every generated location writes a <location>.trace file under this directory",
			},
		},
		Action: runCompile,
	}
}

func runCompile(ctx *cli.Context) error {
	configPath := ctx.String("config")
	outDir := ctx.String("out")
	if configPath == "" {
		return xerrors.Errorf("compile: --config is required")
	}
	if outDir == "" {
		return xerrors.Errorf("compile: --out is required")
	}

	doc, err := yamlconfig.Load(configPath)
	if err != nil {
		return xerrors.Errorf("loading %q: %w", configPath, err)
	}

	name := workflowName(configPath)
	wf, err := doc.ToWorkflow(name)
	if err != nil {
		return xerrors.Errorf("building workflow from %q: %w", configPath, err)
	}

	emitter := gotarget.New(outDir, gotarget.Options{
		FlowcReplace:  ctx.String("flowc-replace"),
		DebugPort:     ctx.Int("debug-port"),
		EnableMetrics: ctx.Bool("metrics"),
		TraceDir:      ctx.String("trace-dir"),
	})
	backend := compiler.NewBackend(emitter)
	if err := backend.Compile(wf); err != nil {
		return xerrors.Errorf("compiling %q: %w", name, err)
	}

	logger.WithFields(logrus.Fields{
		"config":    configPath,
		"out":       outDir,
		"locations": len(wf.Blocks),
	}).Info("compiled workflow")
	return nil
}

func workflowName(configPath string) string {
	base := filepath.Base(configPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
