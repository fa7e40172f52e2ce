package gotarget

import "text/template"

// mainFileTemplate renders one location's cmd/<location>/main.go. The Body
// field is pre-rendered Go statement text assembled by the Exec/Recv/Send/
// Broadcast/Join/BeginParen/EndParen emitter methods; text/template performs
// no escaping on it, matching how the teacher's templates.go treats
// pre-rendered fragments.
var mainFileTemplate = template.Must(template.New("location-main").Parse(`// Code generated by flowc. DO NOT EDIT.

package main

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/corewire/flowc/pkg/station"
	"github.com/corewire/flowc/pkg/workflow"
	"github.com/corewire/flowc/pkg/workflow/addressmap"
)

// debugPort/enableMetrics/tracePath are baked in at compile time from the
// --debug-port/--metrics/--trace-dir flowc flags; the guards below keep
// this file's shape (and its imports) identical whether or not any of
// them is actually turned on.
const (
	debugPort     = {{.DebugPort}}
	enableMetrics = {{.EnableMetrics}}
	tracePath     = {{printf "%q" .TracePath}}
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	addrs, err := addressmap.Load("address_map.txt")
	if err != nil {
		log.WithError(err).Fatal("loading address map")
	}

	opts := station.Options{Logger: log}
	if enableMetrics {
		opts.Metrics = station.NewDefaultMetrics()
	}
	if tracePath != "" {
		tracer, err := station.NewTracer({{printf "%q" .Name}}, tracePath)
		if err != nil {
			log.WithError(err).Fatal("starting tracer")
		}
		defer tracer.Close()
		opts.Tracer = tracer
	}

	comm, err := station.New({{printf "%q" .Name}}, {{printf "%q" .Workdir}}, addrs, opts)
	if err != nil {
		log.WithError(err).Fatal("starting station")
	}
	defer comm.Close()

	if debugPort != 0 {
		go func() {
			addr := fmt.Sprintf(":%d", debugPort)
			if err := http.ListenAndServe(addr, station.DebugServer(comm)); err != nil {
				log.WithError(err).Error("debug server exited")
			}
		}()
	}

	if err := run(comm); err != nil {
		log.WithError(err).Fatal("workflow execution failed")
	}
}

func run(comm *station.Station) error {
{{.Body}}
	return nil
}
`))

// goModTemplate renders the generated project's own go.mod. It requires
// this repository's module for the station/workflow runtime packages the
// generated mains import; FlowcReplace, if set, emits a replace
// directive pointing back at the compiler's own checkout.
var goModTemplate = template.Must(template.New("go-mod").Parse(`module {{.Module}}

go 1.22

require github.com/corewire/flowc {{.FlowcVersion}}
{{if .FlowcReplace}}
replace github.com/corewire/flowc => {{.FlowcReplace}}
{{end}}`))

// runScriptTemplate renders run.sh: a local-process launcher, adapted from
// the copy+exec/wait-barrier shape of the original's docker launch script,
// with "copy this location's image into a container" dropped since the
// generated artifact here is already a plain binary to exec in place.
var runScriptTemplate = template.Must(template.New("run-script").Parse(`#!/bin/bash
# Code generated by flowc. DO NOT EDIT.
set -e

trap 'echo "force termination"; pkill -P $$' INT TERM

{{range .Locations}}./cmd/{{.}}/{{.}} &
{{end}}
wait
`))
