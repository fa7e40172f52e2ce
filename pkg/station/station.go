package station

import (
	"context"
	"net"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/workflow"
	"github.com/corewire/flowc/pkg/workflow/addressmap"
)

// Station is the per-location runtime façade consumed by generated code: it
// owns the port store, the peer-stream registry and the accept loop, and
// exposes InitPort/Exec/Send/Recv/Broadcast/Close as its public surface,
// mirroring the constructor-spins-up-workers / Close-drains-them lifecycle
// used throughout this package's bspgraph-derived primitives.
type Station struct {
	self    string
	workdir string
	addrs   addressmap.Map

	store  *Store
	mux    *mux
	dialer *retryingDialer

	ctx    context.Context
	cancel context.CancelFunc

	log *logrus.Entry

	metrics *Metrics
	tracer  *Tracer
}

// Options configures New beyond the required self/workdir/address map
// triple; all fields are optional.
type Options struct {
	Clock   clock.Clock
	Logger  *logrus.Entry
	Metrics *Metrics
	Tracer  *Tracer
}

// New binds self's listen socket (resolved from addrs) and starts the
// accept loop as a background goroutine.
func New(self, workdir string, addrs addressmap.Map, opts Options) (*Station, error) {
	addr, ok := addrs[self]
	if !ok {
		return nil, xerrors.Errorf("address map has no entry for location %q", self)
	}
	ln, err := net.Listen("tcp", addr.HostPort)
	if err != nil {
		return nil, xerrors.Errorf("binding %q: %w", addr.HostPort, err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := newMux(self, ln)
	st := &Station{
		self:    self,
		workdir: workdir,
		addrs:   addrs,
		store:   NewStore(),
		mux:     m,
		dialer:  newRetryingDialer(clk, net.Dial, log),
		ctx:     ctx,
		cancel:  cancel,
		log:     log.WithField("location", self),
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
	go m.serve()
	st.traceEvent("register", "")
	return st, nil
}

// InitPort seeds port with v. Fails if the port already has a value.
func (s *Station) InitPort(port string, v workflow.PortValue) error {
	if err := s.store.Set(port, v); err != nil {
		return xerrors.Errorf("init_port %q: %w", port, err)
	}
	s.metricPortReady(port)
	return nil
}

// Exec awaits node's input ports, runs its step, and (if it declares an
// output) stores the result and marks the output port Ready.
func (s *Station) Exec(node workflow.ExecNode) error {
	s.traceEvent("exec.begin", node.Step.Name)
	defer s.traceEvent("exec.end", node.Step.Name)

	inputs := make(map[string]workflow.PortValue, len(node.Inputs))
	for _, in := range node.Inputs {
		inputs[in.Port] = s.store.Wait(in.Port)
	}

	var outPort string
	if len(node.Outputs) > 0 {
		outPort = node.Outputs[0].Port
	}

	out, err := runStep(s.workdir, node.Step, inputs, outPort)
	if err != nil {
		s.metricStepFailed(node.Step.Name)
		return xerrors.Errorf("exec %q: %w", node.Step.Name, err)
	}
	if outPort == "" {
		return nil
	}
	if err := s.store.Set(outPort, out); err != nil {
		return xerrors.Errorf("exec %q: storing output %q: %w", node.Step.Name, outPort, err)
	}
	s.metricPortReady(outPort)
	return nil
}

// Send awaits port's local value and streams it to dst.
func (s *Station) Send(port, dst string) error {
	addr, ok := s.addrs[dst]
	if !ok {
		return xerrors.Errorf("send %q: %w: %q", port, errUnknownDestination, dst)
	}
	v := s.store.Wait(port)
	s.traceEvent("send.begin", port)
	defer s.traceEvent("send.end", port)
	if err := send(s.ctx, s.dialer, s.self, addr.HostPort, port, v); err != nil {
		s.metricTransferFailed("send", port)
		return xerrors.Errorf("send %q to %q: %w", port, dst, err)
	}
	s.metricTransferOK("send", port)
	return nil
}

// Broadcast awaits port's local value once and streams it to every
// destination in dsts.
func (s *Station) Broadcast(port string, dsts []string) error {
	dstAddrs := make(map[string]string, len(dsts))
	for _, dst := range dsts {
		addr, ok := s.addrs[dst]
		if !ok {
			return xerrors.Errorf("broadcast %q: %w: %q", port, errUnknownDestination, dst)
		}
		dstAddrs[dst] = addr.HostPort
	}
	v := s.store.Wait(port)
	s.traceEvent("broadcast.begin", port)
	defer s.traceEvent("broadcast.end", port)
	if err := broadcast(s.ctx, s.dialer, s.self, dstAddrs, port, v); err != nil {
		s.metricTransferFailed("broadcast", port)
		return xerrors.Errorf("broadcast %q to %v: %w", port, dsts, err)
	}
	s.metricTransferOK("broadcast", port)
	return nil
}

// Recv waits for src's connection on port, decodes its payload as
// dataType, and stores the result locally.
func (s *Station) Recv(port, src string, dataType workflow.DataType) error {
	s.traceEvent("recv.begin", port)
	defer s.traceEvent("recv.end", port)
	v, err := recv(s.mux, src, port, dataType, s.workdir)
	if err != nil {
		s.metricTransferFailed("recv", port)
		return xerrors.Errorf("recv %q from %q: %w", port, src, err)
	}
	if err := s.store.Set(port, v); err != nil {
		return xerrors.Errorf("recv %q: %w", port, err)
	}
	s.metricPortReady(port)
	s.metricTransferOK("recv", port)
	return nil
}

// Close stops the accept loop and cancels any in-flight dial retries.
func (s *Station) Close() error {
	s.cancel()
	s.traceEvent("unregister", "")
	return s.mux.close()
}

var errUnknownDestination = xerrors.New("unknown destination location")
