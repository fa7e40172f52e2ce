package station

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// Tracer is the "Amdahline" sidecar: it opens one span per tracked
// operation against an opentracing.Tracer (Jaeger-backed, sampling every
// span, matching this codebase's existing tracer-construction idiom) and
// additionally appends a flat per-location text record for every
// register/unregister and exec event, since that text trail — not the
// Jaeger backend — is the artifact this runtime actually promises callers.
// Neither output affects correctness; a Station runs identically with
// Tracer nil.
type Tracer struct {
	ot     opentracing.Tracer
	closer io.Closer

	mu  sync.Mutex
	out io.WriteCloser
}

// NewTracer opens a Jaeger tracer for serviceName and a text trace file at
// path (truncated if it exists).
func NewTracer(serviceName, path string) (*Tracer, error) {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading jaeger config: %w", err)
	}
	cfg.Sampler = &jaegercfg.SamplerConfig{Type: jaeger.SamplerTypeConst, Param: 1}
	cfg.ServiceName = serviceName

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, fmt.Errorf("constructing jaeger tracer: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("creating trace file %q: %w", path, err)
	}

	return &Tracer{ot: tracer, closer: closer, out: f}, nil
}

// Close flushes the Jaeger tracer and closes the text trace file.
func (t *Tracer) Close() error {
	if err := t.closer.Close(); err != nil {
		t.out.Close()
		return err
	}
	return t.out.Close()
}

func (t *Tracer) record(event, detail string) {
	span := t.ot.StartSpan(event)
	if detail != "" {
		span.SetTag("detail", detail)
	}
	span.Finish()

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s\t%s\t%s\n", time.Now().Format(time.RFC3339Nano), event, detail)
}

// traceEvent is a no-op when the Station was built without a Tracer.
func (s *Station) traceEvent(event, detail string) {
	if s.tracer == nil {
		return
	}
	s.tracer.record(event, detail)
}
