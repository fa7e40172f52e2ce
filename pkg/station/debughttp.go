package station

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"

	routermux "github.com/gorilla/mux"
)

// DebugServer exposes pprof profiles, Prometheus metrics and a small
// station status endpoint on a single router, mirroring the
// second-goroutine debug-listener idiom every generated-main entry point in
// this codebase uses, routed through gorilla/mux instead of plain
// net/http's default ServeMux.
func DebugServer(s *Station) http.Handler {
	r := routermux.NewRouter()

	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)

	r.Handle("/metrics", Handler())

	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"location": s.self})
	})

	return r
}
