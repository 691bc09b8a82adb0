// Package metrics exposes a small set of session/byte counters on a
// plain HTTP text endpoint, in the style of a hand-rolled Prometheus
// exposition (counters as atomic.Uint64 fields, one Fprintln line per
// series) rather than a metrics client library.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// Registry holds the proxy's counters. The zero value is ready to use.
type Registry struct {
	sessionsAccepted  atomic.Uint64
	sessionsRejected  atomic.Uint64
	sessionsActive    atomic.Int64
	sessionsForwarded atomic.Uint64
	sessionsClosed    atomic.Uint64
	bytesClientToBack atomic.Uint64
	bytesBackToClient atomic.Uint64
}

func (r *Registry) SessionAccepted()  { r.sessionsAccepted.Add(1); r.sessionsActive.Add(1) }
func (r *Registry) SessionRejected()  { r.sessionsRejected.Add(1) }
func (r *Registry) SessionForwarded() { r.sessionsForwarded.Add(1) }
func (r *Registry) SessionClosed()    { r.sessionsClosed.Add(1); r.sessionsActive.Add(-1) }

func (r *Registry) AddClientToBackendBytes(n int) { r.bytesClientToBack.Add(uint64(n)) }
func (r *Registry) AddBackendToClientBytes(n int) { r.bytesBackToClient.Add(uint64(n)) }

// Handler renders the current counter values as plain text lines.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `blockproxy_sessions_total{result="accepted"}`, r.sessionsAccepted.Load())
		fmt.Fprintln(w, `blockproxy_sessions_total{result="rejected"}`, r.sessionsRejected.Load())
		fmt.Fprintln(w, `blockproxy_sessions_total{result="forwarded"}`, r.sessionsForwarded.Load())
		fmt.Fprintln(w, `blockproxy_sessions_total{result="closed"}`, r.sessionsClosed.Load())
		fmt.Fprintln(w, `blockproxy_sessions_active`, r.sessionsActive.Load())
		fmt.Fprintln(w, `blockproxy_relay_bytes_total{direction="client_to_backend"}`, r.bytesClientToBack.Load())
		fmt.Fprintln(w, `blockproxy_relay_bytes_total{direction="backend_to_client"}`, r.bytesBackToClient.Load())
	})
}
