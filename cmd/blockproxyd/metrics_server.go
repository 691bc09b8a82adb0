package main

import (
	"context"
	"net"
	"net/http"

	"github.com/blockproxy/blockproxy/internal/metrics"
)

func netHTTPMux(reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	return mux
}

// serveMetrics binds addr and serves mux until ctx is done. The
// listener is closed from the ctx.Done side to unblock http.Serve,
// rather than going through http.Server.Shutdown.
func serveMetrics(ctx context.Context, addr string, mux *http.ServeMux) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	if err := http.Serve(ln, mux); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
