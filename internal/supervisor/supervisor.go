// Package supervisor implements the connection lifecycle: accept,
// admit under the concurrent-connection cap, spawn a session, track
// it with a non-owning reference, and prune the tracker entry on exit
// (C6). Grounded on original_source/src/main.rs's atomic connection
// counter and src/socket_tracker.rs's weak-reference registry.
package supervisor

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/blockproxy/blockproxy/internal/config"
	"github.com/blockproxy/blockproxy/internal/metrics"
	"github.com/blockproxy/blockproxy/internal/session"
)

// Supervisor owns the accept loop and the live-session tracker.
type Supervisor struct {
	cfg     *config.Config
	metrics *metrics.Registry

	live atomic.Int64

	trackerMu sync.Mutex
	tracker   map[uint64]*session.Session
	nextID    uint64
}

// New constructs a Supervisor bound to cfg's clients_limit and other
// per-session tunables.
func New(cfg *config.Config, reg *metrics.Registry) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		metrics: reg,
		tracker: make(map[uint64]*session.Session),
	}
}

// Serve accepts connections on ln until ctx is done or Accept fails.
func (sv *Supervisor) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		sv.admit(ctx, conn)
	}
}

// admit enforces the concurrent-connection cap, then spawns a tracked
// session for conn. A connection over the cap is shut down immediately
// without being read from.
func (sv *Supervisor) admit(ctx context.Context, conn net.Conn) {
	limit := int64(sv.cfg.Settings.ClientsLimit)
	if limit > 0 && sv.live.Load() >= limit {
		if sv.metrics != nil {
			sv.metrics.SessionRejected()
		}
		_ = conn.Close()
		return
	}

	sv.live.Add(1)
	if sv.metrics != nil {
		sv.metrics.SessionAccepted()
	}

	sess := session.New(conn, sv.cfg, sv.metrics)
	id := sv.track(sess)

	go func() {
		defer sv.untrack(id)
		defer sv.live.Add(-1)
		sess.Run(ctx)
	}()
}

// track adds sess to the registry under an auto-incrementing id and
// returns it. The registry holds the only reference to sess that this
// package keeps; it is removed on session exit and never extends the
// session's lifetime beyond what the running goroutine already holds.
func (sv *Supervisor) track(sess *session.Session) uint64 {
	sv.trackerMu.Lock()
	defer sv.trackerMu.Unlock()
	sv.nextID++
	id := sv.nextID
	sv.tracker[id] = sess
	return id
}

func (sv *Supervisor) untrack(id uint64) {
	sv.trackerMu.Lock()
	delete(sv.tracker, id)
	sv.trackerMu.Unlock()
}

// LiveSessions returns the current count of tracked sessions, for
// diagnostics/logging.
func (sv *Supervisor) LiveSessions() int {
	sv.trackerMu.Lock()
	defer sv.trackerMu.Unlock()
	return len(sv.tracker)
}
