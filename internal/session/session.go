// Package session implements the per-connection protocol state
// machine (C4) and the bidirectional byte-pump relay (C5): the core
// this repository exists to get right. A Session starts in Handshake,
// moves to Status or Login on the client's Handshake packet, and from
// Login either regresses to Status with a pending disconnect, closes
// outright, or dials a backend and moves to Forward — at which point
// parsing stops and bytes are relayed opaquely in both directions.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockproxy/blockproxy/internal/config"
	"github.com/blockproxy/blockproxy/internal/metrics"
	"github.com/blockproxy/blockproxy/internal/packet"
	"github.com/blockproxy/blockproxy/internal/packet/chat"
)

// DialFunc dials a backend address with the given connect timeout;
// tests substitute this to point at an in-process listener.
type DialFunc func(addr string, timeout time.Duration) (net.Conn, error)

func defaultDial(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}

const backendDialTimeout = 3 * time.Second

// Session is the per-connection record. The fields from state through
// backendPending are read and written only while holding mu. Handlers
// take mu separately for each read or update, so the processing of one
// received chunk is not a single critical section. accumBuf is touched
// only by the goroutine running the parse loop and is not guarded by mu.
type Session struct {
	ID         string
	clientAddr string
	clientConn net.Conn

	cfg     *config.Config
	metrics *metrics.Registry
	dial    DialFunc

	mu                sync.Mutex
	state             State
	lastActivity      time.Time
	handshake         *packet.Handshake
	pendingDisconnect *string
	backendAddr       string
	backendConn       net.Conn
	backendPending    []byte

	// accumBuf is the parse-phase accumulation buffer: bytes read from
	// the client socket that have not yet formed a complete packet.
	// Bounded by cfg.Settings.ClientBufferSize; an oversized, still
	// unparseable accumulation closes the session.
	accumBuf []byte
}

// New constructs a Session for a freshly accepted client connection.
func New(clientConn net.Conn, cfg *config.Config, reg *metrics.Registry) *Session {
	return &Session{
		ID:           uuid.New().String(),
		clientAddr:   clientConn.RemoteAddr().String(),
		clientConn:   clientConn,
		cfg:          cfg,
		metrics:      reg,
		dial:         defaultDial,
		state:        Handshake,
		lastActivity: time.Now(),
	}
}

// logf emits a log line tagged at level, filtered against the
// session's configured config.Settings.Log verbosity.
func (s *Session) logf(level config.LogLevel, format string, args ...interface{}) {
	if !s.cfg.Settings.Log.Enabled(level) {
		return
	}
	log.Printf("[%s %s] %s", s.clientAddr, s.ID[:8], fmt.Sprintf(format, args...))
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.state = next
	s.lastActivity = time.Now()
}

// Run drives the session to completion: the parse phase, then (if
// reached) the relay phase. It blocks until the session closes.
func (s *Session) Run(ctx context.Context) {
	defer s.closeSockets()

	handshakeDeadline := time.Duration(s.cfg.Settings.HandshakeTimeout) * time.Millisecond
	if handshakeDeadline <= 0 {
		handshakeDeadline = 10 * time.Second
	}
	_ = s.clientConn.SetReadDeadline(time.Now().Add(handshakeDeadline))

	if err := s.parseLoop(ctx); err != nil {
		s.logf(config.LogVerbose, "parse loop: %v", err)
	}

	if s.State() == Forward {
		s.relay(ctx)
	}

	if s.metrics != nil {
		s.metrics.SessionClosed()
	}
}

// parseLoop reads chunks from the client socket and feeds them through
// the framer/state-machine dispatch until the session leaves the parse
// phase (enters Forward) or closes.
func (s *Session) parseLoop(ctx context.Context) error {
	chunkSize := config.DefaultChunkSize
	chunk := make([]byte, chunkSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.State() == Forward || s.State() == Closed {
			return nil
		}

		n, err := s.clientConn.Read(chunk)
		if n > 0 {
			s.accumBuf = append(s.accumBuf, chunk[:n]...)
			if bufLimit := s.cfg.Settings.ClientBufferSize; bufLimit > 0 && len(s.accumBuf) > bufLimit {
				s.mu.Lock()
				s.setState(Closed)
				s.mu.Unlock()
				s.logf(config.LogConnection, "client buffer overflow (%d > %d), closing", len(s.accumBuf), bufLimit)
				return nil
			}

			if drainErr := s.drainPackets(); drainErr != nil {
				return drainErr
			}
			if s.State() != Handshake {
				// Left Handshake for Status/Login/Forward within this
				// chunk: the handshake_timeout bound applies only to the
				// Handshake phase, so it is lifted here instead of
				// re-armed. A client idling afterward must not be
				// disconnected by it, and Forward enforces its own read
				// semantics in the relay loops.
				_ = s.clientConn.SetReadDeadline(time.Time{})
				if s.State() == Forward {
					return nil
				}
			}
			// Still in Handshake: the deadline set at accept time in Run
			// is left untouched, so a client trickling partial bytes
			// cannot push the bound out indefinitely.
		}
		if err != nil {
			s.mu.Lock()
			s.setState(Closed)
			s.mu.Unlock()
			if isClosedErr(err) || errors.Is(err, io.EOF) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logf(config.LogConnection, "handshake timeout")
				return nil
			}
			return fmt.Errorf("client read: %w", err)
		}
	}
}

// drainPackets repeatedly parses complete packets out of accumBuf,
// dispatching each to the current state's handler, until a recoverable
// (incomplete) parse error is hit or the session stops accepting
// further packets (Forward/Closed).
func (s *Session) drainPackets() error {
	for {
		if s.State() == Forward || s.State() == Closed {
			return nil
		}
		if len(s.accumBuf) == 0 {
			return nil
		}

		frame, consumed, err := packet.Parse(s.accumBuf)
		if err != nil {
			if packet.Recoverable(err) {
				return nil
			}
			s.mu.Lock()
			s.setState(Closed)
			s.mu.Unlock()
			return nil
		}

		residual := append([]byte(nil), s.accumBuf[consumed:]...)
		s.accumBuf = s.accumBuf[:0]

		if err := s.dispatch(frame); err != nil {
			return err
		}

		if s.State() == Forward {
			// Residual bytes after the triggering packet belong to the
			// backend, not to further client-side parsing. They must be
			// copied out of accumBuf before it is reused, or the backend
			// would observe stale or truncated bytes.
			if len(residual) > 0 {
				s.mu.Lock()
				s.backendPending = append(s.backendPending, residual...)
				s.mu.Unlock()
			}
			return nil
		}

		s.accumBuf = append(s.accumBuf, residual...)
	}
}

// dispatch routes a parsed frame to the handler for the session's
// current state.
func (s *Session) dispatch(frame packet.Frame) error {
	if frame.ID == packet.LegacyPingID {
		// The legacy 2-byte ping sentinel carries no routable state and
		// is ignored regardless of where the session currently is.
		return nil
	}

	switch s.State() {
	case Handshake:
		return s.handleHandshakePhase(frame)
	case Status:
		return s.handleStatusPhase(frame)
	case Login:
		return s.handleLoginPhase(frame)
	default:
		return nil
	}
}

func (s *Session) writeClient(payload []byte) error {
	_, err := s.clientConn.Write(payload)
	return err
}

func (s *Session) disconnectAndClose(reason chat.Document) {
	body := packet.EncodeDisconnect(reason)
	_ = s.writeClient(packet.Encode(packet.DisconnectID, body))
	s.mu.Lock()
	s.setState(Closed)
	s.mu.Unlock()
}

func (s *Session) closeSockets() {
	if s.clientConn != nil {
		_ = s.clientConn.Close()
	}
	s.mu.Lock()
	backend := s.backendConn
	s.mu.Unlock()
	if backend != nil {
		_ = backend.Close()
	}
}

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return strings.Contains(netErr.Err.Error(), "closed")
	}
	return strings.Contains(err.Error(), "closed")
}
