package session

import (
	"context"
	"errors"
	"io"
	"net"
)

// relay runs the two-goroutine byte pump once the session has entered
// Forward. Each direction runs in its own goroutine and reports back
// on a 2-buffered error channel, so the first side to finish can tear
// down both sockets without waiting on the second.
func (s *Session) relay(ctx context.Context) {
	errCh := make(chan error, 2)
	go func() { errCh <- s.relayClientToBackend(ctx) }()
	go func() { errCh <- s.relayBackendToClient(ctx) }()

	<-errCh
	s.closeSockets()
	<-errCh
}

func (s *Session) relayClientToBackend(ctx context.Context) error {
	backend := s.backendConnSnapshot()

	// Flush residual client bytes captured before the Forward
	// transition before relaying any newly read bytes, so the backend
	// sees them in the order the client actually sent them.
	s.mu.Lock()
	pending := s.backendPending
	s.backendPending = nil
	s.mu.Unlock()
	if len(pending) > 0 {
		if _, err := backend.Write(pending); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.AddClientToBackendBytes(len(pending))
		}
	}

	bufSize := s.cfg.Settings.ClientBufferSize
	if bufSize <= 0 {
		bufSize = 1 << 20
	}
	buf := make([]byte, minInt(bufSize, 65536))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := s.clientConn.Read(buf)
		if n > 0 {
			if _, werr := backend.Write(buf[:n]); werr != nil {
				if isClosedErr(werr) {
					return nil
				}
				return werr
			}
			if s.metrics != nil {
				s.metrics.AddClientToBackendBytes(n)
			}
		}
		if err != nil {
			if isClosedErr(err) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (s *Session) relayBackendToClient(ctx context.Context) error {
	backend := s.backendConnSnapshot()

	bufSize := s.cfg.Settings.BackendBufferSize
	if bufSize <= 0 {
		bufSize = 1 << 20
	}
	buf := make([]byte, minInt(bufSize, 65536))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := backend.Read(buf)
		if n > 0 {
			if _, werr := s.clientConn.Write(buf[:n]); werr != nil {
				if isClosedErr(werr) {
					return nil
				}
				return werr
			}
			if s.metrics != nil {
				s.metrics.AddBackendToClientBytes(n)
			}
		}
		if err != nil {
			if isClosedErr(err) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (s *Session) backendConnSnapshot() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backendConn
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
