package supervisor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/blockproxy/blockproxy/internal/config"
)

func TestConcurrentLimitRejectsOverflow(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := &config.Config{
		Settings: config.Settings{
			ClientsLimit:      2,
			ClientBufferSize:  4096,
			BackendBufferSize: 4096,
			HandshakeTimeout:  60_000,
		},
	}

	sv := New(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = sv.Serve(ctx, ln) }()

	conns := make([]net.Conn, 3)
	for i := range conns {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		conns[i] = c
		defer c.Close()
	}

	// The third connection should be closed by the proxy without
	// reading any bytes: a subsequent read should observe EOF/closed.
	third := conns[2]
	_ = third.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := third.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				t.Fatal("third connection was not closed by the proxy")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("third connection was not closed by the proxy")
		}
	}
}
