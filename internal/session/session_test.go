package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/blockproxy/blockproxy/internal/codec"
	"github.com/blockproxy/blockproxy/internal/config"
	"github.com/blockproxy/blockproxy/internal/packet"
)

func testConfig(endpoints ...config.Endpoint) *config.Config {
	return &config.Config{
		Settings: config.Settings{
			ClientBufferSize:  4096,
			BackendBufferSize: 4096,
			ClientsLimit:      100,
			HandshakeTimeout:  2000,
		},
		Endpoints: endpoints,
	}
}

// pipeConn returns a connected in-memory net.Conn pair, avoiding any
// real socket or dependency on the host network stack in tests.
func pipeConn() (net.Conn, net.Conn) {
	return net.Pipe()
}

func runSession(cfg *config.Config, client net.Conn, dial DialFunc) *Session {
	sess := New(client, cfg, nil)
	if dial != nil {
		sess.dial = dial
	}
	go sess.Run(context.Background())
	return sess
}

func writeHandshake(t *testing.T, conn net.Conn, host string, nextState int32) {
	t.Helper()
	var payload []byte
	off := codec.WriteVarInt(&payload, 765, 0)
	off += codec.WriteString(&payload, host, off)
	codec.WriteUint16(&payload, 25565, off)
	off += 2
	codec.WriteVarInt(&payload, nextState, off)

	if _, err := conn.Write(packet.Encode(0, payload)); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
}

func TestScenarioS1_StatusProbeNoBackend(t *testing.T) {
	t.Parallel()

	client, proxySide := pipeConn()
	defer client.Close()

	cfg := testConfig() // no endpoints configured for "example.test"
	runSession(cfg, proxySide, nil)

	writeHandshake(t, client, "example.test", 1)
	mustWriteStatusRequest(t, client)

	frame := mustReadFrame(t, client)
	if frame.ID != packet.StatusResponseID {
		t.Fatalf("id = %d, want %d", frame.ID, packet.StatusResponseID)
	}

	jsonStr := mustReadPrefixedString(t, frame.Payload)
	var doc struct {
		Version struct {
			Name     string `json:"name"`
			Protocol int32  `json:"protocol"`
		} `json:"version"`
		Players struct {
			Max    int `json:"max"`
			Online int `json:"online"`
		} `json:"players"`
		Description struct {
			Text string `json:"text"`
		} `json:"description"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", jsonStr, err)
	}
	if doc.Version.Name != "1.20.4" || doc.Version.Protocol != 765 {
		t.Errorf("version = %+v", doc.Version)
	}
	if doc.Players.Online != 0 || doc.Players.Max != 20 {
		t.Errorf("players = %+v", doc.Players)
	}
	if doc.Description.Text != "Hello world" {
		t.Errorf("description.text = %q", doc.Description.Text)
	}

	const ts int64 = 0xCAFEBABE
	if _, err := client.Write(packet.Encode(packet.PingID, packet.EncodePong(ts))); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	pong := mustReadFrame(t, client)
	echoed, err := packet.DecodePing(pong.Payload)
	if err != nil {
		t.Fatalf("DecodePing: %v", err)
	}
	if echoed != ts {
		t.Errorf("echoed timestamp = %d, want %d", echoed, ts)
	}
}

func TestScenarioS2_StatusProbeAfterFailedDial(t *testing.T) {
	t.Parallel()

	client, proxySide := pipeConn()
	defer client.Close()

	origin := "127.0.0.1:1"
	cfg := testConfig(config.Endpoint{Hostname: "slow.test", Origin: &origin})

	failingDial := func(addr string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("dial refused")
	}
	runSession(cfg, proxySide, failingDial)

	writeHandshake(t, client, "slow.test", 2)
	mustWriteStatusRequest(t, client)

	frame := mustReadFrame(t, client)
	if frame.ID != packet.DisconnectID {
		t.Fatalf("id = %d, want disconnect", frame.ID)
	}
	text := mustReadPrefixedString(t, frame.Payload)
	var doc struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if doc.Text != "Bad Gateway" {
		t.Errorf("text = %q, want Bad Gateway", doc.Text)
	}
}

func TestScenarioS3_LoginHandoffWithResidualBytes(t *testing.T) {
	t.Parallel()

	backendLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen backend: %v", err)
	}
	defer backendLn.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := backendLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		n, _ := conn.Read(buf)
		received <- append([]byte(nil), buf[:n]...)
	}()

	client, proxySide := pipeConn()
	defer client.Close()

	origin := backendLn.Addr().String()
	cfg := testConfig(config.Endpoint{Hostname: "play.test", Origin: &origin})
	runSession(cfg, proxySide, nil)

	residual := make([]byte, 64)
	for i := range residual {
		residual[i] = byte(i)
	}

	var hsPayload []byte
	off := codec.WriteVarInt(&hsPayload, 765, 0)
	off += codec.WriteString(&hsPayload, "play.test", off)
	codec.WriteUint16(&hsPayload, 25565, off)
	off += 2
	codec.WriteVarInt(&hsPayload, 2, off)

	segment := append(packet.Encode(0, hsPayload), residual...)
	if _, err := client.Write(segment); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(residual) {
			t.Errorf("backend observed %v, want %v", got, residual)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for backend to observe residual bytes")
	}
}

func TestScenarioS4_LegacyPing(t *testing.T) {
	t.Parallel()

	client, proxySide := pipeConn()
	defer client.Close()

	cfg := testConfig()
	sess := runSession(cfg, proxySide, nil)

	if _, err := client.Write(packet.EncodeLegacyPing()); err != nil {
		t.Fatalf("write legacy ping: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := sess.State(); got != Handshake {
		t.Errorf("state = %v, want Handshake", got)
	}
}

func TestScenarioS5_Overflow(t *testing.T) {
	t.Parallel()

	client, proxySide := pipeConn()
	defer client.Close()

	cfg := testConfig()
	cfg.Settings.ClientBufferSize = 16
	sess := runSession(cfg, proxySide, nil)

	junk := make([]byte, 17)
	done := make(chan struct{})
	go func() {
		_, _ = client.Write(junk)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	deadline := time.After(2 * time.Second)
	for sess.State() != Closed {
		select {
		case <-deadline:
			t.Fatalf("session did not close after overflow, state = %v", sess.State())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScenarioS6_ConcurrentLimit(t *testing.T) {
	t.Parallel()
	// Exercised at the supervisor layer; see internal/supervisor tests.
}

func TestInvariant_UnrecognizedNextStateCloses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		nextState int32
	}{
		{"handshaking", 0},
		{"play", 3},
		{"large", 99},
		{"negative", -1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, proxySide := pipeConn()
			defer client.Close()

			cfg := testConfig()
			sess := runSession(cfg, proxySide, nil)

			writeHandshake(t, client, "example.test", tc.nextState)

			deadline := time.After(2 * time.Second)
			for sess.State() != Closed {
				select {
				case <-deadline:
					t.Fatalf("session did not close for next_state %d, state = %v", tc.nextState, sess.State())
				case <-time.After(10 * time.Millisecond):
				}
			}
		})
	}
}

func TestInvariant_LoginWithoutOriginDisconnectsOnce(t *testing.T) {
	t.Parallel()

	customMsg := "this route is retired"

	cases := []struct {
		name     string
		endpoint config.Endpoint
		wantText string
	}{
		{
			name:     "explicit message",
			endpoint: config.Endpoint{Hostname: "retired.test", Message: &customMsg},
			wantText: customMsg,
		},
		{
			name:     "default message",
			endpoint: config.Endpoint{Hostname: "noorigin.test"},
			wantText: config.DefaultDisconnectMessage,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, proxySide := pipeConn()
			defer client.Close()

			cfg := testConfig(tc.endpoint)
			sess := runSession(cfg, proxySide, nil)

			writeHandshake(t, client, tc.endpoint.Hostname, 2)

			frame := mustReadFrame(t, client)
			if frame.ID != packet.DisconnectID {
				t.Fatalf("id = %d, want disconnect", frame.ID)
			}
			text := mustReadPrefixedString(t, frame.Payload)
			var doc struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal([]byte(text), &doc); err != nil {
				t.Fatalf("json.Unmarshal: %v", err)
			}
			if doc.Text != tc.wantText {
				t.Errorf("text = %q, want %q", doc.Text, tc.wantText)
			}

			// Exactly one packet: the connection must be closed
			// immediately after, with nothing further to read.
			_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
			buf := make([]byte, 16)
			if n, err := client.Read(buf); err == nil {
				t.Fatalf("expected closed connection after disconnect, read %d more bytes", n)
			}

			if got := sess.State(); got != Closed {
				t.Errorf("state = %v, want Closed", got)
			}
		})
	}
}

func TestInvariant_ForwardNeverSynthesizesReplies(t *testing.T) {
	t.Parallel()

	backendLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen backend: %v", err)
	}
	defer backendLn.Close()

	go func() {
		conn, err := backendLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if _, werr := conn.Write(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	client, proxySide := pipeConn()
	defer client.Close()

	origin := backendLn.Addr().String()
	cfg := testConfig(config.Endpoint{Hostname: "play.test", Origin: &origin})
	runSession(cfg, proxySide, nil)

	writeHandshake(t, client, "play.test", 2)

	// A packet shaped exactly like a status request, sent after the
	// session has (or is about to have) entered Forward. If the parse
	// handler still intercepted it instead of relaying opaquely, the
	// client would see a synthesized StatusResponse rather than this
	// same packet echoed back by the backend.
	probe := packet.Encode(packet.StatusRequestID, nil)
	if _, err := client.Write(probe); err != nil {
		t.Fatalf("write probe: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(3 * time.Second))
	got := make([]byte, len(probe))
	if _, err := io.ReadFull(client, got); err != nil {
		t.Fatalf("read echoed probe: %v", err)
	}
	if string(got) != string(probe) {
		t.Errorf("echoed bytes = %x, want the probe unchanged (%x); parse handler may have synthesized a reply", got, probe)
	}
}

func mustWriteStatusRequest(t *testing.T, conn net.Conn) {
	t.Helper()
	if _, err := conn.Write(packet.Encode(packet.StatusRequestID, nil)); err != nil {
		t.Fatalf("write status request: %v", err)
	}
}

func mustReadFrame(t *testing.T, conn net.Conn) packet.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 4096)
	total := 0
	for {
		n, err := conn.Read(buf[total:])
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		total += n
		frame, consumed, perr := packet.Parse(buf[:total])
		if perr == nil {
			_ = consumed
			return frame
		}
		if !packet.Recoverable(perr) {
			t.Fatalf("parse: %v", perr)
		}
	}
}

func mustReadPrefixedString(t *testing.T, payload []byte) string {
	t.Helper()
	s, _, err := codec.ReadString(payload, 0)
	if err != nil {
		t.Fatalf("codec.ReadString: %v", err)
	}
	return s
}
