package packet

import "testing"

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		id      int32
		payload []byte
	}{
		{"empty payload", 0, nil},
		{"small payload", 0, []byte{0x01, 0x02, 0x03}},
		{"large id", 127, []byte("hello")},
		{"large payload", 1, make([]byte, 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded := Encode(tt.id, tt.payload)
			frame, consumed, err := Parse(encoded)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if consumed != len(encoded) {
				t.Errorf("consumed %d, want %d", consumed, len(encoded))
			}
			if frame.ID != tt.id {
				t.Errorf("id = %d, want %d", frame.ID, tt.id)
			}
			if len(frame.Payload) != len(tt.payload) {
				t.Errorf("payload len = %d, want %d", len(frame.Payload), len(tt.payload))
			}
		})
	}
}

func TestFramePartialInputIsRecoverable(t *testing.T) {
	t.Parallel()

	encoded := Encode(0, []byte("hello world"))
	for k := 0; k < len(encoded); k++ {
		_, _, err := Parse(encoded[:k])
		if err == nil {
			t.Fatalf("Parse(first %d bytes): expected error, got none", k)
		}
		if !Recoverable(err) {
			t.Errorf("Parse(first %d bytes): got non-recoverable error %v", k, err)
		}
	}
}

func TestFrameEmptyBuffer(t *testing.T) {
	t.Parallel()

	_, _, err := Parse(nil)
	if _, ok := err.(*EmptyBufferError); !ok {
		t.Errorf("got %T, want *EmptyBufferError", err)
	}
}

func TestLegacyPingSentinel(t *testing.T) {
	t.Parallel()

	frame, consumed, err := Parse(EncodeLegacyPing())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if consumed != 2 {
		t.Errorf("consumed %d, want 2", consumed)
	}
	if frame.ID != LegacyPingID {
		t.Errorf("id = %d, want %d", frame.ID, LegacyPingID)
	}
}
