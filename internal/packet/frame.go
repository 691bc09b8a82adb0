package packet

import (
	"github.com/blockproxy/blockproxy/internal/codec"
)

// pingSentinel is the legacy 2-byte server-list ping, not subject to
// the length/id framing below.
var pingSentinel = [2]byte{0xFE, 0x01}

// LegacyPingID is the synthetic id assigned to the legacy ping sentinel
// packet so callers can dispatch on it like any other packet id.
const LegacyPingID int32 = 255

// Frame is a single framed packet: an id and its payload. Payload is a
// sub-slice of the buffer Parse was called with; callers that retain a
// Frame past the next read must copy Payload themselves.
type Frame struct {
	ID      int32
	Payload []byte
}

// Parse extracts one framed packet from the head of buf, per the wire
// contract: packet_length (varint) | packet_id (varint) | payload.
//
// It returns the frame, the number of bytes consumed, and an error.
// Errors satisfying Recoverable mean buf does not yet hold a complete
// packet; the caller should read more and retry with the same buf
// (unshifted) or a superset of it.
func Parse(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, &EmptyBufferError{}
	}
	if len(buf) == 2 && buf[0] == pingSentinel[0] && buf[1] == pingSentinel[1] {
		return Frame{ID: LegacyPingID}, 2, nil
	}

	packetLength, lengthWidth, err := codec.ReadVarInt(buf, 0)
	if err != nil {
		return Frame{}, 0, &FormatError{Reason: "packet_length: " + err.Error()}
	}
	if packetLength < 0 {
		return Frame{}, 0, &FormatError{Reason: "negative packet_length"}
	}

	packetID, idWidth, err := codec.ReadVarInt(buf, lengthWidth)
	if err != nil {
		return Frame{}, 0, &FormatError{Reason: "packet_id: " + err.Error()}
	}

	total := lengthWidth + int(packetLength)
	if total > len(buf) {
		return Frame{}, 0, &FormatError{Reason: "insufficient buffer for declared packet_length"}
	}

	payloadStart := lengthWidth + idWidth
	if payloadStart > total {
		return Frame{}, 0, &LengthMismatchError{Reason: "id wider than declared packet_length"}
	}

	payload := buf[payloadStart:total]
	return Frame{ID: packetID, Payload: payload}, total, nil
}

// Encode serializes a framed packet: varint length-prefix (id width +
// payload length), varint id, payload body.
func Encode(id int32, payload []byte) []byte {
	var idBuf []byte
	idWidth := codec.WriteVarInt(&idBuf, id, 0)

	var out []byte
	lengthWidth := codec.WriteVarInt(&out, int32(idWidth+len(payload)), 0)
	out = append(out[:lengthWidth], idBuf...)
	out = append(out, payload...)
	return out
}

// EncodeLegacyPing returns the raw 2-byte legacy ping sentinel.
func EncodeLegacyPing() []byte {
	return []byte{pingSentinel[0], pingSentinel[1]}
}
