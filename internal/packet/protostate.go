package packet

// ProtoState is the wire-level next-state enum carried in a Handshake
// packet.
type ProtoState int32

const (
	ProtoHandshaking ProtoState = 0
	ProtoStatus      ProtoState = 1
	ProtoLogin       ProtoState = 2
	ProtoPlay        ProtoState = 3
	ProtoUnknown     ProtoState = -1
)

// ParseProtoState maps a raw varint value to its ProtoState, returning
// ProtoUnknown for any value outside the known range.
func ParseProtoState(raw int32) ProtoState {
	switch raw {
	case 0:
		return ProtoHandshaking
	case 1:
		return ProtoStatus
	case 2:
		return ProtoLogin
	case 3:
		return ProtoPlay
	default:
		return ProtoUnknown
	}
}
