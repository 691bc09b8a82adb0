package packet

import "github.com/blockproxy/blockproxy/internal/codec"

// Handshake is the first packet of a session (id 0 while in the
// Handshake state).
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       ProtoState
}

// DecodeHandshake parses a Handshake payload. Any field failure returns
// a *MalformedFieldError naming the field.
func DecodeHandshake(payload []byte) (Handshake, error) {
	buf := codec.NewBuffer(payload)

	protocolVersion, err := buf.ReadVarInt()
	if err != nil {
		return Handshake{}, &MalformedFieldError{Field: "protocol_version"}
	}
	serverAddress, err := buf.ReadString()
	if err != nil {
		return Handshake{}, &MalformedFieldError{Field: "server_address"}
	}
	serverPort, err := buf.ReadUint16()
	if err != nil {
		return Handshake{}, &MalformedFieldError{Field: "server_port"}
	}
	nextState, err := buf.ReadVarInt()
	if err != nil {
		return Handshake{}, &MalformedFieldError{Field: "next_state"}
	}

	return Handshake{
		ProtocolVersion: protocolVersion,
		ServerAddress:   serverAddress,
		ServerPort:      serverPort,
		NextState:       ParseProtoState(nextState),
	}, nil
}
