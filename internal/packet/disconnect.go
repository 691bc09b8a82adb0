package packet

import (
	"github.com/blockproxy/blockproxy/internal/codec"
	"github.com/blockproxy/blockproxy/internal/packet/chat"
)

// DisconnectID is the server->client packet id carrying a disconnect
// chat-JSON reason, valid while the session is in Login or Status.
const DisconnectID int32 = 0

// EncodeDisconnect serializes reason as the length-prefixed JSON chat
// document payload of a disconnect packet.
func EncodeDisconnect(reason chat.Document) []byte {
	var buf []byte
	codec.WriteString(&buf, reason.String(), 0)
	return buf
}
