package packet

import (
	"encoding/json"

	"github.com/blockproxy/blockproxy/internal/codec"
	"github.com/blockproxy/blockproxy/internal/packet/chat"
)

// StatusResponseID is the status-phase packet id carrying the server
// list ping JSON document, in both directions.
const StatusResponseID int32 = 0

type statusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type statusPlayers struct {
	Max    int           `json:"max"`
	Online int           `json:"online"`
	Sample []interface{} `json:"sample"`
}

// StatusResponse is the server->client JSON status document.
type StatusResponse struct {
	VersionName     string
	ProtocolVersion int32
	MaxPlayers      int
	OnlinePlayers   int
	Description     chat.Document
	Favicon         string
	EnforcesSecure  bool
}

type statusDoc struct {
	Version        statusVersion `json:"version"`
	Players        statusPlayers `json:"players"`
	Description    chat.Document `json:"description"`
	Favicon        string        `json:"favicon,omitempty"`
	EnforcesSecure bool          `json:"enforces_secure_chat"`
}

// EncodeStatusResponse serializes s as the length-prefixed JSON string
// payload of a status response packet.
func EncodeStatusResponse(s StatusResponse) ([]byte, error) {
	doc := statusDoc{
		Version:        statusVersion{Name: s.VersionName, Protocol: s.ProtocolVersion},
		Players:        statusPlayers{Max: s.MaxPlayers, Online: s.OnlinePlayers, Sample: []interface{}{}},
		Description:    s.Description,
		Favicon:        s.Favicon,
		EnforcesSecure: s.EnforcesSecure,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var buf []byte
	codec.WriteString(&buf, string(body), 0)
	return buf, nil
}
