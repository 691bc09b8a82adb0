package packet

import "github.com/blockproxy/blockproxy/internal/codec"

// PingID is the status-phase ping packet id (client->proxy and echoed
// back proxy->client).
const PingID int32 = 1

// StatusRequestID is the status-phase status-request packet id.
const StatusRequestID int32 = 0

// DecodePing reads the i64 timestamp carried by a status-phase ping.
func DecodePing(payload []byte) (int64, error) {
	buf := codec.NewBuffer(payload)
	ts, err := buf.ReadVarLong()
	if err != nil {
		return 0, &MalformedFieldError{Field: "timestamp"}
	}
	return ts, nil
}

// EncodePong serializes the ping reply payload: the exact timestamp
// echoed back to the client.
func EncodePong(timestamp int64) []byte {
	var buf []byte
	codec.WriteVarLong(&buf, timestamp, 0)
	return buf
}
