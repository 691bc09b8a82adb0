package config

// Proxy and protocol identity used in the startup banner and synthesized
// status responses.
const (
	ProxyVersion    = "0.1.0"
	ProtocolName    = "1.20.4"
	ProtocolVersion = 765
)

// DefaultChunkSize is the fixed read-chunk size used for each socket
// read.
const DefaultChunkSize = 4096

// DefaultBadGatewayMessage is the pending-disconnect text queued when a
// backend dial fails.
const DefaultBadGatewayMessage = "Bad Gateway"

// DefaultStatusDescription is the description text used for a
// synthesized status response when no endpoint MOTD applies.
const DefaultStatusDescription = "Hello world"

// DefaultDisconnectMessage is used when a routing entry has no origin
// and no explicit message.
const DefaultDisconnectMessage = "This server is not accepting connections."
