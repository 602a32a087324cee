package restgraph

import "context"

// HTTP verbs understood by the gateway.
const (
	VerbGet    = "GET"
	VerbPost   = "POST"
	VerbPut    = "PUT"
	VerbDelete = "DELETE"
)

// Gateway executes verbs against addresses and returns parsed response bodies.
// Implementations own every transport-level concern: headers, retries, TLS,
// content-type sniffing. The engine only requires that a response come back as
// a mapping, or an empty mapping when the response carries no body.
//
// body may be nil, a map, or contain embedded Nodes and Collections; callers
// at the serialization boundary should run it through NormalizePayload before
// encoding. contentType overrides the implementation's default when non-empty.
type Gateway interface {
	Execute(ctx context.Context, verb, address string, body any, contentType string) (map[string]any, error)
}

// Logger is the structured logging interface used across the module.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}
