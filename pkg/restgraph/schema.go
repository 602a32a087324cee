package restgraph

import (
	"time"

	"github.com/fivetwenty-io/restgraph/internal/constants"
)

// ResourceType declares one resource in the graph: its identity, its URL
// segment, the fields and relationships callers may access, and the optional
// polling behavior for Wait. Types are plain configuration; the engine never
// reflects over Go structs.
type ResourceType struct {
	// Name identifies the type in event registrations and error messages.
	Name string

	// Ancestors is the static ancestor chain for event dispatch, most to
	// least specific, excluding Name itself.
	Ancestors []string

	// Path is the URL segment appended to the parent address for this
	// type's collections. Empty for dependent types.
	Path string

	// PrimaryKey is the field holding the identifier. Empty means the type
	// has no usable identifier.
	PrimaryKey string

	// DataKey names the response section that carries this type's
	// attributes. Empty means attributes arrive at the top level.
	DataKey string

	// Fields is the declared attribute surface. Field rejects names not
	// listed here.
	Fields []string

	// Relationships maps relationship names to child types.
	Relationships map[string]*ResourceType

	// Dependent marks types whose members only exist embedded in a parent
	// response. Dependent collections never call the gateway.
	Dependent bool

	// GeneratedID marks types whose identifier is server-generated.
	// Identifier reports UnknownIdentifier until the server supplies one.
	GeneratedID bool

	// PollInterval and PollTimeout are the Wait defaults for this type.
	// Zero values fall back to the package-wide defaults.
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Finished and Failed are the completion and failure predicates driving
	// the Wait loop. A nil Finished means Wait simply inflates once.
	Finished func(*Node) bool
	Failed   func(*Node) bool

	// NotFoundRetries bounds how many times a refresh retries through a
	// transient not-found response before giving up. Zero disables the
	// retry; just-created resources that register asynchronously opt in.
	NotFoundRetries int
	NotFoundDelay   time.Duration

	// TransportValue overrides the conversion used when a node of this type
	// is embedded in another entity's request payload. Nil means the
	// default {PrimaryKey: Identifier()} shape.
	TransportValue func(*Node) map[string]any
}

// HasField reports whether name is part of the declared attribute surface.
func (rt *ResourceType) HasField(name string) bool {
	for _, f := range rt.Fields {
		if f == name {
			return true
		}
	}

	return false
}

func (rt *ResourceType) chain() []string {
	chain := make([]string, 0, len(rt.Ancestors)+1)
	chain = append(chain, rt.Name)
	chain = append(chain, rt.Ancestors...)

	return chain
}

func (rt *ResourceType) pollInterval() time.Duration {
	if rt.PollInterval > 0 {
		return rt.PollInterval
	}

	return constants.DefaultPollInterval
}

func (rt *ResourceType) pollTimeout() time.Duration {
	if rt.PollTimeout > 0 {
		return rt.PollTimeout
	}

	return constants.DefaultPollTimeout
}

func (rt *ResourceType) notFoundDelay() time.Duration {
	if rt.NotFoundDelay > 0 {
		return rt.NotFoundDelay
	}

	return constants.NotFoundRetryDelay
}

// Schema wires a set of resource types into one graph: the root entry points
// reachable directly from the client, and how server-triggered jobs appear in
// response payloads.
type Schema struct {
	// Roots maps entry-point names to their types; each gets a root
	// collection addressed directly under the client's base address.
	Roots map[string]*ResourceType

	// JobKey is the response section that signals a server-side job was
	// triggered (e.g. "Operations"). Empty disables job capture.
	JobKey string

	// JobRel names the relationship under which job nodes live; the engine
	// parents captured jobs under the nearest ancestor declaring it.
	JobRel string

	// JobType is the resource type of captured jobs.
	JobType *ResourceType
}
