package restgraph

import (
	"fmt"
	"strings"
)

// Client ties a Gateway, a Schema, and an EventBus together and hands out
// root collections. It holds no resource state of its own; nodes and
// collections borrow it for transport, dispatch, and address derivation.
type Client struct {
	gateway     Gateway
	bus         *EventBus
	schema      *Schema
	baseAddress string
	logger      Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithEventBus replaces the client's private event bus with a shared one,
// letting several clients publish into the same subscriber set.
func WithEventBus(bus *EventBus) Option {
	return func(c *Client) {
		if bus != nil {
			c.bus = bus
		}
	}
}

// WithLogger enables debug logging of poll cycles and retries.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client rooted at baseAddress. The gateway and schema are
// required; everything else has working defaults.
func New(baseAddress string, gateway Gateway, schema *Schema, opts ...Option) (*Client, error) {
	if gateway == nil {
		return nil, ErrGatewayRequired
	}

	if schema == nil {
		return nil, ErrSchemaRequired
	}

	client := &Client{
		gateway:     gateway,
		bus:         NewEventBus(),
		schema:      schema,
		baseAddress: strings.TrimRight(baseAddress, "/"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Events returns the bus lifecycle notifications are published on.
func (c *Client) Events() *EventBus {
	return c.bus
}

// Schema returns the resource catalog the client navigates.
func (c *Client) Schema() *Schema {
	return c.schema
}

// Gateway returns the transport the client executes requests through.
func (c *Client) Gateway() Gateway {
	return c.gateway
}

// Collection returns an uninflated root collection for rt, addressed
// directly under the client's base address.
func (c *Client) Collection(rt *ResourceType) *Collection {
	return newCollection(c, rt, nil)
}

// Root returns the root collection registered under name.
func (c *Client) Root(name string) (*Collection, error) {
	rt, ok := c.schema.Roots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, name)
	}

	return c.Collection(rt), nil
}

// captureJob inspects a response for the schema's job section. Mutations on
// this API answer with a handle to an asynchronous operation rather than the
// mutated resource; when that shape is detected the operation is materialized
// as a node and the response is not treated as resource data. Loading the job
// type itself is exempt so its own data section still merges normally.
func (c *Client) captureJob(start *Node, resp map[string]any) (*Node, bool) {
	if c.schema.JobKey == "" || c.schema.JobType == nil {
		return nil, false
	}

	if start != nil && start.typ.DataKey == c.schema.JobKey {
		return nil, false
	}

	if _, ok := resp[c.schema.JobKey].(map[string]any); !ok {
		return nil, false
	}

	job := newNode(c, c.schema.JobType, c.jobCollection(start), "", nil)

	err := job.Load(resp)
	if err != nil {
		return nil, false
	}

	return job, true
}

// jobCollection finds the nearest ancestor of start that declares the job
// relationship and returns its collection, so a captured operation stays
// scoped to the resource that spawned it. Without such an ancestor the
// operation hangs off a root collection; its own href still addresses it.
func (c *Client) jobCollection(start *Node) *Collection {
	for node := start; node != nil; node = parentNode(node) {
		if node.typ.Relationships[c.schema.JobRel] == c.schema.JobType {
			return node.relationshipCollection(c.schema.JobRel, c.schema.JobType)
		}
	}

	return newCollection(c, c.schema.JobType, nil)
}

func parentNode(n *Node) *Node {
	if n.parent == nil {
		return nil
	}

	return n.parent.parent
}
