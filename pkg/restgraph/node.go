package restgraph

import (
	"context"
	"fmt"
	"time"
)

// UnknownIdentifier is reported by nodes of generated-identifier types that
// have not yet learned their server-assigned key.
const UnknownIdentifier = "Unknown"

type inflation int

const (
	uninflated inflation = iota
	inflating
	inflated
)

// Node is the in-memory representation of one server-side resource. Its
// attribute bag may be partial (only the fields a parent response happened to
// include); accessing anything missing inflates the node through the gateway.
// Nodes are not safe for concurrent mutation.
type Node struct {
	typ    *ResourceType
	client *Client
	parent *Collection
	href   string
	data   map[string]any
	rels   map[string]*Collection
	state  inflation
	job    *Node
}

func newNode(client *Client, typ *ResourceType, parent *Collection, href string, data map[string]any) *Node {
	if data == nil {
		data = make(map[string]any)
	}

	return &Node{
		typ:    typ,
		client: client,
		parent: parent,
		href:   href,
		data:   data,
	}
}

// Type returns the node's resource type.
func (n *Node) Type() *ResourceType {
	return n.typ
}

// Parent returns the collection that owns this node.
func (n *Node) Parent() *Collection {
	return n.parent
}

// TypeChain implements Entity.
func (n *Node) TypeChain() []string {
	return n.typ.chain()
}

// Identifier returns the primary-key value as a string. Generated-identifier
// types report UnknownIdentifier until the server has assigned one; types
// without a primary key report the empty string. Identifier never calls the
// gateway, so once derivable its value never changes.
func (n *Node) Identifier() string {
	if n.typ.PrimaryKey == "" {
		return ""
	}

	if value, ok := n.data[n.typ.PrimaryKey]; ok {
		return identString(value)
	}

	if n.typ.GeneratedID {
		return UnknownIdentifier
	}

	return ""
}

// Address returns the node's backing URL: the direct address supplied at
// construction or load time, or the owning collection's address with the
// identifier appended.
func (n *Node) Address() (string, error) {
	if n.href != "" {
		return n.href, nil
	}

	if id := n.Identifier(); id != "" && id != UnknownIdentifier && n.parent != nil {
		parentAddr, err := n.parent.Address()
		if err != nil {
			return "", err
		}

		return parentAddr + "/" + id, nil
	}

	return "", n.insufficientAddress()
}

func (n *Node) insufficientAddress() *InsufficientAddressError {
	var value string
	if raw, ok := n.data[n.typ.PrimaryKey]; ok {
		value = identString(raw)
	}

	return &InsufficientAddressError{
		TypeName:   n.typ.Name,
		Href:       n.href,
		PrimaryKey: n.typ.PrimaryKey,
		Value:      value,
	}
}

// Value returns the current bag value for a field without any gateway call.
func (n *Node) Value(name string) any {
	return n.data[name]
}

// Field returns the named field's value, inflating the node first if the
// value is not already present. name must be declared by the resource type.
// An already-inflated node never re-fetches; the value may legitimately still
// be missing afterward, in which case nil is returned.
func (n *Node) Field(ctx context.Context, name string) (any, error) {
	if !n.typ.HasField(name) {
		return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, n.typ.Name, name)
	}

	if value, ok := n.data[name]; ok {
		return value, nil
	}

	err := n.Inflate(ctx)
	if err != nil {
		return nil, err
	}

	return n.data[name], nil
}

// FieldString is Field with the result rendered as a string.
func (n *Node) FieldString(ctx context.Context, name string) (string, error) {
	value, err := n.Field(ctx, name)
	if err != nil {
		return "", err
	}

	if value == nil {
		return "", nil
	}

	return identString(value), nil
}

// Relationship returns the named child collection, constructing and caching
// it on first access. Relationships are only reliable post-inflation, so the
// node is always inflated first; at most one gateway call results no matter
// how many relationships are accessed afterward.
func (n *Node) Relationship(ctx context.Context, name string) (*Collection, error) {
	childType, ok := n.typ.Relationships[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no relationship %q", ErrUnknownRelationship, n.typ.Name, name)
	}

	err := n.Inflate(ctx)
	if err != nil {
		return nil, err
	}

	return n.relationshipCollection(name, childType), nil
}

func (n *Node) relationshipCollection(name string, childType *ResourceType) *Collection {
	if n.rels == nil {
		n.rels = make(map[string]*Collection)
	}

	if coll, ok := n.rels[name]; ok {
		return coll
	}

	coll := newCollection(n.client, childType, n)
	n.rels[name] = coll

	return coll
}

// Inflate loads the node's full data from its backing address unless already
// inflated. A node with neither a direct address nor a usable primary-key
// value cannot ever be loaded; that condition, including a re-entrant
// inflation attempt on the same node, fails fast with
// InsufficientAddressError instead of recursing.
func (n *Node) Inflate(ctx context.Context) error {
	if n.state == inflated {
		return nil
	}

	if n.state == inflating {
		return n.insufficientAddress()
	}

	if n.typ.Dependent {
		n.state = inflated

		return nil
	}

	n.state = inflating

	addr, err := n.Address()
	if err != nil {
		n.state = uninflated

		return err
	}

	resp, err := n.client.gateway.Execute(ctx, VerbGet, addr, nil, "")
	if err != nil {
		n.state = uninflated

		return err
	}

	err = n.Load(resp)
	if err != nil {
		n.state = uninflated

		return err
	}

	n.state = inflated

	return nil
}

// Refresh resets the inflation state and forces exactly one re-fetch.
func (n *Node) Refresh(ctx context.Context) error {
	n.state = uninflated

	return n.Inflate(ctx)
}

// Load parses a raw response body into the attribute bag. A response whose
// job section signals a server-triggered operation is not merged; the job is
// attached as the node's pending operation instead. Relationship data embedded
// in the response pre-populates the corresponding collections so accessing
// them later needs no further fetch.
func (n *Node) Load(resp map[string]any) error {
	return n.client.bus.Observe(n, "load", func() error {
		return n.load(resp)
	})
}

func (n *Node) load(resp map[string]any) error {
	if job, ok := n.client.captureJob(n, resp); ok {
		n.job = job

		return nil
	}

	if href, ok := resp["href"].(string); ok {
		n.href = href
	}

	if n.typ.DataKey == "" {
		for key, value := range resp {
			if key == "href" {
				continue
			}

			n.data[key] = value
		}

		return nil
	}

	section, ok := resp[n.typ.DataKey].(map[string]any)
	if !ok {
		return nil
	}

	for key, value := range section {
		n.data[key] = value
	}

	for name, childType := range n.typ.Relationships {
		items, ok := resp[name].([]any)
		if !ok {
			continue
		}

		err := n.relationshipCollection(name, childType).Replace(items)
		if err != nil {
			return err
		}
	}

	return nil
}

// Create issues one POST against the node's address and absorbs the result
// through Load. The primary key never travels in the body; for types with
// server-generated identifiers the direct address is dropped afterward so it
// re-derives from the identifier the server assigned.
func (n *Node) Create(ctx context.Context, fields map[string]any) error {
	return n.client.bus.Observe(n, "create", func() error {
		clean := cloneMap(fields)
		delete(clean, n.typ.PrimaryKey)

		addr, err := n.Address()
		if err != nil {
			return err
		}

		resp, err := n.client.gateway.Execute(ctx, VerbPost, addr, n.typ.wrapInput(clean), "")
		if err != nil {
			return fmt.Errorf("creating %s: %w", n.typ.Name, err)
		}

		err = n.Load(resp)
		if err != nil {
			return err
		}

		if n.typ.GeneratedID {
			n.href = ""
		}

		return nil
	})
}

// Update modifies the resource by sending the given fields, wrapped in the
// type's payload shape, in one PUT.
func (n *Node) Update(ctx context.Context, fields map[string]any) error {
	return n.client.bus.Observe(n, "update", func() error {
		addr, err := n.Address()
		if err != nil {
			return err
		}

		resp, err := n.client.gateway.Execute(ctx, VerbPut, addr, n.typ.wrapInput(fields), "")
		if err != nil {
			return fmt.Errorf("updating %s: %w", n.typ.Name, err)
		}

		return n.Load(resp)
	})
}

// Delete removes the resource and, on success, strips the node from its
// owning collection's membership. A response embedding a job section attaches
// it as the pending operation, so a follow-up Wait covers the server-side
// cleanup too.
func (n *Node) Delete(ctx context.Context) error {
	return n.client.bus.Observe(n, "delete", func() error {
		addr, err := n.Address()
		if err != nil {
			return err
		}

		resp, err := n.client.gateway.Execute(ctx, VerbDelete, addr, nil, "")
		if err != nil {
			return fmt.Errorf("deleting %s: %w", n.typ.Name, err)
		}

		err = n.Load(resp)
		if err != nil {
			return err
		}

		if n.parent != nil {
			n.parent.Remove(n)
		}

		return nil
	})
}

// Perform issues an arbitrary verb against the node's address and absorbs the
// response through Load. Catalog action helpers build their payloads on top
// of this.
func (n *Node) Perform(ctx context.Context, verb string, body any) error {
	addr, err := n.Address()
	if err != nil {
		return err
	}

	resp, err := n.client.gateway.Execute(ctx, verb, addr, body, "")
	if err != nil {
		return fmt.Errorf("%s %s: %w", verb, n.typ.Name, err)
	}

	return n.Load(resp)
}

// Wait blocks until the node is done: any pending linked operation is driven
// to completion and cleared first, then the node's own completion predicate
// is polled. Types without a completion predicate just inflate once. Zero
// interval or timeout use the type's configured defaults.
func (n *Node) Wait(ctx context.Context, interval, timeout time.Duration) error {
	return n.client.bus.Observe(n, "wait", func() error {
		return n.wait(ctx, interval, timeout)
	})
}

func (n *Node) wait(ctx context.Context, interval, timeout time.Duration) error {
	if n.job != nil {
		err := n.job.Wait(ctx, interval, timeout)
		if err != nil {
			return err
		}

		n.job = nil
	}

	if n.typ.NotFoundRetries > 0 {
		err := n.withNotFoundRetry(ctx, n.Inflate)
		if err != nil {
			return err
		}
	}

	if n.typ.Finished == nil {
		return n.Inflate(ctx)
	}

	return n.poll(ctx, interval, timeout)
}

// Job returns the pending linked operation, if any.
func (n *Node) Job() *Node {
	return n.job
}

// TransportValue converts the node to the primitive mapping used when it is
// embedded in another entity's request payload. The default shape is
// {primaryKey: identifier}; resource types may override it.
func (n *Node) TransportValue() map[string]any {
	if n.typ.TransportValue != nil {
		return n.typ.TransportValue(n)
	}

	return map[string]any{n.typ.PrimaryKey: n.Identifier()}
}

// ToMap inflates the node and returns a copy of its attribute bag.
func (n *Node) ToMap(ctx context.Context) (map[string]any, error) {
	err := n.Inflate(ctx)
	if err != nil {
		return nil, err
	}

	return cloneMap(n.data), nil
}

func (rt *ResourceType) wrapInput(fields map[string]any) map[string]any {
	if rt.DataKey == "" {
		return fields
	}

	body := make(map[string]any)
	section := make(map[string]any)

	for key, value := range fields {
		if rt.HasField(key) {
			section[key] = value
		} else {
			body[key] = value
		}
	}

	body[rt.DataKey] = section

	return body
}
