package restgraph

import (
	"context"
	"fmt"
	"time"
)

// Collection is an ordered group of Nodes of one resource type. Addressable
// collections are backed by a URL and fetch lazily; dependent collections
// only ever hold members a parent response embedded and never call the
// gateway themselves.
type Collection struct {
	typ      *ResourceType
	client   *Client
	parent   *Node
	inflated bool
	nodes    []*Node
	job      *Node
}

func newCollection(client *Client, typ *ResourceType, parent *Node) *Collection {
	return &Collection{
		typ:    typ,
		client: client,
		parent: parent,
	}
}

// Type returns the member resource type.
func (c *Collection) Type() *ResourceType {
	return c.typ
}

// Parent returns the owning node, or nil for a root collection.
func (c *Collection) Parent() *Node {
	return c.parent
}

// TypeChain implements Entity.
func (c *Collection) TypeChain() []string {
	return []string{c.typ.Name + "Collection", "Collection"}
}

// Identifier implements Entity; collections have none.
func (c *Collection) Identifier() string {
	return ""
}

// Address returns parentAddress/typeSegment, or the client's base address
// plus the segment for a root collection. Dependent collections have no
// address.
func (c *Collection) Address() (string, error) {
	if c.typ.Dependent || c.typ.Path == "" {
		return "", fmt.Errorf("%w: %s", ErrNotAddressable, c.typ.Name)
	}

	if c.parent == nil {
		return c.client.baseAddress + "/" + c.typ.Path, nil
	}

	parentAddr, err := c.parent.Address()
	if err != nil {
		return "", err
	}

	return parentAddr + "/" + c.typ.Path, nil
}

// Get addresses a single member by identifier. On an addressable collection
// this constructs a shallow node (address derived, primary key pre-seeded)
// without any gateway call. On a dependent collection it searches current
// membership: zero matches yield nil, more than one is a data-consistency
// error.
func (c *Collection) Get(id string) (*Node, error) {
	if c.typ.Dependent {
		var found *Node

		for _, node := range c.nodes {
			if node.Identifier() != id {
				continue
			}

			if found != nil {
				return nil, &ValidationError{
					TypeName:   c.typ.Name,
					PrimaryKey: c.typ.PrimaryKey,
					Value:      id,
				}
			}

			found = node
		}

		return found, nil
	}

	addr, err := c.Address()
	if err != nil {
		return nil, err
	}

	return c.shallow(addr, id), nil
}

func (c *Collection) shallow(addr, id string) *Node {
	return newNode(c.client, c.typ, c, addr+"/"+id, map[string]any{c.typ.PrimaryKey: id})
}

// Replace swaps the collection's membership for newly constructed nodes and
// marks the collection as already materialized, so no fetch follows. Items
// may be identifier strings (shallow, address-only nodes) or attribute-bag
// fragments (pre-populated through Load). An empty items slice is a no-op.
func (c *Collection) Replace(items []any) error {
	if len(items) == 0 {
		return nil
	}

	if c.typ.Dependent {
		return c.replaceDependent(items)
	}

	nodes := make([]*Node, 0, len(items))

	for _, item := range items {
		switch value := item.(type) {
		case string:
			addr, err := c.Address()
			if err != nil {
				return err
			}

			nodes = append(nodes, c.shallow(addr, value))
		case map[string]any:
			href, _ := value["href"].(string)
			node := newNode(c.client, c.typ, c, href, nil)

			err := node.Load(value)
			if err != nil {
				return err
			}

			nodes = append(nodes, node)
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedMember, item)
		}
	}

	c.nodes = nodes
	c.inflated = true

	return nil
}

func (c *Collection) replaceDependent(items []any) error {
	nodes := make([]*Node, 0, len(items))

	for _, item := range items {
		switch value := item.(type) {
		case string:
			nodes = append(nodes, newNode(c.client, c.typ, c, "", map[string]any{c.typ.PrimaryKey: value}))
		case map[string]any:
			nodes = append(nodes, newNode(c.client, c.typ, c, "", cloneMap(value)))
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedMember, item)
		}
	}

	c.nodes = nodes

	return nil
}

// ReplaceIDs is Replace for plain identifier strings.
func (c *Collection) ReplaceIDs(ids ...string) error {
	items := make([]any, len(ids))
	for i, id := range ids {
		items[i] = id
	}

	return c.Replace(items)
}

// Inflate fetches the collection from the server unless already materialized.
// On a dependent collection it only marks the collection ready; there is
// nothing to fetch and its state never becomes "fetched from server".
func (c *Collection) Inflate(ctx context.Context) error {
	if c.inflated {
		return nil
	}

	if c.typ.Dependent {
		c.inflated = true

		return nil
	}

	addr, err := c.Address()
	if err != nil {
		return err
	}

	resp, err := c.client.gateway.Execute(ctx, VerbGet, addr, nil, "")
	if err != nil {
		return fmt.Errorf("listing %s: %w", c.typ.Name, err)
	}

	err = c.Load(resp)
	if err != nil {
		return err
	}

	c.inflated = true

	return nil
}

// Refresh forces one re-fetch regardless of current state.
func (c *Collection) Refresh(ctx context.Context) error {
	c.inflated = false

	return c.Inflate(ctx)
}

// Load parses a collection GET response: one member node per fragment in the
// items list. A response can also embed a job section (a query that itself
// triggered a bulk operation); that becomes the collection's own pending
// operation rather than membership data.
func (c *Collection) Load(resp map[string]any) error {
	return c.client.bus.Observe(c, "load", func() error {
		return c.load(resp)
	})
}

func (c *Collection) load(resp map[string]any) error {
	if job, ok := c.client.captureJob(c.parent, resp); ok {
		c.job = job
	}

	items, ok := resp["items"].([]any)
	if !ok {
		return nil
	}

	c.nodes = nil

	for _, item := range items {
		fragment, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnsupportedMember, item)
		}

		href, _ := fragment["href"].(string)
		node := newNode(c.client, c.typ, c, href, nil)

		err := node.Load(fragment)
		if err != nil {
			return err
		}

		c.nodes = append(c.nodes, node)
	}

	return nil
}

// Items inflates the collection and returns its members in server order.
func (c *Collection) Items(ctx context.Context) ([]*Node, error) {
	err := c.Inflate(ctx)
	if err != nil {
		return nil, err
	}

	return c.Members(), nil
}

// Members returns the current membership without any fetch.
func (c *Collection) Members() []*Node {
	members := make([]*Node, len(c.nodes))
	copy(members, c.nodes)

	return members
}

// Create builds one new addressable node and issues its create. A non-empty
// id addresses the new resource under the collection; an empty id posts to
// the collection itself for types with server-generated identifiers.
func (c *Collection) Create(ctx context.Context, id string, fields map[string]any) (*Node, error) {
	addr, err := c.Address()
	if err != nil {
		return nil, err
	}

	var node *Node
	if id == "" {
		node = newNode(c.client, c.typ, c, addr, nil)
	} else {
		node = c.shallow(addr, id)
	}

	err = node.Create(ctx, fields)
	if err != nil {
		return nil, err
	}

	c.nodes = append(c.nodes, node)

	return node, nil
}

// UpdateAll materializes the collection and applies the update to every
// current member. A mid-loop failure leaves earlier members updated; there is
// no rollback.
func (c *Collection) UpdateAll(ctx context.Context, fields map[string]any) error {
	err := c.Inflate(ctx)
	if err != nil {
		return err
	}

	for _, node := range c.Members() {
		err := node.Update(ctx, fields)
		if err != nil {
			return err
		}
	}

	return nil
}

// DeleteAll materializes the collection and deletes every current member.
func (c *Collection) DeleteAll(ctx context.Context) error {
	err := c.Inflate(ctx)
	if err != nil {
		return err
	}

	for _, node := range c.Members() {
		err := node.Delete(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

// Remove strips a node from membership by identifier match.
func (c *Collection) Remove(node *Node) {
	id := node.Identifier()

	kept := c.nodes[:0]

	for _, member := range c.nodes {
		if member.Identifier() != id {
			kept = append(kept, member)
		}
	}

	c.nodes = kept
}

// Perform issues an arbitrary verb against the collection's address and
// absorbs the response through Load. Bulk actions that respond with a job
// section end up with that job attached to the collection.
func (c *Collection) Perform(ctx context.Context, verb string, body any) error {
	addr, err := c.Address()
	if err != nil {
		return err
	}

	resp, err := c.client.gateway.Execute(ctx, verb, addr, body, "")
	if err != nil {
		return fmt.Errorf("%s %s: %w", verb, c.typ.Name, err)
	}

	return c.Load(resp)
}

// Wait drives any pending linked operation to completion, clears it, and
// then ensures the collection is materialized.
func (c *Collection) Wait(ctx context.Context, interval, timeout time.Duration) error {
	return c.client.bus.Observe(c, "wait", func() error {
		if c.job != nil {
			err := c.job.Wait(ctx, interval, timeout)
			if err != nil {
				return err
			}

			c.job = nil
		}

		return c.Inflate(ctx)
	})
}

// Job returns the collection's pending linked operation, if any.
func (c *Collection) Job() *Node {
	return c.job
}

// TransportValues converts the current members for embedding in another
// entity's request payload.
func (c *Collection) TransportValues() []map[string]any {
	values := make([]map[string]any, len(c.nodes))
	for i, node := range c.nodes {
		values[i] = node.TransportValue()
	}

	return values
}

// ToMaps inflates the collection and returns each member's attribute bag.
func (c *Collection) ToMaps(ctx context.Context) ([]map[string]any, error) {
	err := c.Inflate(ctx)
	if err != nil {
		return nil, err
	}

	maps := make([]map[string]any, len(c.nodes))

	for i, node := range c.nodes {
		bag, err := node.ToMap(ctx)
		if err != nil {
			return nil, err
		}

		maps[i] = bag
	}

	return maps, nil
}
