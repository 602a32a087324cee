package restgraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/restgraph/pkg/restgraph"
)

func TestCollectionGetAddressable(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)

	clusters, err := client.Root("clusters")
	require.NoError(t, err)

	node, err := clusters.Get("c1")
	require.NoError(t, err)

	// Get constructs a shallow handle; no fetch happens until an absent
	// field or relationship is accessed.
	assert.Equal(t, "c1", node.Identifier())
	assert.Zero(t, gw.callCount())

	addr, err := node.Address()
	require.NoError(t, err)
	assert.Equal(t, testBaseAddress+"/clusters/c1", addr)
}

func TestCollectionGetDependent(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)

	addr := testBaseAddress + "/hosts/h1"
	gw.respond("GET", addr, map[string]any{
		"Hosts": map[string]any{"host_name": "h1"},
		"components": []any{
			map[string]any{"component_name": "DATANODE"},
			map[string]any{"component_name": "NODEMANAGER"},
		},
	})

	hosts, err := client.Root("hosts")
	require.NoError(t, err)

	host, err := hosts.Get("h1")
	require.NoError(t, err)

	ctx := context.Background()

	components, err := host.Relationship(ctx, "components")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.callCount())

	node, err := components.Get("DATANODE")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "DATANODE", node.Identifier())

	// Dependent lookup is a pure membership search.
	missing, err := components.Get("ZKFC")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, 1, gw.callCount())

	_, err = components.Address()
	require.ErrorIs(t, err, restgraph.ErrNotAddressable)
}

func TestCollectionGetDependentAmbiguous(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)

	addr := testBaseAddress + "/hosts/h1"
	gw.respond("GET", addr, map[string]any{
		"Hosts": map[string]any{"host_name": "h1"},
		"components": []any{
			map[string]any{"component_name": "DATANODE"},
			map[string]any{"component_name": "DATANODE"},
		},
	})

	hosts, err := client.Root("hosts")
	require.NoError(t, err)

	host, err := hosts.Get("h1")
	require.NoError(t, err)

	components, err := host.Relationship(context.Background(), "components")
	require.NoError(t, err)

	_, err = components.Get("DATANODE")

	validation := &restgraph.ValidationError{}
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "component", validation.TypeName)
	assert.Equal(t, "DATANODE", validation.Value)
}

func TestCollectionInflate(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)

	addr := testBaseAddress + "/clusters"
	gw.respond("GET", addr, map[string]any{
		"href": addr,
		"items": []any{
			map[string]any{
				"href":     addr + "/c1",
				"Clusters": map[string]any{"cluster_name": "c1"},
			},
			map[string]any{
				"href":     addr + "/c2",
				"Clusters": map[string]any{"cluster_name": "c2"},
			},
		},
	})

	clusters, err := client.Root("clusters")
	require.NoError(t, err)

	ctx := context.Background()

	members, err := clusters.Items(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "c1", members[0].Identifier())
	assert.Equal(t, "c2", members[1].Identifier())
	assert.Equal(t, 1, gw.callCount())

	_, err = clusters.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.callCount())

	require.NoError(t, clusters.Refresh(ctx))
	assert.Equal(t, 2, gw.callCount())
}

func TestCollectionReplace(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)

	hosts, err := client.Root("hosts")
	require.NoError(t, err)

	require.NoError(t, hosts.ReplaceIDs("h1", "h2"))

	members := hosts.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "h1", members[0].Identifier())
	assert.Equal(t, "h2", members[1].Identifier())

	addr, err := members[1].Address()
	require.NoError(t, err)
	assert.Equal(t, testBaseAddress+"/hosts/h2", addr)

	// Replacement marks the collection as materialized.
	items, err := hosts.Items(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Zero(t, gw.callCount())
}

func TestCollectionReplaceEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t)

	hosts, err := client.Root("hosts")
	require.NoError(t, err)

	require.NoError(t, hosts.ReplaceIDs("h1"))
	require.NoError(t, hosts.Replace(nil))

	assert.Len(t, hosts.Members(), 1)
}

func TestCollectionReplaceRejectsUnknownMember(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t)

	hosts, err := client.Root("hosts")
	require.NoError(t, err)

	err = hosts.Replace([]any{42})
	require.ErrorIs(t, err, restgraph.ErrUnsupportedMember)
}

func TestCollectionDeleteAll(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)

	hosts, err := client.Root("hosts")
	require.NoError(t, err)

	require.NoError(t, hosts.ReplaceIDs("h1", "h2"))
	require.NoError(t, hosts.DeleteAll(context.Background()))

	assert.Equal(t, 1, gw.callsTo("DELETE", testBaseAddress+"/hosts/h1"))
	assert.Equal(t, 1, gw.callsTo("DELETE", testBaseAddress+"/hosts/h2"))
	assert.Empty(t, hosts.Members())
}

func TestCollectionTransportValues(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t)

	hosts, err := client.Root("hosts")
	require.NoError(t, err)

	require.NoError(t, hosts.ReplaceIDs("h1", "h2"))

	assert.Equal(t, []map[string]any{
		{"host_name": "h1"},
		{"host_name": "h2"},
	}, hosts.TransportValues())
}
