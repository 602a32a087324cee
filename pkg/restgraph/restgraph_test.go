package restgraph_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/restgraph/pkg/restgraph"
)

const testBaseAddress = "http://api.example.com/v1"

type gatewayCall struct {
	verb    string
	address string
	body    any
}

type gatewayResult struct {
	resp map[string]any
	err  error
}

// fakeGateway scripts responses per "VERB address" key. A key scripted more
// than once answers its results in order, sticking on the last one; an
// unscripted key answers an empty body.
type fakeGateway struct {
	mu       sync.Mutex
	calls    []gatewayCall
	scripted map[string][]gatewayResult
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		scripted: make(map[string][]gatewayResult),
	}
}

func (g *fakeGateway) respond(verb, address string, resp map[string]any) {
	key := verb + " " + address
	g.scripted[key] = append(g.scripted[key], gatewayResult{resp: resp})
}

func (g *fakeGateway) fail(verb, address string, err error) {
	key := verb + " " + address
	g.scripted[key] = append(g.scripted[key], gatewayResult{err: err})
}

func (g *fakeGateway) Execute(_ context.Context, verb, address string, body any, _ string) (map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, gatewayCall{verb: verb, address: address, body: body})

	key := verb + " " + address

	results := g.scripted[key]
	if len(results) == 0 {
		return map[string]any{}, nil
	}

	result := results[0]
	if len(results) > 1 {
		g.scripted[key] = results[1:]
	}

	return result.resp, result.err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.calls)
}

func (g *fakeGateway) callsTo(verb, address string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := 0

	for _, call := range g.calls {
		if call.verb == verb && call.address == address {
			count++
		}
	}

	return count
}

func (g *fakeGateway) lastCall() gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.calls) == 0 {
		return gatewayCall{}
	}

	return g.calls[len(g.calls)-1]
}

// testCatalog builds a fresh schema per test so predicates and retry knobs
// can be adjusted without racing parallel tests.
func testCatalog() *restgraph.Schema {
	component := &restgraph.ResourceType{
		Name:       "component",
		Ancestors:  []string{"resource"},
		PrimaryKey: "component_name",
		Fields:     []string{"component_name", "state"},
		Dependent:  true,
	}

	operation := &restgraph.ResourceType{
		Name:        "operation",
		Ancestors:   []string{"resource"},
		Path:        "requests",
		PrimaryKey:  "id",
		DataKey:     "Requests",
		Fields:      []string{"id", "request_status", "progress_percent"},
		GeneratedID: true,
		Finished: func(n *restgraph.Node) bool {
			return n.Value("request_status") == "COMPLETED"
		},
		Failed: func(n *restgraph.Node) bool {
			return n.Value("request_status") == "FAILED"
		},
	}

	host := &restgraph.ResourceType{
		Name:       "host",
		Ancestors:  []string{"resource"},
		Path:       "hosts",
		PrimaryKey: "host_name",
		DataKey:    "Hosts",
		Fields:     []string{"host_name", "host_status"},
		Relationships: map[string]*restgraph.ResourceType{
			"components": component,
		},
	}

	cluster := &restgraph.ResourceType{
		Name:       "cluster",
		Ancestors:  []string{"resource"},
		Path:       "clusters",
		PrimaryKey: "cluster_name",
		DataKey:    "Clusters",
		Fields:     []string{"cluster_name", "version"},
		Relationships: map[string]*restgraph.ResourceType{
			"hosts":      host,
			"operations": operation,
		},
	}

	return &restgraph.Schema{
		Roots: map[string]*restgraph.ResourceType{
			"clusters": cluster,
			"hosts":    host,
			"requests": operation,
		},
		JobKey:  "Requests",
		JobRel:  "operations",
		JobType: operation,
	}
}

func newTestClient(t *testing.T, opts ...restgraph.Option) (*restgraph.Client, *fakeGateway, *restgraph.Schema) {
	t.Helper()

	gw := newFakeGateway()
	schema := testCatalog()

	client, err := restgraph.New(testBaseAddress, gw, schema, opts...)
	require.NoError(t, err)

	return client, gw, schema
}
