package clusterapi_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/restgraph/pkg/clusterapi"
	"github.com/fivetwenty-io/restgraph/pkg/restgraph"
)

const testBaseURL = "http://manager.example.com:8080/api/v1"

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

func (g *fakeGateway) bodyOf(verb, address string) map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := len(g.calls) - 1; i >= 0; i-- {
		call := g.calls[i]
		if call.verb == verb && call.address == address {
			body, _ := call.body.(map[string]any)

			return body
		}
	}

	return nil
}

// newTestClient builds a client over the fake gateway with poll timings
// tightened so waits complete within test time.
func newTestClient(t *testing.T) (*clusterapi.Client, *fakeGateway, *clusterapi.Catalog) {
	t.Helper()

	gw := newFakeGateway()

	catalog := clusterapi.NewCatalog()
	for _, typ := range []*restgraph.ResourceType{
		catalog.Request, catalog.Task, catalog.Host, catalog.Bootstrap,
	} {
		typ.PollInterval = time.Millisecond
		typ.PollTimeout = 5 * time.Second
	}

	catalog.Host.NotFoundDelay = time.Millisecond

	client, err := clusterapi.New(
		&clusterapi.Config{BaseURL: testBaseURL},
		clusterapi.WithGateway(gw),
		clusterapi.WithCatalog(catalog),
	)
	require.NoError(t, err)

	return client, gw, catalog
}

// section digs a nested map out of a request body.
func section(t *testing.T, body map[string]any, keys ...string) map[string]any {
	t.Helper()

	current := body
	for _, key := range keys {
		next, ok := current[key].(map[string]any)
		require.True(t, ok, "missing section %q", key)

		current = next
	}

	return current
}
