package integration_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/restgraph/pkg/clusterapi"
	"github.com/fivetwenty-io/restgraph/pkg/restgraph"
)

// fakeManager is an httptest-backed cluster manager. Handlers are registered
// per "VERB /path"; registering the same route twice answers the responses in
// order, sticking on the last one.
type fakeManager struct {
	mu      sync.Mutex
	mux     map[string][]response
	hits    map[string]int
	bodies  map[string][]map[string]any
	headers map[string]http.Header
	server  *httptest.Server
}

type response struct {
	status int
	body   any
}

func newFakeManager(t *testing.T) *fakeManager {
	t.Helper()

	manager := &fakeManager{
		mux:     make(map[string][]response),
		hits:    make(map[string]int),
		bodies:  make(map[string][]map[string]any),
		headers: make(map[string]http.Header),
	}

	manager.server = httptest.NewServer(http.HandlerFunc(manager.serve))
	t.Cleanup(manager.server.Close)

	return manager
}

func (m *fakeManager) respond(verb, path string, body any) {
	m.respondStatus(verb, path, http.StatusOK, body)
}

func (m *fakeManager) respondStatus(verb, path string, status int, body any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := verb + " " + path
	m.mux[key] = append(m.mux[key], response{status: status, body: body})
}

func (m *fakeManager) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()

	key := r.Method + " " + r.URL.Path
	m.hits[key]++
	m.headers[key] = r.Header.Clone()

	if r.Body != nil {
		var parsed map[string]any
		if err := json.NewDecoder(r.Body).Decode(&parsed); err == nil {
			m.bodies[key] = append(m.bodies[key], parsed)
		}
	}

	responses := m.mux[key]
	if len(responses) == 0 {
		m.mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "no route"}`))

		return
	}

	next := responses[0]
	if len(responses) > 1 {
		m.mux[key] = responses[1:]
	}

	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(next.status)

	if next.body != nil {
		_ = json.NewEncoder(w).Encode(next.body)
	}
}

func (m *fakeManager) hitCount(verb, path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.hits[verb+" "+path]
}

func (m *fakeManager) lastBody(verb, path string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	bodies := m.bodies[verb+" "+path]
	if len(bodies) == 0 {
		return nil
	}

	return bodies[len(bodies)-1]
}

func (m *fakeManager) lastHeaders(verb, path string) http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.headers[verb+" "+path]
}

// newManagerClient builds a full-stack client against the fake manager, with
// poll timings tightened so waits finish in test time.
func newManagerClient(t *testing.T, manager *fakeManager) *clusterapi.Client {
	t.Helper()

	catalog := clusterapi.NewCatalog()
	for _, typ := range []*restgraph.ResourceType{
		catalog.Request, catalog.Task, catalog.Host, catalog.Bootstrap,
	} {
		typ.PollInterval = time.Millisecond
		typ.PollTimeout = 10 * time.Second
	}

	catalog.Host.NotFoundDelay = time.Millisecond

	config := &clusterapi.Config{
		BaseURL:      manager.server.URL + "/api/v1",
		Identifier:   "integration-suite",
		RetryMax:     0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	}

	client, err := clusterapi.New(config, clusterapi.WithCatalog(catalog))
	require.NoError(t, err)

	return client
}
