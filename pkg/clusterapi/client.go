// Package clusterapi binds the lazy resource-graph engine to the cluster
// manager's REST API: the resource catalog, the orchestration actions, and a
// configured client tying them to an HTTP gateway.
package clusterapi

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/restgraph/internal/cache"
	"github.com/fivetwenty-io/restgraph/internal/gateway"
	"github.com/fivetwenty-io/restgraph/pkg/restgraph"
)

// Client is a cluster-manager API client. It owns the catalog and the engine
// navigating it.
type Client struct {
	engine  *restgraph.Client
	catalog *Catalog
}

// Option configures the client.
type Option func(*options)

type options struct {
	logger  restgraph.Logger
	bus     *restgraph.EventBus
	gateway restgraph.Gateway
	catalog *Catalog
}

// WithLogger sets the logger used by both the engine and the gateway.
func WithLogger(logger restgraph.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventBus supplies a pre-populated event bus so listeners registered
// before construction see the client's first operations.
func WithEventBus(bus *restgraph.EventBus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithGateway substitutes the transport, bypassing the HTTP gateway that
// would otherwise be built from the config. Intended for tests.
func WithGateway(gw restgraph.Gateway) Option {
	return func(o *options) {
		o.gateway = gw
	}
}

// WithCatalog supplies a pre-built catalog, letting callers tune poll
// intervals or predicates before the client starts using them.
func WithCatalog(catalog *Catalog) Option {
	return func(o *options) {
		o.catalog = catalog
	}
}

// New builds a client for the API at config.BaseURL. The catalog is built
// fresh so per-client predicate or timing tweaks never leak across clients.
func New(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if config.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	gw := o.gateway
	if gw == nil {
		built, err := buildGateway(config, o.logger)
		if err != nil {
			return nil, err
		}

		gw = built
	}

	catalog := o.catalog
	if catalog == nil {
		catalog = NewCatalog()
	}

	engineOpts := []restgraph.Option{}
	if o.logger != nil {
		engineOpts = append(engineOpts, restgraph.WithLogger(o.logger))
	}

	if o.bus != nil {
		engineOpts = append(engineOpts, restgraph.WithEventBus(o.bus))
	}

	engine, err := restgraph.New(config.BaseURL, gw, catalog.Schema, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("building resource graph client: %w", err)
	}

	return &Client{
		engine:  engine,
		catalog: catalog,
	}, nil
}

func buildGateway(config *Config, logger restgraph.Logger) (restgraph.Gateway, error) {
	headers := map[string]string{}
	for key, value := range config.Headers {
		headers[key] = value
	}

	identifier := config.Identifier
	if identifier == "" {
		identifier = "go-clusterapi"
	}

	// The API rejects mutations without an X-Requested-By header.
	if _, ok := headers["X-Requested-By"]; !ok {
		headers["X-Requested-By"] = identifier
	}

	gwOpts := []gateway.Option{
		gateway.WithUserAgent(identifier),
		gateway.WithHeaders(headers),
		gateway.WithDebug(config.Debug),
	}

	if logger != nil {
		gwOpts = append(gwOpts, gateway.WithLogger(logger))
	}

	if config.Timeout > 0 {
		gwOpts = append(gwOpts, gateway.WithTimeout(config.Timeout))
	}

	if config.RetryMax > 0 || config.RetryWaitMin > 0 || config.RetryWaitMax > 0 {
		gwOpts = append(gwOpts, gateway.WithRetryConfig(
			config.RetryMax, config.RetryWaitMin, config.RetryWaitMax))
	}

	store, err := buildCache(&config.Cache)
	if err != nil {
		return nil, err
	}

	if store != nil {
		gwOpts = append(gwOpts, gateway.WithCache(store, config.Cache.TTL))
	}

	return gateway.New(config.BaseURL, gwOpts...)
}

func buildCache(settings *CacheSettings) (cache.Cache, error) {
	if settings.Backend == "" || settings.Backend == string(cache.TypeNone) {
		return nil, nil
	}

	cacheConfig := &cache.Config{
		Type:    cache.Type(settings.Backend),
		MaxSize: settings.MaxSize,
	}

	if cacheConfig.Type == cache.TypeNATS {
		cacheConfig.NATS = &cache.NATSKVConfig{
			URLs:   settings.NATSURLs,
			Bucket: settings.NATSBucket,
			TTL:    settings.TTL,
		}
	}

	store, err := cache.NewFromConfig(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("building response cache: %w", err)
	}

	return store, nil
}

// Catalog exposes the resource types this client navigates.
func (c *Client) Catalog() *Catalog {
	return c.catalog
}

// Engine exposes the underlying resource-graph client for callers that need
// to navigate outside the helpers below.
func (c *Client) Engine() *restgraph.Client {
	return c.engine
}

// Events exposes the event bus for lifecycle listeners.
func (c *Client) Events() *restgraph.EventBus {
	return c.engine.Events()
}

// Clusters returns the root cluster collection.
func (c *Client) Clusters() *restgraph.Collection {
	return c.engine.Collection(c.catalog.Cluster)
}

// Hosts returns the root host collection, spanning all clusters.
func (c *Client) Hosts() *restgraph.Collection {
	return c.engine.Collection(c.catalog.Host)
}

// Requests returns the root request collection.
func (c *Client) Requests() *restgraph.Collection {
	return c.engine.Collection(c.catalog.Request)
}

// Cluster returns a handle to the named cluster. No HTTP traffic happens
// until a field or relationship is pulled.
func (c *Client) Cluster(name string) (*restgraph.Node, error) {
	return c.Clusters().Get(name)
}

// Host returns a handle to the named host.
func (c *Client) Host(name string) (*restgraph.Node, error) {
	return c.Hosts().Get(name)
}

// ClusterService navigates to a service within a cluster.
func (c *Client) ClusterService(ctx context.Context, clusterName, serviceName string) (*restgraph.Node, error) {
	cluster, err := c.Cluster(clusterName)
	if err != nil {
		return nil, err
	}

	services, err := cluster.Relationship(ctx, "services")
	if err != nil {
		return nil, err
	}

	return services.Get(serviceName)
}
