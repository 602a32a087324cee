// Package restgraph provides a lazy-loading resource-graph engine for
// hierarchical REST APIs.
//
// # Overview
//
// Many management APIs expose deeply nested resources (cluster → host →
// component) where most resources are only reachable by first loading their
// parent, and where mutating calls can trigger server-side asynchronous jobs
// that must be polled to completion. restgraph models that shape generically:
// a declarative Schema of ResourceTypes configures the engine, Collections
// produce Nodes, and Nodes inflate themselves on demand through a Gateway.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/restgraph/pkg/clusterapi"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := clusterapi.New(&clusterapi.Config{BaseURL: "https://mgr.example.com/api/v1"})
//	  if err != nil { log.Fatal(err) }
//
//	  cluster, _ := cli.Clusters().Get("prod")
//	  health, err := cluster.Field(ctx, "health_report")
//	  if err != nil { log.Fatal(err) }
//	  _ = health
//	}
//
// # Lazy loading
//
// Accessing a field already present in a node's attribute bag never touches
// the network. Accessing a missing field or any relationship inflates the node
// with exactly one GET. Refresh forces exactly one re-fetch. Collections work
// the same way: addressing a member by identifier constructs a shallow node
// without fetching anything.
//
// # Waiting on asynchronous operations
//
// Mutating calls whose responses embed a job-tracking section attach that job
// to the entity. Wait first drives the linked job to completion, clears the
// link, and then runs the entity's own completion check, so "did my mutation
// finish" transparently includes the server-side job it triggered.
//
// # Events
//
// An EventBus owned by the Client publishes lifecycle phases (STARTED, FAILED,
// FINISHED, PROGRESS) for load, create, update, delete, and wait operations,
// with most-specific-type dispatch over each ResourceType's declared ancestor
// chain.
//
// # Errors
//
// Structured error types (InsufficientAddressError, NotFoundError,
// PolledOperationFailedError, PollTimeoutError, ValidationError, APIError)
// support errors.As, and helpers such as IsNotFound make branching easy.
// Transport-level failures from the Gateway are surfaced unmodified.
package restgraph
