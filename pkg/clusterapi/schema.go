package clusterapi

import (
	"strconv"

	"github.com/fivetwenty-io/restgraph/internal/constants"
	"github.com/fivetwenty-io/restgraph/pkg/restgraph"
)

// Catalog declares the cluster-manager resource graph: which types exist,
// where they live in the URL hierarchy, and how their long-running operations
// report progress. All instances of a process share one immutable catalog.
type Catalog struct {
	Cluster       *restgraph.ResourceType
	Host          *restgraph.ResourceType
	HostComponent *restgraph.ResourceType
	Service       *restgraph.ResourceType
	Component     *restgraph.ResourceType
	Request       *restgraph.ResourceType
	Task          *restgraph.ResourceType
	Bootstrap     *restgraph.ResourceType

	Schema *restgraph.Schema
}

// NewCatalog builds a fresh catalog. Types are plain data; callers that need
// different poll timings may adjust their copy before building a client.
func NewCatalog() *Catalog {
	task := &restgraph.ResourceType{
		Name:       "task",
		Ancestors:  []string{"resource"},
		Path:       "tasks",
		PrimaryKey: "id",
		DataKey:    "Tasks",
		Fields: []string{
			"id", "cluster_name", "host_name", "request_id", "exit_code",
			"stdout", "stderr", "status", "attempt_cnt", "command", "role",
			"start_time", "end_time", "error_log", "output_log",
		},
		Finished: func(n *restgraph.Node) bool {
			return n.Value("status") == "COMPLETED"
		},
		Failed: func(n *restgraph.Node) bool {
			switch n.Value("status") {
			case nil, "PENDING", "QUEUED", "IN_PROGRESS", "COMPLETED":
				return false
			default:
				return true
			}
		},
	}

	request := &restgraph.ResourceType{
		Name:       "request",
		Ancestors:  []string{"resource"},
		Path:       "requests",
		PrimaryKey: "id",
		DataKey:    "Requests",
		Fields: []string{
			"id", "request_context", "status", "request_status",
			"progress_percent", "queued_task_count", "task_count",
			"completed_task_count", "failed_task_count", "aborted_task_count",
			"timed_out_task_count", "start_time", "end_time", "create_time",
			"exclusive", "operation_level", "resource_filters", "inputs", "type",
		},
		GeneratedID: true,
		Relationships: map[string]*restgraph.ResourceType{
			"tasks": task,
		},
		Finished: func(n *restgraph.Node) bool {
			progress, ok := asFloat(n.Value("progress_percent"))

			return ok && progress >= 100
		},
		Failed: func(n *restgraph.Node) bool {
			status := n.Value("request_status")

			return status == "FAILED" || status == "ABORTED"
		},
	}

	hostComponent := &restgraph.ResourceType{
		Name:       "host_component",
		Ancestors:  []string{"component", "resource"},
		Path:       "host_components",
		PrimaryKey: "component_name",
		DataKey:    "HostRoles",
		Fields: []string{
			"cluster_name", "component_name", "desired_admin_state",
			"desired_state", "host_name", "maintenance_state", "service_name",
			"stale_configs", "state",
		},
	}

	component := &restgraph.ResourceType{
		Name:       "component",
		Ancestors:  []string{"resource"},
		Path:       "components",
		PrimaryKey: "component_name",
		DataKey:    "ServiceComponentInfo",
		Fields: []string{
			"component_name", "component_version", "service_name",
			"category", "installed_count", "started_count", "total_count",
		},
		Relationships: map[string]*restgraph.ResourceType{
			"host_components": hostComponent,
		},
		// The API expects embedded components keyed by "name" rather than
		// their primary key.
		TransportValue: func(n *restgraph.Node) map[string]any {
			return map[string]any{"name": n.Identifier()}
		},
	}

	service := &restgraph.ResourceType{
		Name:       "service",
		Ancestors:  []string{"resource"},
		Path:       "services",
		PrimaryKey: "service_name",
		DataKey:    "ServiceInfo",
		Fields:     []string{"service_name", "cluster_name", "maintenance_state", "state"},
		Relationships: map[string]*restgraph.ResourceType{
			"components": component,
		},
	}

	host := &restgraph.ResourceType{
		Name:       "host",
		Ancestors:  []string{"resource"},
		Path:       "hosts",
		PrimaryKey: "host_name",
		DataKey:    "Hosts",
		Fields: []string{
			"host_name", "cluster_name", "cpu_count", "disk_info", "host_state",
			"host_status", "host_health_report", "ip", "maintenance_state",
			"os_arch", "os_type", "public_host_name", "rack_info", "total_mem",
			"last_heartbeat_time", "last_registration_time", "desired_configs",
		},
		Relationships: map[string]*restgraph.ResourceType{
			"components": hostComponent,
		},
		PollInterval: constants.HostPollInterval,
		PollTimeout:  constants.HostPollTimeout,
		// Freshly bootstrapped hosts register asynchronously; the server
		// answers 404 until the agent phones home.
		NotFoundRetries: constants.NotFoundRetryLimit,
		NotFoundDelay:   constants.NotFoundRetryDelay,
		Finished: func(n *restgraph.Node) bool {
			if n.Value("host_status") == "HEALTHY" {
				return true
			}

			// Maintenance mode reports the host as UNKNOWN.
			return n.Value("maintenance_state") == "ON" && n.Value("host_status") == "UNKNOWN"
		},
	}

	cluster := &restgraph.ResourceType{
		Name:       "cluster",
		Ancestors:  []string{"resource"},
		Path:       "clusters",
		PrimaryKey: "cluster_name",
		DataKey:    "Clusters",
		Fields: []string{
			"cluster_id", "cluster_name", "health_report", "provisioning_state",
			"total_hosts", "version", "desired_configs",
		},
		Relationships: map[string]*restgraph.ResourceType{
			"hosts":           host,
			"host_components": hostComponent,
			"services":        service,
			"requests":        request,
		},
	}

	bootstrap := &restgraph.ResourceType{
		Name:        "bootstrap",
		Ancestors:   []string{"resource"},
		Path:        "bootstrap",
		PrimaryKey:  "requestId",
		Fields:      []string{"status", "requestId", "message", "hostsStatus"},
		GeneratedID: true,
		Finished: func(n *restgraph.Node) bool {
			return n.Value("status") == "SUCCESS"
		},
		Failed: func(n *restgraph.Node) bool {
			return n.Value("status") == "ERROR"
		},
	}

	schema := &restgraph.Schema{
		Roots: map[string]*restgraph.ResourceType{
			"clusters":  cluster,
			"hosts":     host,
			"requests":  request,
			"bootstrap": bootstrap,
		},
		JobKey:  "Requests",
		JobRel:  "requests",
		JobType: request,
	}

	return &Catalog{
		Cluster:       cluster,
		Host:          host,
		HostComponent: hostComponent,
		Service:       service,
		Component:     component,
		Request:       request,
		Task:          task,
		Bootstrap:     bootstrap,
		Schema:        schema,
	}
}

// asFloat coerces the numeric shapes JSON decoding produces.
func asFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}
