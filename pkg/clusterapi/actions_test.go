package clusterapi_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/restgraph/pkg/restgraph"
)

func TestHostMaintenance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		enable  bool
		state   string
		context string
	}{
		{name: "enable", enable: true, state: "ON", context: "Start Maintenance Mode"},
		{name: "disable", enable: false, state: "OFF", context: "Stop Maintenance Mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, gw, _ := newTestClient(t)

			host, err := client.Host("h1")
			require.NoError(t, err)

			if tt.enable {
				err = client.EnableMaintenance(context.Background(), host)
			} else {
				err = client.DisableMaintenance(context.Background(), host)
			}
			require.NoError(t, err)

			hostAddr := testBaseURL + "/hosts/h1"
			require.Equal(t, 1, gw.callsTo(restgraph.VerbPut, hostAddr))

			body := gw.bodyOf(restgraph.VerbPut, hostAddr)
			info := section(t, body, "RequestInfo")
			assert.Equal(t, tt.context, info["context"])
			assert.Equal(t, "Hosts/host_name.in(h1)", info["query"])
			assert.Equal(t, tt.state,
				section(t, body, "Body", "Hosts")["maintenance_state"])
		})
	}
}

func TestMaintenanceRejectsNonHost(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t)

	cluster, err := client.Cluster("prod")
	require.NoError(t, err)

	err = client.EnableMaintenance(context.Background(), cluster)
	require.Error(t, err)
}

func TestComponentStateActions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		action  string
		state   string
		context string
	}{
		{name: "install", action: "install", state: "INSTALLED", context: "Install Datanode"},
		{name: "start", action: "start", state: "STARTED", context: "Start Datanode"},
		{name: "stop", action: "stop", state: "INSTALLED", context: "Stop Datanode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, gw, _ := newTestClient(t)
			ctx := context.Background()

			componentAddr := testBaseURL + "/hosts/h1/host_components/DATANODE"
			gw.respond(restgraph.VerbPut, componentAddr, map[string]any{
				"href":     testBaseURL + "/clusters/prod/requests/12",
				"Requests": map[string]any{"id": float64(12), "status": "Accepted"},
			})

			host, err := client.Host("h1")
			require.NoError(t, err)

			components, err := host.Relationship(ctx, "components")
			require.NoError(t, err)

			component, err := components.Get("DATANODE")
			require.NoError(t, err)

			var job *restgraph.Node

			switch tt.action {
			case "install":
				job, err = client.InstallComponent(ctx, component)
			case "start":
				job, err = client.StartComponent(ctx, component)
			case "stop":
				job, err = client.StopComponent(ctx, component)
			}
			require.NoError(t, err)

			body := gw.bodyOf(restgraph.VerbPut, componentAddr)
			assert.Equal(t, tt.context, section(t, body, "RequestInfo")["context"])
			assert.Equal(t, tt.state, section(t, body, "HostRoles")["state"])

			require.NotNil(t, job)
			assert.Equal(t, "12", job.Identifier())
		})
	}
}

func TestRestartComponent(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)
	ctx := context.Background()

	componentAddr := testBaseURL + "/hosts/h1/host_components/DATANODE"
	gw.respond(restgraph.VerbGet, componentAddr, map[string]any{
		"HostRoles": map[string]any{
			"component_name": "DATANODE",
			"cluster_name":   "prod",
			"service_name":   "HDFS",
			"host_name":      "h1",
		},
	})

	gw.respond(restgraph.VerbGet, testBaseURL+"/clusters/prod", map[string]any{
		"Clusters": map[string]any{"cluster_name": "prod"},
	})

	requestsAddr := testBaseURL + "/clusters/prod/requests"
	gw.respond(restgraph.VerbPost, requestsAddr, map[string]any{
		"href":     requestsAddr + "/31",
		"Requests": map[string]any{"id": float64(31), "status": "Accepted"},
	})

	host, err := client.Host("h1")
	require.NoError(t, err)

	components, err := host.Relationship(ctx, "components")
	require.NoError(t, err)

	component, err := components.Get("DATANODE")
	require.NoError(t, err)

	job, err := client.RestartComponent(ctx, component)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "31", job.Identifier())

	body := gw.bodyOf(restgraph.VerbPost, requestsAddr)
	info := section(t, body, "RequestInfo")
	assert.Equal(t, "RESTART", info["command"])
	assert.Equal(t, "Restart Datanode", info["context"])

	level := section(t, body, "RequestInfo", "operation_level")
	assert.Equal(t, "SERVICE", level["level"])
	assert.Equal(t, "prod", level["cluster_name"])
	assert.Equal(t, "HDFS", level["service_name"])

	filters, ok := body["Requests/resource_filters"].([]any)
	require.True(t, ok)
	require.Len(t, filters, 1)
	assert.Equal(t, map[string]any{
		"service_name":   "HDFS",
		"component_name": "DATANODE",
		"hosts":          "h1",
	}, filters[0])
}

func TestServiceStartStop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		start   bool
		state   string
		context string
	}{
		{name: "start", start: true, state: "STARTED", context: "_PARSE_.START.HDFS"},
		{name: "stop", start: false, state: "INSTALLED", context: "_PARSE_.STOP.HDFS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, gw, _ := newTestClient(t)
			ctx := context.Background()

			serviceAddr := testBaseURL + "/clusters/prod/services/HDFS"
			gw.respond(restgraph.VerbGet, testBaseURL+"/clusters/prod", map[string]any{
				"Clusters": map[string]any{"cluster_name": "prod"},
			})
			gw.respond(restgraph.VerbGet, serviceAddr, map[string]any{
				"ServiceInfo": map[string]any{"service_name": "HDFS", "cluster_name": "prod"},
			})
			gw.respond(restgraph.VerbPut, serviceAddr, map[string]any{
				"Requests": map[string]any{"id": float64(8), "status": "Accepted"},
			})

			service, err := client.ClusterService(ctx, "prod", "HDFS")
			require.NoError(t, err)

			var job *restgraph.Node
			if tt.start {
				job, err = client.StartService(ctx, service)
			} else {
				job, err = client.StopService(ctx, service)
			}
			require.NoError(t, err)
			require.NotNil(t, job)
			assert.Equal(t, "8", job.Identifier())

			body := gw.bodyOf(restgraph.VerbPut, serviceAddr)
			info := section(t, body, "RequestInfo")
			assert.Equal(t, tt.context, info["context"])
			assert.Equal(t, "HDFS", section(t, body, "RequestInfo", "operation_level")["service_name"])
			assert.Equal(t, tt.state, section(t, body, "Body", "ServiceInfo")["state"])
		})
	}
}

// scriptCommissionCluster wires the navigation a commission performs: the
// cluster, its hosts, and each host's slave component admin state.
func scriptCommissionCluster(gw *fakeGateway, states map[string]string) {
	clusterAddr := testBaseURL + "/clusters/prod"

	gw.respond(restgraph.VerbGet, clusterAddr, map[string]any{
		"Clusters": map[string]any{"cluster_name": "prod"},
	})

	for host, state := range states {
		gw.respond(restgraph.VerbGet, clusterAddr+"/hosts/"+host, map[string]any{
			"Hosts": map[string]any{"host_name": host},
		})
		gw.respond(restgraph.VerbGet, clusterAddr+"/hosts/"+host+"/host_components/DATANODE", map[string]any{
			"HostRoles": map[string]any{
				"component_name":      "DATANODE",
				"desired_admin_state": state,
			},
		})
	}
}

func TestDecommission(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)
	ctx := context.Background()

	scriptCommissionCluster(gw, map[string]string{"h1": "LIVE", "h2": "LIVE"})

	requestsAddr := testBaseURL + "/clusters/prod/requests"
	gw.respond(restgraph.VerbPost, requestsAddr, map[string]any{
		"Requests": map[string]any{"id": float64(77), "status": "Accepted"},
	})

	cluster, err := client.Cluster("prod")
	require.NoError(t, err)

	job, err := client.Decommission(ctx, cluster, "HDFS", []string{"h1", "h2"})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "77", job.Identifier())

	body := gw.bodyOf(restgraph.VerbPost, requestsAddr)
	info := section(t, body, "RequestInfo")
	assert.Equal(t, "DECOMMISSION", info["command"])
	assert.Equal(t, "Decommission Datanode", info["context"])

	params := section(t, body, "RequestInfo", "parameters")
	assert.Equal(t, "DATANODE", params["slave_type"])
	assert.Equal(t, "h1,h2", params["excluded_hosts"])

	// Two hosts keep the operation at the cluster grain.
	level := section(t, body, "RequestInfo", "operation_level")
	assert.Equal(t, "HOST_COMPONENT", level["level"])
	assert.Equal(t, "prod", level["cluster_name"])
	assert.NotContains(t, level, "host_name")

	filters, ok := body["Requests/resource_filters"].([]any)
	require.True(t, ok)
	require.Len(t, filters, 1)
	assert.Equal(t, map[string]any{
		"service_name":   "HDFS",
		"component_name": "NAMENODE",
	}, filters[0])
}

func TestRecommissionSendsRecommissionCommand(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)
	ctx := context.Background()

	// h2 is already live, so only h1 needs recommissioning.
	scriptCommissionCluster(gw, map[string]string{"h1": "DECOMMISSIONED", "h2": "LIVE"})

	requestsAddr := testBaseURL + "/clusters/prod/requests"
	gw.respond(restgraph.VerbPost, requestsAddr, map[string]any{
		"Requests": map[string]any{"id": float64(78), "status": "Accepted"},
	})

	cluster, err := client.Cluster("prod")
	require.NoError(t, err)

	job, err := client.Recommission(ctx, cluster, "HDFS", []string{"h1", "h2"})
	require.NoError(t, err)
	require.NotNil(t, job)

	body := gw.bodyOf(restgraph.VerbPost, requestsAddr)
	info := section(t, body, "RequestInfo")
	assert.Equal(t, "RECOMMISSION", info["command"])
	assert.Equal(t, "Recommission Datanode", info["context"])

	params := section(t, body, "RequestInfo", "parameters")
	assert.Equal(t, "h1", params["included_hosts"])

	// A single pending host narrows the operation level.
	level := section(t, body, "RequestInfo", "operation_level")
	assert.Equal(t, "h1", level["host_name"])
	assert.Equal(t, "HDFS", level["service_name"])
}

func TestCommissionSkipsWhenNothingPending(t *testing.T) {
	t.Parallel()

	client, gw, _ := newTestClient(t)
	ctx := context.Background()

	scriptCommissionCluster(gw, map[string]string{"h1": "DECOMMISSIONED"})

	cluster, err := client.Cluster("prod")
	require.NoError(t, err)

	job, err := client.Decommission(ctx, cluster, "HDFS", []string{"h1"})
	require.NoError(t, err)
	assert.Nil(t, job)

	assert.Equal(t, 0, gw.callsTo(restgraph.VerbPost, testBaseURL+"/clusters/prod/requests"))
}

func TestCommissionUnknownService(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t)

	cluster, err := client.Cluster("prod")
	require.NoError(t, err)

	_, err = client.Decommission(context.Background(), cluster, "KAFKA", []string{"h1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA")
}
