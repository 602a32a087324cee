package clusterapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/fivetwenty-io/restgraph/pkg/restgraph"
)

// Static errors for err113 compliance.
var (
	ErrUnknownCommissionService = errors.New("service has no commissionable components")
	ErrNotAHost                 = errors.New("node is not a host")
	ErrNotAHostComponent        = errors.New("node is not a host component")
	ErrNotAService              = errors.New("node is not a service")
)

// commissionComponents maps a service to the slave component that gets
// commissioned and the master component the command is filed against.
var commissionComponents = map[string]struct{ slave, master string }{
	"YARN":  {slave: "NODEMANAGER", master: "RESOURCEMANAGER"},
	"HDFS":  {slave: "DATANODE", master: "NAMENODE"},
	"HBASE": {slave: "HBASE_REGIONSERVER", master: "HBASE_MASTER"},
}

// EnableMaintenance puts every component on the host into maintenance mode.
// Maintenance mode disables monitoring, so components can then be stopped or
// removed without raising alerts.
func (c *Client) EnableMaintenance(ctx context.Context, host *restgraph.Node) error {
	return c.setMaintenance(ctx, host, "ON", "Start Maintenance Mode")
}

// DisableMaintenance turns maintenance mode back off on the host.
func (c *Client) DisableMaintenance(ctx context.Context, host *restgraph.Node) error {
	return c.setMaintenance(ctx, host, "OFF", "Stop Maintenance Mode")
}

func (c *Client) setMaintenance(ctx context.Context, host *restgraph.Node, state, actionContext string) error {
	if host.Type() != c.catalog.Host {
		return fmt.Errorf("%w: %s", ErrNotAHost, host.Type().Name)
	}

	body := map[string]any{
		"RequestInfo": map[string]any{
			"context": actionContext,
			"query":   fmt.Sprintf("Hosts/host_name.in(%s)", host.Identifier()),
		},
		"Body": map[string]any{
			"Hosts": map[string]any{"maintenance_state": state},
		},
	}

	err := host.Perform(ctx, restgraph.VerbPut, body)
	if err != nil {
		return fmt.Errorf("setting maintenance mode %s on %s: %w", state, host.Identifier(), err)
	}

	return nil
}

// InstallComponent installs the component on its host and returns the queued
// request, if the server filed one.
func (c *Client) InstallComponent(ctx context.Context, component *restgraph.Node) (*restgraph.Node, error) {
	return c.setComponentState(ctx, component, "INSTALLED", "Install")
}

// StartComponent starts an installed component on its host.
func (c *Client) StartComponent(ctx context.Context, component *restgraph.Node) (*restgraph.Node, error) {
	return c.setComponentState(ctx, component, "STARTED", "Start")
}

// StopComponent stops a running component on its host. The target state is
// INSTALLED; there is no stopped state on the wire.
func (c *Client) StopComponent(ctx context.Context, component *restgraph.Node) (*restgraph.Node, error) {
	return c.setComponentState(ctx, component, "INSTALLED", "Stop")
}

func (c *Client) setComponentState(ctx context.Context, component *restgraph.Node, state, verb string) (*restgraph.Node, error) {
	if component.Type() != c.catalog.HostComponent {
		return nil, fmt.Errorf("%w: %s", ErrNotAHostComponent, component.Type().Name)
	}

	body := map[string]any{
		"RequestInfo": map[string]any{
			"context": fmt.Sprintf("%s %s", verb, normalizeName(component.Identifier())),
		},
		"HostRoles": map[string]any{"state": state},
	}

	err := component.Perform(ctx, restgraph.VerbPut, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", strings.ToLower(verb), component.Identifier(), err)
	}

	return component.Job(), nil
}

// RestartComponent restarts the component on its host, if already installed
// and started. Unlike the state changes above this files a command against
// the cluster's request queue, so it always returns the queued request.
func (c *Client) RestartComponent(ctx context.Context, component *restgraph.Node) (*restgraph.Node, error) {
	if component.Type() != c.catalog.HostComponent {
		return nil, fmt.Errorf("%w: %s", ErrNotAHostComponent, component.Type().Name)
	}

	clusterName, err := component.FieldString(ctx, "cluster_name")
	if err != nil {
		return nil, err
	}

	serviceName, err := component.FieldString(ctx, "service_name")
	if err != nil {
		return nil, err
	}

	hostName, err := component.FieldString(ctx, "host_name")
	if err != nil {
		return nil, err
	}

	requests, err := c.clusterRequests(ctx, clusterName)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"RequestInfo": map[string]any{
			"command": "RESTART",
			"context": "Restart " + normalizeName(component.Identifier()),
			"operation_level": map[string]any{
				"level":        "SERVICE",
				"cluster_name": clusterName,
				"service_name": serviceName,
			},
		},
		"Requests/resource_filters": []any{
			map[string]any{
				"service_name":   serviceName,
				"component_name": component.Identifier(),
				"hosts":          hostName,
			},
		},
	}

	err = requests.Perform(ctx, restgraph.VerbPost, body)
	if err != nil {
		return nil, fmt.Errorf("restarting %s: %w", component.Identifier(), err)
	}

	return requests.Job(), nil
}

// StartService starts every component of the service.
func (c *Client) StartService(ctx context.Context, service *restgraph.Node) (*restgraph.Node, error) {
	return c.setServiceState(ctx, service, "STARTED", "START")
}

// StopService stops every component of the service.
func (c *Client) StopService(ctx context.Context, service *restgraph.Node) (*restgraph.Node, error) {
	return c.setServiceState(ctx, service, "INSTALLED", "STOP")
}

func (c *Client) setServiceState(ctx context.Context, service *restgraph.Node, state, verb string) (*restgraph.Node, error) {
	if service.Type() != c.catalog.Service {
		return nil, fmt.Errorf("%w: %s", ErrNotAService, service.Type().Name)
	}

	clusterName, err := service.FieldString(ctx, "cluster_name")
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"RequestInfo": map[string]any{
			// The server parses this marker into a human-readable context.
			"context": fmt.Sprintf("_PARSE_.%s.%s", verb, service.Identifier()),
			"operation_level": map[string]any{
				"level":        "SERVICE",
				"cluster_name": clusterName,
				"service_name": service.Identifier(),
			},
		},
		"Body": map[string]any{
			"ServiceInfo": map[string]any{"state": state},
		},
	}

	err = service.Perform(ctx, restgraph.VerbPut, body)
	if err != nil {
		return nil, fmt.Errorf("%s service %s: %w", strings.ToLower(verb), service.Identifier(), err)
	}

	return service.Job(), nil
}

// Decommission drains the service's slave component on the given hosts so
// they can safely be removed from the cluster. Hosts whose slave is already
// decommissioned are skipped; when nothing is left to do, no request is filed
// and the returned node is nil.
func (c *Client) Decommission(ctx context.Context, cluster *restgraph.Node, service string, hosts []string) (*restgraph.Node, error) {
	return c.commission(ctx, cluster, service, hosts, "DECOMMISSION", "DECOMMISSIONED", "excluded_hosts")
}

// Recommission returns previously decommissioned hosts to service. Hosts
// whose slave component is already live are skipped.
func (c *Client) Recommission(ctx context.Context, cluster *restgraph.Node, service string, hosts []string) (*restgraph.Node, error) {
	return c.commission(ctx, cluster, service, hosts, "RECOMMISSION", "LIVE", "included_hosts")
}

func (c *Client) commission(ctx context.Context, cluster *restgraph.Node, service string, hosts []string, command, targetState, hostsParam string) (*restgraph.Node, error) {
	components, ok := commissionComponents[service]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommissionService, service)
	}

	pending, err := c.commissionablePending(ctx, cluster, components.slave, targetState, hosts)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		return nil, nil
	}

	operationLevel := map[string]any{
		"level":        "HOST_COMPONENT",
		"cluster_name": cluster.Identifier(),
	}

	// A single host wants the operation scoped all the way down.
	if len(pending) == 1 {
		operationLevel["host_name"] = pending[0]
		operationLevel["service_name"] = service
	}

	body := map[string]any{
		"RequestInfo": map[string]any{
			"command": command,
			"context": fmt.Sprintf("%s %s", titleCase(command), normalizeName(components.slave)),
			"parameters": map[string]any{
				"slave_type": components.slave,
				hostsParam:   strings.Join(pending, ","),
			},
			"operation_level": operationLevel,
		},
		"Requests/resource_filters": []any{
			map[string]any{
				"service_name":   service,
				"component_name": components.master,
			},
		},
	}

	requests, err := cluster.Relationship(ctx, "requests")
	if err != nil {
		return nil, err
	}

	err = requests.Perform(ctx, restgraph.VerbPost, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s on %s: %w", strings.ToLower(command), service, cluster.Identifier(), err)
	}

	return requests.Job(), nil
}

// commissionablePending filters out hosts whose slave component already sits
// in the target admin state.
func (c *Client) commissionablePending(ctx context.Context, cluster *restgraph.Node, slave, targetState string, hosts []string) ([]string, error) {
	clusterHosts, err := cluster.Relationship(ctx, "hosts")
	if err != nil {
		return nil, err
	}

	pending := make([]string, 0, len(hosts))

	for _, hostName := range hosts {
		host, err := clusterHosts.Get(hostName)
		if err != nil {
			return nil, err
		}

		hostComponents, err := host.Relationship(ctx, "components")
		if err != nil {
			return nil, err
		}

		component, err := hostComponents.Get(slave)
		if err != nil {
			return nil, err
		}

		state, err := component.Field(ctx, "desired_admin_state")
		if err != nil {
			return nil, err
		}

		if state != targetState {
			pending = append(pending, hostName)
		}
	}

	return pending, nil
}

func (c *Client) clusterRequests(ctx context.Context, clusterName string) (*restgraph.Collection, error) {
	cluster, err := c.Cluster(clusterName)
	if err != nil {
		return nil, err
	}

	return cluster.Relationship(ctx, "requests")
}

// normalizeName turns an underscore-separated descriptor into something
// readable for request contexts: "NAGIOS_SERVER" becomes "Nagios Server".
func normalizeName(name string) string {
	words := strings.Split(strings.ToLower(name), "_")
	for i, word := range words {
		words[i] = titleCase(word)
	}

	return strings.Join(words, " ")
}

func titleCase(word string) string {
	runes := []rune(strings.ToLower(word))
	if len(runes) == 0 {
		return ""
	}

	runes[0] = unicode.ToUpper(runes[0])

	return string(runes)
}
