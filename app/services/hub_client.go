package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/xDMPx/PyDockMateAgent/app/clients"
	"github.com/xDMPx/PyDockMateAgent/app/domains"
)

// HubAPI is the set of remote operations the agent performs against the hub
type HubAPI interface {
	RegisterAgent(ctx context.Context, desc domains.AgentDescriptor) (domains.AgentIdentity, error)
	FetchHostBinding(ctx context.Context, ident domains.AgentIdentity) (domains.HostBinding, error)
	Heartbeat(ctx context.Context, ident domains.AgentIdentity) (string, error)
	ListHostContainers(ctx context.Context, host domains.HostBinding) ([]domains.ContainerRecord, error)
	RegisterContainer(ctx context.Context, host domains.HostBinding, rec domains.ContainerRecord) error
	DeleteContainer(ctx context.Context, host domains.HostBinding, hubUUID string) error
}

var _ HubAPI = (*HubClient)(nil)

// HubClient provides high-level API methods for the hub
type HubClient struct {
	httpClient *clients.HTTPClient
}

// NewHubClient creates a new hub client
func NewHubClient(httpClient *clients.HTTPClient) *HubClient {
	return &HubClient{
		httpClient: httpClient,
	}
}

type registerContainerRequest struct {
	ID      string `json:"id"`
	Image   string `json:"image"`
	Command string `json:"command"`
	Created string `json:"created"`
	Ports   string `json:"ports"`
	Name    string `json:"name"`
}

// RegisterAgent registers this host and returns the newly issued identity
func (c *HubClient) RegisterAgent(ctx context.Context, desc domains.AgentDescriptor) (domains.AgentIdentity, error) {
	var result struct {
		UUID string `json:"uuid"`
	}
	err := c.httpClient.DoRequest(ctx, http.MethodPost, "/api/agent/register", desc, decodeJSON(&result))
	if err != nil {
		return "", fmt.Errorf("register agent: %w", err)
	}
	if result.UUID == "" {
		return "", fmt.Errorf("register agent: %w: response carried no uuid", clients.ErrTransport)
	}
	return domains.AgentIdentity(result.UUID), nil
}

// FetchHostBinding resolves the hub host id for an agent
func (c *HubClient) FetchHostBinding(ctx context.Context, ident domains.AgentIdentity) (domains.HostBinding, error) {
	var result struct {
		HostUUID string `json:"host_uuid"`
	}
	path := fmt.Sprintf("/api/agent/%s/host", url.PathEscape(string(ident)))
	if err := c.httpClient.DoRequest(ctx, http.MethodGet, path, nil, decodeJSON(&result)); err != nil {
		return "", fmt.Errorf("fetch host binding: %w", err)
	}
	if result.HostUUID == "" {
		return "", fmt.Errorf("fetch host binding: %w: response carried no host_uuid", clients.ErrTransport)
	}
	return domains.HostBinding(result.HostUUID), nil
}

// Heartbeat sends a liveness signal and returns the response text
func (c *HubClient) Heartbeat(ctx context.Context, ident domains.AgentIdentity) (string, error) {
	var text string
	path := fmt.Sprintf("/api/agent/%s/heartbeat/", url.PathEscape(string(ident)))
	err := c.httpClient.DoRequest(ctx, http.MethodPut, path, nil, func(resp *http.Response) error {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		text = strings.TrimSpace(string(body))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("heartbeat: %w", err)
	}
	return text, nil
}

// ListHostContainers returns every container the hub holds for a host
func (c *HubClient) ListHostContainers(ctx context.Context, host domains.HostBinding) ([]domains.ContainerRecord, error) {
	var records []domains.ContainerRecord
	path := fmt.Sprintf("/api/host/%s/containers", url.PathEscape(string(host)))
	if err := c.httpClient.DoRequest(ctx, http.MethodGet, path, nil, decodeJSON(&records)); err != nil {
		return nil, fmt.Errorf("list host containers: %w", err)
	}
	return records, nil
}

// RegisterContainer records a runtime container on the hub
func (c *HubClient) RegisterContainer(ctx context.Context, host domains.HostBinding, rec domains.ContainerRecord) error {
	path := fmt.Sprintf("/api/host/%s/container/register", url.PathEscape(string(host)))
	payload := registerContainerRequest{
		ID:      rec.RuntimeID,
		Image:   rec.Image,
		Command: rec.Command,
		Created: rec.CreatedAt,
		Ports:   rec.Ports,
		Name:    rec.Name,
	}
	if err := c.httpClient.DoRequest(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("register container %s: %w", rec.RuntimeID, err)
	}
	return nil
}

// DeleteContainer removes a container record from the hub
func (c *HubClient) DeleteContainer(ctx context.Context, host domains.HostBinding, hubUUID string) error {
	path := fmt.Sprintf("/api/host/%s/container/%s/destroy", url.PathEscape(string(host)), url.PathEscape(hubUUID))
	if err := c.httpClient.DoRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete container %s: %w", hubUUID, err)
	}
	return nil
}

func decodeJSON(dst interface{}) func(*http.Response) error {
	return func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}
