// Package tools implements the uniform tool invocation layer: a registry of
// heterogeneous HTTP tool servers behind one Invoke call.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
)

var toolInvocationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tool_invocations_total",
		Help: "Total number of tool invocations",
	},
	[]string{"tool", "status"},
)

func init() {
	prometheus.MustRegister(toolInvocationsTotal)
}

// Client routes tool calls to the server that advertises each tool. The
// tool-to-server mapping is discovered from the servers' /tools/list
// endpoints and refreshed when an unknown tool is requested.
type Client struct {
	servers []ServerConfig
	http    *http.Client

	mu      sync.RWMutex
	toolMap map[string]ServerConfig
}

func NewClient(cfg *RegistryConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	return &Client{
		servers: cfg.Servers,
		http:    rc.StandardClient(),
		toolMap: make(map[string]ServerConfig),
	}
}

// List aggregates tool descriptors from every configured server. A server
// that cannot be reached contributes nothing; the others still report.
func (c *Client) List(ctx context.Context) ([]Info, error) {
	var all []Info
	for _, srv := range c.servers {
		infos, err := c.listFrom(ctx, srv)
		if err != nil {
			// Partial availability is expected; planner works with what it gets.
			continue
		}
		all = append(all, infos...)
	}
	return all, nil
}

// Invoke calls toolName with params on whichever server advertises it.
// The result is the server's raw JSON result, stringified.
func (c *Client) Invoke(ctx context.Context, toolName string, params map[string]interface{}) (string, error) {
	srv, ok := c.resolve(toolName)
	if !ok {
		// Unknown tool: refresh the mapping once before giving up.
		if _, err := c.List(ctx); err != nil {
			toolInvocationsTotal.WithLabelValues(toolName, "error").Inc()
			return "", err
		}
		if srv, ok = c.resolve(toolName); !ok {
			toolInvocationsTotal.WithLabelValues(toolName, "error").Inc()
			return "", fmt.Errorf("tool %q is not advertised by any configured server", toolName)
		}
	}

	req := Request{
		ID:     uuid.NewString(),
		Method: "tools/call",
		Params: map[string]interface{}{
			"name":      toolName,
			"arguments": params,
		},
	}
	resp, err := c.post(ctx, srv, "/mcp", req)
	if err != nil {
		toolInvocationsTotal.WithLabelValues(toolName, "error").Inc()
		return "", fmt.Errorf("call tool %q on %s: %w", toolName, srv.Name, err)
	}
	if resp.Error != nil {
		toolInvocationsTotal.WithLabelValues(toolName, "error").Inc()
		return "", fmt.Errorf("tool %q failed: %w", toolName, resp.Error)
	}

	toolInvocationsTotal.WithLabelValues(toolName, "success").Inc()
	return string(resp.Result), nil
}

// Health probes every configured server's /health endpoint. The returned map
// has one entry per server; a nil value means healthy.
func (c *Client) Health(ctx context.Context) map[string]error {
	out := make(map[string]error, len(c.servers))
	for _, srv := range c.servers {
		out[srv.Name] = c.healthOne(ctx, srv)
	}
	return out
}

// ServerNames returns the configured tool server names.
func (c *Client) ServerNames() []string {
	names := make([]string, len(c.servers))
	for i, srv := range c.servers {
		names[i] = srv.Name
	}
	return names
}

// CheckServer probes one configured server by name.
func (c *Client) CheckServer(ctx context.Context, name string) error {
	for _, srv := range c.servers {
		if srv.Name == name {
			return c.healthOne(ctx, srv)
		}
	}
	return fmt.Errorf("tool server %q is not configured", name)
}

func (c *Client) healthOne(ctx context.Context, srv ServerConfig) error {
	ctx, cancel := context.WithTimeout(ctx, srv.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("tool server %s unhealthy: status %d", srv.Name, resp.StatusCode)
	}
	return nil
}

func (c *Client) listFrom(ctx context.Context, srv ServerConfig) ([]Info, error) {
	ctx, cancel := context.WithTimeout(ctx, srv.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/tools/list", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tools from %s: %w", srv.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("list tools from %s: status %d", srv.Name, resp.StatusCode)
	}

	var payload struct {
		Tools []Info `json:"tools"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode tools list from %s: %w", srv.Name, err)
	}

	c.mu.Lock()
	for _, info := range payload.Tools {
		c.toolMap[info.Name] = srv
	}
	c.mu.Unlock()

	return payload.Tools, nil
}

func (c *Client) post(ctx context.Context, srv ServerConfig, path string, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, srv.Timeout())
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func (c *Client) resolve(toolName string) (ServerConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	srv, ok := c.toolMap[toolName]
	return srv, ok
}
