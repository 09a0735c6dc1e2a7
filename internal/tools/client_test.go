package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newToolServer(t *testing.T, tools []Info, results map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tools/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"tools": tools})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		name, _ := req.Params["name"].(string)
		result, ok := results[name]
		resp := Response{ID: req.ID}
		if !ok {
			resp.Error = &ProtocolError{Code: -32601, Message: "tool not found"}
		} else {
			resp.Result = json.RawMessage(result)
		}
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, servers ...ServerConfig) *Client {
	t.Helper()
	return NewClient(&RegistryConfig{Servers: servers})
}

func TestInvokeRoutesToAdvertisingServer(t *testing.T) {
	finance := newToolServer(t,
		[]Info{{Name: "stock_data", Description: "Fetch stock fundamentals"}},
		map[string]string{"stock_data": `{"revenue": "94.9B"}`},
	)
	search := newToolServer(t,
		[]Info{{Name: "web_search", Description: "Search the web"}},
		map[string]string{"web_search": `{"hits": []}`},
	)
	c := testClient(t,
		ServerConfig{Name: "finance", URL: finance.URL, TimeoutSeconds: 2},
		ServerConfig{Name: "search", URL: search.URL, TimeoutSeconds: 2},
	)

	result, err := c.Invoke(context.Background(), "stock_data", map[string]interface{}{"ticker": "AAPL"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.Contains(result, "94.9B") {
		t.Errorf("unexpected result %q", result)
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	srv := newToolServer(t, []Info{{Name: "stock_data"}}, nil)
	c := testClient(t, ServerConfig{Name: "finance", URL: srv.URL, TimeoutSeconds: 2})

	if _, err := c.Invoke(context.Background(), "teleport", nil); err == nil {
		t.Fatal("expected an error for an unadvertised tool")
	}
}

func TestInvokeToolServerError(t *testing.T) {
	srv := newToolServer(t, []Info{{Name: "stock_data"}}, map[string]string{})
	c := testClient(t, ServerConfig{Name: "finance", URL: srv.URL, TimeoutSeconds: 2})

	_, err := c.Invoke(context.Background(), "stock_data", nil)
	if err == nil {
		t.Fatal("expected a protocol error")
	}
	if !strings.Contains(err.Error(), "tool not found") {
		t.Errorf("expected the server message to surface, got %v", err)
	}
}

func TestListAggregatesAcrossServers(t *testing.T) {
	finance := newToolServer(t, []Info{{Name: "stock_data"}}, nil)
	search := newToolServer(t, []Info{{Name: "web_search"}}, nil)
	c := testClient(t,
		ServerConfig{Name: "finance", URL: finance.URL, TimeoutSeconds: 2},
		ServerConfig{Name: "search", URL: search.URL, TimeoutSeconds: 2},
	)

	infos, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(infos))
	}
}

func TestListToleratesUnreachableServer(t *testing.T) {
	up := newToolServer(t, []Info{{Name: "stock_data"}}, nil)
	c := testClient(t,
		ServerConfig{Name: "down", URL: "http://127.0.0.1:1", TimeoutSeconds: 1},
		ServerConfig{Name: "finance", URL: up.URL, TimeoutSeconds: 2},
	)

	infos, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "stock_data" {
		t.Errorf("expected only the reachable server's tools, got %v", infos)
	}
}

func TestCheckServer(t *testing.T) {
	srv := newToolServer(t, nil, nil)
	c := testClient(t, ServerConfig{Name: "finance", URL: srv.URL, TimeoutSeconds: 2})

	if err := c.CheckServer(context.Background(), "finance"); err != nil {
		t.Errorf("expected healthy server, got %v", err)
	}
	if err := c.CheckServer(context.Background(), "ghost"); err == nil {
		t.Error("expected an error for an unconfigured server")
	}
}

func TestParseRegistry(t *testing.T) {
	cfg, err := ParseRegistry([]byte(`
servers:
  - name: finance
    url: http://localhost:8081
    timeout_seconds: 15
  - name: search
    url: http://localhost:8082
`))
	if err != nil {
		t.Fatalf("ParseRegistry failed: %v", err)
	}
	if len(cfg.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(cfg.Servers))
	}
	if cfg.Servers[0].Timeout() != 15*time.Second {
		t.Errorf("expected 15s timeout, got %v", cfg.Servers[0].Timeout())
	}
	if cfg.Servers[1].Timeout() != 10*time.Second {
		t.Errorf("expected default timeout, got %v", cfg.Servers[1].Timeout())
	}
}

func TestParseRegistryRejectsInvalid(t *testing.T) {
	cases := []string{
		"servers:\n  - name: finance",
		"servers:\n  - url: http://localhost:8081",
		"servers:\n  - name: a\n    url: u\n  - name: a\n    url: u2",
	}
	for _, in := range cases {
		if _, err := ParseRegistry([]byte(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}
