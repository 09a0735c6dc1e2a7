// Package server exposes the workflow over HTTP: chat (buffered and
// streaming), document ingestion, health probes, and metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finsight-ai/finsight/internal/graph"
	"github.com/finsight-ai/finsight/internal/ingestion"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
}

// Orchestrator runs the chat workflow. Satisfied by *graph.Engine.
type Orchestrator interface {
	Run(ctx context.Context, userID, query string) (*graph.State, error)
	RunStream(ctx context.Context, userID, query string, stream func(ctx context.Context, chunk []byte) error) (*graph.State, error)
}

// Ingestor stores uploaded documents. Satisfied by *ingestion.Pipeline.
type Ingestor interface {
	IngestFile(ctx context.Context, path, documentID string) (int, error)
}

// ChatRequest is the chat endpoint's request body.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ChatResponse is the chat endpoint's response body.
type ChatResponse struct {
	Answer string `json:"answer"`
	Cached bool   `json:"cached"`
}

// Handlers bundles the HTTP handlers and their collaborators.
type Handlers struct {
	Engine         Orchestrator
	Pipeline       Ingestor
	Health         *HealthChecker
	MaxUploadBytes int64
}

func (h *Handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		httpRequestDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())
	}()

	req, ok := decodeChatRequest(w, r)
	if !ok {
		httpRequestsTotal.WithLabelValues("chat", "error").Inc()
		return
	}

	state, err := h.Engine.Run(r.Context(), req.UserID, req.Message)
	if err != nil {
		log.Printf("[Chat] Workflow failed for user %s: %v", req.UserID, err)
		httpRequestsTotal.WithLabelValues("chat", "error").Inc()
		// Fatal failures return a generic response with no partial content.
		writeError(w, http.StatusInternalServerError, "failed to generate a response")
		return
	}

	httpRequestsTotal.WithLabelValues("chat", "success").Inc()
	writeJSON(w, http.StatusOK, ChatResponse{
		Answer: state.Answer(),
		Cached: state.CacheHit,
	})
}

func (h *Handlers) handleChatStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		httpRequestDuration.WithLabelValues("chat_stream").Observe(time.Since(start).Seconds())
	}()

	req, ok := decodeChatRequest(w, r)
	if !ok {
		httpRequestsTotal.WithLabelValues("chat_stream", "error").Inc()
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpRequestsTotal.WithLabelValues("chat_stream", "error").Inc()
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	stream := func(ctx context.Context, chunk []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", chunk); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// The request context is cancelled when the client disconnects, which
	// aborts remaining node execution inside the engine.
	if _, err := h.Engine.RunStream(r.Context(), req.UserID, req.Message, stream); err != nil {
		log.Printf("[Chat] Streaming workflow failed for user %s: %v", req.UserID, err)
		httpRequestsTotal.WithLabelValues("chat_stream", "error").Inc()
		fmt.Fprintf(w, "event: error\ndata: failed to generate a response\n\n")
		flusher.Flush()
		return
	}

	httpRequestsTotal.WithLabelValues("chat_stream", "success").Inc()
	fmt.Fprintf(w, "event: done\ndata: \n\n")
	flusher.Flush()
}

func (h *Handlers) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		httpRequestDuration.WithLabelValues("ingest").Observe(time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		httpRequestsTotal.WithLabelValues("ingest", "error").Inc()
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if !ingestion.SupportedType(header.Filename) {
		httpRequestsTotal.WithLabelValues("ingest", "error").Inc()
		writeError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("unsupported file type %q", filepath.Ext(header.Filename)))
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp("", "finsight_upload_*"+ext)
	if err != nil {
		httpRequestsTotal.WithLabelValues("ingest", "error").Inc()
		writeError(w, http.StatusInternalServerError, "failed to buffer upload")
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		httpRequestsTotal.WithLabelValues("ingest", "error").Inc()
		writeError(w, http.StatusInternalServerError, "failed to buffer upload")
		return
	}

	stored, err := h.Pipeline.IngestFile(r.Context(), tmp.Name(), header.Filename)
	if err != nil {
		log.Printf("[Ingest] Failed to ingest %s: %v", header.Filename, err)
		httpRequestsTotal.WithLabelValues("ingest", "error").Inc()
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("ingestion failed: %v", err))
		return
	}

	httpRequestsTotal.WithLabelValues("ingest", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document":      header.Filename,
		"stored_chunks": stored,
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := h.Health.CheckAll(r.Context())
	statuses := make(map[string]string, len(results))
	healthy := true
	for name, err := range results {
		if err != nil {
			statuses[name] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			statuses[name] = "healthy"
		}
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, statuses)
}

func (h *Handlers) handleHealthOne(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["dependency"]
	err, ok := h.Health.CheckOne(r.Context(), name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown dependency %q", name))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
