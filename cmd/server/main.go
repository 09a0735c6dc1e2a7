package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/finsight-ai/finsight/internal/cache"
	"github.com/finsight-ai/finsight/internal/config"
	"github.com/finsight-ai/finsight/internal/graph"
	"github.com/finsight-ai/finsight/internal/ingestion"
	"github.com/finsight-ai/finsight/internal/llm"
	"github.com/finsight-ai/finsight/internal/server"
	"github.com/finsight-ai/finsight/internal/storage"
	"github.com/finsight-ai/finsight/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	ctx := context.Background()

	llmClient, err := llm.New(llm.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
	})
	if err != nil {
		log.Fatalf("LLM client: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	semCache := cache.New(rdb)
	if err := semCache.Ping(ctx); err != nil {
		// Degraded but serviceable: every lookup becomes a forced miss.
		log.Printf("Warning: semantic cache unreachable at startup: %v", err)
	}

	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Vector index: %v", err)
	}
	defer store.Close()
	if err := store.Init(ctx, llm.EmbeddingDim); err != nil {
		log.Fatalf("Vector index schema: %v", err)
	}

	registry, err := tools.LoadRegistry(cfg.ToolsConfigPath)
	if err != nil {
		log.Fatalf("Tool registry: %v", err)
	}
	toolClient := tools.NewClient(registry)

	engine := &graph.Engine{
		LLM:            llmClient,
		Embedder:       llmClient,
		Cache:          semCache,
		Index:          &vectorIndex{store: store},
		Tools:          &toolInvoker{client: toolClient},
		CacheThreshold: float32(cfg.CacheThreshold),
		CacheTTL:       cfg.CacheTTL,
		TopK:           cfg.TopK,
		MaxSteps:       cfg.MaxSteps,
	}

	pipeline := ingestion.NewPipeline(llmClient, store)

	health := server.NewHealthChecker(3 * time.Second)
	health.Register("llm", llmClient.Ping)
	health.Register("cache", semCache.Ping)
	health.Register("vector", store.Ping)
	for _, name := range toolClient.ServerNames() {
		name := name
		health.Register("tool:"+name, func(ctx context.Context) error {
			return toolClient.CheckServer(ctx, name)
		})
	}
	log.Printf("Health probes registered: %v", health.Names())

	handlers := &server.Handlers{
		Engine:         engine,
		Pipeline:       pipeline,
		Health:         health,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.NewRouter(handlers),
	}

	go func() {
		log.Printf("Finsight server starting on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

// vectorIndex adapts the storage client to the engine's retrieval contract.
type vectorIndex struct {
	store *storage.Store
}

func (v *vectorIndex) Query(ctx context.Context, emb []float32, topK int) ([]graph.RetrievedChunk, error) {
	scored, err := v.store.Query(ctx, emb, topK)
	if err != nil {
		return nil, err
	}
	out := make([]graph.RetrievedChunk, len(scored))
	for i, sc := range scored {
		out[i] = graph.RetrievedChunk{
			ChunkID:  sc.ChunkID,
			Text:     sc.Text,
			Score:    sc.Score,
			Metadata: sc.Metadata,
		}
	}
	return out, nil
}

// toolInvoker adapts the tool client to the engine's tool contract.
type toolInvoker struct {
	client *tools.Client
}

func (t *toolInvoker) Invoke(ctx context.Context, toolName string, params map[string]interface{}) (string, error) {
	return t.client.Invoke(ctx, toolName, params)
}

func (t *toolInvoker) List(ctx context.Context) ([]graph.ToolInfo, error) {
	infos, err := t.client.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]graph.ToolInfo, len(infos))
	for i, info := range infos {
		out[i] = graph.ToolInfo{Name: info.Name, Description: info.Description}
	}
	return out, nil
}
