// Command markettool is a standalone tool server exposing market data and
// news search to the workflow engine over the JSON tool protocol. It is
// registered in tools.yaml like any other server.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finsight-ai/finsight/internal/tools"
)

// Quote is one stock quote as returned by the stock_quote tool.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	Date      string  `json:"date"`
	Source    string  `json:"source"` // "api" or "cache"
	Timestamp int64   `json:"timestamp"`
}

// SearchResult is one news search hit returned by the news_search tool.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

var redisClient *redis.Client

var (
	toolRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markettool_requests_total",
			Help: "Total number of tool protocol requests",
		},
		[]string{"method", "status"},
	)
	toolRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "markettool_request_duration_seconds",
			Help: "Duration of tool protocol requests",
		},
		[]string{"method"},
	)
	quoteCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "markettool_quote_cache_hits_total",
			Help: "Total number of quote cache hits",
		},
	)
	externalAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markettool_external_api_calls_total",
			Help: "Total number of external API calls",
		},
		[]string{"provider", "status"},
	)
)

func init() {
	prometheus.MustRegister(toolRequestsTotal)
	prometheus.MustRegister(toolRequestDuration)
	prometheus.MustRegister(quoteCacheHitsTotal)
	prometheus.MustRegister(externalAPICallsTotal)
}

func main() {
	initRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	router := mux.NewRouter()
	router.HandleFunc("/mcp", handleMCP).Methods("POST")
	router.HandleFunc("/tools/list", handleToolsList).Methods("GET")
	router.HandleFunc("/health", handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler())

	port := getEnv("PORT", "8081")
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Market tool server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

func initRedis() {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			db = n
		}
	}

	redisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Printf("Warning: failed to connect to Redis: %v", err)
		log.Println("Market tool server will work without quote caching")
	} else {
		log.Println("Connected to Redis cache")
	}
}

func handleMCP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req tools.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		toolRequestsTotal.WithLabelValues("unknown", "error").Inc()
		writeToolError(w, req.ID, -32700, "Parse error")
		return
	}

	defer func() {
		toolRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	}()

	var resp tools.Response
	switch req.Method {
	case "tools/call":
		resp = handleToolCall(r.Context(), req)
	case "tools/list":
		resp = toolsListResponse(req.ID)
	default:
		toolRequestsTotal.WithLabelValues(req.Method, "error").Inc()
		writeToolError(w, req.ID, -32601, "Method not found")
		return
	}

	status := "success"
	if resp.Error != nil {
		status = "error"
	}
	toolRequestsTotal.WithLabelValues(req.Method, status).Inc()
	writeJSONResponse(w, resp)
}

func handleToolCall(ctx context.Context, req tools.Request) tools.Response {
	name, ok := req.Params["name"].(string)
	if !ok {
		return errorResponse(req.ID, -32602, "Invalid tool name")
	}
	arguments, _ := req.Params["arguments"].(map[string]interface{})

	switch name {
	case "stock_quote":
		symbol, _ := arguments["symbol"].(string)
		if strings.TrimSpace(symbol) == "" {
			return errorResponse(req.ID, -32602, "symbol argument is required")
		}
		quote, err := getQuote(ctx, symbol)
		if err != nil {
			return errorResponse(req.ID, -32000, fmt.Sprintf("quote lookup failed: %v", err))
		}
		return resultResponse(req.ID, quote)
	case "news_search":
		query, _ := arguments["query"].(string)
		if strings.TrimSpace(query) == "" {
			return errorResponse(req.ID, -32602, "query argument is required")
		}
		results, err := searchNews(ctx, query)
		if err != nil {
			return errorResponse(req.ID, -32000, fmt.Sprintf("news search failed: %v", err))
		}
		return resultResponse(req.ID, map[string]interface{}{"results": results})
	default:
		return errorResponse(req.ID, -32601, "Tool not found")
	}
}

func getQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))

	if quote, err := quoteFromCache(ctx, symbol); err == nil {
		quoteCacheHitsTotal.Inc()
		return quote, nil
	}

	quote, err := quoteFromAPI(ctx, symbol)
	if err != nil {
		externalAPICallsTotal.WithLabelValues("stooq", "error").Inc()
		return nil, err
	}
	externalAPICallsTotal.WithLabelValues("stooq", "success").Inc()

	if err := cacheQuote(ctx, symbol, quote); err != nil {
		log.Printf("Warning: failed to cache quote for %s: %v", symbol, err)
	}
	return quote, nil
}

func quoteFromCache(ctx context.Context, symbol string) (*Quote, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis not available")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := redisClient.Get(ctx, "quote:"+symbol).Result()
	if err != nil {
		return nil, err
	}

	var quote Quote
	if err := json.Unmarshal([]byte(data), &quote); err != nil {
		return nil, err
	}
	quote.Source = "cache"
	return &quote, nil
}

func cacheQuote(ctx context.Context, symbol string, quote *Quote) error {
	if redisClient == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	// Quotes go stale quickly; keep them for 10 minutes.
	return redisClient.Set(ctx, "quote:"+symbol, data, 10*time.Minute).Err()
}

// quoteFromAPI fetches the latest daily bar from Stooq's CSV endpoint, which
// needs no API key. US tickers use the ".us" suffix.
func quoteFromAPI(ctx context.Context, symbol string) (*Quote, error) {
	stooqSymbol := symbol
	if !strings.Contains(stooqSymbol, ".") {
		stooqSymbol += ".us"
	}
	endpoint := fmt.Sprintf("https://stooq.com/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", url.QueryEscape(stooqSymbol))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status: %s", resp.Status)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 || len(records[1]) < 8 {
		return nil, fmt.Errorf("unexpected CSV shape for %s", symbol)
	}
	row := records[1]
	if row[3] == "N/D" {
		return nil, fmt.Errorf("no data for symbol %s", symbol)
	}

	parse := func(s string) float64 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	volume, _ := strconv.ParseInt(row[7], 10, 64)

	return &Quote{
		Symbol:    strings.ToUpper(symbol),
		Date:      row[1],
		Open:      parse(row[3]),
		High:      parse(row[4]),
		Low:       parse(row[5]),
		Close:     parse(row[6]),
		Volume:    volume,
		Source:    "api",
		Timestamp: time.Now().Unix(),
	}, nil
}

// searchNews queries the Tavily search API. Without an API key it returns an
// empty result set rather than failing the whole step.
func searchNews(ctx context.Context, query string) ([]SearchResult, error) {
	apiKey := getEnv("TAVILY_API_KEY", "")
	if apiKey == "" {
		log.Println("Warning: TAVILY_API_KEY not configured, returning no results")
		return []SearchResult{}, nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"api_key":     apiKey,
		"query":       query,
		"topic":       "news",
		"max_results": 5,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.tavily.com/search", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		externalAPICallsTotal.WithLabelValues("tavily", "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		externalAPICallsTotal.WithLabelValues("tavily", "error").Inc()
		return nil, fmt.Errorf("API request failed with status: %s", resp.Status)
	}
	externalAPICallsTotal.WithLabelValues("tavily", "success").Inc()

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return results, nil
}

func availableTools() []tools.Info {
	return []tools.Info{
		{
			Name:        "stock_quote",
			Description: "Get the latest daily open/high/low/close/volume for a stock ticker",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"symbol": map[string]interface{}{
						"type":        "string",
						"description": "Stock ticker symbol, e.g. AAPL",
					},
				},
				"required": []string{"symbol"},
			},
		},
		{
			Name:        "news_search",
			Description: "Search recent financial news articles for a query",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Search query, e.g. a company name or market event",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func toolsListResponse(id string) tools.Response {
	return resultResponse(id, map[string]interface{}{"tools": availableTools()})
}

func handleToolsList(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]interface{}{"tools": availableTools()})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "healthy",
		"redis":  "disconnected",
	}

	if redisClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := redisClient.Ping(ctx).Result(); err == nil {
			health["redis"] = "connected"
		}
	}

	writeJSONResponse(w, health)
}

func resultResponse(id string, result interface{}) tools.Response {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, -32603, "Internal error")
	}
	return tools.Response{ID: id, Result: data}
}

func errorResponse(id string, code int, message string) tools.Response {
	return tools.Response{ID: id, Error: &tools.ProtocolError{Code: code, Message: message}}
}

func writeToolError(w http.ResponseWriter, id string, code int, message string) {
	writeJSONResponse(w, errorResponse(id, code, message))
}

func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
