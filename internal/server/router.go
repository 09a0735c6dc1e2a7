package server

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all endpoints onto a gorilla/mux router.
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/chat", h.handleChat).Methods("POST")
	router.HandleFunc("/chat/stream", h.handleChatStream).Methods("POST")
	router.HandleFunc("/ingestion/upload", h.handleIngest).Methods("POST")

	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/health/{dependency}", h.handleHealthOne).Methods("GET")

	router.Handle("/metrics", promhttp.Handler())

	return router
}
