package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/address", s.handleGetAddress).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/transactions", s.handleSendTransaction).Methods(http.MethodPost)

	return r
}
