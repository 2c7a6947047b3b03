package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vitalmesh/telemetryd/internal/sync"
)

// Router wraps the mux router and the sync engine
type Router struct {
	*mux.Router
	engine   *sync.Engine
	deviceID string
}

// NewRouter creates the local HTTP surface: sensor ingest and status
// observation. This is the only user-visible signal the agent exposes;
// every failure mode below it degrades to "data stays buffered locally".
func NewRouter(engine *sync.Engine, deviceID string) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		engine:   engine,
		deviceID: deviceID,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", r.getStatus).Methods("GET")
	api.HandleFunc("/sync", r.forceSync).Methods("POST")
	api.HandleFunc("/records/{category}", r.ingestRecord).Methods("POST")

	return r
}

// Handler returns the root http.Handler.
func (r *Router) Handler() http.Handler {
	return r.Router
}

// healthCheck returns the health status of the agent
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns connection state and per-category unsynced counts
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.engine.Status(req.Context()))
}

// forceSync triggers an immediate sync pass
func (r *Router) forceSync(w http.ResponseWriter, req *http.Request) {
	r.engine.ForceSync()
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "sync requested",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
