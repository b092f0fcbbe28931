// Package server implements the HTTP ingress: the single /provide
// endpoint clients push batches to, the /summary snapshot, the legacy
// /sensors alias, a WebSocket live feed and the static UI.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"thermoline/internal/metrics"
	"thermoline/internal/model"
	"thermoline/internal/recipient"
	"thermoline/internal/statistics"
)

// Handler serializes every request on the shared (Statistics, recipients)
// pair: there is no cross-request parallel update of history or alert
// state.
type Handler struct {
	mu         sync.Mutex
	stats      *statistics.Statistics
	recipients recipient.List
	hub        *Hub
	metrics    *metrics.Server
}

func NewHandler(stats *statistics.Statistics, recipients recipient.List, hub *Hub, m *metrics.Server) *Handler {
	return &Handler{stats: stats, recipients: recipients, hub: hub, metrics: m}
}

// NewMux registers all routes under prefix. staticDir is served at the
// prefix root with index.html as the default document; pass "" to skip.
func NewMux(prefix string, h *Handler, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/provide", h.Provide)
	mux.HandleFunc(prefix+"/summary", h.Summary)
	mux.HandleFunc(prefix+"/sensors", h.Summary)
	if h.hub != nil {
		mux.HandleFunc(prefix+"/ws", h.hub.Handle)
	}
	if staticDir != "" {
		mux.Handle(prefix+"/", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(staticDir))))
	}
	return mux
}

// Provide ingests one measurement batch. A parsed batch is always
// acknowledged: recipient failures are logged, not reflected in the
// response.
func (h *Handler) Provide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req model.ProvideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.stats.Update(req.Measurements)
	errs := h.recipients.Update(r.Context(), req.Measurements)
	snapshot := h.stats.Snapshot()
	h.mu.Unlock()

	for _, err := range errs {
		log.Printf("[server] recipient error: %v", err)
	}
	if h.metrics != nil {
		h.metrics.ProvideRequests.Inc()
		h.metrics.PointsIngested.Add(float64(req.Measurements.Total()))
		h.metrics.RecipientErrors.Add(float64(len(errs)))
	}
	if h.hub != nil {
		if payload, err := json.Marshal(snapshot); err == nil {
			h.hub.Broadcast(payload)
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Accepted"))
}

// Summary serves the per-channel statistics snapshot.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.mu.Lock()
	snapshot := h.stats.Snapshot()
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		log.Printf("[server] error encoding summary: %v", err)
	}
}
