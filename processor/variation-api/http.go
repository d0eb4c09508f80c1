package variationapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/c360studio/doppel/rules"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterHTTPHandlers registers HTTP handlers for the variation-api
// component. The prefix includes the trailing slash (e.g.,
// "/variation-api/"). The POST endpoint runs the same pipeline as the
// stream consumer, including admission control and the identity
// budget.
func (c *Component) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	mux.HandleFunc(prefix+"variations", c.handleCreateVariations)
	mux.HandleFunc(prefix+"rules", c.handleListRules)
	mux.HandleFunc(prefix+"health", c.handleHealth)
	mux.Handle(prefix+"metrics", promhttp.Handler())
}

// handleCreateVariations handles POST /variations.
// The body is a Request; request_id is assigned when absent.
func (c *Component) handleCreateVariations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	if err := req.Validate(); err != nil {
		requestsTotal.WithLabelValues(requesterOther, "invalid").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	weight, known := c.config.Allowlist[req.Requester]
	if !known || weight < c.config.MinWeight {
		requestsTotal.WithLabelValues(requesterOther, "rejected").Inc()
		c.logger.Warn("Rejecting HTTP request from unadmitted requester",
			"request_id", req.RequestID,
			"requester", req.Requester,
			"known", known)
		http.Error(w, "Requester not admitted", http.StatusForbidden)
		return
	}

	identities := req.Identities
	if budget := c.identityCap(weight); len(identities) > budget {
		c.logger.Warn("Truncating HTTP request to identity budget",
			"request_id", req.RequestID,
			"requester", req.Requester,
			"submitted", len(identities),
			"budget", budget)
		identities = identities[:budget]
	}

	c.touchActivity()

	reqCtx, cancel := context.WithTimeout(r.Context(), c.config.GetRequestTimeout())
	defer cancel()

	started := time.Now()
	resp := c.processRequest(reqCtx, &req, identities)
	requestDuration.Observe(time.Since(started).Seconds())

	c.requestsProcessed.Add(1)
	requestsTotal.WithLabelValues(req.Requester, "completed").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		c.logger.Warn("Failed to write response", "error", err)
	}
}

// handleListRules handles GET /rules.
// Returns the rule catalog with descriptions and instruction synonyms.
func (c *Component) handleListRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(rules.Catalog()); err != nil {
		c.logger.Warn("Failed to write response", "error", err)
	}
}

// handleHealth handles GET /health.
func (c *Component) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(c.Health()); err != nil {
		c.logger.Warn("Failed to write response", "error", err)
	}
}
