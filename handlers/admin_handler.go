// backend/handlers/admin_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/stockvaluatorpro/taxdata/backend/database"
	"github.com/stockvaluatorpro/taxdata/backend/models"
	"github.com/stockvaluatorpro/taxdata/backend/scraper"
	"github.com/stockvaluatorpro/taxdata/backend/services"
)

// Admin exposes the update workflow over HTTP: check, approve, status and
// history. Thin by design; every endpoint maps 1:1 onto a service contract.
type Admin struct {
	checks  *services.CheckService
	updates *services.UpdateService
}

func NewAdmin(checks *services.CheckService, updates *services.UpdateService) *Admin {
	return &Admin{checks: checks, updates: updates}
}

// Register installs the admin routes on mux.
func (h *Admin) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/admin/check/", h.Check)
	mux.HandleFunc("/api/admin/approve/", h.Approve)
	mux.HandleFunc("/api/admin/status", h.Status)
	mux.HandleFunc("/api/admin/history", h.History)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling JSON response: %v", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	log.Printf("API Error %d: %s", code, message)
	respondWithJSON(w, code, map[string]string{"error": message})
}

// datasetFromPath extracts the trailing path segment of /api/admin/<op>/{type}.
func datasetFromPath(r *http.Request) (string, error) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 4 || parts[3] == "" {
		return "", fmt.Errorf("missing dataset type in path")
	}
	return strings.ToLower(parts[3]), nil
}

// Check handles POST /api/admin/check/{type|all}: run the conditional
// freshness check and report whether an update is available.
func (h *Admin) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}
	target, err := datasetFromPath(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/admin/check/{type}")
		return
	}

	if target == "all" {
		results, err := h.checks.CheckAll(r.Context())
		if err != nil && len(results) == 0 {
			respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Update check failed: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, results)
		return
	}

	t, err := models.ParseDatasetType(target)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.checks.Check(r.Context(), t)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Update check for %s failed: %v", t, err))
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

// Approve handles POST /api/admin/approve/{type}?approver=name: approve the
// pending update and run the acquisition synchronously.
func (h *Admin) Approve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}
	target, err := datasetFromPath(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/admin/approve/{type}")
		return
	}
	t, err := models.ParseDatasetType(target)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	approver := r.URL.Query().Get("approver")
	if approver == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'approver' is required")
		return
	}

	result, err := h.updates.Approve(r.Context(), t, approver)
	switch {
	case errors.Is(err, services.ErrNothingToApprove):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInvalidTransition):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scraper.ErrDocumentNotFound), errors.Is(err, scraper.ErrParse):
		respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Source shape changed: %v", err))
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to apply %s update: %v", t, err))
	default:
		respondWithJSON(w, http.StatusOK, result)
	}
}

// Status handles GET /api/admin/status: the per-dataset latest check record
// and newest imported period.
func (h *Admin) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}
	statuses, err := h.updates.Status(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load status: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, statuses)
}

// History handles GET /api/admin/history?type=comparable&limit=10.
func (h *Admin) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	var t models.DatasetType
	if v := r.URL.Query().Get("type"); v != "" {
		parsed, err := models.ParseDatasetType(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		t = parsed
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'limit' must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.updates.History(r.Context(), t, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load history: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}
