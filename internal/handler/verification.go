package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/whodeedit/whodeedit/internal/model"
	"github.com/whodeedit/whodeedit/internal/store"
)

type VerificationHandler struct {
	properties *store.PropertyStore
	users      *store.UserStore
	logger     *slog.Logger
}

func NewVerificationHandler(ps *store.PropertyStore, us *store.UserStore, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{properties: ps, users: us, logger: logger}
}

// Pending lists properties awaiting review, oldest first so the queue
// is worked in submission order.
func (h *VerificationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.listByStatus(w, model.StatusPending)
}

// ByStatus lists properties in the given verification state.
func (h *VerificationHandler) ByStatus(w http.ResponseWriter, r *http.Request) {
	status := r.PathValue("status")
	if status != model.StatusPending && status != model.StatusVerified && status != model.StatusRejected {
		writeError(w, http.StatusBadRequest, "invalid verification status")
		return
	}
	h.listByStatus(w, status)
}

func (h *VerificationHandler) listByStatus(w http.ResponseWriter, status string) {
	properties, err := h.properties.ListByStatus(status)
	if err != nil {
		h.logger.Error("failed to list properties", "error", err, "status", status)
		writeError(w, http.StatusInternalServerError, "failed to list properties")
		return
	}
	if properties == nil {
		properties = []model.Property{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"properties": properties},
	})
}

// Stats returns the admin dashboard aggregates.
func (h *VerificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.properties.Stats()
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"stats": stats},
	})
}

type verifyRequest struct {
	Action      string  `json:"action"`
	Notes       string  `json:"notes"`
	DocumentIDs []int64 `json:"documentIds"`
}

// Verify applies an admin verify or reject transition to a property and
// records the outcome in the owner's activity log.
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action != "verify" && req.Action != "reject" {
		writeError(w, http.StatusBadRequest, "action must be verify or reject")
		return
	}

	existing, err := h.properties.GetByID(id)
	if err != nil {
		h.logger.Error("failed to load property", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load property")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}

	p, err := h.properties.ApplyVerification(id, req.Action, req.Notes, req.DocumentIDs)
	if err != nil {
		h.logger.Error("failed to apply verification", "error", err, "property_id", id, "action", req.Action)
		writeError(w, http.StatusInternalServerError, "failed to apply verification")
		return
	}

	activity := "property_verified"
	if req.Action == "reject" {
		activity = "property_rejected"
	}
	details := fmt.Sprintf(`{"propertyId":%d,"status":%q}`, p.ID, p.VerificationStatus)
	if err := h.users.AppendActivity(p.OwnerID, activity, details); err != nil {
		h.logger.Error("failed to append activity", "error", err, "user_id", p.OwnerID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"property": p},
	})
}
