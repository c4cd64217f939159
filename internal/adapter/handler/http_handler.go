package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/service"
)

type HTTPHandler struct {
	inventory service.InventoryComputer
	movements MovementRecorder
	logger    *zap.Logger
}

type InventoryHTTPResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message,omitempty"`
	Inventory *InventoryView `json:"inventory,omitempty"`
}

type RecordMovementHTTPResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Event   *RecordedEventView `json:"event,omitempty"`
}

func NewHTTPHandler(inventory service.InventoryComputer, movements MovementRecorder, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		inventory: inventory,
		movements: movements,
		logger:    logger,
	}
}

// Register mounts the handler's routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/organizations/{id}/inventory", h.GetInventory)
	mux.HandleFunc("POST /api/organizations/{id}/events", h.RecordMovement)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := pathOrganizationID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, InventoryHTTPResponse{
			Success: false,
			Message: "invalid organization id",
		})
		return
	}

	inventory, err := h.inventory.ComputeInventory(r.Context(), organizationID)
	if err != nil {
		status, message := h.failure(err, organizationID, readErrorMappings)
		writeJSON(w, status, InventoryHTTPResponse{
			Success: false,
			Message: message,
		})
		return
	}

	view := NewInventoryView(inventory)
	writeJSON(w, http.StatusOK, InventoryHTTPResponse{
		Success:   true,
		Inventory: &view,
	})
}

func (h *HTTPHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := pathOrganizationID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, RecordMovementHTTPResponse{
			Success: false,
			Message: "invalid organization id",
		})
		return
	}

	var in MovementInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, RecordMovementHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	event, err := h.movements.RecordMovement(r.Context(), in.toRequest(organizationID))
	if err != nil {
		status, message := h.failure(err, organizationID, errorMappings)
		writeJSON(w, status, RecordMovementHTTPResponse{
			Success: false,
			Message: message,
		})
		return
	}

	view := NewRecordedEventView(event)
	writeJSON(w, http.StatusCreated, RecordMovementHTTPResponse{
		Success: true,
		Message: "movement recorded",
		Event:   &view,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) failure(err error, organizationID int64, mappings []errorMapping) (int, string) {
	status, _, message, known := classify(err, mappings)
	if !known {
		h.logger.Error("request failed",
			zap.Int64("organization_id", organizationID),
			zap.Error(err),
		)
	}
	return status, message
}

func pathOrganizationID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
