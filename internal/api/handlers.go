package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
)

const (
	maxBodyBytes      = 1 << 20
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Status: status, Error: code, Message: message})
}

// writeFailure maps err onto a status. Update failures that are neither
// unknown parcels nor invalid input are conflicts.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error, update bool) {
	switch {
	case errors.Is(err, store.ErrParcelNotFound):
		writeError(w, http.StatusNotFound, "Resource not found", notFoundMessage(err))
	case errors.Is(err, store.ErrInvalidZoning):
		writeError(w, http.StatusBadRequest, "Invalid request parameters", err.Error())
	case update:
		s.log.Error("zoning update failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusConflict, "Failed to update zoning", "the zoning update could not be applied")
	default:
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred")
	}
}

func notFoundMessage(err error) string {
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	return "parcel not found"
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request parameters", "request body must be valid JSON")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.hub.Count()})
}

func (s *Server) handleListParcels(w http.ResponseWriter, r *http.Request) {
	parcels, err := s.backend.GetAllParcels(r.Context())
	if err != nil {
		s.writeFailure(w, r, err, false)
		return
	}
	if parcels == nil {
		parcels = []model.Parcel{}
	}
	writeJSON(w, http.StatusOK, parcels)
}

func (s *Server) handleZoningTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.backend.GetZoningVocabulary(r.Context())
	if err != nil {
		s.writeFailure(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleUpdateZoning(w http.ResponseWriter, r *http.Request) {
	var req model.ZoningUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.ParcelIDs) == 0 || req.ZoningType == "" {
		writeError(w, http.StatusBadRequest, "Invalid request parameters", "parcelIds and zoningType are required")
		return
	}
	if err := s.backend.UpdateZoning(r.Context(), req.ParcelIDs, req.ZoningType); err != nil {
		s.writeFailure(w, r, err, true)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var ids []model.ParcelID
	if !decodeBody(w, r, &ids) {
		return
	}
	summary, err := s.backend.GetStats(r.Context(), ids)
	if err != nil {
		s.writeFailure(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req model.ZoningUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	summary, err := s.backend.SimulateZoningUpdate(r.Context(), req.ParcelIDs, req.ZoningType)
	if err != nil {
		s.writeFailure(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditLimit {
			writeError(w, http.StatusBadRequest, "Invalid request parameters", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	entries, err := s.backend.AuditLog(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, r, err, false)
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
