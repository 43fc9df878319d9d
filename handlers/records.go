package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pixelharbor/imageconvbackend/conversion"
	"github.com/pixelharbor/imageconvbackend/quota"
)

// RecordsHandler serves the conversion history endpoints. All routes
// require an authenticated user.
type RecordsHandler struct {
	Svc    *conversion.Service
	Limits quota.Limits
}

// List handles GET /api/image/records?limit&offset&format
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	formatFilter := r.URL.Query().Get("format")

	records, err := h.Svc.ListRecords(r.Context(), user.ID, limit, offset, formatFilter)
	if err != nil {
		log.Printf("handlers.records: list failed for user %d: %v", user.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "failed to list conversion records")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"limit":   limit,
		"offset":  offset,
	})
}

// Get handles GET /api/image/records/{record_id}
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	recordID, ok := recordIDParam(w, r)
	if !ok {
		return
	}

	record, err := h.Svc.GetRecord(r.Context(), user.ID, recordID)
	if err != nil {
		if errors.Is(err, conversion.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "conversion record not found")
			return
		}
		log.Printf("handlers.records: get %d failed for user %d: %v", recordID, user.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "failed to get conversion record")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}

// Delete handles DELETE /api/image/records/{record_id}
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	recordID, ok := recordIDParam(w, r)
	if !ok {
		return
	}

	if err := h.Svc.DeleteRecord(r.Context(), user.ID, recordID); err != nil {
		if errors.Is(err, conversion.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "conversion record not found")
			return
		}
		log.Printf("handlers.records: delete %d failed for user %d: %v", recordID, user.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "failed to delete conversion record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Limits handles GET /api/image/limits
func (h *RecordsHandler) LimitsInfo(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	usage, err := h.Svc.Usage(r.Context(), user, h.Limits)
	if err != nil {
		log.Printf("handlers.records: usage lookup failed for user %d: %v", user.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "failed to read usage")
		return
	}

	WriteJSON(w, http.StatusOK, usage)
}

func recordIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "record_id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "record id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
