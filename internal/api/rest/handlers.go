package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
)

// maxBodyBytes limits request bodies; none of the API inputs is large.
const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

type recordingRequest struct {
	Path string `json:"path"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.service.Status(r.Context()))
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	display, err := boolQuery(r, "display")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)

		return
	}

	snapshot := h.service.CurrentSnapshot(r.Context(), display)
	if snapshot == nil {
		writeError(w, r, http.StatusNotFound, errNoSnapshot)

		return
	}

	writeJSON(w, r, http.StatusOK, snapshot)
}

func (h *Handler) handleFindSnapshot(w http.ResponseWriter, r *http.Request) {
	seq, err := positiveParam(r, "seq")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)

		return
	}

	snapshot, ok := h.service.Snapshot(r.Context(), seq)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("snapshot %d is not retained", seq))

		return
	}

	writeJSON(w, r, http.StatusOK, snapshot)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	n, err := countQuery(r, "n")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)

		return
	}

	writeJSON(w, r, http.StatusOK, h.service.History(r.Context(), n))
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.service.ActiveAlerts(r.Context()))
}

func (h *Handler) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := countQuery(r, "limit")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)

		return
	}

	writeJSON(w, r, http.StatusOK, h.service.AlertHistory(r.Context(), limit))
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := positiveParam(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)

		return
	}

	if !h.service.Acknowledge(r.Context(), id) {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("alert %d not found", id))

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	h.service.ClearAlerts(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handlePin pins ?seq=N, or the current snapshot without it.
func (h *Handler) handlePin(w http.ResponseWriter, r *http.Request) {
	var seq int64

	if raw := r.URL.Query().Get("seq"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid seq %q", raw))

			return
		}

		seq = parsed
	}

	snapshot := h.service.Pin(r.Context(), seq)
	if snapshot == nil {
		writeError(w, r, http.StatusConflict, errNothingToPin)

		return
	}

	writeJSON(w, r, http.StatusOK, snapshot)
}

func (h *Handler) handleUnpin(w http.ResponseWriter, r *http.Request) {
	h.service.Unpin(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.service.Reset(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, nonNil(h.service.DrainEvents(r.Context())))
}

func (h *Handler) handleRawLines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, nonNil(h.service.DrainRawLines(r.Context())))
}

func (h *Handler) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	var req recordingRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)

		return
	}

	if req.Path == "" {
		writeError(w, r, http.StatusBadRequest, errPathRequired)

		return
	}

	h.setRecording(w, r, req.Path)
}

func (h *Handler) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	h.setRecording(w, r, "")
}

func (h *Handler) setRecording(w http.ResponseWriter, r *http.Request, path string) {
	if err := h.service.SetRecording(r.Context(), path); err != nil {
		writeServiceError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	var control mova.ReplayControl
	if err := decodeBody(w, r, &control); err != nil {
		writeError(w, r, http.StatusBadRequest, err)

		return
	}

	if err := h.service.ControlReplay(r.Context(), control); err != nil {
		writeServiceError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Archived(r.Context())
	if err != nil {
		writeServiceError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, nonNil(entries))
}

func (h *Handler) handleArchivedSnapshot(w http.ResponseWriter, r *http.Request) {
	seq, err := positiveParam(r, "seq")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)

		return
	}

	snapshot, err := h.service.ArchivedSnapshot(r.Context(), seq)
	if err != nil {
		writeServiceError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, snapshot)
}

var (
	errNoSnapshot   = errors.New("no snapshot yet")
	errNothingToPin = errors.New("nothing to pin yet")
	errPathRequired = errors.New("path is required")
)

func positiveParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}

	return value, nil
}

// countQuery parses an optional non-negative count; absent means zero.
func countQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}

	return value, nil
}

func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, raw)
	}

	return value, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}

	return nil
}

// nonNil makes empty feeds encode as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf(logger.WithName(r.Context(), "http"), "Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	writeJSON(w, r, code, errorResponse{Error: err.Error()})
}

// writeServiceError maps service errors to status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, mova.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, mova.ErrNotReplay):
		writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, archive.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, archive.ErrDisabled):
		writeError(w, r, http.StatusServiceUnavailable, err)
	default:
		logger.Errorf(logger.WithName(r.Context(), "http"), "Request %s %s failed: %v", r.Method, r.URL.Path, err)
		writeError(w, r, http.StatusInternalServerError, errors.New("internal error"))
	}
}
