package api

import (
	"net/http"
	"strconv"
)

const defaultTriageLimit = 50

// TriageHandler handles triage requests.
type TriageHandler struct {
	deps     TriageDependencies
	maxLimit int
}

// NewTriageHandler creates a new triage handler.
func NewTriageHandler(deps TriageDependencies, maxLimit int) *TriageHandler {
	if maxLimit < 1 {
		maxLimit = defaultTriageLimit
	}
	return &TriageHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetTriage handles GET /triage?limit=N requests.
func (h *TriageHandler) HandleGetTriage(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_triage"
	n := min(defaultTriageLimit, h.maxLimit)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := h.deps.Triage(r.Context(), n)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
