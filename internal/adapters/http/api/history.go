package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/coachlens/internal/domain/model"
)

// HistoryHandler handles snapshot and intervention requests.
type HistoryHandler struct {
	deps HistoryDependencies
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

type snapshotsRequest struct {
	Snapshots []model.MetricsSnapshot `json:"snapshots"`
}

type snapshotsResponse struct {
	Added int `json:"added"`
}

// interventionRequest mirrors POST /interventions. At is optional RFC3339.
type interventionRequest struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Coach     string `json:"coach"`
	Objective string `json:"objective"`
	At        string `json:"at"`
}

func (req interventionRequest) event() (model.InterventionEvent, error) {
	switch {
	case strings.TrimSpace(req.StudentID) == "":
		return model.InterventionEvent{}, errMissing("student_id")
	case strings.TrimSpace(req.Coach) == "":
		return model.InterventionEvent{}, errMissing("coach")
	case strings.TrimSpace(req.Objective) == "":
		return model.InterventionEvent{}, errMissing("objective")
	}
	ev := model.InterventionEvent{
		ID:        strings.TrimSpace(req.ID),
		StudentID: req.StudentID,
		Coach:     req.Coach,
		Objective: req.Objective,
	}
	if req.At != "" {
		at, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			return model.InterventionEvent{}, errors.New("invalid at; must be RFC3339")
		}
		ev.At = at
	}
	return ev, nil
}

func errMissing(field string) error { return fmt.Errorf("missing %s", field) }

// HandlePostSnapshots handles POST /snapshots requests.
func (h *HistoryHandler) HandlePostSnapshots(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_snapshots"
	var req snapshotsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Snapshots) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissing("snapshots")))
		return
	}
	n, err := h.deps.AddSnapshots(r.Context(), req.Snapshots)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotsResponse{Added: n})
}

// HandlePostIntervention handles POST /interventions requests.
func (h *HistoryHandler) HandlePostIntervention(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_intervention"
	var req interventionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := req.event()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	saved, err := h.deps.RecordIntervention(r.Context(), ev)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// HandleGetImpact handles GET /interventions/{id}/impact requests.
func (h *HistoryHandler) HandleGetImpact(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_impact"
	rep, err := h.deps.InterventionImpact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
