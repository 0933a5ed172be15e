package api

import (
	"net/http"

	"github.com/okian/coachlens/internal/domain/groups"
)

// AnalyticsHandler handles effectiveness, coach, cohort and group requests.
type AnalyticsHandler struct {
	deps AnalyticsDependencies
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps}
}

// groupsRequest maps student IDs to a group key such as a school or class.
type groupsRequest struct {
	Assignments map[string]string `json:"assignments"`
}

type groupsResponse struct {
	Groups  []groups.Stats `json:"groups"`
	Missing []string       `json:"missing,omitempty"`
}

// HandleGetEffectiveness handles GET /effectiveness requests.
func (h *AnalyticsHandler) HandleGetEffectiveness(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_effectiveness"
	out, err := h.deps.Effectiveness(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetCoaches handles GET /coaches requests.
func (h *AnalyticsHandler) HandleGetCoaches(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_coaches"
	out, err := h.deps.Coaches(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetCohorts handles GET /cohorts requests.
func (h *AnalyticsHandler) HandleGetCohorts(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_cohorts"
	out, err := h.deps.Cohorts(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePostGroups handles POST /groups requests.
func (h *AnalyticsHandler) HandlePostGroups(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_groups"
	var req groupsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Assignments) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissing("assignments")))
		return
	}
	stats, missing, err := h.deps.Groups(r.Context(), req.Assignments)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, groupsResponse{Groups: stats, Missing: missing})
}
