package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/coachlens/internal/domain/pipeline"
	"github.com/okian/coachlens/internal/domain/types"
)

// StudentsHandler handles student evaluation requests.
type StudentsHandler struct {
	deps StudentDependencies
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(deps StudentDependencies) *StudentsHandler {
	return &StudentsHandler{deps: deps}
}

const maxBatchStudents = 1000

type batchRequest struct {
	Students []pipeline.Input `json:"students"`
}

type batchResponse struct {
	Records []types.StudentRecord `json:"records"`
}

type studentResponse struct {
	types.StudentRecord
	TriageRank int `json:"triage_rank"`
}

type ingestResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

func decodeInput(w http.ResponseWriter, r *http.Request, op string) (pipeline.Input, error) {
	var in pipeline.Input
	if err := decodeJSON(w, r, &in); err != nil {
		return in, WrapKind(op, ErrBadRequest, err)
	}
	if strings.TrimSpace(in.Log.StudentID) == "" {
		return in, WrapKind(op, ErrBadRequest, errMissing("log.student_id"))
	}
	return in, nil
}

// HandleEvaluate handles POST /students/evaluate requests.
func (h *StudentsHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate_student"
	in, err := decodeInput(w, r, op)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rec, err := h.deps.Evaluate(r.Context(), in)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleEvaluateBatch handles POST /students/evaluate-batch requests.
// Records are returned in request order and are not stored.
func (h *StudentsHandler) HandleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate_batch"
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	switch n := len(req.Students); {
	case n == 0:
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissing("students")))
		return
	case n > maxBatchStudents:
		writeError(w, http.StatusBadRequest, "limit_exceeded",
			WrapKind(op, ErrBadRequest, fmt.Errorf("at most %d students per batch", maxBatchStudents)))
		return
	}
	for i, in := range req.Students {
		if strings.TrimSpace(in.Log.StudentID) == "" {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, errMissing(fmt.Sprintf("students[%d].log.student_id", i))))
			return
		}
	}
	recs, err := h.deps.EvaluateBatch(r.Context(), req.Students)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Records: recs})
}

// HandleIngest handles POST /students/ingest requests.
func (h *StudentsHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest_student"
	in, err := decodeInput(w, r, op)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	id, err := h.deps.Ingest(r.Context(), in)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{Status: "accepted", JobID: id})
}

// HandleGetStudent handles GET /students/{id} requests.
func (h *StudentsHandler) HandleGetStudent(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_student"
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rec, err := h.deps.Student(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	rank, err := h.deps.TriageRank(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, studentResponse{StudentRecord: rec, TriageRank: rank})
}
