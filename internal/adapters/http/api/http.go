// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/okian/coachlens/internal/app"
	"github.com/okian/coachlens/internal/domain/cohort"
	"github.com/okian/coachlens/internal/domain/effectiveness"
	"github.com/okian/coachlens/internal/domain/groups"
	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/pipeline"
	"github.com/okian/coachlens/internal/domain/types"
)

const maxBodyBytes = 4 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StudentDependencies
	TriageDependencies
	HistoryDependencies
	AnalyticsDependencies
}

// StudentDependencies evaluate and read students.
type StudentDependencies interface {
	Evaluate(ctx context.Context, in pipeline.Input) (types.StudentRecord, error)
	// Ingest queues an evaluation. Returns service.ErrBackpressure when full.
	Ingest(ctx context.Context, in pipeline.Input) (string, error)
	// EvaluateBatch scores students without storing them.
	EvaluateBatch(ctx context.Context, ins []pipeline.Input) ([]types.StudentRecord, error)
	Student(ctx context.Context, studentID string) (types.StudentRecord, error)
	TriageRank(ctx context.Context, studentID string) (int, error)
}

// TriageDependencies rank students by risk.
type TriageDependencies interface {
	Triage(ctx context.Context, n int) ([]types.TriageEntry, error)
}

// HistoryDependencies record snapshots and interventions.
type HistoryDependencies interface {
	AddSnapshots(ctx context.Context, snaps []model.MetricsSnapshot) (int, error)
	RecordIntervention(ctx context.Context, ev model.InterventionEvent) (model.InterventionEvent, error)
	InterventionImpact(ctx context.Context, id string) (service.ImpactReport, error)
}

// AnalyticsDependencies aggregate history.
type AnalyticsDependencies interface {
	Effectiveness(ctx context.Context) ([]effectiveness.ObjectiveStats, error)
	Coaches(ctx context.Context) ([]effectiveness.CoachStats, error)
	Cohorts(ctx context.Context) (cohort.Comparison, error)
	Groups(ctx context.Context, assignment map[string]string) ([]groups.Stats, []string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	studentsHandler  *StudentsHandler
	triageHandler    *TriageHandler
	historyHandler   *HistoryHandler
	analyticsHandler *AnalyticsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxTriageLimit int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		studentsHandler:  NewStudentsHandler(deps),
		triageHandler:    NewTriageHandler(deps, maxTriageLimit),
		historyHandler:   NewHistoryHandler(deps),
		analyticsHandler: NewAnalyticsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /students/evaluate", MetricsMiddleware(s.studentsHandler.HandleEvaluate, "students_evaluate"))
	mux.HandleFunc("POST /students/evaluate-batch", MetricsMiddleware(s.studentsHandler.HandleEvaluateBatch, "students_evaluate_batch"))
	mux.HandleFunc("POST /students/ingest", MetricsMiddleware(s.studentsHandler.HandleIngest, "students_ingest"))
	mux.HandleFunc("GET /students/{id}", MetricsMiddleware(s.studentsHandler.HandleGetStudent, "students_get"))
	mux.HandleFunc("GET /triage", MetricsMiddleware(s.triageHandler.HandleGetTriage, "triage"))

	mux.HandleFunc("POST /snapshots", MetricsMiddleware(s.historyHandler.HandlePostSnapshots, "snapshots"))
	mux.HandleFunc("POST /interventions", MetricsMiddleware(s.historyHandler.HandlePostIntervention, "interventions"))
	mux.HandleFunc("GET /interventions/{id}/impact", MetricsMiddleware(s.historyHandler.HandleGetImpact, "intervention_impact"))

	mux.HandleFunc("GET /effectiveness", MetricsMiddleware(s.analyticsHandler.HandleGetEffectiveness, "effectiveness"))
	mux.HandleFunc("GET /coaches", MetricsMiddleware(s.analyticsHandler.HandleGetCoaches, "coaches"))
	mux.HandleFunc("GET /cohorts", MetricsMiddleware(s.analyticsHandler.HandleGetCohorts, "cohorts"))
	mux.HandleFunc("POST /groups", MetricsMiddleware(s.analyticsHandler.HandlePostGroups, "groups"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an upstream error to its status and writes it.
func writeFailure(w http.ResponseWriter, op string, err error) {
	err = Wrap(op, err)
	status, code := statusOf(err)
	writeError(w, status, code, err)
}

// decodeJSON reads a single bounded JSON value into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must contain a single JSON value")
	}
	return nil
}
