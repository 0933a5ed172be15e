package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/coachlens/internal/adapters/cache"
	"github.com/okian/coachlens/internal/domain/cohort"
	"github.com/okian/coachlens/internal/domain/effectiveness"
	"github.com/okian/coachlens/internal/domain/groups"
	"github.com/okian/coachlens/internal/domain/impact"
	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/pkg/logger"
	"github.com/okian/coachlens/pkg/metrics"
	"github.com/okian/coachlens/pkg/telemetry"
)

// ImpactReport pairs the risk trajectory with the before/after comparison.
type ImpactReport struct {
	Impact      model.InterventionImpact `json:"impact"`
	BeforeAfter impact.Comparison        `json:"before_after"`
}

// RecordIntervention stores an intervention, generating an ID and time when absent.
func (s *Service) RecordIntervention(ctx context.Context, ev model.InterventionEvent) (model.InterventionEvent, error) {
	if !s.running() {
		return model.InterventionEvent{}, ErrNotStarted
	}
	if strings.TrimSpace(ev.StudentID) == "" {
		return model.InterventionEvent{}, fmt.Errorf("%w: missing student_id", ErrInvalidInput)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if err := s.store.SaveIntervention(ctx, ev); err != nil {
		return model.InterventionEvent{}, fmt.Errorf("save intervention: %w", err)
	}
	metrics.RecordInterventionRecorded()
	s.invalidateAnalytics(ctx)
	s.logger.Info(ctx, "intervention recorded",
		logger.String("intervention_id", ev.ID),
		logger.StudentID(ev.StudentID),
		logger.Coach(ev.Coach),
		logger.String("objective", ev.Objective),
	)
	return ev, nil
}

// InterventionImpact measures one intervention against the student's history.
func (s *Service) InterventionImpact(ctx context.Context, id string) (ImpactReport, error) {
	if !s.running() {
		return ImpactReport{}, ErrNotStarted
	}
	ctx, span := telemetry.Start(ctx, "service.InterventionImpact", attribute.String("intervention_id", id))
	defer span.End()

	ev, err := s.store.Intervention(ctx, id)
	if err != nil {
		return ImpactReport{}, err
	}
	snaps, err := s.store.Snapshots(ctx, ev.StudentID)
	if err != nil {
		return ImpactReport{}, fmt.Errorf("load history: %w", err)
	}
	return ImpactReport{
		Impact:      impact.Measure(ev, snaps, s.table),
		BeforeAfter: impact.CompareBeforeAfter(ev, snaps, s.table),
	}, nil
}

// impacts measures every stored intervention, loading each history once.
func (s *Service) impacts(ctx context.Context) ([]model.InterventionImpact, error) {
	evs, err := s.store.Interventions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	history := make(map[string][]model.MetricsSnapshot)
	out := make([]model.InterventionImpact, 0, len(evs))
	for _, ev := range evs {
		snaps, ok := history[ev.StudentID]
		if !ok {
			snaps, err = s.store.Snapshots(ctx, ev.StudentID)
			if err != nil {
				return nil, fmt.Errorf("load history: %w", err)
			}
			history[ev.StudentID] = snaps
		}
		out = append(out, impact.Measure(ev, snaps, s.table))
	}
	return out, nil
}

func (s *Service) timed(ctx context.Context, kind string) (context.Context, func()) {
	ctx, span := telemetry.Start(ctx, "service."+kind)
	start := time.Now()
	return ctx, func() {
		metrics.RecordAggregationLatency(kind, float64(time.Since(start).Microseconds())/1000)
		span.End()
	}
}

// Effectiveness ranks intervention objectives.
func (s *Service) Effectiveness(ctx context.Context) ([]effectiveness.ObjectiveStats, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return cache.GetOrLoad(ctx, s.cache, cache.KeyEffectiveness, s.cacheTTL,
		func(ctx context.Context) ([]effectiveness.ObjectiveStats, error) {
			ctx, done := s.timed(ctx, "effectiveness")
			defer done()
			ims, err := s.impacts(ctx)
			if err != nil {
				return nil, err
			}
			return effectiveness.ByObjective(ims, s.table), nil
		})
}

// Coaches returns the coach leaderboard.
func (s *Service) Coaches(ctx context.Context) ([]effectiveness.CoachStats, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return cache.GetOrLoad(ctx, s.cache, cache.KeyCoaches, s.cacheTTL,
		func(ctx context.Context) ([]effectiveness.CoachStats, error) {
			ctx, done := s.timed(ctx, "coaches")
			defer done()
			ims, err := s.impacts(ctx)
			if err != nil {
				return nil, err
			}
			return effectiveness.ByCoach(ims, s.table), nil
		})
}

// Cohorts compares course completion of coached and uncoached students.
func (s *Service) Cohorts(ctx context.Context) (cohort.Comparison, error) {
	if !s.running() {
		return cohort.Comparison{}, ErrNotStarted
	}
	return cache.GetOrLoad(ctx, s.cache, cache.KeyCohorts, s.cacheTTL,
		func(ctx context.Context) (cohort.Comparison, error) {
			ctx, done := s.timed(ctx, "cohorts")
			defer done()
			recs, err := s.store.Records(ctx)
			if err != nil {
				return cohort.Comparison{}, fmt.Errorf("list records: %w", err)
			}
			evs, err := s.store.Interventions(ctx)
			if err != nil {
				return cohort.Comparison{}, fmt.Errorf("list interventions: %w", err)
			}
			students := make([]cohort.Student, 0, len(recs))
			for _, r := range recs {
				students = append(students, cohort.Student{StudentID: r.StudentID, Course: r.Course})
			}
			return cohort.Compare(students, evs), nil
		})
}

// Groups aggregates stored records by the supplied student -> key mapping.
// Students without a stored record are reported back as missing.
func (s *Service) Groups(ctx context.Context, assignment map[string]string) ([]groups.Stats, []string, error) {
	if !s.running() {
		return nil, nil, ErrNotStarted
	}
	ctx, done := s.timed(ctx, "groups")
	defer done()

	members := make([]groups.Member, 0, len(assignment))
	var missing []string
	for id, key := range assignment {
		rec, err := s.store.Record(ctx, id)
		if errors.Is(err, ErrNotFound) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("load record: %w", err)
		}
		members = append(members, groups.MemberOf(rec, key))
	}
	sort.Strings(missing)
	return groups.Aggregate(members, s.table), missing, nil
}
