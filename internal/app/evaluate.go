package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/coachlens/internal/adapters/cache"
	"github.com/okian/coachlens/internal/adapters/mq/queue"
	"github.com/okian/coachlens/internal/domain/dedupe"
	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/pipeline"
	"github.com/okian/coachlens/internal/domain/types"
	"github.com/okian/coachlens/pkg/logger"
	"github.com/okian/coachlens/pkg/metrics"
	"github.com/okian/coachlens/pkg/telemetry"
)

func validateInput(in pipeline.Input) error {
	if strings.TrimSpace(in.Log.StudentID) == "" {
		return fmt.Errorf("%w: missing student_id", ErrInvalidInput)
	}
	return nil
}

// Evaluate computes and stores the record for one student synchronously.
func (s *Service) Evaluate(ctx context.Context, in pipeline.Input) (types.StudentRecord, error) {
	if !s.running() {
		return types.StudentRecord{}, ErrNotStarted
	}
	if err := validateInput(in); err != nil {
		return types.StudentRecord{}, err
	}
	return s.evaluateAndStore(ctx, in)
}

// EvaluateBatch evaluates many students concurrently without storing them.
func (s *Service) EvaluateBatch(ctx context.Context, ins []pipeline.Input) ([]types.StudentRecord, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	for i, in := range ins {
		if err := validateInput(in); err != nil {
			return nil, fmt.Errorf("student %d: %w", i, err)
		}
	}
	ctx, span := telemetry.Start(ctx, "service.EvaluateBatch", attribute.Int("students", len(ins)))
	defer span.End()
	return pipeline.EvaluateBatch(ctx, ins, s.resolver, s.table, s.now(), s.batchLimit)
}

// Ingest enqueues a student for asynchronous evaluation and returns the job ID.
func (s *Service) Ingest(ctx context.Context, in pipeline.Input) (string, error) {
	if !s.running() {
		return "", ErrNotStarted
	}
	if err := validateInput(in); err != nil {
		return "", err
	}
	j := queue.Job{ID: uuid.NewString(), Input: in, ReceivedAt: s.now()}
	if err := s.queue.Enqueue(ctx, j); err != nil {
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			return "", fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return "", err
	}
	s.logger.Debug(ctx, "student enqueued",
		logger.StudentID(in.Log.StudentID),
		logger.String("job_id", j.ID),
	)
	return j.ID, nil
}

// process is the worker entry point for queued jobs.
func (s *Service) process(ctx context.Context, j queue.Job) error {
	_, err := s.evaluateAndStore(ctx, j.Input)
	return err
}

func (s *Service) evaluateAndStore(ctx context.Context, in pipeline.Input) (types.StudentRecord, error) {
	ctx, span := telemetry.Start(ctx, "service.Evaluate", attribute.String("student_id", in.Log.StudentID))
	defer span.End()

	start := time.Now()
	rec := pipeline.Evaluate(in, s.resolver, s.table, s.now())
	metrics.RecordStudentEvaluated(float64(time.Since(start).Microseconds()) / 1000)
	span.SetAttributes(
		attribute.String("tier", string(rec.DRI.Tier)),
		attribute.Int("risk_score", rec.DRI.RiskScore),
	)

	prev, err := s.store.SaveRecord(ctx, rec)
	if err != nil {
		span.RecordError(err)
		return types.StudentRecord{}, fmt.Errorf("save record: %w", err)
	}
	if prev != nil && prev.DRI.Tier != rec.DRI.Tier {
		metrics.RecordTierTransition(string(prev.DRI.Tier), string(rec.DRI.Tier))
		s.logger.Info(ctx, "tier changed",
			logger.StudentID(rec.StudentID),
			logger.String("from", string(prev.DRI.Tier)),
			logger.Tier(string(rec.DRI.Tier)),
			logger.Int("risk_score", rec.DRI.RiskScore),
		)
	}

	if prev == nil || courseChanged(prev.Course, rec.Course) {
		s.invalidateCohorts(ctx)
	}

	if err := s.captureDaily(ctx, rec.Snapshot()); err != nil {
		span.RecordError(err)
		return rec, err
	}
	return rec, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func courseChanged(a, b model.Course) bool {
	return a.Name != b.Name || !sameTime(a.StartedAt, b.StartedAt) || !sameTime(a.CompletedAt, b.CompletedAt)
}

// captureDaily appends at most one snapshot per student per day.
func (s *Service) captureDaily(ctx context.Context, snap model.MetricsSnapshot) error {
	key := dedupe.DayKey(snap.StudentID, snap.CapturedAt)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordSnapshotDuplicate()
		return nil
	}
	if err := s.store.AppendSnapshot(ctx, snap); err != nil {
		s.deduper.Unrecord(ctx, key)
		return fmt.Errorf("append snapshot: %w", err)
	}
	metrics.RecordSnapshotCaptured()
	s.invalidateAnalytics(ctx)
	return nil
}

// Student returns the latest record for a student.
func (s *Service) Student(ctx context.Context, studentID string) (types.StudentRecord, error) {
	if !s.running() {
		return types.StudentRecord{}, ErrNotStarted
	}
	return s.store.Record(ctx, studentID)
}

// TriageRank returns the student's 1-based position in the triage list.
func (s *Service) TriageRank(ctx context.Context, studentID string) (int, error) {
	if !s.running() {
		return 0, ErrNotStarted
	}
	return s.store.TriageRank(ctx, studentID)
}

// Triage returns the n most at-risk students.
func (s *Service) Triage(ctx context.Context, n int) ([]types.TriageEntry, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.store.TopRisk(ctx, n)
}

// AddSnapshots imports historical snapshots verbatim.
func (s *Service) AddSnapshots(ctx context.Context, snaps []model.MetricsSnapshot) (int, error) {
	if !s.running() {
		return 0, ErrNotStarted
	}
	for i, snap := range snaps {
		if strings.TrimSpace(snap.StudentID) == "" || snap.CapturedAt.IsZero() {
			return i, s.partialImport(ctx, i, fmt.Errorf("%w: snapshot %d needs student_id and captured_at", ErrInvalidInput, i))
		}
		if err := s.store.AppendSnapshot(ctx, snap); err != nil {
			return i, s.partialImport(ctx, i, fmt.Errorf("append snapshot: %w", err))
		}
		metrics.RecordSnapshotCaptured()
	}
	if len(snaps) > 0 {
		s.invalidateAnalytics(ctx)
	}
	return len(snaps), nil
}

// partialImport keeps cached analytics consistent with the stored prefix of a failed import.
func (s *Service) partialImport(ctx context.Context, stored int, err error) error {
	if stored > 0 {
		s.invalidateAnalytics(ctx)
	}
	return err
}

func (s *Service) invalidateCohorts(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.KeyCohorts); err != nil {
		s.logger.Warn(ctx, "cohort cache invalidation failed", logger.Error(err))
	}
}

func (s *Service) invalidateAnalytics(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.AnalyticsKeys()...); err != nil {
		s.logger.Warn(ctx, "analytics cache invalidation failed", logger.Error(err))
	}
}
