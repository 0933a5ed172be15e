// Package pipeline chains the activity calculator and the risk engine for
// one student, and fans that out across a roster.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/coachlens/internal/domain/activity"
	"github.com/okian/coachlens/internal/domain/difficulty"
	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/risk"
	"github.com/okian/coachlens/internal/domain/thresholds"
	"github.com/okian/coachlens/internal/domain/types"
)

const defaultBatchLimit = 8

// Input is one student's raw data.
type Input struct {
	Log      model.ActivityLog `json:"log"`
	Schedule model.Schedule    `json:"schedule"`
	Course   model.Course      `json:"course"`
}

// Evaluate computes metrics then the DRI for one student.
func Evaluate(in Input, r difficulty.Resolver, t thresholds.Table, now time.Time) types.StudentRecord {
	m := activity.Calculate(in.Schedule, in.Log, t)
	dri := risk.Evaluate(risk.Input{Log: in.Log, Metrics: m, Course: in.Course.Name}, r, t, now)
	return types.StudentRecord{
		StudentID:   in.Log.StudentID,
		Course:      in.Course,
		WeeklyXP:    in.Log.XPAwarded,
		EvaluatedAt: now,
		Metrics:     m,
		DRI:         dri,
	}
}

// EvaluateBatch evaluates students concurrently. Output order matches input
// order. Only context cancellation produces an error.
func EvaluateBatch(ctx context.Context, ins []Input, r difficulty.Resolver, t thresholds.Table, now time.Time, limit int) ([]types.StudentRecord, error) {
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	out := make([]types.StudentRecord, len(ins))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range ins {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = Evaluate(ins[i], r, t, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
