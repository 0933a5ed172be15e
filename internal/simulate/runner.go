package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/coachlens/internal/domain/pipeline"
	"github.com/okian/coachlens/internal/domain/types"
	"github.com/okian/coachlens/pkg/logger"
)

// Run submits the population to the service and fetches the resulting
// triage list. Individual submission failures are counted, not returned.
func Run(ctx context.Context, cfg Config, ins []pipeline.Input) (*Stats, []types.TriageEntry, error) {
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting coachlens load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("students", len(ins)),
		logger.Int("workers", cfg.Workers),
		logger.Bool("ingest", cfg.Ingest))

	if err := client.Get(ctx, "/healthz", nil); err != nil {
		return nil, nil, fmt.Errorf("service health check failed: %w", err)
	}

	if err := submit(ctx, cfg, client, ins, stats, log); err != nil {
		return nil, nil, fmt.Errorf("submission failed: %w", err)
	}

	if cfg.Settle > 0 {
		log.Info(ctx, "waiting for evaluations to settle", logger.Duration("settle", cfg.Settle))
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(cfg.Settle):
		}
	}

	topN := cfg.TopN
	if topN < 1 {
		topN = 50
	}
	var triage []types.TriageEntry
	if err := client.Get(ctx, fmt.Sprintf("/triage?limit=%d", topN), &triage); err != nil {
		return nil, nil, fmt.Errorf("triage retrieval failed: %w", err)
	}

	stats.TriageEntries = len(triage)
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	log.Info(ctx, "final statistics",
		logger.Int("submitted", int(stats.Submitted)),
		logger.Int("successful", int(stats.Successful)),
		logger.Int("backpressured", int(stats.Backpressured)),
		logger.Int("failed", int(stats.Failed)),
		logger.Int("triageEntries", stats.TriageEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", stats.SuccessRate()))
	return stats, triage, nil
}

func submit(ctx context.Context, cfg Config, client *Client, ins []pipeline.Input, stats *Stats, log logger.Logger) error {
	path, want := "/students/evaluate", http.StatusOK
	if cfg.Ingest {
		path, want = "/students/ingest", http.StatusAccepted
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := range ins {
		in := ins[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			atomic.AddInt64(&stats.Submitted, 1)
			err := client.Post(gctx, path, in, nil, want)
			var se *StatusError
			switch {
			case err == nil:
				atomic.AddInt64(&stats.Successful, 1)
			case errors.As(err, &se) && se.Status == http.StatusTooManyRequests:
				atomic.AddInt64(&stats.Backpressured, 1)
			default:
				atomic.AddInt64(&stats.Failed, 1)
				if cfg.Verbose {
					log.Warn(gctx, "submission failed", logger.StudentID(in.Log.StudentID), logger.Error(err))
				}
			}
			return nil
		})
	}
	return g.Wait()
}
