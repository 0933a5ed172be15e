// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/okian/coachlens/internal/adapters/cache"
	"github.com/okian/coachlens/internal/adapters/mq/queue"
	"github.com/okian/coachlens/internal/adapters/mq/worker"
	"github.com/okian/coachlens/internal/adapters/repository"
	"github.com/okian/coachlens/internal/domain/dedupe"
	"github.com/okian/coachlens/internal/domain/difficulty"
	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/thresholds"
	"github.com/okian/coachlens/pkg/logger"
	"github.com/okian/coachlens/pkg/metrics"
)

// Service evaluates students, keeps their history and answers analytics queries.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	cache    cache.Cache
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	pool     *worker.Pool
	resolver difficulty.Resolver
	table    thresholds.Table

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	batchLimit  int
	cacheTTL    time.Duration
	now         func() time.Time

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the snapshot dedupe set.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithBatchLimit bounds concurrent evaluations in EvaluateBatch.
func WithBatchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithThresholds replaces the threshold table.
func WithThresholds(t thresholds.Table) Option {
	return func(s *Service) { s.table = t }
}

// WithResolver replaces the difficulty resolver.
func WithResolver(r difficulty.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithStore sets the persistence backend. A memory store is used otherwise.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithCache sets the analytics cache.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithClock overrides the evaluation clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10_000,
		dedupeSize:  100_000,
		batchLimit:  8,
		cacheTTL:    5 * time.Minute,
		table:       thresholds.Default(),
		resolver:    difficulty.Default(nil),
		cache:       cache.Noop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting coachlens service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.logger.Info(ctx, "using memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.ProcessorFunc(s.process))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "coachlens service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop drains the worker pool and releases the store and cache.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping coachlens service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.cache.Close(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "coachlens service stopped",
		logger.Int("processed", int(s.pool.Processed())),
		logger.Int("failed", int(s.pool.Failed())),
	)
	return errors.Join(errs...)
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Thresholds returns the active threshold table.
func (s *Service) Thresholds() thresholds.Table { return s.table }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	students := s.store.Count(ctx)
	stats["queueLength"] = queueLen
	stats["students"] = students
	stats["processed"] = s.pool.Processed()
	stats["failed"] = s.pool.Failed()
	stats["snapshotKeys"] = s.deduper.Size()

	if recs, err := s.store.Records(ctx); err == nil {
		tiers := map[string]int{
			string(model.TierRed):    0,
			string(model.TierYellow): 0,
			string(model.TierGreen):  0,
		}
		for _, r := range recs {
			tiers[string(r.DRI.Tier)]++
		}
		stats["tiers"] = tiers
		metrics.UpdateTierCounts(tiers)
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateStudentsTracked(students)
	metrics.UpdateWorkerCount(s.workerCount)
	return stats
}
