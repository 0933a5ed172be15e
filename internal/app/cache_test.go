package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/coachlens/internal/adapters/cache"
	"github.com/okian/coachlens/internal/adapters/repository"
	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/pipeline"
)

// mapCache is an in-process cache.Cache that keeps JSON values.
type mapCache struct {
	mu   sync.Mutex
	vals map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{vals: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string, dst any) error {
	c.mu.Lock()
	raw, ok := c.vals[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dst)
}

func (c *mapCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.vals[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.vals, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *mapCache) Close() error { return nil }

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.vals[key]
	return ok
}

// flakyStore fails every snapshot append after the first limit ones.
type flakyStore struct {
	*repository.MemoryStore
	mu       sync.Mutex
	limit    int
	appended int
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) AppendSnapshot(ctx context.Context, snap model.MetricsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appended >= f.limit {
		return errDiskFull
	}
	f.appended++
	return f.MemoryStore.AppendSnapshot(ctx, snap)
}

func completed(in pipeline.Input, daysAgo int) pipeline.Input {
	in.Course.CompletedAt = ago(daysAgo)
	return in
}

func TestServiceCohortCache(t *testing.T) {
	Convey("Given a service with a populated cache", t, func() {
		ctx := context.Background()
		c := newMapCache()
		s := newService(WithCache(c, time.Hour))
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()

		_, err := s.Evaluate(ctx, input("s1", 190, 1))
		So(err, ShouldBeNil)
		before, err := s.Cohorts(ctx)
		So(err, ShouldBeNil)
		So(before.WithoutIntervention.Completed, ShouldEqual, 0)
		So(c.has(cache.KeyCohorts), ShouldBeTrue)

		Convey("When the same student completes the course later that day", func() {
			_, err := s.Evaluate(ctx, completed(input("s1", 190, 1), 0))
			So(err, ShouldBeNil)
			snaps, _ := s.store.Snapshots(ctx, "s1")
			So(len(snaps), ShouldEqual, 1)

			Convey("Then the cohort comparison reflects the completion", func() {
				after, err := s.Cohorts(ctx)
				So(err, ShouldBeNil)
				So(after.WithoutIntervention.Completed, ShouldEqual, 1)
				So(after.WithoutIntervention.CompletionRate, ShouldEqual, 100.0)
			})
		})

		Convey("When the student is re-evaluated with the same course", func() {
			_, err := s.Evaluate(ctx, input("s1", 20, 9))
			So(err, ShouldBeNil)

			Convey("Then the cached comparison is kept", func() {
				So(c.has(cache.KeyCohorts), ShouldBeTrue)
			})
		})
	})
}

func TestServicePartialImport(t *testing.T) {
	Convey("Given a store that accepts one snapshot", t, func() {
		ctx := context.Background()
		c := newMapCache()
		st := &flakyStore{MemoryStore: repository.NewMemoryStore(ctx), limit: 1}
		s := newService(WithCache(c, time.Hour), WithStore(st))
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()

		_, err := s.Effectiveness(ctx)
		So(err, ShouldBeNil)
		So(c.has(cache.KeyEffectiveness), ShouldBeTrue)

		snap := func(day int) model.MetricsSnapshot {
			return model.MetricsSnapshot{StudentID: "s1", CapturedAt: now.AddDate(0, 0, -day), RiskScore: 50}
		}

		Convey("When an import fails after storing a prefix", func() {
			n, err := s.AddSnapshots(ctx, []model.MetricsSnapshot{snap(3), snap(2)})

			Convey("Then the stored count is reported and analytics are invalidated", func() {
				So(errors.Is(err, errDiskFull), ShouldBeTrue)
				So(n, ShouldEqual, 1)
				stored, _ := s.store.Snapshots(ctx, "s1")
				So(len(stored), ShouldEqual, 1)
				So(c.has(cache.KeyEffectiveness), ShouldBeFalse)
			})
		})

		Convey("When the first snapshot is rejected", func() {
			n, err := s.AddSnapshots(ctx, []model.MetricsSnapshot{{StudentID: "s1"}})

			Convey("Then nothing was stored and the cache is kept", func() {
				So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
				So(n, ShouldEqual, 0)
				So(c.has(cache.KeyEffectiveness), ShouldBeTrue)
			})
		})
	})
}

func TestServiceBatchAndRank(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		s := newService()
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()

		Convey("When a batch is evaluated", func() {
			recs, err := s.EvaluateBatch(ctx, []pipeline.Input{input("b1", 190, 1), input("b2", 190, 12)})

			Convey("Then records follow input order and nothing is stored", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
				So(recs[0].StudentID, ShouldEqual, "b1")
				So(recs[1].DRI.Signal, ShouldEqual, model.SignalInactive)
				So(s.store.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When a batch entry has no student ID", func() {
			_, err := s.EvaluateBatch(ctx, []pipeline.Input{input("b1", 190, 1), input("", 190, 1)})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When stored students are ranked", func() {
			_, _ = s.Evaluate(ctx, input("active", 190, 1))
			_, _ = s.Evaluate(ctx, input("gone", 190, 12))

			Convey("Then the inactive student is first", func() {
				rank, err := s.TriageRank(ctx, "gone")
				So(err, ShouldBeNil)
				So(rank, ShouldEqual, 1)
				rank, err = s.TriageRank(ctx, "active")
				So(err, ShouldBeNil)
				So(rank, ShouldEqual, 2)
				_, err = s.TriageRank(ctx, "ghost")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestServiceNotStartedBatch(t *testing.T) {
	Convey("Given a service that has not started", t, func() {
		s := newService()

		Convey("Then batch evaluation and ranking report ErrNotStarted", func() {
			_, err := s.EvaluateBatch(context.Background(), []pipeline.Input{input("b1", 1, 1)})
			So(errors.Is(err, ErrNotStarted), ShouldBeTrue)
			_, err = s.TriageRank(context.Background(), "b1")
			So(errors.Is(err, ErrNotStarted), ShouldBeTrue)
		})
	})
}
