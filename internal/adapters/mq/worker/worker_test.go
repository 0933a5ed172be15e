package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/coachlens/internal/adapters/mq/queue"
	worker "github.com/okian/coachlens/internal/adapters/mq/worker"
	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/pipeline"
	logging "github.com/okian/coachlens/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (r *recorder) Process(_ context.Context, j queue.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[j.ID] {
		return errors.New("boom")
	}
	r.seen = append(r.seen, j.Input.Log.StudentID)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func job(id string) queue.Job {
	return queue.Job{ID: id, Input: pipeline.Input{Log: model.ActivityLog{StudentID: "s-" + id}}}
}

func TestPool(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a pool of three workers over a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		rec := &recorder{fail: map[string]bool{"7": true}}
		pool := worker.NewPool(3, q, rec)
		pool.Start(ctx)

		convey.Convey("When jobs are enqueued and the pool shuts down", func() {
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(ctx, job(fmt.Sprint(i))), convey.ShouldBeNil)
			}
			err := pool.Shutdown(ctx)

			convey.Convey("Then every job is drained and failures are counted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				convey.So(rec.count(), convey.ShouldEqual, 19)
				convey.So(pool.Processed(), convey.ShouldEqual, 19)
				convey.So(pool.Failed(), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestWorkerShutdown(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a single running worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		w := worker.NewInMemoryWorker(q, worker.ProcessorFunc(func(context.Context, queue.Job) error {
			return nil
		}), worker.WithName("solo"))
		go w.Run(context.Background())

		convey.Convey("When Shutdown is called", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.Convey("Then it stops promptly", func() {
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})
}
