package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/coachlens/internal/adapters/cache"
	"github.com/okian/coachlens/internal/adapters/repository"
	"github.com/okian/coachlens/internal/config"
	"github.com/okian/coachlens/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration comes from the environment", func() {
			_ = os.Setenv("COACHLENS_ADDR", ":8080")
			_ = os.Setenv("COACHLENS_QUEUE_SIZE", "1000")
			_ = os.Setenv("COACHLENS_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("COACHLENS_ADDR")
				_ = os.Unsetenv("COACHLENS_QUEUE_SIZE")
				_ = os.Unsetenv("COACHLENS_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the default backends are built", func() {
			ctx := context.Background()
			cfg := config.New()

			convey.Convey("Then the memory store is selected", func() {
				st, err := newStore(ctx, cfg)
				convey.So(err, convey.ShouldBeNil)
				_, ok := st.(*repository.MemoryStore)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(st.Close(), convey.ShouldBeNil)
			})

			convey.Convey("Then caching is disabled without a Redis address", func() {
				c, err := newCache(ctx, cfg, logger.Get())
				convey.So(err, convey.ShouldBeNil)
				convey.So(c, convey.ShouldHaveSameTypeAs, cache.Noop{})
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given a wired service and mux", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg := config.New()
		cfg.WorkerCount = 2
		svc, err := newService(ctx, cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()

		srv := httptest.NewServer(newMux(ctx, cfg, svc))
		defer srv.Close()

		convey.Convey("When a student is evaluated over HTTP", func() {
			body := `{"log":{"student_id":"s1","xp_awarded":200,"time_engaged":3600,"time_productive":3000,"time_elapsed":3600,"questions":20,"questions_correct":18,"num_tasks":4},"schedule":{"daily_xp_goal":40},"course":{"name":"Algebra 1"}}`
			resp, err := http.Post(srv.URL+"/students/evaluate", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()

			convey.Convey("Then it is stored and appears in triage", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

				get, err := http.Get(srv.URL + "/students/s1")
				convey.So(err, convey.ShouldBeNil)
				_ = get.Body.Close()
				convey.So(get.StatusCode, convey.ShouldEqual, http.StatusOK)

				triage, err := http.Get(srv.URL + "/triage?limit=5")
				convey.So(err, convey.ShouldBeNil)
				_ = triage.Body.Close()
				convey.So(triage.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When the API docs are requested", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("When health is requested", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When the listen address is empty", func() {
			_ = os.Setenv("COACHLENS_ADDR", "")
			defer func() { _ = os.Unsetenv("COACHLENS_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When Redis is unreachable", func() {
			cfg := config.New()
			cfg.Cache.Addr = "127.0.0.1:1"
			cfg.Cache.DialTimeout = 100 * time.Millisecond

			convey.Convey("Then building the cache fails", func() {
				_, err := newCache(context.Background(), cfg, logger.Get())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestServiceMetricsUpdater(t *testing.T) {
	convey.Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc, err := newService(ctx, config.New(), logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		convey.Convey("Then the updater returns once its context ends", func() {
			tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startServiceMetricsUpdater(tctx, svc) }, convey.ShouldNotPanic)
		})
	})
}
