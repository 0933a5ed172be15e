package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/coachlens/internal/adapters/repository"
	service "github.com/okian/coachlens/internal/app"
	"github.com/smartystreets/goconvey/convey"
)

func TestWrapClassifiesUpstreamErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrInvalidInput, http.StatusBadRequest},
		{repository.ErrInvalidLimit, http.StatusBadRequest},
		{fmt.Errorf("lookup: %w", service.ErrNotFound), http.StatusNotFound},
		{repository.ErrDuplicate, http.StatusConflict},
		{service.ErrBackpressure, http.StatusTooManyRequests},
		{service.ErrNotStarted, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		status, _ := statusOf(Wrap("api.test", c.err))
		if status != c.status {
			t.Errorf("statusOf(%v) = %d, want %d", c.err, status, c.status)
		}
	}
}

func TestKindError(t *testing.T) {
	convey.Convey("Given a wrapped error", t, func() {
		cause := errors.New("boom")
		err := WrapKind("api.op", ErrBadRequest, cause)

		convey.Convey("Then both the kind and the cause are matchable", func() {
			convey.So(errors.Is(err, ErrBadRequest), convey.ShouldBeTrue)
			convey.So(errors.Is(err, cause), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldEqual, "api.op: bad request: boom")
		})

		convey.Convey("Then a bare kind formats without a cause", func() {
			convey.So(NewKind("api.op", ErrNotFound).Error(), convey.ShouldEqual, "api.op: not found")
		})
	})
}

func TestInterventionRequest(t *testing.T) {
	convey.Convey("Given intervention requests", t, func() {
		convey.Convey("When fields are missing", func() {
			_, err := interventionRequest{StudentID: "s1", Coach: "maria"}.event()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "missing objective")
		})

		convey.Convey("When at is omitted", func() {
			ev, err := interventionRequest{StudentID: "s1", Coach: "maria", Objective: "pacing"}.event()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ev.At.IsZero(), convey.ShouldBeTrue)
		})
	})
}

func TestFailureKindMatchesErrorCodes(t *testing.T) {
	for _, err := range []error{
		service.ErrInvalidInput,
		service.ErrNotFound,
		repository.ErrDuplicate,
		service.ErrBackpressure,
		service.ErrNotStarted,
		errors.New("disk on fire"),
	} {
		status, code := statusOf(Wrap("api.test", err))
		kind, failed := failureKind(status)
		if !failed || kind != code {
			t.Errorf("failureKind(%d) = %q, %v; want %q", status, kind, failed, code)
		}
	}
	if _, failed := failureKind(http.StatusAccepted); failed {
		t.Error("2xx counted as a failure")
	}
}

func TestMetricsMiddlewareKeepsFirstStatus(t *testing.T) {
	convey.Convey("Given a handler that writes its header twice", t, func() {
		h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.WriteHeader(http.StatusOK)
		}, "test")
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/x", nil))

		convey.Convey("Then the first status reaches the client", func() {
			convey.So(w.Code, convey.ShouldEqual, http.StatusConflict)
		})
	})
}
