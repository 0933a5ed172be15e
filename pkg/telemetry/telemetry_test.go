package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	ctx := context.Background()

	Convey("Given the default config", t, func() {
		shutdown, err := Init(ctx, DefaultConfig())

		Convey("Then tracing is a no-op", func() {
			So(err, ShouldBeNil)
			So(shutdown(ctx), ShouldBeNil)
		})
	})

	Convey("Given an unknown exporter", t, func() {
		cfg := DefaultConfig()
		cfg.TraceExporter = "zipkin"
		_, err := Init(ctx, cfg)

		Convey("Then Init fails with a typed error", func() {
			So(errors.Is(err, ErrUnknownExporter), ShouldBeTrue)
		})
	})

	Convey("Given the stdout exporter", t, func() {
		var buf bytes.Buffer
		cfg := DefaultConfig()
		cfg.TraceExporter = ExporterStdout
		cfg.Writer = &buf
		shutdown, err := Init(ctx, cfg)
		So(err, ShouldBeNil)

		Convey("When a span ends and the provider shuts down", func() {
			_, span := Start(ctx, "evaluate", attribute.String("student_id", "s-1"))
			span.End()
			So(shutdown(ctx), ShouldBeNil)

			Convey("Then the span is written out", func() {
				So(buf.String(), ShouldContainSubstring, "evaluate")
				So(buf.String(), ShouldContainSubstring, "s-1")
			})
		})
	})
}
