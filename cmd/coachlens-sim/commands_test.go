package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/okian/coachlens/internal/domain/pipeline"
	"github.com/okian/coachlens/internal/simulate"
	"github.com/smartystreets/goconvey/convey"
)

func execute(stdin *bytes.Buffer, args ...string) (string, error) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerateAndEvaluate(t *testing.T) {
	convey.Convey("Given a generated population on stdout", t, func() {
		out, err := execute(nil, "generate", "--students", "6", "--seed", "3")
		convey.So(err, convey.ShouldBeNil)

		var pop []pipeline.Input
		convey.So(json.Unmarshal([]byte(out), &pop), convey.ShouldBeNil)
		convey.So(len(pop), convey.ShouldEqual, 6)

		convey.Convey("When it is piped into evaluate", func() {
			report, err := execute(bytes.NewBufferString(out), "evaluate")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every student has a record and courses are rolled up", func() {
				var ev evaluation
				convey.So(json.Unmarshal([]byte(report), &ev), convey.ShouldBeNil)
				convey.So(len(ev.Records), convey.ShouldEqual, 6)
				total := 0
				for _, g := range ev.Courses {
					total += g.Count
				}
				convey.So(total, convey.ShouldEqual, 6)
			})
		})
	})

	convey.Convey("Given an output file", t, func() {
		path := filepath.Join(t.TempDir(), "pop.json")
		_, err := execute(nil, "generate", "-n", "4", "-o", path)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the file holds the population", func() {
			pop, err := simulate.LoadPopulation(path)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(pop), convey.ShouldEqual, 4)
		})
	})

	convey.Convey("Given an unknown log format", t, func() {
		_, err := execute(nil, "--log-format", "xml", "generate", "-n", "1")
		convey.So(err, convey.ShouldNotBeNil)
	})
}
