package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/riskwatch/internal/adapters/http/api"
	"github.com/okian/riskwatch/internal/adapters/repository"
	service "github.com/okian/riskwatch/internal/app"
	"github.com/okian/riskwatch/internal/domain/risk"
	"github.com/okian/riskwatch/internal/domain/scoring"
)

func startService(t *testing.T) string {
	t.Helper()
	profiles, err := repository.DemoProfiles()
	if err != nil {
		t.Fatal(err)
	}
	svc := service.New(risk.New(scoring.Fallback()),
		service.WithProfileStore(repository.NewInMemoryProfileStore(profiles...)),
		service.WithWorkerCount(2),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	})
	return srv.URL
}

func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	convey.Convey("Given a running service", t, func() {
		url := startService(t)

		convey.Convey("When running demo", func() {
			out, err := execute("demo", "--url", url)

			convey.Convey("Then the four patterns are printed", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, p := range []string{"IMMEDIATE_CRISIS", "SLOW_BURN", "MODERATE_RISK", "CONTROLLED"} {
					convey.So(out, convey.ShouldContainSubstring, p)
				}
			})
		})

		convey.Convey("When running a small load", func() {
			out, err := execute("run", "--url", url, "--users", "12", "--workers", "3",
				"--batch-size", "5", "--wait", "5s", "--poll", "10ms", "--seed", "3")

			convey.Convey("Then the report shows every job processed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "12 / 12 / 0")
				convey.So(out, convey.ShouldContainSubstring, "3 / 0 / 0")
			})
		})
	})

	convey.Convey("Given invalid arguments", t, func() {
		_, err := execute("run", "extra")
		convey.So(err, convey.ShouldNotBeNil)

		_, err = execute("run", "--users", "many")
		convey.So(err, convey.ShouldNotBeNil)
	})
}
