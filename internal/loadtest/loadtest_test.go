package loadtest_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/riskwatch/internal/adapters/http/api"
	"github.com/okian/riskwatch/internal/adapters/repository"
	service "github.com/okian/riskwatch/internal/app"
	"github.com/okian/riskwatch/internal/domain/risk"
	"github.com/okian/riskwatch/internal/domain/scoring"
	"github.com/okian/riskwatch/internal/loadtest"
)

func newServer(opts ...service.Option) (*httptest.Server, func()) {
	profiles, err := repository.DemoProfiles()
	if err != nil {
		panic(err)
	}
	base := []service.Option{
		service.WithProfileStore(repository.NewInMemoryProfileStore(profiles...)),
		service.WithWorkerCount(4),
	}
	svc := service.New(risk.New(scoring.Fallback()), append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	return srv, func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a seed", t, func() {
		a := loadtest.Generate(20, 42)
		b := loadtest.Generate(20, 42)

		Convey("Then generation is deterministic and valid", func() {
			So(a, ShouldResemble, b)
			So(a, ShouldHaveLength, 20)
			for i, p := range a {
				So(p.UserID, ShouldEqual, int64(1_000_000+i))
				So(p.Behavior.Validate(), ShouldBeNil)
				So(p.Preset, ShouldBeNil)
			}
		})

		Convey("Then a different seed gives different users", func() {
			So(loadtest.Generate(20, 43), ShouldNotResemble, a)
		})

		Convey("Then every archetype is present", func() {
			crisis, controlled := a[0].Behavior, a[3].Behavior
			So(crisis.MedianLossGapMinutes, ShouldBeLessThan, 6)
			So(crisis.LossRate, ShouldBeGreaterThanOrEqualTo, 0.7)
			So(controlled.TotalDeposits, ShouldBeLessThanOrEqualTo, 3)
			So(controlled.LossRate, ShouldBeLessThanOrEqualTo, 0.5)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv, stop := newServer()
		defer stop()
		cfg := &loadtest.Config{
			BaseURL:      srv.URL,
			Users:        40,
			Workers:      4,
			BatchSize:    15,
			Timeout:      2 * time.Second,
			Wait:         5 * time.Second,
			PollInterval: 10 * time.Millisecond,
			Seed:         7,
		}

		Convey("When a load run completes", func() {
			stats, err := loadtest.Run(context.Background(), cfg)
			So(err, ShouldBeNil)

			Convey("Then every user is registered, queued and assessed", func() {
				So(stats.UsersGenerated, ShouldEqual, 40)
				So(stats.UsersCreated, ShouldEqual, 40)
				So(stats.RegisterFailed, ShouldEqual, 0)
				So(stats.BatchesAccepted, ShouldEqual, 3)
				So(stats.JobsQueued, ShouldEqual, 40)
				So(stats.JobsProcessed, ShouldEqual, 40)
				So(stats.JobsFailed, ShouldEqual, 0)
				So(stats.Complete, ShouldBeTrue)
				So(stats.Summary, ShouldNotBeNil)
				So(stats.Summary.TotalUsersAssessed, ShouldEqual, 40)
			})

			Convey("Then a second run replaces the same users", func() {
				again, err := loadtest.Run(context.Background(), cfg)
				So(err, ShouldBeNil)
				So(again.UsersCreated, ShouldEqual, 0)
				So(again.UsersReplaced, ShouldEqual, 40)
				So(again.RunID, ShouldNotEqual, stats.RunID)
				So(again.Summary.TotalUsersAssessed, ShouldEqual, 40)
			})

			Convey("Then the report lists the outcome", func() {
				var buf bytes.Buffer
				So(loadtest.PrintReport(&buf, stats), ShouldBeNil)
				So(buf.String(), ShouldContainSubstring, "40 / 40 / 0")
				So(buf.String(), ShouldContainSubstring, "IMMEDIATE_CRISIS")
			})
		})

		Convey("When the batch size exceeds the server limit", func() {
			cfg.BatchSize = 40
			srv2, stop2 := newServer(service.WithMaxBatchSize(10))
			defer stop2()
			cfg.BaseURL = srv2.URL

			stats, err := loadtest.Run(context.Background(), cfg)

			Convey("Then the batch is rejected and nothing is queued", func() {
				So(err, ShouldBeNil)
				So(stats.BatchesRejected, ShouldEqual, 1)
				So(stats.JobsQueued, ShouldEqual, 0)
			})
		})
	})

	Convey("Given an unhealthy service", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		Convey("Then the run stops at the health check", func() {
			_, err := loadtest.Run(context.Background(), &loadtest.Config{BaseURL: srv.URL, Users: 1})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")

			var apiErr *loadtest.APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.Status, ShouldEqual, http.StatusServiceUnavailable)
		})
	})

	Convey("Given a service whose workers never finish", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"status":"healthy"}`)) })
		mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"jobsProcessed":0}`)) })
		mux.HandleFunc("PUT /api/v1/users/{id}/behavior", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusCreated) })
		mux.HandleFunc("POST /api/v1/risk/batch", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"status":"accepted","jobs":2}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("Then the run reports an incomplete result", func() {
			stats, err := loadtest.Run(context.Background(), &loadtest.Config{
				BaseURL: srv.URL, Users: 2, Workers: 2,
				Wait: 50 * time.Millisecond, PollInterval: 10 * time.Millisecond,
			})
			So(errors.Is(err, loadtest.ErrIncomplete), ShouldBeTrue)
			So(stats, ShouldNotBeNil)
			So(stats.JobsQueued, ShouldEqual, 2)
			So(stats.Complete, ShouldBeFalse)
			So(stats.Summary, ShouldBeNil)
		})
	})
}

func TestDemo(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv, stop := newServer()
		defer stop()

		Convey("Then the demo prints every pattern in urgency order", func() {
			var buf bytes.Buffer
			So(loadtest.Demo(context.Background(), &loadtest.Config{BaseURL: srv.URL}, &buf), ShouldBeNil)

			out := buf.String()
			So(out, ShouldContainSubstring, "PATTERN")
			So(out, ShouldContainSubstring, "12345")
			So(out, ShouldContainSubstring, "0.847")
			So(bytes.Index(buf.Bytes(), []byte("IMMEDIATE_CRISIS")), ShouldBeLessThan, bytes.Index(buf.Bytes(), []byte("CONTROLLED")))
		})
	})
}
