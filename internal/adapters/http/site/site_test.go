package site

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a mux with the site registered", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		Convey("When requesting /", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

			Convey("Then the welcome document links the docs and health check", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")

				var body Welcome
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Message, ShouldEqual, "Gambling Harm Prevention API")
				So(body.Documentation, ShouldEqual, "/docs")
				So(body.HealthCheck, ShouldEqual, "/health")
				So(body.OpenAPI, ShouldEqual, "/openapi.yaml")
			})
		})

		Convey("When requesting an unknown path", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/some-asset", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When posting to /", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSiteHandlerWithNilMux(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		So(func() { Register(context.Background(), nil) }, ShouldPanic)
	})
}
