package httpscorer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientScore(t *testing.T) {
	fv := model.FeatureVector{TenureMonths: 13, RecentScores: []float64{8, 5}, Absences90d: 4, Lates90d: 6}

	Convey("Given a scorer endpoint", t, func() {
		var (
			gotBody   map[string]any
			gotAuth   string
			gotMethod string
		)
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(`{"riskScore": 75, "summary": "declining"}`))
		})

		Convey("When scoring with a token", func() {
			res, err := New(srv.URL, WithToken(" secret ")).Score(context.Background(), fv)

			Convey("Then the request carries exactly the feature vector", func() {
				So(err, ShouldBeNil)
				So(gotMethod, ShouldEqual, http.MethodPost)
				So(gotAuth, ShouldEqual, "Bearer secret")
				So(gotBody, ShouldResemble, map[string]any{
					"tenureMonths":     13.0,
					"evaluationScores": []any{8.0, 5.0},
					"absences90d":      4.0,
					"lates90d":         6.0,
				})
			})

			Convey("Then the response is decoded", func() {
				So(res, ShouldResemble, scoring.Result{RiskScore: 75, Summary: "declining"})
			})
		})

		Convey("When scoring without a token", func() {
			_, err := New(srv.URL).Score(context.Background(), fv)

			Convey("Then no credential is sent", func() {
				So(err, ShouldBeNil)
				So(gotAuth, ShouldEqual, "")
			})
		})
	})

	Convey("Given an endpoint that wraps JSON in a code fence", t, func() {
		srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("Here you go:\n```json\n{\"riskScore\": 42.5, \"summary\": \"watch\"}\n```"))
		})

		res, err := New(srv.URL).Score(context.Background(), fv)

		Convey("Then the fenced payload is decoded", func() {
			So(err, ShouldBeNil)
			So(res.RiskScore, ShouldEqual, 42.5)
			So(res.Summary, ShouldEqual, "watch")
		})
	})

	Convey("Given an endpoint returning the failure sentinel", t, func() {
		srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"riskScore": -1, "summary": ""}`))
		})

		_, err := New(srv.URL).Score(context.Background(), fv)

		Convey("Then the sentinel is reported", func() {
			So(errors.Is(err, scoring.ErrSentinel), ShouldBeTrue)
		})
	})

	Convey("Given malformed responses", t, func() {
		for _, body := range []string{`not json`, `{"summary": "no score"}`, "```json\n{broken\n```"} {
			srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			res, err := New(srv.URL).Score(context.Background(), fv)

			So(errors.Is(err, scoring.ErrMalformed), ShouldBeTrue)
			So(res.Failed(), ShouldBeTrue)
		}
	})

	Convey("Given an endpoint failing with a server error", t, func() {
		srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := New(srv.URL).Score(context.Background(), fv)

		Convey("Then the scorer is unavailable", func() {
			So(errors.Is(err, scoring.ErrUnavailable), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "502")
		})
	})

	Convey("Given an endpoint slower than the caller's deadline", t, func() {
		release := make(chan struct{})
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		Reset(func() { close(release) })

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := New(srv.URL).Score(ctx, fv)

		Convey("Then the call times out", func() {
			So(errors.Is(err, scoring.ErrTimeout), ShouldBeTrue)
		})
	})

	Convey("Given an unreachable endpoint", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := New(url, WithHTTPClient(&http.Client{Timeout: time.Second})).Score(context.Background(), fv)

		Convey("Then the scorer is unavailable", func() {
			So(errors.Is(err, scoring.ErrUnavailable), ShouldBeTrue)
		})
	})
}
