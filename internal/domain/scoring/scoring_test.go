package scoring_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/okian/flightrisk/internal/domain/model"
	scoring "github.com/okian/flightrisk/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func fastScorer() *scoring.InMemoryScorer {
	return scoring.NewInMemoryScorer(scoring.WithLatencyRange(time.Millisecond, 2*time.Millisecond))
}

func TestInMemoryScorer_Score(t *testing.T) {
	Convey("Given a new in-memory scorer", t, func() {
		scorer := fastScorer()

		Convey("When scoring a struggling new hire", func() {
			fv := model.FeatureVector{TenureMonths: 2, RecentScores: []float64{3, 7}, Absences90d: 6, Lates90d: 10}
			result, err := scorer.Score(context.Background(), fv)

			Convey("Then it should return a high score with a summary", func() {
				So(err, ShouldBeNil)
				So(result.RiskScore, ShouldEqual, 100)
				So(result.Summary, ShouldContainSubstring, "High risk")
				So(result.Summary, ShouldContainSubstring, "falling")
			})
		})

		Convey("When scoring a steady long-tenured performer", func() {
			fv := model.FeatureVector{TenureMonths: 150, RecentScores: []float64{9, 9}}
			result, err := scorer.Score(context.Background(), fv)

			Convey("Then it should return a low score", func() {
				So(err, ShouldBeNil)
				So(result.RiskScore, ShouldEqual, 0)
				So(result.Summary, ShouldContainSubstring, "stable")
			})
		})

		Convey("When scoring a vector without scores", func() {
			result, err := scorer.Score(context.Background(), model.FeatureVector{})

			Convey("Then it should return the failure sentinel", func() {
				So(err, ShouldBeNil)
				So(result.Failed(), ShouldBeTrue)
				So(errors.Is(result.Validate(), scoring.ErrSentinel), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			result, err := scorer.Score(ctx, model.FeatureVector{RecentScores: []float64{5, 5}})

			Convey("Then it should report the scorer unavailable", func() {
				So(errors.Is(err, scoring.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(result.Failed(), ShouldBeTrue)
			})
		})
	})
}

func TestInMemoryScorer_Latency(t *testing.T) {
	Convey("Given a scorer with a custom latency range", t, func() {
		minLatency := 5 * time.Millisecond
		maxLatency := 20 * time.Millisecond
		scorer := scoring.NewInMemoryScorer(scoring.WithLatencyRange(minLatency, maxLatency), scoring.WithSeed(7))

		Convey("Then a call should take at least the minimum latency", func() {
			start := time.Now()
			_, err := scorer.Score(context.Background(), model.FeatureVector{RecentScores: []float64{5, 5}})
			So(err, ShouldBeNil)
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, minLatency)
		})
	})

	Convey("Given an invalid latency range", t, func() {
		scorer := scoring.NewInMemoryScorer(scoring.WithLatencyRange(20*time.Millisecond, 5*time.Millisecond))

		Convey("Then the default range is kept and scoring still works", func() {
			_, err := scorer.Score(context.Background(), model.FeatureVector{RecentScores: []float64{5, 5}})
			So(err, ShouldBeNil)
		})
	})
}

func TestInMemoryScorer_Concurrent(t *testing.T) {
	Convey("Given a scorer shared by many goroutines", t, func() {
		scorer := fastScorer()
		fv := model.FeatureVector{TenureMonths: 30, RecentScores: []float64{6, 7}, Absences90d: 2}
		want := scoring.Heuristic(fv)

		Convey("Then every call should return the same score", func() {
			type outcome struct {
				result scoring.Result
				err    error
			}
			results := make(chan outcome, 10)
			for range 10 {
				go func() {
					r, err := scorer.Score(context.Background(), fv)
					results <- outcome{r, err}
				}()
			}
			for range 10 {
				o := <-results
				So(o.err, ShouldBeNil)
				So(o.result.RiskScore, ShouldEqual, want)
			}
		})
	})
}

func TestHeuristic(t *testing.T) {
	Convey("Given the scoring heuristic", t, func() {
		Convey("Then it should stay within [0, 100]", func() {
			So(scoring.Heuristic(model.FeatureVector{RecentScores: []float64{-50, 10}, Absences90d: 90}), ShouldEqual, 100)
			So(scoring.Heuristic(model.FeatureVector{RecentScores: []float64{10, 0}, TenureMonths: 200}), ShouldEqual, 0)
		})

		Convey("Then falling evaluations should raise the score", func() {
			falling := scoring.Heuristic(model.FeatureVector{TenureMonths: 30, RecentScores: []float64{5, 8}})
			rising := scoring.Heuristic(model.FeatureVector{TenureMonths: 30, RecentScores: []float64{8, 5}})
			So(falling, ShouldBeGreaterThan, rising)
		})

		Convey("Then absences should raise the score", func() {
			base := model.FeatureVector{TenureMonths: 30, RecentScores: []float64{6, 6}}
			withAbsences := base
			withAbsences.Absences90d = 5
			So(scoring.Heuristic(withAbsences), ShouldBeGreaterThan, scoring.Heuristic(base))
		})
	})
}

func TestResultValidate(t *testing.T) {
	Convey("Given scorer results", t, func() {
		Convey("Then valid and very low scores pass", func() {
			So(scoring.Result{RiskScore: 55}.Validate(), ShouldBeNil)
			So(scoring.Result{RiskScore: 0}.Validate(), ShouldBeNil)
			So(scoring.Result{RiskScore: -3}.Validate(), ShouldBeNil)
		})

		Convey("Then non-finite scores are malformed", func() {
			So(errors.Is(scoring.Result{RiskScore: math.NaN()}.Validate(), scoring.ErrMalformed), ShouldBeTrue)
			So(errors.Is(scoring.Result{RiskScore: math.Inf(1)}.Validate(), scoring.ErrMalformed), ShouldBeTrue)
		})
	})
}

func TestKind(t *testing.T) {
	Convey("Given scorer errors", t, func() {
		Convey("Then each maps to its metric label", func() {
			So(scoring.Kind(nil), ShouldEqual, "")
			So(scoring.Kind(scoring.ErrSentinel), ShouldEqual, "sentinel")
			So(scoring.Kind(fmt.Errorf("wrap: %w", scoring.ErrTimeout)), ShouldEqual, "timeout")
			So(scoring.Kind(fmt.Errorf("wrap: %w", scoring.ErrMalformed)), ShouldEqual, "malformed")
			So(scoring.Kind(errors.New("connection refused")), ShouldEqual, "unavailable")
		})
	})
}
