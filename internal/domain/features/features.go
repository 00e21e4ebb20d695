// Package features derives the per-person feature vector fed to the risk
// scorer: the trailing attendance window, evaluation history ordering,
// tenure and the eligibility gate.
package features

import (
	"slices"
	"time"

	"github.com/okian/flightrisk/internal/domain/model"
)

// Default extraction parameters.
const (
	DefaultLookback       = 90 * 24 * time.Hour
	DefaultRecentScores   = 3
	DefaultMinEvaluations = 2

	// averageMonth is 30.44 days.
	averageMonth = 2_630_016 * time.Second
)

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithLookback sets the trailing attendance window.
func WithLookback(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// WithRecentScores sets how many of the latest evaluation scores are kept.
func WithRecentScores(n int) Option {
	return func(e *Extractor) {
		if n >= 2 {
			e.recentScores = n
		}
	}
}

// WithMinEvaluations sets the eligibility threshold. Values below two are
// ignored since a trend needs two points.
func WithMinEvaluations(n int) Option {
	return func(e *Extractor) {
		if n >= DefaultMinEvaluations {
			e.minEvaluations = n
		}
	}
}

// Extractor turns raw records into feature vectors. It holds configuration
// only and is safe for concurrent use.
type Extractor struct {
	lookback       time.Duration
	recentScores   int
	minEvaluations int
}

// NewExtractor creates an Extractor with configuration options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		lookback:       DefaultLookback,
		recentScores:   DefaultRecentScores,
		minEvaluations: DefaultMinEvaluations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lookback returns the configured attendance window.
func (e *Extractor) Lookback() time.Duration { return e.lookback }

// MinEvaluations returns the eligibility threshold.
func (e *Extractor) MinEvaluations() int { return e.minEvaluations }

// WindowStart is the earliest attendance date counted for now.
func (e *Extractor) WindowStart(now time.Time) time.Time {
	return now.Add(-e.lookback)
}

// FilterAttendance returns the person's attendance records dated on or
// after the window start. Input order is preserved.
func (e *Extractor) FilterAttendance(personID string, records []model.AttendanceRecord, now time.Time) []model.AttendanceRecord {
	start := e.WindowStart(now)
	var out []model.AttendanceRecord
	for _, r := range records {
		if r.EmployeeID != personID {
			continue
		}
		if r.Date.Before(start) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Evaluations returns a copy of the person's evaluations sorted by
// timestamp, most recent first. Equal timestamps keep input order.
func (e *Extractor) Evaluations(personID string, records []model.EvaluationRecord) []model.EvaluationRecord {
	var out []model.EvaluationRecord
	for _, r := range records {
		if r.PersonID == personID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b model.EvaluationRecord) int {
		return b.EvaluatedAt.Compare(a.EvaluatedAt)
	})
	return out
}

// Eligible reports whether a person with the given evaluations has enough
// history to be scored.
func (e *Extractor) Eligible(evaluations []model.EvaluationRecord) bool {
	return len(evaluations) >= e.minEvaluations
}

// Extract builds the feature vector of p against a single instant now.
// evaluations and attendance may contain records of other people.
func (e *Extractor) Extract(p model.Person, evaluations []model.EvaluationRecord, attendance []model.AttendanceRecord, now time.Time) model.FeatureVector {
	evals := e.Evaluations(p.ID, evaluations)

	n := min(len(evals), e.recentScores)
	scores := make([]float64, n)
	for i := range n {
		scores[i] = evals[i].OverallScore
	}

	fv := model.FeatureVector{
		TenureMonths: TenureMonths(p.HireDate, now),
		RecentScores: scores,
	}
	for _, r := range e.FilterAttendance(p.ID, attendance, now) {
		switch r.Status {
		case model.StatusAbsent:
			fv.Absences90d++
		case model.StatusLate:
			fv.Lates90d++
		}
	}
	return fv
}

// TenureMonths is the number of whole average months between hire and now.
// Unknown or future hire dates yield zero.
func TenureMonths(hire *time.Time, now time.Time) int {
	if hire == nil {
		return 0
	}
	elapsed := now.Sub(*hire)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / averageMonth)
}
