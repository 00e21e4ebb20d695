// Package scoring defines the contract of the external predictive scorer
// and a simulated in-process implementation of it.
package scoring

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/flightrisk/internal/domain/classify"
	"github.com/okian/flightrisk/internal/domain/model"
)

// FailureSentinel is the score a scorer reports when it cannot assess a person.
const FailureSentinel = -1.0

const (
	defaultMinLatency = 80 * time.Millisecond
	defaultMaxLatency = 150 * time.Millisecond
	defaultRandomSeed = 42
	maxScoreValue     = 100
)

// Result is the scorer's answer for one feature vector.
type Result struct {
	RiskScore float64 `json:"riskScore"`
	Summary   string  `json:"summary"`
}

// Failed reports whether r carries the failure sentinel.
func (r Result) Failed() bool {
	return r.RiskScore == FailureSentinel
}

// Validate reports ErrSentinel for the failure sentinel and ErrMalformed
// for non-finite scores. Any other value is accepted as is.
func (r Result) Validate() error {
	if r.Failed() {
		return ErrSentinel
	}
	if math.IsNaN(r.RiskScore) || math.IsInf(r.RiskScore, 0) {
		return fmt.Errorf("%w: non-finite risk score", ErrMalformed)
	}
	return nil
}

// Scorer assesses one feature vector. Implementations must be stateless per
// call, must not retry and must not cache across people or runs. Calls for
// distinct people may run concurrently.
type Scorer interface {
	// Score computes a risk score, honoring ctx for cancellation.
	Score(ctx context.Context, fv model.FeatureVector) (Result, error)
}

// Option applies a configuration option to the InMemoryScorer.
type Option func(*InMemoryScorer)

// WithLatencyRange sets the simulated latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *InMemoryScorer) {
		if minLatency > 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithSeed sets the seed of the latency jitter source.
func WithSeed(seed int64) Option {
	return func(s *InMemoryScorer) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // jitter only
	}
}

// InMemoryScorer stands in for the remote predictive model. It derives a
// score from the vector with a fixed heuristic after a simulated delay.
type InMemoryScorer struct {
	minLatency time.Duration
	maxLatency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewInMemoryScorer creates a new in-memory scorer with configuration options.
func NewInMemoryScorer(opts ...Option) *InMemoryScorer {
	s := &InMemoryScorer{
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic jitter
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score computes a risk score for the given vector.
func (s *InMemoryScorer) Score(ctx context.Context, fv model.FeatureVector) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{RiskScore: FailureSentinel}, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case <-time.After(s.latency()):
	}

	if len(fv.RecentScores) == 0 {
		return Result{RiskScore: FailureSentinel}, nil
	}

	score := Heuristic(fv)
	return Result{
		RiskScore: score,
		Summary:   summarize(fv, score),
	}, nil
}

func (s *InMemoryScorer) latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
}

// Heuristic is the deterministic scoring rule of the simulated scorer.
// Low and declining evaluations, frequent absences and lateness, and short
// tenure raise the score. The result is clamped to [0, 100].
func Heuristic(fv model.FeatureVector) float64 {
	if len(fv.RecentScores) == 0 {
		return 0
	}

	latest := fv.RecentScores[0]
	score := (10 - latest) * 4 // 0..40 for a 0..10 evaluation scale

	if len(fv.RecentScores) > 1 {
		score += (fv.RecentScores[1] - latest) * 5 // a 3 point drop adds 15
	}

	score += float64(fv.Absences90d) * 4
	score += float64(fv.Lates90d) * 1.5

	switch {
	case fv.TenureMonths < 6:
		score += 15
	case fv.TenureMonths < 24:
		score += 8
	case fv.TenureMonths > 120:
		score -= 5
	}

	return math.Round(math.Max(0, math.Min(maxScoreValue, score)))
}

func summarize(fv model.FeatureVector, score float64) string {
	trend := classify.Trend(fv.RecentScores)
	return fmt.Sprintf(
		"%s risk: evaluations %s (latest %.1f), %d absences and %d late arrivals in the lookback window, %d months tenure.",
		classify.Level(score), trend, fv.RecentScores[0], fv.Absences90d, fv.Lates90d, fv.TenureMonths,
	)
}
