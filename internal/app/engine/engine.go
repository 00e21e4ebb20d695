// Package engine turns a materialized dataset into a categorized risk result.
// It gates people on evaluation history, scores every eligible person
// concurrently and degrades to a smaller result when scoring fails.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/flightrisk/internal/domain/categorize"
	"github.com/okian/flightrisk/internal/domain/classify"
	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/domain/scoring"
	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

const (
	defaultScorerTimeout = 10 * time.Second

	exclusionInsufficientHistory = "insufficient_history"
	exclusionScoringFailed       = "scoring_failed"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithExtractor sets the feature extractor.
func WithExtractor(x *features.Extractor) Option {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// WithScorerTimeout bounds every scoring request.
func WithScorerTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxConcurrency caps in-flight scoring requests. Zero means one
// goroutine per eligible person.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxConcurrency = n
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine runs one analysis over a dataset. It holds no state between runs
// and is safe for concurrent use.
type Engine struct {
	scorer         scoring.Scorer
	extractor      *features.Extractor
	timeout        time.Duration
	maxConcurrency int
	logger         logger.Logger
}

// New creates an engine that scores through scorer.
func New(scorer scoring.Scorer, opts ...Option) *Engine {
	e := &Engine{
		scorer:    scorer,
		extractor: features.NewExtractor(),
		timeout:   defaultScorerTimeout,
		logger:    logger.GetOrDiscard(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ScorerTimeout returns the per-request scoring timeout.
func (e *Engine) ScorerTimeout() time.Duration { return e.timeout }

// candidate is one eligible person and the vector scored for them.
type candidate struct {
	person model.Person
	fv     model.FeatureVector
}

// outcome is written only by the goroutine scoring the matching candidate.
type outcome struct {
	result scoring.Result
	err    error
}

// Run scores data against the single instant now. Per-person failures only
// shrink the result; the run fails only when ctx ends first.
func (e *Engine) Run(ctx context.Context, data model.Dataset, now time.Time) (categorize.Result, error) {
	candidates := e.gate(ctx, data, now)

	outcomes := make([]outcome, len(candidates))
	var g errgroup.Group
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}
	for i := range candidates {
		g.Go(func() error {
			start := time.Now()
			res, err := e.scoreOne(ctx, candidates[i].fv)
			metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
			outcomes[i] = outcome{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return categorize.Result{}, fmt.Errorf("%w: %w", ErrRunAborted, err)
	}

	counts := categorize.Counts{Considered: len(data.People), Eligible: len(candidates)}
	assessments := make([]model.RiskAssessment, 0, len(candidates))
	for i, o := range outcomes {
		c := candidates[i]
		if o.err != nil {
			counts.Failed++
			kind := scoring.Kind(o.err)
			metrics.RecordScoringError(kind)
			metrics.RecordExclusion(exclusionScoringFailed)
			e.logger.Warn(ctx, "person excluded, scoring failed",
				logger.String("person_id", c.person.ID),
				logger.String("kind", kind),
				logger.Error(o.err),
			)
			continue
		}
		counts.Scored++
		assessments = append(assessments, assess(c, o.result))
	}

	result := categorize.Categorize(assessments, counts)

	metrics.UpdatePeopleConsidered(counts.Considered)
	metrics.UpdatePeopleEligible(counts.Eligible)
	for _, level := range model.Levels {
		metrics.UpdateAssessments(string(level), len(result.Partition(level)))
	}

	return result, nil
}

// gate groups records per person once and keeps only people with enough
// evaluation history.
func (e *Engine) gate(ctx context.Context, data model.Dataset, now time.Time) []candidate {
	evaluations := make(map[string][]model.EvaluationRecord, len(data.People))
	for _, r := range data.Evaluations {
		evaluations[r.PersonID] = append(evaluations[r.PersonID], r)
	}
	attendance := make(map[string][]model.AttendanceRecord, len(data.People))
	for _, r := range data.Attendance {
		attendance[r.EmployeeID] = append(attendance[r.EmployeeID], r)
	}

	candidates := make([]candidate, 0, len(data.People))
	for _, p := range data.People {
		evals := evaluations[p.ID]
		if !e.extractor.Eligible(evals) {
			metrics.RecordExclusion(exclusionInsufficientHistory)
			e.logger.Debug(ctx, "person excluded, insufficient history",
				logger.String("person_id", p.ID),
				logger.Int("evaluations", len(evals)),
			)
			continue
		}
		candidates = append(candidates, candidate{
			person: p,
			fv:     e.extractor.Extract(p, evals, attendance[p.ID], now),
		})
	}
	return candidates
}

// scoreOne calls the scorer under the per-request timeout. The timeout holds
// even when the scorer ignores its context; the abandoned call finishes into
// a buffered channel.
func (e *Engine) scoreOne(ctx context.Context, fv model.FeatureVector) (scoring.Result, error) {
	failed := scoring.Result{RiskScore: scoring.FailureSentinel}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	replies := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- outcome{result: failed, err: fmt.Errorf("%w: scorer panic: %v", scoring.ErrUnavailable, r)}
			}
		}()
		res, err := e.scorer.Score(callCtx, fv)
		replies <- outcome{result: res, err: err}
	}()

	select {
	case o := <-replies:
		if o.err != nil {
			if errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return failed, fmt.Errorf("%w: %w", scoring.ErrTimeout, o.err)
			}
			return failed, o.err
		}
		if err := o.result.Validate(); err != nil {
			return failed, err
		}
		return o.result, nil
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		return failed, fmt.Errorf("%w after %s", scoring.ErrTimeout, e.timeout)
	}
}

func assess(c candidate, res scoring.Result) model.RiskAssessment {
	return model.RiskAssessment{
		PersonID:   c.person.ID,
		PersonName: c.person.Name,
		RiskScore:  res.RiskScore,
		RiskLevel:  classify.Level(res.RiskScore),
		Summary:    res.Summary,
		Factors: model.Factors{
			EvaluationTrend: classify.Trend(c.fv.RecentScores),
			Absences90d:     c.fv.Absences90d,
			Lates90d:        c.fv.Lates90d,
			TenureMonths:    c.fv.TenureMonths,
		},
	}
}
