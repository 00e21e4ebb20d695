// Package service owns analysis runs: it loads records, runs the engine
// against a single instant, publishes the newest result and serves filtered
// views of it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	triggerqueue "github.com/okian/flightrisk/internal/adapters/mq/queue"
	workerpool "github.com/okian/flightrisk/internal/adapters/mq/worker"
	"github.com/okian/flightrisk/internal/adapters/source"
	"github.com/okian/flightrisk/internal/app/engine"
	"github.com/okian/flightrisk/internal/domain/categorize"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/domain/scoring"
	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

const (
	defaultWorkerCount = 1
	defaultQueueSize   = 16
	stopTimeout        = 30 * time.Second
)

// Snapshot is one completed analysis run.
type Snapshot struct {
	RunID       string
	Generation  uint64
	Now         time.Time // the single instant the run was computed against
	CompletedAt time.Time
	Duration    time.Duration
	Result      categorize.Result

	units map[string]string // person id to organizational unit
}

// View projects the snapshot onto selector without touching it.
func (s *Snapshot) View(selector string) View {
	r := categorize.Filter(s.Result, selector, s.units)
	unit := categorize.AllUnits
	if !categorize.IsAll(selector) {
		unit = strings.TrimSpace(selector)
	}
	return View{
		RunID:       s.RunID,
		AsOf:        s.Now,
		CompletedAt: s.CompletedAt,
		Unit:        unit,
		Message:     r.Message(),
		Result:      r,
	}
}

// View is a filtered snapshot as served to readers.
type View struct {
	RunID       string    `json:"runId"`
	AsOf        time.Time `json:"asOf"`
	CompletedAt time.Time `json:"completedAt"`
	Unit        string    `json:"unit"`
	Message     string    `json:"message"`
	categorize.Result
}

// Service implements the API dependencies of the risk engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	source   source.Source
	engine   *engine.Engine
	triggers *triggerqueue.InMemoryQueue
	pool     *workerpool.Pool
	clock    func() time.Time

	// Configuration
	workerCount     int
	queueSize       int
	refreshInterval time.Duration

	// Run state
	generation atomic.Uint64
	publishMu  sync.Mutex
	latest     atomic.Pointer[Snapshot]
	completed  atomic.Int64
	failed     atomic.Int64
	superseded atomic.Int64
	lastError  atomic.Pointer[string]

	// Lifecycle
	started bool
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets the record source.
func WithSource(src source.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithEngine sets the analysis engine.
func WithEngine(e *engine.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithClock sets the source of each run's "now".
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithWorkerCount sets the number of workers executing triggered runs.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending triggers.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRefreshInterval enqueues a run every d while started. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
		clock:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.GetOrDiscard().Named("service")
	}
	if s.source == nil {
		s.source = source.NewMemory(model.Dataset{})
	}
	if s.engine == nil {
		s.engine = engine.New(scoring.NewInMemoryScorer(), engine.WithLogger(logger.GetOrDiscard().Named("engine")))
	}

	return s
}

// Start initializes the trigger queue and workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting risk service...")

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.triggers = triggerqueue.NewInMemoryQueue(
		triggerqueue.WithCapacity(s.queueSize),
		triggerqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.triggers, s)
	s.pool.Start(runCtx)

	if s.refreshInterval > 0 {
		s.loopWG.Add(1)
		go s.refreshLoop(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "risk service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("refreshInterval", s.refreshInterval),
	)

	return nil
}

// Stop runs the triggers still queued, waits for in-flight runs and stops
// workers. Anything left when the stop timeout expires is abandoned.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping risk service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}

	s.cancel()
	s.loopWG.Wait()

	s.started = false
	s.logger.Info(ctx, "risk service stopped")
}

func (s *Service) refreshLoop(ctx context.Context) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.enqueue(ctx, "schedule"); err != nil {
				s.logger.Warn(ctx, "scheduled refresh skipped", logger.Error(err))
			}
		}
	}
}

// Trigger asks for a re-analysis. It returns ErrBackpressure when the
// queue is full.
func (s *Service) Trigger(ctx context.Context, reason string) (model.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.Trigger{}, ErrNotStarted
	}
	t := s.newTrigger(reason)
	if err := s.push(ctx, t); err != nil {
		return model.Trigger{}, err
	}
	return t, nil
}

func (s *Service) enqueue(ctx context.Context, reason string) error {
	return s.push(ctx, s.newTrigger(reason))
}

func (s *Service) newTrigger(reason string) model.Trigger {
	return model.Trigger{ID: uuid.NewString(), Reason: reason, RequestedAt: s.clock()}
}

func (s *Service) push(ctx context.Context, t model.Trigger) error {
	err := s.triggers.Enqueue(ctx, t)
	switch {
	case err == nil:
		s.logger.Debug(ctx, "analysis requested",
			logger.String("trigger_id", t.ID),
			logger.String("reason", t.Reason),
		)
		return nil
	case errors.Is(err, triggerqueue.ErrFull):
		return fmt.Errorf("%w: %w", ErrBackpressure, err)
	case errors.Is(err, triggerqueue.ErrClosed):
		return fmt.Errorf("%w: %w", ErrNotStarted, err)
	default:
		return err
	}
}

// Execute runs one analysis for a dequeued trigger. A run overtaken by a
// newer one is not a failure.
func (s *Service) Execute(ctx context.Context, t model.Trigger) error {
	s.logger.Debug(ctx, "executing trigger",
		logger.String("trigger_id", t.ID),
		logger.String("reason", t.Reason),
		logger.Duration("waited", s.clock().Sub(t.RequestedAt)),
	)
	if _, err := s.Analyze(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}
	return nil
}

// Analyze runs the engine over freshly loaded records and publishes the
// result unless a newer-started run already published. Failed runs leave
// the previous snapshot in place.
func (s *Service) Analyze(ctx context.Context) (*Snapshot, error) {
	gen := s.generation.Add(1)
	runID := uuid.NewString()
	start := time.Now()
	now := s.clock()

	metrics.RecordRunStarted()
	s.logger.Info(ctx, "analysis run started",
		logger.String("run_id", runID),
		logger.Any("generation", gen),
	)

	data, err := s.source.Load(ctx)
	if err != nil {
		return nil, s.fail(ctx, runID, fmt.Errorf("%w: %w", ErrSourceFailed, err))
	}

	result, err := s.engine.Run(ctx, data, now)
	if err != nil {
		return nil, s.fail(ctx, runID, err)
	}

	units := make(map[string]string, len(data.People))
	for _, p := range data.People {
		units[p.ID] = p.OrganizationUnit
	}

	snap := &Snapshot{
		RunID:       runID,
		Generation:  gen,
		Now:         now,
		CompletedAt: s.clock(),
		Duration:    time.Since(start),
		Result:      result,
		units:       units,
	}

	if !s.publish(snap) {
		s.superseded.Add(1)
		metrics.RecordRunSuperseded()
		s.logger.Info(ctx, "analysis run superseded",
			logger.String("run_id", runID),
			logger.Any("generation", gen),
		)
		return nil, ErrSuperseded
	}

	s.completed.Add(1)
	metrics.RecordRunCompleted(float64(snap.Duration.Milliseconds()))
	s.logger.Info(ctx, "analysis run completed",
		logger.String("run_id", runID),
		logger.Int("considered", result.Counts.Considered),
		logger.Int("eligible", result.Counts.Eligible),
		logger.Int("scored", result.Counts.Scored),
		logger.Int("failed", result.Counts.Failed),
		logger.Bool("no_data", result.NoData),
		logger.Duration("took", snap.Duration),
	)
	return snap, nil
}

// publish stores snap unless a snapshot from a newer-started run is
// already published.
func (s *Service) publish(snap *Snapshot) bool {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if cur := s.latest.Load(); cur != nil && cur.Generation > snap.Generation {
		return false
	}
	s.latest.Store(snap)
	return true
}

func (s *Service) fail(ctx context.Context, runID string, err error) error {
	s.failed.Add(1)
	msg := err.Error()
	s.lastError.Store(&msg)
	metrics.RecordRunFailed()
	metrics.RecordErrorByComponent("service", "run_failed")
	s.logger.Error(ctx, "analysis run failed",
		logger.String("run_id", runID),
		logger.Error(err),
	)
	return err
}

// Latest returns the published snapshot, or nil before the first run.
func (s *Service) Latest() *Snapshot {
	return s.latest.Load()
}

// View returns the latest result filtered to selector.
func (s *Service) View(_ context.Context, selector string) (View, error) {
	snap := s.latest.Load()
	if snap == nil {
		return View{}, ErrNotReady
	}
	return snap.View(selector), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"scorerTimeout":  s.engine.ScorerTimeout().String(),
		"generation":     s.generation.Load(),
		"runsCompleted":  s.completed.Load(),
		"runsFailed":     s.failed.Load(),
		"runsSuperseded": s.superseded.Load(),
	}

	if msg := s.lastError.Load(); msg != nil {
		stats["lastError"] = *msg
	}

	if snap := s.latest.Load(); snap != nil {
		stats["lastRunId"] = snap.RunID
		stats["lastCompletedAt"] = snap.CompletedAt
		stats["lastRunDurationMs"] = snap.Duration.Milliseconds()
		stats["counts"] = snap.Result.Counts
		stats["noData"] = snap.Result.NoData
	}

	if s.started {
		stats["queueLength"] = s.triggers.Len(context.Background())
		stats["triggersProcessed"] = s.pool.Processed()
		stats["triggersFailed"] = s.pool.Failed()
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}
