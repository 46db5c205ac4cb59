package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/infrastructure/logger"
)

// ---------------------------------------------------------------------------
// Sync Run Types
// ---------------------------------------------------------------------------

// RunStatus represents the status of a sync run
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusPartial RunStatus = "PARTIAL"
	RunStatusFailed  RunStatus = "FAILED"
)

// Trigger says what started a run
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// SyncRun is the record of one scheduled or manual run, retries included
type SyncRun struct {
	ID          uuid.UUID  `json:"id"`
	Trigger     Trigger    `json:"trigger"`
	Status      RunStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	SuccessCount int `json:"success_count"`
	SkippedCount int `json:"skipped_count"`
	FailedCount  int `json:"failed_count"`
}

// complete applies the result of the last attempt
func (r *SyncRun) complete(result integration.RunResult, err error, at time.Time) {
	r.CompletedAt = &at
	r.SuccessCount = result.SuccessCount
	r.SkippedCount = result.SkippedCount
	r.FailedCount = result.FailedCount()

	switch {
	case err != nil:
		r.Status = RunStatusFailed
		r.Error = err.Error()
	case r.FailedCount == 0:
		r.Status = RunStatusSuccess
	case r.SuccessCount > 0:
		r.Status = RunStatusPartial
	default:
		r.Status = RunStatusFailed
	}
}

// Runner executes one pass over the storefront orders
type Runner interface {
	Run(ctx context.Context, settings integration.SyncSettings) (integration.RunResult, error)
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds configuration for the sync scheduler
type Config struct {
	// Interval between scheduled runs
	Interval time.Duration
	// JobTimeout bounds a single attempt
	JobTimeout time.Duration
	// RetryAttempts is the number of retries after an aborted attempt
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// MaxRetryDelay caps the backoff
	MaxRetryDelay time.Duration
	// HistorySize is how many finished runs are kept in memory
	HistorySize int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Interval:      15 * time.Minute,
		JobTimeout:    10 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    30 * time.Second,
		MaxRetryDelay: 5 * time.Minute,
		HistorySize:   50,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Interval <= 0 || c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 || c.RetryDelay < 0 {
		return ErrInvalidConfig
	}
	if c.MaxRetryDelay < c.RetryDelay {
		return ErrInvalidConfig
	}
	if c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// backoff returns RetryDelay * 2^(retry-1), capped at MaxRetryDelay
func (c *Config) backoff(retry int) time.Duration {
	delay := c.RetryDelay
	for i := 1; i < retry && delay < c.MaxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, c.MaxRetryDelay)
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler runs the order sync on a fixed interval and on demand.
// At most one run is in flight at any time.
type SyncScheduler struct {
	config   Config
	runner   Runner
	settings integration.SyncSettings
	logger   *zap.Logger
	now      func() time.Time

	runMu sync.Mutex

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool

	historyMu sync.RWMutex
	history   []SyncRun
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config Config, runner Runner, settings integration.SyncSettings, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SyncScheduler{
		config:   config,
		runner:   runner,
		settings: settings,
		logger:   logger,
		now:      time.Now,
		history:  make([]SyncRun, 0, config.HistorySize),
	}, nil
}

// Start runs the sync once and then every Interval until Stop
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the periodic loop is active
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *SyncScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		run, err := s.RunNow(ctx, TriggerScheduled)
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Debug("Previous sync run still in progress, skipping tick")
		} else if run != nil && integration.IsUpstreamFatal(err) {
			s.logger.Error("Scheduled sync run stopped by upstream", zap.String("run_id", run.ID.String()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunNow executes a run synchronously, retrying aborted attempts with
// exponential backoff. An UpstreamFatalError or ConfigurationError is never
// retried. The returned
// error is the abort reason of the last attempt.
func (s *SyncScheduler) RunNow(ctx context.Context, trigger Trigger) (*SyncRun, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	run := &SyncRun{
		ID:        uuid.New(),
		Trigger:   trigger,
		Status:    RunStatusRunning,
		StartedAt: s.now(),
	}
	ctx, log := logger.WithRunID(ctx, s.logger, run.ID.String())
	log.Info("Sync run started", zap.String("trigger", string(trigger)))

	var (
		result integration.RunResult
		err    error
	)
	for {
		run.Attempts++
		result, err = s.attempt(ctx)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			break
		}
		if run.Attempts > s.config.RetryAttempts {
			break
		}

		delay := s.config.backoff(run.Attempts)
		log.Warn("Sync run aborted, retrying",
			zap.Int("attempt", run.Attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if !sleep(ctx, delay) {
			err = errors.Join(err, ctx.Err())
			break
		}
	}

	run.complete(result, err, s.now())
	s.addToHistory(*run)

	fields := []zap.Field{
		zap.String("status", string(run.Status)),
		zap.Int("attempts", run.Attempts),
		zap.Int("success_count", run.SuccessCount),
		zap.Int("skipped_count", run.SkippedCount),
		zap.Int("failed_count", run.FailedCount),
	}
	if err != nil {
		log.Error("Sync run failed", append(fields, zap.Error(err))...)
	} else {
		log.Info("Sync run completed", fields...)
	}
	return run, err
}

// retryable reports whether another attempt could succeed. Upstream refusals
// and invalid settings fail the same way until something outside the run
// changes.
func retryable(err error) bool {
	var cfgErr *integration.ConfigurationError
	return !integration.IsUpstreamFatal(err) && !errors.As(err, &cfgErr)
}

func (s *SyncScheduler) attempt(ctx context.Context) (integration.RunResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	return s.runner.Run(attemptCtx, s.settings)
}

// sleep waits for d; false means ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// addToHistory adds a finished run to the front of the history
func (s *SyncScheduler) addToHistory(run SyncRun) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]SyncRun{run}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// History returns up to limit finished runs, newest first
func (s *SyncScheduler) History(limit int) []SyncRun {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]SyncRun, limit)
	copy(result, s.history[:limit])
	return result
}
