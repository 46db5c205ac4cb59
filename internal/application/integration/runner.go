package integration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MethodSyncOrders is the method name stamped on every sync log
const MethodSyncOrders = "sync_storefront_orders"

// DefaultLockTTL bounds how long one order may hold its lock
const DefaultLockTTL = 5 * time.Minute

// errOrderLocked marks an order skipped because another runner holds it
var errOrderLocked = errors.New("order locked by another runner")

// SyncRunner pulls orders from the storefront one at a time and drives each
// through validation and the document pipeline. A failing order is logged and
// skipped; only an UpstreamFatalError (or cancellation) stops the run.
type SyncRunner struct {
	source          integration.OrderSource
	validator       *OrderValidator
	pipeline        *DocumentSyncPipeline
	logs            integration.SyncLogRepository
	logger          *zap.Logger
	lock            integration.OrderLock
	lockTTL         time.Duration
	concurrency     int
	companyOverride string
	metrics         *telemetry.SyncMetrics
	now             func() time.Time
}

// NewSyncRunner creates a sequential SyncRunner
func NewSyncRunner(
	source integration.OrderSource,
	validator *OrderValidator,
	pipeline *DocumentSyncPipeline,
	logs integration.SyncLogRepository,
	logger *zap.Logger,
) *SyncRunner {
	return &SyncRunner{
		source:      source,
		validator:   validator,
		pipeline:    pipeline,
		logs:        logs,
		logger:      logger,
		lockTTL:     DefaultLockTTL,
		concurrency: 1,
		now:         time.Now,
	}
}

// SetOrderLock guards every order with lock for at most ttl
func (r *SyncRunner) SetOrderLock(lock integration.OrderLock, ttl time.Duration) {
	r.lock = lock
	if ttl > 0 {
		r.lockTTL = ttl
	}
}

// SetConcurrency sets how many orders may be processed at once. Steps
// within one order always run in sequence.
func (r *SyncRunner) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	r.concurrency = n
}

// SetCompanyOverride forces the company of every new sales order. Orders
// created this way stay in Draft.
func (r *SyncRunner) SetCompanyOverride(company string) {
	r.companyOverride = company
}

// SetSyncMetrics sets the metrics collector
func (r *SyncRunner) SetSyncMetrics(m *telemetry.SyncMetrics) {
	r.metrics = m
	r.pipeline.SetSyncMetrics(m)
}

// runState accumulates the result of a run; safe for concurrent use
type runState struct {
	mu     sync.Mutex
	result integration.RunResult
}

func (s *runState) succeeded() {
	s.mu.Lock()
	s.result.SuccessCount++
	s.mu.Unlock()
}

func (s *runState) skipped() {
	s.mu.Lock()
	s.result.SkippedCount++
	s.mu.Unlock()
}

func (s *runState) failed(log integration.SyncLog) {
	s.mu.Lock()
	s.result.Errors = append(s.result.Errors, log)
	s.mu.Unlock()
}

// Run syncs every order the source yields. The returned RunResult is always
// populated; the error is non-nil only when the run was aborted, and is then
// also stored in RunResult.Aborted.
func (r *SyncRunner) Run(ctx context.Context, settings integration.SyncSettings) (integration.RunResult, error) {
	state := &runState{}
	state.result.StartedAt = r.now()

	if err := settings.Validate(); err != nil {
		state.result.FinishedAt = r.now()
		state.result.Aborted = err
		return state.result, err
	}

	r.logger.Info("Storefront order sync started", zap.Int("concurrency", r.concurrency))

	var err error
	if r.concurrency > 1 {
		err = r.runParallel(ctx, settings, state)
	} else {
		err = r.runSequential(ctx, settings, state)
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	result := state.result
	result.FinishedAt = r.now()
	result.Aborted = err

	if r.metrics != nil {
		r.metrics.RecordRun(ctx, result.FinishedAt.Sub(result.StartedAt), err != nil)
	}

	fields := []zap.Field{
		zap.Int("success", result.SuccessCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("failed", result.FailedCount()),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	}
	if err != nil {
		r.logger.Error("Storefront order sync aborted", append(fields, zap.Error(err))...)
		return result, err
	}
	r.logger.Info("Storefront order sync finished", fields...)
	return result, nil
}

func (r *SyncRunner) runSequential(ctx context.Context, settings integration.SyncSettings, state *runState) error {
	for order, err := range r.source.Orders(ctx) {
		if err != nil {
			if integration.IsUpstreamFatal(err) {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.recordFailure(ctx, state, nil, err)
			continue
		}
		if err := r.processOrder(ctx, order, settings, state); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (r *SyncRunner) runParallel(ctx context.Context, settings integration.SyncSettings, state *runState) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var sourceErr error
	for order, err := range r.source.Orders(gctx) {
		if err != nil {
			if integration.IsUpstreamFatal(err) {
				sourceErr = err
				break
			}
			// a cancelled stream is not a failed order
			if gctx.Err() != nil {
				break
			}
			r.recordFailure(gctx, state, nil, err)
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return r.processOrder(gctx, order, settings, state)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if sourceErr != nil {
		return sourceErr
	}
	return ctx.Err()
}

// processOrder returns an error only when the whole run must stop
func (r *SyncRunner) processOrder(
	ctx context.Context,
	order integration.StorefrontOrder,
	settings integration.SyncSettings,
	state *runState,
) error {
	err := r.syncOrder(ctx, order, settings)
	switch {
	case err == nil:
		state.succeeded()
		if r.metrics != nil {
			r.metrics.RecordOrderSynced(ctx)
		}
		return nil
	case errors.Is(err, errOrderLocked):
		state.skipped()
		r.logger.Debug("Storefront order locked by another runner, skipping",
			zap.String("storefront_order_id", order.ExternalID()))
		return nil
	case integration.IsUpstreamFatal(err):
		r.logger.Error("Upstream refused request, aborting run",
			zap.String("storefront_order_id", order.ExternalID()),
			zap.Error(err),
		)
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		r.recordFailure(ctx, state, &order, err)
		return nil
	}
}

func (r *SyncRunner) syncOrder(ctx context.Context, order integration.StorefrontOrder, settings integration.SyncSettings) error {
	if r.lock != nil {
		key := "storefront-order:" + order.ExternalID()
		acquired, err := r.lock.Acquire(ctx, key, r.lockTTL)
		if err != nil {
			return &integration.TransientDocumentError{Step: "acquire_lock", Err: err}
		}
		if !acquired {
			return errOrderLocked
		}
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), key); err != nil {
				r.logger.Warn("Failed to release order lock", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	if _, err := r.validator.Validate(ctx, order, settings); err != nil {
		return err
	}
	_, err := r.pipeline.Sync(ctx, order, settings, r.companyOverride)
	return err
}

func (r *SyncRunner) recordFailure(ctx context.Context, state *runState, order *integration.StorefrontOrder, err error) {
	log := integration.NewErrorLog(MethodSyncOrders, order, err)
	log.CreatedAt = r.now()

	r.logger.Error("Failed to sync storefront order",
		zap.String("storefront_order_id", log.StorefrontOrderID),
		zap.String("error_kind", string(log.ErrorKind)),
		zap.Error(err),
	)

	if r.logs != nil {
		if saveErr := r.logs.Save(context.WithoutCancel(ctx), log); saveErr != nil {
			r.logger.Warn("Failed to persist sync log", zap.Error(saveErr))
		}
	}
	if r.metrics != nil {
		r.metrics.RecordOrderFailed(ctx, string(log.ErrorKind))
	}
	state.failed(*log)
}
