package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when SyncMetrics is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

var (
	AttrErrorKind = attribute.Key("error_kind")
	AttrDoctype   = attribute.Key("doctype")
	AttrAborted   = attribute.Key("aborted")
)

// RunDurationBuckets are bucket boundaries for whole sync runs (seconds)
var RunDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 900}

// SyncMetrics records order sync throughput and failures
type SyncMetrics struct {
	ordersSynced     metric.Int64Counter
	ordersFailed     metric.Int64Counter
	documentsCreated metric.Int64Counter
	runDuration      metric.Float64Histogram
}

// NewSyncMetrics registers the sync instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   SyncMetrics
		err error
	)
	if m.ordersSynced, err = meter.Int64Counter("storefront_orders_synced_total",
		metric.WithDescription("Storefront orders synced without error"),
		metric.WithUnit("{order}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.ordersFailed, err = meter.Int64Counter("storefront_orders_failed_total",
		metric.WithDescription("Storefront orders logged as failed"),
		metric.WithUnit("{order}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.documentsCreated, err = meter.Int64Counter("erp_documents_created_total",
		metric.WithDescription("ERP documents created by the sync"),
		metric.WithUnit("{document}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram("storefront_sync_run_duration_seconds",
		metric.WithDescription("Wall time of one sync run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(RunDurationBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	return &m, nil
}

// RecordOrderSynced counts a successfully synced order
func (m *SyncMetrics) RecordOrderSynced(ctx context.Context) {
	m.ordersSynced.Add(ctx, 1)
}

// RecordOrderFailed counts a failed order by error kind
func (m *SyncMetrics) RecordOrderFailed(ctx context.Context, kind string) {
	m.ordersFailed.Add(ctx, 1, metric.WithAttributes(AttrErrorKind.String(kind)))
}

// RecordDocumentCreated counts a created document by doctype
func (m *SyncMetrics) RecordDocumentCreated(ctx context.Context, doctype string) {
	m.documentsCreated.Add(ctx, 1, metric.WithAttributes(AttrDoctype.String(doctype)))
}

// RecordRun records the duration of a finished run
func (m *SyncMetrics) RecordRun(ctx context.Context, d time.Duration, aborted bool) {
	m.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrAborted.Bool(aborted)))
}
