package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/erp/storefront-sync/internal/domain/trade"
	"github.com/erp/storefront-sync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// StepName identifies one document step of the pipeline
type StepName string

const (
	StepSalesOrder   StepName = "sales_order"
	StepSalesInvoice StepName = "sales_invoice"
	StepDeliveryNote StepName = "delivery_note"
)

// StepOutcome is what a pipeline step did
type StepOutcome string

const (
	StepCreated  StepOutcome = "CREATED"
	StepExisting StepOutcome = "EXISTING"
	StepSkipped  StepOutcome = "SKIPPED"
)

// Doctype labels used for metrics
const (
	DoctypeSalesOrder   = "Sales Order"
	DoctypeSalesInvoice = "Sales Invoice"
	DoctypeDeliveryNote = "Delivery Note"
)

// StepResult records the outcome of one step
type StepResult struct {
	Step          StepName
	Outcome       StepOutcome
	DocumentName  string
	FulfillmentID string
	Reason        string
}

// PipelineResult lists every step taken for one order, in execution order
type PipelineResult struct {
	StorefrontOrderID string
	Steps             []StepResult
	// UnmatchedLines holds, per fulfillment id, the fulfillment lines dropped
	// in lenient match mode
	UnmatchedLines map[string][]integration.LineItem
}

// Count returns how many steps ended with outcome
func (r *PipelineResult) Count(outcome StepOutcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}

// Step returns the first result for step, if any
func (r *PipelineResult) Step(step StepName) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r *PipelineResult) record(s StepResult) {
	r.Steps = append(r.Steps, s)
}

// DocumentSyncPipeline materializes the document chain of one storefront
// order: SalesOrder, then SalesInvoice with PaymentEntry, then one
// DeliveryNote per fulfillment. Every step looks up its document by
// storefront key first and only creates what is missing, so re-running an
// order resumes at the first missing document. Each create is committed on
// its own; a failure stops the order without undoing earlier steps.
type DocumentSyncPipeline struct {
	store     trade.DocumentStore
	customers integration.MasterDataLookup
	items     ItemCodeResolver
	logger    *zap.Logger
	now       func() time.Time
	metrics   *telemetry.SyncMetrics
}

// NewDocumentSyncPipeline creates a new DocumentSyncPipeline
func NewDocumentSyncPipeline(
	store trade.DocumentStore,
	customers integration.MasterDataLookup,
	items ItemCodeResolver,
	logger *zap.Logger,
) *DocumentSyncPipeline {
	return &DocumentSyncPipeline{
		store:     store,
		customers: customers,
		items:     items,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the clock used for document dates
func (p *DocumentSyncPipeline) SetClock(now func() time.Time) {
	p.now = now
}

// SetSyncMetrics sets the metrics collector
func (p *DocumentSyncPipeline) SetSyncMetrics(m *telemetry.SyncMetrics) {
	p.metrics = m
}

// Sync runs the pipeline for order. A non-empty companyOverride forces the
// sales order company and leaves it in Draft, which skips every downstream
// step. The returned result is valid even when err is non-nil.
func (p *DocumentSyncPipeline) Sync(
	ctx context.Context,
	order integration.StorefrontOrder,
	settings integration.SyncSettings,
	companyOverride string,
) (*PipelineResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "sync.order", telemetry.SpanAttrStorefrontOrderID, order.ExternalID())
	defer span.End()

	result := &PipelineResult{StorefrontOrderID: order.ExternalID()}
	today := p.today()

	so, err := p.ensureSalesOrder(ctx, order, settings, companyOverride, today, result)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	if err := p.ensureSalesInvoice(ctx, order, so, settings, today, result); err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	if err := p.ensureDeliveryNotes(ctx, order, so, settings, today, result); err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	return result, nil
}

// today is the local calendar date of the injected clock
func (p *DocumentSyncPipeline) today() time.Time {
	now := p.now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// ---------------------------------------------------------------------------
// Step 1: SalesOrder
// ---------------------------------------------------------------------------

func (p *DocumentSyncPipeline) ensureSalesOrder(
	ctx context.Context,
	order integration.StorefrontOrder,
	settings integration.SyncSettings,
	companyOverride string,
	today time.Time,
	result *PipelineResult,
) (*trade.SalesOrder, error) {
	ctx, span := telemetry.StartSpan(ctx, "sync.sales_order", telemetry.SpanAttrStorefrontOrderID, order.ExternalID())
	defer span.End()

	existing, err := p.findSalesOrder(ctx, order.ExternalID())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.record(StepResult{Step: StepSalesOrder, Outcome: StepExisting, DocumentName: existing.Name})
		return existing, nil
	}

	so, err := p.buildSalesOrder(ctx, order, settings, companyOverride, today)
	if err != nil {
		return nil, err
	}

	if err := p.store.CreateSalesOrder(ctx, so); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return nil, documentError(StepSalesOrder, err)
		}
		// another runner created it between lookup and create
		existing, findErr := p.findSalesOrder(ctx, order.ExternalID())
		if findErr != nil || existing == nil {
			return nil, documentError(StepSalesOrder, err)
		}
		result.record(StepResult{Step: StepSalesOrder, Outcome: StepExisting, DocumentName: existing.Name})
		return existing, nil
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentName, so.Name)
	p.recordCreated(ctx, DoctypeSalesOrder)
	result.record(StepResult{Step: StepSalesOrder, Outcome: StepCreated, DocumentName: so.Name})
	p.logger.Info("Created sales order",
		zap.String("storefront_order_id", order.ExternalID()),
		zap.String("sales_order", so.Name),
		zap.Stringer("doc_status", so.DocStatus),
	)
	return so, nil
}

func (p *DocumentSyncPipeline) findSalesOrder(ctx context.Context, storefrontOrderID string) (*trade.SalesOrder, error) {
	so, err := p.store.FindSalesOrderByStorefrontID(ctx, storefrontOrderID)
	if err == nil {
		return so, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return nil, documentError(StepSalesOrder, err)
}

func (p *DocumentSyncPipeline) buildSalesOrder(
	ctx context.Context,
	order integration.StorefrontOrder,
	settings integration.SyncSettings,
	companyOverride string,
	today time.Time,
) (*trade.SalesOrder, error) {
	if !order.HasCustomer() {
		return nil, integration.NewValidationError("missing customer")
	}
	customer, err := p.customers.FindCustomerByStorefrontID(ctx, order.Customer.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, integration.NewValidationError(fmt.Sprintf("no local customer for storefront customer %d", order.Customer.ID))
		}
		return nil, documentError(StepSalesOrder, err)
	}

	company := settings.Company
	if companyOverride != "" {
		company = companyOverride
	}

	so, err := trade.NewSalesOrder(order.ExternalID(), customer, company, today)
	if err != nil {
		return nil, documentError(StepSalesOrder, err)
	}
	so.NamingSeries = settings.SalesOrderNamingSeries()
	so.PriceList = settings.PriceList

	lines, err := BuildOrderLines(ctx, p.items, order.LineItems, settings, today)
	if err != nil {
		return nil, documentError(StepSalesOrder, err)
	}
	for _, line := range lines {
		if err := so.AddItem(line); err != nil {
			return nil, documentError(StepSalesOrder, err)
		}
	}

	taxes, err := BuildTaxLines(order, settings)
	if err != nil {
		return nil, documentError(StepSalesOrder, err)
	}
	so.SetTaxes(taxes)

	if err := so.ApplyDiscount(ComputeDiscountTotal(order)); err != nil {
		return nil, documentError(StepSalesOrder, err)
	}

	if companyOverride == "" {
		if err := so.Submit(); err != nil {
			return nil, documentError(StepSalesOrder, err)
		}
	}
	return so, nil
}

// ---------------------------------------------------------------------------
// Step 2: SalesInvoice + PaymentEntry
// ---------------------------------------------------------------------------

func (p *DocumentSyncPipeline) ensureSalesInvoice(
	ctx context.Context,
	order integration.StorefrontOrder,
	so *trade.SalesOrder,
	settings integration.SyncSettings,
	today time.Time,
	result *PipelineResult,
) error {
	skip := func(reason string) error {
		result.record(StepResult{Step: StepSalesInvoice, Outcome: StepSkipped, Reason: reason})
		return nil
	}

	if !order.FinancialStatus.IsPaid() {
		return skip(fmt.Sprintf("financial status is %q", order.FinancialStatus))
	}
	if !settings.SyncSalesInvoice {
		return skip("invoice sync disabled")
	}

	ctx, span := telemetry.StartSpan(ctx, "sync.sales_invoice", telemetry.SpanAttrStorefrontOrderID, order.ExternalID())
	defer span.End()

	existing, err := p.findSalesInvoice(ctx, order.ExternalID())
	if err != nil {
		return err
	}
	if existing != nil {
		result.record(StepResult{Step: StepSalesInvoice, Outcome: StepExisting, DocumentName: existing.Name})
		return nil
	}
	if !so.IsSubmitted() {
		return skip("sales order not submitted")
	}
	if !so.IsFullyUnbilled() {
		return skip("sales order already billed")
	}

	si, err := trade.MakeSalesInvoice(so, today)
	if err != nil {
		return documentError(StepSalesInvoice, err)
	}
	si.NamingSeries = settings.SalesInvoiceNamingSeries()
	si.SetCostCenter(settings.CostCenter)
	if err := si.Submit(); err != nil {
		return documentError(StepSalesInvoice, err)
	}

	pe, err := trade.NewPaymentEntryForInvoice(si, settings.CashBankAccount, today)
	if err != nil {
		return documentError(StepSalesInvoice, err)
	}
	pe.NamingSeries = integration.DefaultPaymentEntrySeries
	if err := pe.Submit(); err != nil {
		return documentError(StepSalesInvoice, err)
	}

	if err := p.store.CreateSalesInvoice(ctx, si, pe); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return documentError(StepSalesInvoice, err)
		}
		existing, findErr := p.findSalesInvoice(ctx, order.ExternalID())
		if findErr != nil || existing == nil {
			return documentError(StepSalesInvoice, err)
		}
		result.record(StepResult{Step: StepSalesInvoice, Outcome: StepExisting, DocumentName: existing.Name})
		return nil
	}
	if err := so.MarkBilled(si); err != nil {
		return documentError(StepSalesInvoice, err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentName, si.Name)
	p.recordCreated(ctx, DoctypeSalesInvoice)
	result.record(StepResult{Step: StepSalesInvoice, Outcome: StepCreated, DocumentName: si.Name})
	p.logger.Info("Created sales invoice and payment entry",
		zap.String("storefront_order_id", order.ExternalID()),
		zap.String("sales_invoice", si.Name),
		zap.String("payment_entry", pe.Name),
		zap.String("paid_amount", pe.PaidAmount.String()),
	)
	return nil
}

func (p *DocumentSyncPipeline) findSalesInvoice(ctx context.Context, storefrontOrderID string) (*trade.SalesInvoice, error) {
	si, err := p.store.FindSalesInvoiceByStorefrontID(ctx, storefrontOrderID)
	if err == nil {
		return si, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return nil, documentError(StepSalesInvoice, err)
}

// ---------------------------------------------------------------------------
// Step 3: DeliveryNote per fulfillment
// ---------------------------------------------------------------------------

func (p *DocumentSyncPipeline) ensureDeliveryNotes(
	ctx context.Context,
	order integration.StorefrontOrder,
	so *trade.SalesOrder,
	settings integration.SyncSettings,
	today time.Time,
	result *PipelineResult,
) error {
	if len(order.Fulfillments) == 0 {
		return nil
	}
	if !settings.SyncDeliveryNote {
		result.record(StepResult{Step: StepDeliveryNote, Outcome: StepSkipped, Reason: "delivery note sync disabled"})
		return nil
	}
	for _, fulfillment := range order.Fulfillments {
		if err := p.ensureDeliveryNote(ctx, order, fulfillment, so, settings, today, result); err != nil {
			return err
		}
	}
	return nil
}

func (p *DocumentSyncPipeline) ensureDeliveryNote(
	ctx context.Context,
	order integration.StorefrontOrder,
	fulfillment integration.Fulfillment,
	so *trade.SalesOrder,
	settings integration.SyncSettings,
	today time.Time,
	result *PipelineResult,
) error {
	fulfillmentID := fulfillment.ExternalID()
	ctx, span := telemetry.StartSpan(ctx, "sync.delivery_note",
		telemetry.SpanAttrStorefrontOrderID, order.ExternalID(),
		telemetry.SpanAttrFulfillmentID, fulfillmentID,
	)
	defer span.End()

	skip := func(reason string) error {
		result.record(StepResult{Step: StepDeliveryNote, Outcome: StepSkipped, FulfillmentID: fulfillmentID, Reason: reason})
		return nil
	}

	existing, err := p.findDeliveryNote(ctx, fulfillmentID)
	if err != nil {
		return err
	}
	if existing != nil {
		result.record(StepResult{Step: StepDeliveryNote, Outcome: StepExisting, DocumentName: existing.Name, FulfillmentID: fulfillmentID})
		return nil
	}
	if !so.IsSubmitted() {
		return skip("sales order not submitted")
	}

	dn, err := trade.MakeDeliveryNote(so, today)
	if err != nil {
		return documentError(StepDeliveryNote, err)
	}
	dn.NamingSeries = settings.DeliveryNoteNamingSeries()
	dn.StorefrontFulfillmentID = fulfillmentID
	if fulfillment.OrderID != 0 {
		dn.StorefrontOrderID = fulfillment.ExternalOrderID()
	}

	match, err := MatchFulfillmentLines(ctx, p.items, dn.Items, fulfillment.LineItems, settings.MatchMode())
	if err != nil {
		return documentError(StepDeliveryNote, err)
	}
	if len(match.Unmatched) > 0 {
		if result.UnmatchedLines == nil {
			result.UnmatchedLines = make(map[string][]integration.LineItem)
		}
		result.UnmatchedLines[fulfillmentID] = match.Unmatched
		p.logger.Warn("Dropped fulfillment lines with no delivery note line",
			zap.String("storefront_order_id", order.ExternalID()),
			zap.String("fulfillment_id", fulfillmentID),
			zap.Int("unmatched", len(match.Unmatched)),
		)
	}
	if len(match.Items) == 0 {
		return skip("no fulfillment line matches an undelivered sales order line")
	}

	if err := dn.ReplaceItems(match.Items); err != nil {
		return documentError(StepDeliveryNote, err)
	}
	if err := dn.Submit(); err != nil {
		return documentError(StepDeliveryNote, err)
	}

	if err := p.store.CreateDeliveryNote(ctx, dn); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return documentError(StepDeliveryNote, err)
		}
		existing, findErr := p.findDeliveryNote(ctx, fulfillmentID)
		if findErr != nil || existing == nil {
			return documentError(StepDeliveryNote, err)
		}
		result.record(StepResult{Step: StepDeliveryNote, Outcome: StepExisting, DocumentName: existing.Name, FulfillmentID: fulfillmentID})
		return nil
	}
	if err := so.MarkDelivered(dn); err != nil {
		return documentError(StepDeliveryNote, err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentName, dn.Name)
	p.recordCreated(ctx, DoctypeDeliveryNote)
	result.record(StepResult{Step: StepDeliveryNote, Outcome: StepCreated, DocumentName: dn.Name, FulfillmentID: fulfillmentID})
	p.logger.Info("Created delivery note",
		zap.String("storefront_order_id", order.ExternalID()),
		zap.String("fulfillment_id", fulfillmentID),
		zap.String("delivery_note", dn.Name),
	)
	return nil
}

func (p *DocumentSyncPipeline) findDeliveryNote(ctx context.Context, fulfillmentID string) (*trade.DeliveryNote, error) {
	dn, err := p.store.FindDeliveryNoteByFulfillmentID(ctx, fulfillmentID)
	if err == nil {
		return dn, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return nil, documentError(StepDeliveryNote, err)
}

func (p *DocumentSyncPipeline) recordCreated(ctx context.Context, doctype string) {
	if p.metrics != nil {
		p.metrics.RecordDocumentCreated(ctx, doctype)
	}
}

// documentError keeps errors that already carry a sync error kind and wraps
// everything else as a TransientDocumentError for step
func documentError(step StepName, err error) error {
	if integration.ClassifyError(err) != integration.ErrorKindUnknown {
		return fmt.Errorf("%s: %w", step, err)
	}
	return &integration.TransientDocumentError{Step: string(step), Err: err}
}
