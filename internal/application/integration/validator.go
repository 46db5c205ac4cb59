package integration

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/domain/shared"
	"go.uber.org/zap"
)

// ValidationReport is the auditable outcome of validating one order: the
// order itself, unchanged, plus every master record found or created for it.
type ValidationReport struct {
	Order       integration.StorefrontOrder
	Resolutions []integration.Resolution
}

// Created returns the resolutions that created a new master record
func (r *ValidationReport) Created() []integration.Resolution {
	created := make([]integration.Resolution, 0, len(r.Resolutions))
	for _, res := range r.Resolutions {
		if res.Outcome == integration.ResolutionCreated {
			created = append(created, res)
		}
	}
	return created
}

// OrderValidator makes sure every customer and item referenced by an order
// exists locally, backfilling missing master data from the storefront
type OrderValidator struct {
	lookup   integration.MasterDataLookup
	resolver integration.MasterDataResolver
	products integration.ProductSource
	logger   *zap.Logger
}

// NewOrderValidator creates a new OrderValidator
func NewOrderValidator(
	lookup integration.MasterDataLookup,
	resolver integration.MasterDataResolver,
	products integration.ProductSource,
	logger *zap.Logger,
) *OrderValidator {
	return &OrderValidator{
		lookup:   lookup,
		resolver: resolver,
		products: products,
		logger:   logger,
	}
}

// Validate fails with a ValidationError when the order has no customer.
// Missing customers and items are created through the MasterDataResolver.
func (v *OrderValidator) Validate(
	ctx context.Context,
	order integration.StorefrontOrder,
	settings integration.SyncSettings,
) (*ValidationReport, error) {
	if !order.HasCustomer() {
		return nil, integration.NewValidationError("missing customer")
	}

	report := &ValidationReport{Order: order}

	customer, err := v.resolveCustomer(ctx, *order.Customer)
	if err != nil {
		return nil, err
	}
	report.Resolutions = append(report.Resolutions, customer)

	seen := make(map[int64]struct{}, len(order.LineItems))
	for _, line := range order.LineItems {
		if line.ProductID == 0 {
			return nil, integration.NewValidationError(fmt.Sprintf("line item %q has no storefront product", line.Name))
		}
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}

		item, err := v.resolveItem(ctx, line.ProductID, settings.Warehouse)
		if err != nil {
			return nil, err
		}
		report.Resolutions = append(report.Resolutions, item)
	}

	if created := report.Created(); len(created) > 0 {
		v.logger.Info("Backfilled master data for storefront order",
			zap.String("storefront_order_id", order.ExternalID()),
			zap.Int("created", len(created)),
		)
	}
	return report, nil
}

func (v *OrderValidator) resolveCustomer(ctx context.Context, customer integration.StorefrontCustomer) (integration.Resolution, error) {
	externalID := strconv.FormatInt(customer.ID, 10)
	name, err := v.lookup.FindCustomerByStorefrontID(ctx, customer.ID)
	if err == nil {
		return integration.Resolution{
			Kind:       integration.ResolutionKindCustomer,
			ExternalID: externalID,
			LocalName:  name,
			Outcome:    integration.ResolutionFound,
		}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return integration.Resolution{}, &integration.TransientDocumentError{Step: "lookup_customer", Err: err}
	}

	res, err := v.resolver.EnsureCustomer(ctx, customer)
	if err != nil {
		return integration.Resolution{}, &integration.TransientDocumentError{Step: "ensure_customer", Err: err}
	}
	return res, nil
}

func (v *OrderValidator) resolveItem(ctx context.Context, productID int64, warehouse string) (integration.Resolution, error) {
	externalID := strconv.FormatInt(productID, 10)
	code, err := v.lookup.FindItemCodeByProductID(ctx, productID)
	if err == nil {
		return integration.Resolution{
			Kind:       integration.ResolutionKindItem,
			ExternalID: externalID,
			LocalName:  code,
			Outcome:    integration.ResolutionFound,
		}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return integration.Resolution{}, &integration.TransientDocumentError{Step: "lookup_item", Err: err}
	}

	product, err := v.products.GetProduct(ctx, productID)
	if err != nil {
		// an UpstreamFatalError stays reachable through %w
		return integration.Resolution{}, fmt.Errorf("fetch storefront product %d: %w", productID, err)
	}

	res, err := v.resolver.EnsureItem(ctx, warehouse, *product)
	if err != nil {
		return integration.Resolution{}, &integration.TransientDocumentError{Step: "ensure_item", Err: err}
	}
	return res, nil
}
