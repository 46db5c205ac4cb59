package integration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/erp/storefront-sync/internal/domain/trade"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ---------------------------------------------------------------------------
// Item code resolution
// ---------------------------------------------------------------------------

// ItemCodeResolver maps a storefront line item to a local item code.
// An empty code with a nil error means no local item is mapped.
type ItemCodeResolver interface {
	Resolve(ctx context.Context, line integration.LineItem) (string, error)
}

// LookupItemCodeResolver resolves by variant id first, then by product id
type LookupItemCodeResolver struct {
	lookup integration.MasterDataLookup
}

// NewLookupItemCodeResolver creates a resolver backed by master data
func NewLookupItemCodeResolver(lookup integration.MasterDataLookup) *LookupItemCodeResolver {
	return &LookupItemCodeResolver{lookup: lookup}
}

// Resolve implements ItemCodeResolver
func (r *LookupItemCodeResolver) Resolve(ctx context.Context, line integration.LineItem) (string, error) {
	if line.VariantID != 0 {
		code, err := r.lookup.FindItemCodeByVariantID(ctx, line.VariantID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return "", err
		}
		if code != "" {
			return code, nil
		}
	}
	if line.ProductID != 0 {
		code, err := r.lookup.FindItemCodeByProductID(ctx, line.ProductID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return "", err
		}
		return code, nil
	}
	return "", nil
}

// ItemCodeCache memoizes resolved item codes by a line's product/variant key
type ItemCodeCache interface {
	Get(key string) (string, bool)
	Add(key, code string)
}

// CachedItemCodeResolver caches successful resolutions. Misses are never
// cached, so an item created by the validator is picked up on the next call.
type CachedItemCodeResolver struct {
	next  ItemCodeResolver
	cache ItemCodeCache
}

// NewCachedItemCodeResolver wraps next with cache
func NewCachedItemCodeResolver(next ItemCodeResolver, cache ItemCodeCache) *CachedItemCodeResolver {
	return &CachedItemCodeResolver{next: next, cache: cache}
}

// Resolve implements ItemCodeResolver
func (r *CachedItemCodeResolver) Resolve(ctx context.Context, line integration.LineItem) (string, error) {
	key := itemCacheKey(line)
	if code, ok := r.cache.Get(key); ok {
		return code, nil
	}
	code, err := r.next.Resolve(ctx, line)
	if err != nil || code == "" {
		return code, err
	}
	r.cache.Add(key, code)
	return code, nil
}

func itemCacheKey(line integration.LineItem) string {
	return strconv.FormatInt(line.ProductID, 10) + "/" + strconv.FormatInt(line.VariantID, 10)
}

// ---------------------------------------------------------------------------
// Order lines, taxes, discounts
// ---------------------------------------------------------------------------

// BuildOrderLines maps storefront line items to sales order lines. A line
// whose item cannot be resolved is a ConfigurationError: the validator should
// have created the item.
func BuildOrderLines(
	ctx context.Context,
	resolver ItemCodeResolver,
	lines []integration.LineItem,
	settings integration.SyncSettings,
	deliveryDate time.Time,
) ([]trade.SalesOrderItem, error) {
	items := make([]trade.SalesOrderItem, 0, len(lines))
	for _, line := range lines {
		code, err := resolver.Resolve(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("resolve item for line %d: %w", line.ID, err)
		}
		if code == "" {
			return nil, integration.NewConfigurationError("items",
				"no local item for storefront product %d variant %d (%s)", line.ProductID, line.VariantID, line.Name)
		}
		items = append(items, trade.SalesOrderItem{
			ItemCode:     code,
			ItemName:     line.Name,
			Rate:         line.Price,
			DeliveryDate: deliveryDate,
			Qty:          decimal.NewFromInt(line.Quantity),
			StockUOM:     line.SKU,
			Warehouse:    settings.Warehouse,
		})
	}
	return items, nil
}

// BuildTaxLines maps order tax lines to "On Net Total" rows and shipping
// lines to "Actual" rows. Every title must map to a tax account.
func BuildTaxLines(order integration.StorefrontOrder, settings integration.SyncSettings) ([]trade.TaxRow, error) {
	rows := make([]trade.TaxRow, 0, len(order.TaxLines)+len(order.ShippingLines))
	for _, tax := range order.TaxLines {
		account, err := settings.TaxAccount(tax.Title)
		if err != nil {
			return nil, err
		}
		rate := tax.Rate.Mul(hundred)
		rows = append(rows, trade.TaxRow{
			ChargeType:          trade.ChargeTypeOnNetTotal,
			AccountHead:         account,
			Description:         fmt.Sprintf("%s - %s%%", tax.Title, percentString(rate)),
			Rate:                rate,
			IncludedInPrintRate: order.TaxesIncluded,
			CostCenter:          settings.CostCenter,
		})
	}
	for _, shipping := range order.ShippingLines {
		account, err := settings.TaxAccount(shipping.Title)
		if err != nil {
			return nil, err
		}
		rows = append(rows, trade.TaxRow{
			ChargeType:  trade.ChargeTypeActual,
			AccountHead: account,
			Description: shipping.Title,
			Rate:        decimal.Zero,
			TaxAmount:   shipping.Price,
			CostCenter:  settings.CostCenter,
		})
	}
	return rows, nil
}

// ComputeDiscountTotal sums every discount code amount; absent amounts are zero
func ComputeDiscountTotal(order integration.StorefrontOrder) decimal.Decimal {
	total := decimal.Zero
	for _, code := range order.DiscountCodes {
		total = total.Add(code.Amount)
	}
	return total
}

// ---------------------------------------------------------------------------
// Fulfillment matching
// ---------------------------------------------------------------------------

// FulfillmentMatch is the outcome of matching fulfillment lines to a note
type FulfillmentMatch struct {
	// Items are the delivery note lines that received a fulfilled quantity
	Items []trade.DeliveryNoteItem
	// Unmatched are fulfillment lines with no delivery note line for their item
	Unmatched []integration.LineItem
}

// MatchFulfillmentLines overwrites delivery note quantities with the
// fulfilled quantities, matched by resolved item code. Note lines that no
// fulfillment line touches are dropped. In strict mode an unmatched
// fulfillment line is a ConfigurationError; in lenient mode it is returned
// in Unmatched for the caller to log.
func MatchFulfillmentLines(
	ctx context.Context,
	resolver ItemCodeResolver,
	noteLines []trade.DeliveryNoteItem,
	fulfillmentLines []integration.LineItem,
	mode integration.FulfillmentMatchMode,
) (*FulfillmentMatch, error) {
	qtyByIndex := make(map[int]decimal.Decimal)
	result := &FulfillmentMatch{}

	for _, line := range fulfillmentLines {
		code, err := resolver.Resolve(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("resolve item for fulfillment line %d: %w", line.ID, err)
		}
		matched := false
		if code != "" {
			for i, noteLine := range noteLines {
				if noteLine.ItemCode == code {
					qtyByIndex[i] = decimal.NewFromInt(line.Quantity)
					matched = true
				}
			}
		}
		if matched {
			continue
		}
		if mode == integration.FulfillmentMatchStrict {
			return nil, integration.NewConfigurationError("fulfillment_match_mode",
				"fulfillment line %d (%s) matches no delivery note line", line.ID, line.Name)
		}
		result.Unmatched = append(result.Unmatched, line)
	}

	for i, noteLine := range noteLines {
		qty, ok := qtyByIndex[i]
		if !ok {
			continue
		}
		noteLine.Qty = qty
		result.Items = append(result.Items, noteLine)
	}
	return result, nil
}

// percentString renders a percentage with at least one decimal place,
// so 20 becomes "20.0" and 7.25 stays "7.25"
func percentString(rate decimal.Decimal) string {
	if rate.Exponent() >= 0 || rate.Equal(rate.Truncate(0)) {
		return rate.StringFixed(1)
	}
	return rate.String()
}
