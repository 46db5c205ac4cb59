package trade

import (
	"fmt"
	"time"

	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesOrderItem represents a line item in a sales order
type SalesOrderItem struct {
	ID           uuid.UUID
	ItemCode     string
	ItemName     string
	Rate         decimal.Decimal
	Qty          decimal.Decimal
	DeliveryDate time.Time
	StockUOM     string
	Warehouse    string
	BilledQty    decimal.Decimal
	DeliveredQty decimal.Decimal
}

// Amount returns rate * qty
func (i SalesOrderItem) Amount() decimal.Decimal {
	return i.Rate.Mul(i.Qty)
}

// UnbilledQty returns the quantity not yet invoiced
func (i SalesOrderItem) UnbilledQty() decimal.Decimal {
	return i.Qty.Sub(i.BilledQty)
}

// UndeliveredQty returns the quantity not yet shipped
func (i SalesOrderItem) UndeliveredQty() decimal.Decimal {
	return i.Qty.Sub(i.DeliveredQty)
}

// SalesOrder is the first document materialized for a storefront order.
// At most one exists per StorefrontOrderID; it is never updated on re-sync.
type SalesOrder struct {
	shared.BaseEntity
	Name              string
	NamingSeries      string
	StorefrontOrderID string
	Customer          string
	Company           string
	PriceList         string
	TransactionDate   time.Time
	DeliveryDate      time.Time
	IgnorePricingRule bool
	ApplyDiscountOn   string
	DiscountAmount    decimal.Decimal
	Items             []SalesOrderItem
	Taxes             []TaxRow
	DocStatus         DocStatus
}

// NewSalesOrder creates a draft sales order for a storefront order
func NewSalesOrder(storefrontOrderID, customer, company string, date time.Time) (*SalesOrder, error) {
	if storefrontOrderID == "" {
		return nil, shared.NewDomainError("INVALID_STOREFRONT_ORDER", "Storefront order ID cannot be empty")
	}
	if customer == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer cannot be empty")
	}
	if company == "" {
		return nil, shared.NewDomainError("INVALID_COMPANY", "Company cannot be empty")
	}

	return &SalesOrder{
		BaseEntity:        shared.NewBaseEntity(),
		StorefrontOrderID: storefrontOrderID,
		Customer:          customer,
		Company:           company,
		TransactionDate:   date,
		DeliveryDate:      date,
		IgnorePricingRule: true,
		ApplyDiscountOn:   ApplyDiscountOnGrandTotal,
		DiscountAmount:    decimal.Zero,
		Items:             make([]SalesOrderItem, 0),
		DocStatus:         DocStatusDraft,
	}, nil
}

// AddItem appends a line. Only allowed while Draft.
func (o *SalesOrder) AddItem(item SalesOrderItem) error {
	if o.DocStatus != DocStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Cannot add items to a submitted sales order")
	}
	if item.Qty.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("Quantity for %s must be positive", item.ItemName))
	}
	if item.Rate.IsNegative() {
		return shared.NewDomainError("INVALID_RATE", fmt.Sprintf("Rate for %s cannot be negative", item.ItemName))
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	o.Items = append(o.Items, item)
	return nil
}

// SetTaxes replaces the taxes-and-charges table
func (o *SalesOrder) SetTaxes(taxes []TaxRow) {
	o.Taxes = copyTaxes(taxes)
}

// ApplyDiscount sets the discount taken off the grand total
func (o *SalesOrder) ApplyDiscount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_DISCOUNT", "Discount cannot be negative")
	}
	o.DiscountAmount = amount
	o.ApplyDiscountOn = ApplyDiscountOnGrandTotal
	return nil
}

// Submit finalizes the order, transitioning from Draft to Submitted
func (o *SalesOrder) Submit() error {
	if o.DocStatus != DocStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot submit sales order in %s status", o.DocStatus))
	}
	if len(o.Items) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot submit sales order without items")
	}
	for _, item := range o.Items {
		if item.ItemCode == "" {
			return shared.NewDomainError("MISSING_ITEM_CODE", fmt.Sprintf("Item code missing for %s", item.ItemName))
		}
	}
	o.DocStatus = DocStatusSubmitted
	o.Touch()
	return nil
}

// IsSubmitted returns true if the order is Submitted
func (o *SalesOrder) IsSubmitted() bool {
	return o.DocStatus == DocStatusSubmitted
}

// NetTotal returns the sum of line amounts
func (o *SalesOrder) NetTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Amount())
	}
	return total
}

// GrandTotal returns net total plus added taxes minus discount
func (o *SalesOrder) GrandTotal() decimal.Decimal {
	return computeGrandTotal(o.NetTotal(), o.Taxes, o.DiscountAmount)
}

// TotalQty returns the sum of ordered quantities
func (o *SalesOrder) TotalQty() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Qty)
	}
	return total
}

// PerBilled returns the billed percentage of ordered quantity
func (o *SalesOrder) PerBilled() decimal.Decimal {
	return o.percentOf(func(i SalesOrderItem) decimal.Decimal { return i.BilledQty })
}

// PerDelivered returns the delivered percentage of ordered quantity
func (o *SalesOrder) PerDelivered() decimal.Decimal {
	return o.percentOf(func(i SalesOrderItem) decimal.Decimal { return i.DeliveredQty })
}

// IsFullyUnbilled returns true if no quantity has been invoiced yet
func (o *SalesOrder) IsFullyUnbilled() bool {
	return o.PerBilled().IsZero()
}

func (o *SalesOrder) percentOf(qty func(SalesOrderItem) decimal.Decimal) decimal.Decimal {
	total := o.TotalQty()
	if total.IsZero() {
		return decimal.Zero
	}
	done := decimal.Zero
	for _, item := range o.Items {
		done = done.Add(qty(item))
	}
	return done.Div(total).Mul(hundred).Round(2)
}

// GetItem returns the item with the given ID, or nil
func (o *SalesOrder) GetItem(itemID uuid.UUID) *SalesOrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// MarkBilled adds the invoice quantities to the matching order lines
func (o *SalesOrder) MarkBilled(si *SalesInvoice) error {
	for _, line := range si.Items {
		item := o.GetItem(line.SalesOrderItemID)
		if item == nil {
			return shared.NewDomainError("ITEM_NOT_FOUND", fmt.Sprintf("Sales order %s has no line %s", o.Name, line.SalesOrderItemID))
		}
		item.BilledQty = item.BilledQty.Add(line.Qty)
	}
	o.Touch()
	return nil
}

// MarkDelivered adds the delivery note quantities to the matching order lines
func (o *SalesOrder) MarkDelivered(dn *DeliveryNote) error {
	for _, line := range dn.Items {
		item := o.GetItem(line.SalesOrderItemID)
		if item == nil {
			return shared.NewDomainError("ITEM_NOT_FOUND", fmt.Sprintf("Sales order %s has no line %s", o.Name, line.SalesOrderItemID))
		}
		item.DeliveredQty = item.DeliveredQty.Add(line.Qty)
	}
	o.Touch()
	return nil
}
