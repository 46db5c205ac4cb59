package trade

import (
	"fmt"
	"time"

	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesInvoiceItem is one billed line, linked back to its sales order line
type SalesInvoiceItem struct {
	ID               uuid.UUID
	SalesOrderItemID uuid.UUID
	ItemCode         string
	ItemName         string
	Qty              decimal.Decimal
	Rate             decimal.Decimal
	Warehouse        string
	CostCenter       string
}

// Amount returns rate * qty
func (i SalesInvoiceItem) Amount() decimal.Decimal {
	return i.Rate.Mul(i.Qty)
}

// SalesInvoice bills a submitted sales order. At most one exists per
// StorefrontOrderID.
type SalesInvoice struct {
	shared.BaseEntity
	Name              string
	NamingSeries      string
	StorefrontOrderID string
	SalesOrderName    string
	Customer          string
	Company           string
	PostingDate       time.Time
	DiscountAmount    decimal.Decimal
	Items             []SalesInvoiceItem
	Taxes             []TaxRow
	DocStatus         DocStatus
}

// MakeSalesInvoice derives an invoice for the unbilled quantity of so
func MakeSalesInvoice(so *SalesOrder, postingDate time.Time) (*SalesInvoice, error) {
	if so == nil {
		return nil, shared.NewDomainError("INVALID_SALES_ORDER", "Sales order is required")
	}
	if !so.IsSubmitted() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot bill sales order %s in %s status", so.Name, so.DocStatus))
	}

	si := &SalesInvoice{
		BaseEntity:        shared.NewBaseEntity(),
		StorefrontOrderID: so.StorefrontOrderID,
		SalesOrderName:    so.Name,
		Customer:          so.Customer,
		Company:           so.Company,
		PostingDate:       postingDate,
		DiscountAmount:    so.DiscountAmount,
		Taxes:             copyTaxes(so.Taxes),
		DocStatus:         DocStatusDraft,
	}
	for _, item := range so.Items {
		qty := item.UnbilledQty()
		if qty.LessThanOrEqual(decimal.Zero) {
			continue
		}
		si.Items = append(si.Items, SalesInvoiceItem{
			ID:               uuid.New(),
			SalesOrderItemID: item.ID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Qty:              qty,
			Rate:             item.Rate,
			Warehouse:        item.Warehouse,
		})
	}
	if len(si.Items) == 0 {
		return nil, shared.NewDomainError("NOTHING_TO_BILL", fmt.Sprintf("Sales order %s is fully billed", so.Name))
	}
	return si, nil
}

// SetCostCenter overrides the cost center on every line
func (si *SalesInvoice) SetCostCenter(costCenter string) {
	for i := range si.Items {
		si.Items[i].CostCenter = costCenter
	}
}

// NetTotal returns the sum of line amounts
func (si *SalesInvoice) NetTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range si.Items {
		total = total.Add(item.Amount())
	}
	return total
}

// GrandTotal returns net total plus added taxes minus discount
func (si *SalesInvoice) GrandTotal() decimal.Decimal {
	return computeGrandTotal(si.NetTotal(), si.Taxes, si.DiscountAmount)
}

// Submit finalizes the invoice
func (si *SalesInvoice) Submit() error {
	if si.DocStatus != DocStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot submit sales invoice in %s status", si.DocStatus))
	}
	if len(si.Items) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot submit sales invoice without items")
	}
	si.DocStatus = DocStatusSubmitted
	si.Touch()
	return nil
}

// IsSubmitted returns true if the invoice is Submitted
func (si *SalesInvoice) IsSubmitted() bool {
	return si.DocStatus == DocStatusSubmitted
}
