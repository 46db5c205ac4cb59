package trade

import (
	"fmt"
	"time"

	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryNoteItem is one shipped line, linked back to its sales order line
type DeliveryNoteItem struct {
	ID               uuid.UUID
	SalesOrderItemID uuid.UUID
	ItemCode         string
	ItemName         string
	Qty              decimal.Decimal
	Rate             decimal.Decimal
	StockUOM         string
	Warehouse        string
}

// DeliveryNote records one storefront fulfillment. At most one exists per
// StorefrontFulfillmentID.
type DeliveryNote struct {
	shared.BaseEntity
	Name                    string
	NamingSeries            string
	StorefrontOrderID       string
	StorefrontFulfillmentID string
	SalesOrderName          string
	Customer                string
	Company                 string
	PostingDate             time.Time
	Items                   []DeliveryNoteItem
	DocStatus               DocStatus
}

// MakeDeliveryNote derives a note for the undelivered quantity of so
func MakeDeliveryNote(so *SalesOrder, postingDate time.Time) (*DeliveryNote, error) {
	if so == nil {
		return nil, shared.NewDomainError("INVALID_SALES_ORDER", "Sales order is required")
	}
	if !so.IsSubmitted() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot deliver sales order %s in %s status", so.Name, so.DocStatus))
	}

	dn := &DeliveryNote{
		BaseEntity:        shared.NewBaseEntity(),
		StorefrontOrderID: so.StorefrontOrderID,
		SalesOrderName:    so.Name,
		Customer:          so.Customer,
		Company:           so.Company,
		PostingDate:       postingDate,
		DocStatus:         DocStatusDraft,
	}
	for _, item := range so.Items {
		qty := item.UndeliveredQty()
		if qty.LessThanOrEqual(decimal.Zero) {
			continue
		}
		dn.Items = append(dn.Items, DeliveryNoteItem{
			ID:               uuid.New(),
			SalesOrderItemID: item.ID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Qty:              qty,
			Rate:             item.Rate,
			StockUOM:         item.StockUOM,
			Warehouse:        item.Warehouse,
		})
	}
	return dn, nil
}

// ReplaceItems swaps in the lines actually shipped by the fulfillment
func (dn *DeliveryNote) ReplaceItems(items []DeliveryNoteItem) error {
	if dn.DocStatus != DocStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Cannot change items of a submitted delivery note")
	}
	dn.Items = items
	return nil
}

// Submit finalizes the note
func (dn *DeliveryNote) Submit() error {
	if dn.DocStatus != DocStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot submit delivery note in %s status", dn.DocStatus))
	}
	if dn.StorefrontFulfillmentID == "" {
		return shared.NewDomainError("MISSING_FULFILLMENT", "Delivery note must reference a storefront fulfillment")
	}
	if len(dn.Items) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot submit delivery note without items")
	}
	for _, item := range dn.Items {
		if item.Qty.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("Quantity for %s must be positive", item.ItemCode))
		}
	}
	dn.DocStatus = DocStatusSubmitted
	dn.Touch()
	return nil
}

// TotalQty returns the sum of shipped quantities
func (dn *DeliveryNote) TotalQty() decimal.Decimal {
	total := decimal.Zero
	for _, item := range dn.Items {
		total = total.Add(item.Qty)
	}
	return total
}
