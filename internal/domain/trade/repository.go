package trade

import (
	"context"
)

// DocumentStore is the persistence port for synced sales documents.
// Find methods return shared.ErrNotFound when absent. Every Create method is
// one committed sub-transaction: it names the document from its naming
// series, persists it and updates the owning sales order. A create that
// collides with an existing document for the same storefront key returns
// shared.ErrAlreadyExists and persists nothing.
type DocumentStore interface {
	// FindSalesOrderByStorefrontID loads a sales order with its items and taxes
	FindSalesOrderByStorefrontID(ctx context.Context, storefrontOrderID string) (*SalesOrder, error)

	// FindSalesInvoiceByStorefrontID loads a sales invoice
	FindSalesInvoiceByStorefrontID(ctx context.Context, storefrontOrderID string) (*SalesInvoice, error)

	// FindDeliveryNoteByFulfillmentID loads a delivery note
	FindDeliveryNoteByFulfillmentID(ctx context.Context, fulfillmentID string) (*DeliveryNote, error)

	// CreateSalesOrder persists a new sales order
	CreateSalesOrder(ctx context.Context, so *SalesOrder) error

	// CreateSalesInvoice persists an invoice together with its payment entry
	// and adds the billed quantities to the sales order
	CreateSalesInvoice(ctx context.Context, si *SalesInvoice, pe *PaymentEntry) error

	// CreateDeliveryNote persists a delivery note and adds the delivered
	// quantities to the sales order
	CreateDeliveryNote(ctx context.Context, dn *DeliveryNote) error
}
