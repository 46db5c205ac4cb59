package trade

import (
	"fmt"
	"time"

	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	PaymentTypeReceive   = "Receive"
	PartyTypeCustomer    = "Customer"
	ReferenceTypeInvoice = "Sales Invoice"
)

// PaymentReference allocates part of a payment against a document
type PaymentReference struct {
	ReferenceDoctype string
	ReferenceName    string
	AllocatedAmount  decimal.Decimal
}

// PaymentEntry records the receipt for a sales invoice. It is created 1:1
// with each new invoice and relies on the invoice for deduplication.
type PaymentEntry struct {
	shared.BaseEntity
	Name          string
	NamingSeries  string
	PaymentType   string
	PartyType     string
	Party         string
	Company       string
	PaidTo        string
	PaidAmount    decimal.Decimal
	ReferenceNo   string
	ReferenceDate time.Time
	References    []PaymentReference
	DocStatus     DocStatus
}

// NewPaymentEntryForInvoice builds a receive payment for the full grand total of si
func NewPaymentEntryForInvoice(si *SalesInvoice, bankAccount string, referenceDate time.Time) (*PaymentEntry, error) {
	if si == nil || !si.IsSubmitted() {
		return nil, shared.NewDomainError("INVALID_STATE", "Payment requires a submitted sales invoice")
	}
	if bankAccount == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Cash/bank account is required")
	}

	amount := si.GrandTotal()
	pe := &PaymentEntry{
		BaseEntity:    shared.NewBaseEntity(),
		PaymentType:   PaymentTypeReceive,
		PartyType:     PartyTypeCustomer,
		Party:         si.Customer,
		Company:       si.Company,
		PaidTo:        bankAccount,
		PaidAmount:    amount,
		ReferenceDate: referenceDate,
		DocStatus:     DocStatusDraft,
	}
	pe.BindInvoice(si)
	return pe, nil
}

// BindInvoice points the reference number and allocation at si. Called again
// once the invoice has been named.
func (pe *PaymentEntry) BindInvoice(si *SalesInvoice) {
	pe.ReferenceNo = si.Name
	pe.References = []PaymentReference{{
		ReferenceDoctype: ReferenceTypeInvoice,
		ReferenceName:    si.Name,
		AllocatedAmount:  pe.PaidAmount,
	}}
}

// Submit finalizes the payment
func (pe *PaymentEntry) Submit() error {
	if pe.DocStatus != DocStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot submit payment entry in %s status", pe.DocStatus))
	}
	pe.DocStatus = DocStatusSubmitted
	pe.Touch()
	return nil
}
