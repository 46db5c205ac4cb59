package models

import (
	"time"

	"github.com/erp/storefront-sync/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Polymorphic owner values for tax rows
const (
	TaxParentSalesOrder   = "sales_order"
	TaxParentSalesInvoice = "sales_invoice"
)

// ============================================
// Sales Order
// ============================================

// SalesOrderModel is the persistence model for the SalesOrder domain entity
type SalesOrderModel struct {
	BaseModel
	Name              string                `gorm:"type:varchar(140);not null;uniqueIndex"`
	NamingSeries      string                `gorm:"type:varchar(140);not null"`
	StorefrontOrderID string                `gorm:"type:varchar(64);not null;uniqueIndex:idx_sales_orders_storefront_order"`
	Customer          string                `gorm:"type:varchar(140);not null;index"`
	Company           string                `gorm:"type:varchar(140);not null"`
	PriceList         string                `gorm:"type:varchar(140)"`
	TransactionDate   time.Time             `gorm:"not null"`
	DeliveryDate      time.Time             `gorm:"not null"`
	IgnorePricingRule bool                  `gorm:"not null;default:false"`
	ApplyDiscountOn   string                `gorm:"type:varchar(20)"`
	DiscountAmount    decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	DocStatus         int                   `gorm:"not null;default:0"`
	Items             []SalesOrderItemModel `gorm:"foreignKey:SalesOrderID;references:ID"`
	Taxes             []TaxRowModel         `gorm:"polymorphic:Parent;polymorphicValue:sales_order"`
}

// TableName returns the table name for GORM
func (SalesOrderModel) TableName() string {
	return "sales_orders"
}

// ToDomain converts the persistence model to a domain SalesOrder entity
func (m *SalesOrderModel) ToDomain() *trade.SalesOrder {
	so := &trade.SalesOrder{
		BaseEntity:        m.BaseModel.ToDomain(),
		Name:              m.Name,
		NamingSeries:      m.NamingSeries,
		StorefrontOrderID: m.StorefrontOrderID,
		Customer:          m.Customer,
		Company:           m.Company,
		PriceList:         m.PriceList,
		TransactionDate:   m.TransactionDate,
		DeliveryDate:      m.DeliveryDate,
		IgnorePricingRule: m.IgnorePricingRule,
		ApplyDiscountOn:   m.ApplyDiscountOn,
		DiscountAmount:    m.DiscountAmount,
		DocStatus:         trade.DocStatus(m.DocStatus),
		Items:             make([]trade.SalesOrderItem, len(m.Items)),
		Taxes:             taxesToDomain(m.Taxes),
	}
	for i, item := range m.Items {
		so.Items[i] = item.ToDomain()
	}
	return so
}

// FromDomain populates the persistence model from a domain SalesOrder entity
func (m *SalesOrderModel) FromDomain(so *trade.SalesOrder) {
	m.FromDomainBaseEntity(so.BaseEntity)
	m.Name = so.Name
	m.NamingSeries = so.NamingSeries
	m.StorefrontOrderID = so.StorefrontOrderID
	m.Customer = so.Customer
	m.Company = so.Company
	m.PriceList = so.PriceList
	m.TransactionDate = so.TransactionDate
	m.DeliveryDate = so.DeliveryDate
	m.IgnorePricingRule = so.IgnorePricingRule
	m.ApplyDiscountOn = so.ApplyDiscountOn
	m.DiscountAmount = so.DiscountAmount
	m.DocStatus = int(so.DocStatus)

	m.Items = make([]SalesOrderItemModel, len(so.Items))
	for i, item := range so.Items {
		m.Items[i].FromDomain(so.ID, i+1, item)
	}
	m.Taxes = taxesFromDomain(so.Taxes)
}

// SalesOrderItemModel is the persistence model for a sales order line
type SalesOrderItemModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	SalesOrderID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Idx          int             `gorm:"not null"`
	ItemCode     string          `gorm:"type:varchar(140);not null"`
	ItemName     string          `gorm:"type:varchar(200)"`
	Rate         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Qty          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DeliveryDate time.Time
	StockUOM     string          `gorm:"type:varchar(140)"`
	Warehouse    string          `gorm:"type:varchar(140)"`
	BilledQty    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DeliveredQty decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (SalesOrderItemModel) TableName() string {
	return "sales_order_items"
}

// ToDomain converts to a domain SalesOrderItem
func (m SalesOrderItemModel) ToDomain() trade.SalesOrderItem {
	return trade.SalesOrderItem{
		ID:           m.ID,
		ItemCode:     m.ItemCode,
		ItemName:     m.ItemName,
		Rate:         m.Rate,
		Qty:          m.Qty,
		DeliveryDate: m.DeliveryDate,
		StockUOM:     m.StockUOM,
		Warehouse:    m.Warehouse,
		BilledQty:    m.BilledQty,
		DeliveredQty: m.DeliveredQty,
	}
}

// FromDomain populates the line from a domain item at position idx
func (m *SalesOrderItemModel) FromDomain(orderID uuid.UUID, idx int, item trade.SalesOrderItem) {
	m.ID = item.ID
	m.SalesOrderID = orderID
	m.Idx = idx
	m.ItemCode = item.ItemCode
	m.ItemName = item.ItemName
	m.Rate = item.Rate
	m.Qty = item.Qty
	m.DeliveryDate = item.DeliveryDate
	m.StockUOM = item.StockUOM
	m.Warehouse = item.Warehouse
	m.BilledQty = item.BilledQty
	m.DeliveredQty = item.DeliveredQty
}

// ============================================
// Taxes and charges
// ============================================

// TaxRowModel is one taxes-and-charges row owned by an order or an invoice
type TaxRowModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	ParentID            uuid.UUID       `gorm:"type:uuid;not null;index:idx_tax_rows_parent,priority:2"`
	ParentType          string          `gorm:"type:varchar(20);not null;index:idx_tax_rows_parent,priority:1"`
	Idx                 int             `gorm:"not null"`
	ChargeType          string          `gorm:"type:varchar(20);not null"`
	AccountHead         string          `gorm:"type:varchar(140);not null"`
	Description         string          `gorm:"type:varchar(255)"`
	Rate                decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	IncludedInPrintRate bool            `gorm:"not null;default:false"`
	CostCenter          string          `gorm:"type:varchar(140)"`
}

// TableName returns the table name for GORM
func (TaxRowModel) TableName() string {
	return "sales_taxes_and_charges"
}

func taxesToDomain(rows []TaxRowModel) []trade.TaxRow {
	out := make([]trade.TaxRow, len(rows))
	for i, r := range rows {
		out[i] = trade.TaxRow{
			ChargeType:          trade.ChargeType(r.ChargeType),
			AccountHead:         r.AccountHead,
			Description:         r.Description,
			Rate:                r.Rate,
			TaxAmount:           r.TaxAmount,
			IncludedInPrintRate: r.IncludedInPrintRate,
			CostCenter:          r.CostCenter,
		}
	}
	return out
}

// taxesFromDomain leaves ParentID and ParentType to the polymorphic association
func taxesFromDomain(taxes []trade.TaxRow) []TaxRowModel {
	out := make([]TaxRowModel, len(taxes))
	for i, t := range taxes {
		out[i] = TaxRowModel{
			ID:                  uuid.New(),
			Idx:                 i + 1,
			ChargeType:          string(t.ChargeType),
			AccountHead:         t.AccountHead,
			Description:         t.Description,
			Rate:                t.Rate,
			TaxAmount:           t.TaxAmount,
			IncludedInPrintRate: t.IncludedInPrintRate,
			CostCenter:          t.CostCenter,
		}
	}
	return out
}

// ============================================
// Sales Invoice
// ============================================

// SalesInvoiceModel is the persistence model for the SalesInvoice domain entity
type SalesInvoiceModel struct {
	BaseModel
	Name              string                  `gorm:"type:varchar(140);not null;uniqueIndex"`
	NamingSeries      string                  `gorm:"type:varchar(140);not null"`
	StorefrontOrderID string                  `gorm:"type:varchar(64);not null;uniqueIndex:idx_sales_invoices_storefront_order"`
	SalesOrderName    string                  `gorm:"type:varchar(140);not null;index"`
	Customer          string                  `gorm:"type:varchar(140);not null"`
	Company           string                  `gorm:"type:varchar(140);not null"`
	PostingDate       time.Time               `gorm:"not null"`
	DiscountAmount    decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	DocStatus         int                     `gorm:"not null;default:0"`
	Items             []SalesInvoiceItemModel `gorm:"foreignKey:SalesInvoiceID;references:ID"`
	Taxes             []TaxRowModel           `gorm:"polymorphic:Parent;polymorphicValue:sales_invoice"`
}

// TableName returns the table name for GORM
func (SalesInvoiceModel) TableName() string {
	return "sales_invoices"
}

// ToDomain converts the persistence model to a domain SalesInvoice entity
func (m *SalesInvoiceModel) ToDomain() *trade.SalesInvoice {
	si := &trade.SalesInvoice{
		BaseEntity:        m.BaseModel.ToDomain(),
		Name:              m.Name,
		NamingSeries:      m.NamingSeries,
		StorefrontOrderID: m.StorefrontOrderID,
		SalesOrderName:    m.SalesOrderName,
		Customer:          m.Customer,
		Company:           m.Company,
		PostingDate:       m.PostingDate,
		DiscountAmount:    m.DiscountAmount,
		DocStatus:         trade.DocStatus(m.DocStatus),
		Items:             make([]trade.SalesInvoiceItem, len(m.Items)),
		Taxes:             taxesToDomain(m.Taxes),
	}
	for i, item := range m.Items {
		si.Items[i] = trade.SalesInvoiceItem{
			ID:               item.ID,
			SalesOrderItemID: item.SalesOrderItemID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Qty:              item.Qty,
			Rate:             item.Rate,
			Warehouse:        item.Warehouse,
			CostCenter:       item.CostCenter,
		}
	}
	return si
}

// FromDomain populates the persistence model from a domain SalesInvoice entity
func (m *SalesInvoiceModel) FromDomain(si *trade.SalesInvoice) {
	m.FromDomainBaseEntity(si.BaseEntity)
	m.Name = si.Name
	m.NamingSeries = si.NamingSeries
	m.StorefrontOrderID = si.StorefrontOrderID
	m.SalesOrderName = si.SalesOrderName
	m.Customer = si.Customer
	m.Company = si.Company
	m.PostingDate = si.PostingDate
	m.DiscountAmount = si.DiscountAmount
	m.DocStatus = int(si.DocStatus)

	m.Items = make([]SalesInvoiceItemModel, len(si.Items))
	for i, item := range si.Items {
		m.Items[i] = SalesInvoiceItemModel{
			ID:               item.ID,
			SalesInvoiceID:   si.ID,
			Idx:              i + 1,
			SalesOrderItemID: item.SalesOrderItemID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Qty:              item.Qty,
			Rate:             item.Rate,
			Warehouse:        item.Warehouse,
			CostCenter:       item.CostCenter,
		}
	}
	m.Taxes = taxesFromDomain(si.Taxes)
}

// SalesInvoiceItemModel is the persistence model for an invoice line
type SalesInvoiceItemModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	SalesInvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Idx              int             `gorm:"not null"`
	SalesOrderItemID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemCode         string          `gorm:"type:varchar(140);not null"`
	ItemName         string          `gorm:"type:varchar(200)"`
	Qty              decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Rate             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Warehouse        string          `gorm:"type:varchar(140)"`
	CostCenter       string          `gorm:"type:varchar(140)"`
}

// TableName returns the table name for GORM
func (SalesInvoiceItemModel) TableName() string {
	return "sales_invoice_items"
}

// ============================================
// Payment Entry
// ============================================

// PaymentEntryModel is the persistence model for the PaymentEntry domain entity
type PaymentEntryModel struct {
	BaseModel
	Name          string                  `gorm:"type:varchar(140);not null;uniqueIndex"`
	NamingSeries  string                  `gorm:"type:varchar(140);not null"`
	PaymentType   string                  `gorm:"type:varchar(20);not null"`
	PartyType     string                  `gorm:"type:varchar(20);not null"`
	Party         string                  `gorm:"type:varchar(140);not null;index"`
	Company       string                  `gorm:"type:varchar(140);not null"`
	PaidTo        string                  `gorm:"type:varchar(140);not null"`
	PaidAmount    decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	ReferenceNo   string                  `gorm:"type:varchar(140);index"`
	ReferenceDate time.Time               `gorm:"not null"`
	DocStatus     int                     `gorm:"not null;default:0"`
	References    []PaymentReferenceModel `gorm:"foreignKey:PaymentEntryID;references:ID"`
}

// TableName returns the table name for GORM
func (PaymentEntryModel) TableName() string {
	return "payment_entries"
}

// ToDomain converts the persistence model to a domain PaymentEntry entity
func (m *PaymentEntryModel) ToDomain() *trade.PaymentEntry {
	pe := &trade.PaymentEntry{
		BaseEntity:    m.BaseModel.ToDomain(),
		Name:          m.Name,
		NamingSeries:  m.NamingSeries,
		PaymentType:   m.PaymentType,
		PartyType:     m.PartyType,
		Party:         m.Party,
		Company:       m.Company,
		PaidTo:        m.PaidTo,
		PaidAmount:    m.PaidAmount,
		ReferenceNo:   m.ReferenceNo,
		ReferenceDate: m.ReferenceDate,
		DocStatus:     trade.DocStatus(m.DocStatus),
		References:    make([]trade.PaymentReference, len(m.References)),
	}
	for i, ref := range m.References {
		pe.References[i] = trade.PaymentReference{
			ReferenceDoctype: ref.ReferenceDoctype,
			ReferenceName:    ref.ReferenceName,
			AllocatedAmount:  ref.AllocatedAmount,
		}
	}
	return pe
}

// FromDomain populates the persistence model from a domain PaymentEntry entity
func (m *PaymentEntryModel) FromDomain(pe *trade.PaymentEntry) {
	m.FromDomainBaseEntity(pe.BaseEntity)
	m.Name = pe.Name
	m.NamingSeries = pe.NamingSeries
	m.PaymentType = pe.PaymentType
	m.PartyType = pe.PartyType
	m.Party = pe.Party
	m.Company = pe.Company
	m.PaidTo = pe.PaidTo
	m.PaidAmount = pe.PaidAmount
	m.ReferenceNo = pe.ReferenceNo
	m.ReferenceDate = pe.ReferenceDate
	m.DocStatus = int(pe.DocStatus)

	m.References = make([]PaymentReferenceModel, len(pe.References))
	for i, ref := range pe.References {
		m.References[i] = PaymentReferenceModel{
			ID:               uuid.New(),
			PaymentEntryID:   pe.ID,
			ReferenceDoctype: ref.ReferenceDoctype,
			ReferenceName:    ref.ReferenceName,
			AllocatedAmount:  ref.AllocatedAmount,
		}
	}
}

// PaymentReferenceModel allocates a payment against a document
type PaymentReferenceModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	PaymentEntryID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ReferenceDoctype string          `gorm:"type:varchar(40);not null"`
	ReferenceName    string          `gorm:"type:varchar(140);not null;index"`
	AllocatedAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PaymentReferenceModel) TableName() string {
	return "payment_entry_references"
}

// ============================================
// Delivery Note
// ============================================

// DeliveryNoteModel is the persistence model for the DeliveryNote domain entity
type DeliveryNoteModel struct {
	BaseModel
	Name                    string                  `gorm:"type:varchar(140);not null;uniqueIndex"`
	NamingSeries            string                  `gorm:"type:varchar(140);not null"`
	StorefrontOrderID       string                  `gorm:"type:varchar(64);not null;index"`
	StorefrontFulfillmentID string                  `gorm:"type:varchar(64);not null;uniqueIndex:idx_delivery_notes_storefront_fulfillment"`
	SalesOrderName          string                  `gorm:"type:varchar(140);not null;index"`
	Customer                string                  `gorm:"type:varchar(140);not null"`
	Company                 string                  `gorm:"type:varchar(140);not null"`
	PostingDate             time.Time               `gorm:"not null"`
	DocStatus               int                     `gorm:"not null;default:0"`
	Items                   []DeliveryNoteItemModel `gorm:"foreignKey:DeliveryNoteID;references:ID"`
}

// TableName returns the table name for GORM
func (DeliveryNoteModel) TableName() string {
	return "delivery_notes"
}

// ToDomain converts the persistence model to a domain DeliveryNote entity
func (m *DeliveryNoteModel) ToDomain() *trade.DeliveryNote {
	dn := &trade.DeliveryNote{
		BaseEntity:              m.BaseModel.ToDomain(),
		Name:                    m.Name,
		NamingSeries:            m.NamingSeries,
		StorefrontOrderID:       m.StorefrontOrderID,
		StorefrontFulfillmentID: m.StorefrontFulfillmentID,
		SalesOrderName:          m.SalesOrderName,
		Customer:                m.Customer,
		Company:                 m.Company,
		PostingDate:             m.PostingDate,
		DocStatus:               trade.DocStatus(m.DocStatus),
		Items:                   make([]trade.DeliveryNoteItem, len(m.Items)),
	}
	for i, item := range m.Items {
		dn.Items[i] = trade.DeliveryNoteItem{
			ID:               item.ID,
			SalesOrderItemID: item.SalesOrderItemID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Qty:              item.Qty,
			Rate:             item.Rate,
			StockUOM:         item.StockUOM,
			Warehouse:        item.Warehouse,
		}
	}
	return dn
}

// FromDomain populates the persistence model from a domain DeliveryNote entity
func (m *DeliveryNoteModel) FromDomain(dn *trade.DeliveryNote) {
	m.FromDomainBaseEntity(dn.BaseEntity)
	m.Name = dn.Name
	m.NamingSeries = dn.NamingSeries
	m.StorefrontOrderID = dn.StorefrontOrderID
	m.StorefrontFulfillmentID = dn.StorefrontFulfillmentID
	m.SalesOrderName = dn.SalesOrderName
	m.Customer = dn.Customer
	m.Company = dn.Company
	m.PostingDate = dn.PostingDate
	m.DocStatus = int(dn.DocStatus)

	m.Items = make([]DeliveryNoteItemModel, len(dn.Items))
	for i, item := range dn.Items {
		m.Items[i] = DeliveryNoteItemModel{
			ID:               item.ID,
			DeliveryNoteID:   dn.ID,
			Idx:              i + 1,
			SalesOrderItemID: item.SalesOrderItemID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Qty:              item.Qty,
			Rate:             item.Rate,
			StockUOM:         item.StockUOM,
			Warehouse:        item.Warehouse,
		}
	}
}

// DeliveryNoteItemModel is the persistence model for a delivery note line
type DeliveryNoteItemModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	DeliveryNoteID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Idx              int             `gorm:"not null"`
	SalesOrderItemID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemCode         string          `gorm:"type:varchar(140);not null"`
	ItemName         string          `gorm:"type:varchar(200)"`
	Qty              decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Rate             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	StockUOM         string          `gorm:"type:varchar(140)"`
	Warehouse        string          `gorm:"type:varchar(140)"`
}

// TableName returns the table name for GORM
func (DeliveryNoteItemModel) TableName() string {
	return "delivery_note_items"
}
