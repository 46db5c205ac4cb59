package models

import (
	"time"

	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all document models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// NamingSeriesModel holds the last number issued for a naming-series prefix
type NamingSeriesModel struct {
	Prefix       string `gorm:"type:varchar(140);primary_key"`
	CurrentValue int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (NamingSeriesModel) TableName() string {
	return "naming_series"
}

// AllModels lists every model managed by AutoMigrate
func AllModels() []any {
	return []any{
		&NamingSeriesModel{},
		&SalesOrderModel{},
		&SalesOrderItemModel{},
		&TaxRowModel{},
		&SalesInvoiceModel{},
		&SalesInvoiceItemModel{},
		&PaymentEntryModel{},
		&PaymentReferenceModel{},
		&DeliveryNoteModel{},
		&DeliveryNoteItemModel{},
		&CustomerModel{},
		&ItemModel{},
		&SyncLogModel{},
	}
}
