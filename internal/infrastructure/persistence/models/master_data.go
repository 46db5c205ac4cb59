package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerModel is a local customer linked to a storefront customer
type CustomerModel struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key"`
	Name                 string    `gorm:"type:varchar(140);not null;uniqueIndex"`
	StorefrontCustomerID *int64    `gorm:"uniqueIndex:idx_customers_storefront_customer"`
	Email                string    `gorm:"type:varchar(255)"`
	Phone                string    `gorm:"type:varchar(50)"`
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ItemModel is a local stock item. A storefront product with several
// variants becomes a template item (StorefrontProductID set) plus one
// variant item per variant (StorefrontVariantID set, VariantOf pointing at
// the template). A single-variant product is one item carrying both ids.
type ItemModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	ItemCode            string          `gorm:"type:varchar(140);not null;uniqueIndex"`
	ItemName            string          `gorm:"type:varchar(200);not null"`
	Description         string          `gorm:"type:text"`
	ItemGroup           string          `gorm:"type:varchar(140)"`
	StockUOM            string          `gorm:"type:varchar(140);not null"`
	DefaultWarehouse    string          `gorm:"type:varchar(140)"`
	StandardRate        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	HasVariants         bool            `gorm:"not null;default:false"`
	VariantOf           string          `gorm:"type:varchar(140);index"`
	StorefrontProductID *int64          `gorm:"uniqueIndex:idx_items_storefront_product"`
	StorefrontVariantID *int64          `gorm:"uniqueIndex:idx_items_storefront_variant"`
	CreatedAt           time.Time       `gorm:"not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}
