package persistence

import (
	"context"
	"fmt"

	"github.com/erp/storefront-sync/internal/domain/trade"
	"github.com/erp/storefront-sync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentStore implements trade.DocumentStore using GORM.
// Each Create runs in its own transaction; the storefront keys are guarded by
// unique indexes, so a concurrent runner that loses the race gets
// shared.ErrAlreadyExists and nothing is written.
type GormDocumentStore struct {
	db *gorm.DB
}

// NewGormDocumentStore creates a new GormDocumentStore
func NewGormDocumentStore(db *gorm.DB) *GormDocumentStore {
	return &GormDocumentStore{db: db}
}

func byIdx(db *gorm.DB) *gorm.DB {
	return db.Order("idx")
}

// FindSalesOrderByStorefrontID loads a sales order with its items and taxes
func (r *GormDocumentStore) FindSalesOrderByStorefrontID(ctx context.Context, storefrontOrderID string) (*trade.SalesOrder, error) {
	var model models.SalesOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", byIdx).
		Preload("Taxes", byIdx).
		First(&model, "storefront_order_id = ?", storefrontOrderID).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindSalesInvoiceByStorefrontID loads a sales invoice with its items and taxes
func (r *GormDocumentStore) FindSalesInvoiceByStorefrontID(ctx context.Context, storefrontOrderID string) (*trade.SalesInvoice, error) {
	var model models.SalesInvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Items", byIdx).
		Preload("Taxes", byIdx).
		First(&model, "storefront_order_id = ?", storefrontOrderID).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindDeliveryNoteByFulfillmentID loads a delivery note with its items
func (r *GormDocumentStore) FindDeliveryNoteByFulfillmentID(ctx context.Context, fulfillmentID string) (*trade.DeliveryNote, error) {
	var model models.DeliveryNoteModel
	if err := r.db.WithContext(ctx).
		Preload("Items", byIdx).
		First(&model, "storefront_fulfillment_id = ?", fulfillmentID).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// CreateSalesOrder names and persists a new sales order
func (r *GormDocumentStore) CreateSalesOrder(ctx context.Context, so *trade.SalesOrder) error {
	var name string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if name, err = nextName(tx, so.NamingSeries); err != nil {
			return err
		}
		var model models.SalesOrderModel
		model.FromDomain(so)
		model.Name = name
		return tx.Create(&model).Error
	})
	if err != nil {
		return translateError(err)
	}
	so.Name = name
	return nil
}

// CreateSalesInvoice persists the invoice and its payment entry and adds the
// billed quantities to the sales order, all in one transaction
func (r *GormDocumentStore) CreateSalesInvoice(ctx context.Context, si *trade.SalesInvoice, pe *trade.PaymentEntry) error {
	var siName, peName string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		so, err := lockSalesOrder(tx, si.SalesOrderName)
		if err != nil {
			return err
		}

		staged := *si
		if staged.Name, err = nextName(tx, si.NamingSeries); err != nil {
			return err
		}
		stagedPE := *pe
		stagedPE.BindInvoice(&staged)
		if stagedPE.Name, err = nextName(tx, pe.NamingSeries); err != nil {
			return err
		}
		if err := so.MarkBilled(&staged); err != nil {
			return err
		}

		var siModel models.SalesInvoiceModel
		siModel.FromDomain(&staged)
		if err := tx.Create(&siModel).Error; err != nil {
			return err
		}
		var peModel models.PaymentEntryModel
		peModel.FromDomain(&stagedPE)
		if err := tx.Create(&peModel).Error; err != nil {
			return err
		}

		lineIDs := make([]uuid.UUID, len(staged.Items))
		for i, item := range staged.Items {
			lineIDs[i] = item.SalesOrderItemID
		}
		siName, peName = staged.Name, stagedPE.Name
		return saveLineProgress(tx, so, lineIDs, "billed_qty", func(i trade.SalesOrderItem) decimal.Decimal { return i.BilledQty })
	})
	if err != nil {
		return translateError(err)
	}
	si.Name = siName
	pe.BindInvoice(si)
	pe.Name = peName
	return nil
}

// CreateDeliveryNote persists the note and adds the delivered quantities to
// the sales order, in one transaction
func (r *GormDocumentStore) CreateDeliveryNote(ctx context.Context, dn *trade.DeliveryNote) error {
	var name string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		so, err := lockSalesOrder(tx, dn.SalesOrderName)
		if err != nil {
			return err
		}

		staged := *dn
		if staged.Name, err = nextName(tx, dn.NamingSeries); err != nil {
			return err
		}
		if err := so.MarkDelivered(&staged); err != nil {
			return err
		}

		var model models.DeliveryNoteModel
		model.FromDomain(&staged)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}

		lineIDs := make([]uuid.UUID, len(staged.Items))
		for i, item := range staged.Items {
			lineIDs[i] = item.SalesOrderItemID
		}
		name = staged.Name
		return saveLineProgress(tx, so, lineIDs, "delivered_qty", func(i trade.SalesOrderItem) decimal.Decimal { return i.DeliveredQty })
	})
	if err != nil {
		return translateError(err)
	}
	dn.Name = name
	return nil
}

// lockSalesOrder loads the named order for update. SQLite ignores the lock.
func lockSalesOrder(tx *gorm.DB, name string) (*trade.SalesOrder, error) {
	var model models.SalesOrderModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", byIdx).
		First(&model, "name = ?", name).Error; err != nil {
		return nil, fmt.Errorf("load sales order %s: %w", name, err)
	}
	return model.ToDomain(), nil
}

// saveLineProgress writes the updated quantity column of the touched lines
func saveLineProgress(tx *gorm.DB, so *trade.SalesOrder, lineIDs []uuid.UUID, column string, qty func(trade.SalesOrderItem) decimal.Decimal) error {
	for _, id := range lineIDs {
		item := so.GetItem(id)
		if item == nil {
			continue
		}
		if err := tx.Model(&models.SalesOrderItemModel{}).
			Where("id = ?", id).
			Update(column, qty(*item)).Error; err != nil {
			return err
		}
	}
	return tx.Model(&models.SalesOrderModel{}).
		Where("id = ?", so.ID).
		Update("updated_at", so.UpdatedAt).Error
}

// nextName issues the next "<prefix>NNNNN" name from the naming_series
// counter. It must run inside the transaction that persists the document.
func nextName(tx *gorm.DB, prefix string) (string, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.NamingSeriesModel{Prefix: prefix}).Error; err != nil {
		return "", fmt.Errorf("init naming series %s: %w", prefix, err)
	}
	if err := tx.Model(&models.NamingSeriesModel{}).
		Where("prefix = ?", prefix).
		UpdateColumn("current_value", gorm.Expr("current_value + ?", 1)).Error; err != nil {
		return "", fmt.Errorf("advance naming series %s: %w", prefix, err)
	}
	var series models.NamingSeriesModel
	if err := tx.First(&series, "prefix = ?", prefix).Error; err != nil {
		return "", fmt.Errorf("read naming series %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s%05d", prefix, series.CurrentValue), nil
}
