package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/erp/storefront-sync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Defaults applied to items created from storefront products
const (
	DefaultStockUOM  = "Nos"
	DefaultItemGroup = "Products"
)

// GormMasterDataRepository maps storefront customers and products to local
// master records. It implements both integration.MasterDataLookup and
// integration.MasterDataResolver.
type GormMasterDataRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormMasterDataRepository creates a new GormMasterDataRepository
func NewGormMasterDataRepository(db *gorm.DB, logger *zap.Logger) *GormMasterDataRepository {
	return &GormMasterDataRepository{db: db, logger: logger}
}

// FindCustomerByStorefrontID returns the local customer name
func (r *GormMasterDataRepository) FindCustomerByStorefrontID(ctx context.Context, customerID int64) (string, error) {
	var customer models.CustomerModel
	if err := r.db.WithContext(ctx).
		Select("name").
		First(&customer, "storefront_customer_id = ?", customerID).Error; err != nil {
		return "", translateError(err)
	}
	return customer.Name, nil
}

// FindItemCodeByVariantID returns the code of the item bound to a variant
func (r *GormMasterDataRepository) FindItemCodeByVariantID(ctx context.Context, variantID int64) (string, error) {
	return r.findItemCode(ctx, "storefront_variant_id = ?", variantID)
}

// FindItemCodeByProductID returns the code of the item bound to a product
func (r *GormMasterDataRepository) FindItemCodeByProductID(ctx context.Context, productID int64) (string, error) {
	return r.findItemCode(ctx, "storefront_product_id = ?", productID)
}

func (r *GormMasterDataRepository) findItemCode(ctx context.Context, query string, id int64) (string, error) {
	if id == 0 {
		return "", shared.ErrNotFound
	}
	var item models.ItemModel
	if err := r.db.WithContext(ctx).Select("item_code").First(&item, query, id).Error; err != nil {
		return "", translateError(err)
	}
	return item.ItemCode, nil
}

// EnsureCustomer returns the customer mapped to the storefront id, creating
// it when absent. A clashing display name gets the storefront id appended.
func (r *GormMasterDataRepository) EnsureCustomer(ctx context.Context, customer integration.StorefrontCustomer) (integration.Resolution, error) {
	res := integration.Resolution{
		Kind:       integration.ResolutionKindCustomer,
		ExternalID: strconv.FormatInt(customer.ID, 10),
	}

	name, err := r.FindCustomerByStorefrontID(ctx, customer.ID)
	switch {
	case err == nil:
		res.LocalName, res.Outcome = name, integration.ResolutionFound
		return res, nil
	case !errors.Is(err, shared.ErrNotFound):
		return res, err
	}

	name = customer.DisplayName()
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := exists(tx, &models.CustomerModel{}, "name = ?", name)
		if err != nil {
			return err
		}
		if taken {
			name = fmt.Sprintf("%s - %d", name, customer.ID)
		}
		storefrontID := customer.ID
		return tx.Create(&models.CustomerModel{
			ID:                   uuid.New(),
			Name:                 name,
			StorefrontCustomerID: &storefrontID,
			Email:                customer.Email,
			Phone:                customer.Phone,
		}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// created by a concurrent runner in the meantime
		if existing, findErr := r.FindCustomerByStorefrontID(ctx, customer.ID); findErr == nil {
			res.LocalName, res.Outcome = existing, integration.ResolutionFound
			return res, nil
		}
	}
	if err != nil {
		return res, fmt.Errorf("create customer %d: %w", customer.ID, err)
	}

	r.logger.Info("Customer created from storefront",
		zap.Int64("storefront_customer_id", customer.ID),
		zap.String("customer", name),
	)
	res.LocalName, res.Outcome = name, integration.ResolutionCreated
	return res, nil
}

// EnsureItem returns the item mapped to the storefront product, creating it
// (and one variant item per variant when there are several) when absent
func (r *GormMasterDataRepository) EnsureItem(ctx context.Context, warehouse string, product integration.StorefrontProduct) (integration.Resolution, error) {
	res := integration.Resolution{
		Kind:       integration.ResolutionKindItem,
		ExternalID: strconv.FormatInt(product.ID, 10),
	}

	code, err := r.FindItemCodeByProductID(ctx, product.ID)
	switch {
	case err == nil:
		res.LocalName, res.Outcome = code, integration.ResolutionFound
		return res, nil
	case !errors.Is(err, shared.ErrNotFound):
		return res, err
	}

	items := itemsForProduct(warehouse, product)
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			taken, err := exists(tx, &models.ItemModel{}, "item_code = ?", items[i].ItemCode)
			if err != nil {
				return err
			}
			if taken {
				items[i].ItemCode = fmt.Sprintf("%s-%s", items[i].ItemCode, storefrontKey(items[i]))
			}
			if i > 0 && items[i].VariantOf != "" {
				items[i].VariantOf = items[0].ItemCode
			}
		}
		return tx.Create(&items).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if existing, findErr := r.FindItemCodeByProductID(ctx, product.ID); findErr == nil {
			res.LocalName, res.Outcome = existing, integration.ResolutionFound
			return res, nil
		}
	}
	if err != nil {
		return res, fmt.Errorf("create item for product %d: %w", product.ID, err)
	}

	r.logger.Info("Item created from storefront",
		zap.Int64("storefront_product_id", product.ID),
		zap.String("item_code", items[0].ItemCode),
		zap.Int("variants", len(items)-1),
	)
	res.LocalName, res.Outcome = items[0].ItemCode, integration.ResolutionCreated
	return res, nil
}

// itemsForProduct lays out the item rows for a product. The first row always
// carries the product id.
func itemsForProduct(warehouse string, product integration.StorefrontProduct) []models.ItemModel {
	productID := product.ID
	base := models.ItemModel{
		ItemName:         product.Title,
		Description:      product.BodyHTML,
		ItemGroup:        orDefault(product.ProductType, DefaultItemGroup),
		StockUOM:         DefaultStockUOM,
		DefaultWarehouse: warehouse,
	}
	if base.Description == "" {
		base.Description = product.Title
	}

	if len(product.Variants) <= 1 {
		item := base
		item.ID = uuid.New()
		item.ItemCode = strconv.FormatInt(product.ID, 10)
		item.StorefrontProductID = &productID
		if len(product.Variants) == 1 {
			v := product.Variants[0]
			variantID := v.ID
			item.StorefrontVariantID = &variantID
			item.StandardRate = v.Price
			if v.SKU != "" {
				item.ItemCode = v.SKU
			}
		}
		return []models.ItemModel{item}
	}

	template := base
	template.ID = uuid.New()
	template.ItemCode = strconv.FormatInt(product.ID, 10)
	template.HasVariants = true
	template.StorefrontProductID = &productID

	items := []models.ItemModel{template}
	for _, v := range product.Variants {
		variantID := v.ID
		item := base
		item.ID = uuid.New()
		item.ItemCode = orDefault(v.SKU, strconv.FormatInt(v.ID, 10))
		item.ItemName = product.Title + " - " + v.Title
		item.StandardRate = v.Price
		item.VariantOf = template.ItemCode
		item.StorefrontVariantID = &variantID
		items = append(items, item)
	}
	return items
}

func storefrontKey(item models.ItemModel) string {
	if item.StorefrontVariantID != nil {
		return strconv.FormatInt(*item.StorefrontVariantID, 10)
	}
	return strconv.FormatInt(*item.StorefrontProductID, 10)
}

func exists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := tx.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
