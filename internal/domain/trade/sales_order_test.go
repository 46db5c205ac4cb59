package trade

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// Test helpers
func createTestOrder(t *testing.T) *SalesOrder {
	order, err := NewSalesOrder("1001", "Jane Doe", "Test Company", testDate)
	require.NoError(t, err)
	order.Name = "SO-Shopify-00001"
	return order
}

func addTestItem(t *testing.T, order *SalesOrder, code string, qty, rate float64) {
	err := order.AddItem(SalesOrderItem{
		ItemCode:  code,
		ItemName:  code + " name",
		Qty:       decimal.NewFromFloat(qty),
		Rate:      decimal.NewFromFloat(rate),
		Warehouse: "Stores",
	})
	require.NoError(t, err)
}

func submittedTestOrder(t *testing.T) *SalesOrder {
	order := createTestOrder(t)
	addTestItem(t, order, "TSHIRT", 2, 10)
	addTestItem(t, order, "MUG", 1, 5)
	require.NoError(t, order.Submit())
	return order
}

// ============================================
// DocStatus Tests
// ============================================

func TestDocStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  DocStatus
		isValid bool
	}{
		{DocStatusDraft, true},
		{DocStatusSubmitted, true},
		{DocStatusCancelled, true},
		{DocStatus(7), false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

// ============================================
// SalesOrder Tests
// ============================================

func TestNewSalesOrder(t *testing.T) {
	t.Run("creates draft order with defaults", func(t *testing.T) {
		order := createTestOrder(t)

		assert.Equal(t, "1001", order.StorefrontOrderID)
		assert.Equal(t, DocStatusDraft, order.DocStatus)
		assert.True(t, order.IgnorePricingRule)
		assert.Equal(t, ApplyDiscountOnGrandTotal, order.ApplyDiscountOn)
		assert.Equal(t, testDate, order.DeliveryDate)
		assert.Empty(t, order.Items)
	})

	t.Run("rejects empty storefront id", func(t *testing.T) {
		_, err := NewSalesOrder("", "Jane Doe", "Test Company", testDate)
		require.Error(t, err)
	})

	t.Run("rejects empty customer", func(t *testing.T) {
		_, err := NewSalesOrder("1001", "", "Test Company", testDate)
		require.Error(t, err)
	})
}

func TestSalesOrder_AddItem(t *testing.T) {
	order := createTestOrder(t)

	err := order.AddItem(SalesOrderItem{ItemCode: "X", Qty: decimal.Zero, Rate: decimal.NewFromInt(1)})
	assert.Error(t, err)

	addTestItem(t, order, "TSHIRT", 2, 10)
	require.Len(t, order.Items, 1)
	assert.NotEqual(t, "", order.Items[0].ID.String())
	assert.True(t, order.NetTotal().Equal(decimal.NewFromInt(20)))
}

func TestSalesOrder_Submit(t *testing.T) {
	t.Run("submits order with items", func(t *testing.T) {
		order := submittedTestOrder(t)
		assert.True(t, order.IsSubmitted())
	})

	t.Run("rejects order without items", func(t *testing.T) {
		order := createTestOrder(t)
		err := order.Submit()
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "NO_ITEMS", domainErr.Code)
	})

	t.Run("rejects item without code", func(t *testing.T) {
		order := createTestOrder(t)
		addTestItem(t, order, "", 1, 1)
		assert.Error(t, order.Submit())
	})

	t.Run("rejects double submit", func(t *testing.T) {
		order := submittedTestOrder(t)
		err := order.Submit()
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})

	t.Run("submitted order is frozen", func(t *testing.T) {
		order := submittedTestOrder(t)
		assert.Error(t, order.AddItem(SalesOrderItem{ItemCode: "X", Qty: decimal.NewFromInt(1)}))
	})
}

func TestSalesOrder_Totals(t *testing.T) {
	order := createTestOrder(t)
	addTestItem(t, order, "TSHIRT", 2, 50)
	order.SetTaxes([]TaxRow{
		{ChargeType: ChargeTypeOnNetTotal, AccountHead: "VAT - TC", Rate: decimal.NewFromInt(20)},
		{ChargeType: ChargeTypeActual, AccountHead: "Shipping - TC", TaxAmount: decimal.NewFromInt(5)},
	})
	require.NoError(t, order.ApplyDiscount(decimal.NewFromInt(10)))

	// 100 net + 20 vat + 5 shipping - 10 discount
	assert.True(t, order.GrandTotal().Equal(decimal.NewFromInt(115)), order.GrandTotal().String())
}

func TestSalesOrder_GrandTotal_IncludedTax(t *testing.T) {
	order := createTestOrder(t)
	addTestItem(t, order, "TSHIRT", 1, 120)
	order.SetTaxes([]TaxRow{
		{ChargeType: ChargeTypeOnNetTotal, Rate: decimal.NewFromInt(20), IncludedInPrintRate: true},
	})

	assert.True(t, order.GrandTotal().Equal(decimal.NewFromInt(120)))
	assert.True(t, order.Taxes[0].Amount(order.NetTotal()).Equal(decimal.NewFromInt(20)))
}

func TestSalesOrder_ApplyDiscount_RejectsNegative(t *testing.T) {
	order := createTestOrder(t)
	assert.Error(t, order.ApplyDiscount(decimal.NewFromInt(-1)))
}

func TestSalesOrder_PerBilled(t *testing.T) {
	order := submittedTestOrder(t)
	assert.True(t, order.IsFullyUnbilled())

	order.Items[0].BilledQty = decimal.NewFromInt(1)
	assert.False(t, order.IsFullyUnbilled())
	// 1 of 3 units billed
	assert.Equal(t, "33.33", order.PerBilled().StringFixed(2))
}
