package integration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() SyncSettings {
	return SyncSettings{
		Warehouse:        "Stores - TC",
		Company:          "Test Company",
		CostCenter:       "Main - TC",
		CashBankAccount:  "Cash - TC",
		SyncSalesInvoice: true,
		SyncDeliveryNote: true,
		TaxAccounts:      map[string]string{"VAT": "VAT - TC"},
	}
}

func TestSyncSettings_Validate(t *testing.T) {
	t.Run("valid settings", func(t *testing.T) {
		assert.NoError(t, validSettings().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*SyncSettings)
		setting string
	}{
		{"missing warehouse", func(s *SyncSettings) { s.Warehouse = "" }, "warehouse"},
		{"missing company", func(s *SyncSettings) { s.Company = "" }, "company"},
		{"missing cost center", func(s *SyncSettings) { s.CostCenter = "" }, "cost_center"},
		{"missing bank account with invoice sync", func(s *SyncSettings) { s.CashBankAccount = "" }, "cash_bank_account"},
		{"unknown match mode", func(s *SyncSettings) { s.FulfillmentMatchMode = "fuzzy" }, "fulfillment_match_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)

			err := s.Validate()
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.setting, cfgErr.Setting)
		})
	}

	t.Run("bank account optional without invoice sync", func(t *testing.T) {
		s := validSettings()
		s.SyncSalesInvoice = false
		s.CashBankAccount = ""
		assert.NoError(t, s.Validate())
	})
}

func TestSyncSettings_Defaults(t *testing.T) {
	s := SyncSettings{}

	assert.Equal(t, "SO-Shopify-", s.SalesOrderNamingSeries())
	assert.Equal(t, "SI-Shopify-", s.SalesInvoiceNamingSeries())
	assert.Equal(t, "DN-Shopify-", s.DeliveryNoteNamingSeries())
	assert.Equal(t, FulfillmentMatchLenient, s.MatchMode())

	s.SalesOrderSeries = "SO-WEB-"
	s.FulfillmentMatchMode = FulfillmentMatchStrict
	assert.Equal(t, "SO-WEB-", s.SalesOrderNamingSeries())
	assert.Equal(t, FulfillmentMatchStrict, s.MatchMode())
}

func TestSyncSettings_TaxAccount(t *testing.T) {
	s := validSettings()

	account, err := s.TaxAccount("VAT")
	require.NoError(t, err)
	assert.Equal(t, "VAT - TC", account)

	_, err = s.TaxAccount("GST")
	assert.Equal(t, ErrorKindConfiguration, ClassifyError(err))
	assert.Contains(t, err.Error(), `"GST"`)
}
