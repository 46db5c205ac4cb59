package integration

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Default naming series applied when the settings leave them empty
const (
	DefaultSalesOrderSeries   = "SO-Shopify-"
	DefaultSalesInvoiceSeries = "SI-Shopify-"
	DefaultDeliveryNoteSeries = "DN-Shopify-"
	DefaultPaymentEntrySeries = "PE-Shopify-"
)

// FulfillmentMatchMode controls what happens to fulfillment lines that match
// no delivery-note line
type FulfillmentMatchMode string

const (
	// FulfillmentMatchLenient drops unmatched lines and reports them
	FulfillmentMatchLenient FulfillmentMatchMode = "lenient"
	// FulfillmentMatchStrict fails the delivery note with a ConfigurationError
	FulfillmentMatchStrict FulfillmentMatchMode = "strict"
)

// SyncSettings holds the options that drive document creation for one store
type SyncSettings struct {
	Warehouse            string `validate:"required"`
	Company              string `validate:"required"`
	PriceList            string
	CostCenter           string `validate:"required"`
	CashBankAccount      string `validate:"required_if=SyncSalesInvoice true"`
	SalesOrderSeries     string
	SalesInvoiceSeries   string
	DeliveryNoteSeries   string
	SyncSalesInvoice     bool
	SyncDeliveryNote     bool
	FulfillmentMatchMode FulfillmentMatchMode `validate:"omitempty,oneof=lenient strict"`
	// TaxAccounts maps a storefront tax (or shipping) title to a local account head
	TaxAccounts map[string]string
}

var settingsValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings and reports the first problem as a ConfigurationError
func (s SyncSettings) Validate() error {
	err := settingsValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return NewConfigurationError(toSettingKey(fe.Field()), "failed %q validation", fe.Tag())
	}
	return NewConfigurationError("settings", "%v", err)
}

// SalesOrderNamingSeries returns the configured series or the default
func (s SyncSettings) SalesOrderNamingSeries() string {
	return orDefault(s.SalesOrderSeries, DefaultSalesOrderSeries)
}

// SalesInvoiceNamingSeries returns the configured series or the default
func (s SyncSettings) SalesInvoiceNamingSeries() string {
	return orDefault(s.SalesInvoiceSeries, DefaultSalesInvoiceSeries)
}

// DeliveryNoteNamingSeries returns the configured series or the default
func (s SyncSettings) DeliveryNoteNamingSeries() string {
	return orDefault(s.DeliveryNoteSeries, DefaultDeliveryNoteSeries)
}

// MatchMode returns the fulfillment match mode, lenient unless configured
func (s SyncSettings) MatchMode() FulfillmentMatchMode {
	if s.FulfillmentMatchMode == "" {
		return FulfillmentMatchLenient
	}
	return s.FulfillmentMatchMode
}

// TaxAccount resolves the local account head for a storefront tax title
func (s SyncSettings) TaxAccount(title string) (string, error) {
	account, ok := s.TaxAccounts[title]
	if !ok || account == "" {
		return "", NewConfigurationError("tax_accounts", "tax account not specified for storefront tax %q", title)
	}
	return account, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// toSettingKey turns a Go field name into the snake_case config key
func toSettingKey(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
