package integration

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// FinancialStatus
// ---------------------------------------------------------------------------

// FinancialStatus is the payment state of an order on the storefront
type FinancialStatus string

const (
	FinancialStatusPending           FinancialStatus = "pending"
	FinancialStatusAuthorized        FinancialStatus = "authorized"
	FinancialStatusPartiallyPaid     FinancialStatus = "partially_paid"
	FinancialStatusPaid              FinancialStatus = "paid"
	FinancialStatusPartiallyRefunded FinancialStatus = "partially_refunded"
	FinancialStatusRefunded          FinancialStatus = "refunded"
	FinancialStatusVoided            FinancialStatus = "voided"
)

// IsPaid returns true only for fully paid orders
func (s FinancialStatus) IsPaid() bool {
	return s == FinancialStatusPaid
}

// String returns the string representation of FinancialStatus
func (s FinancialStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// StorefrontOrder is an order as returned by the storefront admin API.
// It is never mutated after it has been fetched.
type StorefrontOrder struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name,omitempty"`
	Email           string              `json:"email,omitempty"`
	Customer        *StorefrontCustomer `json:"customer,omitempty"`
	LineItems       []LineItem          `json:"line_items"`
	TaxLines        []TaxLine           `json:"tax_lines"`
	TaxesIncluded   bool                `json:"taxes_included"`
	ShippingLines   []ShippingLine      `json:"shipping_lines"`
	DiscountCodes   []DiscountCode      `json:"discount_codes"`
	FinancialStatus FinancialStatus     `json:"financial_status"`
	Fulfillments    []Fulfillment       `json:"fulfillments,omitempty"`
	Currency        string              `json:"currency,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ExternalID returns the storefront order id used as deduplication key
func (o StorefrontOrder) ExternalID() string {
	return strconv.FormatInt(o.ID, 10)
}

// HasCustomer reports whether the order references a storefront customer
func (o StorefrontOrder) HasCustomer() bool {
	return o.Customer != nil && o.Customer.ID != 0
}

// StorefrontCustomer is the customer block embedded in an order
type StorefrontCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// DisplayName returns the best human-readable name for the customer
func (c StorefrontCustomer) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	case c.Email != "":
		return c.Email
	default:
		return "Storefront Customer " + strconv.FormatInt(c.ID, 10)
	}
}

// LineItem is an ordered (or fulfilled) product line
type LineItem struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"product_id"`
	VariantID int64           `json:"variant_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// TaxLine is an order-level tax. Rate is a fraction (0.2 means 20%).
type TaxLine struct {
	Title string          `json:"title"`
	Rate  decimal.Decimal `json:"rate"`
	Price decimal.Decimal `json:"price"`
}

// ShippingLine is a shipping charge on the order
type ShippingLine struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// DiscountCode is a discount applied to the order; an absent amount is zero
type DiscountCode struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type,omitempty"`
}

// Fulfillment is a shipment recorded on the storefront
type Fulfillment struct {
	ID        int64      `json:"id"`
	OrderID   int64      `json:"order_id"`
	Status    string     `json:"status,omitempty"`
	LineItems []LineItem `json:"line_items"`
}

// ExternalID returns the storefront fulfillment id used as deduplication key
func (f Fulfillment) ExternalID() string {
	return strconv.FormatInt(f.ID, 10)
}

// ExternalOrderID returns the id of the order that owns the fulfillment
func (f Fulfillment) ExternalOrderID() string {
	return strconv.FormatInt(f.OrderID, 10)
}

// StorefrontProduct is the full product detail used to backfill local items
type StorefrontProduct struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	BodyHTML    string              `json:"body_html,omitempty"`
	Vendor      string              `json:"vendor,omitempty"`
	ProductType string              `json:"product_type,omitempty"`
	Variants    []StorefrontVariant `json:"variants"`
}

// StorefrontVariant is a purchasable variant of a product
type StorefrontVariant struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
}
