package trade

import (
	"github.com/shopspring/decimal"
)

// DocStatus is the lifecycle state shared by all sales documents
type DocStatus int

const (
	DocStatusDraft     DocStatus = 0
	DocStatusSubmitted DocStatus = 1
	DocStatusCancelled DocStatus = 2
)

// IsValid checks if the status is a known DocStatus
func (s DocStatus) IsValid() bool {
	switch s {
	case DocStatusDraft, DocStatusSubmitted, DocStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of DocStatus
func (s DocStatus) String() string {
	switch s {
	case DocStatusDraft:
		return "Draft"
	case DocStatusSubmitted:
		return "Submitted"
	case DocStatusCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// ChargeType determines how a tax row amount is computed
type ChargeType string

const (
	ChargeTypeOnNetTotal ChargeType = "On Net Total"
	ChargeTypeActual     ChargeType = "Actual"
)

// ApplyDiscountOnGrandTotal is the only discount basis used by synced orders
const ApplyDiscountOnGrandTotal = "Grand Total"

var hundred = decimal.NewFromInt(100)

// TaxRow is one sales taxes-and-charges row
type TaxRow struct {
	ChargeType          ChargeType
	AccountHead         string
	Description         string
	Rate                decimal.Decimal // percent, e.g. 20 for 20%
	TaxAmount           decimal.Decimal // set for Actual charges
	IncludedInPrintRate bool
	CostCenter          string
}

// Amount returns the tax amount for the given net total.
// An included on-net-total tax is the share already contained in net.
func (t TaxRow) Amount(net decimal.Decimal) decimal.Decimal {
	switch t.ChargeType {
	case ChargeTypeActual:
		return t.TaxAmount
	case ChargeTypeOnNetTotal:
		if t.IncludedInPrintRate {
			return net.Mul(t.Rate).Div(hundred.Add(t.Rate)).Round(2)
		}
		return net.Mul(t.Rate).Div(hundred).Round(2)
	}
	return decimal.Zero
}

// addsToTotal reports whether the row increases the grand total
func (t TaxRow) addsToTotal() bool {
	return !(t.ChargeType == ChargeTypeOnNetTotal && t.IncludedInPrintRate)
}

// computeGrandTotal returns net + added taxes - discount, floored at zero
func computeGrandTotal(net decimal.Decimal, taxes []TaxRow, discount decimal.Decimal) decimal.Decimal {
	total := net
	for _, t := range taxes {
		if t.addsToTotal() {
			total = total.Add(t.Amount(net))
		}
	}
	total = total.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func copyTaxes(taxes []TaxRow) []TaxRow {
	out := make([]TaxRow, len(taxes))
	copy(out, taxes)
	return out
}
