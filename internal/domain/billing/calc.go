// Package billing holds the pure rules of the billing ledger: bill totals,
// paid aggregates, due amounts and status derivation. Nothing here touches
// storage, so every call site computes the same numbers.
package billing

import (
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places due amounts are rounded to
const MoneyPlaces = 2

// ComputeTotal returns Σ(quantity × unit_price) over items
func ComputeTotal(items []*entity.BillItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount())
	}
	return total
}

// PaidAmount returns the sum of payment amounts, or zero when there are none
func PaidAmount(payments []*entity.Payment) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// DueAmount returns total − paid rounded to two places. The result may be
// negative for overpaid bills.
func DueAmount(total, paid decimal.Decimal) decimal.Decimal {
	return total.Sub(paid).Round(MoneyPlaces)
}

// DeriveStatus returns the bill status implied by the cumulative paid amount.
// paid ≥ total gives paid, 0 < paid < total gives partial, and a zero paid
// amount leaves current unchanged.
func DeriveStatus(current entity.BillStatus, total, paid decimal.Decimal) entity.BillStatus {
	switch {
	case !paid.IsPositive():
		return current
	case paid.GreaterThanOrEqual(total):
		return entity.StatusPaid
	default:
		return entity.StatusPartial
	}
}
