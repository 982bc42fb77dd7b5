package ledger

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the ISO code used for display when none is configured.
const DefaultCurrency = "PHP"

// FormatMoney renders amount in the given currency, e.g. "₱1,250.00".
// Amounts are rounded half away from zero to the currency's minor unit.
// Unknown currency codes fall back to two fixed decimals.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
