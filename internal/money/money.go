// Package money converts between decimal naira amounts used on the wire and
// the int64 kobo amounts stored in the ledger.
package money

import "github.com/shopspring/decimal"

const minorUnits = 100

var minorFactor = decimal.NewFromInt(minorUnits)

func ToKobo(amount decimal.Decimal) int64 {
	return amount.Mul(minorFactor).IntPart()
}

func FromKobo(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(minorFactor)
}

func FormatNaira(kobo int64) string {
	return "₦" + FromKobo(kobo).StringFixedBank(2)
}
