// Package money holds the decimal arithmetic shared by the matcher, the
// split resolver and the report builder: cent-level tolerance comparison and
// GST back-calculation from tax-inclusive amounts.
package money

import "github.com/shopspring/decimal"

// CentTolerance is the rounding tolerance applied everywhere two amounts are
// compared for equality ($0.01).
var CentTolerance = decimal.New(1, -2)

var (
	gstRate    = decimal.NewFromInt(5)
	gstDivisor = decimal.NewFromInt(105)
)

// WithinCent reports whether two amounts agree to within $0.01.
func WithinCent(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(CentTolerance)
}

// GSTFromGross back-calculates the 5% GST component contained in a
// tax-inclusive gross amount, rounded to cents.
func GSTFromGross(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(gstRate).Div(gstDivisor).Round(2)
}

// NetFromGross returns the pre-tax portion of a tax-inclusive gross amount.
func NetFromGross(gross decimal.Decimal) decimal.Decimal {
	return gross.Sub(GSTFromGross(gross))
}
