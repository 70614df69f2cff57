package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rates holds the pricing knobs applied when a booking is created.
type Rates struct {
	Commission decimal.Decimal
	Tax        decimal.Decimal
	SLA        time.Duration
	InvoiceDue time.Duration
}

// RateTable resolves rates per region, falling back to a default row.
type RateTable struct {
	Default  Rates
	ByRegion map[uuid.UUID]Rates
}

// DefaultRateTable returns the platform-wide baseline rates.
func DefaultRateTable() RateTable {
	return RateTable{
		Default: Rates{
			Commission: decimal.RequireFromString("0.10"),
			Tax:        decimal.RequireFromString("0.20"),
			SLA:        72 * time.Hour,
			InvoiceDue: 14 * 24 * time.Hour,
		},
	}
}

// For returns the rates for the given region, or the default row.
func (t RateTable) For(regionID uuid.UUID) Rates {
	if rates, ok := t.ByRegion[regionID]; ok {
		return rates
	}
	return t.Default
}

// BookingTotals is the monetary breakdown computed at booking creation.
type BookingTotals struct {
	Base       decimal.Decimal
	Commission decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
}

// ComputeTotals derives commission and tax from the base amount. Amounts are
// rounded to two decimal places before summing so the stored parts always add
// up to the stored total.
func ComputeTotals(base decimal.Decimal, rates Rates) BookingTotals {
	commission := base.Mul(rates.Commission).Round(2)
	tax := base.Mul(rates.Tax).Round(2)
	return BookingTotals{
		Base:       base,
		Commission: commission,
		Tax:        tax,
		Total:      base.Add(commission).Add(tax),
	}
}
