package report

import (
	"math"

	"lakumart/backoffice/internal/domain"
)

// DefaultTaxRate is the tax-inclusive rate used to reverse-derive tax from
// offline totals when no rate is configured.
const DefaultTaxRate = 0.11

// Combine layers the locally computed totals for spec on top of the
// server-reported summary. The remote figures are never recomputed; every
// additive field only gains the local contribution, and AverageDuration is
// passed through unchanged because offline records carry no timing data.
//
// Both halves use the identical predicate: the remote summary was produced
// for spec server-side, and the local half filters through the same
// spec.Matches here. Returning nil means "no data at all", which callers must
// render as an empty state, distinct from an all-zero summary.
func Combine(remoteSummary *domain.Summary, local []domain.Transaction, spec FilterSpec, taxRate float64) *domain.Summary {
	if taxRate <= 0 {
		taxRate = DefaultTaxRate
	}

	var localSummary domain.Summary
	for _, tx := range local {
		if !spec.Matches(tx) {
			continue
		}
		gross := tx.SubtotalCents
		if tx.TotalCents > gross {
			gross = tx.TotalCents
		}
		localSummary.GrossSalesCents += gross
		localSummary.TransactionCount++
		// Offline entries never apply discounts; the stored total is
		// tax-inclusive, so tax is reverse-derived from it.
		localSummary.TaxCents += int64(math.Round(float64(tx.TotalCents) * taxRate / (1 + taxRate)))
		localSummary.NetSalesCents += tx.TotalCents
	}

	if remoteSummary == nil {
		if localSummary.TransactionCount == 0 {
			return nil
		}
		return &localSummary
	}

	combined := domain.Summary{
		GrossSalesCents:  remoteSummary.GrossSalesCents + localSummary.GrossSalesCents,
		TransactionCount: remoteSummary.TransactionCount + localSummary.TransactionCount,
		DiscountCents:    remoteSummary.DiscountCents + localSummary.DiscountCents,
		TaxCents:         remoteSummary.TaxCents + localSummary.TaxCents,
		NetSalesCents:    remoteSummary.NetSalesCents + localSummary.NetSalesCents,
		AverageDuration:  remoteSummary.AverageDuration,
	}
	return &combined
}
