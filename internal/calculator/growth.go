package calculator

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// GrowthRate returns (nt - ntPrev) / ntPrev, or 0 when there was no prior holder count.
func GrowthRate(nt, ntPrev int64) decimal.Decimal {
	if ntPrev == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(nt - ntPrev).Div(decimal.NewFromInt(ntPrev))
}

// UpdateCumulativeScore ratchets C up when growth meets the threshold, optionally
// decays it otherwise. The result is never negative.
func UpdateCumulativeScore(p Params, gt, c decimal.Decimal) decimal.Decimal {
	if gt.GreaterThanOrEqual(p.GrowthThreshold) {
		return c.Add(p.GrowthIncrement)
	}
	if p.DecayEnabled {
		return decimal.Max(decimal.Zero, c.Sub(p.DecayAmount))
	}
	return c
}

// GrowthMultiplier returns min(1 + C, cap).
func GrowthMultiplier(p Params, c decimal.Decimal) decimal.Decimal {
	return decimal.Min(one.Add(c), p.MultiplierCap)
}
