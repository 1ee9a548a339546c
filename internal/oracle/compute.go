package oracle

import (
	"time"

	"github.com/shopspring/decimal"

	"FountainProtocol/internal/calculator"
	"FountainProtocol/internal/model"
)

// Compute derives the day's snapshot and the next carried-forward state from the
// observed counts and the prior state. It performs no I/O.
func Compute(p calculator.Params, date string, counts model.Counts, prior model.OracleState, now time.Time) (*model.DailySnapshot, model.OracleState) {
	gt := canonical(calculator.GrowthRate(counts.ActiveHolders, prior.ActiveHolders))
	c := canonical(calculator.UpdateCumulativeScore(p, gt, prior.CumulativeScore))
	mt := canonical(calculator.GrowthMultiplier(p, c))
	bt := calculator.DonorBooster(p, counts.NewDonors, counts.ActiveHolders)
	et := calculator.FinalEntitlement(p, bt, mt)

	snap := &model.DailySnapshot{
		Date:                    date,
		ActiveHolders:           counts.ActiveHolders,
		NewDonors:               counts.NewDonors,
		PreviousActiveHolders:   prior.ActiveHolders,
		PreviousCumulativeScore: canonical(prior.CumulativeScore),
		GrowthRate:              gt,
		CumulativeScore:         c,
		GrowthMultiplier:        mt,
		DonorBooster:            bt,
		FinalEntitlement:        et,
		TotalAllocated:          counts.ActiveHolders * et,
		ComputedAt:              now.UTC(),
	}
	return snap, snap.State()
}

// canonical returns d in the form it takes after a round trip through its
// decimal string, which is how every store persists it.
func canonical(d decimal.Decimal) decimal.Decimal {
	return decimal.RequireFromString(d.String())
}
