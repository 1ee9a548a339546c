package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySnapshot is the oracle output for one day. Never mutated after creation.
type DailySnapshot struct {
	Date                    string          `json:"date"`
	ActiveHolders           int64           `json:"active_holders"`
	NewDonors               int64           `json:"new_donors"`
	PreviousActiveHolders   int64           `json:"previous_active_holders"`
	PreviousCumulativeScore decimal.Decimal `json:"previous_cumulative_score"`
	GrowthRate              decimal.Decimal `json:"growth_rate"`
	CumulativeScore         decimal.Decimal `json:"cumulative_score"`
	GrowthMultiplier        decimal.Decimal `json:"growth_multiplier"`
	DonorBooster            int64           `json:"donor_booster"`
	FinalEntitlement        int64           `json:"final_entitlement"`
	TotalAllocated          int64           `json:"total_allocated"`
	ComputedAt              time.Time       `json:"computed_at"`
}

// State returns the carried-forward state produced by this snapshot.
func (s *DailySnapshot) State() OracleState {
	return OracleState{
		Date:            s.Date,
		CumulativeScore: s.CumulativeScore,
		ActiveHolders:   s.ActiveHolders,
		UpdatedAt:       s.ComputedAt,
	}
}
