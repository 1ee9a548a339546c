package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OracleState is the carried-forward record written once per day.
type OracleState struct {
	Date            string          `json:"date"`
	CumulativeScore decimal.Decimal `json:"cumulative_score"`
	ActiveHolders   int64           `json:"active_holders"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// InitialState is used when no prior state exists.
func InitialState() OracleState {
	return OracleState{CumulativeScore: decimal.Zero}
}
