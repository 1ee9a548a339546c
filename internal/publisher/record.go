package publisher

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"FountainProtocol/internal/calculator"
	"FountainProtocol/internal/model"
)

const (
	SchemaVersion = "1.0"
	RecordType    = "daily_snapshot"
)

// Formulas are embedded in every audit record so the numbers can be re-derived.
var Formulas = map[string]string{
	"growth_rate":       "gt = Nt_prev == 0 ? 0 : (Nt - Nt_prev) / Nt_prev",
	"cumulative_score":  "C' = gt >= growth_threshold ? C + growth_increment : (decay_enabled ? max(0, C - decay_amount) : C)",
	"growth_multiplier": "Mt = min(1 + C', multiplier_cap)",
	"donor_booster":     "Bt = (Nt == 0 || Dt <= Nt) ? 0 : min(floor(booster_multiplier * (Dt / Nt - 1)), booster_cap)",
	"final_entitlement": "Et = min(floor((base_amount + Bt) * Mt), entitlement_cap)",
	"total_allocated":   "Nt * Et",
}

// AuditRecord is the JSON document published for each computed day.
type AuditRecord struct {
	ID            string            `json:"id"`
	Protocol      string            `json:"protocol"`
	SchemaVersion string            `json:"schema_version"`
	Type          string            `json:"type"`
	Date          string            `json:"date"`
	Metrics       RecordMetrics     `json:"metrics"`
	Parameters    RecordParameters  `json:"parameters"`
	Formulas      map[string]string `json:"formulas"`
	ComputedAt    time.Time         `json:"computed_at"`
}

type RecordMetrics struct {
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
}

type RecordParameters struct {
	BaseAmount        int64           `json:"base_amount"`
	GrowthThreshold   decimal.Decimal `json:"growth_threshold"`
	GrowthIncrement   decimal.Decimal `json:"growth_increment"`
	DecayEnabled      bool            `json:"decay_enabled"`
	DecayAmount       decimal.Decimal `json:"decay_amount"`
	MultiplierCap     decimal.Decimal `json:"multiplier_cap"`
	BoosterMultiplier decimal.Decimal `json:"booster_multiplier"`
	BoosterCap        int64           `json:"booster_cap"`
	EntitlementCap    int64           `json:"entitlement_cap"`
}

// NewRecord builds the audit record for snap with a fresh record id.
func NewRecord(protocol string, p calculator.Params, snap *model.DailySnapshot) *AuditRecord {
	return &AuditRecord{
		ID:            uuid.NewString(),
		Protocol:      protocol,
		SchemaVersion: SchemaVersion,
		Type:          RecordType,
		Date:          snap.Date,
		Metrics: RecordMetrics{
			ActiveHolders:           snap.ActiveHolders,
			NewDonors:               snap.NewDonors,
			PreviousActiveHolders:   snap.PreviousActiveHolders,
			PreviousCumulativeScore: snap.PreviousCumulativeScore,
			GrowthRate:              snap.GrowthRate,
			CumulativeScore:         snap.CumulativeScore,
			GrowthMultiplier:        snap.GrowthMultiplier,
			DonorBooster:            snap.DonorBooster,
			FinalEntitlement:        snap.FinalEntitlement,
			TotalAllocated:          snap.TotalAllocated,
		},
		Parameters: RecordParameters{
			BaseAmount:        p.BaseAmount,
			GrowthThreshold:   p.GrowthThreshold,
			GrowthIncrement:   p.GrowthIncrement,
			DecayEnabled:      p.DecayEnabled,
			DecayAmount:       p.DecayAmount,
			MultiplierCap:     p.MultiplierCap,
			BoosterMultiplier: p.BoosterMultiplier,
			BoosterCap:        p.BoosterCap,
			EntitlementCap:    p.EntitlementCap,
		},
		Formulas:   Formulas,
		ComputedAt: snap.ComputedAt,
	}
}

func (r *AuditRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
