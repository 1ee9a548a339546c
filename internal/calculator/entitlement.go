package calculator

import "github.com/shopspring/decimal"

// FinalEntitlement returns min(floor((Ebase + bt) * mt), EmaxAbsolute), never negative.
func FinalEntitlement(p Params, bt int64, mt decimal.Decimal) int64 {
	et := decimal.NewFromInt(p.BaseAmount + bt).Mul(mt).Floor().IntPart()
	if et > p.EntitlementCap {
		et = p.EntitlementCap
	}
	if et < 0 {
		et = 0
	}
	return et
}
