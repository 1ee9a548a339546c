package calculator

import "github.com/shopspring/decimal"

// DonorBooster returns min(floor(Bmult * (dt/nt - 1)), Bmax), or 0 when there are
// no holders or donors do not outnumber holders.
func DonorBooster(p Params, dt, nt int64) int64 {
	if nt <= 0 || dt <= nt {
		return 0
	}
	// Bmult * (dt/nt - 1) == Bmult * (dt - nt) / nt, which keeps the quotient exact
	// for integer Bmult.
	raw := p.BoosterMultiplier.
		Mul(decimal.NewFromInt(dt - nt)).
		Div(decimal.NewFromInt(nt)).
		Floor().
		IntPart()
	if raw > p.BoosterCap {
		return p.BoosterCap
	}
	return raw
}
