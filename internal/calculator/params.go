package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfiguration is returned when a formula parameter is missing or out of range.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Params holds every recognized formula constant.
type Params struct {
	BaseAmount        int64           // Ebase
	GrowthThreshold   decimal.Decimal // gt at or above which C ratchets up
	GrowthIncrement   decimal.Decimal
	DecayEnabled      bool
	DecayAmount       decimal.Decimal
	MultiplierCap     decimal.Decimal // Mmax
	BoosterMultiplier decimal.Decimal // Bmult
	BoosterCap        int64           // Bmax
	EntitlementCap    int64           // EmaxAbsolute
}

// DefaultParams returns the values the protocol launched with.
func DefaultParams() Params {
	return Params{
		BaseAmount:        50,
		GrowthThreshold:   decimal.RequireFromString("0.02"),
		GrowthIncrement:   decimal.RequireFromString("0.1"),
		DecayEnabled:      false,
		DecayAmount:       decimal.RequireFromString("0.05"),
		MultiplierCap:     decimal.RequireFromString("1.5"),
		BoosterMultiplier: decimal.NewFromInt(50),
		BoosterCap:        25,
		EntitlementCap:    112,
	}
}

// Validate checks ranges. Errors wrap ErrInvalidConfiguration.
func (p Params) Validate() error {
	switch {
	case p.BaseAmount <= 0:
		return invalid("base_amount must be positive")
	case p.GrowthThreshold.IsNegative():
		return invalid("growth_threshold must not be negative")
	case !p.GrowthIncrement.IsPositive():
		return invalid("growth_increment must be positive")
	case p.DecayEnabled && !p.DecayAmount.IsPositive():
		return invalid("decay_amount must be positive when decay is enabled")
	case p.MultiplierCap.LessThan(decimal.NewFromInt(1)):
		return invalid("multiplier_cap must be at least 1")
	case p.BoosterMultiplier.IsNegative():
		return invalid("booster_multiplier must not be negative")
	case p.BoosterCap < 0:
		return invalid("booster_cap must not be negative")
	case p.EntitlementCap <= 0:
		return invalid("entitlement_cap must be positive")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, msg)
}
