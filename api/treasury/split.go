// Package treasury partitions verified payments into operations, reinvest,
// and burn allocations under bounded, administrator-configured percentages.
package treasury

import (
	"math"

	"github.com/dctlabs/dct-backend/api/apperr"
)

// Percentage bounds. A control record outside these bounds is treated as
// misconfiguration and fails the settlement rather than silently
// misallocating funds.
const (
	OpsPctMin    = 0
	OpsPctMax    = 30
	InvestPctMin = 40
	InvestPctMax = 90
	BurnPctMin   = 0
	BurnPctMax   = 50

	// pctSumTolerance absorbs float representation of the configured
	// percentages; the three must sum to 100.
	pctSumTolerance = 0.01
)

// Config is the administrator-configured split, in whole percent.
type Config struct {
	OpsPct    float64
	InvestPct float64
	BurnPct   float64
}

// Validate checks each percentage against its bounds and the sum against 100.
func (c Config) Validate() error {
	if c.OpsPct < OpsPctMin || c.OpsPct > OpsPctMax {
		return apperr.Errorf(apperr.KindInternal, "treasury config: ops percentage %.2f outside [%d, %d]", c.OpsPct, OpsPctMin, OpsPctMax)
	}
	if c.InvestPct < InvestPctMin || c.InvestPct > InvestPctMax {
		return apperr.Errorf(apperr.KindInternal, "treasury config: invest percentage %.2f outside [%d, %d]", c.InvestPct, InvestPctMin, InvestPctMax)
	}
	if c.BurnPct < BurnPctMin || c.BurnPct > BurnPctMax {
		return apperr.Errorf(apperr.KindInternal, "treasury config: burn percentage %.2f outside [%d, %d]", c.BurnPct, BurnPctMin, BurnPctMax)
	}
	if math.Abs(c.OpsPct+c.InvestPct+c.BurnPct-100) > pctSumTolerance {
		return apperr.Errorf(apperr.KindInternal, "treasury config: percentages sum to %.2f, expected 100", c.OpsPct+c.InvestPct+c.BurnPct)
	}
	return nil
}

// Split is a partition of a payment, in nanotons. OpsNano + InvestNano +
// BurnNano always equals the input amount exactly.
type Split struct {
	OpsNano    int64
	InvestNano int64
	BurnNano   int64
}

// Split partitions amountNano per the configured percentages. Ops and invest
// are rounded half away from zero at nanoton precision; burn takes the exact
// residual (clamped at zero) so the partition never leaks or double-counts a
// single nanoton.
func (c Config) Split(amountNano int64) (Split, error) {
	if err := c.Validate(); err != nil {
		return Split{}, err
	}
	if amountNano < 0 {
		return Split{}, apperr.New(apperr.KindValidation, "amount must be non-negative")
	}

	ops := int64(math.Round(float64(amountNano) * c.OpsPct / 100))
	invest := int64(math.Round(float64(amountNano) * c.InvestPct / 100))

	burn := amountNano - ops - invest
	if burn < 0 {
		// Rounding pushed ops+invest past the total; take the overshoot
		// out of the invest leg so the sum stays exact.
		invest += burn
		burn = 0
	}

	return Split{OpsNano: ops, InvestNano: invest, BurnNano: burn}, nil
}
