package commission

import (
	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// COMMISSION TIERS
// =============================================================================

// Tier upper bounds are inclusive: a total of exactly 2000 stays in the first tier.
var (
	tierOneLimit = decimal.NewFromInt(2000)
	tierTwoLimit = decimal.NewFromInt(4000)

	MultiplierTierOne   = decimal.RequireFromString("1.2")
	MultiplierTierTwo   = decimal.RequireFromString("1.4")
	MultiplierTierThree = decimal.RequireFromString("1.6")
)

// Multiplier returns the commission tier for a collaborator's monthly paid total.
// The commission rate is Multiplier - 1 (20%, 40% or 60%).
func Multiplier(total decimal.Decimal) decimal.Decimal {
	switch {
	case total.LessThanOrEqual(tierOneLimit):
		return MultiplierTierOne
	case total.LessThanOrEqual(tierTwoLimit):
		return MultiplierTierTwo
	default:
		return MultiplierTierThree
	}
}

// CommissionValue is total * (Multiplier(total) - 1), rounded half to even at cents.
func CommissionValue(total decimal.Decimal) decimal.Decimal {
	rate := Multiplier(total).Sub(decimal.NewFromInt(1))
	return generic.RoundMoney(total.Mul(rate))
}

// =============================================================================
// PAYOUT SCHEDULE
// =============================================================================

const (
	// PayrollCutoffDay is the last day of the month whose client payments
	// make the same month's payout run.
	PayrollCutoffDay = 5

	// MidMonthPayoutDay is the payout run for payments up to the cutoff.
	MidMonthPayoutDay = 20

	// EarlyMonthPayoutDay is the next month's payout run for later payments.
	EarlyMonthPayoutDay = 5
)

// ReceiptDate returns the day the collaborator is scheduled to be paid for an
// installment the client paid on clientPaid.
//
//	paid on/before the 5th -> 20th of the same month
//	paid after the 5th     -> 5th of the following month
func ReceiptDate(clientPaid generic.Date) generic.Date {
	if clientPaid.Day() <= PayrollCutoffDay {
		return clientPaid.WithDay(MidMonthPayoutDay)
	}
	return clientPaid.AddMonths(1).WithDay(EarlyMonthPayoutDay)
}
