package forecast

import (
	"fmt"
	"math"
)

// AmountFormatter renders an amount for embedding in explanation strings.
// Callers supply their own currency/locale formatting; nil falls back to a
// plain two-decimal rendering so the engine itself stays locale-agnostic.
type AmountFormatter func(amount float64) string

// Result is a projected amount plus a one-line justification suitable for
// display as a caveat next to the number. Value is always rounded to two
// decimal places, half away from zero.
type Result struct {
	Value       float64
	Explanation string
}

// MonthProjectionInput feeds ProjectMonthNet. Amounts are signed: income
// positive, expenses negative.
type MonthProjectionInput struct {
	// RealizedNet is the net cash flow of the month so far.
	RealizedNet float64
	// CommittedFutureNet is the net of transactions already dated within
	// the remaining days (known recurring bills, scheduled transfers).
	// Leave zero to project from a single aggregated trend.
	CommittedFutureNet float64
	// TrendWindowNet is the discretionary (non-recurring) net over the
	// trailing window. Extrapolating only discretionary flow keeps
	// committed amounts from being counted twice.
	TrendWindowNet float64
	WindowDays     int
	RemainingDays  int
	Format         AmountFormatter
}

// YearEndProjectionInput feeds ProjectYearEndImpact.
type YearEndProjectionInput struct {
	ProjectedMonthNet float64
	MonthsRemaining   int
	// HistoricalMonthlyNets holds prior months' net totals in any order;
	// only the mean is used. Empty means no history.
	HistoricalMonthlyNets []float64
	Format                AmountFormatter
}

// ProjectMonthNet extrapolates the month-end net position from the realized
// net, committed future transactions and the trailing discretionary trend.
// Degenerate inputs (closed month, empty trend window) return a well-defined
// fallback instead of an error.
func ProjectMonthNet(in MonthProjectionInput) Result {
	format := in.formatter()

	if in.RemainingDays <= 0 {
		return Result{
			Value:       round2(in.RealizedNet),
			Explanation: "month is closed; realized net of " + format(in.RealizedNet) + " is final",
		}
	}

	if in.WindowDays <= 0 {
		value := in.RealizedNet + in.CommittedFutureNet
		return Result{
			Value:       round2(value),
			Explanation: "no trailing trend data; projection is realized net plus committed transactions",
		}
	}

	dailyAvg := in.TrendWindowNet / float64(in.WindowDays)
	projected := in.RealizedNet + in.CommittedFutureNet + dailyAvg*float64(in.RemainingDays)
	return Result{
		Value: round2(projected),
		Explanation: fmt.Sprintf("realized %s plus committed %s plus %d-day discretionary trend over %d remaining days",
			format(in.RealizedNet), format(in.CommittedFutureNet), in.WindowDays, in.RemainingDays),
	}
}

// ProjectYearEndImpact estimates the cumulative net impact of the remaining
// months. With history available it multiplies the signed minimum of the
// month projection and the historical monthly average, so the worse figure
// always wins; the product must never over-promise year-end savings.
func ProjectYearEndImpact(in YearEndProjectionInput) Result {
	format := in.formatter()

	if in.MonthsRemaining <= 0 {
		return Result{Value: 0, Explanation: "year ended; no remaining months to project"}
	}

	if len(in.HistoricalMonthlyNets) == 0 {
		value := in.ProjectedMonthNet * float64(in.MonthsRemaining)
		return Result{
			Value: round2(value),
			Explanation: fmt.Sprintf("no monthly history; current projection %s extended over %d months",
				format(in.ProjectedMonthNet), in.MonthsRemaining),
		}
	}

	historicalAvg := mean(in.HistoricalMonthlyNets)
	conservativeRate := math.Min(in.ProjectedMonthNet, historicalAvg)
	value := conservativeRate * float64(in.MonthsRemaining)
	return Result{
		Value: round2(value),
		Explanation: fmt.Sprintf("conservative estimate: lower of current projection %s and historical average %s, over %d months",
			format(in.ProjectedMonthNet), format(historicalAvg), in.MonthsRemaining),
	}
}

func (in MonthProjectionInput) formatter() AmountFormatter {
	if in.Format != nil {
		return in.Format
	}
	return plainAmount
}

func (in YearEndProjectionInput) formatter() AmountFormatter {
	if in.Format != nil {
		return in.Format
	}
	return plainAmount
}

func plainAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// round2 rounds to two decimal places, half away from zero on value*100.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
