package forecast

import (
	"fmt"
	"math"
)

const (
	TonePositive Tone = "positive"
	ToneNeutral  Tone = "neutral"
	ToneCaution  Tone = "caution"
)

// maxInsights caps a diagnosis run. With one insight per rule this is a
// safety bound rather than an active truncation.
const maxInsights = 3

type (
	// Tone classifies an insight so the UI can pick styling without
	// re-deriving sentiment.
	Tone string

	// Insight is one short, non-judgmental observation about the month.
	Insight struct {
		Text string
		Tone Tone
	}

	// BudgetSummary counts budget health for the active period.
	// OnTrack + OverBudget must equal Total.
	BudgetSummary struct {
		Total      int
		OnTrack    int
		OverBudget int
	}

	// DiagnosisInput carries the aggregates a diagnosis is derived from.
	// Amounts are signed; Budgets nil means no budgets are configured.
	DiagnosisInput struct {
		MonthIncome       float64
		MonthNet          float64
		ProjectedMonthNet float64
		RemainingDays     int
		Budgets           *BudgetSummary
		Format            AmountFormatter
	}
)

// GenerateDiagnosis derives at most three insights in fixed priority order:
// savings rate, then budget health, then month direction. Each rule is
// independently skipped when its input is unavailable; the remaining rules
// keep their relative order.
func GenerateDiagnosis(in DiagnosisInput) []Insight {
	insights := make([]Insight, 0, maxInsights)

	if insight, ok := savingsRateInsight(in); ok {
		insights = append(insights, insight)
	}
	if insight, ok := budgetHealthInsight(in.Budgets); ok && len(insights) < maxInsights {
		insights = append(insights, insight)
	}
	if insight, ok := monthDirectionInsight(in); ok && len(insights) < maxInsights {
		insights = append(insights, insight)
	}

	return insights
}

// savingsRateInsight applies only when there is income this month; a zero
// income would make the ratio meaningless (and divide by zero).
func savingsRateInsight(in DiagnosisInput) (Insight, bool) {
	if in.MonthIncome <= 0 {
		return Insight{}, false
	}

	rate := math.Round(in.MonthNet / in.MonthIncome * 100)
	switch {
	case rate >= 20:
		return Insight{
			Text: fmt.Sprintf("You are saving %.0f%% of your income this month", rate),
			Tone: TonePositive,
		}, true
	case rate >= 0:
		return Insight{
			Text: fmt.Sprintf("You are saving %.0f%% of your income this month", rate),
			Tone: ToneNeutral,
		}, true
	default:
		return Insight{
			Text: fmt.Sprintf("Expenses exceeded income by %.0f%% this month", -rate),
			Tone: ToneCaution,
		}, true
	}
}

func budgetHealthInsight(b *BudgetSummary) (Insight, bool) {
	if b == nil || b.Total <= 0 {
		return Insight{}, false
	}

	if b.OverBudget == 0 {
		return Insight{
			Text: fmt.Sprintf("All %d budgets are on track", b.Total),
			Tone: TonePositive,
		}, true
	}
	return Insight{
		Text: fmt.Sprintf("%d of %d budgets exceeded their limit", b.OverBudget, b.Total),
		Tone: ToneCaution,
	}, true
}

// monthDirectionInsight compares the projection against today's realized
// net. The severe negative-flip case is checked before the generic decline
// case on purpose; the branch conditions overlap and only this order gives
// the intended message for a positive month projected to turn negative.
func monthDirectionInsight(in DiagnosisInput) (Insight, bool) {
	if in.RemainingDays <= 0 {
		return Insight{}, false
	}

	format := in.Format
	if format == nil {
		format = plainAmount
	}

	switch {
	case in.MonthNet >= 0 && in.ProjectedMonthNet < 0:
		return Insight{
			Text: "At the current pace this month's balance turns negative (projected " +
				format(in.ProjectedMonthNet) + ")",
			Tone: ToneCaution,
		}, true
	case in.ProjectedMonthNet < in.MonthNet && in.MonthNet > 0:
		return Insight{
			Text: "The spending trend may reduce this month's balance to " +
				format(in.ProjectedMonthNet),
			Tone: ToneCaution,
		}, true
	case in.ProjectedMonthNet > in.MonthNet && in.ProjectedMonthNet >= 0:
		return Insight{
			Text: "The current pace suggests the month will improve to " +
				format(in.ProjectedMonthNet),
			Tone: TonePositive,
		}, true
	}
	return Insight{}, false
}
