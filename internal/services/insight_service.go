package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/core"
	"bilancio/internal/forecast"
)

// trendWindowDays is the trailing window used to estimate discretionary
// spending pace. Thirty days smooths out weekly cycles without reaching so
// far back that an old salary change skews the trend.
const trendWindowDays = 30

// historyMonths is how many past calendar months feed the conservative
// year-end projection.
const historyMonths = 6

// InsightStore is the slice of the repository the insight service needs.
type InsightStore interface {
	MonthRealizedNet(ctx context.Context, year, month int, upTo time.Time) (core.Money, error)
	MonthIncome(ctx context.Context, year, month int, upTo time.Time) (core.Money, error)
	TrailingDiscretionaryNet(ctx context.Context, from, to time.Time) (core.Money, error)
	CommittedFutureNet(ctx context.Context, after, until time.Time) (core.Money, error)
	MonthlyNetHistory(ctx context.Context, before time.Time, months int) ([]core.Money, error)
	BudgetStatus(ctx context.Context, year, month int) (total, onTrack, overBudget int, err error)
}

// MonthInsights is the full diagnostic view for one month.
type MonthInsights struct {
	Year  int `json:"year"`
	Month int `json:"month"`

	RealizedNet       float64 `json:"realized_net"`
	MonthIncome       float64 `json:"month_income"`
	RemainingDays     int     `json:"remaining_days"`
	ProjectedMonthNet float64 `json:"projected_month_net"`
	MonthExplanation  string  `json:"month_explanation"`
	YearEndImpact     float64 `json:"year_end_impact"`
	YearExplanation   string  `json:"year_explanation"`

	Insights []forecast.Insight `json:"insights"`
}

// InsightService gathers the month's aggregates and runs them through the
// projection and diagnosis engine.
type InsightService struct {
	store  InsightStore
	format forecast.AmountFormatter
	now    func() time.Time
}

func NewInsightService(store InsightStore, currency string) *InsightService {
	return &InsightService{
		store:  store,
		format: currencyFormatter(currency),
		now:    time.Now,
	}
}

// MonthInsights computes the diagnostic view for the month containing now.
// The aggregate queries are independent, so they run concurrently.
func (s *InsightService) MonthInsights(ctx context.Context) (*MonthInsights, error) {
	now := s.now()
	year, month := now.Year(), int(now.Month())
	monthEnd := time.Date(year, now.Month()+1, 0, 0, 0, 0, 0, now.Location())
	remainingDays := monthEnd.Day() - now.Day()

	var (
		realized, income, trend, committed core.Money
		history                            []core.Money
		budgets                            forecast.BudgetSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		realized, err = s.store.MonthRealizedNet(gctx, year, month, now)
		return err
	})
	g.Go(func() (err error) {
		income, err = s.store.MonthIncome(gctx, year, month, now)
		return err
	})
	g.Go(func() (err error) {
		from := now.AddDate(0, 0, -(trendWindowDays - 1))
		trend, err = s.store.TrailingDiscretionaryNet(gctx, from, now)
		return err
	})
	g.Go(func() (err error) {
		committed, err = s.store.CommittedFutureNet(gctx, now, monthEnd)
		return err
	})
	g.Go(func() (err error) {
		history, err = s.store.MonthlyNetHistory(gctx, now, historyMonths)
		return err
	})
	g.Go(func() (err error) {
		budgets.Total, budgets.OnTrack, budgets.OverBudget, err = s.store.BudgetStatus(gctx, year, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gather month aggregates: %w", err)
	}

	monthProj := forecast.ProjectMonthNet(forecast.MonthProjectionInput{
		RealizedNet:        realized.Units(),
		CommittedFutureNet: committed.Units(),
		TrendWindowNet:     trend.Units(),
		WindowDays:         trendWindowDays,
		RemainingDays:      remainingDays,
		Format:             s.format,
	})

	nets := make([]float64, len(history))
	for i, m := range history {
		nets[i] = m.Units()
	}
	yearProj := forecast.ProjectYearEndImpact(forecast.YearEndProjectionInput{
		ProjectedMonthNet:     monthProj.Value,
		MonthsRemaining:       12 - month,
		HistoricalMonthlyNets: nets,
		Format:                s.format,
	})

	insights := forecast.GenerateDiagnosis(forecast.DiagnosisInput{
		MonthIncome:       income.Units(),
		MonthNet:          realized.Units(),
		ProjectedMonthNet: monthProj.Value,
		RemainingDays:     remainingDays,
		Budgets:           &budgets,
		Format:            s.format,
	})

	return &MonthInsights{
		Year:              year,
		Month:             month,
		RealizedNet:       realized.Units(),
		MonthIncome:       income.Units(),
		RemainingDays:     remainingDays,
		ProjectedMonthNet: monthProj.Value,
		MonthExplanation:  monthProj.Explanation,
		YearEndImpact:     yearProj.Value,
		YearExplanation:   yearProj.Explanation,
		Insights:          insights,
	}, nil
}

// currencyFormatter renders amounts like "1234.56 EUR". The engine stays
// locale-agnostic; presentation happens here.
func currencyFormatter(currency string) forecast.AmountFormatter {
	return func(v float64) string {
		return fmt.Sprintf("%.2f %s", v, currency)
	}
}
