package services

import (
	"context"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// DailyBalance is one day's slice of a month: the recurrence expansion
// applied at daily granularity with a running balance.
type DailyBalance struct {
	Date             core.Date       `json:"date"`
	StartingBalance  decimal.Decimal `json:"startingBalance"`
	Income           decimal.Decimal `json:"income"`
	Expenses         decimal.Decimal `json:"expenses"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
}

// MonthDailyBreakdown pairs the persisted month row with its per-day walk.
type MonthDailyBreakdown struct {
	MonthBalance  core.BalanceLedgerEntry `json:"monthBalance"`
	DailyBalances []DailyBalance          `json:"dailyBalances"`
}

// DailyBalances computes the day-by-day breakdown for one month. It requires
// the month's ledger row (core.ErrNotFound when the updater has not visited
// that month yet); the running balance starts at the row's starting balance.
func (s *SummaryService) DailyBalances(ctx context.Context, userID string, year, month int) (MonthDailyBreakdown, error) {
	entry, err := s.MonthLedger(ctx, userID, year, month)
	if err != nil {
		return MonthDailyBreakdown{}, err
	}

	window := core.MonthWindow(year, month)
	set, err := fetchRecords(ctx, s.records, userID, window)
	if err != nil {
		return MonthDailyBreakdown{}, err
	}

	out := MonthDailyBreakdown{MonthBalance: entry}
	running := entry.StartingBalance
	for day := window.Start; !day.After(window.End); day = day.AddDays(1) {
		summary := core.Aggregate(set, core.DayWindow(day))
		remaining := core.RoundMoney(running.Add(summary.IncomeTotal).Sub(summary.ExpenseTotal))
		out.DailyBalances = append(out.DailyBalances, DailyBalance{
			Date:             day,
			StartingBalance:  running,
			Income:           summary.IncomeTotal,
			Expenses:         summary.ExpenseTotal,
			RemainingBalance: remaining,
		})
		running = remaining
	}
	return out, nil
}
