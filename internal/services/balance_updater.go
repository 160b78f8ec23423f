package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Default recompute horizon around the anchor month.
const (
	DefaultMonthsBack    = 36
	DefaultMonthsForward = 24
)

// BalanceUpdater walks consecutive calendar months across the horizon and
// carries each month's ending balance into the next month's starting balance.
// The walk is strictly sequential: month m+1 depends on month m's output, so
// it must never be parallelized. Concurrent runs for the same user are
// collapsed through a singleflight group to keep the carry-forward intact.
type BalanceUpdater struct {
	records       RecordStore
	ledger        LedgerStore
	monthsBack    int
	monthsForward int
	group         singleflight.Group
}

func NewBalanceUpdater(records RecordStore, ledger LedgerStore, monthsBack, monthsForward int) *BalanceUpdater {
	if monthsBack <= 0 {
		monthsBack = DefaultMonthsBack
	}
	if monthsForward <= 0 {
		monthsForward = DefaultMonthsForward
	}
	return &BalanceUpdater{
		records:       records,
		ledger:        ledger,
		monthsBack:    monthsBack,
		monthsForward: monthsForward,
	}
}

// UpdateBalances recomputes the ledger for the horizon around anchor.
// Re-running with unchanged records produces identical rows: every balance is
// rounded once when persisted and carried forward verbatim.
func (u *BalanceUpdater) UpdateBalances(ctx context.Context, userID string, anchor core.Date) error {
	if userID == "" {
		return fmt.Errorf("update balances: %w", core.ErrUnauthorized)
	}
	_, err, _ := u.group.Do(userID, func() (any, error) {
		return nil, u.run(ctx, userID, anchor)
	})
	return err
}

func (u *BalanceUpdater) run(ctx context.Context, userID string, anchor core.Date) error {
	start := anchor.StartOfMonth().AddMonths(-u.monthsBack)
	months := u.monthsBack + u.monthsForward + 1

	carry, err := u.seedCarry(ctx, userID, start)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Ledger update started",
		"user_id", userID,
		"first_month", start.String(),
		"months", months,
		"initial_carry", carry.String())

	for i := 0; i < months; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("update balances: %w", err)
		}
		month := start.AddMonths(i)
		window := core.MonthWindow(month.Year(), month.Month())

		set, err := fetchRecords(ctx, u.records, userID, window)
		if err != nil {
			// Persist is the only write and it has not happened for this
			// month, so earlier months stay intact and later ones untouched.
			return fmt.Errorf("ledger month %d-%02d: %w", month.Year(), month.Month(), err)
		}
		summary := core.Aggregate(set, window)

		remaining := core.RoundMoney(carry.Add(summary.IncomeTotal).Sub(summary.ExpenseTotal))
		entry := core.BalanceLedgerEntry{
			UserID:           userID,
			Year:             month.Year(),
			Month:            month.Month(),
			StartingBalance:  carry,
			RemainingBalance: remaining,
		}
		if err := u.ledger.UpsertLedgerEntry(ctx, entry); err != nil {
			return fmt.Errorf("%w: persist ledger month %d-%02d: %w", core.ErrInternal, month.Year(), month.Month(), err)
		}
		carry = remaining
	}

	slog.InfoContext(ctx, "Ledger update complete",
		"user_id", userID,
		"final_balance", carry.String())
	return nil
}

// seedCarry resolves the starting balance for the first month of the horizon.
// Policy: the remaining balance of the month immediately before the horizon
// seeds the carry when such a row exists; otherwise the carry starts at zero.
func (u *BalanceUpdater) seedCarry(ctx context.Context, userID string, first core.Date) (decimal.Decimal, error) {
	prev := first.AddMonths(-1)
	entry, err := u.ledger.GetLedgerEntry(ctx, userID, prev.Year(), prev.Month())
	if errors.Is(err, core.ErrNotFound) {
		return decimal.Decimal{}, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: seed carry: %w", core.ErrInternal, err)
	}
	return entry.RemainingBalance, nil
}
