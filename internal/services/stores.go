package services

import (
	"context"
	"fmt"

	"finledger/internal/core"

	"golang.org/x/sync/errgroup"
)

// RecordStore is the read side of the record store the engine aggregates
// over. upTo bounds the anchor date: recurring records anchored earlier may
// still produce occurrences inside a later window.
type RecordStore interface {
	ListIncomes(ctx context.Context, userID string, upTo core.Date) ([]core.Income, error)
	ListExpenses(ctx context.Context, userID string, upTo core.Date) ([]core.Expense, error)
	ListReceiptItems(ctx context.Context, userID string, upTo core.Date) ([]core.ReceiptItem, error)
	EarliestTransactionDate(ctx context.Context, userID string) (core.Date, bool, error)
}

// LedgerStore persists one balance row per (user, year, month).
type LedgerStore interface {
	GetLedgerEntry(ctx context.Context, userID string, year, month int) (core.BalanceLedgerEntry, error)
	UpsertLedgerEntry(ctx context.Context, e core.BalanceLedgerEntry) error
}

// fetchRecords collects everything that may contribute to a window. The three
// reads are independent, so they run concurrently and all results are in hand
// before any netting starts.
func fetchRecords(ctx context.Context, store RecordStore, userID string, w core.Window) (core.RecordSet, error) {
	var set core.RecordSet

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		set.Incomes, err = store.ListIncomes(gctx, userID, w.End)
		return err
	})
	g.Go(func() error {
		var err error
		set.Expenses, err = store.ListExpenses(gctx, userID, w.End)
		return err
	})
	g.Go(func() error {
		var err error
		set.ReceiptItems, err = store.ListReceiptItems(gctx, userID, w.End)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.RecordSet{}, fmt.Errorf("%w: fetch records: %w", core.ErrInternal, err)
	}
	return set, nil
}
