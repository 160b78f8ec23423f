package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory RecordStore + LedgerStore for service tests.
type fakeStore struct {
	mu       sync.Mutex
	incomes  []core.Income
	expenses []core.Expense
	receipts []core.ReceiptItem
	ledger   map[string]core.BalanceLedgerEntry
	failList bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{ledger: make(map[string]core.BalanceLedgerEntry)}
}

func ledgerKey(userID string, year, month int) string {
	return fmt.Sprintf("%s/%d-%02d", userID, year, month)
}

func (f *fakeStore) ListIncomes(_ context.Context, userID string, upTo core.Date) ([]core.Income, error) {
	if f.failList {
		return nil, errors.New("store down")
	}
	var out []core.Income
	for _, in := range f.incomes {
		if in.UserID == userID && !in.Date.After(upTo) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeStore) ListExpenses(_ context.Context, userID string, upTo core.Date) ([]core.Expense, error) {
	if f.failList {
		return nil, errors.New("store down")
	}
	var out []core.Expense
	for _, e := range f.expenses {
		if e.UserID == userID && !e.Date.After(upTo) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListReceiptItems(_ context.Context, userID string, upTo core.Date) ([]core.ReceiptItem, error) {
	if f.failList {
		return nil, errors.New("store down")
	}
	var out []core.ReceiptItem
	for _, r := range f.receipts {
		if r.UserID == userID && !r.Date.After(upTo) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) EarliestTransactionDate(_ context.Context, userID string) (core.Date, bool, error) {
	var earliest core.Date
	found := false
	consider := func(userMatch bool, d core.Date) {
		if userMatch && (!found || d.Before(earliest)) {
			earliest = d
			found = true
		}
	}
	for _, in := range f.incomes {
		consider(in.UserID == userID, in.Date)
	}
	for _, e := range f.expenses {
		consider(e.UserID == userID, e.Date)
	}
	for _, r := range f.receipts {
		consider(r.UserID == userID, r.Date)
	}
	return earliest, found, nil
}

func (f *fakeStore) GetLedgerEntry(_ context.Context, userID string, year, month int) (core.BalanceLedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.ledger[ledgerKey(userID, year, month)]
	if !ok {
		return core.BalanceLedgerEntry{}, fmt.Errorf("%w: ledger entry %s %d-%02d", core.ErrNotFound, userID, year, month)
	}
	return entry, nil
}

func (f *fakeStore) UpsertLedgerEntry(_ context.Context, e core.BalanceLedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledger[ledgerKey(e.UserID, e.Year, e.Month)] = e
	return nil
}

func (f *fakeStore) seedLedger(userID string, year, month int, starting, remaining string) {
	f.ledger[ledgerKey(userID, year, month)] = core.BalanceLedgerEntry{
		UserID:           userID,
		Year:             year,
		Month:            month,
		StartingBalance:  mustDec(starting),
		RemainingBalance: mustDec(remaining),
	}
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
