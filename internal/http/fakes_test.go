package http

import (
	"context"
	"fmt"
	"sync"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// memStore backs the handler tests: it satisfies the service-layer stores and
// the handler-facing repository at once.
type memStore struct {
	mu           sync.Mutex
	nextID       int64
	incomes      []core.Income
	expenses     []core.Expense
	receiptItems []core.ReceiptItem
	ledger       map[string]core.BalanceLedgerEntry
	listCalls    int
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, ledger: make(map[string]core.BalanceLedgerEntry)}
}

func ledgerKey(userID string, year, month int) string {
	return fmt.Sprintf("%s/%d/%d", userID, year, month)
}

func (m *memStore) CreateIncome(_ context.Context, in core.Income) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in.ID = m.nextID
	m.nextID++
	m.incomes = append(m.incomes, in)
	return in.ID, nil
}

func (m *memStore) CreateExpense(_ context.Context, e core.Expense) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	m.expenses = append(m.expenses, e)
	return e.ID, nil
}

func (m *memStore) CreateReceiptItem(_ context.Context, item core.ReceiptItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextID
	m.nextID++
	m.receiptItems = append(m.receiptItems, item)
	return item.ID, nil
}

func (m *memStore) ListIncomes(_ context.Context, userID string, upTo core.Date) ([]core.Income, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []core.Income
	for _, in := range m.incomes {
		if in.UserID == userID && !in.Date.After(upTo) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (m *memStore) ListExpenses(_ context.Context, userID string, upTo core.Date) ([]core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Expense
	for _, e := range m.expenses {
		if e.UserID == userID && !e.Date.After(upTo) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListReceiptItems(_ context.Context, userID string, upTo core.Date) ([]core.ReceiptItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.ReceiptItem
	for _, item := range m.receiptItems {
		if item.UserID == userID && !item.Date.After(upTo) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memStore) DeleteIncome(_ context.Context, userID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, in := range m.incomes {
		if in.ID == id && in.UserID == userID {
			m.incomes = append(m.incomes[:i], m.incomes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: income %d", core.ErrNotFound, id)
}

func (m *memStore) DeleteExpense(_ context.Context, userID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.expenses {
		if e.ID == id && e.UserID == userID {
			m.expenses = append(m.expenses[:i], m.expenses[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: expense %d", core.ErrNotFound, id)
}

func (m *memStore) DeleteReceiptItem(_ context.Context, userID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.receiptItems {
		if item.ID == id && item.UserID == userID {
			m.receiptItems = append(m.receiptItems[:i], m.receiptItems[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: receipt item %d", core.ErrNotFound, id)
}

func (m *memStore) EarliestTransactionDate(_ context.Context, userID string) (core.Date, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var earliest core.Date
	found := false
	consider := func(d core.Date) {
		if !found || d.Before(earliest) {
			earliest = d
			found = true
		}
	}
	for _, in := range m.incomes {
		if in.UserID == userID {
			consider(in.Date)
		}
	}
	for _, e := range m.expenses {
		if e.UserID == userID {
			consider(e.Date)
		}
	}
	for _, item := range m.receiptItems {
		if item.UserID == userID {
			consider(item.Date)
		}
	}
	return earliest, found, nil
}

func (m *memStore) GetLedgerEntry(_ context.Context, userID string, year, month int) (core.BalanceLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.ledger[ledgerKey(userID, year, month)]
	if !ok {
		return core.BalanceLedgerEntry{}, fmt.Errorf("%w: ledger %d-%02d", core.ErrNotFound, year, month)
	}
	return entry, nil
}

func (m *memStore) UpsertLedgerEntry(_ context.Context, e core.BalanceLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger[ledgerKey(e.UserID, e.Year, e.Month)] = e
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []string
}

func (p *fakePublisher) PublishRecompute(_ context.Context, userID string, year, month int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, fmt.Sprintf("%s/%d-%02d", userID, year, month))
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func mustDec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}
