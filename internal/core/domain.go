package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptySource     = errors.New("empty income source")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidRecurEnd = errors.New("recurrence end before start date")
	ErrMissingInterval = errors.New("recurring record needs an interval")
	ErrInvalidUser     = errors.New("empty user id")
)

// Recurrence describes how a recurring record repeats. Until is optional;
// a zero Until means the recurrence is open-ended.
type Recurrence struct {
	Every Interval
	Until Date
}

// Income is money received, either one-time or recurring, keyed by its source.
type Income struct {
	ID         int64
	UserID     string
	Source     string
	Amount     decimal.Decimal
	Date       Date
	Recurring  bool
	Recurrence Recurrence
}

// Expense is money spent, either one-time or recurring, keyed by its category.
type Expense struct {
	ID         int64
	UserID     string
	Category   string
	Amount     decimal.Decimal
	Date       Date
	Recurring  bool
	Recurrence Recurrence
}

// ReceiptItem is a scanned line item. Its total price carries the sign:
// non-negative nets as income, negative nets as expense. The classification
// happens exactly once, in Net.
type ReceiptItem struct {
	ID         int64
	UserID     string
	Category   string
	TotalPrice decimal.Decimal
	Date       Date
	Recurring  bool
	Recurrence Recurrence
}

// NetEffect tags which side of the ledger a receipt item lands on.
type NetEffect int

const (
	NetIncome NetEffect = iota
	NetExpense
)

// Net classifies the item by the sign of its total price and returns the
// absolute amount to accumulate. Non-negative prices are income; negative
// prices are expenses.
func (r ReceiptItem) Net() (NetEffect, decimal.Decimal) {
	if r.TotalPrice.Sign() < 0 {
		return NetExpense, r.TotalPrice.Neg()
	}
	return NetIncome, r.TotalPrice
}

func validateRecurrence(recurring bool, rec Recurrence, anchor Date) error {
	if !recurring {
		return nil
	}
	if rec.Every == IntervalNone {
		return ErrMissingInterval
	}
	if _, err := ParseInterval(string(rec.Every)); err != nil {
		return err
	}
	if !rec.Until.IsZero() && rec.Until.Before(anchor) {
		return ErrInvalidRecurEnd
	}
	return nil
}

func (in Income) Validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return ErrInvalidUser
	}
	if in.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(in.Source) == "" {
		return ErrEmptySource
	}
	if in.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return validateRecurrence(in.Recurring, in.Recurrence, in.Date)
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrInvalidUser
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return validateRecurrence(e.Recurring, e.Recurrence, e.Date)
}

func (r ReceiptItem) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrInvalidUser
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	return validateRecurrence(r.Recurring, r.Recurrence, r.Date)
}

// BalanceLedgerEntry is one persisted ledger row, unique per
// (user, year, month). The starting balance is always the previous month's
// remaining balance; rows are written only by the balance updater.
type BalanceLedgerEntry struct {
	UserID           string          `json:"userId"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	StartingBalance  decimal.Decimal `json:"startingBalance"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
}

func (e BalanceLedgerEntry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrInvalidUser
	}
	if e.Month < 1 || e.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidDate, e.Month)
	}
	return nil
}
