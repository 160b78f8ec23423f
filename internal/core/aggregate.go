package core

import "github.com/shopspring/decimal"

// RecordSet is the raw material for one aggregation: all records that may
// contribute to a window, fetched up front so the netting pass is pure.
type RecordSet struct {
	Incomes      []Income
	Expenses     []Expense
	ReceiptItems []ReceiptItem
}

// PeriodSummary is the computed result for one window. It is derived data,
// never persisted. Breakdown keys are income sources and expense categories.
type PeriodSummary struct {
	WindowStart      Date                       `json:"windowStart"`
	WindowEnd        Date                       `json:"windowEnd"`
	IncomeTotal      decimal.Decimal            `json:"incomeTotal"`
	ExpenseTotal     decimal.Decimal            `json:"expenseTotal"`
	IncomeBreakdown  map[string]decimal.Decimal `json:"incomeBreakdown"`
	ExpenseBreakdown map[string]decimal.Decimal `json:"expenseBreakdown"`
	Balance          decimal.Decimal            `json:"balance"`
}

// accumulator collects keyed amounts for one aggregation call. It is a local
// value threaded through the pass and returned, never shared between requests.
type accumulator struct {
	income  map[string]decimal.Decimal
	expense map[string]decimal.Decimal
}

func newAccumulator() accumulator {
	return accumulator{
		income:  make(map[string]decimal.Decimal),
		expense: make(map[string]decimal.Decimal),
	}
}

func (a accumulator) addIncome(key string, amount decimal.Decimal) {
	a.income[key] = a.income[key].Add(amount)
}

func (a accumulator) addExpense(key string, amount decimal.Decimal) {
	a.expense[key] = a.expense[key].Add(amount)
}

// contribution returns how much a record contributes to the window: its
// amount once per occurrence. Non-recurring records contribute their amount
// iff their date falls inside the window.
func contribution(amount decimal.Decimal, anchor Date, recurring bool, rec Recurrence, w Window) decimal.Decimal {
	every := IntervalNone
	until := Date{}
	if recurring {
		every = rec.Every
		until = rec.Until
	}
	n := CountOccurrences(anchor, every, until, w)
	if n == 0 {
		return decimal.Decimal{}
	}
	return amount.Mul(decimal.NewFromInt(int64(n)))
}

// Aggregate nets a record set over a window into totals and breakdowns.
// Incomes key by source, expenses by category. Receipt items fold into the
// same totals via their sign: non-negative total prices accumulate as income
// under the item's category, negative ones as expense (absolute value).
// Every output value is rounded to two decimals exactly once.
func Aggregate(set RecordSet, w Window) PeriodSummary {
	acc := newAccumulator()

	for _, in := range set.Incomes {
		if c := contribution(in.Amount, in.Date, in.Recurring, in.Recurrence, w); c.Sign() != 0 {
			acc.addIncome(in.Source, c)
		}
	}
	for _, e := range set.Expenses {
		if c := contribution(e.Amount, e.Date, e.Recurring, e.Recurrence, w); c.Sign() != 0 {
			acc.addExpense(e.Category, c)
		}
	}
	for _, r := range set.ReceiptItems {
		effect, amount := r.Net()
		c := contribution(amount, r.Date, r.Recurring, r.Recurrence, w)
		if c.Sign() == 0 {
			continue
		}
		switch effect {
		case NetExpense:
			acc.addExpense(r.Category, c)
		default:
			acc.addIncome(r.Category, c)
		}
	}

	summary := PeriodSummary{
		WindowStart:      w.Start,
		WindowEnd:        w.End,
		IncomeBreakdown:  make(map[string]decimal.Decimal, len(acc.income)),
		ExpenseBreakdown: make(map[string]decimal.Decimal, len(acc.expense)),
	}

	var incomeTotal, expenseTotal decimal.Decimal
	for key, v := range acc.income {
		incomeTotal = incomeTotal.Add(v)
		summary.IncomeBreakdown[key] = RoundMoney(v)
	}
	for key, v := range acc.expense {
		expenseTotal = expenseTotal.Add(v)
		summary.ExpenseBreakdown[key] = RoundMoney(v)
	}

	summary.IncomeTotal = RoundMoney(incomeTotal)
	summary.ExpenseTotal = RoundMoney(expenseTotal)
	summary.Balance = summary.IncomeTotal.Sub(summary.ExpenseTotal)
	return summary
}
