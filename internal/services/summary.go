package services

import (
	"context"
	"fmt"

	"finledger/internal/core"
)

// SummaryService exposes the period aggregator under the selectable reporting
// modes. It is read-only; ledger rows are only consulted, never written.
type SummaryService struct {
	records RecordStore
	ledger  LedgerStore
}

func NewSummaryService(records RecordStore, ledger LedgerStore) *SummaryService {
	return &SummaryService{records: records, ledger: ledger}
}

func (s *SummaryService) summarize(ctx context.Context, userID string, w core.Window) (core.PeriodSummary, error) {
	set, err := fetchRecords(ctx, s.records, userID, w)
	if err != nil {
		return core.PeriodSummary{}, err
	}
	return core.Aggregate(set, w), nil
}

// Monthly returns the summary for one calendar month.
func (s *SummaryService) Monthly(ctx context.Context, userID string, year, month int) (core.PeriodSummary, error) {
	if month < 1 || month > 12 {
		return core.PeriodSummary{}, fmt.Errorf("%w: month %d out of range", core.ErrInvalidRequest, month)
	}
	return s.summarize(ctx, userID, core.MonthWindow(year, month))
}

// Yearly returns a single summary spanning the whole year.
func (s *SummaryService) Yearly(ctx context.Context, userID string, year int) (core.PeriodSummary, error) {
	return s.summarize(ctx, userID, core.YearWindow(year))
}

// YearByMonth returns twelve summaries, one per calendar month of the year.
// Records are fetched once for the whole year and re-netted per month.
func (s *SummaryService) YearByMonth(ctx context.Context, userID string, year int) ([]core.PeriodSummary, error) {
	set, err := fetchRecords(ctx, s.records, userID, core.YearWindow(year))
	if err != nil {
		return nil, err
	}
	out := make([]core.PeriodSummary, 0, 12)
	for month := 1; month <= 12; month++ {
		out = append(out, core.Aggregate(set, core.MonthWindow(year, month)))
	}
	return out, nil
}

// Range returns the summary over an explicit [start, end] window.
func (s *SummaryService) Range(ctx context.Context, userID string, start, end core.Date) (core.PeriodSummary, error) {
	w, err := core.NewWindow(start, end)
	if err != nil {
		return core.PeriodSummary{}, err
	}
	return s.summarize(ctx, userID, w)
}

// AllTime returns the summary from the user's earliest transaction through
// today. With no transactions the window collapses to [today, today] and all
// totals are zero.
func (s *SummaryService) AllTime(ctx context.Context, userID string) (core.PeriodSummary, error) {
	earliest, ok, err := s.records.EarliestTransactionDate(ctx, userID)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("%w: earliest transaction date: %w", core.ErrInternal, err)
	}
	today := core.Today()
	if !ok || earliest.After(today) {
		earliest = today
	}
	return s.summarize(ctx, userID, core.Window{Start: earliest, End: today})
}

// MonthLedger returns the persisted ledger row for one month.
func (s *SummaryService) MonthLedger(ctx context.Context, userID string, year, month int) (core.BalanceLedgerEntry, error) {
	if month < 1 || month > 12 {
		return core.BalanceLedgerEntry{}, fmt.Errorf("%w: month %d out of range", core.ErrInvalidRequest, month)
	}
	return s.ledger.GetLedgerEntry(ctx, userID, year, month)
}
