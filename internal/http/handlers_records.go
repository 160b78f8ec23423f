package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// maxListDate bounds list queries so future-dated recurring anchors are
// always included.
var maxListDate = core.NewDate(9999, 12, 31)

type recurrencePayload struct {
	Recurring          bool   `json:"recurring"`
	RecurrenceInterval string `json:"recurrenceInterval,omitempty"`
	RecurrenceEnd      string `json:"recurrenceEnd,omitempty"`
}

func (p recurrencePayload) toRecurrence() (bool, core.Recurrence, error) {
	if !p.Recurring {
		return false, core.Recurrence{}, nil
	}
	every, err := core.ParseInterval(p.RecurrenceInterval)
	if err != nil {
		return false, core.Recurrence{}, fmt.Errorf("%w: %w", core.ErrInvalidRequest, err)
	}
	rec := core.Recurrence{Every: every}
	if v := strings.TrimSpace(p.RecurrenceEnd); v != "" {
		if rec.Until, err = core.ParseDate(v); err != nil {
			return false, core.Recurrence{}, fmt.Errorf("%w: recurrenceEnd %q", core.ErrInvalidRequest, v)
		}
	}
	return true, rec, nil
}

func recurrenceJSON(recurring bool, rec core.Recurrence) recurrencePayload {
	p := recurrencePayload{Recurring: recurring}
	if recurring {
		p.RecurrenceInterval = string(rec.Every)
		if !rec.Until.IsZero() {
			p.RecurrenceEnd = rec.Until.String()
		}
	}
	return p
}

type incomeRequest struct {
	Source string          `json:"source"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
	recurrencePayload
}

type expenseRequest struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date"`
	recurrencePayload
}

type receiptItemRequest struct {
	Category   string          `json:"category"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Date       string          `json:"date"`
	recurrencePayload
}

type incomeJSON struct {
	ID     int64           `json:"id"`
	Source string          `json:"source"`
	Amount decimal.Decimal `json:"amount"`
	Date   core.Date       `json:"date"`
	recurrencePayload
}

type expenseJSON struct {
	ID       int64           `json:"id"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Date     core.Date       `json:"date"`
	recurrencePayload
}

type receiptItemJSON struct {
	ID         int64           `json:"id"`
	Category   string          `json:"category"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Date       core.Date       `json:"date"`
	recurrencePayload
}

// afterMutation invalidates the user's cached summaries and asks the worker
// for a ledger rebuild anchored at the mutated month.
func (s *Server) afterMutation(r *http.Request, userID string, anchor core.Date) {
	s.invalidateUserCaches(userID)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecompute(r.Context(), userID, anchor.Year(), anchor.Month()); err != nil {
		// The mutation is already persisted; a lost recompute request only
		// delays the ledger until the next one.
		slog.ErrorContext(r.Context(), "Publish recompute failed",
			"user_id", userID,
			"error", err)
	}
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	var req incomeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	date, err := core.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: date %q", core.ErrInvalidRequest, req.Date))
		return
	}
	recurring, rec, err := req.toRecurrence()
	if err != nil {
		writeError(w, r, err)
		return
	}

	income := core.Income{
		UserID:     userID,
		Source:     strings.TrimSpace(req.Source),
		Amount:     req.Amount,
		Date:       date,
		Recurring:  recurring,
		Recurrence: rec,
	}
	if err := income.Validate(); err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", core.ErrInvalidRequest, err))
		return
	}

	id, err := s.records.CreateIncome(r.Context(), income)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.afterMutation(r, userID, date)
	income.ID = id
	writeJSON(w, http.StatusCreated, toIncomeJSON(income))
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	incomes, err := s.records.ListIncomes(r.Context(), userID, maxListDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]incomeJSON, 0, len(incomes))
	for _, in := range incomes {
		out = append(out, toIncomeJSON(in))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	id, err := parsePathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.records.DeleteIncome(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	s.afterMutation(r, userID, core.Today())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	var req expenseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	date, err := core.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: date %q", core.ErrInvalidRequest, req.Date))
		return
	}
	recurring, rec, err := req.toRecurrence()
	if err != nil {
		writeError(w, r, err)
		return
	}

	expense := core.Expense{
		UserID:     userID,
		Category:   strings.TrimSpace(req.Category),
		Amount:     req.Amount,
		Date:       date,
		Recurring:  recurring,
		Recurrence: rec,
	}
	if err := expense.Validate(); err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", core.ErrInvalidRequest, err))
		return
	}

	id, err := s.records.CreateExpense(r.Context(), expense)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.afterMutation(r, userID, date)
	expense.ID = id
	writeJSON(w, http.StatusCreated, toExpenseJSON(expense))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	expenses, err := s.records.ListExpenses(r.Context(), userID, maxListDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	id, err := parsePathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.records.DeleteExpense(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	s.afterMutation(r, userID, core.Today())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateReceiptItem(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	var req receiptItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	date, err := core.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: date %q", core.ErrInvalidRequest, req.Date))
		return
	}
	recurring, rec, err := req.toRecurrence()
	if err != nil {
		writeError(w, r, err)
		return
	}

	item := core.ReceiptItem{
		UserID:     userID,
		Category:   strings.TrimSpace(req.Category),
		TotalPrice: req.TotalPrice,
		Date:       date,
		Recurring:  recurring,
		Recurrence: rec,
	}
	if err := item.Validate(); err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", core.ErrInvalidRequest, err))
		return
	}

	id, err := s.records.CreateReceiptItem(r.Context(), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.afterMutation(r, userID, date)
	item.ID = id
	writeJSON(w, http.StatusCreated, toReceiptItemJSON(item))
}

func (s *Server) handleListReceiptItems(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	items, err := s.records.ListReceiptItems(r.Context(), userID, maxListDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]receiptItemJSON, 0, len(items))
	for _, item := range items {
		out = append(out, toReceiptItemJSON(item))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteReceiptItem(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	id, err := parsePathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.records.DeleteReceiptItem(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	s.afterMutation(r, userID, core.Today())
	w.WriteHeader(http.StatusNoContent)
}

func toIncomeJSON(in core.Income) incomeJSON {
	return incomeJSON{
		ID:                in.ID,
		Source:            in.Source,
		Amount:            in.Amount,
		Date:              in.Date,
		recurrencePayload: recurrenceJSON(in.Recurring, in.Recurrence),
	}
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:                e.ID,
		Category:          e.Category,
		Amount:            e.Amount,
		Date:              e.Date,
		recurrencePayload: recurrenceJSON(e.Recurring, e.Recurrence),
	}
}

func toReceiptItemJSON(item core.ReceiptItem) receiptItemJSON {
	return receiptItemJSON{
		ID:                item.ID,
		Category:          item.Category,
		TotalPrice:        item.TotalPrice,
		Date:              item.Date,
		recurrencePayload: recurrenceJSON(item.Recurring, item.Recurrence),
	}
}
