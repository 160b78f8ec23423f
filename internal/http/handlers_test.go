package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finledger/internal/core"
	"finledger/internal/services"
)

func newTestServer(t *testing.T) (*Server, *memStore, *fakePublisher) {
	t.Helper()
	store := newMemStore()
	publisher := &fakePublisher{}
	summaries := services.NewSummaryService(store, store)
	updater := services.NewBalanceUpdater(store, store, 2, 2)
	s := NewServer(":0", summaries, updater, store, publisher, Options{})
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s, store, publisher
}

func doRequest(s *Server, method, target, user, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestMissingUserHeaderUnauthorized(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/balances/category-summary", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(s, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status %d, want 200", path, rec.Code)
		}
	}
}

func TestCreateIncomeAndList(t *testing.T) {
	s, store, publisher := newTestServer(t)

	body := `{"source":"salary","amount":2500,"date":"2025-06-01","recurring":true,"recurrenceInterval":"monthly"}`
	rec := doRequest(s, http.MethodPost, "/incomes", "u1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var created incomeJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID != 1 || created.Source != "salary" || !created.Recurring {
		t.Fatalf("created %+v", created)
	}
	if created.RecurrenceInterval != "monthly" {
		t.Fatalf("interval %q", created.RecurrenceInterval)
	}

	if len(store.incomes) != 1 {
		t.Fatalf("stored %d incomes", len(store.incomes))
	}
	if publisher.count() != 1 {
		t.Fatalf("published %d messages, want 1", publisher.count())
	}

	rec = doRequest(s, http.MethodGet, "/incomes", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var listed []incomeJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != 1 {
		t.Fatalf("listed %+v", listed)
	}

	// Other users never see the record.
	rec = doRequest(s, http.MethodGet, "/incomes", "u2", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 0 {
		t.Fatalf("cross-user leak: %+v", listed)
	}
}

func TestCreateIncomeValidation(t *testing.T) {
	s, _, publisher := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"negative amount", `{"source":"x","amount":-5,"date":"2025-06-01"}`},
		{"zero amount", `{"source":"x","amount":0,"date":"2025-06-01"}`},
		{"empty source", `{"source":"","amount":10,"date":"2025-06-01"}`},
		{"bad date", `{"source":"x","amount":10,"date":"June 1st"}`},
		{"recurring without interval", `{"source":"x","amount":10,"date":"2025-06-01","recurring":true}`},
		{"end before anchor", `{"source":"x","amount":10,"date":"2025-06-01","recurring":true,"recurrenceInterval":"monthly","recurrenceEnd":"2025-01-01"}`},
		{"unknown field", `{"source":"x","amount":10,"date":"2025-06-01","bogus":1}`},
		{"not json", `salary 2500`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/incomes", "u1", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400, body %s", rec.Code, rec.Body.String())
			}
		})
	}
	if publisher.count() != 0 {
		t.Fatalf("rejected requests must not publish, got %d", publisher.count())
	}
}

func TestReceiptItemNegativePriceAccepted(t *testing.T) {
	s, _, _ := newTestServer(t)

	body := `{"category":"groceries","totalPrice":-45.50,"date":"2025-06-10"}`
	rec := doRequest(s, http.MethodPost, "/receipt-items", "u1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	// A negative receipt item nets as an expense in the summary.
	rec = doRequest(s, http.MethodGet, "/balances/category-summary?mode=monthly&year=2025&month=6", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status %d", rec.Code)
	}
	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("data length %d", len(resp.Data))
	}
	if !resp.Data[0].ExpenseTotal.Equal(mustDec("45.50")) {
		t.Fatalf("expense total %s", resp.Data[0].ExpenseTotal)
	}
	if got := resp.Data[0].ExpenseBreakdown["groceries"]; !got.Equal(mustDec("45.50")) {
		t.Fatalf("breakdown %s", got)
	}
}

func TestCategorySummaryMonthly(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.incomes = append(store.incomes, core.Income{
		ID: 1, UserID: "u1", Source: "salary", Amount: mustDec("2500"),
		Date:      core.NewDate(2025, 1, 15),
		Recurring: true, Recurrence: core.Recurrence{Every: core.IntervalMonthly},
	})
	store.expenses = append(store.expenses, core.Expense{
		ID: 2, UserID: "u1", Category: "rent", Amount: mustDec("900"),
		Date:      core.NewDate(2025, 1, 1),
		Recurring: true, Recurrence: core.Recurrence{Every: core.IntervalMonthly},
	})

	rec := doRequest(s, http.MethodGet, "/balances/category-summary?mode=monthly&year=2025&month=3", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Mode != "monthly" || len(resp.Data) != 1 {
		t.Fatalf("resp %+v", resp)
	}
	got := resp.Data[0]
	if !got.IncomeTotal.Equal(mustDec("2500")) || !got.ExpenseTotal.Equal(mustDec("900")) {
		t.Fatalf("totals %s / %s", got.IncomeTotal, got.ExpenseTotal)
	}
	if !got.Balance.Equal(mustDec("1600")) {
		t.Fatalf("balance %s", got.Balance)
	}
}

func TestCategorySummaryYearlySplit(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.incomes = append(store.incomes, core.Income{
		ID: 1, UserID: "u1", Source: "salary", Amount: mustDec("2000"),
		Date:      core.NewDate(2025, 1, 1),
		Recurring: true, Recurrence: core.Recurrence{Every: core.IntervalMonthly},
	})

	rec := doRequest(s, http.MethodGet, "/balances/category-summary?mode=yearly&split=months&year=2025", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 12 {
		t.Fatalf("data length %d, want 12", len(resp.Data))
	}
	for i, month := range resp.Data {
		if !month.IncomeTotal.Equal(mustDec("2000")) {
			t.Fatalf("month %d income %s", i+1, month.IncomeTotal)
		}
	}
}

func TestCategorySummaryBadRequests(t *testing.T) {
	s, _, _ := newTestServer(t)

	cases := []string{
		"/balances/category-summary?mode=weekly",
		"/balances/category-summary?mode=monthly",
		"/balances/category-summary?mode=monthly&year=2025",
		"/balances/category-summary?mode=monthly&month=6",
		"/balances/category-summary?mode=monthly&year=2025&month=13",
		"/balances/category-summary?mode=monthly&year=abc&month=6",
		"/balances/category-summary?mode=yearly",
		"/balances/category-summary?mode=range",
		"/balances/category-summary?mode=range&startDate=2025-01-01",
		"/balances/category-summary?mode=range&startDate=2025-06-01&endDate=2025-01-01",
	}
	for _, target := range cases {
		rec := doRequest(s, http.MethodGet, target, "u1", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", target, rec.Code)
		}
	}
}

func TestCategorySummaryAllTimeEmpty(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/balances/category-summary?mode=allTime", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	got := resp.Data[0]
	if !got.WindowStart.Equal(got.WindowEnd) {
		t.Fatalf("empty all-time window should collapse: %s..%s", got.WindowStart, got.WindowEnd)
	}
	if got.IncomeTotal.Sign() != 0 || got.ExpenseTotal.Sign() != 0 {
		t.Fatalf("totals %s / %s", got.IncomeTotal, got.ExpenseTotal)
	}
}

func TestSummaryCacheHitAndInvalidation(t *testing.T) {
	s, store, _ := newTestServer(t)
	target := "/balances/category-summary?mode=monthly&year=2025&month=6"

	doRequest(s, http.MethodGet, target, "u1", "")
	calls := store.listCalls
	doRequest(s, http.MethodGet, target, "u1", "")
	if store.listCalls != calls {
		t.Fatalf("second read should hit the cache: %d -> %d", calls, store.listCalls)
	}

	body := `{"source":"salary","amount":100,"date":"2025-06-01"}`
	if rec := doRequest(s, http.MethodPost, "/incomes", "u1", body); rec.Code != http.StatusCreated {
		t.Fatalf("create status %d", rec.Code)
	}

	rec := doRequest(s, http.MethodGet, target, "u1", "")
	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Data[0].IncomeTotal.Equal(mustDec("100")) {
		t.Fatalf("stale summary after write: %s", resp.Data[0].IncomeTotal)
	}
}

func TestDailyBalancesMissingParams(t *testing.T) {
	s, _, _ := newTestServer(t)
	for _, target := range []string{
		"/balances/daily",
		"/balances/daily?year=2025",
		"/balances/daily?month=6",
	} {
		rec := doRequest(s, http.MethodGet, target, "u1", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", target, rec.Code)
		}
	}
}

func TestDailyBalancesRequiresLedgerRow(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/balances/daily?year=2025&month=6", "u1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestInitializeThenDaily(t *testing.T) {
	s, store, _ := newTestServer(t)
	today := core.Today()

	store.incomes = append(store.incomes, core.Income{
		ID: 1, UserID: "u1", Source: "salary", Amount: mustDec("1000"),
		Date: core.NewDate(today.Year(), today.Month(), 1),
	})

	rec := doRequest(s, http.MethodPost, "/balances/initialize", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("initialize status %d, body %s", rec.Code, rec.Body.String())
	}
	// Horizon is 2 back + 2 forward + anchor.
	if len(store.ledger) != 5 {
		t.Fatalf("ledger rows %d, want 5", len(store.ledger))
	}

	target := fmt.Sprintf("/balances/daily?year=%d&month=%d", today.Year(), today.Month())
	rec = doRequest(s, http.MethodGet, target, "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("daily status %d, body %s", rec.Code, rec.Body.String())
	}
	var breakdown services.MonthDailyBreakdown
	if err := json.Unmarshal(rec.Body.Bytes(), &breakdown); err != nil {
		t.Fatal(err)
	}
	if len(breakdown.DailyBalances) < 28 {
		t.Fatalf("daily rows %d", len(breakdown.DailyBalances))
	}
	if !breakdown.DailyBalances[0].Income.Equal(mustDec("1000")) {
		t.Fatalf("day one income %s", breakdown.DailyBalances[0].Income)
	}
}

func TestDeleteIncome(t *testing.T) {
	s, store, publisher := newTestServer(t)
	store.incomes = append(store.incomes, core.Income{
		ID: 7, UserID: "u1", Source: "salary", Amount: mustDec("100"),
		Date: core.NewDate(2025, 6, 1),
	})

	rec := doRequest(s, http.MethodDelete, "/incomes/7", "u1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if len(store.incomes) != 0 {
		t.Fatal("income not deleted")
	}
	if publisher.count() != 1 {
		t.Fatalf("published %d, want 1", publisher.count())
	}

	rec = doRequest(s, http.MethodDelete, "/incomes/7", "u1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status %d, want 404", rec.Code)
	}
	rec = doRequest(s, http.MethodDelete, "/incomes/abc", "u1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status %d, want 400", rec.Code)
	}
}
