package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"finledger/internal/core"
)

// Reporting modes accepted by the category summary endpoint.
const (
	modeMonthly      = "monthly"
	modeYearly       = "yearly"
	modeRange        = "range"
	modeLast12Months = "last12months"
	modeAllTime      = "allTime"
)

type summaryResponse struct {
	Mode string               `json:"mode"`
	Data []core.PeriodSummary `json:"data"`
}

// handleCategorySummary serves GET /balances/category-summary. The data field
// is always an array: one summary for single-window modes, twelve for
// yearly with split=months.
func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	query := r.URL.Query()

	mode := strings.TrimSpace(query.Get("mode"))
	if mode == "" {
		mode = modeMonthly
	}
	split := strings.TrimSpace(query.Get("split"))

	key := strings.Join([]string{
		userID, mode, split,
		query.Get("year"), query.Get("month"),
		query.Get("startDate"), query.Get("endDate"),
	}, "|")
	if cached, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	resp := summaryResponse{Mode: mode}
	var err error
	switch mode {
	case modeMonthly:
		var year, month int
		if year, month, err = parseYearMonth(r); err == nil {
			var summary core.PeriodSummary
			if summary, err = s.summaries.Monthly(r.Context(), userID, year, month); err == nil {
				resp.Data = []core.PeriodSummary{summary}
			}
		}
	case modeYearly:
		var year int
		if year, err = requireIntParam(r, "year"); err == nil {
			if split == "months" {
				resp.Data, err = s.summaries.YearByMonth(r.Context(), userID, year)
			} else {
				var summary core.PeriodSummary
				if summary, err = s.summaries.Yearly(r.Context(), userID, year); err == nil {
					resp.Data = []core.PeriodSummary{summary}
				}
			}
		}
	case modeRange, modeLast12Months:
		var start, end core.Date
		if start, end, err = parseRangeDates(query.Get("startDate"), query.Get("endDate")); err == nil {
			var summary core.PeriodSummary
			if summary, err = s.summaries.Range(r.Context(), userID, start, end); err == nil {
				resp.Data = []core.PeriodSummary{summary}
			}
		}
	case modeAllTime:
		var summary core.PeriodSummary
		if summary, err = s.summaries.AllTime(r.Context(), userID); err == nil {
			resp.Data = []core.PeriodSummary{summary}
		}
	default:
		err = fmt.Errorf("%w: unknown mode %q", core.ErrInvalidRequest, mode)
	}

	if err != nil {
		writeError(w, r, err)
		return
	}
	s.summaryCache.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func parseRangeDates(startRaw, endRaw string) (core.Date, core.Date, error) {
	startRaw, endRaw = strings.TrimSpace(startRaw), strings.TrimSpace(endRaw)
	if startRaw == "" || endRaw == "" {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: startDate and endDate are required", core.ErrInvalidRequest)
	}
	start, err := core.ParseDate(startRaw)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: startDate %q", core.ErrInvalidRequest, startRaw)
	}
	end, err := core.ParseDate(endRaw)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: endDate %q", core.ErrInvalidRequest, endRaw)
	}
	return start, end, nil
}

// handleDailyBalances serves GET /balances/daily: the persisted month row plus
// the day-by-day walk through it.
func (s *Server) handleDailyBalances(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := fmt.Sprintf("%s|daily|%d-%02d", userID, year, month)
	if cached, ok := s.dailyCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	breakdown, err := s.summaries.DailyBalances(r.Context(), userID, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.dailyCache.Set(key, breakdown)
	writeJSON(w, http.StatusOK, breakdown)
}

// handleInitializeBalances serves POST /balances/initialize: a synchronous
// ledger rebuild anchored at the current month. Safe to repeat; rows upsert.
func (s *Server) handleInitializeBalances(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	anchor := core.Today()

	if err := s.updater.UpdateBalances(r.Context(), userID, anchor); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateUserCaches(userID)

	slog.InfoContext(r.Context(), "Balance ledger initialized",
		"user_id", userID,
		"anchor", anchor.String())
	writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}
