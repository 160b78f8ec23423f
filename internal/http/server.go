// Package http exposes the balance projection engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finledger/internal/cache"
	"finledger/internal/core"
	applog "finledger/internal/log"
	"finledger/internal/services"
)

// RecordRepository is the write/read surface the record handlers need.
type RecordRepository interface {
	CreateIncome(ctx context.Context, in core.Income) (int64, error)
	CreateExpense(ctx context.Context, e core.Expense) (int64, error)
	CreateReceiptItem(ctx context.Context, item core.ReceiptItem) (int64, error)
	ListIncomes(ctx context.Context, userID string, upTo core.Date) ([]core.Income, error)
	ListExpenses(ctx context.Context, userID string, upTo core.Date) ([]core.Expense, error)
	ListReceiptItems(ctx context.Context, userID string, upTo core.Date) ([]core.ReceiptItem, error)
	DeleteIncome(ctx context.Context, userID string, id int64) error
	DeleteExpense(ctx context.Context, userID string, id int64) error
	DeleteReceiptItem(ctx context.Context, userID string, id int64) error
}

// RecomputePublisher requests an async ledger rebuild after a mutation.
type RecomputePublisher interface {
	PublishRecompute(ctx context.Context, userID string, year, month int) error
}

type Server struct {
	http.Server
	summaries *services.SummaryService
	updater   *services.BalanceUpdater
	records   RecordRepository
	publisher RecomputePublisher

	logger       *applog.Logger
	rateLimiter  *rateLimiter
	summaryCache *cache.LRUCache[summaryResponse]
	dailyCache   *cache.LRUCache[services.MonthDailyBreakdown]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// Options tunes caching; zero values fall back to defaults.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// publisher may be nil; mutations then skip the async recompute request.
func NewServer(addr string, summaries *services.SummaryService, updater *services.BalanceUpdater, records RecordRepository, publisher RecomputePublisher, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 200
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(logger)(mux),
		},
		logger:           logger,
		summaries:        summaries,
		updater:          updater,
		records:          records,
		publisher:        publisher,
		rateLimiter:      newRateLimiter(),
		summaryCache:     cache.NewLRUCache[summaryResponse](opts.CacheSize, opts.CacheTTL),
		dailyCache:       cache.NewLRUCache[services.MonthDailyBreakdown](opts.CacheSize, opts.CacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /balances/category-summary", s.wrap(s.handleCategorySummary))
	mux.HandleFunc("GET /balances/daily", s.wrap(s.handleDailyBalances))
	mux.HandleFunc("POST /balances/initialize", s.wrap(s.handleInitializeBalances))

	mux.HandleFunc("POST /incomes", s.wrap(s.handleCreateIncome))
	mux.HandleFunc("GET /incomes", s.wrap(s.handleListIncomes))
	mux.HandleFunc("DELETE /incomes/{id}", s.wrap(s.handleDeleteIncome))

	mux.HandleFunc("POST /expenses", s.wrap(s.handleCreateExpense))
	mux.HandleFunc("GET /expenses", s.wrap(s.handleListExpenses))
	mux.HandleFunc("DELETE /expenses/{id}", s.wrap(s.handleDeleteExpense))

	mux.HandleFunc("POST /receipt-items", s.wrap(s.handleCreateReceiptItem))
	mux.HandleFunc("GET /receipt-items", s.wrap(s.handleListReceiptItems))
	mux.HandleFunc("DELETE /receipt-items/{id}", s.wrap(s.handleDeleteReceiptItem))

	return s
}

// wrap applies the standard middleware chain: security headers, request ID,
// request logging, rate limiting on mutations, and user resolution.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return s.withObservability(s.withUser(next))
}

func (s *Server) withObservability(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		logger := s.logger.With(applog.FieldRequestID, requestID)
		ctx := applog.IntoContext(context.WithValue(r.Context(), requestIDKey, requestID), logger)
		r = r.WithContext(ctx)

		logger.InfoContext(ctx, "Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		logger.InfoContext(ctx, "Request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, duration.Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

// withUser resolves the caller from the X-User-ID header. Every business
// route requires a user scope.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, r, core.ErrUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summaries := s.summaryCache.CleanExpired()
			daily := s.dailyCache.CleanExpired()
			if summaries > 0 || daily > 0 {
				s.logger.Debug("Cache cleanup completed",
					"summary_entries_removed", summaries,
					"daily_entries_removed", daily)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// invalidateUserCaches drops every cached window for one user after a write.
func (s *Server) invalidateUserCaches(userID string) {
	s.summaryCache.DeletePrefix(userID + "|")
	s.dailyCache.DeletePrefix(userID + "|")
}

// Shutdown stops the cleanup goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
