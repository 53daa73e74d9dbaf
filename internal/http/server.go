// Package http provides the JSON API server for the finance tracker.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
)

// TransactionAPI is what the handlers need from the transaction service.
type TransactionAPI interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, year, month int) ([]core.Transaction, error)
}

// InsightAPI is what the handlers need from the insight service.
type InsightAPI interface {
	MonthInsights(ctx context.Context) (*services.MonthInsights, error)
}

// Store covers the repository operations the API exposes directly.
type Store interface {
	CreateRecurring(ctx context.Context, rt core.RecurringTransaction) (int64, error)
	ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error)
	DeactivateRecurring(ctx context.Context, id int64) error

	CreateBudget(ctx context.Context, b core.Budget) (int64, error)
	ListBudgets(ctx context.Context, year, month int) ([]core.Budget, error)

	CreateAccount(ctx context.Context, a core.Account) (int64, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
}

type Server struct {
	http.Server

	transactions TransactionAPI
	insights     InsightAPI
	store        Store

	logger       *log.Logger
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	insightCache *cache.LRUCache[*services.MonthInsights]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, transactions TransactionAPI, insights InsightAPI, store Store) *Server {
	mux := http.NewServeMux()

	s := &Server{
		transactions: transactions,
		insights:     insights,
		store:        store,
		logger:       log.New(log.Config{Component: log.ComponentHTTP, Handler: slog.Default().Handler()}),
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:       trace.NewMiddleware(clientIP),
		insightCache: cache.NewLRUCache[*services.MonthInsights](16, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.insightCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/api/insights", s.handleInsights)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/transactions/", s.handleTransactionByID)
	mux.HandleFunc("/api/recurring", s.handleRecurring)
	mux.HandleFunc("/api/recurring/", s.handleRecurringByID)
	mux.HandleFunc("/api/budgets", s.handleBudgets)
	mux.HandleFunc("/api/accounts", s.handleAccounts)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(clientIP, nil)(handler)
	// The tracer runs first so the request ID it stores is in the context
	// by the time the request-scoped logger picks it up.
	handler = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = log.Middleware(s.logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Shutdown stops the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateInsights drops cached insight views after any write that can
// change the numbers.
func (s *Server) invalidateInsights() {
	now := time.Now()
	s.insightCache.Delete(insightCacheKey(now.Year(), int(now.Month())))
}

func insightCacheKey(year, month int) string {
	return "insights:" + formatYearMonth(year, month)
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if i := strings.IndexByte(ip, ','); i > 0 {
			return strings.TrimSpace(ip[:i])
		}
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports readiness plus a couple of live counters useful when
// checking a household install by hand.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, readyResponse{
		Status:        "ready",
		TotalRequests: s.tracer.TotalRequests(),
		ActiveClients: s.limiter.ActiveClients(),
	})
}

type readyResponse struct {
	Status        string `json:"status"`
	TotalRequests int64  `json:"total_requests"`
	ActiveClients int    `json:"active_clients"`
}
