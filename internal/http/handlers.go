package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

type transactionRequest struct {
	AccountID   int64  `json:"account_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	RecurringID *int64 `json:"recurring_id,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Date:        t.Date.Format("2006-01-02"),
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		Category:    t.Category,
		RecurringID: t.RecurringID,
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)

	items, err := s.transactions.ListTransactions(r.Context(), year, month)
	if err != nil {
		if errors.Is(err, core.ErrInvalidMonth) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	out := make([]transactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	cents, err := core.ParseSignedDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}

	t := core.Transaction{
		AccountID:   req.AccountID,
		Date:        date,
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(req.Category),
	}

	id, err := s.transactions.CreateTransaction(r.Context(), t)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to create transaction", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	s.invalidateInsights()
	t.ID = id

	fields := log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(t.Description, t.Amount.Cents, t.Category)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		append([]any{"id", id}, fields.ToSlice()...)...)

	writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}

	id, err := pathID(r.URL.Path, "/api/transactions/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := s.transactions.DeleteTransaction(r.Context(), id); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to delete transaction", "id", id, "error", err)
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	s.invalidateInsights()
	w.WriteHeader(http.StatusNoContent)
}

type recurringRequest struct {
	AccountID   int64  `json:"account_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Every       string `json:"every"`
	FixedDay    int    `json:"fixed_day"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
}

type recurringResponse struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Every       string `json:"every"`
	FixedDay    int    `json:"fixed_day"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	NextDate    string `json:"next_date"`
	Active      bool   `json:"active"`
}

func toRecurringResponse(rt core.RecurringTransaction) recurringResponse {
	resp := recurringResponse{
		ID:          rt.ID,
		AccountID:   rt.AccountID,
		Description: rt.Description,
		AmountCents: rt.Amount.Cents,
		Category:    rt.Category,
		Every:       string(rt.Every.OrDefault()),
		FixedDay:    rt.FixedDay,
		StartDate:   rt.StartDate.Format("2006-01-02"),
		NextDate:    rt.NextDate.Format("2006-01-02"),
		Active:      rt.Active,
	}
	if !rt.EndDate.IsEmpty() {
		resp.EndDate = rt.EndDate.Format("2006-01-02")
	}
	return resp
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRecurring(w, r)
	case http.MethodPost:
		s.createRecurring(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) listRecurring(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListRecurring(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list recurring transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list recurring transactions")
		return
	}

	out := make([]recurringResponse, 0, len(items))
	for _, rt := range items {
		out = append(out, toRecurringResponse(rt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date, expected YYYY-MM-DD")
		return
	}
	var end core.Date
	if req.EndDate != "" {
		if end, err = parseDate(req.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date, expected YYYY-MM-DD")
			return
		}
	}
	cents, err := core.ParseSignedDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}

	rt := core.RecurringTransaction{
		AccountID:   req.AccountID,
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(req.Category),
		Every:       core.Pattern(req.Every),
		FixedDay:    req.FixedDay,
		StartDate:   start,
		EndDate:     end,
		// The first occurrence lands on the start date itself.
		NextDate: start,
		Active:   true,
	}
	if err := rt.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateRecurring(r.Context(), rt)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to create recurring transaction", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create recurring transaction")
		return
	}

	rt.ID = id
	writeJSON(w, http.StatusCreated, toRecurringResponse(rt))
}

func (s *Server) handleRecurringByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}

	id, err := pathID(r.URL.Path, "/api/recurring/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recurring transaction id")
		return
	}

	if err := s.store.DeactivateRecurring(r.Context(), id); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to deactivate recurring transaction", "id", id, "error", err)
		writeError(w, http.StatusNotFound, "recurring transaction not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type budgetRequest struct {
	Category string `json:"category"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Limit    string `json:"limit"`
}

type budgetResponse struct {
	ID         int64  `json:"id"`
	Category   string `json:"category"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	LimitCents int64  `json:"limit_cents"`
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBudgets(w, r)
	case http.MethodPost:
		s.createBudget(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) listBudgets(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)

	items, err := s.store.ListBudgets(r.Context(), year, month)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list budgets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list budgets")
		return
	}

	out := make([]budgetResponse, 0, len(items))
	for _, b := range items {
		out = append(out, budgetResponse{
			ID:         b.ID,
			Category:   b.Category,
			Year:       b.Year,
			Month:      b.Month,
			LimitCents: b.Limit.Cents,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cents, err := core.ParseSignedDecimalToCents(req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit: "+err.Error())
		return
	}

	b := core.Budget{
		Category: sanitizeInput(req.Category),
		Year:     req.Year,
		Month:    req.Month,
		Limit:    core.Money{Cents: cents},
	}
	if err := b.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateBudget(r.Context(), b)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to create budget", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create budget")
		return
	}

	s.invalidateInsights()
	b.ID = id
	writeJSON(w, http.StatusCreated, budgetResponse{
		ID:         b.ID,
		Category:   b.Category,
		Year:       b.Year,
		Month:      b.Month,
		LimitCents: b.Limit.Cents,
	})
}

type accountRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Currency string `json:"currency"`
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.store.ListAccounts(r.Context())
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list accounts", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list accounts")
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req accountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		a := core.Account{
			Name:     sanitizeInput(req.Name),
			Kind:     core.AccountKind(req.Kind),
			Currency: req.Currency,
		}
		if a.Name == "" {
			writeError(w, http.StatusBadRequest, "account name is required")
			return
		}
		id, err := s.store.CreateAccount(r.Context(), a)
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to create account", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create account")
			return
		}
		a.ID = id
		writeJSON(w, http.StatusCreated, a)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	now := time.Now()
	key := insightCacheKey(now.Year(), int(now.Month()))
	if cached, ok := s.insightCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	view, err := s.insights.MonthInsights(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to compute insights", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute insights")
		return
	}

	s.insightCache.Set(key, view)
	writeJSON(w, http.StatusOK, view)
}

// isValidationError classifies domain validation failures so they map to
// 400 instead of 500.
func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidDay,
		core.ErrInvalidMonth,
		core.ErrInvalidAmount,
		core.ErrInvalidPattern,
		core.ErrInvalidFixedDay,
		core.ErrEmptyDescription,
		core.ErrEmptyCategory,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
