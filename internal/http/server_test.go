package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/services"
)

type fakeTransactionAPI struct {
	items   []core.Transaction
	deleted []int64
	nextID  int64
}

func (f *fakeTransactionAPI) CreateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	f.nextID++
	t.ID = f.nextID
	f.items = append(f.items, t)
	return f.nextID, nil
}

func (f *fakeTransactionAPI) DeleteTransaction(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTransactionAPI) ListTransactions(_ context.Context, _, month int) ([]core.Transaction, error) {
	if month < 1 || month > 12 {
		return nil, core.ErrInvalidMonth
	}
	return f.items, nil
}

type fakeInsightAPI struct {
	calls int
	view  *services.MonthInsights
}

func (f *fakeInsightAPI) MonthInsights(context.Context) (*services.MonthInsights, error) {
	f.calls++
	return f.view, nil
}

type fakeStore struct {
	recurring   []core.RecurringTransaction
	budgets     []core.Budget
	accounts    []core.Account
	deactivated []int64
}

func (f *fakeStore) CreateRecurring(_ context.Context, rt core.RecurringTransaction) (int64, error) {
	f.recurring = append(f.recurring, rt)
	return int64(len(f.recurring)), nil
}

func (f *fakeStore) ListRecurring(context.Context) ([]core.RecurringTransaction, error) {
	return f.recurring, nil
}

func (f *fakeStore) DeactivateRecurring(_ context.Context, id int64) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeStore) CreateBudget(_ context.Context, b core.Budget) (int64, error) {
	f.budgets = append(f.budgets, b)
	return int64(len(f.budgets)), nil
}

func (f *fakeStore) ListBudgets(context.Context, int, int) ([]core.Budget, error) {
	return f.budgets, nil
}

func (f *fakeStore) CreateAccount(_ context.Context, a core.Account) (int64, error) {
	f.accounts = append(f.accounts, a)
	return int64(len(f.accounts)), nil
}

func (f *fakeStore) ListAccounts(context.Context) ([]core.Account, error) {
	return f.accounts, nil
}

func newTestServer(t *testing.T) (*Server, *fakeTransactionAPI, *fakeInsightAPI, *fakeStore) {
	t.Helper()
	txAPI := &fakeTransactionAPI{}
	insAPI := &fakeInsightAPI{view: &services.MonthInsights{Year: 2025, Month: 3}}
	store := &fakeStore{}
	s := NewServer(":0", txAPI, insAPI, store)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, txAPI, insAPI, store
}

func TestCreateTransaction(t *testing.T) {
	s, txAPI, _, _ := newTestServer(t)

	body := `{"account_id":1,"date":"2025-03-15","description":"groceries","amount":"-42.50","category":"Food"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if len(txAPI.items) != 1 {
		t.Fatalf("created %d transactions, want 1", len(txAPI.items))
	}
	if txAPI.items[0].Amount.Cents != -4250 {
		t.Errorf("amount cents = %d, want -4250", txAPI.items[0].Amount.Cents)
	}
	if !strings.Contains(rec.Body.String(), `"amount_cents":-4250`) {
		t.Errorf("response body = %s, want amount_cents field", rec.Body.String())
	}
}

func TestCreateTransaction_BadAmount(t *testing.T) {
	s, txAPI, _, _ := newTestServer(t)

	body := `{"account_id":1,"date":"2025-03-15","description":"x","amount":"abc","category":"Food"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(txAPI.items) != 0 {
		t.Error("invalid transaction must not be created")
	}
}

func TestCreateTransaction_EmptyDescription(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	body := `{"account_id":1,"date":"2025-03-15","description":"  ","amount":"-10.00","category":"Food"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListTransactions_InvalidMonth(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?year=2025&month=13", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDeleteTransaction(t *testing.T) {
	s, txAPI, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/transactions/42", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(txAPI.deleted) != 1 || txAPI.deleted[0] != 42 {
		t.Errorf("deleted = %v, want [42]", txAPI.deleted)
	}
}

func TestDeleteTransaction_BadID(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/transactions/abc", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestInsights_Cached(t *testing.T) {
	s, _, insAPI, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/insights", nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	}

	if insAPI.calls != 1 {
		t.Errorf("insight service called %d times, want 1 (cached afterwards)", insAPI.calls)
	}
}

func TestInsights_InvalidatedByWrite(t *testing.T) {
	s, _, insAPI, _ := newTestServer(t)

	get := func() {
		req := httptest.NewRequest(http.MethodGet, "/api/insights", nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
	}

	get()
	body := `{"account_id":1,"date":"2025-03-15","description":"groceries","amount":"-42.50","category":"Food"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	s.Handler.ServeHTTP(httptest.NewRecorder(), req)
	get()

	if insAPI.calls != 2 {
		t.Errorf("insight service called %d times, want 2 (cache invalidated by the write)", insAPI.calls)
	}
}

func TestCreateRecurring(t *testing.T) {
	s, _, _, store := newTestServer(t)

	body := `{"account_id":1,"description":"rent","amount":"-800.00","category":"Housing","every":"monthly","fixed_day":31,"start_date":"2025-01-31"}`
	req := httptest.NewRequest(http.MethodPost, "/api/recurring", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if len(store.recurring) != 1 {
		t.Fatalf("created %d templates, want 1", len(store.recurring))
	}
	rt := store.recurring[0]
	if rt.NextDate.Format("2006-01-02") != "2025-01-31" {
		t.Errorf("next date = %s, want start date", rt.NextDate.Format("2006-01-02"))
	}
	if !rt.Active {
		t.Error("new template should be active")
	}
}

func TestCreateRecurring_FixedDayOutOfRange(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	// Weekly patterns cap fixed_day at 7.
	body := `{"account_id":1,"description":"gym","amount":"-15.00","category":"Sport","every":"weekly","fixed_day":12,"start_date":"2025-01-06"}`
	req := httptest.NewRequest(http.MethodPost, "/api/recurring", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDeactivateRecurring(t *testing.T) {
	s, _, _, store := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/recurring/5", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(store.deactivated) != 1 || store.deactivated[0] != 5 {
		t.Errorf("deactivated = %v, want [5]", store.deactivated)
	}
}

func TestCreateBudget(t *testing.T) {
	s, _, _, store := newTestServer(t)

	body := `{"category":"Food","year":2025,"month":3,"limit":"400.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/budgets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if len(store.budgets) != 1 || store.budgets[0].Limit.Cents != 40000 {
		t.Errorf("budgets = %+v, want one with limit 40000 cents", store.budgets)
	}
}

func TestCreateBudget_NegativeLimit(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	body := `{"category":"Food","year":2025,"month":3,"limit":"-400.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/budgets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/transactions", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Errorf("Allow header = %q, want POST listed", allow)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestReadyReportsCounters(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	// A couple of requests through the full chain first, so the counters
	// have something to show.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.7:1234"
		s.Handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.RemoteAddr = "10.0.0.7:1234"
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	var ready readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ready); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if ready.Status != "ready" {
		t.Errorf("status = %q, want %q", ready.Status, "ready")
	}
	if ready.TotalRequests < 3 {
		t.Errorf("total_requests = %d, want at least 3", ready.TotalRequests)
	}
	if ready.ActiveClients < 1 {
		t.Errorf("active_clients = %d, want at least 1", ready.ActiveClients)
	}
}
