package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/alphaboost/console/internal/backend"
	"github.com/alphaboost/console/internal/gateway"
	"github.com/alphaboost/console/internal/ledger"
	"github.com/alphaboost/console/internal/model"
	"github.com/alphaboost/console/internal/prediction"
	"github.com/alphaboost/console/internal/store"
	"github.com/alphaboost/console/internal/upstream"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a mock-mode gateway over an in-memory store.
func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := gateway.NewService(ledger.NewProvider(ms, prediction.NewTable(), 0), ms, nil)

	r := chi.NewRouter()
	r.Mount("/api", svc.Router())
	return ms, r
}

func do(t *testing.T, router http.Handler, method, path, app string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if app != "" {
		req.Header.Set(gateway.HeaderAppName, app)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func trade(symbol, side string, qty, price float64) map[string]any {
	return map[string]any{"symbol": symbol, "side": side, "qty": qty, "price": price}
}

// --- App lifecycle ---

func TestRegisterApp(t *testing.T) {
	_, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/apps", "RobinTrade-1", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var reg model.AppRegistration
	json.Unmarshal(w.Body.Bytes(), &reg)
	if reg.AppUsername != "RobinTrade-1" {
		t.Errorf("expected app_username=RobinTrade-1, got %q", reg.AppUsername)
	}
}

func TestDeleteApp_KeepsTransactions(t *testing.T) {
	_, router := newTestEnv(t)

	do(t, router, "POST", "/api/apps/transactions", "app", trade("AAPL", "buy", 1, 1))
	w := do(t, router, "DELETE", "/api/apps", "app", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "{\"deleted\":true,\"app_username\":\"app\"}\n" {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	w = do(t, router, "GET", "/api/apps/transactions", "app", nil)
	var list model.TransactionList
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Transactions) != 1 {
		t.Errorf("expected transaction to survive app deletion, got %d", len(list.Transactions))
	}
}

// --- Transactions ---

func TestCreateTransaction_AssignsSequentialIDs(t *testing.T) {
	_, router := newTestEnv(t)

	for i := 1; i <= 3; i++ {
		w := do(t, router, "POST", "/api/apps/transactions", "app", trade("aapl", "BUY", 10, 150))
		if w.Code != http.StatusCreated {
			t.Fatalf("trade %d: expected 201, got %d: %s", i, w.Code, w.Body.String())
		}
		var created model.TransactionCreated
		json.Unmarshal(w.Body.Bytes(), &created)
		if created.ID != i {
			t.Errorf("expected id=%d, got %d", i, created.ID)
		}
	}

	w := do(t, router, "GET", "/api/apps/transactions", "app", nil)
	var list model.TransactionList
	json.Unmarshal(w.Body.Bytes(), &list)
	if list.AppUsername != "app" {
		t.Errorf("expected app_username=app, got %q", list.AppUsername)
	}
	if len(list.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(list.Transactions))
	}
	tx := list.Transactions[0]
	if tx.Symbol != "AAPL" || tx.Side != model.SideBuy {
		t.Errorf("expected normalized AAPL/buy, got %s/%s", tx.Symbol, tx.Side)
	}
	if !tx.Qty.Equal(d(10)) || !tx.Price.Equal(d(150)) {
		t.Errorf("unexpected qty/price %s/%s", tx.Qty, tx.Price)
	}
}

func TestCreateTransaction_AcceptsStringNumbers(t *testing.T) {
	_, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/apps/transactions", "app",
		map[string]any{"symbol": "TSLA", "side": "sell", "qty": "2.5", "price": "199.99"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateTransaction_RejectsInvalidTickets(t *testing.T) {
	_, router := newTestEnv(t)

	tests := []map[string]any{
		trade("AAPL", "buy", 0, 10),
		trade("AAPL", "buy", 10, -1),
		trade("", "buy", 1, 1),
		trade("AAPL", "short", 1, 1),
	}
	for _, body := range tests {
		w := do(t, router, "POST", "/api/apps/transactions", "app", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %v, got %d", body, w.Code)
		}
	}

	w := do(t, router, "GET", "/api/apps/transactions", "app", nil)
	var list model.TransactionList
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Transactions) != 0 {
		t.Errorf("rejected tickets must not be stored, got %d", len(list.Transactions))
	}
}

func TestCreateTransaction_MalformedBody(t *testing.T) {
	_, router := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/apps/transactions", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSessionsAreIsolatedByAppName(t *testing.T) {
	_, router := newTestEnv(t)

	do(t, router, "POST", "/api/apps/transactions", "alice", trade("AAPL", "buy", 1, 1))
	w := do(t, router, "POST", "/api/apps/transactions", "bob", trade("AAPL", "buy", 1, 1))

	var created model.TransactionCreated
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID != 1 {
		t.Errorf("expected bob's first id to be 1, got %d", created.ID)
	}
}

func TestSessionHeaderOverridesAppName(t *testing.T) {
	_, router := newTestEnv(t)

	send := func(app string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(trade("AAPL", "buy", 1, 1))
		req := httptest.NewRequest("POST", "/api/apps/transactions", bytes.NewReader(body))
		req.Header.Set(gateway.HeaderAppName, app)
		req.Header.Set(gateway.HeaderSession, "tab-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}
	send("first-name")
	w := send("second-name")

	var created model.TransactionCreated
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID != 2 {
		t.Errorf("expected shared session id 2, got %d", created.ID)
	}
}

// --- Predictions ---

func TestGetPrediction_UnknownTicker(t *testing.T) {
	_, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/predictions/xyz", "app", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var p model.Prediction
	json.Unmarshal(w.Body.Bytes(), &p)
	want := model.Prediction{Ticker: "XYZ", ProbUp: 0.5, Strength: 0.5}
	if p != want {
		t.Errorf("expected %+v, got %+v", want, p)
	}
}

func TestGetPrediction_AnyTickerGetsNeutralDefault(t *testing.T) {
	ms, router := newTestEnv(t)

	for _, ticker := range []string{"1ABC", "ABCDEFGHIJK", "xyz"} {
		w := do(t, router, "GET", "/api/predictions/"+ticker, "app", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", ticker, w.Code, w.Body.String())
		}
		var p model.Prediction
		json.Unmarshal(w.Body.Bytes(), &p)
		if p.ProbUp != 0.5 || p.Strength != 0.5 {
			t.Errorf("%s: expected neutral default, got %+v", ticker, p)
		}
	}

	logs, _ := ms.ListLogs(context.Background(), "app")
	if len(logs) != 3 {
		t.Errorf("expected 3 journal entries, got %d", len(logs))
	}
}

func TestGetPrediction_BlankTicker(t *testing.T) {
	ms, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/predictions/%20", "app", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	logs, _ := ms.ListLogs(context.Background(), "app")
	if len(logs) != 0 {
		t.Errorf("rejected lookups are not journaled, got %d", len(logs))
	}
}

// --- Portfolio and stats ---

func TestGetPortfolio(t *testing.T) {
	_, router := newTestEnv(t)

	do(t, router, "POST", "/api/apps/transactions", "app", trade("AAPL", "buy", 10, 10))
	do(t, router, "POST", "/api/apps/transactions", "app", trade("AAPL", "buy", 10, 20))
	do(t, router, "POST", "/api/apps/transactions", "app", trade("XYZ", "buy", 10, 5))
	do(t, router, "POST", "/api/apps/transactions", "app", trade("XYZ", "sell", 10, 6))

	w := do(t, router, "GET", "/api/portfolio", "app", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var p model.Portfolio
	json.Unmarshal(w.Body.Bytes(), &p)

	if len(p.Positions) != 1 {
		t.Fatalf("expected only AAPL open, got %+v", p.Positions)
	}
	pos := p.Positions[0]
	if pos.Symbol != "AAPL" || !pos.Qty.Equal(d(20)) || !pos.AvgPrice.Equal(d(15)) || pos.Trades != 2 {
		t.Errorf("unexpected position %+v", pos)
	}
	if len(p.History) != 4 || p.History[0].ID != 4 {
		t.Errorf("expected 4 history rows newest first, got %+v", p.History)
	}
	if !p.History[0].Total.Equal(d(60)) {
		t.Errorf("expected newest row total 60, got %s", p.History[0].Total)
	}
}

func TestGetMostTraded(t *testing.T) {
	_, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/stats/most-traded", "app", nil)
	if w.Body.String() != "null\n" {
		t.Errorf("expected null for empty session, got %q", w.Body.String())
	}

	for _, s := range []string{"AAPL", "TSLA", "TSLA", "AAPL"} {
		do(t, router, "POST", "/api/apps/transactions", "app", trade(s, "buy", 1, 1))
	}
	w = do(t, router, "GET", "/api/stats/most-traded", "app", nil)
	var pop model.Popularity
	json.Unmarshal(w.Body.Bytes(), &pop)
	if pop.Ticker != "AAPL" || pop.Count != 2 {
		t.Errorf("expected AAPL x2 (first seen wins tie), got %+v", pop)
	}
}

// --- Journal ---

func TestEveryCallIsJournaled(t *testing.T) {
	ms, router := newTestEnv(t)

	do(t, router, "POST", "/api/apps", "app", nil)
	do(t, router, "POST", "/api/apps/transactions", "app", trade("AAPL", "buy", 1, 1))
	do(t, router, "GET", "/api/apps/transactions", "app", nil)
	do(t, router, "GET", "/api/predictions/AAPL", "app", nil)

	logs, _ := ms.ListLogs(context.Background(), "app")
	if len(logs) != 4 {
		t.Fatalf("expected 4 journal entries, got %d", len(logs))
	}
	if logs[1].Method != "POST" || logs[1].Endpoint != "/apps/transactions" || logs[1].Status != http.StatusCreated {
		t.Errorf("unexpected entry %+v", logs[1])
	}

	w := do(t, router, "GET", "/api/logs", "app", nil)
	var listed []model.LogEntry
	json.Unmarshal(w.Body.Bytes(), &listed)
	if len(listed) != 4 {
		t.Errorf("expected 4 listed logs, got %d", len(listed))
	}

	w = do(t, router, "DELETE", "/api/logs", "app", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	logs, _ = ms.ListLogs(context.Background(), "app")
	if len(logs) != 0 {
		t.Errorf("expected empty journal after clear, got %d", len(logs))
	}
}

// --- Remote mode ---

func newRemoteEnv(t *testing.T, upstreamHandler http.HandlerFunc) (*store.MemoryStore, chi.Router) {
	t.Helper()
	srv := httptest.NewServer(upstreamHandler)
	t.Cleanup(srv.Close)

	ms := store.NewMemoryStore()
	svc := gateway.NewService(backend.Shared(upstream.New(srv.URL)), ms, nil)
	r := chi.NewRouter()
	r.Mount("/api", svc.Router())
	return ms, r
}

func TestRemote_ForwardsIdentityAsUserAgent(t *testing.T) {
	_, router := newRemoteEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "RobinTrade-9" {
			t.Errorf("expected User-Agent=RobinTrade-9, got %q", ua)
		}
		w.Write([]byte(`{"ticker":"AAPL","prob_up":0.7,"strength":0.6}`))
	})

	w := do(t, router, "GET", "/api/predictions/aapl", "RobinTrade-9", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRemote_EmptyUpstreamBody(t *testing.T) {
	_, router := newRemoteEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := do(t, router, "GET", "/api/apps/transactions", "app", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if w.Body.String() != `{"error":"empty_response"}` {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestRemote_UpstreamErrorPassesThrough(t *testing.T) {
	ms, router := newRemoteEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"app_not_found"}`))
	})

	w := do(t, router, "GET", "/api/apps/transactions", "app", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w.Body.String() != `{"error":"app_not_found"}` {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	logs, _ := ms.ListLogs(context.Background(), "app")
	if len(logs) != 1 || logs[0].Status != http.StatusNotFound {
		t.Errorf("expected one journaled 404, got %+v", logs)
	}
}

func TestRemote_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ms := store.NewMemoryStore()
	svc := gateway.NewService(backend.Shared(upstream.New(url)), ms, nil)
	r := chi.NewRouter()
	r.Mount("/api", svc.Router())

	w := do(t, r, "POST", "/api/apps", "app", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body backend.ErrorBody
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error != "service_unavailable" || body.Details == "" {
		t.Errorf("unexpected body %+v", body)
	}
}
