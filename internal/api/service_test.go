package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/aaryan182/probo/internal/api"
	"github.com/aaryan182/probo/internal/engine"
	"github.com/aaryan182/probo/internal/journal"
	"github.com/aaryan182/probo/internal/model"
)

// newTestEnv creates an API service over a fresh exchange, an in-memory
// journal, and a chi router.
func newTestEnv(t *testing.T) (*engine.Exchange, *journal.MemoryJournal, chi.Router) {
	t.Helper()
	ex := engine.New(nil)
	jnl := journal.NewMemoryJournal()
	svc := api.NewService(ex, jnl)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	return ex, jnl, r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAPITest(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/test", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["message"] != "API is up and running" {
		t.Errorf("unexpected message: %q", resp["message"])
	}
}

func TestReset_ReinstatesSeedFixture(t *testing.T) {
	_, _, router := newTestEnv(t)

	if w := do(t, router, "POST", "/api/v1/reset", nil); w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", w.Code)
	}

	w := do(t, router, "GET", "/api/v1/balances/cash/user2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]model.CashView
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["user2"].Free != "20000" || resp["user2"].Locked != "5000" {
		t.Errorf("unexpected user2 balance: %+v", resp["user2"])
	}

	w = do(t, router, "GET", "/api/v1/orderbook/"+engine.SeedSymbol, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view model.SymbolBookView
	json.Unmarshal(w.Body.Bytes(), &view)
	if len(view.Yes.Bids) != 2 {
		t.Errorf("expected two YES bid levels, got %+v", view.Yes.Bids)
	}
}

func TestCreateSymbol_ConflictOnDuplicate(t *testing.T) {
	_, _, router := newTestEnv(t)

	if w := do(t, router, "POST", "/api/v1/symbols/BTC_USDT_10_Oct_2024_9_30", nil); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	w := do(t, router, "POST", "/api/v1/symbols/BTC_USDT_10_Oct_2024_9_30", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["code"] != "SYMBOL_EXISTS" {
		t.Errorf("expected SYMBOL_EXISTS, got %q", resp["code"])
	}
}

func TestCreateSymbol_TickerMetadata(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/symbols/BTC_USDT_10_Oct_2024_9_30", nil)
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["base"] != "BTC" || resp["quote"] != "USDT" {
		t.Errorf("expected ticker metadata, got %+v", resp)
	}

	// Opaque names are accepted without metadata.
	w = do(t, router, "POST", "/api/v1/symbols/whatever", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("opaque symbol must be accepted, got %d", w.Code)
	}
}

func TestOnrampAndGetCash(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/onramp", map[string]any{"userId": "alice", "amount": "2500.50"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "GET", "/api/v1/balances/cash/alice", nil)
	var resp map[string]model.CashView
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["alice"].Free != "2500.5" {
		t.Errorf("expected free 2500.5, got %q", resp["alice"].Free)
	}
}

func TestOnramp_RejectsNonPositive(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/onramp", map[string]any{"userId": "alice", "amount": "0"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetCash_UnknownUser(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/balances/cash/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["code"] != "USER_NOT_FOUND" {
		t.Errorf("expected USER_NOT_FOUND, got %q", resp["code"])
	}
}

func TestBuy_InsufficientCash(t *testing.T) {
	_, _, router := newTestEnv(t)
	do(t, router, "POST", "/api/v1/reset", nil)

	w := do(t, router, "POST", "/api/v1/orders/buy", map[string]any{
		"userId":      "user1",
		"stockSymbol": engine.SeedSymbol,
		"quantity":    100000,
		"price":       "10",
		"stockType":   "yes",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["code"] != "INSUFFICIENT_CASH" {
		t.Errorf("expected INSUFFICIENT_CASH, got %q", resp["code"])
	}
}

func TestBuy_RejectsFractionalQuantity(t *testing.T) {
	_, _, router := newTestEnv(t)
	do(t, router, "POST", "/api/v1/reset", nil)

	w := do(t, router, "POST", "/api/v1/orders/buy", map[string]any{
		"userId":      "user1",
		"stockSymbol": engine.SeedSymbol,
		"quantity":    "10.5",
		"price":       "5",
		"stockType":   "yes",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for fractional quantity, got %d", w.Code)
	}
}

func TestBuy_RejectsUnknownOutcome(t *testing.T) {
	_, _, router := newTestEnv(t)
	do(t, router, "POST", "/api/v1/reset", nil)

	w := do(t, router, "POST", "/api/v1/orders/buy", map[string]any{
		"userId":      "user1",
		"stockSymbol": engine.SeedSymbol,
		"quantity":    10,
		"price":       "5",
		"stockType":   "maybe",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown outcome, got %d", w.Code)
	}
}

func TestBuy_UnknownSymbolIs404(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/orders/buy", map[string]any{
		"userId":      "user1",
		"stockSymbol": "GHOST",
		"quantity":    10,
		"price":       "5",
		"stockType":   "yes",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTradeFlow_SweepRecordsJournal(t *testing.T) {
	_, jnl, router := newTestEnv(t)

	do(t, router, "POST", "/api/v1/symbols/SOL_USDT_20_Dec_2024_12_0", nil)
	do(t, router, "POST", "/api/v1/onramp", map[string]any{"userId": "u1", "amount": "100000"})
	do(t, router, "POST", "/api/v1/onramp", map[string]any{"userId": "u2", "amount": "100000"})

	w := do(t, router, "POST", "/api/v1/orders/buy", map[string]any{
		"userId": "u1", "stockSymbol": "SOL_USDT_20_Dec_2024_12_0",
		"quantity": 50, "price": "6", "stockType": "yes",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("yes buy: %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "POST", "/api/v1/orders/buy", map[string]any{
		"userId": "u2", "stockSymbol": "SOL_USDT_20_Dec_2024_12_0",
		"quantity": 50, "price": "5", "stockType": "no",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("no buy: %d: %s", w.Code, w.Body.String())
	}

	var res engine.OrderResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Status != engine.StatusFullyMatched {
		t.Errorf("expected fully_matched, got %s", res.Status)
	}

	// The sweep produced two fills, both journaled.
	if jnl.Len() != 2 {
		t.Errorf("expected 2 journal records, got %d", jnl.Len())
	}

	w = do(t, router, "GET", "/api/v1/trades/SOL_USDT_20_Dec_2024_12_0", nil)
	var trades []model.Trade
	json.Unmarshal(w.Body.Bytes(), &trades)
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	for _, tr := range trades {
		if tr.ID == "" {
			t.Error("expected non-empty trade id")
		}
		if tr.Kind != model.FillSweep {
			t.Errorf("expected sweep kind, got %s", tr.Kind)
		}
		if tr.Price.String() != "5.5" {
			t.Errorf("expected midpoint 5.5, got %s", tr.Price)
		}
	}

	w = do(t, router, "GET", "/api/v1/users/u1/trades", nil)
	trades = nil
	json.Unmarshal(w.Body.Bytes(), &trades)
	if len(trades) != 1 || trades[0].Buyer != "u1" {
		t.Errorf("expected one trade for u1, got %+v", trades)
	}
}

func TestCancelFlow(t *testing.T) {
	_, _, router := newTestEnv(t)
	do(t, router, "POST", "/api/v1/reset", nil)

	w := do(t, router, "POST", "/api/v1/orders/cancel", map[string]any{
		"userId": "user1", "stockSymbol": engine.SeedSymbol,
		"quantity": 200, "price": "9.5", "stockType": "yes",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: %d: %s", w.Code, w.Body.String())
	}

	// Second cancel of the same key reports ORDER_NOT_FOUND.
	w = do(t, router, "POST", "/api/v1/orders/cancel", map[string]any{
		"userId": "user1", "stockSymbol": engine.SeedSymbol,
		"quantity": 200, "price": "9.5", "stockType": "yes",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat cancel, got %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["code"] != "ORDER_NOT_FOUND" {
		t.Errorf("expected ORDER_NOT_FOUND, got %q", resp["code"])
	}
}

func TestMintFlow(t *testing.T) {
	_, jnl, router := newTestEnv(t)
	do(t, router, "POST", "/api/v1/reset", nil)

	w := do(t, router, "POST", "/api/v1/mint", map[string]any{
		"userId": "user1", "stockSymbol": engine.SeedSymbol,
		"quantity": 10, "price": "5",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("mint: %d: %s", w.Code, w.Body.String())
	}

	var res engine.MintResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.RemainingCash.String() != "9950" {
		t.Errorf("expected remaining cash 9950, got %s", res.RemainingCash)
	}

	w = do(t, router, "GET", "/api/v1/balances/inventory/user1", nil)
	var inv map[string]map[string]model.Position
	json.Unmarshal(w.Body.Bytes(), &inv)
	p := inv["user1"][engine.SeedSymbol]
	if p.Yes.Free != 110 || p.No.Free != 60 {
		t.Errorf("expected yes 110 no 60, got %+v", p)
	}

	if jnl.Len() != 1 {
		t.Errorf("expected mint journaled once, got %d", jnl.Len())
	}
}

func TestViewBooks_All(t *testing.T) {
	_, _, router := newTestEnv(t)
	do(t, router, "POST", "/api/v1/reset", nil)

	w := do(t, router, "GET", "/api/v1/orderbook", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var books map[string]model.SymbolBookView
	json.Unmarshal(w.Body.Bytes(), &books)
	if _, ok := books[engine.SeedSymbol]; !ok {
		t.Errorf("expected seed symbol in book snapshot, got %v", books)
	}
}

func TestViewBook_UnknownSymbol(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/orderbook/GHOST", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateUser(t *testing.T) {
	_, _, router := newTestEnv(t)

	if w := do(t, router, "POST", "/api/v1/users/bob", nil); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := do(t, router, "POST", "/api/v1/users/bob", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 on re-create, got %d", w.Code)
	}
}
