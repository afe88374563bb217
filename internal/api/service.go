// Package api provides the HTTP handlers for the exchange: user and symbol
// management, onramp, order placement and cancellation, minting, and
// balance/book queries. Handlers validate and decode; the engine owns all
// state transitions.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aaryan182/probo/internal/engine"
	"github.com/aaryan182/probo/internal/journal"
	"github.com/aaryan182/probo/internal/metrics"
	"github.com/aaryan182/probo/internal/model"
	"github.com/aaryan182/probo/internal/symbol"
)

// Service wires the engine and the trade journal behind the HTTP surface.
// Event broadcasting reaches the WebSocket hub through the exchange's
// outbound bus, not through the service.
type Service struct {
	ex      *engine.Exchange
	journal journal.Journal
}

// NewService creates an API service. The journal may be nil, in which case
// trade queries return empty results.
func NewService(ex *engine.Exchange, jnl journal.Journal) *Service {
	return &Service{ex: ex, journal: jnl}
}

// Routes registers every handler on the router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/test", s.APITest)
	r.Post("/reset", s.ResetData)

	r.Post("/users/{userID}", s.CreateUser)
	r.Post("/symbols/{symbol}", s.CreateSymbol)
	r.Post("/onramp", s.Onramp)

	r.Get("/balances/cash", s.GetCashAll)
	r.Get("/balances/cash/{userID}", s.GetCash)
	r.Get("/balances/inventory", s.GetInventoryAll)
	r.Get("/balances/inventory/{userID}", s.GetInventory)

	r.Post("/orders/buy", s.Buy)
	r.Post("/orders/sell", s.Sell)
	r.Post("/orders/cancel", s.Cancel)
	r.Post("/mint", s.Mint)

	r.Get("/orderbook", s.ViewBooks)
	r.Get("/orderbook/{symbol}", s.ViewBook)

	r.Get("/trades/{symbol}", s.TradesBySymbol)
	r.Get("/users/{userID}/trades", s.TradesByUser)
}

// --- Request types ---

// Number accepts a JSON number or string literal, preserving the exact
// decimal text for the engine to canonicalize.
type Number string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	*n = Number(data)
	return nil
}

// OrderRequest is the JSON body for buy, sell, and cancel. Quantity and
// price accept number or string literals; quantities with a fractional
// part are rejected.
type OrderRequest struct {
	UserID   string `json:"userId"`
	Symbol   string `json:"stockSymbol"`
	Quantity Number `json:"quantity"`
	Price    Number `json:"price"`
	Outcome  string `json:"stockType"`
}

// MintRequest is the JSON body for POST /mint.
type MintRequest struct {
	UserID   string `json:"userId"`
	Symbol   string `json:"stockSymbol"`
	Quantity Number `json:"quantity"`
	Price    Number `json:"price"`
}

// OnrampRequest is the JSON body for POST /onramp.
type OnrampRequest struct {
	UserID string `json:"userId"`
	Amount Number `json:"amount"`
}

// --- Handlers ---

// APITest handles GET /api/v1/test.
func (s *Service) APITest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API is up and running"})
}

// ResetData handles POST /api/v1/reset: clears all state and re-seeds the
// fixture.
func (s *Service) ResetData(w http.ResponseWriter, r *http.Request) {
	s.ex.Reset()
	if s.journal != nil {
		if err := s.journal.Reset(r.Context()); err != nil {
			slog.Warn("journal reset failed", "err", err)
		}
	}
	metrics.ActiveSymbols.Set(float64(len(s.ex.Symbols())))
	writeJSON(w, http.StatusOK, map[string]string{"message": "data reset"})
}

// CreateUser handles POST /api/v1/users/{userID}.
func (s *Service) CreateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	created, err := s.ex.CreateUser(userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]string{"userId": userID})
}

// CreateSymbol handles POST /api/v1/symbols/{symbol}. Conventional tickers
// additionally yield pair and expiry metadata; unparseable names stay
// opaque.
func (s *Service) CreateSymbol(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "symbol")
	if err := s.ex.CreateSymbol(name); err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.ActiveSymbols.Set(float64(len(s.ex.Symbols())))

	resp := map[string]any{"symbol": name}
	if t, err := symbol.Parse(name); err == nil {
		resp["base"] = t.Base
		resp["quote"] = t.Quote
		resp["expiry"] = t.Expiry.UTC().Format(time.RFC3339)
		slog.Info("symbol created", "symbol", name, "base", t.Base, "quote", t.Quote, "expiry", t.Expiry)
	} else {
		slog.Info("symbol created", "symbol", name)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Onramp handles POST /api/v1/onramp.
func (s *Service) Onramp(w http.ResponseWriter, r *http.Request) {
	var req OnrampRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engine.KindInvalidInput, "invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(string(req.Amount))
	if err != nil {
		writeError(w, engine.KindInvalidInput, "amount must be a decimal", http.StatusBadRequest)
		return
	}
	b, err := s.ex.Onramp(req.UserID, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cashView(b))
}

// GetCash handles GET /api/v1/balances/cash/{userID}.
func (s *Service) GetCash(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	b, err := s.ex.CashBalance(userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.CashView{userID: cashView(b)})
}

// GetCashAll handles GET /api/v1/balances/cash.
func (s *Service) GetCashAll(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.ex.CashSnapshot()
	out := make(map[string]model.CashView, len(snapshot))
	for userID, b := range snapshot {
		out[userID] = cashView(b)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetInventory handles GET /api/v1/balances/inventory/{userID}.
func (s *Service) GetInventory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	positions, err := s.ex.UserInventory(userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]map[string]model.Position{userID: positions})
}

// GetInventoryAll handles GET /api/v1/balances/inventory.
func (s *Service) GetInventoryAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ex.InventorySnapshot())
}

// Buy handles POST /api/v1/orders/buy.
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	req, qty, price, outcome, ok := s.decodeOrder(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := s.ex.Buy(req.UserID, req.Symbol, qty, price, outcome)
	metrics.EngineOpDuration.WithLabelValues("buy").Observe(time.Since(start).Seconds())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.OrdersPlaced.WithLabelValues("buy", string(outcome)).Inc()
	s.recordFills(r, res.Fills)
	writeJSON(w, http.StatusOK, res)
}

// Sell handles POST /api/v1/orders/sell.
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	req, qty, price, outcome, ok := s.decodeOrder(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := s.ex.Sell(req.UserID, req.Symbol, qty, price, outcome)
	metrics.EngineOpDuration.WithLabelValues("sell").Observe(time.Since(start).Seconds())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.OrdersPlaced.WithLabelValues("sell", string(outcome)).Inc()
	s.recordFills(r, res.Fills)
	writeJSON(w, http.StatusOK, res)
}

// Cancel handles POST /api/v1/orders/cancel.
func (s *Service) Cancel(w http.ResponseWriter, r *http.Request) {
	req, qty, price, outcome, ok := s.decodeOrder(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := s.ex.Cancel(req.UserID, req.Symbol, qty, price, outcome)
	metrics.EngineOpDuration.WithLabelValues("cancel").Observe(time.Since(start).Seconds())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.OrdersCanceled.Inc()
	writeJSON(w, http.StatusOK, res)
}

// Mint handles POST /api/v1/mint.
func (s *Service) Mint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engine.KindInvalidInput, "invalid request body", http.StatusBadRequest)
		return
	}
	qty, err := parseQuantity(req.Quantity)
	if err != nil {
		writeError(w, engine.KindInvalidInput, err.Error(), http.StatusBadRequest)
		return
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		writeError(w, engine.KindInvalidInput, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	res, err := s.ex.Mint(req.UserID, req.Symbol, qty, price)
	metrics.EngineOpDuration.WithLabelValues("mint").Observe(time.Since(start).Seconds())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.recordFills(r, res.Fills)
	writeJSON(w, http.StatusOK, res)
}

// ViewBook handles GET /api/v1/orderbook/{symbol}.
func (s *Service) ViewBook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "symbol")
	view, err := s.ex.ViewBook(name)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ViewBooks handles GET /api/v1/orderbook.
func (s *Service) ViewBooks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ex.ViewBooks())
}

// TradesBySymbol handles GET /api/v1/trades/{symbol}.
func (s *Service) TradesBySymbol(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, []model.Trade{})
		return
	}
	trades, err := s.journal.TradesBySymbol(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, engine.KindInternal, "failed to load trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// TradesByUser handles GET /api/v1/users/{userID}/trades.
func (s *Service) TradesByUser(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, []model.Trade{})
		return
	}
	trades, err := s.journal.TradesByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, engine.KindInternal, "failed to load trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// --- Helpers ---

func (s *Service) decodeOrder(w http.ResponseWriter, r *http.Request) (OrderRequest, int64, decimal.Decimal, model.Outcome, bool) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engine.KindInvalidInput, "invalid request body", http.StatusBadRequest)
		return req, 0, decimal.Decimal{}, "", false
	}
	qty, err := parseQuantity(req.Quantity)
	if err != nil {
		writeError(w, engine.KindInvalidInput, err.Error(), http.StatusBadRequest)
		return req, 0, decimal.Decimal{}, "", false
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		writeError(w, engine.KindInvalidInput, err.Error(), http.StatusBadRequest)
		return req, 0, decimal.Decimal{}, "", false
	}
	outcome := model.Outcome(req.Outcome)
	if !outcome.Valid() {
		writeError(w, engine.KindInvalidInput, "stockType must be yes or no", http.StatusBadRequest)
		return req, 0, decimal.Decimal{}, "", false
	}
	return req, qty, price, outcome, true
}

// parseQuantity rejects non-numeric and fractional quantities.
func parseQuantity(n Number) (int64, error) {
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return 0, errors.New("quantity must be a number")
	}
	if !d.IsInteger() {
		return 0, errors.New("quantity must be a whole number of tokens")
	}
	return d.IntPart(), nil
}

func parsePrice(n Number) (decimal.Decimal, error) {
	return model.ParsePrice(string(n))
}

// recordFills stamps fills into immutable journal records. Journal failures
// are logged, never surfaced: the ledger is the source of truth.
func (s *Service) recordFills(r *http.Request, fills []model.Fill) {
	for _, f := range fills {
		metrics.TradesTotal.WithLabelValues(string(f.Kind)).Inc()
		metrics.TradeVolume.WithLabelValues(f.Symbol, string(f.Kind)).Add(float64(f.Quantity))
	}
	if s.journal == nil || len(fills) == 0 {
		return
	}

	now := time.Now().UTC()
	trades := make([]model.Trade, 0, len(fills))
	for _, f := range fills {
		trades = append(trades, model.Trade{
			ID:        uuid.New().String(),
			Symbol:    f.Symbol,
			Outcome:   f.Outcome,
			Kind:      f.Kind,
			Buyer:     f.Buyer,
			Seller:    f.Seller,
			Price:     f.Price,
			Quantity:  f.Quantity,
			Timestamp: now,
		})
	}
	if err := s.journal.AppendTrades(r.Context(), trades); err != nil {
		slog.Warn("journal append failed", "err", err, "trades", len(trades))
	}
}

func cashView(b model.CashBalance) model.CashView {
	return model.CashView{Free: b.Free.String(), Locked: b.Locked.String()}
}

// writeEngineError maps an engine error onto the HTTP taxonomy.
func writeEngineError(w http.ResponseWriter, err error) {
	kind := engine.Classify(err)
	status := http.StatusBadRequest
	switch kind {
	case engine.KindUserNotFound, engine.KindSymbolNotFound, engine.KindOrderNotFound:
		status = http.StatusNotFound
	case engine.KindSymbolExists:
		status = http.StatusConflict
	case engine.KindInternal:
		status = http.StatusInternalServerError
	}
	writeError(w, kind, err.Error(), status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, kind engine.Kind, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  string(kind),
	})
}

// writeJSON writes a JSON success response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
