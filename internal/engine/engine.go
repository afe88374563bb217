// Package engine implements the matching engine and its coupled ledgers:
// taker matching on order placement, the YES×NO book-sweep, cancellation,
// and pair minting. Every write path runs under a single exclusive lock;
// the ledgers and book are mutated together so that cash and inventory
// conservation holds after every operation.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/aaryan182/probo/internal/book"
	"github.com/aaryan182/probo/internal/events"
	"github.com/aaryan182/probo/internal/ledger"
	"github.com/aaryan182/probo/internal/model"
)

// OrderStatus is the aggregate outcome of a placement.
type OrderStatus string

const (
	StatusFullyMatched     OrderStatus = "fully_matched"
	StatusPartiallyMatched OrderStatus = "partially_matched"
	StatusPending          OrderStatus = "pending"
)

// OrderResult summarizes a placement: how much matched (taker pass plus any
// book-sweep fills this call triggered) and how much rests on the book.
type OrderResult struct {
	Status    OrderStatus     `json:"status"`
	Symbol    string          `json:"symbol"`
	Outcome   model.Outcome   `json:"outcome"`
	Price     decimal.Decimal `json:"price"`
	Requested int64           `json:"requested"`
	Matched   int64           `json:"matched"`
	Remaining int64           `json:"remaining"`
	Fills     []model.Fill    `json:"-"`
}

// CancelResult summarizes a cancellation. Clamped is set when the unlock hit
// a locked balance smaller than the canceled notional (possible only when
// the book and the ledger disagree, e.g. hand-built seed state).
type CancelResult struct {
	Symbol   string          `json:"symbol"`
	Outcome  model.Outcome   `json:"outcome"`
	Price    decimal.Decimal `json:"price"`
	Canceled int64           `json:"canceled"`
	Side     model.Side      `json:"side"`
	Clamped  bool            `json:"ledger_inconsistency,omitempty"`
}

// MintResult summarizes a mint.
type MintResult struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	Cost          decimal.Decimal `json:"cost"`
	RemainingCash decimal.Decimal `json:"remaining_cash"`
	Fills         []model.Fill    `json:"-"`
}

// Exchange is the in-memory core: cash ledger, inventory ledger, order book,
// and the matching engine driving them. One value is created at process
// startup and passed to handlers; all mutable state lives behind mu.
type Exchange struct {
	mu   sync.Mutex
	cash *ledger.Cash
	inv  *ledger.Inventory
	book *book.Book
	bus  *events.Bus
}

// New creates an empty exchange. The bus may be nil, in which case events
// are discarded.
func New(bus *events.Bus) *Exchange {
	return &Exchange{
		cash: ledger.NewCash(),
		inv:  ledger.NewInventory(),
		book: book.New(),
		bus:  bus,
	}
}

func (e *Exchange) emit(ev events.Event) {
	if e.bus != nil {
		e.bus.Enqueue(ev)
	}
}

// CreateUser idempotently creates the user with zero balances. Returns true
// when the user was newly created.
func (e *Exchange) CreateUser(user string) (bool, error) {
	if user == "" {
		return false, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cash.Exists(user) {
		return false, nil
	}
	e.cash.Ensure(user)
	e.emit(events.UserCreated(user))
	return true, nil
}

// CreateSymbol registers an empty book for the symbol. Duplicate creation
// fails with ErrSymbolExists.
func (e *Exchange) CreateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.book.CreateSymbol(symbol); err != nil {
		return err
	}
	e.emit(events.SymbolCreated(symbol))
	return nil
}

// Onramp credits free cash to the user, creating the user on demand.
func (e *Exchange) Onramp(user string, amount decimal.Decimal) (model.CashBalance, error) {
	if user == "" {
		return model.CashBalance{}, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.cash.Deposit(user, amount); err != nil {
		return model.CashBalance{}, err
	}
	b, _ := e.cash.Balance(user)
	e.emit(events.BalanceUpdated(user, b))
	return b, nil
}

// validateOrder checks the shared placement/cancel preconditions. Callers
// hold no lock yet; validation never mutates.
func validateOrder(user, symbol string, qty int64, price decimal.Decimal, outcome model.Outcome) error {
	if user == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidInput)
	}
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidInput)
	}
	if !outcome.Valid() {
		return fmt.Errorf("%w: outcome must be yes or no", ErrInvalidInput)
	}
	if price.LessThan(model.MinPrice) || price.GreaterThan(model.MaxPrice) {
		return fmt.Errorf("%w: price %s outside [%s, %s]", ErrInvalidInput, price, model.MinPrice, model.MaxPrice)
	}
	return nil
}

// Buy places a taker buy: reserve the full notional, consume resting sells
// of the same outcome at prices up to the limit (ascending, maker price,
// insertion order within a level), rest the residual as a bid, refund any
// over-reservation, then run the book-sweep.
func (e *Exchange) Buy(user, symbol string, qty int64, price decimal.Decimal, outcome model.Outcome) (OrderResult, error) {
	if err := validateOrder(user, symbol, qty, price, outcome); err != nil {
		return OrderResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.book.HasSymbol(symbol) {
		return OrderResult{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	notional := price.Mul(decimal.NewFromInt(qty))
	if err := e.cash.Lock(user, notional); err != nil {
		return OrderResult{}, err
	}

	remaining := qty
	consumed := decimal.Zero
	var fills []model.Fill

	for _, lvl := range e.book.Levels(symbol, outcome, model.SideAsk, true) {
		if lvl.Price.GreaterThan(price) {
			break
		}
		for remaining > 0 && lvl.Total > 0 {
			maker, _ := lvl.First()
			q := min64(remaining, maker.Qty)
			legNotional := lvl.Price.Mul(decimal.NewFromInt(q))

			// Buyer pays the maker's resting price and takes the tokens.
			if err := e.cash.ConsumeLocked(user, legNotional); err != nil {
				return OrderResult{}, err
			}
			e.inv.CreditFreeQty(user, symbol, outcome, q)

			// Maker's locked inventory settles into cash.
			if err := e.inv.ConsumeLockedQty(maker.User, symbol, outcome, q); err != nil {
				return OrderResult{}, err
			}
			e.cash.CreditFree(maker.User, legNotional)

			if err := e.book.ReduceMaker(symbol, outcome, model.SideAsk, lvl.Price, maker.User, q); err != nil {
				return OrderResult{}, err
			}

			fills = append(fills, model.Fill{
				Symbol:   symbol,
				Outcome:  outcome,
				Kind:     model.FillTaker,
				Buyer:    user,
				Seller:   maker.User,
				Price:    lvl.Price,
				Quantity: q,
			})
			consumed = consumed.Add(legNotional)
			remaining -= q
		}
		if remaining == 0 {
			break
		}
	}

	if remaining > 0 {
		if err := e.book.AddMaker(symbol, outcome, model.SideBid, price, user, remaining); err != nil {
			return OrderResult{}, err
		}
	}

	// The full notional was reserved up front but fills executed at maker
	// prices; release everything not consumed and not backing the residual.
	refund := notional.Sub(consumed).Sub(price.Mul(decimal.NewFromInt(remaining)))
	if refund.IsPositive() {
		if err := e.cash.Unlock(user, refund); err != nil {
			return OrderResult{}, err
		}
	}

	sweepFills := e.sweepLocked(symbol)
	fills = append(fills, sweepFills...)

	// The sweep may have consumed part or all of the residual bid.
	stillResting := min64(remaining, e.book.UserQty(symbol, outcome, model.SideBid, price, user))
	res := OrderResult{
		Symbol:    symbol,
		Outcome:   outcome,
		Price:     price,
		Requested: qty,
		Matched:   qty - stillResting,
		Remaining: stillResting,
		Fills:     fills,
	}
	switch {
	case stillResting == 0:
		res.Status = StatusFullyMatched
	case stillResting < qty:
		res.Status = StatusPartiallyMatched
	default:
		res.Status = StatusPending
	}

	e.emit(events.OrderPlaced("buy", user, symbol, qty, price, outcome))
	slog.Info("buy placed",
		"user", user, "symbol", symbol, "outcome", outcome,
		"qty", qty, "price", price.String(), "status", res.Status,
		"fills", len(fills),
	)
	return res, nil
}

// Sell rests the offered inventory as an ask at the limit price. Sells have
// no taker pass: they are consumed by arriving buys at the level or left
// resting. The book-sweep still runs, since the book may hold a crossing
// pair of bids from earlier placements.
func (e *Exchange) Sell(user, symbol string, qty int64, price decimal.Decimal, outcome model.Outcome) (OrderResult, error) {
	if err := validateOrder(user, symbol, qty, price, outcome); err != nil {
		return OrderResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.book.HasSymbol(symbol) {
		return OrderResult{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	if err := e.inv.LockQty(user, symbol, outcome, qty); err != nil {
		return OrderResult{}, err
	}
	if err := e.book.AddMaker(symbol, outcome, model.SideAsk, price, user, qty); err != nil {
		return OrderResult{}, err
	}

	fills := e.sweepLocked(symbol)

	res := OrderResult{
		Status:    StatusPending,
		Symbol:    symbol,
		Outcome:   outcome,
		Price:     price,
		Requested: qty,
		Matched:   0,
		Remaining: qty,
		Fills:     fills,
	}

	e.emit(events.OrderPlaced("sell", user, symbol, qty, price, outcome))
	slog.Info("sell placed",
		"user", user, "symbol", symbol, "outcome", outcome,
		"qty", qty, "price", price.String(),
	)
	return res, nil
}

// Cancel removes up to qty of the user's resting quantity at (symbol,
// outcome, price) and releases the backing reservation: cash for a bid,
// inventory for an ask. Bids are tried first; the ask entry is the
// fallback. When the ledger holds less than the canceled reservation the
// unlock clamps and the result is flagged.
func (e *Exchange) Cancel(user, symbol string, qty int64, price decimal.Decimal, outcome model.Outcome) (CancelResult, error) {
	if err := validateOrder(user, symbol, qty, price, outcome); err != nil {
		return CancelResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.book.HasSymbol(symbol) {
		return CancelResult{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	side := model.SideBid
	owned := e.book.UserQty(symbol, outcome, model.SideBid, price, user)
	if owned == 0 {
		side = model.SideAsk
		owned = e.book.UserQty(symbol, outcome, model.SideAsk, price, user)
	}
	if owned == 0 {
		return CancelResult{}, fmt.Errorf("%w: %s %s @ %s for %s", ErrOrderNotFound, symbol, outcome, price, user)
	}

	q := min64(qty, owned)
	if err := e.book.ReduceMaker(symbol, outcome, side, price, user, q); err != nil {
		return CancelResult{}, err
	}

	var clamped bool
	if side == model.SideBid {
		_, clamped = e.cash.UnlockClamped(user, price.Mul(decimal.NewFromInt(q)))
	} else {
		_, clamped = e.inv.UnlockQtyClamped(user, symbol, outcome, q)
	}
	if clamped {
		slog.Warn("cancel unlock clamped: book and ledger disagree",
			"user", user, "symbol", symbol, "outcome", outcome,
			"price", price.String(), "qty", q, "side", side,
		)
	}

	e.emit(events.OrderCanceled(user, symbol, q, price, outcome))
	slog.Info("order canceled",
		"user", user, "symbol", symbol, "outcome", outcome,
		"price", price.String(), "qty", q, "side", side,
	)
	return CancelResult{
		Symbol:   symbol,
		Outcome:  outcome,
		Price:    price,
		Canceled: q,
		Side:     side,
		Clamped:  clamped,
	}, nil
}

// Mint synthesizes qty matched YES/NO pairs for the user at the given unit
// cost. The cash is debited from free and leaves the ledger entirely; both
// outcomes are credited symmetrically.
func (e *Exchange) Mint(user, symbol string, qty int64, price decimal.Decimal) (MintResult, error) {
	if err := validateOrder(user, symbol, qty, price, model.OutcomeYes); err != nil {
		return MintResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.book.HasSymbol(symbol) {
		return MintResult{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	cost := price.Mul(decimal.NewFromInt(qty))
	if err := e.cash.ConsumeFree(user, cost); err != nil {
		return MintResult{}, err
	}
	if err := e.inv.Mint(user, symbol, qty); err != nil {
		return MintResult{}, err
	}

	b, _ := e.cash.Balance(user)
	e.emit(events.TokensMinted(user, symbol, qty, price))
	slog.Info("tokens minted",
		"user", user, "symbol", symbol, "qty", qty,
		"price", price.String(), "cost", cost.String(),
	)
	return MintResult{
		Symbol:        symbol,
		Quantity:      qty,
		Cost:          cost,
		RemainingCash: b.Free,
		Fills: []model.Fill{{
			Symbol:   symbol,
			Outcome:  model.OutcomeYes,
			Kind:     model.FillMint,
			Buyer:    user,
			Price:    price,
			Quantity: qty,
		}},
	}, nil
}

// --- Read-only snapshots ---

// CashBalance returns one user's balance. Unknown users fail with
// ErrUserNotFound; only write paths auto-create.
func (e *Exchange) CashBalance(user string) (model.CashBalance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.cash.Balance(user)
	if !ok {
		return model.CashBalance{}, fmt.Errorf("%w: %s", ErrUserNotFound, user)
	}
	return b, nil
}

// CashSnapshot returns every user's balance.
func (e *Exchange) CashSnapshot() map[string]model.CashBalance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash.Snapshot()
}

// UserInventory returns one user's positions keyed by symbol. Unknown users
// fail with ErrUserNotFound.
func (e *Exchange) UserInventory(user string) (map[string]model.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cash.Exists(user) && e.inv.UserPositions(user) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, user)
	}
	positions := e.inv.UserPositions(user)
	if positions == nil {
		positions = map[string]model.Position{}
	}
	return positions, nil
}

// InventorySnapshot returns every position, keyed user → symbol.
func (e *Exchange) InventorySnapshot() map[string]map[string]model.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inv.Snapshot()
}

// ViewBook returns a snapshot of one symbol's book.
func (e *Exchange) ViewBook(symbol string) (model.SymbolBookView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	view, ok := e.book.SnapshotSymbol(symbol)
	if !ok {
		return model.SymbolBookView{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return view, nil
}

// ViewBooks returns a snapshot of every symbol's book.
func (e *Exchange) ViewBooks() map[string]model.SymbolBookView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Snapshot()
}

// Symbols returns all registered symbols, sorted.
func (e *Exchange) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Symbols()
}

// TotalCash sums free+locked cash across all users.
func (e *Exchange) TotalCash() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash.TotalSupply()
}

// TokenSupply sums free+locked tokens of the outcome across all holders of
// the symbol.
func (e *Exchange) TokenSupply(symbol string, outcome model.Outcome) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inv.TotalSupply(symbol, outcome)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
