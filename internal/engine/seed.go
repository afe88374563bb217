package engine

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/aaryan182/probo/internal/events"
	"github.com/aaryan182/probo/internal/model"
)

// SeedSymbol is the fixture market reinstated by Reset.
const SeedSymbol = "BTC_USDT_10_Oct_2024_9_30"

// Reset clears every register and reinstates the deterministic fixture:
// three funded users, one symbol, YES bids at 9.5 and 8.5, a NO bid at
// 10.5, and starting positions. The 10.5 NO level sits outside the
// tradable price range; it rests untouched until the next reset, since
// cancel rejects its price as out of range. The fixture's
// locked-cash totals do not reconcile with the book; the clamping policy
// on cancel and sweep covers that.
func (e *Exchange) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cash.Reset()
	e.inv.Reset()
	e.book.Reset()

	seedCash := func(user string, free, locked int64) {
		b := e.cash.Ensure(user)
		b.Free = decimal.NewFromInt(free)
		b.Locked = decimal.NewFromInt(locked)
	}
	seedCash("user1", 10000, 0)
	seedCash("user2", 20000, 5000)
	seedCash("user3", 15000, 2000)

	seedHolding := func(user string, outcome model.Outcome, free, locked int64) {
		h := e.inv.Ensure(user, SeedSymbol).Outcome(outcome)
		h.Free = free
		h.Locked = locked
	}
	seedHolding("user1", model.OutcomeYes, 100, 0)
	seedHolding("user1", model.OutcomeNo, 50, 0)
	seedHolding("user2", model.OutcomeYes, 300, 100)
	seedHolding("user2", model.OutcomeNo, 100, 0)
	seedHolding("user3", model.OutcomeYes, 150, 0)
	seedHolding("user3", model.OutcomeNo, 200, 50)

	_ = e.book.CreateSymbol(SeedSymbol)

	addBid := func(outcome model.Outcome, price string, user string, qty int64) {
		p, _ := decimal.NewFromString(price)
		_ = e.book.AddMaker(SeedSymbol, outcome, model.SideBid, p, user, qty)
	}
	addBid(model.OutcomeYes, "9.5", "user1", 200)
	addBid(model.OutcomeYes, "9.5", "user2", 1000)
	addBid(model.OutcomeYes, "8.5", "user1", 300)
	addBid(model.OutcomeYes, "8.5", "user2", 300)
	addBid(model.OutcomeYes, "8.5", "user3", 600)
	// NO bid, above the tradable range.
	addBid(model.OutcomeNo, "10.5", "user2", 500)
	addBid(model.OutcomeNo, "10.5", "user3", 300)

	e.emit(events.DataReset())
	slog.Info("data reset", "symbol", SeedSymbol)
}
