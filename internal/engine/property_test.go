package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/aaryan182/probo/internal/engine"
	"github.com/aaryan182/probo/internal/model"
)

const propSym = "DOGE_USDT_1_Jan_2025_0_0"

var propUsers = []string{"u1", "u2", "u3"}

// drawPrice draws a price with one fractional digit in [1.0, 10.0].
func drawPrice(t *rapid.T, label string) decimal.Decimal {
	tenths := rapid.Int64Range(10, 100).Draw(t, label)
	return decimal.New(tenths, -1)
}

// randomOps applies a random sequence of buys, sells, and cancels; errors
// (insufficient funds, missing orders) are expected and ignored.
func randomOps(t *rapid.T, ex *engine.Exchange) {
	nops := rapid.IntRange(1, 40).Draw(t, "nops")
	outcomes := []model.Outcome{model.OutcomeYes, model.OutcomeNo}

	for i := 0; i < nops; i++ {
		user := rapid.SampledFrom(propUsers).Draw(t, "user")
		outcome := rapid.SampledFrom(outcomes).Draw(t, "outcome")
		qty := rapid.Int64Range(1, 60).Draw(t, "qty")
		price := drawPrice(t, "price")

		switch rapid.IntRange(0, 2).Draw(t, "op") {
		case 0:
			ex.Buy(user, propSym, qty, price, outcome)
		case 1:
			ex.Sell(user, propSym, qty, price, outcome)
		case 2:
			ex.Cancel(user, propSym, qty, price, outcome)
		}
	}
}

// checkInvariants asserts the post-operation invariants that must hold
// after every top-level call.
func checkInvariants(t *rapid.T, ex *engine.Exchange) {
	// Non-negativity.
	for user, b := range ex.CashSnapshot() {
		if b.Free.IsNegative() || b.Locked.IsNegative() {
			t.Fatalf("negative cash for %s: (%s, %s)", user, b.Free, b.Locked)
		}
	}
	for user, bySymbol := range ex.InventorySnapshot() {
		for symbol, p := range bySymbol {
			for _, h := range []model.Holding{p.Yes, p.No} {
				if h.Free < 0 || h.Locked < 0 {
					t.Fatalf("negative holding for %s in %s: %+v", user, symbol, p)
				}
			}
		}
	}

	for symbol, view := range ex.ViewBooks() {
		for _, side := range [][]model.LevelView{view.Yes.Bids, view.Yes.Asks, view.No.Bids, view.No.Asks} {
			for _, lvl := range side {
				// Level aggregation: total equals the sum of maker entries.
				var sum int64
				for _, q := range lvl.Orders {
					sum += q
				}
				if sum != lvl.Total {
					t.Fatalf("%s level %s: total %d != maker sum %d", symbol, lvl.Price, lvl.Total, sum)
				}
				if lvl.Total <= 0 {
					t.Fatalf("%s level %s: empty level not removed", symbol, lvl.Price)
				}
				// Price bounds.
				p, err := decimal.NewFromString(lvl.Price)
				if err != nil {
					t.Fatalf("unparseable level price %q", lvl.Price)
				}
				if p.LessThan(model.MinPrice) || p.GreaterThan(model.MaxPrice) {
					t.Fatalf("%s level price %s out of range", symbol, lvl.Price)
				}
			}
		}

		// No crossing left: max YES bid strictly below min NO bid.
		if len(view.Yes.Bids) > 0 && len(view.No.Bids) > 0 {
			maxYes, _ := decimal.NewFromString(view.Yes.Bids[0].Price)
			minNo, _ := decimal.NewFromString(view.No.Bids[len(view.No.Bids)-1].Price)
			if !maxYes.LessThan(minNo) {
				t.Fatalf("%s book crossed: max yes bid %s >= min no bid %s", symbol, maxYes, minNo)
			}
		}
	}
}

func TestProperty_TradingNeverCreatesCash(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ex := engine.New(nil)
		if err := ex.CreateSymbol(propSym); err != nil {
			t.Fatalf("create symbol: %v", err)
		}
		for _, u := range propUsers {
			ex.Onramp(u, decimal.NewFromInt(100000))
			ex.Mint(u, propSym, 200, decimal.NewFromInt(3))
		}
		total0 := ex.TotalCash()

		randomOps(t, ex)

		// Taker trades move locked cash between users; the sweep burns the
		// joint notional into freshly minted pairs. Either way no cash can
		// appear after setup.
		total1 := ex.TotalCash()
		if total1.GreaterThan(total0) {
			t.Fatalf("cash created out of thin air: %s -> %s", total0, total1)
		}

		checkInvariants(t, ex)
	})
}

func TestProperty_TakerOnlyTradingConservesCash(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ex := engine.New(nil)
		if err := ex.CreateSymbol(propSym); err != nil {
			t.Fatalf("create symbol: %v", err)
		}
		for _, u := range propUsers {
			ex.Onramp(u, decimal.NewFromInt(100000))
			ex.Mint(u, propSym, 200, decimal.NewFromInt(3))
		}
		total0 := ex.TotalCash()

		// Restrict to one outcome's sells plus buys below every possible
		// NO bid: with no NO bids at all, the sweep never fires and cash
		// conservation is exact.
		nops := rapid.IntRange(1, 40).Draw(t, "nops")
		for i := 0; i < nops; i++ {
			user := rapid.SampledFrom(propUsers).Draw(t, "user")
			qty := rapid.Int64Range(1, 60).Draw(t, "qty")
			price := drawPrice(t, "price")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				ex.Buy(user, propSym, qty, price, model.OutcomeYes)
			case 1:
				ex.Sell(user, propSym, qty, price, model.OutcomeYes)
			case 2:
				ex.Cancel(user, propSym, qty, price, model.OutcomeYes)
			}
		}

		if !ex.TotalCash().Equal(total0) {
			t.Fatalf("cash not conserved under taker-only trading: %s -> %s", total0, ex.TotalCash())
		}
		checkInvariants(t, ex)
	})
}

func TestProperty_SupplySymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ex := engine.New(nil)
		if err := ex.CreateSymbol(propSym); err != nil {
			t.Fatalf("create symbol: %v", err)
		}
		for _, u := range propUsers {
			ex.Onramp(u, decimal.NewFromInt(100000))
			// Mints are symmetric by construction.
			ex.Mint(u, propSym, rapid.Int64Range(1, 100).Draw(t, "mintQty"), decimal.NewFromInt(2))
		}

		randomOps(t, ex)

		yes := ex.TokenSupply(propSym, model.OutcomeYes)
		no := ex.TokenSupply(propSym, model.OutcomeNo)
		if yes != no {
			t.Fatalf("supply asymmetry: yes %d no %d", yes, no)
		}
		checkInvariants(t, ex)
	})
}

func TestProperty_MintConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ex := engine.New(nil)
		if err := ex.CreateSymbol(propSym); err != nil {
			t.Fatalf("create symbol: %v", err)
		}
		ex.Onramp("u1", decimal.NewFromInt(100000))

		qty := rapid.Int64Range(1, 500).Draw(t, "qty")
		price := drawPrice(t, "price")

		cashBefore := ex.TotalCash()
		yesBefore := ex.TokenSupply(propSym, model.OutcomeYes)
		noBefore := ex.TokenSupply(propSym, model.OutcomeNo)

		if _, err := ex.Mint("u1", propSym, qty, price); err != nil {
			t.Fatalf("mint: %v", err)
		}

		wantCash := cashBefore.Sub(price.Mul(decimal.NewFromInt(qty)))
		if !ex.TotalCash().Equal(wantCash) {
			t.Fatalf("expected total cash %s, got %s", wantCash, ex.TotalCash())
		}
		if ex.TokenSupply(propSym, model.OutcomeYes) != yesBefore+qty {
			t.Fatalf("yes supply wrong after mint")
		}
		if ex.TokenSupply(propSym, model.OutcomeNo) != noBefore+qty {
			t.Fatalf("no supply wrong after mint")
		}
	})
}
