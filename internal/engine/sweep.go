package engine

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/aaryan182/probo/internal/book"
	"github.com/aaryan182/probo/internal/model"
)

var two = decimal.NewFromInt(2)

// sweepLocked pairs YES bids with NO bids on the symbol's bid sides. A YES
// bid at py and a NO bid at pn with py >= pn settle at
// the banker-rounded midpoint (py+pn)/2: each buyer's full locked notional
// is consumed and one freshly minted token of their outcome is delivered.
// No resting ask or locked inventory is touched: both participants are
// buyers and the pair is created from their combined cash.
//
// Requires the engine lock.
func (e *Exchange) sweepLocked(symbol string) []model.Fill {
	var fills []model.Fill

	for {
		y := bestInRange(e.book.Levels(symbol, model.OutcomeYes, model.SideBid, false))
		n := bestInRange(e.book.Levels(symbol, model.OutcomeNo, model.SideBid, true))
		if y == nil || n == nil {
			break
		}
		// The sorted heads cannot improve on later iterations: once the
		// highest YES bid pays less than the lowest NO bid, stop.
		if y.Price.LessThan(n.Price) {
			break
		}

		mid := y.Price.Add(n.Price).Div(two).RoundBank(2)
		k := min64(y.Total, n.Total)

		for k > 0 {
			ym, ok := y.First()
			if !ok {
				break
			}
			nm, ok := n.First()
			if !ok {
				break
			}
			q := min64(min64(ym.Qty, nm.Qty), k)
			qd := decimal.NewFromInt(q)

			if _, clamped := e.cash.ConsumeLockedClamped(ym.User, y.Price.Mul(qd)); clamped {
				slog.Warn("sweep consume clamped: book and ledger disagree",
					"user", ym.User, "symbol", symbol, "outcome", model.OutcomeYes,
					"price", y.Price.String(), "qty", q,
				)
			}
			if _, clamped := e.cash.ConsumeLockedClamped(nm.User, n.Price.Mul(qd)); clamped {
				slog.Warn("sweep consume clamped: book and ledger disagree",
					"user", nm.User, "symbol", symbol, "outcome", model.OutcomeNo,
					"price", n.Price.String(), "qty", q,
				)
			}

			e.inv.CreditFreeQty(ym.User, symbol, model.OutcomeYes, q)
			e.inv.CreditFreeQty(nm.User, symbol, model.OutcomeNo, q)

			// Reduce through the book so emptied levels are removed.
			_ = e.book.ReduceMaker(symbol, model.OutcomeYes, model.SideBid, y.Price, ym.User, q)
			_ = e.book.ReduceMaker(symbol, model.OutcomeNo, model.SideBid, n.Price, nm.User, q)

			fills = append(fills,
				model.Fill{
					Symbol: symbol, Outcome: model.OutcomeYes, Kind: model.FillSweep,
					Buyer: ym.User, Price: mid, Quantity: q,
				},
				model.Fill{
					Symbol: symbol, Outcome: model.OutcomeNo, Kind: model.FillSweep,
					Buyer: nm.User, Price: mid, Quantity: q,
				},
			)
			k -= q
		}

		slog.Info("book sweep matched",
			"symbol", symbol,
			"yes_price", y.Price.String(), "no_price", n.Price.String(),
			"midpoint", mid.String(),
		)
	}

	return fills
}

// bestInRange returns the first level whose price lies within [MinPrice,
// MaxPrice]. Seed fixtures may carry out-of-range levels; the sweep never
// crosses them.
func bestInRange(levels []*book.Level) *book.Level {
	for _, lvl := range levels {
		if lvl.Price.LessThan(model.MinPrice) || lvl.Price.GreaterThan(model.MaxPrice) {
			continue
		}
		if lvl.Total > 0 {
			return lvl
		}
	}
	return nil
}
