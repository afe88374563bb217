// Package model defines the core domain types shared across the exchange.
// All monetary values use shopspring/decimal — never float64 for money.
// Token quantities are whole int64 units.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is one of the two complementary outcome tokens of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Complement returns the other outcome of the pair.
func (o Outcome) Complement() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Side distinguishes the two halves of an outcome book: bids are resting
// buys backed by locked cash, asks are resting sells backed by locked
// inventory.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

var (
	// MinPrice and MaxPrice bound every order price, inclusive.
	MinPrice = decimal.NewFromInt(1)
	MaxPrice = decimal.NewFromInt(10)

	// FaceValue is the combined payoff of a matched YES+NO pair. A YES bid
	// at py and a NO bid at pn jointly cover a pair when py+pn >= FaceValue.
	FaceValue = decimal.NewFromInt(10)
)

// ParsePrice canonicalizes a decimal literal into an order price.
// Any representation that parses to a value in [MinPrice, MaxPrice] is
// accepted; equal values always canonicalize identically.
func ParsePrice(s string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if p.LessThan(MinPrice) || p.GreaterThan(MaxPrice) {
		return decimal.Decimal{}, fmt.Errorf("price %s outside [%s, %s]", p, MinPrice, MaxPrice)
	}
	return p, nil
}

// CashBalance holds a user's cash split into spendable and order-reserved
// portions. Free + Locked is conserved by every operation except onramp,
// mint, and trade settlement.
type CashBalance struct {
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// Holding is a per-outcome token balance.
type Holding struct {
	Free   int64 `json:"quantity"`
	Locked int64 `json:"locked"`
}

// Position is a user's holdings in one symbol, one Holding per outcome.
type Position struct {
	Yes Holding `json:"yes"`
	No  Holding `json:"no"`
}

// Outcome returns a pointer to the holding for the given outcome.
func (p *Position) Outcome(o Outcome) *Holding {
	if o == OutcomeYes {
		return &p.Yes
	}
	return &p.No
}

// FillKind classifies how a fill was produced.
type FillKind string

const (
	// FillTaker is a taker buy consuming a resting sell of the same outcome.
	FillTaker FillKind = "taker"
	// FillSweep is a book-sweep pairing of a YES bid with a NO bid; the
	// delivered tokens are minted, there is no seller.
	FillSweep FillKind = "sweep"
	// FillMint is a direct pair mint funded from free cash.
	FillMint FillKind = "mint"
)

// Fill records one executed pairwise match. For sweep fills Seller is empty
// and Price is the midpoint settlement price, not the amount either buyer
// had locked.
type Fill struct {
	Symbol   string          `json:"symbol"`
	Outcome  Outcome         `json:"outcome"`
	Kind     FillKind        `json:"kind"`
	Buyer    string          `json:"buyer"`
	Seller   string          `json:"seller,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// Trade is an immutable journal record of a fill. Once written these are
// never modified or deleted.
type Trade struct {
	ID        string          `json:"id" db:"id"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Outcome   Outcome         `json:"outcome" db:"outcome"`
	Kind      FillKind        `json:"kind" db:"kind"`
	Buyer     string          `json:"buyer" db:"buyer"`
	Seller    string          `json:"seller,omitempty" db:"seller"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int64           `json:"quantity" db:"quantity"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// LevelView is a read-only snapshot of one price level. Price serializes as
// a string to preserve decimal precision on the wire.
type LevelView struct {
	Price  string           `json:"price"`
	Total  int64            `json:"total"`
	Orders map[string]int64 `json:"orders"`
}

// OutcomeBookView is a snapshot of one outcome's book, both sides sorted:
// bids descending, asks ascending.
type OutcomeBookView struct {
	Bids []LevelView `json:"bids"`
	Asks []LevelView `json:"asks"`
}

// SymbolBookView is a snapshot of a symbol's full book.
type SymbolBookView struct {
	Yes OutcomeBookView `json:"yes"`
	No  OutcomeBookView `json:"no"`
}

// CashView is the wire form of a cash balance; amounts serialize as strings.
type CashView struct {
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// PositionView is the wire form of a position.
type PositionView struct {
	Yes Holding `json:"yes"`
	No  Holding `json:"no"`
}
