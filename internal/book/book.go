// Package book implements the per-symbol order book: for each outcome a bid
// side and an ask side, each a set of price levels aggregating resting
// quantity per maker. Maker iteration within a level is stable insertion
// order, so repeated runs on identical input produce identical fill
// sequences.
//
// The book is pure data with no internal synchronization; every mutation
// happens under the engine lock.
package book

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aaryan182/probo/internal/model"
)

var (
	// ErrSymbolExists is returned when creating a symbol that already has
	// a book.
	ErrSymbolExists = errors.New("book: symbol already exists")

	// ErrSymbolNotFound is returned when operating on a symbol without a
	// book entry.
	ErrSymbolNotFound = errors.New("book: symbol not found")

	// ErrNoSuchMaker is returned when reducing a maker entry that does not
	// exist at the level.
	ErrNoSuchMaker = errors.New("book: no resting quantity for maker at level")
)

// Maker is one resting entry within a price level.
type Maker struct {
	User string
	Qty  int64
}

// Level aggregates the resting quantity at one price. Total always equals
// the sum of the maker entries; a level with Total == 0 is removed from its
// side.
type Level struct {
	Price  decimal.Decimal
	Total  int64
	makers []Maker // insertion order, oldest first
}

// First returns the oldest maker at the level.
func (l *Level) First() (Maker, bool) {
	if len(l.makers) == 0 {
		return Maker{}, false
	}
	return l.makers[0], true
}

// Makers returns a copy of the maker entries in insertion order.
func (l *Level) Makers() []Maker {
	out := make([]Maker, len(l.makers))
	copy(out, l.makers)
	return out
}

// Qty returns the user's resting quantity at this level, 0 if absent.
func (l *Level) Qty(user string) int64 {
	for _, m := range l.makers {
		if m.User == user {
			return m.Qty
		}
	}
	return 0
}

func (l *Level) add(user string, qty int64) {
	l.Total += qty
	for i := range l.makers {
		if l.makers[i].User == user {
			l.makers[i].Qty += qty
			return
		}
	}
	l.makers = append(l.makers, Maker{User: user, Qty: qty})
}

func (l *Level) reduce(user string, qty int64) error {
	for i := range l.makers {
		if l.makers[i].User != user {
			continue
		}
		if l.makers[i].Qty < qty {
			return fmt.Errorf("%w: reduce %d, resting %d", ErrNoSuchMaker, qty, l.makers[i].Qty)
		}
		l.makers[i].Qty -= qty
		l.Total -= qty
		if l.makers[i].Qty == 0 {
			l.makers = append(l.makers[:i], l.makers[i+1:]...)
		}
		return nil
	}
	return ErrNoSuchMaker
}

// sideBook maps canonical price strings to levels. Iteration order is
// undefined; callers sort at read time via Levels.
type sideBook map[string]*Level

// outcomeBook is the two sides of one outcome's book.
type outcomeBook struct {
	bids sideBook
	asks sideBook
}

func newOutcomeBook() *outcomeBook {
	return &outcomeBook{bids: make(sideBook), asks: make(sideBook)}
}

func (ob *outcomeBook) side(s model.Side) sideBook {
	if s == model.SideBid {
		return ob.bids
	}
	return ob.asks
}

// symbolBook holds both outcome books of one symbol.
type symbolBook struct {
	yes *outcomeBook
	no  *outcomeBook
}

func (sb *symbolBook) outcome(o model.Outcome) *outcomeBook {
	if o == model.OutcomeYes {
		return sb.yes
	}
	return sb.no
}

// Book is the order book across all symbols.
type Book struct {
	symbols map[string]*symbolBook
}

// New creates an empty book.
func New() *Book {
	return &Book{symbols: make(map[string]*symbolBook)}
}

// CreateSymbol registers an empty book for the symbol. A symbol exists iff
// it has a book entry.
func (b *Book) CreateSymbol(symbol string) error {
	if _, ok := b.symbols[symbol]; ok {
		return ErrSymbolExists
	}
	b.symbols[symbol] = &symbolBook{yes: newOutcomeBook(), no: newOutcomeBook()}
	return nil
}

// HasSymbol reports whether the symbol has a book entry.
func (b *Book) HasSymbol(symbol string) bool {
	_, ok := b.symbols[symbol]
	return ok
}

// Symbols returns all registered symbols, sorted.
func (b *Book) Symbols() []string {
	out := make([]string, 0, len(b.symbols))
	for s := range b.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AddMaker grows the level at (symbol, outcome, side, price) by qty for the
// user, creating the level on demand.
func (b *Book) AddMaker(symbol string, outcome model.Outcome, side model.Side, price decimal.Decimal, user string, qty int64) error {
	sb, ok := b.symbols[symbol]
	if !ok {
		return ErrSymbolNotFound
	}
	sd := sb.outcome(outcome).side(side)
	key := price.String()
	lvl, ok := sd[key]
	if !ok {
		lvl = &Level{Price: price}
		sd[key] = lvl
	}
	lvl.add(user, qty)
	return nil
}

// ReduceMaker shrinks the user's entry at the level by qty, removing the
// entry at zero and the level when its total reaches zero.
func (b *Book) ReduceMaker(symbol string, outcome model.Outcome, side model.Side, price decimal.Decimal, user string, qty int64) error {
	sb, ok := b.symbols[symbol]
	if !ok {
		return ErrSymbolNotFound
	}
	sd := sb.outcome(outcome).side(side)
	key := price.String()
	lvl, ok := sd[key]
	if !ok {
		return ErrNoSuchMaker
	}
	if err := lvl.reduce(user, qty); err != nil {
		return err
	}
	if lvl.Total == 0 {
		delete(sd, key)
	}
	return nil
}

// UserQty returns the user's resting quantity at (symbol, outcome, side,
// price), 0 if absent.
func (b *Book) UserQty(symbol string, outcome model.Outcome, side model.Side, price decimal.Decimal, user string) int64 {
	sb, ok := b.symbols[symbol]
	if !ok {
		return 0
	}
	lvl, ok := sb.outcome(outcome).side(side)[price.String()]
	if !ok {
		return 0
	}
	return lvl.Qty(user)
}

// Levels returns the side's levels sorted by price, ascending or
// descending. The returned level pointers are live: reducing makers through
// the book mutates them, and a level whose Total reaches zero has been
// removed from the side even though the slice still references it.
func (b *Book) Levels(symbol string, outcome model.Outcome, side model.Side, ascending bool) []*Level {
	sb, ok := b.symbols[symbol]
	if !ok {
		return nil
	}
	sd := sb.outcome(outcome).side(side)
	levels := make([]*Level, 0, len(sd))
	for _, lvl := range sd {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool {
		if ascending {
			return levels[i].Price.LessThan(levels[j].Price)
		}
		return levels[i].Price.GreaterThan(levels[j].Price)
	})
	return levels
}

// SnapshotSymbol returns a point-in-time view of one symbol's book.
func (b *Book) SnapshotSymbol(symbol string) (model.SymbolBookView, bool) {
	if _, ok := b.symbols[symbol]; !ok {
		return model.SymbolBookView{}, false
	}
	return model.SymbolBookView{
		Yes: b.snapshotOutcome(symbol, model.OutcomeYes),
		No:  b.snapshotOutcome(symbol, model.OutcomeNo),
	}, true
}

// Snapshot returns a point-in-time view of every symbol's book.
func (b *Book) Snapshot() map[string]model.SymbolBookView {
	out := make(map[string]model.SymbolBookView, len(b.symbols))
	for symbol := range b.symbols {
		view, _ := b.SnapshotSymbol(symbol)
		out[symbol] = view
	}
	return out
}

func (b *Book) snapshotOutcome(symbol string, outcome model.Outcome) model.OutcomeBookView {
	return model.OutcomeBookView{
		Bids: snapshotLevels(b.Levels(symbol, outcome, model.SideBid, false)),
		Asks: snapshotLevels(b.Levels(symbol, outcome, model.SideAsk, true)),
	}
}

func snapshotLevels(levels []*Level) []model.LevelView {
	out := make([]model.LevelView, 0, len(levels))
	for _, lvl := range levels {
		orders := make(map[string]int64, len(lvl.makers))
		for _, m := range lvl.makers {
			orders[m.User] = m.Qty
		}
		out = append(out, model.LevelView{
			Price:  lvl.Price.String(),
			Total:  lvl.Total,
			Orders: orders,
		})
	}
	return out
}

// Reset drops every symbol and level.
func (b *Book) Reset() {
	b.symbols = make(map[string]*symbolBook)
}
