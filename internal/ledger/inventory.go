package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aaryan182/probo/internal/model"
)

var (
	// ErrInsufficientInventory is returned when a lock exceeds the user's
	// free token quantity.
	ErrInsufficientInventory = errors.New("ledger: insufficient inventory")

	// ErrNonPositiveQuantity is returned for zero or negative quantities.
	ErrNonPositiveQuantity = errors.New("ledger: quantity must be positive")
)

// Inventory keeps per-user, per-symbol positions: a free/locked token count
// for each outcome.
type Inventory struct {
	positions map[string]map[string]*model.Position // user → symbol → position
}

// NewInventory creates an empty inventory ledger.
func NewInventory() *Inventory {
	return &Inventory{positions: make(map[string]map[string]*model.Position)}
}

// Ensure idempotently creates an empty position for (user, symbol).
func (inv *Inventory) Ensure(user, symbol string) *model.Position {
	bySymbol, ok := inv.positions[user]
	if !ok {
		bySymbol = make(map[string]*model.Position)
		inv.positions[user] = bySymbol
	}
	p, ok := bySymbol[symbol]
	if !ok {
		p = &model.Position{}
		bySymbol[symbol] = p
	}
	return p
}

// LockQty moves qty tokens of the outcome from free to locked.
func (inv *Inventory) LockQty(user, symbol string, outcome model.Outcome, qty int64) error {
	if qty <= 0 {
		return ErrNonPositiveQuantity
	}
	h := inv.Ensure(user, symbol).Outcome(outcome)
	if h.Free < qty {
		return fmt.Errorf("%w: need %d %s tokens, free %d", ErrInsufficientInventory, qty, outcome, h.Free)
	}
	h.Free -= qty
	h.Locked += qty
	return nil
}

// UnlockQty moves qty tokens from locked back to free.
func (inv *Inventory) UnlockQty(user, symbol string, outcome model.Outcome, qty int64) error {
	h := inv.Ensure(user, symbol).Outcome(outcome)
	if h.Locked < qty {
		return fmt.Errorf("%w: unlock %d, locked %d", ErrInconsistency, qty, h.Locked)
	}
	h.Locked -= qty
	h.Free += qty
	return nil
}

// UnlockQtyClamped unlocks up to qty tokens, clamping at the locked count.
// Returns the quantity actually unlocked and whether clamping occurred.
func (inv *Inventory) UnlockQtyClamped(user, symbol string, outcome model.Outcome, qty int64) (int64, bool) {
	h := inv.Ensure(user, symbol).Outcome(outcome)
	clamped := false
	if h.Locked < qty {
		qty = h.Locked
		clamped = true
	}
	h.Locked -= qty
	h.Free += qty
	return qty, clamped
}

// ConsumeLockedQty removes qty tokens from the locked count entirely; the
// tokens leave this user, settling a trade.
func (inv *Inventory) ConsumeLockedQty(user, symbol string, outcome model.Outcome, qty int64) error {
	h := inv.Ensure(user, symbol).Outcome(outcome)
	if h.Locked < qty {
		return fmt.Errorf("%w: consume %d, locked %d", ErrInconsistency, qty, h.Locked)
	}
	h.Locked -= qty
	return nil
}

// CreditFreeQty adds qty tokens of the outcome to the user's free holdings.
func (inv *Inventory) CreditFreeQty(user, symbol string, outcome model.Outcome, qty int64) {
	h := inv.Ensure(user, symbol).Outcome(outcome)
	h.Free += qty
}

// Mint credits qty tokens of both outcomes to the user, creating the
// position on demand. Minting is always symmetric: the same quantity of
// YES and NO.
func (inv *Inventory) Mint(user, symbol string, qty int64) error {
	if qty <= 0 {
		return ErrNonPositiveQuantity
	}
	p := inv.Ensure(user, symbol)
	p.Yes.Free += qty
	p.No.Free += qty
	return nil
}

// Position returns a copy of the user's position in the symbol, or false if
// none exists.
func (inv *Inventory) Position(user, symbol string) (model.Position, bool) {
	bySymbol, ok := inv.positions[user]
	if !ok {
		return model.Position{}, false
	}
	p, ok := bySymbol[symbol]
	if !ok {
		return model.Position{}, false
	}
	return *p, true
}

// UserPositions returns copies of all positions held by the user, keyed by
// symbol.
func (inv *Inventory) UserPositions(user string) map[string]model.Position {
	bySymbol, ok := inv.positions[user]
	if !ok {
		return nil
	}
	out := make(map[string]model.Position, len(bySymbol))
	for symbol, p := range bySymbol {
		out[symbol] = *p
	}
	return out
}

// Snapshot returns a copy of every position, keyed user → symbol.
func (inv *Inventory) Snapshot() map[string]map[string]model.Position {
	out := make(map[string]map[string]model.Position, len(inv.positions))
	for user, bySymbol := range inv.positions {
		m := make(map[string]model.Position, len(bySymbol))
		for symbol, p := range bySymbol {
			m[symbol] = *p
		}
		out[user] = m
	}
	return out
}

// Users returns all user IDs holding any position, sorted.
func (inv *Inventory) Users() []string {
	users := make([]string, 0, len(inv.positions))
	for u := range inv.positions {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// TotalSupply sums free+locked tokens of the outcome across all users of
// the symbol. Used by conservation checks in tests.
func (inv *Inventory) TotalSupply(symbol string, outcome model.Outcome) int64 {
	var total int64
	for _, bySymbol := range inv.positions {
		if p, ok := bySymbol[symbol]; ok {
			h := p.Outcome(outcome)
			total += h.Free + h.Locked
		}
	}
	return total
}

// Reset drops every position.
func (inv *Inventory) Reset() {
	inv.positions = make(map[string]map[string]*model.Position)
}
