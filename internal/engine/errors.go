package engine

import (
	"errors"

	"github.com/aaryan182/probo/internal/book"
	"github.com/aaryan182/probo/internal/ledger"
)

var (
	// ErrInvalidInput covers malformed requests: non-positive quantity,
	// price outside [1, 10], unknown outcome.
	ErrInvalidInput = errors.New("engine: invalid input")

	// ErrUserNotFound is returned by explicit balance queries for unknown
	// users. Write paths auto-create users instead.
	ErrUserNotFound = errors.New("engine: user not found")

	// ErrSymbolNotFound is returned when trading against a symbol that has
	// no book.
	ErrSymbolNotFound = errors.New("engine: symbol not found")

	// ErrSymbolExists is returned on duplicate symbol creation.
	ErrSymbolExists = errors.New("engine: symbol already exists")

	// ErrOrderNotFound is returned when a cancel targets a (symbol,
	// outcome, price, user) key with no resting quantity.
	ErrOrderNotFound = errors.New("engine: order not found")
)

// Kind is the error taxonomy surfaced to callers; the API layer maps kinds
// to HTTP statuses.
type Kind string

const (
	KindInvalidInput          Kind = "INVALID_INPUT"
	KindUserNotFound          Kind = "USER_NOT_FOUND"
	KindSymbolNotFound        Kind = "SYMBOL_NOT_FOUND"
	KindSymbolExists          Kind = "SYMBOL_EXISTS"
	KindInsufficientCash      Kind = "INSUFFICIENT_CASH"
	KindInsufficientInventory Kind = "INSUFFICIENT_INVENTORY"
	KindOrderNotFound         Kind = "ORDER_NOT_FOUND"
	KindLedgerInconsistency   Kind = "LEDGER_INCONSISTENCY"
	KindInternal              Kind = "INTERNAL"
)

// Classify maps an error returned by the engine to its taxonomy kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ledger.ErrNonPositiveAmount),
		errors.Is(err, ledger.ErrNonPositiveQuantity):
		return KindInvalidInput
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrSymbolNotFound), errors.Is(err, book.ErrSymbolNotFound):
		return KindSymbolNotFound
	case errors.Is(err, ErrSymbolExists), errors.Is(err, book.ErrSymbolExists):
		return KindSymbolExists
	case errors.Is(err, ledger.ErrInsufficientCash):
		return KindInsufficientCash
	case errors.Is(err, ledger.ErrInsufficientInventory):
		return KindInsufficientInventory
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, book.ErrNoSuchMaker):
		return KindOrderNotFound
	case errors.Is(err, ledger.ErrInconsistency):
		return KindLedgerInconsistency
	default:
		return KindInternal
	}
}
