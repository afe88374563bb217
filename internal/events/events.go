// Package events defines the exchange's outbound event records and the
// bounded queue that carries them from the engine to listeners. Delivery is
// best-effort: the ledgers are the source of truth, events are
// observability.
package events

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/aaryan182/probo/internal/model"
)

// Event types emitted on the outbound channel.
const (
	TypeDataReset      = "dataReset"
	TypeUserCreated    = "userCreated"
	TypeSymbolCreated  = "symbolCreated"
	TypeBalanceUpdated = "balanceUpdated"
	TypeOrderPlaced    = "orderPlaced"
	TypeOrderCanceled  = "orderCanceled"
	TypeTokensMinted   = "tokensMinted"
)

// Balance is the cash snapshot attached to balanceUpdated events. Amounts
// serialize as strings to preserve decimal precision.
type Balance struct {
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// Event is a value-typed record of one state change. Numeric fields
// serialize as strings.
type Event struct {
	Type        string   `json:"event"`
	UserID      string   `json:"userId,omitempty"`
	SymbolName  string   `json:"symbolName,omitempty"`
	Balance     *Balance `json:"balance,omitempty"`
	OrderType   string   `json:"type,omitempty"` // "buy" or "sell"
	StockSymbol string   `json:"stockSymbol,omitempty"`
	Quantity    string   `json:"quantity,omitempty"`
	Price       string   `json:"price,omitempty"`
	StockType   string   `json:"stockType,omitempty"` // "yes" or "no"
}

// DataReset builds a dataReset event.
func DataReset() Event {
	return Event{Type: TypeDataReset}
}

// UserCreated builds a userCreated event.
func UserCreated(userID string) Event {
	return Event{Type: TypeUserCreated, UserID: userID}
}

// SymbolCreated builds a symbolCreated event.
func SymbolCreated(symbol string) Event {
	return Event{Type: TypeSymbolCreated, SymbolName: symbol}
}

// BalanceUpdated builds a balanceUpdated event from a cash balance.
func BalanceUpdated(userID string, b model.CashBalance) Event {
	return Event{
		Type:   TypeBalanceUpdated,
		UserID: userID,
		Balance: &Balance{
			Free:   b.Free.String(),
			Locked: b.Locked.String(),
		},
	}
}

// OrderPlaced builds an orderPlaced event.
func OrderPlaced(orderType, userID, symbol string, qty int64, price decimal.Decimal, outcome model.Outcome) Event {
	return Event{
		Type:        TypeOrderPlaced,
		OrderType:   orderType,
		UserID:      userID,
		StockSymbol: symbol,
		Quantity:    strconv.FormatInt(qty, 10),
		Price:       price.String(),
		StockType:   string(outcome),
	}
}

// OrderCanceled builds an orderCanceled event.
func OrderCanceled(userID, symbol string, qty int64, price decimal.Decimal, outcome model.Outcome) Event {
	return Event{
		Type:        TypeOrderCanceled,
		UserID:      userID,
		StockSymbol: symbol,
		Quantity:    strconv.FormatInt(qty, 10),
		Price:       price.String(),
		StockType:   string(outcome),
	}
}

// TokensMinted builds a tokensMinted event.
func TokensMinted(userID, symbol string, qty int64, price decimal.Decimal) Event {
	return Event{
		Type:        TypeTokensMinted,
		UserID:      userID,
		StockSymbol: symbol,
		Quantity:    strconv.FormatInt(qty, 10),
		Price:       price.String(),
	}
}
