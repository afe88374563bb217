// Package symbol parses the conventional market ticker shape used across
// the exchange. Symbols are opaque identifiers (any non-empty string is a
// valid symbol), but tickers following the convention carry the market's
// pair and expiry, which the API surfaces as metadata.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// tickerRegex matches: {base}_{quote}_{DD}_{Mon}_{YYYY}_{H}_{M}
// Example: BTC_USDT_10_Oct_2024_9_30
var tickerRegex = regexp.MustCompile(
	`^([A-Z0-9]+)_([A-Z0-9]+)_(\d{1,2})_([A-Z][a-z]{2})_(\d{4})_(\d{1,2})_(\d{1,2})$`,
)

// ErrNotATicker is returned for symbols that do not follow the ticker
// convention. This is informational, never a rejection.
var ErrNotATicker = errors.New("symbol: not a conventional ticker")

// Ticker is a parsed conventional market symbol.
type Ticker struct {
	Symbol string    `json:"symbol"`
	Base   string    `json:"base"`
	Quote  string    `json:"quote"`
	Expiry time.Time `json:"expiry"`
}

// Parse extracts metadata from a conventional ticker. Symbols that do not
// match the convention return ErrNotATicker; callers treat them as opaque.
func Parse(s string) (*Ticker, error) {
	matches := tickerRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotATicker, s)
	}

	expiry, err := time.Parse("2 Jan 2006 15 4",
		fmt.Sprintf("%s %s %s %s %s", matches[3], matches[4], matches[5], matches[6], matches[7]))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotATicker, s)
	}

	return &Ticker{
		Symbol: s,
		Base:   matches[1],
		Quote:  matches[2],
		Expiry: expiry,
	}, nil
}
