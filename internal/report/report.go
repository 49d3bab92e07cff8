// Package report turns the accumulated gateway tables into the daily
// portfolio message.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ibkr-reporter/internal/types"
)

// PortfolioValueTag is the account summary tag that carries the portfolio value.
const PortfolioValueTag = "NetLiquidationByCurrency"

var (
	ErrTagNotFound = errors.New("account summary tag not found")
	ErrNoPnL       = errors.New("pnl table is empty")
)

// Daily holds the figures of one daily report.
type Daily struct {
	Date           time.Time
	Account        string
	Currency       string
	PortfolioValue decimal.Decimal
	DailyPnL       decimal.Decimal
	UnrealizedPnL  decimal.Decimal
}

// Build reads the portfolio value from the first summary row tagged
// NetLiquidationByCurrency and both P&L figures from the first P&L row.
func Build(summary []types.AccountSummary, pnl []types.PnL) (Daily, error) {
	var d Daily

	row, ok := findTag(summary, PortfolioValueTag)
	if !ok {
		return d, fmt.Errorf("%w: %s", ErrTagNotFound, PortfolioValueTag)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(row.Value))
	if err != nil {
		return d, fmt.Errorf("parse %s value %q: %w", PortfolioValueTag, row.Value, err)
	}
	if len(pnl) == 0 {
		return d, ErrNoPnL
	}

	d.Account = row.Account
	d.Currency = row.Currency
	d.PortfolioValue = value
	d.DailyPnL = decimal.NewFromFloat(pnl[0].DailyPnL)
	d.UnrealizedPnL = decimal.NewFromFloat(pnl[0].UnrealizedPnL)
	d.Date = pnl[0].Date
	if d.Date.IsZero() {
		d.Date = time.Now()
	}
	return d, nil
}

func findTag(summary []types.AccountSummary, tag string) (types.AccountSummary, bool) {
	for _, row := range summary {
		if row.Tag == tag {
			return row, true
		}
	}
	return types.AccountSummary{}, false
}
