package ibkr

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"ibkr-reporter/internal/types"
)

const (
	ledgerGroup    = "$LEDGER"
	baseCurrency   = "BASE"
	positionsPage  = 100
	maxPagesPolled = 50
)

type authStatus struct {
	Authenticated bool   `json:"authenticated"`
	Connected     bool   `json:"connected"`
	Competing     bool   `json:"competing"`
	Message       string `json:"message"`
}

type portfolioAccount struct {
	AccountID string `json:"accountId"`
	ID        string `json:"id"`
	Currency  string `json:"currency"`
}

// ledgerEntry is one currency of /portfolio/{account}/ledger.
type ledgerEntry struct {
	AccountCode         string  `json:"acctcode"`
	Currency            string  `json:"currency"`
	NetLiquidationValue float64 `json:"netliquidationvalue"`
	CashBalance         float64 `json:"cashbalance"`
	SettledCash         float64 `json:"settledcash"`
	StockMarketValue    float64 `json:"stockmarketvalue"`
	UnrealizedPnL       float64 `json:"unrealizedpnl"`
	RealizedPnL         float64 `json:"realizedpnl"`
	Dividends           float64 `json:"dividends"`
	ExchangeRate        float64 `json:"exchangerate"`
}

// ledgerTags maps ledger fields to the account summary tags they report.
func (e ledgerEntry) tags() [][2]string {
	return [][2]string{
		{"NetLiquidationByCurrency", formatValue(e.NetLiquidationValue)},
		{"CashBalance", formatValue(e.CashBalance)},
		{"TotalCashBalance", formatValue(e.SettledCash)},
		{"StockMarketValue", formatValue(e.StockMarketValue)},
		{"UnrealizedPnL", formatValue(e.UnrealizedPnL)},
		{"RealizedPnL", formatValue(e.RealizedPnL)},
		{"NetDividend", formatValue(e.Dividends)},
		{"ExchangeRate", formatValue(e.ExchangeRate)},
	}
}

// summaryValue is one entry of /portfolio/{account}/summary.
type summaryValue struct {
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
	Value    *string  `json:"value"`
}

type pnlRow struct {
	RowType int     `json:"rowType"`
	DPL     float64 `json:"dpl"`
	NL      float64 `json:"nl"`
	UPL     float64 `json:"upl"`
	MV      float64 `json:"mv"`
}

type partitionedPnL struct {
	UPnL map[string]pnlRow `json:"upnl"`
}

type positionEntry struct {
	AccountID    string  `json:"acctId"`
	ConID        int64   `json:"conid"`
	ContractDesc string  `json:"contractDesc"`
	Ticker       string  `json:"ticker"`
	AssetClass   string  `json:"assetClass"`
	Currency     string  `json:"currency"`
	Position     float64 `json:"position"`
	AvgCost      float64 `json:"avgCost"`
}

// tagSelection is a parsed account summary tag list. Ledger selections
// read the ledger endpoint, plain tags read the summary endpoint.
type tagSelection struct {
	ledger     bool
	currencies []string // empty means every currency
	tags       []string
}

func parseTags(tags string) (tagSelection, error) {
	var sel tagSelection
	for _, t := range strings.Split(tags, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, ledgerGroup) {
			sel.ledger = true
			cur := strings.TrimPrefix(strings.TrimPrefix(t, ledgerGroup), ":")
			switch strings.ToUpper(cur) {
			case "":
				sel.currencies = append(sel.currencies, baseCurrency)
			case "ALL":
				sel.currencies = nil
			default:
				sel.currencies = append(sel.currencies, strings.ToUpper(cur))
			}
			continue
		}
		sel.tags = append(sel.tags, t)
	}
	if !sel.ledger && len(sel.tags) == 0 {
		return sel, fmt.Errorf("no account summary tags in %q", tags)
	}
	return sel, nil
}

func (s tagSelection) wantCurrency(cur string) bool {
	if len(s.currencies) == 0 {
		return true
	}
	for _, c := range s.currencies {
		if strings.EqualFold(c, cur) {
			return true
		}
	}
	return false
}

func (g *Gateway) fetchSummary(ctx context.Context, account string, reqID int, sel tagSelection) ([]types.Row, error) {
	var rows []types.Row
	if sel.ledger {
		ledger, err := g.ledger(ctx, account)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(ledger))
		for k := range ledger {
			keys = append(keys, k)
		}
		// BASE first, then currencies alphabetically
		sort.Slice(keys, func(i, j int) bool {
			if keys[i] == baseCurrency || keys[j] == baseCurrency {
				return keys[i] == baseCurrency
			}
			return keys[i] < keys[j]
		})
		for _, cur := range keys {
			if !sel.wantCurrency(cur) {
				continue
			}
			entry := ledger[cur]
			for _, tv := range entry.tags() {
				rows = append(rows, types.AccountSummary{
					ReqID:    reqID,
					Account:  account,
					Tag:      tv[0],
					Value:    tv[1],
					Currency: cur,
				})
			}
		}
	}

	if len(sel.tags) > 0 {
		summary, err := g.summary(ctx, account)
		if err != nil {
			return nil, err
		}
		for _, tag := range sel.tags {
			v, ok := summary[strings.ToLower(tag)]
			if !ok {
				continue
			}
			value := ""
			switch {
			case v.Amount != nil:
				value = formatValue(*v.Amount)
			case v.Value != nil:
				value = *v.Value
			}
			rows = append(rows, types.AccountSummary{
				ReqID:    reqID,
				Account:  account,
				Tag:      tag,
				Value:    value,
				Currency: v.Currency,
			})
		}
	}
	return rows, nil
}

func (g *Gateway) ledger(ctx context.Context, account string) (map[string]ledgerEntry, error) {
	resp, err := g.client.GET(ctx, "/portfolio/"+url.PathEscape(account)+"/ledger")
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	ledger := make(map[string]ledgerEntry)
	if err := resp.ParseJSON(&ledger); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return ledger, nil
}

func (g *Gateway) summary(ctx context.Context, account string) (map[string]summaryValue, error) {
	resp, err := g.client.GET(ctx, "/portfolio/"+url.PathEscape(account)+"/summary")
	if err != nil {
		return nil, fmt.Errorf("account summary: %w", err)
	}
	summary := make(map[string]summaryValue)
	if err := resp.ParseJSON(&summary); err != nil {
		return nil, fmt.Errorf("account summary: %w", err)
	}
	return summary, nil
}

func (g *Gateway) fetchPnL(ctx context.Context, account, modelCode string, reqID int) ([]types.Row, error) {
	resp, err := g.client.GET(ctx, "/iserver/account/pnl/partitioned")
	if err != nil {
		return nil, fmt.Errorf("pnl: %w", err)
	}
	var out partitionedPnL
	if err := resp.ParseJSON(&out); err != nil {
		return nil, fmt.Errorf("pnl: %w", err)
	}

	model := modelCode
	if model == "" {
		model = "Core"
	}
	row, ok := out.UPnL[account+"."+model]
	if !ok {
		return nil, nil
	}
	// the partitioned endpoint does not report realized P&L
	return []types.Row{types.PnL{
		ReqID:         reqID,
		DailyPnL:      row.DPL,
		UnrealizedPnL: row.UPL,
	}}, nil
}

func (g *Gateway) fetchPositions(ctx context.Context, account string) ([]types.Row, error) {
	var rows []types.Row
	for page := 0; page < maxPagesPolled; page++ {
		path := "/portfolio/" + url.PathEscape(account) + "/positions/" + strconv.Itoa(page)
		resp, err := g.client.GET(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("positions page %d: %w", page, err)
		}
		var entries []positionEntry
		if err := resp.ParseJSON(&entries); err != nil {
			return nil, fmt.Errorf("positions page %d: %w", page, err)
		}
		for _, p := range entries {
			symbol := p.Ticker
			if symbol == "" {
				symbol = p.ContractDesc
			}
			acct := p.AccountID
			if acct == "" {
				acct = account
			}
			rows = append(rows, types.Position{
				Account: acct,
				Contract: types.Contract{
					ConID:    p.ConID,
					Symbol:   symbol,
					SecType:  p.AssetClass,
					Currency: p.Currency,
				},
				Position: p.Position,
				AvgCost:  p.AvgCost,
			})
		}
		if len(entries) < positionsPage {
			break
		}
	}
	return rows, nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
