package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibkr-reporter/internal/types"
)

var reportDate = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func sampleSummary() []types.AccountSummary {
	return []types.AccountSummary{
		{ReqID: 1, Account: "U1234567", Tag: "CashBalance", Value: "100.0", Currency: "BASE"},
		{ReqID: 1, Account: "U1234567", Tag: "NetLiquidationByCurrency", Value: "12345.6", Currency: "BASE"},
		{ReqID: 1, Account: "U1234567", Tag: "NetLiquidationByCurrency", Value: "1.0", Currency: "USD"},
	}
}

func samplePnL() []types.PnL {
	return []types.PnL{
		{Date: reportDate, ReqID: 2, DailyPnL: 10.04, UnrealizedPnL: -3.2},
		{Date: reportDate, ReqID: 2, DailyPnL: 99, UnrealizedPnL: 99},
	}
}

func TestComposeRoundsToOneDecimal(t *testing.T) {
	d, err := Build(sampleSummary(), samplePnL())
	require.NoError(t, err)

	msg := Compose(d, DefaultTemplate())
	assert.Contains(t, msg.Body, "€12345.6")
	assert.Contains(t, msg.Body, "€10.0")
	assert.Contains(t, msg.Body, "€-3.2")
	assert.Equal(t, "Portfolio overview of IBKR Portfolio on 2025-03-10", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Body, "Hello Casper,\n\n"))
	assert.True(t, strings.HasSuffix(msg.Body, "Kind regards,\n\nInteractive Brokers API"))
}

func TestBuildUsesFirstMatchingRows(t *testing.T) {
	d, err := Build(sampleSummary(), samplePnL())
	require.NoError(t, err)

	assert.True(t, d.PortfolioValue.Equal(decimal.RequireFromString("12345.6")))
	assert.Equal(t, "BASE", d.Currency)
	assert.Equal(t, "U1234567", d.Account)
	assert.True(t, d.DailyPnL.Equal(decimal.NewFromFloat(10.04)))
	assert.Equal(t, reportDate, d.Date)
}

func TestBuildMissingTag(t *testing.T) {
	_, err := Build(sampleSummary()[:1], samplePnL())
	assert.ErrorIs(t, err, ErrTagNotFound)

	_, err = Build(nil, samplePnL())
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestBuildEmptyPnL(t *testing.T) {
	_, err := Build(sampleSummary(), nil)
	assert.ErrorIs(t, err, ErrNoPnL)
}

func TestBuildUnparsableValue(t *testing.T) {
	summary := []types.AccountSummary{{Tag: PortfolioValueTag, Value: "n/a"}}
	_, err := Build(summary, samplePnL())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTagNotFound)
}

func TestComposeRoundsBinaryValue(t *testing.T) {
	d := Daily{
		Date:           reportDate,
		PortfolioValue: decimal.RequireFromString("100.25"),
		DailyPnL:       decimal.RequireFromString("0.35"),
		UnrealizedPnL:  decimal.RequireFromString("-7"),
	}
	msg := Compose(d, Template{Recipient: "Team", Symbol: "$"})
	assert.Contains(t, msg.Body, "Hello Team,")
	assert.Contains(t, msg.Body, "$100.2,")
	assert.Contains(t, msg.Body, "$0.3.")
	assert.Contains(t, msg.Body, "$-7.0.")
}

func TestComposeRoundsPnLFromGateway(t *testing.T) {
	tests := []struct {
		daily, unrealized float64
		wantDaily         string
		wantUnrealized    string
	}{
		{10.05, 10.35, "daily PnL of €10.1.", "portfolio is €10.3."},
		{0.25, -0.15, "daily PnL of €0.2.", "portfolio is €-0.1."},
		{-3.24, 1234.56, "daily PnL of €-3.2.", "portfolio is €1234.6."},
	}
	for _, tt := range tests {
		pnl := []types.PnL{{Date: reportDate, DailyPnL: tt.daily, UnrealizedPnL: tt.unrealized}}
		d, err := Build(sampleSummary(), pnl)
		require.NoError(t, err)

		msg := Compose(d, DefaultTemplate())
		assert.Contains(t, msg.Body, tt.wantDaily)
		assert.Contains(t, msg.Body, tt.wantUnrealized)
	}
}

func TestRenderTables(t *testing.T) {
	var buf bytes.Buffer
	PositionsTable(&buf, []types.Position{
		{Date: reportDate, Account: "U1234567", Contract: types.Contract{Symbol: "ASML", SecType: "STK"}, Position: 3, AvgCost: 612.5},
	})
	out := buf.String()
	assert.Contains(t, out, "avgCost")
	assert.Contains(t, out, "ASML STK")
	assert.Contains(t, out, "612.5")

	buf.Reset()
	SummaryTable(&buf, sampleSummary())
	assert.Contains(t, buf.String(), "NetLiquidationByCurrency")
}

func TestRenderEmptyTableKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, types.Table{Columns: types.Columns(types.TopicPnL)})
	assert.Contains(t, buf.String(), "DailyPnL")
}
