package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibkr-reporter/internal/accumulator"
	"ibkr-reporter/internal/types"
)

var captured = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func snapshot() accumulator.Snapshot {
	return accumulator.Snapshot{
		AccountSummary: []types.AccountSummary{
			{Date: captured, ReqID: 1, Account: "U1234567", Tag: "NetLiquidationByCurrency", Value: "10500.25", Currency: "BASE"},
		},
		PnL: []types.PnL{
			{Date: captured, ReqID: 2, DailyPnL: -12.5, UnrealizedPnL: 300},
		},
		Positions: []types.Position{
			{Date: captured, Account: "U1234567", Contract: types.Contract{ConID: 265598, Symbol: "AAPL", SecType: "STK"}, Position: 10, AvgCost: 150.25},
			{Date: captured, Account: "U1234567", Contract: types.Contract{ConID: 1, Symbol: "VWCE, Acc"}, Position: 3, AvgCost: 101},
		},
	}
}

func TestWritePositions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, snapshot(), types.TopicPosition))

	assert.Equal(t,
		"Date,account,contract,position,avgCost\n"+
			"2025-03-10 09:30:00.000,U1234567,AAPL STK,10,150.25\n"+
			"2025-03-10 09:30:00.000,U1234567,\"VWCE, Acc\",3,101\n",
		buf.String())
}

func TestWriteSummaryAndPnL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, snapshot(), types.TopicAccountSummary))
	assert.Equal(t,
		"Date,reqId,Account,Tag,Value,Currency\n"+
			"2025-03-10 09:30:00.000,1,U1234567,NetLiquidationByCurrency,10500.25,BASE\n",
		buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, snapshot(), types.TopicPnL))
	assert.Equal(t,
		"Date,reqId,DailyPnL,UnrealizedPnL,RealizedPnL\n"+
			"2025-03-10 09:30:00.000,2,-12.5,300,0\n",
		buf.String())
}

func TestEmptyTopicKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, accumulator.Snapshot{}, types.TopicPnL))
	assert.Equal(t, "Date,reqId,DailyPnL,UnrealizedPnL,RealizedPnL\n", buf.String())
}

func TestUnknownTopic(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteCSV(&buf, snapshot(), types.Topic("orders")))
}

func TestWriteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "positions.csv")
	require.NoError(t, WriteFile(path, snapshot(), types.TopicPosition))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "AAPL STK")
}
