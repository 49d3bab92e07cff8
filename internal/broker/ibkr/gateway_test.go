package ibkr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibkr-reporter/internal/broker"
	"ibkr-reporter/internal/types"
)

const testAccount = "U1234567"

func newGatewayServer(t *testing.T, authenticated bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/api/iserver/auth/status", func(w http.ResponseWriter, r *http.Request) {
		if authenticated {
			_, _ = w.Write([]byte(`{"authenticated":true,"connected":true,"competing":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"authenticated":false,"connected":true}`))
	})
	mux.HandleFunc("/v1/api/portfolio/accounts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"accountId":"` + testAccount + `","currency":"EUR"}]`))
	})
	mux.HandleFunc("/v1/api/portfolio/"+testAccount+"/ledger", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"BASE": {"acctcode":"U1234567","currency":"BASE","netliquidationvalue":12345.64,"cashbalance":1000.5,"unrealizedpnl":-3.24},
			"USD": {"acctcode":"U1234567","currency":"USD","netliquidationvalue":500,"cashbalance":500}
		}`))
	})
	mux.HandleFunc("/v1/api/portfolio/"+testAccount+"/summary", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"netliquidation":{"amount":12345.64,"currency":"EUR"},"accounttype":{"value":"INDIVIDUAL","currency":""}}`))
	})
	mux.HandleFunc("/v1/api/iserver/account/pnl/partitioned", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"upnl":{"U1234567.Core":{"rowType":1,"dpl":10.04,"nl":12345.64,"upl":-3.24,"mv":11000}}}`))
	})
	mux.HandleFunc("/v1/api/portfolio/"+testAccount+"/positions/0", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"acctId":"U1234567","conid":265598,"contractDesc":"AAPL","ticker":"AAPL","assetClass":"STK","currency":"USD","position":10,"avgCost":150.5},
			{"acctId":"U1234567","conid":8894,"contractDesc":"KO","assetClass":"STK","currency":"USD","position":-5,"avgCost":60}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGateway(srv *httptest.Server, account string) *Gateway {
	return New(Config{
		BaseURL:      srv.URL + "/v1/api",
		Account:      account,
		PollInterval: time.Hour,
		Timeout:      5 * time.Second,
	})
}

// collect reads events until the End of the given topic arrives.
func collect(t *testing.T, gw *Gateway, topic types.Topic) ([]types.Event, types.End) {
	t.Helper()
	var got []types.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-gw.Events():
			if end, ok := ev.(types.End); ok && end.Topic == topic {
				return got, end
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("no End for %s", topic)
		}
	}
}

func TestConnectResolvesAccount(t *testing.T) {
	srv := newGatewayServer(t, true)
	gw := newTestGateway(srv, "")
	ctx := context.Background()

	require.NoError(t, gw.Connect(ctx))
	assert.True(t, gw.IsConnected())
	assert.Equal(t, testAccount, gw.Account())
	require.NoError(t, gw.Disconnect(ctx))
	assert.False(t, gw.IsConnected())
}

func TestConnectFailsWhenNotAuthenticated(t *testing.T) {
	srv := newGatewayServer(t, false)
	gw := newTestGateway(srv, testAccount)

	err := gw.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, gw.IsConnected())
}

func TestConnectFailsWhenUnreachable(t *testing.T) {
	gw := New(Config{BaseURL: "http://127.0.0.1:1/v1/api", Timeout: time.Second})
	assert.Error(t, gw.Connect(context.Background()))
}

func TestRequestBeforeConnect(t *testing.T) {
	gw := New(Config{})
	assert.ErrorIs(t, gw.ReqPnL(context.Background(), 2, testAccount, ""), broker.ErrNotConnected)
}

func TestAccountSummaryLedgerBase(t *testing.T) {
	srv := newGatewayServer(t, true)
	gw := newTestGateway(srv, testAccount)
	ctx := context.Background()
	require.NoError(t, gw.Connect(ctx))
	defer gw.Disconnect(ctx)

	require.NoError(t, gw.ReqAccountSummary(ctx, 1, "All", "$LEDGER"))
	events, end := collect(t, gw, types.TopicAccountSummary)
	assert.Equal(t, 1, end.ReqID)

	require.NotEmpty(t, events)
	first := events[0].(types.AccountSummary)
	assert.Equal(t, "NetLiquidationByCurrency", first.Tag)
	assert.Equal(t, "12345.64", first.Value)
	assert.Equal(t, "BASE", first.Currency)
	assert.Equal(t, 1, first.ReqID)
	for _, ev := range events {
		assert.Equal(t, "BASE", ev.(types.AccountSummary).Currency)
	}
	require.NoError(t, gw.CancelAccountSummary(ctx, 1))
}

func TestAccountSummaryLedgerAllAndPlainTags(t *testing.T) {
	srv := newGatewayServer(t, true)
	gw := newTestGateway(srv, testAccount)
	ctx := context.Background()
	require.NoError(t, gw.Connect(ctx))
	defer gw.Disconnect(ctx)

	require.NoError(t, gw.ReqAccountSummary(ctx, 7, "All", "$LEDGER:ALL,NetLiquidation"))
	events, _ := collect(t, gw, types.TopicAccountSummary)

	currencies := map[string]bool{}
	var plain *types.AccountSummary
	for _, ev := range events {
		row := ev.(types.AccountSummary)
		currencies[row.Currency] = true
		if row.Tag == "NetLiquidation" {
			plain = &row
		}
	}
	assert.True(t, currencies["BASE"])
	assert.True(t, currencies["USD"])
	require.NotNil(t, plain)
	assert.Equal(t, "EUR", plain.Currency)
	assert.Equal(t, "BASE", events[0].(types.AccountSummary).Currency)
}

func TestPnLRequest(t *testing.T) {
	srv := newGatewayServer(t, true)
	gw := newTestGateway(srv, testAccount)
	ctx := context.Background()
	require.NoError(t, gw.Connect(ctx))
	defer gw.Disconnect(ctx)

	require.NoError(t, gw.ReqPnL(ctx, 2, testAccount, ""))
	events, end := collect(t, gw, types.TopicPnL)
	assert.Equal(t, 2, end.ReqID)
	require.Len(t, events, 1)

	pnl := events[0].(types.PnL)
	assert.Equal(t, 2, pnl.ReqID)
	assert.Equal(t, 10.04, pnl.DailyPnL)
	assert.Equal(t, -3.24, pnl.UnrealizedPnL)
	assert.Zero(t, pnl.RealizedPnL)
}

func TestDuplicateActiveRequest(t *testing.T) {
	srv := newGatewayServer(t, true)
	gw := newTestGateway(srv, testAccount)
	ctx := context.Background()
	require.NoError(t, gw.Connect(ctx))
	defer gw.Disconnect(ctx)

	require.NoError(t, gw.ReqPnL(ctx, 2, "", ""))
	assert.ErrorIs(t, gw.ReqPnL(ctx, 2, "", ""), broker.ErrDuplicateRequest)

	require.NoError(t, gw.CancelPnL(ctx, 2))
	assert.NoError(t, gw.ReqPnL(ctx, 2, "", ""))
}

func TestCancelUnknownRequestIsNoop(t *testing.T) {
	srv := newGatewayServer(t, true)
	gw := newTestGateway(srv, testAccount)
	ctx := context.Background()
	require.NoError(t, gw.Connect(ctx))
	defer gw.Disconnect(ctx)

	assert.NoError(t, gw.CancelPnL(ctx, 42))
	assert.NoError(t, gw.CancelPositions(ctx))
}

func TestPositionsRequest(t *testing.T) {
	srv := newGatewayServer(t, true)
	gw := newTestGateway(srv, testAccount)
	ctx := context.Background()
	require.NoError(t, gw.Connect(ctx))
	defer gw.Disconnect(ctx)

	require.NoError(t, gw.ReqPositions(ctx))
	events, end := collect(t, gw, types.TopicPosition)
	assert.Equal(t, types.NoReqID, end.ReqID)
	require.Len(t, events, 2)

	aapl := events[0].(types.Position)
	assert.Equal(t, "AAPL STK", aapl.Contract.String())
	assert.Equal(t, 10.0, aapl.Position)
	assert.Equal(t, 150.5, aapl.AvgCost)
	ko := events[1].(types.Position)
	assert.Equal(t, "KO", ko.Contract.Symbol)
	assert.Equal(t, -5.0, ko.Position)
}

func TestDisconnectClosesEvents(t *testing.T) {
	srv := newGatewayServer(t, true)
	gw := newTestGateway(srv, testAccount)
	ctx := context.Background()
	require.NoError(t, gw.Connect(ctx))
	require.NoError(t, gw.ReqPositions(ctx))
	_, _ = collect(t, gw, types.TopicPosition)

	require.NoError(t, gw.Disconnect(ctx))
	for range gw.Events() {
	}
	require.NoError(t, gw.Disconnect(ctx))
}

func TestParseTags(t *testing.T) {
	sel, err := parseTags("$LEDGER:BASE")
	require.NoError(t, err)
	assert.True(t, sel.ledger)
	assert.True(t, sel.wantCurrency("BASE"))
	assert.False(t, sel.wantCurrency("USD"))

	sel, err = parseTags("$LEDGER:ALL")
	require.NoError(t, err)
	assert.True(t, sel.wantCurrency("USD"))

	_, err = parseTags(" , ")
	assert.Error(t, err)
}
