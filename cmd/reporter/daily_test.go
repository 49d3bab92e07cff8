package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibkr-reporter/internal/report"
	"ibkr-reporter/internal/runlog"
	"ibkr-reporter/internal/store"
)

const testAccount = "U1234567"

type recordingSender struct {
	sent []report.Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg report.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/api/iserver/auth/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"authenticated":true,"connected":true}`))
	})
	mux.HandleFunc("/v1/api/portfolio/accounts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"accountId":"` + testAccount + `","currency":"EUR"}]`))
	})
	mux.HandleFunc("/v1/api/portfolio/"+testAccount+"/ledger", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"BASE": {"acctcode":"U1234567","currency":"BASE","netliquidationvalue":12345.64,"cashbalance":1000.5}}`))
	})
	mux.HandleFunc("/v1/api/iserver/account/pnl/partitioned", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"upnl":{"U1234567.Core":{"rowType":1,"dpl":10.04,"nl":12345.64,"upl":-3.24}}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, srv *httptest.Server) *store.Config {
	t.Helper()
	t.Setenv("REPORT_LOG_DIR", t.TempDir())
	cfg, err := store.LoadConfig("")
	require.NoError(t, err)
	cfg.Gateway.BaseURL = srv.URL + "/v1/api"
	cfg.Gateway.Account = ""
	cfg.Gateway.PollSeconds = 3600
	cfg.Session.WaitSeconds = 5
	cfg.Database = store.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "reports.db")}
	return cfg
}

func history(t *testing.T, cfg *store.Config) []store.DailyRecord {
	t.Helper()
	ctx := context.Background()
	db, err := store.Connect(ctx, cfg.Database)
	require.NoError(t, err)
	defer store.Disconnect(ctx, db)
	records, err := store.ListDailyReports(ctx, db, 10)
	require.NoError(t, err)
	return records
}

func TestRunDailySendsAndPersists(t *testing.T) {
	cfg := testConfig(t, newGatewayServer(t))
	sender := &recordingSender{}
	var out bytes.Buffer

	require.NoError(t, runDaily(context.Background(), cfg, sender, &out, true))

	require.Len(t, sender.sent, 1)
	body := sender.sent[0].Body
	assert.Contains(t, body, "Hello Casper,")
	assert.Contains(t, body, "portfolio value is €12345.6, with a daily PnL of €10.0.")
	assert.Contains(t, body, "unrealized PnL of the portfolio is €-3.2.")
	assert.Contains(t, sender.sent[0].Subject, "Portfolio overview of IBKR Portfolio on ")
	assert.Contains(t, out.String(), "NetLiquidationByCurrency")

	records := history(t, cfg)
	require.Len(t, records, 1)
	assert.Equal(t, testAccount, records[0].Account)
	assert.Equal(t, "12345.64", records[0].PortfolioValue.String())
	assert.True(t, records[0].Delivered)
}

func TestRunDailyMailFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t, newGatewayServer(t))
	sender := &recordingSender{err: errors.New("smtp: 535 authentication failed")}

	require.NoError(t, runDaily(context.Background(), cfg, sender, &bytes.Buffer{}, false))

	records := history(t, cfg)
	require.Len(t, records, 1)
	assert.False(t, records[0].Delivered)

	runs, err := runlog.ReadDay(time.Now())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, records[0].RunID, runs[0].RunID)
	assert.False(t, runs[0].Delivered)
	assert.Contains(t, runs[0].Error, "535")
}

func TestRunDailyDryRunOnlyPrints(t *testing.T) {
	cfg := testConfig(t, newGatewayServer(t))
	cfg.Database = store.DatabaseConfig{}
	var out bytes.Buffer

	require.NoError(t, runDaily(context.Background(), cfg, nil, &out, false))
	assert.Contains(t, out.String(), "Subject: Portfolio overview of IBKR Portfolio")
	assert.Contains(t, out.String(), "Interactive Brokers API")
}

func TestRunDailyFailsWhenGatewayDown(t *testing.T) {
	srv := newGatewayServer(t)
	cfg := testConfig(t, srv)
	srv.Close()

	sender := &recordingSender{}
	assert.Error(t, runDaily(context.Background(), cfg, sender, &bytes.Buffer{}, false))
	assert.Empty(t, sender.sent)
}
