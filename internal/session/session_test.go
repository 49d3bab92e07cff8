package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibkr-reporter/internal/accumulator"
	"ibkr-reporter/internal/interfaces"
	"ibkr-reporter/internal/types"
)

// fakeGateway answers requests from canned rows. When sendEnd is false the
// End event never arrives.
type fakeGateway struct {
	mu         sync.Mutex
	events     chan types.Event
	connectErr error
	connected  bool
	sendEnd    bool
	summary    []types.AccountSummary
	pnl        []types.PnL
	positions  []types.Position
	cancels    []string
	closed     bool
}

var _ interfaces.Gateway = (*fakeGateway)(nil)

func newFakeGateway(sendEnd bool) *fakeGateway {
	return &fakeGateway{events: make(chan types.Event, 64), sendEnd: sendEnd}
}

func (f *fakeGateway) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.connected = false
		close(f.events)
	}
	return nil
}

func (f *fakeGateway) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeGateway) Events() <-chan types.Event { return f.events }

func (f *fakeGateway) push(rows []types.Event, end types.End) {
	for _, r := range rows {
		f.events <- r
	}
	if f.sendEnd {
		f.events <- end
	}
}

func (f *fakeGateway) ReqAccountSummary(ctx context.Context, reqID int, group, tags string) error {
	rows := make([]types.Event, 0, len(f.summary))
	for _, r := range f.summary {
		r.ReqID = reqID
		rows = append(rows, r)
	}
	f.push(rows, types.End{Topic: types.TopicAccountSummary, ReqID: reqID})
	return nil
}

func (f *fakeGateway) CancelAccountSummary(ctx context.Context, reqID int) error {
	return f.recordCancel("account_summary")
}

func (f *fakeGateway) ReqPnL(ctx context.Context, reqID int, account, modelCode string) error {
	rows := make([]types.Event, 0, len(f.pnl))
	for _, r := range f.pnl {
		r.ReqID = reqID
		rows = append(rows, r)
	}
	f.push(rows, types.End{Topic: types.TopicPnL, ReqID: reqID})
	return nil
}

func (f *fakeGateway) CancelPnL(ctx context.Context, reqID int) error {
	return f.recordCancel("pnl")
}

func (f *fakeGateway) ReqPositions(ctx context.Context) error {
	rows := make([]types.Event, 0, len(f.positions))
	for _, r := range f.positions {
		rows = append(rows, r)
	}
	f.push(rows, types.End{Topic: types.TopicPosition, ReqID: types.NoReqID})
	return nil
}

func (f *fakeGateway) CancelPositions(ctx context.Context) error {
	return f.recordCancel("position")
}

func (f *fakeGateway) recordCancel(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, topic)
	return nil
}

func (f *fakeGateway) cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancels...)
}

func newAccumulator() *accumulator.Accumulator {
	return accumulator.New(accumulator.Options{BatchSize: accumulator.DefaultBatchSize, FlushOnEnd: true})
}

func TestOpenFailsWhenConnectFails(t *testing.T) {
	gw := newFakeGateway(true)
	gw.connectErr = errors.New("connection refused")

	s, err := Open(context.Background(), gw, newAccumulator(), Options{})
	assert.Nil(t, s)
	assert.ErrorContains(t, err, "connection refused")
}

func TestAccountSummaryAndPnLComplete(t *testing.T) {
	gw := newFakeGateway(true)
	gw.summary = []types.AccountSummary{
		{Account: "U1", Tag: "NetLiquidationByCurrency", Value: "12345.64", Currency: "BASE"},
		{Account: "U1", Tag: "CashBalance", Value: "100", Currency: "BASE"},
	}
	gw.pnl = []types.PnL{{DailyPnL: 10.04, UnrealizedPnL: -3.24}}

	ctx := context.Background()
	s, err := Open(ctx, gw, newAccumulator(), Options{WaitTimeout: time.Second})
	require.NoError(t, err)

	summary, err := s.AccountSummary(ctx, 1, "All", "$LEDGER:BASE")
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, 1, summary[0].ReqID)
	assert.False(t, summary[0].Date.IsZero())

	pnl, err := s.PnL(ctx, 2, "U1", "")
	require.NoError(t, err)
	require.Len(t, pnl, 1)
	assert.Equal(t, 10.04, pnl[0].DailyPnL)

	assert.Equal(t, []string{"account_summary", "pnl"}, gw.cancelled())
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
}

func TestMissingEndReturnsIncompleteAndCancels(t *testing.T) {
	gw := newFakeGateway(false)
	gw.positions = []types.Position{
		{Account: "U1", Contract: types.Contract{Symbol: "AAPL"}, Position: 1},
	}

	ctx := context.Background()
	acc := accumulator.New(accumulator.Options{BatchSize: 1, FlushOnEnd: true})
	s, err := Open(ctx, gw, acc, Options{WaitTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close(ctx)

	positions, err := s.Positions(ctx)
	require.Error(t, err)
	assert.True(t, IsIncomplete(err))

	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, types.TopicPosition, inc.Topic)
	assert.Equal(t, types.NoReqID, inc.ReqID)
	assert.Equal(t, 1, inc.Received)
	assert.Len(t, positions, 1)
	assert.Equal(t, []string{"position"}, gw.cancelled())
}

func TestRepeatedRequestsAccumulate(t *testing.T) {
	gw := newFakeGateway(true)
	gw.pnl = []types.PnL{{DailyPnL: 1}}

	ctx := context.Background()
	s, err := Open(ctx, gw, newAccumulator(), Options{WaitTimeout: time.Second})
	require.NoError(t, err)
	defer s.Close(ctx)

	_, err = s.PnL(ctx, 2, "U1", "")
	require.NoError(t, err)
	pnl, err := s.PnL(ctx, 2, "U1", "")
	require.NoError(t, err)
	assert.Len(t, pnl, 2)
}

func TestCloseFlushesPartialBatches(t *testing.T) {
	gw := newFakeGateway(true)
	ctx := context.Background()
	acc := newAccumulator()
	s, err := Open(ctx, gw, acc, Options{WaitTimeout: time.Second})
	require.NoError(t, err)

	gw.events <- types.PnL{ReqID: 9, DailyPnL: 3}
	require.NoError(t, s.Close(ctx))
	assert.Len(t, s.Snapshot().PnL, 1)
}

func TestMissingEndFlushesBufferedRows(t *testing.T) {
	gw := newFakeGateway(false)
	gw.pnl = []types.PnL{{DailyPnL: 10.04, UnrealizedPnL: -3.24}}

	ctx := context.Background()
	s, err := Open(ctx, gw, newAccumulator(), Options{WaitTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close(ctx)

	pnl, err := s.PnL(ctx, 2, "U1", "")
	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, 1, inc.Received)
	require.Len(t, pnl, inc.Received)
	assert.Equal(t, 10.04, pnl[0].DailyPnL)
}

func TestMissingEndWithoutFlushKeepsRowsPending(t *testing.T) {
	gw := newFakeGateway(false)
	gw.pnl = []types.PnL{{DailyPnL: 1}}

	ctx := context.Background()
	acc := accumulator.New(accumulator.Options{BatchSize: accumulator.DefaultBatchSize})
	s, err := Open(ctx, gw, acc, Options{WaitTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close(ctx)

	pnl, err := s.PnL(ctx, 2, "U1", "")
	assert.True(t, IsIncomplete(err))
	assert.Empty(t, pnl)
	assert.Equal(t, 1, acc.Pending(types.TopicPnL))
}

func TestCancelledBeforeAnyRowKeepsColumns(t *testing.T) {
	gw := newFakeGateway(false)

	ctx := context.Background()
	s, err := Open(ctx, gw, newAccumulator(), Options{WaitTimeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close(ctx)

	pnl, err := s.PnL(ctx, 3, "U1", "")
	assert.True(t, IsIncomplete(err))
	assert.Empty(t, pnl)
	assert.Equal(t, []string{"pnl"}, gw.cancelled())

	table := s.Snapshot().Table(types.TopicPnL)
	assert.Equal(t, types.TopicPnL, table.Topic)
	assert.Equal(t, types.Columns(types.TopicPnL), table.Columns)
	assert.NotEmpty(t, table.Columns)
	assert.Empty(t, table.Rows)
}
