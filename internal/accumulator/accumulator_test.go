package accumulator

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibkr-reporter/internal/types"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestAccumulator(batch int, flushOnEnd bool) *Accumulator {
	return New(Options{
		BatchSize:  batch,
		FlushOnEnd: flushOnEnd,
		Clock:      func() time.Time { return fixedNow },
	})
}

func summaryRow(i int) types.AccountSummary {
	return types.AccountSummary{ReqID: 1, Account: "U1234567", Tag: "CashBalance", Value: strconv.Itoa(100 + i), Currency: "EUR"}
}

func TestBatchThresholdMergesFullBatch(t *testing.T) {
	acc := newTestAccumulator(DefaultBatchSize, false)

	for i := 0; i < 5; i++ {
		acc.Record(summaryRow(i))
	}

	assert.Equal(t, 5, acc.Len(types.TopicAccountSummary))
	assert.Equal(t, 0, acc.Pending(types.TopicAccountSummary))
}

func TestPartialBatchStaysBuffered(t *testing.T) {
	acc := newTestAccumulator(DefaultBatchSize, false)

	for i := 0; i < 4; i++ {
		acc.Record(summaryRow(i))
	}

	assert.Equal(t, 0, acc.Len(types.TopicAccountSummary))
	assert.Equal(t, 4, acc.Pending(types.TopicAccountSummary))
	assert.Empty(t, acc.Snapshot().AccountSummary)
}

func TestImmediateVariantAppendsEveryRow(t *testing.T) {
	acc := newTestAccumulator(1, false)

	acc.Record(types.PnL{ReqID: 2, DailyPnL: 1})
	assert.Equal(t, 1, acc.Len(types.TopicPnL))
	assert.Equal(t, 0, acc.Pending(types.TopicPnL))
}

func TestRecordStampsCaptureTime(t *testing.T) {
	acc := newTestAccumulator(1, false)
	own := fixedNow.Add(-time.Hour)

	acc.Record(types.PnL{ReqID: 2})
	acc.Record(types.PnL{ReqID: 2, Date: own})

	snap := acc.Snapshot()
	require.Len(t, snap.PnL, 2)
	assert.Equal(t, fixedNow, snap.PnL[0].Date)
	assert.Equal(t, own, snap.PnL[1].Date)
}

func TestConcurrentRecordLosesNothing(t *testing.T) {
	acc := newTestAccumulator(DefaultBatchSize, false)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				acc.Record(summaryRow(i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, acc.Len(types.TopicAccountSummary))
	assert.Equal(t, 0, acc.Pending(types.TopicAccountSummary))
}

func TestRunFlushesOnEndAndSignals(t *testing.T) {
	acc := newTestAccumulator(DefaultBatchSize, true)
	events := make(chan types.Event, 8)
	acc.Expect(types.TopicAccountSummary, 1)

	for i := 0; i < 3; i++ {
		events <- summaryRow(i)
	}
	events <- types.End{Topic: types.TopicAccountSummary, ReqID: 1}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- acc.Run(ctx, events) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, acc.Await(waitCtx, types.TopicAccountSummary, 1))

	assert.Equal(t, 3, acc.Len(types.TopicAccountSummary))
	close(events)
	require.NoError(t, <-done)
}

func TestRunWithoutFlushDropsTrailingBatch(t *testing.T) {
	acc := newTestAccumulator(DefaultBatchSize, false)
	events := make(chan types.Event, 16)

	for i := 0; i < 7; i++ {
		events <- summaryRow(i)
	}
	events <- types.End{Topic: types.TopicAccountSummary, ReqID: 1}
	close(events)

	require.NoError(t, acc.Run(context.Background(), events))

	assert.Len(t, acc.Snapshot().AccountSummary, 5)
	assert.Equal(t, 2, acc.Pending(types.TopicAccountSummary))
}

func TestAwaitRemembersEarlyEnd(t *testing.T) {
	acc := newTestAccumulator(1, true)
	events := make(chan types.Event, 1)
	events <- types.End{Topic: types.TopicPnL, ReqID: 2}
	close(events)
	require.NoError(t, acc.Run(context.Background(), events))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, acc.Await(ctx, types.TopicPnL, 2))
}

func TestAwaitTimesOut(t *testing.T) {
	acc := newTestAccumulator(1, true)
	acc.Expect(types.TopicPnL, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, acc.Await(ctx, types.TopicPnL, 2), context.DeadlineExceeded)
}

func TestExpectResetsPreviousSignal(t *testing.T) {
	acc := newTestAccumulator(1, true)
	events := make(chan types.Event, 1)
	events <- types.End{Topic: types.TopicPnL, ReqID: 2}
	close(events)
	require.NoError(t, acc.Run(context.Background(), events))

	acc.Expect(types.TopicPnL, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, acc.Await(ctx, types.TopicPnL, 2))
}

func TestEmptySnapshotTableKeepsColumns(t *testing.T) {
	acc := newTestAccumulator(DefaultBatchSize, true)

	table := acc.Snapshot().Table(types.TopicPnL)
	assert.Equal(t, []string{"Date", "reqId", "DailyPnL", "UnrealizedPnL", "RealizedPnL"}, table.Columns)
	assert.Empty(t, table.Rows)
}
