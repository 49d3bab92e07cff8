// Package accumulator collects gateway rows into per-topic tables.
package accumulator

import (
	"context"
	"sync"
	"time"

	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/types"
)

// DefaultBatchSize is the buffer length that triggers a merge into a topic table.
const DefaultBatchSize = 5

// Options configures an Accumulator.
type Options struct {
	// BatchSize <= 1 appends every row immediately.
	BatchSize int
	// FlushOnEnd merges a trailing partial batch when a request completes or the
	// consumer loop exits. When false partial batches stay pending and never reach
	// the tables unless Flush is called.
	FlushOnEnd bool
	// Clock stamps rows that arrive without a capture time.
	Clock func() time.Time
}

type signalKey struct {
	topic types.Topic
	reqID int
}

// Accumulator owns one append-only table per topic. Rows pass through a small
// per-topic buffer and are merged in groups of BatchSize. A single mutex guards
// buffer append, the threshold check and the merge.
type Accumulator struct {
	opts Options

	mu      sync.Mutex
	tables  map[types.Topic][]types.Row
	buffers map[types.Topic][]types.Row

	sigMu   sync.Mutex
	signals map[signalKey]chan struct{}
}

// New creates an empty Accumulator.
func New(opts Options) *Accumulator {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	a := &Accumulator{
		opts:    opts,
		tables:  make(map[types.Topic][]types.Row),
		buffers: make(map[types.Topic][]types.Row),
		signals: make(map[signalKey]chan struct{}),
	}
	for _, topic := range types.Topics() {
		a.tables[topic] = nil
		a.buffers[topic] = make([]types.Row, 0, opts.BatchSize)
	}
	return a
}

// Record stamps a row with its capture time and buffers it, merging the buffer
// into the topic table once it reaches the batch size.
func (a *Accumulator) Record(row types.Row) {
	if row.CapturedAt().IsZero() {
		row = row.Stamp(a.opts.Clock())
	}
	topic := row.EventTopic()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffers[topic] = append(a.buffers[topic], row)
	if len(a.buffers[topic]) >= a.opts.BatchSize {
		a.mergeLocked(topic)
	}
}

// mergeLocked appends the pending buffer of topic to its table. Callers hold mu.
func (a *Accumulator) mergeLocked(topic types.Topic) int {
	pending := a.buffers[topic]
	if len(pending) == 0 {
		return 0
	}
	a.tables[topic] = append(a.tables[topic], pending...)
	a.buffers[topic] = make([]types.Row, 0, a.opts.BatchSize)
	return len(pending)
}

// Flush merges every pending buffer and returns the number of rows moved.
func (a *Accumulator) Flush() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, topic := range types.Topics() {
		n += a.mergeLocked(topic)
	}
	return n
}

// FlushTopic merges the pending buffer of one topic.
func (a *Accumulator) FlushTopic(topic types.Topic) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mergeLocked(topic)
}

// FlushesOnEnd reports whether partial batches are merged when a request ends.
func (a *Accumulator) FlushesOnEnd() bool {
	return a.opts.FlushOnEnd
}

// Pending returns the number of buffered rows not yet merged.
func (a *Accumulator) Pending(topic types.Topic) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers[topic])
}

// Len returns the number of merged rows of a topic table.
func (a *Accumulator) Len(topic types.Topic) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tables[topic])
}

// Snapshot returns a copy of the merged tables.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var s Snapshot
	for _, row := range a.tables[types.TopicAccountSummary] {
		s.AccountSummary = append(s.AccountSummary, row.(types.AccountSummary))
	}
	for _, row := range a.tables[types.TopicPnL] {
		s.PnL = append(s.PnL, row.(types.PnL))
	}
	for _, row := range a.tables[types.TopicPosition] {
		s.Positions = append(s.Positions, row.(types.Position))
	}
	return s
}

// Expect arms a fresh completion signal for a request that is about to be
// issued, discarding any signal left over from an earlier request with the
// same id.
func (a *Accumulator) Expect(topic types.Topic, reqID int) {
	a.sigMu.Lock()
	defer a.sigMu.Unlock()
	a.signals[signalKey{topic, reqID}] = make(chan struct{})
}

func (a *Accumulator) signal(topic types.Topic, reqID int) chan struct{} {
	a.sigMu.Lock()
	defer a.sigMu.Unlock()

	key := signalKey{topic, reqID}
	ch, ok := a.signals[key]
	if !ok {
		ch = make(chan struct{})
		a.signals[key] = ch
	}
	return ch
}

func (a *Accumulator) complete(topic types.Topic, reqID int) {
	a.sigMu.Lock()
	defer a.sigMu.Unlock()

	key := signalKey{topic, reqID}
	ch, ok := a.signals[key]
	if !ok {
		ch = make(chan struct{})
		a.signals[key] = ch
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// Await blocks until the end of the request identified by topic and reqID has
// been consumed, or ctx is done.
func (a *Accumulator) Await(ctx context.Context, topic types.Topic, reqID int) error {
	select {
	case <-a.signal(topic, reqID):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes events until the channel is closed or ctx is cancelled. It is
// the only goroutine expected to feed the tables in a session.
func (a *Accumulator) Run(ctx context.Context, events <-chan types.Event) error {
	defer func() {
		if a.opts.FlushOnEnd {
			a.Flush()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.consume(ctx, ev)
		}
	}
}

func (a *Accumulator) consume(ctx context.Context, ev types.Event) {
	switch e := ev.(type) {
	case types.End:
		if a.opts.FlushOnEnd {
			a.FlushTopic(e.Topic)
		}
		logger.Debug(ctx, "Request completed",
			"topic", string(e.Topic),
			"req_id", e.ReqID,
			"rows", a.Len(e.Topic),
			"pending", a.Pending(e.Topic),
		)
		a.complete(e.Topic, e.ReqID)
	case types.Row:
		a.Record(e)
	default:
		logger.Warn(ctx, "Ignoring unknown event", "topic", string(ev.EventTopic()))
	}
}
