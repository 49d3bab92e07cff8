// Package session runs gateway requests against an accumulator.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ibkr-reporter/internal/accumulator"
	"ibkr-reporter/internal/interfaces"
	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/types"
)

// DefaultWaitTimeout bounds how long a request waits for its End event.
const DefaultWaitTimeout = 30 * time.Second

// Options configures a Session.
type Options struct {
	WaitTimeout time.Duration
}

// IncompleteError reports a request whose End event did not arrive in time.
// The rows received so far are still returned alongside it.
type IncompleteError struct {
	Topic    types.Topic
	ReqID    int
	Received int
	Waited   time.Duration
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s request %d incomplete after %s (%d rows received)", e.Topic, e.ReqID, e.Waited.Round(time.Millisecond), e.Received)
}

// IsIncomplete reports whether err is or wraps an *IncompleteError.
func IsIncomplete(err error) bool {
	var inc *IncompleteError
	return errors.As(err, &inc)
}

// Session connects a gateway to an accumulator. A single consumer goroutine
// drains the gateway events into the accumulator for the life of the session.
type Session struct {
	gw   interfaces.Gateway
	acc  *accumulator.Accumulator
	opts Options

	stop      context.CancelFunc
	done      chan error
	closeOnce sync.Once
	closeErr  error
}

// Open connects the gateway and starts consuming its events. A connection
// failure is returned as is and nothing is started.
func Open(ctx context.Context, gw interfaces.Gateway, acc *accumulator.Accumulator, opts Options) (*Session, error) {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if err := gw.Connect(ctx); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		gw:   gw,
		acc:  acc,
		opts: opts,
		stop: stop,
		done: make(chan error, 1),
	}
	go func() {
		s.done <- acc.Run(runCtx, gw.Events())
	}()
	return s, nil
}

// AccountSummary requests the account summary and returns the account summary table.
func (s *Session) AccountSummary(ctx context.Context, reqID int, group, tags string) ([]types.AccountSummary, error) {
	err := s.request(ctx, types.TopicAccountSummary, reqID,
		func(ctx context.Context) error { return s.gw.ReqAccountSummary(ctx, reqID, group, tags) },
		func(ctx context.Context) error { return s.gw.CancelAccountSummary(ctx, reqID) },
	)
	return s.acc.Snapshot().AccountSummary, err
}

// PnL requests P&L for an account and returns the P&L table.
func (s *Session) PnL(ctx context.Context, reqID int, account, modelCode string) ([]types.PnL, error) {
	err := s.request(ctx, types.TopicPnL, reqID,
		func(ctx context.Context) error { return s.gw.ReqPnL(ctx, reqID, account, modelCode) },
		func(ctx context.Context) error { return s.gw.CancelPnL(ctx, reqID) },
	)
	return s.acc.Snapshot().PnL, err
}

// Positions requests positions and returns the positions table.
func (s *Session) Positions(ctx context.Context) ([]types.Position, error) {
	err := s.request(ctx, types.TopicPosition, types.NoReqID,
		s.gw.ReqPositions,
		s.gw.CancelPositions,
	)
	return s.acc.Snapshot().Positions, err
}

// Snapshot returns the current accumulator tables.
func (s *Session) Snapshot() accumulator.Snapshot {
	return s.acc.Snapshot()
}

// request issues a request, waits for its End or the timeout and always
// cancels it afterwards.
func (s *Session) request(ctx context.Context, topic types.Topic, reqID int, req, cancel func(context.Context) error) error {
	s.acc.Expect(topic, reqID)
	if err := req(ctx); err != nil {
		return fmt.Errorf("request %s %d: %w", topic, reqID, err)
	}

	start := time.Now()
	waitCtx, stopWait := context.WithTimeout(ctx, s.opts.WaitTimeout)
	waitErr := s.acc.Await(waitCtx, topic, reqID)
	stopWait()
	waited := time.Since(start)

	if err := cancel(context.WithoutCancel(ctx)); err != nil {
		logger.Warn(ctx, "Cancel failed", "topic", string(topic), "req_id", reqID, "error", err)
	}

	if waitErr == nil {
		logger.Request(ctx, string(topic), reqID, "completed", "rows", s.acc.Len(topic), "waited_ms", waited.Milliseconds())
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if s.acc.FlushesOnEnd() {
		s.acc.FlushTopic(topic)
	}
	inc := &IncompleteError{
		Topic:    topic,
		ReqID:    reqID,
		Received: s.acc.Len(topic) + s.acc.Pending(topic),
		Waited:   waited,
	}
	logger.Request(ctx, string(topic), reqID, "incomplete", "rows", inc.Received, "waited_ms", waited.Milliseconds())
	return inc
}

// Close disconnects the gateway and waits for the consumer to drain the
// remaining events. If ctx ends first the consumer is stopped.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.gw.Disconnect(ctx)
		select {
		case err := <-s.done:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn(ctx, "Event consumer stopped with error", "error", err)
			}
		case <-ctx.Done():
			s.stop()
			<-s.done
		}
		s.stop()
	})
	return s.closeErr
}
