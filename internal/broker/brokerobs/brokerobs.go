package brokerobs

import (
	"context"
	"fmt"

	"ibkr-reporter/internal/interfaces"
	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/trace"
	"ibkr-reporter/internal/types"
)

// observableGateway wraps a Gateway with observability (logging & tracing)
type observableGateway struct {
	gw interfaces.Gateway
}

// Compile-time interface check
var _ interfaces.Gateway = (*observableGateway)(nil)

// Wrap wraps a gateway with observability middleware
func Wrap(gw interfaces.Gateway) interfaces.Gateway {
	return &observableGateway{gw: gw}
}

// Connect connects the gateway with observability
func (og *observableGateway) Connect(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "gateway.Connect")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Connecting to gateway")

	if err := og.gw.Connect(ctx); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to connect to gateway", err)
		return fmt.Errorf("gateway connect failed: %w", err)
	}

	logger.DebugSkip(ctx, 1, "Gateway connected")
	return nil
}

// Disconnect shuts down the gateway with observability
func (og *observableGateway) Disconnect(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "gateway.Disconnect")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Disconnecting from gateway")

	if err := og.gw.Disconnect(ctx); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to disconnect from gateway", err)
		return err
	}
	return nil
}

func (og *observableGateway) IsConnected() bool {
	return og.gw.IsConnected()
}

func (og *observableGateway) Events() <-chan types.Event {
	return og.gw.Events()
}

// ReqAccountSummary requests an account summary with observability
func (og *observableGateway) ReqAccountSummary(ctx context.Context, reqID int, group, tags string) error {
	ctx, span := trace.StartSpan(ctx, "gateway.ReqAccountSummary")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting account summary", "req_id", reqID, "group", group, "tags", tags)

	if err := og.gw.ReqAccountSummary(ctx, reqID, group, tags); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to request account summary", err, "req_id", reqID)
		return err
	}
	return nil
}

// CancelAccountSummary cancels an account summary request with observability
func (og *observableGateway) CancelAccountSummary(ctx context.Context, reqID int) error {
	ctx, span := trace.StartSpan(ctx, "gateway.CancelAccountSummary")
	defer span.End()

	if err := og.gw.CancelAccountSummary(ctx, reqID); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel account summary", err, "req_id", reqID)
		return err
	}
	logger.DebugSkip(ctx, 1, "Account summary cancelled", "req_id", reqID)
	return nil
}

// ReqPnL requests P&L updates with observability
func (og *observableGateway) ReqPnL(ctx context.Context, reqID int, account, modelCode string) error {
	ctx, span := trace.StartSpan(ctx, "gateway.ReqPnL")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting PnL", "req_id", reqID, "account", account, "model_code", modelCode)

	if err := og.gw.ReqPnL(ctx, reqID, account, modelCode); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to request PnL", err, "req_id", reqID, "account", account)
		return err
	}
	return nil
}

// CancelPnL cancels a P&L request with observability
func (og *observableGateway) CancelPnL(ctx context.Context, reqID int) error {
	ctx, span := trace.StartSpan(ctx, "gateway.CancelPnL")
	defer span.End()

	if err := og.gw.CancelPnL(ctx, reqID); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel PnL", err, "req_id", reqID)
		return err
	}
	logger.DebugSkip(ctx, 1, "PnL cancelled", "req_id", reqID)
	return nil
}

// ReqPositions requests positions with observability
func (og *observableGateway) ReqPositions(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "gateway.ReqPositions")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting positions")

	if err := og.gw.ReqPositions(ctx); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to request positions", err)
		return err
	}
	return nil
}

// CancelPositions cancels the positions request with observability
func (og *observableGateway) CancelPositions(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "gateway.CancelPositions")
	defer span.End()

	if err := og.gw.CancelPositions(ctx); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel positions", err)
		return err
	}
	logger.DebugSkip(ctx, 1, "Positions cancelled")
	return nil
}
