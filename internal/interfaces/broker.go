package interfaces

import (
	"context"

	"ibkr-reporter/internal/types"
)

// Gateway is a brokerage gateway that answers requests with a stream of typed
// events on a single channel. Request ids passed to a request, its cancel and
// the End event that completes it are the same value.
type Gateway interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	// Events is closed once the gateway has disconnected and every poller has exited.
	Events() <-chan types.Event

	ReqAccountSummary(ctx context.Context, reqID int, group, tags string) error
	CancelAccountSummary(ctx context.Context, reqID int) error
	ReqPnL(ctx context.Context, reqID int, account, modelCode string) error
	CancelPnL(ctx context.Context, reqID int) error
	ReqPositions(ctx context.Context) error
	CancelPositions(ctx context.Context) error
}
