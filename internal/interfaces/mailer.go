package interfaces

import (
	"context"

	"ibkr-reporter/internal/report"
)

// Sender delivers a composed report message.
type Sender interface {
	Send(ctx context.Context, msg report.Message) error
}
