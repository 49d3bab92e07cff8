package mailerobs

import (
	"context"
	"errors"

	"ibkr-reporter/internal/interfaces"
	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/mailer"
	"ibkr-reporter/internal/report"
	"ibkr-reporter/internal/trace"
)

// observableSender wraps a Sender with observability (logging & tracing)
type observableSender struct {
	sender interfaces.Sender
}

var _ interfaces.Sender = (*observableSender)(nil)

// Wrap wraps a sender with observability middleware
func Wrap(sender interfaces.Sender) interfaces.Sender {
	return &observableSender{sender: sender}
}

// Send delivers a report with observability
func (ms *observableSender) Send(ctx context.Context, msg report.Message) error {
	ctx, span := trace.StartSpan(ctx, "mailer.Send")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Sending report", "subject", msg.Subject)

	if err := ms.sender.Send(ctx, msg); err != nil {
		if errors.Is(err, mailer.ErrMissingCredentials) {
			logger.WarnSkip(ctx, 1, "Email credentials missing, report not sent", "subject", msg.Subject)
			return err
		}
		logger.ErrorWithErrSkip(ctx, 1, "Failed to send report", err, "subject", msg.Subject)
		return err
	}

	logger.InfoSkip(ctx, 1, "Report sent", "subject", msg.Subject)
	return nil
}
