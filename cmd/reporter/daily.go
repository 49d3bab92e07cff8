package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ibkr-reporter/internal/interfaces"
	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/report"
	"ibkr-reporter/internal/runlog"
	"ibkr-reporter/internal/session"
	"ibkr-reporter/internal/store"
	"ibkr-reporter/internal/types"
)

func newDailyCmd() *cobra.Command {
	var dryRun, showTables bool
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Collect today's figures from the gateway and mail the portfolio overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			compressOldRuns(ctx)
			var sender interfaces.Sender
			if !dryRun {
				sender = newSender(cfg.Email)
			}
			return runDaily(ctx, cfg, sender, cmd.OutOrStdout(), showTables)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the report without sending mail.")
	cmd.Flags().BoolVar(&showTables, "tables", false, "Also print the collected account summary and P&L tables.")
	return cmd
}

// runDaily requests the account summary and P&L, builds the report and hands
// it to sender. A nil sender only prints the message. Mail failures are
// logged and do not fail the run.
func runDaily(ctx context.Context, cfg *store.Config, sender interfaces.Sender, out io.Writer, showTables bool) error {
	sess, gw, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSession(ctx, sess)

	summary, err := sess.AccountSummary(ctx, cfg.Session.SummaryReqID, cfg.Session.SummaryGroup, cfg.Session.SummaryTags)
	if err != nil && !session.IsIncomplete(err) {
		return err
	}
	pnl, err := sess.PnL(ctx, cfg.Session.PnLReqID, gw.Account(), cfg.Session.ModelCode)
	if err != nil && !session.IsIncomplete(err) {
		return err
	}

	if showTables {
		report.SummaryTable(out, summary)
		report.RenderTable(out, sess.Snapshot().Table(types.TopicPnL))
	}

	daily, err := report.Build(summary, pnl)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build daily report", err)
		return err
	}
	msg := report.Compose(daily, report.Template{
		Recipient:  cfg.Report.Recipient,
		Symbol:     cfg.Report.Symbol,
		Portfolio:  cfg.Report.Portfolio,
		Signature:  cfg.Report.Signature,
		DateLayout: cfg.Report.DateLayout,
	})
	fmt.Fprintf(out, "Subject: %s\n\n%s\n", msg.Subject, msg.Body)

	delivered := false
	var sendErr error
	if sender != nil {
		if sendErr = sender.Send(ctx, msg); sendErr != nil {
			logger.Warn(ctx, "Daily report not delivered", "recipients", len(cfg.Email.To))
		} else {
			delivered = true
		}
	}
	logger.Report(ctx, daily.Date.Format("2006-01-02"), delivered,
		"account", daily.Account,
		"portfolio_value", daily.PortfolioValue.String(),
		"daily_pnl", daily.DailyPnL.String(),
	)

	var runID string
	if cfg.Database.Enabled() {
		runID = saveDaily(ctx, cfg.Database, daily, delivered)
	}
	archive(ctx, runID, daily, delivered, sendErr)
	return nil
}

// archive appends the run to the local run log.
func archive(ctx context.Context, runID string, daily report.Daily, delivered bool, sendErr error) {
	e := runlog.Entry{
		RunID:          runID,
		ReportDate:     daily.Date.Format("2006-01-02"),
		Account:        daily.Account,
		Currency:       daily.Currency,
		PortfolioValue: daily.PortfolioValue.String(),
		DailyPnL:       daily.DailyPnL.String(),
		UnrealizedPnL:  daily.UnrealizedPnL.String(),
		Delivered:      delivered,
	}
	if sendErr != nil {
		e.Error = sendErr.Error()
	}
	p, err := runlog.Append(e)
	if err != nil {
		logger.Warn(ctx, "Failed to archive run", "error", err)
		return
	}
	logger.Debug(ctx, "Run archived", "path", p)
}

// saveDaily persists a report run and returns its id. Failures are logged
// and skipped.
func saveDaily(ctx context.Context, dbCfg store.DatabaseConfig, daily report.Daily, delivered bool) string {
	db, err := store.Connect(ctx, dbCfg)
	if err != nil {
		return ""
	}
	defer store.Disconnect(ctx, db)

	if err := store.EnsureSchema(ctx, db); err != nil {
		logger.ErrorWithErr(ctx, "Failed to prepare schema", err)
		return ""
	}
	rec, err := store.SaveDailyReport(ctx, db, store.DailyRecord{
		ReportDate:     daily.Date,
		Account:        daily.Account,
		Currency:       daily.Currency,
		PortfolioValue: daily.PortfolioValue,
		DailyPnL:       daily.DailyPnL,
		UnrealizedPnL:  daily.UnrealizedPnL,
		Delivered:      delivered,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to save daily report", err)
		return ""
	}
	logger.Info(ctx, "Daily report saved", "run_id", rec.RunID)
	return rec.RunID
}
