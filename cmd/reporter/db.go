package main

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the report history database",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the report history table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			db, err := store.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer store.Disconnect(ctx, db)

			if err := store.EnsureSchema(ctx, db); err != nil {
				logger.ErrorWithErr(ctx, "Failed to prepare schema", err)
				return err
			}
			logger.Info(ctx, "Schema ready", "driver", cfg.Database.Driver)
			return nil
		},
	}

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recent report runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			db, err := store.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer store.Disconnect(ctx, db)

			records, err := store.ListDailyReports(ctx, db, limit)
			if err != nil {
				logger.ErrorWithErr(ctx, "Failed to list reports", err)
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Date", "Account", "Value", "Daily PnL", "Unrealized PnL", "Delivered", "Run"})
			table.SetAutoFormatHeaders(false)
			table.SetAutoWrapText(false)
			for _, r := range records {
				table.Append([]string{
					r.ReportDate.Format("2006-01-02"),
					r.Account,
					r.PortfolioValue.StringFixedBank(2) + " " + r.Currency,
					r.DailyPnL.StringFixedBank(2),
					r.UnrealizedPnL.StringFixedBank(2),
					strconv.FormatBool(r.Delivered),
					r.RunID,
				})
			}
			table.Render()
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show.")

	cmd.AddCommand(initCmd, historyCmd)
	return cmd
}
