package main

import (
	"github.com/spf13/cobra"

	"ibkr-reporter/internal/export"
	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/report"
	"ibkr-reporter/internal/session"
	"ibkr-reporter/internal/types"
)

func newPositionsCmd() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Print the current positions of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			sess, _, err := openSession(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSession(ctx, sess)

			positions, err := sess.Positions(ctx)
			if err != nil && !session.IsIncomplete(err) {
				return err
			}
			report.PositionsTable(cmd.OutOrStdout(), positions)

			if csvPath != "" {
				if err := export.WriteFile(csvPath, sess.Snapshot(), types.TopicPosition); err != nil {
					logger.ErrorWithErr(ctx, "Failed to export positions", err, "path", csvPath)
					return err
				}
				logger.Info(ctx, "Positions exported", "path", csvPath, "rows", len(positions))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Also write the positions table to this CSV file.")
	return cmd
}
