package main

import (
	"errors"

	"github.com/spf13/cobra"

	"ibkr-reporter/internal/dashboard"
	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/sections"
)

var errMissingFile = errors.New("no statement file: pass --file or set dashboard.file")

func newDashboardCmd() *cobra.Command {
	var (
		file      string
		timeframe string
		xlsxPath  string
		noProject bool
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize an exported activity statement",
		Long: `dashboard parses a multi-section activity statement CSV and prints holdings
weights, cumulative performance against the benchmark, risk measures and a
Monte Carlo NAV projection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			dc := cfg.Dashboard
			if file != "" {
				dc.File = file
			}
			if timeframe != "" {
				dc.Timeframe = timeframe
			}
			if dc.File == "" {
				return errMissingFile
			}
			tf, err := dashboard.ParseTimeframe(dc.Timeframe)
			if err != nil {
				return err
			}

			secs, err := sections.Load(dc.File)
			if err != nil {
				logger.ErrorWithErr(ctx, "Failed to read statement", err, "file", dc.File)
				return err
			}
			logger.Info(ctx, "Statement parsed", "file", dc.File, "sections", secs.Len())

			view := dashboard.View{Currency: dc.Currency}

			if t, ok := secs.Get(dashboard.HoldingsSection); ok {
				if view.Holdings, err = dashboard.Holdings(t); err != nil {
					logger.Warn(ctx, "Holdings unavailable", "error", err)
				}
			}

			perf, _ := secs.Get(dashboard.PerformanceSection)
			if perf != nil {
				opts := dashboard.PerformanceOptions{PortfolioColumn: dc.PortfolioColumn, BenchmarkColumn: dc.BenchmarkColumn}
				if s, err := dashboard.Performance(perf, tf, opts); err != nil {
					logger.Warn(ctx, "Performance unavailable", "error", err)
				} else {
					view.Series = &s
				}
			}

			risk, _ := secs.Get(dashboard.RiskSection)
			metrics := dashboard.Risk(risk)
			view.Risk = &metrics

			if perf != nil && !noProject {
				view.Projection = project(cmd, perf, dc.PortfolioColumn, dashboard.SimulationOptions{
					Scenarios: dc.Scenarios,
					Days:      dc.ForecastDays,
					Seed:      dc.Seed,
				})
			}

			dashboard.RenderText(cmd.OutOrStdout(), view)

			if xlsxPath != "" {
				if err := dashboard.ExportWorkbook(xlsxPath, secs); err != nil {
					logger.ErrorWithErr(ctx, "Failed to write workbook", err, "path", xlsxPath)
					return err
				}
				logger.Info(ctx, "Workbook written", "path", xlsxPath, "sheets", secs.Len())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Activity statement CSV, overrides dashboard.file.")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "Performance window: 3M, 6M, YTD, 1Y or All.")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write every section to this xlsx workbook.")
	cmd.Flags().BoolVar(&noProject, "no-projection", false, "Skip the Monte Carlo projection.")
	return cmd
}

func project(cmd *cobra.Command, perf *sections.Table, column string, opts dashboard.SimulationOptions) *dashboard.Projection {
	ctx := cmd.Context()
	returns, err := dashboard.ReturnsFrom(perf, column)
	if err != nil {
		logger.Warn(ctx, "Projection unavailable", "error", err)
		return nil
	}
	timer := logger.StartOperation(ctx, "dashboard.Simulate", "scenarios", opts.Scenarios, "days", opts.Days, "returns", len(returns.Values))
	p, err := dashboard.Simulate(returns, opts)
	if err != nil {
		timer.EndWithError(err)
		return nil
	}
	timer.End()
	return &p
}
