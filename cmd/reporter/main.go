package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/trace"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "reporter",
	Short: "Daily IBKR portfolio report and statement dashboard",
	Long: `reporter polls the IBKR Client Portal gateway for account summary, P&L and
positions, mails a daily portfolio overview and renders dashboards from
exported activity statements.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeSystem(envFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = logger.Shutdown(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", trace.ServiceName, trace.ServiceVersion)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config. A missing default file falls back to built-in defaults.")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file with credentials, defaults to .env when present.")

	rootCmd.AddCommand(newDailyCmd(), newPositionsCmd(), newDashboardCmd(), newDBCmd(), versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
