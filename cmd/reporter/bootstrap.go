package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"ibkr-reporter/internal/accumulator"
	"ibkr-reporter/internal/broker/brokerobs"
	"ibkr-reporter/internal/broker/ibkr"
	"ibkr-reporter/internal/interfaces"
	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/mailer"
	"ibkr-reporter/internal/mailer/mailerobs"
	"ibkr-reporter/internal/runlog"
	"ibkr-reporter/internal/session"
	"ibkr-reporter/internal/store"
)

const defaultConfigPath = "config.yaml"

// initializeSystem loads the environment file and initializes logger and tracer
func initializeSystem(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads the configuration. The default path is optional.
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			logger.Debug(ctx, "No config file, using defaults", "path", path)
			path = ""
		}
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// openSession connects the gateway, wrapped with observability, and starts
// the accumulator consuming its events
func openSession(ctx context.Context, cfg *store.Config) (*session.Session, *ibkr.Gateway, error) {
	gw := ibkr.New(ibkr.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		Account:      cfg.Gateway.Account,
		PollInterval: time.Duration(cfg.Gateway.PollSeconds) * time.Second,
		Timeout:      time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
		InsecureTLS:  cfg.Gateway.InsecureTLS,
	})
	if cfg.Gateway.InsecureTLS {
		logger.Warn(ctx, "TLS verification disabled for the gateway", "base_url", cfg.Gateway.BaseURL)
	}

	acc := accumulator.New(accumulator.Options{
		BatchSize:  cfg.Session.BatchSize,
		FlushOnEnd: cfg.Session.FlushesOnEnd(),
	})

	sess, err := session.Open(ctx, brokerobs.Wrap(gw), acc, session.Options{WaitTimeout: cfg.Session.WaitTimeout()})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to connect to gateway", err, "base_url", cfg.Gateway.BaseURL)
		return nil, nil, err
	}
	logger.Info(ctx, "Connected to gateway", "account", gw.Account())
	return sess, gw, nil
}

// closeSession disconnects with a bounded grace period
func closeSession(ctx context.Context, sess *session.Session) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := sess.Close(closeCtx); err != nil {
		logger.Warn(ctx, "Gateway disconnect failed", "error", err)
	}
}

// compressOldRuns compresses archived runs if retention is configured
func compressOldRuns(ctx context.Context) {
	v := os.Getenv("REPORT_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Ignoring invalid REPORT_LOG_RETENTION_DAYS", "value", v)
		return
	}
	compressed, err := runlog.CompressOlder(n)
	if err != nil {
		logger.Warn(ctx, "Failed to compress old runs", "error", err)
		return
	}
	if compressed > 0 {
		logger.Info(ctx, "Compressed archived runs", "files", compressed)
	}
}

// newSender returns the SMTP sender wrapped with observability
func newSender(cfg store.EmailConfig) interfaces.Sender {
	return mailerobs.Wrap(&mailer.SMTPSender{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		To:       cfg.To,
		Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
}
