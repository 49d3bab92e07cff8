package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"ibkr-reporter/internal/logger"
)

// ErrNoDatabase is returned by Connect when no driver is configured.
var ErrNoDatabase = errors.New("no database configured")

const schema = `CREATE TABLE IF NOT EXISTS daily_reports (
	run_id          VARCHAR(36) NOT NULL PRIMARY KEY,
	report_date     VARCHAR(10) NOT NULL,
	account         VARCHAR(32) NOT NULL,
	currency        VARCHAR(8)  NOT NULL,
	portfolio_value VARCHAR(40) NOT NULL,
	daily_pnl       VARCHAR(40) NOT NULL,
	unrealized_pnl  VARCHAR(40) NOT NULL,
	delivered       BOOLEAN     NOT NULL,
	created_at      VARCHAR(40) NOT NULL
)`

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DailyRecord is one persisted daily report run.
type DailyRecord struct {
	RunID          string
	ReportDate     time.Time
	Account        string
	Currency       string
	PortfolioValue decimal.Decimal
	DailyPnL       decimal.Decimal
	UnrealizedPnL  decimal.Decimal
	Delivered      bool
	CreatedAt      time.Time
}

// DataSourceName returns the driver specific connection string.
func (d DatabaseConfig) DataSourceName() (string, error) {
	if d.DSN != "" {
		return d.DSN, nil
	}
	switch d.Driver {
	case "mysql":
		if d.Host == "" || d.User == "" || d.Name == "" {
			return "", errors.New("mysql needs host_db, user_db and database_db")
		}
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.DBName = d.Name
		cfg.Timeout = 10 * time.Second
		return cfg.FormatDSN(), nil
	case "sqlite":
		if d.Path == "" {
			return "", errors.New("sqlite needs database.path")
		}
		return d.Path, nil
	}
	return "", ErrNoDatabase
}

// Connect opens and pings the configured database. Failures are logged and
// returned; callers must check the error before using the handle.
func Connect(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	if !cfg.Enabled() {
		return nil, ErrNoDatabase
	}
	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" && cfg.DSN == "" {
		if _, statErr := os.Stat(cfg.Path); errors.Is(statErr, os.ErrNotExist) {
			logger.Info(ctx, "Database file not found, creating a new one", "path", cfg.Path)
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		logger.ErrorWithErr(ctx, "Database open failed", err, "driver", cfg.Driver)
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.ErrorWithErr(ctx, "Database connection failed", err, "driver", cfg.Driver)
		return nil, fmt.Errorf("connect %s database: %w", cfg.Driver, err)
	}

	logger.Info(ctx, "Connected to database", "driver", cfg.Driver)
	return db, nil
}

// Disconnect closes db. A nil handle is ignored.
func Disconnect(ctx context.Context, db *sql.DB) {
	if db == nil {
		logger.Debug(ctx, "No database connection to close")
		return
	}
	if err := db.Close(); err != nil {
		logger.Warn(ctx, "Closing database failed", "error", err)
		return
	}
	logger.Debug(ctx, "Closed database connection")
}

// EnsureSchema creates the daily_reports table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create daily_reports: %w", err)
	}
	return nil
}

// SaveDailyReport inserts one record, assigning a run id and creation time
// when they are missing.
func SaveDailyReport(ctx context.Context, db *sql.DB, r DailyRecord) (DailyRecord, error) {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO daily_reports (run_id, report_date, account, currency, portfolio_value, daily_pnl, unrealized_pnl, delivered, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.ReportDate.Format(time.DateOnly),
		r.Account,
		r.Currency,
		r.PortfolioValue.String(),
		r.DailyPnL.String(),
		r.UnrealizedPnL.String(),
		r.Delivered,
		r.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return r, fmt.Errorf("insert daily report: %w", err)
	}
	return r, nil
}

// ListDailyReports returns the most recent records first.
func ListDailyReports(ctx context.Context, db *sql.DB, limit int) ([]DailyRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, report_date, account, currency, portfolio_value, daily_pnl, unrealized_pnl, delivered, created_at
		 FROM daily_reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query daily reports: %w", err)
	}
	defer rows.Close()

	var out []DailyRecord
	for rows.Next() {
		var (
			r                          DailyRecord
			reportDate, createdAt      string
			value, dailyPnL, unrealPnL string
		)
		if err := rows.Scan(&r.RunID, &reportDate, &r.Account, &r.Currency, &value, &dailyPnL, &unrealPnL, &r.Delivered, &createdAt); err != nil {
			return nil, fmt.Errorf("scan daily report: %w", err)
		}
		if r.ReportDate, err = time.Parse(time.DateOnly, reportDate); err != nil {
			return nil, fmt.Errorf("parse report_date %q: %w", reportDate, err)
		}
		if r.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		if r.PortfolioValue, err = decimal.NewFromString(value); err != nil {
			return nil, err
		}
		if r.DailyPnL, err = decimal.NewFromString(dailyPnL); err != nil {
			return nil, err
		}
		if r.UnrealizedPnL, err = decimal.NewFromString(unrealPnL); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
