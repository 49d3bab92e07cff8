package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Session   SessionConfig   `yaml:"session"`
	Report    ReportConfig    `yaml:"report"`
	Email     EmailConfig     `yaml:"email"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	Account        string `yaml:"account"`
	PollSeconds    int    `yaml:"poll_seconds"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	InsecureTLS    bool   `yaml:"insecure_tls"`
}

type SessionConfig struct {
	WaitSeconds  int    `yaml:"wait_seconds"`
	BatchSize    int    `yaml:"batch_size"`
	FlushOnEnd   *bool  `yaml:"flush_on_end"`
	SummaryReqID int    `yaml:"summary_req_id"`
	SummaryGroup string `yaml:"summary_group"`
	SummaryTags  string `yaml:"summary_tags"`
	PnLReqID     int    `yaml:"pnl_req_id"`
	ModelCode    string `yaml:"model_code"`
}

// FlushesOnEnd reports whether trailing partial batches are merged when a
// request completes. Unset means true.
func (s SessionConfig) FlushesOnEnd() bool {
	return s.FlushOnEnd == nil || *s.FlushOnEnd
}

func (s SessionConfig) WaitTimeout() time.Duration {
	return time.Duration(s.WaitSeconds) * time.Second
}

type ReportConfig struct {
	Recipient  string `yaml:"recipient"`
	Symbol     string `yaml:"currency_symbol"`
	Portfolio  string `yaml:"portfolio"`
	Signature  string `yaml:"signature"`
	DateLayout string `yaml:"date_layout"`
}

type EmailConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	From           string   `yaml:"from"`
	To             []string `yaml:"to"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"-"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql, sqlite or empty to disable
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Driver != ""
}

type DashboardConfig struct {
	File            string `yaml:"file"`
	Timeframe       string `yaml:"timeframe"`
	PortfolioColumn string `yaml:"portfolio_column"`
	BenchmarkColumn string `yaml:"benchmark_column"`
	Currency        string `yaml:"currency"`
	Scenarios       int    `yaml:"scenarios"`
	ForecastDays    int    `yaml:"forecast_days"`
	Seed            int64  `yaml:"seed"`
}

var timeframes = map[string]bool{"3M": true, "6M": true, "YTD": true, "1Y": true, "All": true}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Gateway.BaseURL, "http://") && !strings.HasPrefix(c.Gateway.BaseURL, "https://") {
		return fmt.Errorf("gateway.base_url must be an http(s) URL, got '%s'", c.Gateway.BaseURL)
	}
	if c.Gateway.PollSeconds <= 0 {
		return fmt.Errorf("gateway.poll_seconds must be positive, got %d", c.Gateway.PollSeconds)
	}
	if c.Session.WaitSeconds <= 0 {
		return fmt.Errorf("session.wait_seconds must be positive, got %d", c.Session.WaitSeconds)
	}
	if c.Session.BatchSize < 0 {
		return fmt.Errorf("session.batch_size cannot be negative, got %d", c.Session.BatchSize)
	}
	if c.Session.SummaryReqID == c.Session.PnLReqID {
		return errors.New("session.summary_req_id and session.pnl_req_id must differ")
	}
	if c.Email.Port <= 0 || c.Email.Port > 65535 {
		return fmt.Errorf("email.port must be between 1-65535, got %d", c.Email.Port)
	}
	switch c.Database.Driver {
	case "", "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be 'mysql', 'sqlite' or empty, got '%s'", c.Database.Driver)
	}
	if !timeframes[c.Dashboard.Timeframe] {
		return fmt.Errorf("dashboard.timeframe must be one of 3M, 6M, YTD, 1Y, All, got '%s'", c.Dashboard.Timeframe)
	}
	if c.Dashboard.Scenarios <= 0 || c.Dashboard.ForecastDays <= 0 {
		return errors.New("dashboard.scenarios and dashboard.forecast_days must be positive")
	}
	return nil
}

// LoadConfig reads a YAML config, applies defaults and environment overrides
// and validates the result. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = "https://localhost:5000/v1/api"
	}
	if c.Gateway.PollSeconds == 0 {
		c.Gateway.PollSeconds = 5
	}
	if c.Gateway.TimeoutSeconds == 0 {
		c.Gateway.TimeoutSeconds = 30
	}

	if c.Session.WaitSeconds == 0 {
		c.Session.WaitSeconds = 30
	}
	if c.Session.BatchSize == 0 {
		c.Session.BatchSize = 5
	}
	if c.Session.SummaryReqID == 0 {
		c.Session.SummaryReqID = 1
	}
	if c.Session.SummaryGroup == "" {
		c.Session.SummaryGroup = "All"
	}
	if c.Session.SummaryTags == "" {
		c.Session.SummaryTags = "$LEDGER:BASE"
	}
	if c.Session.PnLReqID == 0 {
		c.Session.PnLReqID = 2
	}

	if c.Report.Recipient == "" {
		c.Report.Recipient = "Casper"
	}
	if c.Report.Symbol == "" {
		c.Report.Symbol = "€"
	}
	if c.Report.Portfolio == "" {
		c.Report.Portfolio = "IBKR Portfolio"
	}
	if c.Report.Signature == "" {
		c.Report.Signature = "Interactive Brokers API"
	}
	if c.Report.DateLayout == "" {
		c.Report.DateLayout = "2006-01-02"
	}

	if c.Email.Host == "" {
		c.Email.Host = "smtp.gmail.com"
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.Email.TimeoutSeconds == 0 {
		c.Email.TimeoutSeconds = 30
	}

	if c.Database.Driver == "mysql" && c.Database.Port == 0 {
		c.Database.Port = 3306
	}

	if c.Dashboard.Timeframe == "" {
		c.Dashboard.Timeframe = "YTD"
	}
	if c.Dashboard.BenchmarkColumn == "" {
		c.Dashboard.BenchmarkColumn = "BM1Return"
	}
	if c.Dashboard.Currency == "" {
		c.Dashboard.Currency = "EUR"
	}
	if c.Dashboard.Scenarios == 0 {
		c.Dashboard.Scenarios = 1500
	}
	if c.Dashboard.ForecastDays == 0 {
		c.Dashboard.ForecastDays = 252
	}
}

// applyEnv copies secrets and per-machine settings from the environment.
// Database variables keep their lower case names (host_db, user_db, ...).
func (c *Config) applyEnv() {
	setString(&c.Gateway.Account, "IBKR_ACCOUNT")
	setString(&c.Gateway.BaseURL, "IBKR_GATEWAY_URL")

	setString(&c.Email.From, "GMAIL_ADDRESS")
	setString(&c.Email.Password, "GMAIL_PASSWORD")
	if v := os.Getenv("RECEIVING_MAIL_ADDRESS"); v != "" {
		c.Email.To = splitList(v)
	}

	setString(&c.Database.DSN, "DB_DSN")
	setString(&c.Database.Host, "host_db")
	setString(&c.Database.User, "user_db")
	setString(&c.Database.Password, "password_db")
	setString(&c.Database.Name, "database_db")
	if v := os.Getenv("port_db"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}

	if c.Dashboard.PortfolioColumn == "" && c.Gateway.Account != "" {
		c.Dashboard.PortfolioColumn = c.Gateway.Account + "Return"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
