package ibkr

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"sync"
	"time"

	"ibkr-reporter/internal/api"
	"ibkr-reporter/internal/broker"
	"ibkr-reporter/internal/interfaces"
	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/types"
)

const (
	DefaultBaseURL      = "https://localhost:5000/v1/api"
	DefaultPollInterval = 5 * time.Second
	defaultEventBuffer  = 256
)

// ErrNotAuthenticated is returned by Connect when the gateway session is not
// logged in to the brokerage.
var ErrNotAuthenticated = errors.New("gateway session not authenticated")

// Config holds the connection settings of a Client Portal gateway.
type Config struct {
	BaseURL      string
	Account      string
	PollInterval time.Duration
	Timeout      time.Duration
	InsecureTLS  bool
	EventBuffer  int
}

// Gateway talks to the IBKR Client Portal Web API. Every request starts a
// poller that pushes rows onto one event channel, follows the first complete
// snapshot with an End event and keeps refreshing until cancelled.
type Gateway struct {
	cfg    Config
	client *api.Client
	events chan types.Event
	reqs   *broker.Registry

	mu        sync.Mutex
	connected bool
	closed    bool
	account   string
	base      context.Context
	stop      context.CancelFunc
	wg        sync.WaitGroup
}

var _ interfaces.Gateway = (*Gateway)(nil)

// New builds a Gateway. Nothing is contacted until Connect.
func New(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	jar, _ := cookiejar.New(nil)
	opts := []api.ClientOption{
		api.WithBaseURL(cfg.BaseURL),
		api.WithTimeout(cfg.Timeout),
		api.WithInsecureTLS(cfg.InsecureTLS),
		api.WithCookieJar(jar),
		api.WithLogging(true),
	}
	for k, v := range api.JSONHeaders() {
		opts = append(opts, api.WithHeader(k, v))
	}

	return &Gateway{
		cfg:    cfg,
		client: api.NewClient(opts...),
		events: make(chan types.Event, cfg.EventBuffer),
		reqs:   broker.NewRegistry(),
	}
}

// Connect verifies that the gateway is reachable and authenticated and
// resolves the account when none was configured.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return nil
	}
	if g.closed {
		g.mu.Unlock()
		return errors.New("gateway already disconnected")
	}
	g.mu.Unlock()

	resp, err := g.client.POST(ctx, "/iserver/auth/status", nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", g.cfg.BaseURL, err)
	}
	var status authStatus
	if err := resp.ParseJSON(&status); err != nil {
		return fmt.Errorf("connect to %s: %w", g.cfg.BaseURL, err)
	}
	if !status.Authenticated {
		return fmt.Errorf("connect to %s: %w", g.cfg.BaseURL, ErrNotAuthenticated)
	}

	account := g.cfg.Account
	if account == "" {
		account, err = g.firstAccount(ctx)
		if err != nil {
			return err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.account = account
	g.base, g.stop = context.WithCancel(context.WithoutCancel(ctx))
	g.connected = true
	logger.Info(ctx, "Connected to gateway", "base_url", g.cfg.BaseURL, "account", account, "competing", status.Competing)
	return nil
}

func (g *Gateway) firstAccount(ctx context.Context) (string, error) {
	resp, err := g.client.GET(ctx, "/portfolio/accounts")
	if err != nil {
		return "", fmt.Errorf("list accounts: %w", err)
	}
	var accounts []portfolioAccount
	if err := resp.ParseJSON(&accounts); err != nil {
		return "", fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return "", errors.New("list accounts: gateway returned no accounts")
	}
	return accounts[0].AccountID, nil
}

// Disconnect stops every poller and closes the event channel.
func (g *Gateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	wasConnected := g.connected
	g.connected = false
	stop := g.stop
	g.mu.Unlock()

	n := g.reqs.CancelAll()
	if stop != nil {
		stop()
	}
	g.wg.Wait()
	close(g.events)

	if wasConnected {
		logger.Info(ctx, "Disconnected from gateway", "cancelled_requests", n)
	}
	return nil
}

func (g *Gateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *Gateway) Events() <-chan types.Event {
	return g.events
}

// Account returns the account the gateway reports on.
func (g *Gateway) Account() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.account
}

func (g *Gateway) ReqAccountSummary(ctx context.Context, reqID int, group, tags string) error {
	sel, err := parseTags(tags)
	if err != nil {
		return err
	}
	return g.start(ctx, broker.RequestKey{Topic: types.TopicAccountSummary, ReqID: reqID}, func(ctx context.Context, account string) ([]types.Row, error) {
		return g.fetchSummary(ctx, account, reqID, sel)
	})
}

func (g *Gateway) CancelAccountSummary(ctx context.Context, reqID int) error {
	g.cancel(ctx, broker.RequestKey{Topic: types.TopicAccountSummary, ReqID: reqID})
	return nil
}

func (g *Gateway) ReqPnL(ctx context.Context, reqID int, account, modelCode string) error {
	return g.start(ctx, broker.RequestKey{Topic: types.TopicPnL, ReqID: reqID}, func(ctx context.Context, defaultAccount string) ([]types.Row, error) {
		acct := account
		if acct == "" {
			acct = defaultAccount
		}
		return g.fetchPnL(ctx, acct, modelCode, reqID)
	})
}

func (g *Gateway) CancelPnL(ctx context.Context, reqID int) error {
	g.cancel(ctx, broker.RequestKey{Topic: types.TopicPnL, ReqID: reqID})
	return nil
}

func (g *Gateway) ReqPositions(ctx context.Context) error {
	return g.start(ctx, broker.RequestKey{Topic: types.TopicPosition, ReqID: types.NoReqID}, g.fetchPositions)
}

func (g *Gateway) CancelPositions(ctx context.Context) error {
	g.cancel(ctx, broker.RequestKey{Topic: types.TopicPosition, ReqID: types.NoReqID})
	return nil
}

type fetchFunc func(ctx context.Context, account string) ([]types.Row, error)

func (g *Gateway) start(ctx context.Context, key broker.RequestKey, fetch fetchFunc) error {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return broker.ErrNotConnected
	}
	reqCtx, cancel := context.WithCancel(g.base)
	account := g.account
	g.mu.Unlock()

	if err := g.reqs.Add(key, cancel); err != nil {
		cancel()
		return err
	}

	logger.Request(ctx, string(key.Topic), key.ReqID, "requested", "account", account)
	g.wg.Add(1)
	go g.poll(reqCtx, key, account, fetch)
	return nil
}

func (g *Gateway) cancel(ctx context.Context, key broker.RequestKey) {
	if g.reqs.Cancel(key) {
		logger.Request(ctx, string(key.Topic), key.ReqID, "cancelled")
	}
}

func (g *Gateway) poll(ctx context.Context, key broker.RequestKey, account string, fetch fetchFunc) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	ended := false
	for {
		rows, err := fetch(ctx, account)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.Warn(ctx, "Gateway poll failed", "request", key.String(), "error", err)
		default:
			for _, row := range rows {
				if !g.emit(ctx, row) {
					return
				}
			}
			if !ended {
				if !g.emit(ctx, types.End{Topic: key.Topic, ReqID: key.ReqID}) {
					return
				}
				ended = true
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (g *Gateway) emit(ctx context.Context, ev types.Event) bool {
	select {
	case g.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
