// Package types holds the gateway rows shared across packages.
package types

import (
	"strconv"
	"time"
)

// Topic identifies one of the update streams the brokerage gateway delivers.
type Topic string

const (
	TopicAccountSummary Topic = "account_summary"
	TopicPnL            Topic = "pnl"
	TopicPosition       Topic = "position"
)

// NoReqID is used by streams that are not keyed by a request id (positions).
const NoReqID = -1

// Topics lists every data topic in a stable order.
func Topics() []Topic {
	return []Topic{TopicAccountSummary, TopicPnL, TopicPosition}
}

// Columns returns the fixed column names of a topic table.
func Columns(topic Topic) []string {
	switch topic {
	case TopicAccountSummary:
		return []string{"Date", "reqId", "Account", "Tag", "Value", "Currency"}
	case TopicPnL:
		return []string{"Date", "reqId", "DailyPnL", "UnrealizedPnL", "RealizedPnL"}
	case TopicPosition:
		return []string{"Date", "account", "contract", "position", "avgCost"}
	}
	return nil
}

// Event is anything the gateway pushes onto its event channel.
type Event interface {
	EventTopic() Topic
}

// Row is a data event that ends up as one row of a topic table.
type Row interface {
	Event
	CapturedAt() time.Time
	Stamp(t time.Time) Row
	Cells() []string
}

// AccountSummary is one tag/value pair of an account summary request.
type AccountSummary struct {
	Date     time.Time `json:"date"`
	ReqID    int       `json:"req_id"`
	Account  string    `json:"account"`
	Tag      string    `json:"tag"`
	Value    string    `json:"value"`
	Currency string    `json:"currency"`
}

func (e AccountSummary) EventTopic() Topic     { return TopicAccountSummary }
func (e AccountSummary) CapturedAt() time.Time { return e.Date }
func (e AccountSummary) Stamp(t time.Time) Row { e.Date = t; return e }
func (e AccountSummary) Cells() []string {
	return []string{formatDate(e.Date), strconv.Itoa(e.ReqID), e.Account, e.Tag, e.Value, e.Currency}
}

// PnL is one profit and loss update for an account.
type PnL struct {
	Date          time.Time `json:"date"`
	ReqID         int       `json:"req_id"`
	DailyPnL      float64   `json:"daily_pnl"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	RealizedPnL   float64   `json:"realized_pnl"`
}

func (e PnL) EventTopic() Topic     { return TopicPnL }
func (e PnL) CapturedAt() time.Time { return e.Date }
func (e PnL) Stamp(t time.Time) Row { e.Date = t; return e }
func (e PnL) Cells() []string {
	return []string{formatDate(e.Date), strconv.Itoa(e.ReqID), formatFloat(e.DailyPnL), formatFloat(e.UnrealizedPnL), formatFloat(e.RealizedPnL)}
}

// Contract describes the instrument a position is held in.
type Contract struct {
	ConID    int64  `json:"conid"`
	Symbol   string `json:"symbol"`
	SecType  string `json:"sec_type"`
	Currency string `json:"currency"`
}

func (c Contract) String() string {
	if c.Symbol == "" {
		return strconv.FormatInt(c.ConID, 10)
	}
	if c.SecType == "" {
		return c.Symbol
	}
	return c.Symbol + " " + c.SecType
}

// Position is one holding reported by a positions request.
type Position struct {
	Date     time.Time `json:"date"`
	Account  string    `json:"account"`
	Contract Contract  `json:"contract"`
	Position float64   `json:"position"`
	AvgCost  float64   `json:"avg_cost"`
}

func (e Position) EventTopic() Topic     { return TopicPosition }
func (e Position) CapturedAt() time.Time { return e.Date }
func (e Position) Stamp(t time.Time) Row { e.Date = t; return e }
func (e Position) Cells() []string {
	return []string{formatDate(e.Date), e.Account, e.Contract.String(), formatFloat(e.Position), formatFloat(e.AvgCost)}
}

// End signals that the gateway delivered a complete snapshot for a request.
type End struct {
	Topic Topic
	ReqID int
}

func (e End) EventTopic() Topic { return e.Topic }

// Table is a column-labelled, string-valued view of a topic table.
type Table struct {
	Topic   Topic
	Columns []string
	Rows    [][]string
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05.000")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
