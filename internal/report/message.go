package report

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Template holds the configurable parts of the daily message.
type Template struct {
	Recipient  string
	Symbol     string
	Portfolio  string
	Signature  string
	DateLayout string
	Places     int32
}

// DefaultTemplate returns the stock greeting, currency and signature.
func DefaultTemplate() Template {
	return Template{
		Recipient:  "Casper",
		Symbol:     "€",
		Portfolio:  "IBKR Portfolio",
		Signature:  "Interactive Brokers API",
		DateLayout: "2006-01-02",
		Places:     1,
	}
}

// Message is a composed plain text mail.
type Message struct {
	Subject string
	Body    string
}

// Compose renders the daily figures. Amounts are rounded on their float64
// value, so 10.05 prints as 10.1 and 10.35 as 10.3.
func Compose(d Daily, tmpl Template) Message {
	def := DefaultTemplate()
	if tmpl.Symbol == "" {
		tmpl.Symbol = def.Symbol
	}
	if tmpl.Portfolio == "" {
		tmpl.Portfolio = def.Portfolio
	}
	if tmpl.DateLayout == "" {
		tmpl.DateLayout = def.DateLayout
	}
	if tmpl.Places <= 0 {
		tmpl.Places = def.Places
	}

	amount := func(v decimal.Decimal) string {
		return tmpl.Symbol + strconv.FormatFloat(v.InexactFloat64(), 'f', int(tmpl.Places), 64)
	}

	subject := fmt.Sprintf("Portfolio overview of %s on %s", tmpl.Portfolio, d.Date.Format(tmpl.DateLayout))
	body := fmt.Sprintf("Hello %s,\n\n"+
		"Your current portfolio value is %s, with a daily PnL of %s.\n"+
		"The current overall unrealized PnL of the portfolio is %s. \n"+
		"Hopefully you have a good day! \n"+
		"Kind regards,\n\n%s",
		tmpl.Recipient,
		amount(d.PortfolioValue),
		amount(d.DailyPnL),
		amount(d.UnrealizedPnL),
		tmpl.Signature,
	)
	return Message{Subject: subject, Body: body}
}
