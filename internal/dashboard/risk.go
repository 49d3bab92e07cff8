package dashboard

import (
	"fmt"

	"ibkr-reporter/internal/sections"
)

// NotAvailable stands in for a metric that is missing or not numeric.
const NotAvailable = "N/A"

// RiskMetrics are display strings for the headline risk statistics.
type RiskMetrics struct {
	MeanReturn string
	Volatility string
	Sharpe     string
	Beta       string
}

type metricFormat int

const (
	formatPercent metricFormat = iota
	formatVolatility
	formatFloat
)

// Risk reads the risk measures section. Beta sits in the third column, the
// other measures in the fifth, counted after all-blank columns are dropped.
func Risk(t *sections.Table) RiskMetrics {
	m := RiskMetrics{MeanReturn: NotAvailable, Volatility: NotAvailable, Sharpe: NotAvailable, Beta: NotAvailable}
	if t == nil {
		return m
	}
	t = t.DropEmptyColumns()

	m.MeanReturn = metric(t, "Mean Return:", 4, formatPercent)
	m.Volatility = metric(t, "Standard Deviation:", 4, formatVolatility)
	m.Sharpe = metric(t, "Sharpe Ratio:", 4, formatFloat)
	m.Beta = metric(t, "Beta:", 2, formatFloat)
	return m
}

func metric(t *sections.Table, label string, col int, format metricFormat) string {
	for _, row := range t.Rows {
		if len(row) == 0 || row[0] != label {
			continue
		}
		if col >= len(row) {
			return NotAvailable
		}
		v, ok := parseNumber(row[col])
		if !ok {
			return NotAvailable
		}
		switch format {
		case formatPercent:
			return fmt.Sprintf("%.2f%%", v*100)
		case formatVolatility:
			return fmt.Sprintf("%.2f%%", (v-1)*100)
		default:
			return fmt.Sprintf("%.2f", v)
		}
	}
	return NotAvailable
}
