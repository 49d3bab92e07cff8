package dashboard

import (
	"sort"
	"strings"

	"ibkr-reporter/internal/sections"
)

// Holding is one open position with its share of the total value.
type Holding struct {
	Name   string
	Symbol string
	Value  float64
	Weight float64
}

// Holdings reads the open position summary, drops subtotal rows and weights
// every position by value, largest first.
func Holdings(t *sections.Table) ([]Holding, error) {
	if t == nil {
		return nil, ErrNoSection
	}
	valueIdx := t.Index("Value")
	if valueIdx < 0 {
		return nil, missingColumn(HoldingsSection, "Value")
	}
	dateIdx := t.Index("Date")
	symbolIdx := t.Index("Symbol")
	nameIdx := t.Index("Description")
	if nameIdx < 0 {
		nameIdx = symbolIdx
	}

	var out []Holding
	total := 0.0
	for _, row := range t.Rows {
		if dateIdx >= 0 && strings.Contains(row[dateIdx], "Total") {
			continue
		}
		v, ok := parseNumber(row[valueIdx])
		if !ok {
			continue
		}
		h := Holding{Value: v}
		if symbolIdx >= 0 {
			h.Symbol = row[symbolIdx]
		}
		if nameIdx >= 0 {
			h.Name = row[nameIdx]
		}
		total += v
		out = append(out, h)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}

	if total != 0 {
		for i := range out {
			out[i].Weight = out[i].Value / total
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out, nil
}

// TotalValue sums the value of all holdings.
func TotalValue(hs []Holding) float64 {
	total := 0.0
	for _, h := range hs {
		total += h.Value
	}
	return total
}
