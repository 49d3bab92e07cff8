// Package dashboard derives portfolio statistics from the sections of a
// broker activity statement.
package dashboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Section names of the statement this package reads.
const (
	HoldingsSection    = "Open Position Summary"
	PerformanceSection = "Time Period Benchmark Comparison"
	RiskSection        = "Risk Measures Benchmark Comparison"
)

var (
	ErrNoSection     = errors.New("section not found")
	ErrMissingColumn = errors.New("column not found")
	ErrNoData        = errors.New("no usable rows")
)

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006-01-02 15:04:05",
	"2006-01-02, 15:04:05",
	"01/02/2006",
	"1/2/2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "--" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func missingColumn(section, column string) error {
	return fmt.Errorf("%w: %s in %s", ErrMissingColumn, column, section)
}
