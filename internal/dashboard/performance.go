package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"ibkr-reporter/internal/sections"
)

// Timeframe selects the window of the performance series.
type Timeframe string

const (
	Timeframe3M  Timeframe = "3M"
	Timeframe6M  Timeframe = "6M"
	TimeframeYTD Timeframe = "YTD"
	Timeframe1Y  Timeframe = "1Y"
	TimeframeAll Timeframe = "All"
)

// ParseTimeframe accepts 3M, 6M, YTD, 1Y and All, case-insensitively.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range []Timeframe{Timeframe3M, Timeframe6M, TimeframeYTD, Timeframe1Y, TimeframeAll} {
		if strings.EqualFold(s, string(tf)) {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// WindowStart returns the first date of the window ending at last.
func WindowStart(last time.Time, tf Timeframe) time.Time {
	switch tf {
	case TimeframeYTD:
		return time.Date(last.Year(), time.January, 1, 0, 0, 0, 0, last.Location())
	case Timeframe3M:
		return addMonths(last, -3)
	case Timeframe6M:
		return addMonths(last, -6)
	case Timeframe1Y:
		return addMonths(last, -12)
	}
	return time.Time{}
}

// addMonths shifts t by n months, clamping to the last day of the target month.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return first.AddDate(0, 0, d-1)
}

// PerformanceOptions names the return columns of the benchmark comparison.
// An empty PortfolioColumn picks the first *Return column that is not the
// benchmark.
type PerformanceOptions struct {
	PortfolioColumn string
	BenchmarkColumn string
}

// Series holds cumulative returns from the start of a window. A return that
// could not be parsed is NaN and leaves the running product unchanged.
type Series struct {
	Timeframe       Timeframe
	Dates           []time.Time
	Portfolio       []float64
	Benchmark       []float64
	PortfolioColumn string
	BenchmarkColumn string
}

// Last returns the final cumulative returns of the window.
func (s Series) Last() (portfolio, benchmark float64) {
	portfolio, benchmark = math.NaN(), math.NaN()
	if n := len(s.Portfolio); n > 0 {
		portfolio = lastValid(s.Portfolio)
	}
	if n := len(s.Benchmark); n > 0 {
		benchmark = lastValid(s.Benchmark)
	}
	return portfolio, benchmark
}

func lastValid(xs []float64) float64 {
	for i := len(xs) - 1; i >= 0; i-- {
		if !math.IsNaN(xs[i]) {
			return xs[i]
		}
	}
	return math.NaN()
}

type datedRow struct {
	date time.Time
	row  []string
}

// Performance computes cumulative portfolio and benchmark returns, in
// percent per period in the file, over the chosen window.
func Performance(t *sections.Table, tf Timeframe, opts PerformanceOptions) (Series, error) {
	s := Series{Timeframe: tf}
	if t == nil {
		return s, ErrNoSection
	}
	dateIdx := t.Index("Date")
	if dateIdx < 0 {
		return s, missingColumn(PerformanceSection, "Date")
	}
	if opts.BenchmarkColumn == "" {
		opts.BenchmarkColumn = "BM1Return"
	}
	if opts.PortfolioColumn == "" {
		opts.PortfolioColumn = guessPortfolioColumn(t.Columns, opts.BenchmarkColumn)
	}
	portIdx := t.Index(opts.PortfolioColumn)
	benchIdx := t.Index(opts.BenchmarkColumn)
	if portIdx < 0 && benchIdx < 0 {
		return s, missingColumn(PerformanceSection, opts.PortfolioColumn+"/"+opts.BenchmarkColumn)
	}

	var rows []datedRow
	for _, row := range t.Rows {
		if d, ok := parseDate(row[dateIdx]); ok {
			rows = append(rows, datedRow{date: d, row: row})
		}
	}
	if len(rows) == 0 {
		return s, ErrNoData
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	start := WindowStart(rows[len(rows)-1].date, tf)
	if first := rows[0].date; start.Before(first) {
		start = first
	}

	var window []datedRow
	for _, r := range rows {
		if !r.date.Before(start) {
			window = append(window, r)
		}
	}
	for _, r := range window {
		s.Dates = append(s.Dates, r.date)
	}
	if portIdx >= 0 {
		s.PortfolioColumn = opts.PortfolioColumn
		s.Portfolio = cumulative(window, portIdx)
	}
	if benchIdx >= 0 {
		s.BenchmarkColumn = opts.BenchmarkColumn
		s.Benchmark = cumulative(window, benchIdx)
	}
	return s, nil
}

func guessPortfolioColumn(columns []string, benchmark string) string {
	for _, c := range columns {
		if c != benchmark && strings.HasSuffix(c, "Return") && !strings.HasPrefix(c, "BM") {
			return c
		}
	}
	return ""
}

// cumulative returns prod(1 + r/100) - 1 at every row.
func cumulative(rows []datedRow, idx int) []float64 {
	out := make([]float64, len(rows))
	growth := 1.0
	for i, r := range rows {
		v, ok := parseNumber(r.row[idx])
		if !ok {
			out[i] = math.NaN()
			continue
		}
		growth *= 1 + v/100
		out[i] = growth - 1
	}
	return out
}
