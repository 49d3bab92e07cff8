package dashboard

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/Rhymond/go-money"
	"github.com/olekukonko/tablewriter"
)

// View is everything the text dashboard shows. Nil or empty parts are skipped.
type View struct {
	Currency   string
	Holdings   []Holding
	Series     *Series
	Risk       *RiskMetrics
	Projection *Projection
}

// Forecast days shown in the projection table.
var projectionHorizons = []int{1, 21, 63, 126, 252}

// RenderText writes the dashboard as plain text tables.
func RenderText(w io.Writer, v View) {
	if len(v.Holdings) > 0 {
		fmt.Fprintln(w, "Holdings")
		rows := make([][]string, 0, len(v.Holdings))
		for _, h := range v.Holdings {
			rows = append(rows, []string{h.Name, h.Symbol, formatMoney(h.Value, v.Currency), percent(h.Weight)})
		}
		writeTable(w, []string{"Name", "Symbol", "Value", "Weight"}, rows)
		fmt.Fprintf(w, "Total: %s\n\n", formatMoney(TotalValue(v.Holdings), v.Currency))
	}

	if s := v.Series; s != nil && len(s.Dates) > 0 {
		fmt.Fprintf(w, "Performance (%s, %s to %s)\n", s.Timeframe,
			s.Dates[0].Format("2006-01-02"), s.Dates[len(s.Dates)-1].Format("2006-01-02"))
		port, bench := s.Last()
		var rows [][]string
		if s.PortfolioColumn != "" {
			rows = append(rows, []string{s.PortfolioColumn, percent(port)})
		}
		if s.BenchmarkColumn != "" {
			rows = append(rows, []string{s.BenchmarkColumn, percent(bench)})
		}
		writeTable(w, []string{"Series", "Cumulative Return"}, rows)
		fmt.Fprintln(w)
	}

	if r := v.Risk; r != nil {
		fmt.Fprintln(w, "Summary Statistics")
		writeTable(w, []string{"Metric", "Value"}, [][]string{
			{"Mean Return", r.MeanReturn},
			{"Volatility", r.Volatility},
			{"Sharpe Ratio", r.Sharpe},
			{"Beta", r.Beta},
		})
		fmt.Fprintln(w)
	}

	if p := v.Projection; p != nil && len(p.Dates) > 0 {
		fmt.Fprintf(w, "NAV Projection (%d days, last NAV %.4f)\n", len(p.Dates), p.LastNAV)
		header := []string{"Day", "Date"}
		for _, q := range Percentiles {
			header = append(header, "P"+strconv.FormatFloat(q, 'f', -1, 64))
		}
		var rows [][]string
		for _, day := range projectionHorizons {
			if day > len(p.Dates) {
				break
			}
			row := []string{strconv.Itoa(day), p.Dates[day-1].Format("2006-01-02")}
			for i := range Percentiles {
				row = append(row, fmt.Sprintf("%.4f", p.Bands[i][day-1]))
			}
			rows = append(rows, row)
		}
		writeTable(w, header, rows)
	}
}

func writeTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

func formatMoney(v float64, currency string) string {
	if currency == "" {
		currency = money.EUR
	}
	return money.NewFromFloat(v, currency).Display()
}

func percent(v float64) string {
	if math.IsNaN(v) {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f%%", v*100)
}
