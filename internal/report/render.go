package report

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"ibkr-reporter/internal/types"
)

// RenderTable writes a topic table as an aligned text table.
func RenderTable(w io.Writer, t types.Table) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(t.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(t.Rows)
	table.Render()
}

// PositionsTable writes the positions table.
func PositionsTable(w io.Writer, positions []types.Position) {
	t := types.Table{Topic: types.TopicPosition, Columns: types.Columns(types.TopicPosition)}
	for _, p := range positions {
		t.Rows = append(t.Rows, p.Cells())
	}
	RenderTable(w, t)
}

// SummaryTable writes the account summary table.
func SummaryTable(w io.Writer, summary []types.AccountSummary) {
	t := types.Table{Topic: types.TopicAccountSummary, Columns: types.Columns(types.TopicAccountSummary)}
	for _, s := range summary {
		t.Rows = append(t.Rows, s.Cells())
	}
	RenderTable(w, t)
}
