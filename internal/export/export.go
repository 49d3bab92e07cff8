// Package export writes snapshot tables as CSV files.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"ibkr-reporter/internal/accumulator"
	"ibkr-reporter/internal/types"
)

type accountSummaryDTO struct {
	Date     string `csv:"Date"`
	ReqID    string `csv:"reqId"`
	Account  string `csv:"Account"`
	Tag      string `csv:"Tag"`
	Value    string `csv:"Value"`
	Currency string `csv:"Currency"`
}

type pnlDTO struct {
	Date          string `csv:"Date"`
	ReqID         string `csv:"reqId"`
	DailyPnL      string `csv:"DailyPnL"`
	UnrealizedPnL string `csv:"UnrealizedPnL"`
	RealizedPnL   string `csv:"RealizedPnL"`
}

type positionDTO struct {
	Date     string `csv:"Date"`
	Account  string `csv:"account"`
	Contract string `csv:"contract"`
	Position string `csv:"position"`
	AvgCost  string `csv:"avgCost"`
}

// WriteCSV writes one topic table of a snapshot, header first. Cells use the
// same formatting as the text tables.
func WriteCSV(w io.Writer, snap accumulator.Snapshot, topic types.Topic) error {
	var rows interface{}
	switch topic {
	case types.TopicAccountSummary:
		out := make([]accountSummaryDTO, 0, len(snap.AccountSummary))
		for _, r := range snap.AccountSummary {
			c := r.Cells()
			out = append(out, accountSummaryDTO{c[0], c[1], c[2], c[3], c[4], c[5]})
		}
		rows = &out
	case types.TopicPnL:
		out := make([]pnlDTO, 0, len(snap.PnL))
		for _, r := range snap.PnL {
			c := r.Cells()
			out = append(out, pnlDTO{c[0], c[1], c[2], c[3], c[4]})
		}
		rows = &out
	case types.TopicPosition:
		out := make([]positionDTO, 0, len(snap.Positions))
		for _, r := range snap.Positions {
			c := r.Cells()
			out = append(out, positionDTO{c[0], c[1], c[2], c[3], c[4]})
		}
		rows = &out
	default:
		return fmt.Errorf("unknown topic %q", topic)
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("error marshalling %s: %w", topic, err)
	}
	return nil
}

// WriteFile writes one topic table to path, creating its directory.
func WriteFile(path string, snap accumulator.Snapshot, topic types.Topic) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer file.Close()

	return WriteCSV(file, snap, topic)
}
