package sections

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ibkr-reporter/internal/logger"
)

// Read reads a ragged CSV. Rows keep their own length on the strict path; a
// malformed file falls back to a plain comma split of every line. Both paths
// pad each row to the widest row.
func Read(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return decode(data), nil
}

// ReadFile reads a ragged CSV file from disk.
func ReadFile(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return decode(data), nil
}

// Load reads and parses a statement file. Only I/O errors are returned.
func Load(path string) (*Sections, error) {
	rows, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(rows), nil
}

var utf8BOM = []byte("\ufeff")

func decode(data []byte) [][]string {
	data = bytes.TrimPrefix(data, utf8BOM)
	rows, err := readStrict(data)
	if err != nil {
		logger.Warn(context.Background(), "Malformed CSV, falling back to padded line split", "error", err)
		rows = splitLines(data)
	}
	return padRows(rows)
}

func readStrict(data []byte) ([][]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}

func splitLines(data []byte) [][]string {
	lines := strings.Split(string(data), "\n")
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "" {
		lines = lines[:n-1]
	}
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, strings.Split(strings.TrimSpace(line), ","))
	}
	return rows
}

func padRows(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range rows {
		rows[i] = pad(row, width)
	}
	return rows
}
