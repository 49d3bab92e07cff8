package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ibkr-reporter/internal/sections"
)

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

// ExportWorkbook writes every section to its own worksheet, header first.
// Sheet names are cleaned of characters xlsx forbids, cut to 31 characters
// and made unique.
func ExportWorkbook(path string, s *sections.Sections) error {
	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool)
	first := -1
	for _, name := range s.Names() {
		t, _ := s.Get(name)
		sheet := uniqueSheetName(name, used)
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return fmt.Errorf("add sheet %q: %w", sheet, err)
		}
		if first < 0 {
			first = idx
		}
		if err := writeSheet(f, sheet, t); err != nil {
			return err
		}
	}
	if first >= 0 && !used[strings.ToLower("Sheet1")] {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("remove default sheet: %w", err)
		}
		f.SetActiveSheet(0)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t *sections.Table) error {
	rows := append([][]string{t.Columns}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func uniqueSheetName(name string, used map[string]bool) string {
	base := strings.Trim(sheetNameReplacer.Replace(name), "' ")
	if base == "" {
		base = "Section"
	}
	candidate := truncate(base, maxSheetName)
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := " " + strconv.Itoa(n)
		candidate = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return strings.TrimRight(string(r), " ")
}
