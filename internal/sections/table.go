package sections

import "strings"

// Index returns the position of a column or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Column returns every value of a column, or nil when it does not exist.
func (t *Table) Column(column string) []string {
	i := t.Index(column)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Value returns one cell by row index and column name.
func (t *Table) Value(row int, column string) (string, bool) {
	i := t.Index(column)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return "", false
	}
	return t.Rows[row][i], true
}

// Filter returns a copy holding only the rows keep accepts.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := &Table{Name: t.Name, Columns: t.Columns, HasHeader: t.HasHeader, Rows: [][]string{}}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// DropEmptyColumns returns a copy without the columns whose cells are all blank.
func (t *Table) DropEmptyColumns() *Table {
	var keep []int
	for i := range t.Columns {
		for _, row := range t.Rows {
			if strings.TrimSpace(row[i]) != "" {
				keep = append(keep, i)
				break
			}
		}
	}

	out := &Table{Name: t.Name, HasHeader: t.HasHeader, Columns: make([]string, len(keep)), Rows: make([][]string, len(t.Rows))}
	for j, i := range keep {
		out.Columns[j] = t.Columns[i]
	}
	for r, row := range t.Rows {
		cells := make([]string, len(keep))
		for j, i := range keep {
			cells[j] = row[i]
		}
		out.Rows[r] = cells
	}
	return out
}
