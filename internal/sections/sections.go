// Package sections splits broker activity statements, flat CSV files made of
// many labelled sections, into one table per section.
package sections

import (
	"strconv"
)

const (
	headerSentinel = "Header"
	metaLabel      = "Meta"
	typeLabel      = "Type"
)

// Table is one section after header application. Every row has exactly
// len(Columns) cells.
type Table struct {
	Name      string
	Columns   []string
	Rows      [][]string
	HasHeader bool
}

// Sections holds the parsed tables in first-seen order.
type Sections struct {
	order  []string
	tables map[string]*Table
}

// Names returns the section names in the order they first appeared.
func (s *Sections) Names() []string {
	return append([]string(nil), s.order...)
}

// Get returns a section by name.
func (s *Sections) Get(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Len returns the number of sections.
func (s *Sections) Len() int {
	return len(s.order)
}

// Parse groups rows by their first cell and applies each group's header row.
// Rows without a section label are skipped. It never fails.
func Parse(rows [][]string) *Sections {
	s := &Sections{tables: make(map[string]*Table)}
	groups := make(map[string][][]string)

	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		name := row[0]
		if _, seen := groups[name]; !seen {
			s.order = append(s.order, name)
		}
		groups[name] = append(groups[name], row)
	}

	for _, name := range s.order {
		s.tables[name] = parseGroup(name, groups[name])
	}
	return s
}

func parseGroup(name string, group [][]string) *Table {
	h := -1
	for i, row := range group {
		if len(row) > 1 && row[1] == headerSentinel {
			h = i
			break
		}
	}
	if h < 0 {
		return rawTable(name, group)
	}

	header := group[h]
	labels := make([]string, len(header))
	labels[0] = metaLabel
	if len(labels) > 1 {
		labels[1] = typeLabel
	}
	copy(labels[2:], header[2:])

	// first occurrence wins, so a header cell named Meta or Type is dropped
	// along with the synthetic columns
	seen := make(map[string]bool, len(labels))
	var keep []int
	var columns []string
	for i, label := range labels {
		if seen[label] {
			continue
		}
		seen[label] = true
		if label == metaLabel || label == typeLabel || label == "" {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, label)
	}

	t := &Table{Name: name, Columns: columns, Rows: [][]string{}, HasHeader: true}
	for _, row := range group[h+1:] {
		out := make([]string, len(keep))
		for j, i := range keep {
			if i < len(row) {
				out[j] = row[i]
			}
		}
		t.Rows = append(t.Rows, out)
	}
	return t
}

// rawTable returns a group unchanged under positional column names.
func rawTable(name string, group [][]string) *Table {
	width := 0
	for _, row := range group {
		if len(row) > width {
			width = len(row)
		}
	}
	t := &Table{Name: name, Columns: make([]string, width), Rows: make([][]string, 0, len(group))}
	for i := range t.Columns {
		t.Columns[i] = strconv.Itoa(i)
	}
	for _, row := range group {
		t.Rows = append(t.Rows, pad(row, width))
	}
	return t
}

func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
