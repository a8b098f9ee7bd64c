package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/opensource-finance/heron/internal/domain"
)

// Wide is a company-by-column table built from long-format rows.
// Columns are named "<metric>_<time range>".
type Wide struct {
	Companies []string
	Columns   []string
	cells     map[string]map[string]float64
}

// Value returns the cell for company and column.
func (w *Wide) Value(company, column string) (float64, bool) {
	v, ok := w.cells[company][column]
	return v, ok
}

// Pivot converts long rows to wide form. Companies keep first-seen order and
// columns are sorted. The first non-null value for a cell wins.
func Pivot(rows []domain.MetricRow) *Wide {
	w := &Wide{cells: make(map[string]map[string]float64)}
	columns := make(map[string]bool)

	for _, row := range rows {
		cells, ok := w.cells[row.CompanyID]
		if !ok {
			cells = make(map[string]float64)
			w.cells[row.CompanyID] = cells
			w.Companies = append(w.Companies, row.CompanyID)
		}

		col := row.Key().String()
		if !columns[col] {
			columns[col] = true
			w.Columns = append(w.Columns, col)
		}

		if row.Value == nil {
			continue
		}
		if _, set := cells[col]; !set {
			cells[col] = *row.Value
		}
	}

	sort.Strings(w.Columns)
	return w
}

// WriteWide writes the table with a leading heron_id column. Absent cells are empty.
func WriteWide(out io.Writer, w *Wide) error {
	cw := csv.NewWriter(out)

	header := append([]string{ColumnCompany}, w.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for _, company := range w.Companies {
		record[0] = company
		for i, col := range w.Columns {
			record[i+1] = ""
			if v, ok := w.Value(company, col); ok {
				record[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteWideFile writes the table to path.
func WriteWideFile(path string, w *Wide) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := WriteWide(f, w); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
