// Package exporter renders frames to CSV and XLSX for download endpoints
// and the report tool.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"marketlens/internal/timeseries"
)

const dateLayout = "2006-01-02"

// WriteCSV writes the frame as CSV: a Date column followed by one column
// per series. NaN values become empty cells.
func WriteCSV(w io.Writer, f timeseries.Frame) error {
	cw := csv.NewWriter(w)

	names := f.Names()
	header := append([]string{"Date"}, names...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	calendar := f.Calendar()
	for i, d := range calendar {
		row := make([]string, 0, len(names)+1)
		row = append(row, d.Format(dateLayout))
		for _, v := range f.Row(i) {
			row = append(row, formatCell(v))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the frame as a single-sheet workbook in the same
// layout as the CSV export.
func WriteXLSX(w io.Writer, f timeseries.Frame, sheet string) error {
	if sheet == "" {
		sheet = "Data"
	}

	x := excelize.NewFile()
	defer x.Close()

	if err := x.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	names := f.Names()
	header := make([]interface{}, 0, len(names)+1)
	header = append(header, "Date")
	for _, n := range names {
		header = append(header, n)
	}
	if err := x.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	calendar := f.Calendar()
	for i, d := range calendar {
		row := make([]interface{}, 0, len(names)+1)
		row = append(row, d.Format(dateLayout))
		for _, v := range f.Row(i) {
			if math.IsNaN(v) {
				row = append(row, nil)
			} else {
				row = append(row, v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i, err)
		}
		if err := x.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := x.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
