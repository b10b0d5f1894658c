// Command importcsv bulk-loads observations into the marketlens store.
//
// The input is a CSV with a Date header column followed by one column per
// series code, or an xlsx workbook with the same layout on its first
// sheet. Blank cells are skipped, so sparse histories import cleanly.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"marketlens/internal/config"
	"marketlens/internal/infrastructure"
	"marketlens/internal/store"
	"marketlens/internal/timeseries"
)

const dateLayout = "2006-01-02"

func main() {
	dbPath := flag.String("db", "", "sqlite database path (defaults to the configured store path)")
	file := flag.String("file", "", "input .csv or .xlsx file (required)")
	freq := flag.String("freq", "D", "frequency of the imported series: D, W, M, Q or Y")
	field := flag.String("field", "PX_LAST", "field name for the imported series")
	currency := flag.String("currency", "", "currency code recorded in the catalog")
	scale := flag.Float64("scale", 1, "scale factor recorded in the catalog")
	mode := flag.String("mode", "replace", "replace | append")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	cfg.Logging.Output = "stdout"

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("initialize logger", "error", err)
		os.Exit(1)
	}

	if *file == "" {
		logger.Error("missing -file argument")
		os.Exit(1)
	}
	if *mode != "replace" && *mode != "append" {
		logger.Error("invalid -mode, want replace or append", slog.String("mode", *mode))
		os.Exit(1)
	}
	if _, err := timeseries.ParseFrequency(*freq); err != nil {
		logger.Error("invalid -freq", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *dbPath == "" {
		*dbPath = cfg.Store.Path
	}

	st, err := store.Open(*dbPath, logger)
	if err != nil {
		logger.Error("open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	codes, columns, err := readTable(*file)
	if err != nil {
		logger.Error("read input", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	for i, code := range codes {
		points := columns[i]
		if len(points) == 0 {
			logger.Warn("no observations for column", slog.String("code", code))
			continue
		}

		id, err := st.UpsertSeries(ctx, store.SeriesMeta{
			Code:      code,
			Field:     *field,
			Name:      code,
			Frequency: *freq,
			Currency:  *currency,
			Scale:     *scale,
		})
		if err != nil {
			logger.Error("upsert series", slog.String("code", code), slog.String("error", err.Error()))
			os.Exit(1)
		}

		if *mode == "replace" {
			err = st.ReplaceObservations(ctx, id, points)
		} else {
			err = st.AppendObservations(ctx, id, points)
		}
		if err != nil {
			logger.Error("write observations", slog.String("code", code), slog.String("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("series imported",
			slog.String("code", code),
			slog.Int("observations", len(points)),
			slog.String("from", points[0].Date.Format(dateLayout)),
			slog.String("to", points[len(points)-1].Date.Format(dateLayout)))
	}

	logger.Info("import complete", slog.Int("series", len(codes)))
}

// readTable parses the input into per-code point slices. The first row
// is a header: Date followed by series codes.
func readTable(path string) ([]string, [][]timeseries.Point, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, nil, fmt.Errorf("unsupported input format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("input has no data rows")
	}

	header := rows[0]
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, nil, fmt.Errorf("first header column must be Date, got %q", header[0])
	}

	codes := make([]string, 0, len(header)-1)
	for _, h := range header[1:] {
		code := strings.TrimSpace(h)
		if code == "" {
			return nil, nil, fmt.Errorf("blank series code in header")
		}
		codes = append(codes, code)
	}

	columns := make([][]timeseries.Point, len(codes))
	for n, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, strings.TrimSpace(row[0]), time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: bad date %q", n+2, row[0])
		}
		for i := range codes {
			if i+1 >= len(row) {
				break
			}
			cell := strings.TrimSpace(row[i+1])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d, column %s: bad value %q", n+2, codes[i], cell)
			}
			columns[i] = append(columns[i], timeseries.Point{Date: date, Value: v})
		}
	}
	return codes, columns, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}
