// Package dataset moves simulated responses and replication estimates
// in and out of CSV files.
package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/irt-tools/irtsim/internal/irt"
	"github.com/irt-tools/irtsim/internal/study"
)

// Row represents a single CSV row with column name to value mapping.
type Row map[string]string

// SaveCSV writes rows to path under the given ordered header. Missing
// cells are written empty.
func SaveCSV(path string, header []string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i, h := range header {
			record[i] = row[h]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush %s: %w", path, err)
	}
	return nil
}

// LoadCSV reads a CSV file and returns rows as maps of column to value.
// The first row is treated as headers (column names).
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := records[0]
	rows := make([]Row, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = record[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// ResponseHeader is the column order for long-format response exports.
var ResponseHeader = []string{"subject", "item", "endorse"}

// ResponseRows converts a long-format response set to CSV rows.
// Identifiers are 1-based in the export, matching the usual data-file
// convention for crossed designs.
func ResponseRows(responses []irt.Response) []Row {
	rows := make([]Row, 0, len(responses))
	for _, r := range responses {
		rows = append(rows, Row{
			"subject": strconv.Itoa(r.Subject + 1),
			"item":    strconv.Itoa(r.Item + 1),
			"endorse": strconv.Itoa(r.Endorse),
		})
	}
	return rows
}

// LoadResponses reads a long-format response CSV back into zero-based
// responses, inferring the design size from the largest identifiers.
// The file must carry the ResponseHeader columns with 1-based subject
// and item identifiers, as written by ResponseRows.
func LoadResponses(path string) ([]irt.Response, int, int, error) {
	rows, err := LoadCSV(path)
	if err != nil {
		return nil, 0, 0, err
	}

	responses := make([]irt.Response, 0, len(rows))
	nSubj, nItem := 0, 0
	for i, row := range rows {
		subject, err := strconv.Atoi(row["subject"])
		if err != nil || subject < 1 {
			return nil, 0, 0, fmt.Errorf("csv: row %d: bad subject %q", i+2, row["subject"])
		}
		item, err := strconv.Atoi(row["item"])
		if err != nil || item < 1 {
			return nil, 0, 0, fmt.Errorf("csv: row %d: bad item %q", i+2, row["item"])
		}
		endorse, err := strconv.Atoi(row["endorse"])
		if err != nil || (endorse != 0 && endorse != 1) {
			return nil, 0, 0, fmt.Errorf("csv: row %d: endorse must be 0 or 1, got %q", i+2, row["endorse"])
		}

		if subject > nSubj {
			nSubj = subject
		}
		if item > nItem {
			nItem = item
		}
		responses = append(responses, irt.Response{
			Subject: subject - 1,
			Item:    item - 1,
			Endorse: endorse,
		})
	}
	return responses, nSubj, nItem, nil
}

// EstimateHeader is the column order for replication estimate exports.
var EstimateHeader = []string{"replication", "parameter", "index", "truth", "estimate"}

// EstimateRows flattens a replication outcome into long-format CSV
// rows, one per (replication, parameter) cell. Skipped replications
// (NaN rows) are omitted.
func EstimateRows(o *study.Outcome) []Row {
	var rows []Row

	appendMatrix := func(parameter string, truth []float64, at func(r, j int) float64) {
		for r := 0; r < o.Replications; r++ {
			for j := range truth {
				v := at(r, j)
				if math.IsNaN(v) {
					continue
				}
				rows = append(rows, Row{
					"replication": strconv.Itoa(r + 1),
					"parameter":   parameter,
					"index":       strconv.Itoa(j + 1),
					"truth":       strconv.FormatFloat(truth[j], 'g', -1, 64),
					"estimate":    strconv.FormatFloat(v, 'g', -1, 64),
				})
			}
		}
	}

	appendMatrix("ability", o.Truth.Ability, o.Ability.At)
	appendMatrix("difficulty", o.Truth.Difficulty, o.Difficulty.At)
	return rows
}
