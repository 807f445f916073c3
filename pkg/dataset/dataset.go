// Package dataset holds an uploaded tabular payload in memory and provides
// the value-coercion rules shared by the profiler and the plan executor.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Row maps column names to raw cell values as they appeared in the input.
type Row map[string]string

// Dataset is an immutable, ordered tabular dataset owned by a single
// pipeline invocation.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// ParseCSV decodes delimited text into a Dataset. The first record is the
// header. An empty payload, a missing header, or a duplicate column name is a
// parse failure; a dataset with a header but zero data rows is valid.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate column name %q", name)
		}
		seen[name] = true
		columns = append(columns, name)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+2, err)
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}

	return &Dataset{Columns: columns, Rows: rows}, nil
}

// HasColumn reports whether name is one of the dataset's columns.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// nullMarkers are the cell values treated as missing data.
var nullMarkers = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"nan":  true,
	"-":    true,
}

// IsNull reports whether a raw cell value represents missing data.
func IsNull(value string) bool {
	return nullMarkers[strings.ToLower(strings.TrimSpace(value))]
}

// ParseNumber coerces a raw cell value to a float. Thousands separators, a
// leading currency symbol, and a trailing percent sign are tolerated. Null
// markers and anything else that does not parse report ok=false.
func ParseNumber(value string) (float64, bool) {
	s := strings.TrimSpace(value)
	if IsNull(s) {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// timeLayouts are the temporal formats recognized in cell values.
var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01",
}

// ParseTime coerces a raw cell value to a timestamp.
func ParseTime(value string) (time.Time, bool) {
	s := strings.TrimSpace(value)
	if IsNull(s) {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
