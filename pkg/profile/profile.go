// Package profile derives a structural digest of a dataset: per-column
// inferred types, numeric statistics, and a small sample of rows. The digest
// is the only view of the data the reasoning prompts ever see.
package profile

import (
	"sort"
	"strings"

	"github.com/itoalabs/insight/pkg/dataset"
)

// ColumnType is the inferred type of a column.
type ColumnType string

const (
	TypeNumeric ColumnType = "numeric"
	TypeText    ColumnType = "text"
	TypeDate    ColumnType = "date"
)

// Stats holds basic statistics for a uniformly numeric column.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Column describes a single profiled column. Stats is nil unless every
// non-null value in the column is numeric-coercible.
type Column struct {
	Name  string     `json:"name"`
	Type  ColumnType `json:"type"`
	Stats *Stats     `json:"stats,omitempty"`
}

// Profile is a read-only digest of a Dataset.
type Profile struct {
	Columns  []Column      `json:"columns"`
	RowCount int           `json:"row_count"`
	Sample   []dataset.Row `json:"sample"`
}

const sampleSize = 3

// Build profiles a dataset. It is a pure function and never fails: an empty
// dataset yields an empty-columns profile.
func Build(ds *dataset.Dataset) *Profile {
	p := &Profile{RowCount: len(ds.Rows)}

	for _, name := range ds.Columns {
		p.Columns = append(p.Columns, profileColumn(ds, name))
	}

	n := sampleSize
	if len(ds.Rows) < n {
		n = len(ds.Rows)
	}
	for _, row := range ds.Rows[:n] {
		p.Sample = append(p.Sample, row)
	}

	return p
}

func profileColumn(ds *dataset.Dataset, name string) Column {
	var values []float64
	allNumeric := true
	allTemporal := true
	nonNull := 0

	for _, row := range ds.Rows {
		raw := row[name]
		if dataset.IsNull(raw) {
			continue
		}
		nonNull++
		if v, ok := dataset.ParseNumber(raw); ok {
			values = append(values, v)
		} else {
			allNumeric = false
		}
		if _, ok := dataset.ParseTime(raw); !ok {
			allTemporal = false
		}
	}

	col := Column{Name: name, Type: TypeText}
	switch {
	case nonNull > 0 && allTemporal:
		col.Type = TypeDate
	case nonNull > 0 && allNumeric:
		col.Type = TypeNumeric
		col.Stats = computeStats(values)
	}
	return col
}

func computeStats(values []float64) *Stats {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return &Stats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   sum / float64(len(sorted)),
		Median: median,
	}
}

// Column returns the profiled column with the given name.
func (p *Profile) Column(name string) (Column, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the profile contains a column with the given name.
func (p *Profile) HasColumn(name string) bool {
	_, ok := p.Column(name)
	return ok
}

// temporalNameHints mark columns whose names suggest a date even when their
// values do not parse as one (e.g. "month" holding "Jan").
var temporalNameHints = []string{"date", "time", "day", "week", "month", "year"}

// LooksTemporal reports whether a column is a plausible temporal axis, by
// inferred type or by name.
func (p *Profile) LooksTemporal(name string) bool {
	if c, ok := p.Column(name); ok && c.Type == TypeDate {
		return true
	}
	lower := strings.ToLower(name)
	for _, hint := range temporalNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
