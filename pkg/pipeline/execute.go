package pipeline

import (
	"sort"
	"strconv"

	"github.com/itoalabs/insight/pkg/dataset"
)

// topGroupLimit caps ranked bar/pie groupings to keep charts legible.
const topGroupLimit = 10

// Execute validates and runs an untrusted dashboard plan against a dataset.
// It is a pure function: no I/O, deterministic for a given (dataset, plan)
// pair. Every plan field is checked before use; missing columns and invalid
// enum values skip the individual KPI or chart, never the run.
// primaryDateColumn is the column the interpretation stage identified as the
// temporal axis; groupings on it are ordered chronologically.
func Execute(ds *dataset.Dataset, plan *Plan, primaryDateColumn string) (KPIResults, []ChartResult) {
	results := KPIResults{Values: make(map[string]float64)}
	seen := make(map[string]bool)

	for _, spec := range plan.KPIs {
		if spec.Name == "" || seen[spec.Name] {
			continue
		}
		seen[spec.Name] = true
		if value, ok := executeKPI(ds, spec); ok {
			results.Values[spec.Name] = value
		} else {
			results.Unavailable = append(results.Unavailable, spec.Name)
		}
	}

	var charts []ChartResult
	for _, spec := range plan.Charts {
		if chart, ok := executeChart(ds, spec, primaryDateColumn); ok {
			charts = append(charts, chart)
		}
	}

	return results, charts
}

// executeKPI computes a single KPI value. ok=false marks the KPI unavailable:
// a missing column, an invalid calculation, or no numeric input.
func executeKPI(ds *dataset.Dataset, spec KPISpec) (float64, bool) {
	if !ValidCalculation(spec.Calculation) {
		return 0, false
	}
	for _, col := range spec.ColumnsNeeded {
		if !ds.HasColumn(col) {
			return 0, false
		}
	}

	if spec.Calculation == CalcCount {
		if len(spec.ColumnsNeeded) == 0 {
			return float64(len(ds.Rows)), true
		}
		return float64(countNonNull(ds, spec.ColumnsNeeded[0])), true
	}

	if len(spec.ColumnsNeeded) == 0 {
		return 0, false
	}
	values := numericValues(ds, spec.ColumnsNeeded[0])
	return aggregate(spec.Calculation, values)
}

// executeChart computes a single chart series. ok=false skips the chart: a
// missing column or an invalid enum value.
func executeChart(ds *dataset.Dataset, spec ChartSpec, primaryDateColumn string) (ChartResult, bool) {
	if !ValidChartType(spec.ChartType) {
		return ChartResult{}, false
	}
	if spec.YAxis == "" || !ds.HasColumn(spec.YAxis) {
		return ChartResult{}, false
	}
	if spec.XAxis != "" && !ds.HasColumn(spec.XAxis) {
		return ChartResult{}, false
	}
	if spec.Grouping != "" && !ds.HasColumn(spec.Grouping) {
		return ChartResult{}, false
	}

	chart := ChartResult{
		Title:       spec.Title,
		Type:        spec.ChartType,
		Description: spec.Description,
	}

	if spec.Grouping != "" {
		// Grouped charts require a valid aggregation; ungrouped ones never
		// aggregate, so the field is ignored there.
		if !ValidCalculation(spec.Aggregation) {
			return ChartResult{}, false
		}
		chart.Data = groupedSeries(ds, spec, primaryDateColumn)
	} else {
		chart.Data = rowSeries(ds, spec)
	}

	return chart, true
}

// groupedSeries partitions rows by the grouping column and aggregates the
// y-axis within each partition. Temporal groupings keep chronological order;
// everything else ranks by descending value, capped for bar and pie charts.
func groupedSeries(ds *dataset.Dataset, spec ChartSpec, primaryDateColumn string) []ChartPoint {
	groups := make(map[string][]string)
	var order []string
	for _, row := range ds.Rows {
		label := row[spec.Grouping]
		if dataset.IsNull(label) {
			continue
		}
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], row[spec.YAxis])
	}

	var points []ChartPoint
	for _, label := range order {
		if value, ok := aggregateRaw(spec.Aggregation, groups[label]); ok {
			points = append(points, ChartPoint{Label: label, Value: value})
		}
	}

	temporal := primaryDateColumn != "" && spec.Grouping == primaryDateColumn
	if temporal {
		sortChronological(points)
		return points
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Value != points[j].Value {
			return points[i].Value > points[j].Value
		}
		return points[i].Label < points[j].Label
	})
	if spec.ChartType == ChartBar || spec.ChartType == ChartPie {
		if len(points) > topGroupLimit {
			points = points[:topGroupLimit]
		}
	}
	return points
}

// rowSeries emits one point per row, labelled by the x-axis value or the
// 1-based row index. Rows whose y value is not numeric are excluded.
func rowSeries(ds *dataset.Dataset, spec ChartSpec) []ChartPoint {
	var points []ChartPoint
	for i, row := range ds.Rows {
		value, ok := dataset.ParseNumber(row[spec.YAxis])
		if !ok {
			continue
		}
		label := strconv.Itoa(i + 1)
		if spec.XAxis != "" {
			label = row[spec.XAxis]
		}
		points = append(points, ChartPoint{Label: label, Value: value})
	}
	return points
}

// sortChronological orders points by their parsed timestamps. Labels that do
// not parse sort after those that do, by label, so the order stays
// deterministic.
func sortChronological(points []ChartPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		ti, iok := dataset.ParseTime(points[i].Label)
		tj, jok := dataset.ParseTime(points[j].Label)
		switch {
		case iok && jok:
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return points[i].Label < points[j].Label
		case iok:
			return true
		case jok:
			return false
		default:
			return points[i].Label < points[j].Label
		}
	})
}

// countNonNull counts the non-null values of a column.
func countNonNull(ds *dataset.Dataset, col string) int {
	n := 0
	for _, row := range ds.Rows {
		if !dataset.IsNull(row[col]) {
			n++
		}
	}
	return n
}

// numericValues collects the numeric-coercible values of a column.
// Non-numeric values are excluded from aggregates, never treated as zero.
func numericValues(ds *dataset.Dataset, col string) []float64 {
	var values []float64
	for _, row := range ds.Rows {
		if v, ok := dataset.ParseNumber(row[col]); ok {
			values = append(values, v)
		}
	}
	return values
}

// aggregate applies a numeric calculation over collected values. ok=false
// when the input is empty (e.g. the average of an empty partition).
func aggregate(calc Calculation, values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	switch calc {
	case CalcSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, true
	case CalcAverage:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), true
	case CalcMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, true
	case CalcMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, true
	}
	return 0, false
}

// aggregateRaw aggregates raw cell values within one chart partition.
func aggregateRaw(calc Calculation, raws []string) (float64, bool) {
	if calc == CalcCount {
		n := 0
		for _, raw := range raws {
			if !dataset.IsNull(raw) {
				n++
			}
		}
		return float64(n), true
	}

	var values []float64
	for _, raw := range raws {
		if v, ok := dataset.ParseNumber(raw); ok {
			values = append(values, v)
		}
	}
	return aggregate(calc, values)
}
