// Package pipeline implements the dynamic dashboard analysis pipeline:
// profile → interpret → design → execute → recommend. Each reasoning-backed
// stage degrades to a deterministic fallback, so a run always produces a
// complete artifact.
package pipeline

import (
	"time"
)

// Channels is the closed set of channel/context tags. The tag tailors prompt
// wording and fallback recommendations only; it never changes executor logic.
var Channels = []string{"email", "linkedin", "blog", "seo", "web", "overview"}

// ValidChannel reports whether s is a recognized channel tag.
func ValidChannel(s string) bool {
	for _, c := range Channels {
		if c == s {
			return true
		}
	}
	return false
}

// Column roles within an interpretation.
const (
	RoleDimension = "dimension"
	RoleMeasure   = "measure"
)

// ColumnInterpretation is the semantic labeling of a single column.
type ColumnInterpretation struct {
	Meaning  string `json:"meaning"`
	Role     string `json:"type"`
	Category string `json:"category"`
}

// Interpretation provenance values.
const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
	SourceDefault   = "default"
)

// Interpretation is the semantic labeling of a dataset's schema.
type Interpretation struct {
	Columns           map[string]ColumnInterpretation `json:"columns"`
	PrimaryDateColumn string                          `json:"primary_date_column,omitempty"`
	KeyMetrics        []string                        `json:"key_metrics"`

	// Source records whether the interpretation came from the reasoning
	// service or the heuristic fallback.
	Source string `json:"source,omitempty"`
}

// Calculation is an enumerated aggregate operation. Plans are untrusted, so
// only these values are ever executed; free-form expressions are rejected.
type Calculation string

const (
	CalcSum     Calculation = "sum"
	CalcAverage Calculation = "average"
	CalcCount   Calculation = "count"
	CalcMin     Calculation = "min"
	CalcMax     Calculation = "max"
)

// ValidCalculation reports whether c is a recognized calculation.
func ValidCalculation(c Calculation) bool {
	switch c {
	case CalcSum, CalcAverage, CalcCount, CalcMin, CalcMax:
		return true
	}
	return false
}

// KPI display formats.
const (
	FormatNumber     = "number"
	FormatPercentage = "percentage"
	FormatCurrency   = "currency"
	FormatDuration   = "duration"
)

// KPISpec describes a single-value metric to compute. Formatting is a
// presentation concern: the format field travels with the spec but never
// alters the stored numeric result.
type KPISpec struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Calculation   Calculation `json:"calculation"`
	ColumnsNeeded []string    `json:"columns_needed"`
	Format        string      `json:"format"`
}

// ChartType is an enumerated chart rendering type.
type ChartType string

const (
	ChartLine    ChartType = "line"
	ChartBar     ChartType = "bar"
	ChartPie     ChartType = "pie"
	ChartArea    ChartType = "area"
	ChartScatter ChartType = "scatter"
)

// ValidChartType reports whether t is a recognized chart type.
func ValidChartType(t ChartType) bool {
	switch t {
	case ChartLine, ChartBar, ChartPie, ChartArea, ChartScatter:
		return true
	}
	return false
}

// ChartSpec describes a single chart to compute.
type ChartSpec struct {
	Title       string      `json:"title"`
	ChartType   ChartType   `json:"chart_type"`
	Description string      `json:"description"`
	XAxis       string      `json:"x_axis,omitempty"`
	YAxis       string      `json:"y_axis"`
	Grouping    string      `json:"grouping,omitempty"`
	Aggregation Calculation `json:"aggregation"`
}

// Plan is the dashboard plan: the untrusted, model-authored command set the
// executor validates and runs.
type Plan struct {
	KPIs   []KPISpec   `json:"kpis"`
	Charts []ChartSpec `json:"charts"`

	// Source records whether the plan came from the reasoning service or the
	// default fallback.
	Source string `json:"source,omitempty"`
}

// KPIResults holds computed KPI values. Values contains only KPIs that could
// be computed; KPIs skipped for missing columns or empty numeric input are
// listed by name in Unavailable.
type KPIResults struct {
	Values      map[string]float64 `json:"values"`
	Unavailable []string           `json:"unavailable,omitempty"`
}

// ChartPoint is a single labelled value in a chart series.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartResult is a computed chart series.
type ChartResult struct {
	Title       string       `json:"title"`
	Type        ChartType    `json:"chart_type"`
	Description string       `json:"description"`
	Data        []ChartPoint `json:"data"`
}

// Artifact is the terminal output of one pipeline run. Field names form the
// contract with the presentation layer and must stay stable.
type Artifact struct {
	RunID           string          `json:"run_id"`
	Channel         string          `json:"channel_type"`
	TotalRecords    int             `json:"total_records"`
	Interpretation  *Interpretation `json:"column_interpretation"`
	Plan            *Plan           `json:"dashboard_design"`
	KPIs            KPIResults      `json:"kpis"`
	Charts          []ChartResult   `json:"charts"`
	Recommendations []string        `json:"recommendations"`
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	GeneratedAt     time.Time       `json:"generated_at"`
}
