package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itoalabs/insight/pkg/profile"
)

// Design asks the reasoning service to turn an interpretation into a
// dashboard plan. The plan stays untrusted: structural parsing happens here,
// per-field validation happens in the executor. Callers fall back to
// DefaultPlan on error.
func (p *Pipeline) Design(ctx context.Context, interp *Interpretation, prof *profile.Profile, channel string) (*Plan, error) {
	userPrompt := buildDesignPrompt(interp, prof, channel)

	response, err := p.complete(ctx, p.cfg.Prompts.Dashboard, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("design completion failed: %w", err)
	}

	plan, err := parsePlan(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return plan, nil
}

func buildDesignPrompt(interp *Interpretation, prof *profile.Profile, channel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Channel\n\n%s\n\n", channel)

	b.WriteString("## Interpreted Schema\n\n")
	if data, err := json.Marshal(interp); err == nil {
		b.WriteString(string(data))
		b.WriteString("\n\n")
	}

	b.WriteString("## Available Columns\n\n")
	names := make([]string, 0, len(prof.Columns))
	for _, col := range prof.Columns {
		names = append(names, col.Name)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\n## Statistics\n\n")
	for _, col := range prof.Columns {
		if col.Stats == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s: min=%g max=%g mean=%g median=%g\n",
			col.Name, col.Stats.Min, col.Stats.Max, col.Stats.Mean, col.Stats.Median)
	}

	return b.String()
}

// parsePlan parses a model response into a Plan. A response that decodes but
// proposes neither KPIs nor charts is treated as malformed so the default
// plan engages. Display formats are normalized; calculation and chart-type
// enums are left for the executor to validate per item.
func parsePlan(response string) (*Plan, error) {
	var plan Plan
	if err := decodeJSON(response, &plan); err != nil {
		return nil, err
	}
	if len(plan.KPIs) == 0 && len(plan.Charts) == 0 {
		return nil, fmt.Errorf("plan proposes no KPIs and no charts")
	}

	for i := range plan.KPIs {
		switch plan.KPIs[i].Format {
		case FormatNumber, FormatPercentage, FormatCurrency, FormatDuration:
		default:
			plan.KPIs[i].Format = FormatNumber
		}
	}

	plan.Source = SourceModel
	return &plan, nil
}

// DefaultPlan is the deterministic fallback plan: a record-count KPI plus a
// bar chart of row counts grouped by the primary temporal column, or by the
// first dimension column when no temporal column exists. It guarantees the
// pipeline always has something to compute and display.
func DefaultPlan(interp *Interpretation, prof *profile.Profile) *Plan {
	plan := &Plan{
		KPIs: []KPISpec{{
			Name:        "Total Records",
			Description: "Total number of records in the dataset",
			Calculation: CalcCount,
			Format:      FormatNumber,
		}},
		Source: SourceDefault,
	}

	grouping := interp.PrimaryDateColumn
	if grouping == "" {
		for _, col := range prof.Columns {
			if ci, ok := interp.Columns[col.Name]; ok && ci.Role == RoleDimension {
				grouping = col.Name
				break
			}
		}
	}
	if grouping == "" && len(prof.Columns) > 0 {
		grouping = prof.Columns[0].Name
	}

	if grouping != "" {
		plan.Charts = []ChartSpec{{
			Title:       "Record Count by " + grouping,
			ChartType:   ChartBar,
			Description: "Number of records per " + grouping,
			XAxis:       grouping,
			YAxis:       grouping,
			Grouping:    grouping,
			Aggregation: CalcCount,
		}}
	}

	return plan
}
