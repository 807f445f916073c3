package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/itoalabs/insight/pkg/profile"
)

// Interpret asks the reasoning service to label the profiled schema. The
// response is parsed strictly; interpretations referencing unknown columns are
// dropped. Callers fall back to HeuristicInterpretation on error.
func (p *Pipeline) Interpret(ctx context.Context, prof *profile.Profile, channel string) (*Interpretation, error) {
	userPrompt := buildProfileSummary(prof, channel)

	response, err := p.complete(ctx, p.cfg.Prompts.Interpret, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("interpretation completion failed: %w", err)
	}

	interp, err := parseInterpretation(response, prof)
	if err != nil {
		return nil, fmt.Errorf("failed to parse interpretation: %w", err)
	}
	return interp, nil
}

// buildProfileSummary renders the profile as the natural-language description
// the interpretation prompt works from.
func buildProfileSummary(prof *profile.Profile, channel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Channel\n\n%s\n\n", channel)
	fmt.Fprintf(&b, "## Columns (%d rows total)\n\n", prof.RowCount)

	for _, col := range prof.Columns {
		fmt.Fprintf(&b, "- %s (%s)", col.Name, col.Type)
		if col.Stats != nil {
			fmt.Fprintf(&b, ": min=%g max=%g mean=%g median=%g",
				col.Stats.Min, col.Stats.Max, col.Stats.Mean, col.Stats.Median)
		}
		b.WriteString("\n")
	}

	if len(prof.Sample) > 0 {
		b.WriteString("\n## Sample Rows\n\n")
		for _, row := range prof.Sample {
			data, err := json.Marshal(row)
			if err != nil {
				continue
			}
			b.WriteString(string(data))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// parseInterpretation parses a model response into an Interpretation,
// discarding entries for columns that do not exist in the profile.
func parseInterpretation(response string, prof *profile.Profile) (*Interpretation, error) {
	var raw Interpretation
	if err := decodeJSON(response, &raw); err != nil {
		return nil, err
	}
	if len(raw.Columns) == 0 {
		return nil, fmt.Errorf("interpretation contains no columns")
	}

	interp := &Interpretation{
		Columns: make(map[string]ColumnInterpretation),
		Source:  SourceModel,
	}
	for name, ci := range raw.Columns {
		if !prof.HasColumn(name) {
			continue
		}
		if ci.Role != RoleDimension && ci.Role != RoleMeasure {
			ci.Role = RoleDimension
		}
		interp.Columns[name] = ci
	}
	if len(interp.Columns) == 0 {
		return nil, fmt.Errorf("interpretation references only unknown columns")
	}

	if prof.HasColumn(raw.PrimaryDateColumn) {
		interp.PrimaryDateColumn = raw.PrimaryDateColumn
	}
	for _, m := range raw.KeyMetrics {
		if prof.HasColumn(m) {
			interp.KeyMetrics = append(interp.KeyMetrics, m)
		}
	}

	return interp, nil
}

const maxKeyMetrics = 5

// HeuristicInterpretation labels the schema without any external dependency:
// columns with statistics become measures, everything else a dimension, the
// first date-looking column becomes the primary temporal axis, and the
// measures with the widest numeric range become the key metrics. It cannot
// fail; an empty profile yields an interpretation with no metrics.
func HeuristicInterpretation(prof *profile.Profile) *Interpretation {
	interp := &Interpretation{
		Columns: make(map[string]ColumnInterpretation),
		Source:  SourceHeuristic,
	}

	type rangedMetric struct {
		name   string
		spread float64
	}
	var metrics []rangedMetric

	for _, col := range prof.Columns {
		if col.Stats != nil {
			interp.Columns[col.Name] = ColumnInterpretation{
				Meaning:  fmt.Sprintf("%s values", col.Name),
				Role:     RoleMeasure,
				Category: "metric",
			}
			metrics = append(metrics, rangedMetric{col.Name, col.Stats.Max - col.Stats.Min})
		} else {
			interp.Columns[col.Name] = ColumnInterpretation{
				Meaning:  fmt.Sprintf("%s identifier", col.Name),
				Role:     RoleDimension,
				Category: "identifier",
			}
		}
		if interp.PrimaryDateColumn == "" && prof.LooksTemporal(col.Name) {
			interp.PrimaryDateColumn = col.Name
		}
	}

	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].spread > metrics[j].spread
	})
	for i, m := range metrics {
		if i == maxKeyMetrics {
			break
		}
		interp.KeyMetrics = append(interp.KeyMetrics, m.name)
	}

	return interp
}
