package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const maxRecommendations = 5

// Recommend asks the reasoning service for advisory statements based on the
// computed results. Callers fall back to FallbackRecommendations on error or
// an empty parse.
func (p *Pipeline) Recommend(ctx context.Context, channel string, summary string) ([]string, error) {
	userPrompt := fmt.Sprintf("Channel: %s\n\nPerformance Data Summary:\n%s", strings.ToUpper(channel), summary)

	response, err := p.complete(ctx, p.cfg.Prompts.Recommend, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("recommendation completion failed: %w", err)
	}

	recs := parseRecommendations(response)
	if len(recs) == 0 {
		return nil, fmt.Errorf("no recommendations parsed from response")
	}
	return recs, nil
}

// BuildSummary renders the computed results as the plain-text summary the
// recommendation prompt works from.
func BuildSummary(channel string, totalRecords int, kpis KPIResults, charts []ChartResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel: %s\n", channel)
	fmt.Fprintf(&b, "Total Records: %d\n", totalRecords)

	if len(kpis.Values) > 0 {
		b.WriteString("\nCalculated KPIs:\n")
		names := make([]string, 0, len(kpis.Values))
		for name := range kpis.Values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %g\n", name, kpis.Values[name])
		}
	}

	for _, chart := range charts {
		if len(chart.Data) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\nTop entries from %q:\n", chart.Title)
		limit := 5
		if len(chart.Data) < limit {
			limit = len(chart.Data)
		}
		for _, point := range chart.Data[:limit] {
			fmt.Fprintf(&b, "- %s: %g\n", point.Label, point.Value)
		}
		break
	}

	return b.String()
}

// parseRecommendations splits a model response into advisory statements,
// stripping list numbering and bullets.
func parseRecommendations(text string) []string {
	var recs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// List numbering needs a space after the period so "3.5x growth"
		// survives intact.
		if idx := strings.Index(line, ". "); idx > 0 && idx <= 2 && isDigits(line[:idx]) {
			line = strings.TrimSpace(line[idx+1:])
		} else if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			line = strings.TrimSpace(line[2:])
		}
		if line == "" {
			continue
		}
		recs = append(recs, line)
		if len(recs) == maxRecommendations {
			break
		}
	}
	return recs
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fallbackRecommendations are the channel-appropriate advisory statements
// used when the reasoning service cannot produce any.
var fallbackRecommendations = map[string][]string{
	"email": {
		"Strengthen subject lines and calls-to-action to lift open and click rates",
		"Segment your list and tailor campaigns to each segment's engagement history",
		"A/B test send times to find when your audience is most responsive",
	},
	"linkedin": {
		"Analyze your highest-impression posts and replicate their content format",
		"Post consistently and engage with comments to grow organic reach",
		"Use clear calls-to-action to convert impressions into website visits",
	},
	"blog": {
		"Refresh your highest-viewed articles to keep them ranking and converting",
		"Add internal links and calls-to-action to guide readers toward conversion",
		"Publish on a regular schedule to build a returning readership",
	},
	"seo": {
		"Invest in keyword optimization for pages already ranking near the top",
		"Improve meta titles and descriptions to raise click-through rates",
		"Build content around the keywords driving your highest-click queries",
	},
	"web": {
		"Reduce bounce rate by improving page load speed and landing page relevance",
		"Highlight your most-visited pages in navigation to deepen sessions",
		"Track conversion paths to find and fix drop-off points",
	},
}

// genericRecommendations cover unknown or cross-channel contexts.
var genericRecommendations = []string{
	"Review the data quality and ensure all metrics are being tracked accurately",
	"Focus on improving the top-performing metrics identified in this analysis",
	"Consider A/B testing different strategies based on these insights",
}

// FallbackRecommendations returns the fixed advisory list for a channel. It
// is never empty.
func FallbackRecommendations(channel string) []string {
	if recs, ok := fallbackRecommendations[channel]; ok {
		return append([]string(nil), recs...)
	}
	return append([]string(nil), genericRecommendations...)
}
