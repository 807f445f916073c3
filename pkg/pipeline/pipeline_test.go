package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itoalabs/insight/pkg/dataset"
	"github.com/itoalabs/insight/pkg/reasoning"
)

// mockReasoner returns queued responses in order; an exhausted queue or a
// configured error reports the service as unavailable.
type mockReasoner struct {
	responses []string
	err       error
	calls     int
}

func (m *mockReasoner) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("no queued response: %w", reasoning.ErrUnavailable)
	}
	response := m.responses[0]
	m.responses = m.responses[1:]
	return response, nil
}

func newTestPipeline(t *testing.T, client reasoning.Client) *Pipeline {
	t.Helper()
	prompts, err := LoadPrompts()
	require.NoError(t, err)

	p, err := New(&Config{
		Reasoning: client,
		Prompts:   prompts,
		Clock:     clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return p
}

func mustDataset(t *testing.T, csv string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return ds
}

const campaignCSV = `date,clicks,campaign
2024-01-01,150,Launch
2024-01-02,175,Launch
2024-01-03,160,Retarget
`

const interpretResponse = `{
	"columns": {
		"date": {"meaning": "campaign day", "type": "dimension", "category": "date"},
		"clicks": {"meaning": "ad clicks", "type": "measure", "category": "engagement"},
		"campaign": {"meaning": "campaign name", "type": "dimension", "category": "identifier"}
	},
	"primary_date_column": "date",
	"key_metrics": ["clicks"]
}`

const designResponse = `{
	"kpis": [
		{"name": "Total Clicks", "description": "Sum of all clicks", "calculation": "sum", "columns_needed": ["clicks"], "format": "number"}
	],
	"charts": [
		{"title": "Clicks Over Time", "chart_type": "line", "description": "Daily clicks", "x_axis": "date", "y_axis": "clicks", "grouping": "date", "aggregation": "sum"}
	]
}`

const recommendResponse = `1. Scale the Launch campaign while its click volume is climbing
2. Compare Retarget performance against Launch to rebalance budget
3. Keep publishing daily to maintain the upward click trend`

func TestRunHappyPath(t *testing.T) {
	client := &mockReasoner{responses: []string{interpretResponse, designResponse, recommendResponse}}
	p := newTestPipeline(t, client)

	artifact, err := p.Run(context.Background(), mustDataset(t, campaignCSV), "email")
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)

	assert.True(t, artifact.Success)
	assert.NotEmpty(t, artifact.RunID)
	assert.Equal(t, "email", artifact.Channel)
	assert.Equal(t, 3, artifact.TotalRecords)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), artifact.GeneratedAt)

	require.NotNil(t, artifact.Interpretation)
	assert.Equal(t, SourceModel, artifact.Interpretation.Source)
	assert.Equal(t, "date", artifact.Interpretation.PrimaryDateColumn)

	require.NotNil(t, artifact.Plan)
	assert.Equal(t, SourceModel, artifact.Plan.Source)

	assert.Equal(t, 485.0, artifact.KPIs.Values["Total Clicks"])
	require.Len(t, artifact.Charts, 1)
	require.Len(t, artifact.Charts[0].Data, 3)
	assert.Equal(t, "2024-01-01", artifact.Charts[0].Data[0].Label)
	assert.Equal(t, "2024-01-03", artifact.Charts[0].Data[2].Label)

	require.Len(t, artifact.Recommendations, 3)
	assert.Equal(t, "Scale the Launch campaign while its click volume is climbing", artifact.Recommendations[0])
}

func TestRunAllStagesDegrade(t *testing.T) {
	client := &mockReasoner{err: fmt.Errorf("boom: %w", reasoning.ErrUnavailable)}
	p := newTestPipeline(t, client)

	artifact, err := p.Run(context.Background(), mustDataset(t, campaignCSV), "email")
	require.NoError(t, err)

	assert.True(t, artifact.Success, "reasoning failures never fail the run")
	require.NotNil(t, artifact.Interpretation)
	assert.Equal(t, SourceHeuristic, artifact.Interpretation.Source)
	require.NotNil(t, artifact.Plan)
	assert.Equal(t, SourceDefault, artifact.Plan.Source)

	assert.Equal(t, 3.0, artifact.KPIs.Values["Total Records"])
	assert.NotEmpty(t, artifact.Recommendations, "fallback recommendations are never empty")
	assert.Contains(t, artifact.Message, "fallback")
}

func TestRunMalformedResponsesDegrade(t *testing.T) {
	client := &mockReasoner{responses: []string{"not json at all", "```json\n{}\n```", ""}}
	p := newTestPipeline(t, client)

	artifact, err := p.Run(context.Background(), mustDataset(t, campaignCSV), "blog")
	require.NoError(t, err)

	assert.True(t, artifact.Success)
	assert.Equal(t, SourceHeuristic, artifact.Interpretation.Source)
	assert.Equal(t, SourceDefault, artifact.Plan.Source)
	assert.NotEmpty(t, artifact.Recommendations)
}

func TestRunEmptyDataset(t *testing.T) {
	client := &mockReasoner{}
	p := newTestPipeline(t, client)

	artifact, err := p.Run(context.Background(), nil, "web")
	require.NoError(t, err)
	assert.False(t, artifact.Success)
	assert.NotEmpty(t, artifact.Message)
	assert.NotEmpty(t, artifact.Recommendations)
	assert.Zero(t, client.calls)
}

func TestRunDeterministicOffline(t *testing.T) {
	p := newTestPipeline(t, reasoning.Disabled{})
	ds := mustDataset(t, campaignCSV)

	first, err := p.Run(context.Background(), ds, "seo")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), ds, "seo")
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Interpretation, second.Interpretation)
	assert.Equal(t, first.Plan, second.Plan)
	assert.Equal(t, first.KPIs, second.KPIs)
	assert.Equal(t, first.Charts, second.Charts)
	assert.Equal(t, first.Recommendations, second.Recommendations)
}

func TestRunCancelled(t *testing.T) {
	client := &mockReasoner{responses: []string{interpretResponse, designResponse, recommendResponse}}
	p := newTestPipeline(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, mustDataset(t, campaignCSV), "email")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidation(t *testing.T) {
	prompts, err := LoadPrompts()
	require.NoError(t, err)

	_, err = New(&Config{Prompts: prompts})
	require.Error(t, err)

	_, err = New(&Config{Reasoning: reasoning.Disabled{}})
	require.Error(t, err)
}
