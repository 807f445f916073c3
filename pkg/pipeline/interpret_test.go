package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itoalabs/insight/pkg/profile"
)

func campaignProfile(t *testing.T) *profile.Profile {
	t.Helper()
	return profile.Build(mustDataset(t, campaignCSV))
}

func TestInterpret(t *testing.T) {
	client := &mockReasoner{responses: []string{interpretResponse}}
	p := newTestPipeline(t, client)

	interp, err := p.Interpret(context.Background(), campaignProfile(t), "email")
	require.NoError(t, err)

	assert.Equal(t, SourceModel, interp.Source)
	assert.Equal(t, "date", interp.PrimaryDateColumn)
	assert.Equal(t, []string{"clicks"}, interp.KeyMetrics)
	require.Contains(t, interp.Columns, "clicks")
	assert.Equal(t, RoleMeasure, interp.Columns["clicks"].Role)
}

func TestParseInterpretationDropsUnknownColumns(t *testing.T) {
	prof := campaignProfile(t)
	response := `{
		"columns": {
			"clicks": {"meaning": "ad clicks", "type": "measure", "category": "engagement"},
			"ghost": {"meaning": "does not exist", "type": "measure", "category": "x"}
		},
		"primary_date_column": "ghost",
		"key_metrics": ["clicks", "ghost"]
	}`

	interp, err := parseInterpretation(response, prof)
	require.NoError(t, err)
	assert.NotContains(t, interp.Columns, "ghost")
	assert.Empty(t, interp.PrimaryDateColumn, "unknown primary date column is dropped")
	assert.Equal(t, []string{"clicks"}, interp.KeyMetrics)
}

func TestParseInterpretationInvalidRoleBecomesDimension(t *testing.T) {
	prof := campaignProfile(t)
	response := `{"columns": {"clicks": {"meaning": "ad clicks", "type": "banana", "category": "engagement"}}}`

	interp, err := parseInterpretation(response, prof)
	require.NoError(t, err)
	assert.Equal(t, RoleDimension, interp.Columns["clicks"].Role)
}

func TestParseInterpretationRejectsEmpty(t *testing.T) {
	prof := campaignProfile(t)

	_, err := parseInterpretation(`{"columns": {}}`, prof)
	require.Error(t, err)

	_, err = parseInterpretation(`{"columns": {"ghost": {"meaning": "x", "type": "measure", "category": "x"}}}`, prof)
	require.Error(t, err, "interpretation naming only unknown columns is useless")

	_, err = parseInterpretation("not json", prof)
	require.Error(t, err)
}

func TestHeuristicInterpretation(t *testing.T) {
	interp := HeuristicInterpretation(campaignProfile(t))

	assert.Equal(t, SourceHeuristic, interp.Source)
	assert.Equal(t, "date", interp.PrimaryDateColumn)
	assert.Equal(t, []string{"clicks"}, interp.KeyMetrics)
	assert.Equal(t, RoleMeasure, interp.Columns["clicks"].Role)
	assert.Equal(t, RoleDimension, interp.Columns["campaign"].Role)
	assert.Equal(t, RoleDimension, interp.Columns["date"].Role)
}

func TestHeuristicInterpretationKeyMetricsCapped(t *testing.T) {
	csv := "a,b,c,d,e,f,g\n1,2,3,4,5,6,7\n10,20,30,40,50,60,70\n"
	interp := HeuristicInterpretation(profile.Build(mustDataset(t, csv)))

	assert.Len(t, interp.KeyMetrics, 5)
	assert.Equal(t, "g", interp.KeyMetrics[0], "widest numeric range ranks first")
}

func TestHeuristicInterpretationEmptyProfile(t *testing.T) {
	interp := HeuristicInterpretation(&profile.Profile{})
	assert.Empty(t, interp.Columns)
	assert.Empty(t, interp.KeyMetrics)
	assert.Empty(t, interp.PrimaryDateColumn)
}
