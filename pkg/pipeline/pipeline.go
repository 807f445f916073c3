package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/itoalabs/insight/pkg/dataset"
	"github.com/itoalabs/insight/pkg/profile"
	"github.com/itoalabs/insight/pkg/reasoning"
)

const defaultReasoningTimeout = 30 * time.Second

// Config holds the configuration for the pipeline.
type Config struct {
	Logger    *slog.Logger
	Reasoning reasoning.Client
	Prompts   *Prompts

	// ReasoningTimeout bounds each individual reasoning call; an expired call
	// is treated as unavailable and the stage fallback engages.
	ReasoningTimeout time.Duration

	// Clock stamps artifacts; defaults to the real clock.
	Clock clockwork.Clock
}

// Pipeline orchestrates the five-stage analysis process.
type Pipeline struct {
	cfg *Config
	log *slog.Logger
}

// New creates a new Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.Reasoning == nil {
		return nil, fmt.Errorf("reasoning client is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompts are required")
	}
	if cfg.ReasoningTimeout == 0 {
		cfg.ReasoningTimeout = defaultReasoningTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{cfg: cfg, log: cfg.Logger}, nil
}

// complete calls the reasoning client with the configured per-call timeout.
func (p *Pipeline) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ReasoningTimeout)
	defer cancel()
	return p.cfg.Reasoning.Complete(ctx, systemPrompt, userPrompt)
}

// Run executes the full pipeline for one dataset. Only an unusable dataset
// makes the run fail; every reasoning failure degrades to its stage fallback
// and every invalid plan item is skipped, so the artifact is always fully
// formed. Cancellation is checked between stages.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset, channel string) (*Artifact, error) {
	artifact := &Artifact{
		RunID:       uuid.NewString(),
		Channel:     channel,
		KPIs:        KPIResults{Values: map[string]float64{}},
		GeneratedAt: p.cfg.Clock.Now().UTC(),
	}

	if ds == nil || len(ds.Columns) == 0 {
		artifact.Message = "dataset has no usable columns"
		artifact.Recommendations = FallbackRecommendations(channel)
		return artifact, nil
	}
	artifact.TotalRecords = len(ds.Rows)

	var degraded []string

	// Stage 1: profile
	prof := profile.Build(ds)
	if p.log != nil {
		p.log.Info("pipeline: dataset profiled", "runID", artifact.RunID, "rows", prof.RowCount, "columns", len(prof.Columns))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: interpret schema
	interp, err := p.Interpret(ctx, prof, channel)
	if err != nil {
		if p.log != nil {
			p.log.Info("pipeline: interpretation fell back to heuristics", "runID", artifact.RunID, "error", err)
		}
		interp = HeuristicInterpretation(prof)
		degraded = append(degraded, "schema interpretation used heuristic fallback")
	}
	artifact.Interpretation = interp
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: design dashboard plan
	plan, err := p.Design(ctx, interp, prof, channel)
	if err != nil {
		if p.log != nil {
			p.log.Info("pipeline: plan design fell back to default plan", "runID", artifact.RunID, "error", err)
		}
		plan = DefaultPlan(interp, prof)
		degraded = append(degraded, "dashboard plan used default fallback")
	}
	artifact.Plan = plan
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 4: execute the plan
	kpis, charts := Execute(ds, plan, interp.PrimaryDateColumn)
	artifact.KPIs = kpis
	artifact.Charts = charts
	if p.log != nil {
		p.log.Info("pipeline: plan executed", "runID", artifact.RunID,
			"kpis", len(kpis.Values), "unavailable", len(kpis.Unavailable), "charts", len(charts))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 5: recommendations
	summary := BuildSummary(channel, len(ds.Rows), kpis, charts)
	recs, err := p.Recommend(ctx, channel, summary)
	if err != nil {
		if p.log != nil {
			p.log.Info("pipeline: recommendations fell back to fixed advice", "runID", artifact.RunID, "error", err)
		}
		recs = FallbackRecommendations(channel)
		degraded = append(degraded, "recommendations used fixed fallback")
	}
	artifact.Recommendations = recs

	artifact.Success = true
	artifact.Message = fmt.Sprintf("analyzed %d records across %d columns", len(ds.Rows), len(ds.Columns))
	if len(degraded) > 0 {
		artifact.Message += "; " + strings.Join(degraded, "; ")
	}

	return artifact, nil
}
