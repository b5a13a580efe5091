package pipeline

import (
	"context"
	"fmt"
	"time"

	"NarrativeScout/backend/go/internal/analysis"
	"NarrativeScout/backend/go/internal/llm"
	"NarrativeScout/backend/go/internal/models"
	"NarrativeScout/backend/go/internal/sources"
	"NarrativeScout/backend/go/pkg/logger"
)

// Result is everything one run produced.
type Result struct {
	RunID      string
	StartedAt  time.Time
	Signals    []models.Signal
	Outcomes   []sources.Outcome
	Groups     []analysis.SignalGroup
	Narratives []models.Narrative
	Ideas      []models.BuildIdea
	Issues     []models.DataQualityIssue
}

// SourceCount returns the number of distinct sources among the collected signals.
func (r *Result) SourceCount() int {
	seen := map[models.SignalSource]struct{}{}
	for _, s := range r.Signals {
		seen[s.Source] = struct{}{}
	}
	return len(seen)
}

// Pipeline runs collection, aggregation, narrative synthesis and idea generation in sequence.
type Pipeline struct {
	orchestrator *sources.Orchestrator
	synthesizer  *analysis.Synthesizer
	ideas        *analysis.IdeaGenerator
	now          func() time.Time
	log          *logger.Logger
}

// New creates a Pipeline.
func New(orchestrator *sources.Orchestrator, gw *llm.Gateway, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		orchestrator: orchestrator,
		synthesizer:  analysis.NewSynthesizer(gw, log),
		ideas:        analysis.NewIdeaGenerator(gw, log),
		now:          time.Now,
		log:          log.Named("pipeline"),
	}
}

// Run executes one full run. Collection failing for every source aborts the run before
// any model call. Data-quality problems never abort; they are returned in Result.Issues.
func (p *Pipeline) Run(ctx context.Context, runID string) (*Result, error) {
	res := &Result{RunID: runID, StartedAt: p.now().UTC()}

	// 1. Collect signals from every source concurrently.
	p.log.Info("starting signal collection")
	coll, err := p.orchestrator.Collect(ctx)
	if coll != nil {
		res.Outcomes = coll.Outcomes
	}
	if err != nil {
		return res, fmt.Errorf("collect signals: %w", err)
	}
	res.Signals = coll.Signals

	// 2. Aggregate by category and build the digest.
	res.Groups = analysis.Aggregate(res.Signals)
	p.report(res, analysis.UnitConflictIssues(res.Groups))
	p.log.WithPayload(map[string]interface{}{
		"signals": len(res.Signals),
		"groups":  len(res.Groups),
	}).Info("signals aggregated")

	digest, err := analysis.Digest(res.Signals, res.Groups)
	if err != nil {
		return res, fmt.Errorf("build signal digest: %w", err)
	}

	// 3. Identify narratives.
	narratives, issues, err := p.synthesizer.IdentifyNarratives(ctx, digest, len(res.Signals))
	if err != nil {
		return res, err
	}
	res.Narratives = narratives
	p.report(res, issues)

	// 4. Generate build ideas for the narratives.
	ideas, issues, err := p.ideas.GenerateIdeas(ctx, res.Narratives)
	if err != nil {
		return res, err
	}
	res.Ideas = ideas
	p.report(res, issues)

	p.log.WithPayload(map[string]interface{}{
		"narratives": len(res.Narratives),
		"ideas":      len(res.Ideas),
		"issues":     len(res.Issues),
	}).Info("run finished")
	return res, nil
}

func (p *Pipeline) report(res *Result, issues []models.DataQualityIssue) {
	for _, issue := range issues {
		p.log.WithPayload(map[string]interface{}{
			"kind":  issue.Kind,
			"stage": issue.Stage,
			"item":  issue.Item,
		}).Warn(issue.Detail)
	}
	res.Issues = append(res.Issues, issues...)
}
