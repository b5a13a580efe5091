package analysis

import (
	"context"
	"fmt"

	"NarrativeScout/backend/go/internal/llm"
	"NarrativeScout/backend/go/internal/models"
	"NarrativeScout/backend/go/pkg/logger"
)

const ideasSystemPrompt = `You are a product strategist for the Solana ecosystem. Given identified narratives with supporting data, generate concrete build ideas that an AI agent or small team could implement in one week.

For each build idea, provide:
1. A specific product name/title
2. Clear description of what it does
3. Target user (who uses this and why)
4. MVP scope (what you build in a week — be realistic)
5. Competitive landscape (what exists, what's missing)
6. Timing rationale (why now, not 6 months ago or 6 months from now)
7. Which narrative index this idea supports (from the input)

Generate 3-5 ideas per narrative. Focus on ideas that are:
- Immediately useful (not "build a protocol" — think tools, dashboards, bots)
- Differentiated (not another DEX aggregator)
- Feasible for an AI agent to prototype

Respond in JSON:
{
  "ideas": [
    {
      "title": "...",
      "description": "...",
      "target_user": "...",
      "mvp_scope": "...",
      "competitive_landscape": "...",
      "timing_rationale": "...",
      "narrative_index": 0
    }
  ]
}`

const ideasUserPrefix = "Generate build ideas for these Solana ecosystem narratives:\n\n"

type ideasResponse struct {
	Ideas []rawIdea `json:"ideas" validate:"required,dive"`
}

type rawIdea struct {
	Title                string `json:"title" validate:"required"`
	Description          string `json:"description"`
	TargetUser           string `json:"target_user"`
	MVPScope             string `json:"mvp_scope"`
	CompetitiveLandscape string `json:"competitive_landscape"`
	TimingRationale      string `json:"timing_rationale"`
	NarrativeIndex       int    `json:"narrative_index"`
}

// IdeaGenerator turns narratives into build ideas.
type IdeaGenerator struct {
	gw  *llm.Gateway
	log *logger.Logger
}

// NewIdeaGenerator creates an IdeaGenerator.
func NewIdeaGenerator(gw *llm.Gateway, log *logger.Logger) *IdeaGenerator {
	if log == nil {
		log = logger.Nop()
	}
	return &IdeaGenerator{gw: gw, log: log.Named("ideas")}
}

// GenerateIdeas returns one idea per model entry, in response order. An idea whose
// narrative index is out of range keeps NoNarrative and is reported as an issue.
// The call is made even for an empty narrative list.
func (g *IdeaGenerator) GenerateIdeas(ctx context.Context, narratives []models.Narrative) ([]models.BuildIdea, []models.DataQualityIssue, error) {
	g.log.WithField("narrative_count", len(narratives)).Info("generating build ideas")

	if narratives == nil {
		narratives = []models.Narrative{}
	}
	payload, err := jsonAPI.MarshalIndent(narratives, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("serialize narratives: %w", err)
	}

	resp, err := llm.CompleteAs[ideasResponse](ctx, g.gw, ideasSystemPrompt, ideasUserPrefix+string(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("generate ideas: %w", err)
	}

	ideas := make([]models.BuildIdea, 0, len(resp.Ideas))
	var issues []models.DataQualityIssue
	for _, i := range resp.Ideas {
		ref, ok := models.NewNarrativeRef(i.NarrativeIndex, len(narratives))
		if !ok {
			g.log.WithPayload(map[string]interface{}{"idea": i.Title, "index": i.NarrativeIndex}).
				Warn("idea references unknown narrative")
			issues = append(issues, models.DataQualityIssue{
				Kind:   models.IssueNarrativeRefOutOfRange,
				Stage:  "ideas",
				Item:   i.Title,
				Detail: fmt.Sprintf("narrative index %d is out of range (%d narratives)", i.NarrativeIndex, len(narratives)),
			})
		}
		ideas = append(ideas, models.BuildIdea{
			Title:                i.Title,
			Description:          i.Description,
			TargetUser:           i.TargetUser,
			MVPScope:             i.MVPScope,
			CompetitiveLandscape: i.CompetitiveLandscape,
			TimingRationale:      i.TimingRationale,
			NarrativeIndex:       ref,
		})
	}

	g.log.WithField("count", len(ideas)).Info("generated build ideas")
	return ideas, issues, nil
}
