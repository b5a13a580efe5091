package analysis

import (
	"context"
	"fmt"

	"NarrativeScout/backend/go/internal/llm"
	"NarrativeScout/backend/go/internal/models"
	"NarrativeScout/backend/go/pkg/logger"
)

const narrativeSystemPrompt = `You are a senior Solana ecosystem analyst identifying emerging narratives from cross-source signal data.

A "narrative" is a thematic trend backed by multiple data points across different sources (GitHub developer activity, onchain metrics, DeFi TVL, social/blog signals). A narrative must appear in 2+ signal sources to be credible.

For each narrative you identify, provide:
1. A clear, specific title — name the specific protocols, tools, or primitives involved. "Concentrated Liquidity Migration on Raydium and Orca" not "DeFi growth."
2. A 2-3 sentence summary covering: what is happening, why it matters for the Solana ecosystem, and what structural shift it represents.
3. Confidence score (0.0-1.0) based on signal strength and source diversity.
4. Which signal indices support this narrative (from the input data).
5. Trend direction: "Accelerating" (growing faster), "Stable" (steady), "Decelerating" (slowing), "Emerging" (too early to tell, but signals present).
6. Key quantitative metrics that back the narrative.

Analysis depth requirements:
- **Historical context:** Is this a new trend or continuation of an existing one? What would be unusual or surprising about these numbers?
- **Structural implications:** What does this trend enable or threaten in the ecosystem? Which protocols or categories benefit or lose?
- **Cross-signal validation:** Do GitHub activity, onchain metrics, TVL data, and social signals agree? Explicitly flag divergences (e.g., rising developer activity but flat TVL suggests pre-launch building).
- **Second-order effects:** What follows from this trend? If liquid staking is growing, what does that unlock for DeFi composability?
- **Specificity:** Name specific protocols, repositories, and programs. Reference actual addresses, repo names, and TVL figures from the data.

Respond in JSON:
{
  "narratives": [
    {
      "title": "...",
      "summary": "...",
      "confidence": 0.85,
      "supporting_signals": [0, 3, 7],
      "trend": "Accelerating",
      "key_metrics": [{"name": "...", "value": 123.4, "unit": "..."}]
    }
  ]
}

Rules:
- Only report narratives you're confident about. Quality over quantity.
- Every claim must be backed by specific signals from the input data.
- Quantify everything. "Growing" is weak; "42% increase in new repos" is strong.
- 5-8 narratives is ideal. Fewer if the data doesn't support more.
- Don't invent data. Only use what's in the signals.
- When signals contradict each other, say so — contradiction is itself a signal.`

const narrativeUserPrefix = "Analyze these aggregated signals from the Solana ecosystem and identify emerging narratives:\n\n"

type synthesisResponse struct {
	Narratives []rawNarrative `json:"narratives" validate:"required,dive"`
}

type rawNarrative struct {
	Title             string          `json:"title" validate:"required"`
	Summary           string          `json:"summary"`
	Confidence        float64         `json:"confidence"`
	SupportingSignals []int           `json:"supporting_signals"`
	Trend             string          `json:"trend"`
	KeyMetrics        []models.Metric `json:"key_metrics"`
}

// Synthesizer asks the model to identify narratives in the signal digest.
type Synthesizer struct {
	gw  *llm.Gateway
	log *logger.Logger
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(gw *llm.Gateway, log *logger.Logger) *Synthesizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Synthesizer{gw: gw, log: log.Named("synthesizer")}
}

// IdentifyNarratives sends the digest to the model and returns the narratives in response
// order. signalCount bounds the supporting signal indices; out-of-range indices are dropped
// and reported as issues.
func (s *Synthesizer) IdentifyNarratives(ctx context.Context, digest []byte, signalCount int) ([]models.Narrative, []models.DataQualityIssue, error) {
	s.log.WithField("signal_count", signalCount).Info("sending signals to LLM for narrative identification")

	resp, err := llm.CompleteAs[synthesisResponse](ctx, s.gw, narrativeSystemPrompt, narrativeUserPrefix+string(digest))
	if err != nil {
		return nil, nil, fmt.Errorf("identify narratives: %w", err)
	}

	narratives := make([]models.Narrative, 0, len(resp.Narratives))
	var issues []models.DataQualityIssue
	for _, n := range resp.Narratives {
		refs, rejected := models.NewSignalRefs(n.SupportingSignals, signalCount)
		for _, idx := range rejected {
			issue := models.DataQualityIssue{
				Kind:   models.IssueSignalRefOutOfRange,
				Stage:  "synthesis",
				Item:   n.Title,
				Detail: fmt.Sprintf("supporting signal %d is out of range (%d signals)", idx, signalCount),
			}
			s.log.WithPayload(map[string]interface{}{"narrative": n.Title, "index": idx}).
				Warn("dropping out-of-range supporting signal")
			issues = append(issues, issue)
		}

		metrics := n.KeyMetrics
		if metrics == nil {
			metrics = []models.Metric{}
		}
		narratives = append(narratives, models.Narrative{
			Title:             n.Title,
			Summary:           n.Summary,
			Confidence:        models.ClampConfidence(n.Confidence),
			SupportingSignals: refs,
			Trend:             models.ParseTrend(n.Trend),
			KeyMetrics:        metrics,
		})
	}

	s.log.WithField("count", len(narratives)).Info("identified narratives")
	return narratives, issues, nil
}
