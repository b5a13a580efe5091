package analysis

import (
	"sort"
	"strings"
	"time"

	"NarrativeScout/backend/go/internal/models"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// SignalGroup is the set of signals sharing one normalized category.
type SignalGroup struct {
	Category        string          `json:"category"`
	Signals         []int           `json:"signals"`
	SourceDiversity int             `json:"source_diversity"`
	TotalSignals    int             `json:"total_signals"`
	KeyMetrics      []models.Metric `json:"key_metrics"`
	// UnitConflicts names rolled-up metrics whose contributors disagreed on the unit.
	UnitConflicts []string `json:"unit_conflicts,omitempty"`
}

var categoryAliases = map[string]string{
	"defi":                                  "DeFi",
	"decentralized finance":                 "DeFi",
	"nft":                                   "NFT",
	"nfts":                                  "NFT",
	"non-fungible token":                    "NFT",
	"non-fungible tokens":                   "NFT",
	"depin":                                 "DePIN",
	"decentralized physical infrastructure": "DePIN",
	"gaming":                                "Gaming",
	"gamefi":                                "Gaming",
	"game fi":                               "Gaming",
	"rwa":                                   "RWA",
	"real world assets":                     "RWA",
	"real-world assets":                     "RWA",
	"dao":                                   "DAO",
	"daos":                                  "DAO",
	"decentralized autonomous organization": "DAO",
}

// NormalizeCategory maps known category aliases to a canonical label, case-insensitively.
// Unknown categories are returned unchanged.
func NormalizeCategory(category string) string {
	if canonical, ok := categoryAliases[strings.ToLower(strings.TrimSpace(category))]; ok {
		return canonical
	}
	return category
}

// Aggregate groups signals by normalized category and ranks the groups by source
// diversity, then size, then category name. Member indices are ascending and metrics
// are summed by name in order of first appearance.
func Aggregate(signals []models.Signal) []SignalGroup {
	var (
		groups []*SignalGroup
		byName = map[string]*SignalGroup{}
	)
	for i, s := range signals {
		category := NormalizeCategory(s.Category)
		g, ok := byName[category]
		if !ok {
			g = &SignalGroup{Category: category}
			byName[category] = g
			groups = append(groups, g)
		}
		g.Signals = append(g.Signals, i)
	}

	out := make([]SignalGroup, 0, len(groups))
	for _, g := range groups {
		sources := map[models.SignalSource]struct{}{}
		for _, i := range g.Signals {
			sources[signals[i].Source] = struct{}{}
		}
		g.SourceDiversity = len(sources)
		g.TotalSignals = len(g.Signals)
		g.KeyMetrics, g.UnitConflicts = rollUp(signals, g.Signals)
		out = append(out, *g)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SourceDiversity != b.SourceDiversity {
			return a.SourceDiversity > b.SourceDiversity
		}
		if a.TotalSignals != b.TotalSignals {
			return a.TotalSignals > b.TotalSignals
		}
		return a.Category < b.Category
	})
	return out
}

// rollUp sums metrics by name. The unit comes from the first contributor; names whose
// contributors used a different unit are reported as conflicts.
func rollUp(signals []models.Signal, members []int) ([]models.Metric, []string) {
	var (
		metrics   []models.Metric
		conflicts []string
		pos       = map[string]int{}
		conflict  = map[string]bool{}
	)
	for _, i := range members {
		for _, m := range signals[i].Metrics {
			idx, ok := pos[m.Name]
			if !ok {
				pos[m.Name] = len(metrics)
				metrics = append(metrics, m)
				continue
			}
			metrics[idx].Value += m.Value
			if metrics[idx].Unit != m.Unit && !conflict[m.Name] {
				conflict[m.Name] = true
				conflicts = append(conflicts, m.Name)
			}
		}
	}
	return metrics, conflicts
}

// UnitConflictIssues reports every unit conflict found during aggregation.
func UnitConflictIssues(groups []SignalGroup) []models.DataQualityIssue {
	var issues []models.DataQualityIssue
	for _, g := range groups {
		for _, name := range g.UnitConflicts {
			issues = append(issues, models.DataQualityIssue{
				Kind:   models.IssueUnitConflict,
				Stage:  "aggregation",
				Item:   g.Category,
				Detail: "metric " + name + " was summed across different units",
			})
		}
	}
	return issues
}

type digestSignal struct {
	Source      string          `json:"source"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Metrics     []models.Metric `json:"metrics"`
	URL         *string         `json:"url"`
	Timestamp   string          `json:"timestamp"`
}

type digestGroup struct {
	Category        string         `json:"category"`
	SignalCount     int            `json:"signal_count"`
	SourceDiversity int            `json:"source_diversity"`
	Signals         []digestSignal `json:"signals"`
}

// Digest renders the ranked groups and their signals as the pretty-printed JSON
// document sent to the narrative synthesizer.
func Digest(signals []models.Signal, groups []SignalGroup) ([]byte, error) {
	out := make([]digestGroup, 0, len(groups))
	for _, g := range groups {
		dg := digestGroup{
			Category:        g.Category,
			SignalCount:     g.TotalSignals,
			SourceDiversity: g.SourceDiversity,
			Signals:         make([]digestSignal, 0, len(g.Signals)),
		}
		for _, i := range g.Signals {
			s := signals[i]
			metrics := s.Metrics
			if metrics == nil {
				metrics = []models.Metric{}
			}
			dg.Signals = append(dg.Signals, digestSignal{
				Source:      s.Source.String(),
				Title:       s.Title,
				Description: s.Description,
				Metrics:     metrics,
				URL:         s.URL,
				Timestamp:   s.Timestamp.Format(time.RFC3339),
			})
		}
		out = append(out, dg)
	}
	return jsonAPI.MarshalIndent(out, "", "  ")
}
