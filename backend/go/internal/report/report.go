package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"NarrativeScout/backend/go/internal/models"
)

//go:embed templates/report.html
var reportTemplate string

var page = template.Must(template.New("report").Parse(reportTemplate))

type narrativeView struct {
	Title         string
	Summary       string
	ConfidencePct int
	Trend         string
	TrendClass    string
	SignalCount   int
	Metrics       []string
}

type ideaView struct {
	Title                string
	Description          string
	TargetUser           string
	MVPScope             string
	CompetitiveLandscape string
	TimingRationale      string
	NarrativeTitle       string
}

type signalView struct {
	Source      string
	Category    string
	Title       string
	Description string
	Metrics     []string
	URL         string
}

type pageData struct {
	GeneratedAt  string
	TotalSignals int
	SourceCount  int
	Narratives   []narrativeView
	Ideas        []ideaView
	Signals      []signalView
}

// Render produces the standalone HTML report. Inputs are not modified.
func Render(signals []models.Signal, narratives []models.Narrative, ideas []models.BuildIdea, generatedAt time.Time) (string, error) {
	sources := map[models.SignalSource]struct{}{}
	for _, s := range signals {
		sources[s.Source] = struct{}{}
	}

	data := pageData{
		GeneratedAt:  generatedAt.UTC().Format("2006-01-02 15:04 UTC"),
		TotalSignals: len(signals),
		SourceCount:  len(sources),
	}
	for _, n := range narratives {
		data.Narratives = append(data.Narratives, narrativeView{
			Title:         n.Title,
			Summary:       n.Summary,
			ConfidencePct: int(n.Confidence * 100),
			Trend:         string(n.Trend),
			TrendClass:    n.Trend.CSSClass(),
			SignalCount:   len(n.SupportingSignals),
			Metrics:       metricStrings(n.KeyMetrics),
		})
	}
	for _, i := range ideas {
		title := "Unknown"
		if i.NarrativeIndex.Valid() && int(i.NarrativeIndex) < len(narratives) {
			title = narratives[i.NarrativeIndex].Title
		}
		data.Ideas = append(data.Ideas, ideaView{
			Title:                i.Title,
			Description:          i.Description,
			TargetUser:           i.TargetUser,
			MVPScope:             i.MVPScope,
			CompetitiveLandscape: i.CompetitiveLandscape,
			TimingRationale:      i.TimingRationale,
			NarrativeTitle:       title,
		})
	}
	for _, s := range signals {
		data.Signals = append(data.Signals, signalView{
			Source:      s.Source.String(),
			Category:    s.Category,
			Title:       s.Title,
			Description: s.Description,
			Metrics:     metricStrings(s.Metrics),
			URL:         s.URLOrEmpty(),
		})
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

func metricStrings(metrics []models.Metric) []string {
	out := make([]string, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, m.String())
	}
	return out
}

// WriteFile writes content to path, creating parent directories as needed.
func WriteFile(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
