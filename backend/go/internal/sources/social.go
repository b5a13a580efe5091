package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/internal/models"
	transport "NarrativeScout/backend/go/pkg/http"
	"NarrativeScout/backend/go/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"
)

// titleSelectors are tried in order; the first one that yields any title wins.
var titleSelectors = []string{
	"article h2 a",
	"article h3 a",
	".post-title a",
	"h2.entry-title a",
	"a[class*='title']",
	"h2 a",
	"h3 a",
}

// minTitleLength filters out navigation links such as "Blog" or "More".
const minTitleLength = 5

// SocialCollector scrapes blog index pages for recent article titles.
type SocialCollector struct {
	http     *transport.Client
	cfg      config.SocialConfig
	patterns []glob.Glob
	now      func() time.Time
	log      *logger.Logger
}

// NewSocialCollector compiles the relevance patterns and creates the collector.
func NewSocialCollector(cfg config.SocialConfig, hc *transport.Client, log *logger.Logger) (*SocialCollector, error) {
	if log == nil {
		log = logger.Nop()
	}
	patterns := make([]glob.Glob, 0, len(cfg.RelevancePatterns))
	for _, p := range cfg.RelevancePatterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("invalid relevance pattern %q: %w", p, err)
		}
		patterns = append(patterns, g)
	}
	return &SocialCollector{http: hc, cfg: cfg, patterns: patterns, now: time.Now, log: log.Named("social")}, nil
}

// Name implements Collector.
func (s *SocialCollector) Name() string { return models.SourceSocial.String() }

// Collect scrapes every configured source. A failing source is logged and skipped;
// the collector fails only when every source fails.
func (s *SocialCollector) Collect(ctx context.Context) ([]models.Signal, error) {
	var (
		signals  []models.Signal
		failures int
		lastErr  error
	)
	for _, src := range s.cfg.Sources {
		sig, ok, err := s.scrape(ctx, src)
		if err != nil {
			failures++
			lastErr = err
			s.log.WithPayload(map[string]interface{}{"source": src.Name, "url": src.URL}).
				WithError(models.ErrorInfo{Message: err.Error(), Type: "scrape_error", Source: "Social"}).
				Warn("failed to scrape, skipping")
			continue
		}
		if ok {
			signals = append(signals, sig)
		}
	}

	if len(s.cfg.Sources) > 0 && failures == len(s.cfg.Sources) {
		return nil, fmt.Errorf("all %d social sources failed: %w", failures, lastErr)
	}
	return signals, nil
}

// scrape fetches one page and summarises its article titles. ok is false when the page has none.
func (s *SocialCollector) scrape(ctx context.Context, src config.SocialSource) (models.Signal, bool, error) {
	page, err := s.http.GetText(ctx, src.URL)
	if err != nil {
		return models.Signal{}, false, err
	}
	if mt := mimetype.Detect([]byte(page)); !isTextual(mt) {
		return models.Signal{}, false, fmt.Errorf("unexpected content type %s from %s", mt.String(), src.URL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return models.Signal{}, false, fmt.Errorf("parse %s: %w", src.URL, err)
	}

	titles := extractTitles(doc)
	if len(titles) == 0 {
		return models.Signal{}, false, nil
	}

	var relevant []string
	for _, t := range titles {
		if s.isRelevant(t) {
			relevant = append(relevant, t)
		}
	}

	shown := titles
	if len(relevant) > 0 {
		shown = relevant
	}
	if s.cfg.MaxTitles > 0 && len(shown) > s.cfg.MaxTitles {
		shown = shown[:s.cfg.MaxTitles]
	}

	return models.Signal{
		Source:      models.SourceSocial,
		Category:    "Blog: " + src.Name,
		Title:       fmt.Sprintf("%s: %d recent articles (%d Solana-related)", src.Name, len(titles), len(relevant)),
		Description: "Recent topics: " + strings.Join(shown, "; "),
		Metrics: []models.Metric{
			{Name: "total_articles", Value: float64(len(titles)), Unit: "articles"},
			{Name: "solana_relevant", Value: float64(len(relevant)), Unit: "articles"},
		},
		URL:       models.StringPtr(src.URL),
		Timestamp: s.now().UTC(),
	}, true, nil
}

// extractTitles returns the sorted, de-duplicated titles matched by the first productive selector.
func extractTitles(doc *goquery.Document) []string {
	var titles []string
	for _, sel := range titleSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			title := strings.Join(strings.Fields(a.Text()), " ")
			if utf8.RuneCountInString(title) > minTitleLength {
				titles = append(titles, title)
			}
		})
		if len(titles) > 0 {
			break
		}
	}

	sort.Strings(titles)
	out := titles[:0]
	for _, t := range titles {
		if len(out) == 0 || out[len(out)-1] != t {
			out = append(out, t)
		}
	}
	return out
}

func (s *SocialCollector) isRelevant(title string) bool {
	lower := strings.ToLower(title)
	for _, p := range s.patterns {
		if p.Match(lower) {
			return true
		}
	}
	return false
}

// isTextual reports whether mt is text/plain or a descendant of it (HTML, XML, ...).
func isTextual(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
