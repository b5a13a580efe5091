package sources

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/internal/models"
	transport "NarrativeScout/backend/go/pkg/http"
	"NarrativeScout/backend/go/pkg/logger"

	"github.com/google/go-github/v30/github"
	"golang.org/x/oauth2"
)

// GitHubCollector turns repository search results into developer-activity signals.
type GitHubCollector struct {
	client *github.Client
	cfg    config.GitHubConfig
	now    func() time.Time
	log    *logger.Logger
}

// NewGitHubCollector creates the collector. The token is read from cfg.TokenEnv; without one
// the search API is used unauthenticated.
func NewGitHubCollector(cfg config.GitHubConfig, hc *transport.Client, log *logger.Logger) (*GitHubCollector, error) {
	if log == nil {
		log = logger.Nop()
	}

	httpClient := hc.StandardClient()
	if token := strings.TrimSpace(os.Getenv(cfg.TokenEnv)); token != "" && cfg.TokenEnv != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	client := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github base URL: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHubCollector{client: client, cfg: cfg, now: time.Now, log: log.Named("github")}, nil
}

// Name implements Collector.
func (g *GitHubCollector) Name() string { return models.SourceGitHub.String() }

// Collect runs every configured query. A failing query is logged and skipped; the collector
// fails only when every query fails.
func (g *GitHubCollector) Collect(ctx context.Context) ([]models.Signal, error) {
	since := g.now().UTC().AddDate(0, 0, -g.cfg.LookbackDays).Format("2006-01-02")

	var (
		signals  []models.Signal
		failures int
		lastErr  error
	)
	for _, q := range g.cfg.Queries {
		found, err := g.search(ctx, q, since)
		if err != nil {
			failures++
			lastErr = err
			g.log.WithField("query", q.Query).
				WithError(models.ErrorInfo{Message: err.Error(), Type: "github_search", Source: "GitHub"}).
				Warn("github query failed, skipping")
			continue
		}
		signals = append(signals, found...)
	}

	if len(g.cfg.Queries) > 0 && failures == len(g.cfg.Queries) {
		return nil, fmt.Errorf("all %d github queries failed: %w", failures, lastErr)
	}
	return signals, nil
}

func (g *GitHubCollector) search(ctx context.Context, q config.GitHubQuery, since string) ([]models.Signal, error) {
	query := fmt.Sprintf("%s pushed:>=%s", q.Query, since)
	result, _, err := g.client.Search.Repositories(ctx, query, &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: g.cfg.PerQuery},
	})
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	total := result.GetTotal()
	signals := []models.Signal{{
		Source:      models.SourceGitHub,
		Category:    q.Category,
		Title:       fmt.Sprintf("%s: %d active repositories", q.Query, total),
		Description: fmt.Sprintf("%d repositories matching %q were pushed to since %s.", total, q.Query, since),
		Metrics:     []models.Metric{{Name: "active_repos", Value: float64(total), Unit: "repos"}},
		URL:         models.StringPtr("https://github.com/search?type=repositories&q=" + url.QueryEscape(query)),
		Timestamp:   now,
	}}

	for _, repo := range result.Repositories {
		if repo.GetStargazersCount() < g.cfg.MinStars {
			continue
		}
		ts := now
		if pushed := repo.GetPushedAt(); !pushed.Time.IsZero() {
			ts = pushed.Time.UTC()
		}
		signal := models.Signal{
			Source:      models.SourceGitHub,
			Category:    q.Category,
			Title:       fmt.Sprintf("%s: %d stars", repo.GetFullName(), repo.GetStargazersCount()),
			Description: repoDescription(repo),
			Metrics: []models.Metric{
				{Name: "stars", Value: float64(repo.GetStargazersCount()), Unit: "stars"},
				{Name: "forks", Value: float64(repo.GetForksCount()), Unit: "forks"},
				{Name: "open_issues", Value: float64(repo.GetOpenIssuesCount()), Unit: "issues"},
			},
			Timestamp: ts,
		}
		if u := repo.GetHTMLURL(); u != "" {
			signal.URL = models.StringPtr(u)
		}
		signals = append(signals, signal)
	}
	return signals, nil
}

func repoDescription(repo *github.Repository) string {
	desc := strings.TrimSpace(repo.GetDescription())
	if desc == "" {
		desc = "No description."
	}
	if lang := repo.GetLanguage(); lang != "" {
		desc += " Language: " + lang + "."
	}
	return desc
}
