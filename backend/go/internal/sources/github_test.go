package sources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/internal/models"
	transport "NarrativeScout/backend/go/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport() *transport.Client {
	return transport.NewClient(config.HTTPConfig{Timeout: "5s", Retry: config.RetryConfig{MaxAttempts: 1}}, nil)
}

const searchResponse = `{
  "total_count": 42,
  "items": [
    {"full_name": "acme/swap", "stargazers_count": 120, "forks_count": 8, "open_issues_count": 3,
     "html_url": "https://github.com/acme/swap", "description": "An AMM", "language": "Rust",
     "pushed_at": "2026-10-01T12:00:00Z"},
    {"full_name": "tiny/toy", "stargazers_count": 1, "forks_count": 0, "open_issues_count": 0}
  ]
}`

func TestGitHubCollector_Collect(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/repositories", r.URL.Path)
		assert.Equal(t, "stars", r.URL.Query().Get("sort"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		queries = append(queries, r.URL.Query().Get("q"))
		if strings.HasPrefix(r.URL.Query().Get("q"), "broken") {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"message":"Validation Failed"}`)
			return
		}
		io.WriteString(w, searchResponse)
	}))
	defer srv.Close()

	c, err := NewGitHubCollector(config.GitHubConfig{
		BaseURL:      srv.URL,
		LookbackDays: 30,
		PerQuery:     5,
		MinStars:     10,
		Queries: []config.GitHubQuery{
			{Query: "solana defi", Category: "DeFi"},
			{Query: "broken query", Category: "NFT"},
		},
	}, newTestTransport(), nil)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }

	signals, err := c.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, queries, 2)
	assert.Equal(t, "solana defi pushed:>=2026-09-19", queries[0])

	require.Len(t, signals, 2, "summary plus one repo above minStars")
	summary := signals[0]
	assert.Equal(t, models.SourceGitHub, summary.Source)
	assert.Equal(t, "DeFi", summary.Category)
	assert.Equal(t, "solana defi: 42 active repositories", summary.Title)
	assert.Equal(t, []models.Metric{{Name: "active_repos", Value: 42, Unit: "repos"}}, summary.Metrics)

	repo := signals[1]
	assert.Equal(t, "acme/swap: 120 stars", repo.Title)
	assert.Equal(t, "An AMM Language: Rust.", repo.Description)
	assert.Equal(t, "https://github.com/acme/swap", repo.URLOrEmpty())
	assert.Equal(t, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC), repo.Timestamp)
	assert.Len(t, repo.Metrics, 3)
}

func TestGitHubCollector_AllQueriesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"message":"API rate limit exceeded"}`)
	}))
	defer srv.Close()

	c, err := NewGitHubCollector(config.GitHubConfig{
		BaseURL: srv.URL,
		Queries: []config.GitHubQuery{{Query: "a", Category: "DeFi"}, {Query: "b", Category: "NFT"}},
	}, newTestTransport(), nil)
	require.NoError(t, err)

	_, err = c.Collect(context.Background())
	assert.ErrorContains(t, err, "all 2 github queries failed")
}
