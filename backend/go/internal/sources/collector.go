package sources

import (
	"context"
	"fmt"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/internal/models"
	transport "NarrativeScout/backend/go/pkg/http"
	"NarrativeScout/backend/go/pkg/logger"
)

// Collector gathers signals from one independent source.
// Collect has no side effects beyond network I/O and logging, and must return
// promptly once ctx is done.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]models.Signal, error)
}

// FromConfig builds the enabled collectors in registration order: GitHub, Solana, Social.
func FromConfig(cfg *config.AppConfig, hc *transport.Client, log *logger.Logger) ([]Collector, error) {
	var collectors []Collector

	if cfg.Sources.GitHub.IsEnabled() {
		gh, err := NewGitHubCollector(cfg.Sources.GitHub, hc, log)
		if err != nil {
			return nil, fmt.Errorf("github collector: %w", err)
		}
		collectors = append(collectors, gh)
	}
	if cfg.Sources.Solana.IsEnabled() {
		collectors = append(collectors, NewSolanaCollector(cfg.Sources.Solana, hc, log))
	}
	if cfg.Sources.Social.IsEnabled() {
		social, err := NewSocialCollector(cfg.Sources.Social, hc, log)
		if err != nil {
			return nil, fmt.Errorf("social collector: %w", err)
		}
		collectors = append(collectors, social)
	}
	return collectors, nil
}
