package health

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
)

// Store is the platform's record of client sub-scores
type Store interface {
	ListHealth(ctx context.Context, cursor string) (lifecycle.Page[Scores], error)
}

// Portfolio is every scored client and the summary over them
type Portfolio struct {
	Weights Weights        `json:"weights"`
	Summary Summary        `json:"summary"`
	AtRisk  []ClientHealth `json:"at_risk"`
	Clients []ClientHealth `json:"clients"`
}

// Service scores clients read from the store. The scorer can be swapped
// while requests are in flight.
type Service struct {
	store  Store
	scorer atomic.Pointer[Scorer]
	logger *observability.Logger
}

// NewService creates a health service
func NewService(store Store, scorer *Scorer, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Service{store: store, logger: logger}
	s.scorer.Store(scorer)
	return s
}

// SetWeights replaces the weights; invalid weights keep the current ones
func (s *Service) SetWeights(w Weights) error {
	sc, err := NewScorer(w)
	if err != nil {
		return err
	}
	s.scorer.Store(sc)
	s.logger.WithFields(map[string]interface{}{
		"usage":        w.Usage,
		"payment":      w.Payment,
		"subscription": w.Subscription,
	}).Info("health weights updated")
	return nil
}

// Scorer returns the scorer currently in use
func (s *Service) Scorer() *Scorer {
	return s.scorer.Load()
}

// Portfolio loads and scores every client
func (s *Service) Portfolio(ctx context.Context) (Portfolio, error) {
	all, err := lifecycle.CollectAll(ctx, s.store.ListHealth)
	if err != nil {
		return Portfolio{}, fmt.Errorf("failed to list client health: %w", err)
	}
	sc := s.scorer.Load()
	clients := sc.ScoreAll(all)
	return Portfolio{
		Weights: sc.Weights(),
		Summary: Summarize(clients),
		AtRisk:  AtRiskClients(clients),
		Clients: clients,
	}, nil
}
