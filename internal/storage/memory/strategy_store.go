package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// StrategyStore provides an in-memory strategy implementation.
type StrategyStore struct {
	mu         sync.RWMutex
	strategies map[string]scrape.Strategy
}

// NewStrategyStore constructs a StrategyStore.
func NewStrategyStore() *StrategyStore {
	return &StrategyStore{strategies: make(map[string]scrape.Strategy)}
}

// GetStrategy fetches the strategy for a domain; unknown domains report
// absence, not an empty record.
func (s *StrategyStore) GetStrategy(_ context.Context, domain string) (scrape.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strat, ok := s.strategies[domain]
	if !ok {
		return scrape.Strategy{}, scrape.ErrNotFound
	}
	return strat, nil
}

// ApplyStrategyReport upserts the domain's strategy under the write lock so
// concurrent counter increments never get lost.
func (s *StrategyStore) ApplyStrategyReport(_ context.Context, domain string, patch scrape.StrategyPatch, at time.Time) (scrape.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	strat, ok := s.strategies[domain]
	if !ok {
		strat = scrape.Strategy{Domain: domain}
	}
	if patch.BestSelectors != nil {
		strat.BestSelectors = append([]string(nil), (*patch.BestSelectors)...)
	}
	if patch.PaginationPattern != nil {
		strat.PaginationPattern = *patch.PaginationPattern
	}
	if patch.CancellationIndicators != nil {
		strat.CancellationIndicators = append([]string(nil), (*patch.CancellationIndicators)...)
	}
	if patch.Notes != nil {
		strat.Notes = *patch.Notes
	}
	if patch.Success != nil {
		strat.TotalAttempts++
		if *patch.Success {
			strat.SuccessfulAttempts++
			strat.LastSuccessful = pointerTime(at)
		}
	}
	strat.UpdatedAt = at
	s.strategies[domain] = strat
	return strat, nil
}
