package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const strategyColumns = `domain, best_selectors, pagination_pattern, cancellation_indicators,
	notes, total_attempts, successful_attempts, last_successful, updated_at`

// StrategyStore persists per-domain strategies in Postgres.
type StrategyStore struct {
	pool Pool
}

// NewStrategyStore constructs a StrategyStore over an existing pool.
func NewStrategyStore(pool Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

// GetStrategy fetches the strategy for a domain.
func (s *StrategyStore) GetStrategy(ctx context.Context, domain string) (scrape.Strategy, error) {
	query := `SELECT ` + strategyColumns + ` FROM scrape_strategies WHERE domain = $1`
	strat, err := scanStrategy(s.pool.QueryRow(ctx, query, domain))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Strategy{}, scrape.ErrNotFound
		}
		return scrape.Strategy{}, fmt.Errorf("select strategy: %w", err)
	}
	return strat, nil
}

// ApplyStrategyReport upserts the domain's strategy in one statement. NULL
// patch fields keep the stored value; the counter arithmetic runs inside the
// UPDATE so concurrent reports never lose an increment.
func (s *StrategyStore) ApplyStrategyReport(ctx context.Context, domain string, patch scrape.StrategyPatch, at time.Time) (scrape.Strategy, error) {
	hasOutcome := patch.Success != nil
	success := hasOutcome && *patch.Success

	query := `
		INSERT INTO scrape_strategies (` + strategyColumns + `)
		VALUES (
			$1,
			COALESCE($2::text[], '{}'::text[]),
			COALESCE($3::text, ''),
			COALESCE($4::text[], '{}'::text[]),
			COALESCE($5::text, ''),
			CASE WHEN $6 THEN 1 ELSE 0 END,
			CASE WHEN $7 THEN 1 ELSE 0 END,
			CASE WHEN $7 THEN $8::timestamptz END,
			$8
		)
		ON CONFLICT (domain) DO UPDATE SET
			best_selectors          = COALESCE($2::text[], scrape_strategies.best_selectors),
			pagination_pattern      = COALESCE($3::text, scrape_strategies.pagination_pattern),
			cancellation_indicators = COALESCE($4::text[], scrape_strategies.cancellation_indicators),
			notes                   = COALESCE($5::text, scrape_strategies.notes),
			total_attempts          = scrape_strategies.total_attempts + CASE WHEN $6 THEN 1 ELSE 0 END,
			successful_attempts     = scrape_strategies.successful_attempts + CASE WHEN $7 THEN 1 ELSE 0 END,
			last_successful         = CASE WHEN $7 THEN $8::timestamptz ELSE scrape_strategies.last_successful END,
			updated_at              = $8
		RETURNING ` + strategyColumns

	strat, err := scanStrategy(s.pool.QueryRow(ctx, query,
		domain,
		optionalSlice(patch.BestSelectors),
		optionalText(patch.PaginationPattern),
		optionalSlice(patch.CancellationIndicators),
		optionalText(patch.Notes),
		hasOutcome,
		success,
		at,
	))
	if err != nil {
		return scrape.Strategy{}, fmt.Errorf("upsert strategy: %w", err)
	}
	return strat, nil
}

func scanStrategy(row pgx.Row) (scrape.Strategy, error) {
	var strat scrape.Strategy
	err := row.Scan(
		&strat.Domain,
		&strat.BestSelectors,
		&strat.PaginationPattern,
		&strat.CancellationIndicators,
		&strat.Notes,
		&strat.TotalAttempts,
		&strat.SuccessfulAttempts,
		&strat.LastSuccessful,
		&strat.UpdatedAt,
	)
	if err != nil {
		return scrape.Strategy{}, err
	}
	return strat, nil
}

// optionalSlice turns an unset patch field into a SQL NULL.
func optionalSlice(v *[]string) any {
	if v == nil {
		return nil
	}
	return *v
}

func optionalText(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
