package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const strategyColumns = `domain, best_selectors, pagination_pattern, cancellation_indicators,
	notes, total_attempts, successful_attempts, last_successful, updated_at`

// GetStrategy fetches the strategy for a domain.
func (s *Store) GetStrategy(ctx context.Context, domain string) (scrape.Strategy, error) {
	query := `SELECT ` + strategyColumns + ` FROM scrape_strategies WHERE domain = ?`
	strat, err := scanStrategy(s.db.QueryRowContext(ctx, query, domain))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scrape.Strategy{}, scrape.ErrNotFound
		}
		return scrape.Strategy{}, fmt.Errorf("select strategy: %w", err)
	}
	return strat, nil
}

// ApplyStrategyReport upserts the domain's strategy in a transaction. The
// single-writer connection serializes concurrent reports, so the
// read-modify-write cannot drop counter increments.
func (s *Store) ApplyStrategyReport(ctx context.Context, domain string, patch scrape.StrategyPatch, at time.Time) (scrape.Strategy, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scrape.Strategy{}, fmt.Errorf("begin strategy report: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + strategyColumns + ` FROM scrape_strategies WHERE domain = ?`
	strat, err := scanStrategy(tx.QueryRowContext(ctx, query, domain))
	fresh := errors.Is(err, sql.ErrNoRows)
	if fresh {
		strat = scrape.Strategy{Domain: domain}
	} else if err != nil {
		return scrape.Strategy{}, fmt.Errorf("select strategy for report: %w", err)
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
			ts := at
			strat.LastSuccessful = &ts
		}
	}
	strat.UpdatedAt = at

	if fresh {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scrape_strategies (`+strategyColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
			strat.Domain,
			encodeList(strat.BestSelectors),
			strat.PaginationPattern,
			encodeList(strat.CancellationIndicators),
			strat.Notes,
			strat.TotalAttempts,
			strat.SuccessfulAttempts,
			encodeNullTime(strat.LastSuccessful),
			encodeTime(strat.UpdatedAt),
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE scrape_strategies
			 SET best_selectors = ?, pagination_pattern = ?, cancellation_indicators = ?,
				 notes = ?, total_attempts = ?, successful_attempts = ?, last_successful = ?, updated_at = ?
			 WHERE domain = ?`,
			encodeList(strat.BestSelectors),
			strat.PaginationPattern,
			encodeList(strat.CancellationIndicators),
			strat.Notes,
			strat.TotalAttempts,
			strat.SuccessfulAttempts,
			encodeNullTime(strat.LastSuccessful),
			encodeTime(strat.UpdatedAt),
			strat.Domain,
		)
	}
	if err != nil {
		return scrape.Strategy{}, fmt.Errorf("write strategy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return scrape.Strategy{}, fmt.Errorf("commit strategy report: %w", err)
	}
	return strat, nil
}

func scanStrategy(row rowScanner) (scrape.Strategy, error) {
	var (
		strat          scrape.Strategy
		selectors      string
		indicators     string
		lastSuccessful sql.NullString
		updatedAt      string
	)
	err := row.Scan(
		&strat.Domain,
		&selectors,
		&strat.PaginationPattern,
		&indicators,
		&strat.Notes,
		&strat.TotalAttempts,
		&strat.SuccessfulAttempts,
		&lastSuccessful,
		&updatedAt,
	)
	if err != nil {
		return scrape.Strategy{}, err
	}
	strat.BestSelectors = decodeList(selectors)
	strat.CancellationIndicators = decodeList(indicators)
	if strat.LastSuccessful, err = decodeNullTime(lastSuccessful); err != nil {
		return scrape.Strategy{}, err
	}
	if strat.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return scrape.Strategy{}, err
	}
	return strat, nil
}
