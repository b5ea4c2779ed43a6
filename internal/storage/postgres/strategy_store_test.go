package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

var strategyColumnNames = []string{
	"domain", "best_selectors", "pagination_pattern", "cancellation_indicators",
	"notes", "total_attempts", "successful_attempts", "last_successful", "updated_at",
}

func TestStrategyStoreGetStrategy(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStrategyStore(mock)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT (.+) FROM scrape_strategies").
		WithArgs("tickets.example.com").
		WillReturnRows(pgxmock.NewRows(strategyColumnNames).AddRow(
			"tickets.example.com", []string{".event-card"}, "", []string{}, "",
			3, 2, &now, now,
		))
	strat, err := store.GetStrategy(context.Background(), "tickets.example.com")
	require.NoError(t, err)
	require.Equal(t, 3, strat.TotalAttempts)
	require.InDelta(t, 2.0/3.0, strat.SuccessRate(), 1e-9)

	mock.ExpectQuery("SELECT (.+) FROM scrape_strategies").
		WithArgs("unknown.example.com").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.GetStrategy(context.Background(), "unknown.example.com")
	require.ErrorIs(t, err, scrape.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStrategyStoreApplyReportUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStrategyStore(mock)
	now := time.Unix(1700000000, 0).UTC()

	selectors := []string{".event-card"}
	pagination := "?page={n}"
	indicators := []string{"cancelled", "postponed"}
	notes := "calendar needs js"
	success := true
	patch := scrape.StrategyPatch{
		BestSelectors:          &selectors,
		PaginationPattern:      &pagination,
		CancellationIndicators: &indicators,
		Notes:                  &notes,
		Success:                &success,
	}

	mock.ExpectQuery("INSERT INTO scrape_strategies").
		WithArgs("tickets.example.com", selectors, pagination, indicators, notes, true, true, now).
		WillReturnRows(pgxmock.NewRows(strategyColumnNames).AddRow(
			"tickets.example.com", selectors, pagination, indicators, notes,
			1, 1, &now, now,
		))

	strat, err := store.ApplyStrategyReport(context.Background(), "tickets.example.com", patch, now)
	require.NoError(t, err)
	require.Equal(t, 1, strat.TotalAttempts)
	require.Equal(t, 1, strat.SuccessfulAttempts)
	require.Equal(t, selectors, strat.BestSelectors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStrategyStoreApplyReportOutcomeOnly(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStrategyStore(mock)
	now := time.Unix(1700000000, 0).UTC()

	failure := false
	patch := scrape.StrategyPatch{Success: &failure}

	// Unset patch fields travel as NULLs so the stored values survive.
	mock.ExpectQuery("INSERT INTO scrape_strategies").
		WithArgs("tickets.example.com", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), true, false, now).
		WillReturnRows(pgxmock.NewRows(strategyColumnNames).AddRow(
			"tickets.example.com", []string{".event-card"}, "", []string{}, "",
			4, 2, &now, now,
		))

	strat, err := store.ApplyStrategyReport(context.Background(), "tickets.example.com", patch, now)
	require.NoError(t, err)
	require.Equal(t, 4, strat.TotalAttempts)
	require.Equal(t, 2, strat.SuccessfulAttempts)
	require.NoError(t, mock.ExpectationsWereMet())
}
