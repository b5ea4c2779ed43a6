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

var venueColumnNames = []string{"id", "name", "address", "city", "latitude", "longitude", "created_at"}

func TestVenueStoreCreateVenueIfAbsent(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewVenueStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	venue := scrape.Venue{ID: "ven-1", Name: " Main Hall ", Address: "1 Plaza Way", City: "Springfield", CreatedAt: now}

	var noCoord *float64
	mock.ExpectQuery("INSERT INTO venues").
		WithArgs("ven-1", "Main Hall", "1 Plaza Way", "Springfield", noCoord, noCoord, now).
		WillReturnRows(pgxmock.NewRows(venueColumnNames).AddRow(
			"ven-1", "Main Hall", "1 Plaza Way", "Springfield", noCoord, noCoord, now,
		))
	got, created, err := store.CreateVenueIfAbsent(context.Background(), venue)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "Main Hall", got.Name, "name must be stored trimmed")

	// On conflict the insert returns no row and the existing one is fetched.
	mock.ExpectQuery("INSERT INTO venues").
		WithArgs("ven-2", "Main Hall", "1 Plaza Way", "", noCoord, noCoord, now).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM venues WHERE name").
		WithArgs("Main Hall", "1 Plaza Way").
		WillReturnRows(pgxmock.NewRows(venueColumnNames).AddRow(
			"ven-1", "Main Hall", "1 Plaza Way", "Springfield", noCoord, noCoord, now,
		))
	dup := scrape.Venue{ID: "ven-2", Name: "Main Hall", Address: "1 Plaza Way", CreatedAt: now}
	got, created, err = store.CreateVenueIfAbsent(context.Background(), dup)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "ven-1", got.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVenueStoreSetCoordinates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewVenueStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	lat, lng := 39.78, -89.65

	mock.ExpectExec("UPDATE venues").
		WithArgs("ven-1", lat, lng).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	wrote, err := store.SetCoordinates(context.Background(), "ven-1", lat, lng)
	require.NoError(t, err)
	require.True(t, wrote)

	// Coordinates already present: no row matches, existence check passes.
	mock.ExpectExec("UPDATE venues").
		WithArgs("ven-1", lat, lng).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT (.+) FROM venues WHERE id").
		WithArgs("ven-1").
		WillReturnRows(pgxmock.NewRows(venueColumnNames).AddRow(
			"ven-1", "Main Hall", "1 Plaza Way", "", &lat, &lng, now,
		))
	wrote, err = store.SetCoordinates(context.Background(), "ven-1", lat, lng)
	require.NoError(t, err)
	require.False(t, wrote)

	// Unknown venue surfaces as not found.
	mock.ExpectExec("UPDATE venues").
		WithArgs("missing", lat, lng).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT (.+) FROM venues WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.SetCoordinates(context.Background(), "missing", lat, lng)
	require.ErrorIs(t, err, scrape.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
