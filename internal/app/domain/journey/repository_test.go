package journey

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
)

func newMockRepo(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewRepositoryImpl(mockPool, zap.NewNop()), mockPool
}

func TestCreateJourney_ActiveConflict(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO journeys`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "journeys_one_active_per_user"})
	mockPool.ExpectRollback()

	_, err := repo.CreateJourney(context.Background(), userID, CreateJourneyParams{
		Title:     "Morning walk",
		StartTime: time.Now(),
		InitialSample: models.Coordinate{
			Lat: 27.7, Lng: 85.3, Timestamp: time.Now(),
		},
	})

	assert.ErrorIs(t, err, models.ErrConflict)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestGetJourney_NotFound(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	journeyID, userID := uuid.New(), uuid.New()

	mockPool.ExpectQuery(`SELECT .+ FROM journeys WHERE id = \$1 AND user_id = \$2`).
		WithArgs(journeyID, userID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetJourney(context.Background(), journeyID, userID, false)

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetActiveJourney_NoneActive(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectQuery(`SELECT .+ FROM journeys WHERE user_id = \$1 AND status IN`).
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetActiveJourney(context.Background(), userID)

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func journeyRow(journeyID, userID uuid.UUID, status models.JourneyStatus, start time.Time) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "roadmap_slug", "roadmap_name", "title", "start_time", "end_time",
		"duration_seconds", "distance_m", "status", "avg_speed_kmh", "max_speed_kmh",
		"elevation_gain_m", "elevation_loss_m", "min_altitude_m", "max_altitude_m",
		"track_image_url", "track_image_public_id", "track_image_format", "notes",
		"created_at", "updated_at",
	}).AddRow(
		journeyID, userID, nil, nil, "Morning walk", start, nil,
		0.0, 0.0, status, 0.0, 0.0,
		0.0, 0.0, nil, nil,
		nil, nil, nil, nil,
		start, start,
	)
}

func TestAppendCoordinates_WhilePausedRevertsToRecording(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	journeyID, userID := uuid.New(), uuid.New()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	sample := models.Coordinate{Lat: 27.7001, Lng: 85.3, Timestamp: start.Add(time.Minute)}

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(journeyID, userID).
		WillReturnRows(journeyRow(journeyID, userID, models.JourneyPaused, start))
	mockPool.ExpectExec(regexp.QuoteMeta(`INSERT INTO journey_coordinates`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE journeys SET status = 'recording'`)).
		WithArgs(journeyID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT lat, lng, altitude, accuracy, recorded_at`)).
		WithArgs(journeyID).
		WillReturnRows(pgxmock.
			NewRows([]string{"lat", "lng", "altitude", "accuracy", "recorded_at"}).
			AddRow(27.7, 85.3, nil, nil, start).
			AddRow(27.7001, 85.3, nil, nil, start.Add(time.Minute)))
	mockPool.ExpectCommit()

	j, err := repo.AppendCoordinates(context.Background(), journeyID, userID,
		[]models.Coordinate{sample})

	require.NoError(t, err)
	assert.Equal(t, models.JourneyRecording, j.Status)
	assert.Len(t, j.Coordinates, 2)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestAppendCoordinates_FinalizedJourneyRejected(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	journeyID, userID := uuid.New(), uuid.New()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(journeyID, userID).
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectRollback()

	_, err := repo.AppendCoordinates(context.Background(), journeyID, userID,
		[]models.Coordinate{{Lat: 27.7, Lng: 85.3, Timestamp: time.Now()}})

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetStatus_GuardRejectsWrongState(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	journeyID, userID := uuid.New(), uuid.New()

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE journeys SET status = $1, updated_at = now()`)).
		WithArgs("paused", journeyID, userID, []string{"recording"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetStatus(context.Background(), journeyID, userID,
		[]models.JourneyStatus{models.JourneyRecording}, models.JourneyPaused, nil)

	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSetStatus_CancelSetsEndTime(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	journeyID, userID := uuid.New(), uuid.New()
	endTime := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE journeys SET status = $1, end_time = $2`)).
		WithArgs("cancelled", endTime, journeyID, userID, []string{"recording", "paused"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetStatus(context.Background(), journeyID, userID,
		[]models.JourneyStatus{models.JourneyRecording, models.JourneyPaused},
		models.JourneyCancelled, &endTime)

	require.NoError(t, err)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestFinalizeJourney_AlreadyFinalized(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	journeyID, userID := uuid.New(), uuid.New()

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE journeys SET`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.FinalizeJourney(context.Background(), journeyID, userID, FinalizeParams{
		Status:  models.JourneyCompleted,
		EndTime: time.Now(),
	})

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteJourney_ReturnsOrphanedImage(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	journeyID, userID := uuid.New(), uuid.New()
	url := "https://cdn.example/track.png"
	publicID := "trailtrace/tracks/abc"
	format := "png"

	mockPool.ExpectQuery(regexp.QuoteMeta(`DELETE FROM journeys WHERE id = $1 AND user_id = $2`)).
		WithArgs(journeyID, userID).
		WillReturnRows(pgxmock.
			NewRows([]string{"track_image_url", "track_image_public_id", "track_image_format"}).
			AddRow(&url, &publicID, &format))

	img, err := repo.DeleteJourney(context.Background(), journeyID, userID)

	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, publicID, img.PublicID)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestDeleteJourney_NoImage(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	journeyID, userID := uuid.New(), uuid.New()

	mockPool.ExpectQuery(regexp.QuoteMeta(`DELETE FROM journeys`)).
		WithArgs(journeyID, userID).
		WillReturnRows(pgxmock.
			NewRows([]string{"track_image_url", "track_image_public_id", "track_image_format"}).
			AddRow(nil, nil, nil))

	img, err := repo.DeleteJourney(context.Background(), journeyID, userID)

	require.NoError(t, err)
	assert.Nil(t, img)
}
