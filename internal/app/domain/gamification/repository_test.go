package gamification

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
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

func TestGetCompletedAggregates(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*), COALESCE(SUM(distance_m), 0)`)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count", "coalesce"}).AddRow(3, 12500.0))

	stats, err := repo.GetCompletedAggregates(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalJourneys)
	assert.Equal(t, 12500.0, stats.TotalDistanceM)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestAddJourneyCredit_PointsPerHundredMeters(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	// 3250m is worth 32 points
	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE users SET`)).
		WithArgs(userID, 3250.0, 32, models.PointsPerLevel).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.AddJourneyCredit(context.Background(), userID, 3250)

	require.NoError(t, err)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestAddJourneyCredit_UnknownUser(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE users SET`)).
		WithArgs(userID, 100.0, 1, models.PointsPerLevel).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.AddJourneyCredit(context.Background(), userID, 100)

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestInsertBadges_TransactionFlow(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()
	earned := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	grants := []models.BadgeGrant{
		{ID: "first_steps", Name: "First Steps", Icon: "🥾", Description: "Complete your first journey recording", EarnedAt: earned},
	}

	mockPool.ExpectBegin()
	mockPool.ExpectExec(regexp.QuoteMeta(`INSERT INTO user_badges`)).
		WithArgs(userID, "first_steps", "First Steps", "🥾", "Complete your first journey recording", earned).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE users SET points = points +`)).
		WithArgs(userID, models.BadgePoints, models.PointsPerLevel).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	err := repo.InsertBadges(context.Background(), userID, grants, models.BadgePoints)

	require.NoError(t, err)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestInsertBadges_EmptyGrantsIsNoop(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	err := repo.InsertBadges(context.Background(), uuid.New(), nil, 0)

	require.NoError(t, err)
	require.NoError(t, mockPool.ExpectationsWereMet())
}
