package gamification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
)

var _ Repository = (*RepositoryImpl)(nil)

// PGXPool is the subset of pgxpool.Pool the repository needs.
type PGXPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository defines the contract for gamification persistence.
type Repository interface {
	GetBadges(ctx context.Context, userID uuid.UUID) ([]models.BadgeGrant, error)
	// GetCompletedAggregates recomputes the badge predicate input from the
	// user's completed journeys.
	GetCompletedAggregates(ctx context.Context, userID uuid.UUID) (models.AggregateStats, error)
	// InsertBadges stores new grants and credits bonusPoints in one
	// transaction, recomputing the level.
	InsertBadges(ctx context.Context, userID uuid.UUID, grants []models.BadgeGrant, bonusPoints int) error
	// AddJourneyCredit applies the per-journey aggregate update:
	// distance, trail count, floor(distance/100) points, level.
	AddJourneyCredit(ctx context.Context, userID uuid.UUID, distanceM float64) error
	GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool PGXPool
}

func NewRepositoryImpl(pgpool PGXPool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) GetBadges(ctx context.Context, userID uuid.UUID) ([]models.BadgeGrant, error) {
	ctx, span := otel.Tracer("GamificationRepo").Start(ctx, "GetBadges")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("user.id", userID.String()),
	)

	rows, err := r.pgpool.Query(ctx, `
		SELECT badge_id, name, icon, description, earned_at
		FROM user_badges WHERE user_id = $1
		ORDER BY earned_at`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching badges: %w", err)
	}
	defer rows.Close()

	var badges []models.BadgeGrant
	for rows.Next() {
		var b models.BadgeGrant
		if err := rows.Scan(&b.ID, &b.Name, &b.Icon, &b.Description, &b.EarnedAt); err != nil {
			return nil, fmt.Errorf("database error scanning badge: %w", err)
		}
		badges = append(badges, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating badges: %w", err)
	}

	span.SetStatus(codes.Ok, "Badges fetched")
	return badges, nil
}

func (r *RepositoryImpl) GetCompletedAggregates(ctx context.Context, userID uuid.UUID) (models.AggregateStats, error) {
	ctx, span := otel.Tracer("GamificationRepo").Start(ctx, "GetCompletedAggregates")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("user.id", userID.String()),
	)

	var stats models.AggregateStats
	err := r.pgpool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(distance_m), 0)
		FROM journeys WHERE user_id = $1 AND status = 'completed'`,
		userID).Scan(&stats.TotalJourneys, &stats.TotalDistanceM)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return models.AggregateStats{}, fmt.Errorf("database error aggregating journeys: %w", err)
	}

	span.SetAttributes(
		attribute.Int("stats.total_journeys", stats.TotalJourneys),
		attribute.Float64("stats.total_distance_m", stats.TotalDistanceM),
	)
	span.SetStatus(codes.Ok, "Aggregates computed")
	return stats, nil
}

func (r *RepositoryImpl) InsertBadges(ctx context.Context, userID uuid.UUID, grants []models.BadgeGrant, bonusPoints int) error {
	ctx, span := otel.Tracer("GamificationRepo").Start(ctx, "InsertBadges")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "user_badges"),
		attribute.String("user.id", userID.String()),
		attribute.Int("badges.count", len(grants)),
	)

	l := r.logger.With(zap.String("method", "InsertBadges"),
		zap.String("userID", userID.String()), zap.Int("count", len(grants)))

	if len(grants) == 0 {
		span.SetStatus(codes.Ok, "Nothing to insert")
		return nil
	}

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database error starting badge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, b := range grants {
		// ON CONFLICT keeps grants idempotent even if two stop calls race.
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_badges (user_id, badge_id, name, icon, description, earned_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, badge_id) DO NOTHING`,
			userID, b.ID, b.Name, b.Icon, b.Description, b.EarnedAt); err != nil {
			l.Error("Failed to insert badge", zap.String("badge", b.ID), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "DB INSERT failed")
			return fmt.Errorf("database error inserting badge %s: %w", b.ID, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET points = points + $2,
			level = (points + $2) / $3 + 1,
			updated_at = now()
		WHERE id = $1`,
		userID, bonusPoints, models.PointsPerLevel); err != nil {
		l.Error("Failed to credit badge points", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error crediting badge points: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("database error committing badges: %w", err)
	}

	l.Info("Badges granted", zap.Int("bonus_points", bonusPoints))
	span.SetStatus(codes.Ok, "Badges granted")
	return nil
}

func (r *RepositoryImpl) AddJourneyCredit(ctx context.Context, userID uuid.UUID, distanceM float64) error {
	ctx, span := otel.Tracer("GamificationRepo").Start(ctx, "AddJourneyCredit")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("user.id", userID.String()),
		attribute.Float64("journey.distance_m", distanceM),
	)

	// 1 point per 100m recorded.
	points := int(distanceM / 100)

	tag, err := r.pgpool.Exec(ctx, `
		UPDATE users SET
			total_distance_m = total_distance_m + $2,
			total_trails = total_trails + 1,
			points = points + $3,
			level = (points + $3) / $4 + 1,
			updated_at = now()
		WHERE id = $1`,
		userID, distanceM, points, models.PointsPerLevel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error crediting journey: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Journey credited")
	return nil
}

func (r *RepositoryImpl) GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error) {
	ctx, span := otel.Tracer("GamificationRepo").Start(ctx, "GetProgress")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("user.id", userID.String()),
	)

	p := &models.UserProgress{UserID: userID}
	err := r.pgpool.QueryRow(ctx, `
		SELECT points, level, total_distance_m, total_trails
		FROM users WHERE id = $1`, userID).
		Scan(&p.Points, &p.Level, &p.TotalDistanceM, &p.TotalTrails)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user progress: %w", err)
	}

	badges, err := r.GetBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Badges = badges

	span.SetStatus(codes.Ok, "Progress fetched")
	return p, nil
}
