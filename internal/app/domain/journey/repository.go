package journey

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
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

// PGXPool is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type PGXPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateJourneyParams carries everything start needs to persist.
type CreateJourneyParams struct {
	RoadmapSlug   *string
	RoadmapName   *string
	Title         string
	StartTime     time.Time
	InitialSample models.Coordinate
}

// FinalizeParams closes out a journey at stop time.
type FinalizeParams struct {
	Status      models.JourneyStatus
	EndTime     time.Time
	DurationSec float64
	DistanceM   float64
	Stats       models.JourneyStats
	Title       *string
	Notes       *string
}

// Repository defines the contract for journey persistence.
type Repository interface {
	CreateJourney(ctx context.Context, userID uuid.UUID, params CreateJourneyParams) (*models.Journey, error)
	GetJourney(ctx context.Context, journeyID, userID uuid.UUID, withCoordinates bool) (*models.Journey, error)
	GetActiveJourney(ctx context.Context, userID uuid.UUID) (*models.Journey, error)
	ListJourneys(ctx context.Context, userID uuid.UUID, filter models.JourneyFilter) (*models.JourneyPage, error)
	// AppendCoordinates appends a batch to an active journey, reverts the
	// status to recording and returns the journey with its full trace.
	AppendCoordinates(ctx context.Context, journeyID, userID uuid.UUID, samples []models.Coordinate) (*models.Journey, error)
	// SetStatus transitions the journey when its current status is one of
	// from, returning ErrNotFound otherwise.
	SetStatus(ctx context.Context, journeyID, userID uuid.UUID, from []models.JourneyStatus, to models.JourneyStatus, endTime *time.Time) error
	FinalizeJourney(ctx context.Context, journeyID, userID uuid.UUID, params FinalizeParams) error
	UpdateTrackImage(ctx context.Context, journeyID uuid.UUID, image models.TrackImage) error
	// DeleteJourney removes the journey and returns the orphaned track
	// image reference, if any, so the caller can clean up the upload.
	DeleteJourney(ctx context.Context, journeyID, userID uuid.UUID) (*models.TrackImage, error)
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

const journeyColumns = `id, user_id, roadmap_slug, roadmap_name, title, start_time, end_time,
		duration_seconds, distance_m, status, avg_speed_kmh, max_speed_kmh,
		elevation_gain_m, elevation_loss_m, min_altitude_m, max_altitude_m,
		track_image_url, track_image_public_id, track_image_format, notes,
		created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJourney(row rowScanner) (*models.Journey, error) {
	var j models.Journey
	var imgURL, imgPublicID, imgFormat *string
	err := row.Scan(
		&j.ID, &j.UserID, &j.RoadmapSlug, &j.RoadmapName, &j.Title, &j.StartTime, &j.EndTime,
		&j.DurationSec, &j.DistanceM, &j.Status, &j.Stats.AvgSpeedKmh, &j.Stats.MaxSpeedKmh,
		&j.Stats.ElevationGainM, &j.Stats.ElevationLossM, &j.Stats.MinAltitudeM, &j.Stats.MaxAltitudeM,
		&imgURL, &imgPublicID, &imgFormat, &j.Notes,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if imgURL != nil {
		img := models.TrackImage{URL: *imgURL}
		if imgPublicID != nil {
			img.PublicID = *imgPublicID
		}
		if imgFormat != nil {
			img.Format = *imgFormat
		}
		j.TrackImage = &img
	}
	return &j, nil
}

func statusStrings(statuses []models.JourneyStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// CreateJourney inserts the journey row plus the initial coordinate. The
// partial unique index on (user_id) WHERE status IN (recording, paused)
// backs the single-active-session invariant, a violation maps to ErrConflict.
func (r *RepositoryImpl) CreateJourney(ctx context.Context, userID uuid.UUID, params CreateJourneyParams) (*models.Journey, error) {
	ctx, span := otel.Tracer("JourneyRepo").Start(ctx, "CreateJourney")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "journeys"),
		attribute.String("user.id", userID.String()),
	)

	l := r.logger.With(zap.String("method", "CreateJourney"), zap.String("userID", userID.String()))
	l.Debug("Creating journey")

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("database error starting journey transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO journeys (user_id, roadmap_slug, roadmap_name, title, start_time, status)
		VALUES ($1, $2, $3, $4, $5, 'recording')
		RETURNING ` + journeyColumns

	j, err := scanJourney(tx.QueryRow(ctx, query,
		userID, params.RoadmapSlug, params.RoadmapName, params.Title, params.StartTime))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			l.Warn("Active journey already exists for user", zap.Error(err))
			span.SetStatus(codes.Error, "Active journey exists")
			return nil, fmt.Errorf("user already has an active journey: %w", models.ErrConflict)
		}
		l.Error("Failed to insert journey", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating journey: %w", err)
	}

	s := params.InitialSample
	_, err = tx.Exec(ctx, `
		INSERT INTO journey_coordinates (journey_id, lat, lng, altitude, accuracy, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		j.ID, s.Lat, s.Lng, s.Altitude, s.Accuracy, s.Timestamp)
	if err != nil {
		l.Error("Failed to insert initial coordinate", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error storing initial coordinate: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("database error committing journey: %w", err)
	}

	j.Coordinates = []models.Coordinate{s}
	l.Info("Journey created", zap.String("journeyID", j.ID.String()))
	span.SetAttributes(attribute.String("journey.id", j.ID.String()))
	span.SetStatus(codes.Ok, "Journey created")
	return j, nil
}

// GetJourney fetches one journey owned by userID.
func (r *RepositoryImpl) GetJourney(ctx context.Context, journeyID, userID uuid.UUID, withCoordinates bool) (*models.Journey, error) {
	ctx, span := otel.Tracer("JourneyRepo").Start(ctx, "GetJourney")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("journey.id", journeyID.String()),
	)

	query := `SELECT ` + journeyColumns + ` FROM journeys WHERE id = $1 AND user_id = $2`
	j, err := scanJourney(r.pgpool.QueryRow(ctx, query, journeyID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Journey not found")
			return nil, fmt.Errorf("journey %s: %w", journeyID, models.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching journey: %w", err)
	}

	if withCoordinates {
		coords, err := r.getCoordinates(ctx, journeyID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "DB SELECT failed")
			return nil, err
		}
		j.Coordinates = coords
	}

	span.SetStatus(codes.Ok, "Journey fetched")
	return j, nil
}

// GetActiveJourney returns the user's recording or paused journey,
// ErrNotFound when there is none.
func (r *RepositoryImpl) GetActiveJourney(ctx context.Context, userID uuid.UUID) (*models.Journey, error) {
	ctx, span := otel.Tracer("JourneyRepo").Start(ctx, "GetActiveJourney")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("user.id", userID.String()),
	)

	query := `SELECT ` + journeyColumns + `
		FROM journeys WHERE user_id = $1 AND status IN ('recording', 'paused')`
	j, err := scanJourney(r.pgpool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "No active journey")
			return nil, fmt.Errorf("no active journey for user %s: %w", userID, models.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching active journey: %w", err)
	}

	coords, err := r.getCoordinates(ctx, j.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	j.Coordinates = coords

	span.SetStatus(codes.Ok, "Active journey fetched")
	return j, nil
}

// ListJourneys pages through a user's journey history, coordinates excluded.
func (r *RepositoryImpl) ListJourneys(ctx context.Context, userID uuid.UUID, filter models.JourneyFilter) (*models.JourneyPage, error) {
	ctx, span := otel.Tracer("JourneyRepo").Start(ctx, "ListJourneys")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("user.id", userID.String()),
	)

	l := r.logger.With(zap.String("method", "ListJourneys"), zap.String("userID", userID.String()))

	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	where := sq.And{sq.Eq{"user_id": userID}}
	if filter.Status != nil {
		where = append(where, sq.Eq{"status": string(*filter.Status)})
	}
	if filter.RoadmapSlug != nil {
		where = append(where, sq.Eq{"roadmap_slug": *filter.RoadmapSlug})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("journeys").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building journey count query: %w", err)
	}
	var total int
	if err := r.pgpool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		l.Error("Failed to count journeys", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error counting journeys: %w", err)
	}

	listSQL, listArgs, err := psql.Select(journeyColumns).From("journeys").
		Where(where).
		OrderBy("created_at DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64((filter.Page - 1) * filter.Limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building journey list query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		l.Error("Failed to list journeys", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing journeys: %w", err)
	}
	defer rows.Close()

	journeys := make([]*models.Journey, 0, filter.Limit)
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("database error scanning journey row: %w", err)
		}
		journeys = append(journeys, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating journeys: %w", err)
	}

	pages := (total + filter.Limit - 1) / filter.Limit
	span.SetStatus(codes.Ok, "Journeys listed")
	return &models.JourneyPage{
		Journeys: journeys,
		Total:    total,
		Page:     filter.Page,
		Pages:    pages,
	}, nil
}

// AppendCoordinates appends samples to an active journey. Appending while
// paused reverts the status to recording: pre-pause samples flushed late are
// accepted, and the data layer treats incoming fixes as an implicit resume.
func (r *RepositoryImpl) AppendCoordinates(ctx context.Context, journeyID, userID uuid.UUID, samples []models.Coordinate) (*models.Journey, error) {
	ctx, span := otel.Tracer("JourneyRepo").Start(ctx, "AppendCoordinates")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "journey_coordinates"),
		attribute.String("journey.id", journeyID.String()),
		attribute.Int("batch.size", len(samples)),
	)

	l := r.logger.With(zap.String("method", "AppendCoordinates"),
		zap.String("journeyID", journeyID.String()), zap.Int("batch", len(samples)))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("database error starting track transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + journeyColumns + `
		FROM journeys
		WHERE id = $1 AND user_id = $2 AND status IN ('recording', 'paused')
		FOR UPDATE`
	j, err := scanJourney(tx.QueryRow(ctx, query, journeyID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Active journey not found")
			return nil, fmt.Errorf("active journey %s: %w", journeyID, models.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching active journey: %w", err)
	}

	insert := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Insert("journey_coordinates").
		Columns("journey_id", "lat", "lng", "altitude", "accuracy", "recorded_at")
	for _, s := range samples {
		insert = insert.Values(journeyID, s.Lat, s.Lng, s.Altitude, s.Accuracy, s.Timestamp)
	}
	insertSQL, insertArgs, err := insert.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building coordinate insert: %w", err)
	}
	if _, err = tx.Exec(ctx, insertSQL, insertArgs...); err != nil {
		l.Error("Failed to insert coordinates", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error storing coordinates: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE journeys SET status = 'recording', updated_at = now() WHERE id = $1`,
		journeyID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error updating journey status: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT lat, lng, altitude, accuracy, recorded_at
		FROM journey_coordinates
		WHERE journey_id = $1
		ORDER BY recorded_at, id`, journeyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error reading trace: %w", err)
	}
	coords, err := collectCoordinates(rows)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("database error committing track batch: %w", err)
	}

	j.Status = models.JourneyRecording
	j.Coordinates = coords
	l.Debug("Coordinates appended", zap.Int("total_points", len(coords)))
	span.SetStatus(codes.Ok, "Coordinates appended")
	return j, nil
}

// SetStatus transitions a journey guarded by its current status.
func (r *RepositoryImpl) SetStatus(ctx context.Context, journeyID, userID uuid.UUID, from []models.JourneyStatus, to models.JourneyStatus, endTime *time.Time) error {
	ctx, span := otel.Tracer("JourneyRepo").Start(ctx, "SetStatus")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("journey.id", journeyID.String()),
		attribute.String("journey.status", string(to)),
	)

	l := r.logger.With(zap.String("method", "SetStatus"),
		zap.String("journeyID", journeyID.String()), zap.String("to", string(to)))

	var tag pgconn.CommandTag
	var err error
	if endTime != nil {
		tag, err = r.pgpool.Exec(ctx, `
			UPDATE journeys SET status = $1, end_time = $2, updated_at = now()
			WHERE id = $3 AND user_id = $4 AND status = ANY($5)`,
			string(to), *endTime, journeyID, userID, statusStrings(from))
	} else {
		tag, err = r.pgpool.Exec(ctx, `
			UPDATE journeys SET status = $1, updated_at = now()
			WHERE id = $2 AND user_id = $3 AND status = ANY($4)`,
			string(to), journeyID, userID, statusStrings(from))
	}
	if err != nil {
		l.Error("Failed to update journey status", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating journey status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "No matching journey")
		return fmt.Errorf("journey %s not in expected status: %w", journeyID, models.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Status updated")
	return nil
}

// FinalizeJourney writes the authoritative stats and terminal status.
func (r *RepositoryImpl) FinalizeJourney(ctx context.Context, journeyID, userID uuid.UUID, params FinalizeParams) error {
	ctx, span := otel.Tracer("JourneyRepo").Start(ctx, "FinalizeJourney")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("journey.id", journeyID.String()),
		attribute.String("journey.status", string(params.Status)),
	)

	l := r.logger.With(zap.String("method", "FinalizeJourney"), zap.String("journeyID", journeyID.String()))

	tag, err := r.pgpool.Exec(ctx, `
		UPDATE journeys SET
			status = $1, end_time = $2, duration_seconds = $3, distance_m = $4,
			avg_speed_kmh = $5, max_speed_kmh = $6,
			elevation_gain_m = $7, elevation_loss_m = $8,
			min_altitude_m = $9, max_altitude_m = $10,
			title = COALESCE($11, title), notes = COALESCE($12, notes),
			updated_at = now()
		WHERE id = $13 AND user_id = $14 AND status IN ('recording', 'paused')`,
		string(params.Status), params.EndTime, params.DurationSec, params.DistanceM,
		params.Stats.AvgSpeedKmh, params.Stats.MaxSpeedKmh,
		params.Stats.ElevationGainM, params.Stats.ElevationLossM,
		params.Stats.MinAltitudeM, params.Stats.MaxAltitudeM,
		params.Title, params.Notes,
		journeyID, userID)
	if err != nil {
		l.Error("Failed to finalize journey", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error finalizing journey: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "No matching journey")
		return fmt.Errorf("active journey %s: %w", journeyID, models.ErrNotFound)
	}

	l.Info("Journey finalized", zap.String("status", string(params.Status)))
	span.SetStatus(codes.Ok, "Journey finalized")
	return nil
}

// UpdateTrackImage stores the rendered artifact reference.
func (r *RepositoryImpl) UpdateTrackImage(ctx context.Context, journeyID uuid.UUID, image models.TrackImage) error {
	ctx, span := otel.Tracer("JourneyRepo").Start(ctx, "UpdateTrackImage")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("journey.id", journeyID.String()),
	)

	_, err := r.pgpool.Exec(ctx, `
		UPDATE journeys SET track_image_url = $1, track_image_public_id = $2,
			track_image_format = $3, updated_at = now()
		WHERE id = $4`,
		image.URL, image.PublicID, image.Format, journeyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error storing track image: %w", err)
	}
	span.SetStatus(codes.Ok, "Track image stored")
	return nil
}

// DeleteJourney removes a journey and returns its track image reference.
func (r *RepositoryImpl) DeleteJourney(ctx context.Context, journeyID, userID uuid.UUID) (*models.TrackImage, error) {
	ctx, span := otel.Tracer("JourneyRepo").Start(ctx, "DeleteJourney")
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("journey.id", journeyID.String()),
	)

	l := r.logger.With(zap.String("method", "DeleteJourney"), zap.String("journeyID", journeyID.String()))

	var imgURL, imgPublicID, imgFormat *string
	err := r.pgpool.QueryRow(ctx, `
		DELETE FROM journeys WHERE id = $1 AND user_id = $2
		RETURNING track_image_url, track_image_public_id, track_image_format`,
		journeyID, userID).Scan(&imgURL, &imgPublicID, &imgFormat)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Journey not found")
			return nil, fmt.Errorf("journey %s: %w", journeyID, models.ErrNotFound)
		}
		l.Error("Failed to delete journey", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return nil, fmt.Errorf("database error deleting journey: %w", err)
	}

	l.Info("Journey deleted")
	span.SetStatus(codes.Ok, "Journey deleted")
	if imgPublicID == nil {
		return nil, nil
	}
	img := &models.TrackImage{PublicID: *imgPublicID}
	if imgURL != nil {
		img.URL = *imgURL
	}
	if imgFormat != nil {
		img.Format = *imgFormat
	}
	return img, nil
}

func (r *RepositoryImpl) getCoordinates(ctx context.Context, journeyID uuid.UUID) ([]models.Coordinate, error) {
	rows, err := r.pgpool.Query(ctx, `
		SELECT lat, lng, altitude, accuracy, recorded_at
		FROM journey_coordinates
		WHERE journey_id = $1
		ORDER BY recorded_at, id`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("database error reading trace: %w", err)
	}
	return collectCoordinates(rows)
}

func collectCoordinates(rows pgx.Rows) ([]models.Coordinate, error) {
	defer rows.Close()
	var coords []models.Coordinate
	for rows.Next() {
		var c models.Coordinate
		if err := rows.Scan(&c.Lat, &c.Lng, &c.Altitude, &c.Accuracy, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("database error scanning coordinate: %w", err)
		}
		coords = append(coords, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating coordinates: %w", err)
	}
	return coords, nil
}
