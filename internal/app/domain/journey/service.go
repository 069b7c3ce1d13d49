package journey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/domain/gamification"
	"github.com/FACorreiaa/trailtrace/internal/app/models"
	"github.com/FACorreiaa/trailtrace/internal/app/services/trackimage"
	"github.com/FACorreiaa/trailtrace/internal/observability/metrics"
	"github.com/FACorreiaa/trailtrace/internal/pkg/geo"
)

var _ Service = (*ServiceImpl)(nil)

// activeCacheTTL keeps the active-journey lookup cheap under the client's
// polling without serving stale state for long.
const activeCacheTTL = 2 * time.Second

// StartParams carries the client's start request.
type StartParams struct {
	RoadmapSlug *string
	RoadmapName *string
	Title       string
	Sample      models.Coordinate
}

// StopParams carries the optional metadata a client attaches when stopping.
type StopParams struct {
	Title *string
	Notes *string
}

// StopResult is the outcome of a successful stop.
type StopResult struct {
	Journey   *models.Journey     `json:"journey"`
	NewBadges []models.BadgeGrant `json:"new_badges,omitempty"`
}

// Service defines the journey recording contract.
type Service interface {
	// Start opens a new recording. A user can only have one active
	// recording, a second start returns ErrConflict.
	Start(ctx context.Context, userID uuid.UUID, params StartParams) (*models.Journey, error)
	// Track appends a batch of samples to an active recording and returns
	// the server-side running totals. Empty batches are rejected.
	Track(ctx context.Context, journeyID, userID uuid.UUID, samples []models.Coordinate) (*models.TrackProgress, error)
	Pause(ctx context.Context, journeyID, userID uuid.UUID) error
	Resume(ctx context.Context, journeyID, userID uuid.UUID) error
	// Stop finalizes the recording. Recordings shorter than the minimum
	// duration or with too few points are persisted as cancelled and a
	// RecordingValidationError is returned.
	Stop(ctx context.Context, journeyID, userID uuid.UUID, params StopParams) (*StopResult, error)
	Cancel(ctx context.Context, journeyID, userID uuid.UUID) error
	GetActive(ctx context.Context, userID uuid.UUID) (*models.Journey, error)
	Get(ctx context.Context, journeyID, userID uuid.UUID) (*models.Journey, error)
	List(ctx context.Context, userID uuid.UUID, filter models.JourneyFilter) (*models.JourneyPage, error)
	Delete(ctx context.Context, journeyID, userID uuid.UUID) error
	// Export renders the journey trace in the requested format and returns
	// the bytes plus content type.
	Export(ctx context.Context, journeyID, userID uuid.UUID, format string) ([]byte, string, error)
}

type ServiceImpl struct {
	logger       *zap.Logger
	repo         Repository
	gamification gamification.Service
	images       trackimage.Service
	activeCache  *cache.Cache
	now          func() time.Time
}

func NewService(repo Repository, gamificationSvc gamification.Service, images trackimage.Service, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:       logger,
		repo:         repo,
		gamification: gamificationSvc,
		images:       images,
		activeCache:  cache.New(activeCacheTTL, time.Minute),
		now:          time.Now,
	}
}

func (s *ServiceImpl) invalidateActive(userID uuid.UUID) {
	s.activeCache.Delete(userID.String())
}

func (s *ServiceImpl) Start(ctx context.Context, userID uuid.UUID, params StartParams) (*models.Journey, error) {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "Start")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	l := s.logger.With(zap.String("method", "Start"), zap.String("userID", userID.String()))

	// Fast pre-check. The partial unique index on the journeys table is the
	// real guard against two concurrent starts.
	if existing, err := s.repo.GetActiveJourney(ctx, userID); err == nil && existing != nil {
		l.Warn("Start rejected, user already has an active journey",
			zap.String("journeyID", existing.ID.String()))
		span.SetStatus(codes.Error, "Active journey exists")
		return nil, fmt.Errorf("journey %s is still active: %w", existing.ID, models.ErrConflict)
	}

	startTime := params.Sample.Timestamp
	if startTime.IsZero() {
		startTime = s.now()
	}
	title := params.Title
	if title == "" {
		title = "Journey on " + startTime.Format("Jan 2, 2006")
	}

	j, err := s.repo.CreateJourney(ctx, userID, CreateJourneyParams{
		RoadmapSlug:   params.RoadmapSlug,
		RoadmapName:   params.RoadmapName,
		Title:         title,
		StartTime:     startTime,
		InitialSample: params.Sample,
	})
	if err != nil {
		l.Error("Failed to create journey", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		return nil, err
	}

	s.invalidateActive(userID)
	metrics.Get().JourneysStartedTotal.Add(ctx, 1)
	l.Info("Journey started", zap.String("journeyID", j.ID.String()))
	span.SetAttributes(attribute.String("journey.id", j.ID.String()))
	span.SetStatus(codes.Ok, "Journey started")
	return j, nil
}

func (s *ServiceImpl) Track(ctx context.Context, journeyID, userID uuid.UUID, samples []models.Coordinate) (*models.TrackProgress, error) {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "Track")
	defer span.End()
	span.SetAttributes(
		attribute.String("journey.id", journeyID.String()),
		attribute.Int("batch.size", len(samples)),
	)

	if len(samples) == 0 {
		span.SetStatus(codes.Error, "Empty batch")
		return nil, fmt.Errorf("track batch must contain at least one coordinate: %w", models.ErrBadRequest)
	}

	j, err := s.repo.AppendCoordinates(ctx, journeyID, userID, samples)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Append failed")
		return nil, err
	}

	s.invalidateActive(userID)

	m := metrics.Get()
	m.CoordinatesTrackedTotal.Add(ctx, int64(len(samples)))
	m.TrackBatchSize.Record(ctx, int64(len(samples)))

	progress := &models.TrackProgress{
		DistanceM:   geo.TotalDistance(j.Coordinates),
		DurationSec: s.now().Sub(j.StartTime).Seconds(),
		PointCount:  len(j.Coordinates),
	}
	span.SetAttributes(attribute.Float64("progress.distance_m", progress.DistanceM))
	span.SetStatus(codes.Ok, "Batch appended")
	return progress, nil
}

func (s *ServiceImpl) Pause(ctx context.Context, journeyID, userID uuid.UUID) error {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "Pause")
	defer span.End()
	span.SetAttributes(attribute.String("journey.id", journeyID.String()))

	err := s.repo.SetStatus(ctx, journeyID, userID,
		[]models.JourneyStatus{models.JourneyRecording}, models.JourneyPaused, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Pause failed")
		return err
	}

	s.invalidateActive(userID)
	span.SetStatus(codes.Ok, "Journey paused")
	return nil
}

func (s *ServiceImpl) Resume(ctx context.Context, journeyID, userID uuid.UUID) error {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "Resume")
	defer span.End()
	span.SetAttributes(attribute.String("journey.id", journeyID.String()))

	err := s.repo.SetStatus(ctx, journeyID, userID,
		[]models.JourneyStatus{models.JourneyPaused}, models.JourneyRecording, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Resume failed")
		return err
	}

	s.invalidateActive(userID)
	span.SetStatus(codes.Ok, "Journey resumed")
	return nil
}

func (s *ServiceImpl) Stop(ctx context.Context, journeyID, userID uuid.UUID, params StopParams) (*StopResult, error) {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "Stop")
	defer span.End()
	span.SetAttributes(attribute.String("journey.id", journeyID.String()))

	l := s.logger.With(zap.String("method", "Stop"),
		zap.String("journeyID", journeyID.String()), zap.String("userID", userID.String()))

	j, err := s.repo.GetJourney(ctx, journeyID, userID, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Fetch failed")
		return nil, err
	}
	if !j.Status.Active() {
		span.SetStatus(codes.Error, "Journey not active")
		return nil, fmt.Errorf("journey %s is not active: %w", journeyID, models.ErrNotFound)
	}

	endTime := s.now()
	distanceM, durationSec, stats := geo.ComputeStats(j.Coordinates, j.StartTime, endTime)
	span.SetAttributes(
		attribute.Float64("journey.distance_m", distanceM),
		attribute.Float64("journey.duration_s", durationSec),
		attribute.Int("journey.points", len(j.Coordinates)),
	)

	var reason models.ValidationReason
	switch {
	case durationSec < models.MinRecordingDuration.Seconds():
		reason = models.ReasonTooShort
	case len(j.Coordinates) < models.MinRecordingPoints:
		reason = models.ReasonTooFewPoints
	}
	if reason != "" {
		if err := s.repo.FinalizeJourney(ctx, journeyID, userID, FinalizeParams{
			Status:      models.JourneyCancelled,
			EndTime:     endTime,
			DurationSec: durationSec,
			DistanceM:   distanceM,
			Stats:       stats,
			Title:       params.Title,
			Notes:       params.Notes,
		}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Finalize failed")
			return nil, err
		}
		s.invalidateActive(userID)
		metrics.Get().JourneysCancelledTotal.Add(ctx, 1)
		l.Info("Recording too small to complete, cancelled",
			zap.String("reason", string(reason)),
			zap.Float64("duration_s", durationSec),
			zap.Int("points", len(j.Coordinates)))
		span.SetStatus(codes.Ok, "Journey cancelled by validation")
		return nil, &models.RecordingValidationError{
			Reason:      reason,
			DurationSec: durationSec,
			PointCount:  len(j.Coordinates),
		}
	}

	// Image generation never blocks completion.
	img, imgErr := s.images.GenerateAndUpload(ctx, userID, journeyID, j.Coordinates, distanceM, durationSec)
	if imgErr != nil {
		l.Warn("Track image generation failed", zap.Error(imgErr))
		metrics.Get().TrackImageFailuresTotal.Add(ctx, 1)
	}

	if err := s.repo.FinalizeJourney(ctx, journeyID, userID, FinalizeParams{
		Status:      models.JourneyCompleted,
		EndTime:     endTime,
		DurationSec: durationSec,
		DistanceM:   distanceM,
		Stats:       stats,
		Title:       params.Title,
		Notes:       params.Notes,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Finalize failed")
		return nil, err
	}
	s.invalidateActive(userID)

	if img != nil {
		if err := s.repo.UpdateTrackImage(ctx, journeyID, *img); err != nil {
			l.Warn("Failed to persist track image reference", zap.Error(err))
			metrics.Get().TrackImageFailuresTotal.Add(ctx, 1)
		}
	}

	newBadges, err := s.gamification.ApplyJourneyCompletion(ctx, userID, distanceM)
	if err != nil {
		// The journey is already completed, surface the failure but do not
		// undo the recording.
		l.Error("Gamification update failed after completion", zap.Error(err))
		span.RecordError(err)
	}

	final, err := s.repo.GetJourney(ctx, journeyID, userID, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Reload failed")
		return nil, err
	}

	metrics.Get().JourneysCompletedTotal.Add(ctx, 1)
	l.Info("Journey completed",
		zap.Float64("distance_m", distanceM),
		zap.Float64("duration_s", durationSec),
		zap.Int("new_badges", len(newBadges)))
	span.SetStatus(codes.Ok, "Journey completed")
	return &StopResult{Journey: final, NewBadges: newBadges}, nil
}

func (s *ServiceImpl) Cancel(ctx context.Context, journeyID, userID uuid.UUID) error {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("journey.id", journeyID.String()))

	endTime := s.now()
	err := s.repo.SetStatus(ctx, journeyID, userID,
		[]models.JourneyStatus{models.JourneyRecording, models.JourneyPaused},
		models.JourneyCancelled, &endTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cancel failed")
		return err
	}

	s.invalidateActive(userID)
	metrics.Get().JourneysCancelledTotal.Add(ctx, 1)
	span.SetStatus(codes.Ok, "Journey cancelled")
	return nil
}

func (s *ServiceImpl) GetActive(ctx context.Context, userID uuid.UUID) (*models.Journey, error) {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "GetActive")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	key := userID.String()
	if cached, found := s.activeCache.Get(key); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		span.SetStatus(codes.Ok, "Active journey from cache")
		if cached == nil {
			return nil, nil
		}
		return cached.(*models.Journey), nil
	}

	j, err := s.repo.GetActiveJourney(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.activeCache.Set(key, nil, activeCacheTTL)
			span.SetStatus(codes.Ok, "No active journey")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Fetch failed")
		return nil, err
	}

	s.activeCache.Set(key, j, activeCacheTTL)
	span.SetStatus(codes.Ok, "Active journey fetched")
	return j, nil
}

func (s *ServiceImpl) Get(ctx context.Context, journeyID, userID uuid.UUID) (*models.Journey, error) {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "Get")
	defer span.End()
	span.SetAttributes(attribute.String("journey.id", journeyID.String()))

	j, err := s.repo.GetJourney(ctx, journeyID, userID, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Fetch failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Journey fetched")
	return j, nil
}

func (s *ServiceImpl) List(ctx context.Context, userID uuid.UUID, filter models.JourneyFilter) (*models.JourneyPage, error) {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	page, err := s.repo.ListJourneys(ctx, userID, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("page.total", page.Total))
	span.SetStatus(codes.Ok, "Journeys listed")
	return page, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, journeyID, userID uuid.UUID) error {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "Delete")
	defer span.End()
	span.SetAttributes(attribute.String("journey.id", journeyID.String()))

	l := s.logger.With(zap.String("method", "Delete"), zap.String("journeyID", journeyID.String()))

	orphan, err := s.repo.DeleteJourney(ctx, journeyID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Delete failed")
		return err
	}

	s.invalidateActive(userID)

	if orphan != nil && orphan.PublicID != "" {
		if err := s.images.Delete(ctx, orphan.PublicID); err != nil {
			l.Warn("Failed to delete orphaned track image", zap.Error(err))
		}
	}

	span.SetStatus(codes.Ok, "Journey deleted")
	return nil
}

func (s *ServiceImpl) Export(ctx context.Context, journeyID, userID uuid.UUID, format string) ([]byte, string, error) {
	ctx, span := otel.Tracer("JourneyService").Start(ctx, "Export")
	defer span.End()
	span.SetAttributes(
		attribute.String("journey.id", journeyID.String()),
		attribute.String("export.format", format),
	)

	j, err := s.repo.GetJourney(ctx, journeyID, userID, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Fetch failed")
		return nil, "", err
	}

	data, contentType, err := s.images.GenerateForDownload(j.Coordinates, format, j.DistanceM, j.DurationSec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Render failed")
		return nil, "", err
	}

	span.SetStatus(codes.Ok, "Journey exported")
	return data, contentType, nil
}
