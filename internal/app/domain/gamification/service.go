package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
	"github.com/FACorreiaa/trailtrace/internal/observability/metrics"
)

var _ Service = (*ServiceImpl)(nil)

// Service defines the badge evaluation and aggregate-credit contract.
type Service interface {
	// EvaluateBadges grants every rule whose predicate holds and whose id
	// is not yet in the user's badge set. Idempotent: a second call with
	// no new completed journey grants nothing.
	EvaluateBadges(ctx context.Context, userID uuid.UUID) ([]models.BadgeGrant, error)
	// ApplyJourneyCompletion runs badge evaluation and credits the owner
	// aggregates for one completed journey.
	ApplyJourneyCompletion(ctx context.Context, userID uuid.UUID, distanceM float64) ([]models.BadgeGrant, error)
	GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
	rules  []BadgeRule
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		rules:  DefaultBadgeRules(),
		now:    time.Now,
	}
}

func (s *ServiceImpl) EvaluateBadges(ctx context.Context, userID uuid.UUID) ([]models.BadgeGrant, error) {
	ctx, span := otel.Tracer("GamificationService").Start(ctx, "EvaluateBadges")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	l := s.logger.With(zap.String("method", "EvaluateBadges"), zap.String("userID", userID.String()))

	var (
		held  []models.BadgeGrant
		stats models.AggregateStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		held, err = s.repo.GetBadges(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.repo.GetCompletedAggregates(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		l.Error("Failed to load badge inputs", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load badge inputs")
		return nil, fmt.Errorf("error loading badge inputs: %w", err)
	}

	heldIDs := make(map[string]struct{}, len(held))
	for _, b := range held {
		heldIDs[b.ID] = struct{}{}
	}

	earnedAt := s.now()
	var granted []models.BadgeGrant
	for _, rule := range s.rules {
		if _, ok := heldIDs[rule.ID]; ok {
			continue
		}
		if !rule.Check(stats) {
			continue
		}
		granted = append(granted, models.BadgeGrant{
			ID:          rule.ID,
			Name:        rule.Name,
			Icon:        rule.Icon,
			Description: rule.Description,
			EarnedAt:    earnedAt,
		})
	}

	if len(granted) == 0 {
		span.SetStatus(codes.Ok, "No new badges")
		return nil, nil
	}

	bonus := len(granted) * models.BadgePoints
	if err := s.repo.InsertBadges(ctx, userID, granted, bonus); err != nil {
		l.Error("Failed to persist badge grants", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to persist badge grants")
		return nil, fmt.Errorf("error persisting badge grants: %w", err)
	}

	metrics.Get().BadgesGrantedTotal.Add(ctx, int64(len(granted)))
	l.Info("Badges granted", zap.Int("count", len(granted)), zap.Int("bonus_points", bonus))
	span.SetAttributes(attribute.Int("badges.granted", len(granted)))
	span.SetStatus(codes.Ok, "Badges granted")
	return granted, nil
}

func (s *ServiceImpl) ApplyJourneyCompletion(ctx context.Context, userID uuid.UUID, distanceM float64) ([]models.BadgeGrant, error) {
	ctx, span := otel.Tracer("GamificationService").Start(ctx, "ApplyJourneyCompletion")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Float64("journey.distance_m", distanceM),
	)

	l := s.logger.With(zap.String("method", "ApplyJourneyCompletion"), zap.String("userID", userID.String()))

	granted, err := s.EvaluateBadges(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Badge evaluation failed")
		return nil, err
	}

	if err := s.repo.AddJourneyCredit(ctx, userID, distanceM); err != nil {
		l.Error("Failed to credit journey aggregates", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Aggregate credit failed")
		return granted, fmt.Errorf("error crediting journey aggregates: %w", err)
	}

	span.SetStatus(codes.Ok, "Journey completion applied")
	return granted, nil
}

func (s *ServiceImpl) GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error) {
	ctx, span := otel.Tracer("GamificationService").Start(ctx, "GetProgress")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	progress, err := s.repo.GetProgress(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch progress")
		return nil, fmt.Errorf("error fetching user progress: %w", err)
	}

	span.SetStatus(codes.Ok, "Progress fetched")
	return progress, nil
}
