package trackimage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
	"github.com/FACorreiaa/trailtrace/internal/pkg/config"
)

var _ Service = (*ServiceImpl)(nil)

// Service renders a journey trace to an image and manages the uploaded copy.
type Service interface {
	// GenerateAndUpload renders the trace and stores it remotely. Callers
	// treat failures as non-fatal, a journey completes without its image.
	GenerateAndUpload(ctx context.Context, ownerID, journeyID uuid.UUID, coords []models.Coordinate, distanceM, durationSec float64) (*models.TrackImage, error)
	// GenerateForDownload renders the trace locally in the requested
	// format ("svg" or "png") and returns the bytes plus content type.
	GenerateForDownload(coords []models.Coordinate, format string, distanceM, durationSec float64) ([]byte, string, error)
	// Delete removes a previously uploaded image. Best effort.
	Delete(ctx context.Context, publicID string) error
}

type ServiceImpl struct {
	logger   *zap.Logger
	cld      *cloudinary.Cloudinary
	folder   string
	renderer Renderer
}

// NewService builds the image service. When no Cloudinary URL is configured
// the service still renders downloads but refuses uploads.
func NewService(cfg config.CloudinaryConfig, logger *zap.Logger) (*ServiceImpl, error) {
	s := &ServiceImpl{
		logger:   logger,
		folder:   cfg.Folder,
		renderer: NewRenderer(),
	}
	if cfg.URL == "" {
		logger.Warn("Cloudinary URL not configured, track image uploads disabled")
		return s, nil
	}

	cld, err := cloudinary.NewFromURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error initializing cloudinary: %w", err)
	}
	s.cld = cld
	return s, nil
}

func (s *ServiceImpl) GenerateAndUpload(ctx context.Context, ownerID, journeyID uuid.UUID, coords []models.Coordinate, distanceM, durationSec float64) (*models.TrackImage, error) {
	ctx, span := otel.Tracer("TrackImageService").Start(ctx, "GenerateAndUpload")
	defer span.End()
	span.SetAttributes(
		attribute.String("journey.id", journeyID.String()),
		attribute.Int("trace.points", len(coords)),
	)

	l := s.logger.With(zap.String("method", "GenerateAndUpload"),
		zap.String("journeyID", journeyID.String()))

	if s.cld == nil {
		return nil, fmt.Errorf("track image upload disabled: no cloudinary configuration")
	}
	if len(coords) < 2 {
		return nil, fmt.Errorf("track image requires at least 2 coordinates, got %d", len(coords))
	}

	data, err := s.renderer.RenderPNG(coords)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Render failed")
		return nil, fmt.Errorf("error rendering track image: %w", err)
	}

	publicID := fmt.Sprintf("%s/%s", ownerID, journeyID)
	overwrite := true

	var result *uploader.UploadResult
	operation := func() error {
		var upErr error
		result, upErr = s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
			PublicID:  publicID,
			Folder:    s.folder,
			Overwrite: &overwrite,
		})
		if upErr != nil {
			l.Warn("Track image upload attempt failed", zap.Error(upErr))
			return upErr
		}
		if result.Error.Message != "" {
			l.Warn("Track image upload rejected", zap.String("reason", result.Error.Message))
			return fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upload failed")
		return nil, fmt.Errorf("error uploading track image: %w", err)
	}

	l.Info("Track image uploaded", zap.String("public_id", result.PublicID))
	span.SetStatus(codes.Ok, "Track image uploaded")
	return &models.TrackImage{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
		Format:   result.Format,
	}, nil
}

func (s *ServiceImpl) GenerateForDownload(coords []models.Coordinate, format string, distanceM, durationSec float64) ([]byte, string, error) {
	if len(coords) < 2 {
		return nil, "", fmt.Errorf("track export requires at least 2 coordinates: %w", models.ErrBadRequest)
	}

	switch format {
	case "", "svg":
		return s.renderer.RenderSVG(coords, distanceM, durationSec), "image/svg+xml", nil
	case "png":
		data, err := s.renderer.RenderPNG(coords)
		if err != nil {
			return nil, "", err
		}
		return data, "image/png", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q: %w", format, models.ErrBadRequest)
	}
}

func (s *ServiceImpl) Delete(ctx context.Context, publicID string) error {
	ctx, span := otel.Tracer("TrackImageService").Start(ctx, "Delete")
	defer span.End()
	span.SetAttributes(attribute.String("image.public_id", publicID))

	if s.cld == nil || publicID == "" {
		return nil
	}

	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Destroy failed")
		return fmt.Errorf("error deleting track image %s: %w", publicID, err)
	}

	span.SetStatus(codes.Ok, "Track image deleted")
	return nil
}
