package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
)

// API is the server surface the recorder needs. Tests substitute a fake to
// exercise offline and failure behavior.
type API interface {
	StartJourney(ctx context.Context, req StartJourneyRequest) (*models.Journey, error)
	TrackCoordinates(ctx context.Context, journeyID uuid.UUID, coords []models.Coordinate) (*models.TrackProgress, error)
	PauseJourney(ctx context.Context, journeyID uuid.UUID) error
	ResumeJourney(ctx context.Context, journeyID uuid.UUID) error
	StopJourney(ctx context.Context, journeyID uuid.UUID, req StopJourneyRequest) (*StopOutcome, error)
	CancelJourney(ctx context.Context, journeyID uuid.UUID) error
	GetActiveJourney(ctx context.Context) (*models.Journey, error)
}

// StartJourneyRequest mirrors the start endpoint body.
type StartJourneyRequest struct {
	RoadmapSlug *string           `json:"roadmap_slug,omitempty"`
	RoadmapName *string           `json:"roadmap_name,omitempty"`
	Title       string            `json:"title,omitempty"`
	Coordinate  models.Coordinate `json:"coordinate"`
}

// StopJourneyRequest mirrors the stop endpoint body.
type StopJourneyRequest struct {
	Title *string `json:"title,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// StopOutcome is the server's answer to a stop call.
type StopOutcome struct {
	Journey   *models.Journey     `json:"journey"`
	NewBadges []models.BadgeGrant `json:"new_badges,omitempty"`
}

var _ API = (*Client)(nil)

// Client is the HTTP implementation of API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type apiError struct {
	Error       string                  `json:"error"`
	Reason      models.ValidationReason `json:"reason"`
	DurationSec float64                 `json:"duration_seconds"`
	PointCount  int                     `json:"point_count"`
}

// do executes one request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", method, path)
	}
	return nil
}

func (c *Client) mapError(resp *http.Response) error {
	var body apiError
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return models.ErrUnauthenticated
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusConflict:
		return models.ErrConflict
	case http.StatusBadRequest:
		if body.Reason != "" {
			return &models.RecordingValidationError{
				Reason:      body.Reason,
				DurationSec: body.DurationSec,
				PointCount:  body.PointCount,
			}
		}
		return errors.Wrap(models.ErrBadRequest, body.Error)
	default:
		return errors.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
}

func (c *Client) StartJourney(ctx context.Context, req StartJourneyRequest) (*models.Journey, error) {
	var j models.Journey
	if err := c.do(ctx, http.MethodPost, "/api/journeys/start", req, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

func (c *Client) TrackCoordinates(ctx context.Context, journeyID uuid.UUID, coords []models.Coordinate) (*models.TrackProgress, error) {
	var progress models.TrackProgress
	body := map[string]any{"coordinates": coords}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/journeys/%s/track", journeyID), body, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (c *Client) PauseJourney(ctx context.Context, journeyID uuid.UUID) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/journeys/%s/pause", journeyID), nil, nil)
}

func (c *Client) ResumeJourney(ctx context.Context, journeyID uuid.UUID) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/journeys/%s/resume", journeyID), nil, nil)
}

func (c *Client) StopJourney(ctx context.Context, journeyID uuid.UUID, req StopJourneyRequest) (*StopOutcome, error) {
	var outcome StopOutcome
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/journeys/%s/stop", journeyID), req, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *Client) CancelJourney(ctx context.Context, journeyID uuid.UUID) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/journeys/%s/cancel", journeyID), nil, nil)
}

func (c *Client) GetActiveJourney(ctx context.Context) (*models.Journey, error) {
	var resp struct {
		Journey *models.Journey `json:"journey"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/journeys/active", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Journey, nil
}
