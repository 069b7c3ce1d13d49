package journey

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
	"github.com/FACorreiaa/trailtrace/internal/pkg/middleware"
)

// Handler exposes the journey recording API over HTTP.
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type startRequest struct {
	RoadmapSlug *string           `json:"roadmap_slug"`
	RoadmapName *string           `json:"roadmap_name"`
	Title       string            `json:"title"`
	Coordinate  models.Coordinate `json:"coordinate" binding:"required"`
}

type trackRequest struct {
	Coordinates []models.Coordinate `json:"coordinates" binding:"required,dive"`
}

type stopRequest struct {
	Title *string `json:"title"`
	Notes *string `json:"notes"`
}

func (h *Handler) requireUser(c *gin.Context) (uuid.UUID, bool) {
	raw := middleware.GetUserIDFromContext(c)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) journeyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid journey id"})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validationErr *models.RecordingValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "recording could not be completed",
			"reason":           validationErr.Reason,
			"duration_seconds": validationErr.DurationSec,
			"point_count":      validationErr.PointCount,
			"status":           models.JourneyCancelled,
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "journey not found"})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "an active journey already exists"})
	case errors.Is(err, models.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	default:
		h.logger.Error("Unhandled journey error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) Start(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	j, err := h.service.Start(c.Request.Context(), userID, StartParams{
		RoadmapSlug: req.RoadmapSlug,
		RoadmapName: req.RoadmapName,
		Title:       req.Title,
		Sample:      req.Coordinate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, j)
}

func (h *Handler) Track(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	journeyID, ok := h.journeyID(c)
	if !ok {
		return
	}

	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	progress, err := h.service.Track(c.Request.Context(), journeyID, userID, req.Coordinates)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

func (h *Handler) Pause(c *gin.Context) {
	h.transition(c, h.service.Pause, models.JourneyPaused)
}

func (h *Handler) Resume(c *gin.Context) {
	h.transition(c, h.service.Resume, models.JourneyRecording)
}

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel, models.JourneyCancelled)
}

func (h *Handler) transition(c *gin.Context, op func(ctx context.Context, journeyID, userID uuid.UUID) error, to models.JourneyStatus) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	journeyID, ok := h.journeyID(c)
	if !ok {
		return
	}

	if err := op(c.Request.Context(), journeyID, userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": to})
}

func (h *Handler) Stop(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	journeyID, ok := h.journeyID(c)
	if !ok {
		return
	}

	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	result, err := h.service.Stop(c.Request.Context(), journeyID, userID, StopParams{
		Title: req.Title,
		Notes: req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetActive(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	j, err := h.service.GetActive(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if j == nil {
		c.JSON(http.StatusOK, gin.H{"journey": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"journey": j})
}

func (h *Handler) Get(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	journeyID, ok := h.journeyID(c)
	if !ok {
		return
	}

	j, err := h.service.Get(c.Request.Context(), journeyID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, j)
}

func (h *Handler) List(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	filter := models.JourneyFilter{Page: 1, Limit: 20}
	if raw := c.Query("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if raw := c.Query("status"); raw != "" {
		status := models.JourneyStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("roadmap_slug"); raw != "" {
		filter.RoadmapSlug = &raw
	}

	page, err := h.service.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) Delete(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	journeyID, ok := h.journeyID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), journeyID, userID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Export(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	journeyID, ok := h.journeyID(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "svg")
	data, contentType, err := h.service.Export(c.Request.Context(), journeyID, userID, format)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="journey-%s.%s"`, journeyID, format))
	c.Data(http.StatusOK, contentType, data)
}
