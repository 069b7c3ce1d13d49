package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/domain/gamification"
	"github.com/FACorreiaa/trailtrace/internal/app/domain/journey"
	"github.com/FACorreiaa/trailtrace/internal/app/services/trackimage"
	"github.com/FACorreiaa/trailtrace/internal/pkg/config"
	"github.com/FACorreiaa/trailtrace/internal/pkg/middleware"
)

// Setup wires repositories, services and handlers and registers every route.
func Setup(r *gin.Engine, dbPool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) error {
	journeyRepo := journey.NewRepositoryImpl(dbPool, logger)
	gamificationRepo := gamification.NewRepositoryImpl(dbPool, logger)

	imageSvc, err := trackimage.NewService(cfg.Cloudinary, logger)
	if err != nil {
		return fmt.Errorf("failed to set up track image service: %w", err)
	}

	gamificationSvc := gamification.NewService(gamificationRepo, logger)
	journeySvc := journey.NewService(journeyRepo, gamificationSvc, imageSvc, logger)

	journeyHandler := journey.NewHandler(journeySvc, logger)
	gamificationHandler := gamification.NewHandler(gamificationSvc, logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.JWTAuthMiddleware(cfg.Auth.JWTSecret, logger))

	journeys := api.Group("/journeys")
	{
		journeys.POST("/start", journeyHandler.Start)
		journeys.GET("", journeyHandler.List)
		journeys.GET("/active", journeyHandler.GetActive)
		journeys.GET("/:id", journeyHandler.Get)
		journeys.PUT("/:id/track", journeyHandler.Track)
		journeys.PUT("/:id/pause", journeyHandler.Pause)
		journeys.PUT("/:id/resume", journeyHandler.Resume)
		journeys.PUT("/:id/stop", journeyHandler.Stop)
		journeys.PUT("/:id/cancel", journeyHandler.Cancel)
		journeys.DELETE("/:id", journeyHandler.Delete)
		journeys.POST("/:id/export", journeyHandler.Export)
	}

	api.GET("/progress", gamificationHandler.GetProgress)

	return nil
}
