package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/app"
	iauth "github.com/vigil-app/vigil/internal/auth"
	"github.com/vigil-app/vigil/internal/handlers"
	"github.com/vigil-app/vigil/internal/middleware"
	"github.com/vigil-app/vigil/internal/notifications"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, hub *notifications.Hub, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if hub == nil {
		return nil, fmt.Errorf("notification hub must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	// Health endpoint (public)
	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/health", healthHandler.Check)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	deviceHandler, err := handlers.NewDeviceHandler(db, hub)
	if err != nil {
		return nil, err
	}

	// Device event ingestion is authenticated by the per-device key, not a
	// user token, so it sits outside the protected group.
	r.POST("/api/devices/:code/notifications", deviceHandler.PublishEvent)

	notificationHandler, err := handlers.NewNotificationHandler(db, hub)
	if err != nil {
		return nil, err
	}
	profileHandler, err := handlers.NewProfileHandler(db)
	if err != nil {
		return nil, err
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	registerDeviceRoutes(api, deviceHandler)
	registerNotificationRoutes(api, notificationHandler)
	registerProfileRoutes(api, profileHandler)

	return r, nil
}
