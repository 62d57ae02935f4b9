// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rig-service/internal/config"
	"rig-service/internal/discovery"
	"rig-service/internal/handler"
	"rig-service/internal/middleware"
	"rig-service/internal/service"
	"rig-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config         *config.Config
	logger         *zap.Logger
	rigService     *service.RigService
	sessionService *service.SessionService
	scanner        *discovery.Scanner
	wsHandler      *handler.WebSocketHandler
	healthHandler  *handler.HealthHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	rigService *service.RigService,
	sessionService *service.SessionService,
	scanner *discovery.Scanner,
	wsHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
) *Router {
	return &Router{
		config:         config,
		logger:         logger,
		rigService:     rigService,
		sessionService: sessionService,
		scanner:        scanner,
		wsHandler:      wsHandler,
		healthHandler:  healthHandler,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Server))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	rigHandler := handler.NewRigHandler(r.rigService, r.logger)
	sessionHandler := handler.NewSessionHandler(r.sessionService, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.scanner, r.logger)

	// Health check routes (no version prefix)
	r.healthHandler.RegisterRoutes(router.Group(""))

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	rigHandler.RegisterRoutes(apiV1.Group("/rig"))
	sessionHandler.RegisterRoutes(apiV1.Group("/sessions"))
	discoveryHandler.RegisterRoutes(apiV1.Group("/discovery"))

	// WebSocket routes
	r.wsHandler.RegisterRoutes(router.Group("/ws"))

	r.logger.Info("All routes configured successfully")
}
