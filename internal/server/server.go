package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kidsafe/internal/crypto"
	"kidsafe/internal/fanout"
	"kidsafe/internal/handler"
	"kidsafe/internal/middleware"
	"kidsafe/internal/pipeline"
	"kidsafe/internal/repository"
)

type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

// Deps are the components the HTTP surface exposes.
type Deps struct {
	Alerts    repository.AlertRepository
	Filters   repository.FilterRepository
	Hub       *fanout.Hub
	Engine    *pipeline.Engine
	Sealer    *crypto.Sealer
	JWTSecret []byte
}

func NewServer(deps Deps, logger *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router: router,
		logger: logger,
	}
	s.setupRoutes(deps)
	return s
}

func (s *Server) setupRoutes(deps Deps) {
	alertHandler := handler.NewAlertHandler(deps.Alerts, deps.Hub, deps.Sealer, s.logger)
	filterHandler := handler.NewFilterHandler(deps.Filters, s.logger)
	ingestHandler := handler.NewIngestHandler(deps.Engine, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Ingest adapters push normalized messages here.
	s.router.POST("/ingest/messages", ingestHandler.SubmitMessage)

	// Guardian-facing routes
	api := s.router.Group("/api")
	api.Use(middleware.AuthMiddleware(deps.JWTSecret, s.logger))
	{
		api.GET("/alerts", alertHandler.RecentAlerts)
		api.POST("/alerts/:id/read", alertHandler.MarkRead)
		api.POST("/alerts/:id/acknowledge", alertHandler.Acknowledge)
		api.GET("/alerts/subscribe", alertHandler.Subscribe)

		api.GET("/filters", filterHandler.ListFilters)
		api.POST("/filters", filterHandler.UpsertFilter)
		api.DELETE("/filters/:id", filterHandler.DeleteFilter)
	}
}

func (s *Server) Run(addr string) {
	s.logger.Info("Server starting", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		s.logger.Fatal("Server failed to start", zap.Error(err))
	}
}
