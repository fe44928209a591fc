package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/modelrelay/relay/internal/config"
	"github.com/modelrelay/relay/internal/gateway"
	"github.com/modelrelay/relay/internal/server/middleware"
	"github.com/modelrelay/relay/internal/server/validator"
	"github.com/modelrelay/relay/internal/usage"
)

type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  *zap.Logger
	service *gateway.Service
	usage   usage.Reader
}

// New builds the HTTP surface. usageReader may be nil when no usage store
// is configured; the admin usage endpoints are simply not registered then.
func New(cfg *config.Config, logger *zap.Logger, service *gateway.Service, usageReader usage.Reader) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.Init()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(logger))

	s := &Server{
		router:  engine,
		config:  cfg,
		logger:  logger,
		service: service,
		usage:   usageReader,
	}

	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
