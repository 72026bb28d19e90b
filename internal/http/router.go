package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chinmaybhatk/frappe-kit/internal/config"
	"github.com/chinmaybhatk/frappe-kit/internal/service"
)

type Server struct {
	router     *gin.Engine
	handler    *Handler
	cfg        *config.Config
	db         *pgxpool.Pool
	httpServer *http.Server
}

// Public API rate limiter: per IP, per minute
var publicRateLimiter = NewRateLimiter(30, time.Minute)

// Demo submission limiter: per IP, per hour. One email can hold at most
// one live request anyway, so 5 covers retries after failure.
var submitRateLimiter = NewRateLimiter(5, time.Hour)

func NewServer(cfg *config.Config, db *pgxpool.Pool, provisionService *service.ProvisionService, conversionService *service.ConversionService, sweeperService *service.SweeperService) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	handler := NewHandler(provisionService, conversionService, sweeperService)

	s := &Server{
		router:  router,
		handler: handler,
		cfg:     cfg,
		db:      db,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "provisioner-service",
		})
	})

	// Public API - guest demo flow, no authentication
	public := s.router.Group("/api/v1/public")
	public.Use(RateLimitMiddleware(publicRateLimiter))
	{
		public.GET("/demo/info", s.handler.GetDemoInfo)
		public.GET("/tiers", s.handler.GetTiers)
		public.GET("/industries", s.handler.GetIndustries)

		// Submission uses a stricter limiter on top of the public one
		public.POST("/demo/request", RateLimitMiddleware(submitRateLimiter), s.handler.SubmitDemoRequest)
		public.GET("/demo/request/:id/status", s.handler.GetDemoStatus)

		// Conversion surface is gated by the capability token, not JWT
		public.GET("/conversion/options", s.handler.GetConversionOptions)
		public.POST("/conversion/request", RateLimitMiddleware(submitRateLimiter), s.handler.SubmitConversion)
		public.GET("/conversion/request/:id/status", s.handler.GetConversionStatus)
	}

	// Admin API - requires JWT authentication
	admin := s.router.Group("/api/v1/admin")
	admin.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	{
		admin.POST("/demo/request/:id/retry", s.handler.RetryProvisioning)
		admin.POST("/demo/site/:id/conversion-link", s.handler.SendConversionLink)

		admin.POST("/conversion/:id/approve", s.handler.ApproveConversion)
		admin.POST("/conversion/:id/reject", s.handler.RejectConversion)
		admin.POST("/conversion/:id/start", s.handler.StartConversion)
	}

	// Internal API - scheduled task triggers, called by the scheduler or ops
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		internal.POST("/tasks/expire-demo-sites", s.handler.ExpireDemoSites)
		internal.POST("/tasks/send-expiry-warnings", s.handler.SendExpiryWarnings)
		internal.POST("/tasks/fail-stuck-requests", s.handler.FailStuckRequests)
	}
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, so no
// handler can enqueue work while the workflow queue drains behind it.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Engine exposes the underlying router for tests
func (s *Server) Engine() *gin.Engine {
	return s.router
}
