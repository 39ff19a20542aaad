package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/api/auth"
	"github.com/jon4hz/appmonitor/internal/api/handler"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/engine"
	"github.com/jon4hz/appmonitor/internal/static"
	"github.com/jon4hz/appmonitor/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionName = "app_monitor_session"

// Server is the HTTP frontend of the engine.
type Server struct {
	cfg          *config.Config
	ginEngine    *gin.Engine
	engine       *engine.Engine
	authProvider auth.AuthProvider
	metrics      *httpMetrics
	httpServer   *http.Server
}

// New creates the server and registers all routes.
func New(ctx context.Context, cfg *config.Config, e *engine.Engine) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	authProvider, err := auth.NewProvider(ctx, cfg, e)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	ginEngine := gin.New()
	ginEngine.HTMLRender = renderer
	if err := ginEngine.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          cfg,
		ginEngine:    ginEngine,
		engine:       e,
		authProvider: authProvider,
		metrics:      newHTTPMetrics(),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(auth.CookieOptions(s.cfg, s.cfg.SessionMaxAge))
	s.ginEngine.Use(sessions.Sessions(sessionName, store))
}

func (s *Server) setupRoutes() {
	s.ginEngine.Use(gin.Recovery(), requestLogger(), s.metrics.middleware())
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	s.ginEngine.GET("/health", func(c *gin.Context) {
		if err := s.engine.DB().Ping(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "database unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	s.ginEngine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	s.ginEngine.StaticFS("/static", static.FileSystem())

	s.setupSession()

	h := handler.New(s.engine, s.cfg, s.authProvider.GetAuthConfig())
	s.ginEngine.NoRoute(h.NotFound)

	s.ginEngine.GET("/", h.Index)
	s.ginEngine.GET("/login", h.Login)
	s.ginEngine.POST("/login", s.authProvider.Login)
	s.ginEngine.GET("/register", h.RegisterPage)
	s.ginEngine.POST("/register", h.Register)
	s.ginEngine.GET("/forgot-password", h.ForgotPasswordPage)
	s.ginEngine.POST("/forgot-password", h.ForgotPassword)
	s.ginEngine.GET("/reset-password/:token", h.ResetPasswordPage)
	s.ginEngine.POST("/reset-password/:token", h.ResetPassword)
	s.ginEngine.GET("/oauth/login", s.authProvider.Login)
	s.ginEngine.GET("/oauth/callback", s.authProvider.Callback)

	protected := s.ginEngine.Group("/")
	protected.Use(s.authProvider.RequireAuth())

	protected.GET("/logout", h.Logout)
	protected.GET("/dashboard", h.Dashboard)
	protected.GET("/profile", h.Profile)
	protected.POST("/profile/edit", h.EditProfile)
	protected.POST("/profile/password", h.ChangePassword)

	api := protected.Group("/api")
	api.GET("/metrics", h.GetMetrics)
	api.POST("/metrics", h.CreateMetric)
	api.GET("/events", h.GetEvents)
	api.POST("/events", h.CreateEvent)
	api.GET("/preferences", h.GetPreferences)
	api.PUT("/preferences", h.UpdatePreferences)
	api.GET("/settings", h.GetSettings)
	api.PUT("/settings/:key", h.PutSetting)
	api.DELETE("/settings/:key", h.DeleteSetting)

	admin := api.Group("/admin")
	admin.Use(s.authProvider.RequireAdmin())
	admin.GET("/jobs", h.ListJobs)
	admin.POST("/jobs/:id/run", h.RunJob)

	company := protected.Group("/company")
	company.GET("/setup", h.CompanySetupPage)
	company.POST("/setup", h.CompanySetup)
	company.GET("/entra-setup", h.EntraSetup)
	company.GET("/dashboard", h.CompanyDashboard)
	company.GET("/sso-apps", h.SSOApplications)
	company.POST("/sync-entra", h.SyncEntra)
	company.POST("/test-connection", h.TestConnection)
	company.GET("/users", h.CompanyUsers)
	company.POST("/add-user", h.AddCompanyUser)
}

// Handler returns the http.Handler of the server.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Starting server", "listen", s.cfg.Listen, "environment", s.cfg.Environment)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
