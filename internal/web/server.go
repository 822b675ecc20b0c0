package web

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/account"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/catalog"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/comments"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/detail"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/media"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/middleware"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/profile"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/session"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/storage"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/upload"

	_ "github.com/therealutkarshpriyadarshi/streamflow/docs" // Swagger docs
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	LoginPath   = "/login"
	CatalogPath = "/render"
	ProfilePath = "/profile"
)

// Streamer opens the backend byte stream of a video
type Streamer interface {
	Stream(ctx context.Context, id, rangeHeader string) (*http.Response, error)
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Deps are the services the handlers call
type Deps struct {
	Sessions   *session.Manager
	Catalog    *catalog.Service
	Detail     *detail.Resolver
	Uploads    *upload.Service
	Accounts   *account.Service
	Profiles   *profile.Service
	Prober     *media.Prober
	Thumbnails *storage.Thumbnails
	Streams    Streamer
	Comments   *comments.Registry
	Logger     *logging.Logger
}

// Options tune the router
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
	// AttemptLimiter caps login, registration and reset posts per client
	AttemptLimiter middleware.WindowCounter
	AttemptLimit   int64
	AttemptWindow  time.Duration
	// RequestsPerSecond and Burst size the per-client token bucket
	RequestsPerSecond float64
	Burst             int
	HealthChecks      map[string]HealthCheck
}

// Server holds the page and API handlers
type Server struct {
	Deps
	opts      Options
	templates *template.Template
	limiter   *middleware.RateLimiter
	now       func() time.Time
}

// NewServer parses the templates and builds a server
func NewServer(deps Deps, opts Options) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Comments == nil {
		deps.Comments = comments.NewRegistry()
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.AttemptLimit <= 0 {
		opts.AttemptLimit = 20
	}
	if opts.AttemptWindow <= 0 {
		opts.AttemptWindow = time.Minute
	}

	s := &Server{
		Deps:    deps,
		opts:    opts,
		limiter: middleware.NewRateLimiter(opts.RequestsPerSecond, opts.Burst),
		now:     time.Now,
	}

	tmpl, err := template.New("").Funcs(s.funcMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s.templates = tmpl

	if !deps.Comments.Persistent(context.Background()) {
		deps.Logger.Warn("Comments are kept in memory and are lost on restart")
	}
	return s, nil
}

// Limiter is the per-client token bucket limiter, exposed so the caller can
// run its cleanup loop
func (s *Server) Limiter() *middleware.RateLimiter {
	return s.limiter
}

// Router builds the gin engine with every route
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(s.Logger),
		middleware.Metrics(),
		middleware.LoadSession(s.Sessions, s.Logger),
	)
	router.SetHTMLTemplate(s.templates)

	static, _ := fs.Sub(staticFS, "static")
	router.StaticFS("/static", http.FS(static))

	router.GET("/health", s.health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/", s.home)

	attempts := middleware.WindowLimit(s.opts.AttemptLimiter, "attempts", s.opts.AttemptLimit, s.opts.AttemptWindow)
	throttle := middleware.RateLimit(s.limiter)

	// Accounts
	router.GET("/login", s.loginForm)
	router.POST("/login", throttle, attempts, s.login)
	router.GET("/register", s.registerForm)
	router.POST("/register", throttle, attempts, s.register)
	router.POST("/logout", s.logout)
	router.GET("/logout", s.logout)
	router.GET("/forgot-password", s.forgotPasswordForm)
	router.POST("/forgot-password", throttle, attempts, s.forgotPassword)
	router.GET("/reset-password", s.resetPasswordForm)
	router.POST("/reset-password", throttle, attempts, s.resetPassword)

	// Browsing
	router.GET(CatalogPath, s.catalogPage)
	router.GET("/watch", s.watchPage)
	router.POST("/watch/:id/comments", throttle, s.addComment)
	router.POST("/watch/:id/comments/:cid/delete", throttle, s.removeComment)

	// Media
	router.GET("/videos/:id/thumbnail", s.thumbnail)
	router.GET("/stream/streamVideo/:id", s.stream)

	// Signed-in pages
	private := router.Group("/", middleware.RequireLogin(LoginPath))
	{
		private.GET("/upload", s.uploadForm)
		private.POST("/upload", throttle, s.uploadVideo)
		private.GET(ProfilePath, s.profilePage)
		private.POST("/videos/:id/delete", s.deleteVideo)
	}

	// JSON API
	v1 := router.Group("/api/v1", middleware.CORS(s.opts.AllowedOrigins))
	{
		v1.GET("/videos", s.apiSearchVideos)
		v1.GET("/videos/:id/duration", throttle, s.apiVideoDuration)
		v1.GET("/uploads/:id/progress", s.apiUploadProgress)
		v1.GET("/videos/:id/comments", s.apiListComments)
	}

	return router
}

// health godoc
// @Summary      Health check
// @Description  Reports the status of each dependency
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	for name, check := range s.opts.HealthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"checks": checks,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"checks": checks,
	})
}
