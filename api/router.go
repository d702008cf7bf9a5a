package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ddevcap/movie-catalog/api/handler"
	"github.com/ddevcap/movie-catalog/api/middleware"
	"github.com/ddevcap/movie-catalog/config"
	"github.com/ddevcap/movie-catalog/metrics"
	"github.com/ddevcap/movie-catalog/store"
)

// corsMiddleware allows every origin without credentials when CORS_ORIGINS is
// empty, and only the listed origins, with credentials, otherwise.
func corsMiddleware(cfg config.Config) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 {
		c.AllowAllOrigins = true
		return cors.New(c)
	}
	for _, o := range cfg.CORSOrigins {
		c.AllowOrigins = append(c.AllowOrigins, strings.TrimRight(strings.TrimSpace(o), "/"))
	}
	c.AllowCredentials = true
	return cors.New(c)
}

// NewRouter builds the HTTP handler. The returned function stops the login
// limiter's background work and must be called on shutdown.
func NewRouter(db *store.Store, cfg config.Config, source handler.MetadataSource) (http.Handler, func()) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), corsMiddleware(cfg))

	loginMW, onFail, onSuccess, stopLimiter := middleware.LoginRateLimiter(cfg)
	requireAuth := middleware.Auth(db, cfg)

	authH := handler.NewAuthHandler(db, onFail, onSuccess)
	userH := handler.NewUserHandler(db)
	moviesH := handler.NewMoviesHandler(db, source)
	systemH := handler.NewSystemHandler(db)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/movies", moviesH.ListMovies)
		v1.GET("/movies/:id", moviesH.GetMovie)
		v1.GET("/movies/title/:title", moviesH.GetMovieByTitle)
		v1.POST("/movies", moviesH.CreateMovie)
		v1.DELETE("/movies/:id", requireAuth, moviesH.DeleteMovie)

		v1.POST("/users", userH.CreateUser)
		v1.POST("/token", loginMW, authH.Token)
		v1.POST("/logout", requireAuth, authH.Logout)
	}

	// Probes and metrics sit outside the versioned API.
	r.GET("/health", systemH.HealthLive)
	r.GET("/ready", systemH.HealthReady)

	metrics.Register()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return r, stopLimiter
}
