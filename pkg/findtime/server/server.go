package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/cors"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/admin"
	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/categories"
	"github.com/findtime/findtime/pkg/findtime/config"
	"github.com/findtime/findtime/pkg/findtime/events"
	"github.com/findtime/findtime/pkg/findtime/groups"
	"github.com/findtime/findtime/pkg/findtime/importexport"
	"github.com/findtime/findtime/pkg/findtime/logging"
	"github.com/findtime/findtime/pkg/findtime/membership"
	"github.com/findtime/findtime/pkg/findtime/notifications"
	"github.com/findtime/findtime/pkg/findtime/ratelimit"
	"github.com/findtime/findtime/pkg/findtime/users"
)

// New builds the gin engine with every route registered. rdb may be nil,
// in which case requests are not rate limited.
func New(db *gorm.DB, cfg *config.Config, rdb *redis.Client) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger())
	if rdb != nil {
		r.Use(ratelimit.Middleware(rdb, cfg.RateLimitMax, cfg.RateLimitWindow))
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	oracle := membership.NewOracle(db)
	eventService := events.NewService(
		events.NewGormStore(db),
		oracle,
		events.WithNotifier(notifications.NewRecorder(db)),
	)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				logging.Entry(c).WithError(err).Warn("database ping failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "service": "findtime"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "findtime"})
		})

		// Auth routes (public)
		auth.NewHandler(db).RegisterRoutes(api.Group("/auth"))

		protected := api.Group("", auth.AuthMiddleware())

		groupsHandler := groups.NewHandler(db, oracle)
		groupsGroup := protected.Group("/groups")
		groupsHandler.RegisterRoutes(groupsGroup)
		groupsHandler.RegisterMemberRoutes(groupsGroup)
		groupsHandler.RegisterPreferenceRoutes(groupsGroup)

		events.NewHandler(eventService).RegisterRoutes(protected)
		categories.NewHandler(db, oracle, eventService).RegisterRoutes(protected)
		importexport.NewHandler(eventService, oracle).RegisterRoutes(protected)
		notifications.NewHandler(db).RegisterRoutes(protected)
		users.NewHandler(db).RegisterRoutes(protected.Group("/users"))

		// Admin routes (admin role required)
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireAdmin())
		admin.NewHandler(db).RegisterRoutes(adminGroup)
	}

	return r
}

// Handler wraps the engine with the configured CORS policy.
func Handler(engine *gin.Engine, cfg *config.Config) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", logging.RequestIDHeader},
		ExposedHeaders:   []string{logging.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
	}).Handler(engine)
}
