// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/keymint/keymint-backend/internal/config"
	"github.com/keymint/keymint-backend/internal/handlers"
	"github.com/keymint/keymint-backend/internal/middleware"
	"github.com/keymint/keymint-backend/internal/services"
	"github.com/keymint/keymint-backend/internal/utils"
)

func Initialize(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// Initialize services
	authorizationService := services.NewAuthorizationService()

	authService := services.NewAuthService(db, cfg)
	appService := services.NewAppService(db, authorizationService)
	licenseService := services.NewLicenseService(db, authorizationService)
	validationService := services.NewValidationService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	appHandler := handlers.NewAppHandler(appService)
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	validateHandler := handlers.NewValidateHandler(validationService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Rate limiters. The validate limiter runs hottest; auth is deliberately
	// tight because it fronts credential guessing.
	validateLimit := middleware.NewRateLimiter(rdb, "validate", cfg.RateLimit.ValidatePerMinute, time.Minute)
	adminLimit := middleware.NewRateLimiter(rdb, "admin", cfg.RateLimit.AdminPerMinute, time.Minute)
	authLimit := middleware.NewRateLimiter(rdb, "auth", cfg.RateLimit.AuthPerMinute, time.Minute)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(authLimit.Middleware())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Application routes
		apps := v1.Group("/apps")
		apps.Use(middleware.AuthRequired(), adminLimit.Middleware())
		{
			apps.POST("", appHandler.CreateApp)
			apps.GET("", appHandler.ListApps)
			apps.PATCH("/:id", appHandler.UpdateApp)
			apps.DELETE("/:id", appHandler.SuspendApp)
			apps.DELETE("/:id/purge", middleware.AdminRequired(), appHandler.PurgeApp)
			apps.POST("/:id/reset-secret", appHandler.ResetSecret)
			apps.POST("/reorder", appHandler.ReorderApps)
		}

		// License management routes
		licenses := v1.Group("/licenses")
		licenses.Use(middleware.AuthRequired(), adminLimit.Middleware())
		{
			licenses.POST("", licenseHandler.CreateLicenses)
			licenses.GET("", licenseHandler.ListLicenses)
			licenses.GET("/export", licenseHandler.ExportLicenses)
			licenses.PATCH("/:id", licenseHandler.UpdateLicense)
			licenses.DELETE("/:id", licenseHandler.DeleteLicense)
		}

		// Public validation route, authenticated by app credentials in the
		// request body rather than a bearer token.
		validate := v1.Group("/validate")
		validate.Use(validateLimit.Middleware())
		{
			validate.POST("", validateHandler.ValidateLicense)
		}
	}

	return r
}
