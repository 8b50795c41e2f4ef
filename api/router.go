// api/router.go
package api

import (
	"database/sql"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/christopher-kapic/solved-problems-mcp/api/handlers"
	"github.com/christopher-kapic/solved-problems-mcp/api/mcp"
	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/config"
)

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(db *sql.DB, cfg *config.Config) *gin.Engine {
	router := gin.Default() // Includes Logger and Recovery

	corsConfig := cors.DefaultConfig()
	if cfg.CORSOrigin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.CORSOrigin}
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	// It should run after basic middleware like Logger/Recovery
	// but before the routing happens, so it wraps the handlers.
	router.Use(middleware.ErrorHandler())

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	problemHandler := handlers.NewProblemHandler(db, cfg)
	groupHandler := handlers.NewGroupHandler(db, cfg)
	shareHandler := handlers.NewShareHandler(db, cfg)
	apiKeyHandler := handlers.NewAPIKeyHandler(db, cfg)
	draftHandler := handlers.NewDraftHandler(db, cfg)
	adminHandler := handlers.NewAdminHandler(db, cfg)
	transferHandler := handlers.NewTransferHandler(db, cfg)
	mcpServer := mcp.NewServer(db)

	// --- Public Routes ---
	router.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	// Credential endpoints sit behind the rate limiter.
	ratelimiter := middleware.NewRateLimiter(5, time.Minute)
	authRoutes := router.Group("/auth")
	authRoutes.Use(middleware.RateLimitMiddleware(ratelimiter))
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
	}

	// --- Agent Routes (API key only) ---
	router.POST("/mcp", middleware.APIKeyAuthMiddleware(db), mcpServer.Handle)

	// --- Session Routes ---
	apiRoutes := router.Group("/api/v1")
	apiRoutes.Use(middleware.SessionAuthMiddleware(cfg))
	{
		apiRoutes.GET("/me", authHandler.Me)

		apiRoutes.GET("/solved-problems", problemHandler.List)
		apiRoutes.POST("/solved-problems", problemHandler.Create)
		apiRoutes.GET("/solved-problems/:problem_id", problemHandler.Get)
		apiRoutes.PATCH("/solved-problems/:problem_id", problemHandler.Update)
		apiRoutes.DELETE("/solved-problems/:problem_id", problemHandler.Delete)

		apiRoutes.GET("/solved-problems/:problem_id/versions", problemHandler.ListVersions)
		apiRoutes.GET("/solved-problems/:problem_id/versions/:version", problemHandler.GetVersion)

		apiRoutes.GET("/groups", groupHandler.List)
		apiRoutes.POST("/groups", groupHandler.Create)
		apiRoutes.GET("/groups/:group_id", groupHandler.Get)
		apiRoutes.PATCH("/groups/:group_id", groupHandler.Update)
		apiRoutes.DELETE("/groups/:group_id", groupHandler.Delete)
		apiRoutes.POST("/groups/:group_id/solved-problems", groupHandler.AddSolvedProblem)
		apiRoutes.DELETE("/groups/:group_id/solved-problems/:problem_id", groupHandler.RemoveSolvedProblem)

		apiRoutes.POST("/shares", shareHandler.Share)
		apiRoutes.PATCH("/shares/:share_id", shareHandler.UpdatePermission)
		apiRoutes.DELETE("/shares/:share_id", shareHandler.Revoke)
		apiRoutes.GET("/shares/by-me", shareHandler.ListSharedByMe)
		apiRoutes.GET("/shares/with-me", shareHandler.ListSharedWithMe)
		apiRoutes.GET("/users/lookup", shareHandler.LookupUserByEmail)

		apiRoutes.POST("/api-keys", apiKeyHandler.Create)
		apiRoutes.GET("/api-keys", apiKeyHandler.List)
		apiRoutes.DELETE("/api-keys/:key_id", apiKeyHandler.Revoke)
		apiRoutes.PUT("/api-keys/:key_id/access", apiKeyHandler.UpdateAccess)

		apiRoutes.GET("/drafts", draftHandler.List)
		apiRoutes.GET("/drafts/:draft_id", draftHandler.Get)
		apiRoutes.POST("/drafts/:draft_id/approve", draftHandler.Approve)
		apiRoutes.POST("/drafts/:draft_id/reject", draftHandler.Reject)
		apiRoutes.POST("/drafts/:draft_id/copy", draftHandler.CopyToOwn)
		apiRoutes.POST("/drafts/approve-many", draftHandler.ApproveMany)

		apiRoutes.GET("/export", transferHandler.Export)
		apiRoutes.POST("/import", transferHandler.Import)

		adminRoutes := apiRoutes.Group("/admin")
		adminRoutes.Use(middleware.AdminMiddleware())
		{
			adminRoutes.GET("/settings", adminHandler.GetSettings)
			adminRoutes.PATCH("/settings", adminHandler.UpdateSettings)
			adminRoutes.GET("/users", adminHandler.ListUsers)
			adminRoutes.DELETE("/users/:user_id", adminHandler.DeleteUser)
			adminRoutes.POST("/users/:user_id/disable-two-factor", adminHandler.DisableTwoFactor)
		}
	}

	return router
}
