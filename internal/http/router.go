package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/database/users"
	"github.com/mrlokans/libris/internal/identity"
)

// NewRouter creates and configures the HTTP router with all endpoints.
//
// Every route except /health and /ping requires the service API key. A
// bearer token, when present, identifies the caller; the backend decides
// what each caller may do.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	if cfg.TaskQueue != nil {
		health.WithQueue(cfg.TaskQueue)
	}
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	var profiles identity.ProfileLookup
	if cfg.Database != nil {
		profiles = users.NewRepository(cfg.Database.DB)
	}
	authMiddleware := identity.NewMiddleware(cfg.Sessions, profiles, cfg.APIKey)
	requireSession := authMiddleware.RequireSession()

	authController := NewAuthController(cfg.Backend, cfg.RateLimiter)
	booksController := NewBooksController(cfg.Backend)
	usersController := NewUsersController(cfg.Backend)
	passcodesController := NewPasscodesController(cfg.Backend)
	settingsController := NewSettingsController(cfg.Backend)
	auditController := NewAuditController(cfg.Backend)

	// Identity API
	authAPI := router.Group("/auth/v1", authMiddleware.Handler())
	authAPI.POST("/signup", authController.SignUp)
	if cfg.RateLimiter != nil {
		authAPI.POST("/token", cfg.RateLimiter.Middleware(), authController.Token)
	} else {
		authAPI.POST("/token", authController.Token)
	}
	authAPI.POST("/logout", authController.Logout)
	authAPI.GET("/session", requireSession, authController.Session)
	authAPI.DELETE("/user", requireSession, authController.DeleteUser)
	authAPI.POST("/confirm", authController.Confirm)
	authAPI.POST("/recover", authController.Recover)

	// Tables
	rest := router.Group("/rest/v1", authMiddleware.Handler())
	rest.GET("/books", booksController.List)
	rest.GET("/books/:id", booksController.Get)
	rest.POST("/books", booksController.Create)
	rest.PUT("/books/:id", booksController.Update)
	rest.DELETE("/books/:id", booksController.Delete)

	rest.GET("/users", usersController.ListProfiles)
	rest.GET("/users/:id", usersController.GetProfile)
	rest.POST("/users", usersController.InsertProfile)

	rest.GET("/user_books", usersController.ListUserBooks)
	rest.PUT("/user_books", usersController.UpsertUserBook)

	rest.GET("/notifications", usersController.ListNotifications)
	rest.POST("/notifications", usersController.Notify)
	rest.PATCH("/notifications/:id/read", usersController.MarkNotificationRead)

	rest.PUT("/otp_codes", passcodesController.Upsert)
	rest.POST("/otp_codes/lookup", passcodesController.Lookup)
	rest.PATCH("/otp_codes/:id/used", passcodesController.MarkUsed)

	rest.GET("/settings/:key", settingsController.Get)
	rest.PUT("/settings/:key", settingsController.Set)

	rest.GET("/audit_events", auditController.List)

	// Functions
	functions := router.Group("/functions/v1", authMiddleware.Handler())
	functions.POST("/deliver-passcode", passcodesController.Deliver)

	return router
}
