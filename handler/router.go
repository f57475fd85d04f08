package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/civicfund/config"
	"github.com/AnTengye/civicfund/middleware"
	"github.com/AnTengye/civicfund/service"
)

// NewRouter wires the development API routes under /api
func NewRouter(cfg *config.Config, store *service.Store, blobs service.BlobStore) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())
	router.Use(middleware.NoCache())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"projects":  store.Count(),
		})
	})

	authHandler := NewAuthHandler(store, &cfg.Auth)
	projectHandler := NewProjectHandler(store, blobs)
	approvalHandler := NewApprovalHandler(store)

	api := router.Group("/api")
	{
		api.GET("/projects", projectHandler.List)
		api.POST("/projects", projectHandler.Create)
		api.GET("/projects/:id", projectHandler.Get)
		api.POST("/projects/:id/upload-document", projectHandler.UploadDocument)
		api.POST("/projects/:id/submit-approval", projectHandler.SubmitForApproval)
		api.GET("/projects/:id/documents", projectHandler.ListDocuments)
		api.GET("/stats", projectHandler.Stats)

		api.GET("/approvals/pending/:authority", approvalHandler.Pending)
		api.POST("/approvals/:id/decide", approvalHandler.Decide)

		api.POST("/auth/authority/login", authHandler.Login)
		api.POST("/auth/authority/register", authHandler.Register)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/authority/me", authHandler.Me)
	}

	return router
}
