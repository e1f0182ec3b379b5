package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/inkpost/internal/handler"
	"github.com/inkpost/internal/logger"
)

const defaultSessionSecret = "inkpost-dev-secret"

// Options 路由配置
type Options struct {
	SessionSecret string
	// UploadDir is served statically when uploads are kept on local disk.
	UploadDir     string
	UploadURLPath string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(logger.TraceMiddleware(), logger.AccessLog(), gin.Recovery())

	secret := strings.TrimSpace(opts.SessionSecret)
	if secret == "" {
		secret = defaultSessionSecret
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("inkpost_session", store))

	if opts.UploadDir != "" {
		urlPath := strings.TrimRight(strings.TrimSpace(opts.UploadURLPath), "/")
		if urlPath == "" {
			urlPath = "/static/uploads"
		}
		r.Static(urlPath, opts.UploadDir)
		if urlPath != "/uploads" {
			r.Static("/uploads", opts.UploadDir)
		}
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(api.Identify())
	{
		auth := v1.Group("/auth")
		auth.POST("/signup", api.Signup)
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Logout)

		v1.GET("/posts", api.ListPosts)
		v1.GET("/posts/:id", api.GetPost)
		v1.GET("/categories", api.ListCategories)

		// 需要认证的路由
		protected := v1.Group("")
		protected.Use(handler.AuthRequired())
		{
			protected.GET("/posts/:id/versions", api.ListPostVersions)
			protected.POST("/posts", api.CreatePost)
			protected.PUT("/posts/:id", api.UpdatePost)
			protected.DELETE("/posts/:id", api.DeletePost)
			protected.POST("/posts/:id/restore", api.RestorePost)
			protected.POST("/posts/:id/archive", api.ArchivePost)
			protected.POST("/posts/:id/versions/:versionId/rollback", api.RollbackPost)

			protected.POST("/categories", api.CreateCategory)
			protected.PUT("/categories/:id", api.UpdateCategory)
			protected.DELETE("/categories/:id", api.DeleteCategory)

			protected.POST("/uploads", api.UploadImage)
		}
	}

	return r
}
