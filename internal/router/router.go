package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/threadlog/internal/config"
	"github.com/threadlog/internal/handler"
	"github.com/threadlog/internal/logging"
	"github.com/threadlog/internal/middleware"
)

const sessionMaxAge = 7 * 24 * 60 * 60

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, cfg config.AppConfig, logger *zap.Logger) *gin.Engine {
	logger = logging.Named(logger, "router")

	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Prometheus("threadlog"))

	// 配置 CORS
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
		r.Use(cors.New(corsConfig))
	}

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("threadlog_session", store))

	// 本地存储桶的公开文件
	if cfg.StorageBackend == "" || cfg.StorageBackend == "local" {
		r.Static(cfg.UploadURLPath, cfg.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		auth := apiGroup.Group("/auth")
		{
			auth.POST("/signup", api.SignUp)
			auth.POST("/signin", api.SignIn)
			auth.POST("/signout", api.SignOut)
			auth.GET("/session", api.Session)
		}

		apiGroup.GET("/blogs", api.ListBlogs)
		apiGroup.GET("/blogs/:id", api.GetBlog)
		apiGroup.GET("/blogs/:id/comments", api.ListComments)
		apiGroup.GET("/blogs/:id/changes", api.WatchBlog)

		// 需要登录的接口
		protected := apiGroup.Group("")
		protected.Use(handler.AuthRequired())
		{
			protected.GET("/me/blogs", api.ListMyBlogs)
			protected.POST("/blogs", api.CreateBlog)
			protected.PUT("/blogs/:id", api.UpdateBlog)
			protected.DELETE("/blogs/:id", api.DeleteBlog)

			protected.POST("/blogs/:id/comments", api.CreateComment)
			protected.PUT("/comments/:id", api.UpdateComment)
			protected.DELETE("/comments/:id", api.DeleteComment)
		}
	}

	return r
}
