package http

import (
	"github.com/gin-gonic/gin"

	"github.com/example/image-posts/internal/config"
	"github.com/example/image-posts/internal/service"
	"github.com/example/image-posts/internal/transport/http/handlers"
)

type Router = *gin.Engine

func NewRouter(cfg *config.Config, svc *service.PostService) Router {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), SecureHeaders())
	r.MaxMultipartMemory = int64(cfg.MaxMultipartMemMB) << 20
	r.SetHTMLTemplate(handlers.Templates())

	h := handlers.NewPostHandler(svc)

	r.GET("/", h.Home)
	r.GET("/post/", h.NewPostForm)
	r.POST("/post/", h.CreatePost)
	r.Static(handlers.MediaPrefix, cfg.MediaRoot)

	api := r.Group("/api")
	api.GET("/posts", h.ListPostsJSON)
	api.GET("/posts/search", h.Search)
	api.GET("/posts/:id", h.GetPostJSON)

	r.GET("/healthz", h.Health)

	return r
}
