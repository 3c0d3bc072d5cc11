package api

import "github.com/gin-gonic/gin"

// NewRouter returns an engine with recovery, request logging and all routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.POST("/generate-image", h.generateImage)

	api := r.Group("/api")
	{
		api.GET("/health", health)
		api.POST("/generate-image", h.generateImage)
		api.GET("/qr", qrHandler)
	}
}
