package httpapi

import (
	"github.com/gin-gonic/gin"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler, o Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	if o.StaticPath != "" && o.StaticDir != "" {
		r.Static(o.StaticPath, o.StaticDir)
	}

	r.GET("/share/:token", h.resolveShare)

	api := r.Group("/api")
	api.POST("/register", h.register)
	api.POST("/login", h.login)

	protected := api.Group("")
	protected.Use(h.authRequired())
	{
		protected.POST("/files", h.uploadFile)
		protected.GET("/files", h.listLooseFiles)
		protected.GET("/files/:id", h.getFile)
		protected.GET("/files/:id/download", h.downloadFile)
		protected.PATCH("/files/:id", h.renameFile)
		protected.PUT("/files/:id/folder", h.moveFile)
		protected.DELETE("/files/:id", h.deleteFile)

		protected.POST("/folders", h.createFolder)
		protected.GET("/folders", h.listFolders)
		protected.GET("/folders/:id", h.getFolder)
		protected.PATCH("/folders/:id", h.renameFolder)
		protected.DELETE("/folders/:id", h.deleteFolder)
		protected.POST("/folders/:id/members", h.updateMembership)
		protected.POST("/folders/:id/shares", h.issueShare)
		protected.GET("/folders/:id/shares", h.listShares)

		protected.DELETE("/shares/:token", h.revokeShare)
	}

	return r
}
